package config

import (
	"fmt"
	"reflect"
	"sync"
)

// envBindings maps every variable named by an `env` tag on Config to the
// koanf path of the field it overrides.
var envBindings = sync.OnceValue(func() map[string]string {
	out := make(map[string]string)
	bindEnv(reflect.TypeFor[Config](), "", out)
	return out
})

func bindEnv(t reflect.Type, prefix string, out map[string]string) {
	for i := range t.NumField() {
		field := t.Field(i)
		key := field.Tag.Get("koanf")
		if !field.IsExported() || key == "" || key == "-" {
			continue
		}
		path := key
		if prefix != "" {
			path = prefix + "." + key
		}
		if field.Type.Kind() == reflect.Struct {
			bindEnv(field.Type, path, out)
			continue
		}
		name := field.Tag.Get("env")
		if name == "" || name == "-" {
			continue
		}
		if prev, dup := out[name]; dup {
			panic(fmt.Sprintf("config: %s is bound to both %s and %s", name, prev, path))
		}
		out[name] = path
	}
}
