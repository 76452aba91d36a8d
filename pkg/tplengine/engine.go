package tplengine

import (
	"bytes"
	"fmt"
	"maps"
	"strings"
	"text/template"

	"github.com/Masterminds/sprig/v3"
)

// TemplateEngine renders named text templates with the sprig function set.
// Missing keys are errors rather than "<no value>".
type TemplateEngine struct {
	templates    map[string]*template.Template
	globalValues map[string]any
}

func NewEngine() *TemplateEngine {
	return &TemplateEngine{
		templates:    make(map[string]*template.Template),
		globalValues: make(map[string]any),
	}
}

func parse(name, templateStr string) (*template.Template, error) {
	tmpl, err := template.New(name).Option("missingkey=error").Funcs(sprig.TxtFuncMap()).Parse(templateStr)
	if err != nil {
		return nil, fmt.Errorf("failed to parse template: %w", err)
	}
	return tmpl, nil
}

// Validate reports whether templateStr parses.
func Validate(templateStr string) error {
	_, err := parse("validate", templateStr)
	return err
}

// AddTemplate adds a template to the engine
func (e *TemplateEngine) AddTemplate(name, templateStr string) error {
	tmpl, err := parse(name, templateStr)
	if err != nil {
		return err
	}
	e.templates[name] = tmpl
	return nil
}

// HasTemplate returns true if the string contains template markers
func HasTemplate(s string) bool {
	return strings.Contains(s, "{{")
}

// Render renders a template by name
func (e *TemplateEngine) Render(name string, data map[string]any) (string, error) {
	tmpl, ok := e.templates[name]
	if !ok {
		return "", fmt.Errorf("template not found: %s", name)
	}
	return e.execute(tmpl, data)
}

// RenderString renders a one-off template string. Strings without template
// markers are returned unchanged.
func (e *TemplateEngine) RenderString(templateStr string, data map[string]any) (string, error) {
	if !HasTemplate(templateStr) {
		return templateStr, nil
	}
	tmpl, err := parse("inline", templateStr)
	if err != nil {
		return "", err
	}
	return e.execute(tmpl, data)
}

func (e *TemplateEngine) execute(tmpl *template.Template, data map[string]any) (string, error) {
	values := make(map[string]any, len(data)+len(e.globalValues))
	maps.Copy(values, e.globalValues)
	maps.Copy(values, data)
	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, values); err != nil {
		return "", fmt.Errorf("template execution error: %w", err)
	}
	return buf.String(), nil
}

// AddGlobalValue makes value available to every render. Per-call data with
// the same key wins.
func (e *TemplateEngine) AddGlobalValue(name string, value any) {
	e.globalValues[name] = value
}
