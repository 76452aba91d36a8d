package cache

import (
	"time"

	"github.com/texlate/texlate/pkg/config"
)

// Config holds the connection settings of the counter store.
type Config struct {
	URL         string
	Host        string
	Port        string
	Password    string
	DB          int
	PoolSize    int
	MaxRetries  int
	DialTimeout time.Duration
	PingTimeout time.Duration
}

// FromAppConfig extracts the Redis settings from the application configuration.
func FromAppConfig(appConfig *config.Config) *Config {
	r := appConfig.Redis
	return &Config{
		URL:         r.URL,
		Host:        r.Host,
		Port:        r.Port,
		Password:    r.Password.Value(),
		DB:          r.DB,
		PoolSize:    r.PoolSize,
		MaxRetries:  r.MaxRetries,
		DialTimeout: r.DialTimeout,
		PingTimeout: r.PingTimeout,
	}
}
