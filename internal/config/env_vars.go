package config

import (
	"fmt"
	"strings"
)

type EnvConfig interface {
	GetPort() string
	GetAppName() string
	GetEnv() string
	GetBaseURL() string
	GetLogLevel() string
	GetTrustedProxies() []string
}

type EnvVars struct {
	Port     string `yaml:"port" env:"PORT" env-default:"8080"`
	AppName  string `yaml:"app_name" env:"APP_NAME" env-default:"Admin Gate"`
	Env      string `yaml:"env" env:"ENV" env-default:"DEV"`
	BaseURL  string `yaml:"base_url" env:"BASE_URL" env-default:"http://localhost:8080"`
	LogLevel string `yaml:"log_level" env:"LOG_LEVEL" env-default:"info"`

	// TrustedProxies lists the addresses or CIDR ranges of reverse proxies whose
	// X-Forwarded-For header is believed.
	TrustedProxies []string `yaml:"trusted_proxies" env:"TRUSTED_PROXIES" env-separator:","`
}

var _ EnvConfig = EnvVars{}

func (e EnvVars) GetPort() string {
	port := e.Port
	if port == "" {
		port = "8080"
	}
	if !strings.HasPrefix(port, ":") {
		port = fmt.Sprintf(":%s", port)
	}
	return port
}

func (e EnvVars) GetAppName() string {
	return e.AppName
}

func (e EnvVars) GetEnv() string {
	if e.Env == "" {
		return "DEV"
	}
	return e.Env
}

// GetBaseURL returns the public base URL of the gateway (e.g., "https://admin.example.com").
// The default OAuth redirect URI is derived from it.
func (e EnvVars) GetBaseURL() string {
	return strings.TrimSuffix(e.BaseURL, "/")
}

func (e EnvVars) GetLogLevel() string {
	return e.LogLevel
}

func (e EnvVars) GetTrustedProxies() []string {
	var proxies []string
	for _, p := range e.TrustedProxies {
		if p = strings.TrimSpace(p); p != "" {
			proxies = append(proxies, p)
		}
	}
	return proxies
}
