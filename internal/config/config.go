package config

import (
	"fmt"
	"os"

	"github.com/ilyakaznacheev/cleanenv"
)

type Config interface {
	EnvConfig
	CorsConfig
	OAuthConfig
	SessionConfig
	StorageConfig
}

type mainConfig struct {
	EnvVars `yaml:"app"`
	Cors    `yaml:"cors"`
	OAuth   `yaml:"oauth"`
	Session `yaml:"session"`
	Storage `yaml:"storage"`
}

var _ Config = (*mainConfig)(nil)

// New reads the configuration from the environment. When CONFIG_PATH points at a
// YAML file it is read first and environment variables override it.
func New() (Config, error) {
	var c mainConfig
	if path := os.Getenv("CONFIG_PATH"); path != "" {
		if err := cleanenv.ReadConfig(path, &c); err != nil {
			return nil, fmt.Errorf("[config New] read %s: %w", path, err)
		}
		return &c, nil
	}
	if err := cleanenv.ReadEnv(&c); err != nil {
		return nil, fmt.Errorf("[config New] read env: %w", err)
	}
	return &c, nil
}
