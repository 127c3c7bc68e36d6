package internal

import (
	"fmt"

	"github.com/hbomb79/Syphon/internal/api"
	"github.com/hbomb79/Syphon/internal/extractor"
	"github.com/hbomb79/Syphon/internal/media"
	"github.com/ilyakaznacheev/cleanenv"
)

// SyphonConfig is the explicit, injected configuration for the whole
// service; there is deliberately no ambient global state. Every value can
// be supplied via YAML file or environment variable.
type SyphonConfig struct {
	Extractor extractor.Config    `yaml:"extractor"`
	Media     media.ServiceConfig `yaml:"media"`
	Rest      api.RestConfig      `yaml:"api"`
}

// LoadFromFile reads a YAML configuration file, with environment
// variables taking precedence over file values.
func (config *SyphonConfig) LoadFromFile(configPath string) error {
	if err := cleanenv.ReadConfig(configPath, config); err != nil {
		return fmt.Errorf("failed to load configuration from %s: %w", configPath, err)
	}

	return nil
}

// LoadFromEnv populates the configuration from environment variables and
// defaults alone.
func (config *SyphonConfig) LoadFromEnv() error {
	if err := cleanenv.ReadEnv(config); err != nil {
		return fmt.Errorf("failed to load configuration from environment: %w", err)
	}

	return nil
}
