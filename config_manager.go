package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/rs/zerolog"
	"gopkg.in/yaml.v2"
)

// getConfigPath returns the full path to the config file. A non-empty
// override wins over the per-user default location.
func getConfigPath(override string) (string, error) {
	if override != "" {
		return expandHome(override), nil
	}
	configDir, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("failed to get user config directory: %w", err)
	}
	return filepath.Join(configDir, ConfigDirName, ConfigFileName), nil
}

// ensureConfigDir creates the directory holding configPath if it doesn't exist
func ensureConfigDir(configPath string) error {
	configDir := filepath.Dir(configPath)
	if err := os.MkdirAll(configDir, ConfigDirMode); err != nil {
		return fmt.Errorf("failed to create config directory %s: %w", configDir, err)
	}
	return nil
}

// loadConfig loads configuration from file or creates default. Unreadable,
// unparsable or invalid files fall back to the defaults with a warning.
func loadConfig(configPath string, log zerolog.Logger) *AppConfig {
	log = log.With().Str("component", "config").Str("path", configPath).Logger()

	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		log.Info().Msg("Config file not found, creating with default values")
		cfg := DefaultConfig()
		if err := saveConfig(configPath, cfg); err != nil {
			log.Warn().Err(err).Msg("Failed to write default config")
		}
		return cfg
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		log.Warn().Err(err).Msg("Failed to read config file, using default config")
		return DefaultConfig()
	}

	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		log.Warn().Err(err).Msg("Failed to parse config file, using default config")
		return DefaultConfig()
	}

	if err := cfg.Validate(); err != nil {
		log.Warn().Err(err).Msg("Invalid config file, using default config")
		return DefaultConfig()
	}

	log.Debug().Msg("Config loaded")
	return cfg
}

// saveConfig writes cfg to configPath
func saveConfig(configPath string, cfg *AppConfig) error {
	if cfg == nil {
		return fmt.Errorf("config is nil, cannot save")
	}

	if err := ensureConfigDir(configPath); err != nil {
		return fmt.Errorf("failed to ensure config directory: %w", err)
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(configPath, data, ConfigFileMode); err != nil {
		return fmt.Errorf("failed to write config file %s: %w", configPath, err)
	}

	return nil
}
