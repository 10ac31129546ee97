package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/kelseyhightower/envconfig"
)

const (
	// ConfigDir is the default config directory name.
	ConfigDir = ".wxclaw"
	// ConfigFile is the default config file name.
	ConfigFile = "config.json"
)

// ConfigPath returns the path to the config file.
func ConfigPath() (string, error) {
	if explicit := strings.TrimSpace(os.Getenv("WXCLAW_CONFIG")); explicit != "" {
		if strings.HasPrefix(explicit, "~") {
			home, err := resolveHomeDir()
			if err != nil {
				return "", err
			}
			return filepath.Join(home, explicit[1:]), nil
		}
		return explicit, nil
	}
	home, err := resolveHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ConfigDir, ConfigFile), nil
}

func resolveHomeDir() (string, error) {
	if h := strings.TrimSpace(os.Getenv("WXCLAW_HOME")); h != "" {
		if strings.HasPrefix(h, "~") {
			base, err := os.UserHomeDir()
			if err != nil {
				return "", err
			}
			return filepath.Join(base, h[1:]), nil
		}
		return h, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return home, nil
}

// Load loads the configuration from file and environment variables.
// Priority: environment > file > defaults.
func Load() (*Config, error) {
	cfg := DefaultConfig()

	path, err := ConfigPath()
	if err != nil {
		return cfg, nil // Use defaults if we can't find config path
	}

	data, err := os.ReadFile(path)
	if err == nil {
		if err := json.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse %s: %w", path, err)
		}
	} else if !os.IsNotExist(err) {
		return nil, err
	}
	// If file doesn't exist, continue with defaults

	// Override with environment variables for each group
	envconfig.Process("WXCLAW_SERVER", &cfg.Server)
	envconfig.Process("WXCLAW_WECOM", &cfg.WeCom)
	envconfig.Process("WXCLAW_PROVIDER", &cfg.Provider)
	envconfig.Process("WXCLAW_RELAY", &cfg.Relay)
	envconfig.Process("WXCLAW_AGENT", &cfg.Agent)

	// Fallback for API key
	if cfg.Provider.APIKey == "" {
		if key := os.Getenv("DEEPSEEK_API_KEY"); key != "" {
			cfg.Provider.APIKey = key
		} else if key := os.Getenv("OPENAI_API_KEY"); key != "" {
			cfg.Provider.APIKey = key
		}
	}

	// Expand ~ in paths
	expandHome := func(p *string) {
		if strings.HasPrefix(*p, "~") {
			if home, err := os.UserHomeDir(); err == nil {
				*p = filepath.Join(home, (*p)[1:])
			}
		}
	}
	expandHome(&cfg.Agent.PersonaPath)
	expandHome(&cfg.Agent.Workspace)

	return cfg, nil
}

// Validate checks that the credentials a running relay cannot do without
// are present.
func Validate(cfg *Config) error {
	if cfg.WeCom.CorpID == "" {
		return fmt.Errorf("wecom.corpId is required")
	}
	if cfg.WeCom.Token == "" {
		return fmt.Errorf("wecom.token is required")
	}
	if len(cfg.WeCom.EncodingAESKey) != 43 {
		return fmt.Errorf("wecom.encodingAesKey must be 43 characters, got %d", len(cfg.WeCom.EncodingAESKey))
	}
	if cfg.Relay.BatchIdleSeconds <= 0 {
		return fmt.Errorf("relay.batchIdleSeconds must be positive")
	}
	if cfg.Relay.SessionIdleSeconds <= cfg.Relay.BatchIdleSeconds {
		return fmt.Errorf("relay.sessionIdleSeconds must exceed relay.batchIdleSeconds")
	}
	return nil
}

// Save writes the configuration to the config file.
func Save(cfg *Config) error {
	path, err := ConfigPath()
	if err != nil {
		return err
	}

	// Ensure directory exists
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0700); err != nil {
		return err
	}

	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return err
	}

	return os.WriteFile(path, data, 0600)
}

// EnsureDir ensures a directory exists with proper permissions.
func EnsureDir(path string) error {
	return os.MkdirAll(path, 0755)
}
