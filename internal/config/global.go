package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// GlobalConfig represents configuration stored in ~/.config/plib/config.yml.
type GlobalConfig struct {
	VaultPath        string       `yaml:"vault_path,omitempty"`
	GrobidURL        string       `yaml:"grobid_url,omitempty"`
	AnthropicAPIKey  string       `yaml:"anthropic_api_key,omitempty"`
	SynthesisModel   string       `yaml:"synthesis_model,omitempty"`
	SynthesisBackend string       `yaml:"synthesis_backend,omitempty"`
	PDFReader        string       `yaml:"pdf_reader,omitempty"`
	Backup           BackupConfig `yaml:"backup,omitempty"`
}

const (
	// GlobalConfigDir is the directory name under XDG_CONFIG_HOME.
	GlobalConfigDir = "plib"
	// GlobalConfigFile is the config file name.
	GlobalConfigFile = "config.yml"
)

// globalConfigCache caches the loaded global config.
var globalConfigCache *GlobalConfig

// GlobalConfigPath returns the path to the global config file.
// Respects XDG_CONFIG_HOME, defaults to ~/.config/plib/config.yml.
func GlobalConfigPath() string {
	configHome := os.Getenv("XDG_CONFIG_HOME")
	if configHome == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return ""
		}
		configHome = filepath.Join(home, ".config")
	}
	return filepath.Join(configHome, GlobalConfigDir, GlobalConfigFile)
}

// LoadGlobalConfig loads the global configuration file.
// Returns an empty config (not an error) if the file doesn't exist.
func LoadGlobalConfig() (*GlobalConfig, error) {
	if globalConfigCache != nil {
		return globalConfigCache, nil
	}

	path := GlobalConfigPath()
	if path == "" {
		return &GlobalConfig{}, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return &GlobalConfig{}, nil
		}
		return nil, fmt.Errorf("reading global config: %w", err)
	}

	var cfg GlobalConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parsing global config: %w", err)
	}

	if cfg.VaultPath != "" {
		cfg.VaultPath = ExpandPath(cfg.VaultPath)
	}

	globalConfigCache = &cfg
	return &cfg, nil
}

// ResetGlobalConfigCache clears the cached global config.
// Useful for testing.
func ResetGlobalConfigCache() {
	globalConfigCache = nil
}

// Save writes the global config file, creating its directory.
func (g *GlobalConfig) Save() error {
	path := GlobalConfigPath()
	if path == "" {
		return fmt.Errorf("cannot determine config directory")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}

	data, err := yaml.Marshal(g)
	if err != nil {
		return fmt.Errorf("encoding global config: %w", err)
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("writing global config: %w", err)
	}

	globalConfigCache = g
	return nil
}

// SettableKeys lists the keys accepted by Set, in display order.
var SettableKeys = []string{
	"vault-path", "grobid-url", "anthropic-api-key", "synthesis-model",
	"synthesis-backend", "pdf-reader",
	"backup-bucket", "backup-endpoint", "backup-region", "backup-prefix",
}

// Set updates one key. Keys accept dashes or underscores.
func (g *GlobalConfig) Set(key, value string) error {
	switch NormalizeKey(key) {
	case "vault-path":
		g.VaultPath = ExpandPath(value)
	case "grobid-url":
		g.GrobidURL = strings.TrimRight(value, "/")
	case "anthropic-api-key":
		g.AnthropicAPIKey = value
	case "synthesis-model":
		g.SynthesisModel = value
	case "synthesis-backend":
		if value != BackendAPI && value != BackendCLI {
			return fmt.Errorf("%w: %q (valid: %s, %s)", ErrInvalidBackend, value, BackendAPI, BackendCLI)
		}
		g.SynthesisBackend = value
	case "pdf-reader":
		if err := ValidatePDFReader(value); err != nil {
			return err
		}
		g.PDFReader = value
	case "backup-bucket":
		g.Backup.Bucket = value
	case "backup-endpoint":
		g.Backup.Endpoint = value
	case "backup-region":
		g.Backup.Region = value
	case "backup-prefix":
		g.Backup.Prefix = value
	default:
		return fmt.Errorf("unknown configuration key: %s (valid: %s)", key, strings.Join(SettableKeys, ", "))
	}
	return nil
}

// NormalizeKey converts key formats (vault-path, vault_path, VAULT_PATH) to
// a consistent dashed lower-case form.
func NormalizeKey(key string) string {
	key = strings.ToLower(key)
	return strings.ReplaceAll(key, "_", "-")
}

// HelpfulConfigMessage returns a hint on where configuration lives.
func HelpfulConfigMessage() string {
	configPath := GlobalConfigPath()
	return fmt.Sprintf(`Configuration is read from the environment, a .env file, or %s.

Tip: set the vault and API key once:
  plib config vault-path ~/Obsidian/Research
  plib config anthropic-api-key sk-ant-...

Or use the local claude CLI instead of the API:
  plib config synthesis-backend cli`,
		configPath)
}
