// Package config handles vault layout and runtime configuration.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

// Defaults applied when neither the environment nor the global file sets a value.
const (
	DefaultGrobidURL        = "http://localhost:8070"
	DefaultVaultPath        = "./vault"
	DefaultSynthesisModel   = "claude-haiku-4-5"
	DefaultSynthesisBackend = BackendAPI
	DefaultPDFReader        = "system"
)

// Synthesis backends.
const (
	BackendAPI = "api"
	BackendCLI = "cli"
)

// Config is the effective runtime configuration.
type Config struct {
	AnthropicAPIKey  string `envconfig:"ANTHROPIC_API_KEY"`
	GrobidURL        string `envconfig:"GROBID_URL"`
	VaultPath        string `envconfig:"VAULT_PATH"`
	SynthesisModel   string `envconfig:"SYNTHESIS_MODEL"`
	SynthesisBackend string `envconfig:"SYNTHESIS_BACKEND"`
	PDFReader        string `envconfig:"PDF_READER"`
	LogLevel         string `envconfig:"LOG_LEVEL" default:"info"`

	Backup BackupConfig `envconfig:"BACKUP"`
}

// BackupConfig describes the S3-compatible bucket the vault is mirrored to.
type BackupConfig struct {
	Bucket    string `envconfig:"S3_BUCKET" yaml:"bucket,omitempty"`
	Endpoint  string `envconfig:"S3_ENDPOINT" yaml:"endpoint,omitempty"`
	Region    string `envconfig:"S3_REGION" yaml:"region,omitempty"`
	AccessKey string `envconfig:"S3_ACCESS_KEY" yaml:"access_key,omitempty"`
	SecretKey string `envconfig:"S3_SECRET_KEY" yaml:"secret_key,omitempty"`
	Prefix    string `envconfig:"S3_PREFIX" yaml:"prefix,omitempty"`
}

// Configured reports whether a bucket has been set.
func (b BackupConfig) Configured() bool {
	return b.Bucket != ""
}

// Vault layout.
const (
	PapersDir    = "Papers"
	ArticlesDir  = "Articles"
	PDFsDir      = "PDFs"
	MetaDir      = "_meta"
	StateFile    = "processing_state.json"
	LibraryFile  = "library.jsonl"
	ArticlesFile = "articles.jsonl"
	CacheDir     = "cache"
	DBFile       = "library.db"
	TrackerDir   = "tracker"
)

var (
	// ErrMissingAPIKey is returned by Validate when the API backend has no key.
	ErrMissingAPIKey = errors.New("ANTHROPIC_API_KEY not set")
	// ErrInvalidBackend is returned by Validate for an unknown synthesis backend.
	ErrInvalidBackend = errors.New("invalid synthesis backend")
)

// ValidReaders lists the supported PDF reader values.
var ValidReaders = []string{"system", "skim", "preview", "zathura", "evince", "okular"}

// Load builds the configuration: .env in the working directory, then the
// environment, then the global config file, then defaults.
func Load() (*Config, error) {
	_ = godotenv.Load()

	global, err := LoadGlobalConfig()
	if err != nil {
		return nil, err
	}
	return FromEnv(global)
}

// FromEnv decodes the environment on top of global and fills defaults.
// A nil global is treated as empty.
func FromEnv(global *GlobalConfig) (*Config, error) {
	var c Config
	if global != nil {
		c = Config{
			AnthropicAPIKey:  global.AnthropicAPIKey,
			GrobidURL:        global.GrobidURL,
			VaultPath:        global.VaultPath,
			SynthesisModel:   global.SynthesisModel,
			SynthesisBackend: global.SynthesisBackend,
			PDFReader:        global.PDFReader,
			Backup:           global.Backup,
		}
	}

	// Unset variables leave the file values in place.
	if err := envconfig.Process("", &c); err != nil {
		return nil, fmt.Errorf("reading environment: %w", err)
	}

	c.applyDefaults()

	abs, err := filepath.Abs(ExpandPath(c.VaultPath))
	if err != nil {
		return nil, fmt.Errorf("resolving vault path: %w", err)
	}
	c.VaultPath = abs
	return &c, nil
}

func (c *Config) applyDefaults() {
	if c.GrobidURL == "" {
		c.GrobidURL = DefaultGrobidURL
	}
	if c.VaultPath == "" {
		c.VaultPath = DefaultVaultPath
	}
	if c.SynthesisModel == "" {
		c.SynthesisModel = DefaultSynthesisModel
	}
	if c.SynthesisBackend == "" {
		c.SynthesisBackend = DefaultSynthesisBackend
	}
	if c.PDFReader == "" {
		c.PDFReader = DefaultPDFReader
	}
	c.GrobidURL = strings.TrimRight(c.GrobidURL, "/")
}

// Validate checks the settings needed to process papers and creates the
// vault directories if they are missing.
func (c *Config) Validate() error {
	switch c.SynthesisBackend {
	case BackendAPI:
		if c.AnthropicAPIKey == "" {
			return fmt.Errorf("%w: create a .env file or set anthropic_api_key in %s",
				ErrMissingAPIKey, GlobalConfigPath())
		}
	case BackendCLI:
	default:
		return fmt.Errorf("%w: %q (valid: %s, %s)", ErrInvalidBackend, c.SynthesisBackend, BackendAPI, BackendCLI)
	}

	if err := ValidatePDFReader(c.PDFReader); err != nil {
		return err
	}
	return EnsureVault(c.VaultPath)
}

// PapersPath returns the directory holding paper notes.
func PapersPath(vault string) string {
	return filepath.Join(vault, PapersDir)
}

// ArticlesPath returns the directory holding article notes.
func ArticlesPath(vault string) string {
	return filepath.Join(vault, ArticlesDir)
}

// PDFsPath returns the directory holding downloaded PDFs.
func PDFsPath(vault string) string {
	return filepath.Join(vault, PDFsDir)
}

// MetaPath returns the vault's metadata directory.
func MetaPath(vault string) string {
	return filepath.Join(vault, MetaDir)
}

// StatePath returns the path to processing_state.json.
func StatePath(vault string) string {
	return filepath.Join(vault, MetaDir, StateFile)
}

// LibraryPath returns the path to the paper library JSONL.
func LibraryPath(vault string) string {
	return filepath.Join(vault, MetaDir, LibraryFile)
}

// ArticlesIndexPath returns the path to the article JSONL.
func ArticlesIndexPath(vault string) string {
	return filepath.Join(vault, MetaDir, ArticlesFile)
}

// CachePath returns the path to the cache directory.
func CachePath(vault string) string {
	return filepath.Join(vault, MetaDir, CacheDir)
}

// DBPath returns the path to the SQLite index.
func DBPath(vault string) string {
	return filepath.Join(vault, MetaDir, CacheDir, DBFile)
}

// TrackerPath returns the directory holding project state files.
func TrackerPath(vault string) string {
	return filepath.Join(vault, MetaDir, TrackerDir)
}

// EnsureVault creates the vault directory tree.
func EnsureVault(vault string) error {
	for _, dir := range []string{PapersPath(vault), ArticlesPath(vault), PDFsPath(vault), MetaPath(vault)} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("creating vault directory: %w", err)
		}
	}
	return nil
}

// ValidatePDFReader checks that the reader value is valid.
func ValidatePDFReader(reader string) error {
	if reader == "" {
		return nil // Empty defaults to "system"
	}

	for _, valid := range ValidReaders {
		if reader == valid {
			return nil
		}
	}

	return fmt.Errorf("invalid pdf_reader: %s (valid: %v)", reader, ValidReaders)
}

// ExpandPath expands ~ to the user's home directory.
// Returns the original path unchanged if it doesn't start with ~.
func ExpandPath(path string) string {
	if len(path) == 0 || path[0] != '~' {
		return path
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}

	return filepath.Join(home, path[1:])
}

// MaskSecret shows only the last four characters of a secret.
func MaskSecret(s string) string {
	if s == "" {
		return ""
	}
	if len(s) <= 4 {
		return "****"
	}
	return "****" + s[len(s)-4:]
}
