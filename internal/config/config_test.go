package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
)

var envKeys = []string{
	"ANTHROPIC_API_KEY", "GROBID_URL", "VAULT_PATH", "SYNTHESIS_MODEL",
	"SYNTHESIS_BACKEND", "PDF_READER", "LOG_LEVEL",
	"BACKUP_S3_BUCKET", "BACKUP_S3_ENDPOINT", "BACKUP_S3_REGION",
	"BACKUP_S3_ACCESS_KEY", "BACKUP_S3_SECRET_KEY", "BACKUP_S3_PREFIX",
}

// clearEnv unsets every variable Config reads, restoring them after the test.
func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range envKeys {
		t.Setenv(k, "")
		os.Unsetenv(k)
	}
}

func TestPathFunctions(t *testing.T) {
	vault := "/test/vault"

	tests := []struct {
		name string
		fn   func(string) string
		want string
	}{
		{"PapersPath", PapersPath, "/test/vault/Papers"},
		{"ArticlesPath", ArticlesPath, "/test/vault/Articles"},
		{"PDFsPath", PDFsPath, "/test/vault/PDFs"},
		{"MetaPath", MetaPath, "/test/vault/_meta"},
		{"StatePath", StatePath, "/test/vault/_meta/processing_state.json"},
		{"LibraryPath", LibraryPath, "/test/vault/_meta/library.jsonl"},
		{"ArticlesIndexPath", ArticlesIndexPath, "/test/vault/_meta/articles.jsonl"},
		{"CachePath", CachePath, "/test/vault/_meta/cache"},
		{"DBPath", DBPath, "/test/vault/_meta/cache/library.db"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := tt.fn(vault)
			if got != tt.want {
				t.Errorf("%s(%q) = %q, want %q", tt.name, vault, got, tt.want)
			}
		})
	}
}

func TestFromEnv_Defaults(t *testing.T) {
	clearEnv(t)

	cfg, err := FromEnv(nil)
	if err != nil {
		t.Fatalf("FromEnv() error = %v", err)
	}
	if cfg.GrobidURL != DefaultGrobidURL {
		t.Errorf("GrobidURL = %q, want %q", cfg.GrobidURL, DefaultGrobidURL)
	}
	if cfg.SynthesisModel != DefaultSynthesisModel {
		t.Errorf("SynthesisModel = %q, want %q", cfg.SynthesisModel, DefaultSynthesisModel)
	}
	if cfg.SynthesisBackend != BackendAPI {
		t.Errorf("SynthesisBackend = %q, want %q", cfg.SynthesisBackend, BackendAPI)
	}
	if cfg.LogLevel != "info" {
		t.Errorf("LogLevel = %q, want info", cfg.LogLevel)
	}
	if !filepath.IsAbs(cfg.VaultPath) || filepath.Base(cfg.VaultPath) != "vault" {
		t.Errorf("VaultPath = %q, want absolute path ending in vault", cfg.VaultPath)
	}
}

func TestFromEnv_Precedence(t *testing.T) {
	clearEnv(t)

	global := &GlobalConfig{
		GrobidURL:      "http://grobid.file:8070/",
		SynthesisModel: "file-model",
		VaultPath:      "/file/vault",
		Backup:         BackupConfig{Bucket: "file-bucket", Region: "eu-central-1"},
	}
	t.Setenv("GROBID_URL", "http://grobid.env:8070")
	t.Setenv("BACKUP_S3_BUCKET", "env-bucket")

	cfg, err := FromEnv(global)
	if err != nil {
		t.Fatalf("FromEnv() error = %v", err)
	}
	if cfg.GrobidURL != "http://grobid.env:8070" {
		t.Errorf("GrobidURL = %q, want env value", cfg.GrobidURL)
	}
	if cfg.SynthesisModel != "file-model" {
		t.Errorf("SynthesisModel = %q, want file-model", cfg.SynthesisModel)
	}
	if cfg.VaultPath != "/file/vault" {
		t.Errorf("VaultPath = %q, want /file/vault", cfg.VaultPath)
	}
	if cfg.Backup.Bucket != "env-bucket" || cfg.Backup.Region != "eu-central-1" {
		t.Errorf("Backup = %+v", cfg.Backup)
	}
	if !cfg.Backup.Configured() {
		t.Error("Backup.Configured() = false")
	}
}

func TestValidate(t *testing.T) {
	vault := filepath.Join(t.TempDir(), "vault")

	tests := []struct {
		name    string
		cfg     Config
		wantErr error
	}{
		{"api without key", Config{SynthesisBackend: BackendAPI, VaultPath: vault}, ErrMissingAPIKey},
		{"unknown backend", Config{SynthesisBackend: "gpt", VaultPath: vault}, ErrInvalidBackend},
		{"cli without key", Config{SynthesisBackend: BackendCLI, VaultPath: vault}, nil},
		{"api with key", Config{SynthesisBackend: BackendAPI, AnthropicAPIKey: "sk-test", VaultPath: vault}, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate()
			if tt.wantErr == nil {
				if err != nil {
					t.Fatalf("Validate() error = %v", err)
				}
				return
			}
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("Validate() error = %v, want %v", err, tt.wantErr)
			}
		})
	}

	for _, dir := range []string{PapersPath(vault), ArticlesPath(vault), PDFsPath(vault), MetaPath(vault)} {
		if info, err := os.Stat(dir); err != nil || !info.IsDir() {
			t.Errorf("vault directory %s not created", dir)
		}
	}
}

func TestValidatePDFReader(t *testing.T) {
	tests := []struct {
		reader  string
		wantErr bool
	}{
		{"", false},
		{"system", false},
		{"skim", false},
		{"zathura", false},
		{"acrobat", true},
	}

	for _, tt := range tests {
		t.Run(tt.reader, func(t *testing.T) {
			err := ValidatePDFReader(tt.reader)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidatePDFReader(%q) error = %v, wantErr %v", tt.reader, err, tt.wantErr)
			}
		})
	}
}

func TestExpandPath(t *testing.T) {
	home, err := os.UserHomeDir()
	if err != nil {
		t.Skip("Cannot get home directory")
	}

	tests := []struct {
		input string
		want  string
	}{
		{"~/vault", filepath.Join(home, "vault")},
		{"/abs/vault", "/abs/vault"},
		{"", ""},
	}
	for _, tt := range tests {
		if got := ExpandPath(tt.input); got != tt.want {
			t.Errorf("ExpandPath(%q) = %q, want %q", tt.input, got, tt.want)
		}
	}
}

func TestMaskSecret(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{"", ""},
		{"abc", "****"},
		{"sk-ant-123456", "****3456"},
	}
	for _, tt := range tests {
		if got := MaskSecret(tt.input); got != tt.want {
			t.Errorf("MaskSecret(%q) = %q, want %q", tt.input, got, tt.want)
		}
	}
}
