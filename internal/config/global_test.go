package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func writeGlobal(t *testing.T, dir, content string) string {
	t.Helper()
	configDir := filepath.Join(dir, GlobalConfigDir)
	if err := os.MkdirAll(configDir, 0755); err != nil {
		t.Fatal(err)
	}
	path := filepath.Join(configDir, GlobalConfigFile)
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestGlobalConfigPath(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", "/custom/config")
	path := GlobalConfigPath()
	want := "/custom/config/plib/config.yml"
	if path != want {
		t.Errorf("GlobalConfigPath() = %q, want %q", path, want)
	}

	// Empty XDG_CONFIG_HOME falls back to ~/.config
	t.Setenv("XDG_CONFIG_HOME", "")
	home, err := os.UserHomeDir()
	if err != nil {
		t.Skip("Cannot get home directory")
	}
	path = GlobalConfigPath()
	want = filepath.Join(home, ".config", "plib", "config.yml")
	if path != want {
		t.Errorf("GlobalConfigPath() = %q, want %q", path, want)
	}
}

func TestLoadGlobalConfig_NotFound(t *testing.T) {
	ResetGlobalConfigCache()
	defer ResetGlobalConfigCache()

	t.Setenv("XDG_CONFIG_HOME", t.TempDir())

	cfg, err := LoadGlobalConfig()
	if err != nil {
		t.Fatalf("LoadGlobalConfig() error = %v", err)
	}
	if cfg == nil {
		t.Fatal("LoadGlobalConfig() returned nil")
	}
	if cfg.VaultPath != "" {
		t.Errorf("VaultPath = %q, want empty", cfg.VaultPath)
	}
}

func TestLoadGlobalConfig_Valid(t *testing.T) {
	ResetGlobalConfigCache()
	defer ResetGlobalConfigCache()

	tmpDir := t.TempDir()
	writeGlobal(t, tmpDir, `vault_path: ~/Obsidian/Research
grobid_url: http://grobid:8070
synthesis_backend: cli
pdf_reader: zathura
backup:
  bucket: papers
  endpoint: https://s3.example.org
  prefix: vault/
`)
	t.Setenv("XDG_CONFIG_HOME", tmpDir)

	cfg, err := LoadGlobalConfig()
	if err != nil {
		t.Fatalf("LoadGlobalConfig() error = %v", err)
	}

	home, _ := os.UserHomeDir()
	wantVault := filepath.Join(home, "Obsidian/Research")
	if cfg.VaultPath != wantVault {
		t.Errorf("VaultPath = %q, want %q", cfg.VaultPath, wantVault)
	}
	if cfg.GrobidURL != "http://grobid:8070" {
		t.Errorf("GrobidURL = %q", cfg.GrobidURL)
	}
	if cfg.SynthesisBackend != BackendCLI {
		t.Errorf("SynthesisBackend = %q, want cli", cfg.SynthesisBackend)
	}
	if cfg.Backup.Bucket != "papers" || cfg.Backup.Prefix != "vault/" {
		t.Errorf("Backup = %+v", cfg.Backup)
	}
}

func TestLoadGlobalConfig_InvalidYAML(t *testing.T) {
	ResetGlobalConfigCache()
	defer ResetGlobalConfigCache()

	tmpDir := t.TempDir()
	writeGlobal(t, tmpDir, "vault_path: [unclosed")
	t.Setenv("XDG_CONFIG_HOME", tmpDir)

	if _, err := LoadGlobalConfig(); err == nil {
		t.Error("LoadGlobalConfig() should return error for invalid YAML")
	}
}

func TestGlobalConfigCache(t *testing.T) {
	ResetGlobalConfigCache()
	defer ResetGlobalConfigCache()

	tmpDir := t.TempDir()
	path := writeGlobal(t, tmpDir, "synthesis_model: cached-model\n")
	t.Setenv("XDG_CONFIG_HOME", tmpDir)

	cfg1, _ := LoadGlobalConfig()
	if cfg1.SynthesisModel != "cached-model" {
		t.Errorf("First load: SynthesisModel = %q, want cached-model", cfg1.SynthesisModel)
	}

	os.WriteFile(path, []byte("synthesis_model: modified-model\n"), 0644)

	cfg2, _ := LoadGlobalConfig()
	if cfg2.SynthesisModel != "cached-model" {
		t.Errorf("Second load: SynthesisModel = %q, want cached-model (cached)", cfg2.SynthesisModel)
	}

	ResetGlobalConfigCache()

	cfg3, _ := LoadGlobalConfig()
	if cfg3.SynthesisModel != "modified-model" {
		t.Errorf("Third load: SynthesisModel = %q, want modified-model", cfg3.SynthesisModel)
	}
}

func TestGlobalConfigSetAndSave(t *testing.T) {
	ResetGlobalConfigCache()
	defer ResetGlobalConfigCache()

	tmpDir := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", tmpDir)

	g := &GlobalConfig{}
	if err := g.Set("GROBID_URL", "http://localhost:8070/"); err != nil {
		t.Fatalf("Set() error = %v", err)
	}
	if err := g.Set("backup-bucket", "papers"); err != nil {
		t.Fatalf("Set() error = %v", err)
	}
	if err := g.Set("synthesis-backend", "gpt"); err == nil {
		t.Error("Set(synthesis-backend, gpt) expected error")
	}
	if err := g.Set("pdf_reader", "acrobat"); err == nil {
		t.Error("Set(pdf_reader, acrobat) expected error")
	}
	if err := g.Set("nonsense", "x"); err == nil || !strings.Contains(err.Error(), "unknown configuration key") {
		t.Errorf("Set(nonsense) error = %v", err)
	}

	if err := g.Save(); err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	ResetGlobalConfigCache()
	loaded, err := LoadGlobalConfig()
	if err != nil {
		t.Fatalf("LoadGlobalConfig() error = %v", err)
	}
	if loaded.GrobidURL != "http://localhost:8070" {
		t.Errorf("GrobidURL = %q, want trailing slash trimmed", loaded.GrobidURL)
	}
	if loaded.Backup.Bucket != "papers" {
		t.Errorf("Backup.Bucket = %q, want papers", loaded.Backup.Bucket)
	}
}

func TestNormalizeKey(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{"vault-path", "vault-path"},
		{"vault_path", "vault-path"},
		{"VAULT_PATH", "vault-path"},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			if got := NormalizeKey(tt.input); got != tt.want {
				t.Errorf("NormalizeKey(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

func TestHelpfulConfigMessage(t *testing.T) {
	msg := HelpfulConfigMessage()
	if !strings.Contains(msg, "plib config") {
		t.Errorf("HelpfulConfigMessage() = %q, want usage hint", msg)
	}
}
