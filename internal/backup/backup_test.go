package backup

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/matsen/paperlib/internal/config"
)

type fakeUploader struct {
	mu      sync.Mutex
	objects map[string]string
	types   map[string]string
	failOn  string
}

func newFakeUploader() *fakeUploader {
	return &fakeUploader{objects: map[string]string{}, types: map[string]string{}}
}

func (f *fakeUploader) PutObject(ctx context.Context, in *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	key := aws.ToString(in.Key)
	if f.failOn != "" && strings.HasSuffix(key, f.failOn) {
		return nil, errors.New("access denied")
	}
	data, err := io.ReadAll(in.Body)
	if err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.objects[key] = string(data)
	f.types[key] = aws.ToString(in.ContentType)
	return &s3.PutObjectOutput{}, nil
}

func (f *fakeUploader) keys() []string {
	var keys []string
	for k := range f.objects {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func writeFile(t *testing.T, root, rel, content string) {
	t.Helper()
	p := filepath.Join(root, rel)
	if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(p, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
}

func testVault(t *testing.T) string {
	t.Helper()
	vault := t.TempDir()
	writeFile(t, vault, "Papers/Smith (2020) - Deep.md", "# Deep")
	writeFile(t, vault, "Articles/2024-01-01 - Post.md", "# Post")
	writeFile(t, vault, "PDFs/arxiv_2001.00001.pdf", "%PDF-1.4")
	writeFile(t, vault, "_meta/library.jsonl", "{}\n")
	writeFile(t, vault, "_meta/processing_state.json", "{}")
	writeFile(t, vault, "_meta/cache/library.db", "sqlite")
	writeFile(t, vault, "_meta/notes.txt", "scratch")
	writeFile(t, vault, ".obsidian/workspace.json", "{}")
	writeFile(t, vault, "Papers/.DS_Store", "x")
	return vault
}

func TestMirror_Files(t *testing.T) {
	vault := testVault(t)
	m := NewMirror(vault, "bucket", "", newFakeUploader(), nil)

	files, err := m.Files()
	if err != nil {
		t.Fatalf("Files() error = %v", err)
	}
	for i := range files {
		files[i] = filepath.ToSlash(files[i])
	}
	sort.Strings(files)

	want := []string{
		"Articles/2024-01-01 - Post.md",
		"PDFs/arxiv_2001.00001.pdf",
		"Papers/Smith (2020) - Deep.md",
		"_meta/library.jsonl",
		"_meta/processing_state.json",
	}
	if strings.Join(files, "|") != strings.Join(want, "|") {
		t.Errorf("Files() = %v, want %v", files, want)
	}
}

func TestMirror_ObjectKey(t *testing.T) {
	tests := []struct {
		prefix string
		rel    string
		want   string
	}{
		{"", filepath.Join("Papers", "a.md"), "Papers/a.md"},
		{"vault", filepath.Join("Papers", "a.md"), "vault/Papers/a.md"},
		{"/backups/plib/", filepath.Join("_meta", "library.jsonl"), "backups/plib/_meta/library.jsonl"},
	}
	for _, tt := range tests {
		m := NewMirror("/v", "b", tt.prefix, nil, nil)
		if got := m.ObjectKey(tt.rel); got != tt.want {
			t.Errorf("ObjectKey(%q) with prefix %q = %q, want %q", tt.rel, tt.prefix, got, tt.want)
		}
	}
}

func TestMirror_Run(t *testing.T) {
	vault := testVault(t)
	up := newFakeUploader()
	m := NewMirror(vault, "bucket", "lib", up, nil)

	report, err := m.Run(context.Background(), Options{})
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if report.Uploaded != 5 || report.Skipped != 0 {
		t.Errorf("report = %+v, want 5 uploaded", report)
	}
	if got := up.objects["lib/Papers/Smith (2020) - Deep.md"]; got != "# Deep" {
		t.Errorf("note object = %q", got)
	}
	if got := up.types["lib/PDFs/arxiv_2001.00001.pdf"]; got != "application/pdf" {
		t.Errorf("PDF content type = %q", got)
	}
	for _, k := range up.keys() {
		if strings.Contains(k, "cache") {
			t.Errorf("cache file uploaded: %s", k)
		}
	}
	if _, err := os.Stat(filepath.Join(config.CachePath(vault), ManifestFile)); err != nil {
		t.Errorf("manifest not written: %v", err)
	}

	// Second run uploads nothing new.
	report, err = m.Run(context.Background(), Options{})
	if err != nil {
		t.Fatalf("second Run() error = %v", err)
	}
	if report.Uploaded != 0 || report.Skipped != 5 {
		t.Errorf("second report = %+v, want all skipped", report)
	}

	writeFile(t, vault, "Papers/New (2021) - Fresh.md", "# Fresh content")
	report, err = m.Run(context.Background(), Options{})
	if err != nil {
		t.Fatalf("third Run() error = %v", err)
	}
	if report.Uploaded != 1 {
		t.Errorf("third report = %+v, want 1 uploaded", report)
	}

	report, err = m.Run(context.Background(), Options{Force: true})
	if err != nil {
		t.Fatalf("forced Run() error = %v", err)
	}
	if report.Uploaded != 6 {
		t.Errorf("forced report = %+v, want 6 uploaded", report)
	}
}

func TestMirror_RunTouchedUnchanged(t *testing.T) {
	vault := testVault(t)
	up := newFakeUploader()
	m := NewMirror(vault, "bucket", "", up, nil)

	if _, err := m.Run(context.Background(), Options{}); err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	later := time.Now().Add(time.Hour)
	note := filepath.Join(vault, "Papers", "Smith (2020) - Deep.md")
	if err := os.Chtimes(note, later, later); err != nil {
		t.Fatal(err)
	}

	report, err := m.Run(context.Background(), Options{})
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if report.Uploaded != 0 || report.Skipped != 5 {
		t.Errorf("report = %+v, want touched file skipped", report)
	}
}

func TestMirror_RunDryRun(t *testing.T) {
	vault := testVault(t)
	up := newFakeUploader()
	m := NewMirror(vault, "bucket", "", up, nil)

	report, err := m.Run(context.Background(), Options{DryRun: true})
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if report.Uploaded != 5 || len(up.objects) != 0 {
		t.Errorf("dry run uploaded %d objects, report %+v", len(up.objects), report)
	}
	if _, err := os.Stat(filepath.Join(config.CachePath(vault), ManifestFile)); !os.IsNotExist(err) {
		t.Error("dry run should not write the manifest")
	}
}

func TestMirror_RunPartialFailure(t *testing.T) {
	vault := testVault(t)
	up := newFakeUploader()
	up.failOn = ".pdf"
	m := NewMirror(vault, "bucket", "", up, nil)

	report, err := m.Run(context.Background(), Options{})
	if err == nil {
		t.Fatal("Run() should report the failed upload")
	}
	if report.Uploaded != 4 || len(report.Failed) != 1 {
		t.Errorf("report = %+v, want 4 uploaded and 1 failed", report)
	}

	// The failed file is retried next time.
	up.failOn = ""
	report, err = m.Run(context.Background(), Options{})
	if err != nil {
		t.Fatalf("retry Run() error = %v", err)
	}
	if report.Uploaded != 1 {
		t.Errorf("retry report = %+v, want 1 uploaded", report)
	}
}

func TestMirror_RunCancelled(t *testing.T) {
	vault := testVault(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := NewMirror(vault, "bucket", "", newFakeUploader(), nil).Run(ctx, Options{})
	if !errors.Is(err, context.Canceled) {
		t.Errorf("Run() error = %v, want context.Canceled", err)
	}
}

func TestNewS3Client_NotConfigured(t *testing.T) {
	_, err := NewS3Client(context.Background(), config.BackupConfig{})
	if !errors.Is(err, ErrNotConfigured) {
		t.Errorf("NewS3Client() error = %v, want ErrNotConfigured", err)
	}
}

func TestNewS3Client_Endpoint(t *testing.T) {
	client, err := NewS3Client(context.Background(), config.BackupConfig{
		Bucket:    "b",
		Endpoint:  "http://localhost:9000",
		AccessKey: "key",
		SecretKey: "secret",
	})
	if err != nil {
		t.Fatalf("NewS3Client() error = %v", err)
	}
	if client == nil {
		t.Fatal("client is nil")
	}
}
