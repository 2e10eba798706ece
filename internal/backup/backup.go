// Package backup mirrors a vault to an S3-compatible bucket.
package backup

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/matsen/paperlib/internal/config"
	"go.uber.org/multierr"
	"go.uber.org/zap"
	"golang.org/x/crypto/blake2b"
)

// ManifestFile records what was uploaded; it lives in the cache directory,
// which is never mirrored.
const ManifestFile = "backup_manifest.json"

// ErrNotConfigured indicates no bucket is configured.
var ErrNotConfigured = errors.New("backup bucket not configured (set BACKUP_S3_BUCKET or backup.bucket)")

// Uploader stores one object. *s3.Client satisfies it.
type Uploader interface {
	PutObject(ctx context.Context, in *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// NewS3Client creates a client for the configured endpoint. An empty
// endpoint uses AWS itself.
func NewS3Client(ctx context.Context, cfg config.BackupConfig) (*s3.Client, error) {
	if !cfg.Configured() {
		return nil, ErrNotConfigured
	}

	region := cfg.Region
	if region == "" {
		region = "us-east-1"
	}

	opts := []func(*awsconfig.LoadOptions) error{
		awsconfig.WithRegion(region),
	}
	if cfg.AccessKey != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, "")))
	}
	if cfg.Endpoint != "" {
		resolver := aws.EndpointResolverWithOptionsFunc(
			func(service, r string, options ...interface{}) (aws.Endpoint, error) {
				return aws.Endpoint{
					URL:               cfg.Endpoint,
					SigningRegion:     region,
					HostnameImmutable: true,
				}, nil
			},
		)
		opts = append(opts, awsconfig.WithEndpointResolverWithOptions(resolver))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("loading S3 configuration: %w", err)
	}
	return s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		o.UsePathStyle = cfg.Endpoint != ""
	}), nil
}

// Report summarizes a mirror run.
type Report struct {
	Bucket   string   `json:"bucket"`
	Prefix   string   `json:"prefix,omitempty"`
	Uploaded int      `json:"uploaded"`
	Skipped  int      `json:"skipped"`
	Bytes    int64    `json:"bytes"`
	Failed   []string `json:"failed,omitempty"`
	DryRun   bool     `json:"dry_run,omitempty"`
}

// Options control a mirror run.
type Options struct {
	// Force uploads every file, ignoring the manifest.
	Force bool
	// DryRun lists what would be uploaded without uploading.
	DryRun bool
}

type fileState struct {
	Size    int64     `json:"size"`
	ModTime time.Time `json:"mod_time"`
	Hash    string    `json:"blake2b"`
}

// Mirror uploads vault files to a bucket.
type Mirror struct {
	vault  string
	bucket string
	prefix string
	up     Uploader
	logger *zap.Logger
}

// NewMirror creates a mirror of vault into bucket under prefix.
func NewMirror(vault, bucket, prefix string, up Uploader, logger *zap.Logger) *Mirror {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Mirror{
		vault:  vault,
		bucket: bucket,
		prefix: strings.Trim(prefix, "/"),
		up:     up,
		logger: logger.With(zap.String("bucket", bucket)),
	}
}

// ObjectKey maps a vault-relative path to its object key.
func (m *Mirror) ObjectKey(rel string) string {
	key := filepath.ToSlash(rel)
	if m.prefix == "" {
		return key
	}
	return path.Join(m.prefix, key)
}

// Run uploads every mirrored file that changed since the last run. Upload
// failures do not stop the run; they are listed in the report and
// returned combined.
func (m *Mirror) Run(ctx context.Context, opts Options) (Report, error) {
	report := Report{Bucket: m.bucket, Prefix: m.prefix, DryRun: opts.DryRun}

	manifest := map[string]fileState{}
	if !opts.Force {
		manifest = m.loadManifest()
	}

	files, err := m.Files()
	if err != nil {
		return report, err
	}

	var errs error
	for _, rel := range files {
		if err := ctx.Err(); err != nil {
			return report, multierr.Append(errs, err)
		}

		abs := filepath.Join(m.vault, rel)
		info, err := os.Stat(abs)
		if err != nil {
			errs = multierr.Append(errs, err)
			report.Failed = append(report.Failed, rel)
			continue
		}

		state := fileState{Size: info.Size(), ModTime: info.ModTime().UTC()}
		prev, seen := manifest[rel]
		if seen && prev.Size == state.Size && prev.ModTime.Equal(state.ModTime) {
			report.Skipped++
			continue
		}

		if state.Hash, err = hashFile(abs); err != nil {
			errs = multierr.Append(errs, err)
			report.Failed = append(report.Failed, rel)
			continue
		}
		// Touched but unchanged, as after a sync tool rewrites the file.
		if seen && prev.Hash == state.Hash {
			manifest[rel] = state
			report.Skipped++
			continue
		}

		if opts.DryRun {
			report.Uploaded++
			report.Bytes += state.Size
			continue
		}

		if err := m.upload(ctx, rel, abs); err != nil {
			m.logger.Warn("upload failed", zap.String("file", rel), zap.Error(err))
			errs = multierr.Append(errs, err)
			report.Failed = append(report.Failed, rel)
			continue
		}
		m.logger.Debug("uploaded", zap.String("file", rel), zap.Int64("bytes", state.Size))
		manifest[rel] = state
		report.Uploaded++
		report.Bytes += state.Size
	}

	if !opts.DryRun {
		if err := m.saveManifest(manifest); err != nil {
			errs = multierr.Append(errs, err)
		}
	}

	m.logger.Info("backup finished",
		zap.Int("uploaded", report.Uploaded),
		zap.Int("skipped", report.Skipped),
		zap.Int("failed", len(report.Failed)))
	return report, errs
}

func (m *Mirror) upload(ctx context.Context, rel, abs string) error {
	f, err := os.Open(abs)
	if err != nil {
		return err
	}
	defer f.Close()

	key := m.ObjectKey(rel)
	_, err = m.up.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(m.bucket),
		Key:         aws.String(key),
		Body:        f,
		ContentType: aws.String(contentType(rel)),
	})
	if err != nil {
		return fmt.Errorf("uploading %s to s3://%s/%s: %w", rel, m.bucket, key, err)
	}
	return nil
}

// Files lists the vault-relative paths that are mirrored: notes, PDFs and
// the JSON files in _meta. The cache directory and hidden files are skipped.
func (m *Mirror) Files() ([]string, error) {
	cache := config.CachePath(m.vault)
	var files []string

	err := filepath.WalkDir(m.vault, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		name := d.Name()
		if d.IsDir() {
			if p == cache || (p != m.vault && strings.HasPrefix(name, ".")) {
				return filepath.SkipDir
			}
			return nil
		}
		if strings.HasPrefix(name, ".") || !d.Type().IsRegular() {
			return nil
		}

		rel, err := filepath.Rel(m.vault, p)
		if err != nil {
			return err
		}
		if mirrored(rel) {
			files = append(files, rel)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walking %s: %w", m.vault, err)
	}
	return files, nil
}

// hashFile returns the hex BLAKE2b-256 digest of the named file.
func hashFile(name string) (string, error) {
	f, err := os.Open(name)
	if err != nil {
		return "", err
	}
	defer f.Close()

	h, err := blake2b.New256(nil)
	if err != nil {
		return "", err
	}
	if _, err := io.Copy(h, f); err != nil {
		return "", fmt.Errorf("hashing %s: %w", name, err)
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

func mirrored(rel string) bool {
	ext := strings.ToLower(filepath.Ext(rel))
	top := strings.SplitN(filepath.ToSlash(rel), "/", 2)[0]
	if top == config.MetaDir {
		return ext == ".json" || ext == ".jsonl"
	}
	return ext == ".md" || ext == ".pdf"
}

func contentType(rel string) string {
	switch strings.ToLower(filepath.Ext(rel)) {
	case ".md":
		return "text/markdown; charset=utf-8"
	case ".pdf":
		return "application/pdf"
	case ".json":
		return "application/json"
	case ".jsonl":
		return "application/x-ndjson"
	default:
		return "application/octet-stream"
	}
}

func (m *Mirror) manifestPath() string {
	return filepath.Join(config.CachePath(m.vault), ManifestFile)
}

func (m *Mirror) loadManifest() map[string]fileState {
	manifest := map[string]fileState{}
	data, err := os.ReadFile(m.manifestPath())
	if err != nil {
		return manifest
	}
	if err := json.Unmarshal(data, &manifest); err != nil {
		m.logger.Warn("ignoring unreadable backup manifest", zap.Error(err))
		return map[string]fileState{}
	}
	return manifest
}

func (m *Mirror) saveManifest(manifest map[string]fileState) error {
	data, err := json.MarshalIndent(manifest, "", "  ")
	if err != nil {
		return err
	}
	p := m.manifestPath()
	if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
		return err
	}
	tmp := p + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, p)
}
