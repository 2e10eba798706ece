package main

import (
	"errors"
	"fmt"

	"github.com/matsen/paperlib/internal/backup"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var (
	backupForce  bool
	backupDryRun bool
)

func init() {
	backupCmd.Flags().BoolVar(&backupForce, "force", false, "Upload every file, not only changed ones")
	backupCmd.Flags().BoolVar(&backupDryRun, "dry-run", false, "List what would be uploaded")
	rootCmd.AddCommand(backupCmd)
}

var backupCmd = &cobra.Command{
	Use:   "backup",
	Short: "Mirror the vault to an S3-compatible bucket",
	Long: `Upload notes, PDFs and library files to the configured bucket.

Only files changed since the last backup are uploaded. The index cache is
never uploaded; it is rebuilt from the library files.

Configure with BACKUP_S3_BUCKET, BACKUP_S3_ENDPOINT, BACKUP_S3_REGION,
BACKUP_S3_ACCESS_KEY, BACKUP_S3_SECRET_KEY and BACKUP_S3_PREFIX, or:
  plib config backup-bucket my-vault
  plib config backup-endpoint https://s3.example.com`,
	Args: cobra.NoArgs,
	RunE: runBackup,
}

func runBackup(cmd *cobra.Command, args []string) error {
	a := mustLoadApp(false)
	defer a.logger.Sync()

	ctx, cancel := signalContext()
	defer cancel()

	bc := a.cfg.Backup
	client, err := backup.NewS3Client(ctx, bc)
	if err != nil {
		if errors.Is(err, backup.ErrNotConfigured) {
			exitWithError(ExitConfigError, "%v", err)
		}
		exitWithError(ExitError, "%v", err)
	}

	m := backup.NewMirror(a.cfg.VaultPath, bc.Bucket, bc.Prefix, client, a.logger)
	report, err := m.Run(ctx, backup.Options{Force: backupForce, DryRun: backupDryRun})

	if humanOutput {
		verb := "Uploaded"
		if report.DryRun {
			verb = "Would upload"
		}
		fmt.Printf("%s %d files (%d bytes) to s3://%s/%s, %d unchanged\n",
			verb, report.Uploaded, report.Bytes, report.Bucket, report.Prefix, report.Skipped)
		for _, f := range report.Failed {
			fmt.Printf("  failed: %s\n", f)
		}
	} else {
		outputJSON(report)
	}

	if err != nil {
		a.logger.Error("backup incomplete", zap.Error(err))
		if report.Uploaded > 0 {
			return exitSilently(ExitPartial)
		}
		return exitSilently(ExitUnavailable)
	}
	return nil
}
