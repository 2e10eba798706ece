package main

import (
	"fmt"
	"os"

	"github.com/matsen/paperlib/internal/config"
	"github.com/matsen/paperlib/internal/storage"
	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(rebuildCmd)
}

var rebuildCmd = &cobra.Command{
	Use:   "rebuild",
	Short: "Rebuild the query index from the library files",
	Long: `Rebuild the SQLite index from _meta/library.jsonl and _meta/articles.jsonl.

Use this after syncing the vault from another machine or if the index becomes corrupted.`,
	Args: cobra.NoArgs,
	RunE: runRebuild,
}

// RebuildResult is the response for the rebuild command.
type RebuildResult struct {
	Status   string `json:"status"`
	Papers   int    `json:"papers"`
	Articles int    `json:"articles"`
}

func runRebuild(cmd *cobra.Command, args []string) error {
	a := mustLoadApp(false)
	defer a.logger.Sync()

	vault := a.cfg.VaultPath
	if err := os.MkdirAll(config.CachePath(vault), 0o755); err != nil {
		exitWithError(ExitError, "creating cache directory: %v", err)
	}

	db, err := storage.OpenDB(config.DBPath(vault))
	if err != nil {
		exitWithError(ExitError, "opening database: %v", err)
	}
	defer db.Close()

	res, err := rebuildIndex(db, vault)
	if err != nil {
		exitWithError(ExitDataError, "rebuilding database: %v", err)
	}

	if humanOutput {
		fmt.Printf("Rebuilt index with %d papers and %d articles\n", res.Papers, res.Articles)
	} else {
		outputJSON(res)
	}
	return nil
}
