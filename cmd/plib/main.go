// Package main provides the plib CLI entry point.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/matsen/paperlib/internal/arxiv"
	"github.com/matsen/paperlib/internal/config"
	"github.com/matsen/paperlib/internal/grobid"
	"github.com/matsen/paperlib/internal/ledger"
	"github.com/matsen/paperlib/internal/logging"
	"github.com/matsen/paperlib/internal/pipeline"
	"github.com/matsen/paperlib/internal/storage"
	"github.com/matsen/paperlib/internal/synthesis"
	"github.com/matsen/paperlib/internal/web"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// Version is set at build time via ldflags
var Version = "dev"

var (
	// humanOutput controls whether to use human-readable output
	humanOutput bool
	logLevel    string
	vaultFlag   string
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		var ee exitError
		if errors.As(err, &ee) {
			os.Exit(ee.code)
		}
		// Cobra errors (like missing arguments) are silenced, so print them here.
		fmt.Fprintf(os.Stderr, "Error: %s\n", err)
		os.Exit(ExitError)
	}
}

var rootCmd = &cobra.Command{
	Use:   "plib",
	Short: "Paper library: turn papers and articles into research notes",
	Long: `plib processes academic papers and web articles into an Obsidian vault.

Each identifier (arXiv ID or URL, DOI, local PDF, web URL) is fetched,
run through GROBID for metadata and citations, summarized by Claude, and
written as a markdown note. Bibliography entries that GROBID got wrong
(pseudocode, equations, figure captions, author bios) are scored and dropped.

The library is stored in _meta/library.jsonl with an ephemeral SQLite index.
All commands output JSON by default for agent integration.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().BoolVar(&humanOutput, "human", false, "Use human-readable output instead of JSON")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Log level (debug, info, warn, error); overrides LOG_LEVEL")
	rootCmd.PersistentFlags().StringVar(&vaultFlag, "vault", "", "Vault directory; overrides VAULT_PATH")
	rootCmd.Version = Version
}

// app bundles what most commands need.
type app struct {
	cfg    *config.Config
	logger *zap.Logger
}

// mustLoadApp loads configuration and builds the logger, exits on error.
// With validate set, the synthesis settings are checked too.
func mustLoadApp(validate bool) *app {
	cfg, err := config.Load()
	if err != nil {
		exitWithError(ExitConfigError, "loading config: %v", err)
	}

	if vaultFlag != "" {
		abs, err := filepath.Abs(config.ExpandPath(vaultFlag))
		if err != nil {
			exitWithError(ExitConfigError, "resolving vault path: %v", err)
		}
		cfg.VaultPath = abs
	}

	level := cfg.LogLevel
	if logLevel != "" {
		level = logLevel
	}
	logger, err := logging.New(level, humanOutput)
	if err != nil {
		exitWithError(ExitConfigError, "configuring logging: %v", err)
	}

	if validate {
		err = cfg.Validate()
	} else {
		err = config.EnsureVault(cfg.VaultPath)
	}
	if err != nil {
		fmt.Fprintln(os.Stderr, config.HelpfulConfigMessage())
		exitWithError(ExitConfigError, "%v", err)
	}

	return &app{cfg: cfg, logger: logger.With(zap.String("vault", cfg.VaultPath))}
}

// signalContext is cancelled on interrupt so batches stop between items.
func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}

// mustOpenIndex opens the SQLite index, rebuilding it from the JSONL files
// when it is empty. The caller is responsible for calling Close().
func (a *app) mustOpenIndex() *storage.DB {
	vault := a.cfg.VaultPath
	if err := os.MkdirAll(config.CachePath(vault), 0o755); err != nil {
		exitWithError(ExitError, "creating cache directory: %v", err)
	}

	db, err := storage.OpenDB(config.DBPath(vault))
	if err != nil {
		exitWithError(ExitError, "opening database: %v", err)
	}

	n, err := db.Count()
	if err != nil {
		db.Close()
		exitWithError(ExitError, "reading database: %v", err)
	}
	if n == 0 {
		if _, err := rebuildIndex(db, vault); err != nil {
			db.Close()
			exitWithError(ExitDataError, "rebuilding database: %v", err)
		}
	}
	return db
}

// rebuildIndex reloads papers and articles from their JSONL files.
func rebuildIndex(db *storage.DB, vault string) (RebuildResult, error) {
	papers, err := db.RebuildFromJSONL(config.LibraryPath(vault))
	if err != nil {
		return RebuildResult{}, err
	}
	articles, err := db.RebuildArticlesFromJSONL(config.ArticlesIndexPath(vault))
	if err != nil {
		return RebuildResult{}, err
	}
	return RebuildResult{Status: "rebuilt", Papers: papers, Articles: articles}, nil
}

// mustLoadLedger loads the processing state. A corrupt file is logged and
// replaced by an empty ledger.
func (a *app) mustLoadLedger() *ledger.Ledger {
	l, err := ledger.Load(config.StatePath(a.cfg.VaultPath))
	if err != nil {
		if !errors.Is(err, ledger.ErrCorrupt) {
			exitWithError(ExitDataError, "loading processing state: %v", err)
		}
		a.logger.Warn("processing state is corrupt, starting fresh", zap.Error(err))
	}
	return l
}

// newGROBID creates the GROBID client for the configured server.
func (a *app) newGROBID() *grobid.Client {
	return grobid.NewClient(grobid.WithBaseURL(a.cfg.GrobidURL))
}

// newCompleter creates the configured synthesis backend.
func (a *app) newCompleter() synthesis.Completer {
	if a.cfg.SynthesisBackend == config.BackendCLI {
		return synthesis.NewCLIClient(a.cfg.SynthesisModel)
	}
	return synthesis.NewAPIClient(a.cfg.AnthropicAPIKey, synthesis.WithModel(a.cfg.SynthesisModel))
}

// newProcessor wires the pipeline against the vault and index.
func (a *app) newProcessor(ctx context.Context, db *storage.DB, l *ledger.Ledger) *pipeline.Processor {
	vault := a.cfg.VaultPath
	gc := a.newGROBID()
	if err := gc.IsAlive(ctx); err != nil {
		a.logger.Warn("GROBID is not reachable; PDFs will fail until it is started",
			zap.String("url", a.cfg.GrobidURL), zap.Error(err))
	}

	components := pipeline.Components{
		GROBID:      gc,
		ArXiv:       arxiv.NewClient(),
		Web:         web.NewFetcher(config.PDFsPath(vault)),
		Synthesizer: synthesis.NewGenerator(a.newCompleter()),
		Index:       db,
	}
	return pipeline.NewProcessor(vault, l, components, pipeline.WithLogger(a.logger))
}
