package main

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/matsen/paperlib/internal/citation"
	"github.com/matsen/paperlib/internal/ledger"
	"github.com/matsen/paperlib/internal/storage"
	"github.com/spf13/cobra"
)

var statusCheck bool

func init() {
	statusCmd.Flags().BoolVar(&statusCheck, "check", false, "Also check that GROBID is reachable")
	rootCmd.AddCommand(statusCmd)
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show library and processing statistics",
	Args:  cobra.NoArgs,
	RunE:  runStatus,
}

// StatusResult is the response for the status command.
type StatusResult struct {
	Vault       string                `json:"vault"`
	Papers      int                   `json:"papers"`
	Articles    int                   `json:"articles"`
	Processed   ledger.Stats          `json:"processed"`
	Failed      map[string]string     `json:"failed,omitempty"`
	Citations   storage.CitationStats `json:"citations"`
	LastUpdated *time.Time            `json:"last_updated,omitempty"`
	GROBID      string                `json:"grobid,omitempty"`
}

func runStatus(cmd *cobra.Command, args []string) error {
	a := mustLoadApp(false)
	defer a.logger.Sync()

	db := a.mustOpenIndex()
	defer db.Close()
	l := a.mustLoadLedger()

	res := StatusResult{
		Vault:     a.cfg.VaultPath,
		Processed: l.Stats(),
		Failed:    l.Failed(),
	}

	var err error
	if res.Papers, err = db.Count(); err != nil {
		exitWithError(ExitError, "counting papers: %v", err)
	}
	if res.Articles, err = db.CountArticles(); err != nil {
		exitWithError(ExitError, "counting articles: %v", err)
	}
	if res.Citations, err = db.CitationStats(); err != nil {
		exitWithError(ExitError, "citation statistics: %v", err)
	}
	if t := l.LastUpdated(); !t.IsZero() {
		res.LastUpdated = &t
	}

	if statusCheck {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		res.GROBID = "ok"
		if err := a.newGROBID().IsAlive(ctx); err != nil {
			res.GROBID = err.Error()
		}
	}

	if !humanOutput {
		outputJSON(res)
		return nil
	}

	fmt.Printf("Vault: %s\n\n", res.Vault)
	fmt.Printf("Library:   %d papers, %d articles\n", res.Papers, res.Articles)
	fmt.Printf("Processed: %d total (%d arXiv, %d DOI, %d web, %d local)\n",
		res.Processed.Total, res.Processed.ArXiv, res.Processed.DOI, res.Processed.Web, res.Processed.Local)
	fmt.Printf("Citations: %d retained from %d papers, %d with DOI, mean score %.1f\n",
		res.Citations.Total, res.Citations.CitingKeys, res.Citations.WithDOI, res.Citations.MeanScore)
	for _, b := range []citation.Band{citation.BandLikely, citation.BandSuspicious, citation.BandGarbage} {
		if n := res.Citations.ByBand[b]; n > 0 {
			fmt.Printf("           %-10s %d\n", b, n)
		}
	}
	if res.LastUpdated != nil {
		fmt.Printf("Last run:  %s\n", res.LastUpdated.Local().Format("2006-01-02 15:04"))
	}
	if res.GROBID != "" {
		fmt.Printf("GROBID:    %s\n", res.GROBID)
	}

	if len(res.Failed) > 0 {
		fmt.Printf("\nFailed (%d):\n", len(res.Failed))
		ids := make([]string, 0, len(res.Failed))
		for id := range res.Failed {
			ids = append(ids, id)
		}
		sort.Strings(ids)
		for _, id := range ids {
			fmt.Printf("  %s\n    %s\n", id, truncateString(res.Failed[id], 100))
		}
	}
	return nil
}
