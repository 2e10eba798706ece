package main

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/matsen/paperlib/internal/config"
	"github.com/matsen/paperlib/internal/tracker"
	"github.com/spf13/cobra"
)

func init() {
	trackCmd.AddCommand(trackShowCmd)
	rootCmd.AddCommand(trackCmd)
}

var trackCmd = &cobra.Command{
	Use:   "track <kind>[:subsystem] <text> | track resolve[:subsystem] <question> <decision>",
	Short: "Record project decisions, progress and open questions",
	Long: `Keep running project notes in _meta/tracker.

Kinds: decided, built, question, file, context. A ":subsystem" suffix writes
to <subsystem>-state.json instead of project.json.

Examples:
  plib track decided "Use prefix-based state files"
  plib track question:glossary "How to handle domain-specific terms?"
  plib track resolve "SQLite or Postgres" "SQLite, rebuilt from JSONL"
  plib track show tracking`,
	Args: cobra.MinimumNArgs(2),
	RunE: runTrack,
}

var trackShowCmd = &cobra.Command{
	Use:   "show [subsystem]",
	Short: "Show tracked project state",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runTrackShow,
}

// TrackResult is the response for track updates.
type TrackResult struct {
	Status    string `json:"status"`
	Kind      string `json:"kind"`
	Subsystem string `json:"subsystem,omitempty"`
	Entry     string `json:"entry"`
}

func runTrack(cmd *cobra.Command, args []string) error {
	kind, subsystem, err := tracker.ParseKind(args[0])
	if err != nil {
		exitWithError(ExitError, "%v", err)
	}

	a := mustLoadApp(false)
	defer a.logger.Sync()
	dir := config.TrackerPath(a.cfg.VaultPath)

	state, err := tracker.Load(dir, subsystem)
	if err != nil {
		exitWithError(ExitDataError, "%v", err)
	}

	now := time.Now()
	var entry string
	if kind == tracker.KindResolve {
		if len(args) != 3 {
			exitWithError(ExitError, "usage: plib track resolve[:subsystem] <question> <decision>")
		}
		entry, err = state.Resolve(args[1], args[2], now)
	} else {
		entry, err = state.Add(kind, strings.Join(args[1:], " "), now)
	}

	var amb *tracker.AmbiguousError
	switch {
	case errors.As(err, &amb):
		if humanOutput {
			fmt.Println("Several questions match:")
			for i, m := range amb.Matches {
				fmt.Printf("  %d. %s\n", i+1, m)
			}
		}
		exitWithError(ExitDataError, "%v", err)
	case errors.Is(err, tracker.ErrNoMatch):
		if humanOutput && len(state.Questions) > 0 {
			fmt.Println("Open questions:")
			for _, q := range state.Questions {
				fmt.Printf("  • %s\n", q)
			}
		}
		exitWithError(ExitDataError, "%v", err)
	case err != nil:
		exitWithError(ExitError, "%v", err)
	}

	if err := state.Save(dir); err != nil {
		exitWithError(ExitError, "%v", err)
	}

	if humanOutput {
		label := ""
		if subsystem != "" {
			label = " [" + subsystem + "]"
		}
		fmt.Printf("✓ %s%s: %s\n", kind, label, entry)
	} else {
		outputJSON(TrackResult{Status: "recorded", Kind: string(kind), Subsystem: subsystem, Entry: entry})
	}
	return nil
}

func runTrackShow(cmd *cobra.Command, args []string) error {
	a := mustLoadApp(false)
	defer a.logger.Sync()
	dir := config.TrackerPath(a.cfg.VaultPath)

	var subsystems []string
	if len(args) == 1 {
		subsystems = []string{args[0]}
	} else {
		var err error
		if subsystems, err = tracker.Subsystems(dir); err != nil {
			exitWithError(ExitError, "listing state files: %v", err)
		}
	}

	states := make([]*tracker.State, 0, len(subsystems))
	for _, sub := range subsystems {
		s, err := tracker.Load(dir, sub)
		if err != nil {
			exitWithError(ExitDataError, "%v", err)
		}
		states = append(states, s)
	}

	if !humanOutput {
		outputJSON(states)
		return nil
	}
	if len(states) == 0 {
		fmt.Println("Nothing tracked yet")
		return nil
	}
	for _, s := range states {
		name := s.Subsystem
		if name == "" {
			name = "project"
		}
		fmt.Printf("== %s\n", name)
		printSection("Decided", s.Decided)
		printSection("Built", s.Built)
		printSection("Open questions", s.Questions)
		printSection("Resolved", s.Resolved)
		printSection("Important files", s.Files)
		printSection("Context", s.Context)
		fmt.Println()
	}
	return nil
}

func printSection(title string, entries []string) {
	if len(entries) == 0 {
		return
	}
	fmt.Printf("%s:\n", title)
	for _, e := range entries {
		fmt.Printf("  • %s\n", e)
	}
}
