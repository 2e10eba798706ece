package main

import (
	"fmt"

	"github.com/matsen/paperlib/internal/config"
	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(configCmd)
}

var configCmd = &cobra.Command{
	Use:   "config [key] [value]",
	Short: "Get or set configuration values",
	Long: `Get or set values in the global config file (~/.config/plib/config.yml).

Environment variables and .env override the file.

Usage:
  plib config                          # Show effective config
  plib config vault-path               # Get specific value
  plib config vault-path ~/Obsidian    # Set value
  plib config pdf-reader skim          # Set PDF reader

Keys:
  vault-path         Obsidian vault directory
  grobid-url         GROBID server (default http://localhost:8070)
  anthropic-api-key  Anthropic API key
  synthesis-model    Claude model for summaries
  synthesis-backend  api or cli
  pdf-reader         system, skim, preview, zathura, evince, okular
  backup-bucket, backup-endpoint, backup-region, backup-prefix`,
	Args: cobra.MaximumNArgs(2),
	RunE: runConfig,
}

// configValues returns the effective settings with secrets masked.
func configValues(cfg *config.Config) map[string]string {
	return map[string]string{
		"vault-path":        cfg.VaultPath,
		"grobid-url":        cfg.GrobidURL,
		"anthropic-api-key": config.MaskSecret(cfg.AnthropicAPIKey),
		"synthesis-model":   cfg.SynthesisModel,
		"synthesis-backend": cfg.SynthesisBackend,
		"pdf-reader":        cfg.PDFReader,
		"backup-bucket":     cfg.Backup.Bucket,
		"backup-endpoint":   cfg.Backup.Endpoint,
		"backup-region":     cfg.Backup.Region,
		"backup-prefix":     cfg.Backup.Prefix,
	}
}

func runConfig(cmd *cobra.Command, args []string) error {
	if len(args) < 2 {
		cfg, err := config.Load()
		if err != nil {
			exitWithError(ExitConfigError, "loading config: %v", err)
		}
		values := configValues(cfg)

		// No args: show all config
		if len(args) == 0 {
			if humanOutput {
				for _, k := range config.SettableKeys {
					fmt.Printf("%-18s %s\n", k+":", values[k])
				}
				fmt.Printf("\nConfig file: %s\n", config.GlobalConfigPath())
			} else {
				outputJSON(values)
			}
			return nil
		}

		key := config.NormalizeKey(args[0])
		v, ok := values[key]
		if !ok {
			exitWithError(ExitError, "unknown configuration key: %s", args[0])
		}
		if humanOutput {
			fmt.Println(v)
		} else {
			outputJSON(map[string]string{key: v})
		}
		return nil
	}

	global, err := config.LoadGlobalConfig()
	if err != nil {
		exitWithError(ExitConfigError, "loading config: %v", err)
	}
	if err := global.Set(args[0], args[1]); err != nil {
		exitWithError(ExitError, "%v", err)
	}
	if err := global.Save(); err != nil {
		exitWithError(ExitError, "saving config: %v", err)
	}

	key := config.NormalizeKey(args[0])
	value := args[1]
	if key == "anthropic-api-key" {
		value = config.MaskSecret(value)
	}
	if humanOutput {
		fmt.Printf("Updated %s to %s\n", key, value)
	} else {
		outputJSON(UpdateResponse{Status: "updated", Key: key, Value: value})
	}
	return nil
}
