// Command export snapshots the worker's stores into the replication
// workspace (or a standalone file), per spec.md §6's `export` CLI.
package main

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/memory-service/memoryd/internal/config"
	"github.com/memory-service/memoryd/internal/federation"
	"github.com/memory-service/memoryd/internal/logging"
	"github.com/memory-service/memoryd/internal/store"
)

var (
	format    string
	output    string
	project   string
	noVectors bool
	printLogs bool
)

var rootCmd = &cobra.Command{
	Use:   "export",
	Short: "Snapshot the memory store for cross-machine replication",
	Long: `Export copies the worker's relational and vector stores into the
replication workspace (or a standalone file named by --output), committing
the result with git so it can be shared via the configured remote.`,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		logCfg := logging.DefaultConfig()
		logCfg.Pretty = printLogs
		if !printLogs {
			logCfg.Level = logging.WarnLevel
		}
		logging.Init(logCfg)
	},
	RunE: runExport,
}

func init() {
	rootCmd.Flags().StringVar(&format, "format", "sqlite", "Export format: sqlite|full|json")
	rootCmd.Flags().StringVar(&output, "output", "", "Output path override (defaults to the replication workspace)")
	rootCmd.Flags().StringVar(&project, "project", "", "Restrict a json export to one project")
	rootCmd.Flags().BoolVar(&noVectors, "no-vectors", false, "Omit the vector database from the snapshot")
	rootCmd.PersistentFlags().BoolVar(&printLogs, "print-logs", false, "Print logs to stderr")
}

func runExport(cmd *cobra.Command, args []string) error {
	paths := config.Resolve()
	settings, err := config.Load(paths)
	if err != nil {
		return fmt.Errorf("load settings: %w", err)
	}

	switch format {
	case "sqlite", "full":
		exporter := federation.NewExporter(paths.ExportDir(), settings.Replication)
		if err := exporter.Snapshot(paths.VectorDBPath(), project, noVectors); err != nil {
			return fmt.Errorf("snapshot: %w", err)
		}
		if format == "sqlite" && output != "" && !noVectors {
			if err := copyFile(paths.VectorDBPath(), output); err != nil {
				return fmt.Errorf("copy vector store: %w", err)
			}
		}
		if format == "full" {
			fullDest := filepath.Join(paths.ExportDir(), "full-export.db")
			if output != "" {
				fullDest = output
			}
			if err := copyFile(paths.StorePath(), fullDest); err != nil {
				return fmt.Errorf("copy relational store: %w", err)
			}
		}
		fmt.Fprintf(os.Stdout, "exported %s to %s\n", format, paths.ExportDir())
		return nil

	case "json":
		st, err := store.Open(paths.StorePath())
		if err != nil {
			return fmt.Errorf("open store: %w", err)
		}
		defer st.Close()

		obs, err := st.SearchByText("", project, 1_000_000)
		if err != nil {
			return fmt.Errorf("read observations: %w", err)
		}
		data, err := json.MarshalIndent(obs, "", "  ")
		if err != nil {
			return err
		}
		if output == "" {
			_, err = os.Stdout.Write(append(data, '\n'))
			return err
		}
		return os.WriteFile(output, data, 0o644)

	default:
		return fmt.Errorf("unknown export format %q (want sqlite|full|json)", format)
	}
}

func copyFile(src, dst string) error {
	data, err := os.ReadFile(src)
	if err != nil {
		return err
	}
	if dir := filepath.Dir(dst); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	return os.WriteFile(dst, data, 0o644)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
