// Command git-sync drives the replication workspace's git plumbing
// directly: status, init, push, and pull, per spec.md §6's `git-sync` CLI.
package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/memory-service/memoryd/internal/config"
	"github.com/memory-service/memoryd/internal/federation"
	"github.com/memory-service/memoryd/internal/logging"
	"github.com/memory-service/memoryd/pkg/types"
)

var (
	remoteURL string
	fullPush  bool
	printLogs bool
)

var rootCmd = &cobra.Command{
	Use:   "git-sync",
	Short: "Inspect and drive the replication workspace's git state",
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		logCfg := logging.DefaultConfig()
		logCfg.Pretty = printLogs
		if !printLogs {
			logCfg.Level = logging.WarnLevel
		}
		logging.Init(logCfg)
	},
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Print the replication workspace's git status as JSON",
	RunE: func(cmd *cobra.Command, args []string) error {
		exporter := openExporter()
		data, err := json.MarshalIndent(exporter.Status(), "", "  ")
		if err != nil {
			return err
		}
		fmt.Println(string(data))
		return nil
	},
}

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize the replication workspace as a git repository",
	RunE: func(cmd *cobra.Command, args []string) error {
		return openExporter().EnsureInitialized(remoteURL)
	},
}

var pushCmd = &cobra.Command{
	Use:   "push",
	Short: "Push the replication workspace to its configured remote",
	RunE: func(cmd *cobra.Command, args []string) error {
		exporter := openExporter()
		if err := exporter.EnsureInitialized(remoteURL); err != nil {
			return fmt.Errorf("auto-init before push: %w", err)
		}
		return exporter.Push(fullPush)
	},
}

var pullCmd = &cobra.Command{
	Use:   "pull",
	Short: "Fast-forward the replication workspace from its remote",
	RunE: func(cmd *cobra.Command, args []string) error {
		return openExporter().Pull()
	},
}

func init() {
	initCmd.Flags().StringVar(&remoteURL, "remote", "", "Remote URL to configure")
	pushCmd.Flags().StringVar(&remoteURL, "remote", "", "Remote URL to configure if not already set")
	pushCmd.Flags().BoolVar(&fullPush, "full", false, "Push all branches instead of just HEAD")
	rootCmd.PersistentFlags().BoolVar(&printLogs, "print-logs", false, "Print logs to stderr")

	rootCmd.AddCommand(statusCmd, initCmd, pushCmd, pullCmd)
}

func openExporter() *federation.Exporter {
	paths := config.Resolve()
	settings, err := config.Load(paths)
	if err != nil {
		settings = types.DefaultSettings()
	}
	return federation.NewExporter(paths.ExportDir(), settings.Replication)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
