// Command migrate imports externally-shaped observation records into the
// relational store through the schema adapter, per spec.md §6's `migrate`
// CLI and §4.F's migration pipeline.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/memory-service/memoryd/internal/config"
	"github.com/memory-service/memoryd/internal/federation"
	"github.com/memory-service/memoryd/internal/logging"
	"github.com/memory-service/memoryd/internal/store"
)

var (
	source          string
	project         string
	memorySessionID string
	batchSize       int
	dryRun          bool
	continueOnError bool
	printLogs       bool

	fieldID        string
	fieldTitle     string
	fieldSubtitle  string
	fieldNarrative string
	fieldFacts     string
	fieldType      string
	fieldProject   string
	fieldTimestamp string
	fieldEmbedding string

	timestampFormat string
	embeddingFormat string
	factsFormat     string
)

var rootCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Import externally-shaped observation records into the memory store",
	Long: `Migrate fetches a JSON array of externally-shaped records from --source,
maps each through a schema adapter built from the --field-* flags, and
imports the result into the relational store, deduplicating on
(memory_session_id, title, created_at_epoch) exactly as the live capture
pipeline does.`,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		logCfg := logging.DefaultConfig()
		logCfg.Pretty = printLogs
		if !printLogs {
			logCfg.Level = logging.WarnLevel
		}
		logging.Init(logCfg)
	},
	RunE: runMigrate,
}

func init() {
	rootCmd.Flags().StringVar(&source, "source", "", "URL serving a JSON array of external records (required)")
	rootCmd.Flags().StringVar(&project, "project", "", "Project name to attach imported observations to (required)")
	rootCmd.Flags().StringVar(&memorySessionID, "memory-session-id", "", "memory_session_id to attach imported observations to (defaults to a synthetic migration session)")
	rootCmd.Flags().IntVar(&batchSize, "batch-size", 100, "Accepted but not applied: all records are migrated in a single batch")
	rootCmd.Flags().BoolVar(&dryRun, "dry-run", false, "Render the mapped diff for each record without writing")
	rootCmd.Flags().BoolVar(&continueOnError, "continue-on-error", true, "Keep migrating past a per-record error")
	rootCmd.PersistentFlags().BoolVar(&printLogs, "print-logs", false, "Print logs to stderr")

	rootCmd.Flags().StringVar(&fieldID, "field-id", "id", "Dot-path to the external record's id")
	rootCmd.Flags().StringVar(&fieldTitle, "field-title", "title", "Dot-path to the external record's title")
	rootCmd.Flags().StringVar(&fieldSubtitle, "field-subtitle", "subtitle", "Dot-path to the external record's subtitle")
	rootCmd.Flags().StringVar(&fieldNarrative, "field-narrative", "narrative", "Dot-path to the external record's narrative")
	rootCmd.Flags().StringVar(&fieldFacts, "field-facts", "facts", "Dot-path to the external record's facts")
	rootCmd.Flags().StringVar(&fieldType, "field-type", "type", "Dot-path to the external record's type")
	rootCmd.Flags().StringVar(&fieldProject, "field-project", "project", "Dot-path to the external record's project")
	rootCmd.Flags().StringVar(&fieldTimestamp, "field-timestamp", "timestamp", "Dot-path to the external record's timestamp")
	rootCmd.Flags().StringVar(&fieldEmbedding, "field-embedding", "embedding", "Dot-path to the external record's embedding")

	rootCmd.Flags().StringVar(&timestampFormat, "timestamp-format", "epoch_ms", "Timestamp encoding: epoch_ms|epoch_s|iso8601")
	rootCmd.Flags().StringVar(&embeddingFormat, "embedding-format", "array", "Embedding encoding: array|base64|json_array|binary")
	rootCmd.Flags().StringVar(&factsFormat, "facts-format", "array", "Facts encoding: json|csv|array")
}

func runMigrate(cmd *cobra.Command, args []string) error {
	if source == "" {
		return fmt.Errorf("--source is required")
	}
	if project == "" {
		return fmt.Errorf("--project is required")
	}

	records, err := fetchRecords(cmd.Context(), source)
	if err != nil {
		return fmt.Errorf("fetch source: %w", err)
	}

	paths := config.Resolve()
	st, err := store.Open(paths.StorePath())
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer st.Close()

	sessID := memorySessionID
	if sessID == "" {
		sessID = fmt.Sprintf("migrate-%s-%d", project, time.Now().UnixMilli())
	}
	sessionRow, err := st.CreateSession(sessID, project, "migration import")
	if err != nil {
		return fmt.Errorf("create migration session: %w", err)
	}
	if err := st.UpdateMemorySessionID(sessionRow.ID, sessID); err != nil {
		logging.Debug().Err(err).Msg("memory_session_id already set for migration session")
	}

	adapter := federation.NewAdapter(federation.AdapterConfig{
		ID:  "cli-migration",
		URL: source,
		Fields: federation.FieldMap{
			ID:        fieldID,
			Title:     fieldTitle,
			Subtitle:  fieldSubtitle,
			Narrative: fieldNarrative,
			Facts:     fieldFacts,
			Type:      fieldType,
			Project:   fieldProject,
			Timestamp: fieldTimestamp,
			Embedding: fieldEmbedding,
		},
		Transforms: federation.Transforms{
			Timestamp: federation.TimestampFormat(timestampFormat),
			Embedding: federation.EmbeddingFormat(embeddingFormat),
			Facts:     federation.FactsFormat(factsFormat),
		},
	})

	migrator := federation.NewMigrator(st, adapter)

	result, err := migrator.MigrateBatch(cmd.Context(), records, federation.MigrateOptions{
		SessionID:       sessionRow.ID,
		MemorySessionID: sessID,
		Project:         project,
		ContinueOnError: continueOnError,
		DryRun:          dryRun,
	})
	if err != nil {
		return fmt.Errorf("migrate batch: %w", err)
	}

	out, _ := json.MarshalIndent(result, "", "  ")
	fmt.Println(string(out))

	if result.Errors > 0 && !continueOnError {
		return fmt.Errorf("migration completed with %d errors", result.Errors)
	}
	return nil
}

// fetchRecords supports http(s):// URLs and bare filesystem paths, both
// decoded as a JSON array of external record objects.
func fetchRecords(ctx context.Context, source string) ([]map[string]any, error) {
	var data []byte
	var err error

	if isHTTPURL(source) {
		req, reqErr := http.NewRequestWithContext(ctx, http.MethodGet, source, nil)
		if reqErr != nil {
			return nil, reqErr
		}
		resp, doErr := http.DefaultClient.Do(req)
		if doErr != nil {
			return nil, doErr
		}
		defer resp.Body.Close()
		if resp.StatusCode >= 300 {
			return nil, fmt.Errorf("fetch %s: status %d", source, resp.StatusCode)
		}
		data, err = io.ReadAll(resp.Body)
	} else {
		data, err = os.ReadFile(source)
	}
	if err != nil {
		return nil, err
	}

	var records []map[string]any
	if err := json.Unmarshal(data, &records); err != nil {
		return nil, fmt.Errorf("decode records: %w", err)
	}
	return records, nil
}

func isHTTPURL(s string) bool {
	return len(s) > 7 && (s[:7] == "http://" || (len(s) > 8 && s[:8] == "https://"))
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
