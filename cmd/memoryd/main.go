// Package main provides the entry point for the memoryd worker: the
// long-lived process that owns the Store, Vector Backend, Session Manager,
// and Subprocess Supervisor, and exposes them over HTTP.
package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/memory-service/memoryd/internal/agent"
	"github.com/memory-service/memoryd/internal/config"
	"github.com/memory-service/memoryd/internal/httpapi"
	"github.com/memory-service/memoryd/internal/logging"
	"github.com/memory-service/memoryd/internal/provider"
	"github.com/memory-service/memoryd/internal/sessionmgr"
	"github.com/memory-service/memoryd/internal/store"
	"github.com/memory-service/memoryd/internal/supervisor"
	"github.com/memory-service/memoryd/internal/vector"
	"github.com/memory-service/memoryd/pkg/types"
)

// workerSupervisorSlot is the sentinel session id the collection-service
// sidecar's PID is registered under: it is a worker-lifetime child, not
// scoped to any one session, but still wants the reaper's crash coverage.
const workerSupervisorSlot int64 = 0

var (
	port      = flag.Int("port", 0, "HTTP port to listen on (overrides settings.json)")
	logFile   = flag.Bool("log-file", true, "Write logs to a timestamped file under the base directory's logs/")
	logLevel  = flag.String("log-level", "INFO", "Log level (DEBUG|INFO|WARN|ERROR)")
	prettyLog = flag.Bool("print-logs", false, "Print pretty-formatted logs to stderr")
	version   = flag.Bool("version", false, "Print version and exit")
)

const (
	Version   = "0.1.0"
	BuildTime = "dev"
)

func main() {
	flag.Parse()

	if *version {
		fmt.Printf("memoryd %s (%s)\n", Version, BuildTime)
		os.Exit(0)
	}

	paths := config.Resolve()
	if err := paths.EnsureBase(); err != nil {
		fmt.Fprintf(os.Stderr, "create base directory: %v\n", err)
		os.Exit(1)
	}

	logging.Init(logging.Config{
		Level:     logging.ParseLevel(*logLevel),
		Pretty:    *prettyLog,
		LogToFile: *logFile,
		LogDir:    paths.LogsDir(),
	})
	logging.Info().Str("version", Version).Str("base", paths.Base).Msg("starting memoryd")

	settings, err := config.Load(paths)
	if err != nil {
		logging.Fatal().Err(err).Msg("load settings")
	}

	st, err := store.Open(paths.StorePath())
	if err != nil {
		logging.Fatal().Err(err).Msg("open store")
	}
	defer st.Close()

	if n, err := st.ResetStuckMessages(); err != nil {
		logging.Warn().Err(err).Msg("reset stuck pending messages")
	} else if n > 0 {
		logging.Info().Int64("count", n).Msg("resurrected stuck pending messages from a prior crash")
	}

	sup := supervisor.New()
	reaper := supervisor.NewReaper(sup, 60*time.Second)
	reaper.Start()
	defer reaper.Stop()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	vec, err := buildVectorBackend(ctx, st, settings, sup)
	if err != nil {
		logging.Warn().Err(err).Msg("vector backend unavailable at startup; falling back to disabled (observations still land in the store)")
		vec = vector.DisabledBackend{}
	}
	if err := vec.Initialize(ctx); err != nil {
		logging.Warn().Err(err).Msg("vector backend initialize failed; continuing with best-effort sync")
	}
	if err := vec.EnsureBackfilled(ctx); err != nil {
		logging.Warn().Err(err).Msg("vector backend backfill failed")
	}
	defer vec.Close()

	newAgent := func() *agent.Agent {
		primary, fallback, err := provider.BuildPrimaryAndFallback(ctx, settings)
		if err != nil {
			logging.Error().Err(err).Msg("build provider for new generator run")
			primary = provider.NewFailingProvider(settings.Provider, err)
		}
		return agent.New(st, vec, primary, fallback, settings.Truncation)
	}

	mgr := sessionmgr.New(st, vec, ctx, newAgent)
	mgr.StartStallSweep()
	defer mgr.Stop()

	httpPort := settings.HTTPPort
	if *port != 0 {
		httpPort = *port
	}
	srvCfg := httpapi.DefaultConfig()
	if httpPort != 0 {
		srvCfg.Port = httpPort
	}

	srv := httpapi.New(srvCfg, st, vec, mgr, sup, paths, settings)

	go func() {
		logging.Info().Int("port", srvCfg.Port).Msg("http server listening")
		if err := srv.Start(); err != nil && err != http.ErrServerClosed {
			logging.Fatal().Err(err).Msg("http server error")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logging.Info().Msg("shutting down memoryd")
	sup.KillAll()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logging.Error().Err(err).Msg("http server shutdown error")
	}
	logging.Info().Msg("memoryd stopped")
}

// buildVectorBackend selects and wires the Vector Backend named by
// settings.VectorBackend, per spec.md §4.B / §6.
func buildVectorBackend(ctx context.Context, st *store.Store, settings *types.Settings, sup *supervisor.Supervisor) (vector.Backend, error) {
	switch settings.VectorBackend {
	case "none", "":
		return vector.DisabledBackend{}, nil

	case "chroma":
		cmd := settings.CollectionService.Command
		if len(cmd) == 0 {
			return vector.DisabledBackend{}, nil
		}
		collection := settings.CollectionService.Collection
		if collection == "" {
			collection = "memoryd"
		}
		return vector.NewCollectionServiceBackend(ctx, cmd, settings.CollectionService.Env, collection, func(pid int) {
			sup.RegisterObservers(workerSupervisorSlot, pid)
		})

	case "sqlite-vec":
		fallthrough
	default:
		embedder, err := vector.NewOpenAIEmbedder(ctx, settings.Embedding)
		if err != nil {
			return nil, fmt.Errorf("build embedder: %w", err)
		}
		collection := settings.Embedding.QdrantCollection
		if collection == "" {
			collection = "memoryd"
		}
		return vector.NewEmbeddedBackend(st.DB(), embedder, settings.Embedding.QdrantURL, collection)
	}
}
