package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/collectors"
	"golang.org/x/sync/errgroup"

	"github.com/okian/voiceprint/internal/adapters/http/api"
	"github.com/okian/voiceprint/internal/adapters/http/swagger"
	"github.com/okian/voiceprint/internal/adapters/repository"
	"github.com/okian/voiceprint/internal/config"
	"github.com/okian/voiceprint/internal/domain/model"
	"github.com/okian/voiceprint/pkg/logger"
	"github.com/okian/voiceprint/pkg/metrics"
)

// HTTP server timeout constants.
const (
	readTimeout       = 30 * time.Second
	writeTimeout      = 30 * time.Second
	idleTimeout       = 60 * time.Second
	readHeaderTimeout = 5 * time.Second
	shutdownTimeout   = 15 * time.Second
)

// demoAgentID owns the seeded chat history.
const demoAgentID = "demo-agent"

// stubLatencyBuckets fit an in-memory backend answering in well under a second.
var stubLatencyBuckets = []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 25, 50, 100, 250}

func main() {
	if err := logger.Init(logger.WithWriter(os.Stderr)); err != nil {
		os.Stderr.WriteString("failed to initialize logging: " + err.Error() + "\n")
		os.Exit(1)
	}
	defer func() { _ = logger.Sync() }()

	// Root context with cancel on SIGINT/SIGTERM.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx); err != nil {
		logger.Get().Error(ctx, "stub server failed", logger.Error(err))
		os.Exit(1)
	}
}

func run(ctx context.Context) error {
	cfg, err := config.Load(ctx)
	if err != nil {
		return err
	}
	log := logger.Get()
	if cfg.LogFormat == "json" {
		if err := logger.Init(logger.WithWriter(os.Stderr), logger.WithJSON(true)); err != nil {
			return err
		}
		log = logger.Get()
	}
	if err := logger.SetLevelString(cfg.LogLevel); err != nil {
		log.Warn(ctx, "invalid log_level; falling back to info", logger.String("log_level", cfg.LogLevel), logger.Error(err))
		_ = logger.SetLevelString("info")
	}

	initMetrics(cfg)
	registry := metrics.GetRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	srv := &http.Server{
		Addr:              cfg.StubAddr,
		Handler:           newHandler(ctx, cfg, log.Named("stub")),
		ReadTimeout:       readTimeout,
		WriteTimeout:      writeTimeout,
		IdleTimeout:       idleTimeout,
		ReadHeaderTimeout: readHeaderTimeout,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info(ctx, "starting stub server", logger.String("addr", cfg.StubAddr), logger.Int("tokens", len(cfg.StubTokens)))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		log.Info(ctx, "shutting down stub server...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		return err
	}
	log.Info(ctx, "stub server stopped")
	return nil
}

func initMetrics(cfg *config.Config) {
	metrics.Init(
		metrics.WithNamespace(cfg.MetricsNamespace),
		metrics.WithHistogramBuckets(stubLatencyBuckets),
		metrics.WithMetricsEnabled(cfg.MetricsEnabled),
		metrics.WithCustomLabels(map[string]string{"env": cfg.Env}),
	)
}

// newHandler mounts the docs next to the voiceprint API.
func newHandler(ctx context.Context, cfg *config.Config, log logger.Logger) http.Handler {
	store := repository.NewMemStore(repository.WithChatHistory(seedChatHistory(time.Now())...))
	apiServer := api.NewServer(store,
		api.WithTokens(cfg.StubTokens...),
		api.WithMaxUploadBytes(cfg.MaxUploadBytes),
		api.WithLogger(log),
	)

	mux := http.NewServeMux()
	swagger.Register(ctx, mux)
	mux.Handle("/", apiServer.Router())
	return mux
}

func seedChatHistory(now time.Time) []repository.ChatRecord {
	lines := []struct {
		content  string
		fromUser bool
	}{
		{"hello, what's the weather like today", true},
		{"It is sunny with a light breeze.", false},
		{"play some music please", true},
		{"remind me to call mom at six", true},
	}
	out := make([]repository.ChatRecord, 0, len(lines))
	for i, l := range lines {
		rec := repository.ChatRecord{
			ChatHistory: model.ChatHistory{
				CreatedAt: now.Add(time.Duration(i-len(lines)) * time.Minute).Format(repository.DateLayout),
				AgentID:   demoAgentID,
				SessionID: "demo-session",
				ChatType:  1,
				Content:   l.content,
			},
			FromUser: l.fromUser,
		}
		if l.fromUser {
			rec.AudioID = "demo-audio-" + string(rune('a'+i))
		} else {
			rec.ChatType = 2
		}
		out = append(out, rec)
	}
	return out
}
