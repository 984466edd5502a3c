// Command voiceprint manages agent voiceprints from the terminal: list and
// register speakers, browse chat history, upload enrollment audio.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/okian/voiceprint/internal/adapters/credentials"
	"github.com/okian/voiceprint/internal/adapters/transport"
	"github.com/okian/voiceprint/internal/adapters/upload"
	"github.com/okian/voiceprint/internal/config"
	"github.com/okian/voiceprint/internal/voiceprint"
	"github.com/okian/voiceprint/pkg/logger"
	"github.com/okian/voiceprint/pkg/metrics"
)

// Exit codes.
const (
	exitOK    = 0
	exitError = 1
	exitUsage = 2
)

const usage = `usage: voiceprint <command> [flags]

commands:
  list     -agent ID                          list registered voiceprints
  history  -agent ID                          list user chat history
  create   -agent ID -audio ID -name N [-intro T]
  update   -id ID [-audio ID] [-name N] [-intro T]
  delete   -id ID
  upload   -agent ID -file PATH               upload enrollment audio
  login    -token T                           store the API token
  logout                                      forget the API token

configuration: VOICEPRINT_* environment, .env, or a YAML file in VOICEPRINT_CONFIG
`

var errUsage = errors.New("usage")

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	code := run(ctx, os.Args[1:], os.Stdout, os.Stderr)
	stop()
	os.Exit(code)
}

// app bundles what every command needs.
type app struct {
	cfg    *config.Config
	tokens *credentials.FileStore
	api    *voiceprint.API
	log    logger.Logger
	stdout io.Writer
	stderr io.Writer
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	if len(args) == 0 || args[0] == "-h" || args[0] == "--help" || args[0] == "help" {
		_, _ = io.WriteString(stderr, usage)
		if len(args) == 0 {
			return exitUsage
		}
		return exitOK
	}

	a, err := newApp(ctx, stdout, stderr)
	if err != nil {
		fmt.Fprintf(stderr, "error: %v\n", err)
		return exitError
	}

	cmd, ok := commands[args[0]]
	if !ok {
		fmt.Fprintf(stderr, "unknown command %q\n\n%s", args[0], usage)
		return exitUsage
	}

	fs := flag.NewFlagSet(args[0], flag.ContinueOnError)
	fs.SetOutput(stderr)
	if err := cmd(ctx, a, fs, args[1:]); err != nil {
		if errors.Is(err, errUsage) || errors.Is(err, flag.ErrHelp) {
			return exitUsage
		}
		a.log.Debug(ctx, "command failed", logger.String("command", args[0]), logger.Error(err))
		fmt.Fprintf(stderr, "error: %v\n", err)
		return exitError
	}
	return exitOK
}

func newApp(ctx context.Context, stdout, stderr io.Writer) (*app, error) {
	cfg, err := config.Load(ctx)
	if err != nil {
		return nil, err
	}

	if err := logger.Init(logger.WithWriter(stderr), logger.WithJSON(cfg.LogFormat == "json")); err != nil {
		return nil, err
	}
	log := logger.Named("cli")
	if err := logger.SetLevelString(cfg.LogLevel); err != nil {
		log.Warn(ctx, "invalid log_level; falling back to info", logger.String("log_level", cfg.LogLevel), logger.Error(err))
		_ = logger.SetLevelString("info")
	}

	metrics.Init(
		metrics.WithNamespace(cfg.MetricsNamespace),
		metrics.WithSubsystem("cli"),
		metrics.WithMetricsEnabled(cfg.MetricsEnabled),
	)

	tokens := credentials.NewFileStore(cfg.TokenFile)
	client := transport.New(
		transport.WithResolver(cfg),
		transport.WithTimeout(cfg.Timeout),
		transport.WithCredentials(tokens),
		transport.WithCacheSize(cfg.CacheSize),
		transport.WithLogger(log.Named("transport")),
	)
	uploader := upload.NewHTTPUploader(
		upload.WithHTTPClient(&http.Client{Timeout: cfg.Timeout}),
		upload.WithMaxBytes(cfg.MaxUploadBytes),
		upload.WithLogger(log.Named("upload")),
	)

	return &app{
		cfg:    cfg,
		tokens: tokens,
		api: voiceprint.New(
			voiceprint.WithTransport(client),
			voiceprint.WithUploader(uploader),
			voiceprint.WithLogger(log),
		),
		log:    log,
		stdout: stdout,
		stderr: stderr,
	}, nil
}

func (a *app) print(v any) error {
	enc := json.NewEncoder(a.stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
