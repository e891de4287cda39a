package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"timepresale/config"
	"timepresale/core"
	"timepresale/core/events"
	"timepresale/gateway/middleware"
	"timepresale/gateway/routes"
	"timepresale/integrations/journal"
	"timepresale/observability"
	"timepresale/observability/logging"
	"timepresale/observability/metrics"
	telemetry "timepresale/observability/otel"
	"timepresale/storage"
)

const serviceName = "presaled"

func main() {
	configFile := flag.String("config", "./config.toml", "Path to the configuration file")
	issueToken := flag.String("issue-token", "", "Print a bearer token for the given address and exit")
	tokenTTL := flag.Duration("token-ttl", 24*time.Hour, "Lifetime of tokens printed by -issue-token")
	flag.Parse()

	cfg, err := config.Load(*configFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		os.Exit(1)
	}

	logger, logCloser := logging.SetupWithOptions(serviceName, cfg.Environment, logging.Options{
		File:       cfg.Logging.File,
		MaxSizeMB:  cfg.Logging.MaxSizeMB,
		MaxBackups: cfg.Logging.MaxBackups,
		MaxAgeDays: cfg.Logging.MaxAgeDays,
		Level:      logging.ParseLevel(cfg.Logging.Level),
	})
	defer logCloser.Close()

	if strings.TrimSpace(*issueToken) != "" {
		if err := printToken(os.Stdout, cfg, *issueToken, *tokenTTL); err != nil {
			logger.Error("issue token", slog.Any("error", err))
			os.Exit(1)
		}
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err := run(ctx, cfg, logger); err != nil {
		logger.Error("presaled stopped", slog.Any("error", err))
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config, logger *slog.Logger) error {
	shutdownTelemetry, err := telemetry.Init(ctx, telemetry.FromSettings(
		serviceName, cfg.Environment, cfg.Telemetry.Endpoint, cfg.Telemetry.Headers,
		cfg.Telemetry.Insecure, cfg.Telemetry.Traces, cfg.Telemetry.Metrics,
	))
	if err != nil {
		return fmt.Errorf("init telemetry: %w", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = shutdownTelemetry(shutdownCtx)
	}()

	logStartup(logger, cfg)
	a, err := newApp(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer a.Close()

	server := &http.Server{
		Addr:              cfg.ListenAddress,
		Handler:           a.handler,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		logger.Info("listening", slog.String("address", cfg.ListenAddress))
		errCh <- server.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}
	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}

// logStartup records the effective configuration with credentials masked.
func logStartup(logger *slog.Logger, cfg *config.Config) {
	logger.Info("presaled starting",
		slog.String("listen", cfg.ListenAddress),
		slog.String("dataDir", cfg.DataDir),
		slog.String("owner", cfg.Presale.Owner),
		slog.Bool("authEnabled", cfg.Auth.Enabled),
		logging.MaskField("hmacSecret", cfg.Auth.HMACSecret),
		slog.Bool("journalEnabled", cfg.Journal.Enabled),
		slog.String("driver", cfg.Journal.Driver),
		slog.String("journalDSN", logging.MaskDSN(cfg.Journal.DSN)))
}

// app holds the wired node and its HTTP surface.
type app struct {
	node    *core.Node
	journal *journal.Store
	handler http.Handler
}

func newApp(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*app, error) {
	params, err := cfg.PresaleParams()
	if err != nil {
		return nil, err
	}
	genesis, err := cfg.Genesis()
	if err != nil {
		return nil, err
	}
	vault, err := cfg.VaultAddress()
	if err != nil {
		return nil, err
	}

	emitters := events.Fanout{observability.Events()}
	var store *journal.Store
	if cfg.Journal.Enabled {
		if cfg.Journal.Driver == config.JournalDriverSQLite {
			if err := os.MkdirAll(filepath.Dir(cfg.Journal.DSN), 0o755); err != nil {
				return nil, fmt.Errorf("create journal dir: %w", err)
			}
		}
		store, err = journal.Open(cfg.Journal.Driver, cfg.Journal.DSN, logger)
		if err != nil {
			return nil, err
		}
		emitters = append(emitters, store)
	}

	db, err := storage.NewLevelDB(filepath.Join(cfg.DataDir, "ledger"))
	if err != nil {
		closeJournal(store)
		return nil, fmt.Errorf("open ledger: %w", err)
	}
	node, err := core.NewNode(db, core.NodeConfig{
		Params:      params,
		TokenSymbol: cfg.Token.Symbol,
		Vault:       vault,
		Emitter:     emitters,
		Logger:      logger,
		Metrics:     metrics.Presale(),
	})
	if err != nil {
		db.Close()
		closeJournal(store)
		return nil, err
	}
	if _, err := node.Bootstrap(ctx, genesis); err != nil {
		node.Close()
		closeJournal(store)
		return nil, fmt.Errorf("bootstrap: %w", err)
	}

	httpMetrics := observability.HTTP()
	routerCfg := routes.Config{
		Ledger: node,
		Authenticator: middleware.NewAuthenticator(middleware.AuthConfig{
			Enabled:    cfg.Auth.Enabled,
			HMACSecret: cfg.Auth.HMACSecret,
			Issuer:     cfg.Auth.Issuer,
			Audience:   cfg.Auth.Audience,
		}, logger, httpMetrics),
		RateLimiter: middleware.NewRateLimiter(middleware.RateLimit{
			RequestsPerMinute: cfg.RateLimit.RequestsPerMinute,
			Burst:             cfg.RateLimit.Burst,
		}, logger, httpMetrics),
		Observability: middleware.NewObservability(middleware.ObservabilityConfig{
			ServiceName: serviceName,
			LogRequests: true,
		}, logger, httpMetrics, nil),
		Logger: logger,
	}
	if store != nil {
		routerCfg.Events = store
	}
	return &app{node: node, journal: store, handler: routes.New(routerCfg)}, nil
}

func (a *app) Close() {
	a.node.Close()
	closeJournal(a.journal)
}

func closeJournal(store *journal.Store) {
	if store != nil {
		_ = store.Close()
	}
}

func printToken(out io.Writer, cfg *config.Config, subject string, ttl time.Duration) error {
	if !common.IsHexAddress(subject) {
		return fmt.Errorf("invalid address %q", subject)
	}
	auth := middleware.NewAuthenticator(middleware.AuthConfig{
		Enabled:    true,
		HMACSecret: cfg.Auth.HMACSecret,
		Issuer:     cfg.Auth.Issuer,
		Audience:   cfg.Auth.Audience,
	}, nil, nil)
	token, err := auth.IssueToken(common.HexToAddress(subject), ttl)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(out, token)
	return err
}
