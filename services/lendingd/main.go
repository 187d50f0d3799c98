package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"crosslend/config"
	"crosslend/core/events"
	"crosslend/core/state"
	"crosslend/native/attest"
	"crosslend/native/lending"
	"crosslend/native/oracle"
	"crosslend/native/tier"
	"crosslend/observability"
	"crosslend/observability/logging"
	"crosslend/observability/metrics"
	telemetry "crosslend/observability/otel"
	"crosslend/services/lendingd/eventstore"
	"crosslend/services/lendingd/server"
	"crosslend/services/lendingd/stream"
	"crosslend/storage"
)

func main() {
	var cfgPath string
	flag.StringVar(&cfgPath, "config", "lendingd.toml", "path to lendingd config (toml or yaml)")
	flag.Parse()

	cfg, err := config.Load(cfgPath)
	if err != nil {
		log.Fatalf("load config: %v", err)
	}
	env := cfg.Environment
	if override := strings.TrimSpace(os.Getenv("LEND_ENV")); override != "" {
		env = override
	}
	logFile := logging.RotatingFile(logging.FileOptions{
		Path:       cfg.Log.File,
		MaxSizeMB:  cfg.Log.MaxSizeMB,
		MaxBackups: cfg.Log.MaxBackups,
		MaxAgeDays: cfg.Log.MaxAgeDays,
	})
	if logFile != nil {
		defer logFile.Close()
	}
	logger := logging.Setup("lendingd", env, logFile)
	logger.Info("configuration loaded", slog.Any("config", cfg.Sanitized()))

	shutdownTelemetry, err := telemetry.Init(context.Background(), telemetry.ConfigFromEnv("lendingd", env))
	if err != nil {
		log.Fatalf("init telemetry: %v", err)
	}
	defer func() {
		if shutdownTelemetry != nil {
			_ = shutdownTelemetry(context.Background())
		}
	}()

	if err := run(cfg, logger); err != nil {
		log.Fatalf("lendingd: %v", err)
	}
}

func run(cfg *config.Config, logger *slog.Logger) error {
	secret := cfg.HMACSecret()
	if secret == "" {
		return errors.New("auth hmac secret required")
	}
	logger.Info("api auth configured",
		logging.MaskField("hmac_secret", secret),
		logging.MaskField("issuer", cfg.Auth.Issuer),
		logging.MaskField("audience", cfg.Auth.Audience))
	operator, err := cfg.OperatorAddress()
	if err != nil {
		return err
	}
	tierAuthority, err := cfg.TierAuthorityAddress()
	if err != nil {
		return err
	}
	params, err := cfg.LendingParams()
	if err != nil {
		return err
	}

	if err := os.MkdirAll(cfg.DataDir, 0o755); err != nil {
		return err
	}
	db, err := storage.NewLevelDB(filepath.Join(cfg.DataDir, "state"))
	if err != nil {
		return err
	}
	defer db.Close()
	mgr := state.NewManager(db)

	eventDB, err := eventstore.Open(cfg.EventStore.Driver, cfg.EventStore.DSN)
	if err != nil {
		return err
	}
	if err := eventstore.AutoMigrate(eventDB); err != nil {
		return err
	}
	eventLog := eventstore.New(eventDB, logger)
	hub := stream.NewHub()
	emitter := events.MultiEmitter{eventLog, observability.Events(), hub}

	tiers := tier.NewEngine(mgr.Tiers(), tierAuthority)
	tiers.SetEmitter(emitter)
	if err := bootstrap(cfg, mgr, tiers, time.Now(), logger); err != nil {
		return err
	}
	pauses := cfg.PauseView()
	tiers.SetPauses(pauses)

	manual := oracle.NewManualFeed()
	for _, q := range cfg.Oracle.Quotes {
		if err := manual.SetDecimal(q.Feed, q.Rate, q.Confidence, time.Now()); err != nil {
			return err
		}
	}
	feeds := oracle.NewAggregator(params.MaxPriceAge)
	if endpoint := strings.TrimSpace(cfg.Oracle.HTTPEndpoint); endpoint != "" {
		feeds.Register("http", oracle.NewHTTPFeed(&http.Client{}, endpoint, cfg.HTTPTimeout()))
	}
	feeds.Register("manual", manual)

	authority := lending.NewAuthority(operator)
	engine := lending.NewEngine(mgr.Lending(), params, authority)
	engine.SetVerifier(attest.NewVerifier(cfg.Attestation.LocalChainID, cfg.ValidityWindow()))
	engine.SetFeeds(feeds)
	engine.SetEmitter(emitter)
	engine.SetObserver(metrics.Lending())
	engine.SetLogger(logger.With(slog.String("component", "lending")))
	engine.SetPauses(pauses)

	srv, err := server.New(server.Config{
		Lending:   engine,
		Tiers:     tiers,
		State:     mgr,
		Authority: authority,
		Prices:    manual,
		Events:    eventLog,
		Stream:    hub,
		Auth: server.AuthConfig{
			HMACSecret: secret,
			Issuer:     cfg.Auth.Issuer,
			Audience:   cfg.Auth.Audience,
			ClockSkew:  cfg.ClockSkew(),
		},
		RateLimit: server.RateLimit{
			RequestsPerMinute: cfg.RateLimit.RequestsPerMinute,
			Burst:             cfg.RateLimit.Burst,
		},
		Logger: logger,
	})
	if err != nil {
		return err
	}

	httpServer := &http.Server{
		Addr:              cfg.ListenAddress,
		Handler:           telemetry.WrapHandler(srv.Handler(), "lendingd"),
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	serverErr := make(chan error, 1)
	go func() {
		logger.Info("lendingd listening", slog.String("addr", cfg.ListenAddress))
		serverErr <- httpServer.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		logger.Info("shutdown signal received")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return httpServer.Shutdown(shutdownCtx)
	case err := <-serverErr:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}
