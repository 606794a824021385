// Command bonusdrived polls Allianz BonusDrive for every configured entry and
// serves the resulting sensor states over REST, gRPC health and Redis.
package main

import (
	"context"
	"errors"
	"flag"
	"net"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/and161185/bonusdrive/internal/config"
	"github.com/and161185/bonusdrive/internal/crypto"
	"github.com/and161185/bonusdrive/internal/entry"
	"github.com/and161185/bonusdrive/internal/executor"
	"github.com/and161185/bonusdrive/internal/limiter"
	"github.com/and161185/bonusdrive/internal/migrate"
	"github.com/and161185/bonusdrive/internal/publish"
	"github.com/and161185/bonusdrive/internal/repository"
	"github.com/and161185/bonusdrive/internal/repository/memory"
	"github.com/and161185/bonusdrive/internal/repository/postgres"
	grpcserver "github.com/and161185/bonusdrive/internal/server/grpc"
	httpserver "github.com/and161185/bonusdrive/internal/server/http"
	"github.com/and161185/bonusdrive/internal/service"
)

var (
	version   = "dev"
	buildDate = "unknown"
)

const shutdownTimeout = 5 * time.Second

// main parses configuration and runs the daemon until SIGINT/SIGTERM.
func main() {
	cfgPath := flag.String("config", "", "config file (yaml, json or toml)")
	httpAddr := flag.String("addr", "", "REST listen address (overrides config)")
	grpcAddr := flag.String("grpc-addr", "", "gRPC listen address (overrides config)")
	dsn := flag.String("dsn", "", "PostgreSQL DSN (overrides config)")
	flag.Parse()

	logger, _ := zap.NewProduction()
	defer func() { _ = logger.Sync() }()
	logger.Info("starting",
		zap.String("version", version),
		zap.String("buildDate", buildDate),
	)

	cfg, err := config.Load(*cfgPath)
	if err != nil {
		logger.Fatal("load config", zap.Error(err))
	}
	if *httpAddr != "" {
		cfg.HTTPAddr = *httpAddr
	}
	if *grpcAddr != "" {
		cfg.GRPCAddr = *grpcAddr
	}
	if *dsn != "" {
		cfg.DSN = *dsn
	}
	if err := cfg.Validate(); err != nil {
		logger.Fatal("invalid config", zap.Error(err))
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger); err != nil {
		logger.Error("server error", zap.Error(err))
		os.Exit(1)
	}
	logger.Info("shutdown complete")
}

type storage struct {
	entries repository.EntryRepository
	trips   repository.TripRepository
	lim     limiter.Limiter
	close   func()
}

// openStorage picks PostgreSQL when a DSN is configured and memory otherwise.
func openStorage(ctx context.Context, cfg config.Config, logger *zap.Logger) (*storage, error) {
	if cfg.DSN == "" {
		logger.Warn("no dsn configured, entries are kept in memory")
		return &storage{
			entries: memory.NewEntryRepo(),
			trips:   memory.NewTripRepo(cfg.TripLogSize),
			lim:     limiter.NewMemory(limiter.DefaultWindow, limiter.DefaultMaxFails, limiter.DefaultBlockFor),
			close:   func() {},
		}, nil
	}

	if err := migrate.Up(ctx, cfg.DSN, logger); err != nil {
		return nil, err
	}
	db, err := postgres.New(ctx, cfg.DSN)
	if err != nil {
		return nil, err
	}
	return &storage{
		entries: postgres.NewEntryRepo(db, crypto.NewSealer(cfg.SecretKey)),
		trips:   postgres.NewTripRepo(db),
		lim:     limiter.NewPG(db.Pool, limiter.DefaultWindow, limiter.DefaultMaxFails, limiter.DefaultBlockFor),
		close:   db.Close,
	}, nil
}

func run(ctx context.Context, cfg config.Config, logger *zap.Logger) error {
	st, err := openStorage(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer st.close()

	issuer := service.NewTokenIssuer([]byte(cfg.JWTSecret), cfg.TokenTTL)
	pool := executor.New(cfg.ExecutorSize)

	grpcSrv := grpcserver.New(logger, grpcserver.Options{Verifier: issuer, Reflection: cfg.GRPCReflection})

	opts := entry.Options{
		Interval:      cfg.PollInterval,
		VendorTimeout: cfg.VendorTimeout,
		Pool:          pool,
		Trips:         st.trips,
		Health:        grpcSrv,
		Log:           logger,
	}
	if rdb := publish.Connect(cfg.RedisAddr, cfg.RedisPassword); rdb != nil {
		defer func() { _ = rdb.Close() }()
		if err := rdb.Ping(ctx).Err(); err != nil {
			logger.Warn("redis unreachable, states will be retried on every refresh", zap.Error(err))
		}
		opts.Publisher = publish.NewRedis(rdb, publish.DefaultPrefix, cfg.RedisStateTTL, logger)
	}
	mgr := entry.NewManager(st.entries, opts)

	flow := service.NewFlow(st.entries, st.trips, st.lim, service.NewCredentialValidator(pool, cfg.VendorTimeout, logger), logger)
	flow.SetLoader(mgr)

	if err := mgr.LoadAll(ctx); err != nil {
		return err
	}
	bootstrap(ctx, flow, cfg.Bootstrap, logger)

	httpSrv := httpserver.New(flow, mgr, issuer, logger)

	lis, err := net.Listen("tcp", cfg.GRPCAddr)
	if err != nil {
		return err
	}

	errCh := make(chan error, 2)
	go func() { errCh <- grpcSrv.Serve(lis) }()
	go func() { errCh <- httpSrv.Listen(cfg.HTTPAddr) }()

	var serveErr error
	select {
	case <-ctx.Done():
	case serveErr = <-errCh:
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := httpSrv.Shutdown(shutdownCtx); err != nil {
		logger.Warn("http shutdown", zap.Error(err))
	}
	grpcSrv.Stop(shutdownCtx)
	mgr.Shutdown(shutdownCtx)
	return serveErr
}

// bootstrap creates the configured entry unless it already exists.
func bootstrap(ctx context.Context, flow *service.Flow, b config.Bootstrap, logger *zap.Logger) {
	if b.Email == "" {
		return
	}
	ok, err := flow.Configured(ctx, b.Email)
	if err != nil {
		logger.Error("bootstrap lookup", zap.Error(err))
		return
	}
	if ok {
		logger.Info("bootstrap entry already configured", zap.String("email", b.Email))
		return
	}
	_, err = flow.Create(ctx, service.CreateInput{
		Email:     b.Email,
		Password:  b.Password,
		BaseURL:   b.BaseURL,
		PhotonURL: b.PhotonURL,
		Source:    "bootstrap",
	})
	var fe *service.FormError
	switch {
	case err == nil:
		logger.Info("bootstrap entry created", zap.String("email", b.Email))
	case errors.As(err, &fe):
		logger.Error("bootstrap entry rejected", zap.String("code", fe.Code), zap.Error(err))
	default:
		logger.Error("bootstrap entry", zap.Error(err))
	}
}
