package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	goredis "github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"veggiemarket/backend/internal/cache"
	"veggiemarket/backend/internal/config"
	"veggiemarket/backend/internal/domain"
	"veggiemarket/backend/internal/erp"
	"veggiemarket/backend/internal/httpapi"
	"veggiemarket/backend/internal/logging"
	"veggiemarket/backend/internal/report"
	"veggiemarket/backend/internal/service"
	"veggiemarket/backend/internal/state"
	"veggiemarket/backend/internal/store"
	"veggiemarket/backend/internal/store/memory"
	pgstore "veggiemarket/backend/internal/store/postgres"
	redisstore "veggiemarket/backend/internal/store/redis"
	"veggiemarket/backend/internal/syncer"
	"veggiemarket/backend/internal/xid"
)

func main() {
	cfg := config.Load()
	logger, err := logging.New(cfg.Env, cfg.LogLevel)
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = logger.Sync() }()

	if err := validateSecurityConfig(cfg); err != nil {
		logger.Fatal("invalid security configuration", zap.Error(err))
	}
	policy, err := buildPolicy(cfg)
	if err != nil {
		logger.Fatal("invalid sale policy", zap.Error(err))
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	backends, err := openBackends(ctx, cfg, logger)
	if err != nil {
		logger.Fatal("storage unavailable", zap.Error(err))
	}

	st := state.NewStore(
		state.NewSeeded(xid.New("tab"), time.Now().UTC()),
		policy,
		state.WithSnapshots(backends.snapshots),
		state.WithLogger(logger.Named("state")),
	)
	restored, err := st.Restore(ctx)
	if err != nil {
		logger.Fatal("restore state", zap.Error(err))
	}
	logger.Info("state ready", zap.Bool("restored", restored), zap.String("snapshots", cfg.SnapshotBackend))

	adapter, closeAdapter, err := buildAdapter(cfg, logger)
	if err != nil {
		logger.Fatal("erp adapter", zap.Error(err))
	}
	backends.closers = append(backends.closers, closeAdapter)

	syncOpts := []syncer.Option{
		syncer.WithSnapshots(backends.snapshots),
		syncer.WithLogger(logger),
	}
	if backends.archive != nil {
		syncOpts = append(syncOpts, syncer.WithArchive(backends.archive))
	}
	sync := syncer.New(adapter, st, syncer.Config{
		Timeout:   time.Duration(cfg.ERPSyncTimeoutSeconds) * time.Second,
		QueueSize: cfg.ERPQueueSize,
	}, syncOpts...)
	if err := sync.Restore(ctx); err != nil {
		logger.Warn("sync status not restored", zap.Error(err))
	}
	st.Subscribe(sync.HandleEvent)
	logger.Info("erp sync ready", zap.String("mode", cfg.ERPMode))

	reports := report.NewEngine(backends.reportCache, time.Duration(cfg.ReportCacheTTLSeconds)*time.Second, logger)
	svc := service.New(st, reports, sync, service.WithLogger(logger))
	auth, err := httpapi.NewAuthManager(cfg.AuthSecret, time.Duration(cfg.AccessTokenTTLMinutes)*time.Minute,
		httpapi.Account{Username: "admin", Password: cfg.SeedAdminPassword, Role: domain.RoleAdmin},
		httpapi.Account{Username: "staff", Password: cfg.SeedStaffPassword, Role: domain.RoleStaff},
	)
	if err != nil {
		logger.Fatal("auth accounts", zap.Error(err))
	}
	api := httpapi.New(svc, auth, cfg.AllowedOrigin, logger)

	server := &http.Server{
		Addr:              cfg.Address(),
		Handler:           api.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		logger.Info("POS backend listening", zap.String("addr", cfg.Address()))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("server error", zap.Error(err))
		}
	}()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 8*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutdown error", zap.Error(err))
	}
	if err := sync.Close(); err != nil {
		logger.Error("sync close", zap.Error(err))
	}
	if err := st.Flush(shutdownCtx); err != nil {
		logger.Error("final snapshot", zap.Error(err))
	}

	for _, closeFn := range backends.closers {
		if err := closeFn(); err != nil {
			logger.Error("close error", zap.Error(err))
		}
	}

	logger.Info("server stopped")
}

func validateSecurityConfig(cfg config.Config) error {
	if len(cfg.AuthSecret) < 32 {
		return fmt.Errorf("AUTH_SECRET must be set and at least 32 characters")
	}
	if cfg.SeedAdminPassword == "" {
		return fmt.Errorf("SEED_ADMIN_PASSWORD must be set")
	}
	if cfg.Production() && !isHashed(cfg.SeedAdminPassword) && len(cfg.SeedAdminPassword) < 10 {
		return fmt.Errorf("SEED_ADMIN_PASSWORD must be a bcrypt hash or at least 10 characters in production")
	}
	if cfg.ERPMode == "live" {
		if cfg.ERPBaseURL == "" {
			return fmt.Errorf("ERP_BASE_URL is required when ERP_MODE=live")
		}
		if cfg.ERPAPIKey == "" && (cfg.ERPUsername == "" || cfg.ERPPassword == "") {
			return fmt.Errorf("ERP_API_KEY or ERP_USERNAME and ERP_PASSWORD are required when ERP_MODE=live")
		}
	}
	return nil
}

func isHashed(password string) bool {
	return len(password) > 4 && password[0] == '$' && password[1] == '2'
}

func buildPolicy(cfg config.Config) (state.Policy, error) {
	priceOverride, err := state.ParsePriceOverridePolicy(cfg.PriceOverridePolicy)
	if err != nil {
		return state.Policy{}, err
	}
	return state.Policy{
		PriceOverride:            priceOverride,
		CreditSalesUpdateBalance: cfg.CreditSalesUpdateBalance,
	}, nil
}

type backends struct {
	snapshots   store.Snapshots
	archive     store.SaleArchive
	reportCache cache.ReportCache
	closers     []func() error
}

// openBackends connects the snapshot store, the sale archive and the report
// cache. A configured DATABASE_URL always serves as the sale archive.
func openBackends(ctx context.Context, cfg config.Config, logger *zap.Logger) (*backends, error) {
	b := &backends{reportCache: cache.NoopReportCache{}}

	var redisClient *goredis.Client
	if cfg.RedisAddr != "" {
		client := goredis.NewClient(&goredis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		if err := client.Ping(ctx).Err(); err != nil {
			_ = client.Close()
			if cfg.SnapshotBackend == "redis" {
				return nil, fmt.Errorf("redis: %w", err)
			}
			logger.Warn("redis unavailable, report cache disabled", zap.Error(err))
		} else {
			redisClient = client
			b.closers = append(b.closers, client.Close)
			b.reportCache = cache.NewRedisReportCache(client)
			logger.Info("report cache: redis")
		}
	}

	var pg *pgstore.Store
	if cfg.DatabaseURL != "" {
		opened, err := pgstore.New(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, fmt.Errorf("postgres unavailable and DATABASE_URL is set: %w", err)
		}
		pg = opened
		b.archive = pg
		b.closers = append(b.closers, pg.Close)
		logger.Info("sale archive: postgres")
	}

	switch cfg.SnapshotBackend {
	case "memory", "":
		mem := memory.New()
		b.snapshots = mem
		if b.archive == nil {
			b.archive = mem
		}
	case "postgres":
		if pg == nil {
			return nil, fmt.Errorf("SNAPSHOT_BACKEND=postgres requires DATABASE_URL")
		}
		b.snapshots = pg
	case "redis":
		if redisClient == nil {
			return nil, fmt.Errorf("SNAPSHOT_BACKEND=redis requires REDIS_ADDR")
		}
		b.snapshots = redisstore.New(redisClient)
	default:
		return nil, fmt.Errorf("unknown SNAPSHOT_BACKEND %q", cfg.SnapshotBackend)
	}
	logger.Info("snapshots ready", zap.String("backend", cfg.SnapshotBackend))
	return b, nil
}

func buildAdapter(cfg config.Config, logger *zap.Logger) (erp.Adapter, func() error, error) {
	noop := func() error { return nil }
	switch cfg.ERPMode {
	case "disabled", "":
		return erp.Disabled{}, noop, nil
	case "demo":
		return erp.NewDemo(), noop, nil
	case "live":
		tax, err := decimal.NewFromString(cfg.ERPTaxPercent)
		if err != nil || tax.IsNegative() {
			return nil, nil, fmt.Errorf("ERP_TAX_PERCENT %q is not a valid percentage", cfg.ERPTaxPercent)
		}
		client, err := erp.NewClient(erp.Config{
			BaseURL:    cfg.ERPBaseURL,
			APIKey:     cfg.ERPAPIKey,
			Username:   cfg.ERPUsername,
			Password:   cfg.ERPPassword,
			TaxPercent: tax,
			Timeout:    time.Duration(cfg.ERPSyncTimeoutSeconds) * time.Second,
		}, logger)
		if err != nil {
			return nil, nil, err
		}
		return client, client.Close, nil
	default:
		return nil, nil, fmt.Errorf("unknown ERP_MODE %q", cfg.ERPMode)
	}
}
