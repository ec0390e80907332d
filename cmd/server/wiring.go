package main

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"wishguard/internal/antibot/behavior"
	"wishguard/internal/antibot/captcha"
	"wishguard/internal/antibot/device"
	"wishguard/internal/antibot/ipreputation"
	behaviorstore "wishguard/internal/antibot/store/behavior"
	captchastore "wishguard/internal/antibot/store/captcha"
	devicestore "wishguard/internal/antibot/store/device"
	ipstore "wishguard/internal/antibot/store/ipreputation"
	emailservice "wishguard/internal/email/service"
	"wishguard/internal/email/store/emaillog"
	"wishguard/internal/email/store/verification"
	otpservice "wishguard/internal/otp/service"
	otpstore "wishguard/internal/otp/store/otp"
	"wishguard/internal/otp/store/phonelog"
	"wishguard/internal/platform/config"
	platformredis "wishguard/internal/platform/redis"
	ratelimitmetrics "wishguard/internal/ratelimit/metrics"
	ratelimitservice "wishguard/internal/ratelimit/service"
	"wishguard/internal/ratelimit/store/counter"
	"wishguard/internal/ratelimit/store/fallback"
	"wishguard/internal/users"
	audit "wishguard/pkg/platform/audit"
	auditmemory "wishguard/pkg/platform/audit/store/memory"
	auditpostgres "wishguard/pkg/platform/audit/store/postgres"
	txcontext "wishguard/pkg/platform/tx"
)

// stores groups the persistence adapters for one backend.
type stores struct {
	ips          ipreputation.Store
	devices      device.Store
	behavior     behavior.Store
	captchas     captcha.Store
	otps         otpservice.Store
	phoneLogs    otpservice.LogStore
	emails       emailservice.Store
	emailLogs    emailservice.LogStore
	users        userStore
	securityLogs audit.Store
	// inTx is nil for memory stores, whose writes are already atomic per call.
	inTx emailservice.TxRunner
}

// userStore is satisfied by both user adapters.
type userStore interface {
	Create(ctx context.Context, u *users.User) error
	ExistsByPhone(ctx context.Context, phone string) (bool, error)
}

func postgresStores(db *sql.DB) stores {
	return stores{
		ips:          ipstore.NewPostgres(db),
		devices:      devicestore.NewPostgres(db),
		behavior:     behaviorstore.NewPostgres(db),
		captchas:     captchastore.NewPostgres(db),
		otps:         otpstore.NewPostgres(db),
		phoneLogs:    phonelog.NewPostgres(db),
		emails:       verification.NewPostgres(db),
		emailLogs:    emaillog.NewPostgres(db),
		users:        users.NewPostgres(db),
		securityLogs: auditpostgres.New(db),
		inTx: func(ctx context.Context, fn func(ctx context.Context) error) error {
			return txcontext.Run(ctx, db, fn)
		},
	}
}

func memoryStores() stores {
	return stores{
		ips:          ipstore.NewInMemoryStore(),
		devices:      devicestore.NewInMemoryStore(),
		behavior:     behaviorstore.NewInMemoryStore(),
		captchas:     captchastore.NewInMemoryStore(),
		otps:         otpstore.NewInMemoryStore(),
		phoneLogs:    phonelog.NewInMemoryStore(),
		emails:       verification.NewInMemoryStore(),
		emailLogs:    emaillog.NewInMemoryStore(),
		users:        users.NewInMemoryStore(),
		securityLogs: auditmemory.NewInMemoryStore(),
	}
}

// counterBackend picks the rate-limit counter store. Redis and BuntDB are
// wrapped with an in-memory fallback behind a circuit breaker.
func counterBackend(ctx context.Context, cfg config.Server, logger *slog.Logger, m *ratelimitmetrics.Metrics) (ratelimitservice.CounterStore, func(), error) {
	memory := counter.NewInMemoryStore()
	stopSweep := sweep(memory, time.Minute)

	switch cfg.RateLimitBackend {
	case config.RateLimitBackendMemory:
		return memory, stopSweep, nil

	case config.RateLimitBackendRedis:
		client, err := platformredis.New(ctx, cfg.Redis)
		if err != nil {
			logger.WarnContext(ctx, "redis unavailable, rate limits use process memory", "error", err)
			return memory, stopSweep, nil
		}
		if client == nil {
			logger.WarnContext(ctx, "RATE_LIMIT_BACKEND=redis without REDIS_URL, rate limits use process memory")
			return memory, stopSweep, nil
		}
		store := fallback.New(counter.NewRedis(client.Client), memory,
			fallback.WithLogger(logger),
			fallback.WithDegradedGauge(m),
		)
		return store, func() {
			stopSweep()
			_ = client.Close()
		}, nil

	case config.RateLimitBackendBuntDB:
		bunt, err := counter.OpenBunt(cfg.BuntDBPath)
		if err != nil {
			stopSweep()
			return nil, nil, fmt.Errorf("open buntdb counters: %w", err)
		}
		store := fallback.New(bunt, memory,
			fallback.WithLogger(logger),
			fallback.WithDegradedGauge(m),
		)
		return store, func() {
			stopSweep()
			_ = bunt.Close()
		}, nil

	default:
		stopSweep()
		return nil, nil, fmt.Errorf("unknown RATE_LIMIT_BACKEND %q", cfg.RateLimitBackend)
	}
}

// sweep drops expired in-memory counters until the returned stop func is called.
func sweep(store *counter.InMemoryStore, every time.Duration) func() {
	ticker := time.NewTicker(every)
	done := make(chan struct{})
	go func() {
		for {
			select {
			case <-ticker.C:
				store.Sweep()
			case <-done:
				ticker.Stop()
				return
			}
		}
	}()
	return func() { close(done) }
}
