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

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"wishguard/internal/antibot/behavior"
	"wishguard/internal/antibot/captcha"
	antibotconfig "wishguard/internal/antibot/config"
	"wishguard/internal/antibot/device"
	antibothandler "wishguard/internal/antibot/handler"
	"wishguard/internal/antibot/ipreputation"
	antibotmetrics "wishguard/internal/antibot/metrics"
	"wishguard/internal/antibot/risk"
	"wishguard/internal/email/mailer"
	emailservice "wishguard/internal/email/service"
	"wishguard/internal/jwttoken"
	otpmetrics "wishguard/internal/otp/metrics"
	otpservice "wishguard/internal/otp/service"
	"wishguard/internal/otp/sms"
	"wishguard/internal/platform/config"
	"wishguard/internal/platform/httpserver"
	"wishguard/internal/platform/kafka"
	"wishguard/internal/platform/logger"
	"wishguard/internal/platform/metrics"
	"wishguard/internal/platform/postgres"
	ratelimitmetrics "wishguard/internal/ratelimit/metrics"
	ratelimitmw "wishguard/internal/ratelimit/middleware"
	ratelimitservice "wishguard/internal/ratelimit/service"
	registrationhandler "wishguard/internal/registration/handler"
	registrationservice "wishguard/internal/registration/service"
	"wishguard/pkg/platform/audit/publisher"
	"wishguard/pkg/platform/audit/publishers/security"
	"wishguard/pkg/platform/audit/worker"
	"wishguard/pkg/platform/middleware/metadata"
	"wishguard/pkg/platform/middleware/requestid"
	"wishguard/pkg/platform/middleware/requesttime"
	"wishguard/pkg/platform/middleware/session"
)

// main wires dependencies, serves HTTP and shuts down on SIGINT/SIGTERM.
// Business logic lives in the internal service packages.
func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "wishguard: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg := config.FromEnv()
	log, syncLog, err := logger.New(cfg.Log)
	if err != nil {
		return err
	}
	defer func() { _ = syncLog() }()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	riskCfg := antibotconfig.Default()
	if cfg.AntiBotConfigPath != "" {
		if riskCfg, err = antibotconfig.LoadFile(cfg.AntiBotConfigPath); err != nil {
			return err
		}
	}
	if err := riskCfg.Validate(); err != nil {
		return err
	}

	st := memoryStores()
	if cfg.DatabaseURL != "" {
		db, err := postgres.Open(ctx, cfg.DatabaseURL)
		if err != nil {
			return err
		}
		defer db.Close()
		if err := postgres.Migrate(ctx, db); err != nil {
			return err
		}
		st = postgresStores(db)
	} else {
		log.Warn("DATABASE_URL not set, state is kept in process memory")
	}

	reg := metrics.NewRegistry()
	abMetrics := antibotmetrics.New(reg)
	otpMetrics := otpmetrics.New(reg)
	rlMetrics := ratelimitmetrics.New(reg)

	// Security events: structured log + store, plus Kafka when brokers are set.
	publisherOpts := []publisher.Option{
		publisher.WithLogger(logger.Security(log)),
		publisher.WithStore(st.securityLogs),
	}
	var streamWorker *worker.Worker
	producer, err := kafka.New(ctx, cfg.Kafka)
	if err != nil {
		log.Warn("kafka unavailable, security events are not streamed", "error", err)
	}
	if producer != nil {
		defer producer.Close()
		buffer := security.NewRingBuffer(4096)
		publisherOpts = append(publisherOpts, publisher.WithStream(buffer))
		streamWorker = worker.NewWorker(buffer, producer, worker.WithLogger(log))
	}
	events := publisher.NewPublisher(publisherOpts...)

	counters, closeCounters, err := counterBackend(ctx, cfg, log, rlMetrics)
	if err != nil {
		return err
	}
	defer closeCounters()
	limiter, err := ratelimitservice.New(counters,
		ratelimitservice.WithLogger(log),
		ratelimitservice.WithAuditPublisher(events),
		ratelimitservice.WithMetrics(rlMetrics),
	)
	if err != nil {
		return err
	}

	var proxies ipreputation.ProxyDetector = ipreputation.NoProxyDetector{}
	if cfg.GeoIPAnonDBPath != "" {
		geo, err := ipreputation.OpenGeoIP(cfg.GeoIPAnonDBPath)
		if err != nil {
			return err
		}
		defer geo.Close()
		proxies = geo
	}

	ips, err := ipreputation.New(st.ips,
		ipreputation.WithLogger(log),
		ipreputation.WithConfig(riskCfg.IP),
		ipreputation.WithProxyDetector(proxies),
		ipreputation.WithAuditPublisher(events),
		ipreputation.WithMetrics(abMetrics),
	)
	if err != nil {
		return err
	}
	devices, err := device.New(st.devices,
		device.WithLogger(log),
		device.WithConfig(riskCfg.Device),
	)
	if err != nil {
		return err
	}
	analyzer, err := behavior.New(st.behavior,
		behavior.WithLogger(log),
		behavior.WithConfig(riskCfg.Behavior),
		behavior.WithMetrics(abMetrics),
	)
	if err != nil {
		return err
	}
	checker, err := risk.New(ips, devices, analyzer,
		risk.WithLogger(log),
		risk.WithConfig(riskCfg.Aggregate),
		risk.WithAuditPublisher(events),
		risk.WithMetrics(abMetrics),
	)
	if err != nil {
		return err
	}

	captchaOpts := []captcha.Option{
		captcha.WithLogger(log),
		captcha.WithConfig(riskCfg.Captcha),
		captcha.WithFailureRecorder(ips),
		captcha.WithAuditPublisher(events),
		captcha.WithMetrics(abMetrics),
	}
	if cfg.Recaptcha.Secret != "" {
		captchaOpts = append(captchaOpts, captcha.WithTokenVerifier(captcha.NewSiteVerifyClient(cfg.Recaptcha.Secret)))
	}
	captchas, err := captcha.New(st.captchas, captchaOpts...)
	if err != nil {
		return err
	}

	sender, err := sms.New(sms.Config{
		Provider:         cfg.SMS.Provider,
		KavenegarAPIKey:  cfg.SMS.KavenegarAPIKey,
		KavenegarSender:  cfg.SMS.KavenegarSender,
		TwilioAccountSID: cfg.SMS.TwilioAccountSID,
		TwilioAuthToken:  cfg.SMS.TwilioAuthToken,
		TwilioFromNumber: cfg.SMS.TwilioFromNumber,
	}, log)
	if err != nil {
		return err
	}
	otp, err := otpservice.New(st.otps, st.phoneLogs, sender,
		otpservice.WithLogger(log),
		otpservice.WithConfig(riskCfg.OTP),
		otpservice.WithSendLimit(riskCfg.RateLimits.OTPSendPerPhone),
		otpservice.WithFailureRecorder(ips),
		otpservice.WithAuditPublisher(events),
		otpservice.WithMetrics(otpMetrics),
	)
	if err != nil {
		return err
	}

	tokens, err := jwttoken.New(cfg.JWT.SigningKey,
		jwttoken.WithIssuer(cfg.JWT.Issuer),
		jwttoken.WithTTLs(cfg.JWT.AccessTTL, cfg.JWT.RefreshTTL),
	)
	if err != nil {
		return err
	}
	registrar, err := registrationservice.New(checker, captchas, otp, st.users, tokens,
		registrationservice.WithLogger(log),
		registrationservice.WithConfig(riskCfg),
		registrationservice.WithRateLimiter(limiter),
		registrationservice.WithSuccessRecorders(devices, ips),
		registrationservice.WithAuditPublisher(events),
		registrationservice.WithMetrics(abMetrics),
	)
	if err != nil {
		return err
	}

	var mail mailer.Mailer = mailer.NewLog(log)
	if cfg.SMTP.Addr != "" {
		mail = mailer.NewSMTP(mailer.SMTPConfig{
			Addr:     cfg.SMTP.Addr,
			Host:     cfg.SMTP.Host,
			User:     cfg.SMTP.User,
			Password: cfg.SMTP.Password,
			From:     cfg.SMTP.From,
		})
	}
	emails, err := emailservice.New(st.emails, st.emailLogs, mail,
		emailservice.WithLogger(log),
		emailservice.WithConfig(riskCfg.Email),
		emailservice.WithRateLimits(limiter, riskCfg.RateLimits.EmailPerAddress, riskCfg.RateLimits.EmailPerIP),
		emailservice.WithIPLookup(ips),
		emailservice.WithAuditPublisher(events),
		emailservice.WithFrontendURL(cfg.FrontendURL),
		emailservice.WithTxRunner(st.inTx),
	)
	if err != nil {
		return err
	}

	router := chi.NewRouter()
	router.Use(chimiddleware.Recoverer)
	router.Use(requestid.Middleware)
	router.Use(requesttime.Middleware)
	router.Use(metadata.ClientMetadata)
	router.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.CORSAllowedOrigins,
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders:   []string{"Content-Type", "Authorization", session.HeaderName, device.HeaderScreenResolution, device.HeaderTimezone},
		ExposedHeaders:   []string{"Retry-After", "X-RateLimit-Limit", "X-RateLimit-Remaining", "X-RateLimit-Reset"},
		AllowCredentials: true,
		MaxAge:           300,
	}))
	router.Use(session.Middleware(!cfg.Debug))
	router.Use(metrics.NewHTTP(reg).Middleware)

	router.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	router.Handle("/metrics", metrics.Handler(reg))

	antibothandler.New(captchas,
		antibothandler.WithLogger(log),
		antibothandler.WithDebug(cfg.Debug),
		antibothandler.WithDebugSources(checker, devices, ips, analyzer),
		antibothandler.WithRateLimit(ratelimitmw.New(limiter, log), riskCfg.RateLimits.CaptchaPerIP),
		antibothandler.WithAuditPublisher(events),
	).Register(router)
	registrationhandler.New(registrar,
		registrationhandler.WithLogger(log),
		registrationhandler.WithEmailVerifier(emails),
		registrationhandler.WithAuditPublisher(events),
	).Register(router)

	if streamWorker != nil {
		go func() {
			if err := streamWorker.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
				log.Error("security event stream stopped", "error", err)
			}
		}()
	}

	srv := httpserver.New(cfg.Addr, router)
	serveErr := make(chan error, 1)
	go func() {
		log.Info("starting wishguard", "addr", cfg.Addr, "debug", cfg.Debug)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	select {
	case err := <-serveErr:
		if err != nil {
			return fmt.Errorf("server error: %w", err)
		}
	case <-ctx.Done():
	}

	log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("graceful shutdown failed: %w", err)
	}
	if streamWorker != nil {
		streamWorker.Flush(shutdownCtx)
	}
	return nil
}
