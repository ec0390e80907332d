// Package risk combines the IP, device and behavior signals into a single
// allow / challenge / block decision.
package risk

import (
	"context"
	"errors"
	"log/slog"
	"math"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"wishguard/internal/antibot/behavior"
	"wishguard/internal/antibot/config"
	"wishguard/internal/antibot/device"
	"wishguard/internal/antibot/ipreputation"
	"wishguard/internal/antibot/metrics"
	"wishguard/internal/antibot/models"
	audit "wishguard/pkg/platform/audit"
)

// IPChecker counts an attempt from the address and returns its verdict.
type IPChecker interface {
	Check(ctx context.Context, ip string) (*ipreputation.Verdict, error)
}

// DeviceTracker records a device sighting and returns the rescored device.
type DeviceTracker interface {
	Track(ctx context.Context, attrs models.DeviceAttributes, isAttempt bool) (*models.DeviceFingerprint, error)
}

// BehaviorAnalyzer scores and stores one interaction's telemetry.
type BehaviorAnalyzer interface {
	Analyze(ctx context.Context, in behavior.Input) (*models.BehaviorAnalysis, error)
}

// Request carries everything the aggregate check looks at. Telemetry is nil
// when the client sent none.
type Request struct {
	SessionID string
	IP        string
	Device    models.DeviceAttributes
	Telemetry *models.Telemetry
	IsAttempt bool
}

const (
	OutcomeAllow   = "allow"
	OutcomeCaptcha = "captcha"
	OutcomeBlock   = "block"
)

type Aggregator struct {
	ips      IPChecker
	devices  DeviceTracker
	behavior BehaviorAnalyzer
	cfg      config.AggregateConfig
	logger   *slog.Logger
	events   audit.Emitter
	metrics  *metrics.Metrics
	tracer   trace.Tracer
}

type Option func(*Aggregator)

func WithLogger(logger *slog.Logger) Option {
	return func(a *Aggregator) {
		a.logger = logger
	}
}

func WithConfig(cfg config.AggregateConfig) Option {
	return func(a *Aggregator) {
		a.cfg = cfg
	}
}

func WithAuditPublisher(events audit.Emitter) Option {
	return func(a *Aggregator) {
		a.events = events
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(a *Aggregator) {
		a.metrics = m
	}
}

func New(ips IPChecker, devices DeviceTracker, analyzer BehaviorAnalyzer, opts ...Option) (*Aggregator, error) {
	if ips == nil || devices == nil || analyzer == nil {
		return nil, errors.New("ip checker, device tracker and behavior analyzer are required")
	}
	a := &Aggregator{
		ips:      ips,
		devices:  devices,
		behavior: analyzer,
		cfg:      config.Default().Aggregate,
		tracer:   otel.Tracer("wishguard/antibot/risk"),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a, nil
}

type signals struct {
	ip       *ipreputation.Verdict
	device   *models.DeviceFingerprint
	behavior *models.BehaviorAnalysis
}

// Evaluate gathers all signals concurrently, then adds their contributions in
// a fixed order so blocked_reasons is stable.
func (a *Aggregator) Evaluate(ctx context.Context, req Request) (*models.Decision, error) {
	ctx, span := a.tracer.Start(ctx, "risk.Evaluate",
		trace.WithAttributes(attribute.Bool("telemetry", req.Telemetry != nil)))
	defer span.End()

	sig, err := a.gather(ctx, req)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "signal gathering failed")
		return nil, err
	}

	decision := a.combine(req, sig)
	span.SetAttributes(
		attribute.Float64("risk_score", decision.RiskScore),
		attribute.Bool("is_bot", decision.IsBot),
		attribute.Bool("require_captcha", decision.RequireCaptcha),
	)
	a.report(ctx, req, decision)
	return decision, nil
}

func (a *Aggregator) gather(ctx context.Context, req Request) (*signals, error) {
	g, gctx := errgroup.WithContext(ctx)
	sig := &signals{}

	g.Go(func() error {
		ctx, span := a.tracer.Start(gctx, "risk.ip")
		defer span.End()
		v, err := a.ips.Check(ctx, req.IP)
		if err != nil {
			return err
		}
		sig.ip = v
		return nil
	})

	g.Go(func() error {
		ctx, span := a.tracer.Start(gctx, "risk.device")
		defer span.End()
		fp, err := a.devices.Track(ctx, req.Device, req.IsAttempt)
		if err != nil {
			return err
		}
		sig.device = fp
		return nil
	})

	if req.Telemetry != nil {
		g.Go(func() error {
			ctx, span := a.tracer.Start(gctx, "risk.behavior")
			defer span.End()
			analysis, err := a.behavior.Analyze(ctx, behavior.Input{
				SessionID:       req.SessionID,
				IP:              req.IP,
				FingerprintHash: device.Fingerprint(req.Device),
				Telemetry:       *req.Telemetry,
			})
			if err != nil {
				return err
			}
			sig.behavior = analysis
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return sig, nil
}

func (a *Aggregator) combine(req Request, sig *signals) *models.Decision {
	d := &models.Decision{BlockedReasons: []string{}}

	if sig.ip != nil && !sig.ip.Allowed {
		d.IsBot = true
		d.RiskScore += a.cfg.BlockedIPWeight
		d.BlockedReasons = append(d.BlockedReasons, models.ReasonIPBlocked)
	}
	if sig.device != nil && sig.device.IsSuspicious {
		d.RiskScore += a.cfg.SuspiciousDeviceWeight
		d.BlockedReasons = append(d.BlockedReasons, models.ReasonDeviceSuspicious)
	}
	if sig.behavior != nil && !sig.behavior.IsHumanLike {
		d.RiskScore += math.Round(sig.behavior.BotProbability * a.cfg.BehaviorScale)
		d.BlockedReasons = append(d.BlockedReasons, models.ReasonBehavior)
	}
	if device.MatchesBotUserAgent(req.Device.UserAgent, a.cfg.BotUserAgents) {
		d.RiskScore += a.cfg.BotUserAgentWeight
		d.BlockedReasons = append(d.BlockedReasons, models.ReasonUserAgent)
	}

	switch {
	case d.RiskScore > a.cfg.BotThreshold:
		d.IsBot = true
	case d.RiskScore > a.cfg.CaptchaThreshold:
		d.RequireCaptcha = true
	}
	return d
}

func (a *Aggregator) report(ctx context.Context, req Request, d *models.Decision) {
	outcome := OutcomeAllow
	switch {
	case d.IsBot:
		outcome = OutcomeBlock
	case d.RequireCaptcha:
		outcome = OutcomeCaptcha
	}
	a.metrics.ObserveDecision(outcome)

	if a.logger != nil {
		a.logger.DebugContext(ctx, "bot check",
			"session_id", req.SessionID,
			"outcome", outcome,
			"risk_score", d.RiskScore,
			"reasons", d.BlockedReasons,
		)
	}
	if d.IsBot && a.events != nil {
		a.events.Emit(ctx, audit.SecurityEvent{
			Type:        audit.EventBotDetected,
			Description: "aggregate bot check rejected request",
			Details: map[string]string{
				"reasons": strings.Join(d.BlockedReasons, ","),
			},
		})
	}
}
