// Package coordinator orchestrates the local inference client and the remote
// fallback provider. It owns the background health probe that keeps the
// monitor fresh while no requests are flowing, and the warm-up sequence run
// at startup.
package coordinator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"
	"golang.org/x/sync/errgroup"

	"llmbridge/internal/client"
	"llmbridge/internal/fallback"
	"llmbridge/internal/health"
	"llmbridge/internal/resilience/retry"
	"llmbridge/internal/transport"
	"llmbridge/pkg/config"
)

// LocalClient is the part of the resilient client the coordinator uses.
type LocalClient interface {
	Send(ctx context.Context, prompt, model string, callerTimeout time.Duration) client.Result
	Monitor() *health.Monitor
}

// Config holds coordinator configuration.
type Config struct {
	// ProbeSchedule is a cron expression for the background health probe.
	ProbeSchedule string

	// ProbeTimeout bounds a single probe round trip.
	ProbeTimeout time.Duration

	// ProbeEnabled turns the background probe on or off.
	ProbeEnabled bool

	// WarmUpTimeout bounds the whole warm-up sequence.
	WarmUpTimeout time.Duration
}

// LoadConfig loads coordinator configuration from environment variables.
//
// Environment variables:
//   - PROBE_SCHEDULE: Cron expression (default: "@every 1m")
//   - PROBE_TIMEOUT: Probe round-trip budget (default: 2s)
//   - PROBE_ENABLED: Enable the background probe (default: true)
//   - WARMUP_TIMEOUT: Warm-up sequence budget (default: 15s)
func LoadConfig() Config {
	return Config{
		ProbeSchedule: config.GetEnvString("PROBE_SCHEDULE", "@every 1m"),
		ProbeTimeout:  config.GetEnvDuration("PROBE_TIMEOUT", 2*time.Second),
		ProbeEnabled:  config.GetEnvBool("PROBE_ENABLED", true),
		WarmUpTimeout: config.GetEnvDuration("WARMUP_TIMEOUT", 15*time.Second),
	}
}

// Response is the outcome of a coordinated chat request.
type Response struct {
	// Text is the generated response.
	Text string

	// Method identifies the path that produced the response:
	// "<transport>_retry_<n>" for the local endpoint, "fallback_<provider>"
	// for the remote provider.
	Method string

	// Duration is the total wall-clock time of the request.
	Duration time.Duration
}

// Coordinator routes chat requests local-first with remote fallback.
type Coordinator struct {
	local    LocalClient
	fallback fallback.ChatService
	cfg      Config
	baseURL  string
	model    string
	logger   *slog.Logger
	cron     *cron.Cron
}

// New creates a coordinator. The fallback service may be a Disabled provider
// when no remote API is configured.
func New(cfg Config, local LocalClient, fb fallback.ChatService, baseURL, model string, logger *slog.Logger) *Coordinator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Coordinator{
		local:    local,
		fallback: fb,
		cfg:      cfg,
		baseURL:  baseURL,
		model:    model,
		logger:   logger,
	}
}

// Chat sends the prompt to the local endpoint first and falls back to the
// remote provider when the local path could not produce a response. When the
// fallback is disabled, the local failure is returned as-is.
func (c *Coordinator) Chat(ctx context.Context, prompt, model string, callerTimeout time.Duration) (Response, error) {
	start := time.Now()

	result := c.local.Send(ctx, prompt, model, callerTimeout)
	if result.Success {
		return Response{
			Text:     result.Response,
			Method:   result.MethodDescriptor,
			Duration: time.Since(start),
		}, nil
	}

	c.logger.Warn("local inference failed, trying fallback",
		slog.String("descriptor", result.MethodDescriptor),
		slog.String("provider", c.fallback.Provider()),
		slog.Any("error", result.Err))

	text, err := c.fallback.Chat(ctx, prompt)
	if err != nil {
		if errors.Is(err, fallback.ErrDisabled) {
			return Response{Duration: time.Since(start)}, result.Err
		}
		return Response{Duration: time.Since(start)},
			fmt.Errorf("local failed (%v); fallback failed: %w", result.Err, err)
	}

	return Response{
		Text:     text,
		Method:   "fallback_" + c.fallback.Provider(),
		Duration: time.Since(start),
	}, nil
}

// StartProbes schedules the background health probe. It is a no-op when the
// probe is disabled by configuration.
func (c *Coordinator) StartProbes() error {
	if !c.cfg.ProbeEnabled {
		c.logger.Info("background probe disabled")
		return nil
	}

	c.cron = cron.New()
	_, err := c.cron.AddFunc(c.cfg.ProbeSchedule, func() {
		c.runProbe(context.Background())
	})
	if err != nil {
		return fmt.Errorf("failed to schedule probe: %w", err)
	}

	c.cron.Start()
	c.logger.Info("background probe started",
		slog.String("schedule", c.cfg.ProbeSchedule),
		slog.Duration("timeout", c.cfg.ProbeTimeout))
	return nil
}

// StopProbes stops the probe scheduler and waits for a running probe to end.
func (c *Coordinator) StopProbes() {
	if c.cron == nil {
		return
	}
	<-c.cron.Stop().Done()
	c.logger.Info("background probe stopped")
}

// runProbe performs one availability check against the local endpoint and
// feeds the outcome into the health monitor. A cheap probe succeeding is how
// an unhealthy window drains back to healthy without user traffic.
func (c *Coordinator) runProbe(ctx context.Context) {
	start := time.Now()

	err := retry.WithBackoff(ctx, retry.ProbeConfig(), func() error {
		_, probeErr := transport.Probe(ctx, c.baseURL, c.cfg.ProbeTimeout)
		return probeErr
	})

	latency := time.Since(start)
	monitor := c.local.Monitor()

	if err != nil {
		monitor.RecordFailure("probe_failed")
		c.logger.Warn("health probe failed",
			slog.Duration("latency", latency),
			slog.Any("error", err))
		return
	}

	monitor.RecordSuccess(latency)
	c.logger.Debug("health probe succeeded", slog.Duration("latency", latency))
}

// WarmUp primes the local endpoint: it checks availability and issues a tiny
// generation so the model is loaded into memory before real traffic arrives.
// Warm-up failures are reported but non-fatal; the health window captures
// them either way.
func (c *Coordinator) WarmUp(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, c.cfg.WarmUpTimeout)
	defer cancel()

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		models, err := transport.Probe(ctx, c.baseURL, c.cfg.ProbeTimeout)
		if err != nil {
			return fmt.Errorf("availability probe: %w", err)
		}
		c.logger.Info("local endpoint reachable", slog.Int("models", len(models)))
		return nil
	})

	g.Go(func() error {
		result := c.local.Send(ctx, "Hi", c.model, c.cfg.WarmUpTimeout)
		if !result.Success {
			return fmt.Errorf("warm-up generation: %w", result.Err)
		}
		c.logger.Info("model warmed up",
			slog.String("method", result.MethodDescriptor),
			slog.Duration("latency", result.TotalLatency))
		return nil
	})

	if err := g.Wait(); err != nil {
		c.logger.Warn("warm-up incomplete", slog.Any("error", err))
		return err
	}
	return nil
}

// ResetConnection clears the health window, forcing full retry budgets and
// base timeouts on the next request. Intended for operator use after the
// local endpoint has been restarted.
func (c *Coordinator) ResetConnection() {
	c.local.Monitor().Reset()
	c.logger.Info("health window reset")
}
