// Package main provides a CLI command for resilient local-first chat.
// Usage: llmbridge-chat "prompt" [--model NAME] [--timeout 30s] [--output json]
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"time"

	"llmbridge/internal/client"
	"llmbridge/internal/coordinator"
	"llmbridge/internal/fallback"
	"llmbridge/internal/health"
	"llmbridge/internal/observability/logging"
	"llmbridge/internal/transport"
)

// ChatOutput represents the JSON output format for chat results.
type ChatOutput struct {
	Prompt     string `json:"prompt"`
	Response   string `json:"response"`
	Method     string `json:"method"`
	DurationMs int64  `json:"duration_ms"`
	Health     string `json:"health"`
}

func main() {
	var (
		model         string
		callerTimeout time.Duration
		outputFormat  string
		warmUp        bool
		serveMetrics  bool
	)

	flag.StringVar(&model, "model", "", "Model name (default: LOCAL_LLM_MODEL)")
	flag.DurationVar(&callerTimeout, "timeout", 0, "Per-attempt timeout ceiling (0 = adaptive)")
	flag.StringVar(&outputFormat, "output", "text", "Output format: text or json")
	flag.BoolVar(&warmUp, "warmup", false, "Warm up the local model before sending")
	flag.BoolVar(&serveMetrics, "metrics", false, "Expose Prometheus metrics while running")
	flag.Parse()

	args := flag.Args()
	if len(args) == 0 {
		fmt.Fprintln(os.Stderr, "Error: Prompt is required")
		fmt.Fprintln(os.Stderr, "")
		fmt.Fprintln(os.Stderr, "Usage: llmbridge-chat \"prompt\" [--model NAME] [--timeout 30s] [--output json]")
		fmt.Fprintln(os.Stderr, "")
		fmt.Fprintln(os.Stderr, "Examples:")
		fmt.Fprintln(os.Stderr, "  llmbridge-chat \"Explain goroutines\"")
		fmt.Fprintln(os.Stderr, "  llmbridge-chat \"Summarize this\" --model qwen2.5:3b --timeout 20s")
		fmt.Fprintln(os.Stderr, "  llmbridge-chat \"What is a channel?\" --output json")
		os.Exit(1)
	}
	prompt := args[0]

	// JSON logs when the output is machine-consumed, readable text on
	// stderr for interactive runs.
	logger := logging.NewTextLogger()
	if outputFormat == "json" || serveMetrics {
		logger = logging.NewLogger()
	}
	slog.SetDefault(logger)

	cfg := client.LoadConfig()
	if err := cfg.Validate(); err != nil {
		logger.Error("invalid configuration", slog.Any("error", err))
		fmt.Fprintf(os.Stderr, "Error: Invalid configuration: %v\n", err)
		os.Exit(1)
	}

	monitor := health.NewMonitor(cfg.Health, health.NewPrometheusMetrics())

	transports := buildTransports(cfg, logger)
	localClient := client.New(cfg, monitor, transports, client.NewSlogObserver(logger))

	fb, err := fallback.NewFromEnv()
	if err != nil {
		logger.Error("failed to configure fallback provider", slog.Any("error", err))
		fmt.Fprintf(os.Stderr, "Error: Failed to configure fallback provider: %v\n", err)
		os.Exit(1)
	}

	coordCfg := coordinator.LoadConfig()
	coord := coordinator.New(coordCfg, localClient, fb, cfg.BaseURL, cfg.Model, logger)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := coord.StartProbes(); err != nil {
		logger.Error("invalid probe schedule", slog.Any("error", err))
		fmt.Fprintf(os.Stderr, "Error: Invalid probe schedule: %v\n", err)
		os.Exit(1)
	}
	defer coord.StopProbes()

	if serveMetrics {
		startMetricsServer(ctx, logger, monitor, coord.ResetConnection)
	}

	if warmUp {
		if err := coord.WarmUp(ctx); err != nil {
			logger.Warn("continuing without warm-up", slog.Any("error", err))
		}
	}

	resp, err := coord.Chat(ctx, prompt, model, callerTimeout)
	if err != nil {
		logger.Error("chat failed", slog.Any("error", err))
		fmt.Fprintf(os.Stderr, "Error: Chat failed: %v\n", err)
		fmt.Fprintf(os.Stderr, "Endpoint health: %s\n", monitor.Summary())
		os.Exit(1)
	}

	if outputFormat == "json" {
		outputJSON(prompt, resp, monitor)
	} else {
		outputText(resp, monitor)
	}
}

// buildTransports assembles the transport chain: the unix socket first when
// configured (it is cheaper), then TCP.
func buildTransports(cfg client.Config, logger *slog.Logger) []transport.Transport {
	var transports []transport.Transport

	if cfg.SocketPath != "" {
		transports = append(transports, transport.NewUnixSocketTransport(cfg.SocketPath))
		logger.Info("unix socket transport configured", slog.String("path", cfg.SocketPath))
	}

	transports = append(transports, transport.NewHTTPTransport(cfg.BaseURL, cfg.ConnectTimeout))
	return transports
}

// outputText prints the chat result in human-readable format.
func outputText(resp coordinator.Response, monitor *health.Monitor) {
	fmt.Printf("%s\n\n", resp.Text)
	fmt.Printf("[method=%s duration=%s %s]\n", resp.Method, resp.Duration.Round(time.Millisecond), monitor.Summary())
}

// outputJSON prints the chat result in JSON format.
func outputJSON(prompt string, resp coordinator.Response, monitor *health.Monitor) {
	output := ChatOutput{
		Prompt:     prompt,
		Response:   resp.Text,
		Method:     resp.Method,
		DurationMs: resp.Duration.Milliseconds(),
		Health:     monitor.Summary(),
	}

	encoder := json.NewEncoder(os.Stdout)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(output); err != nil {
		fmt.Fprintf(os.Stderr, "Error: Failed to encode output: %v\n", err)
		os.Exit(1)
	}
}
