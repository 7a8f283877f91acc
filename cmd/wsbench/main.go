package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/dustin/go-humanize"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/torosent/wsbench/internal/config"
	"github.com/torosent/wsbench/internal/dashboard"
	"github.com/torosent/wsbench/internal/extractor"
	"github.com/torosent/wsbench/internal/metrics"
	"github.com/torosent/wsbench/internal/output"
	"github.com/torosent/wsbench/internal/runner"
	"github.com/torosent/wsbench/internal/threshold"
	"github.com/torosent/wsbench/internal/tracing"
	ws "github.com/torosent/wsbench/internal/websocket"
)

const (
	progressInterval = time.Second
	shutdownTimeout  = 5 * time.Second
)

func main() {
	if err := run(os.Args[1:], os.Stdout, os.Stderr); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run(args []string, stdout, stderr io.Writer) error {
	loader := config.NewLoader()
	cfg, err := loader.Load(args)
	if err != nil {
		if errors.Is(err, config.ErrHelpRequested) {
			return nil
		}
		return err
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	thresholds, err := threshold.ParseMultiple(cfg.Thresholds)
	if err != nil {
		return err
	}

	logger, err := newLogger(cfg.LogLevel, stderr)
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()
	for _, w := range cfg.Warnings() {
		logger.Warn(w)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	provider, err := tracing.Init(ctx, cfg.Tracing, tracing.WithLogger(logger))
	if err != nil {
		return err
	}
	defer func() {
		shutdownCtx, done := context.WithTimeout(context.Background(), shutdownTimeout)
		defer done()
		if err := provider.Shutdown(shutdownCtx); err != nil {
			logger.Warn("tracing shutdown failed", zap.Error(err))
		}
	}()

	dialCfg := ws.Config{
		URL:              cfg.Address,
		Headers:          makeHeaders(cfg.Headers),
		HandshakeTimeout: handshakeTimeout(cfg.HandshakeTimeout),
		WriteTimeout:     cfg.WriteTimeout,
	}
	if provider.ShouldPropagate() {
		dialCfg.InjectHeaders = tracing.InjectHTTPHeaders
	}

	payload, err := ws.NewTextPayload([]byte(cfg.Message))
	if err != nil {
		return err
	}

	var format extractor.Func
	if cfg.SampleJSONPath != "" {
		format, err = extractor.JSONPath(cfg.SampleJSONPath)
		if err != nil {
			return err
		}
	}

	counters := &metrics.Counters{}
	opts := runner.Options{
		Address:      cfg.Address,
		Connections:  cfg.Connections,
		Messages:     cfg.Messages,
		Payload:      payload,
		LogErrors:    cfg.LogErrors,
		SampleRate:   cfg.SampleRate,
		SampleFormat: format,
		SampleOutput: stdout,
		Rate:         cfg.Rate,
		Arrival:      toRunnerArrivalModel(cfg.Arrival),
		DrainTimeout: cfg.DrainTimeout,
		FailFast:     cfg.FailFast,
		Dialer:       runner.WebSocketDialer{Dialer: ws.NewDialer(dialCfg)},
		Counters:     counters,
		Logger:       logger,
		Tracer:       provider.Tracer(),
	}

	if cfg.MetricsAddr != "" {
		exporter := metrics.NewExporter()
		addr, err := exporter.Serve(cfg.MetricsAddr, func(err error) {
			logger.Error("metrics server failed", zap.Error(err))
		})
		if err != nil {
			return err
		}
		logger.Info("serving metrics", zap.String("addr", addr.String()))
		defer func() {
			shutdownCtx, done := context.WithTimeout(context.Background(), shutdownTimeout)
			defer done()
			_ = exporter.Shutdown(shutdownCtx)
		}()
		opts.Observer = exporter
	}

	switch {
	case cfg.Dashboard:
		// The dashboard owns the terminal; sampled frames are only counted.
		opts.SampleOutput = io.Discard
	case cfg.JSONOutput, cfg.YAMLOutput:
		// Keep stdout a single parseable document.
		opts.SampleOutput = stderr
	}

	r := runner.New(opts)

	stopLive := func() {}
	switch {
	case cfg.Dashboard:
		dash, err := dashboard.New(counters, dashboard.RunConfig{
			Address:     cfg.Address,
			Connections: cfg.Connections,
			Messages:    cfg.Messages,
			PayloadSize: humanize.Bytes(uint64(payload.Len())),
			Rate:        cfg.Rate,
			SampleRate:  cfg.SampleRate,
			FailFast:    cfg.FailFast,
			ConfigFile:  cfg.ConfigFile,
		}, cancel)
		if err != nil {
			return err
		}
		dash.Start()
		stopLive = dash.Stop
	case cfg.Progress:
		progress := output.NewProgressReporter(counters, cfg.Connections, progressInterval, stderr)
		progress.Start()
		stopLive = progress.Stop
	}

	report, err := r.Run(ctx)
	stopLive()
	if err != nil {
		return describeRunError(err)
	}

	results := threshold.NewEvaluator(thresholds).Evaluate(report)

	switch {
	case cfg.JSONOutput:
		if err := output.PrintJSONReport(stdout, report, results); err != nil {
			return err
		}
	case cfg.YAMLOutput:
		if err := output.PrintYAMLReport(stdout, report, results); err != nil {
			return err
		}
	default:
		output.PrintReport(stdout, report)
		output.PrintThresholds(stdout, results)
	}

	if !threshold.AllPassed(results) {
		failed := 0
		for _, res := range results {
			if !res.Pass {
				failed++
			}
		}
		return fmt.Errorf("%d of %d thresholds failed", failed, len(results))
	}
	if report.FailedConnections > 0 {
		return fmt.Errorf("%d of %d connections failed to establish", report.FailedConnections, report.Connections)
	}
	return nil
}

// describeRunError adds the phase to runner errors that do not carry one.
func describeRunError(err error) error {
	var setupErr *runner.SetupError
	var flushErr *runner.FlushError
	switch {
	case errors.As(err, &setupErr), errors.As(err, &flushErr):
		return err
	case errors.Is(err, context.Canceled):
		return fmt.Errorf("run interrupted: %w", err)
	default:
		return fmt.Errorf("run failed: %w", err)
	}
}

func newLogger(level string, w io.Writer) (*zap.Logger, error) {
	lvl, err := zapcore.ParseLevel(level)
	if err != nil {
		return nil, fmt.Errorf("log level: %w", err)
	}
	encCfg := zap.NewDevelopmentEncoderConfig()
	encCfg.TimeKey = ""
	core := zapcore.NewCore(zapcore.NewConsoleEncoder(encCfg), zapcore.Lock(zapcore.AddSync(w)), lvl)
	return zap.New(core).Named("wsbench"), nil
}

func makeHeaders(in map[string]string) http.Header {
	if len(in) == 0 {
		return nil
	}
	h := make(http.Header, len(in))
	for k, v := range in {
		h.Set(k, v)
	}
	return h
}

// handshakeTimeout maps the CLI meaning of zero (no timeout) onto the dialer,
// where zero selects the default and a negative value disables it.
func handshakeTimeout(d time.Duration) time.Duration {
	if d == 0 {
		return -1
	}
	return d
}

func toRunnerArrivalModel(model config.ArrivalModel) runner.ArrivalModel {
	switch strings.ToLower(string(model)) {
	case string(config.ArrivalModelPoisson):
		return runner.ArrivalModelPoisson
	default:
		return runner.ArrivalModelUniform
	}
}
