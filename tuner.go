// Package tuner wires the fine-tuning service from a Config. The cmd and
// tunerd packages share it.
package tuner

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"os"

	"github.com/absmach/tuner/pkg/archive"
	"github.com/absmach/tuner/pkg/dataset"
	"github.com/absmach/tuner/pkg/hub"
	"github.com/absmach/tuner/pkg/jaeger"
	"github.com/absmach/tuner/pkg/mqtt"
	"github.com/absmach/tuner/pkg/prometheus"
	"github.com/absmach/tuner/pkg/storage"
	"github.com/absmach/tuner/trainer"
	"github.com/absmach/tuner/trainer/middleware"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
)

const SvcName = "tuner"

// NewLogger builds the JSON logger for cfg.LogLevel and installs it as
// the default logger.
func NewLogger(level string) (*slog.Logger, error) {
	var l slog.Level
	if err := l.UnmarshalText([]byte(level)); err != nil {
		return nil, fmt.Errorf("failed to parse log level: %w", err)
	}
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: l,
	}))
	slog.SetDefault(logger)

	return logger, nil
}

// Runtime is a wired service and everything that must be released with it.
type Runtime struct {
	Service    trainer.Service
	InstanceID string

	closers []func(context.Context) error
}

func (rt *Runtime) Close(ctx context.Context) error {
	var errs []error
	for i := len(rt.closers) - 1; i >= 0; i-- {
		if err := rt.closers[i](ctx); err != nil {
			errs = append(errs, err)
		}
	}

	return errors.Join(errs...)
}

// NewRuntime opens storage, the model hub, the MQTT publisher and the
// tracer described by cfg and wraps the service in logging, tracing and
// metrics middleware. The training gauges are registered with the default
// Prometheus registry, so call it once per process.
func NewRuntime(ctx context.Context, cfg Config, logger *slog.Logger) (*Runtime, error) {
	rt := &Runtime{InstanceID: cfg.InstanceID}
	if rt.InstanceID == "" {
		rt.InstanceID = uuid.NewString()
	}

	tp, err := newTracerProvider(ctx, cfg, rt)
	if err != nil {
		return nil, err
	}
	tracer := tp.Tracer(SvcName)

	repos, err := storage.NewRepositories(cfg.Storage)
	if err != nil {
		return nil, errors.Join(fmt.Errorf("failed to open %s storage: %w", cfg.Storage.Type, err), rt.Close(ctx))
	}
	rt.closers = append(rt.closers, func(context.Context) error { return repos.Close() })

	h, err := hub.New(cfg.Hub)
	if err != nil {
		return nil, errors.Join(err, rt.Close(ctx))
	}

	publisher := mqtt.NewNoopPublisher()
	if cfg.MQTT.Enabled() {
		mqttCfg := cfg.MQTT
		if mqttCfg.ClientID == "" {
			mqttCfg.ClientID = SvcName + "-" + rt.InstanceID
		}
		ps, err := mqtt.NewPubSub(mqttCfg, logger)
		if err != nil {
			return nil, errors.Join(fmt.Errorf("failed to initialize mqtt pubsub: %w", err), rt.Close(ctx))
		}
		rt.closers = append(rt.closers, ps.Disconnect)
		publisher = ps
	}

	svc := trainer.NewService(
		repos.Runs,
		archive.NewExtractor(),
		dataset.NewLoader(),
		h,
		publisher,
		trainer.NewTrainingMetrics(SvcName),
		logger,
	)
	svc = middleware.Logging(logger, svc)
	svc = middleware.Tracing(tracer, svc)
	counter, latency := prometheus.MakeMetrics(SvcName, "api")
	svc = middleware.Metrics(counter, latency, svc)
	rt.Service = svc

	return rt, nil
}

func newTracerProvider(ctx context.Context, cfg Config, rt *Runtime) (trace.TracerProvider, error) {
	if cfg.OTELURL == "" {
		return noop.NewTracerProvider(), nil
	}

	u, err := url.Parse(cfg.OTELURL)
	if err != nil {
		return nil, fmt.Errorf("invalid otel url: %w", err)
	}
	tp, err := jaeger.NewProvider(ctx, SvcName, *u, rt.InstanceID, cfg.TraceRatio)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize opentelemetry: %w", err)
	}
	rt.closers = append(rt.closers, tp.Shutdown)

	return tp, nil
}
