// Package telemetry wires the logger, tracer and metrics client shared by every kamisync
// component.
package telemetry

import (
	"context"
	"io"
	"time"

	ddstatsd "github.com/DataDog/datadog-go/v5/statsd"
	"github.com/rotisserie/eris"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"

	"github.com/argus-labs/kamisync/pkg/telemetry/posthog"
	"github.com/argus-labs/kamisync/pkg/telemetry/sentry"
)

const sentryFlushTimeout = 5 * time.Second

type Telemetry struct {
	Logger      zerolog.Logger
	Tracer      trace.Tracer
	Statsd      ddstatsd.ClientInterface
	serviceName string
	posthog     *posthog.Client

	shutdown func(context.Context) error
}

// New loads the telemetry config from the environment, applies opts on top and sets up logging,
// tracing and metrics.
func New(opts Options) (Telemetry, error) {
	return newTelemetry(opts, nil)
}

func newTelemetry(opts Options, out io.Writer) (Telemetry, error) {
	config, err := loadConfig()
	if err != nil {
		return Telemetry{}, eris.Wrap(err, "failed to load telemetry config")
	}

	options := newDefaultOptions()
	config.applyToOptions(&options)
	options.apply(opts)
	if err := options.validate(); err != nil {
		return Telemetry{}, eris.Wrap(err, "invalid telemetry options")
	}

	logger := newLogger(options, out)

	tracer, shutdown, err := setupOpenTelemetry(context.Background(), options)
	if err != nil {
		return Telemetry{}, eris.Wrap(err, "failed to setup tracing")
	}

	statsd, err := newStatsd(options)
	if err != nil {
		_ = shutdown(context.Background())
		return Telemetry{}, err
	}

	if err := sentry.New(options.SentryOptions); err != nil {
		_ = shutdown(context.Background())
		_ = statsd.Close()
		return Telemetry{}, err
	}

	ph, err := posthog.New(options.PosthogOptions)
	if err != nil {
		_ = shutdown(context.Background())
		_ = statsd.Close()
		return Telemetry{}, err
	}

	return Telemetry{
		Logger:      logger,
		Tracer:      tracer,
		Statsd:      statsd,
		serviceName: options.ServiceName,
		posthog:     ph,
		shutdown: func(ctx context.Context) error {
			if cerr := statsd.Close(); cerr != nil {
				logger.Warn().Err(cerr).Msg("failed to close statsd client")
			}
			if cerr := ph.Close(); cerr != nil {
				logger.Warn().Err(cerr).Msg("failed to close posthog client")
			}
			sentry.Shutdown(ctx, sentryFlushTimeout)
			return shutdown(ctx)
		},
	}, nil
}

// Nop returns telemetry that discards logs, traces and metrics.
func Nop() Telemetry {
	return Telemetry{
		Logger:      zerolog.Nop(),
		Tracer:      noop.NewTracerProvider().Tracer("nop"),
		Statsd:      &ddstatsd.NoOpClient{},
		serviceName: "nop",
		posthog:     &posthog.Client{},
	}
}

// Shutdown flushes pending spans and metrics.
func (t *Telemetry) Shutdown(ctx context.Context) error {
	if t.shutdown != nil {
		return t.shutdown(ctx)
	}
	return nil
}

// GetLogger returns a component-specific logger.
func (t *Telemetry) GetLogger(component string) zerolog.Logger {
	return t.Logger.With().Str("component", t.serviceName+"."+component).Logger()
}

// GetLoggerWithTrace returns a component-specific logger enriched with trace context.
func (t *Telemetry) GetLoggerWithTrace(ctx context.Context, component string) zerolog.Logger {
	span := trace.SpanFromContext(ctx)

	logger := t.Logger.With().Str("component", t.serviceName+"."+component)

	if span.IsRecording() {
		spanCtx := span.SpanContext()
		logger = logger.
			Str("trace_id", spanCtx.TraceID().String()).
			Str("span_id", spanCtx.SpanID().String())
	}

	return logger.Logger()
}

// CaptureException reports a handled error to Sentry. It is a no-op without a DSN.
func (t *Telemetry) CaptureException(ctx context.Context, err error) {
	sentry.CaptureException(ctx, err)
}

// CaptureEvent sends an analytics event to PostHog. It is a no-op without an API key, and delivery
// failures are only logged.
func (t *Telemetry) CaptureEvent(ctx context.Context, event string, props map[string]any) {
	if err := t.posthog.CaptureEvent(ctx, event, props); err != nil {
		t.Logger.Warn().Err(err).Str("event", event).Msg("failed to capture event")
	}
}
