package observability

import (
	"context"
	"errors"
	"fmt"

	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"

	"github.com/kbukum/runemaster/component"
	"github.com/kbukum/runemaster/logger"
)

// Component owns the tracer and meter providers for the process lifetime.
type Component struct {
	tracing TracerConfig
	metrics MeterConfig
	log     *logger.Logger

	tp *sdktrace.TracerProvider
	mp *sdkmetric.MeterProvider
}

var (
	_ component.Component   = (*Component)(nil)
	_ component.Describable = (*Component)(nil)
)

// NewComponent creates the telemetry component. Disabled sections are
// skipped at Start.
func NewComponent(tracing TracerConfig, metrics MeterConfig, log *logger.Logger) *Component {
	if log == nil {
		log = logger.Nop()
	}
	return &Component{tracing: tracing, metrics: metrics, log: log.WithComponent("telemetry")}
}

func (c *Component) Name() string { return "telemetry" }

// Start installs the enabled providers.
func (c *Component) Start(ctx context.Context) error {
	if c.tracing.Enabled {
		tp, err := InitTracer(ctx, &c.tracing, c.log)
		if err != nil {
			return err
		}
		c.tp = tp
	}
	if c.metrics.Enabled {
		mp, err := InitMeter(ctx, &c.metrics, c.log)
		if err != nil {
			return err
		}
		c.mp = mp
	}
	return nil
}

// Stop flushes and shuts down the providers.
func (c *Component) Stop(ctx context.Context) error {
	var errs []error
	if c.tp != nil {
		if err := c.tp.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("tracer shutdown: %w", err))
		}
		c.tp = nil
	}
	if c.mp != nil {
		if err := c.mp.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("meter shutdown: %w", err))
		}
		c.mp = nil
	}
	return errors.Join(errs...)
}

func (c *Component) Health(_ context.Context) component.Health {
	return component.Health{Name: c.Name(), Status: component.StatusHealthy}
}

func (c *Component) Describe() component.Description {
	return component.Description{
		Name:    "Telemetry",
		Type:    "telemetry",
		Details: fmt.Sprintf("tracing=%t metrics=%t endpoint=%s", c.tracing.Enabled, c.metrics.Enabled, c.tracing.Endpoint),
	}
}
