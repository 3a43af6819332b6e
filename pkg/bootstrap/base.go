package bootstrap

import (
	"context"
	"fmt"

	"safetyrelay/internal/broker"
	"safetyrelay/internal/config"
	"safetyrelay/internal/constants"
	"safetyrelay/internal/logger"
	"safetyrelay/pkg/tracing"
)

type Base struct {
	Config    *config.Config
	Logger    logger.Logger
	Publisher broker.Publisher
	Tracer    *tracing.TracerProvider
}

func NewBase(cfg *config.Config, log logger.Logger) *Base {
	return &Base{
		Config:    cfg,
		Logger:    log,
		Publisher: broker.NopPublisher(),
	}
}

func (b *Base) InitTracing() error {
	tp, err := tracing.Init(b.Config.Tracing, constants.ServiceName)
	if err != nil {
		return fmt.Errorf("failed to initialize tracing: %w", err)
	}
	b.Tracer = tp
	return nil
}

// InitBroker connects the delivery notice publisher. With no broker
// configured the no-op publisher stays in place.
func (b *Base) InitBroker() error {
	publisher, err := broker.NewPublisher(b.Config.Broker, b.Logger)
	if err != nil {
		return fmt.Errorf("failed to create publisher: %w", err)
	}
	b.Publisher = publisher
	b.Logger.Infow("Notice publisher ready", "broker", publisher.Name())
	return nil
}

func (b *Base) ShutdownBroker() []error {
	var errs []error

	if b.Publisher != nil {
		if err := b.Publisher.Close(); err != nil {
			errs = append(errs, fmt.Errorf("publisher close error: %w", err))
		}
	}

	return errs
}

func (b *Base) Shutdown(ctx context.Context, additionalShutdown func(ctx context.Context) []error) error {
	b.Logger.Info("Shutting down application...")

	var errs []error

	errs = append(errs, b.ShutdownBroker()...)

	if additionalShutdown != nil {
		errs = append(errs, additionalShutdown(ctx)...)
	}

	if b.Tracer != nil {
		if err := b.Tracer.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("tracer shutdown error: %w", err))
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("shutdown errors: %v", errs)
	}

	b.Logger.Info("Application exited successfully")
	return nil
}
