package broker

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"

	"safetyrelay/internal/config"
	"safetyrelay/internal/constants"
	"safetyrelay/internal/logger"
	"safetyrelay/pkg/metrics"
	"safetyrelay/pkg/models"
	"safetyrelay/pkg/tracing"
)

type NATSPublisher struct {
	conn    *nats.Conn
	subject string
	logger  logger.Logger
}

func NewNATSPublisher(cfg config.NATSConfig, log logger.Logger) (*NATSPublisher, error) {
	nc, err := nats.Connect(cfg.URL,
		nats.Name(constants.ServiceName),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(time.Second),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				log.Warnw("NATS disconnected", "error", err)
			}
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			log.Infow("NATS reconnected", "url", nc.ConnectedUrl())
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("connecting to NATS at %s: %w", cfg.URL, err)
	}
	return &NATSPublisher{conn: nc, subject: cfg.NoticeSubject, logger: log}, nil
}

func (p *NATSPublisher) Name() string {
	return constants.BrokerNATS
}

func (p *NATSPublisher) Publish(ctx context.Context, notice models.DeliveryNotice) error {
	data, err := json.Marshal(notice)
	if err != nil {
		return fmt.Errorf("marshaling notice: %w", err)
	}

	msg := nats.NewMsg(p.subject)
	msg.Data = data
	tracing.InjectNATSHeaders(ctx, msg)

	if err := p.conn.PublishMsg(msg); err != nil {
		metrics.NoticesPublishedTotal.WithLabelValues(p.Name(), "error").Inc()
		return fmt.Errorf("publishing to %s: %w", p.subject, err)
	}

	metrics.NoticesPublishedTotal.WithLabelValues(p.Name(), "ok").Inc()
	return nil
}

func (p *NATSPublisher) Close() error {
	return p.conn.Drain()
}
