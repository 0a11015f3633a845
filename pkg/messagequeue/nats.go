package messagequeue

import (
	"context"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
	"go.uber.org/zap"
)

// NATSConfig contains options for connecting to NATS.
type NATSConfig struct {
	URL  string
	Name string
}

// NATSService implements MessageQueue on a core NATS connection.
type NATSService struct {
	conn   *nats.Conn
	logger *zap.Logger
}

// NewNATSService connects to NATS. The connection reconnects forever in the
// background; publishes during an outage are buffered by the client.
func NewNATSService(cfg NATSConfig, logger *zap.Logger) (*NATSService, error) {
	name := cfg.Name
	if name == "" {
		name = "plansync"
	}
	conn, err := nats.Connect(cfg.URL,
		nats.Name(name),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				logger.Warn("NATS disconnected", zap.Error(err))
			}
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			logger.Info("NATS reconnected", zap.String("url", nc.ConnectedUrl()))
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("connect to nats: %w", err)
	}
	logger.Info("Successfully connected to NATS", zap.String("url", conn.ConnectedUrl()))
	return &NATSService{conn: conn, logger: logger}, nil
}

// Publish sends body on subject. ctx is checked before sending; core NATS
// publishes are fire-and-forget.
func (s *NATSService) Publish(ctx context.Context, subject string, body []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := s.conn.Publish(subject, body); err != nil {
		return fmt.Errorf("nats publish %s: %w", subject, err)
	}
	return nil
}

// Conn exposes the underlying connection (used by tests to subscribe).
func (s *NATSService) Conn() *nats.Conn {
	return s.conn
}

// Close drains pending messages and closes the connection.
func (s *NATSService) Close() error {
	return s.conn.Drain()
}
