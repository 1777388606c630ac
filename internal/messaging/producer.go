package messaging

import (
	"context"
	"log/slog"

	"school-directory/internal/events"

	"github.com/nats-io/nats.go"
)

// Producer publishes school events on a single NATS subject.
type Producer struct {
	conn    *nats.Conn
	subject string
	logger  *slog.Logger
}

func NewProducer(url string, subject string, logger *slog.Logger) (*Producer, error) {
	conn, err := nats.Connect(url,
		nats.Name("school-directory"),
		nats.MaxReconnects(-1),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			logger.Warn("NATS disconnected", "error", err)
		}),
		nats.ReconnectHandler(func(c *nats.Conn) {
			logger.Info("NATS reconnected", "url", c.ConnectedUrl())
		}),
	)
	if err != nil {
		return nil, err
	}

	logger.Info("NATS producer initialized", "url", url, "subject", subject)
	return &Producer{conn: conn, subject: subject, logger: logger}, nil
}

// SendMessage publishes value as JSON. The event type travels in a header and
// the message key becomes Nats-Msg-Id so a JetStream stream can drop duplicates.
func (p *Producer) SendMessage(ctx context.Context, value interface{}) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	encoded, err := events.Encode(value)
	if err != nil {
		return err
	}

	msg := nats.NewMsg(p.subject)
	msg.Data = encoded.Payload
	if encoded.Type != "" {
		msg.Header.Set(events.HeaderEventType, encoded.Type)
	}
	if encoded.Key != "" {
		msg.Header.Set(nats.MsgIdHdr, encoded.Key)
	}

	if err := p.conn.PublishMsg(msg); err != nil {
		p.logger.ErrorContext(ctx, "failed to publish event", "subject", p.subject, "error", err)
		return err
	}

	p.logger.DebugContext(ctx, "event published", "subject", p.subject, "type", encoded.Type, "key", encoded.Key)
	return nil
}

// Ping reports whether the connection to the server is up.
func (p *Producer) Ping() error {
	if !p.conn.IsConnected() {
		return nats.ErrConnectionClosed
	}
	return nil
}

// Close flushes pending publishes before closing.
func (p *Producer) Close() error {
	if err := p.conn.Drain(); err != nil {
		p.conn.Close()
		return err
	}
	return nil
}
