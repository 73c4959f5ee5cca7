package archive

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
)

// StreamName is the JetStream stream that captures archived webhooks.
const StreamName = "KOMMO_WEBHOOKS"

type publisher interface {
	PublishMsg(ctx context.Context, msg *nats.Msg, opts ...jetstream.PublishOpt) (*jetstream.PubAck, error)
}

// NATSArchive publishes the raw body of every delivery to a JetStream subject.
type NATSArchive struct {
	js      publisher
	conn    *nats.Conn
	subject string
}

// DialNATS connects to the server and makes sure the stream exists.
func DialNATS(ctx context.Context, url, subject string, logger *slog.Logger) (*NATSArchive, error) {
	nc, err := nats.Connect(url,
		nats.Name("lexia"),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				logger.Warn("nats disconnected", "err", err)
			}
		}),
		nats.ReconnectHandler(func(c *nats.Conn) {
			logger.Info("nats reconnected", "url", c.ConnectedUrl())
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("nats connect: %w", err)
	}

	js, err := jetstream.New(nc)
	if err != nil {
		nc.Close()
		return nil, fmt.Errorf("jetstream: %w", err)
	}

	if _, err := js.CreateOrUpdateStream(ctx, jetstream.StreamConfig{
		Name:     StreamName,
		Subjects: []string{subject},
		MaxAge:   30 * 24 * time.Hour,
	}); err != nil {
		nc.Close()
		return nil, fmt.Errorf("ensure stream %s: %w", StreamName, err)
	}

	logger.Info("nats archive ready", "url", url, "subject", subject, "stream", StreamName)
	return &NATSArchive{js: js, conn: nc, subject: subject}, nil
}

func (a *NATSArchive) Archive(ctx context.Context, e Entry) error {
	msg := nats.NewMsg(a.subject)
	msg.Data = e.Raw
	if e.ContentType != "" {
		msg.Header.Set("Content-Type", e.ContentType)
	}
	if !e.ReceivedAt.IsZero() {
		msg.Header.Set("Received-At", e.ReceivedAt.UTC().Format(time.RFC3339Nano))
	}
	if _, err := a.js.PublishMsg(ctx, msg); err != nil {
		return fmt.Errorf("publish %s: %w", a.subject, err)
	}
	return nil
}

// Close drains the connection.
func (a *NATSArchive) Close() error {
	if a.conn == nil {
		return nil
	}
	return a.conn.Drain()
}
