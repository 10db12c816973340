package publisher

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/nats-io/nats.go"
	"go.uber.org/zap"

	"github.com/Checker-Finance/plumbing-feed/fred-adapter/internal/metrics"
	"github.com/Checker-Finance/plumbing-feed/pkg/model"
)

// jetStreamPublisher is the part of nats.JetStreamContext the publisher uses.
type jetStreamPublisher interface {
	PublishMsg(m *nats.Msg, opts ...nats.PubOpt) (*nats.PubAck, error)
}

// Publisher announces written snapshots on NATS JetStream.
type Publisher struct {
	nc      *nats.Conn
	js      jetStreamPublisher
	service string
	logger  *zap.Logger
}

// New creates a Publisher on nc. When stream is non-empty the stream is
// created for the snapshot subject if it does not exist yet.
func New(nc *nats.Conn, stream, service string, logger *zap.Logger) (*Publisher, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	js, err := nc.JetStream()
	if err != nil {
		return nil, fmt.Errorf("jetstream: %w", err)
	}
	if stream != "" {
		if _, err := js.StreamInfo(stream); err != nil {
			_, err = js.AddStream(&nats.StreamConfig{
				Name:     stream,
				Subjects: []string{"evt.fred.>"},
			})
			if err != nil {
				return nil, fmt.Errorf("ensure stream %s: %w", stream, err)
			}
			logger.Info("publisher.stream_created", zap.String("stream", stream))
		}
	}
	return &Publisher{nc: nc, js: js, service: service, logger: logger}, nil
}

// PublishSnapshot emits a SnapshotEvent on model.SubjectSnapshotWritten.
func (p *Publisher) PublishSnapshot(ctx context.Context, evt model.SnapshotEvent) error {
	subject := model.SubjectSnapshotWritten

	data, err := json.Marshal(evt)
	if err != nil {
		metrics.IncError("publisher", "marshal_failed")
		return fmt.Errorf("marshal snapshot event: %w", err)
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	msg := &nats.Msg{
		Subject: subject,
		Data:    data,
		Header: nats.Header{
			"event_type":   []string{"fred.snapshot.written"},
			"run_id":       []string{evt.RunID.String()},
			"job":          []string{evt.Job},
			"service":      []string{p.service},
			"content_type": []string{"application/json"},
			// JetStream dedup window keys on this header.
			nats.MsgIdHdr: []string{evt.ID.String()},
		},
	}

	if _, err := p.js.PublishMsg(msg); err != nil {
		p.logger.Warn("publisher.publish_failed",
			zap.String("subject", subject),
			zap.String("job", evt.Job),
			zap.Error(err))
		metrics.IncNATSMessage(subject, "error")
		return fmt.Errorf("publish %s: %w", subject, err)
	}

	p.logger.Info("publisher.publish_success",
		zap.String("subject", subject),
		zap.String("job", evt.Job),
		zap.String("series", strings.Join(evt.Series, ",")))
	metrics.IncNATSMessage(subject, "ok")
	return nil
}

// Close drains and closes the underlying connection.
func (p *Publisher) Close() {
	if p.nc != nil && p.nc.IsConnected() {
		_ = p.nc.Drain()
	}
}
