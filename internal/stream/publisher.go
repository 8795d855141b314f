package stream

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
	"github.com/rs/zerolog"

	"kuyayvault/internal/event"
	"kuyayvault/internal/observability"
)

const (
	// StreamName is the outbound JetStream stream for vault events.
	StreamName = "KUYAY_VAULT_EVENTS"

	subjectPrefix = "kuyay.vault.events"
)

// ConnectNATS connects to a NATS server and returns the JetStream context.
func ConnectNATS(url string) (*nats.Conn, jetstream.JetStream, error) {
	nc, err := nats.Connect(url,
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
	)
	if err != nil {
		return nil, nil, fmt.Errorf("connect nats: %w", err)
	}

	js, err := jetstream.New(nc)
	if err != nil {
		nc.Close()
		return nil, nil, fmt.Errorf("jetstream context: %w", err)
	}
	return nc, js, nil
}

// EnsureStream creates the outbound events stream if it does not exist.
func EnsureStream(ctx context.Context, js jetstream.JetStream) error {
	_, err := js.CreateOrUpdateStream(ctx, jetstream.StreamConfig{
		Name:      StreamName,
		Subjects:  []string{subjectPrefix + ".>"},
		Storage:   jetstream.FileStorage,
		Retention: jetstream.LimitsPolicy,
		MaxAge:    72 * time.Hour,
		Replicas:  1,
	})
	if err != nil {
		return fmt.Errorf("create outbound stream: %w", err)
	}
	return nil
}

// Publisher forwards committed vault events to NATS for downstream
// consumers. Hand-off from the controller is a non-blocking channel send:
// a full channel drops the event and counts it, since downstream consumers
// can always re-read the persisted event log.
type Publisher struct {
	js      jetstream.JetStream
	in      chan event.Envelope
	log     zerolog.Logger
	metrics *observability.Metrics
}

func NewPublisher(js jetstream.JetStream, log zerolog.Logger, metrics *observability.Metrics) *Publisher {
	return &Publisher{
		js:      js,
		in:      make(chan event.Envelope, 1024),
		log:     log,
		metrics: metrics,
	}
}

// Publish enqueues an envelope. Non-blocking; called by the controller with
// the vault lock held.
func (p *Publisher) Publish(env event.Envelope) {
	select {
	case p.in <- env:
	default:
		p.log.Warn().Int64("sequence", env.Sequence).Msg("publish channel full, event dropped")
		if p.metrics != nil {
			p.metrics.PublishDrops.Inc()
		}
	}
}

// Run drains the channel and publishes each event to
// kuyay.vault.events.{type}. Blocks until ctx is cancelled.
func (p *Publisher) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case env := <-p.in:
			if err := p.publish(ctx, env); err != nil {
				// Non-fatal: the persisted event log remains authoritative.
				p.log.Warn().Err(err).Int64("sequence", env.Sequence).Msg("outbound publish failed")
				if p.metrics != nil {
					p.metrics.PublishErrors.Inc()
				}
				continue
			}
			if p.metrics != nil {
				p.metrics.EventsPublished.Inc()
			}
		}
	}
}

func (p *Publisher) publish(ctx context.Context, env event.Envelope) error {
	data, err := json.Marshal(env)
	if err != nil {
		return fmt.Errorf("marshal envelope: %w", err)
	}

	subject := fmt.Sprintf("%s.%s", subjectPrefix, env.TypeName)
	_, err = p.js.Publish(ctx, subject, data)
	return err
}
