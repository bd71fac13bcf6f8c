package audit

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/twmb/franz-go/pkg/kgo"

	id "palisade/pkg/domain"
)

// Publisher fronts the audit trail for readers and mirrors committed records
// to Kafka for downstream compliance consumers. The durable row written
// inside the mutation transaction is the source of truth; mirroring is
// best-effort and never blocks or fails the mutation.
type Publisher struct {
	store  Store
	kafka  *kgo.Client
	topic  string
	logger *slog.Logger
}

type PublisherOption func(*Publisher)

// WithKafka enables mirroring to the given topic. A nil client disables it.
func WithKafka(client *kgo.Client, topic string) PublisherOption {
	return func(p *Publisher) {
		p.kafka = client
		p.topic = topic
	}
}

func WithLogger(logger *slog.Logger) PublisherOption {
	return func(p *Publisher) {
		p.logger = logger
	}
}

func NewPublisher(store Store, opts ...PublisherOption) *Publisher {
	p := &Publisher{store: store, logger: slog.Default()}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// List returns the audit trail for one person.
func (p *Publisher) List(ctx context.Context, personID id.PersonID) ([]Record, error) {
	return p.store.ListByPerson(ctx, personID)
}

// Mirror asynchronously publishes a committed record to Kafka, keyed by
// person id so a person's trail stays ordered within a partition.
func (p *Publisher) Mirror(ctx context.Context, record Record) {
	if p == nil || p.kafka == nil {
		return
	}
	payload, err := json.Marshal(record)
	if err != nil {
		p.logger.ErrorContext(ctx, "audit mirror marshal failed",
			"record_id", record.ID.String(),
			"error", err,
		)
		return
	}
	p.kafka.Produce(ctx, &kgo.Record{
		Topic: p.topic,
		Key:   []byte(record.PersonID.String()),
		Value: payload,
	}, func(_ *kgo.Record, err error) {
		if err != nil {
			p.logger.Error("audit mirror publish failed",
				"record_id", record.ID.String(),
				"error", err,
			)
		}
	})
}
