//go:build integration

package containers

import (
	"context"
	"testing"

	tcredpanda "github.com/testcontainers/testcontainers-go/modules/redpanda"
	"github.com/twmb/franz-go/pkg/kadm"
	"github.com/twmb/franz-go/pkg/kgo"
)

// RedpandaContainer wraps a Kafka-compatible broker for audit-mirror tests.
type RedpandaContainer struct {
	Container *tcredpanda.Container
	Broker    string
	Client    *kgo.Client
	Admin     *kadm.Client
}

// NewRedpandaContainer starts a single-node Redpanda broker.
func NewRedpandaContainer(t *testing.T) *RedpandaContainer {
	t.Helper()

	ctx := context.Background()

	container, err := tcredpanda.Run(ctx, "docker.redpanda.com/redpandadata/redpanda:v24.3.1")
	if err != nil {
		t.Fatalf("failed to start redpanda container: %v", err)
	}

	broker, err := container.KafkaSeedBroker(ctx)
	if err != nil {
		_ = container.Terminate(ctx)
		t.Fatalf("failed to get redpanda seed broker: %v", err)
	}

	client, err := kgo.NewClient(kgo.SeedBrokers(broker))
	if err != nil {
		_ = container.Terminate(ctx)
		t.Fatalf("failed to connect kafka client: %v", err)
	}

	t.Cleanup(func() {
		client.Close()
		_ = container.Terminate(context.Background())
	})

	return &RedpandaContainer{
		Container: container,
		Broker:    broker,
		Client:    client,
		Admin:     kadm.NewClient(client),
	}
}

// CreateTopic provisions a single-partition topic.
func (r *RedpandaContainer) CreateTopic(ctx context.Context, topic string) error {
	_, err := r.Admin.CreateTopics(ctx, 1, 1, nil, topic)
	return err
}
