//go:build integration

package audit_test

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/twmb/franz-go/pkg/kgo"

	"palisade/internal/audit"
	id "palisade/pkg/domain"
	"palisade/pkg/testutil/containers"
)

// TestMirrorDeliversCommittedRecords verifies the Kafka side of the audit
// trail: a mirrored record arrives on the topic keyed by person id with the
// stored fields intact.
func TestMirrorDeliversCommittedRecords(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	ctx := context.Background()
	broker := containers.NewRedpandaContainer(t)

	const topic = "palisade.audit"
	require.NoError(t, broker.CreateTopic(ctx, topic))

	logger := slog.New(slog.NewTextHandler(&bytes.Buffer{}, nil))
	store := audit.NewInMemoryStore()
	publisher := audit.NewPublisher(store,
		audit.WithKafka(broker.Client, topic),
		audit.WithLogger(logger),
	)

	personID := id.PersonID(uuid.New())
	record := audit.Record{
		ID:         id.AuditRecordID(uuid.New()),
		PersonID:   personID,
		Action:     audit.ActionUpdated,
		OldVersion: 1,
		NewVersion: 2,
		Diff: map[string]audit.FieldChange{
			"full_name": {Old: "Ahmed Khan", New: "Ahmed K."},
		},
		ActorID: "op-1",
		At:      time.Now().UTC().Truncate(time.Millisecond),
	}

	require.NoError(t, store.Append(ctx, record))
	publisher.Mirror(ctx, record)
	require.NoError(t, broker.Client.Flush(ctx))

	consumer, err := kgo.NewClient(
		kgo.SeedBrokers(broker.Broker),
		kgo.ConsumeTopics(topic),
		kgo.ConsumeResetOffset(kgo.NewOffset().AtStart()),
	)
	require.NoError(t, err)
	defer consumer.Close()

	pollCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()
	fetches := consumer.PollFetches(pollCtx)
	require.Empty(t, fetches.Errors())

	iter := fetches.RecordIter()
	require.False(t, iter.Done(), "expected one mirrored record")
	mirrored := iter.Next()

	assert.Equal(t, []byte(personID.String()), mirrored.Key)

	var decoded audit.Record
	require.NoError(t, json.Unmarshal(mirrored.Value, &decoded))
	assert.Equal(t, record.ID, decoded.ID)
	assert.Equal(t, record.PersonID, decoded.PersonID)
	assert.Equal(t, audit.ActionUpdated, decoded.Action)
	assert.Equal(t, int64(2), decoded.NewVersion)
	assert.Equal(t, record.Diff, decoded.Diff)
}

// TestMirrorKeysByPersonID verifies a person's records all land on one key
// so their trail stays ordered within a partition.
func TestMirrorKeysByPersonID(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	ctx := context.Background()
	broker := containers.NewRedpandaContainer(t)

	const topic = "palisade.audit.ordering"
	require.NoError(t, broker.CreateTopic(ctx, topic))

	logger := slog.New(slog.NewTextHandler(&bytes.Buffer{}, nil))
	publisher := audit.NewPublisher(audit.NewInMemoryStore(),
		audit.WithKafka(broker.Client, topic),
		audit.WithLogger(logger),
	)

	personID := id.PersonID(uuid.New())
	for i := int64(0); i < 3; i++ {
		publisher.Mirror(ctx, audit.Record{
			ID:         id.AuditRecordID(uuid.New()),
			PersonID:   personID,
			Action:     audit.ActionUpdated,
			OldVersion: i,
			NewVersion: i + 1,
			At:         time.Now().UTC(),
		})
	}
	require.NoError(t, broker.Client.Flush(ctx))

	consumer, err := kgo.NewClient(
		kgo.SeedBrokers(broker.Broker),
		kgo.ConsumeTopics(topic),
		kgo.ConsumeResetOffset(kgo.NewOffset().AtStart()),
	)
	require.NoError(t, err)
	defer consumer.Close()

	pollCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	var versions []int64
	for len(versions) < 3 {
		fetches := consumer.PollFetches(pollCtx)
		require.Empty(t, fetches.Errors())
		iter := fetches.RecordIter()
		for !iter.Done() {
			mirrored := iter.Next()
			require.Equal(t, []byte(personID.String()), mirrored.Key)
			var decoded audit.Record
			require.NoError(t, json.Unmarshal(mirrored.Value, &decoded))
			versions = append(versions, decoded.NewVersion)
		}
	}
	assert.Equal(t, []int64{1, 2, 3}, versions)
}
