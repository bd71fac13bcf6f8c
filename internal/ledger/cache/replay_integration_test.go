//go:build integration

package cache_test

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"palisade/internal/ledger/cache"
	"palisade/internal/ledger/models"
	platformredis "palisade/internal/platform/redis"
	id "palisade/pkg/domain"
	"palisade/pkg/testutil/containers"
)

func newReplayCache(t *testing.T, ttl time.Duration) *cache.Replay {
	rc := containers.NewRedisContainer(t)
	return cache.NewReplay(&platformredis.Client{Client: rc.Client}, ttl)
}

func sampleEvent(requestID string) *models.Event {
	now := time.Now().UTC().Truncate(time.Millisecond)
	return &models.Event{
		ID:           id.EventID(uuid.New()),
		RequestID:    requestID,
		PersonID:     id.PersonID(uuid.New()),
		NodeID:       id.NodeID(uuid.New()),
		DeviceSerial: "GATE-001",
		Method:       models.MethodFace,
		MatchType:    models.MatchMobileAuto,
		Direction:    models.DirectionIn,
		Confidence:   0.9,
		OccurredAt:   now,
		RecordedAt:   now,
	}
}

func TestReplayRoundTrip(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	ctx := context.Background()
	replay := newReplayCache(t, time.Minute)

	event := sampleEvent("req-cache-1")
	require.NoError(t, replay.Put(ctx, event))

	cached, err := replay.Get(ctx, "req-cache-1")
	require.NoError(t, err)
	require.NotNil(t, cached)
	assert.Equal(t, event.ID, cached.ID)
	assert.Equal(t, event.RequestID, cached.RequestID)
	assert.Equal(t, event.Confidence, cached.Confidence)
}

func TestReplayMissReturnsNil(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	replay := newReplayCache(t, time.Minute)

	cached, err := replay.Get(context.Background(), "never-recorded")
	require.NoError(t, err)
	assert.Nil(t, cached)
}

func TestReplayEntriesExpire(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	ctx := context.Background()
	replay := newReplayCache(t, 100*time.Millisecond)

	require.NoError(t, replay.Put(ctx, sampleEvent("req-ttl")))
	time.Sleep(300 * time.Millisecond)

	cached, err := replay.Get(ctx, "req-ttl")
	require.NoError(t, err)
	assert.Nil(t, cached)
}
