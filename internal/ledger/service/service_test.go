package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/suite"

	"palisade/internal/ledger/models"
	"palisade/internal/ledger/store/event"
	id "palisade/pkg/domain"
	dErrors "palisade/pkg/domain-errors"
)

type stubPersons struct {
	known map[id.PersonID]bool
}

func (r *stubPersons) Exists(_ context.Context, personID id.PersonID) (bool, error) {
	return r.known[personID], nil
}

type stubGates struct {
	nodes map[string]id.NodeID
}

func (r *stubGates) ResolveGateDevice(_ context.Context, serial string) (id.NodeID, error) {
	nodeID, ok := r.nodes[serial]
	if !ok {
		return id.NodeID{}, dErrors.New(dErrors.CodeNotFound, "unknown device")
	}
	return nodeID, nil
}

type LedgerServiceSuite struct {
	suite.Suite
	service *Service
	persons *stubPersons
	gates   *stubGates
	ctx     context.Context
	nodeID  id.NodeID
}

func TestLedgerServiceSuite(t *testing.T) {
	suite.Run(t, new(LedgerServiceSuite))
}

func (s *LedgerServiceSuite) SetupTest() {
	s.persons = &stubPersons{known: make(map[id.PersonID]bool)}
	s.nodeID = id.NodeID(uuid.New())
	s.gates = &stubGates{nodes: map[string]id.NodeID{"GATE-001": s.nodeID}}
	s.service = New(event.NewInMemory(), s.persons, s.gates)
	s.ctx = context.Background()
}

func (s *LedgerServiceSuite) knownPerson() id.PersonID {
	personID := id.PersonID(uuid.New())
	s.persons.known[personID] = true
	return personID
}

func (s *LedgerServiceSuite) request(requestID string, personID id.PersonID) models.Request {
	return models.Request{
		RequestID:    requestID,
		PersonID:     personID.String(),
		DeviceSerial: "GATE-001",
		Method:       models.MethodFace,
		MatchType:    models.MatchMobileAuto,
		Direction:    models.DirectionIn,
		Confidence:   0.97,
		OccurredAt:   time.Date(2025, 6, 1, 8, 30, 0, 0, time.UTC),
	}
}

func (s *LedgerServiceSuite) TestRecord() {
	s.Run("records a valid event and resolves the gate node", func() {
		personID := s.knownPerson()
		recorded, replayed, err := s.service.Record(s.ctx, s.request("req-1", personID))
		s.Require().NoError(err)
		s.False(replayed)
		s.Equal(personID, recorded.PersonID)
		s.Equal(s.nodeID, recorded.NodeID)
		s.False(recorded.ID.IsNil())
	})

	s.Run("replay returns the original event regardless of payload", func() {
		personID := s.knownPerson()
		first, _, err := s.service.Record(s.ctx, s.request("req-2", personID))
		s.Require().NoError(err)

		// Retry with a different direction and even an invalid confidence.
		retry := s.request("req-2", personID)
		retry.Direction = models.DirectionOut
		retry.Confidence = 7
		second, replayed, err := s.service.Record(s.ctx, retry)
		s.Require().NoError(err)
		s.True(replayed)
		s.Equal(first.ID, second.ID)
		s.Equal(models.DirectionIn, second.Direction)
	})

	s.Run("rejects a missing request_id", func() {
		req := s.request("", s.knownPerson())
		_, _, err := s.service.Record(s.ctx, req)
		s.Require().Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeValidation))
	})

	s.Run("rejects an out-of-range confidence", func() {
		req := s.request("req-3", s.knownPerson())
		req.Confidence = 1.5
		_, _, err := s.service.Record(s.ctx, req)
		s.Require().Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeValidation))
	})

	s.Run("rejects an unknown person", func() {
		req := s.request("req-4", id.PersonID(uuid.New()))
		_, _, err := s.service.Record(s.ctx, req)
		s.Require().Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeForeignKey))
	})

	s.Run("rejects a device that does not resolve to a gate node", func() {
		req := s.request("req-5", s.knownPerson())
		req.DeviceSerial = "UNKNOWN-99"
		_, _, err := s.service.Record(s.ctx, req)
		s.Require().Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeForeignKey))
	})
}

// TestConcurrentRecord verifies first-write-wins: of N racing writers with
// the same request_id exactly one inserts and all converge on one event.
func (s *LedgerServiceSuite) TestConcurrentRecord() {
	personID := s.knownPerson()

	const goroutines = 16
	var wg sync.WaitGroup
	events := make([]*models.Event, goroutines)
	replays := make([]bool, goroutines)

	for i := 0; i < goroutines; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			recorded, replayed, err := s.service.Record(s.ctx, s.request("req-race", personID))
			s.NoError(err)
			events[i] = recorded
			replays[i] = replayed
		}(i)
	}
	wg.Wait()

	inserts := 0
	for i := 0; i < goroutines; i++ {
		s.Require().NotNil(events[i])
		s.Equal(events[0].ID, events[i].ID)
		if !replays[i] {
			inserts++
		}
	}
	s.Equal(1, inserts)
}

func (s *LedgerServiceSuite) TestHistory() {
	personID := s.knownPerson()
	for _, requestID := range []string{"h-1", "h-2", "h-3"} {
		_, _, err := s.service.Record(s.ctx, s.request(requestID, personID))
		s.Require().NoError(err)
	}

	byPerson, err := s.service.HistoryByPerson(s.ctx, personID, 2)
	s.Require().NoError(err)
	s.Len(byPerson, 2)

	byNode, err := s.service.HistoryByNode(s.ctx, s.nodeID, time.Time{}, 0)
	s.Require().NoError(err)
	s.Len(byNode, 3)
}

func (s *LedgerServiceSuite) TestGetUnknownEvent() {
	_, err := s.service.Get(s.ctx, id.EventID(uuid.New()))
	s.Require().Error(err)
	s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
}
