package audit

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/suite"

	id "palisade/pkg/domain"
)

type AuditStoreSuite struct {
	suite.Suite
	store *InMemoryStore
	ctx   context.Context
}

func TestAuditStoreSuite(t *testing.T) {
	suite.Run(t, new(AuditStoreSuite))
}

func (s *AuditStoreSuite) SetupTest() {
	s.store = NewInMemoryStore()
	s.ctx = context.Background()
}

func (s *AuditStoreSuite) newRecord(personID id.PersonID, oldVersion int64) Record {
	return Record{
		ID:         id.AuditRecordID(uuid.New()),
		PersonID:   personID,
		Action:     ActionUpdated,
		OldVersion: oldVersion,
		NewVersion: oldVersion + 1,
		Diff:       map[string]FieldChange{"name": {Old: "a", New: "b"}},
		At:         time.Now(),
	}
}

func (s *AuditStoreSuite) TestAppendAndList() {
	personID := id.PersonID(uuid.New())
	other := id.PersonID(uuid.New())

	s.Require().NoError(s.store.Append(s.ctx, s.newRecord(personID, 0)))
	s.Require().NoError(s.store.Append(s.ctx, s.newRecord(personID, 1)))
	s.Require().NoError(s.store.Append(s.ctx, s.newRecord(other, 0)))

	records, err := s.store.ListByPerson(s.ctx, personID)
	s.Require().NoError(err)
	s.Len(records, 2)
	s.Equal(int64(0), records[0].OldVersion)
	s.Equal(int64(1), records[0].NewVersion)
	s.Equal(int64(2), records[1].NewVersion)
}

func (s *AuditStoreSuite) TestListedRecordsAreCopies() {
	personID := id.PersonID(uuid.New())
	s.Require().NoError(s.store.Append(s.ctx, s.newRecord(personID, 3)))

	records, err := s.store.ListByPerson(s.ctx, personID)
	s.Require().NoError(err)
	records[0].Diff["name"] = FieldChange{Old: "tampered", New: "tampered"}

	again, err := s.store.ListByPerson(s.ctx, personID)
	s.Require().NoError(err)
	s.Equal("a", again[0].Diff["name"].Old)
}
