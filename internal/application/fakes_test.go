package application

import (
	"context"
	"time"

	"github.com/voicevault/voicevault/internal/domain"
	"github.com/voicevault/voicevault/internal/ports"
)

type fakeRoster struct {
	owners map[domain.OwnerRef]domain.Owner
	stable map[domain.OwnerRef]domain.StableID
}

func newFakeRoster() *fakeRoster {
	return &fakeRoster{
		owners: map[domain.OwnerRef]domain.Owner{},
		stable: map[domain.OwnerRef]domain.StableID{},
	}
}

func (r *fakeRoster) add(owner domain.Owner, stable domain.StableID) {
	r.owners[owner.Ref] = owner
	if stable != 0 {
		r.stable[owner.Ref] = stable
	}
}

func (r *fakeRoster) remove(ref domain.OwnerRef) {
	delete(r.owners, ref)
	delete(r.stable, ref)
}

func (r *fakeRoster) Owners() []domain.Owner {
	out := make([]domain.Owner, 0, len(r.owners))
	for _, owner := range r.owners {
		out = append(out, owner)
	}
	return out
}

func (r *fakeRoster) Find(ref domain.OwnerRef) (domain.Owner, bool) {
	owner, ok := r.owners[ref]
	return owner, ok
}

func (r *fakeRoster) StableID(ref domain.OwnerRef) (domain.StableID, bool) {
	stable, ok := r.stable[ref]
	return stable, ok
}

type fakeLocalIdentity struct {
	available bool
	stable    domain.StableID
}

func (l fakeLocalIdentity) Available() bool {
	return l.available
}

func (l fakeLocalIdentity) StableID() (domain.StableID, bool) {
	if !l.available || l.stable == 0 {
		return 0, false
	}
	return l.stable, true
}

// memStore is an in-memory ports.SlotStore for exercising the core without
// touching the filesystem.
type memStore struct {
	records  map[domain.SlotID][]domain.Record
	mappings map[domain.SlotID]domain.IdentityMapping
	writeErr error
	reads    int
}

func newMemStore() *memStore {
	return &memStore{
		records:  map[domain.SlotID][]domain.Record{},
		mappings: map[domain.SlotID]domain.IdentityMapping{},
	}
}

func (s *memStore) Write(_ context.Context, slot domain.SlotID, records []domain.Record, mapping domain.IdentityMapping) error {
	if s.writeErr != nil {
		return s.writeErr
	}
	s.records[slot] = append([]domain.Record(nil), records...)
	s.mappings[slot] = mapping.Clone()
	return nil
}

func (s *memStore) Read(_ context.Context, slot domain.SlotID) []domain.Record {
	s.reads++
	return append([]domain.Record(nil), s.records[slot]...)
}

func (s *memStore) ReadMapping(_ context.Context, slot domain.SlotID) domain.IdentityMapping {
	return s.mappings[slot].Clone()
}

func (s *memStore) Exists(slot domain.SlotID) bool {
	_, records := s.records[slot]
	_, mappings := s.mappings[slot]
	return records || mappings
}

func (s *memStore) Delete(slot domain.SlotID) error {
	delete(s.records, slot)
	delete(s.mappings, slot)
	return nil
}

func (s *memStore) List(_ context.Context) ([]domain.SlotInfo, error) {
	out := make([]domain.SlotInfo, 0, len(s.records))
	for slot, records := range s.records {
		out = append(out, domain.SlotInfo{ID: slot, Records: len(records)})
	}
	return out, nil
}

type fixedSessionClock struct {
	at time.Duration
}

func (c *fixedSessionClock) Elapsed() time.Duration {
	return c.at
}

var _ ports.Roster = (*fakeRoster)(nil)
var _ ports.LocalIdentity = fakeLocalIdentity{}
var _ ports.SlotStore = (*memStore)(nil)
var _ ports.SessionClock = (*fixedSessionClock)(nil)
