package application

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/voicevault/voicevault/internal/domain"
)

func newTestPool(store *memStore, roster *fakeRoster) *Pool {
	resolver := NewResolver(roster, fakeLocalIdentity{})
	return NewPool(store, roster, resolver, nil)
}

func TestPoolLoadPopulatesPendingEntries(t *testing.T) {
	store := newMemStore()
	store.records["save-1"] = []domain.Record{
		{ID: 1, OwnerID: "sess-a"},
		{ID: 2, OwnerID: "sess-a"},
		{ID: 3, OwnerID: "sess-b"},
	}

	pool := newTestPool(store, newFakeRoster())
	pool.Load(context.Background(), "save-1")

	counts := pool.Counts()
	assert.Equal(t, 3, counts.Pending)
	assert.Zero(t, counts.Injected)
	assert.True(t, pool.HasPending())
}

func TestPoolLoadIsIdempotentPerSlot(t *testing.T) {
	store := newMemStore()
	store.records["save-1"] = []domain.Record{{ID: 1, OwnerID: "sess-a"}}

	pool := newTestPool(store, newFakeRoster())
	pool.Load(context.Background(), "save-1")
	pool.Load(context.Background(), "save-1")

	assert.Equal(t, 1, store.reads, "second load of the same slot must not hit the store")
	assert.Equal(t, 1, pool.Counts().Pending)
}

func TestPoolLoadDifferentSlotResetsFirst(t *testing.T) {
	store := newMemStore()
	store.records["save-1"] = []domain.Record{{ID: 1, OwnerID: "sess-a"}}
	store.records["save-2"] = []domain.Record{{ID: 9, OwnerID: "sess-z"}}
	store.mappings["save-1"] = domain.IdentityMapping{42: "sess-a"}

	pool := newTestPool(store, newFakeRoster())
	pool.Load(context.Background(), "save-1")
	pool.Load(context.Background(), "save-2")

	assert.Equal(t, domain.SlotID("save-2"), pool.Slot())
	assert.Equal(t, 1, pool.Counts().Pending)
	_, ok := pool.resolver.LookupPriorSessionID(42)
	assert.False(t, ok, "saved mapping of the previous slot must be gone")
}

func TestPoolLoadDropsDuplicateIdentifiers(t *testing.T) {
	store := newMemStore()
	store.records["save-1"] = []domain.Record{
		{ID: 1, OwnerID: "sess-a", Payload: []byte("first")},
		{ID: 1, OwnerID: "sess-b", Payload: []byte("second")},
	}

	pool := newTestPool(store, newFakeRoster())
	pool.Load(context.Background(), "save-1")

	require.Equal(t, 1, pool.Counts().Pending)
	claimed := pool.Claim(domain.Owner{Ref: 1, SessionID: "sess-a"})
	require.Len(t, claimed, 1)
	assert.Equal(t, []byte("first"), claimed[0].Payload, "first write wins")
}

func TestPoolClaimDirectMatch(t *testing.T) {
	store := newMemStore()
	store.records["save-1"] = []domain.Record{
		{ID: 1, OwnerID: "sess-a"},
		{ID: 2, OwnerID: "sess-b"},
	}

	pool := newTestPool(store, newFakeRoster())
	pool.Load(context.Background(), "save-1")

	claimed := pool.Claim(domain.Owner{Ref: 1, SessionID: "sess-a"})
	require.Len(t, claimed, 1)
	assert.Equal(t, domain.RecordID(1), claimed[0].ID)
	assert.Equal(t, domain.SessionID("sess-a"), claimed[0].OwnerID)

	counts := pool.Counts()
	assert.Equal(t, 1, counts.Pending)
	assert.Equal(t, 1, counts.Injected)
}

func TestPoolClaimStableIDBridge(t *testing.T) {
	store := newMemStore()
	store.records["save-1"] = []domain.Record{{ID: 1, OwnerID: "sessA"}}
	store.mappings["save-1"] = domain.IdentityMapping{42: "sessA"}

	roster := newFakeRoster()
	owner := domain.Owner{Ref: 7, SessionID: "sessB"}
	roster.add(owner, 42)

	pool := newTestPool(store, roster)
	pool.Load(context.Background(), "save-1")

	claimed := pool.Claim(owner)
	require.Len(t, claimed, 1)
	assert.Equal(t, domain.SessionID("sessB"), claimed[0].OwnerID,
		"claimed record must carry the current session identity")
}

func TestPoolClaimNoMatchLeavesPending(t *testing.T) {
	store := newMemStore()
	store.records["save-1"] = []domain.Record{{ID: 1, OwnerID: "sess-a"}}

	pool := newTestPool(store, newFakeRoster())
	pool.Load(context.Background(), "save-1")

	assert.Empty(t, pool.Claim(domain.Owner{Ref: 2, SessionID: "sess-other"}))
	assert.Equal(t, 1, pool.Counts().Pending)
}

func TestPoolClaimSecondClaimReturnsNothing(t *testing.T) {
	store := newMemStore()
	store.records["save-1"] = []domain.Record{{ID: 1, OwnerID: "sess-a"}}

	pool := newTestPool(store, newFakeRoster())
	pool.Load(context.Background(), "save-1")

	require.Len(t, pool.Claim(domain.Owner{Ref: 1, SessionID: "sess-a"}), 1)
	assert.Empty(t, pool.Claim(domain.Owner{Ref: 1, SessionID: "sess-a"}))
}

func TestPoolClaimDefersRewriteUntilIdentityAppears(t *testing.T) {
	store := newMemStore()
	store.records["save-1"] = []domain.Record{{ID: 1, OwnerID: "sessA"}}
	store.mappings["save-1"] = domain.IdentityMapping{42: "sessA"}

	roster := newFakeRoster()
	owner := domain.Owner{Ref: 7} // no session identity yet
	roster.add(owner, 42)

	pool := newTestPool(store, roster)
	pool.Load(context.Background(), "save-1")

	claimed := pool.Claim(owner)
	require.Len(t, claimed, 1)
	assert.Equal(t, domain.SessionID("sessA"), claimed[0].OwnerID, "rewrite must wait for identity")

	// Identity still missing: queue entry survives the tick.
	pool.Tick()
	assert.Equal(t, domain.SessionID("sessA"), claimed[0].OwnerID)

	roster.add(domain.Owner{Ref: 7, SessionID: "sessB"}, 42)
	pool.Tick()
	assert.Equal(t, domain.SessionID("sessB"), claimed[0].OwnerID)

	// Queue drained; further ticks change nothing.
	pool.Tick()
	assert.Equal(t, domain.SessionID("sessB"), claimed[0].OwnerID)
}

func TestPoolTickDropsEntriesForDepartedOwners(t *testing.T) {
	store := newMemStore()
	store.records["save-1"] = []domain.Record{{ID: 1, OwnerID: "sessA"}}
	store.mappings["save-1"] = domain.IdentityMapping{42: "sessA"}

	roster := newFakeRoster()
	owner := domain.Owner{Ref: 7}
	roster.add(owner, 42)

	pool := newTestPool(store, roster)
	pool.Load(context.Background(), "save-1")

	claimed := pool.Claim(owner)
	require.Len(t, claimed, 1)

	roster.remove(7)
	pool.Tick()

	// Owner gone: entry dropped, identifier stays whatever matching set.
	assert.Equal(t, domain.SessionID("sessA"), claimed[0].OwnerID)
	assert.Empty(t, pool.deferred)
}

func TestPoolForceFallback(t *testing.T) {
	store := newMemStore()
	store.records["save-1"] = []domain.Record{
		{ID: 1, OwnerID: "sess-a"},
		{ID: 2, OwnerID: "sess-b"},
	}

	pool := newTestPool(store, newFakeRoster())
	pool.Load(context.Background(), "save-1")

	require.Len(t, pool.Claim(domain.Owner{Ref: 1, SessionID: "sess-a"}), 1)

	flushed := pool.ForceFallback()
	require.Len(t, flushed, 1)
	assert.Equal(t, domain.RecordID(2), flushed[0].ID)

	counts := pool.Counts()
	assert.Zero(t, counts.Pending)
	assert.Equal(t, 1, counts.Injected)
	assert.Equal(t, 1, counts.Fallback)
	assert.False(t, pool.HasPending())

	assert.Empty(t, pool.ForceFallback(), "nothing left to flush")
}

func TestPoolEmptySlotIsSafe(t *testing.T) {
	pool := newTestPool(newMemStore(), newFakeRoster())
	pool.Load(context.Background(), "never-saved")

	assert.Zero(t, pool.Counts().Total())
	assert.Empty(t, pool.Claim(domain.Owner{Ref: 1, SessionID: "sess-a"}))
	assert.Empty(t, pool.ForceFallback())
}
