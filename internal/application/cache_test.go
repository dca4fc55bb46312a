package application

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/voicevault/voicevault/internal/domain"
)

func newTestCache(roster *fakeRoster) *Cache {
	return NewCache(NewResolver(roster, fakeLocalIdentity{}), nil)
}

func liveRecords(owner domain.SessionID, ids ...domain.RecordID) []*domain.Record {
	out := make([]*domain.Record, 0, len(ids))
	for _, id := range ids {
		out = append(out, &domain.Record{ID: id, OwnerID: owner})
	}
	return out
}

func TestCacheAbsorbSkipsAuthoritativeOwner(t *testing.T) {
	cache := newTestCache(newFakeRoster())

	cache.Absorb(liveRecords("sess-local", 1, 2), domain.Owner{Ref: 1, SessionID: "sess-local", Authoritative: true})

	assert.Zero(t, cache.Count())
	assert.Empty(t, cache.Mappings())
}

func TestCacheAbsorbDeduplicatesByIdentifier(t *testing.T) {
	roster := newFakeRoster()
	owner := domain.Owner{Ref: 2, SessionID: "sess-r"}
	roster.add(owner, 42)

	cache := newTestCache(roster)
	cache.Absorb(liveRecords("sess-r", 1, 2), owner)
	cache.Absorb(liveRecords("sess-r", 2, 3), owner)

	assert.Equal(t, 3, cache.Count())
	assert.Equal(t, domain.IdentityMapping{42: "sess-r"}, cache.Mappings())
}

func TestCacheAbsorbCopiesRecords(t *testing.T) {
	roster := newFakeRoster()
	owner := domain.Owner{Ref: 2, SessionID: "sess-r"}
	roster.add(owner, 42)

	live := liveRecords("sess-r", 1)
	live[0].Payload = []byte("opus")

	cache := newTestCache(roster)
	cache.Absorb(live, owner)

	// Mutating the live record after absorb must not touch the cache.
	live[0].OwnerID = "sess-mutated"
	live[0].Payload[0] = 'X'

	cached := cache.AllCached()
	require.Len(t, cached, 1)
	assert.Equal(t, domain.SessionID("sess-r"), cached[0].OwnerID)
	assert.Equal(t, []byte("opus"), cached[0].Payload)
}

func TestCacheDisconnectReconnectRoundTrip(t *testing.T) {
	roster := newFakeRoster()
	departed := domain.Owner{Ref: 2, SessionID: "sess-old"}
	roster.add(departed, 42)

	cache := newTestCache(roster)
	cache.Absorb(liveRecords("sess-old", 1, 2, 3), departed)
	roster.remove(2)

	// Same StableID, fresh numeric ref and session identity.
	returned := domain.Owner{Ref: 9, SessionID: "sess-new"}
	roster.add(returned, 42)

	claimed := cache.Reclaim(returned)
	require.Len(t, claimed, 3)
	for _, record := range claimed {
		assert.Equal(t, domain.SessionID("sess-new"), record.OwnerID)
	}

	assert.Zero(t, cache.Count())
	assert.Empty(t, cache.Mappings(), "consumed mapping entry must be removed")

	assert.Empty(t, cache.Reclaim(returned), "second reclaim finds nothing")
}

func TestCacheReclaimDirectSessionMatch(t *testing.T) {
	roster := newFakeRoster()
	owner := domain.Owner{Ref: 2, SessionID: "sess-same"}
	// No StableID resolvable; only the direct session identifier matches.
	roster.add(owner, 0)

	cache := newTestCache(roster)
	cache.Absorb(liveRecords("sess-same", 1), owner)

	claimed := cache.Reclaim(owner)
	require.Len(t, claimed, 1)
	assert.Equal(t, domain.RecordID(1), claimed[0].ID)
}

func TestCacheReclaimRemovesMappingEvenWithoutRecords(t *testing.T) {
	roster := newFakeRoster()
	owner := domain.Owner{Ref: 2, SessionID: "sess-old"}
	roster.add(owner, 42)

	cache := newTestCache(roster)
	cache.Absorb(nil, owner) // departure with zero unsaved records

	require.Equal(t, domain.IdentityMapping{42: "sess-old"}, cache.Mappings())

	returned := domain.Owner{Ref: 9, SessionID: "sess-new"}
	roster.add(returned, 42)

	assert.Empty(t, cache.Reclaim(returned))
	assert.Empty(t, cache.Mappings(), "stale mapping entry must not linger")
}

func TestCacheReclaimUnknownOwnerIsEmpty(t *testing.T) {
	cache := newTestCache(newFakeRoster())

	assert.Empty(t, cache.Reclaim(domain.Owner{Ref: 5, SessionID: "sess-x"}))
}

func TestCacheSurvivesSaveConsumption(t *testing.T) {
	roster := newFakeRoster()
	owner := domain.Owner{Ref: 2, SessionID: "sess-r"}
	roster.add(owner, 42)

	cache := newTestCache(roster)
	cache.Absorb(liveRecords("sess-r", 1), owner)

	// A save reads AllCached but does not clear the cache; the record
	// stays reclaimable afterwards.
	assert.Len(t, cache.AllCached(), 1)
	assert.Equal(t, 1, cache.Count())
}

func TestCacheReset(t *testing.T) {
	roster := newFakeRoster()
	owner := domain.Owner{Ref: 2, SessionID: "sess-r"}
	roster.add(owner, 42)

	cache := newTestCache(roster)
	cache.Absorb(liveRecords("sess-r", 1), owner)
	cache.Reset()

	assert.Zero(t, cache.Count())
	assert.Empty(t, cache.Mappings())
}
