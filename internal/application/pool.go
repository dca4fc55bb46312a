package application

import (
	"context"
	"log/slog"

	"github.com/voicevault/voicevault/internal/domain"
	"github.com/voicevault/voicevault/internal/ports"
)

// Pool holds records loaded from a slot until a live owner claims them.
// Entries start Pending and advance to Injected (claimed) or Fallback
// (administratively flushed); neither advance is ever reversed.
type Pool struct {
	store    ports.SlotStore
	roster   ports.Roster
	resolver *Resolver
	log      *slog.Logger

	slot    domain.SlotID
	loaded  bool
	entries map[domain.RecordID]*domain.PoolEntry
	// Original owner identifier -> pending record ids, for O(1) claims.
	byOwner map[domain.SessionID][]domain.RecordID

	// Claims made before the claimant's session identity existed; retried
	// by Tick until the identity appears or the owner leaves.
	deferred []deferredRewrite
}

type deferredRewrite struct {
	ref     domain.OwnerRef
	records []*domain.Record
}

func NewPool(store ports.SlotStore, roster ports.Roster, resolver *Resolver, log *slog.Logger) *Pool {
	if log == nil {
		log = slog.Default()
	}
	return &Pool{
		store:    store,
		roster:   roster,
		resolver: resolver,
		log:      log.With("component", "pool"),
		entries:  map[domain.RecordID]*domain.PoolEntry{},
		byOwner:  map[domain.SessionID][]domain.RecordID{},
	}
}

// Load populates the pool from a slot. Idempotent per slot: reloading the
// loaded slot is a no-op, loading a different slot resets everything
// first. Duplicate record identifiers are dropped, first write wins.
func (p *Pool) Load(ctx context.Context, slot domain.SlotID) {
	if p.loaded && p.slot == slot {
		return
	}
	if p.loaded {
		p.log.Info("slot switch, resetting pool", "from", p.slot, "to", slot)
		p.Reset()
	}

	records := p.store.Read(ctx, slot)
	duplicates := 0
	for i := range records {
		record := &records[i]
		if _, ok := p.entries[record.ID]; ok {
			duplicates++
			continue
		}
		p.entries[record.ID] = domain.NewPoolEntry(record)
		p.byOwner[record.OwnerID] = append(p.byOwner[record.OwnerID], record.ID)
	}

	p.resolver.SetSavedMapping(p.store.ReadMapping(ctx, slot))

	p.slot = slot
	p.loaded = true
	p.log.Info("pool loaded", "slot", slot, "pending", len(p.entries), "duplicates", duplicates)
}

func (p *Pool) Loaded() bool {
	return p.loaded
}

func (p *Pool) Slot() domain.SlotID {
	return p.slot
}

// Claim hands every pending record that matches the owner to the caller.
// Matching runs on two levels: the owner's current SessionID against the
// identifiers records were saved under, and the StableID bridge through
// the prior session's mapping. Claimed records are rewritten to the
// owner's current SessionID; when the owner has no session identity yet
// the rewrite is queued for Tick instead.
func (p *Pool) Claim(owner domain.Owner) []*domain.Record {
	matched := p.matchOwnerIDs(owner)
	if len(matched) == 0 {
		return nil
	}

	var claimed []*domain.Record
	for _, ownerID := range matched {
		for _, id := range p.byOwner[ownerID] {
			entry, ok := p.entries[id]
			if !ok || !entry.Pending() {
				continue
			}
			if err := entry.Inject(); err != nil {
				continue
			}
			claimed = append(claimed, entry.Record)
		}
		delete(p.byOwner, ownerID)
	}

	if len(claimed) == 0 {
		return nil
	}

	if owner.SessionID != "" {
		for _, record := range claimed {
			record.OwnerID = owner.SessionID
		}
	} else {
		p.deferred = append(p.deferred, deferredRewrite{ref: owner.Ref, records: claimed})
		p.log.Info("owner identity not ready, rewrite deferred", "ref", owner.Ref, "records", len(claimed))
	}

	p.log.Info("records claimed", "ref", owner.Ref, "records", len(claimed), "matched_owners", len(matched))
	return claimed
}

func (p *Pool) matchOwnerIDs(owner domain.Owner) []domain.SessionID {
	var matched []domain.SessionID

	// Level 1: the session identifier happened to survive the restart.
	if owner.SessionID != "" && p.hasPendingFor(owner.SessionID) {
		matched = append(matched, owner.SessionID)
	}

	// Level 2: bridge through the durable identifier.
	if stable, ok := p.resolver.ResolveStableID(owner); ok {
		if prior, ok := p.resolver.LookupPriorSessionID(stable); ok {
			if prior != owner.SessionID && p.hasPendingFor(prior) {
				matched = append(matched, prior)
			}
		}
	}

	return matched
}

func (p *Pool) hasPendingFor(ownerID domain.SessionID) bool {
	for _, id := range p.byOwner[ownerID] {
		if entry, ok := p.entries[id]; ok && entry.Pending() {
			return true
		}
	}
	return false
}

// Tick drains the deferred rewrite queue: entries whose owner left are
// dropped, entries whose owner now has a session identity are rewritten,
// the rest wait for the next tick.
func (p *Pool) Tick() {
	if len(p.deferred) == 0 {
		return
	}

	remaining := p.deferred[:0]
	for _, item := range p.deferred {
		owner, ok := p.roster.Find(item.ref)
		if !ok {
			p.log.Info("deferred rewrite dropped, owner gone", "ref", item.ref, "records", len(item.records))
			continue
		}
		if owner.SessionID == "" {
			remaining = append(remaining, item)
			continue
		}
		for _, record := range item.records {
			record.OwnerID = owner.SessionID
		}
		p.log.Info("deferred rewrite applied", "ref", item.ref, "records", len(item.records))
	}
	p.deferred = remaining
}

// ForceFallback flushes every remaining pending entry, for manual
// injection when no automatic match exists.
func (p *Pool) ForceFallback() []*domain.Record {
	var flushed []*domain.Record
	for _, entry := range p.entries {
		if !entry.Pending() {
			continue
		}
		if err := entry.ForceFallback(); err != nil {
			continue
		}
		flushed = append(flushed, entry.Record)
	}

	p.byOwner = map[domain.SessionID][]domain.RecordID{}
	if len(flushed) > 0 {
		p.log.Info("pending records flushed to fallback", "records", len(flushed))
	}
	return flushed
}

func (p *Pool) Counts() domain.PoolCounts {
	var counts domain.PoolCounts
	for _, entry := range p.entries {
		switch entry.State {
		case domain.StatePending:
			counts.Pending++
		case domain.StateInjected:
			counts.Injected++
		case domain.StateFallback:
			counts.Fallback++
		}
	}
	return counts
}

func (p *Pool) HasPending() bool {
	for _, entry := range p.entries {
		if entry.Pending() {
			return true
		}
	}
	return false
}

// Reset clears all pool state, including the resolver's saved mapping.
// Used on slot switches.
func (p *Pool) Reset() {
	p.entries = map[domain.RecordID]*domain.PoolEntry{}
	p.byOwner = map[domain.SessionID][]domain.RecordID{}
	p.deferred = nil
	p.slot = ""
	p.loaded = false
	p.resolver.Reset()
}
