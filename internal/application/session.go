package application

import (
	"context"
	"log/slog"
	"sort"

	"github.com/voicevault/voicevault/internal/domain"
	"github.com/voicevault/voicevault/internal/ports"
)

// Session is the one context object the host drives. It owns the pool, the
// disconnected cache, the resolver and the live owners' record
// collections, and runs everything on the host's single thread of control:
// discrete owner/save/load callbacks plus a per-tick maintenance call.
//
// Nothing in here is fatal. Store failures are logged and degrade to "no
// records this session"; they never reach the host as errors.
type Session struct {
	store  ports.SlotStore
	roster ports.Roster
	clock  ports.SessionClock
	log    *slog.Logger

	resolver *Resolver
	pool     *Pool
	cache    *Cache

	slot domain.SlotID
	live map[domain.OwnerRef][]*domain.Record
}

func NewSession(store ports.SlotStore, roster ports.Roster, local ports.LocalIdentity, clock ports.SessionClock, log *slog.Logger) *Session {
	if log == nil {
		log = slog.Default()
	}
	if clock == nil {
		clock = ports.NewSessionClock()
	}

	resolver := NewResolver(roster, local)
	return &Session{
		store:    store,
		roster:   roster,
		clock:    clock,
		log:      log.With("component", "session"),
		resolver: resolver,
		pool:     NewPool(store, roster, resolver, log),
		cache:    NewCache(resolver, log),
		live:     map[domain.OwnerRef][]*domain.Record{},
	}
}

// LoadSlot makes slot the current one and primes the pool from it. A
// different slot than the loaded one resets all session state first.
func (s *Session) LoadSlot(ctx context.Context, slot domain.SlotID) {
	if err := slot.Validate(); err != nil {
		s.log.Warn("load rejected", "slot", slot, "error", err)
		return
	}
	if s.slot != "" && s.slot != slot {
		s.Reset()
	}
	s.slot = slot
	if !s.store.Exists(slot) {
		s.log.Info("slot has no saved data", "slot", slot)
	}
	s.pool.Load(ctx, slot)
}

// OwnerArrived claims pooled and cached records for the owner and appends
// them, deduplicated by identifier, to its live collection. Playback
// windows are retimed to the current session clock before insertion.
func (s *Session) OwnerArrived(ctx context.Context, owner domain.Owner) {
	if s.slot != "" {
		s.pool.Load(ctx, s.slot) // no-op after the first arrival
	}

	incoming := append(s.pool.Claim(owner), s.cache.Reclaim(owner)...)
	if len(incoming) == 0 {
		return
	}

	seen := map[domain.RecordID]struct{}{}
	for _, record := range s.live[owner.Ref] {
		seen[record.ID] = struct{}{}
	}

	now := s.clock.Elapsed()
	added := 0
	for _, record := range incoming {
		if _, ok := seen[record.ID]; ok {
			continue
		}
		seen[record.ID] = struct{}{}
		record.RetimeTo(now)
		s.live[owner.Ref] = append(s.live[owner.Ref], record)
		added++
	}

	s.log.Info("records restored to owner", "ref", owner.Ref, "records", added)
}

// OwnerDeparted absorbs the owner's live records into the disconnected
// cache before the host tears the collection down.
func (s *Session) OwnerDeparted(owner domain.Owner) {
	s.cache.Absorb(s.live[owner.Ref], owner)
	delete(s.live, owner.Ref)
}

// Save persists the merged record set (live owners plus cache) and a fresh
// identity mapping to the slot. Returns the number of records written;
// zero with a log line on failure.
func (s *Session) Save(ctx context.Context, slot domain.SlotID) int {
	seen := map[domain.RecordID]struct{}{}
	var records []domain.Record

	refs := make([]domain.OwnerRef, 0, len(s.live))
	for ref := range s.live {
		refs = append(refs, ref)
	}
	sort.Slice(refs, func(i, j int) bool { return refs[i] < refs[j] })

	for _, ref := range refs {
		for _, record := range s.live[ref] {
			if _, ok := seen[record.ID]; ok {
				continue
			}
			seen[record.ID] = struct{}{}
			records = append(records, *record)
		}
	}
	for _, record := range s.cache.AllCached() {
		if _, ok := seen[record.ID]; ok {
			continue
		}
		seen[record.ID] = struct{}{}
		records = append(records, *record)
	}

	mapping := domain.IdentityMapping{}
	for _, owner := range s.roster.Owners() {
		if owner.SessionID == "" {
			continue
		}
		if stable, ok := s.resolver.ResolveStableID(owner); ok {
			mapping[stable] = owner.SessionID
		}
	}
	mapping.MergeMissing(s.cache.Mappings())

	if err := s.store.Write(ctx, slot, records, mapping); err != nil {
		s.log.Warn("save failed", "slot", slot, "error", err)
		return 0
	}
	return len(records)
}

// DeleteSlot removes the slot from disk and resets session state when the
// deleted slot is the loaded one.
func (s *Session) DeleteSlot(slot domain.SlotID) {
	if err := s.store.Delete(slot); err != nil {
		s.log.Warn("slot delete failed", "slot", slot, "error", err)
	}
	if slot == s.slot {
		s.Reset()
	}
}

// Tick runs the per-frame maintenance work: retrying deferred owner
// identifier rewrites.
func (s *Session) Tick() {
	s.pool.Tick()
}

// Reset clears every map the session owns. Tied to slot switches.
func (s *Session) Reset() {
	s.pool.Reset()
	s.cache.Reset()
	s.resolver.Reset()
	s.live = map[domain.OwnerRef][]*domain.Record{}
	s.slot = ""
}

func (s *Session) Pool() *Pool {
	return s.pool
}

func (s *Session) Cache() *Cache {
	return s.cache
}

// LiveRecords returns the owner's live collection.
func (s *Session) LiveRecords(ref domain.OwnerRef) []*domain.Record {
	return s.live[ref]
}
