package application

import (
	"log/slog"

	"github.com/voicevault/voicevault/internal/domain"
)

// Cache holds records of owners who left the session before a save. The
// owner's live collection is torn down with its connection; without this
// cache, anything recorded since the last save would be lost even if the
// owner reconnects minutes later.
//
// Entries stay cached after a save on purpose: a record cached then saved
// remains reclaimable later in the same session.
type Cache struct {
	resolver *Resolver
	log      *slog.Logger

	records map[domain.RecordID]*domain.Record
	// StableID -> SessionID observed at departure time, kept apart from
	// the saved mapping so it can be merged at save time or consumed at
	// reclaim time.
	mapping domain.IdentityMapping
}

func NewCache(resolver *Resolver, log *slog.Logger) *Cache {
	if log == nil {
		log = slog.Default()
	}
	return &Cache{
		resolver: resolver,
		log:      log.With("component", "cache"),
		records:  map[domain.RecordID]*domain.Record{},
		mapping:  domain.IdentityMapping{},
	}
}

// Absorb copies a departing owner's live records into the cache and
// remembers its StableID -> SessionID pair when resolvable. The
// authoritative owner never departs independently of the session and is
// skipped.
func (c *Cache) Absorb(records []*domain.Record, owner domain.Owner) {
	if owner.Authoritative {
		return
	}

	cached := 0
	for _, record := range records {
		if record == nil {
			continue
		}
		if _, ok := c.records[record.ID]; ok {
			continue
		}
		clone := record.Clone()
		c.records[clone.ID] = &clone
		cached++
	}

	if stable, ok := c.resolver.ResolveStableID(owner); ok && owner.SessionID != "" {
		c.mapping[stable] = owner.SessionID
	}

	if cached > 0 {
		c.log.Info("departing owner records cached", "ref", owner.Ref, "records", cached)
	}
}

// Reclaim hands cached records back to a returning owner, using the same
// two-level matching as the pool but against the cache's own mapping.
// Reclaimed records leave the cache with their owner identifier rewritten,
// and the consumed StableID mapping entry is removed.
func (c *Cache) Reclaim(owner domain.Owner) []*domain.Record {
	matched := map[domain.SessionID]struct{}{}
	if owner.SessionID != "" {
		matched[owner.SessionID] = struct{}{}
	}

	if stable, ok := c.resolver.ResolveStableID(owner); ok {
		if prior, ok := c.mapping[stable]; ok {
			matched[prior] = struct{}{}
			delete(c.mapping, stable)
		}
	}

	if len(matched) == 0 {
		return nil
	}

	var claimed []*domain.Record
	for id, record := range c.records {
		if _, ok := matched[record.OwnerID]; !ok {
			continue
		}
		delete(c.records, id)
		if owner.SessionID != "" {
			record.OwnerID = owner.SessionID
		}
		claimed = append(claimed, record)
	}

	if len(claimed) > 0 {
		c.log.Info("cached records reclaimed", "ref", owner.Ref, "records", len(claimed))
	}
	return claimed
}

// AllCached returns every cached record, for merging into a save.
func (c *Cache) AllCached() []*domain.Record {
	out := make([]*domain.Record, 0, len(c.records))
	for _, record := range c.records {
		out = append(out, record)
	}
	return out
}

// Mappings returns a copy of the cache's StableID -> SessionID table.
func (c *Cache) Mappings() domain.IdentityMapping {
	return c.mapping.Clone()
}

func (c *Cache) Count() int {
	return len(c.records)
}

func (c *Cache) Reset() {
	c.records = map[domain.RecordID]*domain.Record{}
	c.mapping = domain.IdentityMapping{}
}
