package application

import (
	"github.com/voicevault/voicevault/internal/domain"
	"github.com/voicevault/voicevault/internal/ports"
)

// Resolver bridges the two identifier levels: the ephemeral SessionID the
// voice subsystem regenerates every session, and the durable StableID the
// platform guarantees. The mapping recorded at each save is the only
// durable link between the two, so resolution consults the live roster
// first and the saved mapping second.
type Resolver struct {
	roster ports.Roster
	local  ports.LocalIdentity
	saved  domain.IdentityMapping
}

func NewResolver(roster ports.Roster, local ports.LocalIdentity) *Resolver {
	return &Resolver{
		roster: roster,
		local:  local,
		saved:  domain.IdentityMapping{},
	}
}

// ResolveStableID returns the durable identifier for a live owner. Remote
// owners resolve through the roster; the authoritative owner falls back to
// the local identity source when the roster cannot answer for it (no
// self-entry, or a reference that is not yet initialized).
func (r *Resolver) ResolveStableID(owner domain.Owner) (domain.StableID, bool) {
	if owner.Ref != 0 {
		if stable, ok := r.roster.StableID(owner.Ref); ok {
			return stable, true
		}
	}

	if owner.Authoritative && r.local != nil && r.local.Available() {
		return r.local.StableID()
	}

	return 0, false
}

// LookupPriorSessionID returns the SessionID the owner carried in the
// session that produced the loaded save.
func (r *Resolver) LookupPriorSessionID(stable domain.StableID) (domain.SessionID, bool) {
	session, ok := r.saved[stable]
	return session, ok
}

// SetSavedMapping installs the mapping loaded alongside a slot.
func (r *Resolver) SetSavedMapping(mapping domain.IdentityMapping) {
	if mapping == nil {
		mapping = domain.IdentityMapping{}
	}
	r.saved = mapping
}

func (r *Resolver) Reset() {
	r.saved = domain.IdentityMapping{}
}
