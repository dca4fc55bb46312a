package ports

import "github.com/voicevault/voicevault/internal/domain"

// Roster is the host's live-owner table for the current session.
type Roster interface {
	// Owners enumerates every currently connected owner.
	Owners() []domain.Owner
	// Find reports the owner behind a numeric reference, false when the
	// owner has left the session.
	Find(ref domain.OwnerRef) (domain.Owner, bool)
	// StableID resolves the durable platform identifier for a connected
	// owner. False when the roster holds no entry for the reference.
	StableID(ref domain.OwnerRef) (domain.StableID, bool)
}

// LocalIdentity is the stable-identity source for the authoritative owner,
// needed when the roster cannot contain a self-entry. Probe Available once
// at wiring time; hosts without the capability return false and the core
// runs degraded.
type LocalIdentity interface {
	Available() bool
	StableID() (domain.StableID, bool)
}
