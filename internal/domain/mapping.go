package domain

// IdentityMapping relates an owner's durable StableID to the SessionID
// most recently observed for it. Recorded at every save, it is the only
// bridge between the session identifiers of different sessions.
type IdentityMapping map[StableID]SessionID

func (m IdentityMapping) Clone() IdentityMapping {
	if m == nil {
		return IdentityMapping{}
	}
	out := make(IdentityMapping, len(m))
	for stable, session := range m {
		out[stable] = session
	}
	return out
}

// MergeMissing copies entries from other that the receiver does not
// already hold. Existing entries win, so merging a cache-sourced mapping
// into a live-sourced one gives the live observation precedence.
func (m IdentityMapping) MergeMissing(other IdentityMapping) {
	for stable, session := range other {
		if _, ok := m[stable]; !ok {
			m[stable] = session
		}
	}
}
