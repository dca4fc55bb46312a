package domain

import "fmt"

// EntryState is the lifecycle state of a pooled record.
//
// Pending is the only initial state. Injected and Fallback are terminal
// and mutually exclusive; no entry ever returns to Pending.
type EntryState string

const (
	StatePending  EntryState = "pending"
	StateInjected EntryState = "injected"
	StateFallback EntryState = "fallback"
)

// PoolEntry wraps a loaded record with its lifecycle state and the owner
// identifier the record carried at load time. OriginalOwnerID survives the
// record's owner rewrite so back-references to the prior session stay
// inspectable.
type PoolEntry struct {
	Record          *Record
	State           EntryState
	OriginalOwnerID SessionID
}

func NewPoolEntry(record *Record) *PoolEntry {
	return &PoolEntry{
		Record:          record,
		State:           StatePending,
		OriginalOwnerID: record.OwnerID,
	}
}

// Inject marks the entry claimed by a live owner.
func (e *PoolEntry) Inject() error {
	if e.State != StatePending {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, e.State, StateInjected)
	}
	e.State = StateInjected
	return nil
}

// ForceFallback marks the entry administratively injected. Never reversed.
func (e *PoolEntry) ForceFallback() error {
	if e.State != StatePending {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, e.State, StateFallback)
	}
	e.State = StateFallback
	return nil
}

func (e *PoolEntry) Pending() bool {
	return e.State == StatePending
}

// PoolCounts is a per-state tally of pool entries.
type PoolCounts struct {
	Pending  int
	Injected int
	Fallback int
}

func (c PoolCounts) Total() int {
	return c.Pending + c.Injected + c.Fallback
}
