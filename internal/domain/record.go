package domain

import (
	"crypto/rand"
	"encoding/binary"
	"fmt"
	"strings"
	"time"
)

// RecordID identifies a voice record. Assigned once at capture time and
// unique within a save slot.
type RecordID uint64

// StableID is the durable platform-level identifier of an owner. It does
// not change between sessions.
type StableID uint64

// SessionID is the ephemeral identifier the voice subsystem assigns to an
// owner for the duration of one session. It is regenerated every session
// and may change across a mid-session reconnect.
type SessionID string

// OwnerRef is the internal numeric reference of an owner within the live
// session roster. Zero means not yet initialized.
type OwnerRef int32

type Record struct {
	ID      RecordID
	OwnerID SessionID // session-scoped, rewritten when reassigned
	Payload []byte    // compressed audio, may be empty

	// Playback window, relative to session start. Rewritten to the
	// current session clock when the record is handed to a live owner.
	StartAt time.Duration
	EndAt   time.Duration
}

func NewRecordID() RecordID {
	var buf [8]byte
	if _, err := rand.Read(buf[:]); err != nil {
		return RecordID(time.Now().UnixNano())
	}
	return RecordID(binary.LittleEndian.Uint64(buf[:]))
}

// Clone returns a copy with its own payload buffer.
func (r Record) Clone() Record {
	out := r
	if r.Payload != nil {
		out.Payload = make([]byte, len(r.Payload))
		copy(out.Payload, r.Payload)
	}
	return out
}

// Window returns the length of the playback window.
func (r Record) Window() time.Duration {
	if r.EndAt < r.StartAt {
		return 0
	}
	return r.EndAt - r.StartAt
}

// RetimeTo moves the playback window so it opens at now, preserving its
// length.
func (r *Record) RetimeTo(now time.Duration) {
	window := r.Window()
	r.StartAt = now
	r.EndAt = now + window
}

// Owner is one entry of the live session roster.
type Owner struct {
	Ref           OwnerRef
	SessionID     SessionID
	Authoritative bool
}

func (s StableID) String() string {
	return fmt.Sprintf("%d", uint64(s))
}

// SlotID names one persistence unit (one save).
type SlotID string

func (s SlotID) Validate() error {
	trimmed := strings.TrimSpace(string(s))
	if trimmed == "" {
		return fmt.Errorf("slot id is required")
	}
	if strings.ContainsAny(trimmed, "/\\") {
		return fmt.Errorf("slot id %q contains a path separator", trimmed)
	}
	return nil
}

// SlotInfo is one catalog row describing a saved slot.
type SlotInfo struct {
	ID       SlotID
	Records  int
	Mappings int
	SavedAt  time.Time
}
