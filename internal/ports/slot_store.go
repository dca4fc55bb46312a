package ports

import (
	"context"

	"github.com/voicevault/voicevault/internal/domain"
)

// SlotStore is the durable persistence boundary for save slots.
//
// Reads never fail: any I/O or parse problem is logged by the adapter and
// surfaces as an empty result, so the session stays playable with a corrupt
// or absent save. Writes and deletes report errors so callers can log them;
// they are never fatal to the caller.
type SlotStore interface {
	Write(ctx context.Context, slot domain.SlotID, records []domain.Record, mapping domain.IdentityMapping) error
	Read(ctx context.Context, slot domain.SlotID) []domain.Record
	ReadMapping(ctx context.Context, slot domain.SlotID) domain.IdentityMapping
	Exists(slot domain.SlotID) bool
	Delete(slot domain.SlotID) error
	List(ctx context.Context) ([]domain.SlotInfo, error)
}
