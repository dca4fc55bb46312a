package file

import (
	"errors"
	"fmt"
	"os"
	"sort"
	"time"

	toml "github.com/pelletier/go-toml/v2"
	"github.com/voicevault/voicevault/internal/domain"
)

const currentCatalogVersion = 1

// The slot catalog is a convenience index for listing; the slot
// directories remain the source of truth and the catalog is rebuilt row by
// row as slots are written and deleted.
type catalogSchema struct {
	Version int          `toml:"version"`
	Slots   []slotSchema `toml:"slots"`
}

func (s *catalogSchema) applyDefaults() {
	if s.Version == 0 {
		s.Version = currentCatalogVersion
	}
}

func (s catalogSchema) validateVersion() error {
	if s.Version > currentCatalogVersion {
		return fmt.Errorf("unsupported catalog schema version %d (current %d)", s.Version, currentCatalogVersion)
	}

	return nil
}

type slotSchema struct {
	ID       string `toml:"id"`
	Records  int    `toml:"records"`
	Mappings int    `toml:"mappings"`
	SavedAt  string `toml:"saved_at"`
}

func (s *Store) readCatalog() (catalogSchema, error) {
	data, err := os.ReadFile(s.catalogPath())
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return catalogSchema{}, nil
		}
		return catalogSchema{}, fmt.Errorf("read slot catalog: %w", err)
	}

	var file catalogSchema
	if err := toml.Unmarshal(data, &file); err != nil {
		return catalogSchema{}, fmt.Errorf("decode slot catalog: %w", err)
	}
	if err := file.validateVersion(); err != nil {
		return catalogSchema{}, err
	}
	file.applyDefaults()

	return file, nil
}

func (s *Store) writeCatalog(file catalogSchema) error {
	file.applyDefaults()
	sort.Slice(file.Slots, func(i, j int) bool { return file.Slots[i].ID < file.Slots[j].ID })

	data, err := toml.Marshal(file)
	if err != nil {
		return fmt.Errorf("encode slot catalog: %w", err)
	}

	return s.safeWrite(s.catalogPath(), data)
}

// updateCatalogRow upserts one slot row. Catalog trouble is logged and
// swallowed; the catalog is derivable state.
func (s *Store) updateCatalogRow(slot domain.SlotID, records, mappings int, savedAt time.Time) {
	file, err := s.readCatalog()
	if err != nil {
		s.log.Warn("slot catalog unreadable, rebuilding", "error", err)
		file = catalogSchema{}
	}

	row := slotSchema{
		ID:       string(slot),
		Records:  records,
		Mappings: mappings,
		SavedAt:  savedAt.UTC().Format(time.RFC3339),
	}

	updated := false
	for i := range file.Slots {
		if file.Slots[i].ID == row.ID {
			file.Slots[i] = row
			updated = true
			break
		}
	}
	if !updated {
		file.Slots = append(file.Slots, row)
	}

	if err := s.writeCatalog(file); err != nil {
		s.log.Warn("slot catalog write failed", "slot", slot, "error", err)
	}
}

func (s *Store) dropCatalogRow(slot domain.SlotID) {
	file, err := s.readCatalog()
	if err != nil {
		s.log.Warn("slot catalog unreadable", "error", err)
		return
	}

	kept := file.Slots[:0]
	for _, row := range file.Slots {
		if row.ID != string(slot) {
			kept = append(kept, row)
		}
	}
	file.Slots = kept

	if err := s.writeCatalog(file); err != nil {
		s.log.Warn("slot catalog write failed", "slot", slot, "error", err)
	}
}
