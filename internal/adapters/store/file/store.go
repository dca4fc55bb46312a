package file

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"time"

	"github.com/spf13/viper"
	"github.com/voicevault/voicevault/internal/domain"
	"github.com/voicevault/voicevault/internal/ports"
)

const (
	configName    = "config"
	configType    = "toml"
	storePathKey  = "store.path"
	storeFileMode = 0o600
	storeDirMode  = 0o700
	configDir     = ".voicevault"
	slotsDir      = "slots"

	recordsFileName  = "records.bin"
	mappingFileName  = "mapping.json"
	metadataFileName = "metadata.json"
	backupSuffix     = ".bak"
	catalogFileName  = "slots.toml"
	tempFilePattern  = ".voicevault-*.tmp"

	metadataVersion = 1
)

// Store persists save slots under a base directory, one subdirectory per
// slot holding the record file, the identity mapping, the save metadata,
// and a .bak sibling for each.
type Store struct {
	baseDir string
	mu      *sync.RWMutex
	clock   ports.Clock
	log     *slog.Logger
}

var (
	lockRegistryMu sync.Mutex
	pathLockMap    = map[string]*sync.RWMutex{}
)

var _ ports.SlotStore = (*Store)(nil)

func NewStore(cfg *viper.Viper, clock ports.Clock, log *slog.Logger) (*Store, error) {
	if cfg == nil {
		cfg = viper.New()
	}
	if clock == nil {
		clock = ports.SystemClock{}
	}
	if log == nil {
		log = slog.Default()
	}

	homeDir, err := os.UserHomeDir()
	if err != nil {
		return nil, fmt.Errorf("resolve home directory: %w", err)
	}

	defaultPath := filepath.Join(homeDir, configDir, slotsDir)

	cfg.SetConfigName(configName)
	cfg.SetConfigType(configType)
	cfg.AddConfigPath(filepath.Join(homeDir, configDir))
	cfg.SetDefault(storePathKey, defaultPath)

	err = cfg.ReadInConfig()
	if err != nil {
		var configNotFound viper.ConfigFileNotFoundError
		if !errors.As(err, &configNotFound) {
			return nil, fmt.Errorf("read config file: %w", err)
		}
	}

	baseDir := cfg.GetString(storePathKey)
	if baseDir == "" {
		return nil, errors.New("store path is empty")
	}
	baseDir, err = filepath.Abs(baseDir)
	if err != nil {
		return nil, fmt.Errorf("resolve store path: %w", err)
	}
	baseDir = filepath.Clean(baseDir)

	return &Store{
		baseDir: baseDir,
		mu:      lockForPath(baseDir),
		clock:   clock,
		log:     log.With("component", "slotstore"),
	}, nil
}

func lockForPath(path string) *sync.RWMutex {
	lockRegistryMu.Lock()
	defer lockRegistryMu.Unlock()

	if mu, ok := pathLockMap[path]; ok {
		return mu
	}

	mu := &sync.RWMutex{}
	pathLockMap[path] = mu
	return mu
}

func (s *Store) slotDir(slot domain.SlotID) string {
	return filepath.Join(s.baseDir, string(slot))
}

func (s *Store) catalogPath() string {
	return filepath.Join(s.baseDir, catalogFileName)
}

// Write serializes the record set and identity mapping, then safe-writes
// each file independently so a crash at any point leaves either the old
// complete file or the new complete file on disk.
func (s *Store) Write(ctx context.Context, slot domain.SlotID, records []domain.Record, mapping domain.IdentityMapping) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := slot.Validate(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	dir := s.slotDir(slot)
	if err := os.MkdirAll(dir, storeDirMode); err != nil {
		return fmt.Errorf("create slot directory: %w", err)
	}

	recordBytes, err := encodeRecords(records)
	if err != nil {
		return fmt.Errorf("encode records: %w", err)
	}
	if err := s.safeWrite(filepath.Join(dir, recordsFileName), recordBytes); err != nil {
		return fmt.Errorf("write record file: %w", err)
	}

	mappingBytes, err := encodeMapping(mapping)
	if err != nil {
		return fmt.Errorf("encode mapping: %w", err)
	}
	if err := s.safeWrite(filepath.Join(dir, mappingFileName), mappingBytes); err != nil {
		return fmt.Errorf("write mapping file: %w", err)
	}

	savedAt := s.clock.Now()
	s.writeMetadata(dir, len(records), len(mapping), savedAt)
	s.updateCatalogRow(slot, len(records), len(mapping), savedAt)

	s.log.Info("slot saved", "slot", slot, "records", len(records), "mappings", len(mapping))
	return nil
}

// Read returns the slot's record set, falling back to the backup file when
// the primary is missing, empty, or unparseable. All failures surface as an
// empty result so a corrupt save never blocks the session.
func (s *Store) Read(ctx context.Context, slot domain.SlotID) []domain.Record {
	if ctx.Err() != nil {
		return nil
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	path := filepath.Join(s.slotDir(slot), recordsFileName)
	for _, source := range []struct {
		label string
		path  string
	}{
		{label: "primary", path: path},
		{label: "backup", path: path + backupSuffix},
	} {
		data, err := os.ReadFile(source.path)
		if err != nil || len(data) == 0 {
			continue
		}

		records, skipped, err := s.decodeAnyFormat(data)
		if err != nil {
			s.log.Warn("record file unparseable", "slot", slot, "source", source.label, "error", err)
			continue
		}
		if skipped > 0 {
			s.log.Warn("records dropped during decode", "slot", slot, "source", source.label, "dropped", skipped)
		}

		s.log.Info("records loaded", "slot", slot, "source", source.label, "records", len(records))
		return records
	}

	s.log.Info("no readable record file", "slot", slot)
	return nil
}

// decodeAnyFormat tries the framed format first and falls back to the
// legacy gob blob when the header is implausible.
func (s *Store) decodeAnyFormat(data []byte) ([]domain.Record, int, error) {
	records, skipped, err := decodeRecords(data)
	if err == nil {
		return records, skipped, nil
	}
	if !errors.Is(err, errImplausibleCount) {
		return nil, 0, err
	}

	legacy, legacyErr := decodeLegacyRecords(data)
	if legacyErr != nil {
		return nil, 0, fmt.Errorf("framed decode: %w; legacy decode: %v", err, legacyErr)
	}

	s.log.Info("record file decoded via legacy format", "records", len(legacy))
	return legacy, 0, nil
}

// ReadMapping returns the slot's saved identity mapping, with the same
// backup fallback and never-fail policy as Read.
func (s *Store) ReadMapping(ctx context.Context, slot domain.SlotID) domain.IdentityMapping {
	if ctx.Err() != nil {
		return domain.IdentityMapping{}
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	path := filepath.Join(s.slotDir(slot), mappingFileName)
	for _, source := range []struct {
		label string
		path  string
	}{
		{label: "primary", path: path},
		{label: "backup", path: path + backupSuffix},
	} {
		data, err := os.ReadFile(source.path)
		if err != nil || len(data) == 0 {
			continue
		}

		mapping, err := decodeMapping(data)
		if err != nil {
			s.log.Warn("mapping file unparseable", "slot", slot, "source", source.label, "error", err)
			continue
		}

		s.log.Info("mapping loaded", "slot", slot, "source", source.label, "entries", len(mapping))
		return mapping
	}

	return domain.IdentityMapping{}
}

// Exists reports whether a load attempt for the slot is worthwhile: any of
// the record file, the mapping file, or their backups is present.
func (s *Store) Exists(slot domain.SlotID) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()

	dir := s.slotDir(slot)
	for _, name := range []string{
		recordsFileName,
		recordsFileName + backupSuffix,
		mappingFileName,
		mappingFileName + backupSuffix,
	} {
		if info, err := os.Stat(filepath.Join(dir, name)); err == nil && !info.IsDir() {
			return true
		}
	}
	return false
}

// Delete removes the slot directory recursively and drops its catalog row.
func (s *Store) Delete(slot domain.SlotID) error {
	if err := slot.Validate(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.RemoveAll(s.slotDir(slot)); err != nil {
		s.log.Warn("slot delete failed", "slot", slot, "error", err)
		return fmt.Errorf("delete slot %s: %w", slot, err)
	}

	s.dropCatalogRow(slot)
	s.log.Info("slot deleted", "slot", slot)
	return nil
}

// List returns catalog rows for every known slot. An unreadable catalog
// yields an empty listing; the next save rebuilds it.
func (s *Store) List(ctx context.Context) ([]domain.SlotInfo, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	file, err := s.readCatalog()
	if err != nil {
		s.log.Warn("slot catalog unreadable, listing empty", "error", err)
		file = catalogSchema{}
	}

	infos := make([]domain.SlotInfo, 0, len(file.Slots))
	for _, row := range file.Slots {
		savedAt, _ := time.Parse(time.RFC3339, row.SavedAt)
		infos = append(infos, domain.SlotInfo{
			ID:       domain.SlotID(row.ID),
			Records:  row.Records,
			Mappings: row.Mappings,
			SavedAt:  savedAt,
		})
	}

	return infos, nil
}

// safeWrite writes data to a temporary file, backs up any existing target,
// removes the target, and renames the temporary file into place. A backup
// copy failure is logged, not fatal.
func (s *Store) safeWrite(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, storeDirMode); err != nil {
		return fmt.Errorf("create directory: %w", err)
	}

	tempFile, err := os.CreateTemp(dir, tempFilePattern)
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}

	tempName := tempFile.Name()
	cleanup := true
	defer func() {
		if cleanup {
			_ = os.Remove(tempName)
		}
	}()

	if _, err := tempFile.Write(data); err != nil {
		_ = tempFile.Close()
		return fmt.Errorf("write temp file: %w", err)
	}
	if err := tempFile.Chmod(storeFileMode); err != nil {
		_ = tempFile.Close()
		return fmt.Errorf("chmod temp file: %w", err)
	}
	if err := tempFile.Close(); err != nil {
		return fmt.Errorf("close temp file: %w", err)
	}

	if _, err := os.Stat(path); err == nil {
		if err := copyFile(path, path+backupSuffix); err != nil {
			s.log.Warn("backup copy failed", "path", path, "error", err)
		}
		if err := os.Remove(path); err != nil {
			return fmt.Errorf("remove old file: %w", err)
		}
	}

	if err := os.Rename(tempName, path); err != nil {
		return fmt.Errorf("replace file: %w", err)
	}
	cleanup = false

	return nil
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer func() { _ = in.Close() }()

	out, err := os.OpenFile(dst, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, storeFileMode)
	if err != nil {
		return err
	}

	if _, err := io.Copy(out, in); err != nil {
		_ = out.Close()
		return err
	}
	return out.Close()
}

// Identity mapping file: flat JSON object, decimal StableID keys.
func encodeMapping(mapping domain.IdentityMapping) ([]byte, error) {
	flat := make(map[string]string, len(mapping))
	for stable, session := range mapping {
		flat[strconv.FormatUint(uint64(stable), 10)] = string(session)
	}
	return json.Marshal(flat)
}

func decodeMapping(data []byte) (domain.IdentityMapping, error) {
	var flat map[string]string
	if err := json.Unmarshal(data, &flat); err != nil {
		return nil, fmt.Errorf("decode mapping file: %w", err)
	}

	mapping := make(domain.IdentityMapping, len(flat))
	for key, session := range flat {
		stable, err := strconv.ParseUint(key, 10, 64)
		if err != nil {
			// Skip the malformed key, keep the batch.
			continue
		}
		mapping[domain.StableID(stable)] = domain.SessionID(session)
	}
	return mapping, nil
}

type metadataSchema struct {
	Version   int            `json:"version"`
	Timestamp string         `json:"timestamp"`
	Counts    map[string]int `json:"counts"`
}

// writeMetadata records save telemetry. Write-only; never read back.
func (s *Store) writeMetadata(dir string, records, mappings int, savedAt time.Time) {
	data, err := json.Marshal(metadataSchema{
		Version:   metadataVersion,
		Timestamp: savedAt.UTC().Format(time.RFC3339),
		Counts: map[string]int{
			"records":  records,
			"mappings": mappings,
		},
	})
	if err != nil {
		s.log.Warn("metadata encode failed", "error", err)
		return
	}

	if err := s.safeWrite(filepath.Join(dir, metadataFileName), data); err != nil {
		s.log.Warn("metadata write failed", "error", err)
	}
}
