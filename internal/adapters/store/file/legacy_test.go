package file

import (
	"bytes"
	"encoding/gob"
	"fmt"

	"github.com/voicevault/voicevault/internal/domain"
)

// encodeLegacyRecords fabricates the single-gob-blob format of early builds
// so the fallback decoder can be exercised without shipping an old save.
func encodeLegacyRecords(records []domain.Record) ([]byte, error) {
	blob := legacyBlob{Records: make([]legacyRecord, 0, len(records))}
	for _, record := range records {
		blob.Records = append(blob.Records, legacyRecord{
			ID:      uint64(record.ID),
			OwnerID: string(record.OwnerID),
			Payload: record.Payload,
			StartAt: int64(record.StartAt),
			EndAt:   int64(record.EndAt),
		})
	}

	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(blob); err != nil {
		return nil, fmt.Errorf("encode legacy record blob: %w", err)
	}
	return buf.Bytes(), nil
}
