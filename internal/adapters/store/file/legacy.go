package file

import (
	"bytes"
	"encoding/gob"
	"fmt"
	"time"

	"github.com/voicevault/voicevault/internal/domain"
)

// Early builds wrote the whole record set as a single gob blob instead of
// the framed format. Those saves still exist in the wild, so reads that
// fail the framing plausibility check fall through to this decoder.

type legacyRecord struct {
	ID      uint64
	OwnerID string
	Payload []byte
	StartAt int64
	EndAt   int64
}

type legacyBlob struct {
	Records []legacyRecord
}

func decodeLegacyRecords(data []byte) ([]domain.Record, error) {
	var blob legacyBlob
	if err := gob.NewDecoder(bytes.NewReader(data)).Decode(&blob); err != nil {
		return nil, fmt.Errorf("decode legacy record blob: %w", err)
	}

	records := make([]domain.Record, 0, len(blob.Records))
	for _, entry := range blob.Records {
		records = append(records, domain.Record{
			ID:      domain.RecordID(entry.ID),
			OwnerID: domain.SessionID(entry.OwnerID),
			Payload: entry.Payload,
			StartAt: time.Duration(entry.StartAt),
			EndAt:   time.Duration(entry.EndAt),
		})
	}

	return records, nil
}
