package file

import (
	"bytes"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/voicevault/voicevault/internal/domain"
)

// Record file framing:
//
//	int32  recordCount
//	repeat recordCount times:
//	  int32  metadataLength
//	  bytes  metadata[metadataLength]   (JSON, recordMeta)
//	  int32  payloadLength
//	  bytes  payload[payloadLength]
//
// Little-endian throughout. No magic number; a count outside plausible
// bounds is the signal that the bytes are a legacy blob instead.

const maxRecordCount = 1 << 20

var errImplausibleCount = errors.New("implausible record count")

type recordMeta struct {
	ID      uint64 `json:"id"`
	OwnerID string `json:"owner_id"`
	StartAt int64  `json:"start_at"`
	EndAt   int64  `json:"end_at"`
}

func encodeRecords(records []domain.Record) ([]byte, error) {
	var buf bytes.Buffer

	if err := binary.Write(&buf, binary.LittleEndian, int32(len(records))); err != nil {
		return nil, fmt.Errorf("encode record count: %w", err)
	}

	for _, record := range records {
		meta, err := json.Marshal(recordMeta{
			ID:      uint64(record.ID),
			OwnerID: string(record.OwnerID),
			StartAt: int64(record.StartAt),
			EndAt:   int64(record.EndAt),
		})
		if err != nil {
			return nil, fmt.Errorf("encode record %d metadata: %w", record.ID, err)
		}

		if err := writeChunk(&buf, meta); err != nil {
			return nil, fmt.Errorf("encode record %d metadata: %w", record.ID, err)
		}
		if err := writeChunk(&buf, record.Payload); err != nil {
			return nil, fmt.Errorf("encode record %d payload: %w", record.ID, err)
		}
	}

	return buf.Bytes(), nil
}

func writeChunk(buf *bytes.Buffer, data []byte) error {
	if err := binary.Write(buf, binary.LittleEndian, int32(len(data))); err != nil {
		return err
	}
	_, err := buf.Write(data)
	return err
}

// decodeRecords parses the framed format. A record whose metadata fails to
// parse is skipped; a framing error ends the batch with whatever decoded so
// far. Only an implausible count is reported as an error, so the caller can
// try the legacy blob decoder instead.
func decodeRecords(data []byte) (records []domain.Record, skipped int, err error) {
	reader := bytes.NewReader(data)

	var count int32
	if err := binary.Read(reader, binary.LittleEndian, &count); err != nil {
		return nil, 0, fmt.Errorf("%w: short header", errImplausibleCount)
	}
	if count < 0 || count > maxRecordCount {
		return nil, 0, fmt.Errorf("%w: %d", errImplausibleCount, count)
	}

	for i := int32(0); i < count; i++ {
		meta, ok := readChunk(reader)
		if !ok {
			return records, skipped, nil
		}
		payload, ok := readChunk(reader)
		if !ok {
			return records, skipped, nil
		}

		var parsed recordMeta
		if err := json.Unmarshal(meta, &parsed); err != nil {
			skipped++
			continue
		}

		records = append(records, domain.Record{
			ID:      domain.RecordID(parsed.ID),
			OwnerID: domain.SessionID(parsed.OwnerID),
			Payload: payload,
			StartAt: time.Duration(parsed.StartAt),
			EndAt:   time.Duration(parsed.EndAt),
		})
	}

	return records, skipped, nil
}

func readChunk(reader *bytes.Reader) ([]byte, bool) {
	var length int32
	if err := binary.Read(reader, binary.LittleEndian, &length); err != nil {
		return nil, false
	}
	if length < 0 || int(length) > reader.Len() {
		return nil, false
	}

	data := make([]byte, length)
	if _, err := reader.Read(data); err != nil && length > 0 {
		return nil, false
	}
	return data, true
}
