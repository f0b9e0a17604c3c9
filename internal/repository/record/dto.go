package record

import (
	"encoding/binary"
	"math"
	"strconv"
	"time"

	"github.com/calder-labs/ragserve/internal/domain"
)

// recordToHash converts a StoredRecord into a flat map[string]string for HSET.
func recordToHash(rec *domain.StoredRecord) map[string]string {
	return map[string]string{
		"__content":      rec.Text,
		"__vector":       vectorToBytes(rec.Vector),
		"document_id":    rec.Metadata.DocumentID,
		"filename":       rec.Metadata.Filename,
		"sequence_index": strconv.Itoa(rec.Metadata.SequenceIndex),
		"start_offset":   strconv.Itoa(rec.Metadata.StartOffset),
		"end_offset":     strconv.Itoa(rec.Metadata.EndOffset),
		"uploaded_at":    rec.Metadata.UploadedAt.UTC().Format(time.RFC3339),
	}
}

// vectorToBytes serializes []float32 to a binary string (4 bytes per float, little-endian).
func vectorToBytes(v []float32) string {
	buf := make([]byte, len(v)*4)
	for i, f := range v {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(f))
	}
	return string(buf)
}
