package domain

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"
)

// KeyPrefix namespaces all keys written by this service.
const KeyPrefix = "ragserve:"

// Document is one uploaded file with its extracted text. It lives only for
// the duration of a single ingestion call; persistence happens per chunk.
type Document struct {
	ID         string
	Filename   string
	MimeType   string
	Text       string
	UploadedAt time.Time
}

// NewDocument builds a Document with a deterministic ID derived from the
// filename, so re-uploading the same file produces the same chunk keys.
func NewDocument(filename, mimeType, text string, uploadedAt time.Time) Document {
	return Document{
		ID:         DocumentID(filename),
		Filename:   filename,
		MimeType:   mimeType,
		Text:       text,
		UploadedAt: uploadedAt,
	}
}

// DocumentID derives the stable document identifier from a filename.
func DocumentID(filename string) string {
	h := sha256.Sum256([]byte(filename))
	return hex.EncodeToString(h[:])[:16]
}

// Chunk is a bounded, offset-addressed slice of a document's text.
// Offsets are half-open byte offsets into the original text.
type Chunk struct {
	ID            string
	DocumentID    string
	Text          string
	StartOffset   int
	EndOffset     int
	SequenceIndex int
}

// ChunkID derives the deterministic chunk identifier. It is a pure function
// of the document ID and the chunk's sequence index, which makes re-upserts
// of the same document idempotent.
func ChunkID(documentID string, sequenceIndex int) string {
	h := sha256.Sum256(fmt.Appendf(nil, "%s:%d", documentID, sequenceIndex))
	return hex.EncodeToString(h[:])[:16]
}

// RecordMetadata is the fixed-field metadata stored alongside each vector.
type RecordMetadata struct {
	DocumentID    string
	Filename      string
	SequenceIndex int
	StartOffset   int
	EndOffset     int
	UploadedAt    time.Time
}

// StoredRecord is the store-resident unit: chunk key, vector, text, metadata.
type StoredRecord struct {
	ID       string
	Vector   []float32
	Text     string
	Metadata RecordMetadata
}

// ScoredRecord pairs a retrieved record with its similarity score.
// Scores are normalized to [0,1], higher = more similar.
type ScoredRecord struct {
	ID       string
	Text     string
	Score    float64
	Metadata RecordMetadata
}

// IngestionReport summarizes one successful ingestion call.
type IngestionReport struct {
	UploadID   string
	DocumentID string
	Filename   string
	ChunkCount int
	Duration   time.Duration
}
