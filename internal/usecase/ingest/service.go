// Package ingest coordinates the upload pipeline: chunk, embed, store.
package ingest

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/calder-labs/ragserve/internal/domain"
	"github.com/calder-labs/ragserve/internal/metrics"
)

// defaultStoreTimeout bounds each store call when none is configured.
const defaultStoreTimeout = 5 * time.Second

// Service runs document ingestion. Concurrent ingestions are allowed; the
// guard only excludes them during a reset.
type Service struct {
	chunker      Chunker
	embed        Embedder
	colls        CollectionRepository
	records      RecordRepository
	guard        *domain.Guard
	storeTimeout time.Duration
	logger       *zap.Logger
}

// New creates an ingestion service.
func New(
	chunker Chunker,
	embed Embedder,
	colls CollectionRepository,
	records RecordRepository,
	guard *domain.Guard,
	logger *zap.Logger,
) *Service {
	return &Service{
		chunker:      chunker,
		embed:        embed,
		colls:        colls,
		records:      records,
		guard:        guard,
		storeTimeout: defaultStoreTimeout,
		logger:       logger,
	}
}

// WithStoreTimeout overrides the per-call store timeout.
func (s *Service) WithStoreTimeout(d time.Duration) *Service {
	if d > 0 {
		s.storeTimeout = d
	}
	return s
}

// Ingest chunks the document, embeds every chunk and upserts the records.
// Chunk keys are deterministic, so ingesting the same file twice overwrites
// rather than duplicates. Nothing is written when any stage fails.
//
// The guard is taken only around the write phase; a pending reset never
// waits on a slow embedding call.
func (s *Service) Ingest(ctx context.Context, doc domain.Document) (domain.IngestionReport, error) {
	start := time.Now()
	uploadID := uuid.NewString()

	chunks := s.chunker.Split(doc.ID, doc.Text)
	if len(chunks) == 0 {
		return domain.IngestionReport{}, s.fail(domain.StageChunking, domain.ErrEmptyDocument)
	}

	texts := make([]string, len(chunks))
	for i := range chunks {
		texts[i] = chunks[i].Text
	}

	embedded, err := s.embed.BatchEmbed(ctx, texts)
	if err != nil {
		return domain.IngestionReport{}, s.fail(domain.StageEmbedding, err)
	}

	records := buildRecords(&doc, chunks, embedded.Embeddings)

	s.guard.Acquire()
	defer s.guard.Release()

	if err := s.ensure(ctx); err != nil {
		return domain.IngestionReport{}, s.fail(domain.StageStore, err)
	}
	if err := s.upsertWithRetry(ctx, records); err != nil {
		return domain.IngestionReport{}, s.fail(domain.StageStore, err)
	}

	metrics.IngestedChunksTotal.Add(float64(len(records)))

	report := domain.IngestionReport{
		UploadID:   uploadID,
		DocumentID: doc.ID,
		Filename:   doc.Filename,
		ChunkCount: len(records),
		Duration:   time.Since(start),
	}

	s.logger.Info("Document ingested",
		zap.String("upload_id", report.UploadID),
		zap.String("document_id", report.DocumentID),
		zap.String("filename", report.Filename),
		zap.Int("chunks", report.ChunkCount),
		zap.Int("tokens", embedded.TotalTokens),
		zap.Duration("duration", report.Duration))

	return report, nil
}

func (s *Service) ensure(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, s.storeTimeout)
	defer cancel()
	return s.colls.Ensure(ctx)
}

// upsertWithRetry tries the batch write a second time on a transient store
// failure before giving up. Each attempt gets a fresh timeout; retrying is
// safe because chunk keys are idempotent.
func (s *Service) upsertWithRetry(ctx context.Context, records []domain.StoredRecord) error {
	err := s.upsertOnce(ctx, records)
	if err == nil || !domain.IsTransient(err) || ctx.Err() != nil {
		return err
	}

	s.logger.Warn("Retrying batch upsert", zap.Error(err))
	return s.upsertOnce(ctx, records)
}

func (s *Service) upsertOnce(ctx context.Context, records []domain.StoredRecord) error {
	ctx, cancel := context.WithTimeout(ctx, s.storeTimeout)
	defer cancel()
	return s.records.BatchUpsert(ctx, records)
}

func (s *Service) fail(stage string, err error) error {
	return fmt.Errorf("%w: %w", domain.ErrIngestionFailed, domain.NewStageError(stage, err))
}

func buildRecords(doc *domain.Document, chunks []domain.Chunk, vectors [][]float32) []domain.StoredRecord {
	records := make([]domain.StoredRecord, len(chunks))
	for i := range chunks {
		records[i] = domain.StoredRecord{
			ID:     chunks[i].ID,
			Vector: vectors[i],
			Text:   chunks[i].Text,
			Metadata: domain.RecordMetadata{
				DocumentID:    doc.ID,
				Filename:      doc.Filename,
				SequenceIndex: chunks[i].SequenceIndex,
				StartOffset:   chunks[i].StartOffset,
				EndOffset:     chunks[i].EndOffset,
				UploadedAt:    doc.UploadedAt,
			},
		}
	}
	return records
}
