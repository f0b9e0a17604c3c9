package record

import (
	"context"
	"errors"
	"testing"

	"github.com/calder-labs/ragserve/internal/db"
	"github.com/calder-labs/ragserve/internal/domain"
)

func TestBatchUpsert_Success(t *testing.T) {
	var captured []db.HashSetItem
	s := &mockStore{
		hsetMultiFn: func(_ context.Context, items []db.HashSetItem) error {
			captured = items
			return nil
		},
	}

	r := New(s, "rag-docs")
	records := []domain.StoredRecord{testRecord("aaa", 0), testRecord("bbb", 1)}
	if err := r.BatchUpsert(context.Background(), records); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(captured) != 2 {
		t.Fatalf("expected 2 items, got %d", len(captured))
	}
	if captured[0].Key != "ragserve:rag-docs:aaa" {
		t.Errorf("unexpected key: %s", captured[0].Key)
	}

	fields := captured[1].Fields
	if fields["__content"] != "chunk text" {
		t.Errorf("unexpected content: %q", fields["__content"])
	}
	if len(fields["__vector"]) != 12 {
		t.Errorf("expected 12-byte vector, got %d bytes", len(fields["__vector"]))
	}
	if fields["document_id"] != "doc1234567890abc" {
		t.Errorf("unexpected document_id: %s", fields["document_id"])
	}
	if fields["sequence_index"] != "1" {
		t.Errorf("unexpected sequence_index: %s", fields["sequence_index"])
	}
	if fields["start_offset"] != "450" || fields["end_offset"] != "950" {
		t.Errorf("unexpected offsets: %s %s", fields["start_offset"], fields["end_offset"])
	}
	if fields["uploaded_at"] != "2025-06-01T12:00:00Z" {
		t.Errorf("unexpected uploaded_at: %s", fields["uploaded_at"])
	}
}

func TestBatchUpsert_Empty(t *testing.T) {
	called := false
	s := &mockStore{
		hsetMultiFn: func(_ context.Context, _ []db.HashSetItem) error {
			called = true
			return nil
		},
	}

	if err := New(s, "rag-docs").BatchUpsert(context.Background(), nil); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if called {
		t.Error("expected no store call for empty batch")
	}
}

func TestBatchUpsert_WriteError(t *testing.T) {
	s := &mockStore{
		hsetMultiFn: func(_ context.Context, _ []db.HashSetItem) error {
			return errors.New("connection reset")
		},
	}

	err := New(s, "rag-docs").BatchUpsert(context.Background(), []domain.StoredRecord{testRecord("aaa", 0)})
	if !errors.Is(err, domain.ErrStoreWriteFailed) {
		t.Errorf("expected ErrStoreWriteFailed, got %v", err)
	}
}

func TestBatchUpsert_Idempotent(t *testing.T) {
	// same records twice produce identical keys both times
	var keys [][]string
	s := &mockStore{
		hsetMultiFn: func(_ context.Context, items []db.HashSetItem) error {
			var ks []string
			for _, it := range items {
				ks = append(ks, it.Key)
			}
			keys = append(keys, ks)
			return nil
		},
	}

	r := New(s, "rag-docs")
	records := []domain.StoredRecord{testRecord("aaa", 0), testRecord("bbb", 1)}
	for i := 0; i < 2; i++ {
		if err := r.BatchUpsert(context.Background(), records); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	}

	if len(keys) != 2 {
		t.Fatalf("expected 2 calls, got %d", len(keys))
	}
	for i := range keys[0] {
		if keys[0][i] != keys[1][i] {
			t.Errorf("key %d differs across upserts: %s vs %s", i, keys[0][i], keys[1][i])
		}
	}
}

