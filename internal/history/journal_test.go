package history

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"shuttle/internal/transfer"
)

func openTestJournal(t *testing.T) *Journal {
	t.Helper()
	journal, err := Open(filepath.Join(t.TempDir(), "history.db"))
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	t.Cleanup(func() { _ = journal.Close() })
	return journal
}

func settledRecord(id string, status transfer.Status, completed time.Time) transfer.Record {
	started := completed.Add(-time.Minute)
	return transfer.Record{
		ID:           id,
		BatchID:      "batch-1",
		SourceHostID: "alpha",
		DestHostID:   "beta",
		SourcePath:   "/srv/movies/a.mkv",
		DestPath:     "/library/Movies/a.mkv",
		FileName:     "a.mkv",
		Size:         4096,
		Status:       status,
		CreatedAt:    completed.Add(-2 * time.Minute),
		StartedAt:    &started,
		CompletedAt:  &completed,
	}
}

func TestJournalAppendAndList(t *testing.T) {
	journal := openTestJournal(t)
	base := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)

	if err := journal.Append(settledRecord("t1", transfer.StatusCompleted, base)); err != nil {
		t.Fatalf("append: %v", err)
	}
	if err := journal.Append(settledRecord("t2", transfer.StatusFailed, base.Add(time.Hour))); err != nil {
		t.Fatalf("append: %v", err)
	}

	records, err := journal.List(context.Background(), 10)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(records) != 2 {
		t.Fatalf("expected 2 records, got %d", len(records))
	}
	if records[0].ID != "t2" {
		t.Errorf("expected most recent first, got %s", records[0].ID)
	}
	if records[1].Status != transfer.StatusCompleted {
		t.Errorf("unexpected status %s", records[1].Status)
	}
	if records[1].CompletedAt == nil || !records[1].CompletedAt.Equal(base) {
		t.Errorf("completion timestamp not preserved: %v", records[1].CompletedAt)
	}
	if records[1].Size != 4096 {
		t.Errorf("size not preserved: %d", records[1].Size)
	}
}

func TestJournalAppendIsIdempotent(t *testing.T) {
	journal := openTestJournal(t)
	base := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)

	record := settledRecord("t1", transfer.StatusCancelled, base)
	if err := journal.Append(record); err != nil {
		t.Fatalf("append: %v", err)
	}
	record.ErrorMessage = "second pass"
	if err := journal.Append(record); err != nil {
		t.Fatalf("re-append: %v", err)
	}

	records, err := journal.List(context.Background(), 10)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(records) != 1 {
		t.Fatalf("expected 1 record after re-append, got %d", len(records))
	}
	if records[0].ErrorMessage != "second pass" {
		t.Errorf("expected overwrite, got %q", records[0].ErrorMessage)
	}
}

func TestJournalListLimit(t *testing.T) {
	journal := openTestJournal(t)
	base := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	for i := 0; i < 5; i++ {
		record := settledRecord("t"+string(rune('0'+i)), transfer.StatusCompleted, base.Add(time.Duration(i)*time.Minute))
		if err := journal.Append(record); err != nil {
			t.Fatalf("append: %v", err)
		}
	}

	records, err := journal.List(context.Background(), 3)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(records) != 3 {
		t.Fatalf("expected 3 records, got %d", len(records))
	}
}

func TestJournalReopenKeepsRecords(t *testing.T) {
	path := filepath.Join(t.TempDir(), "history.db")
	journal, err := Open(path)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	base := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	if err := journal.Append(settledRecord("t1", transfer.StatusCompleted, base)); err != nil {
		t.Fatalf("append: %v", err)
	}
	if err := journal.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	reopened, err := Open(path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer reopened.Close()
	records, err := reopened.List(context.Background(), 10)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(records) != 1 {
		t.Fatalf("expected persisted record, got %d", len(records))
	}
}

func TestJournalSchemaMismatch(t *testing.T) {
	path := filepath.Join(t.TempDir(), "history.db")
	journal, err := Open(path)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if _, err := journal.db.Exec("UPDATE schema_version SET version = 99"); err != nil {
		t.Fatalf("bump version: %v", err)
	}
	if err := journal.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	if _, err := Open(path); !errors.Is(err, ErrSchemaMismatch) {
		t.Fatalf("expected ErrSchemaMismatch, got %v", err)
	}
}
