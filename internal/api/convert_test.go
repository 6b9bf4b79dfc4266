package api

import (
	"testing"
	"time"

	"shuttle/internal/events"
	"shuttle/internal/hosts"
	"shuttle/internal/pathmap"
	"shuttle/internal/transfer"
)

func sampleRecord() *transfer.Record {
	started := time.Date(2026, 8, 1, 12, 1, 0, 0, time.UTC)
	completed := time.Date(2026, 8, 1, 12, 5, 0, 0, time.UTC)
	return &transfer.Record{
		ID:           "t1",
		BatchID:      "b1",
		SourceHostID: "alpha",
		DestHostID:   "beta",
		SourcePath:   "/srv/movies/a.mkv",
		DestPath:     "/library/Movies/a.mkv",
		FileName:     "a.mkv",
		Size:         2048,
		Status:       transfer.StatusCompleted,
		Progress:     transfer.Progress{Bytes: 2048, Percent: 100, Rate: "1.0MB/s"},
		CreatedAt:    time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC),
		StartedAt:    &started,
		CompletedAt:  &completed,
	}
}

func TestFromRecord(t *testing.T) {
	wire := FromRecord(sampleRecord())
	if wire.ID != "t1" || wire.Status != "completed" {
		t.Fatalf("unexpected conversion: %+v", wire)
	}
	if wire.Progress.Percent != 100 || wire.Progress.Bytes != 2048 {
		t.Errorf("progress not converted: %+v", wire.Progress)
	}
	if wire.CreatedAt != "2026-08-01T12:00:00.000Z" {
		t.Errorf("unexpected created timestamp %q", wire.CreatedAt)
	}
	if wire.CompletedAt != "2026-08-01T12:05:00.000Z" {
		t.Errorf("unexpected completed timestamp %q", wire.CompletedAt)
	}
}

func TestFromRecordOmitsMissingTimestamps(t *testing.T) {
	record := sampleRecord()
	record.StartedAt = nil
	record.CompletedAt = nil
	wire := FromRecord(record)
	if wire.StartedAt != "" || wire.CompletedAt != "" {
		t.Fatalf("expected empty timestamps, got %q and %q", wire.StartedAt, wire.CompletedAt)
	}
}

func TestFromStats(t *testing.T) {
	stats := transfer.Stats{
		Total: 3,
		ByStatus: map[transfer.Status]int{
			transfer.StatusQueued:    2,
			transfer.StatusCompleted: 1,
		},
		ActiveBound: 3,
		BytesQueued: 100,
		BytesMoved:  50,
	}
	wire := FromStats(stats)
	if wire.Counts["queued"] != 2 || wire.Counts["completed"] != 1 {
		t.Fatalf("unexpected counts: %+v", wire.Counts)
	}
	if wire.Total != 3 || wire.ActiveBound != 3 {
		t.Fatalf("unexpected totals: %+v", wire)
	}
}

func TestFromHostOmitsCredentials(t *testing.T) {
	host := &hosts.Host{
		ID:          "alpha",
		Address:     "10.0.0.1",
		Port:        22,
		User:        "media",
		KeyFile:     "/home/media/.ssh/id_ed25519",
		PasswordEnv: "ALPHA_PASSWORD",
		Categories: pathmap.Categories{
			Dirs:     map[string]string{"movies": "/srv/movies"},
			Fallback: "movies",
		},
	}
	wire := FromHost(host)
	if wire.Categories["movies"] != "/srv/movies" || wire.Fallback != "movies" {
		t.Fatalf("categories not converted: %+v", wire)
	}
}

func TestFromEventSingleRecord(t *testing.T) {
	evt := events.Event{
		Sequence:  7,
		Type:      events.TypeProgress,
		Timestamp: time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC),
		Payload:   sampleRecord(),
	}
	wire := FromEvent(evt)
	if wire.Sequence != 7 || wire.Type != "transfer:progress" {
		t.Fatalf("unexpected envelope: %+v", wire)
	}
	if wire.Transfer == nil || wire.Transfer.ID != "t1" {
		t.Fatalf("expected transfer payload, got %+v", wire.Transfer)
	}
	if wire.Snapshot != nil {
		t.Fatal("unexpected snapshot payload")
	}
}

func TestFromEventSnapshot(t *testing.T) {
	evt := events.Event{
		Sequence:  1,
		Type:      events.TypeSnapshot,
		Timestamp: time.Now(),
		Payload:   []*transfer.Record{sampleRecord(), sampleRecord()},
	}
	wire := FromEvent(evt)
	if len(wire.Snapshot) != 2 {
		t.Fatalf("expected snapshot of 2, got %d", len(wire.Snapshot))
	}
	if wire.Transfer != nil {
		t.Fatal("unexpected single transfer payload")
	}
}
