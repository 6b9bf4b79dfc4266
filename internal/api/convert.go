package api

import (
	"time"

	"shuttle/internal/events"
	"shuttle/internal/hosts"
	"shuttle/internal/remote"
	"shuttle/internal/transfer"
)

// FromRecord converts an internal transfer record to its wire form.
func FromRecord(record *transfer.Record) Transfer {
	if record == nil {
		return Transfer{}
	}
	return Transfer{
		ID:           record.ID,
		BatchID:      record.BatchID,
		SourceHostID: record.SourceHostID,
		DestHostID:   record.DestHostID,
		SourcePath:   record.SourcePath,
		DestPath:     record.DestPath,
		FileName:     record.FileName,
		Size:         record.Size,
		Status:       record.Status.String(),
		Progress: TransferProgress{
			Bytes:   record.Progress.Bytes,
			Percent: record.Progress.Percent,
			Rate:    record.Progress.Rate,
			ETA:     record.Progress.ETA,
		},
		ErrorMessage: record.ErrorMessage,
		CreatedAt:    formatTime(record.CreatedAt),
		StartedAt:    formatTimePtr(record.StartedAt),
		CompletedAt:  formatTimePtr(record.CompletedAt),
	}
}

// FromRecords converts a record slice, preserving order.
func FromRecords(records []*transfer.Record) []Transfer {
	out := make([]Transfer, 0, len(records))
	for _, record := range records {
		out = append(out, FromRecord(record))
	}
	return out
}

// FromStats converts manager statistics to their wire form.
func FromStats(stats transfer.Stats) StatsResponse {
	counts := make(map[string]int, len(stats.ByStatus))
	for status, count := range stats.ByStatus {
		counts[status.String()] = count
	}
	return StatsResponse{
		Total:       stats.Total,
		Counts:      counts,
		ActiveBound: stats.ActiveBound,
		BytesQueued: stats.BytesQueued,
		BytesMoved:  stats.BytesMoved,
	}
}

// FromHost converts a host descriptor, omitting credentials.
func FromHost(host *hosts.Host) Host {
	if host == nil {
		return Host{}
	}
	categories := make(map[string]string, len(host.Categories.Dirs))
	for name, dir := range host.Categories.Dirs {
		categories[name] = dir
	}
	return Host{
		ID:         host.ID,
		Name:       host.Name,
		Address:    host.Address,
		Port:       host.Port,
		User:       host.User,
		Categories: categories,
		Fallback:   host.Categories.Fallback,
	}
}

// FromEntries converts a remote directory listing.
func FromEntries(entries []remote.Entry) []DirEntry {
	out := make([]DirEntry, 0, len(entries))
	for _, entry := range entries {
		out = append(out, DirEntry{
			Name:    entry.Name,
			Size:    entry.Size,
			IsDir:   entry.IsDir,
			ModTime: formatTime(entry.ModTime),
		})
	}
	return out
}

// FromEvent converts a hub event. Single-record payloads land in Transfer,
// snapshot payloads in Snapshot; unknown payloads are dropped but the
// event envelope is kept so cursors stay contiguous.
func FromEvent(evt events.Event) Event {
	out := Event{
		Sequence:  evt.Sequence,
		Type:      string(evt.Type),
		Timestamp: formatTime(evt.Timestamp),
	}
	switch payload := evt.Payload.(type) {
	case *transfer.Record:
		converted := FromRecord(payload)
		out.Transfer = &converted
	case []*transfer.Record:
		out.Snapshot = FromRecords(payload)
	}
	return out
}

// FromEvents converts a window of hub events.
func FromEvents(evts []events.Event) []Event {
	out := make([]Event, 0, len(evts))
	for _, evt := range evts {
		out = append(out, FromEvent(evt))
	}
	return out
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(dateTimeFormat)
}

func formatTimePtr(t *time.Time) string {
	if t == nil {
		return ""
	}
	return formatTime(*t)
}
