package transfer

import (
	"fmt"
	"strings"
	"time"
)

// Status identifies where a transfer sits in its lifecycle.
type Status string

const (
	StatusQueued    Status = "queued"
	StatusActive    Status = "active"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
	StatusCancelled Status = "cancelled"
	StatusSkipped   Status = "skipped"
)

// AllStatuses lists every status in lifecycle order.
func AllStatuses() []Status {
	return []Status{
		StatusQueued,
		StatusActive,
		StatusCompleted,
		StatusFailed,
		StatusCancelled,
		StatusSkipped,
	}
}

// ParseStatus converts user input into a Status.
func ParseStatus(value string) (Status, error) {
	candidate := Status(strings.ToLower(strings.TrimSpace(value)))
	for _, status := range AllStatuses() {
		if candidate == status {
			return status, nil
		}
	}
	return "", fmt.Errorf("unknown transfer status %q", value)
}

// IsTerminal reports whether a transfer in this status can still change.
func (s Status) IsTerminal() bool {
	switch s {
	case StatusCompleted, StatusFailed, StatusCancelled, StatusSkipped:
		return true
	default:
		return false
	}
}

func (s Status) String() string {
	return string(s)
}

// FileSpec names one file in a submission.
type FileSpec struct {
	Path string `json:"path"`
	Name string `json:"name"`
	Size int64  `json:"size"`
}

// Progress is the most recent copy progress for an active transfer.
type Progress struct {
	Bytes   int64  `json:"bytes"`
	Percent int    `json:"percent"`
	Rate    string `json:"rate,omitempty"`
	ETA     string `json:"eta,omitempty"`
}

// Record is one tracked file transfer. The manager hands out copies only;
// callers never see the live record.
type Record struct {
	ID           string     `json:"id"`
	BatchID      string     `json:"batch_id"`
	SourceHostID string     `json:"source_host_id"`
	DestHostID   string     `json:"dest_host_id"`
	SourcePath   string     `json:"source_path"`
	DestPath     string     `json:"dest_path"`
	FileName     string     `json:"file_name"`
	Size         int64      `json:"size"`
	Status       Status     `json:"status"`
	Progress     Progress   `json:"progress"`
	ErrorMessage string     `json:"error_message,omitempty"`
	CreatedAt    time.Time  `json:"created_at"`
	StartedAt    *time.Time `json:"started_at,omitempty"`
	CompletedAt  *time.Time `json:"completed_at,omitempty"`
}

// Clone returns a detached copy safe to hand to callers and event sinks.
func (r *Record) Clone() *Record {
	if r == nil {
		return nil
	}
	clone := *r
	if r.StartedAt != nil {
		started := *r.StartedAt
		clone.StartedAt = &started
	}
	if r.CompletedAt != nil {
		completed := *r.CompletedAt
		clone.CompletedAt = &completed
	}
	return &clone
}

// Stats summarizes the manager's record table.
type Stats struct {
	Total       int            `json:"total"`
	ByStatus    map[Status]int `json:"by_status"`
	ActiveBound int            `json:"active_bound"`
	BytesQueued int64          `json:"bytes_queued"`
	BytesMoved  int64          `json:"bytes_moved"`
}

// Filter narrows List results. Zero values match everything.
type Filter struct {
	Status       Status
	BatchID      string
	SourceHostID string
	DestHostID   string
}

func (f Filter) matches(r *Record) bool {
	if f.Status != "" && r.Status != f.Status {
		return false
	}
	if f.BatchID != "" && r.BatchID != f.BatchID {
		return false
	}
	if f.SourceHostID != "" && r.SourceHostID != f.SourceHostID {
		return false
	}
	if f.DestHostID != "" && r.DestHostID != f.DestHostID {
		return false
	}
	return true
}
