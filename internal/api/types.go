// Package api defines the wire types shared by the daemon's HTTP server
// and the CLI client, plus conversions from internal records.
package api

// dateTimeFormat is used for RFC3339 timestamps in API payloads.
const dateTimeFormat = "2006-01-02T15:04:05.000Z07:00"

// FileEntry names one file in a transfer submission.
type FileEntry struct {
	Path string `json:"path"`
	Name string `json:"name,omitempty"`
	Size int64  `json:"size,omitempty"`
}

// SubmitRequest is the body of POST /api/transfers.
type SubmitRequest struct {
	SourceServerID string      `json:"sourceServerId"`
	DestServerID   string      `json:"destServerId"`
	Files          []FileEntry `json:"files"`
}

// SubmitResponse reports the batch and the created transfers.
type SubmitResponse struct {
	BatchID   string     `json:"batchId"`
	Transfers []Transfer `json:"transfers"`
}

// TransferProgress is the latest copy progress of a transfer.
type TransferProgress struct {
	Bytes   int64  `json:"bytes"`
	Percent int    `json:"percent"`
	Rate    string `json:"rate,omitempty"`
	ETA     string `json:"eta,omitempty"`
}

// Transfer describes one transfer in a transport-friendly format.
type Transfer struct {
	ID           string           `json:"id"`
	BatchID      string           `json:"batchId"`
	SourceHostID string           `json:"sourceHostId"`
	DestHostID   string           `json:"destHostId"`
	SourcePath   string           `json:"sourcePath"`
	DestPath     string           `json:"destPath"`
	FileName     string           `json:"fileName"`
	Size         int64            `json:"size"`
	Status       string           `json:"status"`
	Progress     TransferProgress `json:"progress"`
	ErrorMessage string           `json:"errorMessage,omitempty"`
	CreatedAt    string           `json:"createdAt,omitempty"`
	StartedAt    string           `json:"startedAt,omitempty"`
	CompletedAt  string           `json:"completedAt,omitempty"`
}

// TransferListResponse wraps a collection of transfers.
type TransferListResponse struct {
	Transfers []Transfer `json:"transfers"`
}

// TransferResponse wraps a single transfer.
type TransferResponse struct {
	Transfer Transfer `json:"transfer"`
}

// CancelResponse reports the outcome of a cancel request.
type CancelResponse struct {
	Cancelled bool `json:"cancelled"`
}

// StatsResponse summarizes the daemon's transfer table.
type StatsResponse struct {
	Total       int            `json:"total"`
	Counts      map[string]int `json:"counts"`
	ActiveBound int            `json:"activeBound"`
	BytesQueued int64          `json:"bytesQueued"`
	BytesMoved  int64          `json:"bytesMoved"`
}

// Event is one entry in the event feed. Snapshot events carry the full
// transfer table instead of a single transfer.
type Event struct {
	Sequence  uint64     `json:"seq"`
	Type      string     `json:"type"`
	Timestamp string     `json:"ts"`
	Transfer  *Transfer  `json:"transfer,omitempty"`
	Snapshot  []Transfer `json:"snapshot,omitempty"`
}

// EventStreamResponse carries a window of events plus the cursor for the
// next poll.
type EventStreamResponse struct {
	Events []Event `json:"events"`
	Next   uint64  `json:"next"`
}

// Host describes a configured host.
type Host struct {
	ID         string            `json:"id"`
	Name       string            `json:"name,omitempty"`
	Address    string            `json:"address"`
	Port       int               `json:"port"`
	User       string            `json:"user"`
	Categories map[string]string `json:"categories"`
	Fallback   string            `json:"fallback"`
}

// HostListResponse wraps the configured hosts.
type HostListResponse struct {
	Hosts []Host `json:"hosts"`
}

// DirEntry is one remote directory listing entry.
type DirEntry struct {
	Name    string `json:"name"`
	Size    int64  `json:"size"`
	IsDir   bool   `json:"isDir"`
	ModTime string `json:"modTime,omitempty"`
}

// ListDirResponse wraps a remote directory listing.
type ListDirResponse struct {
	Path    string     `json:"path"`
	Entries []DirEntry `json:"entries"`
}

// ExistsResponse reports whether a remote path exists.
type ExistsResponse struct {
	Path   string `json:"path"`
	Exists bool   `json:"exists"`
}

// DaemonStatus aggregates daemon runtime information.
type DaemonStatus struct {
	Running       bool          `json:"running"`
	PID           int           `json:"pid"`
	LockFilePath  string        `json:"lockFilePath"`
	HistoryDBPath string        `json:"historyDbPath,omitempty"`
	Hosts         []string      `json:"hosts"`
	Sessions      []string      `json:"sessions"`
	Stats         StatsResponse `json:"stats"`
}

// HistoryResponse wraps settled transfers read from the journal.
type HistoryResponse struct {
	Transfers []Transfer `json:"transfers"`
}

// ErrorResponse is the body of every non-2xx response.
type ErrorResponse struct {
	Error string `json:"error"`
}
