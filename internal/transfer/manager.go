package transfer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"shuttle/internal/events"
	"shuttle/internal/hosts"
	"shuttle/internal/logging"
	"shuttle/internal/pathmap"
	"shuttle/internal/rsync"
	"shuttle/internal/services"
)

// SubmitRequest is one batch of files to move between two hosts.
type SubmitRequest struct {
	SourceHostID string
	DestHostID   string
	Files        []FileSpec
}

// Journal receives terminal records for durable history. Appends are
// write-behind; failures are logged and never affect live state.
type Journal interface {
	Append(Record) error
}

// Option configures a Manager.
type Option func(*Manager)

// WithJournal wires a history journal for terminal records.
func WithJournal(journal Journal) Option {
	return func(m *Manager) {
		m.journal = journal
	}
}

// WithLogger attaches a logger.
func WithLogger(logger *slog.Logger) Option {
	return func(m *Manager) {
		if logger != nil {
			m.logger = logger
		}
	}
}

// WithClock overrides time acquisition for tests.
func WithClock(now func() time.Time) Option {
	return func(m *Manager) {
		if now != nil {
			m.now = now
		}
	}
}

// Manager owns the transfer table and the admission loop. All state lives
// behind one mutex; the admission goroutine is the only place transfers
// move from queued to active.
type Manager struct {
	mu      sync.Mutex
	records map[string]*Record
	order   []string
	queue   []string
	active  map[string]context.CancelFunc
	bound   int

	registry *hosts.Registry
	driver   rsync.Driver
	hub      *events.Hub
	journal  Journal
	logger   *slog.Logger
	now      func() time.Time

	notify  chan struct{}
	cancel  context.CancelFunc
	workers sync.WaitGroup
	loop    sync.WaitGroup
	started bool
}

// NewManager constructs a transfer manager with the given admission bound.
func NewManager(registry *hosts.Registry, driver rsync.Driver, hub *events.Hub, concurrency int, opts ...Option) *Manager {
	if concurrency < 1 {
		concurrency = 1
	}
	m := &Manager{
		records:  make(map[string]*Record),
		active:   make(map[string]context.CancelFunc),
		bound:    concurrency,
		registry: registry,
		driver:   driver,
		hub:      hub,
		logger:   logging.NewNop(),
		now:      time.Now,
		notify:   make(chan struct{}, 1),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Start launches the admission loop. Transfers submitted before Start sit
// queued until the loop picks them up.
func (m *Manager) Start(ctx context.Context) error {
	m.mu.Lock()
	if m.started {
		m.mu.Unlock()
		return services.Wrap(services.ErrValidation, "transfer", "start", "manager already started", nil)
	}
	m.started = true
	runCtx, cancel := context.WithCancel(ctx)
	m.cancel = cancel
	m.mu.Unlock()

	m.loop.Add(1)
	go m.run(runCtx)
	m.wake()
	return nil
}

// Stop cancels every active transfer and waits for workers to drain.
func (m *Manager) Stop() {
	m.mu.Lock()
	cancel := m.cancel
	m.cancel = nil
	m.started = false
	m.mu.Unlock()
	if cancel == nil {
		return
	}
	cancel()
	m.loop.Wait()
	m.workers.Wait()
}

func (m *Manager) run(ctx context.Context) {
	defer m.loop.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case <-m.notify:
			m.admit(ctx)
		}
	}
}

// admit moves queued transfers into the active set up to the bound.
func (m *Manager) admit(ctx context.Context) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for len(m.active) < m.bound && len(m.queue) > 0 {
		id := m.queue[0]
		m.queue = m.queue[1:]
		record, ok := m.records[id]
		if !ok || record.Status != StatusQueued {
			continue
		}
		started := m.now().UTC()
		record.Status = StatusActive
		record.StartedAt = &started
		workerCtx, cancel := context.WithCancel(ctx)
		m.active[id] = cancel
		m.publishLocked(events.TypeUpdate, record)

		m.workers.Add(1)
		go m.execute(workerCtx, id)
	}
}

// execute runs one copy to completion and records the outcome.
func (m *Manager) execute(ctx context.Context, id string) {
	defer m.workers.Done()
	defer m.wake()
	defer func() {
		if r := recover(); r != nil {
			m.finish(id, fmt.Errorf("transfer worker panicked: %v", r), false)
		}
	}()

	req, ok := m.copyRequest(id)
	if !ok {
		m.releaseSlot(id)
		return
	}

	err := m.driver.Copy(ctx, req)
	cancelled := err != nil && (errors.Is(err, context.Canceled) || ctx.Err() != nil)
	m.finish(id, err, cancelled)
}

func (m *Manager) copyRequest(id string) (rsync.CopyRequest, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	record, ok := m.records[id]
	if !ok {
		return rsync.CopyRequest{}, false
	}
	source, err := m.registry.Get(record.SourceHostID)
	if err != nil {
		return rsync.CopyRequest{}, false
	}
	dest, err := m.registry.Get(record.DestHostID)
	if err != nil {
		return rsync.CopyRequest{}, false
	}
	return rsync.CopyRequest{
		Source:      source,
		Destination: dest,
		SourcePath:  record.SourcePath,
		DestPath:    record.DestPath,
		OnProgress: func(p rsync.Progress) {
			m.recordProgress(id, p)
		},
	}, true
}

func (m *Manager) recordProgress(id string, p rsync.Progress) {
	m.mu.Lock()
	defer m.mu.Unlock()
	record, ok := m.records[id]
	if !ok || record.Status != StatusActive {
		return
	}
	record.Progress = Progress{
		Bytes:   p.Bytes,
		Percent: p.Percent,
		Rate:    p.Rate,
		ETA:     p.ETA,
	}
	m.publishLocked(events.TypeProgress, record)
}

// finish moves an active transfer to its terminal status and journals it.
func (m *Manager) finish(id string, err error, cancelled bool) {
	m.mu.Lock()
	record, ok := m.records[id]
	if !ok || record.Status != StatusActive {
		m.releaseSlotLocked(id)
		m.mu.Unlock()
		return
	}
	completed := m.now().UTC()
	record.CompletedAt = &completed
	eventType := events.TypeComplete
	switch {
	case cancelled:
		record.Status = StatusCancelled
		eventType = events.TypeUpdate
	case err != nil:
		record.Status = StatusFailed
		record.ErrorMessage = err.Error()
		eventType = events.TypeError
	default:
		record.Status = StatusCompleted
		record.Progress.Percent = 100
		if record.Size > 0 {
			record.Progress.Bytes = record.Size
		}
	}
	m.publishLocked(eventType, record)
	m.releaseSlotLocked(id)
	snapshot := record.Clone()
	m.mu.Unlock()

	m.journalRecord(snapshot)
	m.logOutcome(snapshot, err)
}

func (m *Manager) logOutcome(record *Record, err error) {
	log := m.logger.With(
		logging.String(logging.FieldTransferID, record.ID),
		logging.String(logging.FieldHost, record.SourceHostID),
	)
	switch record.Status {
	case StatusCompleted:
		log.Info("transfer completed",
			logging.String("dest_path", record.DestPath),
			logging.Int64("size", record.Size))
	case StatusCancelled:
		log.Info("transfer cancelled")
	case StatusFailed:
		log.Error("transfer failed", logging.Error(err))
	}
}

func (m *Manager) releaseSlot(id string) {
	m.mu.Lock()
	m.releaseSlotLocked(id)
	m.mu.Unlock()
}

func (m *Manager) releaseSlotLocked(id string) {
	if cancel, ok := m.active[id]; ok {
		cancel()
		delete(m.active, id)
	}
}

// Submit validates and enqueues a batch. Every file shares one batch id,
// and each becomes an independent transfer record.
func (m *Manager) Submit(req SubmitRequest) (string, []*Record, error) {
	source, err := m.registry.Get(req.SourceHostID)
	if err != nil {
		return "", nil, err
	}
	dest, err := m.registry.Get(req.DestHostID)
	if err != nil {
		return "", nil, err
	}
	if req.SourceHostID == req.DestHostID {
		return "", nil, services.Wrap(services.ErrValidation, "transfer", "submit", "source and destination hosts are the same", nil)
	}
	if len(req.Files) == 0 {
		return "", nil, services.Wrap(services.ErrValidation, "transfer", "submit", "batch contains no files", nil)
	}
	for _, file := range req.Files {
		if strings.TrimSpace(file.Path) == "" {
			return "", nil, services.Wrap(services.ErrValidation, "transfer", "submit", "file entry is missing a path", nil)
		}
	}

	batchID := uuid.NewString()
	created := m.now().UTC()

	m.mu.Lock()
	out := make([]*Record, 0, len(req.Files))
	for _, file := range req.Files {
		name := file.Name
		if name == "" {
			name = path.Base(file.Path)
		}
		record := &Record{
			ID:           uuid.NewString(),
			BatchID:      batchID,
			SourceHostID: source.ID,
			DestHostID:   dest.ID,
			SourcePath:   file.Path,
			DestPath:     pathmap.Map(file.Path, source.Categories, dest.Categories),
			FileName:     name,
			Size:         file.Size,
			Status:       StatusQueued,
			CreatedAt:    created,
		}
		m.records[record.ID] = record
		m.order = append(m.order, record.ID)
		m.queue = append(m.queue, record.ID)
		m.publishLocked(events.TypeUpdate, record)
		out = append(out, record.Clone())
	}
	m.mu.Unlock()

	m.logger.Info("batch submitted",
		logging.String("batch_id", batchID),
		logging.String(logging.FieldHost, source.ID),
		logging.String("dest_host", dest.ID),
		logging.Int("files", len(out)))
	m.wake()
	return batchID, out, nil
}

// Cancel stops a transfer. Both queued and active transfers settle
// immediately; an active worker's context is cancelled and its slot is
// freed without waiting for the driver to unwind. The boolean reports
// whether this call changed anything, so a second cancel of the same
// transfer returns false.
func (m *Manager) Cancel(id string) (bool, error) {
	m.mu.Lock()
	record, ok := m.records[id]
	if !ok {
		m.mu.Unlock()
		return false, services.Wrap(services.ErrNotFound, "transfer", "cancel", fmt.Sprintf("no transfer with id %s", id), nil)
	}
	switch record.Status {
	case StatusQueued, StatusActive:
		m.dropFromQueueLocked(id)
		completed := m.now().UTC()
		record.Status = StatusCancelled
		record.CompletedAt = &completed
		m.publishLocked(events.TypeUpdate, record)
		m.releaseSlotLocked(id)
		snapshot := record.Clone()
		m.mu.Unlock()
		m.journalRecord(snapshot)
		m.wake()
		return true, nil
	default:
		m.mu.Unlock()
		return false, nil
	}
}

// MarkSkipped settles a queued transfer without running it, for files the
// caller knows already exist at the destination.
func (m *Manager) MarkSkipped(id string) error {
	m.mu.Lock()
	record, ok := m.records[id]
	if !ok {
		m.mu.Unlock()
		return services.Wrap(services.ErrNotFound, "transfer", "skip", fmt.Sprintf("no transfer with id %s", id), nil)
	}
	if record.Status != StatusQueued {
		m.mu.Unlock()
		return services.Wrap(services.ErrValidation, "transfer", "skip",
			fmt.Sprintf("transfer is %s, only queued transfers can be skipped", record.Status), nil)
	}
	m.dropFromQueueLocked(id)
	completed := m.now().UTC()
	record.Status = StatusSkipped
	record.CompletedAt = &completed
	m.publishLocked(events.TypeUpdate, record)
	snapshot := record.Clone()
	m.mu.Unlock()
	m.journalRecord(snapshot)
	return nil
}

func (m *Manager) dropFromQueueLocked(id string) {
	for i, queuedID := range m.queue {
		if queuedID == id {
			m.queue = append(m.queue[:i], m.queue[i+1:]...)
			return
		}
	}
}

// Get returns a copy of one record.
func (m *Manager) Get(id string) (*Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	record, ok := m.records[id]
	if !ok {
		return nil, services.Wrap(services.ErrNotFound, "transfer", "get", fmt.Sprintf("no transfer with id %s", id), nil)
	}
	return record.Clone(), nil
}

// List returns matching records, newest created first. Submission order
// is tracked explicitly so records created in the same instant keep a
// stable ordering.
func (m *Manager) List(filter Filter) []*Record {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*Record, 0, len(m.order))
	for i := len(m.order) - 1; i >= 0; i-- {
		record, ok := m.records[m.order[i]]
		if !ok || !filter.matches(record) {
			continue
		}
		out = append(out, record.Clone())
	}
	return out
}

// Snapshot returns every record, for event subscribers joining late.
func (m *Manager) Snapshot() []*Record {
	return m.List(Filter{})
}

// Stats summarizes the record table.
func (m *Manager) Stats() Stats {
	m.mu.Lock()
	defer m.mu.Unlock()
	stats := Stats{
		ByStatus:    make(map[Status]int, len(AllStatuses())),
		ActiveBound: m.bound,
	}
	for _, status := range AllStatuses() {
		stats.ByStatus[status] = 0
	}
	for _, record := range m.records {
		stats.Total++
		stats.ByStatus[record.Status]++
		switch record.Status {
		case StatusQueued, StatusActive:
			stats.BytesQueued += record.Size
		case StatusCompleted:
			stats.BytesMoved += record.Size
		}
	}
	return stats
}

// SetConcurrency adjusts the admission bound. Raising it admits waiting
// transfers immediately; lowering it lets running transfers finish.
func (m *Manager) SetConcurrency(bound int) int {
	if bound < 1 {
		bound = 1
	}
	m.mu.Lock()
	m.bound = bound
	m.mu.Unlock()
	m.wake()
	return bound
}

// Sweep drops terminal records older than maxAge from memory and returns
// how many were removed. Their journal entries remain.
func (m *Manager) Sweep(maxAge time.Duration) int {
	cutoff := m.now().UTC().Add(-maxAge)
	m.mu.Lock()
	defer m.mu.Unlock()
	removed := 0
	kept := m.order[:0]
	for _, id := range m.order {
		record, ok := m.records[id]
		if !ok {
			continue
		}
		if record.Status.IsTerminal() && record.CompletedAt != nil && record.CompletedAt.Before(cutoff) {
			delete(m.records, id)
			removed++
			continue
		}
		kept = append(kept, id)
	}
	m.order = kept
	if removed > 0 {
		m.logger.Info("swept terminal transfers", logging.Int("removed", removed))
	}
	return removed
}

func (m *Manager) publishLocked(eventType events.Type, record *Record) {
	if m.hub == nil {
		return
	}
	m.hub.Publish(eventType, record.Clone())
}

func (m *Manager) journalRecord(record *Record) {
	if m.journal == nil || record == nil {
		return
	}
	if err := m.journal.Append(*record); err != nil {
		m.logger.Warn("history journal append failed",
			logging.String(logging.FieldTransferID, record.ID),
			logging.Error(err))
	}
}

func (m *Manager) wake() {
	select {
	case m.notify <- struct{}{}:
	default:
	}
}
