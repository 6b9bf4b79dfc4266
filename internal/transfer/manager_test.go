package transfer

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"shuttle/internal/config"
	"shuttle/internal/events"
	"shuttle/internal/hosts"
	"shuttle/internal/rsync"
	"shuttle/internal/services"
)

func testRegistry(t *testing.T) *hosts.Registry {
	t.Helper()
	cfg := &config.Config{
		Hosts: []config.Host{
			{
				ID:      "alpha",
				Address: "10.0.0.1",
				Port:    22,
				User:    "media",
				KeyFile: "/tmp/key",
				Categories: map[string]string{
					"movies": "/srv/movies",
					"shows":  "/srv/shows",
				},
				Fallback: "movies",
			},
			{
				ID:      "beta",
				Address: "10.0.0.2",
				Port:    22,
				User:    "vault",
				KeyFile: "/tmp/key",
				Categories: map[string]string{
					"movies": "/library/Movies",
					"shows":  "/library/Shows",
				},
				Fallback: "movies",
			},
		},
	}
	registry, err := hosts.NewRegistry(cfg)
	if err != nil {
		t.Fatalf("registry: %v", err)
	}
	return registry
}

// gateDriver blocks each copy until the test releases it, so tests control
// exactly when transfers settle. With ignoreCtx set it keeps blocking
// through context cancellation, like a remote teardown that never unwinds.
type gateDriver struct {
	mu        sync.Mutex
	gates     map[string]chan error
	started   chan string
	current   int
	peak      int
	ignoreCtx bool
}

func newGateDriver() *gateDriver {
	return &gateDriver{
		gates:   make(map[string]chan error),
		started: make(chan string, 32),
	}
}

func (d *gateDriver) Copy(ctx context.Context, req rsync.CopyRequest) error {
	gate := make(chan error, 1)
	d.mu.Lock()
	d.current++
	if d.current > d.peak {
		d.peak = d.current
	}
	d.gates[req.SourcePath] = gate
	d.mu.Unlock()
	d.started <- req.SourcePath

	defer func() {
		d.mu.Lock()
		d.current--
		delete(d.gates, req.SourcePath)
		d.mu.Unlock()
	}()

	if d.ignoreCtx {
		return <-gate
	}
	select {
	case err := <-gate:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (d *gateDriver) finish(sourcePath string, err error) {
	d.mu.Lock()
	gate := d.gates[sourcePath]
	d.mu.Unlock()
	if gate != nil {
		gate <- err
	}
}

func (d *gateDriver) waitStarted(t *testing.T, n int) []string {
	t.Helper()
	paths := make([]string, 0, n)
	for len(paths) < n {
		select {
		case p := <-d.started:
			paths = append(paths, p)
		case <-time.After(2 * time.Second):
			t.Fatalf("timed out waiting for %d copies to start, saw %d", n, len(paths))
		}
	}
	return paths
}

func waitForStatus(t *testing.T, m *Manager, id string, want Status) *Record {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		record, err := m.Get(id)
		if err != nil {
			t.Fatalf("get: %v", err)
		}
		if record.Status == want {
			return record
		}
		time.Sleep(5 * time.Millisecond)
	}
	record, _ := m.Get(id)
	t.Fatalf("transfer %s never reached %s, last status %s", id, want, record.Status)
	return nil
}

type memoryJournal struct {
	mu      sync.Mutex
	records []Record
}

func (j *memoryJournal) Append(record Record) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.records = append(j.records, record)
	return nil
}

func (j *memoryJournal) statuses() []Status {
	j.mu.Lock()
	defer j.mu.Unlock()
	out := make([]Status, len(j.records))
	for i, r := range j.records {
		out[i] = r.Status
	}
	return out
}

func submitFiles(t *testing.T, m *Manager, paths ...string) (string, []*Record) {
	t.Helper()
	files := make([]FileSpec, len(paths))
	for i, p := range paths {
		files[i] = FileSpec{Path: p, Size: 1000}
	}
	batchID, records, err := m.Submit(SubmitRequest{
		SourceHostID: "alpha",
		DestHostID:   "beta",
		Files:        files,
	})
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	return batchID, records
}

func TestSubmitQueuesBatch(t *testing.T) {
	m := NewManager(testRegistry(t), newGateDriver(), events.NewHub(64), 3)

	batchID, records := submitFiles(t, m, "/srv/movies/Heat (1995)/heat.mkv", "/srv/shows/Wire/s01e01.mkv")
	if batchID == "" {
		t.Fatal("expected batch id")
	}
	if len(records) != 2 {
		t.Fatalf("expected 2 records, got %d", len(records))
	}
	seen := make(map[string]bool)
	for _, record := range records {
		if record.BatchID != batchID {
			t.Errorf("record %s has batch %s, want %s", record.ID, record.BatchID, batchID)
		}
		if seen[record.ID] {
			t.Errorf("duplicate record id %s", record.ID)
		}
		seen[record.ID] = true
		if record.Status != StatusQueued {
			t.Errorf("expected queued, got %s", record.Status)
		}
	}
	if records[0].DestPath != "/library/Movies/Heat (1995)/heat.mkv" {
		t.Errorf("unexpected dest path %q", records[0].DestPath)
	}
	if records[1].DestPath != "/library/Shows/Wire/s01e01.mkv" {
		t.Errorf("unexpected dest path %q", records[1].DestPath)
	}
	if records[0].FileName != "heat.mkv" {
		t.Errorf("expected file name derived from path, got %q", records[0].FileName)
	}
}

func TestSubmitValidation(t *testing.T) {
	m := NewManager(testRegistry(t), newGateDriver(), events.NewHub(64), 3)

	_, _, err := m.Submit(SubmitRequest{SourceHostID: "nope", DestHostID: "beta", Files: []FileSpec{{Path: "/a"}}})
	if !errors.Is(err, services.ErrNotFound) {
		t.Fatalf("expected ErrNotFound for unknown source, got %v", err)
	}

	_, _, err = m.Submit(SubmitRequest{SourceHostID: "alpha", DestHostID: "alpha", Files: []FileSpec{{Path: "/a"}}})
	if !errors.Is(err, services.ErrValidation) {
		t.Fatalf("expected ErrValidation for same host, got %v", err)
	}

	_, _, err = m.Submit(SubmitRequest{SourceHostID: "alpha", DestHostID: "beta"})
	if !errors.Is(err, services.ErrValidation) {
		t.Fatalf("expected ErrValidation for empty batch, got %v", err)
	}

	_, _, err = m.Submit(SubmitRequest{SourceHostID: "alpha", DestHostID: "beta", Files: []FileSpec{{Path: "  "}}})
	if !errors.Is(err, services.ErrValidation) {
		t.Fatalf("expected ErrValidation for blank path, got %v", err)
	}
}

func TestAdmissionRespectsBound(t *testing.T) {
	driver := newGateDriver()
	m := NewManager(testRegistry(t), driver, events.NewHub(64), 3)
	if err := m.Start(context.Background()); err != nil {
		t.Fatalf("start: %v", err)
	}
	defer m.Stop()

	_, records := submitFiles(t, m,
		"/srv/movies/a.mkv", "/srv/movies/b.mkv", "/srv/movies/c.mkv",
		"/srv/movies/d.mkv", "/srv/movies/e.mkv")

	first := driver.waitStarted(t, 3)
	driver.mu.Lock()
	current := driver.current
	driver.mu.Unlock()
	if current != 3 {
		t.Fatalf("expected 3 concurrent copies, got %d", current)
	}

	stats := m.Stats()
	if stats.ByStatus[StatusActive] != 3 || stats.ByStatus[StatusQueued] != 2 {
		t.Fatalf("unexpected stats: %+v", stats.ByStatus)
	}

	for _, p := range first {
		driver.finish(p, nil)
	}
	rest := driver.waitStarted(t, 2)
	for _, p := range rest {
		driver.finish(p, nil)
	}
	for _, record := range records {
		waitForStatus(t, m, record.ID, StatusCompleted)
	}

	driver.mu.Lock()
	peak := driver.peak
	driver.mu.Unlock()
	if peak > 3 {
		t.Fatalf("admission exceeded bound: peak %d", peak)
	}
}

func TestCompletedTransferFinalState(t *testing.T) {
	driver := newGateDriver()
	journal := &memoryJournal{}
	m := NewManager(testRegistry(t), driver, events.NewHub(64), 1, WithJournal(journal))
	if err := m.Start(context.Background()); err != nil {
		t.Fatalf("start: %v", err)
	}
	defer m.Stop()

	_, records := submitFiles(t, m, "/srv/movies/a.mkv")
	driver.waitStarted(t, 1)
	driver.finish("/srv/movies/a.mkv", nil)

	record := waitForStatus(t, m, records[0].ID, StatusCompleted)
	if record.Progress.Percent != 100 {
		t.Errorf("expected progress 100, got %d", record.Progress.Percent)
	}
	if record.Progress.Bytes != record.Size {
		t.Errorf("expected bytes equal to size, got %d", record.Progress.Bytes)
	}
	if record.StartedAt == nil || record.CompletedAt == nil {
		t.Error("expected start and completion timestamps")
	}
	statuses := journal.statuses()
	if len(statuses) != 1 || statuses[0] != StatusCompleted {
		t.Errorf("expected journaled completed record, got %v", statuses)
	}
}

func TestFailedTransferRecordsError(t *testing.T) {
	driver := newGateDriver()
	m := NewManager(testRegistry(t), driver, events.NewHub(64), 1)
	if err := m.Start(context.Background()); err != nil {
		t.Fatalf("start: %v", err)
	}
	defer m.Stop()

	_, records := submitFiles(t, m, "/srv/movies/a.mkv")
	driver.waitStarted(t, 1)
	driver.finish("/srv/movies/a.mkv", errors.New("rsync exited with code 23"))

	record := waitForStatus(t, m, records[0].ID, StatusFailed)
	if !strings.Contains(record.ErrorMessage, "code 23") {
		t.Errorf("expected error message retained, got %q", record.ErrorMessage)
	}
}

func TestCancelQueuedTwice(t *testing.T) {
	m := NewManager(testRegistry(t), newGateDriver(), events.NewHub(64), 3)

	_, records := submitFiles(t, m, "/srv/movies/a.mkv")
	id := records[0].ID

	changed, err := m.Cancel(id)
	if err != nil || !changed {
		t.Fatalf("first cancel: changed=%v err=%v", changed, err)
	}
	record, err := m.Get(id)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if record.Status != StatusCancelled {
		t.Fatalf("expected cancelled, got %s", record.Status)
	}

	changed, err = m.Cancel(id)
	if err != nil {
		t.Fatalf("second cancel: %v", err)
	}
	if changed {
		t.Fatal("second cancel reported a change")
	}
}

func TestCancelActiveTransfer(t *testing.T) {
	driver := newGateDriver()
	m := NewManager(testRegistry(t), driver, events.NewHub(64), 1)
	if err := m.Start(context.Background()); err != nil {
		t.Fatalf("start: %v", err)
	}
	defer m.Stop()

	_, records := submitFiles(t, m, "/srv/movies/a.mkv")
	driver.waitStarted(t, 1)

	changed, err := m.Cancel(records[0].ID)
	if err != nil || !changed {
		t.Fatalf("cancel: changed=%v err=%v", changed, err)
	}

	// The record settles on the cancel call itself, not when the worker
	// eventually observes the cancellation.
	record, err := m.Get(records[0].ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if record.Status != StatusCancelled {
		t.Fatalf("expected cancelled immediately, got %s", record.Status)
	}
	if record.CompletedAt == nil {
		t.Fatal("expected CompletedAt stamped on cancel")
	}

	changed, err = m.Cancel(records[0].ID)
	if err != nil || changed {
		t.Fatalf("second cancel: changed=%v err=%v", changed, err)
	}
}

func TestCancelActiveFreesSlotWithStuckDriver(t *testing.T) {
	driver := newGateDriver()
	driver.ignoreCtx = true
	journal := &memoryJournal{}
	m := NewManager(testRegistry(t), driver, events.NewHub(64), 1, WithJournal(journal))
	if err := m.Start(context.Background()); err != nil {
		t.Fatalf("start: %v", err)
	}
	defer m.Stop()

	_, records := submitFiles(t, m, "/srv/movies/a.mkv", "/srv/movies/b.mkv")
	driver.waitStarted(t, 1)

	changed, err := m.Cancel(records[0].ID)
	if err != nil || !changed {
		t.Fatalf("cancel: changed=%v err=%v", changed, err)
	}

	// The freed slot admits the queued transfer even though the first
	// copy is still wedged inside the driver.
	started := driver.waitStarted(t, 1)
	if started[0] != "/srv/movies/b.mkv" {
		t.Fatalf("expected b.mkv admitted, got %s", started[0])
	}
	driver.finish("/srv/movies/b.mkv", nil)
	waitForStatus(t, m, records[1].ID, StatusCompleted)

	if got := journal.statuses(); len(got) == 0 || got[0] != StatusCancelled {
		t.Fatalf("expected cancelled record journaled first, got %v", got)
	}

	// Unwedge the first worker so shutdown can drain. Its late return
	// must not disturb the settled record.
	driver.finish("/srv/movies/a.mkv", nil)
	time.Sleep(20 * time.Millisecond)
	record, err := m.Get(records[0].ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if record.Status != StatusCancelled {
		t.Fatalf("expected cancelled to stick, got %s", record.Status)
	}
}

func TestCancelUnknownTransfer(t *testing.T) {
	m := NewManager(testRegistry(t), newGateDriver(), events.NewHub(64), 3)
	_, err := m.Cancel("missing")
	if !errors.Is(err, services.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestMarkSkippedOnlyFromQueued(t *testing.T) {
	driver := newGateDriver()
	m := NewManager(testRegistry(t), driver, events.NewHub(64), 1)

	_, records := submitFiles(t, m, "/srv/movies/a.mkv", "/srv/movies/b.mkv")
	if err := m.MarkSkipped(records[1].ID); err != nil {
		t.Fatalf("skip queued: %v", err)
	}
	record, _ := m.Get(records[1].ID)
	if record.Status != StatusSkipped {
		t.Fatalf("expected skipped, got %s", record.Status)
	}

	if err := m.MarkSkipped(records[1].ID); !errors.Is(err, services.ErrValidation) {
		t.Fatalf("expected ErrValidation for terminal record, got %v", err)
	}

	if err := m.Start(context.Background()); err != nil {
		t.Fatalf("start: %v", err)
	}
	defer m.Stop()
	driver.waitStarted(t, 1)
	if err := m.MarkSkipped(records[0].ID); !errors.Is(err, services.ErrValidation) {
		t.Fatalf("expected ErrValidation for active record, got %v", err)
	}
	driver.finish("/srv/movies/a.mkv", nil)
	waitForStatus(t, m, records[0].ID, StatusCompleted)
}

func TestProgressEventsUpdateRecord(t *testing.T) {
	registry := testRegistry(t)
	hub := events.NewHub(64)

	var manager *Manager
	driver := driverFunc(func(ctx context.Context, req rsync.CopyRequest) error {
		req.OnProgress(rsync.Progress{Bytes: 500, Percent: 50, Rate: "1.0MB/s", ETA: "0:00:05"})
		return nil
	})
	manager = NewManager(registry, driver, hub, 1)
	if err := manager.Start(context.Background()); err != nil {
		t.Fatalf("start: %v", err)
	}
	defer manager.Stop()

	_, records := submitFiles(t, manager, "/srv/movies/a.mkv")
	waitForStatus(t, manager, records[0].ID, StatusCompleted)

	evts, _, err := hub.Fetch(context.Background(), 0, 0, false)
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	var sawProgress, sawComplete bool
	for _, evt := range evts {
		switch evt.Type {
		case events.TypeProgress:
			sawProgress = true
			record, ok := evt.Payload.(*Record)
			if !ok {
				t.Fatalf("unexpected payload type %T", evt.Payload)
			}
			if record.Progress.Percent != 50 {
				t.Errorf("expected progress 50 in event, got %d", record.Progress.Percent)
			}
		case events.TypeComplete:
			sawComplete = true
		}
	}
	if !sawProgress || !sawComplete {
		t.Fatalf("expected progress and complete events, got progress=%v complete=%v", sawProgress, sawComplete)
	}
}

type driverFunc func(ctx context.Context, req rsync.CopyRequest) error

func (f driverFunc) Copy(ctx context.Context, req rsync.CopyRequest) error {
	return f(ctx, req)
}

func TestStatsCounts(t *testing.T) {
	m := NewManager(testRegistry(t), newGateDriver(), events.NewHub(64), 4)

	_, records := submitFiles(t, m, "/srv/movies/a.mkv", "/srv/movies/b.mkv", "/srv/movies/c.mkv")
	if _, err := m.Cancel(records[2].ID); err != nil {
		t.Fatalf("cancel: %v", err)
	}

	stats := m.Stats()
	if stats.Total != 3 {
		t.Errorf("expected total 3, got %d", stats.Total)
	}
	if stats.ByStatus[StatusQueued] != 2 || stats.ByStatus[StatusCancelled] != 1 {
		t.Errorf("unexpected by-status counts: %+v", stats.ByStatus)
	}
	// Every status is reported, zero counts included.
	for _, status := range AllStatuses() {
		if _, ok := stats.ByStatus[status]; !ok {
			t.Errorf("status %s missing from counts", status)
		}
	}
	if stats.ByStatus[StatusSkipped] != 0 {
		t.Errorf("expected zero skipped, got %d", stats.ByStatus[StatusSkipped])
	}
	if stats.BytesQueued != 2000 {
		t.Errorf("expected 2000 bytes queued, got %d", stats.BytesQueued)
	}
	if stats.ActiveBound != 4 {
		t.Errorf("expected bound 4, got %d", stats.ActiveBound)
	}
}

func TestSetConcurrencyAdmitsWaiting(t *testing.T) {
	driver := newGateDriver()
	m := NewManager(testRegistry(t), driver, events.NewHub(64), 1)
	if err := m.Start(context.Background()); err != nil {
		t.Fatalf("start: %v", err)
	}
	defer m.Stop()

	submitFiles(t, m, "/srv/movies/a.mkv", "/srv/movies/b.mkv")
	driver.waitStarted(t, 1)

	if got := m.SetConcurrency(2); got != 2 {
		t.Fatalf("expected bound 2, got %d", got)
	}
	driver.waitStarted(t, 1)

	driver.finish("/srv/movies/a.mkv", nil)
	driver.finish("/srv/movies/b.mkv", nil)
}

func TestSweepRemovesOldTerminalRecords(t *testing.T) {
	now := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	clock := func() time.Time { return now }
	m := NewManager(testRegistry(t), newGateDriver(), events.NewHub(64), 3, WithClock(clock))

	_, records := submitFiles(t, m, "/srv/movies/old.mkv", "/srv/movies/fresh.mkv", "/srv/movies/live.mkv")

	if _, err := m.Cancel(records[0].ID); err != nil {
		t.Fatalf("cancel: %v", err)
	}
	now = now.Add(73 * time.Hour)
	if _, err := m.Cancel(records[1].ID); err != nil {
		t.Fatalf("cancel: %v", err)
	}

	removed := m.Sweep(72 * time.Hour)
	if removed != 1 {
		t.Fatalf("expected 1 removed, got %d", removed)
	}
	if _, err := m.Get(records[0].ID); !errors.Is(err, services.ErrNotFound) {
		t.Fatalf("expected old record gone, got %v", err)
	}
	if _, err := m.Get(records[1].ID); err != nil {
		t.Fatalf("expected fresh terminal record retained: %v", err)
	}
	if _, err := m.Get(records[2].ID); err != nil {
		t.Fatalf("expected queued record retained: %v", err)
	}
	if len(m.List(Filter{})) != 2 {
		t.Fatalf("expected 2 listed records, got %d", len(m.List(Filter{})))
	}
}

func TestListNewestFirst(t *testing.T) {
	now := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	clock := func() time.Time { return now }
	m := NewManager(testRegistry(t), newGateDriver(), events.NewHub(64), 3, WithClock(clock))

	submitFiles(t, m, "/srv/movies/first.mkv")
	now = now.Add(time.Hour)
	submitFiles(t, m, "/srv/movies/second.mkv")

	list := m.List(Filter{})
	if len(list) != 2 {
		t.Fatalf("expected 2 records, got %d", len(list))
	}
	if list[0].FileName != "second.mkv" || list[1].FileName != "first.mkv" {
		t.Fatalf("expected newest first, got %s then %s", list[0].FileName, list[1].FileName)
	}
	if !list[0].CreatedAt.After(list[1].CreatedAt) {
		t.Fatalf("expected descending CreatedAt, got %v then %v", list[0].CreatedAt, list[1].CreatedAt)
	}
}

func TestListFilters(t *testing.T) {
	m := NewManager(testRegistry(t), newGateDriver(), events.NewHub(64), 3)

	batchA, _ := submitFiles(t, m, "/srv/movies/a.mkv")
	submitFiles(t, m, "/srv/movies/b.mkv")

	if got := len(m.List(Filter{BatchID: batchA})); got != 1 {
		t.Errorf("expected 1 record for batch filter, got %d", got)
	}
	if got := len(m.List(Filter{Status: StatusQueued})); got != 2 {
		t.Errorf("expected 2 queued records, got %d", got)
	}
	if got := len(m.List(Filter{Status: StatusCompleted})); got != 0 {
		t.Errorf("expected no completed records, got %d", got)
	}
	if got := len(m.List(Filter{SourceHostID: "alpha", DestHostID: "beta"})); got != 2 {
		t.Errorf("expected 2 records for host filter, got %d", got)
	}
}

func TestParseStatus(t *testing.T) {
	status, err := ParseStatus(" Completed ")
	if err != nil || status != StatusCompleted {
		t.Fatalf("parse: status=%s err=%v", status, err)
	}
	if _, err := ParseStatus("bogus"); err == nil {
		t.Fatal("expected error for unknown status")
	}
}
