package testsupport

import (
	"path/filepath"
	"testing"

	"shuttle/internal/history"
)

// MustOpenJournal opens a temp-backed history journal and registers cleanup.
func MustOpenJournal(t testing.TB) *history.Journal {
	t.Helper()

	journal, err := history.Open(filepath.Join(t.TempDir(), "history.db"))
	if err != nil {
		t.Fatalf("history.Open: %v", err)
	}
	t.Cleanup(func() {
		journal.Close()
	})
	return journal
}
