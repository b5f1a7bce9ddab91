package store

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLedgerMissingFileIsEmpty(t *testing.T) {
	path := filepath.Join(t.TempDir(), "scraped_ids.txt")

	ledger, err := OpenLedger(path, &Sink{})
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if ledger.Len() != 0 {
		t.Fatalf("len = %d, want 0", ledger.Len())
	}
	if ledger.Done("10") {
		t.Fatalf("empty ledger should not report 10 as done")
	}
}

func TestLedgerLoadTrimsAndSkipsBlanks(t *testing.T) {
	path := filepath.Join(t.TempDir(), "scraped_ids.txt")
	content := "10\n  20  \n\n\t\n30\n"
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("seed ledger: %v", err)
	}

	ledger, err := OpenLedger(path, &Sink{})
	if err != nil {
		t.Fatalf("open: %v", err)
	}

	if got := ledger.Len(); got != 3 {
		t.Fatalf("len = %d, want 3", got)
	}
	for _, id := range []string{"10", "20", "30"} {
		if !ledger.Done(id) {
			t.Fatalf("id %s should be done", id)
		}
	}
	if ledger.Done("") {
		t.Fatalf("blank line must not become an id")
	}
}

func TestLedgerMarkDonePersistsAcrossReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "scraped_ids.txt")
	sink := &Sink{}

	ledger, err := OpenLedger(path, sink)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	for _, id := range []string{"10", "20"} {
		if err := ledger.MarkDone(id); err != nil {
			t.Fatalf("mark %s: %v", id, err)
		}
	}
	if !ledger.Done("10") || !ledger.Done("20") {
		t.Fatalf("marked ids should be done in memory")
	}

	reopened, err := OpenLedger(path, sink)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	if got := reopened.Len(); got != 2 {
		t.Fatalf("reopened len = %d, want 2", got)
	}
	if !reopened.Done("10") || !reopened.Done("20") {
		t.Fatalf("marked ids should survive reopen")
	}
}

func TestLedgerMarkDoneFailureLeavesMemoryUnchanged(t *testing.T) {
	path := filepath.Join(t.TempDir(), "scraped_ids.txt")
	sink := &Sink{}

	ledger, err := OpenLedger(path, sink)
	if err != nil {
		t.Fatalf("open: %v", err)
	}

	sink.failAfterStage = func() error { return os.ErrPermission }
	if err := ledger.MarkDone("10"); err == nil {
		t.Fatalf("expected append failure")
	}
	if ledger.Done("10") {
		t.Fatalf("failed mark must not update the in-memory set")
	}
}
