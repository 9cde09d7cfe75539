package watch

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"ticketreport/internal/config"
)

type recordingConverter struct {
	mu    sync.Mutex
	calls []string
	done  chan string
}

func (r *recordingConverter) ConvertIfStale(path string) (bool, error) {
	r.mu.Lock()
	r.calls = append(r.calls, filepath.Base(path))
	r.mu.Unlock()
	if r.done != nil {
		r.done <- filepath.Base(path)
	}
	return true, nil
}

func (r *recordingConverter) snapshot() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.calls...)
}

func TestStartDisabled(t *testing.T) {
	w := New(config.Config{InboxDir: t.TempDir()}, &recordingConverter{})
	if err := w.Start(context.Background()); err != nil {
		t.Fatalf("disabled watcher returned %v", err)
	}
}

func TestStartMissingInbox(t *testing.T) {
	w := New(config.Config{WatchInbox: true, InboxDir: filepath.Join(t.TempDir(), "nope")}, &recordingConverter{})
	if err := w.Start(context.Background()); err == nil {
		t.Fatal("expected error for missing inbox dir")
	}
}

func TestWatcherConvertsDroppedExport(t *testing.T) {
	dir := t.TempDir()
	conv := &recordingConverter{done: make(chan string, 4)}
	w := New(config.Config{WatchInbox: true, InboxDir: dir}, conv)
	w.settle = 50 * time.Millisecond

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := w.Start(ctx); err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	if err := os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("x"), 0644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "export.csv"), []byte("Case Number\n"), 0644); err != nil {
		t.Fatal(err)
	}

	select {
	case got := <-conv.done:
		if got != "export.csv" {
			t.Fatalf("converted %s", got)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for conversion")
	}

	time.Sleep(150 * time.Millisecond)
	if calls := conv.snapshot(); len(calls) != 1 {
		t.Fatalf("expected a single debounced conversion, got %v", calls)
	}
}

func TestBackfill(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"a.csv", "b.CSV", "c.xlsx", ".hidden.csv"} {
		if err := os.WriteFile(filepath.Join(dir, name), []byte("x"), 0644); err != nil {
			t.Fatal(err)
		}
	}
	conv := &recordingConverter{}
	w := New(config.Config{InboxDir: dir}, conv)
	if err := w.Backfill(context.Background()); err != nil {
		t.Fatalf("Backfill failed: %v", err)
	}
	calls := conv.snapshot()
	if len(calls) != 2 || calls[0] != "a.csv" || calls[1] != "b.CSV" {
		t.Fatalf("unexpected backfill calls %v", calls)
	}
}

func TestFireIgnoresReplacedTimer(t *testing.T) {
	conv := &recordingConverter{}
	w := New(config.Config{InboxDir: t.TempDir()}, conv)
	path := filepath.Join(w.cfg.InboxDir, "export.csv")

	current := time.NewTimer(time.Hour)
	stale := time.NewTimer(time.Hour)
	defer current.Stop()
	defer stale.Stop()
	w.pending[path] = current

	w.fire(path, stale)
	if calls := conv.snapshot(); len(calls) != 0 {
		t.Fatalf("replaced timer converted: %v", calls)
	}
	if w.pending[path] != current {
		t.Fatal("replaced timer dropped the pending entry of the current one")
	}

	w.fire(path, current)
	if calls := conv.snapshot(); len(calls) != 1 || calls[0] != "export.csv" {
		t.Fatalf("current timer calls = %v", calls)
	}
	if _, ok := w.pending[path]; ok {
		t.Fatal("pending entry not cleared")
	}
}
