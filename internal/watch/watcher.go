package watch

import (
	"context"
	"log"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"ticketreport/internal/config"
	"ticketreport/internal/schedule"
)

// DefaultSettle is how long a file must be quiet before it is converted.
const DefaultSettle = 2 * time.Second

// Watcher monitors the inbox directory for new exports and converts them.
type Watcher struct {
	cfg    config.Config
	conv   schedule.Converter
	settle time.Duration

	mu      sync.Mutex
	pending map[string]*time.Timer
}

func New(cfg config.Config, conv schedule.Converter) *Watcher {
	return &Watcher{cfg: cfg, conv: conv, settle: DefaultSettle, pending: map[string]*time.Timer{}}
}

func (w *Watcher) Start(ctx context.Context) error {
	if !w.cfg.WatchInbox {
		log.Println("inbox watcher disabled")
		return nil
	}
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	if err := watcher.Add(w.cfg.InboxDir); err != nil {
		watcher.Close()
		return err
	}
	log.Printf("Watching inbox %s", w.cfg.InboxDir)
	go func() {
		defer watcher.Close()
		for {
			select {
			case <-ctx.Done():
				w.stopPending()
				return
			case evt, ok := <-watcher.Events:
				if !ok {
					return
				}
				if evt.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Rename) != 0 && schedule.IsExport(evt.Name) {
					w.schedule(evt.Name)
				}
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				log.Printf("watcher error: %v", err)
			}
		}
	}()
	return nil
}

// schedule (re)arms the settle timer for path. Exports are usually written
// in several chunks, so only the last event triggers a conversion.
func (w *Watcher) schedule(path string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if t, ok := w.pending[path]; ok {
		t.Stop()
	}
	var t *time.Timer
	t = time.AfterFunc(w.settle, func() { w.fire(path, t) })
	w.pending[path] = t
}

// fire runs when t expires. A timer that was replaced while its callback
// was already starting does nothing; the newer timer owns the path.
func (w *Watcher) fire(path string, t *time.Timer) {
	w.mu.Lock()
	if w.pending[path] != t {
		w.mu.Unlock()
		return
	}
	delete(w.pending, path)
	w.mu.Unlock()
	w.convert(path)
}

func (w *Watcher) stopPending() {
	w.mu.Lock()
	defer w.mu.Unlock()
	for path, t := range w.pending {
		t.Stop()
		delete(w.pending, path)
	}
}

func (w *Watcher) convert(path string) {
	ran, err := w.conv.ConvertIfStale(path)
	if err != nil {
		log.Printf("watch convert failed file=%s err=%v", filepath.Base(path), err)
		return
	}
	if ran {
		log.Printf("watch convert complete file=%s", filepath.Base(path))
	}
}

// Backfill converts existing exports whose reports are missing or stale.
func (w *Watcher) Backfill(ctx context.Context) error {
	entries, err := filepath.Glob(filepath.Join(w.cfg.InboxDir, "*"))
	if err != nil {
		return err
	}
	for _, e := range entries {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if schedule.IsExport(e) {
			w.convert(e)
		}
	}
	return nil
}
