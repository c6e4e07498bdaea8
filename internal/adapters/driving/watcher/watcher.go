// Package watcher drives the pipeline from an inbox directory. The
// external fetcher drops raw bill files there; the watcher picks them
// up and runs ingest plus analyze on each.
package watcher

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/openuspolitics/billtrace/internal/core/domain"
	"github.com/openuspolitics/billtrace/internal/core/ports/driving"
	"github.com/openuspolitics/billtrace/internal/logger"
)

// DefaultSettleDelay is how long a file must stay quiet before it is
// processed. Fetchers write files incrementally; reacting to the first
// event would read a partial bill.
const DefaultSettleDelay = 500 * time.Millisecond

// Watcher feeds inbox files through the pipeline.
type Watcher struct {
	pipeline    driving.PipelineService
	inboxDir    string
	settleDelay time.Duration

	mu      sync.Mutex
	wg      sync.WaitGroup
	pending map[string]*time.Timer
	closed  bool
	fsw     *fsnotify.Watcher
}

// Option configures the watcher.
type Option func(*Watcher)

// WithSettleDelay overrides the quiet period before a file is read.
func WithSettleDelay(d time.Duration) Option {
	return func(w *Watcher) {
		if d > 0 {
			w.settleDelay = d
		}
	}
}

// New creates a watcher for the given inbox directory.
func New(pipeline driving.PipelineService, inboxDir string, opts ...Option) *Watcher {
	w := &Watcher{
		pipeline:    pipeline,
		inboxDir:    inboxDir,
		settleDelay: DefaultSettleDelay,
		pending:     make(map[string]*time.Timer),
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Watch starts watching the inbox and returns a channel of pipeline
// results, one per processed file. The channel closes when the context
// is cancelled. Files already in the inbox at start are processed too.
func (w *Watcher) Watch(ctx context.Context) (<-chan driving.ProcessResult, error) {
	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		return nil, fmt.Errorf("watcher is closed")
	}
	w.mu.Unlock()

	info, err := os.Stat(w.inboxDir)
	if err != nil {
		return nil, fmt.Errorf("inbox path error: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("inbox path error: %s is not a directory", w.inboxDir)
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("creating watcher: %w", err)
	}
	if err := fsw.Add(w.inboxDir); err != nil {
		fsw.Close()
		return nil, fmt.Errorf("watching %s: %w", w.inboxDir, err)
	}

	w.mu.Lock()
	w.fsw = fsw
	w.mu.Unlock()

	results := make(chan driving.ProcessResult)

	go w.run(ctx, fsw, results)

	// Pick up files dropped before the watch started.
	entries, err := os.ReadDir(w.inboxDir)
	if err == nil {
		for _, entry := range entries {
			if !entry.IsDir() {
				w.schedule(ctx, filepath.Join(w.inboxDir, entry.Name()), results)
			}
		}
	}

	return results, nil
}

// run is the event loop. It owns the results channel.
func (w *Watcher) run(ctx context.Context, fsw *fsnotify.Watcher, results chan driving.ProcessResult) {
	defer close(results)
	defer fsw.Close()

	for {
		select {
		case <-ctx.Done():
			w.cancelPending()
			w.wg.Wait()
			return

		case event, ok := <-fsw.Events:
			if !ok {
				return
			}
			if event.Op&(fsnotify.Create|fsnotify.Write) == 0 {
				continue
			}
			w.schedule(ctx, event.Name, results)

		case err, ok := <-fsw.Errors:
			if !ok {
				return
			}
			logger.Warn("Inbox watch error: %v", err)
		}
	}
}

// schedule arms (or re-arms) the settle timer for a file. The timer
// resets on every event so a file in mid-write is never read early.
func (w *Watcher) schedule(ctx context.Context, path string, results chan driving.ProcessResult) {
	if !eligible(path) {
		return
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	if timer, ok := w.pending[path]; ok {
		timer.Reset(w.settleDelay)
		return
	}
	w.wg.Add(1)
	w.pending[path] = time.AfterFunc(w.settleDelay, func() {
		defer w.wg.Done()
		w.mu.Lock()
		delete(w.pending, path)
		w.mu.Unlock()
		w.process(ctx, path, results)
	})
}

// cancelPending stops all armed timers.
func (w *Watcher) cancelPending() {
	w.mu.Lock()
	defer w.mu.Unlock()
	for path, timer := range w.pending {
		if timer.Stop() {
			w.wg.Done()
		}
		delete(w.pending, path)
	}
}

// process reads a settled file and runs it through the pipeline.
func (w *Watcher) process(ctx context.Context, path string, results chan driving.ProcessResult) {
	if ctx.Err() != nil {
		return
	}

	bill, err := billFromFile(path)
	if err != nil {
		logger.Warn("Skipping inbox file %s: %v", filepath.Base(path), err)
		return
	}

	logger.Info("Inbox pickup: %s (bill %s)", filepath.Base(path), bill.ID)
	result, err := w.pipeline.Process(ctx, bill)
	if result == nil {
		result = &driving.ProcessResult{BillID: bill.ID, Err: err}
	}

	select {
	case results <- *result:
	case <-ctx.Done():
	}
}

// eligible reports whether a path looks like a bill file.
func eligible(path string) bool {
	base := filepath.Base(path)
	if strings.HasPrefix(base, ".") {
		return false
	}
	switch strings.ToLower(filepath.Ext(base)) {
	case ".txt", ".json":
		return true
	default:
		return false
	}
}

// billFromFile parses an inbox file into a bill. JSON files carry full
// metadata; plain text files derive the bill ID from the filename.
func billFromFile(path string) (domain.Bill, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return domain.Bill{}, fmt.Errorf("reading %s: %w", path, err)
	}

	base := filepath.Base(path)
	ext := strings.ToLower(filepath.Ext(base))

	if ext == ".json" {
		var bill domain.Bill
		if err := json.Unmarshal(data, &bill); err != nil {
			return domain.Bill{}, fmt.Errorf("parsing %s: %w: %v", base, domain.ErrDocumentParse, err)
		}
		if bill.ID == "" {
			bill.ID = strings.TrimSuffix(base, filepath.Ext(base))
		}
		return bill, nil
	}

	bill := domain.Bill{
		ID:   strings.TrimSuffix(base, filepath.Ext(base)),
		Text: string(data),
	}
	// First line doubles as the title for bare text drops.
	if idx := strings.IndexByte(bill.Text, '\n'); idx > 0 {
		bill.Title = strings.TrimSpace(bill.Text[:idx])
	} else {
		bill.Title = strings.TrimSpace(bill.Text)
	}
	return bill, nil
}

// Close stops the watcher.
func (w *Watcher) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	w.closed = true
	for path, timer := range w.pending {
		if timer.Stop() {
			w.wg.Done()
		}
		delete(w.pending, path)
	}
	if w.fsw != nil {
		return w.fsw.Close()
	}
	return nil
}
