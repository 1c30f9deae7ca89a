package extract

import (
	"encoding/json"
	"log/slog"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/nao1215/catalogcrawler/internal/model"
)

const (
	// SnapshotFileName is the fixed name of the debug snapshot log.
	SnapshotFileName = "debug_snapshots.log"

	// SnapshotHTMLLimit is the number of HTML bytes kept per snapshot.
	SnapshotHTMLLimit = 10 * 1024

	snapshotQueueSize = 64
)

// snapshotRecord is one JSON line of the snapshot log.
type snapshotRecord struct {
	Time       time.Time `json:"time"`
	URL        string    `json:"url"`
	SourceHash string    `json:"source_hash"`
	HTML       string    `json:"html"`
}

// SnapshotStats counts what happened to recorded snapshots.
type SnapshotStats struct {
	Written int64
	Failed  int64
	Dropped int64
}

// SnapshotLog is a best-effort append-only JSON-lines sink.
//
// Record never blocks and never fails: records are handed to a single
// writer goroutine through a buffered channel, and a full queue or a write
// error only bumps a counter. A nil *SnapshotLog discards everything.
type SnapshotLog struct {
	file   *os.File
	queue  chan snapshotRecord
	done   chan struct{}
	logger *slog.Logger

	mu     sync.RWMutex
	closed bool

	written atomic.Int64
	failed  atomic.Int64
	dropped atomic.Int64
}

// OpenSnapshotLog opens path for appending and starts the writer.
func OpenSnapshotLog(path string, logger *slog.Logger) (*SnapshotLog, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o600) //nolint:gosec // path is chosen by the operator
	if err != nil {
		return nil, err
	}
	if logger == nil {
		logger = slog.Default()
	}

	l := &SnapshotLog{
		file:   f,
		queue:  make(chan snapshotRecord, snapshotQueueSize),
		done:   make(chan struct{}),
		logger: logger,
	}
	go l.run()
	return l, nil
}

// Record queues a snapshot of pg's first SnapshotHTMLLimit bytes.
func (l *SnapshotLog) Record(pg *model.Page, sourceHash string) {
	if l == nil || pg == nil {
		return
	}
	rec := snapshotRecord{
		Time:       time.Now().UTC(),
		URL:        pg.URL,
		SourceHash: sourceHash,
		HTML:       pg.Snapshot(SnapshotHTMLLimit),
	}

	l.mu.RLock()
	defer l.mu.RUnlock()
	if l.closed {
		l.dropped.Add(1)
		return
	}
	select {
	case l.queue <- rec:
	default:
		l.dropped.Add(1)
	}
}

// run drains the queue until Close.
func (l *SnapshotLog) run() {
	defer close(l.done)
	enc := json.NewEncoder(l.file)
	enc.SetEscapeHTML(false)
	for rec := range l.queue {
		if err := enc.Encode(rec); err != nil {
			l.failed.Add(1)
			l.logger.Debug("debug snapshot write failed", "url", rec.URL, "error", err)
			continue
		}
		l.written.Add(1)
	}
}

// Stats returns the current counters.
func (l *SnapshotLog) Stats() SnapshotStats {
	if l == nil {
		return SnapshotStats{}
	}
	return SnapshotStats{
		Written: l.written.Load(),
		Failed:  l.failed.Load(),
		Dropped: l.dropped.Load(),
	}
}

// Close flushes queued records and closes the file. It is safe to call
// more than once.
func (l *SnapshotLog) Close() error {
	if l == nil {
		return nil
	}
	l.mu.Lock()
	if l.closed {
		l.mu.Unlock()
		return nil
	}
	l.closed = true
	close(l.queue)
	l.mu.Unlock()

	<-l.done
	return l.file.Close()
}
