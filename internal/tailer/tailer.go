// Package tailer follows the rotating unified JSONL event file and emits
// parsed events in file order, surviving truncation and rotation.
package tailer

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/atlas-desktop/mia-core/pkg/types"
	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

// Config configures an EventTailer.
type Config struct {
	DataDir        string
	Pattern        string
	BackfillMB     int
	PollInterval   time.Duration
	MetricInterval time.Duration
}

// DefaultConfig mirrors the documented defaults.
func DefaultConfig(dataDir string) Config {
	return Config{
		DataDir:        dataDir,
		Pattern:        "mia_unified_*.jsonl",
		BackfillMB:     20,
		PollInterval:   100 * time.Millisecond,
		MetricInterval: 10 * time.Second,
	}
}

// Metrics is the periodic health snapshot exposed by Stats.
type Metrics struct {
	EventsPerMinute  float64
	LastLineTs       time.Time
	CurrentOffset    int64
	MalformedDropped int64
}

// Tailer follows the most recently modified file matching Pattern in
// DataDir, emitting parsed events on Events in file order. It never
// surfaces errors to the caller: parse errors are logged and dropped,
// rotation is transparent, and EOF yields a brief sleep before retrying.
type Tailer struct {
	cfg    Config
	logger *zap.Logger

	events chan *types.Event

	mu           sync.RWMutex
	currentPath  string
	currentInode uint64
	offset       int64

	eventCount atomic.Int64
	dropped    atomic.Int64
	lastLineTs atomic.Int64 // unix seconds
	watcher    *fsnotify.Watcher
	startTime  time.Time
}

// New creates a Tailer. The caller must call Run to start following.
func New(logger *zap.Logger, cfg Config) (*Tailer, error) {
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = 100 * time.Millisecond
	}
	if cfg.MetricInterval <= 0 {
		cfg.MetricInterval = 10 * time.Second
	}
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("creating fsnotify watcher: %w", err)
	}
	if err := watcher.Add(cfg.DataDir); err != nil {
		watcher.Close()
		return nil, fmt.Errorf("watching data dir: %w", err)
	}
	return &Tailer{
		cfg:       cfg,
		logger:    logger.Named("tailer"),
		events:    make(chan *types.Event, 4096),
		watcher:   watcher,
		startTime: time.Now(),
	}, nil
}

// Events returns the channel of parsed events, in file order.
func (t *Tailer) Events() <-chan *types.Event {
	return t.events
}

// Stats returns the current health metrics.
func (t *Tailer) Stats() Metrics {
	t.mu.RLock()
	offset := t.offset
	t.mu.RUnlock()

	elapsedMin := time.Since(t.startTime).Minutes()
	rate := 0.0
	if elapsedMin > 0 {
		rate = float64(t.eventCount.Load()) / elapsedMin
	}
	var lastTs time.Time
	if ls := t.lastLineTs.Load(); ls > 0 {
		lastTs = time.Unix(ls, 0)
	}
	return Metrics{
		EventsPerMinute:  rate,
		LastLineTs:       lastTs,
		CurrentOffset:    offset,
		MalformedDropped: t.dropped.Load(),
	}
}

// Run follows the latest matching file until ctx is cancelled. It never
// returns an error; fatal-looking conditions (directory vanished, etc.)
// are logged and retried with backoff rather than propagated.
func (t *Tailer) Run(ctx context.Context) {
	defer close(t.events)
	defer t.watcher.Close()

	metricTicker := time.NewTicker(t.cfg.MetricInterval)
	defer metricTicker.Stop()

	var file *os.File
	defer func() {
		if file != nil {
			file.Close()
		}
	}()

	reader := bufio.NewReaderSize(nil, 64*1024)

	for {
		select {
		case <-ctx.Done():
			return
		case <-metricTicker.C:
			stats := t.Stats()
			t.logger.Info("tailer stats",
				zap.Float64("events_per_minute", stats.EventsPerMinute),
				zap.Int64("offset", stats.CurrentOffset),
				zap.Int64("dropped", stats.MalformedDropped))
		case event, ok := <-t.watcher.Events:
			if !ok {
				return
			}
			_ = event // rotation re-checked on the poll path below; fsnotify wakes us sooner
		default:
		}

		latest, err := t.findLatestFile()
		if err != nil {
			t.logger.Warn("could not locate unified event file", zap.Error(err))
			sleepOrDone(ctx, time.Second)
			continue
		}

		if file == nil || latest != t.currentPath {
			newFile, newInode, err := t.openAndSeek(latest)
			if err != nil {
				t.logger.Warn("failed to open unified event file", zap.String("path", latest), zap.Error(err))
				sleepOrDone(ctx, time.Second)
				continue
			}
			if file != nil {
				file.Close()
			}
			file = newFile
			reader.Reset(file)
			t.mu.Lock()
			t.currentPath = latest
			t.currentInode = newInode
			t.mu.Unlock()
		}

		if t.rotated(file, latest) {
			t.logger.Info("detected rotation, reopening from offset 0", zap.String("path", latest))
			file.Close()
			newFile, newInode, err := t.openFromStart(latest)
			if err != nil {
				t.logger.Warn("failed to reopen rotated file", zap.Error(err))
				sleepOrDone(ctx, time.Second)
				continue
			}
			file = newFile
			reader.Reset(file)
			t.mu.Lock()
			t.currentInode = newInode
			t.offset = 0
			t.mu.Unlock()
		}

		advanced := t.drainLines(ctx, reader, file)
		if !advanced {
			sleepOrDone(ctx, t.cfg.PollInterval)
		}
	}
}

// drainLines reads and dispatches whole lines currently available; it
// returns whether at least one line was processed.
func (t *Tailer) drainLines(ctx context.Context, reader *bufio.Reader, file *os.File) bool {
	advanced := false
	for {
		select {
		case <-ctx.Done():
			return advanced
		default:
		}

		line, err := reader.ReadBytes('\n')
		if len(line) > 0 && err == nil {
			t.mu.Lock()
			t.offset += int64(len(line))
			t.mu.Unlock()
			t.handleLine(line)
			advanced = true
			continue
		}
		if err == io.EOF {
			// Keep any partial trailing bytes for the next read by seeking back.
			if len(line) > 0 {
				if pos, serr := file.Seek(0, io.SeekCurrent); serr == nil {
					file.Seek(pos-int64(len(line)), io.SeekStart)
					reader.Reset(file)
				}
			}
			return advanced
		}
		t.logger.Warn("error reading event file", zap.Error(err))
		return advanced
	}
}

func (t *Tailer) handleLine(line []byte) {
	trimmed := trimNewline(line)
	if len(trimmed) == 0 {
		return
	}
	ev, err := types.ParseLine(trimmed)
	if err != nil {
		t.dropped.Add(1)
		t.logger.Warn("skipping malformed line", zap.Error(err))
		return
	}
	t.eventCount.Add(1)
	t.lastLineTs.Store(ev.Timestamp.Unix())
	select {
	case t.events <- ev:
	default:
		t.logger.Warn("event channel full, applying backpressure")
		t.events <- ev
	}
}

func trimNewline(line []byte) []byte {
	n := len(line)
	for n > 0 && (line[n-1] == '\n' || line[n-1] == '\r') {
		n--
	}
	return line[:n]
}

// findLatestFile returns the most recently modified file matching Pattern.
func (t *Tailer) findLatestFile() (string, error) {
	matches, err := filepath.Glob(filepath.Join(t.cfg.DataDir, t.cfg.Pattern))
	if err != nil {
		return "", err
	}
	if len(matches) == 0 {
		return "", fmt.Errorf("no files matching %s in %s", t.cfg.Pattern, t.cfg.DataDir)
	}
	sort.Slice(matches, func(i, j int) bool {
		fi, _ := os.Stat(matches[i])
		fj, _ := os.Stat(matches[j])
		if fi == nil || fj == nil {
			return matches[i] < matches[j]
		}
		return fi.ModTime().After(fj.ModTime())
	})
	return matches[0], nil
}

// openAndSeek opens path and seeks back BackfillMB megabytes from the end.
func (t *Tailer) openAndSeek(path string) (*os.File, uint64, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, 0, err
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, 0, err
	}
	backBytes := int64(t.cfg.BackfillMB) * 1024 * 1024
	offset := info.Size() - backBytes
	if offset < 0 {
		offset = 0
	}
	if _, err := f.Seek(offset, io.SeekStart); err != nil {
		f.Close()
		return nil, 0, err
	}
	// Discard a possibly-partial first line so subsequent parses start clean.
	if offset > 0 {
		br := bufio.NewReader(f)
		br.ReadBytes('\n')
	}
	return f, inodeOf(info), nil
}

func (t *Tailer) openFromStart(path string) (*os.File, uint64, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, 0, err
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, 0, err
	}
	return f, inodeOf(info), nil
}

// rotated reports whether the tailed file shrank or its inode changed,
// which signals truncation or a rename/recreate under the watched path.
func (t *Tailer) rotated(file *os.File, path string) bool {
	info, err := os.Stat(path)
	if err != nil {
		return false
	}
	pos, err := file.Seek(0, io.SeekCurrent)
	if err != nil {
		return false
	}
	if info.Size() < pos {
		return true
	}
	t.mu.RLock()
	prevInode := t.currentInode
	t.mu.RUnlock()
	return inodeOf(info) != prevInode && prevInode != 0
}

func sleepOrDone(ctx context.Context, d time.Duration) {
	select {
	case <-ctx.Done():
	case <-time.After(d):
	}
}
