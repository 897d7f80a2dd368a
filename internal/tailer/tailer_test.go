// Package tailer_test provides tests for the rotating JSONL event tailer.
package tailer_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/atlas-desktop/mia-core/internal/tailer"
	"go.uber.org/zap"
)

func writeLine(t *testing.T, path string, line string) {
	t.Helper()
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		t.Fatalf("failed to open %s: %v", path, err)
	}
	defer f.Close()
	if _, err := f.WriteString(line + "\n"); err != nil {
		t.Fatalf("failed to append line: %v", err)
	}
}

func baseDataLine(sym string, ts time.Time) string {
	return `{"ts":"` + ts.Format(time.RFC3339) + `","sym":"` + sym + `","chart":3,"type":"basedata","open":1,"high":1,"low":1,"close":1,"volume":1}`
}

func TestRunEmitsEventsForAppendedLines(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "mia_unified_1.jsonl")
	writeLine(t, path, baseDataLine("ES_FUT_CME", time.Now().UTC()))

	cfg := tailer.DefaultConfig(dir)
	cfg.PollInterval = 10 * time.Millisecond
	cfg.MetricInterval = time.Minute

	tl, err := tailer.New(zap.NewNop(), cfg)
	if err != nil {
		t.Fatalf("failed to create tailer: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go tl.Run(ctx)

	select {
	case ev, ok := <-tl.Events():
		if !ok {
			t.Fatal("events channel closed before an event arrived")
		}
		if ev.Symbol != "ES_FUT_CME" {
			t.Errorf("expected symbol ES_FUT_CME, got %s", ev.Symbol)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for an event")
	}
}

func TestRunDropsMalformedLinesAndTracksStats(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "mia_unified_1.jsonl")
	writeLine(t, path, "not json at all")
	writeLine(t, path, baseDataLine("NQ_FUT_CME", time.Now().UTC()))

	cfg := tailer.DefaultConfig(dir)
	cfg.PollInterval = 10 * time.Millisecond
	cfg.MetricInterval = time.Minute

	tl, err := tailer.New(zap.NewNop(), cfg)
	if err != nil {
		t.Fatalf("failed to create tailer: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go tl.Run(ctx)

	select {
	case ev, ok := <-tl.Events():
		if !ok {
			t.Fatal("events channel closed before an event arrived")
		}
		if ev.Symbol != "NQ_FUT_CME" {
			t.Errorf("expected the malformed line to be skipped and NQ_FUT_CME to surface, got %s", ev.Symbol)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for an event")
	}

	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		if tl.Stats().MalformedDropped > 0 {
			break
		}
		time.Sleep(10 * time.Millisecond)
	}
	if got := tl.Stats().MalformedDropped; got != 1 {
		t.Errorf("expected exactly 1 malformed line dropped, got %d", got)
	}
}

func TestRunFollowsNewerFileWhenPatternMatchesMultiple(t *testing.T) {
	dir := t.TempDir()
	older := filepath.Join(dir, "mia_unified_1.jsonl")
	writeLine(t, older, baseDataLine("ES_FUT_CME", time.Now().UTC()))

	time.Sleep(20 * time.Millisecond)

	newer := filepath.Join(dir, "mia_unified_2.jsonl")
	writeLine(t, newer, baseDataLine("NQ_FUT_CME", time.Now().UTC()))

	cfg := tailer.DefaultConfig(dir)
	cfg.PollInterval = 10 * time.Millisecond
	cfg.MetricInterval = time.Minute

	tl, err := tailer.New(zap.NewNop(), cfg)
	if err != nil {
		t.Fatalf("failed to create tailer: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go tl.Run(ctx)

	select {
	case ev, ok := <-tl.Events():
		if !ok {
			t.Fatal("events channel closed before an event arrived")
		}
		if ev.Symbol != "NQ_FUT_CME" {
			t.Errorf("expected the most recently modified file to be followed, got symbol %s", ev.Symbol)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for an event")
	}
}

func TestRunBackfillsFromEndOfExistingFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "mia_unified_1.jsonl")
	writeLine(t, path, baseDataLine("ES_FUT_CME", time.Now().UTC()))

	cfg := tailer.DefaultConfig(dir)
	cfg.BackfillMB = 20
	cfg.PollInterval = 10 * time.Millisecond
	cfg.MetricInterval = time.Minute

	tl, err := tailer.New(zap.NewNop(), cfg)
	if err != nil {
		t.Fatalf("failed to create tailer: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go tl.Run(ctx)

	select {
	case ev, ok := <-tl.Events():
		if !ok {
			t.Fatal("events channel closed before an event arrived")
		}
		if ev.Symbol != "ES_FUT_CME" {
			t.Errorf("expected the pre-existing line to be backfilled, got %s", ev.Symbol)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for the backfilled event")
	}
}

func TestRunStopsWhenContextCancelled(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "mia_unified_1.jsonl")
	writeLine(t, path, baseDataLine("ES_FUT_CME", time.Now().UTC()))

	cfg := tailer.DefaultConfig(dir)
	cfg.PollInterval = 10 * time.Millisecond
	cfg.MetricInterval = time.Minute

	tl, err := tailer.New(zap.NewNop(), cfg)
	if err != nil {
		t.Fatalf("failed to create tailer: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		tl.Run(ctx)
		close(done)
	}()

	// Drain the initial event so Run is blocked on the poll loop, not a full channel.
	<-tl.Events()
	cancel()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("expected Run to return promptly after context cancellation")
	}

	if _, ok := <-tl.Events(); ok {
		t.Error("expected the events channel to be closed once Run returns")
	}
}
