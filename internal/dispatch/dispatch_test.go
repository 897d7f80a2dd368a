// Package dispatch_test provides tests for the concurrent task wiring.
package dispatch_test

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/atlas-desktop/mia-core/internal/dispatch"
	"github.com/atlas-desktop/mia-core/internal/journal"
	"github.com/atlas-desktop/mia-core/internal/risk"
	"github.com/atlas-desktop/mia-core/internal/router"
	"github.com/atlas-desktop/mia-core/internal/session"
	"github.com/atlas-desktop/mia-core/internal/snapshot"
	"github.com/atlas-desktop/mia-core/internal/strategy"
	"github.com/atlas-desktop/mia-core/pkg/types"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// fakeAnalyzer lets tests control exactly what decision a selector tick sees.
type fakeAnalyzer struct {
	mu       sync.Mutex
	decision types.Decision
}

func (f *fakeAnalyzer) Analyze(ctx strategy.Context) types.Decision {
	f.mu.Lock()
	defer f.mu.Unlock()
	d := f.decision
	d.Symbol = ctx.Symbol
	return d
}

func unreachableRouter(t *testing.T) *router.Router {
	t.Helper()
	return router.New(zap.NewNop(), router.Config{
		Host:               "127.0.0.1",
		ESPort:             1,
		NQPort:             2,
		TimeoutMs:          50,
		HeartbeatIntervalS: 30,
	})
}

func newTestJournal(t *testing.T) (*journal.Journal, string) {
	t.Helper()
	dir := t.TempDir()
	jr, err := journal.New(zap.NewNop(), dir)
	if err != nil {
		t.Fatalf("failed to create journal: %v", err)
	}
	t.Cleanup(func() { jr.Close() })
	return jr, dir
}

func newTestRiskGate() *risk.Gate {
	return risk.New(zap.NewNop(), risk.Config{
		DailyLossLimit:         decimal.NewFromInt(2000),
		MaxDailyTrades:         100,
		MaxPositionsConcurrent: 10,
		MaxRiskPerTradeCcy:     decimal.NewFromInt(1000),
		NoTradeBefore:          "00:00",
		NoTradeAfter:           "23:59",
		MinConfluenceExecution: 0.0,
	})
}

func neutralContextBuilder(now time.Time, symbol string) (strategy.Context, bool) {
	return strategy.Context{Now: now, Symbol: symbol}, true
}

func TestSubmitAppliesEventsToStore(t *testing.T) {
	store := snapshot.New(zap.NewNop(), nil)
	analyzer := &fakeAnalyzer{decision: types.Decision{Name: types.DecisionNeutral}}
	jr, _ := newTestJournal(t)

	d := dispatch.New(zap.NewNop(), dispatch.DefaultConfig(), store, analyzer, session.NewDefault(), newTestRiskGate(), unreachableRouter(t), jr, neutralContextBuilder)
	d.Start(context.Background(), nil)
	defer d.Stop()

	ev := &types.Event{
		Timestamp: time.Now(),
		Symbol:    "ES_FUT_CME",
		Chart:     3,
		BaseData: &types.BaseDataPayload{
			Open: decimal.NewFromInt(5000), High: decimal.NewFromInt(5010),
			Low: decimal.NewFromInt(4990), Close: decimal.NewFromInt(5005),
		},
	}
	d.Submit(ev)

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if _, ok := store.Get("ES_FUT_CME"); ok {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal("expected the submitted event to be applied to the snapshot store")
}

func TestOnDecisionFiresEveryTick(t *testing.T) {
	store := snapshot.New(zap.NewNop(), nil)
	analyzer := &fakeAnalyzer{decision: types.Decision{Name: types.DecisionNeutral}}
	jr, _ := newTestJournal(t)

	cfg := dispatch.DefaultConfig()
	cfg.SelectorTickPeriod = 20 * time.Millisecond
	cfg.HeartbeatPeriod = time.Minute

	d := dispatch.New(zap.NewNop(), cfg, store, analyzer, session.NewDefault(), newTestRiskGate(), unreachableRouter(t), jr, neutralContextBuilder)

	var mu sync.Mutex
	count := 0
	d.OnDecision(func(types.Decision) {
		mu.Lock()
		count++
		mu.Unlock()
	})

	d.Start(context.Background(), []string{"ES_FUT_CME"})
	defer d.Stop()

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		mu.Lock()
		c := count
		mu.Unlock()
		if c >= 2 {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal("expected OnDecision to fire at least twice within the tick period")
}

func TestHandleDecisionRoundTripPlacesOrderAndRecordsJournal(t *testing.T) {
	store := snapshot.New(zap.NewNop(), nil)
	analyzer := &fakeAnalyzer{decision: types.Decision{
		Name:           types.DecisionGoLong,
		PositionSizing: 1,
		Signal: &types.PatternSignal{
			Strategy: "gamma_pin_reversion",
			Family:   types.FamilyReversal,
			Side:     types.SideLong,
			Entry:    decimal.NewFromInt(5000),
			Stop:     decimal.NewFromInt(4990),
			Targets:  []decimal.Decimal{decimal.NewFromInt(5020)},
		},
	}}

	cfg := dispatch.DefaultConfig()
	cfg.SelectorTickPeriod = 20 * time.Millisecond
	cfg.HeartbeatPeriod = time.Minute

	jr, dir := newTestJournal(t)
	d := dispatch.New(zap.NewNop(), cfg, store, analyzer, session.NewDefault(), newTestRiskGate(), unreachableRouter(t), jr, neutralContextBuilder)
	d.Start(context.Background(), []string{"ES_FUT_CME"})
	defer d.Stop()

	journalPath := filepath.Join(dir, "trade_journal.jsonl")
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		content, err := os.ReadFile(journalPath)
		if err == nil && strings.Contains(string(content), "PAPER_") && strings.Contains(string(content), "ES_FUT_CME") {
			return
		}
		time.Sleep(20 * time.Millisecond)
	}
	t.Fatal("expected a GO_LONG decision to round-trip through the router and land in the journal file")
}

func TestStopReturnsPromptly(t *testing.T) {
	store := snapshot.New(zap.NewNop(), nil)
	analyzer := &fakeAnalyzer{decision: types.Decision{Name: types.DecisionNeutral}}
	jr, _ := newTestJournal(t)
	cfg := dispatch.DefaultConfig()
	cfg.ShutdownTimeout = time.Second

	d := dispatch.New(zap.NewNop(), cfg, store, analyzer, session.NewDefault(), newTestRiskGate(), unreachableRouter(t), jr, neutralContextBuilder)
	d.Start(context.Background(), []string{"ES_FUT_CME"})

	done := make(chan struct{})
	go func() {
		d.Stop()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(3 * time.Second):
		t.Fatal("expected Stop to return within its shutdown timeout")
	}
}
