// Package contextbuild_test provides tests for strategy.Context assembly.
package contextbuild_test

import (
	"testing"
	"time"

	"github.com/atlas-desktop/mia-core/internal/contextbuild"
	"github.com/atlas-desktop/mia-core/internal/session"
	"github.com/atlas-desktop/mia-core/internal/snapshot"
	"github.com/atlas-desktop/mia-core/pkg/types"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

func TestBuildReturnsFalseWithNoSnapshot(t *testing.T) {
	store := snapshot.New(zap.NewNop(), nil)
	b := contextbuild.New(store, session.NewDefault(), nil)

	_, ok := b.Build(time.Now(), "ES_FUT_CME")
	if ok {
		t.Error("expected Build to report false before any event has been applied")
	}
}

func TestBuildJoinsSnapshotAndZeroDTE(t *testing.T) {
	store := snapshot.New(zap.NewNop(), nil)
	callRes := decimal.NewFromInt(5100)
	store.Apply(&types.Event{
		Timestamp: time.Now(), Symbol: "ES_FUT_CME", Type: types.EventMenthorQLevel,
		MenthorQ: &types.MenthorQPayload{LevelType: types.LevelCallResistance, Price: callRes},
	})

	b := contextbuild.New(store, session.NewDefault(), nil)
	ctx, ok := b.Build(time.Now(), "ES_FUT_CME")
	if !ok {
		t.Fatal("expected Build to succeed once an event exists")
	}
	if ctx.ZeroDTE.Call == nil || !ctx.ZeroDTE.Call.Equal(callRes) {
		t.Errorf("expected ZeroDTE.Call to mirror MenthorQ.Gamma.CallResistance, got %v", ctx.ZeroDTE.Call)
	}
	if !ctx.ATRMultSL.Equal(decimal.NewFromFloat(1.5)) {
		t.Errorf("expected the fixed ATRMultSL of 1.5, got %s", ctx.ATRMultSL)
	}
}

func TestBuildSwingRecentIsLastLevel(t *testing.T) {
	store := snapshot.New(zap.NewNop(), nil)
	store.Apply(&types.Event{
		Timestamp: time.Now(), Symbol: "ES_FUT_CME", Type: types.EventMenthorQLevel,
		MenthorQ: &types.MenthorQPayload{LevelType: types.LevelSwing, Price: decimal.NewFromInt(5010), Subgraph: 0},
	})
	store.Apply(&types.Event{
		Timestamp: time.Now(), Symbol: "ES_FUT_CME", Type: types.EventMenthorQLevel,
		MenthorQ: &types.MenthorQPayload{LevelType: types.LevelSwing, Price: decimal.NewFromInt(5020), Subgraph: 1},
	})

	b := contextbuild.New(store, session.NewDefault(), nil)
	ctx, ok := b.Build(time.Now(), "ES_FUT_CME")
	if !ok {
		t.Fatal("expected Build to succeed")
	}
	if ctx.SwingRecent == nil || !ctx.SwingRecent.Equal(decimal.NewFromInt(5020)) {
		t.Errorf("expected SwingRecent to be the last swing level recorded, got %v", ctx.SwingRecent)
	}
}

func TestBuildMirrorJoinsPairedSymbol(t *testing.T) {
	store := snapshot.New(zap.NewNop(), nil)
	store.Apply(&types.Event{Timestamp: time.Now(), Symbol: "ES_FUT_CME", Type: types.EventQuote, Quote: &types.QuotePayload{}})

	hvl := decimal.NewFromInt(18000)
	store.Apply(&types.Event{
		Timestamp: time.Now(), Symbol: "NQ_FUT_CME", Type: types.EventMenthorQLevel,
		MenthorQ: &types.MenthorQPayload{LevelType: types.LevelHVL, Price: hvl},
	})
	store.Apply(&types.Event{
		Timestamp: time.Now(), Symbol: "NQ_FUT_CME", Type: types.EventBaseData,
		BaseData: &types.BaseDataPayload{Open: hvl, High: hvl, Low: hvl, Close: hvl.Add(decimal.NewFromInt(10))},
	})

	mirror := map[string]string{"ES_FUT_CME": "NQ_FUT_CME", "NQ_FUT_CME": "ES_FUT_CME"}
	b := contextbuild.New(store, session.NewDefault(), mirror)

	ctx, ok := b.Build(time.Now(), "ES_FUT_CME")
	if !ok {
		t.Fatal("expected Build to succeed for ES_FUT_CME")
	}
	if !ctx.Mirror.Present {
		t.Fatal("expected the mirror view to be present for a paired symbol")
	}
	if ctx.Mirror.Symbol != "NQ_FUT_CME" {
		t.Errorf("expected mirror symbol NQ_FUT_CME, got %s", ctx.Mirror.Symbol)
	}
	if !ctx.Mirror.BrokeUp {
		t.Error("expected BrokeUp since the mirror's last price is above its HVL")
	}
}

func TestBuildGammaPinSecondsResetsOutsideBand(t *testing.T) {
	store := snapshot.New(zap.NewNop(), nil)
	hvl := decimal.NewFromInt(5000)
	store.Apply(&types.Event{
		Timestamp: time.Now(), Symbol: "ES_FUT_CME", Type: types.EventMenthorQLevel,
		MenthorQ: &types.MenthorQPayload{LevelType: types.LevelHVL, Price: hvl},
	})
	store.Apply(&types.Event{
		Timestamp: time.Now(), Symbol: "ES_FUT_CME", Type: types.EventBaseData,
		BaseData: &types.BaseDataPayload{Open: hvl, High: hvl, Low: hvl, Close: hvl},
	})

	b := contextbuild.New(store, session.NewDefault(), nil)
	now := time.Now()
	first, ok := b.Build(now, "ES_FUT_CME")
	if !ok {
		t.Fatal("expected Build to succeed")
	}
	if !first.GammaPinSeconds.IsZero() {
		t.Errorf("expected the pin timer to start at zero on first observation, got %s", first.GammaPinSeconds)
	}

	later, _ := b.Build(now.Add(5*time.Second), "ES_FUT_CME")
	if later.GammaPinSeconds.IsZero() {
		t.Error("expected the pin timer to have accrued after a second tick within the band")
	}
}

func TestMetricsIsStablePerSymbol(t *testing.T) {
	store := snapshot.New(zap.NewNop(), nil)
	b := contextbuild.New(store, session.NewDefault(), nil)

	m1 := b.Metrics("ES_FUT_CME", decimal.NewFromFloat(0.25))
	m2 := b.Metrics("ES_FUT_CME", decimal.NewFromFloat(0.25))
	if m1 != m2 {
		t.Error("expected Metrics to return the same calculator instance for repeat calls on one symbol")
	}
}
