// Package regime_test provides tests for regime classification.
package regime_test

import (
	"testing"
	"time"

	"github.com/atlas-desktop/mia-core/internal/regime"
	"github.com/atlas-desktop/mia-core/pkg/types"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

func barsWithClose(closes ...int64) []types.Bar {
	bars := make([]types.Bar, len(closes))
	for i, c := range closes {
		cd := decimal.NewFromInt(c)
		bars[i] = types.NewBar(time.Now(), cd, cd, cd, cd, decimal.Zero, decimal.Zero, decimal.Zero)
	}
	return bars
}

func TestDetectTrend(t *testing.T) {
	d := regime.New(zap.NewNop(), regime.DefaultConfig())

	closes := make([]int64, 20)
	for i := range closes {
		closes[i] = 5000 + int64(i)*2
	}
	snap := types.Snapshot{
		Symbol:   "ES_FUT_CME",
		TickSize: decimal.NewFromFloat(0.25),
		M1:       types.M1State{BarsHistory: barsWithClose(closes...)},
	}

	state := d.Detect(snap)
	if state.Primary != regime.Trend {
		t.Errorf("expected Trend, got %s", state.Primary)
	}

	last, ok := d.Last("ES_FUT_CME")
	if !ok {
		t.Fatal("expected Last to return the just-detected state")
	}
	if last.Primary != state.Primary {
		t.Errorf("Last returned a different state than Detect: %s vs %s", last.Primary, state.Primary)
	}
}

func TestDetectRange(t *testing.T) {
	d := regime.New(zap.NewNop(), regime.DefaultConfig())

	closes := make([]int64, 20)
	for i := range closes {
		closes[i] = 5000
	}
	snap := types.Snapshot{
		Symbol:   "ES_FUT_CME",
		TickSize: decimal.NewFromFloat(0.25),
		M1:       types.M1State{BarsHistory: barsWithClose(closes...)},
	}

	state := d.Detect(snap)
	if state.Primary != regime.Range {
		t.Errorf("expected Range, got %s", state.Primary)
	}
}

func TestDetectVolatileFromVix(t *testing.T) {
	d := regime.New(zap.NewNop(), regime.DefaultConfig())

	snap := types.Snapshot{
		Symbol: "ES_FUT_CME",
		Vix:    types.VixState{Regime: types.VixHigh},
	}

	state := d.Detect(snap)
	if state.Primary != regime.Volatile {
		t.Errorf("expected Volatile with no bar history but high VIX, got %s", state.Primary)
	}
}

func TestDetectUnknownWithNoData(t *testing.T) {
	d := regime.New(zap.NewNop(), regime.DefaultConfig())
	state := d.Detect(types.Snapshot{Symbol: "ES_FUT_CME"})
	if state.Primary != regime.Unknown {
		t.Errorf("expected Unknown with no bars and no VIX data, got %s", state.Primary)
	}
}

func TestLastUnknownSymbol(t *testing.T) {
	d := regime.New(zap.NewNop(), regime.DefaultConfig())
	if _, ok := d.Last("NQ_FUT_CME"); ok {
		t.Error("expected Last to report false for a symbol never detected")
	}
}
