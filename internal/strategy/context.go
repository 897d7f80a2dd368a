// Package strategy implements the 16 pattern-detection predicates.
// Each strategy is a pure function of a Context snapshot: ShouldRun tests
// its required inputs, Generate builds the PatternSignal. Neither ever
// panics; a missing input simply yields false/nil (the tolerance rule).
package strategy

import (
	"time"

	"github.com/atlas-desktop/mia-core/internal/microstructure"
	"github.com/atlas-desktop/mia-core/pkg/types"
	"github.com/shopspring/decimal"
)

// ZeroDTELevels is the zero_dte.* feature group consumed by several
// strategies.
type ZeroDTELevels struct {
	Call      *decimal.Decimal
	Put       *decimal.Decimal
	GammaWall *decimal.Decimal
}

// Context is the read-only feature view handed to every strategy on
// every tick: a flattened join of the symbol's Snapshot and its current
// microstructure.Snapshot, plus a few pre-resolved conveniences.
type Context struct {
	Now      time.Time
	Symbol   string
	Snapshot types.Snapshot
	Metrics  microstructure.Snapshot
	ZeroDTE  ZeroDTELevels

	// AbsorptionSide/AbsorptionPrice surface the most recent absorption
	// event's side for strategies that need directional context beyond
	// the plain bid/ask booleans in Metrics.Absorption.
	AbsorptionSide  types.Side
	AbsorptionPrice decimal.Decimal
	HasAbsorption   bool

	// SwingRecent is the most recent swing level on record, used by
	// Liquidity Sweep Reversal.
	SwingRecent *decimal.Decimal

	// ATRMultSL is the stop-distance multiplier applied to ATR (atr_mult_sl).
	ATRMultSL decimal.Decimal

	// SessionOpen marks the configured opening-drive window (e.g. the
	// first 15 minutes after the exchange open), used by Opening Drive Fail.
	SessionOpen bool

	// Mirror carries the paired index's snapshot for ES/NQ Lead-Lag
	// Mirror; Present is false outside a two-symbol deployment.
	Mirror struct {
		Present bool
		Symbol  string
		Price   decimal.Decimal
		BrokeUp bool
		BrokeDn bool
	}

	// BandWidthMedian20 is the 20-bar median VWAP band width, used by
	// VWAP Band Squeeze Break to detect compression.
	BandWidthMedian20 decimal.Decimal

	// GammaPinSeconds counts how long price has oscillated near a
	// strong gamma level, used by Gamma Pin Reversion.
	GammaPinSeconds decimal.Decimal
}

// TickSize is a convenience accessor.
func (c Context) TickSize() decimal.Decimal {
	return c.Snapshot.TickSize
}

// ATR is the m1-bar-range proxy for average true range (Snapshot.Derived.ATRProxy).
func (c Context) ATR() decimal.Decimal {
	return c.Snapshot.Derived.ATRProxy
}

// distanceTicks returns |a-b| expressed in ticks, or a very large number
// when tick size is unset (so "within N ticks" checks never false-positive).
func distanceTicks(a, b, tickSize decimal.Decimal) decimal.Decimal {
	if tickSize.IsZero() {
		return decimal.NewFromInt(1 << 30)
	}
	return a.Sub(b).Abs().Div(tickSize)
}

// Strategy is the interface every pattern implements: family and required
// inputs are implicit in ShouldRun; the selector treats all strategies
// uniformly through this interface, never branching on name.
type Strategy interface {
	Name() string
	Family() types.PatternFamily
	ShouldRun(ctx Context) bool
	Generate(ctx Context) *types.PatternSignal
}
