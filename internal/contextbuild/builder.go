// Package contextbuild assembles strategy.Context for one symbol at
// tick time: the plain snapshot/metrics join plus the handful of
// rolling-window fields (band-width median, gamma-pin duration, ES/NQ
// mirror) that depend on history the Snapshot itself does not retain.
// Adapted from the teacher's internal/signals/aggregator.go per-symbol
// state-map idiom, narrowed to exactly the fields the pattern
// strategies read.
package contextbuild

import (
	"sync"
	"time"

	"github.com/atlas-desktop/mia-core/internal/microstructure"
	"github.com/atlas-desktop/mia-core/internal/session"
	"github.com/atlas-desktop/mia-core/internal/snapshot"
	"github.com/atlas-desktop/mia-core/internal/strategy"
	"github.com/atlas-desktop/mia-core/pkg/types"
	"github.com/shopspring/decimal"
)

const (
	bandWidthHistoryCap = 20
	gammaPinMaxTicks    = 4
	defaultATRMultSL    = 1.5
)

type symbolState struct {
	metrics *microstructure.Metrics

	bandWidths []float64 // most recent bandWidthHistoryCap samples, ticks

	pinSince time.Time // zero when not currently pinned
}

// Builder owns the per-symbol rolling state and produces a
// dispatch.ContextBuilder closure bound to a snapshot.Store and a
// mirror-symbol table.
type Builder struct {
	store    *snapshot.Store
	sessions *session.Manager
	mirrorOf map[string]string // e.g. "ES_FUT_CME" -> "NQ_FUT_CME"

	mu   sync.Mutex
	byID map[string]*symbolState
}

// New creates a Builder. mirrorOf is typically symmetric (A->B, B->A);
// a symbol absent from the map simply never populates ctx.Mirror.
func New(store *snapshot.Store, sessions *session.Manager, mirrorOf map[string]string) *Builder {
	return &Builder{
		store:    store,
		sessions: sessions,
		mirrorOf: mirrorOf,
		byID:     make(map[string]*symbolState),
	}
}

func (b *Builder) stateFor(symbol string, tickSize decimal.Decimal) *symbolState {
	b.mu.Lock()
	defer b.mu.Unlock()
	st, ok := b.byID[symbol]
	if !ok {
		st = &symbolState{metrics: microstructure.New(tickSize)}
		b.byID[symbol] = st
	}
	return st
}

// Metrics exposes the per-symbol microstructure calculator so the
// server's event pump (cmd/server) can feed it quote/bar/footprint/
// trade/depth updates directly, ahead of the next tick's Build call.
func (b *Builder) Metrics(symbol string, tickSize decimal.Decimal) *microstructure.Metrics {
	return b.stateFor(symbol, tickSize).metrics
}

// Build produces a strategy.Context for symbol at now, or ok=false if
// no snapshot exists yet (no events seen for that symbol).
func (b *Builder) Build(now time.Time, symbol string) (strategy.Context, bool) {
	snap, ok := b.store.Get(symbol)
	if !ok {
		return strategy.Context{}, false
	}
	st := b.stateFor(symbol, snap.TickSize)

	depth := types.DepthPayload{
		BidSizes:  snap.M30.DOMSynthetic.BidSizes,
		AskSizes:  snap.M30.DOMSynthetic.AskSizes,
		BidPrices: snap.M30.DOMSynthetic.BidPrices,
		AskPrices: snap.M30.DOMSynthetic.AskPrices,
	}
	mSnap := st.metrics.Current(now, depth)

	ctx := strategy.Context{
		Now:       now,
		Symbol:    symbol,
		Snapshot:  snap,
		Metrics:   mSnap,
		ATRMultSL: decimal.NewFromFloat(defaultATRMultSL),
	}

	ctx.ZeroDTE = strategy.ZeroDTELevels{
		Call:      snap.MenthorQ.Gamma.CallResistance,
		Put:       snap.MenthorQ.Gamma.PutSupport,
		GammaWall: snap.MenthorQ.Gamma.GammaWall0DTE,
	}

	if mSnap.Absorption.Bid || mSnap.Absorption.Ask {
		ctx.HasAbsorption = true
		ctx.AbsorptionPrice = snap.LastPrice
		if mSnap.Absorption.Bid {
			ctx.AbsorptionSide = types.SideLong
		} else {
			ctx.AbsorptionSide = types.SideShort
		}
	}

	if len(snap.MenthorQ.Swing.Levels) > 0 {
		recent := snap.MenthorQ.Swing.Levels[len(snap.MenthorQ.Swing.Levels)-1]
		ctx.SwingRecent = &recent
	}

	if b.sessions != nil {
		ctx.SessionOpen = b.sessions.IsOpeningWindow(now)
	}

	ctx.BandWidthMedian20 = b.rollBandWidth(st, snap)
	ctx.GammaPinSeconds = b.pinDuration(st, now, snap)

	if mirror, present := b.mirrorOf[symbol]; present {
		if mSnapOther, ok := b.store.Get(mirror); ok {
			hvl := mSnapOther.MenthorQ.Gamma.HVL
			ctx.Mirror.Present = true
			ctx.Mirror.Symbol = mirror
			ctx.Mirror.Price = mSnapOther.LastPrice
			if hvl != nil {
				ctx.Mirror.BrokeUp = mSnapOther.LastPrice.GreaterThan(*hvl)
				ctx.Mirror.BrokeDn = mSnapOther.LastPrice.LessThan(*hvl)
			}
		}
	}

	return ctx, true
}

// rollBandWidth appends the current m1 VWAP band width (up1-dn1, in
// ticks) to a capped history and returns its median.
func (b *Builder) rollBandWidth(st *symbolState, snap types.Snapshot) decimal.Decimal {
	if snap.TickSize.IsZero() {
		return decimal.Zero
	}
	width := snap.M1.VWAPUp1.Sub(snap.M1.VWAPDn1).Div(snap.TickSize)
	f, _ := width.Float64()

	b.mu.Lock()
	st.bandWidths = append(st.bandWidths, f)
	if len(st.bandWidths) > bandWidthHistoryCap {
		st.bandWidths = st.bandWidths[len(st.bandWidths)-bandWidthHistoryCap:]
	}
	sorted := append([]float64(nil), st.bandWidths...)
	b.mu.Unlock()

	if len(sorted) == 0 {
		return decimal.Zero
	}
	sortFloats(sorted)
	mid := sorted[len(sorted)/2]
	return decimal.NewFromFloat(mid)
}

// pinDuration tracks how long price has stayed within gammaPinMaxTicks
// of the symbol's gamma pin (HVL, falling back to the 0DTE gamma wall),
// resetting the timer whenever price moves outside the band.
func (b *Builder) pinDuration(st *symbolState, now time.Time, snap types.Snapshot) decimal.Decimal {
	var pin *decimal.Decimal
	if snap.MenthorQ.Gamma.HVL != nil {
		pin = snap.MenthorQ.Gamma.HVL
	} else if snap.MenthorQ.Gamma.GammaWall0DTE != nil {
		pin = snap.MenthorQ.Gamma.GammaWall0DTE
	}
	if pin == nil || snap.TickSize.IsZero() {
		st.pinSince = time.Time{}
		return decimal.Zero
	}
	dist := snap.LastPrice.Sub(*pin).Abs().Div(snap.TickSize)
	if dist.GreaterThan(decimal.NewFromInt(gammaPinMaxTicks)) {
		st.pinSince = time.Time{}
		return decimal.Zero
	}
	if st.pinSince.IsZero() {
		st.pinSince = now
		return decimal.Zero
	}
	return decimal.NewFromFloat(now.Sub(st.pinSince).Seconds())
}

func sortFloats(xs []float64) {
	for i := 1; i < len(xs); i++ {
		for j := i; j > 0 && xs[j-1] > xs[j]; j-- {
			xs[j-1], xs[j] = xs[j], xs[j-1]
		}
	}
}
