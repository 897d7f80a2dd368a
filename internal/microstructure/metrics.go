// Package microstructure computes the streaming order-flow indicators
// that patterns and MenthorQ confluence both read: quote speed,
// wick geometry, CVD bursts/flips, stacked imbalance, absorption and
// iceberg detection, and gamma-flip crossings.
package microstructure

import (
	"time"

	"github.com/atlas-desktop/mia-core/pkg/types"
	"github.com/shopspring/decimal"
)

const (
	absorptionWindow      = 3 * time.Second
	icebergWindow         = 4 * time.Second
	absorptionMinQty      = 50
	icebergMinTrades      = 5
	icebergMaxDropRatio   = 0.30
	stackedImbalanceRatio = 3.0
	quoteSpeedAlpha       = 0.3
	epsilon               = 1e-9
)

// tickSample is one raw print retained long enough to compute the
// bounded sliding-window metrics (absorption, iceberg).
type tickSample struct {
	at           time.Time
	price        decimal.Decimal
	qty          decimal.Decimal
	displayedQty decimal.Decimal
	atBid        bool
}

// Metrics is the stateful, per-symbol streaming calculator.
// The Update* methods are fed per event by the server's event pump and
// Current is read at tick time; none of them blocks or errors, and
// sparse input is tolerated.
type Metrics struct {
	tickSize decimal.Decimal

	lastQuoteAt  time.Time
	quoteSpeedUp decimal.Decimal // EWMA of quote arrivals per second

	lastWickTicks      decimal.Decimal
	lastUpperWickTicks decimal.Decimal
	lastLowerWickTicks decimal.Decimal

	cvd        decimal.Decimal
	prevDelta  decimal.Decimal
	haveDelta  bool
	deltaBurst bool
	deltaFlip  bool

	stackedAskRows int
	stackedBidRows int

	window []tickSample

	gammaFlipUp   bool
	gammaFlipDown bool
	prevPrice     decimal.Decimal
	gammaLevel    *decimal.Decimal
}

// New creates a Metrics calculator for one symbol.
func New(tickSize decimal.Decimal) *Metrics {
	return &Metrics{tickSize: tickSize}
}

// Snapshot is the read view handed to pattern strategies and confluence
// scoring.
type Snapshot struct {
	QuotesSpeedUp      decimal.Decimal
	LastWickTicks      decimal.Decimal
	LastUpperWickTicks decimal.Decimal
	LastLowerWickTicks decimal.Decimal
	CVD                decimal.Decimal
	DeltaBurst         bool
	DeltaFlip          bool
	StackedImbalance   StackedImbalance
	Absorption         Absorption
	Iceberg            bool
	GammaFlipUp        bool
	GammaFlipDown      bool
}

// StackedImbalance reports consecutive DOM rows favouring one side at
// or above the ratio threshold.
type StackedImbalance struct {
	Ask int
	Bid int
}

// Absorption reports, per side of the book, whether large size traded
// while the traded price stayed within one tick.
type Absorption struct {
	Bid bool
	Ask bool
}

// UpdateFromQuote recomputes quote-arrival speed, an EWMA over inter-quote
// gaps (quotes.speed_up, alpha ~0.3, clamped to (0,1)).
func (m *Metrics) UpdateFromQuote(now time.Time, _ types.QuotePayload) {
	if m.lastQuoteAt.IsZero() {
		m.lastQuoteAt = now
		return
	}
	gap := now.Sub(m.lastQuoteAt).Seconds()
	m.lastQuoteAt = now
	if gap <= 0 {
		return
	}
	instRate := decimal.NewFromFloat(1.0 / gap)
	alpha := decimal.NewFromFloat(clampAlpha(quoteSpeedAlpha))
	m.quoteSpeedUp = alpha.Mul(instRate).Add(decimal.NewFromFloat(1).Sub(alpha).Mul(m.quoteSpeedUp))
}

// UpdateFromBar recomputes wick geometry from the latest completed bar
// and feeds the bar's close through the gamma-flip crossing check,
// since basedata bars are a real price update in their own right.
func (m *Metrics) UpdateFromBar(bar types.Bar) {
	top := decimal.Max(bar.Open, bar.Close)
	bottom := decimal.Min(bar.Open, bar.Close)

	m.UpdateGammaFlip(bar.Close, m.gammaLevel)
	m.prevPrice = bar.Close

	if m.tickSize.IsZero() {
		return
	}
	m.lastUpperWickTicks = bar.High.Sub(top).Div(m.tickSize)
	m.lastLowerWickTicks = bottom.Sub(bar.Low).Div(m.tickSize)
	m.lastWickTicks = m.lastUpperWickTicks.Add(m.lastLowerWickTicks)
}

// UpdateFromNBCV folds a footprint delta into CVD, tracking bursts (the
// tick-over-tick change in delta above a fixed threshold of 500) and flips (sign change between consecutive per-tick deltas,
// not the cumulative CVD).
func (m *Metrics) UpdateFromNBCV(delta decimal.Decimal) {
	m.cvd = m.cvd.Add(delta)

	burstThreshold := decimal.NewFromInt(500)
	if m.haveDelta {
		m.deltaBurst = delta.Sub(m.prevDelta).Abs().GreaterThan(burstThreshold)
		m.deltaFlip = signOf(delta) != 0 && signOf(m.prevDelta) != 0 && signOf(delta) != signOf(m.prevDelta)
	} else {
		m.deltaBurst = false
		m.deltaFlip = false
	}
	m.prevDelta = delta
	m.haveDelta = true
}

// UpdateFromDepth evaluates stacked-imbalance on each side: consecutive
// rows (from best through depth) where size on one side is at least
// stackedImbalanceRatio times the opposite side at the same level.
func (m *Metrics) UpdateFromDepth(depth types.DepthPayload) StackedImbalance {
	res := StackedImbalance{}
	n := minInt(len(depth.BidSizes), len(depth.AskSizes))
	for i := 0; i < n; i++ {
		bid := depth.BidSizes[i]
		ask := depth.AskSizes[i]
		switch {
		case !ask.IsZero() && bid.Div(ask.Add(decimal.NewFromFloat(epsilon))).GreaterThanOrEqual(decimal.NewFromFloat(stackedImbalanceRatio)):
			res.Bid++
		case !bid.IsZero() && ask.Div(bid.Add(decimal.NewFromFloat(epsilon))).GreaterThanOrEqual(decimal.NewFromFloat(stackedImbalanceRatio)):
			res.Ask++
		default:
			return res
		}
	}
	return res
}

// UpdateFromTrade records a print into the bounded sliding windows used
// by absorption and iceberg detection, evicting samples older than the
// wider of the two windows.
func (m *Metrics) UpdateFromTrade(now time.Time, trade types.TradePayload, atBid bool, displayedQty decimal.Decimal) {
	m.window = append(m.window, tickSample{at: now, price: trade.Price, qty: trade.Qty, displayedQty: displayedQty, atBid: atBid})
	cutoff := now.Add(-maxWindow())
	i := 0
	for i < len(m.window) && m.window[i].at.Before(cutoff) {
		i++
	}
	if i > 0 {
		m.window = m.window[i:]
	}
	m.UpdateGammaFlip(trade.Price, m.gammaLevel)
	m.prevPrice = trade.Price
}

func maxWindow() time.Duration {
	if absorptionWindow > icebergWindow {
		return absorptionWindow
	}
	return icebergWindow
}

// absorption implements: within W_abs=3s, at least 50 contracts traded
// on one side while the traded prices spanned at most one tick. The
// movement is measured on trade prices only; the quote mid is not tracked.
func (m *Metrics) absorption(now time.Time) Absorption {
	cutoff := now.Add(-absorptionWindow)
	var bidQty, askQty decimal.Decimal
	var minPrice, maxPrice decimal.Decimal
	first := true
	for _, s := range m.window {
		if s.at.Before(cutoff) {
			continue
		}
		if s.atBid {
			bidQty = bidQty.Add(s.qty)
		} else {
			askQty = askQty.Add(s.qty)
		}
		if first {
			minPrice, maxPrice = s.price, s.price
			first = false
		} else {
			minPrice = decimal.Min(minPrice, s.price)
			maxPrice = decimal.Max(maxPrice, s.price)
		}
	}
	moved := maxPrice.Sub(minPrice)
	withinOneTick := !m.tickSize.IsZero() && moved.LessThanOrEqual(m.tickSize)
	return Absorption{
		Bid: withinOneTick && bidQty.GreaterThanOrEqual(decimal.NewFromInt(absorptionMinQty)),
		Ask: withinOneTick && askQty.GreaterThanOrEqual(decimal.NewFromInt(absorptionMinQty)),
	}
}

// iceberg implements: within W_ice=4s, at least 5 trades occur at the
// same price while displayed size drops less than 30% between prints —
// a refreshing hidden order rather than a thinning book.
func (m *Metrics) iceberg(now time.Time) bool {
	cutoff := now.Add(-icebergWindow)
	byPrice := map[string][]tickSample{}
	for _, s := range m.window {
		if s.at.Before(cutoff) {
			continue
		}
		key := s.price.String()
		byPrice[key] = append(byPrice[key], s)
	}
	for _, samples := range byPrice {
		if len(samples) < icebergMinTrades {
			continue
		}
		first := samples[0].displayedQty
		last := samples[len(samples)-1].displayedQty
		if first.IsZero() {
			continue
		}
		drop := first.Sub(last).Div(first)
		if drop.LessThan(decimal.NewFromFloat(icebergMaxDropRatio)) {
			return true
		}
	}
	return false
}

// SetGammaLevel records the current gamma-flip reference level (the HVL;
// cmd/server passes only hvl MenthorQ levels) as they arrive. It does
// not itself evaluate a crossing — UpdateFromTrade and UpdateFromBar
// do that against this level on every subsequent real price update, so
// a flip is detected the next time price actually moves rather than
// only when a new level happens to arrive.
func (m *Metrics) SetGammaLevel(level decimal.Decimal) {
	m.gammaLevel = &level
}

// UpdateGammaFlip compares the last two prices against a gamma-flip
// level (HVL by convention) to detect a directional crossing. Exported
// for direct unit testing; production callers reach it automatically
// through UpdateFromTrade/UpdateFromBar against the level set by
// SetGammaLevel.
func (m *Metrics) UpdateGammaFlip(price decimal.Decimal, hvl *decimal.Decimal) {
	m.gammaFlipUp, m.gammaFlipDown = false, false
	if hvl == nil || m.prevPrice.IsZero() {
		return
	}
	if m.prevPrice.LessThan(*hvl) && price.GreaterThanOrEqual(*hvl) {
		m.gammaFlipUp = true
	}
	if m.prevPrice.GreaterThan(*hvl) && price.LessThanOrEqual(*hvl) {
		m.gammaFlipDown = true
	}
}

// Current materialises the read-only snapshot for this tick.
func (m *Metrics) Current(now time.Time, depth types.DepthPayload) Snapshot {
	return Snapshot{
		QuotesSpeedUp:      m.quoteSpeedUp,
		LastWickTicks:      m.lastWickTicks,
		LastUpperWickTicks: m.lastUpperWickTicks,
		LastLowerWickTicks: m.lastLowerWickTicks,
		CVD:                m.cvd,
		DeltaBurst:         m.deltaBurst,
		DeltaFlip:          m.deltaFlip,
		StackedImbalance:   m.UpdateFromDepth(depth),
		Absorption:         m.absorption(now),
		Iceberg:            m.iceberg(now),
		GammaFlipUp:        m.gammaFlipUp,
		GammaFlipDown:      m.gammaFlipDown,
	}
}

func clampAlpha(a float64) float64 {
	if a <= 0 {
		return epsilon
	}
	if a >= 1 {
		return 1 - epsilon
	}
	return a
}

func signOf(d decimal.Decimal) int {
	switch {
	case d.GreaterThan(decimal.Zero):
		return 1
	case d.LessThan(decimal.Zero):
		return -1
	default:
		return 0
	}
}

func minInt(a, b int) int {
	if a < b {
		return a
	}
	return b
}
