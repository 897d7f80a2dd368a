package types

import (
	"time"

	"github.com/shopspring/decimal"
)

const (
	maxM1BarsHistory = 300
	maxM30BarsHistory = 96
	maxGexLevels = 10
	maxBlindSpots = 10
	maxSwingLevels = 9
)

// Bar is one OHLCV bar; the low<=min(open,close)<=max(open,close)<=high
// invariant from is enforced by NewBar.
type Bar struct {
	Timestamp time.Time
	Open, High, Low, Close decimal.Decimal
	Volume, BidVolume, AskVolume decimal.Decimal
}

// NewBar normalises a raw OHLC quadruple so the ordering invariant holds
// even if the upstream feed momentarily violates it.
func NewBar(ts time.Time, open, high, low, close, volume, bidVol, askVol decimal.Decimal) Bar {
	lo := decimal.Min(low, decimal.Min(open, close))
	hi := decimal.Max(high, decimal.Max(open, close))
	return Bar{Timestamp: ts, Open: open, High: hi, Low: lo, Close: close,
		Volume: volume, BidVolume: bidVol, AskVolume: askVol}
}

// M1State is the 1-minute chart view of a symbol.
type M1State struct {
	CurrentBar *Bar
	BarsHistory []Bar
	VWAP decimal.Decimal
	VWAPUp1 decimal.Decimal
	VWAPDn1 decimal.Decimal
	VWAPUp2 decimal.Decimal
	VWAPDn2 decimal.Decimal
	NBCVDelta decimal.Decimal
	NBCVCVD decimal.Decimal
	VPOC, VAH, VAL decimal.Decimal
	TsLite time.Time
}

// M30State is the 30-minute chart view of a symbol.
type M30State struct {
	CurrentBar *Bar
	BarsHistory []Bar
	VWAPCurrent decimal.Decimal
	VWAPPrevious decimal.Decimal
	NBCVDelta decimal.Decimal
	DOMSynthetic DOMState
}

// DOMState is the latest depth-of-market snapshot.
type DOMState struct {
	BidSizes, AskSizes []decimal.Decimal
	BidPrices, AskPrices []decimal.Decimal
	Timestamp time.Time
}

// VixState tracks the latest VIX reading and derived regime/policy.
type VixState struct {
	LastValue decimal.Decimal
	Timestamp time.Time
	Regime VixRegime
	Policy string
}

// GammaLevels holds the gamma-derived MenthorQ sub-bucket.
type GammaLevels struct {
	CallResistance *decimal.Decimal
	PutSupport *decimal.Decimal
	GammaWall0DTE *decimal.Decimal
	HVL *decimal.Decimal
	GEXLevels []decimal.Decimal
}

// BlindSpotLevel is one labelled blind-spot price.
type BlindSpotLevel struct {
	Price decimal.Decimal
	Subgraph int
}

// SwingLevels holds the swing sub-bucket.
type SwingLevels struct {
	Levels []decimal.Decimal
	Major []decimal.Decimal
}

// MenthorQState aggregates the three MenthorQ sub-buckets plus staleness.
type MenthorQState struct {
	Gamma GammaLevels
	BlindSpots []BlindSpotLevel
	Swing SwingLevels
	LastUpdate time.Time
	Stale bool
}

// PosVsVwap classifies price relative to the m1 VWAP.
type PosVsVwap string

const (
	PosAboveVWAP PosVsVwap = "above"
	PosBelowVWAP PosVsVwap = "below"
)

// DerivedState holds fields recomputed after every mutation.
type DerivedState struct {
	M30Range decimal.Decimal
	ATRProxy decimal.Decimal
	SpreadAvg decimal.Decimal
	OFlowSpeed decimal.Decimal
	VWAPDistance decimal.Decimal
	PosVsVwap PosVsVwap
}

// Snapshot is the per-symbol, single-writer-many-readers market state
// described in. All mutation happens via Apply on the owning Store.
type Snapshot struct {
	Symbol string
	SessionID string
	TickSize decimal.Decimal
	FilePos int64
	TsLastEvent time.Time

	M1 M1State
	M30 M30State
	Vix VixState
	MenthorQ MenthorQState
	Derived DerivedState

	LastQuote QuotePayload
	LastPrice decimal.Decimal
}

// TickSizeFor returns the contract tick size: 0.25 for ES-family symbols,
// 0.5 for NQ-family, matching.
func TickSizeFor(symbol string) decimal.Decimal {
	if len(symbol) >= 2 && symbol[:2] == "NQ" {
		return decimal.NewFromFloat(0.5)
	}
	return decimal.NewFromFloat(0.25)
}

// AppendM1Bar appends a bar honouring the history cap from /.
func (m1 *M1State) AppendM1Bar(b Bar) {
	m1.CurrentBar = &b
	m1.BarsHistory = append(m1.BarsHistory, b)
	if len(m1.BarsHistory) > maxM1BarsHistory {
		m1.BarsHistory = m1.BarsHistory[len(m1.BarsHistory)-maxM1BarsHistory:]
	}
}

// AppendM30Bar appends a bar honouring the history cap.
func (m30 *M30State) AppendM30Bar(b Bar) {
	m30.CurrentBar = &b
	m30.BarsHistory = append(m30.BarsHistory, b)
	if len(m30.BarsHistory) > maxM30BarsHistory {
		m30.BarsHistory = m30.BarsHistory[len(m30.BarsHistory)-maxM30BarsHistory:]
	}
}
