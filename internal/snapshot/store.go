// Package snapshot implements MarketSnapshot: the per-symbol aggregator
// that merges m1/m30/VIX/MenthorQ events into one coherent, stale-aware
// view. A Store owns one Snapshot per active symbol; it is the sole
// mutator, exactly one event-dispatch task calls Apply.
package snapshot

import (
	"strings"
	"sync"
	"time"

	"github.com/atlas-desktop/mia-core/pkg/types"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// Store owns all active per-symbol snapshots.
type Store struct {
	logger *zap.Logger

	mu        sync.RWMutex
	snapshots map[string]*types.Snapshot

	// updateIntervalForRegime resolves the "2x expected MenthorQ update
	// interval" staleness threshold per VIX regime.
	updateIntervalForRegime func(types.VixRegime) time.Duration
}

// New creates an empty Store. updateInterval resolves the expected
// MenthorQ refresh cadence per regime; DefaultUpdateInterval supplies
// sensible, environment-independent defaults.
func New(logger *zap.Logger, updateInterval func(types.VixRegime) time.Duration) *Store {
	if updateInterval == nil {
		updateInterval = DefaultUpdateInterval
	}
	return &Store{
		logger:                  logger.Named("snapshot"),
		snapshots:               make(map[string]*types.Snapshot),
		updateIntervalForRegime: updateInterval,
	}
}

// DefaultUpdateInterval maps VIX regime to an expected MenthorQ refresh
// cadence: calmer markets update levels less often.
func DefaultUpdateInterval(regime types.VixRegime) time.Duration {
	switch regime {
	case types.VixLow:
		return 10 * time.Minute
	case types.VixMid:
		return 5 * time.Minute
	default:
		return 2 * time.Minute
	}
}

// Apply is the only mutator: it routes the event by type and
// recomputes derived fields and stale flags afterward.
func (s *Store) Apply(ev *types.Event) {
	s.mu.Lock()
	defer s.mu.Unlock()

	snap, ok := s.snapshots[ev.Symbol]
	if !ok {
		snap = &types.Snapshot{
			Symbol:   ev.Symbol,
			TickSize: types.TickSizeFor(ev.Symbol),
		}
		s.snapshots[ev.Symbol] = snap
	}
	snap.TsLastEvent = ev.Timestamp

	switch ev.Type {
	case types.EventBaseData:
		s.applyBaseData(snap, ev)
	case types.EventVWAP:
		s.applyVWAP(snap, ev)
	case types.EventVVA:
		s.applyVVA(snap, ev)
	case types.EventNBCVFootprint:
		s.applyNBCV(snap, ev)
	case types.EventQuote:
		s.applyQuote(snap, ev)
	case types.EventTrade:
		s.applyTrade(snap, ev)
	case types.EventDepth:
		s.applyDepth(snap, ev)
	case types.EventVIX:
		s.applyVix(snap, ev)
	case types.EventMenthorQLevel:
		s.applyMenthorQ(snap, ev)
	}

	s.refreshStale(snap)
	s.refreshDerived(snap)
}

func (s *Store) applyBaseData(snap *types.Snapshot, ev *types.Event) {
	p := ev.BaseData
	bar := types.NewBar(ev.Timestamp, p.Open, p.High, p.Low, p.Close, p.Volume, p.BidVolume, p.AskVolume)
	switch ev.Chart {
	case 4:
		snap.M30.AppendM30Bar(bar)
	default:
		snap.M1.AppendM1Bar(bar)
	}
	snap.LastPrice = p.Close
}

func (s *Store) applyVWAP(snap *types.Snapshot, ev *types.Event) {
	p := ev.VWAP
	switch ev.Chart {
	case 4:
		snap.M30.VWAPPrevious = snap.M30.VWAPCurrent
		snap.M30.VWAPCurrent = p.V
	default:
		snap.M1.VWAP = p.V
		snap.M1.VWAPUp1 = p.Up1
		snap.M1.VWAPDn1 = p.Dn1
		snap.M1.VWAPUp2 = p.Up2
		snap.M1.VWAPDn2 = p.Dn2
	}
}

func (s *Store) applyVVA(snap *types.Snapshot, ev *types.Event) {
	p := ev.VVA
	snap.M1.VPOC = p.VPOC
	snap.M1.VAH = p.VAH
	snap.M1.VAL = p.VAL
	snap.SessionID = p.SessionID
}

func (s *Store) applyNBCV(snap *types.Snapshot, ev *types.Event) {
	p := ev.NBCVFootprint
	cvd := snap.M1.NBCVCVD.Add(p.Delta)
	if p.CumulativeDelta != nil {
		cvd = *p.CumulativeDelta
	}
	switch ev.Chart {
	case 4:
		snap.M30.NBCVDelta = p.Delta
	default:
		snap.M1.NBCVDelta = p.Delta
		snap.M1.NBCVCVD = cvd
	}
}

func (s *Store) applyQuote(snap *types.Snapshot, ev *types.Event) {
	snap.LastQuote = *ev.Quote
}

func (s *Store) applyTrade(snap *types.Snapshot, ev *types.Event) {
	snap.LastPrice = ev.Trade.Price
}

func (s *Store) applyDepth(snap *types.Snapshot, ev *types.Event) {
	snap.M30.DOMSynthetic = types.DOMState{
		BidSizes:  ev.Depth.BidSizes,
		AskSizes:  ev.Depth.AskSizes,
		BidPrices: ev.Depth.BidPrices,
		AskPrices: ev.Depth.AskPrices,
		Timestamp: ev.Timestamp,
	}
}

func (s *Store) applyVix(snap *types.Snapshot, ev *types.Event) {
	last := ev.VIX.Last
	snap.Vix = types.VixState{
		LastValue: last,
		Timestamp: ev.Timestamp,
		Regime:    types.ClassifyVixRegime(last),
		Policy:    string(types.ClassifyVixRegime(last)),
	}
}

// applyMenthorQ dispatches on level_type prefix into one of the six
// level slots; later duplicates for the same subgraph overwrite. The
// wire format embeds the level's index directly in level_type (e.g.
// "gex_1", "blind_spot_3", "swing_2") rather than sending the bare
// constant, so matching must be by prefix, not equality; the numeric
// slot itself comes from the separate subgraph field.
func (s *Store) applyMenthorQ(snap *types.Snapshot, ev *types.Event) {
	p := ev.MenthorQ
	price := p.Price
	levelType := string(p.LevelType)

	switch {
	case strings.HasPrefix(levelType, "call_resistance"):
		snap.MenthorQ.Gamma.CallResistance = &price
	case strings.HasPrefix(levelType, "put_support"):
		snap.MenthorQ.Gamma.PutSupport = &price
	case strings.HasPrefix(levelType, "hvl"):
		snap.MenthorQ.Gamma.HVL = &price
		if p.ZeroDTE {
			snap.MenthorQ.Gamma.GammaWall0DTE = &price
		}
	case strings.HasPrefix(levelType, "gex_"):
		snap.MenthorQ.Gamma.GEXLevels = upsertBySubgraph(snap.MenthorQ.Gamma.GEXLevels, price, p.Subgraph, 10)
		if p.ZeroDTE {
			snap.MenthorQ.Gamma.GammaWall0DTE = &price
		}
	case strings.HasPrefix(levelType, "blind_spot_"):
		snap.MenthorQ.BlindSpots = upsertBlindSpot(snap.MenthorQ.BlindSpots, price, p.Subgraph, 10)
	case strings.HasPrefix(levelType, "swing_"):
		snap.MenthorQ.Swing.Levels = upsertBySubgraph(snap.MenthorQ.Swing.Levels, price, p.Subgraph, 9)
	}
	snap.MenthorQ.LastUpdate = ev.Timestamp
}

// upsertBySubgraph replaces the index'th slot (capped capacity) so later
// duplicates for the same subgraph overwrite.
func upsertBySubgraph(levels []decimal.Decimal, price decimal.Decimal, idx, cap int) []decimal.Decimal {
	if idx < 0 {
		idx = 0
	}
	for len(levels) <= idx && len(levels) < cap {
		levels = append(levels, decimal.Zero)
	}
	if idx < len(levels) {
		levels[idx] = price
	} else if len(levels) < cap {
		levels = append(levels, price)
	}
	return levels
}

func upsertBlindSpot(list []types.BlindSpotLevel, price decimal.Decimal, subgraph, cap int) []types.BlindSpotLevel {
	for i, bs := range list {
		if bs.Subgraph == subgraph {
			list[i].Price = price
			return list
		}
	}
	if len(list) >= cap {
		return list
	}
	return append(list, types.BlindSpotLevel{Price: price, Subgraph: subgraph})
}

// refreshStale implements the staleness rule: stale iff no MenthorQ
// update for more than 2x the regime-implied interval.
func (s *Store) refreshStale(snap *types.Snapshot) {
	if snap.MenthorQ.LastUpdate.IsZero() {
		return
	}
	threshold := 2 * s.updateIntervalForRegime(snap.Vix.Regime)
	wasStale := snap.MenthorQ.Stale
	snap.MenthorQ.Stale = time.Since(snap.MenthorQ.LastUpdate) > threshold
	if snap.MenthorQ.Stale && !wasStale {
		s.logger.Warn("menthorq data went stale", zap.String("symbol", snap.Symbol))
	}
}

// refreshDerived recomputes fields that depend on the latest price/VWAP.
func (s *Store) refreshDerived(snap *types.Snapshot) {
	if len(snap.M30.BarsHistory) > 0 {
		last := snap.M30.BarsHistory[len(snap.M30.BarsHistory)-1]
		snap.Derived.M30Range = last.High.Sub(last.Low)
	}
	if len(snap.M1.BarsHistory) > 0 {
		last := snap.M1.BarsHistory[len(snap.M1.BarsHistory)-1]
		snap.Derived.ATRProxy = last.High.Sub(last.Low)
	}
	if !snap.LastQuote.Bid.IsZero() || !snap.LastQuote.Ask.IsZero() {
		snap.Derived.SpreadAvg = snap.LastQuote.Ask.Sub(snap.LastQuote.Bid)
	}
	if !snap.LastPrice.IsZero() && !snap.M1.VWAP.IsZero() {
		snap.Derived.VWAPDistance = snap.LastPrice.Sub(snap.M1.VWAP)
		if snap.LastPrice.GreaterThanOrEqual(snap.M1.VWAP) {
			snap.Derived.PosVsVwap = types.PosAboveVWAP
		} else {
			snap.Derived.PosVsVwap = types.PosBelowVWAP
		}
	}
}

// Get returns a read-only copy of the symbol's snapshot, safe for
// concurrent strategy reads.
func (s *Store) Get(symbol string) (types.Snapshot, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	snap, ok := s.snapshots[symbol]
	if !ok {
		return types.Snapshot{}, false
	}
	return *snap, true
}

// Symbols returns all symbols with an active snapshot.
func (s *Store) Symbols() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]string, 0, len(s.snapshots))
	for sym := range s.snapshots {
		out = append(out, sym)
	}
	return out
}
