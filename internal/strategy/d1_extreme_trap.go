package strategy

import (
	"github.com/atlas-desktop/mia-core/pkg/types"
	"github.com/shopspring/decimal"
)

// d1ExtremeTrap: price breaks a prior-day extreme, approximated here by
// the nearest swing level since no separate day-high/day-low bucket is
// tracked, together with CVD divergence (delta_flip as the observable
// proxy) -> fade back toward VWAP/VPOC.
type d1ExtremeTrap struct{}

func NewD1ExtremeTrap() Strategy { return d1ExtremeTrap{} }

func (d1ExtremeTrap) Name() string               { return "d1_extreme_trap" }
func (d1ExtremeTrap) Family() types.PatternFamily { return types.FamilyTrap }

func (s d1ExtremeTrap) extreme(ctx Context) (decimal.Decimal, bool) {
	levels := ctx.Snapshot.MenthorQ.Swing.Levels
	if len(levels) == 0 {
		return decimal.Zero, false
	}
	extreme := levels[0]
	for _, l := range levels[1:] {
		if l.Sub(ctx.Snapshot.LastPrice).Abs().LessThan(extreme.Sub(ctx.Snapshot.LastPrice).Abs()) {
			extreme = l
		}
	}
	return extreme, true
}

func (s d1ExtremeTrap) ShouldRun(ctx Context) bool {
	extreme, ok := s.extreme(ctx)
	if !ok {
		return false
	}
	if !ctx.Metrics.DeltaFlip {
		return false
	}
	price := ctx.Snapshot.LastPrice
	brokeUp := price.GreaterThan(extreme) && ctx.Snapshot.M1.VWAP.LessThan(extreme)
	brokeDown := price.LessThan(extreme) && ctx.Snapshot.M1.VWAP.GreaterThan(extreme)
	return brokeUp || brokeDown
}

func (s d1ExtremeTrap) Generate(ctx Context) *types.PatternSignal {
	if !s.ShouldRun(ctx) {
		return nil
	}
	extreme, _ := s.extreme(ctx)
	price := ctx.Snapshot.LastPrice
	side := types.SideShort
	target := ctx.Snapshot.M1.VWAP
	if ctx.Snapshot.M1.VPOC.GreaterThan(decimal.Zero) {
		target = ctx.Snapshot.M1.VPOC
	}
	if price.LessThan(extreme) {
		side = types.SideLong
	}
	tick := ctx.TickSize()
	stop := price
	if side == types.SideLong {
		stop = price.Sub(tick.Mul(decimal.NewFromInt(8)))
	} else {
		stop = price.Add(tick.Mul(decimal.NewFromInt(8)))
	}
	return &types.PatternSignal{
		Strategy:   s.Name(),
		Family:     s.Family(),
		Side:       side,
		Confidence: 0.62,
		Entry:      price,
		Stop:       stop,
		Targets:    []decimal.Decimal{target},
		Reason:     "day extreme broken with CVD divergence, fading back",
		Timestamp:  ctx.Now,
	}
}
