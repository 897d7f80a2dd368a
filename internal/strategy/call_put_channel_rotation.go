package strategy

import (
	"github.com/atlas-desktop/mia-core/pkg/types"
	"github.com/shopspring/decimal"
)

const channelMinWidthTicks = 20
const channelEdgeProximityTicks = 6

// callPutChannelRotation: channel width >=20 ticks; within 6 ticks of an
// edge with no burst -> fade toward VPOC/VWAP.
type callPutChannelRotation struct{}

func NewCallPutChannelRotation() Strategy { return callPutChannelRotation{} }

func (callPutChannelRotation) Name() string                { return "call_put_channel_rotation" }
func (callPutChannelRotation) Family() types.PatternFamily { return types.FamilyRangeRotation }

func (s callPutChannelRotation) edges(ctx Context) (lo, hi decimal.Decimal, ok bool) {
	call := ctx.Snapshot.MenthorQ.Gamma.CallResistance
	put := ctx.Snapshot.MenthorQ.Gamma.PutSupport
	if call == nil || put == nil {
		return decimal.Zero, decimal.Zero, false
	}
	return decimal.Min(*call, *put), decimal.Max(*call, *put), true
}

func (s callPutChannelRotation) ShouldRun(ctx Context) bool {
	lo, hi, ok := s.edges(ctx)
	if !ok {
		return false
	}
	tick := ctx.TickSize()
	if tick.IsZero() || hi.Sub(lo).Div(tick).LessThan(decimal.NewFromInt(channelMinWidthTicks)) {
		return false
	}
	if ctx.Metrics.DeltaBurst {
		return false
	}
	price := ctx.Snapshot.LastPrice
	nearLo := distanceTicks(price, lo, tick).LessThanOrEqual(decimal.NewFromInt(channelEdgeProximityTicks))
	nearHi := distanceTicks(price, hi, tick).LessThanOrEqual(decimal.NewFromInt(channelEdgeProximityTicks))
	return nearLo || nearHi
}

func (s callPutChannelRotation) Generate(ctx Context) *types.PatternSignal {
	if !s.ShouldRun(ctx) {
		return nil
	}
	lo, hi, _ := s.edges(ctx)
	price := ctx.Snapshot.LastPrice
	tick := ctx.TickSize()

	target := ctx.Snapshot.M1.VWAP
	if !ctx.Snapshot.M1.VPOC.IsZero() {
		target = ctx.Snapshot.M1.VPOC
	}

	side := types.SideLong
	stop := lo.Sub(tick.Mul(decimal.NewFromInt(4)))
	if distanceTicks(price, hi, tick).LessThanOrEqual(decimal.NewFromInt(channelEdgeProximityTicks)) {
		side = types.SideShort
		stop = hi.Add(tick.Mul(decimal.NewFromInt(4)))
	}

	return &types.PatternSignal{
		Strategy:   s.Name(),
		Family:     s.Family(),
		Side:       side,
		Confidence: 0.55,
		Entry:      price,
		Stop:       stop,
		Targets:    []decimal.Decimal{target},
		Reason:     "price at a wide call/put channel edge, rotating back toward centre",
		Timestamp:  ctx.Now,
	}
}
