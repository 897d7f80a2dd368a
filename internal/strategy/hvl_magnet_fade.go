package strategy

import (
	"github.com/atlas-desktop/mia-core/pkg/types"
	"github.com/shopspring/decimal"
)

// hvlMagnetFade: price within 10 ticks of HVL, no burst, no stacked
// imbalance >=3 rows -> fade toward HVL.
type hvlMagnetFade struct{}

func NewHVLMagnetFade() Strategy { return hvlMagnetFade{} }

func (hvlMagnetFade) Name() string                { return "hvl_magnet_fade" }
func (hvlMagnetFade) Family() types.PatternFamily { return types.FamilyMeanRevert }

func (s hvlMagnetFade) ShouldRun(ctx Context) bool {
	hvl := ctx.Snapshot.MenthorQ.Gamma.HVL
	if hvl == nil {
		return false
	}
	if distanceTicks(ctx.Snapshot.LastPrice, *hvl, ctx.TickSize()).GreaterThan(decimal.NewFromInt(10)) {
		return false
	}
	if ctx.Metrics.DeltaBurst {
		return false
	}
	if ctx.Metrics.StackedImbalance.Ask >= 3 || ctx.Metrics.StackedImbalance.Bid >= 3 {
		return false
	}
	return true
}

func (s hvlMagnetFade) Generate(ctx Context) *types.PatternSignal {
	if !s.ShouldRun(ctx) {
		return nil
	}
	hvl := *ctx.Snapshot.MenthorQ.Gamma.HVL
	price := ctx.Snapshot.LastPrice
	side := types.SideLong
	if price.GreaterThan(hvl) {
		side = types.SideShort
	}
	tick := ctx.TickSize()
	stop := price.Add(tick.Mul(decimal.NewFromInt(6)))
	if side == types.SideLong {
		stop = price.Sub(tick.Mul(decimal.NewFromInt(6)))
	}
	return &types.PatternSignal{
		Strategy:   s.Name(),
		Family:     s.Family(),
		Side:       side,
		Confidence: 0.60,
		Entry:      price,
		Stop:       stop,
		Targets:    []decimal.Decimal{hvl},
		Reason:     "price near HVL with no burst or stacked imbalance, fading toward the magnet",
		Timestamp:  ctx.Now,
	}
}
