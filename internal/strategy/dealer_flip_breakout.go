package strategy

import (
	"github.com/atlas-desktop/mia-core/pkg/types"
	"github.com/shopspring/decimal"
)

// dealerFlipBreakout: gamma_flip + delta_burst + break of the nearest
// wall, with VWAP alignment.
type dealerFlipBreakout struct{}

func NewDealerFlipBreakout() Strategy { return dealerFlipBreakout{} }

func (dealerFlipBreakout) Name() string                { return "dealer_flip_breakout" }
func (dealerFlipBreakout) Family() types.PatternFamily { return types.FamilyBreakout }

func (s dealerFlipBreakout) nearestWall(ctx Context) (decimal.Decimal, bool) {
	price := ctx.Snapshot.LastPrice
	var best decimal.Decimal
	ok := false
	consider := func(lvl *decimal.Decimal) {
		if lvl == nil {
			return
		}
		if !ok || lvl.Sub(price).Abs().LessThan(best.Sub(price).Abs()) {
			best, ok = *lvl, true
		}
	}
	consider(ctx.Snapshot.MenthorQ.Gamma.CallResistance)
	consider(ctx.Snapshot.MenthorQ.Gamma.PutSupport)
	consider(ctx.Snapshot.MenthorQ.Gamma.HVL)
	return best, ok
}

func (s dealerFlipBreakout) ShouldRun(ctx Context) bool {
	if !ctx.Metrics.GammaFlipUp && !ctx.Metrics.GammaFlipDown {
		return false
	}
	if !ctx.Metrics.DeltaBurst {
		return false
	}
	wall, ok := s.nearestWall(ctx)
	if !ok {
		return false
	}
	price := ctx.Snapshot.LastPrice
	vwap := ctx.Snapshot.M1.VWAP
	brokeUp := price.GreaterThan(wall) && price.GreaterThan(vwap)
	brokeDown := price.LessThan(wall) && price.LessThan(vwap)
	return brokeUp || brokeDown
}

func (s dealerFlipBreakout) Generate(ctx Context) *types.PatternSignal {
	if !s.ShouldRun(ctx) {
		return nil
	}
	wall, _ := s.nearestWall(ctx)
	price := ctx.Snapshot.LastPrice
	tick := ctx.TickSize()
	side := types.SideLong
	stop := wall.Sub(tick.Mul(decimal.NewFromInt(4)))
	target := price.Add(tick.Mul(decimal.NewFromInt(10)))
	if price.LessThan(wall) {
		side = types.SideShort
		stop = wall.Add(tick.Mul(decimal.NewFromInt(4)))
		target = price.Sub(tick.Mul(decimal.NewFromInt(10)))
	}
	return &types.PatternSignal{
		Strategy:   s.Name(),
		Family:     s.Family(),
		Side:       side,
		Confidence: 0.64,
		Entry:      price,
		Stop:       stop,
		Targets:    []decimal.Decimal{target},
		Reason:     "dealer gamma flip with delta burst broke the nearest wall, VWAP aligned",
		Timestamp:  ctx.Now,
	}
}
