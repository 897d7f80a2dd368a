package strategy

import (
	"github.com/atlas-desktop/mia-core/pkg/types"
	"github.com/shopspring/decimal"
)

const gammaWallBreakConfidence = 0.70

// gammaWallBreakAndGo: a burst through the gamma-flip wall, confirmed
// by quote acceleration, continues in the breakout direction.
type gammaWallBreakAndGo struct{}

func NewGammaWallBreakAndGo() Strategy { return gammaWallBreakAndGo{} }

func (gammaWallBreakAndGo) Name() string                { return "gamma_wall_break_and_go" }
func (gammaWallBreakAndGo) Family() types.PatternFamily { return types.FamilyBreakout }

func (gammaWallBreakAndGo) ShouldRun(ctx Context) bool {
	if ctx.ZeroDTE.GammaWall == nil {
		return false
	}
	if !ctx.Metrics.GammaFlipUp && !ctx.Metrics.GammaFlipDown {
		return false
	}
	if !ctx.Metrics.DeltaBurst {
		return false
	}
	if ctx.Metrics.QuotesSpeedUp.LessThanOrEqual(decimal.Zero) {
		return false
	}
	return true
}

func (s gammaWallBreakAndGo) Generate(ctx Context) *types.PatternSignal {
	if !s.ShouldRun(ctx) {
		return nil
	}
	price := ctx.Snapshot.LastPrice
	wall := *ctx.ZeroDTE.GammaWall
	vwap := ctx.Snapshot.M1.VWAP

	var side types.Side
	switch {
	case price.GreaterThan(wall) && price.GreaterThan(vwap):
		side = types.SideLong
	case price.LessThan(wall) && price.LessThan(vwap):
		side = types.SideShort
	default:
		return nil
	}

	tick := ctx.TickSize()
	atrStop := ctx.ATR().Mul(atrMultSLOrDefault(ctx.ATRMultSL))

	var stop, target decimal.Decimal
	if side == types.SideLong {
		stop = wall.Sub(atrStop)
		if !ctx.Snapshot.M1.VWAPUp2.IsZero() {
			target = ctx.Snapshot.M1.VWAPUp2
		} else {
			target = price.Add(tick.Mul(decimal.NewFromInt(6)))
		}
	} else {
		stop = wall.Add(atrStop)
		if !ctx.Snapshot.M1.VWAPDn2.IsZero() {
			target = ctx.Snapshot.M1.VWAPDn2
		} else {
			target = price.Sub(tick.Mul(decimal.NewFromInt(6)))
		}
	}

	return &types.PatternSignal{
		Strategy:   s.Name(),
		Family:     s.Family(),
		Side:       side,
		Confidence: gammaWallBreakConfidence,
		Entry:      price,
		Stop:       stop,
		Targets:    []decimal.Decimal{target},
		Reason:     "gamma wall broken with delta burst and quote acceleration",
		Timestamp:  ctx.Now,
	}
}
