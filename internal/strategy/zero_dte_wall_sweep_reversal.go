package strategy

import (
	"github.com/atlas-desktop/mia-core/pkg/types"
	"github.com/shopspring/decimal"
)

const zeroDTEWallSweepMaxDistanceTicks = 8
const zeroDTEWallSweepMinWickTicks = 6
const zeroDTEWallSweepConfidence = 0.66

// zeroDTEWallSweepReversal: a sharp wick through a 0-DTE wall with a
// delta flip and opposite-side absorption reverses back toward the mean.
type zeroDTEWallSweepReversal struct{}

func NewZeroDTEWallSweepReversal() Strategy { return zeroDTEWallSweepReversal{} }

func (zeroDTEWallSweepReversal) Name() string                    { return "zero_dte_wall_sweep_reversal" }
func (zeroDTEWallSweepReversal) Family() types.PatternFamily { return types.FamilyReversal }

// nearestWall returns the nearer of call/put 0-DTE walls to price, and
// whether it is the call wall.
func nearestWall(ctx Context, price decimal.Decimal) (wall decimal.Decimal, isCall bool, ok bool) {
	var best decimal.Decimal
	bestSet := false
	bestIsCall := false
	if ctx.ZeroDTE.Call != nil {
		best = *ctx.ZeroDTE.Call
		bestSet = true
		bestIsCall = true
	}
	if ctx.ZeroDTE.Put != nil {
		if !bestSet || price.Sub(*ctx.ZeroDTE.Put).Abs().LessThan(price.Sub(best).Abs()) {
			best = *ctx.ZeroDTE.Put
			bestSet = true
			bestIsCall = false
		}
	}
	return best, bestIsCall, bestSet
}

func (zeroDTEWallSweepReversal) ShouldRun(ctx Context) bool {
	if ctx.ZeroDTE.Call == nil && ctx.ZeroDTE.Put == nil {
		return false
	}
	if ctx.Metrics.LastWickTicks.LessThan(decimal.NewFromInt(zeroDTEWallSweepMinWickTicks)) {
		return false
	}
	if !ctx.Metrics.DeltaFlip {
		return false
	}
	if !ctx.HasAbsorption {
		return false
	}
	price := ctx.Snapshot.LastPrice
	wall, _, ok := nearestWall(ctx, price)
	if !ok {
		return false
	}
	if distanceTicks(price, wall, ctx.TickSize()).GreaterThan(decimal.NewFromInt(zeroDTEWallSweepMaxDistanceTicks)) {
		return false
	}
	return true
}

func (s zeroDTEWallSweepReversal) Generate(ctx Context) *types.PatternSignal {
	if !s.ShouldRun(ctx) {
		return nil
	}
	price := ctx.Snapshot.LastPrice
	wall, isCall, ok := nearestWall(ctx, price)
	if !ok {
		return nil
	}

	// Absorption at BID near a call wall implies sellers were absorbed on
	// the way up -> SHORT; absorption at ASK near a put wall implies
	// buyers absorbed on the way down -> LONG.
	var side types.Side
	switch {
	case isCall && ctx.AbsorptionSide == types.SideLong:
		side = types.SideShort
	case !isCall && ctx.AbsorptionSide == types.SideShort:
		side = types.SideLong
	default:
		return nil
	}

	atrStop := ctx.ATR().Mul(atrMultSLOrDefault(ctx.ATRMultSL))
	tick := ctx.TickSize()

	var stop decimal.Decimal
	var targets []decimal.Decimal
	if side == types.SideShort {
		stop = wall.Add(atrStop)
		targets = []decimal.Decimal{
			price.Sub(tick.Mul(decimal.NewFromInt(4))),
			price.Sub(tick.Mul(decimal.NewFromInt(8))),
		}
	} else {
		stop = wall.Sub(atrStop)
		targets = []decimal.Decimal{
			price.Add(tick.Mul(decimal.NewFromInt(4))),
			price.Add(tick.Mul(decimal.NewFromInt(8))),
		}
	}

	return &types.PatternSignal{
		Strategy:   s.Name(),
		Family:     s.Family(),
		Side:       side,
		Confidence: zeroDTEWallSweepConfidence,
		Entry:      price,
		Stop:       stop,
		Targets:    targets,
		Reason:     "0DTE wall swept with delta flip and opposite absorption",
		Timestamp:  ctx.Now,
	}
}

func atrMultSLOrDefault(m decimal.Decimal) decimal.Decimal {
	if m.IsZero() {
		return decimal.NewFromFloat(1.0)
	}
	return m
}
