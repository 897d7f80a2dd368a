package strategy

import (
	"github.com/atlas-desktop/mia-core/pkg/types"
	"github.com/shopspring/decimal"
)

const liquiditySweepMaxTicks = 6

// liquiditySweepReversal: sweep beyond the recent swing level plus
// opposite-side absorption -> reversal entry.
type liquiditySweepReversal struct{}

func NewLiquiditySweepReversal() Strategy { return liquiditySweepReversal{} }

func (liquiditySweepReversal) Name() string                { return "liquidity_sweep_reversal" }
func (liquiditySweepReversal) Family() types.PatternFamily { return types.FamilyReversal }

func (s liquiditySweepReversal) ShouldRun(ctx Context) bool {
	if ctx.SwingRecent == nil {
		return false
	}
	if !ctx.HasAbsorption {
		return false
	}
	price := ctx.Snapshot.LastPrice
	swing := *ctx.SwingRecent
	return distanceTicks(price, swing, ctx.TickSize()).LessThanOrEqual(decimal.NewFromInt(liquiditySweepMaxTicks))
}

func (s liquiditySweepReversal) Generate(ctx Context) *types.PatternSignal {
	if !s.ShouldRun(ctx) {
		return nil
	}
	swing := *ctx.SwingRecent
	price := ctx.Snapshot.LastPrice
	tick := ctx.TickSize()

	side := types.SideLong
	if ctx.AbsorptionSide == types.SideShort {
		side = types.SideShort
	}
	stop := swing.Sub(tick.Mul(decimal.NewFromInt(4)))
	target := price.Add(tick.Mul(decimal.NewFromInt(8)))
	if side == types.SideShort {
		stop = swing.Add(tick.Mul(decimal.NewFromInt(4)))
		target = price.Sub(tick.Mul(decimal.NewFromInt(8)))
	}

	return &types.PatternSignal{
		Strategy:   s.Name(),
		Family:     s.Family(),
		Side:       side,
		Confidence: 0.63,
		Entry:      price,
		Stop:       stop,
		Targets:    []decimal.Decimal{target},
		Reason:     "swept beyond recent swing with opposite-side absorption",
		Timestamp:  ctx.Now,
	}
}
