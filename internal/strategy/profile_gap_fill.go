package strategy

import (
	"github.com/atlas-desktop/mia-core/pkg/types"
	"github.com/shopspring/decimal"
)

const profileGapMinTicks = 5

// profileGapFill: a volume-profile gap above/below price -> directional
// target toward VPOC. The value-area edges (VAH/VAL) stand in for the
// gap boundary: price beyond either edge by more than the minimum gap
// distance implies unfilled profile between price and VPOC.
type profileGapFill struct{}

func NewProfileGapFill() Strategy { return profileGapFill{} }

func (profileGapFill) Name() string                { return "profile_gap_fill" }
func (profileGapFill) Family() types.PatternFamily { return types.FamilyMeanRevert }

func (s profileGapFill) ShouldRun(ctx Context) bool {
	if ctx.Snapshot.M1.VPOC.IsZero() {
		return false
	}
	price := ctx.Snapshot.LastPrice
	tick := ctx.TickSize()
	aboveVAH := !ctx.Snapshot.M1.VAH.IsZero() && price.GreaterThan(ctx.Snapshot.M1.VAH) &&
		distanceTicks(price, ctx.Snapshot.M1.VAH, tick).GreaterThanOrEqual(decimal.NewFromInt(profileGapMinTicks))
	belowVAL := !ctx.Snapshot.M1.VAL.IsZero() && price.LessThan(ctx.Snapshot.M1.VAL) &&
		distanceTicks(price, ctx.Snapshot.M1.VAL, tick).GreaterThanOrEqual(decimal.NewFromInt(profileGapMinTicks))
	return aboveVAH || belowVAL
}

func (s profileGapFill) Generate(ctx Context) *types.PatternSignal {
	if !s.ShouldRun(ctx) {
		return nil
	}
	price := ctx.Snapshot.LastPrice
	vpoc := ctx.Snapshot.M1.VPOC
	tick := ctx.TickSize()
	side := types.SideShort
	stop := price.Add(tick.Mul(decimal.NewFromInt(6)))
	if price.LessThan(vpoc) {
		side = types.SideLong
		stop = price.Sub(tick.Mul(decimal.NewFromInt(6)))
	}
	return &types.PatternSignal{
		Strategy:   s.Name(),
		Family:     s.Family(),
		Side:       side,
		Confidence: 0.54,
		Entry:      price,
		Stop:       stop,
		Targets:    []decimal.Decimal{vpoc},
		Reason:     "price left a volume-profile gap, targeting VPOC to fill it",
		Timestamp:  ctx.Now,
	}
}
