package strategy

import (
	"github.com/atlas-desktop/mia-core/pkg/types"
	"github.com/shopspring/decimal"
)

const gexClusterMaxSpanTicks = 16

// gexClusterMeanRevert: price exits a GEX cluster of span <=16 ticks ->
// revert to the cluster centre.
type gexClusterMeanRevert struct{}

func NewGEXClusterMeanRevert() Strategy { return gexClusterMeanRevert{} }

func (gexClusterMeanRevert) Name() string                { return "gex_cluster_mean_revert" }
func (gexClusterMeanRevert) Family() types.PatternFamily { return types.FamilyMeanRevert }

func clusterBounds(levels []decimal.Decimal) (lo, hi decimal.Decimal, ok bool) {
	nonZero := make([]decimal.Decimal, 0, len(levels))
	for _, l := range levels {
		if !l.IsZero() {
			nonZero = append(nonZero, l)
		}
	}
	if len(nonZero) == 0 {
		return decimal.Zero, decimal.Zero, false
	}
	lo, hi = nonZero[0], nonZero[0]
	for _, l := range nonZero[1:] {
		lo = decimal.Min(lo, l)
		hi = decimal.Max(hi, l)
	}
	return lo, hi, true
}

func (s gexClusterMeanRevert) ShouldRun(ctx Context) bool {
	lo, hi, ok := clusterBounds(ctx.Snapshot.MenthorQ.Gamma.GEXLevels)
	if !ok {
		return false
	}
	tick := ctx.TickSize()
	if tick.IsZero() {
		return false
	}
	span := hi.Sub(lo).Div(tick)
	if span.GreaterThan(decimal.NewFromInt(gexClusterMaxSpanTicks)) {
		return false
	}
	price := ctx.Snapshot.LastPrice
	return price.LessThan(lo) || price.GreaterThan(hi)
}

func (s gexClusterMeanRevert) Generate(ctx Context) *types.PatternSignal {
	if !s.ShouldRun(ctx) {
		return nil
	}
	lo, hi, _ := clusterBounds(ctx.Snapshot.MenthorQ.Gamma.GEXLevels)
	centre := lo.Add(hi).Div(decimal.NewFromInt(2))
	price := ctx.Snapshot.LastPrice
	side := types.SideLong
	if price.GreaterThan(hi) {
		side = types.SideShort
	}
	tick := ctx.TickSize()
	stop := price.Sub(tick.Mul(decimal.NewFromInt(6)))
	if side == types.SideShort {
		stop = price.Add(tick.Mul(decimal.NewFromInt(6)))
	}
	return &types.PatternSignal{
		Strategy:   s.Name(),
		Family:     s.Family(),
		Side:       side,
		Confidence: 0.58,
		Entry:      price,
		Stop:       stop,
		Targets:    []decimal.Decimal{centre},
		Reason:     "price exited tight GEX cluster, reverting to centre",
		Timestamp:  ctx.Now,
	}
}
