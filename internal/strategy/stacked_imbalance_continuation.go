package strategy

import (
	"github.com/atlas-desktop/mia-core/pkg/types"
	"github.com/shopspring/decimal"
)

const stackedImbalanceMinRows = 3

// stackedImbalanceContinuation: >=3 consecutive stacked DOM imbalance
// rows on one side -> continuation entry.
type stackedImbalanceContinuation struct{}

func NewStackedImbalanceContinuation() Strategy { return stackedImbalanceContinuation{} }

func (stackedImbalanceContinuation) Name() string                { return "stacked_imbalance_continuation" }
func (stackedImbalanceContinuation) Family() types.PatternFamily { return types.FamilyContinuation }

func (s stackedImbalanceContinuation) ShouldRun(ctx Context) bool {
	return ctx.Metrics.StackedImbalance.Ask >= stackedImbalanceMinRows ||
		ctx.Metrics.StackedImbalance.Bid >= stackedImbalanceMinRows
}

func (s stackedImbalanceContinuation) Generate(ctx Context) *types.PatternSignal {
	if !s.ShouldRun(ctx) {
		return nil
	}
	price := ctx.Snapshot.LastPrice
	tick := ctx.TickSize()
	side := types.SideLong
	stop := price.Sub(tick.Mul(decimal.NewFromInt(5)))
	target := price.Add(tick.Mul(decimal.NewFromInt(10)))
	if ctx.Metrics.StackedImbalance.Ask >= stackedImbalanceMinRows {
		side = types.SideShort
		stop = price.Add(tick.Mul(decimal.NewFromInt(5)))
		target = price.Sub(tick.Mul(decimal.NewFromInt(10)))
	}
	return &types.PatternSignal{
		Strategy:   s.Name(),
		Family:     s.Family(),
		Side:       side,
		Confidence: 0.61,
		Entry:      price,
		Stop:       stop,
		Targets:    []decimal.Decimal{target},
		Reason:     "stacked DOM imbalance persisted, continuation entry",
		Timestamp:  ctx.Now,
	}
}
