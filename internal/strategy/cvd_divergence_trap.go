package strategy

import (
	"github.com/atlas-desktop/mia-core/pkg/types"
	"github.com/shopspring/decimal"
)

// cvdDivergenceTrap: price makes a new high/low while CVD fails to
// confirm -> reversal. delta_flip is the streaming proxy for "CVD
// failed to confirm the new extreme".
type cvdDivergenceTrap struct{}

func NewCVDDivergenceTrap() Strategy { return cvdDivergenceTrap{} }

func (cvdDivergenceTrap) Name() string                { return "cvd_divergence_trap" }
func (cvdDivergenceTrap) Family() types.PatternFamily { return types.FamilyTrap }

func (s cvdDivergenceTrap) newExtreme(ctx Context) (isHigh, isLow bool) {
	bars := ctx.Snapshot.M1.BarsHistory
	if len(bars) < 2 {
		return false, false
	}
	last := bars[len(bars)-1]
	prior := bars[:len(bars)-1]
	isHigh, isLow = true, true
	for _, b := range prior {
		if b.High.GreaterThanOrEqual(last.High) {
			isHigh = false
		}
		if b.Low.LessThanOrEqual(last.Low) {
			isLow = false
		}
	}
	return isHigh, isLow
}

func (s cvdDivergenceTrap) ShouldRun(ctx Context) bool {
	if !ctx.Metrics.DeltaFlip {
		return false
	}
	isHigh, isLow := s.newExtreme(ctx)
	return isHigh || isLow
}

func (s cvdDivergenceTrap) Generate(ctx Context) *types.PatternSignal {
	if !s.ShouldRun(ctx) {
		return nil
	}
	isHigh, _ := s.newExtreme(ctx)
	price := ctx.Snapshot.LastPrice
	tick := ctx.TickSize()
	side := types.SideShort
	stop := price.Add(tick.Mul(decimal.NewFromInt(6)))
	target := price.Sub(tick.Mul(decimal.NewFromInt(10)))
	if !isHigh {
		side = types.SideLong
		stop = price.Sub(tick.Mul(decimal.NewFromInt(6)))
		target = price.Add(tick.Mul(decimal.NewFromInt(10)))
	}
	return &types.PatternSignal{
		Strategy:   s.Name(),
		Family:     s.Family(),
		Side:       side,
		Confidence: 0.59,
		Entry:      price,
		Stop:       stop,
		Targets:    []decimal.Decimal{target},
		Reason:     "new price extreme unconfirmed by CVD, reversing",
		Timestamp:  ctx.Now,
	}
}
