package strategy

import (
	"github.com/atlas-desktop/mia-core/pkg/types"
	"github.com/shopspring/decimal"
)

const leadLagConfirmTicks = 4

// esNQLeadLagMirror: one index breaks a level while the other fails to
// confirm within N ticks. Context.Mirror is populated by the context
// builder (internal/contextbuild) with the paired symbol's latest price and break flags.
type esNQLeadLagMirror struct{}

func NewESNQLeadLagMirror() Strategy { return esNQLeadLagMirror{} }

func (esNQLeadLagMirror) Name() string                { return "es_nq_lead_lag_mirror" }
func (esNQLeadLagMirror) Family() types.PatternFamily { return types.FamilyCorrelation }

func (s esNQLeadLagMirror) ShouldRun(ctx Context) bool {
	if !ctx.Mirror.Present {
		return false
	}
	hvl := ctx.Snapshot.MenthorQ.Gamma.HVL
	if hvl == nil {
		return false
	}
	price := ctx.Snapshot.LastPrice
	leaderBrokeUp := price.GreaterThan(*hvl)
	leaderBrokeDown := price.LessThan(*hvl)
	confirmed := distanceTicks(ctx.Mirror.Price, *hvl, ctx.TickSize()).LessThanOrEqual(decimal.NewFromInt(leadLagConfirmTicks))
	laggerFailedToConfirm := (leaderBrokeUp && !ctx.Mirror.BrokeUp) || (leaderBrokeDown && !ctx.Mirror.BrokeDn)
	return (leaderBrokeUp || leaderBrokeDown) && laggerFailedToConfirm && !confirmed
}

func (s esNQLeadLagMirror) Generate(ctx Context) *types.PatternSignal {
	if !s.ShouldRun(ctx) {
		return nil
	}
	hvl := *ctx.Snapshot.MenthorQ.Gamma.HVL
	price := ctx.Snapshot.LastPrice
	tick := ctx.TickSize()
	side := types.SideShort
	stop := price.Add(tick.Mul(decimal.NewFromInt(6)))
	target := hvl
	if price.LessThan(hvl) {
		side = types.SideLong
		stop = price.Sub(tick.Mul(decimal.NewFromInt(6)))
	}
	return &types.PatternSignal{
		Strategy:   s.Name(),
		Family:     s.Family(),
		Side:       side,
		Confidence: 0.56,
		Entry:      price,
		Stop:       stop,
		Targets:    []decimal.Decimal{target},
		Reason:     "paired index failed to confirm the level break, fading the unconfirmed move",
		Timestamp:  ctx.Now,
	}
}
