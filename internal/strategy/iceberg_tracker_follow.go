package strategy

import (
	"github.com/atlas-desktop/mia-core/pkg/types"
	"github.com/shopspring/decimal"
)

// icebergTrackerFollow: iceberg=true + absorption on the same side ->
// follow the aggressor.
type icebergTrackerFollow struct{}

func NewIcebergTrackerFollow() Strategy { return icebergTrackerFollow{} }

func (icebergTrackerFollow) Name() string                { return "iceberg_tracker_follow" }
func (icebergTrackerFollow) Family() types.PatternFamily { return types.FamilyFollow }

func (s icebergTrackerFollow) ShouldRun(ctx Context) bool {
	if !ctx.Metrics.Iceberg {
		return false
	}
	return ctx.Metrics.Absorption.Bid || ctx.Metrics.Absorption.Ask
}

func (s icebergTrackerFollow) Generate(ctx Context) *types.PatternSignal {
	if !s.ShouldRun(ctx) {
		return nil
	}
	price := ctx.Snapshot.LastPrice
	tick := ctx.TickSize()
	// Absorption on the bid means a hidden buyer is refreshing; follow long.
	side := types.SideLong
	stop := price.Sub(tick.Mul(decimal.NewFromInt(5)))
	target := price.Add(tick.Mul(decimal.NewFromInt(8)))
	if ctx.Metrics.Absorption.Ask && !ctx.Metrics.Absorption.Bid {
		side = types.SideShort
		stop = price.Add(tick.Mul(decimal.NewFromInt(5)))
		target = price.Sub(tick.Mul(decimal.NewFromInt(8)))
	}
	return &types.PatternSignal{
		Strategy:   s.Name(),
		Family:     s.Family(),
		Side:       side,
		Confidence: 0.58,
		Entry:      price,
		Stop:       stop,
		Targets:    []decimal.Decimal{target},
		Reason:     "iceberg refreshing alongside same-side absorption, following the aggressor",
		Timestamp:  ctx.Now,
	}
}
