package strategy

import (
	"github.com/atlas-desktop/mia-core/pkg/types"
	"github.com/shopspring/decimal"
)

const gammaPinMaxTicks = 4
const gammaPinMinSeconds = 20

// gammaPinReversion: price oscillates within 4 ticks of a strong gamma
// level for >=N seconds -> fade extremes.
type gammaPinReversion struct{}

func NewGammaPinReversion() Strategy { return gammaPinReversion{} }

func (gammaPinReversion) Name() string                { return "gamma_pin_reversion" }
func (gammaPinReversion) Family() types.PatternFamily { return types.FamilyReversal }

func (s gammaPinReversion) pin(ctx Context) (decimal.Decimal, bool) {
	if ctx.Snapshot.MenthorQ.Gamma.HVL != nil {
		return *ctx.Snapshot.MenthorQ.Gamma.HVL, true
	}
	if ctx.Snapshot.MenthorQ.Gamma.GammaWall0DTE != nil {
		return *ctx.Snapshot.MenthorQ.Gamma.GammaWall0DTE, true
	}
	return decimal.Zero, false
}

func (s gammaPinReversion) ShouldRun(ctx Context) bool {
	pin, ok := s.pin(ctx)
	if !ok {
		return false
	}
	if ctx.GammaPinSeconds.LessThan(decimal.NewFromInt(gammaPinMinSeconds)) {
		return false
	}
	return distanceTicks(ctx.Snapshot.LastPrice, pin, ctx.TickSize()).LessThanOrEqual(decimal.NewFromInt(gammaPinMaxTicks))
}

func (s gammaPinReversion) Generate(ctx Context) *types.PatternSignal {
	if !s.ShouldRun(ctx) {
		return nil
	}
	pin, _ := s.pin(ctx)
	price := ctx.Snapshot.LastPrice
	tick := ctx.TickSize()
	side := types.SideShort
	if price.LessThan(pin) {
		side = types.SideLong
	}
	stop := price.Add(tick.Mul(decimal.NewFromInt(gammaPinMaxTicks + 2)))
	if side == types.SideLong {
		stop = price.Sub(tick.Mul(decimal.NewFromInt(gammaPinMaxTicks + 2)))
	}
	return &types.PatternSignal{
		Strategy:   s.Name(),
		Family:     s.Family(),
		Side:       side,
		Confidence: 0.56,
		Entry:      price,
		Stop:       stop,
		Targets:    []decimal.Decimal{pin},
		Reason:     "price pinned near a strong gamma level, fading the extreme",
		Timestamp:  ctx.Now,
	}
}
