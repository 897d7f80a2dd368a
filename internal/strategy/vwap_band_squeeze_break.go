package strategy

import (
	"github.com/atlas-desktop/mia-core/pkg/types"
	"github.com/shopspring/decimal"
)

const bandSqueezeRatio = 0.5

// vwapBandSqueezeBreak: band width compresses to < 0.5x its 20-bar
// median, then price breaks a band.
type vwapBandSqueezeBreak struct{}

func NewVWAPBandSqueezeBreak() Strategy { return vwapBandSqueezeBreak{} }

func (vwapBandSqueezeBreak) Name() string                { return "vwap_band_squeeze_break" }
func (vwapBandSqueezeBreak) Family() types.PatternFamily { return types.FamilyBreakout }

func (s vwapBandSqueezeBreak) width(ctx Context) decimal.Decimal {
	return ctx.Snapshot.M1.VWAPUp1.Sub(ctx.Snapshot.M1.VWAPDn1)
}

func (s vwapBandSqueezeBreak) ShouldRun(ctx Context) bool {
	if ctx.BandWidthMedian20.IsZero() {
		return false
	}
	width := s.width(ctx)
	if width.IsZero() {
		return false
	}
	if width.GreaterThanOrEqual(ctx.BandWidthMedian20.Mul(decimal.NewFromFloat(bandSqueezeRatio))) {
		return false
	}
	price := ctx.Snapshot.LastPrice
	return price.GreaterThan(ctx.Snapshot.M1.VWAPUp1) || price.LessThan(ctx.Snapshot.M1.VWAPDn1)
}

func (s vwapBandSqueezeBreak) Generate(ctx Context) *types.PatternSignal {
	if !s.ShouldRun(ctx) {
		return nil
	}
	price := ctx.Snapshot.LastPrice
	tick := ctx.TickSize()
	side := types.SideLong
	stop := ctx.Snapshot.M1.VWAPDn1
	target := price.Add(tick.Mul(decimal.NewFromInt(8)))
	if price.LessThan(ctx.Snapshot.M1.VWAPDn1) {
		side = types.SideShort
		stop = ctx.Snapshot.M1.VWAPUp1
		target = price.Sub(tick.Mul(decimal.NewFromInt(8)))
	}
	return &types.PatternSignal{
		Strategy:   s.Name(),
		Family:     s.Family(),
		Side:       side,
		Confidence: 0.57,
		Entry:      price,
		Stop:       stop,
		Targets:    []decimal.Decimal{target},
		Reason:     "VWAP band squeeze resolved with a break",
		Timestamp:  ctx.Now,
	}
}
