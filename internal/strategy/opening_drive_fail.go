package strategy

import (
	"github.com/atlas-desktop/mia-core/pkg/types"
	"github.com/shopspring/decimal"
)

// openingDriveFail: in the first session window, a directional breakout
// that fails to hold is faded. Context.SessionOpen is set by the
// context builder from SessionManager's opening-window classification.
type openingDriveFail struct{}

func NewOpeningDriveFail() Strategy { return openingDriveFail{} }

func (openingDriveFail) Name() string                { return "opening_drive_fail" }
func (openingDriveFail) Family() types.PatternFamily { return types.FamilyReversal }

func (s openingDriveFail) ShouldRun(ctx Context) bool {
	if !ctx.SessionOpen {
		return false
	}
	bars := ctx.Snapshot.M1.BarsHistory
	if len(bars) < 3 {
		return false
	}
	drive := bars[len(bars)-3]
	last := bars[len(bars)-1]
	drovUp := drive.Close.GreaterThan(drive.Open)
	drovDown := drive.Close.LessThan(drive.Open)
	failedUp := drovUp && last.Close.LessThan(drive.Close)
	failedDown := drovDown && last.Close.GreaterThan(drive.Close)
	return failedUp || failedDown
}

func (s openingDriveFail) Generate(ctx Context) *types.PatternSignal {
	if !s.ShouldRun(ctx) {
		return nil
	}
	bars := ctx.Snapshot.M1.BarsHistory
	drive := bars[len(bars)-3]
	price := ctx.Snapshot.LastPrice
	tick := ctx.TickSize()
	side := types.SideShort
	stop := drive.High.Add(tick.Mul(decimal.NewFromInt(3)))
	target := price.Sub(tick.Mul(decimal.NewFromInt(8)))
	if drive.Close.LessThan(drive.Open) {
		side = types.SideLong
		stop = drive.Low.Sub(tick.Mul(decimal.NewFromInt(3)))
		target = price.Add(tick.Mul(decimal.NewFromInt(8)))
	}
	return &types.PatternSignal{
		Strategy:   s.Name(),
		Family:     s.Family(),
		Side:       side,
		Confidence: 0.55,
		Entry:      price,
		Stop:       stop,
		Targets:    []decimal.Decimal{target},
		Reason:     "opening drive failed to hold, fading back",
		Timestamp:  ctx.Now,
	}
}
