// Package confluence scores how strongly nearby MenthorQ levels agree
// with a candidate direction, producing strength_mq for the selector's
// final weighted score.
package confluence

import (
	"math"

	"github.com/atlas-desktop/mia-core/pkg/types"
	"github.com/shopspring/decimal"
)

const blindSpotWeight = 0.80

// levelWeight resolves the per-label weight table.
func levelWeight(kind string) float64 {
	switch kind {
	case "call_resistance", "put_support":
		return 0.95
	case "hvl":
		return 0.90
	case "d1min", "d1max":
		return 0.85
	case "gamma_wall_0dte":
		return 0.90
	case "gex":
		return 0.85
	default:
		return 0.75
	}
}

// BandWidthTicks scales the confluence search radius with VIX regime:
// LOW->6, MID->10, HIGH->14.
func BandWidthTicks(regime types.VixRegime) decimal.Decimal {
	switch regime {
	case types.VixLow:
		return decimal.NewFromInt(6)
	case types.VixMid:
		return decimal.NewFromInt(10)
	default:
		return decimal.NewFromInt(14)
	}
}

// level is one named, priced MenthorQ level candidate for scoring.
type level struct {
	kind    string
	price   decimal.Decimal
	isBlind bool
}

// collectLevels flattens a Snapshot's MenthorQ sub-buckets into scorable
// (label, price) pairs.
func collectLevels(mq types.MenthorQState) []level {
	var out []level
	add := func(kind string, p *decimal.Decimal) {
		if p != nil {
			out = append(out, level{kind: kind, price: *p})
		}
	}
	add("call_resistance", mq.Gamma.CallResistance)
	add("put_support", mq.Gamma.PutSupport)
	add("hvl", mq.Gamma.HVL)
	add("gamma_wall_0dte", mq.Gamma.GammaWall0DTE)
	for _, g := range mq.Gamma.GEXLevels {
		if !g.IsZero() {
			out = append(out, level{kind: "gex", price: g})
		}
	}
	for _, s := range mq.Swing.Levels {
		if !s.IsZero() {
			out = append(out, level{kind: "swing", price: s})
		}
	}
	for _, bs := range mq.BlindSpots {
		out = append(out, level{kind: "blind_spot", price: bs.Price, isBlind: true})
	}
	return out
}

// Score computes strength_mq in [-1, +1]: agreeing gamma/swing levels
// contribute positively, blind spots negatively, both decayed by a
// Gaussian of normalised distance, summed and clamped.
func Score(price decimal.Decimal, tickSize decimal.Decimal, mq types.MenthorQState, regime types.VixRegime) float64 {
	if tickSize.IsZero() {
		return 0
	}
	band := BandWidthTicks(regime)
	bandF, _ := band.Float64()
	sum := 0.0
	for _, lv := range collectLevels(mq) {
		distTicks := price.Sub(lv.price).Abs().Div(tickSize)
		d, _ := distTicks.Float64()
		if d > bandF {
			continue
		}
		decay := math.Exp(-(d / bandF) * (d / bandF))
		if lv.isBlind {
			sum -= blindSpotWeight * decay
		} else {
			sum += levelWeight(lv.kind) * decay
		}
	}
	return clamp(sum, -1, 1)
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// NearestBlindSpotTicks returns the distance in ticks to the closest
// blind-spot level, used by the selector's MenthorQ hard-rule step.
func NearestBlindSpotTicks(price, tickSize decimal.Decimal, mq types.MenthorQState) (decimal.Decimal, bool) {
	if tickSize.IsZero() || len(mq.BlindSpots) == 0 {
		return decimal.Zero, false
	}
	best := price.Sub(mq.BlindSpots[0].Price).Abs().Div(tickSize)
	for _, bs := range mq.BlindSpots[1:] {
		d := price.Sub(bs.Price).Abs().Div(tickSize)
		if d.LessThan(best) {
			best = d
		}
	}
	return best, true
}
