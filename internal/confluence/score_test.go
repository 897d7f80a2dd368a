// Package confluence_test provides tests for MenthorQ confluence scoring.
package confluence_test

import (
	"testing"

	"github.com/atlas-desktop/mia-core/internal/confluence"
	"github.com/atlas-desktop/mia-core/pkg/types"
	"github.com/shopspring/decimal"
)

func TestBandWidthTicksScalesWithVix(t *testing.T) {
	low := confluence.BandWidthTicks(types.VixLow)
	mid := confluence.BandWidthTicks(types.VixMid)
	high := confluence.BandWidthTicks(types.VixHigh)

	if !low.Equal(decimal.NewFromInt(6)) {
		t.Errorf("expected LOW band width 6, got %s", low)
	}
	if !mid.Equal(decimal.NewFromInt(10)) {
		t.Errorf("expected MID band width 10, got %s", mid)
	}
	if !high.Equal(decimal.NewFromInt(14)) {
		t.Errorf("expected HIGH band width 14, got %s", high)
	}
}

func TestScoreAgreeingLevelIsPositive(t *testing.T) {
	hvl := decimal.NewFromInt(5000)
	mq := types.MenthorQState{Gamma: types.GammaLevels{HVL: &hvl}}

	score := confluence.Score(decimal.NewFromInt(5000), decimal.NewFromFloat(0.25), mq, types.VixLow)
	if score <= 0 {
		t.Errorf("expected a positive score for price sitting exactly on HVL, got %f", score)
	}
}

func TestScoreBlindSpotIsNegative(t *testing.T) {
	mq := types.MenthorQState{
		BlindSpots: []types.BlindSpotLevel{{Price: decimal.NewFromInt(5000)}},
	}

	score := confluence.Score(decimal.NewFromInt(5000), decimal.NewFromFloat(0.25), mq, types.VixLow)
	if score >= 0 {
		t.Errorf("expected a negative score for price sitting on a blind spot, got %f", score)
	}
}

func TestScoreFarLevelContributesNothing(t *testing.T) {
	hvl := decimal.NewFromInt(5000)
	mq := types.MenthorQState{Gamma: types.GammaLevels{HVL: &hvl}}

	// 1000 ticks away at 0.25 tick size is far outside any VIX band.
	score := confluence.Score(decimal.NewFromInt(5250), decimal.NewFromFloat(0.25), mq, types.VixLow)
	if score != 0 {
		t.Errorf("expected zero score for a level far outside the band, got %f", score)
	}
}

func TestScoreZeroTickSize(t *testing.T) {
	hvl := decimal.NewFromInt(5000)
	mq := types.MenthorQState{Gamma: types.GammaLevels{HVL: &hvl}}
	score := confluence.Score(decimal.NewFromInt(5000), decimal.Zero, mq, types.VixLow)
	if score != 0 {
		t.Errorf("expected zero score when tick size is unset, got %f", score)
	}
}

func TestScoreClampedToUnitRange(t *testing.T) {
	gex := make([]decimal.Decimal, 10)
	for i := range gex {
		gex[i] = decimal.NewFromInt(5000)
	}
	callRes := decimal.NewFromInt(5000)
	putSup := decimal.NewFromInt(5000)
	hvl := decimal.NewFromInt(5000)
	wall := decimal.NewFromInt(5000)
	mq := types.MenthorQState{
		Gamma: types.GammaLevels{
			CallResistance: &callRes,
			PutSupport:     &putSup,
			HVL:            &hvl,
			GammaWall0DTE:  &wall,
			GEXLevels:      gex,
		},
	}

	score := confluence.Score(decimal.NewFromInt(5000), decimal.NewFromFloat(0.25), mq, types.VixLow)
	if score > 1 || score < -1 {
		t.Errorf("expected score clamped to [-1, 1], got %f", score)
	}
}

func TestNearestBlindSpotTicks(t *testing.T) {
	mq := types.MenthorQState{
		BlindSpots: []types.BlindSpotLevel{
			{Price: decimal.NewFromInt(5010)},
			{Price: decimal.NewFromInt(5002)},
		},
	}

	dist, ok := confluence.NearestBlindSpotTicks(decimal.NewFromInt(5000), decimal.NewFromFloat(0.25), mq)
	if !ok {
		t.Fatal("expected a nearest blind spot to be found")
	}
	// nearest is 5002, 2 points away = 8 ticks at 0.25
	if !dist.Equal(decimal.NewFromInt(8)) {
		t.Errorf("expected distance 8 ticks, got %s", dist)
	}
}

func TestNearestBlindSpotTicksNoneRecorded(t *testing.T) {
	_, ok := confluence.NearestBlindSpotTicks(decimal.NewFromInt(5000), decimal.NewFromFloat(0.25), types.MenthorQState{})
	if ok {
		t.Error("expected no result when no blind spots are recorded")
	}
}
