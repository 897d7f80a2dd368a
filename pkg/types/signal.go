package types

import (
	"time"

	"github.com/shopspring/decimal"
)

// PatternFamily is the coarse class of a pattern used for deduplication.
type PatternFamily string

const (
	FamilyBreakout PatternFamily = "BREAKOUT"
	FamilyReversal PatternFamily = "REVERSAL"
	FamilyMeanRevert PatternFamily = "MEAN_REVERT"
	FamilyContinuation PatternFamily = "CONTINUATION"
	FamilyTrap PatternFamily = "TRAP"
	FamilyFollow PatternFamily = "FOLLOW"
	FamilyRangeRotation PatternFamily = "RANGE_ROTATION"
	FamilyCorrelation PatternFamily = "CORRELATION"
	FamilyOther PatternFamily = "OTHER"
)

// Side is the direction of a pattern signal or decision.
type Side string

const (
	SideLong Side = "LONG"
	SideShort Side = "SHORT"
)

// PatternSignal is a candidate signal emitted by one PatternStrategy,.
type PatternSignal struct {
	Strategy string
	Family PatternFamily
	Side Side
	Confidence float64
	Entry decimal.Decimal
	Stop decimal.Decimal
	Targets []decimal.Decimal
	Reason string
	Metadata map[string]any
	Timestamp time.Time
}

// DecisionName is the final action of a StrategySelector tick.
type DecisionName string

const (
	DecisionGoLong DecisionName = "GO_LONG"
	DecisionGoShort DecisionName = "GO_SHORT"
	DecisionNoTrade DecisionName = "NO_TRADE"
	DecisionNeutral DecisionName = "NEUTRAL"
)

// Decision is the output of StrategySelector.Analyze,.
type Decision struct {
	Name DecisionName
	Score float64
	StrengthBN float64
	StrengthMQ float64
	HardRulesTriggered bool
	NearBlindSpot bool
	DistanceBLTicks *float64
	PositionSizing float64
	Rationale []string
	Signal *PatternSignal
	Symbol string
	Timestamp time.Time
}
