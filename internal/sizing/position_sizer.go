// Package sizing computes the final order quantity from the VIX, hard-
// rule, session and regime multiplier chain. Adapted from the
// teacher's internal/sizing/position_sizer.go: the config-plus-logger
// shape and the multiplier-chain idiom survive; the Kelly-criterion/
// correlation-scaling machinery does not apply to a fixed-size futures
// contract count and is dropped.
package sizing

import (
	"github.com/atlas-desktop/mia-core/internal/regime"
	"github.com/atlas-desktop/mia-core/pkg/types"
	"go.uber.org/zap"
)

// Config holds the configurable multipliers.
type Config struct {
	BasePositionSize int
	MaxPositionSize  int

	VixLowMultiplier  float64
	VixMidMultiplier  float64
	VixHighMultiplier float64

	RegimeTrendMultiplier    float64
	RegimeRangeMultiplier    float64
	RegimeVolatileMultiplier float64
}

// DefaultConfig mirrors the documented defaults.
func DefaultConfig() Config {
	return Config{
		BasePositionSize:         1,
		MaxPositionSize:          3,
		VixLowMultiplier:         1.00,
		VixMidMultiplier:         0.75,
		VixHighMultiplier:        0.50,
		RegimeTrendMultiplier:    1.10,
		RegimeRangeMultiplier:    0.90,
		RegimeVolatileMultiplier: 0.70,
	}
}

// Sizer is a stateless calculator: position sizing depends only on the
// current regime/VIX/session inputs, never on trade history.
type Sizer struct {
	logger *zap.Logger
	cfg    Config
}

// New creates a Sizer.
func New(logger *zap.Logger, cfg Config) *Sizer {
	return &Sizer{logger: logger.Named("sizing"), cfg: cfg}
}

func (s *Sizer) vixMultiplier(r types.VixRegime) float64 {
	switch r {
	case types.VixLow:
		return s.cfg.VixLowMultiplier
	case types.VixMid:
		return s.cfg.VixMidMultiplier
	default:
		return s.cfg.VixHighMultiplier
	}
}

func (s *Sizer) regimeMultiplier(t regime.Type) float64 {
	switch t {
	case regime.Trend:
		return s.cfg.RegimeTrendMultiplier
	case regime.Range:
		return s.cfg.RegimeRangeMultiplier
	case regime.Volatile:
		return s.cfg.RegimeVolatileMultiplier
	default:
		return 1.0
	}
}

// Size computes the final quantity: base x VIX x session x regime,
// zeroed outright if hard rules triggered, floored to an integer
// ("round_down"), and capped at MaxPositionSize.
func (s *Sizer) Size(vix types.VixRegime, reg regime.Type, sessionMultiplier float64, hardRulesTriggered bool) int {
	if hardRulesTriggered {
		return 0
	}
	multiplier := s.vixMultiplier(vix) * sessionMultiplier * s.regimeMultiplier(reg)
	qty := int(float64(s.cfg.BasePositionSize) * multiplier) // truncation toward zero is round_down for positive inputs
	if qty > s.cfg.MaxPositionSize {
		qty = s.cfg.MaxPositionSize
	}
	if qty < 0 {
		qty = 0
	}
	return qty
}
