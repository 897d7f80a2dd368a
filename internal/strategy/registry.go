package strategy

import (
	"sync"

	"go.uber.org/zap"
)

// Registry holds the fixed, ordered set of strategies the selector
// iterates every tick. Adapted from the teacher's StrategyRegistry
// (internal/strategy/strategy.go): add/remove strategies by registry
// edits, never by branching in the selector.
type Registry struct {
	mu     sync.RWMutex
	order  []string
	byName map[string]Strategy
}

// NewRegistry builds the registry pre-populated with all 16 patterns,
// in a fixed evaluation order.
func NewRegistry(logger *zap.Logger) *Registry {
	r := &Registry{byName: make(map[string]Strategy)}
	for _, s := range []Strategy{
		NewZeroDTEWallSweepReversal(),
		NewGammaWallBreakAndGo(),
		NewHVLMagnetFade(),
		NewD1ExtremeTrap(),
		NewGEXClusterMeanRevert(),
		NewCallPutChannelRotation(),
		NewDealerFlipBreakout(),
		NewVWAPBandSqueezeBreak(),
		NewLiquiditySweepReversal(),
		NewGammaPinReversion(),
		NewProfileGapFill(),
		NewCVDDivergenceTrap(),
		NewStackedImbalanceContinuation(),
		NewIcebergTrackerFollow(),
		NewOpeningDriveFail(),
		NewESNQLeadLagMirror(),
	} {
		r.Register(s)
	}
	logger.Named("strategy").Info("registered pattern strategies", zap.Int("count", len(r.order)))
	return r
}

// Register adds a strategy to the end of the evaluation order. Calling
// it twice with the same name replaces the entry in place, keeping the
// original position.
func (r *Registry) Register(s Strategy) {
	r.mu.Lock()
	defer r.mu.Unlock()
	name := s.Name()
	if _, exists := r.byName[name]; !exists {
		r.order = append(r.order, name)
	}
	r.byName[name] = s
}

// All returns the strategies in fixed evaluation order.
func (r *Registry) All() []Strategy {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Strategy, 0, len(r.order))
	for _, name := range r.order {
		out = append(out, r.byName[name])
	}
	return out
}
