// Package selector implements the 13-step StrategySelector pipeline:
// run every pattern strategy, family-deduplicate, filter on confidence
// and confluence, apply MenthorQ hard rules, score, decide, cool down,
// and size. Adapted from the teacher's internal/signals/aggregator.go:
// the mutex-protected per-symbol state and weighted consensus-scoring
// idiom survive, generalised from "combine external signal sources" to
// "combine this core's own pattern strategies".
package selector

import (
	"sort"
	"time"

	"github.com/atlas-desktop/mia-core/internal/confluence"
	"github.com/atlas-desktop/mia-core/internal/regime"
	"github.com/atlas-desktop/mia-core/internal/risk"
	"github.com/atlas-desktop/mia-core/internal/session"
	"github.com/atlas-desktop/mia-core/internal/sizing"
	"github.com/atlas-desktop/mia-core/internal/strategy"
	"github.com/atlas-desktop/mia-core/pkg/types"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

const blindSpotHardRuleTicks = 5

// Config holds the selector's own tunables.
type Config struct {
	MaxSignalsPerDay       int
	PatternFireCooldown    time.Duration
	MinPatternConfidence   float64
	MinConfluenceExecution float64
	BattleNavaleWeight     float64
	MenthorQWeight         float64
	DealerBiasThreshold    float64
	DecisionThreshold      float64
}

// DefaultConfig mirrors the documented defaults.
func DefaultConfig() Config {
	return Config{
		MaxSignalsPerDay:       12,
		PatternFireCooldown:    60 * time.Second,
		MinPatternConfidence:   0.65,
		MinConfluenceExecution: 0.70,
		BattleNavaleWeight:     0.6,
		MenthorQWeight:         0.4,
		DealerBiasThreshold:    0.2,
		DecisionThreshold:      0.15,
	}
}

// Selector runs Analyze once per symbol per tick.
type Selector struct {
	logger   *zap.Logger
	cfg      Config
	registry *strategy.Registry
	regimes  *regime.Detector
	sizer    *sizing.Sizer
	sessions *session.Manager
	riskGate *risk.Gate

	perSymbol map[string]*symbolState
}

type symbolState struct {
	day            string
	signalsToday   int
	lastFireByName map[string]time.Time
}

// New wires the selector to its collaborators; all are constructed once
// at startup and shared across ticks.
func New(logger *zap.Logger, cfg Config, reg *strategy.Registry, regimes *regime.Detector, sizer *sizing.Sizer, sessions *session.Manager, riskGate *risk.Gate) *Selector {
	return &Selector{
		logger:    logger.Named("selector"),
		cfg:       cfg,
		registry:  reg,
		regimes:   regimes,
		sizer:     sizer,
		sessions:  sessions,
		riskGate:  riskGate,
		perSymbol: make(map[string]*symbolState),
	}
}

func (s *Selector) stateFor(symbol string, now time.Time) *symbolState {
	st, ok := s.perSymbol[symbol]
	if !ok {
		st = &symbolState{lastFireByName: make(map[string]time.Time)}
		s.perSymbol[symbol] = st
	}
	day := now.UTC().Format("2006-01-02")
	if st.day != day {
		st.day = day
		st.signalsToday = 0
	}
	return st
}

// Analyze runs the full pipeline and returns the final Decision.
func (s *Selector) Analyze(ctx strategy.Context) types.Decision {
	now := ctx.Now
	st := s.stateFor(ctx.Symbol, now)

	decision := types.Decision{Symbol: ctx.Symbol, Timestamp: now, Name: types.DecisionNeutral}

	// Step 2: daily cap.
	if st.signalsToday >= s.cfg.MaxSignalsPerDay {
		decision.Name = types.DecisionNoTrade
		decision.Rationale = append(decision.Rationale, "daily_limit_reached")
		return decision
	}

	// Step 3: regime detection.
	reg := s.regimes.Detect(ctx.Snapshot)

	// Step 4: run every applicable strategy.
	type candidate struct {
		signal *types.PatternSignal
	}
	var candidates []candidate
	for _, strat := range s.registry.All() {
		if !strat.ShouldRun(ctx) {
			continue
		}
		sig := strat.Generate(ctx)
		if sig == nil {
			continue
		}
		candidates = append(candidates, candidate{signal: sig})
	}

	// Step 5: family-deduplicate, keeping the highest-scoring signal per
	// family; ties broken by confidence then lexicographic strategy name
	// for a deterministic ordering.
	bestByFamily := make(map[types.PatternFamily]*types.PatternSignal)
	for _, c := range candidates {
		existing, ok := bestByFamily[c.signal.Family]
		if !ok {
			bestByFamily[c.signal.Family] = c.signal
			continue
		}
		if c.signal.Confidence > existing.Confidence ||
			(c.signal.Confidence == existing.Confidence && c.signal.Strategy < existing.Strategy) {
			bestByFamily[c.signal.Family] = c.signal
		}
	}
	var deduped []*types.PatternSignal
	for _, sig := range bestByFamily {
		deduped = append(deduped, sig)
	}
	sort.Slice(deduped, func(i, j int) bool {
		if deduped[i].Confidence != deduped[j].Confidence {
			return deduped[i].Confidence > deduped[j].Confidence
		}
		return deduped[i].Strategy < deduped[j].Strategy
	})

	// Step 6: minimum-confidence filter.
	filtered := deduped[:0:0]
	for _, sig := range deduped {
		if sig.Confidence >= s.cfg.MinPatternConfidence {
			filtered = append(filtered, sig)
		}
	}

	// Step 7: minimum-confluence filter.
	regimeForConfluence := ctx.Snapshot.Vix.Regime
	type scored struct {
		signal     *types.PatternSignal
		strengthMQ float64
	}
	var passedConfluence []scored
	for _, sig := range filtered {
		mq := confluence.Score(sig.Entry, ctx.TickSize(), ctx.Snapshot.MenthorQ, regimeForConfluence)
		if absFloat(mq) < s.cfg.MinConfluenceExecution && absFloat(mq) > 0 {
			// Partial agreement below threshold is dropped as
			// non-executable; a zero score (no level in range) passes.
			continue
		}
		passedConfluence = append(passedConfluence, scored{signal: sig, strengthMQ: mq})
	}

	// Step 8: MenthorQ hard rules.
	nearBlindSpot := false
	var blindSpotDistance *float64
	if dist, ok := confluence.NearestBlindSpotTicks(ctx.Snapshot.LastPrice, ctx.TickSize(), ctx.Snapshot.MenthorQ); ok {
		d, _ := dist.Float64()
		blindSpotDistance = &d
		if dist.LessThan(decimal.NewFromInt(blindSpotHardRuleTicks)) {
			nearBlindSpot = true
		}
	}
	if nearBlindSpot {
		decision.Name = types.DecisionNoTrade
		decision.PositionSizing = 0
		decision.HardRulesTriggered = true
		decision.NearBlindSpot = true
		decision.DistanceBLTicks = blindSpotDistance
		decision.Rationale = append(decision.Rationale, "BL proche (<5 ticks)")
		return decision
	}

	// Step 9: select the top remaining signal.
	if len(passedConfluence) == 0 {
		decision.Name = types.DecisionNeutral
		return decision
	}
	top := passedConfluence[0]
	for _, c := range passedConfluence[1:] {
		if c.signal.Confidence > top.signal.Confidence {
			top = c
		}
	}

	// Step 10: weighted final score.
	score := s.cfg.BattleNavaleWeight*top.signal.Confidence + s.cfg.MenthorQWeight*top.strengthMQ
	decision.StrengthBN = top.signal.Confidence
	decision.StrengthMQ = top.strengthMQ
	decision.Score = score
	decision.Signal = top.signal

	// Step 11: threshold decision, with dealer-bias promotion.
	switch {
	case score >= s.cfg.DecisionThreshold:
		decision.Name = types.DecisionGoLong
	case score <= -s.cfg.DecisionThreshold:
		decision.Name = types.DecisionGoShort
	default:
		decision.Name = types.DecisionNeutral
		if dealerBias, ok := dealerBiasFrom(top.signal); ok && absFloat(dealerBias) > s.cfg.DealerBiasThreshold {
			if dealerBias > 0 {
				decision.Name = types.DecisionGoLong
			} else {
				decision.Name = types.DecisionGoShort
			}
			decision.Rationale = append(decision.Rationale, "dealer_bias_promotion")
		}
	}
	if decision.Name != types.DecisionGoLong && decision.Name != types.DecisionGoShort {
		return decision
	}

	// Step 12: per-strategy fire-cooldown.
	if last, ok := st.lastFireByName[top.signal.Strategy]; ok && now.Sub(last) < s.cfg.PatternFireCooldown {
		decision.Name = types.DecisionNoTrade
		decision.Rationale = append(decision.Rationale, "cooldown_active")
		return decision
	}

	// RiskGate: the six ordered gates run just before sizing, since a
	// risk denial should still count as a decision that was considered,
	// not a silent drop.
	riskCcy := top.signal.Entry.Sub(top.signal.Stop).Abs()
	riskResult := s.riskGate.Evaluate(now, riskCcy, absFloat(top.strengthMQ))
	if !riskResult.Allow {
		decision.Name = types.DecisionNoTrade
		decision.PositionSizing = 0
		decision.Rationale = append(decision.Rationale, riskResult.Reasons...)
		return decision
	}

	// Step 13: position sizing.
	_, sessionMult := s.sessions.Classify(now)
	qty := s.sizer.Size(ctx.Snapshot.Vix.Regime, reg.Primary, sessionMult*riskResult.SizeMultiplier, decision.HardRulesTriggered)
	decision.PositionSizing = float64(qty)

	st.lastFireByName[top.signal.Strategy] = now
	st.signalsToday++

	return decision
}

func absFloat(f float64) float64 {
	if f < 0 {
		return -f
	}
	return f
}

// dealerBiasFrom reads an optional "dealer_bias" metadata float set by a
// strategy (none currently populate it; this keeps step 11's promotion
// rule wired for any strategy that chooses to).
func dealerBiasFrom(sig *types.PatternSignal) (float64, bool) {
	if sig.Metadata == nil {
		return 0, false
	}
	v, ok := sig.Metadata["dealer_bias"]
	if !ok {
		return 0, false
	}
	f, ok := v.(float64)
	return f, ok
}
