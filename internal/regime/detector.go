// Package regime classifies the current trend/range/volatility tier from
// a symbol's snapshot and microstructure metrics, feeding the
// StrategySelector pipeline's regime-detection step. Adapted from the
// teacher's HMM-based internal/regime/detector.go, trimmed to the
// lightweight windowed-slope classifier this system actually needs; the
// teacher's multi-state HMM machinery (transition matrix, emission
// distributions) belongs to its own backtesting suite and isn't
// exercised here.
package regime

import (
	"sync"
	"time"

	"github.com/atlas-desktop/mia-core/pkg/types"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// Type is the coarse market regime classification.
type Type string

const (
	Trend    Type = "trend"
	Range    Type = "range"
	Volatile Type = "volatile"
	Unknown  Type = "unknown"
)

// State is the regime snapshot returned by Detect.
type State struct {
	Primary    Type
	Confidence float64
	Vix        types.VixRegime
	DetectedAt time.Time
}

// Config tunes the classifier's thresholds.
type Config struct {
	TrendWindow    int             // number of m1 bars to assess slope over
	TrendThreshold decimal.Decimal // minimum directional move (ticks) to call a trend
	RangeBandTicks decimal.Decimal // max high-low span (ticks) over the window to call a range
}

// DefaultConfig mirrors the teacher's DefaultRegimeConfig shape, values
// tuned for ES/NQ tick sizes rather than equities.
func DefaultConfig() Config {
	return Config{
		TrendWindow:    20,
		TrendThreshold: decimal.NewFromInt(16),
		RangeBandTicks: decimal.NewFromInt(12),
	}
}

// Detector classifies regime per-symbol; it holds no cross-tick buffers
// of its own beyond the last state, since the Snapshot already carries
// the bounded m1/m30 history windows it reads.
type Detector struct {
	logger *zap.Logger
	cfg    Config

	mu   sync.RWMutex
	last map[string]State
}

// New creates a Detector.
func New(logger *zap.Logger, cfg Config) *Detector {
	return &Detector{logger: logger.Named("regime"), cfg: cfg, last: make(map[string]State)}
}

// Detect classifies the regime from the symbol's m1 bar history and VIX
// state: a strong, sustained directional move is a trend; a tight range
// with no net direction is a range; otherwise, if VIX is HIGH, volatile;
// otherwise unknown (insufficient data).
func (d *Detector) Detect(snap types.Snapshot) State {
	bars := snap.M1.BarsHistory
	state := State{Primary: Unknown, Confidence: 0.4, Vix: snap.Vix.Regime, DetectedAt: time.Now()}

	n := d.cfg.TrendWindow
	if len(bars) < n {
		n = len(bars)
	}
	if n >= 2 && !snap.TickSize.IsZero() {
		window := bars[len(bars)-n:]
		first := window[0]
		last := window[len(window)-1]
		move := last.Close.Sub(first.Open).Abs().Div(snap.TickSize)

		hi, lo := window[0].High, window[0].Low
		for _, b := range window[1:] {
			hi = decimal.Max(hi, b.High)
			lo = decimal.Min(lo, b.Low)
		}
		span := hi.Sub(lo).Div(snap.TickSize)

		switch {
		case move.GreaterThanOrEqual(d.cfg.TrendThreshold):
			state.Primary = Trend
			state.Confidence = 0.75
		case span.LessThanOrEqual(d.cfg.RangeBandTicks):
			state.Primary = Range
			state.Confidence = 0.70
		case snap.Vix.Regime == types.VixHigh:
			state.Primary = Volatile
			state.Confidence = 0.65
		}
	} else if snap.Vix.Regime == types.VixHigh {
		state.Primary = Volatile
		state.Confidence = 0.5
	}

	d.mu.Lock()
	d.last[snap.Symbol] = state
	d.mu.Unlock()
	return state
}

// Last returns the most recent classification for a symbol, if any.
func (d *Detector) Last(symbol string) (State, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	s, ok := d.last[symbol]
	return s, ok
}
