// Package risk implements the six ordered, short-circuiting gates that
// stand between a Decision and order dispatch. Adapted from the
// teacher's internal/execution/risk_manager.go: the mutex-protected
// daily counters and violation-reporting idiom survive; the correlation-
// group and kill-switch machinery, which has no counterpart in this
// single-account futures core, is dropped.
package risk

import (
	"sync"
	"time"

	"github.com/atlas-desktop/mia-core/internal/session"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// Config mirrors the risk.* configuration keys.
type Config struct {
	DailyLossLimit         decimal.Decimal
	MaxDailyTrades         int
	MaxPositionsConcurrent int
	MaxRiskPerTradeCcy     decimal.Decimal
	NoTradeBefore          string
	NoTradeAfter           string
	MinConfluenceExecution float64
}

// Result is the outcome of one RiskGate evaluation.
type Result struct {
	Allow          bool
	SizeMultiplier float64
	Reasons        []string
}

// Gate evaluates the six ordered gates. Day-scoped counters reset on
// UTC date rollover, matching the StrategySelector's own reset rule.
type Gate struct {
	logger *zap.Logger
	cfg    Config

	mu               sync.Mutex
	day              string
	dailyRealisedPnL decimal.Decimal
	dailyTrades      int
	openPositions    int
}

// New creates a Gate.
func New(logger *zap.Logger, cfg Config) *Gate {
	return &Gate{logger: logger.Named("risk"), cfg: cfg}
}

func (g *Gate) resetIfNewDay(now time.Time) {
	day := now.UTC().Format("2006-01-02")
	if g.day != day {
		g.day = day
		g.dailyRealisedPnL = decimal.Zero
		g.dailyTrades = 0
	}
}

// RecordTrade updates the day's realised P&L and trade count after an
// order is sent; called by the dispatch task, not by Evaluate itself.
func (g *Gate) RecordTrade(now time.Time, realisedPnL decimal.Decimal) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.resetIfNewDay(now)
	g.dailyRealisedPnL = g.dailyRealisedPnL.Add(realisedPnL)
	g.dailyTrades++
}

// SetOpenPositions lets the caller report current concurrent exposure
// for gate 6; the gate itself does not track fills.
func (g *Gate) SetOpenPositions(n int) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.openPositions = n
}

// Evaluate runs the six ordered, short-circuiting gates.
func (g *Gate) Evaluate(now time.Time, riskCcy decimal.Decimal, confluence float64) Result {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.resetIfNewDay(now)

	if g.dailyRealisedPnL.LessThanOrEqual(g.cfg.DailyLossLimit.Neg()) {
		return Result{Allow: false, Reasons: []string{"daily_loss_limit_reached"}}
	}
	if g.dailyTrades >= g.cfg.MaxDailyTrades {
		return Result{Allow: false, Reasons: []string{"max_daily_trades_reached"}}
	}
	if !session.InTradingWindow(now, g.cfg.NoTradeBefore, g.cfg.NoTradeAfter) {
		return Result{Allow: false, Reasons: []string{"outside_session_window"}}
	}
	if !g.cfg.MaxRiskPerTradeCcy.IsZero() && riskCcy.GreaterThan(g.cfg.MaxRiskPerTradeCcy) {
		return Result{Allow: false, Reasons: []string{"risk_per_trade_exceeded"}}
	}
	if confluence < g.cfg.MinConfluenceExecution {
		return Result{Allow: false, Reasons: []string{"confluence_below_minimum"}}
	}
	if g.openPositions >= g.cfg.MaxPositionsConcurrent {
		return Result{Allow: false, Reasons: []string{"max_concurrent_positions_reached"}}
	}

	return Result{Allow: true, SizeMultiplier: 1.0}
}
