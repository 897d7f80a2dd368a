// Package main wires the trading core's composition root: load config,
// build every collaborator (snapshot store, microstructure metrics,
// pattern registry, selector, risk gate, order router, trade journal,
// inspection HTTP server), tail the unified event file, and dispatch
// ticks until a shutdown signal arrives.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/atlas-desktop/mia-core/internal/config"
	"github.com/atlas-desktop/mia-core/internal/contextbuild"
	"github.com/atlas-desktop/mia-core/internal/dispatch"
	"github.com/atlas-desktop/mia-core/internal/httpapi"
	"github.com/atlas-desktop/mia-core/internal/journal"
	"github.com/atlas-desktop/mia-core/internal/regime"
	"github.com/atlas-desktop/mia-core/internal/risk"
	"github.com/atlas-desktop/mia-core/internal/router"
	"github.com/atlas-desktop/mia-core/internal/selector"
	"github.com/atlas-desktop/mia-core/internal/session"
	"github.com/atlas-desktop/mia-core/internal/sizing"
	"github.com/atlas-desktop/mia-core/internal/snapshot"
	"github.com/atlas-desktop/mia-core/internal/strategy"
	"github.com/atlas-desktop/mia-core/internal/tailer"
	"github.com/atlas-desktop/mia-core/pkg/types"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

func main() {
	configPath := flag.String("config", "", "Path to a config file (yaml/toml/json), optional")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		// Logger isn't built yet; a config error is fatal before any
		// component exists, so this is the one place we print directly.
		fmt.Fprintln(os.Stderr, "config error:", err)
		os.Exit(1)
	}

	logger := setupLogger(cfg.LogLevel)
	defer logger.Sync()

	logger.Info("starting mia-core",
		zap.Strings("symbols", cfg.Symbols),
		zap.String("data_dir", cfg.DataDir),
		zap.String("http_addr", cfg.HTTPAddr),
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	store := snapshot.New(logger, nil)
	sessions := session.NewDefault()

	riskGate := risk.New(logger, risk.Config{
		DailyLossLimit:         cfg.Risk.DailyLossLimit,
		MaxDailyTrades:         cfg.Risk.MaxDailyTrades,
		MaxPositionsConcurrent: cfg.Risk.MaxPositionsConcurrent,
		MaxRiskPerTradeCcy:     cfg.Risk.MaxRiskPerTradeCcy,
		NoTradeBefore:          cfg.Risk.NoTradeBefore,
		NoTradeAfter:           cfg.Risk.NoTradeAfter,
		MinConfluenceExecution: cfg.MinConfluenceExecution,
	})

	regimes := regime.New(logger, regime.DefaultConfig())

	sizerCfg := sizing.DefaultConfig()
	sizerCfg.BasePositionSize = cfg.Risk.BasePositionSize
	sizerCfg.MaxPositionSize = cfg.Risk.MaxPositionSize
	sizer := sizing.New(logger, sizerCfg)

	registry := strategy.NewRegistry(logger)

	sel := selector.New(logger, selector.Config{
		MaxSignalsPerDay:       cfg.MaxSignalsPerDay,
		PatternFireCooldown:    cfg.PatternFireCooldown,
		MinPatternConfidence:   cfg.MinPatternConfidence,
		MinConfluenceExecution: cfg.MinConfluenceExecution,
		BattleNavaleWeight:     cfg.BattleNavaleWeight,
		MenthorQWeight:         cfg.MenthorQWeight,
		DealerBiasThreshold:    selector.DefaultConfig().DealerBiasThreshold,
		DecisionThreshold:      selector.DefaultConfig().DecisionThreshold,
	}, registry, regimes, sizer, sessions, riskGate)

	rt := router.New(logger, router.Config{
		Host:               cfg.Router.Host,
		ESPort:             cfg.Router.ESPort,
		NQPort:             cfg.Router.NQPort,
		TimeoutMs:          cfg.Router.TimeoutMs,
		HeartbeatIntervalS: cfg.Router.HeartbeatIntervalS,
	})

	jr, err := journal.New(logger, cfg.DataDir)
	if err != nil {
		logger.Fatal("failed to open trade journal", zap.Error(err))
	}
	defer jr.Close()

	builder := contextbuild.New(store, sessions, mirrorTable(cfg.Symbols))

	metrics := httpapi.NewMetrics()
	instrumented := &instrumentedSelector{inner: sel, metrics: metrics}

	decisions := newDecisionRing()
	disp := dispatch.New(logger, dispatch.DefaultConfig(), store, instrumented, sessions, riskGate, rt, jr, builder.Build)
	disp.OnDecision(func(d types.Decision) {
		decisions.record(d)
	})

	tailerCfg := tailer.DefaultConfig(cfg.DataDir)
	tailerCfg.Pattern = cfg.UnifiedPattern
	tailerCfg.BackfillMB = cfg.BackfillMB
	evTailer, err := tailer.New(logger, tailerCfg)
	if err != nil {
		logger.Fatal("failed to start event tailer", zap.Error(err))
	}

	go evTailer.Run(ctx)
	go pumpEvents(ctx, store, evTailer, builder, disp, metrics)

	disp.Start(ctx, cfg.Symbols)

	httpSrv := httpapi.New(logger, cfg.HTTPAddr, store, decisions)
	go func() {
		if err := httpSrv.Start(); err != nil {
			logger.Error("inspection http server error", zap.Error(err))
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan
	logger.Info("shutdown signal received")

	cancel()
	disp.Stop()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := httpSrv.Stop(shutdownCtx); err != nil {
		logger.Error("error stopping inspection http server", zap.Error(err))
	}

	logger.Info("mia-core stopped")
}

// pumpEvents feeds every parsed event into both the per-symbol
// microstructure calculators (which ContextBuilder.Build reads at tick
// time) and the dispatcher's single-writer snapshot queue.
func pumpEvents(ctx context.Context, store *snapshot.Store, t *tailer.Tailer, builder *contextbuild.Builder, disp *dispatch.Dispatcher, metrics *httpapi.Metrics) {
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-t.Events():
			if !ok {
				return
			}
			applyMicrostructure(store, builder, ev)
			disp.Submit(ev)
			metrics.EventsProcessed.Inc()
		}
	}
}

// applyMicrostructure feeds one event into the symbol's microstructure
// calculator ahead of the store mutation the dispatcher applies, so a
// selector tick racing the very same event still sees last tick's
// metrics rather than none.
func applyMicrostructure(store *snapshot.Store, builder *contextbuild.Builder, ev *types.Event) {
	tickSize := types.TickSizeFor(ev.Symbol)
	m := builder.Metrics(ev.Symbol, tickSize)

	switch ev.Type {
	case types.EventQuote:
		if ev.Quote != nil {
			m.UpdateFromQuote(ev.Timestamp, *ev.Quote)
		}
	case types.EventBaseData:
		if ev.BaseData != nil {
			bar := types.NewBar(ev.Timestamp, ev.BaseData.Open, ev.BaseData.High, ev.BaseData.Low, ev.BaseData.Close,
				ev.BaseData.Volume, ev.BaseData.BidVolume, ev.BaseData.AskVolume)
			m.UpdateFromBar(bar)
		}
	case types.EventNBCVFootprint:
		if ev.NBCVFootprint != nil {
			m.UpdateFromNBCV(ev.NBCVFootprint.Delta)
		}
	case types.EventTrade:
		if ev.Trade != nil {
			atBid := tradeAtBid(store, ev)
			m.UpdateFromTrade(ev.Timestamp, *ev.Trade, atBid, ev.Trade.Qty)
		}
	case types.EventDepth:
		if ev.Depth != nil {
			m.UpdateFromDepth(*ev.Depth)
		}
	case types.EventMenthorQLevel:
		if ev.MenthorQ != nil && ev.MenthorQ.LevelType == types.LevelHVL {
			m.SetGammaLevel(ev.MenthorQ.Price)
		}
	}
}

// tradeAtBid classifies a print against the symbol's last known quote:
// closer to the bid is a sell hitting the bid, closer to the ask is a
// buy lifting the offer. Absent a quote yet, it defaults to the ask
// side so early prints don't spuriously count as bid absorption.
func tradeAtBid(store *snapshot.Store, ev *types.Event) bool {
	snap, ok := store.Get(ev.Symbol)
	if !ok || (snap.LastQuote.Bid.IsZero() && snap.LastQuote.Ask.IsZero()) {
		return false
	}
	toBid := ev.Trade.Price.Sub(snap.LastQuote.Bid).Abs()
	toAsk := ev.Trade.Price.Sub(snap.LastQuote.Ask).Abs()
	return toBid.LessThan(toAsk)
}

// mirrorTable pairs the first ES-family symbol with the first NQ-family
// symbol, matching the ES/NQ Lead-Lag Mirror pattern's two-symbol
// deployment assumption; a single-symbol deployment yields an empty map.
func mirrorTable(symbols []string) map[string]string {
	var es, nq string
	for _, s := range symbols {
		base := strings.ToUpper(s)
		switch {
		case strings.HasPrefix(base, "NQ") && nq == "":
			nq = s
		case strings.HasPrefix(base, "ES") && es == "":
			es = s
		}
	}
	if es == "" || nq == "" {
		return map[string]string{}
	}
	return map[string]string{es: nq, nq: es}
}

// instrumentedSelector wraps selector.Selector to record the Prometheus
// counters and latency histogram httpapi.Metrics exposes, without
// threading metrics through the selector package itself.
type instrumentedSelector struct {
	inner   *selector.Selector
	metrics *httpapi.Metrics
}

var riskDenialReasons = map[string]bool{
	"daily_loss_limit_reached":         true,
	"max_daily_trades_reached":         true,
	"outside_session_window":           true,
	"risk_per_trade_exceeded":          true,
	"confluence_below_minimum":         true,
	"max_concurrent_positions_reached": true,
}

func (s *instrumentedSelector) Analyze(ctx strategy.Context) types.Decision {
	start := time.Now()
	decision := s.inner.Analyze(ctx)
	s.metrics.SelectorLatency.Observe(time.Since(start).Seconds())

	if decision.Signal != nil {
		s.metrics.SignalsEmitted.Inc()
	}
	for _, reason := range decision.Rationale {
		if riskDenialReasons[reason] {
			s.metrics.RiskDenials.Inc()
			break
		}
	}
	if (decision.Name == types.DecisionGoLong || decision.Name == types.DecisionGoShort) &&
		decision.Signal != nil && decision.PositionSizing > 0 {
		s.metrics.OrdersPlaced.Inc()
	}
	return decision
}

// decisionRing is the last-decision-per-symbol store backing
// httpapi.DecisionSource.
type decisionRing struct {
	mu   sync.RWMutex
	last map[string]types.Decision
}

func newDecisionRing() *decisionRing {
	return &decisionRing{last: make(map[string]types.Decision)}
}

func (r *decisionRing) record(d types.Decision) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.last[d.Symbol] = d
}

func (r *decisionRing) Last(symbol string) (types.Decision, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	d, ok := r.last[symbol]
	return d, ok
}

func setupLogger(level string) *zap.Logger {
	var zapLevel zapcore.Level
	switch level {
	case "debug":
		zapLevel = zapcore.DebugLevel
	case "info":
		zapLevel = zapcore.InfoLevel
	case "warn":
		zapLevel = zapcore.WarnLevel
	case "error":
		zapLevel = zapcore.ErrorLevel
	default:
		zapLevel = zapcore.InfoLevel
	}

	cfg := zap.Config{
		Level:       zap.NewAtomicLevelAt(zapLevel),
		Development: false,
		Encoding:    "console",
		EncoderConfig: zapcore.EncoderConfig{
			TimeKey:        "time",
			LevelKey:       "level",
			NameKey:        "logger",
			CallerKey:      "caller",
			MessageKey:     "msg",
			StacktraceKey:  "stacktrace",
			LineEnding:     zapcore.DefaultLineEnding,
			EncodeLevel:    zapcore.CapitalColorLevelEncoder,
			EncodeTime:     zapcore.ISO8601TimeEncoder,
			EncodeDuration: zapcore.SecondsDurationEncoder,
			EncodeCaller:   zapcore.ShortCallerEncoder,
		},
		OutputPaths:      []string{"stdout"},
		ErrorOutputPaths: []string{"stderr"},
	}

	logger, err := cfg.Build()
	if err != nil {
		panic(err)
	}
	return logger
}
