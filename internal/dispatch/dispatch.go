// Package dispatch wires the runtime's concurrent tasks together:
// a single event-dispatch goroutine that is the sole mutator of the
// market snapshot, a per-symbol selector-tick goroutine, and a
// heartbeat goroutine per router connection. Adapted from the
// teacher's internal/events/event_bus.go (buffered-channel fan-out,
// goroutine worker, context-driven Stop) and internal/workers/pool.go
// (NumWorkers/QueueSize/ShutdownTimeout config shape), generalised from
// a generic N-worker task pool to this spec's fixed, named task set.
package dispatch

import (
	"context"
	"sync"
	"time"

	"github.com/atlas-desktop/mia-core/internal/journal"
	"github.com/atlas-desktop/mia-core/internal/risk"
	"github.com/atlas-desktop/mia-core/internal/router"
	"github.com/atlas-desktop/mia-core/internal/session"
	"github.com/atlas-desktop/mia-core/internal/snapshot"
	"github.com/atlas-desktop/mia-core/internal/strategy"
	"github.com/atlas-desktop/mia-core/pkg/types"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// Config holds the dispatcher's own tunables.
type Config struct {
	EventQueueSize       int
	SelectorTickPeriod   time.Duration
	SelectorSoftDeadline time.Duration
	HeartbeatPeriod      time.Duration
	ShutdownTimeout      time.Duration
}

// DefaultConfig follows the "~500ms tick, 100ms soft deadline logged not
// enforced, 30s heartbeat" description.
func DefaultConfig() Config {
	return Config{
		EventQueueSize:       100000,
		SelectorTickPeriod:   500 * time.Millisecond,
		SelectorSoftDeadline: 100 * time.Millisecond,
		HeartbeatPeriod:      30 * time.Second,
		ShutdownTimeout:      10 * time.Second,
	}
}

// ContextBuilder produces a strategy.Context for one symbol at tick
// time; supplied by the caller since it depends on microstructure
// state and cross-symbol mirror wiring the dispatcher does not own.
type ContextBuilder func(now time.Time, symbol string) (strategy.Context, bool)

// Analyzer is the selector's Analyze method, narrowed to an interface so
// it can be faked in tests.
type Analyzer interface {
	Analyze(ctx strategy.Context) types.Decision
}

// Dispatcher owns the event-ingestion channel and the per-symbol
// selector-tick and heartbeat goroutines. Exactly one goroutine ever
// calls Store.Apply, matching the single-writer rule of the snapshot
// store.
type Dispatcher struct {
	logger *zap.Logger
	cfg    Config

	store    *snapshot.Store
	selector Analyzer
	sessions *session.Manager
	riskGate *risk.Gate
	rt       *router.Router
	jr       *journal.Journal
	build    ContextBuilder

	events chan *types.Event

	wg     sync.WaitGroup
	cancel context.CancelFunc

	onDecision func(types.Decision)
}

// OnDecision registers a callback invoked with every decision the
// selector produces, regardless of action; used to surface the latest
// decision per symbol on the inspection HTTP server.
func (d *Dispatcher) OnDecision(fn func(types.Decision)) {
	d.onDecision = fn
}

// New wires a Dispatcher to its collaborators. All are assumed already
// constructed by the caller (cmd/server's composition root).
func New(logger *zap.Logger, cfg Config, store *snapshot.Store, selector Analyzer, sessions *session.Manager, riskGate *risk.Gate, rt *router.Router, jr *journal.Journal, build ContextBuilder) *Dispatcher {
	size := cfg.EventQueueSize
	if size <= 0 {
		size = 100000
	}
	return &Dispatcher{
		logger:   logger.Named("dispatch"),
		cfg:      cfg,
		store:    store,
		selector: selector,
		sessions: sessions,
		riskGate: riskGate,
		rt:       rt,
		jr:       jr,
		build:    build,
		events:   make(chan *types.Event, size),
	}
}

// Submit enqueues one parsed event for the dispatch goroutine. Never
// blocks the tailer: a full queue drops the event with a logged
// warning, since market data events are supersede-by-next-tick data
// rather than must-deliver commands.
func (d *Dispatcher) Submit(ev *types.Event) {
	select {
	case d.events <- ev:
	default:
		d.logger.Warn("event queue full, dropping event", zap.String("symbol", ev.Symbol), zap.String("type", string(ev.Type)))
	}
}

// Start launches the event-dispatch goroutine plus one selector-tick
// goroutine and one heartbeat goroutine per symbol.
func (d *Dispatcher) Start(ctx context.Context, symbols []string) {
	runCtx, cancel := context.WithCancel(ctx)
	d.cancel = cancel

	d.wg.Add(1)
	go d.runEventLoop(runCtx)

	for _, symbol := range symbols {
		sym := symbol
		d.wg.Add(1)
		go d.runSelectorTick(runCtx, sym)

		d.wg.Add(1)
		go d.runHeartbeat(runCtx, sym)
	}
}

// Stop cancels all tasks and waits up to ShutdownTimeout for them to
// drain, matching the teacher's bounded-shutdown idiom.
func (d *Dispatcher) Stop() {
	if d.cancel != nil {
		d.cancel()
	}
	done := make(chan struct{})
	go func() {
		d.wg.Wait()
		close(done)
	}()
	timeout := d.cfg.ShutdownTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	select {
	case <-done:
	case <-time.After(timeout):
		d.logger.Warn("dispatch shutdown timed out, some goroutines may still be draining")
	}
}

// runEventLoop is the sole mutator of the market snapshot.
func (d *Dispatcher) runEventLoop(ctx context.Context) {
	defer d.wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case ev := <-d.events:
			d.store.Apply(ev)
		}
	}
}

// runSelectorTick runs Analyze for one symbol on a fixed period,
// logging (never enforcing) the soft deadline's best-effort latency
// note.
func (d *Dispatcher) runSelectorTick(ctx context.Context, symbol string) {
	defer d.wg.Done()
	period := d.cfg.SelectorTickPeriod
	if period <= 0 {
		period = 500 * time.Millisecond
	}
	ticker := time.NewTicker(period)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			d.tick(now, symbol)
		}
	}
}

func (d *Dispatcher) tick(now time.Time, symbol string) {
	start := time.Now()
	sc, ok := d.build(now, symbol)
	if !ok {
		return
	}
	decision := d.selector.Analyze(sc)
	if d.onDecision != nil {
		d.onDecision(decision)
	}
	d.handleDecision(now, decision)

	if elapsed := time.Since(start); d.cfg.SelectorSoftDeadline > 0 && elapsed > d.cfg.SelectorSoftDeadline {
		d.logger.Warn("selector tick exceeded soft deadline",
			zap.String("symbol", symbol), zap.Duration("elapsed", elapsed), zap.Duration("deadline", d.cfg.SelectorSoftDeadline))
	}
}

func (d *Dispatcher) handleDecision(now time.Time, decision types.Decision) {
	if decision.Name != types.DecisionGoLong && decision.Name != types.DecisionGoShort {
		return
	}
	if decision.Signal == nil || decision.PositionSizing <= 0 {
		return
	}

	side := types.OrderSideBuy
	if decision.Name == types.DecisionGoShort {
		side = types.OrderSideSell
	}

	stop := decision.Signal.Stop
	bracket := &types.Bracket{StopLoss: &stop}
	if len(decision.Signal.Targets) > 0 {
		tp := decision.Signal.Targets[0]
		bracket.TakeProfit = &tp
	}

	req := types.OrderRequest{
		Symbol:    decision.Symbol,
		Side:      side,
		Quantity:  int(decision.PositionSizing),
		OrderType: types.OrderTypeMarket,
		TIF:       types.TIFDay,
		Bracket:   bracket,
	}

	ack := d.rt.PlaceOrder(req)

	d.jr.Record(journal.Entry{
		ClientOrderID:   ack.OrderID,
		SentAt:          now,
		Symbol:          req.Symbol,
		Side:            req.Side,
		Quantity:        req.Quantity,
		OrderType:       req.OrderType,
		TIF:             req.TIF,
		Bracket:         req.Bracket,
		ResponseStatus:  ack.ResponseStatus,
		ResponseOrderID: ack.OrderID,
	})

	// Realised P&L is only known once the bridge reports a fill, which
	// this core does not read back; RecordTrade here only advances the
	// daily trade counter gate 2 depends on.
	d.riskGate.RecordTrade(now, decimal.Zero)
}

// runHeartbeat pings the router's connection for symbol on a fixed
// period, keeping idle TCP links alive.
func (d *Dispatcher) runHeartbeat(ctx context.Context, symbol string) {
	defer d.wg.Done()
	period := d.cfg.HeartbeatPeriod
	if period <= 0 {
		period = 30 * time.Second
	}
	ticker := time.NewTicker(period)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			d.rt.Heartbeat(symbol)
		}
	}
}
