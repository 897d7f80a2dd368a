// Package router implements OrderRouter: one persistent, lazily-
// connected TCP connection per symbol to the exchange bridge, falling
// back to paper mode on any connect/send failure, framed as newline-
// terminated JSON. Adapted from the teacher's executor.go (ExchangeAdapter
// paper-trading fallback) and order_manager.go (per-order lifecycle
// bookkeeping), generalised from a pluggable multi-exchange adapter
// model to this system's single fixed TCP bridge.
package router

import (
	"bufio"
	"encoding/json"
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/atlas-desktop/mia-core/pkg/types"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// Config is the router.* configuration key group.
type Config struct {
	Host               string
	ESPort             int
	NQPort             int
	TimeoutMs          int
	HeartbeatIntervalS int
}

// wireMessage is the JSON-over-TCP frame sent to the exchange bridge.
type wireMessage struct {
	Action     string            `json:"action"`
	OrderID    string            `json:"order_id,omitempty"`
	Symbol     string            `json:"symbol,omitempty"`
	Side       types.OrderSide   `json:"side,omitempty"`
	Quantity   int               `json:"quantity,omitempty"`
	OrderType  types.OrderType   `json:"order_type,omitempty"`
	LimitPrice *decimal.Decimal  `json:"limit_price,omitempty"`
	StopPrice  *decimal.Decimal  `json:"stop_price,omitempty"`
	TIF        types.TimeInForce `json:"time_in_force,omitempty"`
	Bracket    *types.Bracket    `json:"bracket,omitempty"`
	Timestamp  int64             `json:"timestamp"`
}

// wireResponse is parsed permissively: any well-formed JSON is accepted,
// with absent fields left empty; a reply that is not valid JSON is a
// transport error.
type wireResponse struct {
	OrderID string `json:"order_id"`
	Status  string `json:"status"`
}

// connection wraps one symbol's persistent TCP link plus its paper-mode
// fallback state.
type connection struct {
	mu          sync.Mutex
	conn        net.Conn
	writer      *bufio.Writer
	reader      *bufio.Reader
	isConnected bool
	isPaper     bool
	lastBeat    time.Time
}

// Router dispatches orders by symbol-family port, lazily connecting and
// falling back to paper mode.
type Router struct {
	logger *zap.Logger
	cfg    Config

	mu    sync.Mutex
	conns map[string]*connection
}

// New creates a Router. No network I/O happens until the first order.
func New(logger *zap.Logger, cfg Config) *Router {
	return &Router{logger: logger.Named("router"), cfg: cfg, conns: make(map[string]*connection)}
}

// portFor resolves the exchange-bridge port from the symbol family,
// stripping the exchange suffixes `_FUT_CME` and `_CME` the way
// sierra_order_router.py's _get_port_for_symbol does. Contract-month
// codes such as `U25` are not stripped; only the first two letters of
// the result pick the port.
func (r *Router) portFor(symbol string) int {
	base := normaliseSymbol(symbol)
	if len(base) >= 2 && base[:2] == "NQ" {
		return r.cfg.NQPort
	}
	return r.cfg.ESPort
}

func normaliseSymbol(symbol string) string {
	s := symbol
	for _, suffix := range []string{"_FUT_CME", "_CME"} {
		if len(s) > len(suffix) && s[len(s)-len(suffix):] == suffix {
			s = s[:len(s)-len(suffix)]
		}
	}
	return s
}

func (r *Router) connFor(symbol string) *connection {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.conns[symbol]
	if !ok {
		c = &connection{}
		r.conns[symbol] = c
	}
	return c
}

func (r *Router) timeout() time.Duration {
	ms := r.cfg.TimeoutMs
	if ms <= 0 {
		ms = 5000
	}
	return time.Duration(ms) * time.Millisecond
}

// ensureConnected lazily dials the bridge; on failure it marks the
// connection as paper mode rather than returning an error, since the
// router never blocks the selector.
func (r *Router) ensureConnected(c *connection, symbol string) {
	if c.isConnected || c.isPaper {
		return
	}
	addr := fmt.Sprintf("%s:%d", r.cfg.Host, r.portFor(symbol))
	conn, err := net.DialTimeout("tcp", addr, r.timeout())
	if err != nil {
		r.logger.Warn("exchange bridge connect failed, entering paper mode", zap.String("symbol", symbol), zap.Error(err))
		c.isPaper = true
		return
	}
	c.conn = conn
	c.writer = bufio.NewWriter(conn)
	c.reader = bufio.NewReader(conn)
	c.isConnected = true
	c.isPaper = false
	c.lastBeat = time.Now()
}

// PlaceOrder implements place_order against the exchange bridge.
func (r *Router) PlaceOrder(req types.OrderRequest) types.OrderAck {
	c := r.connFor(req.Symbol)
	c.mu.Lock()
	defer c.mu.Unlock()

	r.ensureConnected(c, req.Symbol)

	msg := wireMessage{
		Action:     "PLACE_ORDER",
		Symbol:     req.Symbol,
		Side:       req.Side,
		Quantity:   req.Quantity,
		OrderType:  req.OrderType,
		LimitPrice: req.LimitPrice,
		StopPrice:  req.StopPrice,
		TIF:        req.TIF,
		Bracket:    req.Bracket,
		Timestamp:  time.Now().Unix(),
	}

	if c.isPaper {
		return r.paperAck(req.Symbol, msg)
	}

	resp, err := r.send(c, msg)
	if err != nil {
		r.logger.Warn("order send failed, entering paper mode", zap.String("symbol", req.Symbol), zap.Error(err))
		r.failConnection(c)
		return r.paperAck(req.Symbol, msg)
	}

	orderID := resp.OrderID
	if orderID == "" {
		orderID = uuid.NewString()
	}
	return types.OrderAck{OrderID: orderID, IsPaper: false, ResponseStatus: resp.Status}
}

// CancelOrder implements cancel_order against the exchange bridge.
func (r *Router) CancelOrder(symbol, orderID string) error {
	c := r.connFor(symbol)
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.isPaper {
		return nil
	}
	r.ensureConnected(c, symbol)
	if c.isPaper {
		return nil
	}
	_, err := r.send(c, wireMessage{Action: "CANCEL_ORDER", OrderID: orderID, Timestamp: time.Now().Unix()})
	if err != nil {
		r.failConnection(c)
	}
	return err
}

// Heartbeat sends a heartbeat on every established connection; it does
// not check how recently the link carried traffic. A failure flips the
// connection to disconnected so the next order reconnects.
func (r *Router) Heartbeat(symbol string) {
	c := r.connFor(symbol)
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.isConnected {
		return
	}
	if _, err := r.send(c, wireMessage{Action: "HEARTBEAT", Timestamp: time.Now().Unix()}); err != nil {
		r.logger.Warn("heartbeat failed", zap.String("symbol", symbol), zap.Error(err))
		r.failConnection(c)
		c.isPaper = false
		return
	}
	c.lastBeat = time.Now()
}

func (r *Router) failConnection(c *connection) {
	if c.conn != nil {
		c.conn.Close()
	}
	c.conn = nil
	c.isConnected = false
	c.isPaper = true
}

// send writes one newline-terminated JSON message and reads one
// response line, both bounded by the hard timeout.
func (r *Router) send(c *connection, msg wireMessage) (wireResponse, error) {
	if c.conn == nil {
		return wireResponse{}, fmt.Errorf("no connection")
	}
	deadline := time.Now().Add(r.timeout())
	c.conn.SetDeadline(deadline)

	data, err := json.Marshal(msg)
	if err != nil {
		return wireResponse{}, err
	}
	if _, err := c.writer.Write(append(data, '\n')); err != nil {
		return wireResponse{}, err
	}
	if err := c.writer.Flush(); err != nil {
		return wireResponse{}, err
	}

	if msg.Action == "HEARTBEAT" {
		return wireResponse{}, nil
	}

	line, err := c.reader.ReadBytes('\n')
	if err != nil {
		return wireResponse{}, err
	}
	var resp wireResponse
	if err := json.Unmarshal(line, &resp); err != nil {
		return wireResponse{}, fmt.Errorf("unparseable bridge response: %w", err)
	}
	return resp, nil
}

// paperAck logs the would-be order and returns a synthetic id.
func (r *Router) paperAck(symbol string, msg wireMessage) types.OrderAck {
	r.logger.Info("paper order", zap.String("symbol", symbol), zap.Any("message", msg))
	id := fmt.Sprintf("PAPER_%d", time.Now().UnixNano())
	return types.OrderAck{OrderID: id, IsPaper: true, ResponseStatus: "paper"}
}
