package types

import "github.com/shopspring/decimal"

// OrderSide is BUY or SELL on the exchange-bridge wire protocol.
type OrderSide string

const (
	OrderSideBuy OrderSide = "BUY"
	OrderSideSell OrderSide = "SELL"
)

// OrderType is one of the four order types the bridge accepts.
type OrderType string

const (
	OrderTypeMarket OrderType = "MKT"
	OrderTypeLimit OrderType = "LMT"
	OrderTypeStop OrderType = "STP"
	OrderTypeStopLimit OrderType = "STP_LMT"
)

// TimeInForce is one of the three TIF values the bridge accepts.
type TimeInForce string

const (
	TIFDay TimeInForce = "DAY"
	TIFGTC TimeInForce = "GTC"
	TIFIOC TimeInForce = "IOC"
)

// Bracket attaches an optional stop-loss/take-profit pair to an order.
type Bracket struct {
	StopLoss *decimal.Decimal `json:"stop_loss,omitempty"`
	TakeProfit *decimal.Decimal `json:"take_profit,omitempty"`
}

// OrderRequest is what the StrategySelector hands the OrderRouter.
type OrderRequest struct {
	Symbol string
	Side OrderSide
	Quantity int
	OrderType OrderType
	LimitPrice *decimal.Decimal
	StopPrice *decimal.Decimal
	TIF TimeInForce
	Bracket *Bracket
}

// OrderAck is the router's immediate result for a placed order, whether
// live or paper.
type OrderAck struct {
	OrderID string
	IsPaper bool
	ResponseStatus string
}
