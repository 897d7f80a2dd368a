// Package router_test provides tests for the OrderRouter paper-mode fallback.
package router_test

import (
	"testing"

	"github.com/atlas-desktop/mia-core/internal/router"
	"github.com/atlas-desktop/mia-core/pkg/types"
	"go.uber.org/zap"
)

func testConfig() router.Config {
	return router.Config{
		Host:               "127.0.0.1",
		ESPort:              1, // nothing listens on port 1; every connect attempt fails fast
		NQPort:              2,
		TimeoutMs:           50,
		HeartbeatIntervalS:  30,
	}
}

func TestPlaceOrderFallsBackToPaperModeWhenBridgeUnreachable(t *testing.T) {
	r := router.New(zap.NewNop(), testConfig())

	ack := r.PlaceOrder(types.OrderRequest{
		Symbol:    "ES_FUT_CME",
		Side:      types.OrderSideBuy,
		Quantity:  1,
		OrderType: types.OrderTypeMarket,
		TIF:       types.TIFDay,
	})

	if !ack.IsPaper {
		t.Error("expected a paper ack when the exchange bridge is unreachable")
	}
	if ack.OrderID == "" {
		t.Error("expected a synthetic paper order id")
	}
}

func TestCancelOrderIsNoOpInPaperMode(t *testing.T) {
	r := router.New(zap.NewNop(), testConfig())

	r.PlaceOrder(types.OrderRequest{Symbol: "ES_FUT_CME", Side: types.OrderSideBuy, Quantity: 1, OrderType: types.OrderTypeMarket, TIF: types.TIFDay})

	if err := r.CancelOrder("ES_FUT_CME", "does-not-exist"); err != nil {
		t.Errorf("expected cancel to no-op cleanly in paper mode, got %v", err)
	}
}

func TestHeartbeatIsNoOpWithoutConnection(t *testing.T) {
	r := router.New(zap.NewNop(), testConfig())
	// No PlaceOrder has been issued, so there is no connection yet; this
	// must not panic or block.
	r.Heartbeat("ES_FUT_CME")
}

func TestPlaceOrderReusesPaperModeOnSecondCall(t *testing.T) {
	r := router.New(zap.NewNop(), testConfig())

	first := r.PlaceOrder(types.OrderRequest{Symbol: "NQ_FUT_CME", Side: types.OrderSideSell, Quantity: 2, OrderType: types.OrderTypeMarket, TIF: types.TIFDay})
	second := r.PlaceOrder(types.OrderRequest{Symbol: "NQ_FUT_CME", Side: types.OrderSideSell, Quantity: 2, OrderType: types.OrderTypeMarket, TIF: types.TIFDay})

	if !first.IsPaper || !second.IsPaper {
		t.Error("expected both orders to stay in paper mode once the bridge is marked unreachable")
	}
	if first.OrderID == second.OrderID {
		t.Error("expected each paper order to get a distinct synthetic id")
	}
}
