// Package journal_test provides tests for the append-only trade journal.
package journal_test

import (
	"testing"
	"time"

	"github.com/atlas-desktop/mia-core/internal/journal"
	"github.com/atlas-desktop/mia-core/pkg/types"
	"go.uber.org/zap"
)

func TestRecordAndKnown(t *testing.T) {
	dir := t.TempDir()
	j, err := journal.New(zap.NewNop(), dir)
	if err != nil {
		t.Fatalf("failed to create journal: %v", err)
	}
	defer j.Close()

	entry := journal.Entry{
		ClientOrderID:  "abc-123",
		SentAt:         time.Now(),
		Symbol:         "ES_FUT_CME",
		Side:           types.OrderSideBuy,
		Quantity:       1,
		OrderType:      types.OrderTypeMarket,
		TIF:            types.TIFDay,
		ResponseStatus: "paper",
	}
	j.Record(entry)

	got, ok := j.Known("abc-123")
	if !ok {
		t.Fatal("expected the recorded entry to be known")
	}
	if got.Symbol != "ES_FUT_CME" {
		t.Errorf("expected symbol ES_FUT_CME, got %s", got.Symbol)
	}
}

func TestKnownMissingEntry(t *testing.T) {
	dir := t.TempDir()
	j, err := journal.New(zap.NewNop(), dir)
	if err != nil {
		t.Fatalf("failed to create journal: %v", err)
	}
	defer j.Close()

	if _, ok := j.Known("never-recorded"); ok {
		t.Error("expected no entry for an id that was never recorded")
	}
}

func TestReplayRebuildsKnownOrders(t *testing.T) {
	dir := t.TempDir()
	j1, err := journal.New(zap.NewNop(), dir)
	if err != nil {
		t.Fatalf("failed to create journal: %v", err)
	}
	j1.Record(journal.Entry{ClientOrderID: "replayed-1", Symbol: "NQ_FUT_CME", Side: types.OrderSideSell, Quantity: 1, OrderType: types.OrderTypeMarket, TIF: types.TIFDay})
	if err := j1.Close(); err != nil {
		t.Fatalf("failed to close journal: %v", err)
	}

	j2, err := journal.New(zap.NewNop(), dir)
	if err != nil {
		t.Fatalf("failed to reopen journal: %v", err)
	}
	defer j2.Close()

	got, ok := j2.Known("replayed-1")
	if !ok {
		t.Fatal("expected replay to rebuild the known-orders index from the existing file")
	}
	if got.Symbol != "NQ_FUT_CME" {
		t.Errorf("expected replayed symbol NQ_FUT_CME, got %s", got.Symbol)
	}
}
