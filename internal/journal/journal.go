// Package journal implements TradeJournal: an append-only log of every
// order attempt, live or paper, that is the source of truth for
// "known orders" — no read-back from the exchange bridge is expected.
// Adapted from the teacher's internal/data/store.go: the mu-protected,
// directory-backed persistence idiom survives; the snapshot-per-symbol
// JSON-file model is replaced with a single append-only JSON-lines
// file, since a journal entry is a fact that is never rewritten once
// recorded.
package journal

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/atlas-desktop/mia-core/pkg/types"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// Entry is one recorded order attempt.
type Entry struct {
	ClientOrderID   string            `json:"client_order_id"`
	SentAt          time.Time         `json:"sent_at"`
	Symbol          string            `json:"symbol"`
	Side            types.OrderSide   `json:"side"`
	Quantity        int               `json:"qty"`
	OrderType       types.OrderType   `json:"order_type"`
	LimitPrice      *decimal.Decimal  `json:"limit_price,omitempty"`
	StopPrice       *decimal.Decimal  `json:"stop_price,omitempty"`
	TIF             types.TimeInForce `json:"tif"`
	Bracket         *types.Bracket    `json:"bracket,omitempty"`
	ResponseStatus  string            `json:"response_status"`
	ResponseOrderID string            `json:"response_order_id"`
}

// Journal serialises all writes through a single mutex-held append.
type Journal struct {
	mu     sync.Mutex
	logger *zap.Logger
	path   string
	file   *os.File
	known  map[string]Entry
}

// New opens (creating if absent) the append-only journal file under
// dataDir and replays it to rebuild the in-memory "known orders" index.
func New(logger *zap.Logger, dataDir string) (*Journal, error) {
	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		return nil, fmt.Errorf("creating journal directory: %w", err)
	}
	path := filepath.Join(dataDir, "trade_journal.jsonl")

	j := &Journal{logger: logger.Named("journal"), path: path, known: make(map[string]Entry)}
	if err := j.replay(); err != nil {
		return nil, fmt.Errorf("replaying journal: %w", err)
	}

	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("opening journal for append: %w", err)
	}
	j.file = f
	return j, nil
}

func (j *Journal) replay() error {
	data, err := os.ReadFile(j.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	dec := json.NewDecoder(bytes.NewReader(data))
	for {
		var e Entry
		if err := dec.Decode(&e); err != nil {
			if err == io.EOF {
				break
			}
			return fmt.Errorf("decoding journal entry: %w", err)
		}
		j.known[e.ClientOrderID] = e
	}
	return nil
}

// Record appends one order attempt and updates the known-orders index.
// It never returns an error to the caller's hot path beyond logging,
// since the caller cannot meaningfully retry a failed append.
func (j *Journal) Record(e Entry) {
	j.mu.Lock()
	defer j.mu.Unlock()

	data, err := json.Marshal(e)
	if err != nil {
		j.logger.Error("failed to marshal journal entry", zap.Error(err))
		return
	}
	if _, err := j.file.Write(append(data, '\n')); err != nil {
		j.logger.Error("failed to append journal entry", zap.Error(err))
		return
	}
	if err := j.file.Sync(); err != nil {
		j.logger.Warn("journal fsync failed", zap.Error(err))
	}
	j.known[e.ClientOrderID] = e
}

// Known returns the recorded entry for a client order id, if any.
func (j *Journal) Known(clientOrderID string) (Entry, bool) {
	j.mu.Lock()
	defer j.mu.Unlock()
	e, ok := j.known[clientOrderID]
	return e, ok
}

// Close flushes and closes the underlying file.
func (j *Journal) Close() error {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.file.Close()
}
