// Package types holds the core domain types shared across the trading core:
// input events, the per-symbol snapshot, pattern signals and decisions.
package types

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// EventType identifies the payload carried by a raw unified-stream record.
type EventType string

const (
	EventBaseData      EventType = "basedata"
	EventVWAP          EventType = "vwap"
	EventVVA           EventType = "vva"
	EventNBCVFootprint EventType = "nbcv_footprint"
	EventQuote         EventType = "quote"
	EventTrade         EventType = "trade"
	EventDepth         EventType = "depth"
	EventVIX           EventType = "vix"
	EventMenthorQLevel EventType = "menthorq_level"
)

// RawEvent is the wire shape of one line of the unified JSONL stream.
// Timestamps arrive either as ISO-8601 strings or spreadsheet serial days;
// NormaliseTimestamp resolves either into a time.Time.
type RawEvent struct {
	TS      any       `json:"ts"`
	Symbol  string    `json:"sym"`
	Chart   int       `json:"chart"`
	Type    EventType `json:"type"`
	Payload map[string]any
}

// Event is the parsed, typed form of a RawEvent, ready for Snapshot.Apply.
type Event struct {
	Timestamp time.Time
	Symbol    string
	Chart     int
	Type      EventType

	BaseData      *BaseDataPayload
	VWAP          *VWAPPayload
	VVA           *VVAPayload
	NBCVFootprint *NBCVFootprintPayload
	Quote         *QuotePayload
	Trade         *TradePayload
	Depth         *DepthPayload
	VIX           *VIXPayload
	MenthorQ      *MenthorQPayload
}

type BaseDataPayload struct {
	Open, High, Low, Close      decimal.Decimal
	Volume, BidVolume, AskVolume decimal.Decimal
}

type VWAPPayload struct {
	V                  decimal.Decimal
	Up1, Dn1, Up2, Dn2 decimal.Decimal
}

type VVAPayload struct {
	VPOC, VAH, VAL decimal.Decimal
	PVAL           *decimal.Decimal
	SessionID      string
}

type NBCVFootprintPayload struct {
	Delta           decimal.Decimal
	CumulativeDelta *decimal.Decimal
	TradesCount     int64
}

type QuotePayload struct {
	Bid, Ask decimal.Decimal
}

type TradePayload struct {
	Price, Qty decimal.Decimal
}

type DepthPayload struct {
	BidSizes, AskSizes   []decimal.Decimal
	BidPrices, AskPrices []decimal.Decimal
}

type VIXPayload struct {
	Last decimal.Decimal
}

// MenthorQLevelType enumerates the recognised MenthorQ level kinds. The
// wire format suffixes these with the level's numeric index (e.g.
// "gex_1", "blind_spot_3"); callers match by prefix, not equality.
type MenthorQLevelType string

const (
	LevelCallResistance MenthorQLevelType = "call_resistance"
	LevelPutSupport     MenthorQLevelType = "put_support"
	LevelHVL            MenthorQLevelType = "hvl"
	LevelGEX            MenthorQLevelType = "gex_n"
	LevelBlindSpot      MenthorQLevelType = "blind_spot_n"
	LevelSwing          MenthorQLevelType = "swing_n"
)

type MenthorQPayload struct {
	LevelType MenthorQLevelType
	ZeroDTE   bool
	Price     decimal.Decimal
	Subgraph  int
}

// VixRegime classifies the current VIX level.
type VixRegime string

const (
	VixLow  VixRegime = "LOW"
	VixMid  VixRegime = "MID"
	VixHigh VixRegime = "HIGH"
)

// ClassifyVixRegime implements the exact boundaries from:
// LOW below 15, MID on [15,25), HIGH otherwise (25 itself is HIGH).
func ClassifyVixRegime(last decimal.Decimal) VixRegime {
	switch {
	case last.LessThan(decimal.NewFromInt(15)):
		return VixLow
	case last.LessThan(decimal.NewFromInt(25)):
		return VixMid
	default:
		return VixHigh
	}
}

// spreadsheetEpoch is 1899-12-30, the base date for spreadsheet serial days.
var spreadsheetEpoch = time.Date(1899, time.December, 30, 0, 0, 0, 0, time.UTC)

// NormaliseTimestamp accepts an ISO-8601 string, a spreadsheet serial day
// (float/int in the low tens-of-thousands), or a unix-seconds number, and
// returns the corresponding time. Every number is accepted (serial day
// inside that range, unix seconds otherwise); a string matching neither
// layout, or a value of any other type, yields the zero time and ok=false.
func NormaliseTimestamp(v any) (t time.Time, ok bool) {
	switch x := v.(type) {
	case string:
		if parsed, err := time.Parse(time.RFC3339, x); err == nil {
			return parsed, true
		}
		if parsed, err := time.Parse("2006-01-02T15:04:05.999999", x); err == nil {
			return parsed.UTC(), true
		}
		return time.Time{}, false
	case float64:
		return normaliseNumeric(x), true
	case int64:
		return normaliseNumeric(float64(x)), true
	case int:
		return normaliseNumeric(float64(x)), true
	default:
		return time.Time{}, false
	}
}

// normaliseNumeric distinguishes a spreadsheet serial day (plausible range
// roughly 20000..90000, i.e. years ~1954..2146) from a unix-seconds value.
func normaliseNumeric(x float64) time.Time {
	if x > 20000 && x < 90000 {
		days := x
		whole := int64(days)
		frac := days - float64(whole)
		return spreadsheetEpoch.AddDate(0, 0, int(whole)).Add(time.Duration(frac * 24 * float64(time.Hour)))
	}
	return time.Unix(int64(x), 0).UTC()
}

// ErrMalformedEvent is returned by ParseLine for any line that cannot be
// turned into a typed Event; callers log and drop.
type ErrMalformedEvent struct {
	Reason string
}

func (e *ErrMalformedEvent) Error() string {
	return fmt.Sprintf("malformed event: %s", e.Reason)
}
