package types

import (
	"encoding/json"
	"fmt"

	"github.com/shopspring/decimal"
)

// ParseLine parses one line of the unified JSONL stream into a typed Event.
// It never panics; any structural problem is reported as an error so the
// caller can log-and-skip.
func ParseLine(line []byte) (*Event, error) {
	var raw map[string]any
	if err := json.Unmarshal(line, &raw); err != nil {
		return nil, &ErrMalformedEvent{Reason: err.Error()}
	}

	tsRaw, ok := raw["ts"]
	if !ok {
		return nil, &ErrMalformedEvent{Reason: "missing ts"}
	}
	ts, ok := NormaliseTimestamp(tsRaw)
	if !ok {
		return nil, &ErrMalformedEvent{Reason: fmt.Sprintf("unparseable ts %v", tsRaw)}
	}

	sym, _ := raw["sym"].(string)
	if sym == "" {
		return nil, &ErrMalformedEvent{Reason: "missing sym"}
	}

	chart := 0
	if c, ok := raw["chart"].(float64); ok {
		chart = int(c)
	}

	typStr, _ := raw["type"].(string)
	if typStr == "" {
		return nil, &ErrMalformedEvent{Reason: "missing type"}
	}
	typ := EventType(typStr)

	ev := &Event{Timestamp: ts, Symbol: sym, Chart: chart, Type: typ}

	switch typ {
	case EventBaseData:
		ev.BaseData = &BaseDataPayload{
			Open:      dec(raw["open"]),
			High:      dec(raw["high"]),
			Low:       dec(raw["low"]),
			Close:     dec(raw["close"]),
			Volume:    dec(raw["volume"]),
			BidVolume: dec(raw["bid_volume"]),
			AskVolume: dec(raw["ask_volume"]),
		}
	case EventVWAP:
		ev.VWAP = &VWAPPayload{
			V:   dec(raw["v"]),
			Up1: dec(raw["up1"]),
			Dn1: dec(raw["dn1"]),
			Up2: dec(raw["up2"]),
			Dn2: dec(raw["dn2"]),
		}
	case EventVVA:
		var pval *decimal.Decimal
		if v, ok := raw["pval"]; ok && v != nil {
			d := dec(v)
			pval = &d
		}
		sessionID := ""
		if s, ok := raw["id_curr"].(string); ok {
			sessionID = s
		}
		ev.VVA = &VVAPayload{
			VPOC:      dec(raw["vpoc"]),
			VAH:       dec(raw["vah"]),
			VAL:       dec(raw["val"]),
			PVAL:      pval,
			SessionID: sessionID,
		}
	case EventNBCVFootprint:
		var cvd *decimal.Decimal
		if v, ok := raw["cumulative_delta"]; ok && v != nil {
			d := dec(v)
			cvd = &d
		}
		count := int64(0)
		if c, ok := raw["trades_count"].(float64); ok {
			count = int64(c)
		}
		ev.NBCVFootprint = &NBCVFootprintPayload{
			Delta:           dec(raw["delta"]),
			CumulativeDelta: cvd,
			TradesCount:     count,
		}
	case EventQuote:
		ev.Quote = &QuotePayload{Bid: dec(raw["bid"]), Ask: dec(raw["ask"])}
	case EventTrade:
		ev.Trade = &TradePayload{Price: dec(raw["price"]), Qty: dec(raw["qty"])}
	case EventDepth:
		ev.Depth = &DepthPayload{
			BidSizes:  decSlice(raw["dom_bids"]),
			AskSizes:  decSlice(raw["dom_asks"]),
			BidPrices: decSlice(raw["dom_bid_prices"]),
			AskPrices: decSlice(raw["dom_ask_prices"]),
		}
	case EventVIX:
		ev.VIX = &VIXPayload{Last: dec(raw["last"])}
	case EventMenthorQLevel:
		levelTypeRaw, _ := raw["level_type"].(string)
		if levelTypeRaw == "" {
			return nil, &ErrMalformedEvent{Reason: "menthorq_level missing level_type"}
		}
		zeroDTE := false
		base := levelTypeRaw
		const suffix = "_0dte"
		if len(base) > len(suffix) && base[len(base)-len(suffix):] == suffix {
			zeroDTE = true
			base = base[:len(base)-len(suffix)]
		}
		subgraph := 0
		if s, ok := raw["subgraph"].(float64); ok {
			subgraph = int(s)
		}
		ev.MenthorQ = &MenthorQPayload{
			LevelType: MenthorQLevelType(base),
			ZeroDTE:   zeroDTE,
			Price:     dec(raw["price"]),
			Subgraph:  subgraph,
		}
	default:
		return nil, &ErrMalformedEvent{Reason: fmt.Sprintf("unrecognised type %q", typStr)}
	}

	return ev, nil
}

func dec(v any) decimal.Decimal {
	switch x := v.(type) {
	case float64:
		return decimal.NewFromFloat(x)
	case string:
		d, err := decimal.NewFromString(x)
		if err != nil {
			return decimal.Zero
		}
		return d
	default:
		return decimal.Zero
	}
}

func decSlice(v any) []decimal.Decimal {
	arr, ok := v.([]any)
	if !ok {
		return nil
	}
	out := make([]decimal.Decimal, 0, len(arr))
	for _, item := range arr {
		out = append(out, dec(item))
	}
	return out
}
