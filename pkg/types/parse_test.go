// Package types_test provides tests for event parsing and timestamp
// normalisation.
package types_test

import (
	"testing"
	"time"

	"github.com/atlas-desktop/mia-core/pkg/types"
	"github.com/shopspring/decimal"
)

func TestParseLineRejectsInvalidJSON(t *testing.T) {
	_, err := types.ParseLine([]byte("not json"))
	if err == nil {
		t.Fatal("expected an error for a non-JSON line")
	}
}

func TestParseLineRejectsMissingFields(t *testing.T) {
	cases := []string{
		`{"sym":"ES_FUT_CME","type":"quote"}`,             // missing ts
		`{"ts":"2026-07-30T14:00:00Z","type":"quote"}`,    // missing sym
		`{"ts":"2026-07-30T14:00:00Z","sym":"ES_FUT_CME"}`, // missing type
	}
	for _, line := range cases {
		if _, err := types.ParseLine([]byte(line)); err == nil {
			t.Errorf("expected an error for %s", line)
		}
	}
}

func TestParseLineRejectsUnrecognisedType(t *testing.T) {
	_, err := types.ParseLine([]byte(`{"ts":"2026-07-30T14:00:00Z","sym":"ES_FUT_CME","type":"not_a_real_type"}`))
	if err == nil {
		t.Fatal("expected an error for an unrecognised event type")
	}
}

func TestParseLineParsesRFC3339Timestamp(t *testing.T) {
	ev, err := types.ParseLine([]byte(`{"ts":"2026-07-30T14:00:00Z","sym":"ES_FUT_CME","type":"quote","bid":5000,"ask":5001}`))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := time.Date(2026, 7, 30, 14, 0, 0, 0, time.UTC)
	if !ev.Timestamp.Equal(want) {
		t.Errorf("expected timestamp %v, got %v", want, ev.Timestamp)
	}
}

func TestParseLineParsesUnixSecondsTimestamp(t *testing.T) {
	ev, err := types.ParseLine([]byte(`{"ts":1700000000,"sym":"ES_FUT_CME","type":"quote","bid":5000,"ask":5001}`))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ev.Timestamp.Unix() != 1700000000 {
		t.Errorf("expected unix seconds 1700000000, got %d", ev.Timestamp.Unix())
	}
}

func TestParseLineParsesSpreadsheetSerialTimestamp(t *testing.T) {
	// 44000 falls within the plausible spreadsheet-serial-day range and
	// should not be misread as a unix-seconds value (which would land in 1970).
	ev, err := types.ParseLine([]byte(`{"ts":44000,"sym":"ES_FUT_CME","type":"quote","bid":5000,"ask":5001}`))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ev.Timestamp.Year() < 2020 {
		t.Errorf("expected a spreadsheet-serial-day timestamp to resolve to a recent year, got %v", ev.Timestamp)
	}
}

func TestParseLineRejectsUnparseableTimestamp(t *testing.T) {
	_, err := types.ParseLine([]byte(`{"ts":"not-a-timestamp","sym":"ES_FUT_CME","type":"quote"}`))
	if err == nil {
		t.Fatal("expected an error for an unparseable timestamp")
	}
}

func TestParseLineQuote(t *testing.T) {
	ev, err := types.ParseLine([]byte(`{"ts":"2026-07-30T14:00:00Z","sym":"ES_FUT_CME","type":"quote","bid":4999.75,"ask":5000.25}`))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ev.Quote == nil {
		t.Fatal("expected a parsed quote payload")
	}
	if !ev.Quote.Bid.Equal(decimal.NewFromFloat(4999.75)) || !ev.Quote.Ask.Equal(decimal.NewFromFloat(5000.25)) {
		t.Errorf("expected bid/ask 4999.75/5000.25, got %s/%s", ev.Quote.Bid, ev.Quote.Ask)
	}
}

func TestParseLineMenthorQLevelEmbedsIndexInLevelType(t *testing.T) {
	ev, err := types.ParseLine([]byte(`{"ts":"2026-07-30T14:00:00Z","sym":"ES_FUT_CME","chart":3,"type":"menthorq_level","level_type":"gex_1","price":5010,"subgraph":1}`))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ev.MenthorQ == nil {
		t.Fatal("expected a parsed MenthorQ payload")
	}
	if ev.MenthorQ.LevelType != types.MenthorQLevelType("gex_1") {
		t.Errorf("expected level_type to retain its numeric suffix, got %s", ev.MenthorQ.LevelType)
	}
	if ev.MenthorQ.Subgraph != 1 {
		t.Errorf("expected subgraph 1, got %d", ev.MenthorQ.Subgraph)
	}
}

func TestParseLineMenthorQLevelStripsZeroDTESuffix(t *testing.T) {
	ev, err := types.ParseLine([]byte(`{"ts":"2026-07-30T14:00:00Z","sym":"ES_FUT_CME","chart":3,"type":"menthorq_level","level_type":"hvl_0dte","price":5000,"subgraph":0}`))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ev.MenthorQ.LevelType != types.LevelHVL {
		t.Errorf("expected the _0dte suffix to be stripped down to hvl, got %s", ev.MenthorQ.LevelType)
	}
	if !ev.MenthorQ.ZeroDTE {
		t.Error("expected ZeroDTE to be set")
	}
}

func TestParseLineMenthorQLevelRequiresLevelType(t *testing.T) {
	_, err := types.ParseLine([]byte(`{"ts":"2026-07-30T14:00:00Z","sym":"ES_FUT_CME","chart":3,"type":"menthorq_level","price":5000}`))
	if err == nil {
		t.Fatal("expected an error when level_type is missing")
	}
}
