// Package httpapi_test provides tests for the inspection HTTP server.
package httpapi_test

import (
	"context"
	"encoding/json"
	"net/http"
	"testing"
	"time"

	"github.com/atlas-desktop/mia-core/internal/httpapi"
	"github.com/atlas-desktop/mia-core/pkg/types"
	"go.uber.org/zap"
)

type fakeSnapshotSource struct {
	snaps map[string]types.Snapshot
}

func (f *fakeSnapshotSource) Get(symbol string) (types.Snapshot, bool) {
	s, ok := f.snaps[symbol]
	return s, ok
}

func (f *fakeSnapshotSource) Symbols() []string {
	out := make([]string, 0, len(f.snaps))
	for k := range f.snaps {
		out = append(out, k)
	}
	return out
}

type fakeDecisionSource struct {
	decisions map[string]types.Decision
}

func (f *fakeDecisionSource) Last(symbol string) (types.Decision, bool) {
	d, ok := f.decisions[symbol]
	return d, ok
}

func startTestServer(t *testing.T, addr string, store *fakeSnapshotSource, decisions *fakeDecisionSource) *httpapi.Server {
	t.Helper()
	srv := httpapi.New(zap.NewNop(), addr, store, decisions)
	go srv.Start()
	time.Sleep(100 * time.Millisecond)
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		srv.Stop(ctx)
	})
	return srv
}

func TestHealthEndpoint(t *testing.T) {
	startTestServer(t, "127.0.0.1:18181", &fakeSnapshotSource{snaps: map[string]types.Snapshot{}}, &fakeDecisionSource{decisions: map[string]types.Decision{}})

	resp, err := http.Get("http://127.0.0.1:18181/healthz")
	if err != nil {
		t.Fatalf("health request failed: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("expected status 200, got %d", resp.StatusCode)
	}
}

func TestSymbolsEndpoint(t *testing.T) {
	store := &fakeSnapshotSource{snaps: map[string]types.Snapshot{"ES_FUT_CME": {Symbol: "ES_FUT_CME"}}}
	startTestServer(t, "127.0.0.1:18182", store, &fakeDecisionSource{decisions: map[string]types.Decision{}})

	resp, err := http.Get("http://127.0.0.1:18182/symbols")
	if err != nil {
		t.Fatalf("symbols request failed: %v", err)
	}
	defer resp.Body.Close()

	var out map[string][]string
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if len(out["symbols"]) != 1 || out["symbols"][0] != "ES_FUT_CME" {
		t.Errorf("expected [ES_FUT_CME], got %v", out["symbols"])
	}
}

func TestSnapshotEndpointUnknownSymbol(t *testing.T) {
	startTestServer(t, "127.0.0.1:18183", &fakeSnapshotSource{snaps: map[string]types.Snapshot{}}, &fakeDecisionSource{decisions: map[string]types.Decision{}})

	resp, err := http.Get("http://127.0.0.1:18183/snapshots/ES_FUT_CME")
	if err != nil {
		t.Fatalf("snapshot request failed: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("expected 404 for an unknown symbol, got %d", resp.StatusCode)
	}
}

func TestDecisionEndpointReturnsLatest(t *testing.T) {
	decisions := &fakeDecisionSource{decisions: map[string]types.Decision{
		"ES_FUT_CME": {Symbol: "ES_FUT_CME", Name: types.DecisionGoLong},
	}}
	startTestServer(t, "127.0.0.1:18184", &fakeSnapshotSource{snaps: map[string]types.Snapshot{}}, decisions)

	resp, err := http.Get("http://127.0.0.1:18184/decisions/ES_FUT_CME")
	if err != nil {
		t.Fatalf("decision request failed: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected status 200, got %d", resp.StatusCode)
	}

	var out types.Decision
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if out.Name != types.DecisionGoLong {
		t.Errorf("expected decision GO_LONG, got %s", out.Name)
	}
}

func TestMetricsEndpointServesPrometheusFormat(t *testing.T) {
	startTestServer(t, "127.0.0.1:18185", &fakeSnapshotSource{snaps: map[string]types.Snapshot{}}, &fakeDecisionSource{decisions: map[string]types.Decision{}})

	resp, err := http.Get("http://127.0.0.1:18185/metrics")
	if err != nil {
		t.Fatalf("metrics request failed: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("expected status 200, got %d", resp.StatusCode)
	}
}
