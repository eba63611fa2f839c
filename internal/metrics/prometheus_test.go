package metrics

import (
	"io"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/talgya/shark-market/internal/broker"
	"github.com/talgya/shark-market/internal/engine"
	"github.com/talgya/shark-market/internal/market"
)

func TestRecorderCounts(t *testing.T) {
	r := New()
	r.ObserveTrade(broker.Trade{Order: market.Order{Buy: 3, Sell: 1}, Price: 101}, time.Millisecond)
	r.ObserveTrade(broker.Trade{Order: market.Order{Buy: 2}, Price: 102}, time.Millisecond)
	r.ObserveDay(engine.Record{TotalAssets: 5000})
	r.ObserveAnomaly("negative_assets")
	r.ObserveFailure("Hit market maker price range")

	if got := testutil.ToFloat64(r.volume.WithLabelValues("buy")); got != 5 {
		t.Fatalf("buy volume = %v, want 5", got)
	}
	if got := testutil.ToFloat64(r.lastPrice); got != 102 {
		t.Fatalf("last price = %v, want 102", got)
	}
	if got := testutil.ToFloat64(r.days); got != 1 {
		t.Fatalf("days = %v, want 1", got)
	}
	if got := testutil.ToFloat64(r.failures.WithLabelValues("1")); got != 1 {
		t.Fatalf("price range failures = %v, want 1", got)
	}
}

func TestRecordersAreIndependent(t *testing.T) {
	a, b := New(), New()
	a.ObserveDay(engine.Record{})
	if got := testutil.ToFloat64(b.days); got != 0 {
		t.Fatalf("second recorder saw %v days", got)
	}
}

func TestHandlerExposesMetrics(t *testing.T) {
	r := New()
	r.RecordRun("0", 2*time.Second)

	rec := httptest.NewRecorder()
	r.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	body, _ := io.ReadAll(rec.Body)
	if !strings.Contains(string(body), `shark_runs_total{status="0"} 1`) {
		t.Fatalf("runs counter missing from exposition:\n%s", body)
	}
}
