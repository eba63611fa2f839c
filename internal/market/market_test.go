package market

import (
	"errors"
	"math"
	"strings"
	"testing"
)

func TestOrderFromDelta(t *testing.T) {
	cases := []struct {
		delta float64
		want  Order
	}{
		{3.5, Order{Buy: 3.5}},
		{-2, Order{Sell: 2}},
		{0, Order{}},
	}
	for _, tc := range cases {
		got := OrderFromDelta(tc.delta)
		if got != tc.want {
			t.Errorf("OrderFromDelta(%v) = %+v, want %+v", tc.delta, got, tc.want)
		}
		if got.Net() != tc.delta {
			t.Errorf("Net() = %v, want %v", got.Net(), tc.delta)
		}
	}
}

func TestOrderValidate(t *testing.T) {
	if err := (Order{Buy: 1, Sell: 2}).Validate(); err != nil {
		t.Fatalf("valid order rejected: %v", err)
	}
	if err := (Order{Sell: -1}).Validate(); err == nil {
		t.Fatalf("negative sell accepted")
	}
	if err := (Order{Buy: math.NaN()}).Validate(); err == nil {
		t.Fatalf("NaN buy accepted")
	}
}

func TestGrowthMarket(t *testing.T) {
	g := NewGrowth(100, 0.01, 1200)
	q, err := g.Clear(Order{}, false)
	if err != nil {
		t.Fatalf("clear: %v", err)
	}
	if math.Abs(q.Price-101) > 1e-12 {
		t.Fatalf("price = %v, want 101", q.Price)
	}
	if math.Abs(q.Dividend-101.0/1200) > 1e-15 {
		t.Fatalf("dividend = %v, want %v", q.Dividend, 101.0/1200)
	}
	if q.End {
		t.Fatalf("end signal set on non-final clear")
	}
	q, _ = g.Clear(Order{}, true)
	if !q.End {
		t.Fatalf("end signal missing on final clear")
	}
	if n := len(g.Prices()); n != 3 {
		t.Fatalf("len(prices) = %d, want 3", n)
	}
	if len(g.Dividends()) != len(g.Prices()) {
		t.Fatalf("dividend history misaligned")
	}
}

func TestExtrapolateRepeatsLastRatio(t *testing.T) {
	g := NewGrowth(100, 0.02, 1200)
	g.Clear(Order{}, false)
	q := g.Extrapolate()
	want := 102 * 1.02
	if math.Abs(q.Price-want) > 1e-9 {
		t.Fatalf("extrapolated price = %v, want %v", q.Price, want)
	}
	if len(g.Prices()) != 3 || len(g.Dividends()) != 3 {
		t.Fatalf("extrapolate must append one tick")
	}
}

func TestMockDeterministicPerSeed(t *testing.T) {
	a := NewMock(DefaultParams(), 7)
	b := NewMock(DefaultParams(), 7)
	for i := 0; i < 50; i++ {
		qa, _ := a.Clear(Order{}, false)
		qb, _ := b.Clear(Order{}, false)
		if qa != qb {
			t.Fatalf("tick %d: %+v != %+v", i, qa, qb)
		}
		if qa.Price <= 0 {
			t.Fatalf("non-positive price %v", qa.Price)
		}
	}
}

func TestImpactBandFailure(t *testing.T) {
	p := DefaultParams()
	p.Kind = KindImpact
	p.MinPrice = 99.999
	p.MaxPrice = 100.001
	p.DailyStd = 0.2
	m, err := New(p, 3)
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	_, err = m.Clear(Order{Buy: 1e6}, false)
	fe, ok := AsFailure(err)
	if !ok {
		t.Fatalf("expected failure error, got %v", err)
	}
	if !strings.Contains(fe.Reason, "Hit market maker price range") {
		t.Fatalf("unexpected reason %q", fe.Reason)
	}
	if len(m.Prices()) != 1 {
		t.Fatalf("failed clear must not extend history")
	}
}

func TestImpactOrderLimit(t *testing.T) {
	p := DefaultParams()
	p.Kind = KindImpact
	p.MaxOrder = 10
	m, _ := New(p, 1)
	_, err := m.Clear(Order{Sell: 11}, false)
	fe, ok := AsFailure(err)
	if !ok || !strings.Contains(fe.Reason, "Error in received data") {
		t.Fatalf("expected received-data failure, got %v", err)
	}
}

func TestNoiseMarketDeterministic(t *testing.T) {
	p := DefaultParams()
	p.Kind = KindNoise
	a, _ := New(p, 11)
	b, _ := New(p, 11)
	for i := 0; i < 20; i++ {
		qa, _ := a.Clear(Order{}, i == 19)
		qb, _ := b.Clear(Order{}, i == 19)
		if qa != qb {
			t.Fatalf("tick %d differs", i)
		}
	}
}

func TestScriptedFailure(t *testing.T) {
	s := NewScripted(100, 1.01)
	s.FailAt = 2
	s.FailReason = "boom"
	for i := 0; i < 2; i++ {
		if _, err := s.Clear(Order{}, false); err != nil {
			t.Fatalf("clear %d: %v", i, err)
		}
	}
	_, err := s.Clear(Order{}, false)
	if fe, ok := AsFailure(err); !ok || fe.Reason != "boom" {
		t.Fatalf("expected scripted failure, got %v", err)
	}
}

func TestClosedMarket(t *testing.T) {
	g := NewGrowth(100, 0, 1200)
	if err := g.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	if err := g.Close(); err != nil {
		t.Fatalf("second close: %v", err)
	}
	if _, err := g.Clear(Order{}, false); !errors.Is(err, ErrClosed) {
		t.Fatalf("clear after close = %v, want ErrClosed", err)
	}
}

func TestNewUnknownKind(t *testing.T) {
	p := DefaultParams()
	p.Kind = "netlogo"
	if _, err := New(p, 0); err == nil {
		t.Fatalf("unknown kind accepted")
	}
}

func TestReturnsAndStats(t *testing.T) {
	prices := []float64{100, 110, 99}
	divs := []float64{0, 1, 0}
	r := ReturnsWithDividend(prices, divs)
	if len(r) != 2 || math.Abs(r[0]-0.11) > 1e-12 || math.Abs(r[1]-(-0.1)) > 1e-12 {
		t.Fatalf("returns = %v", r)
	}
	if got := RateOfReturn(prices); math.Abs(got-(-0.1)) > 1e-12 {
		t.Fatalf("rate of return = %v", got)
	}
	ps := SummarizePrices(prices)
	if ps.Max != 110 || ps.IdxMax != 1 || ps.Min != 99 || ps.IdxMin != 2 {
		t.Fatalf("price stats = %+v", ps)
	}
}
