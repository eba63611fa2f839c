package expectations

import (
	"math"
	"testing"
)

func TestCurrentBeforeUpdatePanics(t *testing.T) {
	m, err := New(DefaultParams())
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	defer func() {
		if recover() == nil {
			t.Fatalf("Current before update did not panic")
		}
	}()
	m.Current()
}

func TestShortHistoryUsesPrior(t *testing.T) {
	p := DefaultParams()
	m, _ := New(p)
	e := m.UpdateFromHistory([]float64{100}, []float64{0})
	if e.DailyReturn != p.PriorReturn || e.DailyStd != p.PriorStd {
		t.Fatalf("expectations = %+v, want prior", e)
	}
	wantAvg := 1 + QuarterlyReturn(p.PriorReturn, p.DaysPerQuarter)
	if math.Abs(e.RiskyAvg-wantAvg) > 1e-15 {
		t.Fatalf("risky avg = %v, want %v", e.RiskyAvg, wantAvg)
	}
	if m.Current() != e {
		t.Fatalf("current does not match last update")
	}
	if p.PriorBeliefs() != e.Beliefs {
		t.Fatalf("prior beliefs = %+v, want %+v", p.PriorBeliefs(), e.Beliefs)
	}
}

func TestConstantReturnsFullWeight(t *testing.T) {
	p := DefaultParams()
	p.P1, p.P2 = 0.5, 0.5
	m, _ := New(p)

	prices := []float64{100}
	divs := []float64{0}
	for i := 0; i < 30; i++ {
		next := prices[len(prices)-1] * 1.01
		prices = append(prices, next)
		divs = append(divs, 0)
	}
	e := m.UpdateFromHistory(prices, divs)
	if math.Abs(e.DailyReturn-0.01) > 1e-12 {
		t.Fatalf("daily return = %v, want 0.01", e.DailyReturn)
	}
	if e.DailyStd > 1e-6 {
		t.Fatalf("daily std = %v, want ~0", e.DailyStd)
	}
}

func TestDeterministic(t *testing.T) {
	prices := []float64{100, 101, 99, 102, 98, 103}
	divs := []float64{0, 0.1, 0.1, 0.1, 0.1, 0.1}
	a, _ := New(DefaultParams())
	b, _ := New(DefaultParams())
	if a.UpdateFromHistory(prices, divs) != b.UpdateFromHistory(prices, divs) {
		t.Fatalf("identical inputs gave different expectations")
	}
}

func TestOverwriteNotMerge(t *testing.T) {
	m, _ := New(DefaultParams())
	m.UpdateFromHistory([]float64{100, 120}, []float64{0, 0})
	second := m.UpdateFromHistory([]float64{100}, []float64{0})
	if m.Current() != second {
		t.Fatalf("current should be the latest update")
	}
	if len(m.ExpectedReturns()) != 2 || len(m.ExpectedStds()) != 2 {
		t.Fatalf("expected one log entry per update")
	}
}

func TestValidate(t *testing.T) {
	p := DefaultParams()
	p.P1, p.P2 = 0.7, 0.7
	if _, err := New(p); err == nil {
		t.Fatalf("weights summing above one accepted")
	}
	p = DefaultParams()
	p.Window2 = 0
	if _, err := New(p); err == nil {
		t.Fatalf("zero window accepted")
	}
}

func TestCombineLognormalRatesWithRiskless(t *testing.T) {
	ror, std := CombineLognormalRates(0.01, 0.1, 0, 0)
	if math.Abs(ror-0.01) > 1e-12 || math.Abs(std-0.1) > 1e-12 {
		t.Fatalf("combined = (%v, %v), want (0.01, 0.1)", ror, std)
	}
}
