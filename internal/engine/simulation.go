// Simulation ties the market, broker, population, and expectation model
// together and runs them on the quarter/run/day calendar.
package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand"
	"time"

	"github.com/talgya/shark-market/internal/agents"
	"github.com/talgya/shark-market/internal/broker"
	"github.com/talgya/shark-market/internal/entropy"
	"github.com/talgya/shark-market/internal/expectations"
	"github.com/talgya/shark-market/internal/market"
)

// Recorder receives loop observations, typically for metrics export.
type Recorder interface {
	ObserveTrade(t broker.Trade, latency time.Duration)
	ObserveDay(r Record)
	ObserveFailure(reason string)
	ObserveAnomaly(kind string)
}

// Simulation holds the complete run state. It is owned by one goroutine.
type Simulation struct {
	Config Config

	Market     market.Market
	Broker     *broker.Broker
	Population *agents.Population
	Model      *expectations.Model
	Engine     *Engine

	History History

	recorder Recorder
	log      *slog.Logger
	rng      *rand.Rand // attention draws

	attendCalls int
	macroCalls  int
	started     bool
}

// Result is what a run returns, including partial runs.
type Result struct {
	History     History   `json:"history"`
	Failure     string    `json:"failure,omitempty"` // Market failure reason, verbatim
	Stopped     bool      `json:"stopped"`           // Stopped before the last run
	Ticks       int       `json:"ticks"`             // Days simulated after burn-in
	BurnIn      int       `json:"burn_in"`
	AttendCalls int       `json:"attend_calls"`
	MacroCalls  int       `json:"macro_calls"`
	Seed        int64     `json:"seed"`
	StartedAt   time.Time `json:"started_at"`
	EndedAt     time.Time `json:"ended_at"`
}

// Elapsed is the wall time of the run.
func (r *Result) Elapsed() time.Duration { return r.EndedAt.Sub(r.StartedAt) }

// Failed reports whether the run ended on a market failure.
func (r *Result) Failed() bool { return r.Failure != "" }

// NewSimulation creates a Simulation from its components. The attention
// stream is derived from cfg.Seed.
func NewSimulation(cfg Config, m market.Market, pop *agents.Population, model *expectations.Model, logger *slog.Logger) (*Simulation, error) {
	if cfg.MacroPrice == "" {
		cfg.MacroPrice = MacroPriceCleared
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	if m == nil || pop == nil || model == nil {
		return nil, errors.New("market, population, and model are required")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Simulation{
		Config:     cfg,
		Market:     m,
		Broker:     broker.New(m),
		Population: pop,
		Model:      model,
		Engine:     NewEngine(cfg.DaysPerQuarter, cfg.RunsPerQuarter, logger),
		log:        logger,
		rng:        entropy.New(cfg.Seed, entropy.StreamAttention),
	}, nil
}

// SetRecorder attaches r to the loop and to the population's anomaly log.
func (s *Simulation) SetRecorder(r Recorder) {
	s.recorder = r
	if r == nil {
		s.Population.Anomalies.OnAnomaly = nil
		return
	}
	s.Population.Anomalies.OnAnomaly = func(kind agents.AnomalyKind) {
		r.ObserveAnomaly(kind.String())
	}
}

// AttendCalls returns how many times an agent attended.
func (s *Simulation) AttendCalls() int { return s.attendCalls }

func (s *Simulation) price() float64 {
	prices := s.Market.Prices()
	return prices[len(prices)-1]
}

func (s *Simulation) updateExpectations() expectations.Expectations {
	return s.Model.UpdateFromHistory(s.Market.Prices(), s.Market.Dividends())
}

// Start assigns initial holdings, runs the burn-in phase with no agent
// activity, and takes the initial snapshot. Burn-in clears advance the
// market and broker logs but write no history records.
func (s *Simulation) Start() error {
	if s.started {
		return errors.New("simulation already started")
	}
	s.started = true

	s.updateExpectations()
	s.Population.InitShares(s.price())

	for i := 0; i < s.Config.BurnIn; i++ {
		t, err := s.Broker.Trade(false)
		if err != nil {
			return fmt.Errorf("burn-in tick %d: %w", i, err)
		}
		s.Population.UpdateWealth(t.Price, t.Return, t.Dividend)
		s.updateExpectations()
	}

	s.History.Initial = s.record(-1, 0)
	s.log.Info("simulation started",
		"agents", len(s.Population.Agents),
		"burn_in", s.Config.BurnIn,
		"price", s.price(),
		"total_assets", s.History.Initial.TotalAssets,
	)
	return nil
}

// Run executes every run of every quarter. A market failure ends the run
// early: the returned Result carries the partial history and the failure
// reason, and the error is nil. Context cancellation stops the loop between
// runs and is returned as the error alongside the partial Result.
func (s *Simulation) Run(ctx context.Context) (*Result, error) {
	res := &Result{
		BurnIn:    s.Config.BurnIn,
		Seed:      s.Config.Seed,
		StartedAt: time.Now(),
	}

	err := s.loop(ctx)

	res.EndedAt = time.Now()
	res.History = s.History
	res.Ticks = int(s.Engine.Tick)
	res.AttendCalls = s.attendCalls
	res.MacroCalls = s.macroCalls

	if fe, ok := market.AsFailure(err); ok {
		res.Failure = fe.Reason
		s.log.Warn("market failure, run ended early",
			"reason", fe.Reason,
			"tick", s.Engine.Tick,
			"records", s.History.Len(),
		)
		if s.recorder != nil {
			s.recorder.ObserveFailure(fe.Reason)
		}
		return res, nil
	}
	res.Stopped = s.Engine.Run < s.Config.Quarters*s.Config.RunsPerQuarter
	if err != nil {
		return res, err
	}

	s.log.Info("simulation finished",
		"ticks", res.Ticks,
		"attend_calls", res.AttendCalls,
		"anomalies", s.Population.Anomalies.Total(),
		"elapsed", res.Elapsed(),
	)
	return res, nil
}

func (s *Simulation) loop(ctx context.Context) error {
	if !s.started {
		if err := s.Start(); err != nil {
			return err
		}
	}

	cfg := s.Config
	daysPerRun := cfg.DaysPerRun()
	totalRuns := cfg.Quarters * cfg.RunsPerQuarter

	s.Engine.Running = true
	defer func() { s.Engine.Running = false }()

	for run := s.Engine.Run; run < totalRuns; run++ {
		if !s.Engine.Running {
			return nil
		}
		if err := ctx.Err(); err != nil {
			s.Engine.Stop()
			return err
		}

		quarter := run / cfg.RunsPerQuarter
		firstDay := (run % cfg.RunsPerQuarter) * daysPerRun
		if err := s.step(quarter, firstDay, daysPerRun, run == totalRuns-1); err != nil {
			return err
		}
		s.Engine.run()
	}
	return nil
}

// step runs one market clear and the days it spans: attention, trade, then
// per day macro updates, sub-day extrapolation, wealth, history, and
// expectations.
func (s *Simulation) step(quarter, firstDay, days int, final bool) error {
	prePrice := s.price()
	beliefs := s.Model.Current().Beliefs

	for _, a := range s.Population.Agents {
		if s.rng.Float64() < s.Config.AttentionRate {
			s.attendCalls++
			delta := s.Population.Attend(a, prePrice, beliefs)
			s.Broker.Transact(market.OrderFromDelta(delta), false)
		}
	}

	start := time.Now()
	trade, err := s.Broker.Trade(final)
	if err != nil {
		return err
	}
	if s.recorder != nil {
		s.recorder.ObserveTrade(trade, time.Since(start))
	}

	price, ror, dividend := trade.Price, trade.Return, trade.Dividend
	for d := 0; d < days; d++ {
		day := firstDay + d

		macroPrice := s.price()
		if s.Config.MacroPrice == MacroPricePreClear {
			macroPrice = prePrice
		}
		for _, a := range s.Population.Agents {
			if a.MacroDay == day {
				s.macroCalls++
				delta := s.Population.MacroUpdate(a, macroPrice)
				s.Broker.Transact(market.OrderFromDelta(delta), true)
			}
		}

		if d > 0 {
			s.Broker.Track(market.Order{}, market.Order{})
			q := s.Market.Extrapolate()
			price, dividend = q.Price, q.Dividend
			ror = market.RateOfReturn(s.Market.Prices())
		}

		s.Population.UpdateWealth(price, ror, dividend)

		r := s.record(quarter*s.Config.DaysPerQuarter+day, quarter)
		s.History.append(r)
		if s.recorder != nil {
			s.recorder.ObserveDay(r)
		}

		s.updateExpectations()
		s.Engine.day()
	}
	return nil
}

// record snapshots the population and the latest realized order flow. day
// is the absolute day after burn-in; the initial snapshot uses -1.
func (s *Simulation) record(day, quarter int) Record {
	r := Record{
		Day:         day,
		Quarter:     quarter,
		TotalAssets: s.Population.TotalAssets(),
		OwnedShares: s.Population.TotalShares(),
		MeanIncome:  s.Population.MeanIncome(),
	}
	if day >= 0 {
		r.TotalConsumption = s.Population.Consumption(day % s.Config.DaysPerQuarter)
	}
	if n := len(s.Broker.History); n > 0 {
		r.Buy, r.Sell = s.Broker.History[n-1].Buy, s.Broker.History[n-1].Sell
		m := s.Broker.MacroHistory[n-1]
		r.BuyMacro, r.SellMacro = m.Buy, m.Sell
	}
	return r
}

// Close releases the market.
func (s *Simulation) Close() error {
	return s.Broker.Close()
}
