package sweep

import (
	"context"
	"errors"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/talgya/shark-market/internal/api"
	"github.com/talgya/shark-market/internal/config"
	"github.com/talgya/shark-market/internal/persistence"
	"github.com/talgya/shark-market/internal/runner"
)

type fakeExec struct {
	calls []Point
	fail  map[Point]error
}

func (f *fakeExec) Execute(_ context.Context, p Point) (Entry, error) {
	f.calls = append(f.calls, p)
	if err := f.fail[p]; err != nil {
		return Entry{}, err
	}
	status := "0"
	if p.Seed < 0 {
		status = "1"
	}
	return Entry{Point: p, Status: status, RorMean: p.Attention, RorVolatility: 0.01}, nil
}

func smallBase() *config.Config {
	c := config.Default()
	c.Simulation.Quarters = 1
	c.Simulation.RunsPerQuarter = 2
	c.Simulation.DaysPerQuarter = 4
	c.Market.Kind = "growth"
	return c
}

func TestPoints(t *testing.T) {
	pts := Points([]float64{0.1, 0.2}, []int64{1, 2, 3})
	if len(pts) != 6 {
		t.Fatalf("points = %d", len(pts))
	}
	if pts[0] != (Point{0.1, 1}) || pts[5] != (Point{0.2, 3}) {
		t.Fatalf("order = %v", pts)
	}
}

func TestAggregate(t *testing.T) {
	cells := Aggregate([]Entry{
		{Point: Point{0.5, 1}, Status: "0", RorMean: 0.01, RorVolatility: 0.02},
		{Point: Point{0.5, 2}, Status: "0", RorMean: 0.03, RorVolatility: 0.04},
		{Point: Point{0.1, 1}, Status: "1"},
		{Point: Point{0.1, 2}, Status: "0", RorMean: 0.02},
		{Point: Point{0.9, 1}, Error: "boom"},
	})
	if len(cells) != 3 {
		t.Fatalf("cells = %d", len(cells))
	}
	if cells[0].Attention != 0.1 || cells[0].Level != LevelFragile || cells[0].Failures != 1 {
		t.Fatalf("cell 0.1 = %+v", cells[0])
	}
	if c := cells[1]; c.Level != LevelStable || c.RorMean != 0.02 || c.VolatilityMean != 0.03 {
		t.Fatalf("cell 0.5 = %+v", c)
	}
	if cells[1].RorSpread < 0.0099 || cells[1].RorSpread > 0.0101 {
		t.Fatalf("spread = %v", cells[1].RorSpread)
	}
	if c := cells[2]; c.Level != LevelUnstable || c.FailureRate != 1 || c.RorMean != 0 {
		t.Fatalf("cell 0.9 = %+v", c)
	}
}

func TestJournalResume(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sweep.json")
	j := LoadJournal(path)
	j.Record(Entry{Point: Point{0.1, 1}, Status: "0"})
	j.Record(Entry{Point: Point{0.1, 2}, Error: "timeout"})
	if err := j.Save(); err != nil {
		t.Fatalf("save: %v", err)
	}

	again := LoadJournal(path)
	if !again.Done(Point{0.1, 1}) {
		t.Fatal("completed point not done")
	}
	if again.Done(Point{0.1, 2}) {
		t.Fatal("errored point should be retried")
	}
	again.Record(Entry{Point: Point{0.1, 2}, Status: "0"})
	if len(again.Entries) != 2 || !again.Done(Point{0.1, 2}) {
		t.Fatalf("entries = %+v", again.Entries)
	}
}

func TestJournalCorrupt(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sweep.json")
	if err := os.WriteFile(path, []byte("{not json"), 0o644); err != nil {
		t.Fatal(err)
	}
	j := LoadJournal(path)
	if len(j.Entries) != 0 || j.Path != path {
		t.Fatalf("journal = %+v", j)
	}
}

func TestRunSkipsDoneAndRecordsErrors(t *testing.T) {
	j := LoadJournal("")
	j.Record(Entry{Point: Point{0.1, 1}, Status: "0", RorMean: 0.1})
	j.Record(Entry{Point: Point{0.7, 7}, Status: "0"}) // outside the grid

	exec := &fakeExec{fail: map[Point]error{{0.2, 2}: errors.New("down")}}
	pts := Points([]float64{0.1, 0.2}, []int64{1, 2})

	cells, err := Run(context.Background(), pts, exec, j, nil)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if len(exec.calls) != 3 {
		t.Fatalf("calls = %v", exec.calls)
	}
	if len(cells) != 2 {
		t.Fatalf("cells = %+v", cells)
	}
	if cells[1].Failures != 1 || cells[1].Runs != 2 {
		t.Fatalf("cell 0.2 = %+v", cells[1])
	}
	if j.Done(Point{0.2, 2}) {
		t.Fatal("errored point marked done")
	}
}

func TestRunCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	exec := &fakeExec{}
	_, err := Run(ctx, Points([]float64{0.1}, []int64{1}), exec, LoadJournal(""), nil)
	if !errors.Is(err, context.Canceled) || len(exec.calls) != 0 {
		t.Fatalf("err=%v calls=%d", err, len(exec.calls))
	}
}

func TestLocalExecutor(t *testing.T) {
	l := &Local{Runner: &runner.Runner{}, Base: smallBase()}
	e, err := l.Execute(context.Background(), Point{Attention: 0.5, Seed: 3})
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	if e.Status != "0" || e.Seed != 3 || e.RorMean <= 0 {
		t.Fatalf("entry = %+v", e)
	}
}

func TestRemoteExecutor(t *testing.T) {
	db, err := persistence.Open(filepath.Join(t.TempDir(), "remote.db"))
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer db.Close()

	srv := &api.Server{
		DB:        db,
		Runner:    &runner.Runner{DB: db},
		Base:      smallBase(),
		AdminKey:  "k",
		RateLimit: 100,
	}
	ts := httptest.NewServer(srv.Handler())
	defer ts.Close()

	client := NewClient(ts.URL, "k")
	ctx := context.Background()
	if err := client.WaitReady(ctx, 0); err != nil {
		t.Fatalf("wait: %v", err)
	}

	cells, err := Run(ctx, Points([]float64{0.5}, []int64{1, 2}), &Remote{Client: client}, LoadJournal(""), nil)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if len(cells) != 1 || cells[0].Runs != 2 || cells[0].Failures != 0 {
		t.Fatalf("cells = %+v", cells)
	}

	runs, err := client.Runs(ctx, 10)
	if err != nil || len(runs) != 2 {
		t.Fatalf("runs = %d, %v", len(runs), err)
	}
	st, err := client.Stats(ctx, runs[0].ID)
	if err != nil || st["attention"] != 0.5 {
		t.Fatalf("stats = %v, %v", st, err)
	}
	status, err := client.Status(ctx)
	if err != nil || status.Runs != 2 {
		t.Fatalf("status = %+v, %v", status, err)
	}

	bad := NewClient(ts.URL, "wrong")
	if _, err := bad.Simulate(ctx, api.SimulateRequest{}); err == nil {
		t.Fatal("expected auth failure")
	}
}
