// Package persistence provides SQLite-based storage of finished runs: their
// parameters, per-day table, final agent states, and summary statistics.
package persistence

import (
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"

	"github.com/talgya/shark-market/internal/agents"
	"github.com/talgya/shark-market/internal/engine"
	"github.com/talgya/shark-market/internal/report"
)

// ErrNotFound is returned when a run ID is unknown.
var ErrNotFound = errors.New("run not found")

// DB wraps a SQLite connection for run storage.
type DB struct {
	conn *sqlx.DB
}

// Open opens or creates a SQLite database at the given path.
func Open(path string) (*DB, error) {
	conn, err := sqlx.Open("sqlite", path+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}

	db := &DB{conn: conn}
	if err := db.migrate(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}

	return db, nil
}

// Close closes the database connection.
func (db *DB) Close() error {
	return db.conn.Close()
}

func (db *DB) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS runs (
		id TEXT PRIMARY KEY,
		started_at TEXT NOT NULL,
		ended_at TEXT NOT NULL,
		seconds REAL NOT NULL,
		seed INTEGER NOT NULL,
		status TEXT NOT NULL,
		failure TEXT NOT NULL,
		ticks INTEGER NOT NULL,
		burn_in INTEGER NOT NULL,
		attention REAL NOT NULL,
		market_kind TEXT NOT NULL,
		agents INTEGER NOT NULL,
		config_yaml TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS ticks (
		run_id TEXT NOT NULL,
		t INTEGER NOT NULL,
		price REAL NOT NULL,
		dividend REAL NOT NULL,
		buy REAL NOT NULL,
		sell REAL NOT NULL,
		buy_macro REAL NOT NULL,
		sell_macro REAL NOT NULL,
		ror REAL NOT NULL,
		expected_ror REAL NOT NULL,
		expected_std REAL NOT NULL,
		owned REAL NOT NULL,
		total_assets REAL NOT NULL,
		mean_income REAL NOT NULL,
		total_consumption REAL NOT NULL,
		PRIMARY KEY (run_id, t)
	);

	CREATE TABLE IF NOT EXISTS agents (
		run_id TEXT NOT NULL,
		id INTEGER NOT NULL,
		class TEXT NOT NULL,
		a_nrm REAL NOT NULL,
		p_lvl REAL NOT NULL,
		shares REAL NOT NULL,
		c_nrm REAL NOT NULL,
		risky_share REAL NOT NULL,
		macro_day INTEGER NOT NULL,
		risky_avg REAL NOT NULL,
		risky_std REAL NOT NULL,
		PRIMARY KEY (run_id, id)
	);

	CREATE TABLE IF NOT EXISTS stats (
		run_id TEXT NOT NULL,
		key TEXT NOT NULL,
		value REAL NOT NULL,
		PRIMARY KEY (run_id, key)
	);

	CREATE TABLE IF NOT EXISTS meta (
		key TEXT PRIMARY KEY,
		value TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_runs_started ON runs(started_at);
	`
	_, err := db.conn.Exec(schema)
	return err
}

// Run is the stored header of one simulation run.
type Run struct {
	ID            string  `db:"id" json:"id"`
	StartedAt     string  `db:"started_at" json:"started_at"`
	EndedAt       string  `db:"ended_at" json:"ended_at"`
	Seconds       float64 `db:"seconds" json:"seconds"`
	Seed          int64   `db:"seed" json:"seed"`
	Status        string  `db:"status" json:"status"`
	Failure       string  `db:"failure" json:"failure,omitempty"`
	Ticks         int     `db:"ticks" json:"ticks"`
	BurnIn        int     `db:"burn_in" json:"burn_in"`
	AttentionRate float64 `db:"attention" json:"attention"`
	MarketKind    string  `db:"market_kind" json:"market_kind"`
	Agents        int     `db:"agents" json:"agents"`
	ConfigYAML    string  `db:"config_yaml" json:"-"`
}

// NewRun builds a run header with a fresh ID from a finished run.
func NewRun(res *engine.Result, s report.Summary, marketKind string, agentCount int, configYAML string) Run {
	return Run{
		ID:            uuid.NewString(),
		StartedAt:     res.StartedAt.UTC().Format(time.RFC3339Nano),
		EndedAt:       res.EndedAt.UTC().Format(time.RFC3339Nano),
		Seconds:       res.Elapsed().Seconds(),
		Seed:          res.Seed,
		Status:        s.Status,
		Failure:       res.Failure,
		Ticks:         res.Ticks,
		BurnIn:        res.BurnIn,
		AttentionRate: s.AttentionRate,
		MarketKind:    marketKind,
		Agents:        agentCount,
		ConfigYAML:    configYAML,
	}
}

// AgentRow is the final state of one agent.
type AgentRow struct {
	RunID      string  `db:"run_id" json:"-"`
	ID         uint64  `db:"id" json:"id"`
	Class      string  `db:"class" json:"class"`
	AssetsNrm  float64 `db:"a_nrm" json:"a_nrm"`
	IncomeLvl  float64 `db:"p_lvl" json:"p_lvl"`
	Shares     float64 `db:"shares" json:"shares"`
	ConsNrm    float64 `db:"c_nrm" json:"c_nrm"`
	RiskyShare float64 `db:"risky_share" json:"risky_share"`
	MacroDay   int     `db:"macro_day" json:"macro_day"`
	RiskyAvg   float64 `db:"risky_avg" json:"risky_avg"`
	RiskyStd   float64 `db:"risky_std" json:"risky_std"`
}

type tickRow struct {
	RunID string `db:"run_id"`
	report.Row
}

// SaveRun writes a run and everything recorded for it in one transaction.
func (db *DB) SaveRun(run Run, rows []report.Row, agentList []*agents.Agent, stats map[string]float64) error {
	tx, err := db.conn.Beginx()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	_, err = tx.NamedExec(`INSERT INTO runs
		(id, started_at, ended_at, seconds, seed, status, failure, ticks, burn_in,
		 attention, market_kind, agents, config_yaml)
		VALUES (:id, :started_at, :ended_at, :seconds, :seed, :status, :failure, :ticks, :burn_in,
		 :attention, :market_kind, :agents, :config_yaml)`, run)
	if err != nil {
		return fmt.Errorf("insert run: %w", err)
	}

	tickStmt, err := tx.PrepareNamed(`INSERT INTO ticks
		(run_id, t, price, dividend, buy, sell, buy_macro, sell_macro, ror,
		 expected_ror, expected_std, owned, total_assets, mean_income, total_consumption)
		VALUES (:run_id, :t, :price, :dividend, :buy, :sell, :buy_macro, :sell_macro, :ror,
		 :expected_ror, :expected_std, :owned, :total_assets, :mean_income, :total_consumption)`)
	if err != nil {
		return err
	}
	defer tickStmt.Close()

	for _, r := range rows {
		if _, err := tickStmt.Exec(tickRow{RunID: run.ID, Row: r}); err != nil {
			return fmt.Errorf("insert tick %d: %w", r.T, err)
		}
	}

	agentStmt, err := tx.PrepareNamed(`INSERT INTO agents
		(run_id, id, class, a_nrm, p_lvl, shares, c_nrm, risky_share, macro_day, risky_avg, risky_std)
		VALUES (:run_id, :id, :class, :a_nrm, :p_lvl, :shares, :c_nrm, :risky_share, :macro_day, :risky_avg, :risky_std)`)
	if err != nil {
		return err
	}
	defer agentStmt.Close()

	for _, a := range agentList {
		row := AgentRow{
			RunID:      run.ID,
			ID:         uint64(a.ID),
			Class:      a.Class,
			AssetsNrm:  a.AssetsNormalized,
			IncomeLvl:  a.PermanentIncome,
			Shares:     a.Shares,
			ConsNrm:    a.Consumption,
			RiskyShare: a.RiskyShare,
			MacroDay:   a.MacroDay,
			RiskyAvg:   a.Beliefs.RiskyAvg,
			RiskyStd:   a.Beliefs.RiskyStd,
		}
		if _, err := agentStmt.Exec(row); err != nil {
			return fmt.Errorf("insert agent %d: %w", a.ID, err)
		}
	}

	for k, v := range stats {
		if _, err := tx.Exec("INSERT INTO stats (run_id, key, value) VALUES (?, ?, ?)", run.ID, k, v); err != nil {
			return fmt.Errorf("insert stat %s: %w", k, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return err
	}
	slog.Info("run saved", "id", run.ID, "ticks", len(rows), "agents", len(agentList), "status", run.Status)
	return nil
}

// ListRuns returns the most recent runs, newest first.
func (db *DB) ListRuns(limit int) ([]Run, error) {
	runs := []Run{}
	err := db.conn.Select(&runs, "SELECT * FROM runs ORDER BY started_at DESC LIMIT ?", limit)
	return runs, err
}

// GetRun returns one run header.
func (db *DB) GetRun(id string) (Run, error) {
	var run Run
	err := db.conn.Get(&run, "SELECT * FROM runs WHERE id = ?", id)
	if errors.Is(err, sql.ErrNoRows) {
		return run, ErrNotFound
	}
	return run, err
}

// Ticks returns the per-day table of a run in order.
func (db *DB) Ticks(id string) ([]report.Row, error) {
	rows := []report.Row{}
	err := db.conn.Select(&rows, `SELECT t, price, dividend, buy, sell, buy_macro, sell_macro, ror,
		expected_ror, expected_std, owned, total_assets, mean_income, total_consumption
		FROM ticks WHERE run_id = ? ORDER BY t`, id)
	return rows, err
}

// Agents returns the final agent states of a run.
func (db *DB) Agents(id string) ([]AgentRow, error) {
	rows := []AgentRow{}
	err := db.conn.Select(&rows, "SELECT * FROM agents WHERE run_id = ? ORDER BY id", id)
	return rows, err
}

// Stats returns the summary statistics of a run.
func (db *DB) Stats(id string) (map[string]float64, error) {
	var kvs []struct {
		Key   string  `db:"key"`
		Value float64 `db:"value"`
	}
	if err := db.conn.Select(&kvs, "SELECT key, value FROM stats WHERE run_id = ?", id); err != nil {
		return nil, err
	}
	out := make(map[string]float64, len(kvs))
	for _, kv := range kvs {
		out[kv.Key] = kv.Value
	}
	return out, nil
}

// CountRuns returns the number of stored runs.
func (db *DB) CountRuns() (int, error) {
	var n int
	err := db.conn.Get(&n, "SELECT COUNT(*) FROM runs")
	return n, err
}

// SaveMeta stores a key-value pair.
func (db *DB) SaveMeta(key, value string) error {
	_, err := db.conn.Exec(
		"INSERT OR REPLACE INTO meta (key, value) VALUES (?, ?)",
		key, value,
	)
	return err
}

// GetMeta retrieves a metadata value.
func (db *DB) GetMeta(key string) (string, error) {
	var value string
	err := db.conn.Get(&value, "SELECT value FROM meta WHERE key = ?", key)
	return value, err
}
