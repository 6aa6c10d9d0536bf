// Package persistence provides SQLite-based checkpoint storage: the current
// record of every firm and the value table behind its policy. Each save
// replaces the previous checkpoint.
package persistence

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"

	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"

	"github.com/talgya/firmsim/internal/engine"
	"github.com/talgya/firmsim/internal/firm"
	"github.com/talgya/firmsim/internal/learn"
)

// DB wraps a SQLite connection for checkpoint persistence.
type DB struct {
	conn *sqlx.DB
}

// Open opens or creates a SQLite database at the given path.
func Open(path string) (*DB, error) {
	conn, err := sqlx.Open("sqlite", path+"?_journal_mode=WAL&_busy_timeout=5000")
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

// OpenMemory opens a private in-memory database.
func OpenMemory() (*DB, error) {
	conn, err := sqlx.Open("sqlite", "file::memory:")
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	// Every pooled connection would get its own empty database.
	conn.SetMaxOpenConns(1)

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
	CREATE TABLE IF NOT EXISTS firms (
		id TEXT PRIMARY KEY,
		kind TEXT NOT NULL,
		params_json TEXT NOT NULL,
		state_json TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS policies (
		firm_id TEXT NOT NULL,
		state INTEGER NOT NULL,
		action INTEGER NOT NULL,
		value REAL NOT NULL,
		PRIMARY KEY (firm_id, state, action)
	);

	CREATE TABLE IF NOT EXISTS world_meta (
		key TEXT PRIMARY KEY,
		value TEXT NOT NULL
	);
	`
	_, err := db.conn.Exec(schema)
	return err
}

// FirmRecord is one saved firm.
type FirmRecord struct {
	ID     string
	Kind   firm.Kind
	Params firm.Params
	State  firm.State
}

type firmRow struct {
	ID         string `db:"id"`
	Kind       string `db:"kind"`
	ParamsJSON string `db:"params_json"`
	StateJSON  string `db:"state_json"`
}

// SaveFirms replaces the saved firms with the given ones.
func (db *DB) SaveFirms(firms []*firm.Firm) error {
	tx, err := db.conn.Beginx()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.Exec("DELETE FROM firms"); err != nil {
		return err
	}

	stmt, err := tx.Preparex(`INSERT INTO firms (id, kind, params_json, state_json) VALUES (?, ?, ?, ?)`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, f := range firms {
		paramsJSON, err := json.Marshal(f.Params())
		if err != nil {
			return fmt.Errorf("encode params %s: %w", f.ID(), err)
		}
		stateJSON, err := json.Marshal(f.Snapshot())
		if err != nil {
			return fmt.Errorf("encode state %s: %w", f.ID(), err)
		}
		if _, err := stmt.Exec(f.ID(), string(f.Kind()), string(paramsJSON), string(stateJSON)); err != nil {
			return fmt.Errorf("insert firm %s: %w", f.ID(), err)
		}
	}

	return tx.Commit()
}

// LoadFirms returns every saved firm, by ID.
func (db *DB) LoadFirms() (map[string]FirmRecord, error) {
	var rows []firmRow
	if err := db.conn.Select(&rows, "SELECT id, kind, params_json, state_json FROM firms ORDER BY id"); err != nil {
		return nil, err
	}

	out := make(map[string]FirmRecord, len(rows))
	for _, r := range rows {
		rec := FirmRecord{ID: r.ID, Kind: firm.Kind(r.Kind)}
		if err := json.Unmarshal([]byte(r.ParamsJSON), &rec.Params); err != nil {
			return nil, fmt.Errorf("decode params %s: %w", r.ID, err)
		}
		if err := json.Unmarshal([]byte(r.StateJSON), &rec.State); err != nil {
			return nil, fmt.Errorf("decode state %s: %w", r.ID, err)
		}
		out[r.ID] = rec
	}
	return out, nil
}

// SavePolicies replaces the saved value tables, keyed by firm ID.
func (db *DB) SavePolicies(policies map[string]*learn.QLearner) error {
	tx, err := db.conn.Beginx()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.Exec("DELETE FROM policies"); err != nil {
		return err
	}

	stmt, err := tx.Preparex(`INSERT INTO policies (firm_id, state, action, value) VALUES (?, ?, ?, ?)`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for id, p := range policies {
		for _, e := range p.Table() {
			if _, err := stmt.Exec(id, e.State, e.Action, e.Value); err != nil {
				return fmt.Errorf("insert policy %s (%d,%d): %w", id, e.State, e.Action, err)
			}
		}
	}

	return tx.Commit()
}

// LoadPolicy returns the saved value table of one firm.
func (db *DB) LoadPolicy(firmID string) ([]learn.Entry, error) {
	var entries []learn.Entry
	err := db.conn.Select(&entries,
		"SELECT state, action, value FROM policies WHERE firm_id = ? ORDER BY state, action",
		firmID,
	)
	return entries, err
}

// SaveMeta stores a key-value pair in world metadata.
func (db *DB) SaveMeta(key, value string) error {
	_, err := db.conn.Exec(
		"INSERT OR REPLACE INTO world_meta (key, value) VALUES (?, ?)",
		key, value,
	)
	return err
}

// GetMeta retrieves a metadata value.
func (db *DB) GetMeta(key string) (string, error) {
	var value string
	err := db.conn.Get(&value, "SELECT value FROM world_meta WHERE key = ?", key)
	return value, err
}

// HasState reports whether a checkpoint has been saved.
func (db *DB) HasState() bool {
	var n int
	if err := db.conn.Get(&n, "SELECT COUNT(*) FROM firms"); err != nil {
		return false
	}
	return n > 0
}

// SaveSimulation checkpoints every firm, its policy and the day counter.
func (db *DB) SaveSimulation(sim *engine.Simulation) error {
	day := sim.LastDay()
	slog.Info("saving checkpoint", "day", day, "firms", len(sim.Firms))

	if err := db.SaveFirms(sim.Firms); err != nil {
		return fmt.Errorf("save firms: %w", err)
	}
	if err := db.SavePolicies(sim.Policies); err != nil {
		return fmt.Errorf("save policies: %w", err)
	}
	if err := db.SaveMeta("last_day", strconv.FormatUint(day, 10)); err != nil {
		return fmt.Errorf("save meta: %w", err)
	}

	slog.Info("checkpoint saved", "day", day)
	return nil
}

// RestoreSimulation loads the checkpoint into the firms of sim that match a
// saved firm by ID and kind, and returns the saved day. Parameters always
// come from the running configuration. Rosters are not restored: workers
// are rehired as the firms replan.
func (db *DB) RestoreSimulation(sim *engine.Simulation) (uint64, error) {
	records, err := db.LoadFirms()
	if err != nil {
		return 0, fmt.Errorf("load firms: %w", err)
	}

	restored := 0
	for _, f := range sim.Firms {
		rec, ok := records[f.ID()]
		if !ok {
			continue
		}
		if rec.Kind != f.Kind() {
			slog.Warn("checkpoint kind mismatch, starting fresh", "firm", f.ID(), "saved", rec.Kind, "configured", f.Kind())
			continue
		}
		if rec.Params != f.Params() {
			slog.Warn("firm parameters changed since checkpoint", "firm", f.ID())
		}
		st := rec.State
		st.WorkerChange = 0
		f.Restore(st)

		if p, ok := sim.Policies[f.ID()]; ok {
			entries, err := db.LoadPolicy(f.ID())
			if err != nil {
				return 0, fmt.Errorf("load policy %s: %w", f.ID(), err)
			}
			if err := p.Load(entries); err != nil {
				return 0, fmt.Errorf("policy %s: %w", f.ID(), err)
			}
		}
		restored++
	}

	var day uint64
	if s, err := db.GetMeta("last_day"); err == nil {
		day, _ = strconv.ParseUint(s, 10, 64)
	}
	sim.SetLastDay(day)

	slog.Info("checkpoint restored", "day", day, "firms", restored, "saved_firms", len(records))
	return day, nil
}
