// Package persistence provides SQLite-based storage of pop ledgers, desire
// baselines and cycle reports.
package persistence

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strconv"

	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"

	"github.com/talgya/mini-economy/internal/agents"
	"github.com/talgya/mini-economy/internal/catalog"
	"github.com/talgya/mini-economy/internal/desire"
	"github.com/talgya/mini-economy/internal/economy"
	"github.com/talgya/mini-economy/internal/engine"
)

// DB wraps a SQLite connection for economy state persistence.
type DB struct {
	conn *sqlx.DB
}

// Open opens or creates a SQLite database at the given path.
func Open(path string) (*DB, error) {
	conn, err := sqlx.Open("sqlite", path+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	// One writer; pop cycles run in parallel but recording is serial.
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
	CREATE TABLE IF NOT EXISTS pops (
		id INTEGER PRIMARY KEY,
		name TEXT NOT NULL,
		size REAL NOT NULL,
		cycles INTEGER NOT NULL,
		definitions_json TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS holdings (
		pop_id INTEGER NOT NULL,
		product TEXT NOT NULL,
		total REAL NOT NULL,
		reserved REAL NOT NULL,
		consumed REAL NOT NULL,
		PRIMARY KEY (pop_id, product)
	);

	CREATE TABLE IF NOT EXISTS desires (
		pop_id INTEGER NOT NULL,
		kind TEXT NOT NULL,
		target TEXT NOT NULL,
		start_tier INTEGER NOT NULL,
		amount REAL NOT NULL,
		step INTEGER NOT NULL,
		end_tier INTEGER,
		consumed INTEGER NOT NULL,
		satisfaction REAL NOT NULL,
		reserved REAL NOT NULL,
		PRIMARY KEY (pop_id, kind, target, start_tier)
	);

	CREATE TABLE IF NOT EXISTS unclaimed_wants (
		pop_id INTEGER NOT NULL,
		want TEXT NOT NULL,
		quantity REAL NOT NULL,
		PRIMARY KEY (pop_id, want)
	);

	CREATE TABLE IF NOT EXISTS cycles (
		id TEXT PRIMARY KEY,
		cycle INTEGER NOT NULL,
		pop_id INTEGER NOT NULL,
		full_tier INTEGER NOT NULL,
		health REAL NOT NULL,
		value REAL NOT NULL,
		residual REAL NOT NULL,
		report BLOB NOT NULL
	);

	CREATE TABLE IF NOT EXISTS events (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		cycle INTEGER NOT NULL,
		description TEXT NOT NULL,
		category TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS econ_meta (
		key TEXT PRIMARY KEY,
		value TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_cycles_pop ON cycles(pop_id, cycle);
	CREATE INDEX IF NOT EXISTS idx_events_cycle ON events(cycle);
	`
	_, err := db.conn.Exec(schema)
	return err
}

// SavePops writes every pop with its ledger, desire baselines and unclaimed
// wants (full replace).
func (db *DB) SavePops(ctx context.Context, pops []*agents.Pop) error {
	tx, err := db.conn.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	for _, table := range []string{"pops", "holdings", "desires", "unclaimed_wants"} {
		if _, err := tx.ExecContext(ctx, "DELETE FROM "+table); err != nil {
			return err
		}
	}

	popStmt, err := tx.PreparexContext(ctx, `INSERT INTO pops
		(id, name, size, cycles, definitions_json) VALUES (?, ?, ?, ?, ?)`)
	if err != nil {
		return err
	}
	defer popStmt.Close()

	holdStmt, err := tx.PreparexContext(ctx, `INSERT INTO holdings
		(pop_id, product, total, reserved, consumed) VALUES (?, ?, ?, ?, ?)`)
	if err != nil {
		return err
	}
	defer holdStmt.Close()

	desireStmt, err := tx.PreparexContext(ctx, `INSERT INTO desires
		(pop_id, kind, target, start_tier, amount, step, end_tier, consumed, satisfaction, reserved)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return err
	}
	defer desireStmt.Close()

	for _, p := range pops {
		defsJSON, err := json.Marshal(p.Definitions)
		if err != nil {
			return fmt.Errorf("encode pop %d definitions: %w", p.ID, err)
		}
		if _, err := popStmt.ExecContext(ctx, p.ID, p.Name, p.Size, p.Cycles, string(defsJSON)); err != nil {
			return fmt.Errorf("insert pop %d: %w", p.ID, err)
		}

		for _, id := range p.Property.Products() {
			h := p.Property.Holding(id)
			if _, err := holdStmt.ExecContext(ctx, p.ID, id, h.Total, h.Reserved, h.Consumed); err != nil {
				return fmt.Errorf("insert holding %d/%s: %w", p.ID, id, err)
			}
		}

		for _, d := range p.Desires.All() {
			consumed := 0
			if d.IsConsumed {
				consumed = 1
			}
			_, err := desireStmt.ExecContext(ctx,
				p.ID, d.Kind.String(), d.Target(), d.StartTier,
				d.Amount, d.Step, d.EndTier, consumed,
				d.Satisfaction, d.Reserved,
			)
			if err != nil {
				return fmt.Errorf("insert desire %d/%s: %w", p.ID, d, err)
			}
		}

		for want, q := range p.Desires.UnclaimedWants {
			if q <= 0 {
				continue
			}
			if _, err := tx.ExecContext(ctx,
				"INSERT INTO unclaimed_wants (pop_id, want, quantity) VALUES (?, ?, ?)",
				p.ID, want, q,
			); err != nil {
				return fmt.Errorf("insert unclaimed %d/%s: %w", p.ID, want, err)
			}
		}
	}

	return tx.Commit()
}

type popRow struct {
	ID     agents.PopID `db:"id"`
	Cycles uint64       `db:"cycles"`
}

type holdingRow struct {
	Product  catalog.ProductID `db:"product"`
	Total    float64           `db:"total"`
	Reserved float64           `db:"reserved"`
	Consumed float64           `db:"consumed"`
}

type desireRow struct {
	Kind         string  `db:"kind"`
	Target       string  `db:"target"`
	StartTier    int     `db:"start_tier"`
	Satisfaction float64 `db:"satisfaction"`
	Reserved     float64 `db:"reserved"`
}

type unclaimedRow struct {
	Want     catalog.WantID `db:"want"`
	Quantity float64        `db:"quantity"`
}

// RestorePops loads saved ledgers, desire baselines and unclaimed wants into
// pops built from config, matching them by id. Desires are matched by kind,
// target and start tier; saved desires no longer defined are skipped. It
// returns how many pops were restored.
func (db *DB) RestorePops(ctx context.Context, pops []*agents.Pop) (int, error) {
	var rows []popRow
	if err := db.conn.SelectContext(ctx, &rows, "SELECT id, cycles FROM pops"); err != nil {
		return 0, fmt.Errorf("select pops: %w", err)
	}
	saved := make(map[agents.PopID]uint64, len(rows))
	for _, r := range rows {
		saved[r.ID] = r.Cycles
	}

	restored := 0
	for _, p := range pops {
		cycles, ok := saved[p.ID]
		if !ok {
			continue
		}
		p.Cycles = cycles

		var holdings []holdingRow
		if err := db.conn.SelectContext(ctx, &holdings,
			"SELECT product, total, reserved, consumed FROM holdings WHERE pop_id = ?", p.ID,
		); err != nil {
			return restored, fmt.Errorf("select holdings %d: %w", p.ID, err)
		}
		for _, h := range holdings {
			p.Property.SetHolding(h.Product, economy.Holding{Total: h.Total, Reserved: h.Reserved, Consumed: h.Consumed})
		}

		var desires []desireRow
		if err := db.conn.SelectContext(ctx, &desires,
			"SELECT kind, target, start_tier, satisfaction, reserved FROM desires WHERE pop_id = ?", p.ID,
		); err != nil {
			return restored, fmt.Errorf("select desires %d: %w", p.ID, err)
		}
		restoreBaselines(p.Desires, desires)

		var unclaimed []unclaimedRow
		if err := db.conn.SelectContext(ctx, &unclaimed,
			"SELECT want, quantity FROM unclaimed_wants WHERE pop_id = ?", p.ID,
		); err != nil {
			return restored, fmt.Errorf("select unclaimed %d: %w", p.ID, err)
		}
		for _, u := range unclaimed {
			p.Desires.UnclaimedWants[u.Want] = u.Quantity
		}
		restored++
	}
	return restored, nil
}

func restoreBaselines(ds *agents.Desires, rows []desireRow) {
	type key struct {
		kind, target string
		start        int
	}
	byKey := make(map[key]*desire.Desire)
	for _, d := range ds.All() {
		byKey[key{d.Kind.String(), d.Target(), d.StartTier}] = d
	}
	for _, r := range rows {
		d, ok := byKey[key{r.Kind, r.Target, r.StartTier}]
		if !ok {
			continue
		}
		d.Satisfaction = r.Satisfaction
		d.Reserved = r.Reserved
		if d.Kind == desire.KindNeed {
			ds.ProductsSatisfied[d.Product] += r.Satisfaction
		} else {
			ds.WantsSatisfied[d.Want] += r.Satisfaction
		}
	}
}

// SaveEvents appends events to the database.
func (db *DB) SaveEvents(ctx context.Context, events []engine.Event) error {
	if len(events) == 0 {
		return nil
	}

	tx, err := db.conn.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	for _, e := range events {
		_, err := tx.ExecContext(ctx,
			"INSERT INTO events (cycle, description, category) VALUES (?, ?, ?)",
			e.Cycle, e.Description, e.Category,
		)
		if err != nil {
			return err
		}
	}

	return tx.Commit()
}

// RecentEvents returns the most recent N events, newest first.
func (db *DB) RecentEvents(ctx context.Context, limit int) ([]engine.Event, error) {
	var events []engine.Event
	err := db.conn.SelectContext(ctx, &events,
		"SELECT cycle, description, category FROM events ORDER BY id DESC LIMIT ?",
		limit,
	)
	return events, err
}

// SaveMeta stores a key-value pair in economy metadata.
func (db *DB) SaveMeta(key, value string) error {
	_, err := db.conn.Exec(
		"INSERT OR REPLACE INTO econ_meta (key, value) VALUES (?, ?)",
		key, value,
	)
	return err
}

// GetMeta retrieves a metadata value. A missing key is "" with no error.
func (db *DB) GetMeta(key string) (string, error) {
	var value string
	err := db.conn.Get(&value, "SELECT value FROM econ_meta WHERE key = ?", key)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	return value, err
}

// LastCycle returns the last recorded cycle, 0 for a fresh database.
func (db *DB) LastCycle() (uint64, error) {
	v, err := db.GetMeta("last_cycle")
	if err != nil || v == "" {
		return 0, err
	}
	return strconv.ParseUint(v, 10, 64)
}

// SaveState performs a full save of the simulation.
func (db *DB) SaveState(ctx context.Context, sim *engine.Simulation) error {
	slog.Info("saving economy state", "pops", len(sim.Pops), "cycle", sim.LastCycle)

	if err := db.SavePops(ctx, sim.Pops); err != nil {
		return fmt.Errorf("save pops: %w", err)
	}
	if err := db.SaveEvents(ctx, sim.Events); err != nil {
		return fmt.Errorf("save events: %w", err)
	}
	if err := db.SaveMeta("last_cycle", strconv.FormatUint(sim.LastCycle, 10)); err != nil {
		return fmt.Errorf("save meta: %w", err)
	}
	if err := db.SaveMeta("catalog_digest", sim.Catalog.Digest); err != nil {
		return fmt.Errorf("save meta: %w", err)
	}

	slog.Info("economy state saved")
	return nil
}
