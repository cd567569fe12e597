// Package journal records CLI runs in a SQLite database: which delegate ran
// under which policy, how it ended up and what each back end did.
package journal

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"github.com/funvibe/thunkjit/internal/backend"
)

const schema = `
CREATE TABLE IF NOT EXISTS runs (
	id         INTEGER PRIMARY KEY AUTOINCREMENT,
	at         INTEGER NOT NULL,
	delegate   TEXT    NOT NULL,
	policy     TEXT    NOT NULL,
	state      TEXT    NOT NULL,
	calls      INTEGER NOT NULL,
	elapsed_ns INTEGER NOT NULL,
	result     TEXT
);
CREATE TABLE IF NOT EXISTS backend_stats (
	run_id      INTEGER NOT NULL REFERENCES runs(id),
	backend     TEXT    NOT NULL,
	compiles    INTEGER NOT NULL,
	invocations INTEGER NOT NULL
);
`

// Run is one recorded run.
type Run struct {
	ID       int64
	At       time.Time
	Delegate string
	Policy   string
	State    string
	Calls    int
	Elapsed  time.Duration
	Result   string
	Backends []backend.Stats
}

// Journal is an open run database.
type Journal struct {
	db *sql.DB
}

// Open opens or creates the database at path.
func Open(path string) (*Journal, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open journal %s: %w", path, err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize journal %s: %w", path, err)
	}
	return &Journal{db: db}, nil
}

// Close closes the database.
func (j *Journal) Close() error {
	return j.db.Close()
}

// Record stores r and its back-end statistics in one transaction and
// returns the new run id.
func (j *Journal) Record(ctx context.Context, r Run) (int64, error) {
	tx, err := j.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx,
		`INSERT INTO runs (at, delegate, policy, state, calls, elapsed_ns, result) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		r.At.UnixNano(), r.Delegate, r.Policy, r.State, r.Calls, int64(r.Elapsed), r.Result)
	if err != nil {
		return 0, fmt.Errorf("record run: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, err
	}
	for _, s := range r.Backends {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO backend_stats (run_id, backend, compiles, invocations) VALUES (?, ?, ?, ?)`,
			id, s.Name, s.Compiles, s.Invocations); err != nil {
			return 0, fmt.Errorf("record backend stats: %w", err)
		}
	}
	return id, tx.Commit()
}

// Recent returns up to limit runs, newest first.
func (j *Journal) Recent(ctx context.Context, limit int) ([]Run, error) {
	rows, err := j.db.QueryContext(ctx,
		`SELECT id, at, delegate, policy, state, calls, elapsed_ns, COALESCE(result, '') FROM runs ORDER BY id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var runs []Run
	index := make(map[int64]int)
	for rows.Next() {
		var r Run
		var at, elapsed int64
		if err := rows.Scan(&r.ID, &at, &r.Delegate, &r.Policy, &r.State, &r.Calls, &elapsed, &r.Result); err != nil {
			return nil, err
		}
		r.At = time.Unix(0, at)
		r.Elapsed = time.Duration(elapsed)
		index[r.ID] = len(runs)
		runs = append(runs, r)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(runs) == 0 {
		return nil, nil
	}

	stats, err := j.db.QueryContext(ctx,
		`SELECT run_id, backend, compiles, invocations FROM backend_stats WHERE run_id >= ? ORDER BY rowid`, runs[len(runs)-1].ID)
	if err != nil {
		return nil, err
	}
	defer stats.Close()
	for stats.Next() {
		var id int64
		var s backend.Stats
		if err := stats.Scan(&id, &s.Name, &s.Compiles, &s.Invocations); err != nil {
			return nil, err
		}
		if i, ok := index[id]; ok {
			runs[i].Backends = append(runs[i].Backends, s)
		}
	}
	return runs, stats.Err()
}
