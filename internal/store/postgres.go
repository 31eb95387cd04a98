package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"

	"github.com/ourchat/ourchat/internal/common"
	"github.com/ourchat/ourchat/internal/logging"
	"github.com/ourchat/ourchat/internal/store/migrations"
)

const notifyChannel = "subtree_changed"

// Postgres is a Store backed by a single subtrees table: one row per written
// path, value as JSONB, plus a global revision sequence for version tokens.
// Rows never overlap: a write deletes the rows below it and merges into a
// covering ancestor row if one exists. Observe is driven by LISTEN/NOTIFY.
type Postgres struct {
	pool *pgxpool.Pool
	log  logging.Logger
}

// NewPostgres connects a pool and verifies connectivity with a ping.
func NewPostgres(ctx context.Context, dsn string, log logging.Logger) (*Postgres, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("store: pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("store: ping: %w", err)
	}
	return &Postgres{pool: pool, log: log}, nil
}

// RunMigrations applies the embedded schema migrations through goose.
func RunMigrations(ctx context.Context, dsn string) error {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return fmt.Errorf("store: open for migrations: %w", err)
	}
	defer db.Close()

	goose.SetBaseFS(migrations.Migrations)
	if err := goose.UpContext(ctx, db, "."); err != nil {
		return fmt.Errorf("store: migrations: %w", err)
	}
	return nil
}

func (p *Postgres) Close() {
	p.pool.Close()
}

func (p *Postgres) Read(ctx context.Context, path string) (Snapshot, error) {
	rows, err := p.pool.Query(ctx,
		`SELECT path, value, version FROM subtrees
		 WHERE path = $1 OR path LIKE $1 || '/%' OR $1 LIKE path || '/%'`, path)
	if err != nil {
		return Snapshot{}, fmt.Errorf("store: read %q: %w", path, err)
	}
	defer rows.Close()

	recs, err := collectRows(rows)
	if err != nil {
		return Snapshot{}, fmt.Errorf("store: read %q: %w", path, err)
	}
	return assembleRows(path, recs)
}

func (p *Postgres) Write(ctx context.Context, path string, value any) error {
	return p.withWriteTx(ctx, path, func(tx pgx.Tx) error {
		return writeSubtreeTx(ctx, tx, path, value)
	})
}

func (p *Postgres) CompareAndSwap(ctx context.Context, path string, expected Version, value any) error {
	return p.withWriteTx(ctx, path, func(tx pgx.Tx) error {
		snap, err := readSubtreeTx(ctx, tx, path)
		if err != nil {
			return err
		}
		if snap.Version != expected {
			return fmt.Errorf("%w: path %q at version %d, expected %d",
				common.ErrVersionConflict, path, snap.Version, expected)
		}
		return writeSubtreeTx(ctx, tx, path, value)
	})
}

// Observe listens for change notifications on a dedicated connection and
// re-reads the subtree whenever an overlapping path changes.
func (p *Postgres) Observe(ctx context.Context, path string) (<-chan Snapshot, error) {
	conn, err := p.pool.Acquire(ctx)
	if err != nil {
		return nil, fmt.Errorf("store: observe %q: %w", path, err)
	}
	if _, err := conn.Exec(ctx, "LISTEN "+notifyChannel); err != nil {
		conn.Release()
		return nil, fmt.Errorf("store: observe %q: %w", path, err)
	}

	out := make(chan Snapshot)

	go func() {
		defer close(out)
		defer conn.Release()

		send := func() bool {
			snap, err := p.Read(ctx, path)
			if err != nil {
				if ctx.Err() == nil {
					p.log.Error(ctx, "observe read failed", "path", path, "error", err)
				}
				return false
			}
			select {
			case out <- snap:
				return true
			case <-ctx.Done():
				return false
			}
		}

		if !send() {
			return
		}
		for {
			n, err := conn.Conn().WaitForNotification(ctx)
			if err != nil {
				if ctx.Err() == nil {
					p.log.Error(ctx, "observe interrupted", "path", path, "error", err)
				}
				return
			}
			if !pathsOverlap(path, n.Payload) {
				continue
			}
			if !send() {
				return
			}
		}
	}()

	return out, nil
}

// withWriteTx runs fn in a transaction serialized per owning key through an
// advisory lock, so concurrent writers to the same user or conversation
// cannot interleave between version check and write.
func (p *Postgres) withWriteTx(ctx context.Context, path string, fn func(tx pgx.Tx) error) error {
	tx, err := p.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("store: begin: %w", err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx,
		`SELECT pg_advisory_xact_lock(hashtext($1))`, topSegment(path)); err != nil {
		return fmt.Errorf("store: lock %q: %w", path, err)
	}
	if err := fn(tx); err != nil {
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("store: commit: %w", err)
	}
	return nil
}

type subtreeRow struct {
	path    string
	value   []byte
	version int64
}

func collectRows(rows pgx.Rows) ([]subtreeRow, error) {
	var recs []subtreeRow
	for rows.Next() {
		var r subtreeRow
		if err := rows.Scan(&r.path, &r.value, &r.version); err != nil {
			return nil, err
		}
		recs = append(recs, r)
	}
	return recs, rows.Err()
}

func readSubtreeTx(ctx context.Context, tx pgx.Tx, path string) (Snapshot, error) {
	rows, err := tx.Query(ctx,
		`SELECT path, value, version FROM subtrees
		 WHERE path = $1 OR path LIKE $1 || '/%' OR $1 LIKE path || '/%'`, path)
	if err != nil {
		return Snapshot{}, fmt.Errorf("store: read %q: %w", path, err)
	}
	defer rows.Close()

	recs, err := collectRows(rows)
	if err != nil {
		return Snapshot{}, fmt.Errorf("store: read %q: %w", path, err)
	}
	return assembleRows(path, recs)
}

func writeSubtreeTx(ctx context.Context, tx pgx.Tx, path string, value any) error {
	var rev int64
	if err := tx.QueryRow(ctx, `SELECT nextval('subtrees_rev_seq')`).Scan(&rev); err != nil {
		return fmt.Errorf("store: revision: %w", err)
	}

	// the replaced subtree disappears in full
	if _, err := tx.Exec(ctx,
		`DELETE FROM subtrees WHERE path LIKE $1 || '/%'`, path); err != nil {
		return fmt.Errorf("store: prune %q: %w", path, err)
	}

	// a covering ancestor row absorbs the write; otherwise the path gets
	// its own row
	var coverPath string
	var coverValue []byte
	err := tx.QueryRow(ctx,
		`SELECT path, value FROM subtrees
		 WHERE path != $1 AND $1 LIKE path || '/%'
		 ORDER BY length(path) DESC LIMIT 1`, path).Scan(&coverPath, &coverValue)
	switch {
	case errors.Is(err, pgx.ErrNoRows):
		encoded, merr := json.Marshal(value)
		if merr != nil {
			return fmt.Errorf("store: encode %q: %w", path, merr)
		}
		if _, err := tx.Exec(ctx,
			`INSERT INTO subtrees (path, value, version) VALUES ($1, $2, $3)
			 ON CONFLICT (path) DO UPDATE SET value = $2, version = $3`,
			path, encoded, rev); err != nil {
			return fmt.Errorf("store: upsert %q: %w", path, err)
		}
	case err != nil:
		return fmt.Errorf("store: cover lookup %q: %w", path, err)
	default:
		var decoded any
		if err := json.Unmarshal(coverValue, &decoded); err != nil {
			return fmt.Errorf("store: decode %q: %w", coverPath, err)
		}
		rel := strings.TrimPrefix(path, coverPath+"/")
		merged := setNested(decoded, splitPath(rel), value)
		encoded, merr := json.Marshal(merged)
		if merr != nil {
			return fmt.Errorf("store: encode %q: %w", coverPath, merr)
		}
		if _, err := tx.Exec(ctx,
			`UPDATE subtrees SET value = $2, version = $3 WHERE path = $1`,
			coverPath, encoded, rev); err != nil {
			return fmt.Errorf("store: merge %q: %w", coverPath, err)
		}
	}

	if _, err := tx.Exec(ctx, `SELECT pg_notify($1, $2)`, notifyChannel, path); err != nil {
		return fmt.Errorf("store: notify %q: %w", path, err)
	}
	return nil
}

// assembleRows builds the snapshot for path out of non-overlapping rows:
// either one covering row to descend into, or descendant rows to overlay.
func assembleRows(path string, recs []subtreeRow) (Snapshot, error) {
	var version int64
	var dict map[string]any

	for _, r := range recs {
		var decoded any
		if err := json.Unmarshal(r.value, &decoded); err != nil {
			return Snapshot{}, fmt.Errorf("store: decode %q: %w", r.path, err)
		}

		if r.path == path || strings.HasPrefix(path, r.path+"/") {
			// covering row: descend to the requested path
			rel := strings.TrimPrefix(strings.TrimPrefix(path, r.path), "/")
			value := descend(decoded, splitPath(rel))
			if value == nil {
				return Snapshot{}, nil
			}
			return Snapshot{Value: value, Version: Version(r.version)}, nil
		}

		// descendant row: overlay at its relative position
		if dict == nil {
			dict = map[string]any{}
		}
		rel := strings.TrimPrefix(r.path, path+"/")
		dict = setNested(dict, splitPath(rel), decoded).(map[string]any)
		if r.version > version {
			version = r.version
		}
	}

	if dict == nil {
		return Snapshot{}, nil
	}
	return Snapshot{Value: dict, Version: Version(version)}, nil
}

func descend(v any, segs []string) any {
	for _, seg := range segs {
		dict, ok := v.(map[string]any)
		if !ok {
			return nil
		}
		v, ok = dict[seg]
		if !ok {
			return nil
		}
	}
	return v
}

// setNested returns root with value placed at segs, creating intermediate
// maps and replacing non-map values on the way.
func setNested(root any, segs []string, value any) any {
	if len(segs) == 0 {
		return value
	}
	dict, ok := root.(map[string]any)
	if !ok {
		dict = map[string]any{}
	}
	dict[segs[0]] = setNested(dict[segs[0]], segs[1:], value)
	return dict
}

func topSegment(path string) string {
	if segs := splitPath(path); len(segs) > 0 {
		return segs[0]
	}
	return path
}
