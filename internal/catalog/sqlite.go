package catalog

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/peninsula-health/rosterctl/internal/models"
	_ "modernc.org/sqlite"
)

// SQLiteStore keeps the catalogue in a SQLite database. Each roster is a
// JSON payload; seq orders the rows, highest first.
type SQLiteStore struct {
	db     *sql.DB
	logger *slog.Logger
}

// OpenSQLite opens (creating if needed) the database at path. Use ":memory:"
// for a throwaway store.
func OpenSQLite(ctx context.Context, path string, logger *slog.Logger) (*SQLiteStore, error) {
	if logger == nil {
		logger = slog.Default()
	}
	logger.Debug("opening catalogue database", "path", path)
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening catalogue database: %w", err)
	}
	// One connection keeps ":memory:" databases alive and serializes writers.
	db.SetMaxOpenConns(1)
	s := &SQLiteStore{db: db, logger: logger}
	if err := s.initSchema(ctx); err != nil {
		db.Close() //nolint:errcheck
		return nil, err
	}
	return s, nil
}

func (s *SQLiteStore) initSchema(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, `
		PRAGMA busy_timeout = 5000;
		CREATE TABLE IF NOT EXISTS saved_rosters (
			id TEXT PRIMARY KEY,
			seq INTEGER NOT NULL,
			name TEXT NOT NULL,
			job_id TEXT NOT NULL,
			created_at TEXT NOT NULL,
			payload TEXT NOT NULL
		);
		CREATE INDEX IF NOT EXISTS saved_rosters_seq ON saved_rosters (seq DESC);
	`)
	if err != nil {
		return fmt.Errorf("creating catalogue schema: %w", err)
	}
	return nil
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func insertRow(ctx context.Context, db execer, r *models.SavedRoster, seq int64) error {
	payload, err := json.Marshal(r)
	if err != nil {
		return fmt.Errorf("encoding roster %s: %w", r.ID, err)
	}
	_, err = db.ExecContext(ctx, `
		INSERT INTO saved_rosters (id, seq, name, job_id, created_at, payload)
		VALUES (?, ?, ?, ?, ?, ?)
	`, r.ID, seq, r.Name, r.JobID, r.CreatedAt.UTC().Format(time.RFC3339Nano), string(payload))
	if err != nil {
		return fmt.Errorf("inserting roster %s: %w", r.ID, err)
	}
	return nil
}

func (s *SQLiteStore) List(ctx context.Context) ([]*models.SavedRoster, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT payload FROM saved_rosters ORDER BY seq DESC`)
	if err != nil {
		return nil, fmt.Errorf("listing rosters: %w", err)
	}
	defer rows.Close()

	var out []*models.SavedRoster
	for rows.Next() {
		r, err := scanRoster(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func (s *SQLiteStore) Get(ctx context.Context, id string) (*models.SavedRoster, error) {
	row := s.db.QueryRowContext(ctx, `SELECT payload FROM saved_rosters WHERE id = ?`, id)
	r, err := scanRoster(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, notFound(id)
	}
	return r, err
}

func scanRoster(row interface{ Scan(dest ...any) error }) (*models.SavedRoster, error) {
	var payload string
	if err := row.Scan(&payload); err != nil {
		return nil, err
	}
	var r models.SavedRoster
	if err := json.Unmarshal([]byte(payload), &r); err != nil {
		return nil, fmt.Errorf("decoding stored roster: %w", err)
	}
	return &r, nil
}

func (s *SQLiteStore) Insert(ctx context.Context, r *models.SavedRoster, capacity int) (evicted []string, err error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("starting transaction: %w", err)
	}
	defer func() {
		if err != nil {
			tx.Rollback() //nolint:errcheck
		}
	}()

	var seq int64
	if err = tx.QueryRowContext(ctx, `SELECT COALESCE(MAX(seq), 0) + 1 FROM saved_rosters`).Scan(&seq); err != nil {
		return nil, fmt.Errorf("allocating position: %w", err)
	}
	if err = insertRow(ctx, tx, r, seq); err != nil {
		return nil, err
	}

	if capacity > 0 {
		rows, qerr := tx.QueryContext(ctx, `SELECT id FROM saved_rosters ORDER BY seq DESC LIMIT -1 OFFSET ?`, capacity)
		if qerr != nil {
			err = fmt.Errorf("finding evicted rosters: %w", qerr)
			return nil, err
		}
		for rows.Next() {
			var id string
			if err = rows.Scan(&id); err != nil {
				rows.Close() //nolint:errcheck
				return nil, err
			}
			evicted = append(evicted, id)
		}
		rows.Close() //nolint:errcheck
		for _, id := range evicted {
			if _, err = tx.ExecContext(ctx, `DELETE FROM saved_rosters WHERE id = ?`, id); err != nil {
				return nil, fmt.Errorf("evicting roster %s: %w", id, err)
			}
		}
	}

	if err = tx.Commit(); err != nil {
		return nil, fmt.Errorf("committing roster %s: %w", r.ID, err)
	}
	return evicted, nil
}

func (s *SQLiteStore) Put(ctx context.Context, r *models.SavedRoster) error {
	payload, err := json.Marshal(r)
	if err != nil {
		return fmt.Errorf("encoding roster %s: %w", r.ID, err)
	}
	res, err := s.db.ExecContext(ctx, `
		UPDATE saved_rosters SET name = ?, job_id = ?, payload = ? WHERE id = ?
	`, r.Name, r.JobID, string(payload), r.ID)
	if err != nil {
		return fmt.Errorf("updating roster %s: %w", r.ID, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return notFound(r.ID)
	}
	return nil
}

func (s *SQLiteStore) Delete(ctx context.Context, id string) (bool, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM saved_rosters WHERE id = ?`, id)
	if err != nil {
		return false, fmt.Errorf("deleting roster %s: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func (s *SQLiteStore) ReplaceAll(ctx context.Context, rs []*models.SavedRoster) (err error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("starting transaction: %w", err)
	}
	defer func() {
		if err != nil {
			tx.Rollback() //nolint:errcheck
		}
	}()

	if _, err = tx.ExecContext(ctx, `DELETE FROM saved_rosters`); err != nil {
		return fmt.Errorf("clearing catalogue: %w", err)
	}
	for i, r := range rs {
		if err = insertRow(ctx, tx, r, int64(len(rs)-i)); err != nil {
			return err
		}
	}
	if err = tx.Commit(); err != nil {
		return fmt.Errorf("committing import: %w", err)
	}
	s.logger.Debug("catalogue replaced", "count", len(rs))
	return nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

var _ Store = (*SQLiteStore)(nil)
