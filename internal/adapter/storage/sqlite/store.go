package sqlite

import (
	"context"
	"database/sql"
	"embed"
	"encoding/json"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/bnema/imgbatch/internal/domain"
	"github.com/bnema/imgbatch/internal/port"
	"github.com/pressly/goose/v3"
	"modernc.org/sqlite"
)

//go:embed migrations/*.sql
var migrations embed.FS

type Store struct {
	db *sql.DB
}

var hookOnce sync.Once

func registerHook() {
	hookOnce.Do(func() {
		sqlite.RegisterConnectionHook(func(conn sqlite.ExecQuerierContext, dsn string) error {
			pragmas := []string{
				"PRAGMA journal_mode = WAL",
				"PRAGMA busy_timeout = 5000",
				"PRAGMA synchronous = NORMAL",
				"PRAGMA cache_size = -8000", // 8MB
			}
			for _, p := range pragmas {
				if _, err := conn.ExecContext(context.Background(), p, nil); err != nil {
					return fmt.Errorf("execute %s: %w", p, err)
				}
			}
			return nil
		})
	})
}

func NewStore(dataDir string) (*Store, error) {
	registerHook()

	dbPath := filepath.Join(dataDir, "imgbatch.db")
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	// Single connection for SQLite (WAL allows concurrent reads but only one writer)
	db.SetMaxOpenConns(1)

	goose.SetBaseFS(migrations)
	if err := goose.SetDialect("sqlite3"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("set goose dialect: %w", err)
	}
	if err := goose.Up(db, "migrations"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

// Persist inserts the record or advances the stored row. A write that would
// leave a terminal status or move backwards is rejected with
// domain.ErrInvalidTransition and the stored row is kept.
func (s *Store) Persist(ctx context.Context, rec *domain.EntityRecord) error {
	inputs, err := json.Marshal(nonNil(rec.InputImageURLs))
	if err != nil {
		return fmt.Errorf("%w: encode inputs: %v", domain.ErrPersistence, err)
	}
	outputs, err := json.Marshal(nonNil(rec.OutputImageURLs))
	if err != nil {
		return fmt.Errorf("%w: encode outputs: %v", domain.ErrPersistence, err)
	}

	res, err := s.db.ExecContext(ctx, upsertRecord,
		rec.RequestID,
		rec.EntityID,
		rec.Title,
		rec.Position,
		string(inputs),
		string(outputs),
		string(rec.Status),
		rec.ErrorMessage,
		rec.CreatedAt.UnixNano(),
		rec.UpdatedAt.UnixNano(),
	)
	if err != nil {
		return fmt.Errorf("%w: upsert %s/%d: %v", domain.ErrPersistence, rec.RequestID, rec.EntityID, err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("%w: rows affected: %v", domain.ErrPersistence, err)
	}
	if n == 0 {
		return fmt.Errorf("%w: entity %d of %s is already past %s", domain.ErrInvalidTransition, rec.EntityID, rec.RequestID, rec.Status)
	}
	return nil
}

func (s *Store) Query(ctx context.Context, requestID string) ([]*domain.EntityRecord, error) {
	rows, err := s.db.QueryContext(ctx, listRecordsByRequest, requestID)
	if err != nil {
		return nil, fmt.Errorf("%w: query %s: %v", domain.ErrPersistence, requestID, err)
	}
	defer func() { _ = rows.Close() }()

	var result []*domain.EntityRecord
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: iterate %s: %v", domain.ErrPersistence, requestID, err)
	}
	if len(result) == 0 {
		return nil, domain.ErrNotFound
	}
	return result, nil
}

func (s *Store) DeleteExpired(ctx context.Context, cutoff time.Time) (int, error) {
	res, err := s.db.ExecContext(ctx, deleteExpiredRecords, cutoff.UnixNano())
	if err != nil {
		return 0, fmt.Errorf("%w: delete expired: %v", domain.ErrPersistence, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("%w: rows affected: %v", domain.ErrPersistence, err)
	}
	return int(n), nil
}

// Helper conversions

func scanRecord(rows *sql.Rows) (*domain.EntityRecord, error) {
	var (
		rec                domain.EntityRecord
		status             string
		inputs, outputs    string
		createdAt, updated int64
	)
	if err := rows.Scan(
		&rec.RequestID,
		&rec.EntityID,
		&rec.Title,
		&rec.Position,
		&inputs,
		&outputs,
		&status,
		&rec.ErrorMessage,
		&createdAt,
		&updated,
	); err != nil {
		return nil, fmt.Errorf("%w: scan: %v", domain.ErrPersistence, err)
	}

	if err := json.Unmarshal([]byte(inputs), &rec.InputImageURLs); err != nil {
		return nil, fmt.Errorf("%w: decode inputs: %v", domain.ErrPersistence, err)
	}
	if err := json.Unmarshal([]byte(outputs), &rec.OutputImageURLs); err != nil {
		return nil, fmt.Errorf("%w: decode outputs: %v", domain.ErrPersistence, err)
	}
	rec.Status = domain.EntityStatus(status)
	rec.CreatedAt = time.Unix(0, createdAt).UTC()
	rec.UpdatedAt = time.Unix(0, updated).UTC()
	return &rec, nil
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}

var _ port.StatusStore = (*Store)(nil)
