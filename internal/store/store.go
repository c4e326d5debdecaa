package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/lib/pq"
	"go.uber.org/zap"
)

// Store persists conversion results in Postgres. It is optional: the CLI
// only opens one when a DSN is supplied.
type Store struct {
	db  *sql.DB
	log *zap.Logger
}

// Open connects to Postgres and verifies the connection.
func Open(dsn string, log *zap.Logger) (*Store, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(30 * time.Minute)
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping db: %w", err)
	}
	return NewWithDB(db, log), nil
}

// NewWithDB wraps an existing connection; used by tests with a mocked
// driver.
func NewWithDB(db *sql.DB, log *zap.Logger) *Store {
	if log == nil {
		log = zap.NewNop()
	}
	return &Store{db: db, log: log}
}

func (s *Store) Close() error { return s.db.Close() }

// InitSchema creates the converted_rules table when it does not exist.
func (s *Store) InitSchema(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, `CREATE TABLE IF NOT EXISTS converted_rules(
        rule_uid   text PRIMARY KEY,
        title      text NOT NULL,
        level      text,
        output     text NOT NULL,
        updated_at timestamptz NOT NULL DEFAULT now()
    )`)
	if err != nil {
		return fmt.Errorf("init schema: %w", err)
	}
	return nil
}

// Converted is one conversion result row.
type Converted struct {
	UID    string
	Title  string
	Level  string
	Output string
}

// Upsert writes or updates a conversion result keyed on rule UID.
func (s *Store) Upsert(ctx context.Context, r Converted) error {
	uid := r.UID
	if uid == "" {
		uid = r.Title
	}
	_, err := s.db.ExecContext(ctx, `INSERT INTO converted_rules(rule_uid, title, level, output, updated_at)
        VALUES ($1,$2,$3,$4,now())
        ON CONFLICT (rule_uid) DO UPDATE SET title=EXCLUDED.title, level=EXCLUDED.level, output=EXCLUDED.output, updated_at=now()`,
		uid, r.Title, r.Level, r.Output,
	)
	if err != nil {
		return fmt.Errorf("upsert rule %s: %w", uid, err)
	}
	s.log.Debug("stored converted rule", zap.String("rule_uid", uid))
	return nil
}
