package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
)

// Sentinel errors for ledger and lookup misses. The engine maps these to
// user-facing failure kinds.
var (
	ErrTopicNotFound   = errors.New("topic not found")
	ErrAlreadyEndorsed = errors.New("user already in favor")
	ErrNotEndorsed     = errors.New("user not in favor")
)

// Store wraps the PostgreSQL connection used for topics and settings.
type Store struct {
	db *sql.DB
}

// Open connects to PostgreSQL and verifies the connection.
func Open(ctx context.Context, databaseURL string) (*Store, error) {
	db, err := sql.Open("pgx", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	db.SetConnMaxIdleTime(5 * time.Minute)
	db.SetConnMaxLifetime(30 * time.Minute)
	db.SetMaxIdleConns(10)
	db.SetMaxOpenConns(20)

	if err := db.PingContext(ctx); err != nil {
		return nil, fmt.Errorf("ping db: %w", err)
	}
	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

// splitArray undoes array_to_string(col, ','). An empty array reads back
// as the empty string, not a single empty element.
func splitArray(joined string) []string {
	if joined == "" {
		return nil
	}
	return strings.Split(joined, ",")
}

// joinArray is the write-side counterpart, feeding string_to_array.
func joinArray(values []string) string {
	return strings.Join(values, ",")
}
