package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

type MemoryRepository struct {
	db *sql.DB
}

// NewMemoryRepository создает репозиторий снимков памяти агентов.
func NewMemoryRepository(db *sql.DB) *MemoryRepository {
	return &MemoryRepository{db: db}
}

// SaveSnapshot сохраняет единственный снимок памяти, заменяя предыдущий.
func (r *MemoryRepository) SaveSnapshot(ctx context.Context, payload []byte) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO memory_snapshots (id, payload, saved_at) VALUES (1, ?, ?)
		 ON CONFLICT (id) DO UPDATE SET payload = excluded.payload, saved_at = excluded.saved_at`,
		payload, time.Now().UTC().Format(timestampLayout))
	if err != nil {
		return fmt.Errorf("save memory snapshot: %w", err)
	}

	return nil
}

// LoadSnapshot возвращает последний снимок памяти агентов.
func (r *MemoryRepository) LoadSnapshot(ctx context.Context) ([]byte, error) {
	var payload []byte
	err := r.db.QueryRowContext(ctx,
		`SELECT payload FROM memory_snapshots WHERE id = 1`).Scan(&payload)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("load memory snapshot: %w", err)
	}

	return payload, nil
}
