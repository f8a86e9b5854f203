package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
)

// GetEmbedding returns the cached vector for key. ok is false on a miss.
func (db *DB) GetEmbedding(ctx context.Context, key string) (vector []float64, ok bool, err error) {
	var raw string
	err = db.conn.QueryRowContext(ctx, `
		SELECT vector
		FROM embeddings
		WHERE cache_key = ?
	`, key).Scan(&raw)

	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("failed to get embedding: %w", err)
	}

	if err := json.Unmarshal([]byte(raw), &vector); err != nil {
		return nil, false, fmt.Errorf("failed to unmarshal embedding: %w", err)
	}

	if _, err := db.conn.ExecContext(ctx, `
		UPDATE embeddings
		SET hits = hits + 1, last_used_at = CURRENT_TIMESTAMP
		WHERE cache_key = ?
	`, key); err != nil {
		return nil, false, fmt.Errorf("failed to record embedding hit: %w", err)
	}

	return vector, true, nil
}

// SaveEmbedding stores vector under key, replacing any previous entry
func (db *DB) SaveEmbedding(ctx context.Context, key, model string, vector []float64) error {
	raw, err := json.Marshal(vector)
	if err != nil {
		return fmt.Errorf("failed to marshal embedding: %w", err)
	}

	_, err = db.conn.ExecContext(ctx, `
		INSERT INTO embeddings (cache_key, model, dimensions, vector, last_used_at)
		VALUES (?, ?, ?, ?, CURRENT_TIMESTAMP)
		ON CONFLICT(cache_key) DO UPDATE SET
			model = excluded.model,
			dimensions = excluded.dimensions,
			vector = excluded.vector,
			last_used_at = excluded.last_used_at
	`, key, model, len(vector), string(raw))
	if err != nil {
		return fmt.Errorf("failed to save embedding: %w", err)
	}

	return nil
}

// CountEmbeddings returns the number of cached vectors
func (db *DB) CountEmbeddings(ctx context.Context) (int, error) {
	var count int
	if err := db.conn.QueryRowContext(ctx, "SELECT COUNT(*) FROM embeddings").Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count embeddings: %w", err)
	}
	return count, nil
}

// EmbeddingHits returns how often the entry for key was served from the cache
func (db *DB) EmbeddingHits(ctx context.Context, key string) (int, error) {
	var hits int
	err := db.conn.QueryRowContext(ctx, "SELECT hits FROM embeddings WHERE cache_key = ?", key).Scan(&hits)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, fmt.Errorf("embedding not found")
	}
	if err != nil {
		return 0, fmt.Errorf("failed to get embedding hits: %w", err)
	}
	return hits, nil
}
