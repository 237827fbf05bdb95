package repository

import (
	"context"
	"database/sql"
	"fmt"
)

// SequenceRepository hands out per-year protocol sequence values
type SequenceRepository struct {
	db DBTX
}

// NewSequenceRepository creates a new sequence repository
func NewSequenceRepository(db DBTX) *SequenceRepository {
	return &SequenceRepository{db: db}
}

// WithTx returns a repository bound to tx
func (r *SequenceRepository) WithTx(tx *sql.Tx) *SequenceRepository {
	return &SequenceRepository{db: tx}
}

// Next atomically increments and returns the counter for year. A year seen for
// the first time starts after the highest existing "{prefix}-{year}-NNNN" number.
func (r *SequenceRepository) Next(ctx context.Context, prefix string, year int) (int, error) {
	stem := fmt.Sprintf("%s-%04d-", prefix, year)

	query := `
		INSERT INTO protocol_sequences (year, last_value)
		VALUES (?, COALESCE((
			SELECT MAX(CAST(substr(protocol_number, ?) AS INTEGER))
			FROM protocolos
			WHERE substr(protocol_number, 1, ?) = ?
		), 0) + 1)
		ON CONFLICT(year) DO UPDATE SET last_value = last_value + 1
		RETURNING last_value
	`

	var value int
	err := r.db.QueryRowContext(ctx, query, year, len(stem)+1, len(stem), stem).Scan(&value)
	if err != nil {
		return 0, fmt.Errorf("failed to advance protocol sequence: %w", err)
	}
	return value, nil
}

// Current returns the last value handed out for year, zero when none
func (r *SequenceRepository) Current(ctx context.Context, year int) (int, error) {
	var value int
	err := r.db.QueryRowContext(ctx, `SELECT COALESCE(MAX(last_value), 0) FROM protocol_sequences WHERE year = ?`, year).Scan(&value)
	if err != nil {
		return 0, fmt.Errorf("failed to read protocol sequence: %w", err)
	}
	return value, nil
}
