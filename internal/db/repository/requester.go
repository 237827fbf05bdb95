package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/adamscao/protocolreg/internal/models"
)

// RequesterRepository handles requester data access
type RequesterRepository struct {
	db DBTX
}

// NewRequesterRepository creates a new requester repository
func NewRequesterRepository(db DBTX) *RequesterRepository {
	return &RequesterRepository{db: db}
}

// WithTx returns a repository bound to tx
func (r *RequesterRepository) WithTx(tx *sql.Tx) *RequesterRepository {
	return &RequesterRepository{db: tx}
}

// Create creates a new requester
func (r *RequesterRepository) Create(ctx context.Context, req *models.Requester) error {
	query := `
		INSERT INTO solicitantes (name, email, phone, department, created_at)
		VALUES (?, ?, ?, ?, ?)
	`

	result, err := r.db.ExecContext(ctx, query,
		req.Name,
		nullString(req.Email),
		nullString(req.Phone),
		nullString(req.Department),
		FormatTime(req.CreatedAt),
	)
	if err != nil {
		return fmt.Errorf("failed to create requester: %w", translate(err))
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert id: %w", err)
	}

	req.ID = id
	return nil
}

// GetByID retrieves a requester by ID
func (r *RequesterRepository) GetByID(ctx context.Context, id int64) (*models.Requester, error) {
	query := `
		SELECT id, name, email, phone, department, created_at
		FROM solicitantes
		WHERE id = ?
	`
	return scanRequester(r.db.QueryRowContext(ctx, query, id))
}

// List lists all requesters ordered by name
func (r *RequesterRepository) List(ctx context.Context) ([]*models.Requester, error) {
	query := `
		SELECT id, name, email, phone, department, created_at
		FROM solicitantes
		ORDER BY name COLLATE NOCASE ASC, id ASC
	`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list requesters: %w", err)
	}
	defer rows.Close()

	var requesters []*models.Requester
	for rows.Next() {
		req, err := scanRequester(rows)
		if err != nil {
			return nil, err
		}
		requesters = append(requesters, req)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate requesters: %w", err)
	}
	return requesters, nil
}

// Update writes every mutable requester field
func (r *RequesterRepository) Update(ctx context.Context, req *models.Requester) error {
	query := `
		UPDATE solicitantes
		SET name = ?, email = ?, phone = ?, department = ?
		WHERE id = ?
	`

	result, err := r.db.ExecContext(ctx, query,
		req.Name,
		nullString(req.Email),
		nullString(req.Phone),
		nullString(req.Department),
		req.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update requester: %w", err)
	}
	return checkAffected(result)
}

// Delete deletes a requester by ID
func (r *RequesterRepository) Delete(ctx context.Context, id int64) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM solicitantes WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete requester: %w", translate(err))
	}
	return checkAffected(result)
}

// Count returns the number of requesters
func (r *RequesterRepository) Count(ctx context.Context) (int, error) {
	var count int
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM solicitantes`).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count requesters: %w", err)
	}
	return count, nil
}

func scanRequester(row rowScanner) (*models.Requester, error) {
	req := &models.Requester{}
	var email, phone, department sql.NullString

	err := row.Scan(&req.ID, &req.Name, &email, &phone, &department, &req.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan requester: %w", err)
	}

	req.Email = email.String
	req.Phone = phone.String
	req.Department = department.String
	return req, nil
}
