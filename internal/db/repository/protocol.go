package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/adamscao/protocolreg/internal/models"
)

// ProtocolRepository handles protocol data access
type ProtocolRepository struct {
	db DBTX
}

// NewProtocolRepository creates a new protocol repository
func NewProtocolRepository(db DBTX) *ProtocolRepository {
	return &ProtocolRepository{db: db}
}

// WithTx returns a repository bound to tx
func (r *ProtocolRepository) WithTx(tx *sql.Tx) *ProtocolRepository {
	return &ProtocolRepository{db: tx}
}

const protocolSelect = `
	SELECT p.id, p.protocol_number, p.title, p.description, p.document_type, p.status,
	       p.protocol_date, p.due_date, p.requester_id, s.name, p.notes,
	       p.created_by, u.display_name, p.created_at
	FROM protocolos p
	LEFT JOIN solicitantes s ON s.id = p.requester_id
	LEFT JOIN users u ON u.id = p.created_by
`

// Numbers are PREFIX-YYYY-NNNN and the prefix never contains a dash
const protocolOrder = `
	ORDER BY substr(p.protocol_number, instr(p.protocol_number, '-') + 1, 4) DESC,
	         CAST(substr(p.protocol_number, instr(p.protocol_number, '-') + 6) AS INTEGER) DESC,
	         p.id DESC
`

// Create inserts a protocol. Number, status and timestamps must be set by the caller.
func (r *ProtocolRepository) Create(ctx context.Context, p *models.Protocol) error {
	query := `
		INSERT INTO protocolos (
			protocol_number, title, description, document_type, status,
			protocol_date, due_date, requester_id, notes, created_by, created_at
		)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	result, err := r.db.ExecContext(ctx, query,
		p.ProtocolNumber,
		p.Title,
		nullString(p.Description),
		p.DocumentType,
		string(p.Status),
		FormatDate(p.ProtocolDate),
		nullDate(p.DueDate),
		p.RequesterID,
		nullString(p.Notes),
		p.CreatedBy,
		FormatTime(p.CreatedAt),
	)
	if err != nil {
		return fmt.Errorf("failed to create protocol: %w", translate(err))
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert id: %w", err)
	}

	p.ID = id
	return nil
}

// GetByID retrieves a protocol with requester and creator names
func (r *ProtocolRepository) GetByID(ctx context.Context, id int64) (*models.Protocol, error) {
	return scanProtocol(r.db.QueryRowContext(ctx, protocolSelect+` WHERE p.id = ?`, id))
}

// GetByNumber retrieves a protocol by its number
func (r *ProtocolRepository) GetByNumber(ctx context.Context, number string) (*models.Protocol, error) {
	return scanProtocol(r.db.QueryRowContext(ctx, protocolSelect+` WHERE p.protocol_number = ?`, number))
}

// List lists protocols matching filter, newest number first
func (r *ProtocolRepository) List(ctx context.Context, filter models.ProtocolFilter) ([]*models.Protocol, error) {
	query := protocolSelect + ` WHERE 1=1`
	args := []any{}

	if filter.RequesterID != 0 {
		query += " AND p.requester_id = ?"
		args = append(args, filter.RequesterID)
	}

	if filter.DocumentType != "" {
		query += " AND p.document_type = ?"
		args = append(args, filter.DocumentType)
	}

	if filter.Status != "" {
		query += " AND p.status = ?"
		args = append(args, string(filter.Status))
	}

	if filter.CreatedBy != 0 {
		query += " AND p.created_by = ?"
		args = append(args, filter.CreatedBy)
	}

	if filter.Search != "" {
		query += ` AND (p.title LIKE ? ESCAPE '\' OR p.protocol_number LIKE ? ESCAPE '\')`
		pattern := "%" + likeEscaper.Replace(filter.Search) + "%"
		args = append(args, pattern, pattern)
	}

	if filter.DateFrom != nil {
		query += " AND p.protocol_date >= ?"
		args = append(args, FormatDate(*filter.DateFrom))
	}

	if filter.DateTo != nil {
		query += " AND p.protocol_date <= ?"
		args = append(args, FormatDate(*filter.DateTo))
	}

	query += protocolOrder

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list protocols: %w", err)
	}
	defer rows.Close()

	var protocols []*models.Protocol
	for rows.Next() {
		p, err := scanProtocol(rows)
		if err != nil {
			return nil, err
		}
		protocols = append(protocols, p)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate protocols: %w", err)
	}
	return protocols, nil
}

// Update writes the mutable fields. The number and protocol date are never rewritten.
func (r *ProtocolRepository) Update(ctx context.Context, p *models.Protocol) error {
	query := `
		UPDATE protocolos
		SET title = ?, description = ?, document_type = ?, status = ?,
		    due_date = ?, requester_id = ?, notes = ?
		WHERE id = ?
	`

	result, err := r.db.ExecContext(ctx, query,
		p.Title,
		nullString(p.Description),
		p.DocumentType,
		string(p.Status),
		nullDate(p.DueDate),
		p.RequesterID,
		nullString(p.Notes),
		p.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update protocol: %w", translate(err))
	}
	return checkAffected(result)
}

// Delete deletes a protocol by ID
func (r *ProtocolRepository) Delete(ctx context.Context, id int64) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM protocolos WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete protocol: %w", err)
	}
	return checkAffected(result)
}

// CountByRequester counts protocols filed for a requester
func (r *ProtocolRepository) CountByRequester(ctx context.Context, requesterID int64) (int, error) {
	var count int
	err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM protocolos WHERE requester_id = ?`, requesterID).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count protocols: %w", err)
	}
	return count, nil
}

// CountByCreator counts protocols created by a user
func (r *ProtocolRepository) CountByCreator(ctx context.Context, userID int64) (int, error) {
	var count int
	err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM protocolos WHERE created_by = ?`, userID).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count protocols: %w", err)
	}
	return count, nil
}

func scanProtocol(row rowScanner) (*models.Protocol, error) {
	p := &models.Protocol{}
	var status string
	var description, notes, requesterName, creatorName sql.NullString
	var dueDate sql.NullTime

	err := row.Scan(
		&p.ID,
		&p.ProtocolNumber,
		&p.Title,
		&description,
		&p.DocumentType,
		&status,
		&p.ProtocolDate,
		&dueDate,
		&p.RequesterID,
		&requesterName,
		&notes,
		&p.CreatedBy,
		&creatorName,
		&p.CreatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan protocol: %w", err)
	}

	p.Status = models.Status(status)
	p.Description = description.String
	p.Notes = notes.String
	p.RequesterName = requesterName.String
	p.CreatorName = creatorName.String
	if dueDate.Valid {
		t := dueDate.Time
		p.DueDate = &t
	}
	return p, nil
}

// likeEscaper makes search text match literally inside a LIKE pattern
var likeEscaper = strings.NewReplacer(`\`, `\\`, "%", `\%`, "_", `\_`)
