package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/adamscao/protocolreg/internal/models"
)

// AuditRepository handles audit log data access
type AuditRepository struct {
	db DBTX
}

// NewAuditRepository creates a new audit repository
func NewAuditRepository(db DBTX) *AuditRepository {
	return &AuditRepository{db: db}
}

// WithTx returns a repository bound to tx
func (r *AuditRepository) WithTx(tx *sql.Tx) *AuditRepository {
	return &AuditRepository{db: tx}
}

// Create appends an audit log entry. Timestamp must be set by the caller.
func (r *AuditRepository) Create(ctx context.Context, entry *models.LogEntry) error {
	query := `
		INSERT INTO logs_usuario (
			actor_user_id, action, affected_table, affected_record_id,
			details, source_ip, client_agent, timestamp, status
		)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	result, err := r.db.ExecContext(ctx, query,
		nullInt64(entry.ActorUserID),
		entry.Action,
		entry.AffectedTable,
		nullInt64(entry.AffectedRecordID),
		nullString(entry.Details),
		nullString(entry.SourceIP),
		nullString(entry.ClientAgent),
		FormatTime(entry.Timestamp),
		entry.Status,
	)
	if err != nil {
		return fmt.Errorf("failed to create audit log: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert id: %w", err)
	}

	entry.ID = id
	return nil
}

// Query lists audit entries matching filter, newest first, at most limit rows
func (r *AuditRepository) Query(ctx context.Context, filter models.AuditFilter, limit int) ([]*models.LogEntry, error) {
	query := `
		SELECT l.id, l.actor_user_id, u.display_name, l.action, l.affected_table,
		       l.affected_record_id, l.details, l.source_ip, l.client_agent,
		       l.timestamp, l.status
		FROM logs_usuario l
		LEFT JOIN users u ON u.id = l.actor_user_id
		WHERE 1=1
	`
	args := []any{}

	if filter.ActorUserID != nil {
		query += " AND l.actor_user_id = ?"
		args = append(args, *filter.ActorUserID)
	}

	if filter.AffectedTable != "" {
		query += " AND l.affected_table = ?"
		args = append(args, filter.AffectedTable)
	}

	if filter.Action != "" {
		query += " AND l.action = ?"
		args = append(args, filter.Action)
	}

	if filter.DateFrom != nil {
		query += " AND DATE(l.timestamp) >= ?"
		args = append(args, FormatDate(*filter.DateFrom))
	}

	if filter.DateTo != nil {
		query += " AND DATE(l.timestamp) <= ?"
		args = append(args, FormatDate(*filter.DateTo))
	}

	query += " ORDER BY l.timestamp DESC, l.id DESC LIMIT ?"
	args = append(args, limit)

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query audit logs: %w", err)
	}
	defer rows.Close()

	var entries []*models.LogEntry
	for rows.Next() {
		entry := &models.LogEntry{}
		var actorID, recordID sql.NullInt64
		var actorName, details, sourceIP, clientAgent sql.NullString

		err := rows.Scan(
			&entry.ID,
			&actorID,
			&actorName,
			&entry.Action,
			&entry.AffectedTable,
			&recordID,
			&details,
			&sourceIP,
			&clientAgent,
			&entry.Timestamp,
			&entry.Status,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan audit log: %w", err)
		}

		if actorID.Valid {
			id := actorID.Int64
			entry.ActorUserID = &id
		}
		if actorName.Valid {
			name := actorName.String
			entry.ActorName = &name
		}
		if recordID.Valid {
			id := recordID.Int64
			entry.AffectedRecordID = &id
		}
		entry.Details = details.String
		entry.SourceIP = sourceIP.String
		entry.ClientAgent = clientAgent.String

		entries = append(entries, entry)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate audit logs: %w", err)
	}
	return entries, nil
}

// CountByAction counts entries per action, most frequent first
func (r *AuditRepository) CountByAction(ctx context.Context) ([]models.Count, error) {
	query := `
		SELECT action, COUNT(*) AS n
		FROM logs_usuario
		GROUP BY action
		ORDER BY n DESC, action ASC
	`
	return r.counts(ctx, "action", query)
}

// CountByActor counts entries per actor id. Entries without an actor form a
// single "unknown" bucket; actors deleted since are labelled "user #<id>".
func (r *AuditRepository) CountByActor(ctx context.Context) ([]models.Count, error) {
	query := `
		SELECT l.actor_user_id,
			CASE WHEN l.actor_user_id IS NULL THEN 'unknown'
				ELSE COALESCE(MAX(u.display_name), 'user #' || l.actor_user_id) END AS actor,
			COUNT(*) AS n
		FROM logs_usuario l
		LEFT JOIN users u ON u.id = l.actor_user_id
		GROUP BY l.actor_user_id
		ORDER BY n DESC, actor ASC, l.actor_user_id ASC
	`
	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to count audit logs by actor: %w", err)
	}
	defer rows.Close()

	counts := []models.Count{}
	for rows.Next() {
		var c models.Count
		var actorID sql.NullInt64
		if err := rows.Scan(&actorID, &c.Key, &c.Count); err != nil {
			return nil, fmt.Errorf("failed to scan audit count: %w", err)
		}
		if actorID.Valid {
			c.ActorUserID = &actorID.Int64
		}
		counts = append(counts, c)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate audit counts: %w", err)
	}
	return counts, nil
}

// CountByDay counts entries per calendar day from since onward, oldest day first.
// Days without entries are absent.
func (r *AuditRepository) CountByDay(ctx context.Context, since time.Time) ([]models.Count, error) {
	query := `
		SELECT DATE(timestamp) AS day, COUNT(*) AS n
		FROM logs_usuario
		WHERE timestamp >= ?
		GROUP BY day
		ORDER BY day ASC
	`
	return r.counts(ctx, "day", query, FormatTime(since))
}

func (r *AuditRepository) counts(ctx context.Context, what, query string, args ...any) ([]models.Count, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to count audit logs by %s: %w", what, err)
	}
	defer rows.Close()

	counts := []models.Count{}
	for rows.Next() {
		var c models.Count
		if err := rows.Scan(&c.Key, &c.Count); err != nil {
			return nil, fmt.Errorf("failed to scan audit count: %w", err)
		}
		counts = append(counts, c)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate audit counts: %w", err)
	}
	return counts, nil
}
