package db

import (
	"context"
	"database/sql"
	"fmt"
)

// migration is one schema step, applied in order inside its own transaction
type migration struct {
	version    int
	statements []string
}

var migrations = []migration{
	{
		version: 1,
		statements: []string{
			usersTable, usersIndexes,
			requestersTable, requestersIndexes,
			protocolsTable, protocolsIndexes,
			auditLogsTable, auditLogsIndexes,
		},
	},
	{
		version:    2,
		statements: []string{protocolSequencesTable, sessionsTable, sessionsIndexes},
	},
}

// RunMigrations executes all pending database migrations
func RunMigrations(ctx context.Context, db *DB) error {
	if _, err := db.ExecContext(ctx, schemaVersionTable); err != nil {
		return fmt.Errorf("failed to create schema_version table: %w", err)
	}

	var currentVersion int
	err := db.QueryRowContext(ctx, `SELECT COALESCE(MAX(version), 0) FROM schema_version`).Scan(&currentVersion)
	if err != nil {
		return fmt.Errorf("failed to get current schema version: %w", err)
	}

	for _, m := range migrations {
		if m.version <= currentVersion {
			continue
		}
		if err := db.WithTx(ctx, func(tx *sql.Tx) error {
			for _, stmt := range m.statements {
				if _, err := tx.ExecContext(ctx, stmt); err != nil {
					return err
				}
			}
			_, err := tx.ExecContext(ctx, `INSERT INTO schema_version (version) VALUES (?)`, m.version)
			return err
		}); err != nil {
			return fmt.Errorf("failed to apply migration %d: %w", m.version, err)
		}
	}

	return nil
}

// SchemaVersion returns the highest applied migration
func SchemaVersion(ctx context.Context, db *DB) (int, error) {
	var v int
	if err := db.QueryRowContext(ctx, `SELECT COALESCE(MAX(version), 0) FROM schema_version`).Scan(&v); err != nil {
		return 0, fmt.Errorf("failed to read schema version: %w", err)
	}
	return v, nil
}

// Schema definitions
const (
	schemaVersionTable = `
CREATE TABLE IF NOT EXISTS schema_version (
    version INTEGER NOT NULL,
    applied_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
)`

	usersTable = `
CREATE TABLE users (
    id              INTEGER PRIMARY KEY AUTOINCREMENT,
    login           TEXT NOT NULL UNIQUE,
    password_hash   TEXT NOT NULL,
    display_name    TEXT NOT NULL,
    email           TEXT,
    role            TEXT NOT NULL DEFAULT 'user' CHECK (role IN ('admin', 'user')),
    active          INTEGER NOT NULL DEFAULT 1,
    totp_secret     TEXT,
    created_at      DATETIME NOT NULL,
    last_login_at   DATETIME
)`

	usersIndexes = `
CREATE INDEX idx_users_role_active ON users(role, active)`

	requestersTable = `
CREATE TABLE solicitantes (
    id          INTEGER PRIMARY KEY AUTOINCREMENT,
    name        TEXT NOT NULL,
    email       TEXT,
    phone       TEXT,
    department  TEXT,
    created_at  DATETIME NOT NULL
)`

	requestersIndexes = `
CREATE INDEX idx_solicitantes_name ON solicitantes(name)`

	protocolsTable = `
CREATE TABLE protocolos (
    id               INTEGER PRIMARY KEY AUTOINCREMENT,
    protocol_number  TEXT NOT NULL UNIQUE,
    title            TEXT NOT NULL,
    description      TEXT,
    document_type    TEXT NOT NULL,
    status           TEXT NOT NULL DEFAULT 'Pending',
    protocol_date    DATE NOT NULL,
    due_date         DATE,
    requester_id     INTEGER NOT NULL,
    notes            TEXT,
    created_by       INTEGER NOT NULL,
    created_at       DATETIME NOT NULL,

    FOREIGN KEY (requester_id) REFERENCES solicitantes(id) ON DELETE RESTRICT,
    FOREIGN KEY (created_by) REFERENCES users(id) ON DELETE RESTRICT
)`

	protocolsIndexes = `
CREATE INDEX idx_protocolos_requester ON protocolos(requester_id);
CREATE INDEX idx_protocolos_created_by ON protocolos(created_by);
CREATE INDEX idx_protocolos_status ON protocolos(status);
CREATE INDEX idx_protocolos_date ON protocolos(protocol_date)`

	// actor_user_id carries no foreign key so entries outlive deleted users
	auditLogsTable = `
CREATE TABLE logs_usuario (
    id                  INTEGER PRIMARY KEY AUTOINCREMENT,
    actor_user_id       INTEGER,
    action              TEXT NOT NULL,
    affected_table      TEXT NOT NULL,
    affected_record_id  INTEGER,
    details             TEXT,
    source_ip           TEXT,
    client_agent        TEXT,
    timestamp           DATETIME NOT NULL,
    status              TEXT NOT NULL DEFAULT 'success'
)`

	auditLogsIndexes = `
CREATE INDEX idx_logs_timestamp ON logs_usuario(timestamp);
CREATE INDEX idx_logs_action ON logs_usuario(action);
CREATE INDEX idx_logs_actor ON logs_usuario(actor_user_id);
CREATE INDEX idx_logs_table ON logs_usuario(affected_table)`

	protocolSequencesTable = `
CREATE TABLE protocol_sequences (
    year        INTEGER PRIMARY KEY,
    last_value  INTEGER NOT NULL
)`

	sessionsTable = `
CREATE TABLE sessions (
    id            INTEGER PRIMARY KEY AUTOINCREMENT,
    user_id       INTEGER NOT NULL,
    token_hash    TEXT NOT NULL UNIQUE,
    source_ip     TEXT,
    created_at    DATETIME NOT NULL,
    expires_at    DATETIME NOT NULL,
    last_used_at  DATETIME,
    revoked_at    DATETIME,

    FOREIGN KEY (user_id) REFERENCES users(id) ON DELETE CASCADE
)`

	sessionsIndexes = `
CREATE INDEX idx_sessions_user_id ON sessions(user_id);
CREATE INDEX idx_sessions_expires_at ON sessions(expires_at)`
)
