package models

import (
	"encoding/json"
	"time"
)

// LogEntry represents an audit log entry
type LogEntry struct {
	ID               int64     `json:"id"`
	ActorUserID      *int64    `json:"actor_user_id,omitempty"`
	ActorName        *string   `json:"actor_name"`
	Action           string    `json:"action"`
	AffectedTable    string    `json:"affected_table"`
	AffectedRecordID *int64    `json:"affected_record_id,omitempty"`
	Details          string    `json:"details,omitempty"`
	SourceIP         string    `json:"source_ip,omitempty"`
	ClientAgent      string    `json:"client_agent,omitempty"`
	Timestamp        time.Time `json:"timestamp"`
	Status           string    `json:"status"`
}

// DecodeDetails decodes structured details. Plain-text details return nil, false.
func (e *LogEntry) DecodeDetails() (map[string]any, bool) {
	if e.Details == "" {
		return nil, false
	}
	var m map[string]any
	if err := json.Unmarshal([]byte(e.Details), &m); err != nil {
		return nil, false
	}
	return m, true
}

// Audit action constants
const (
	ActionCreate        = "CREATE"
	ActionUpdate        = "UPDATE"
	ActionDelete        = "DELETE"
	ActionLogin         = "LOGIN"
	ActionLoginFailed   = "LOGIN_FAILED"
	ActionLogout        = "LOGOUT"
	ActionCreateError   = "CREATE_ERROR"
	ActionAlterPassword = "ALTER_PASSWORD"
	ActionEnableTOTP    = "ENABLE_TOTP"
	ActionDisableTOTP   = "DISABLE_TOTP"
	ActionExport        = "EXPORT"
)

// Audit entry outcomes
const (
	AuditSuccess = "success"
	AuditError   = "error"
)

// Affected table names
const (
	TableUsers      = "users"
	TableRequesters = "solicitantes"
	TableProtocols  = "protocolos"
	TableAuditLog   = "logs_usuario"
)

// AuditFilter narrows audit queries; nil fields are unconstrained
type AuditFilter struct {
	ActorUserID   *int64
	AffectedTable string
	Action        string
	DateFrom      *time.Time
	DateTo        *time.Time
}

// Count is one bucket of an audit aggregate. ActorUserID identifies the
// bucket of a by-actor count; Key is then only its label.
type Count struct {
	Key         string `json:"key"`
	Count       int    `json:"count"`
	ActorUserID *int64 `json:"actor_user_id,omitempty"`
}

// AuditStats holds the dashboard aggregates of the audit log
type AuditStats struct {
	ByAction []Count `json:"by_action"`
	ByActor  []Count `json:"by_actor"`
	ByDay    []Count `json:"by_day"`
}
