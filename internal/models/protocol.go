package models

import "time"

// Status is the lifecycle state of a protocol
type Status string

// Protocol lifecycle states
const (
	StatusPending    Status = "Pending"
	StatusInProgress Status = "In Progress"
	StatusConcluded  Status = "Concluded"
	StatusCancelled  Status = "Cancelled"
)

// Statuses lists every lifecycle state in display order
var Statuses = []Status{StatusPending, StatusInProgress, StatusConcluded, StatusCancelled}

// Valid reports whether s is a known status
func (s Status) Valid() bool {
	for _, v := range Statuses {
		if s == v {
			return true
		}
	}
	return false
}

// Protocol is a registered incoming document
type Protocol struct {
	ID             int64      `json:"id"`
	ProtocolNumber string     `json:"protocol_number"`
	Title          string     `json:"title"`
	Description    string     `json:"description,omitempty"`
	DocumentType   string     `json:"document_type"`
	Status         Status     `json:"status"`
	ProtocolDate   time.Time  `json:"protocol_date"`
	DueDate        *time.Time `json:"due_date,omitempty"`
	RequesterID    int64      `json:"requester_id"`
	RequesterName  string     `json:"requester_name,omitempty"`
	Notes          string     `json:"notes,omitempty"`
	CreatedBy      int64      `json:"created_by"`
	CreatorName    string     `json:"creator_name,omitempty"`
	CreatedAt      time.Time  `json:"created_at"`
}

// IsOverdue reports whether a pending protocol is past its due date on the given day
func (p *Protocol) IsOverdue(today time.Time) bool {
	if p.DueDate == nil || p.Status != StatusPending {
		return false
	}
	y, m, d := today.Date()
	start := time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
	return p.DueDate.Before(start)
}

// ProtocolFilter narrows protocol listings; zero values mean no constraint
type ProtocolFilter struct {
	RequesterID  int64
	DocumentType string
	Status       Status
	Search       string
	DateFrom     *time.Time
	DateTo       *time.Time
	CreatedBy    int64
}
