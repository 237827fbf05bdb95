package models

import "time"

// NewUser carries the fields needed to create an account
type NewUser struct {
	Login       string `json:"login"`
	Password    string `json:"password"`
	DisplayName string `json:"display_name"`
	Email       string `json:"email"`
	Role        Role   `json:"role"`
}

// UserUpdate replaces the profile fields of an account
type UserUpdate struct {
	DisplayName string `json:"display_name"`
	Email       string `json:"email"`
	Role        Role   `json:"role"`
	Active      bool   `json:"active"`
}

// RequesterInput replaces every mutable requester field
type RequesterInput struct {
	Name       string `json:"name"`
	Email      string `json:"email"`
	Phone      string `json:"phone"`
	Department string `json:"department"`
}

// ProtocolInput is used for both creation and full updates. Status is ignored on
// create. ProtocolDate defaults to today on create and must be unchanged on update.
type ProtocolInput struct {
	Title        string
	Description  string
	DocumentType string
	Status       Status
	ProtocolDate *time.Time
	DueDate      *time.Time
	RequesterID  int64
	Notes        string
}
