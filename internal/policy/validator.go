package policy

import (
	"fmt"
	"net/mail"
	"strings"
	"time"

	"github.com/adamscao/protocolreg/internal/models"
)

// ValidationError reports a rejected input field
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

func invalid(field, format string, args ...any) error {
	return &ValidationError{Field: field, Message: fmt.Sprintf(format, args...)}
}

// Validator validates registry inputs against configured policy
type Validator struct {
	documentTypes     map[string]bool
	minPasswordLength int
}

// NewValidator creates a new policy validator
func NewValidator(documentTypes []string, minPasswordLength int) *Validator {
	types := make(map[string]bool, len(documentTypes))
	for _, t := range documentTypes {
		types[t] = true
	}
	return &Validator{
		documentTypes:     types,
		minPasswordLength: minPasswordLength,
	}
}

// ValidateNewUser validates an account creation request
func (v *Validator) ValidateNewUser(in models.NewUser) error {
	if strings.TrimSpace(in.Login) == "" {
		return invalid("login", "is required")
	}
	if strings.ContainsAny(in.Login, " \t\n") {
		return invalid("login", "must not contain whitespace")
	}
	if err := v.ValidatePassword(in.Password); err != nil {
		return err
	}
	return v.validateProfile(in.DisplayName, in.Email, in.Role)
}

// ValidateUserUpdate validates a profile update
func (v *Validator) ValidateUserUpdate(in models.UserUpdate) error {
	return v.validateProfile(in.DisplayName, in.Email, in.Role)
}

// ValidatePassword enforces the minimum password length
func (v *Validator) ValidatePassword(password string) error {
	if len(password) < v.minPasswordLength {
		return invalid("password", "must be at least %d characters", v.minPasswordLength)
	}
	return nil
}

func (v *Validator) validateProfile(displayName, email string, role models.Role) error {
	if strings.TrimSpace(displayName) == "" {
		return invalid("display_name", "is required")
	}
	if err := validateEmail(email); err != nil {
		return err
	}
	if !role.Valid() {
		return invalid("role", "must be 'admin' or 'user'")
	}
	return nil
}

// ValidateRequester validates requester fields
func (v *Validator) ValidateRequester(in models.RequesterInput) error {
	if strings.TrimSpace(in.Name) == "" {
		return invalid("name", "is required")
	}
	return validateEmail(in.Email)
}

// ValidateProtocol validates protocol fields shared by create and update
func (v *Validator) ValidateProtocol(in models.ProtocolInput) error {
	if strings.TrimSpace(in.Title) == "" {
		return invalid("title", "is required")
	}
	if !v.documentTypes[in.DocumentType] {
		return invalid("document_type", "unknown document type %q", in.DocumentType)
	}
	if in.RequesterID <= 0 {
		return invalid("requester_id", "is required")
	}
	if in.Status != "" && !in.Status.Valid() {
		return invalid("status", "unknown status %q", in.Status)
	}
	if in.ProtocolDate != nil && in.DueDate != nil && dateOnly(*in.DueDate).Before(dateOnly(*in.ProtocolDate)) {
		return invalid("due_date", "must not be before protocol_date")
	}
	return nil
}

// ValidateDateRange checks that from is not after to when both are set
func ValidateDateRange(from, to *time.Time) error {
	if from != nil && to != nil && dateOnly(*from).After(dateOnly(*to)) {
		return invalid("date_from", "must not be after date_to")
	}
	return nil
}

func validateEmail(email string) error {
	if email == "" {
		return nil
	}
	if _, err := mail.ParseAddress(email); err != nil {
		return invalid("email", "is not a valid address")
	}
	return nil
}

func dateOnly(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
