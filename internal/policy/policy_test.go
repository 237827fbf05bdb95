package policy

import (
	"errors"
	"testing"
	"time"

	"github.com/adamscao/protocolreg/internal/models"
)

func TestAllows(t *testing.T) {
	tests := []struct {
		required, actual models.Role
		want             bool
	}{
		{models.RoleAdmin, models.RoleAdmin, true},
		{models.RoleAdmin, models.RoleUser, false},
		{models.RoleUser, models.RoleAdmin, true},
		{models.RoleUser, models.RoleUser, true},
		{models.RoleUser, "", false},
		{"guest", models.RoleAdmin, false},
	}
	for _, tt := range tests {
		if got := Allows(tt.required, tt.actual); got != tt.want {
			t.Errorf("Allows(%q, %q) = %v, want %v", tt.required, tt.actual, got, tt.want)
		}
	}
}

func TestCanEditProtocol(t *testing.T) {
	p := &models.Protocol{ID: 1, CreatedBy: 7}
	admin := models.Actor{UserID: 1, Role: models.RoleAdmin}
	owner := models.Actor{UserID: 7, Role: models.RoleUser}
	other := models.Actor{UserID: 8, Role: models.RoleUser}
	anonymous := models.Actor{Role: models.RoleUser}

	if !CanEditProtocol(admin, p) {
		t.Error("admin cannot edit")
	}
	if !CanEditProtocol(owner, p) {
		t.Error("creator cannot edit")
	}
	if CanEditProtocol(other, p) {
		t.Error("non-creator can edit")
	}
	if CanEditProtocol(anonymous, &models.Protocol{}) {
		t.Error("actor without id can edit an unowned protocol")
	}
	if CanEditProtocol(admin, nil) {
		t.Error("nil protocol is editable")
	}
}

func TestAccountAndAdminChecks(t *testing.T) {
	admin := models.Actor{UserID: 1, Role: models.RoleAdmin}
	user := models.Actor{UserID: 2, Role: models.RoleUser}

	if !CanManageAccount(admin, 2) || !CanManageAccount(user, 2) {
		t.Error("admin or self should manage the account")
	}
	if CanManageAccount(user, 1) {
		t.Error("user manages another account")
	}
	if CanDeleteProtocol(user) || CanManageUsers(user) || CanViewAudit(user) {
		t.Error("user granted an admin-only permission")
	}
	if !CanDeleteProtocol(admin) || !CanManageUsers(admin) || !CanViewAudit(admin) {
		t.Error("admin denied an admin permission")
	}
}

func field(err error) string {
	var ve *ValidationError
	if errors.As(err, &ve) {
		return ve.Field
	}
	return ""
}

func TestValidateProtocol(t *testing.T) {
	v := NewValidator([]string{"Memo", "Letter"}, 8)
	d := func(s string) *time.Time {
		tm, _ := time.Parse("2006-01-02", s)
		return &tm
	}
	ok := models.ProtocolInput{Title: "Budget", DocumentType: "Memo", RequesterID: 1}

	tests := []struct {
		name   string
		mutate func(*models.ProtocolInput)
		field  string
	}{
		{"valid", func(*models.ProtocolInput) {}, ""},
		{"blank title", func(in *models.ProtocolInput) { in.Title = "  " }, "title"},
		{"unknown type", func(in *models.ProtocolInput) { in.DocumentType = "Fax" }, "document_type"},
		{"no requester", func(in *models.ProtocolInput) { in.RequesterID = 0 }, "requester_id"},
		{"bad status", func(in *models.ProtocolInput) { in.Status = "Archived" }, "status"},
		{"due before date", func(in *models.ProtocolInput) {
			in.ProtocolDate, in.DueDate = d("2024-01-10"), d("2024-01-09")
		}, "due_date"},
		{"due same day", func(in *models.ProtocolInput) {
			in.ProtocolDate, in.DueDate = d("2024-01-10"), d("2024-01-10")
		}, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in := ok
			tt.mutate(&in)
			err := v.ValidateProtocol(in)
			if got := field(err); got != tt.field {
				t.Errorf("ValidateProtocol() error = %v, want field %q", err, tt.field)
			}
		})
	}
}

func TestValidateUsers(t *testing.T) {
	v := NewValidator(nil, 8)

	tests := []struct {
		name  string
		in    models.NewUser
		field string
	}{
		{"valid", models.NewUser{Login: "ana", Password: "longenough", DisplayName: "Ana", Role: models.RoleUser}, ""},
		{"empty login", models.NewUser{Password: "longenough", DisplayName: "Ana", Role: models.RoleUser}, "login"},
		{"spaced login", models.NewUser{Login: "a na", Password: "longenough", DisplayName: "Ana", Role: models.RoleUser}, "login"},
		{"short password", models.NewUser{Login: "ana", Password: "short", DisplayName: "Ana", Role: models.RoleUser}, "password"},
		{"bad email", models.NewUser{Login: "ana", Password: "longenough", DisplayName: "Ana", Email: "nope", Role: models.RoleUser}, "email"},
		{"bad role", models.NewUser{Login: "ana", Password: "longenough", DisplayName: "Ana", Role: "root"}, "role"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := field(v.ValidateNewUser(tt.in)); got != tt.field {
				t.Errorf("ValidateNewUser() field = %q, want %q", got, tt.field)
			}
		})
	}

	if field(v.ValidateRequester(models.RequesterInput{})) != "name" {
		t.Error("requester without name accepted")
	}
}

func TestValidateDateRange(t *testing.T) {
	a := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	b := time.Date(2024, 1, 31, 0, 0, 0, 0, time.UTC)

	if err := ValidateDateRange(&a, &b); err != nil {
		t.Errorf("ordered range rejected: %v", err)
	}
	if err := ValidateDateRange(&a, &a); err != nil {
		t.Errorf("single-day range rejected: %v", err)
	}
	if err := ValidateDateRange(&b, &a); field(err) != "date_from" {
		t.Errorf("inverted range error = %v", err)
	}
	if err := ValidateDateRange(nil, &a); err != nil {
		t.Errorf("open range rejected: %v", err)
	}
}
