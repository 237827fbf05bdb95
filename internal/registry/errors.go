package registry

import (
	"errors"

	"github.com/adamscao/protocolreg/internal/audit"
	"github.com/adamscao/protocolreg/internal/db/repository"
)

// Errors returned by registry operations. Validation failures are *policy.ValidationError.
var (
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrInvalidSession     = errors.New("invalid or expired session")
	ErrDuplicateLogin     = errors.New("login already exists")
	ErrForbidden          = errors.New("operation not permitted")
	ErrSelfDelete         = errors.New("users cannot delete their own account")
	ErrLastAdmin          = errors.New("at least one active administrator must remain")
	ErrBootstrapConflict  = errors.New("bootstrap login belongs to a non-admin account")

	ErrNotFound   = repository.ErrNotFound
	ErrReferenced = repository.ErrReferenced
	ErrAuditWrite = audit.ErrWriteFailed
)
