package registry

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/adamscao/protocolreg/internal/audit"
	"github.com/adamscao/protocolreg/internal/models"
	"github.com/adamscao/protocolreg/internal/policy"
)

// Requesters is the requester registry. Any authenticated user may mutate it.
type Requesters struct {
	*deps
}

// Create adds a requester
func (s *Requesters) Create(ctx context.Context, actor models.Actor, in models.RequesterInput) (*models.Requester, error) {
	if !policy.Allows(models.RoleUser, actor.Role) {
		return nil, ErrForbidden
	}
	in = trimRequester(in)
	if err := s.validator.ValidateRequester(in); err != nil {
		return nil, err
	}

	req := &models.Requester{
		Name:       in.Name,
		Email:      in.Email,
		Phone:      in.Phone,
		Department: in.Department,
		CreatedAt:  s.audit.Now(),
	}

	err := s.audit.Run(ctx, func(tx *sql.Tx) (audit.Entry, error) {
		if err := s.requesters.WithTx(tx).Create(ctx, req); err != nil {
			return audit.Entry{}, err
		}
		return audit.Entry{
			Actor:    actor,
			Action:   models.ActionCreate,
			Table:    models.TableRequesters,
			RecordID: req.ID,
			Details:  requesterSnapshot(req),
		}, nil
	})
	if err != nil {
		return nil, err
	}
	return req, nil
}

// Get returns one requester
func (s *Requesters) Get(ctx context.Context, id int64) (*models.Requester, error) {
	return s.requesters.GetByID(ctx, id)
}

// List returns every requester ordered by name
func (s *Requesters) List(ctx context.Context) ([]*models.Requester, error) {
	return s.requesters.List(ctx)
}

// Update replaces the fields of a requester
func (s *Requesters) Update(ctx context.Context, actor models.Actor, id int64, in models.RequesterInput) (*models.Requester, error) {
	if !policy.Allows(models.RoleUser, actor.Role) {
		return nil, ErrForbidden
	}
	in = trimRequester(in)
	if err := s.validator.ValidateRequester(in); err != nil {
		return nil, err
	}

	var after *models.Requester
	err := s.audit.Run(ctx, func(tx *sql.Tx) (audit.Entry, error) {
		repo := s.requesters.WithTx(tx)
		before, err := repo.GetByID(ctx, id)
		if err != nil {
			return audit.Entry{}, err
		}

		updated := *before
		updated.Name = in.Name
		updated.Email = in.Email
		updated.Phone = in.Phone
		updated.Department = in.Department
		if err := repo.Update(ctx, &updated); err != nil {
			return audit.Entry{}, err
		}
		after = &updated

		changes := audit.Changes{}.
			Set("name", before.Name, updated.Name).
			Set("email", before.Email, updated.Email).
			Set("phone", before.Phone, updated.Phone).
			Set("department", before.Department, updated.Department)
		return audit.Entry{
			Actor:    actor,
			Action:   models.ActionUpdate,
			Table:    models.TableRequesters,
			RecordID: id,
			Details:  audit.Diff(changes, nil),
		}, nil
	})
	if err != nil {
		return nil, err
	}
	return after, nil
}

// Delete removes a requester that no protocol references
func (s *Requesters) Delete(ctx context.Context, actor models.Actor, id int64) error {
	if !policy.Allows(models.RoleUser, actor.Role) {
		return ErrForbidden
	}

	return s.audit.Run(ctx, func(tx *sql.Tx) (audit.Entry, error) {
		repo := s.requesters.WithTx(tx)
		req, err := repo.GetByID(ctx, id)
		if err != nil {
			return audit.Entry{}, err
		}

		n, err := s.protocols.WithTx(tx).CountByRequester(ctx, id)
		if err != nil {
			return audit.Entry{}, err
		}
		if n > 0 {
			return audit.Entry{}, fmt.Errorf("%w: requester has %d protocols", ErrReferenced, n)
		}

		if err := repo.Delete(ctx, id); err != nil {
			return audit.Entry{}, err
		}
		return audit.Entry{
			Actor:    actor,
			Action:   models.ActionDelete,
			Table:    models.TableRequesters,
			RecordID: id,
			Details:  requesterSnapshot(req),
		}, nil
	})
}

func trimRequester(in models.RequesterInput) models.RequesterInput {
	in.Name = strings.TrimSpace(in.Name)
	in.Email = strings.TrimSpace(in.Email)
	in.Phone = strings.TrimSpace(in.Phone)
	in.Department = strings.TrimSpace(in.Department)
	return in
}

func requesterSnapshot(r *models.Requester) map[string]any {
	return map[string]any{
		"name":       r.Name,
		"email":      r.Email,
		"phone":      r.Phone,
		"department": r.Department,
	}
}
