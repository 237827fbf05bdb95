package registry

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/adamscao/protocolreg/internal/audit"
	"github.com/adamscao/protocolreg/internal/db/repository"
	"github.com/adamscao/protocolreg/internal/models"
	"github.com/adamscao/protocolreg/internal/policy"
)

// Protocols is the protocol registry
type Protocols struct {
	*deps
}

// GenerateNumber draws the next number for the current year. The value is
// consumed even if no protocol is stored under it.
func (s *Protocols) GenerateNumber(ctx context.Context) (string, error) {
	var number string
	err := s.db.WithTx(ctx, func(tx *sql.Tx) error {
		var err error
		number, err = s.nextNumber(ctx, tx)
		return err
	})
	if err != nil {
		return "", err
	}
	return number, nil
}

func (s *Protocols) nextNumber(ctx context.Context, tx *sql.Tx) (string, error) {
	year := s.audit.Now().Year()
	seq, err := s.sequences.WithTx(tx).Next(ctx, s.opts.NumberPrefix, year)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%s-%d-%04d", s.opts.NumberPrefix, year, seq), nil
}

// Create registers a protocol with status Pending and a freshly drawn number
func (s *Protocols) Create(ctx context.Context, actor models.Actor, in models.ProtocolInput) (*models.Protocol, error) {
	if !policy.Allows(models.RoleUser, actor.Role) || actor.UserID == 0 {
		return nil, ErrForbidden
	}

	in = trimProtocol(in)
	if in.ProtocolDate == nil {
		today := s.today()
		in.ProtocolDate = &today
	}
	in.Status = ""
	if err := s.validator.ValidateProtocol(in); err != nil {
		return nil, err
	}

	p := &models.Protocol{
		Title:        in.Title,
		Description:  in.Description,
		DocumentType: in.DocumentType,
		Status:       models.StatusPending,
		ProtocolDate: *in.ProtocolDate,
		DueDate:      in.DueDate,
		RequesterID:  in.RequesterID,
		Notes:        in.Notes,
		CreatedBy:    actor.UserID,
		CreatedAt:    s.audit.Now(),
	}

	err := s.audit.Run(ctx, func(tx *sql.Tx) (audit.Entry, error) {
		if err := s.requireRequester(ctx, tx, in.RequesterID); err != nil {
			return audit.Entry{}, err
		}

		number, err := s.nextNumber(ctx, tx)
		if err != nil {
			return audit.Entry{}, err
		}
		p.ProtocolNumber = number

		if err := s.protocols.WithTx(tx).Create(ctx, p); err != nil {
			return audit.Entry{}, err
		}
		return audit.Entry{
			Actor:    actor,
			Action:   models.ActionCreate,
			Table:    models.TableProtocols,
			RecordID: p.ID,
			Details: map[string]any{
				"protocol_number": p.ProtocolNumber,
				"title":           p.Title,
				"document_type":   p.DocumentType,
				"requester_id":    p.RequesterID,
			},
		}, nil
	})
	if err != nil {
		return nil, err
	}

	return s.protocols.GetByID(ctx, p.ID)
}

// Get returns one protocol with requester and creator names
func (s *Protocols) Get(ctx context.Context, id int64) (*models.Protocol, error) {
	return s.protocols.GetByID(ctx, id)
}

// List returns every protocol matching filter, newest number first
func (s *Protocols) List(ctx context.Context, filter models.ProtocolFilter) ([]*models.Protocol, error) {
	if err := policy.ValidateDateRange(filter.DateFrom, filter.DateTo); err != nil {
		return nil, err
	}
	return s.protocols.List(ctx, filter)
}

// ListOwned is List restricted to protocols created by the actor
func (s *Protocols) ListOwned(ctx context.Context, actor models.Actor, filter models.ProtocolFilter) ([]*models.Protocol, error) {
	if actor.UserID == 0 {
		return nil, ErrForbidden
	}
	filter.CreatedBy = actor.UserID
	return s.List(ctx, filter)
}

// CanEdit reports whether the actor may update the protocol
func (s *Protocols) CanEdit(actor models.Actor, p *models.Protocol) bool {
	return policy.CanEditProtocol(actor, p)
}

// Update replaces the mutable fields of a protocol. The number never changes and
// the protocol date must be omitted or unchanged.
func (s *Protocols) Update(ctx context.Context, actor models.Actor, id int64, in models.ProtocolInput) (*models.Protocol, error) {
	in = trimProtocol(in)

	err := s.audit.Run(ctx, func(tx *sql.Tx) (audit.Entry, error) {
		repo := s.protocols.WithTx(tx)
		before, err := repo.GetByID(ctx, id)
		if err != nil {
			return audit.Entry{}, err
		}
		if !policy.CanEditProtocol(actor, before) {
			return audit.Entry{}, ErrForbidden
		}

		if in.ProtocolDate != nil && !sameDay(*in.ProtocolDate, before.ProtocolDate) {
			return audit.Entry{}, &policy.ValidationError{Field: "protocol_date", Message: "cannot be changed after creation"}
		}
		in.ProtocolDate = &before.ProtocolDate
		if in.Status == "" {
			in.Status = before.Status
		}
		if err := s.validator.ValidateProtocol(in); err != nil {
			return audit.Entry{}, err
		}
		if in.RequesterID != before.RequesterID {
			if err := s.requireRequester(ctx, tx, in.RequesterID); err != nil {
				return audit.Entry{}, err
			}
		}

		updated := *before
		updated.Title = in.Title
		updated.Description = in.Description
		updated.DocumentType = in.DocumentType
		updated.Status = in.Status
		updated.DueDate = in.DueDate
		updated.RequesterID = in.RequesterID
		updated.Notes = in.Notes
		if err := repo.Update(ctx, &updated); err != nil {
			return audit.Entry{}, err
		}

		changes := audit.Changes{}.
			Set("title", before.Title, updated.Title).
			Set("status", before.Status, updated.Status).
			Set("document_type", before.DocumentType, updated.DocumentType)
		return audit.Entry{
			Actor:    actor,
			Action:   models.ActionUpdate,
			Table:    models.TableProtocols,
			RecordID: id,
			Details:  audit.Diff(changes, map[string]any{"protocol_number": before.ProtocolNumber}),
		}, nil
	})
	if err != nil {
		return nil, err
	}

	return s.protocols.GetByID(ctx, id)
}

// Delete removes a protocol. Admin only.
func (s *Protocols) Delete(ctx context.Context, actor models.Actor, id int64) error {
	if !policy.CanDeleteProtocol(actor) {
		return ErrForbidden
	}

	return s.audit.Run(ctx, func(tx *sql.Tx) (audit.Entry, error) {
		repo := s.protocols.WithTx(tx)
		p, err := repo.GetByID(ctx, id)
		if err != nil {
			return audit.Entry{}, err
		}
		if err := repo.Delete(ctx, id); err != nil {
			return audit.Entry{}, err
		}
		return audit.Entry{
			Actor:    actor,
			Action:   models.ActionDelete,
			Table:    models.TableProtocols,
			RecordID: id,
			Details: map[string]any{
				"protocol_number": p.ProtocolNumber,
				"title":           p.Title,
			},
		}, nil
	})
}

// DocumentTypes returns the configured document types
func (s *Protocols) DocumentTypes() []string {
	return append([]string(nil), s.opts.DocumentTypes...)
}

func (s *Protocols) requireRequester(ctx context.Context, tx *sql.Tx, id int64) error {
	_, err := s.requesters.WithTx(tx).GetByID(ctx, id)
	if errors.Is(err, repository.ErrNotFound) {
		return &policy.ValidationError{Field: "requester_id", Message: "requester does not exist"}
	}
	return err
}

func trimProtocol(in models.ProtocolInput) models.ProtocolInput {
	in.Title = strings.TrimSpace(in.Title)
	in.Description = strings.TrimSpace(in.Description)
	in.DocumentType = strings.TrimSpace(in.DocumentType)
	in.Notes = strings.TrimSpace(in.Notes)
	return in
}

func sameDay(a, b time.Time) bool {
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	return ay == by && am == bm && ad == bd
}
