package registry

import (
	"context"
	"crypto/rand"
	"database/sql"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/adamscao/protocolreg/internal/audit"
	"github.com/adamscao/protocolreg/internal/auth"
	"github.com/adamscao/protocolreg/internal/db/repository"
	"github.com/adamscao/protocolreg/internal/models"
	"github.com/adamscao/protocolreg/internal/policy"
)

// Identity owns user accounts, credentials and sessions
type Identity struct {
	*deps
}

// Credentials are presented at login. OTP is required only for accounts with TOTP enrolled.
type Credentials struct {
	Login    string
	Password string
	OTP      string
}

// LoginResult is returned by Login
type LoginResult struct {
	User      *models.User
	Token     string
	ExpiresAt time.Time
}

// Bootstrap describes the administrator seeded on first start
type Bootstrap struct {
	Login       string
	Password    string
	DisplayName string
}

// BootstrapResult reports what EnsureAdmin did
type BootstrapResult struct {
	Created bool
	// Reactivated is set when a disabled admin with the bootstrap login was
	// re-enabled and its password replaced
	Reactivated bool
	Login       string
	// GeneratedPassword is set when no password was configured
	GeneratedPassword string
}

// Verify checks credentials. Every failure yields ErrInvalidCredentials and one
// LOGIN_FAILED entry; success updates last_login_at and records LOGIN.
func (s *Identity) Verify(ctx context.Context, creds Credentials, meta models.Actor) (*models.User, error) {
	user, err := s.users.GetByLogin(ctx, creds.Login)
	if err != nil && !errors.Is(err, repository.ErrNotFound) {
		return nil, err
	}

	ok := false
	switch {
	case user == nil:
		auth.BurnCompare(creds.Password)
	case !auth.VerifyPassword(creds.Password, user.PasswordHash):
	case !user.Active:
	case user.TOTPEnabled() && !auth.ValidateTOTP(user.TOTPSecret, creds.OTP):
	default:
		ok = true
	}

	if !ok {
		s.audit.Write(ctx, audit.Entry{
			Actor:   models.Actor{SourceIP: meta.SourceIP, ClientAgent: meta.ClientAgent},
			Action:  models.ActionLoginFailed,
			Table:   models.TableUsers,
			Details: map[string]any{"login": creds.Login},
			Failed:  true,
		})
		return nil, ErrInvalidCredentials
	}

	var newHash string
	if auth.NeedsRehash(user.PasswordHash, s.opts.BcryptCost) {
		if newHash, err = auth.HashPassword(creds.Password, s.opts.BcryptCost); err != nil {
			return nil, err
		}
	}

	now := s.audit.Now()
	err = s.audit.Run(ctx, func(tx *sql.Tx) (audit.Entry, error) {
		users := s.users.WithTx(tx)
		if newHash != "" {
			if err := users.UpdatePassword(ctx, user.ID, newHash); err != nil {
				return audit.Entry{}, err
			}
		}
		if err := users.UpdateLastLogin(ctx, user.ID, now); err != nil {
			return audit.Entry{}, err
		}
		return audit.Entry{
			Actor:    actorFor(user, meta),
			Action:   models.ActionLogin,
			Table:    models.TableUsers,
			RecordID: user.ID,
			Details:  map[string]any{"login": user.Login},
		}, nil
	})
	if err != nil {
		return nil, err
	}

	if newHash != "" {
		user.PasswordHash = newHash
	}
	user.LastLoginAt = &now
	return user, nil
}

// Login verifies credentials and opens a session backed by a signed token
func (s *Identity) Login(ctx context.Context, creds Credentials, meta models.Actor) (*LoginResult, error) {
	user, err := s.Verify(ctx, creds, meta)
	if err != nil {
		return nil, err
	}

	tokenID, err := auth.GenerateTokenID()
	if err != nil {
		return nil, err
	}

	now := s.audit.Now()
	session := &models.Session{
		UserID:    user.ID,
		TokenHash: auth.HashToken(tokenID),
		SourceIP:  meta.SourceIP,
		CreatedAt: now,
		ExpiresAt: now.Add(s.opts.SessionTTL),
	}
	if err := s.sessions.Create(ctx, session); err != nil {
		return nil, err
	}

	token, err := auth.IssueToken(s.opts.JWTSecret, user.ID, string(user.Role), tokenID, now, session.ExpiresAt)
	if err != nil {
		return nil, err
	}

	return &LoginResult{User: user, Token: token, ExpiresAt: session.ExpiresAt}, nil
}

// Authenticate resolves a bearer token into the calling actor. The role is
// taken from the stored account, not from the token.
func (s *Identity) Authenticate(ctx context.Context, rawToken string, meta models.Actor) (models.Actor, *models.User, error) {
	now := s.audit.Now()
	claims, err := auth.ParseToken(s.opts.JWTSecret, rawToken, now)
	if err != nil {
		return models.Actor{}, nil, ErrInvalidSession
	}
	userID, err := claims.UserID()
	if err != nil {
		return models.Actor{}, nil, ErrInvalidSession
	}

	session, err := s.sessions.GetByTokenHash(ctx, auth.HashToken(claims.ID))
	if errors.Is(err, repository.ErrNotFound) {
		return models.Actor{}, nil, ErrInvalidSession
	}
	if err != nil {
		return models.Actor{}, nil, err
	}

	if session.UserID != userID || !session.Usable(now) {
		return models.Actor{}, nil, ErrInvalidSession
	}

	user, err := s.users.GetByID(ctx, userID)
	if errors.Is(err, repository.ErrNotFound) {
		return models.Actor{}, nil, ErrInvalidSession
	}
	if err != nil {
		return models.Actor{}, nil, err
	}
	if !user.Active {
		return models.Actor{}, nil, ErrInvalidSession
	}

	if err := s.sessions.UpdateLastUsed(ctx, session.ID, now); err != nil {
		s.logger.WarnContext(ctx, "failed to touch session", "session_id", session.ID, "error", err)
	}

	actor := actorFor(user, meta)
	actor.SessionID = session.ID
	return actor, user, nil
}

// Logout revokes the actor's session
func (s *Identity) Logout(ctx context.Context, actor models.Actor) error {
	return s.audit.Run(ctx, func(tx *sql.Tx) (audit.Entry, error) {
		if actor.SessionID != 0 {
			err := s.sessions.WithTx(tx).Revoke(ctx, actor.SessionID, s.audit.Now())
			if err != nil && !errors.Is(err, repository.ErrNotFound) {
				return audit.Entry{}, err
			}
		}
		return audit.Entry{
			Actor:    actor,
			Action:   models.ActionLogout,
			Table:    models.TableUsers,
			RecordID: actor.UserID,
			Details:  map[string]any{"login": actor.Login},
		}, nil
	})
}

// Get returns one account
func (s *Identity) Get(ctx context.Context, id int64) (*models.User, error) {
	return s.users.GetByID(ctx, id)
}

// List returns every account ordered by display name. Admin only.
func (s *Identity) List(ctx context.Context, actor models.Actor) ([]*models.User, error) {
	if !policy.CanManageUsers(actor) {
		return nil, ErrForbidden
	}
	return s.users.List(ctx)
}

// Create adds an account. A duplicate login yields ErrDuplicateLogin and a
// CREATE_ERROR entry.
func (s *Identity) Create(ctx context.Context, actor models.Actor, in models.NewUser) (*models.User, error) {
	if !policy.CanManageUsers(actor) {
		return nil, ErrForbidden
	}
	in.Login = strings.TrimSpace(in.Login)
	if err := s.validator.ValidateNewUser(in); err != nil {
		return nil, err
	}

	hash, err := auth.HashPassword(in.Password, s.opts.BcryptCost)
	if err != nil {
		return nil, err
	}

	user := &models.User{
		Login:        in.Login,
		PasswordHash: hash,
		DisplayName:  strings.TrimSpace(in.DisplayName),
		Email:        in.Email,
		Role:         in.Role,
		Active:       true,
		CreatedAt:    s.audit.Now(),
	}

	err = s.audit.Run(ctx, func(tx *sql.Tx) (audit.Entry, error) {
		if err := s.users.WithTx(tx).Create(ctx, user); err != nil {
			return audit.Entry{}, err
		}
		return audit.Entry{
			Actor:    actor,
			Action:   models.ActionCreate,
			Table:    models.TableUsers,
			RecordID: user.ID,
			Details:  userSnapshot(user),
		}, nil
	})
	if errors.Is(err, repository.ErrDuplicate) {
		s.audit.Write(ctx, audit.Entry{
			Actor:   actor,
			Action:  models.ActionCreateError,
			Table:   models.TableUsers,
			Details: map[string]any{"login": in.Login, "error": ErrDuplicateLogin.Error()},
			Failed:  true,
		})
		return nil, ErrDuplicateLogin
	}
	if err != nil {
		return nil, err
	}
	return user, nil
}

// Update replaces the profile fields of an account
func (s *Identity) Update(ctx context.Context, actor models.Actor, id int64, in models.UserUpdate) (*models.User, error) {
	if !policy.CanManageUsers(actor) {
		return nil, ErrForbidden
	}
	if err := s.validator.ValidateUserUpdate(in); err != nil {
		return nil, err
	}

	var after *models.User
	err := s.audit.Run(ctx, func(tx *sql.Tx) (audit.Entry, error) {
		users := s.users.WithTx(tx)
		before, err := users.GetByID(ctx, id)
		if err != nil {
			return audit.Entry{}, err
		}

		updated := *before
		updated.DisplayName = strings.TrimSpace(in.DisplayName)
		updated.Email = in.Email
		updated.Role = in.Role
		updated.Active = in.Active

		if before.IsActiveAdmin() && !updated.IsActiveAdmin() {
			if err := s.ensureOtherAdmin(ctx, users); err != nil {
				return audit.Entry{}, err
			}
		}

		if err := users.Update(ctx, &updated); err != nil {
			return audit.Entry{}, err
		}
		after = &updated

		changes := audit.Changes{}.
			Set("display_name", before.DisplayName, updated.DisplayName).
			Set("email", before.Email, updated.Email).
			Set("role", before.Role, updated.Role).
			Set("active", before.Active, updated.Active)
		return audit.Entry{
			Actor:    actor,
			Action:   models.ActionUpdate,
			Table:    models.TableUsers,
			RecordID: id,
			Details:  audit.Diff(changes, map[string]any{"login": before.Login}),
		}, nil
	})
	if err != nil {
		return nil, err
	}
	return after, nil
}

// SetPassword overwrites the password hash. Allowed for admins and for the account owner.
func (s *Identity) SetPassword(ctx context.Context, actor models.Actor, id int64, password string) error {
	if !policy.CanManageAccount(actor, id) {
		return ErrForbidden
	}
	if err := s.validator.ValidatePassword(password); err != nil {
		return err
	}

	hash, err := auth.HashPassword(password, s.opts.BcryptCost)
	if err != nil {
		return err
	}

	return s.audit.Run(ctx, func(tx *sql.Tx) (audit.Entry, error) {
		users := s.users.WithTx(tx)
		user, err := users.GetByID(ctx, id)
		if err != nil {
			return audit.Entry{}, err
		}
		if err := users.UpdatePassword(ctx, id, hash); err != nil {
			return audit.Entry{}, err
		}
		return audit.Entry{
			Actor:    actor,
			Action:   models.ActionAlterPassword,
			Table:    models.TableUsers,
			RecordID: id,
			Details:  map[string]any{"login": user.Login},
		}, nil
	})
}

// Delete removes an account. Users cannot delete themselves, the last active
// admin cannot be removed and accounts that created protocols are kept.
func (s *Identity) Delete(ctx context.Context, actor models.Actor, id int64) error {
	if !policy.CanManageUsers(actor) {
		return ErrForbidden
	}
	if actor.UserID == id {
		return ErrSelfDelete
	}

	return s.audit.Run(ctx, func(tx *sql.Tx) (audit.Entry, error) {
		users := s.users.WithTx(tx)
		user, err := users.GetByID(ctx, id)
		if err != nil {
			return audit.Entry{}, err
		}

		if user.IsActiveAdmin() {
			if err := s.ensureOtherAdmin(ctx, users); err != nil {
				return audit.Entry{}, err
			}
		}

		n, err := s.protocols.WithTx(tx).CountByCreator(ctx, id)
		if err != nil {
			return audit.Entry{}, err
		}
		if n > 0 {
			return audit.Entry{}, fmt.Errorf("%w: user created %d protocols", ErrReferenced, n)
		}

		if err := users.Delete(ctx, id); err != nil {
			return audit.Entry{}, err
		}
		return audit.Entry{
			Actor:    actor,
			Action:   models.ActionDelete,
			Table:    models.TableUsers,
			RecordID: id,
			Details:  map[string]any{"login": user.Login, "display_name": user.DisplayName},
		}, nil
	})
}

// EnableTOTP enrols a new second factor and returns its otpauth:// URL
func (s *Identity) EnableTOTP(ctx context.Context, actor models.Actor, id int64) (string, error) {
	if !policy.CanManageAccount(actor, id) {
		return "", ErrForbidden
	}

	var url string
	err := s.audit.Run(ctx, func(tx *sql.Tx) (audit.Entry, error) {
		users := s.users.WithTx(tx)
		user, err := users.GetByID(ctx, id)
		if err != nil {
			return audit.Entry{}, err
		}

		var secret string
		secret, url, err = auth.GenerateTOTPKey(s.opts.TOTPIssuer, user.Login)
		if err != nil {
			return audit.Entry{}, err
		}
		if err := users.UpdateTOTPSecret(ctx, id, secret); err != nil {
			return audit.Entry{}, err
		}
		return audit.Entry{
			Actor:    actor,
			Action:   models.ActionEnableTOTP,
			Table:    models.TableUsers,
			RecordID: id,
			Details:  map[string]any{"login": user.Login},
		}, nil
	})
	if err != nil {
		return "", err
	}
	return url, nil
}

// DisableTOTP removes the second factor of an account
func (s *Identity) DisableTOTP(ctx context.Context, actor models.Actor, id int64) error {
	if !policy.CanManageAccount(actor, id) {
		return ErrForbidden
	}

	return s.audit.Run(ctx, func(tx *sql.Tx) (audit.Entry, error) {
		users := s.users.WithTx(tx)
		user, err := users.GetByID(ctx, id)
		if err != nil {
			return audit.Entry{}, err
		}
		if err := users.UpdateTOTPSecret(ctx, id, ""); err != nil {
			return audit.Entry{}, err
		}
		return audit.Entry{
			Actor:    actor,
			Action:   models.ActionDisableTOTP,
			Table:    models.TableUsers,
			RecordID: id,
			Details:  map[string]any{"login": user.Login},
		}, nil
	})
}

// EnsureAdmin seeds an administrator when no active one exists. It is
// idempotent: with an active admin present it does nothing.
//
// When the bootstrap login already belongs to a disabled admin, that account
// is re-enabled and its password is replaced with the bootstrap password.
// A bootstrap login held by a non-admin account is never promoted; EnsureAdmin
// fails with ErrBootstrapConflict and changes nothing.
func (s *Identity) EnsureAdmin(ctx context.Context, b Bootstrap) (*BootstrapResult, error) {
	count, err := s.users.CountActiveAdmins(ctx)
	if err != nil {
		return nil, err
	}
	if count > 0 {
		return &BootstrapResult{}, nil
	}

	if b.Login == "" {
		return nil, fmt.Errorf("bootstrap login is required")
	}
	if b.DisplayName == "" {
		b.DisplayName = "Administrator"
	}

	result := &BootstrapResult{Created: true, Login: b.Login}
	password := b.Password
	if password == "" {
		if password, err = randomPassword(); err != nil {
			return nil, err
		}
		result.GeneratedPassword = password
	}
	if err := s.validator.ValidatePassword(password); err != nil {
		return nil, err
	}

	hash, err := auth.HashPassword(password, s.opts.BcryptCost)
	if err != nil {
		return nil, err
	}

	err = s.audit.Run(ctx, func(tx *sql.Tx) (audit.Entry, error) {
		users := s.users.WithTx(tx)

		existing, err := users.GetByLogin(ctx, b.Login)
		if err != nil && !errors.Is(err, repository.ErrNotFound) {
			return audit.Entry{}, err
		}

		if existing != nil {
			if existing.Role != models.RoleAdmin {
				return audit.Entry{}, ErrBootstrapConflict
			}
			reactivated := *existing
			reactivated.Active = true
			if err := users.Update(ctx, &reactivated); err != nil {
				return audit.Entry{}, err
			}
			if err := users.UpdatePassword(ctx, existing.ID, hash); err != nil {
				return audit.Entry{}, err
			}
			result.Created = false
			result.Reactivated = true
			changes := audit.Changes{}.Set("active", existing.Active, reactivated.Active)
			return audit.Entry{
				Actor:    models.System,
				Action:   models.ActionUpdate,
				Table:    models.TableUsers,
				RecordID: existing.ID,
				Details:  audit.Diff(changes, map[string]any{"login": existing.Login, "bootstrap": true, "password_reset": true}),
			}, nil
		}

		user := &models.User{
			Login:        b.Login,
			PasswordHash: hash,
			DisplayName:  b.DisplayName,
			Role:         models.RoleAdmin,
			Active:       true,
			CreatedAt:    s.audit.Now(),
		}
		if err := users.Create(ctx, user); err != nil {
			return audit.Entry{}, err
		}
		details := userSnapshot(user)
		details["bootstrap"] = true
		return audit.Entry{
			Actor:    models.System,
			Action:   models.ActionCreate,
			Table:    models.TableUsers,
			RecordID: user.ID,
			Details:  details,
		}, nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

func (s *Identity) ensureOtherAdmin(ctx context.Context, users *repository.UserRepository) error {
	n, err := users.CountActiveAdmins(ctx)
	if err != nil {
		return err
	}
	if n <= 1 {
		return ErrLastAdmin
	}
	return nil
}

func actorFor(user *models.User, meta models.Actor) models.Actor {
	return models.Actor{
		UserID:      user.ID,
		Login:       user.Login,
		Role:        user.Role,
		SessionID:   meta.SessionID,
		SourceIP:    meta.SourceIP,
		ClientAgent: meta.ClientAgent,
	}
}

func userSnapshot(u *models.User) map[string]any {
	return map[string]any{
		"login":        u.Login,
		"display_name": u.DisplayName,
		"email":        u.Email,
		"role":         u.Role,
		"active":       u.Active,
	}
}

func randomPassword() (string, error) {
	buf := make([]byte, 18)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("failed to generate password: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}
