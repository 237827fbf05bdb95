package registry

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/pquerna/otp/totp"
	"golang.org/x/crypto/bcrypt"

	"github.com/adamscao/protocolreg/internal/audit"
	"github.com/adamscao/protocolreg/internal/config"
	"github.com/adamscao/protocolreg/internal/db"
	"github.com/adamscao/protocolreg/internal/logging"
	"github.com/adamscao/protocolreg/internal/models"
)

const (
	testSecret   = "0123456789abcdef0123456789abcdef"
	testPassword = "s3cret-pass"
)

type testEnv struct {
	reg   *Registry
	db    *db.DB
	now   time.Time
	admin models.Actor
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	ctx := context.Background()

	database, err := db.New(filepath.Join(t.TempDir(), "registry.db"))
	if err != nil {
		t.Fatalf("db.New() error = %v", err)
	}
	t.Cleanup(func() { database.Close() })
	if err := db.RunMigrations(ctx, database); err != nil {
		t.Fatalf("RunMigrations() error = %v", err)
	}

	env := &testEnv{db: database, now: time.Date(2024, 1, 10, 9, 0, 0, 0, time.UTC)}
	logger := logging.Discard()
	auditLog := audit.New(database, audit.Options{
		Policy: config.AuditPolicyAtomic,
		Now:    func() time.Time { return env.now },
		Logger: logger,
	})
	env.reg = New(database, auditLog, Options{
		BcryptCost: bcrypt.MinCost,
		JWTSecret:  testSecret,
		SessionTTL: time.Hour,
		Logger:     logger,
	})

	res, err := env.reg.Identity.EnsureAdmin(ctx, Bootstrap{Login: "admin", Password: testPassword})
	if err != nil || !res.Created {
		t.Fatalf("EnsureAdmin() = %+v, %v", res, err)
	}
	admin, err := env.reg.Identity.Verify(ctx, Credentials{Login: "admin", Password: testPassword}, models.Actor{})
	if err != nil {
		t.Fatalf("Verify(admin) error = %v", err)
	}
	env.admin = models.Actor{UserID: admin.ID, Login: admin.Login, Role: models.RoleAdmin}
	return env
}

func (e *testEnv) createUser(t *testing.T, login string, role models.Role) models.Actor {
	t.Helper()
	u, err := e.reg.Identity.Create(context.Background(), e.admin, models.NewUser{
		Login: login, Password: testPassword, DisplayName: "User " + login, Role: role,
	})
	if err != nil {
		t.Fatalf("Create(%s) error = %v", login, err)
	}
	return models.Actor{UserID: u.ID, Login: u.Login, Role: u.Role}
}

func (e *testEnv) entries(t *testing.T, filter models.AuditFilter) []*models.LogEntry {
	t.Helper()
	got, err := e.reg.Audit.Query(context.Background(), filter, 1000)
	if err != nil {
		t.Fatalf("Query() error = %v", err)
	}
	return got
}

func date(s string) *time.Time {
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		panic(err)
	}
	return &t
}

func TestVerifyFailuresAreAudited(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)

	cases := []Credentials{
		{Login: "admin", Password: "wrong"},
		{Login: "nobody", Password: testPassword},
	}
	for _, creds := range cases {
		before := len(env.entries(t, models.AuditFilter{Action: models.ActionLoginFailed}))
		if _, err := env.reg.Identity.Verify(ctx, creds, models.Actor{SourceIP: "10.1.1.1"}); !errors.Is(err, ErrInvalidCredentials) {
			t.Fatalf("Verify(%s) error = %v, want ErrInvalidCredentials", creds.Login, err)
		}
		failed := env.entries(t, models.AuditFilter{Action: models.ActionLoginFailed})
		if len(failed) != before+1 {
			t.Fatalf("LOGIN_FAILED entries = %d, want %d", len(failed), before+1)
		}
		e := failed[0]
		if e.Status != models.AuditError || e.ActorUserID != nil || e.SourceIP != "10.1.1.1" {
			t.Errorf("failed login entry = %+v", e)
		}
		if d, _ := e.DecodeDetails(); d["login"] != creds.Login {
			t.Errorf("details = %s", e.Details)
		}
	}
}

func TestVerifySuccessUpdatesLastLogin(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	env.now = env.now.Add(3 * time.Hour)

	u, err := env.reg.Identity.Verify(ctx, Credentials{Login: "admin", Password: testPassword}, models.Actor{})
	if err != nil {
		t.Fatalf("Verify() error = %v", err)
	}
	stored, _ := env.reg.Identity.Get(ctx, u.ID)
	if stored.LastLoginAt == nil || stored.LastLoginAt.Before(env.now) {
		t.Errorf("LastLoginAt = %v, want >= %v", stored.LastLoginAt, env.now)
	}

	logins := env.entries(t, models.AuditFilter{Action: models.ActionLogin})
	if len(logins) != 2 || *logins[0].ActorUserID != u.ID {
		t.Errorf("LOGIN entries = %d", len(logins))
	}
}

func TestVerifyRejectsInactiveAccount(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	bob := env.createUser(t, "bob", models.RoleUser)

	if _, err := env.reg.Identity.Update(ctx, env.admin, bob.UserID, models.UserUpdate{
		DisplayName: "Bob", Role: models.RoleUser, Active: false,
	}); err != nil {
		t.Fatalf("Update() error = %v", err)
	}
	if _, err := env.reg.Identity.Verify(ctx, Credentials{Login: "bob", Password: testPassword}, models.Actor{}); !errors.Is(err, ErrInvalidCredentials) {
		t.Errorf("Verify(inactive) error = %v", err)
	}
}

func TestLegacyHashIsUpgraded(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	bob := env.createUser(t, "bob", models.RoleUser)

	// sha256("admin123")
	legacy := "240be518fabd2724ddb6f04eeb1da5967448d7e831c08c8fa822809f74c720a9"
	if _, err := env.db.Exec(`UPDATE users SET password_hash = ? WHERE id = ?`, legacy, bob.UserID); err != nil {
		t.Fatalf("seed legacy hash: %v", err)
	}

	if _, err := env.reg.Identity.Verify(ctx, Credentials{Login: "bob", Password: "admin123"}, models.Actor{}); err != nil {
		t.Fatalf("Verify() with legacy hash error = %v", err)
	}

	var stored string
	env.db.QueryRow(`SELECT password_hash FROM users WHERE id = ?`, bob.UserID).Scan(&stored)
	if stored == legacy || bcrypt.CompareHashAndPassword([]byte(stored), []byte("admin123")) != nil {
		t.Errorf("password hash not upgraded to bcrypt: %q", stored)
	}
}

func TestLoginSessionLifecycle(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	env.createUser(t, "bob", models.RoleUser)

	res, err := env.reg.Identity.Login(ctx, Credentials{Login: "bob", Password: testPassword}, models.Actor{SourceIP: "1.2.3.4"})
	if err != nil {
		t.Fatalf("Login() error = %v", err)
	}

	actor, user, err := env.reg.Identity.Authenticate(ctx, res.Token, models.Actor{SourceIP: "1.2.3.4"})
	if err != nil {
		t.Fatalf("Authenticate() error = %v", err)
	}
	if actor.UserID != user.ID || actor.Role != models.RoleUser || actor.SessionID == 0 || actor.SourceIP != "1.2.3.4" {
		t.Errorf("actor = %+v", actor)
	}

	if err := env.reg.Identity.Logout(ctx, actor); err != nil {
		t.Fatalf("Logout() error = %v", err)
	}
	if _, _, err := env.reg.Identity.Authenticate(ctx, res.Token, models.Actor{}); !errors.Is(err, ErrInvalidSession) {
		t.Errorf("Authenticate() after logout error = %v, want ErrInvalidSession", err)
	}
	if n := len(env.entries(t, models.AuditFilter{Action: models.ActionLogout})); n != 1 {
		t.Errorf("LOGOUT entries = %d, want 1", n)
	}

	res, _ = env.reg.Identity.Login(ctx, Credentials{Login: "bob", Password: testPassword}, models.Actor{})
	env.now = env.now.Add(2 * time.Hour)
	if _, _, err := env.reg.Identity.Authenticate(ctx, res.Token, models.Actor{}); !errors.Is(err, ErrInvalidSession) {
		t.Errorf("Authenticate() after expiry error = %v, want ErrInvalidSession", err)
	}
}

func TestTOTPIsRequiredOnceEnrolled(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	bob := env.createUser(t, "bob", models.RoleUser)

	if _, err := env.reg.Identity.EnableTOTP(ctx, bob, env.admin.UserID); !errors.Is(err, ErrForbidden) {
		t.Errorf("EnableTOTP(other account) error = %v, want ErrForbidden", err)
	}
	if _, err := env.reg.Identity.EnableTOTP(ctx, bob, bob.UserID); err != nil {
		t.Fatalf("EnableTOTP() error = %v", err)
	}

	if _, err := env.reg.Identity.Verify(ctx, Credentials{Login: "bob", Password: testPassword}, models.Actor{}); !errors.Is(err, ErrInvalidCredentials) {
		t.Errorf("Verify() without code error = %v", err)
	}

	var secret string
	env.db.QueryRow(`SELECT totp_secret FROM users WHERE id = ?`, bob.UserID).Scan(&secret)
	code, _ := totp.GenerateCode(secret, time.Now())
	if _, err := env.reg.Identity.Verify(ctx, Credentials{Login: "bob", Password: testPassword, OTP: code}, models.Actor{}); err != nil {
		t.Errorf("Verify() with code error = %v", err)
	}

	if err := env.reg.Identity.DisableTOTP(ctx, env.admin, bob.UserID); err != nil {
		t.Fatalf("DisableTOTP() error = %v", err)
	}
	if _, err := env.reg.Identity.Verify(ctx, Credentials{Login: "bob", Password: testPassword}, models.Actor{}); err != nil {
		t.Errorf("Verify() after disable error = %v", err)
	}
}

func TestCreateDuplicateLogin(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	env.createUser(t, "bob", models.RoleUser)

	_, err := env.reg.Identity.Create(ctx, env.admin, models.NewUser{
		Login: "bob", Password: testPassword, DisplayName: "Bob again", Role: models.RoleUser,
	})
	if !errors.Is(err, ErrDuplicateLogin) {
		t.Fatalf("Create() error = %v, want ErrDuplicateLogin", err)
	}

	failed := env.entries(t, models.AuditFilter{Action: models.ActionCreateError})
	if len(failed) != 1 || failed[0].Status != models.AuditError {
		t.Errorf("CREATE_ERROR entries = %+v", failed)
	}
}

func TestUserManagementRules(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	bob := env.createUser(t, "bob", models.RoleUser)

	if _, err := env.reg.Identity.Create(ctx, bob, models.NewUser{Login: "eve", Password: testPassword, DisplayName: "Eve", Role: models.RoleUser}); !errors.Is(err, ErrForbidden) {
		t.Errorf("non-admin Create() error = %v, want ErrForbidden", err)
	}
	if _, err := env.reg.Identity.List(ctx, bob); !errors.Is(err, ErrForbidden) {
		t.Errorf("non-admin List() error = %v, want ErrForbidden", err)
	}
	if err := env.reg.Identity.Delete(ctx, env.admin, env.admin.UserID); !errors.Is(err, ErrSelfDelete) {
		t.Errorf("self Delete() error = %v, want ErrSelfDelete", err)
	}

	demote := models.UserUpdate{DisplayName: "Administrator", Role: models.RoleUser, Active: true}
	if _, err := env.reg.Identity.Update(ctx, env.admin, env.admin.UserID, demote); !errors.Is(err, ErrLastAdmin) {
		t.Errorf("demoting the last admin error = %v, want ErrLastAdmin", err)
	}

	carol := env.createUser(t, "carol", models.RoleAdmin)
	if err := env.reg.Identity.Delete(ctx, env.admin, carol.UserID); err != nil {
		t.Errorf("Delete(second admin) error = %v", err)
	}

	if err := env.reg.Identity.SetPassword(ctx, bob, bob.UserID, "short"); err == nil {
		t.Error("SetPassword() accepted a short password")
	}
	if err := env.reg.Identity.SetPassword(ctx, bob, bob.UserID, "new-password"); err != nil {
		t.Errorf("SetPassword(self) error = %v", err)
	}
	if err := env.reg.Identity.SetPassword(ctx, bob, env.admin.UserID, "new-password"); !errors.Is(err, ErrForbidden) {
		t.Errorf("SetPassword(other) error = %v, want ErrForbidden", err)
	}

	updated, err := env.reg.Identity.Update(ctx, env.admin, bob.UserID, models.UserUpdate{
		DisplayName: "Robert", Email: "bob@example.com", Role: models.RoleUser, Active: true,
	})
	if err != nil || updated.DisplayName != "Robert" {
		t.Fatalf("Update() = %+v, %v", updated, err)
	}
	upd := env.entries(t, models.AuditFilter{Action: models.ActionUpdate, AffectedTable: models.TableUsers})
	d, _ := upd[0].DecodeDetails()
	name := d["changed_fields"].(map[string]any)["display_name"].(map[string]any)
	if name["before"] != "User bob" || name["after"] != "Robert" {
		t.Errorf("display_name change = %v", name)
	}
}

func TestEnsureAdminIsIdempotent(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)

	res, err := env.reg.Identity.EnsureAdmin(ctx, Bootstrap{Login: "other"})
	if err != nil || res.Created {
		t.Errorf("EnsureAdmin() with an admin present = %+v, %v", res, err)
	}

	creates := env.entries(t, models.AuditFilter{Action: models.ActionCreate, AffectedTable: models.TableUsers})
	if len(creates) != 1 || creates[0].ActorUserID != nil || creates[0].ClientAgent != "system" {
		t.Errorf("bootstrap entries = %+v", creates)
	}
}

func TestEnsureAdminGeneratesPassword(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	if _, err := env.db.Exec(`DELETE FROM users`); err != nil {
		t.Fatalf("clear users: %v", err)
	}

	res, err := env.reg.Identity.EnsureAdmin(ctx, Bootstrap{Login: "root"})
	if err != nil {
		t.Fatalf("EnsureAdmin() error = %v", err)
	}
	if !res.Created || res.GeneratedPassword == "" {
		t.Fatalf("EnsureAdmin() = %+v, want a generated password", res)
	}
	if _, err := env.reg.Identity.Verify(ctx, Credentials{Login: "root", Password: res.GeneratedPassword}, models.Actor{}); err != nil {
		t.Errorf("Verify() with generated password error = %v", err)
	}
}

func TestEnsureAdminRefusesNonAdminLogin(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	bob := env.createUser(t, "bob", models.RoleUser)
	if _, err := env.db.Exec(`UPDATE users SET active = 0 WHERE role = 'admin'`); err != nil {
		t.Fatalf("disable admins: %v", err)
	}
	before := len(env.entries(t, models.AuditFilter{AffectedTable: models.TableUsers}))

	_, err := env.reg.Identity.EnsureAdmin(ctx, Bootstrap{Login: "bob", Password: "replacement-pass"})
	if !errors.Is(err, ErrBootstrapConflict) {
		t.Fatalf("EnsureAdmin() error = %v, want ErrBootstrapConflict", err)
	}

	u, err := env.reg.Identity.Get(ctx, bob.UserID)
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if u.Role != models.RoleUser {
		t.Errorf("bob role = %s, want user", u.Role)
	}
	if _, err := env.reg.Identity.Verify(ctx, Credentials{Login: "bob", Password: testPassword}, models.Actor{}); err != nil {
		t.Errorf("bob's password was changed: %v", err)
	}
	if _, err := env.reg.Identity.Verify(ctx, Credentials{Login: "bob", Password: "replacement-pass"}, models.Actor{}); !errors.Is(err, ErrInvalidCredentials) {
		t.Errorf("bootstrap password accepted for bob: %v", err)
	}
	updates := env.entries(t, models.AuditFilter{AffectedTable: models.TableUsers, Action: models.ActionUpdate})
	if len(updates) != 0 {
		t.Errorf("refused bootstrap wrote %d UPDATE entries", len(updates))
	}
	// only the two verify attempts above were logged
	if got := len(env.entries(t, models.AuditFilter{AffectedTable: models.TableUsers})); got != before+2 {
		t.Errorf("audit entries = %d, want %d", got, before+2)
	}
}

func TestEnsureAdminReactivatesDisabledAdmin(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	if _, err := env.db.Exec(`UPDATE users SET active = 0 WHERE login = 'admin'`); err != nil {
		t.Fatalf("disable admin: %v", err)
	}

	res, err := env.reg.Identity.EnsureAdmin(ctx, Bootstrap{Login: "admin", Password: "fresh-password"})
	if err != nil {
		t.Fatalf("EnsureAdmin() error = %v", err)
	}
	if res.Created || !res.Reactivated {
		t.Errorf("EnsureAdmin() = %+v, want a reactivation", res)
	}
	if _, err := env.reg.Identity.Verify(ctx, Credentials{Login: "admin", Password: "fresh-password"}, models.Actor{}); err != nil {
		t.Errorf("Verify() with the bootstrap password error = %v", err)
	}

	updates := env.entries(t, models.AuditFilter{AffectedTable: models.TableUsers, Action: models.ActionUpdate})
	if len(updates) != 1 || !strings.Contains(updates[0].Details, `"password_reset":true`) {
		t.Errorf("reactivation entries = %+v", updates)
	}
}

func TestGenerateNumberSequence(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)

	for _, want := range []string{"PROT-2024-0001", "PROT-2024-0002"} {
		got, err := env.reg.Protocols.GenerateNumber(ctx)
		if err != nil || got != want {
			t.Errorf("GenerateNumber() = %q, %v; want %q", got, err, want)
		}
	}

	env.now = time.Date(2025, 2, 1, 0, 0, 0, 0, time.UTC)
	if got, _ := env.reg.Protocols.GenerateNumber(ctx); got != "PROT-2025-0001" {
		t.Errorf("GenerateNumber() in a new year = %q", got)
	}
}

func TestProtocolLifecycle(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	bob := env.createUser(t, "bob", models.RoleUser)
	eve := env.createUser(t, "eve", models.RoleUser)

	ana, err := env.reg.Requesters.Create(ctx, bob, models.RequesterInput{Name: "Ana", Department: "HR"})
	if err != nil {
		t.Fatalf("Requesters.Create() error = %v", err)
	}

	p, err := env.reg.Protocols.Create(ctx, bob, models.ProtocolInput{
		Title: "Vacation request", DocumentType: "Memo", RequesterID: ana.ID, ProtocolDate: date("2024-01-10"),
	})
	if err != nil {
		t.Fatalf("Protocols.Create() error = %v", err)
	}
	if p.ProtocolNumber != "PROT-2024-0001" || p.Status != models.StatusPending {
		t.Fatalf("created protocol = %s %s", p.ProtocolNumber, p.Status)
	}
	if p.RequesterName != "Ana" || p.CreatorName != "User bob" {
		t.Errorf("names = %q/%q", p.RequesterName, p.CreatorName)
	}

	in := models.ProtocolInput{
		Title: p.Title, DocumentType: p.DocumentType, RequesterID: ana.ID, Status: models.StatusConcluded,
	}
	if _, err := env.reg.Protocols.Update(ctx, eve, p.ID, in); !errors.Is(err, ErrForbidden) {
		t.Errorf("Update() by non-creator error = %v, want ErrForbidden", err)
	}
	moved := in
	moved.ProtocolDate = date("2024-01-11")
	if _, err := env.reg.Protocols.Update(ctx, bob, p.ID, moved); err == nil {
		t.Error("Update() changed the protocol date")
	}

	updated, err := env.reg.Protocols.Update(ctx, bob, p.ID, in)
	if err != nil {
		t.Fatalf("Update() error = %v", err)
	}
	if updated.Status != models.StatusConcluded || updated.ProtocolNumber != p.ProtocolNumber {
		t.Errorf("updated = %+v", updated)
	}

	upd := env.entries(t, models.AuditFilter{Action: models.ActionUpdate, AffectedTable: models.TableProtocols})
	if len(upd) != 1 || *upd[0].AffectedRecordID != p.ID {
		t.Fatalf("protocol UPDATE entries = %+v", upd)
	}
	d, _ := upd[0].DecodeDetails()
	status := d["changed_fields"].(map[string]any)["status"].(map[string]any)
	if status["before"] != "Pending" || status["after"] != "Concluded" {
		t.Errorf("status change = %v", status)
	}

	if err := env.reg.Protocols.Delete(ctx, bob, p.ID); !errors.Is(err, ErrForbidden) {
		t.Errorf("Delete() by creator error = %v, want ErrForbidden", err)
	}
	if err := env.reg.Protocols.Delete(ctx, env.admin, p.ID); err != nil {
		t.Fatalf("Delete() by admin error = %v", err)
	}
	del := env.entries(t, models.AuditFilter{Action: models.ActionDelete, AffectedTable: models.TableProtocols})
	if len(del) != 1 {
		t.Fatalf("protocol DELETE entries = %d", len(del))
	}
	d, _ = del[0].DecodeDetails()
	if d["protocol_number"] != "PROT-2024-0001" || d["title"] != "Vacation request" {
		t.Errorf("delete details = %v", d)
	}

	if _, err := env.reg.Protocols.Get(ctx, p.ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("Get() after delete error = %v", err)
	}
}

func TestProtocolCreateValidation(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)

	if _, err := env.reg.Protocols.Create(ctx, env.admin, models.ProtocolInput{
		Title: "x", DocumentType: "Memo", RequesterID: 99,
	}); err == nil {
		t.Error("Create() with a missing requester succeeded")
	}

	r, _ := env.reg.Requesters.Create(ctx, env.admin, models.RequesterInput{Name: "Legal"})
	p, err := env.reg.Protocols.Create(ctx, env.admin, models.ProtocolInput{
		Title: "x", DocumentType: "Memo", RequesterID: r.ID,
	})
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if !p.ProtocolDate.Equal(*date("2024-01-10")) {
		t.Errorf("ProtocolDate = %v, want today", p.ProtocolDate)
	}

	if _, err := env.reg.Protocols.Create(ctx, models.System, models.ProtocolInput{
		Title: "x", DocumentType: "Memo", RequesterID: r.ID,
	}); !errors.Is(err, ErrForbidden) {
		t.Errorf("Create() without a user id error = %v, want ErrForbidden", err)
	}
}

func TestScopedListing(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	bob := env.createUser(t, "bob", models.RoleUser)
	r, _ := env.reg.Requesters.Create(ctx, bob, models.RequesterInput{Name: "Legal"})

	for _, actor := range []models.Actor{bob, env.admin, bob} {
		if _, err := env.reg.Protocols.Create(ctx, actor, models.ProtocolInput{Title: "x", DocumentType: "Memo", RequesterID: r.ID}); err != nil {
			t.Fatalf("Create() error = %v", err)
		}
	}

	all, _ := env.reg.Protocols.List(ctx, models.ProtocolFilter{})
	owned, _ := env.reg.Protocols.ListOwned(ctx, bob, models.ProtocolFilter{})
	if len(all) != 3 || len(owned) != 2 {
		t.Errorf("List() = %d, ListOwned() = %d; want 3 and 2", len(all), len(owned))
	}

	if _, err := env.reg.Protocols.List(ctx, models.ProtocolFilter{DateFrom: date("2024-02-01"), DateTo: date("2024-01-01")}); err == nil {
		t.Error("List() accepted an inverted date range")
	}
}

func TestReferencedRecordsCannotBeDeleted(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	bob := env.createUser(t, "bob", models.RoleUser)
	r, _ := env.reg.Requesters.Create(ctx, bob, models.RequesterInput{Name: "Legal"})
	if _, err := env.reg.Protocols.Create(ctx, bob, models.ProtocolInput{Title: "x", DocumentType: "Memo", RequesterID: r.ID}); err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	if err := env.reg.Requesters.Delete(ctx, bob, r.ID); !errors.Is(err, ErrReferenced) {
		t.Errorf("Requesters.Delete() error = %v, want ErrReferenced", err)
	}
	if err := env.reg.Identity.Delete(ctx, env.admin, bob.UserID); !errors.Is(err, ErrReferenced) {
		t.Errorf("Identity.Delete() error = %v, want ErrReferenced", err)
	}
}

func TestEveryMutationWritesOneEntry(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	count := func() int { return len(env.entries(t, models.AuditFilter{})) }

	start := count()
	r, err := env.reg.Requesters.Create(ctx, env.admin, models.RequesterInput{Name: "Ana", Department: "HR"})
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if _, err := env.reg.Requesters.Update(ctx, env.admin, r.ID, models.RequesterInput{Name: "Ana", Department: "Finance"}); err != nil {
		t.Fatalf("Update() error = %v", err)
	}
	if err := env.reg.Requesters.Delete(ctx, env.admin, r.ID); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	if got := count() - start; got != 3 {
		t.Fatalf("entries written = %d, want 3", got)
	}

	for _, e := range env.entries(t, models.AuditFilter{AffectedTable: models.TableRequesters}) {
		if e.AffectedRecordID == nil || *e.AffectedRecordID != r.ID {
			t.Errorf("%s entry record id = %v, want %d", e.Action, e.AffectedRecordID, r.ID)
		}
	}
}

func TestDashboard(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	bob := env.createUser(t, "bob", models.RoleUser)
	r, _ := env.reg.Requesters.Create(ctx, bob, models.RequesterInput{Name: "Legal"})

	inputs := []models.ProtocolInput{
		{Title: "late", DocumentType: "Memo", RequesterID: r.ID, ProtocolDate: date("2024-01-02"), DueDate: date("2024-01-05")},
		{Title: "on time", DocumentType: "Letter", RequesterID: r.ID, DueDate: date("2024-01-20")},
		{Title: "no due", DocumentType: "Memo", RequesterID: r.ID},
	}
	for _, in := range inputs {
		if _, err := env.reg.Protocols.Create(ctx, bob, in); err != nil {
			t.Fatalf("Create(%s) error = %v", in.Title, err)
		}
	}

	dash, err := env.reg.Stats.Dashboard(ctx, bob)
	if err != nil {
		t.Fatalf("Dashboard() error = %v", err)
	}
	if dash.Total != 3 || dash.Pending != 3 || dash.Requesters != 1 {
		t.Errorf("summary = %+v", dash.Summary)
	}
	if len(dash.Overdue) != 1 || dash.Overdue[0].Title != "late" {
		t.Errorf("overdue = %+v", dash.Overdue)
	}
	if dash.RecentActivity != nil {
		t.Error("non-admin received recent activity")
	}

	adminDash, _ := env.reg.Stats.Dashboard(ctx, env.admin)
	if len(adminDash.RecentActivity) == 0 {
		t.Error("admin received no recent activity")
	}
}
