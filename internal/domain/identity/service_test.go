package identity

import (
	"context"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/healthgraph/radar/internal/platform/auth"
	"github.com/healthgraph/radar/internal/platform/db"
	"github.com/healthgraph/radar/pkg/apperr"
)

// -- Mock Repositories --

type mockUserRepo struct {
	users  map[int64]*User
	nextID int64
}

func newMockUserRepo() *mockUserRepo {
	return &mockUserRepo{users: make(map[int64]*User)}
}

func (m *mockUserRepo) Create(_ context.Context, u *User) error {
	for _, o := range m.users {
		if o.Username == u.Username {
			return apperr.Conflict("username already exists")
		}
		if o.Email == u.Email {
			return apperr.Conflict("email already exists")
		}
	}
	m.nextID++
	u.ID = m.nextID
	cp := *u
	m.users[u.ID] = &cp
	return nil
}

func (m *mockUserRepo) GetByID(_ context.Context, id int64) (*User, error) {
	u, ok := m.users[id]
	if !ok {
		return nil, apperr.NotFound("user not found")
	}
	cp := *u
	return &cp, nil
}

func (m *mockUserRepo) GetByUsername(_ context.Context, username string) (*User, error) {
	for _, u := range m.users {
		if u.Username == username {
			cp := *u
			return &cp, nil
		}
	}
	return nil, apperr.NotFound("user not found")
}

func (m *mockUserRepo) TouchLogin(_ context.Context, id int64, at time.Time) error {
	u, ok := m.users[id]
	if !ok {
		return apperr.NotFound("user not found")
	}
	u.LastLogin = &at
	return nil
}

type mockSessionRepo struct {
	sessions map[string]*Session
	nextID   int64
}

func newMockSessionRepo() *mockSessionRepo {
	return &mockSessionRepo{sessions: make(map[string]*Session)}
}

func (m *mockSessionRepo) Create(_ context.Context, s *Session) error {
	m.nextID++
	s.ID = m.nextID
	s.IsActive = true
	cp := *s
	m.sessions[s.Token] = &cp
	return nil
}

func (m *mockSessionRepo) GetByToken(_ context.Context, token string) (*Session, error) {
	s, ok := m.sessions[token]
	if !ok {
		return nil, apperr.NotFound("session not found")
	}
	cp := *s
	return &cp, nil
}

func (m *mockSessionRepo) Extend(_ context.Context, token string, expiresAt time.Time) error {
	s, ok := m.sessions[token]
	if !ok || !s.IsActive {
		return apperr.NotFound("session not found")
	}
	s.ExpiresAt = expiresAt
	return nil
}

func (m *mockSessionRepo) Deactivate(_ context.Context, token string) (bool, error) {
	s, ok := m.sessions[token]
	if !ok || !s.IsActive {
		return false, nil
	}
	s.IsActive = false
	return true, nil
}

// memCache is an in-memory SessionCache.
type memCache struct {
	entries map[string]*auth.CachedSession
}

func (c *memCache) Get(_ context.Context, token string) (*auth.CachedSession, bool) {
	s, ok := c.entries[token]
	return s, ok
}

func (c *memCache) Set(_ context.Context, token string, s *auth.CachedSession) {
	c.entries[token] = s
}

func (c *memCache) Delete(_ context.Context, token string) {
	delete(c.entries, token)
}

const testPassword = "s3cret-pass"

type fixture struct {
	svc      *Service
	users    *mockUserRepo
	sessions *mockSessionRepo
	cache    *memCache
	now      time.Time
}

func (f *fixture) clock() time.Time { return f.now }

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		users:    newMockUserRepo(),
		sessions: newMockSessionRepo(),
		cache:    &memCache{entries: make(map[string]*auth.CachedSession)},
		now:      time.Date(2024, 3, 10, 12, 0, 0, 0, time.UTC),
	}
	tokens := auth.NewTokenIssuer("test-secret-0123456789abcdef0123", 8*time.Hour)
	tokens.SetClock(f.clock)
	f.svc = NewService(f.users, f.sessions, db.NoTx{}, tokens)
	f.svc.SetClock(f.clock)
	f.svc.SetCache(f.cache)
	return f
}

func (f *fixture) addUser(t *testing.T, username string, active bool) *User {
	t.Helper()
	u, err := f.svc.CreateUser(context.Background(), RegisterRequest{
		Username: username, Email: username + "@radar.test", Password: testPassword,
		FirstName: "Test", LastName: "User",
	}, auth.RoleUser)
	if err != nil {
		t.Fatalf("create user: %v", err)
	}
	f.users.users[u.ID].IsActive = active
	return u
}

func TestService_Login(t *testing.T) {
	f := newFixture(t)
	u := f.addUser(t, "ana", true)

	out, err := f.svc.Login(context.Background(), LoginRequest{Username: " ana ", Password: testPassword}, "10.0.0.7", "test-agent")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out.TokenType != "Bearer" || out.ExpiresIn != 28800 || out.AccessToken == "" || out.SessionToken == "" {
		t.Errorf("unexpected token response %+v", out)
	}
	if !out.ExpiresAt.Equal(f.now.Add(8 * time.Hour)) {
		t.Errorf("expected expiry now+8h, got %v", out.ExpiresAt)
	}
	sess := f.sessions.sessions[out.SessionToken]
	if sess == nil || sess.UserID != u.ID || sess.IPAddress != "10.0.0.7" || sess.UserAgent != "test-agent" || !sess.ExpiresAt.Equal(out.ExpiresAt) {
		t.Errorf("unexpected session %+v", sess)
	}
	if ll := f.users.users[u.ID].LastLogin; ll == nil || !ll.Equal(f.now) {
		t.Errorf("expected last_login to be set, got %v", ll)
	}
	if got := testutil.ToFloat64(f.svc.logins.WithLabelValues("success")); got != 1 {
		t.Errorf("expected 1 successful login, got %v", got)
	}
}

func TestService_Login_Rejected(t *testing.T) {
	tests := []struct {
		name     string
		req      LoginRequest
		active   bool
		kind     apperr.Kind
		failures float64
	}{
		{"unknown user", LoginRequest{Username: "ghost", Password: testPassword}, true, apperr.KindAuthentication, 1},
		{"wrong password", LoginRequest{Username: "ana", Password: "wrong-password"}, true, apperr.KindAuthentication, 1},
		{"inactive user", LoginRequest{Username: "ana", Password: testPassword}, false, apperr.KindAuthentication, 1},
		{"missing password", LoginRequest{Username: "ana"}, true, apperr.KindValidation, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			f.addUser(t, "ana", tt.active)
			_, err := f.svc.Login(context.Background(), tt.req, "10.0.0.7", "ua")
			if !apperr.Is(err, tt.kind) {
				t.Fatalf("expected %s, got %v", tt.kind, err)
			}
			if len(f.sessions.sessions) != 0 {
				t.Error("no session should be created")
			}
			if got := testutil.ToFloat64(f.svc.logins.WithLabelValues("failure")); got != tt.failures {
				t.Errorf("expected %v failures counted, got %v", tt.failures, got)
			}
		})
	}
}

func TestService_Authenticate(t *testing.T) {
	f := newFixture(t)
	u := f.addUser(t, "ana", true)
	out, _ := f.svc.Login(context.Background(), LoginRequest{Username: "ana", Password: testPassword}, "", "")

	id, err := f.svc.Authenticate(context.Background(), out.AccessToken)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if id.UserID != u.ID || id.Username != "ana" || id.Role != auth.RoleUser || id.SessionToken != out.SessionToken {
		t.Errorf("unexpected identity %+v", id)
	}
	if _, ok := f.cache.entries[out.SessionToken]; !ok {
		t.Error("expected session to be cached")
	}

	if _, err := f.svc.Authenticate(context.Background(), "not-a-jwt"); !apperr.Is(err, apperr.KindAuthentication) {
		t.Errorf("expected authentication error for garbage token, got %v", err)
	}
}

func TestService_Authenticate_RejectsStaleState(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(f *fixture, out *TokenResponse, u *User)
	}{
		{"revoked session", func(f *fixture, out *TokenResponse, _ *User) { f.sessions.sessions[out.SessionToken].IsActive = false }},
		{"expired session", func(f *fixture, out *TokenResponse, _ *User) {
			f.sessions.sessions[out.SessionToken].ExpiresAt = f.now.Add(-time.Minute)
		}},
		{"missing session", func(f *fixture, out *TokenResponse, _ *User) { delete(f.sessions.sessions, out.SessionToken) }},
		{"inactive user", func(f *fixture, _ *TokenResponse, u *User) { f.users.users[u.ID].IsActive = false }},
		{"expired token", func(f *fixture, _ *TokenResponse, _ *User) { f.now = f.now.Add(9 * time.Hour) }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			u := f.addUser(t, "ana", true)
			out, err := f.svc.Login(context.Background(), LoginRequest{Username: "ana", Password: testPassword}, "", "")
			if err != nil {
				t.Fatal(err)
			}
			tt.mutate(f, out, u)
			if _, err := f.svc.Authenticate(context.Background(), out.AccessToken); !apperr.Is(err, apperr.KindAuthentication) {
				t.Errorf("expected authentication error, got %v", err)
			}
		})
	}
}

func TestService_Logout(t *testing.T) {
	f := newFixture(t)
	f.addUser(t, "ana", true)
	out, _ := f.svc.Login(context.Background(), LoginRequest{Username: "ana", Password: testPassword}, "", "")
	id, err := f.svc.Authenticate(context.Background(), out.AccessToken)
	if err != nil {
		t.Fatal(err)
	}

	if err := f.svc.Logout(context.Background(), id); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if f.sessions.sessions[out.SessionToken].IsActive {
		t.Error("expected session to be inactive")
	}
	if _, ok := f.cache.entries[out.SessionToken]; ok {
		t.Error("expected cache entry to be evicted")
	}
	if _, err := f.svc.Authenticate(context.Background(), out.AccessToken); !apperr.Is(err, apperr.KindAuthentication) {
		t.Errorf("expected authentication error after logout, got %v", err)
	}
	if err := f.svc.Logout(context.Background(), id); err != nil {
		t.Errorf("second logout should succeed, got %v", err)
	}
}

func TestService_Refresh(t *testing.T) {
	f := newFixture(t)
	f.addUser(t, "ana", true)
	out, _ := f.svc.Login(context.Background(), LoginRequest{Username: "ana", Password: testPassword}, "", "")
	id, _ := f.svc.Authenticate(context.Background(), out.AccessToken)

	f.now = f.now.Add(2 * time.Hour)
	refreshed, err := f.svc.Refresh(context.Background(), id)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := f.now.Add(8 * time.Hour)
	if !refreshed.ExpiresAt.Equal(want) || !f.sessions.sessions[out.SessionToken].ExpiresAt.Equal(want) {
		t.Errorf("expected session extended to %v, got %v", want, f.sessions.sessions[out.SessionToken].ExpiresAt)
	}
	if refreshed.SessionToken != out.SessionToken {
		t.Error("refresh must keep the session")
	}

	f.svc.Logout(context.Background(), id)
	if _, err := f.svc.Refresh(context.Background(), id); !apperr.Is(err, apperr.KindAuthentication) {
		t.Errorf("expected authentication error for revoked session, got %v", err)
	}
	if _, err := f.svc.Refresh(context.Background(), nil); !apperr.Is(err, apperr.KindAuthentication) {
		t.Errorf("expected authentication error without identity, got %v", err)
	}
}

func TestService_Register(t *testing.T) {
	f := newFixture(t)
	req := RegisterRequest{Username: "carlos", Email: "Carlos@Radar.test", Password: "longenough", FirstName: "Carlos", LastName: "Santos"}

	u, err := f.svc.Register(context.Background(), req)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if u.Role != auth.RoleUser || !u.IsActive || u.Email != "carlos@radar.test" {
		t.Errorf("unexpected user %+v", u)
	}
	if u.PasswordHash == req.Password || auth.VerifyPassword(u.PasswordHash, req.Password) != nil {
		t.Error("expected an argon2id hash of the password")
	}

	dupEmail := req
	dupEmail.Username = "carlos2"
	if _, err := f.svc.Register(context.Background(), dupEmail); !apperr.Is(err, apperr.KindConflict) {
		t.Errorf("expected conflict for duplicate email, got %v", err)
	}
	if _, err := f.svc.Register(context.Background(), req); !apperr.Is(err, apperr.KindConflict) {
		t.Errorf("expected conflict for duplicate username, got %v", err)
	}
	if len(f.users.users) != 1 {
		t.Errorf("expected a single user, got %d", len(f.users.users))
	}
}

func TestService_Register_Validation(t *testing.T) {
	base := RegisterRequest{Username: "carlos", Email: "carlos@radar.test", Password: "longenough", FirstName: "Carlos", LastName: "Santos"}
	tests := []struct {
		name   string
		mutate func(*RegisterRequest)
	}{
		{"short password", func(r *RegisterRequest) { r.Password = "1234567" }},
		{"missing username", func(r *RegisterRequest) { r.Username = "  " }},
		{"bad email", func(r *RegisterRequest) { r.Email = "carlos" }},
		{"missing first name", func(r *RegisterRequest) { r.FirstName = "" }},
		{"missing last name", func(r *RegisterRequest) { r.LastName = "" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			req := base
			tt.mutate(&req)
			if _, err := f.svc.Register(context.Background(), req); !apperr.Is(err, apperr.KindValidation) {
				t.Errorf("expected validation error, got %v", err)
			}
		})
	}

	f := newFixture(t)
	if _, err := f.svc.CreateUser(context.Background(), base, "superuser"); !apperr.Is(err, apperr.KindValidation) {
		t.Errorf("expected validation error for unknown role, got %v", err)
	}
}
