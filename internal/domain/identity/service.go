package identity

import (
	"context"
	"net/mail"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"

	"github.com/healthgraph/radar/internal/platform/auth"
	"github.com/healthgraph/radar/internal/platform/db"
	"github.com/healthgraph/radar/pkg/apperr"
)

const tokenType = "Bearer"

// Service is the session gateway: it checks credentials, opens and revokes
// sessions, and resolves bearer tokens to identities for the auth middleware.
type Service struct {
	users    UserRepository
	sessions SessionRepository
	tx       db.TxRunner
	tokens   *auth.TokenIssuer
	cache    auth.SessionCache
	logger   zerolog.Logger
	now      func() time.Time

	logins *prometheus.CounterVec
}

func NewService(users UserRepository, sessions SessionRepository, tx db.TxRunner, tokens *auth.TokenIssuer) *Service {
	return &Service{
		users:    users,
		sessions: sessions,
		tx:       tx,
		tokens:   tokens,
		cache:    auth.NopSessionCache{},
		logger:   zerolog.Nop(),
		now:      time.Now,
		logins: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "radar_logins_total",
			Help: "Login attempts by result.",
		}, []string{"result"}),
	}
}

func (s *Service) SetCache(c auth.SessionCache) { s.cache = c }

func (s *Service) SetLogger(l zerolog.Logger) { s.logger = l }

// SetClock replaces the time source; used by tests.
func (s *Service) SetClock(now func() time.Time) { s.now = now }

// RegisterMetrics exposes the login counter on reg.
func (s *Service) RegisterMetrics(reg prometheus.Registerer) {
	reg.MustRegister(s.logins)
}

func (s *Service) loginFailed(username, reason string) error {
	s.logins.WithLabelValues("failure").Inc()
	s.logger.Warn().Str("username", username).Str("reason", reason).Msg("login rejected")
	if reason == "inactive" {
		return apperr.Authentication("user is inactive")
	}
	return apperr.Authentication("invalid credentials")
}

// Login checks the credentials and opens a session bound to a new bearer
// token. No session is created when any check fails.
func (s *Service) Login(ctx context.Context, req LoginRequest, ip, userAgent string) (*TokenResponse, error) {
	username := strings.TrimSpace(req.Username)
	if username == "" || req.Password == "" {
		return nil, apperr.Validation("username and password are required")
	}

	u, err := s.users.GetByUsername(ctx, username)
	if apperr.Is(err, apperr.KindNotFound) {
		return nil, s.loginFailed(username, "unknown user")
	}
	if err != nil {
		return nil, err
	}
	if err := auth.VerifyPassword(u.PasswordHash, req.Password); err != nil {
		return nil, s.loginFailed(username, "bad password")
	}
	if !u.IsActive {
		return nil, s.loginFailed(username, "inactive")
	}

	sessionToken, err := auth.NewSessionToken()
	if err != nil {
		return nil, apperr.Internal(err, "could not open session")
	}
	access, exp, err := s.tokens.Issue(u.ID, sessionToken)
	if err != nil {
		return nil, apperr.Internal(err, "could not issue token")
	}

	now := s.now().UTC()
	err = s.tx.InTx(ctx, func(ctx context.Context) error {
		sess := &Session{UserID: u.ID, Token: sessionToken, IPAddress: ip, UserAgent: userAgent, ExpiresAt: exp}
		if err := s.sessions.Create(ctx, sess); err != nil {
			return err
		}
		return s.users.TouchLogin(ctx, u.ID, now)
	})
	if err != nil {
		return nil, err
	}
	u.LastLogin = &now

	s.logins.WithLabelValues("success").Inc()
	s.logger.Info().Int64("user_id", u.ID).Str("ip", ip).Msg("user logged in")
	return s.tokenResponse(access, sessionToken, exp, u), nil
}

func (s *Service) tokenResponse(access, session string, exp time.Time, u *User) *TokenResponse {
	return &TokenResponse{
		AccessToken:  access,
		SessionToken: session,
		TokenType:    tokenType,
		ExpiresIn:    int(s.tokens.TTL().Seconds()),
		ExpiresAt:    exp,
		User:         u,
	}
}

// Logout revokes the caller's session. Revoking an already inactive session
// succeeds.
func (s *Service) Logout(ctx context.Context, id *auth.Identity) error {
	if id == nil {
		return apperr.Authentication("authentication required")
	}
	var found bool
	err := s.tx.InTx(ctx, func(ctx context.Context) error {
		var err error
		found, err = s.sessions.Deactivate(ctx, id.SessionToken)
		return err
	})
	if err != nil {
		return err
	}
	s.cache.Delete(ctx, id.SessionToken)
	s.logger.Info().Int64("user_id", id.UserID).Bool("session_found", found).Msg("user logged out")
	return nil
}

// Refresh issues a new token for the caller's session and pushes the session
// expiry out by the token lifetime.
func (s *Service) Refresh(ctx context.Context, id *auth.Identity) (*TokenResponse, error) {
	if id == nil {
		return nil, apperr.Authentication("authentication required")
	}
	u, err := s.users.GetByID(ctx, id.UserID)
	if apperr.Is(err, apperr.KindNotFound) {
		return nil, apperr.Authentication("invalid user")
	}
	if err != nil {
		return nil, err
	}
	if !u.IsActive {
		return nil, apperr.Authentication("user is inactive")
	}

	access, exp, err := s.tokens.Issue(u.ID, id.SessionToken)
	if err != nil {
		return nil, apperr.Internal(err, "could not issue token")
	}
	err = s.tx.InTx(ctx, func(ctx context.Context) error {
		return s.sessions.Extend(ctx, id.SessionToken, exp)
	})
	if apperr.Is(err, apperr.KindNotFound) {
		return nil, apperr.Authentication("session expired or revoked")
	}
	if err != nil {
		return nil, err
	}
	s.cache.Delete(ctx, id.SessionToken)
	return s.tokenResponse(access, id.SessionToken, exp, u), nil
}

// Authenticate resolves a bearer token to the identity behind it. The token
// must be validly signed and unexpired, its session active and unexpired,
// and its user active.
func (s *Service) Authenticate(ctx context.Context, token string) (*auth.Identity, error) {
	claims, err := s.tokens.Parse(token)
	if err != nil {
		return nil, apperr.Authentication("invalid or expired token")
	}
	userID, err := claims.UserID()
	if err != nil {
		return nil, apperr.Authentication("invalid or expired token")
	}
	sid := claims.SessionID

	if cached, ok := s.cache.Get(ctx, sid); ok && cached.UserID == userID {
		return &auth.Identity{UserID: userID, Username: cached.Username, Role: cached.Role, SessionToken: sid}, nil
	}

	sess, err := s.sessions.GetByToken(ctx, sid)
	if apperr.Is(err, apperr.KindNotFound) {
		return nil, apperr.Authentication("session not found")
	}
	if err != nil {
		return nil, err
	}
	if !sess.IsActive || !sess.ExpiresAt.After(s.now()) || sess.UserID != userID {
		return nil, apperr.Authentication("session expired or revoked")
	}

	u, err := s.users.GetByID(ctx, userID)
	if apperr.Is(err, apperr.KindNotFound) {
		return nil, apperr.Authentication("invalid user")
	}
	if err != nil {
		return nil, err
	}
	if !u.IsActive {
		return nil, apperr.Authentication("user is inactive")
	}

	s.cache.Set(ctx, sid, &auth.CachedSession{UserID: u.ID, Username: u.Username, Role: u.Role, ExpiresAt: sess.ExpiresAt})
	return &auth.Identity{UserID: u.ID, Username: u.Username, Role: u.Role, SessionToken: sid}, nil
}

func (s *Service) Me(ctx context.Context, id *auth.Identity) (*User, error) {
	if id == nil {
		return nil, apperr.Authentication("authentication required")
	}
	return s.users.GetByID(ctx, id.UserID)
}

func required(v *string, name string, limit int) error {
	*v = strings.TrimSpace(*v)
	if *v == "" {
		return apperr.Validation("%s is required", name)
	}
	if len(*v) > limit {
		return apperr.Validation("%s must be at most %d characters", name, limit)
	}
	return nil
}

// Register creates a regular user account.
func (s *Service) Register(ctx context.Context, req RegisterRequest) (*User, error) {
	return s.CreateUser(ctx, req, auth.RoleUser)
}

// CreateUser creates an account with the given role. Duplicate usernames or
// emails are conflicts.
func (s *Service) CreateUser(ctx context.Context, req RegisterRequest, role string) (*User, error) {
	if role != auth.RoleUser && role != auth.RoleAdmin {
		return nil, apperr.Validation("invalid role %q", role)
	}
	if err := required(&req.Username, "username", 80); err != nil {
		return nil, err
	}
	if err := required(&req.Email, "email", 120); err != nil {
		return nil, err
	}
	if _, err := mail.ParseAddress(req.Email); err != nil {
		return nil, apperr.Validation("invalid email")
	}
	if len(req.Password) < MinPasswordLength {
		return nil, apperr.Validation("password must be at least %d characters", MinPasswordLength)
	}
	if err := required(&req.FirstName, "first_name", 50); err != nil {
		return nil, err
	}
	if err := required(&req.LastName, "last_name", 50); err != nil {
		return nil, err
	}
	if req.Department != nil {
		d := strings.TrimSpace(*req.Department)
		req.Department = &d
		if d == "" {
			req.Department = nil
		} else if len(d) > 100 {
			return nil, apperr.Validation("department must be at most 100 characters")
		}
	}

	hash, err := auth.HashPassword(req.Password)
	if err != nil {
		return nil, apperr.Internal(err, "could not hash password")
	}
	u := &User{
		Username:     req.Username,
		Email:        strings.ToLower(req.Email),
		PasswordHash: hash,
		FirstName:    req.FirstName,
		LastName:     req.LastName,
		Role:         role,
		Department:   req.Department,
		IsActive:     true,
	}
	err = s.tx.InTx(ctx, func(ctx context.Context) error {
		return s.users.Create(ctx, u)
	})
	if err != nil {
		return nil, err
	}
	s.logger.Info().Int64("user_id", u.ID).Str("role", role).Msg("user registered")
	return u, nil
}
