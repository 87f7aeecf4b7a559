package identity

import (
	"context"
	"strings"
	"time"
)

const defaultSessionTTL = 12 * time.Hour

// Credential is the authentication view of a user row: everything needed to
// verify a login and build the resulting Identity snapshot.
type Credential struct {
	UserID       string
	PasswordHash string
	Role         Role
	SectorSlugs  []string
	IsActive     bool
}

// CredentialStore resolves login credentials by email.
type CredentialStore interface {
	CredentialByEmail(ctx context.Context, email string) (Credential, error)
}

// Service authenticates credentials and issues session tokens.
type Service struct {
	store CredentialStore
	ttl   time.Duration
}

// ServiceOption configures Service behavior.
type ServiceOption func(*Service)

// WithSessionTTL overrides the session token lifetime.
func WithSessionTTL(ttl time.Duration) ServiceOption {
	return func(s *Service) {
		if ttl > 0 {
			s.ttl = ttl
		}
	}
}

// NewService constructs the authentication service.
func NewService(store CredentialStore, opts ...ServiceOption) *Service {
	svc := &Service{store: store, ttl: defaultSessionTTL}
	for _, opt := range opts {
		opt(svc)
	}
	return svc
}

// Session is a freshly issued token plus the identity it represents.
type Session struct {
	Identity  Identity
	Token     string
	ExpiresAt time.Time
}

// Login verifies the email/password pair and issues a session token.
// Unknown emails, wrong passwords and deactivated accounts all surface as
// ErrInvalidCredentials; isActive gates authentication, not data visibility.
func (s *Service) Login(ctx context.Context, email, password string) (Session, error) {
	email = strings.TrimSpace(strings.ToLower(email))
	if email == "" || password == "" {
		return Session{}, ErrInvalidCredentials
	}
	cred, err := s.store.CredentialByEmail(ctx, email)
	if err != nil {
		return Session{}, ErrInvalidCredentials
	}
	if !cred.IsActive {
		return Session{}, ErrInvalidCredentials
	}
	if err := VerifyPassword(cred.PasswordHash, password); err != nil {
		return Session{}, ErrInvalidCredentials
	}
	id := Identity{
		ID:          cred.UserID,
		Role:        cred.Role,
		SectorSlugs: NormalizeSlugs(cred.SectorSlugs),
	}
	token, err := GenerateToken(id, s.ttl)
	if err != nil {
		return Session{}, err
	}
	return Session{
		Identity:  id,
		Token:     token,
		ExpiresAt: time.Now().UTC().Add(s.ttl),
	}, nil
}
