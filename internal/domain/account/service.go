package account

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/pquerna/otp/totp"
	"github.com/rs/zerolog"
	"golang.org/x/crypto/bcrypt"

	"github.com/clinic/clinic/internal/platform/apperr"
	"github.com/clinic/clinic/internal/platform/auth"
)

const minPasswordLength = 8

// Login failure messages shown to the user.
const (
	msgMissingCredentials = "email y contraseña son obligatorios"
	msgInvalidCredentials = "credenciales inválidas"
	msgDisabled           = "la cuenta está deshabilitada"
	msgMFARequired        = "ingrese el código de verificación"
	msgInvalidMFA         = "código de verificación inválido"
)

type Service struct {
	users      UserRepository
	jwt        auth.JWTConfig
	ttl        time.Duration
	issuer     string
	bcryptCost int
	logger     zerolog.Logger

	dummyOnce sync.Once
	dummyHash []byte
}

type Option func(*Service)

// WithBcryptCost overrides the password hashing cost.
func WithBcryptCost(cost int) Option {
	return func(s *Service) { s.bcryptCost = cost }
}

// NewService builds the account service. Tokens are signed with jwt and
// live for ttl.
func NewService(users UserRepository, jwt auth.JWTConfig, ttl time.Duration, logger zerolog.Logger, opts ...Option) *Service {
	s := &Service{
		users:      users,
		jwt:        jwt,
		ttl:        ttl,
		issuer:     jwt.Issuer,
		bcryptCost: bcrypt.DefaultCost,
		logger:     logger.With().Str("component", "account").Logger(),
	}
	if s.issuer == "" {
		s.issuer = "clinic"
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

func (s *Service) CreateUser(ctx context.Context, in NewUser) (*User, error) {
	email := strings.ToLower(strings.TrimSpace(in.Email))
	if _, err := mail.ParseAddress(email); err != nil {
		return nil, apperr.Validation("invalid email %q", in.Email)
	}
	if len(in.Password) < minPasswordLength {
		return nil, apperr.Validation("password must have at least %d characters", minPasswordLength)
	}
	if !validRoles[in.Role] {
		return nil, apperr.Validation("invalid role: %s", in.Role)
	}
	if in.Role == auth.RoleFamily && len(in.PatientIDs) == 0 {
		return nil, apperr.Validation("family accounts must be linked to at least one patient")
	}
	if in.Role == auth.RoleProfessional && in.ProfessionalID == nil {
		return nil, apperr.Validation("professional accounts must be linked to a professional")
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(in.Password), s.bcryptCost)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}
	u := &User{
		Email:          email,
		Name:           strings.TrimSpace(in.Name),
		PasswordHash:   string(hash),
		Role:           in.Role,
		ProfessionalID: in.ProfessionalID,
		PatientIDs:     in.PatientIDs,
		Active:         true,
	}
	if err := s.users.Create(ctx, u); err != nil {
		return nil, err
	}
	return u, nil
}

func (s *Service) GetUser(ctx context.Context, id uuid.UUID) (*User, error) {
	return s.users.GetByID(ctx, id)
}

func (s *Service) ListUsers(ctx context.Context, limit, offset int) ([]*User, int, error) {
	return s.users.List(ctx, limit, offset)
}

// SetActive enables or disables an account.
func (s *Service) SetActive(ctx context.Context, id uuid.UUID, active bool) (*User, error) {
	u, err := s.users.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	u.Active = active
	if err := s.users.Update(ctx, u); err != nil {
		return nil, err
	}
	return u, nil
}

// Login checks credentials and, when MFA is enabled, the TOTP code. Bad
// input and wrong credentials yield a failed LoginResult; err is reserved
// for storage and signing failures.
func (s *Service) Login(ctx context.Context, email, password, code string) (*LoginResult, error) {
	email = strings.TrimSpace(email)
	if email == "" || password == "" {
		return &LoginResult{Message: msgMissingCredentials}, nil
	}

	u, err := s.users.GetByEmail(ctx, email)
	if errors.Is(err, apperr.ErrNotFound) {
		// Compare against a dummy hash so unknown emails cost the same time.
		bcrypt.CompareHashAndPassword(s.dummy(), []byte(password))
		return &LoginResult{Message: msgInvalidCredentials}, nil
	}
	if err != nil {
		return nil, err
	}
	if bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password)) != nil {
		s.logger.Warn().Str("user_id", u.ID.String()).Msg("login failed: wrong password")
		return &LoginResult{Message: msgInvalidCredentials}, nil
	}
	if !u.Active {
		return &LoginResult{Message: msgDisabled}, nil
	}
	if u.MFAEnabled {
		code = strings.TrimSpace(code)
		if code == "" {
			return &LoginResult{Message: msgMFARequired, RequiresMFA: true}, nil
		}
		if !totp.Validate(code, u.MFASecret) {
			s.logger.Warn().Str("user_id", u.ID.String()).Msg("login failed: invalid totp code")
			return &LoginResult{Message: msgInvalidMFA, RequiresMFA: true}, nil
		}
	}

	token, claims, err := auth.IssueToken(s.jwt, s.claimsFor(u), s.ttl)
	if err != nil {
		return nil, err
	}
	now := time.Now().UTC()
	u.LastLoginAt = &now
	if err := s.users.Update(ctx, u); err != nil {
		return nil, err
	}
	expires := claims.ExpiresAt.Time
	s.logger.Info().Str("user_id", u.ID.String()).Str("role", u.Role).Msg("login")
	return &LoginResult{
		Success:   true,
		Token:     token,
		ExpiresAt: &expires,
		User:      u.Public(),
	}, nil
}

// dummy returns a hash at the service's own cost, compared against when the
// email is unknown.
func (s *Service) dummy() []byte {
	s.dummyOnce.Do(func() {
		s.dummyHash, _ = bcrypt.GenerateFromPassword([]byte("not-a-real-password"), s.bcryptCost)
	})
	return s.dummyHash
}

func (s *Service) claimsFor(u *User) auth.Claims {
	c := auth.Claims{
		Name:  u.Name,
		Roles: []string{u.Role},
	}
	c.Subject = u.ID.String()
	if u.ProfessionalID != nil {
		c.ProfessionalID = u.ProfessionalID.String()
	}
	for _, id := range u.PatientIDs {
		c.PatientIDs = append(c.PatientIDs, id.String())
	}
	return c
}

// Logout revokes the token described by claims until it would have expired.
func (s *Service) Logout(claims *auth.Claims) error {
	if claims == nil || claims.ID == "" {
		return apperr.Validation("token has no id")
	}
	if s.jwt.Revoked == nil {
		return nil
	}
	exp := time.Now().Add(s.ttl)
	if claims.ExpiresAt != nil {
		exp = claims.ExpiresAt.Time
	}
	s.jwt.Revoked.Revoke(claims.ID, exp)
	return nil
}

// ChangePassword replaces the password after checking the current one.
func (s *Service) ChangePassword(ctx context.Context, id uuid.UUID, current, next string) error {
	u, err := s.users.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(current)) != nil {
		return apperr.Forbidden("current password is incorrect")
	}
	if len(next) < minPasswordLength {
		return apperr.Validation("password must have at least %d characters", minPasswordLength)
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(next), s.bcryptCost)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}
	u.PasswordHash = string(hash)
	return s.users.Update(ctx, u)
}

// EnrollMFA generates a new TOTP secret for the user. The second factor is
// only enforced after ConfirmMFA accepts a code for it.
func (s *Service) EnrollMFA(ctx context.Context, id uuid.UUID) (*MFAEnrollment, error) {
	u, err := s.users.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	key, err := totp.Generate(totp.GenerateOpts{
		Issuer:      s.issuer,
		AccountName: u.Email,
	})
	if err != nil {
		return nil, fmt.Errorf("generate totp secret: %w", err)
	}
	u.MFASecret = key.Secret()
	u.MFAEnabled = false
	if err := s.users.Update(ctx, u); err != nil {
		return nil, err
	}
	return &MFAEnrollment{Secret: key.Secret(), URL: key.URL()}, nil
}

// ConfirmMFA enables the second factor once code matches the enrolled
// secret.
func (s *Service) ConfirmMFA(ctx context.Context, id uuid.UUID, code string) (*User, error) {
	u, err := s.users.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if u.MFASecret == "" {
		return nil, apperr.Conflict("no MFA enrollment in progress")
	}
	if !totp.Validate(strings.TrimSpace(code), u.MFASecret) {
		return nil, apperr.Validation("invalid verification code")
	}
	u.MFAEnabled = true
	if err := s.users.Update(ctx, u); err != nil {
		return nil, err
	}
	return u, nil
}
