package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/spec-kit/ticket-tracker/internal/auth"
	"github.com/spec-kit/ticket-tracker/internal/config"
	"github.com/spec-kit/ticket-tracker/internal/domain"
	"github.com/spec-kit/ticket-tracker/internal/observability"
	"github.com/spec-kit/ticket-tracker/internal/repository"
	"github.com/spec-kit/ticket-tracker/internal/session"
	apperrors "github.com/spec-kit/ticket-tracker/pkg/errorutil"
)

// IdentitySource exposes the cached session identity.
type IdentitySource interface {
	Current() *domain.Identity
}

// SessionStore is the session contract the access layer drives.
type SessionStore interface {
	IdentitySource
	CreateIdentity(ctx context.Context, email, password string) (*domain.Identity, error)
	AuthenticateIdentity(ctx context.Context, email, password string) (*domain.Identity, error)
	End(ctx context.Context) error
}

// AuthService translates sign-up, sign-in and role lookups into session and
// directory calls.
type AuthService struct {
	session     SessionStore
	profiles    repository.ProfileRepository
	metrics     *observability.Metrics
	logger      *zap.Logger
	minPassword int
	retries     int
	backoff     time.Duration
	sleep       func(ctx context.Context, d time.Duration) error
}

// AuthDependencies encapsulates collaborators of the auth service.
type AuthDependencies struct {
	Session  SessionStore
	Profiles repository.ProfileRepository
	Metrics  *observability.Metrics
	Logger   *zap.Logger
}

// NewAuthService builds the service.
func NewAuthService(cfg config.Config, deps AuthDependencies) *AuthService {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	minPassword := cfg.Auth.MinPasswordLength
	if minPassword <= 0 {
		minPassword = 6
	}
	return &AuthService{
		session:     deps.Session,
		profiles:    deps.Profiles,
		metrics:     deps.Metrics,
		logger:      logger,
		minPassword: minPassword,
		retries:     cfg.Tracker.RoleLookupRetries,
		backoff:     cfg.Tracker.RoleLookupBackoff(),
		sleep:       sleepContext,
	}
}

// Register creates an identity and its profile. If the profile cannot be
// written or read back, the identity is kept and PROFILE_CREATION_FAILED is
// returned.
func (s *AuthService) Register(ctx context.Context, email, password, name string, role domain.Role) (*domain.Identity, error) {
	email = strings.TrimSpace(email)
	name = strings.TrimSpace(name)
	if email == "" || password == "" || name == "" || role == "" {
		return nil, apperrors.NewValidationError("All fields are required", nil)
	}
	if auth.CheckPasswordLength(password, s.minPassword) != nil {
		return nil, apperrors.NewValidationError(fmt.Sprintf("Password must be at least %d characters", s.minPassword), nil)
	}
	if !role.Valid() {
		return nil, apperrors.NewValidationError("Role must be client or admin", map[string]any{"role": role})
	}

	identity, err := s.session.CreateIdentity(ctx, email, password)
	if err != nil {
		return nil, registrationError(err)
	}

	profile := &domain.UserProfile{
		ID:    identity.ID,
		Email: identity.Email,
		Name:  name,
		Role:  role,
	}
	if err := s.profiles.Put(ctx, profile); err != nil {
		s.logger.Error("profile write failed after identity creation",
			zap.String("identity_id", identity.ID), zap.Error(err))
		return nil, apperrors.Wrap(apperrors.NewProfileCreationError(), err)
	}

	stored, err := s.profiles.Get(ctx, identity.ID)
	if err != nil || stored.Role != role {
		if err == nil {
			err = fmt.Errorf("stored role %q does not match %q", stored.Role, role)
		}
		s.logger.Error("profile verification failed after identity creation",
			zap.String("identity_id", identity.ID), zap.Error(err))
		return nil, apperrors.Wrap(apperrors.NewProfileCreationError(), err)
	}

	s.logger.Info("identity registered", zap.String("identity_id", identity.ID), zap.String("role", string(role)))
	return identity, nil
}

// Authenticate signs in with email and password.
func (s *AuthService) Authenticate(ctx context.Context, email, password string) (*domain.Identity, error) {
	email = strings.TrimSpace(email)
	if email == "" || password == "" {
		return nil, apperrors.NewValidationError("Email and password are required", nil)
	}
	identity, err := s.session.AuthenticateIdentity(ctx, email, password)
	if err != nil {
		return nil, authenticationError(err)
	}
	return identity, nil
}

// EndSession signs the current identity out.
func (s *AuthService) EndSession(ctx context.Context) error {
	if err := s.session.End(ctx); err != nil {
		s.logger.Warn("sign out failed", zap.Error(err))
		return apperrors.Wrap(apperrors.NewSignOutError(), err)
	}
	return nil
}

// CurrentIdentity returns the cached identity or nil.
func (s *AuthService) CurrentIdentity() *domain.Identity {
	return s.session.Current()
}

// ResolveRole reads the role of identityID. While the profile is not yet
// visible it re-reads up to the configured number of retries, waiting the
// fixed backoff between reads.
func (s *AuthService) ResolveRole(ctx context.Context, identityID string) (domain.Role, error) {
	if strings.TrimSpace(identityID) == "" {
		return "", apperrors.NewValidationError("Identity ID is required", nil)
	}

	for attempt := 0; ; attempt++ {
		profile, err := s.profiles.Get(ctx, identityID)
		switch {
		case err == nil:
			if !profile.Role.Valid() {
				s.metrics.RecordRoleResolution(apperrors.CodeRoleMissing)
				return "", apperrors.NewRoleMissing()
			}
			s.metrics.RecordRoleResolution("ok")
			return profile.Role, nil
		case !errors.Is(err, repository.ErrNotFound):
			s.metrics.RecordRoleResolution(apperrors.CodeInternal)
			return "", apperrors.NewInternal("Failed to load user profile", err)
		case attempt >= s.retries:
			s.metrics.RecordRoleResolution(apperrors.CodeProfileNotFound)
			return "", apperrors.NewProfileNotFound()
		}

		s.metrics.RecordRoleLookupRetry()
		s.logger.Debug("profile not visible yet, retrying",
			zap.String("identity_id", identityID), zap.Int("attempt", attempt+1))
		if err := s.sleep(ctx, s.backoff); err != nil {
			return "", apperrors.NewInternal("Role lookup cancelled", err)
		}
	}
}

func registrationError(err error) error {
	var sessionErr *session.Error
	if !errors.As(err, &sessionErr) {
		return apperrors.Wrap(apperrors.NewAuthError("Registration failed"), err)
	}
	switch sessionErr.Code {
	case session.CodeEmailInUse:
		return apperrors.Wrap(apperrors.NewEmailInUse(), err)
	case session.CodeInvalidEmail:
		return apperrors.Wrap(apperrors.NewInvalidEmail(), err)
	case session.CodeWeakPassword:
		return apperrors.Wrap(apperrors.NewValidationError("Password is too weak", nil), err)
	default:
		return apperrors.Wrap(apperrors.NewAuthError("Registration failed"), err)
	}
}

func authenticationError(err error) error {
	var sessionErr *session.Error
	if !errors.As(err, &sessionErr) {
		return apperrors.Wrap(apperrors.NewAuthError(""), err)
	}
	switch sessionErr.Code {
	case session.CodeWrongPassword, session.CodeInvalidCredential:
		return apperrors.Wrap(apperrors.NewInvalidCredentials(), err)
	case session.CodeUserNotFound:
		return apperrors.Wrap(apperrors.NewUserNotFound(), err)
	case session.CodeInvalidEmail:
		return apperrors.Wrap(apperrors.NewInvalidEmail(), err)
	default:
		return apperrors.Wrap(apperrors.NewAuthError(""), err)
	}
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
