package auth

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"kycvault/internal/registration"
	"kycvault/internal/user"
	id "kycvault/pkg/domain"
	dErrors "kycvault/pkg/domain-errors"
	"kycvault/pkg/platform/secrets"
	"kycvault/pkg/platform/sentinel"
	"kycvault/pkg/requestcontext"
)

const minPasswordLength = 8

// Service handles registration and login at the trust boundary. Every
// call deeper into the core carries an already-authenticated user id.
type Service struct {
	users  user.Store
	jwt    *JWTService
	logger *slog.Logger
}

// Option configures a Service.
type Option func(*Service)

// WithLogger sets the structured logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Service) { s.logger = l }
}

// NewService constructs an auth service.
func NewService(users user.Store, jwtService *JWTService, opts ...Option) *Service {
	s := &Service{
		users:  users,
		jwt:    jwtService,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// RegisterInput describes a new account.
type RegisterInput struct {
	Name     string
	Email    string
	Phone    string
	Password string
}

// Session is a successful authentication result.
type Session struct {
	User  *user.User
	Token string
}

// Register creates an account and returns a fresh session.
func (s *Service) Register(ctx context.Context, in RegisterInput) (*Session, error) {
	in.Name = strings.TrimSpace(in.Name)
	in.Email = strings.ToLower(strings.TrimSpace(in.Email))
	if in.Name == "" {
		return nil, dErrors.NewValidation("name", "name is required")
	}
	if in.Email == "" || !strings.Contains(in.Email, "@") {
		return nil, dErrors.NewValidation("email", "a valid email is required")
	}
	if len(in.Password) < minPasswordLength {
		return nil, dErrors.NewValidation("password", "password must be at least 8 characters")
	}

	hash, err := secrets.Hash(in.Password)
	if err != nil {
		return nil, err
	}

	u := &user.User{
		ID:               id.NewUserID(),
		Name:             in.Name,
		Email:            in.Email,
		Phone:            strings.TrimSpace(in.Phone),
		PasswordHash:     hash,
		RegistrationStep: string(registration.Start().Step),
		CreatedAt:        requestcontext.Now(ctx),
	}
	if err := s.users.Create(ctx, u); err != nil {
		if errors.Is(err, sentinel.ErrConflict) {
			return nil, dErrors.New(dErrors.CodeConflict, "email is already registered")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeStorageUnavailable, "create user")
	}

	token, err := s.jwt.GenerateSessionToken(u.ID, requestcontext.Now(ctx))
	if err != nil {
		return nil, err
	}

	s.logger.InfoContext(ctx, "user registered",
		slog.String("user_id", u.ID.String()))
	return &Session{User: u, Token: token}, nil
}

// Login checks credentials and returns a fresh session. Unknown email
// and wrong password are indistinguishable to the caller.
func (s *Service) Login(ctx context.Context, email, password string) (*Session, error) {
	u, err := s.users.FindByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeUnauthorized, "invalid email or password")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeStorageUnavailable, "find user")
	}
	if err := secrets.Verify(password, u.PasswordHash); err != nil {
		return nil, dErrors.New(dErrors.CodeUnauthorized, "invalid email or password")
	}

	token, err := s.jwt.GenerateSessionToken(u.ID, requestcontext.Now(ctx))
	if err != nil {
		return nil, err
	}

	s.logger.InfoContext(ctx, "user logged in",
		slog.String("user_id", u.ID.String()))
	return &Session{User: u, Token: token}, nil
}

// GetUser returns the authenticated user's profile.
func (s *Service) GetUser(ctx context.Context, userID id.UserID) (*user.User, error) {
	u, err := s.users.FindByID(ctx, userID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, "user not found")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeStorageUnavailable, "find user")
	}
	return u, nil
}

// AdvanceRegistration moves the user's sign-up wizard forward one step.
// The step the client claims to be completing is checked against the
// persisted step, so replayed or out-of-order submissions fail rather
// than skipping verification stages.
func (s *Service) AdvanceRegistration(ctx context.Context, userID id.UserID, completing registration.Step) (registration.Wizard, error) {
	u, err := s.users.FindByID(ctx, userID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return registration.Wizard{}, dErrors.New(dErrors.CodeNotFound, "user not found")
		}
		return registration.Wizard{}, dErrors.Wrap(err, dErrors.CodeStorageUnavailable, "find user")
	}

	current := registration.Wizard{Step: registration.Step(u.RegistrationStep)}
	if u.RegistrationStep == "" {
		current = registration.Start()
	}
	next, err := current.Advance(completing)
	if err != nil {
		return registration.Wizard{}, err
	}

	u.RegistrationStep = string(next.Step)
	if err := s.users.Update(ctx, u); err != nil {
		return registration.Wizard{}, dErrors.Wrap(err, dErrors.CodeStorageUnavailable, "update user")
	}

	s.logger.InfoContext(ctx, "registration advanced",
		slog.String("user_id", u.ID.String()),
		slog.String("step", string(next.Step)))
	return next, nil
}
