package users

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/go-playground/validator/v10"
	"golang.org/x/crypto/bcrypt"

	"github.com/inkstream-blog/inkstream/internal/shared"
)

// ErrInvalidCredentials is returned for a wrong email or password. The two
// cases are indistinguishable on purpose.
var ErrInvalidCredentials = errors.New("users: invalid credentials")

// Service handles account business logic.
type Service struct {
	repo     RepositoryPort
	logger   *slog.Logger
	validate *validator.Validate
}

// NewService builds a Service instance.
func NewService(repo RepositoryPort, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{repo: repo, logger: logger, validate: shared.NewValidator()}
}

// RegisterInput carries a new account registration.
type RegisterInput struct {
	Email    string `validate:"required,email"`
	Name     string `validate:"required,max=100"`
	Password string `validate:"required,min=8,max=72"`
}

// Register creates an account with a bcrypt password hash.
func (s *Service) Register(ctx context.Context, in RegisterInput) (User, error) {
	if err := shared.WrapValidation(s.validate.Struct(in)); err != nil {
		return User{}, err
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(in.Password), bcrypt.DefaultCost)
	if err != nil {
		return User{}, fmt.Errorf("users: hash password: %w", err)
	}
	u := User{Email: in.Email, Name: in.Name, PasswordHash: string(hash)}
	id, err := s.repo.Create(ctx, u)
	if err != nil {
		return User{}, fmt.Errorf("users: create: %w", err)
	}
	s.logger.Info("user registered", slog.Int64("user_id", id))
	return s.repo.GetByID(ctx, id)
}

// Authenticate verifies credentials and returns the account.
func (s *Service) Authenticate(ctx context.Context, email, password string) (User, error) {
	u, err := s.repo.GetByEmail(ctx, email)
	if errors.Is(err, shared.ErrNotFound) {
		return User{}, ErrInvalidCredentials
	}
	if err != nil {
		return User{}, err
	}
	if !u.IsActive {
		return User{}, ErrInvalidCredentials
	}
	if bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password)) != nil {
		return User{}, ErrInvalidCredentials
	}
	return u, nil
}

// Get returns one account.
func (s *Service) Get(ctx context.Context, id int64) (User, error) {
	return s.repo.GetByID(ctx, id)
}

// List returns all accounts.
func (s *Service) List(ctx context.Context) ([]User, error) {
	return s.repo.List(ctx)
}

// Principal resolves the account into the identity the permission engine
// consumes, including group memberships.
func (s *Service) Principal(ctx context.Context, userID int64) (shared.Principal, error) {
	u, err := s.repo.GetByID(ctx, userID)
	if err != nil {
		return shared.Anonymous(), err
	}
	if !u.IsActive {
		return shared.Anonymous(), nil
	}
	groups, err := s.repo.GroupIDs(ctx, u.ID)
	if err != nil {
		return shared.Anonymous(), err
	}
	return shared.Principal{
		ID:            u.ID,
		Kind:          shared.PrincipalUser,
		GroupIDs:      groups,
		IsAdmin:       u.IsAdmin,
		IsStaff:       u.IsStaff,
		Authenticated: true,
	}, nil
}
