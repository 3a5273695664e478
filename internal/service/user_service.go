package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"quill/internal/middleware"
	"quill/internal/models"
	"quill/internal/observability"
	"quill/internal/repository"
	"quill/internal/validation"

	"golang.org/x/crypto/bcrypt"
)

type UserService struct {
	users      repository.UserRepository
	store      ImageStore
	bcryptCost int
}

type RegisterInput struct {
	Username string
	Password string
	Avatar   *UploadImageInput
}

// UserServiceOption configures a UserService.
type UserServiceOption func(*UserService)

// WithAvatarStore enables avatar uploads.
func WithAvatarStore(store ImageStore) UserServiceOption {
	return func(s *UserService) { s.store = store }
}

// WithBcryptCost overrides the password hashing cost. Tests use bcrypt.MinCost.
func WithBcryptCost(cost int) UserServiceOption {
	return func(s *UserService) { s.bcryptCost = cost }
}

func NewUserService(users repository.UserRepository, opts ...UserServiceOption) *UserService {
	s := &UserService{users: users, bcryptCost: bcrypt.DefaultCost}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Register creates an account. A taken username is reported as a validation error.
func (s *UserService) Register(ctx context.Context, in RegisterInput) (*models.User, error) {
	username := strings.TrimSpace(in.Username)
	if username == "" {
		return nil, s.authFailure("register", models.NewValidationError("Username is required."))
	}
	if in.Password == "" {
		return nil, s.authFailure("register", models.NewValidationError("Password is required."))
	}
	if err := validation.ValidateUsername(username); err != nil {
		return nil, s.authFailure("register", models.NewValidationError(capitalize(err.Error())+"."))
	}
	if err := validation.ValidatePassword(in.Password); err != nil {
		return nil, s.authFailure("register", models.NewValidationError(capitalize(err.Error())+"."))
	}

	avatar := models.DefaultAvatarPath
	if in.Avatar != nil && len(in.Avatar.Content) > 0 && s.store != nil {
		path, err := s.store.Save(ctx, *in.Avatar)
		if err != nil {
			return nil, s.authFailure("register", err)
		}
		avatar = path
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(in.Password), s.bcryptCost)
	if err != nil {
		return nil, models.NewInternalError(err)
	}

	user := &models.User{Username: username, Password: string(hash), AvatarPath: avatar}
	if err := s.users.Create(ctx, user); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return nil, s.authFailure("register", models.NewValidationError(fmt.Sprintf("User %s is already registered.", username)))
		}
		return nil, err
	}

	observability.AuthAttempts.WithLabelValues("register", "success").Inc()
	middleware.Logger.InfoContext(ctx, "User registered", slog.Uint64("user_id", uint64(user.ID)))
	return user, nil
}

// Authenticate checks a username and password pair.
func (s *UserService) Authenticate(ctx context.Context, username, password string) (*models.User, error) {
	user, err := s.users.GetByUsername(ctx, strings.TrimSpace(username))
	if err != nil {
		if models.HasCode(err, models.CodeNotFound) {
			return nil, s.authFailure("login", models.NewValidationError("Incorrect username."))
		}
		return nil, err
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(password)); err != nil {
		return nil, s.authFailure("login", models.NewValidationError("Incorrect password."))
	}

	observability.AuthAttempts.WithLabelValues("login", "success").Inc()
	return user, nil
}

// GetUser loads a user by id.
func (s *UserService) GetUser(ctx context.Context, id uint) (*models.User, error) {
	return s.users.GetByID(ctx, id)
}

// UpdateAvatar stores a new avatar for the user and returns its public path.
func (s *UserService) UpdateAvatar(ctx context.Context, userID uint, in UploadImageInput) (string, error) {
	if s.store == nil {
		return "", models.NewValidationError("Avatar uploads are disabled")
	}
	path, err := s.store.Save(ctx, in)
	if err != nil {
		return "", err
	}
	if err := s.users.UpdateAvatar(ctx, userID, path); err != nil {
		return "", err
	}
	return path, nil
}

func (s *UserService) authFailure(kind string, err error) error {
	observability.AuthAttempts.WithLabelValues(kind, "failure").Inc()
	return err
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}
