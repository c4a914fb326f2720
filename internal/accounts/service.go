package accounts

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

// Errors returned by account operations.
var (
	ErrNotFound           = errors.New("account not found")
	ErrUsernameTaken      = errors.New("username already taken")
	ErrInvalidPassword    = errors.New("invalid password")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrInactiveAccount    = errors.New("account is inactive")
)

// Service provides staff account management.
type Service struct {
	store  Store
	logger *slog.Logger
}

// NewService creates an accounts service.
func NewService(log *slog.Logger, store Store) *Service {
	if log == nil {
		log = slog.Default()
	}
	return &Service{
		store:  store,
		logger: log.With(slog.String("service", "accounts")),
	}
}

// Login authenticates by identity (username or email) and password.
func (s *Service) Login(ctx context.Context, identity, password string) (Account, error) {
	identity = strings.TrimSpace(identity)
	if identity == "" || strings.TrimSpace(password) == "" {
		return Account{}, ErrInvalidCredentials
	}
	rec, found, err := s.store.GetByIdentity(ctx, identity)
	if err != nil {
		return Account{}, err
	}
	if !found {
		return Account{}, ErrInvalidCredentials
	}
	if !rec.IsActive {
		return Account{}, ErrInactiveAccount
	}
	if bcrypt.CompareHashAndPassword([]byte(rec.PasswordHash), []byte(password)) != nil {
		return Account{}, ErrInvalidCredentials
	}
	if err := s.store.TouchLastLogin(ctx, rec.ID, time.Now().UTC()); err != nil {
		s.logger.Warn("touch last login failed", slog.Any("error", err))
	}
	return rec.Account, nil
}

// Get returns an account by id.
func (s *Service) Get(ctx context.Context, id string) (Account, error) {
	rec, found, err := s.store.GetByID(ctx, id)
	if err != nil {
		return Account{}, err
	}
	if !found {
		return Account{}, ErrNotFound
	}
	return rec.Account, nil
}

// List returns all staff accounts.
func (s *Service) List(ctx context.Context) ([]Account, error) {
	recs, err := s.store.List(ctx)
	if err != nil {
		return nil, err
	}
	items := make([]Account, 0, len(recs))
	for _, rec := range recs {
		items = append(items, rec.Account)
	}
	return items, nil
}

// IsAdmin checks whether the account holds the admin role.
func (s *Service) IsAdmin(ctx context.Context, id string) (bool, error) {
	rec, found, err := s.store.GetByID(ctx, id)
	if err != nil || !found {
		return false, err
	}
	return strings.EqualFold(rec.Role, "admin"), nil
}

// Create creates a staff account.
func (s *Service) Create(ctx context.Context, req CreateAccountRequest) (Account, error) {
	username := strings.TrimSpace(req.Username)
	if username == "" {
		return Account{}, errors.New("username is required")
	}
	password := strings.TrimSpace(req.Password)
	if password == "" {
		return Account{}, errors.New("password is required")
	}
	role, err := normalizeRole(req.Role)
	if err != nil {
		return Account{}, err
	}
	hashed, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return Account{}, err
	}
	displayName := strings.TrimSpace(req.DisplayName)
	if displayName == "" {
		displayName = username
	}
	now := time.Now().UTC()
	rec, err := s.store.Create(ctx, record{
		Account: Account{
			ID:          uuid.NewString(),
			Username:    username,
			Email:       strings.TrimSpace(req.Email),
			Role:        role,
			DisplayName: displayName,
			IsActive:    true,
			CreatedAt:   now,
			UpdatedAt:   now,
		},
		PasswordHash: string(hashed),
	})
	if err != nil {
		return Account{}, err
	}
	s.logger.Info("staff account created",
		slog.String("username", username), slog.String("role", role))
	return rec.Account, nil
}

// UpdatePassword changes the password after verifying the current one.
func (s *Service) UpdatePassword(ctx context.Context, id, currentPassword, newPassword string) error {
	if strings.TrimSpace(newPassword) == "" {
		return errors.New("new password is required")
	}
	rec, found, err := s.store.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if !found {
		return ErrNotFound
	}
	if bcrypt.CompareHashAndPassword([]byte(rec.PasswordHash), []byte(currentPassword)) != nil {
		return ErrInvalidPassword
	}
	hashed, err := bcrypt.GenerateFromPassword([]byte(newPassword), bcrypt.DefaultCost)
	if err != nil {
		return err
	}
	return s.store.UpdatePassword(ctx, id, string(hashed))
}

// EnsureAdmin creates the bootstrap admin account when no account with that
// username exists yet. Called once at startup.
func (s *Service) EnsureAdmin(ctx context.Context, username, password, email string) error {
	username = strings.TrimSpace(username)
	if username == "" || strings.TrimSpace(password) == "" {
		return nil
	}
	_, found, err := s.store.GetByIdentity(ctx, username)
	if err != nil {
		return err
	}
	if found {
		return nil
	}
	_, err = s.Create(ctx, CreateAccountRequest{
		Username: username,
		Password: password,
		Email:    email,
		Role:     "admin",
	})
	if errors.Is(err, ErrUsernameTaken) {
		return nil
	}
	return err
}

func normalizeRole(raw string) (string, error) {
	role := strings.ToLower(strings.TrimSpace(raw))
	if role == "" {
		return "member", nil
	}
	if role != "member" && role != "admin" {
		return "", fmt.Errorf("invalid role: %s", raw)
	}
	return role, nil
}
