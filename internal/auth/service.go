package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/scribehq/scribe/internal/notes"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

const (
	minPasswordLength = 6
	// errorPrefix is stripped by UserMessage before an error reaches the
	// login form.
	errorPrefix = "auth: "
)

var (
	// ErrInvalidEmail indicates an empty or malformed email address.
	ErrInvalidEmail = errors.New("auth: invalid email address")
	// ErrWeakPassword indicates a password below the minimum length.
	ErrWeakPassword = errors.New("auth: password must be at least 6 characters")
	// ErrEmailTaken indicates the email already has an account.
	ErrEmailTaken = errors.New("auth: email already in use")
	// ErrInvalidCredentials indicates an unknown email or wrong password.
	ErrInvalidCredentials = errors.New("auth: invalid email or password")
	// ErrUserNotFound indicates no account exists for the identifier.
	ErrUserNotFound = errors.New("auth: user not found")

	errMissingDatabase   = errors.New("auth: database handle is required")
	errMissingIDProvider = errors.New("auth: id provider is required")

	noOpLogger = zap.NewNop()
)

// UserMessage renders an auth error for display near the login form,
// stripping the provider prefix.
func UserMessage(err error) string {
	if err == nil {
		return ""
	}
	return strings.TrimPrefix(err.Error(), errorPrefix)
}

// ServiceConfig describes the dependencies required for account management.
type ServiceConfig struct {
	Database   *gorm.DB
	Clock      func() time.Time
	IDProvider notes.IDProvider
	Logger     *zap.Logger
}

// Service manages email/password accounts.
type Service struct {
	db         *gorm.DB
	clock      func() time.Time
	idProvider notes.IDProvider
	logger     *zap.Logger
}

// NewService validates the configuration and returns a Service.
func NewService(cfg ServiceConfig) (*Service, error) {
	if cfg.Database == nil {
		return nil, errMissingDatabase
	}
	if cfg.IDProvider == nil {
		return nil, errMissingIDProvider
	}
	clock := cfg.Clock
	if clock == nil {
		clock = time.Now
	}
	logger := cfg.Logger
	if logger == nil {
		logger = noOpLogger
	}
	return &Service{
		db:         cfg.Database,
		clock:      clock,
		idProvider: cfg.IDProvider,
		logger:     logger,
	}, nil
}

// Register creates an account for the email/password pair and returns the
// new identity.
func (s *Service) Register(ctx context.Context, email, password string) (User, error) {
	normalized, err := normalizeEmail(email)
	if err != nil {
		return User{}, err
	}
	if len(password) < minPasswordLength {
		return User{}, ErrWeakPassword
	}

	var existing Account
	err = s.db.WithContext(ctx).Where("email = ?", normalized).Take(&existing).Error
	if err == nil {
		return User{}, ErrEmailTaken
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		s.logError("auth.register", "lookup_failed", err)
		return User{}, fmt.Errorf("auth: register: %w", err)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		s.logError("auth.register", "hash_failed", err)
		return User{}, fmt.Errorf("auth: register: %w", err)
	}
	userID, err := s.idProvider.NewID()
	if err != nil {
		s.logError("auth.register", "id_generation_failed", err)
		return User{}, fmt.Errorf("auth: register: %w", err)
	}

	account := Account{
		UserID:           userID,
		Email:            normalized,
		PasswordHash:     string(hash),
		CreatedAtSeconds: s.clock().UTC().Unix(),
	}
	if err := s.db.WithContext(ctx).Create(&account).Error; err != nil {
		s.logError("auth.register", "insert_failed", err)
		return User{}, fmt.Errorf("auth: register: %w", err)
	}
	return User{UID: account.UserID, Email: account.Email}, nil
}

// SignIn verifies the email/password pair and returns the identity.
func (s *Service) SignIn(ctx context.Context, email, password string) (User, error) {
	normalized, err := normalizeEmail(email)
	if err != nil {
		return User{}, err
	}

	var account Account
	err = s.db.WithContext(ctx).Where("email = ?", normalized).Take(&account).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return User{}, ErrInvalidCredentials
	}
	if err != nil {
		s.logError("auth.sign_in", "lookup_failed", err)
		return User{}, fmt.Errorf("auth: sign in: %w", err)
	}
	if bcrypt.CompareHashAndPassword([]byte(account.PasswordHash), []byte(password)) != nil {
		return User{}, ErrInvalidCredentials
	}

	// Best effort; a failed touch never blocks the sign-in.
	touchErr := s.db.WithContext(ctx).Model(&Account{}).
		Where("user_id = ?", account.UserID).
		Update("last_seen_at_s", s.clock().UTC().Unix()).Error
	if touchErr != nil {
		s.logger.Warn("auth service error",
			zap.String("operation", "auth.sign_in"),
			zap.String("reason", "last_seen_update_failed"),
			zap.Error(touchErr),
			zap.String("user_id", account.UserID))
	}

	return User{UID: account.UserID, Email: account.Email}, nil
}

// Lookup resolves a user identifier to its identity.
func (s *Service) Lookup(ctx context.Context, userID string) (User, error) {
	if strings.TrimSpace(userID) == "" {
		return User{}, ErrUserNotFound
	}
	var account Account
	err := s.db.WithContext(ctx).Where("user_id = ?", userID).Take(&account).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return User{}, fmt.Errorf("%w: %s", ErrUserNotFound, userID)
	}
	if err != nil {
		s.logError("auth.lookup", "query_failed", err, zap.String("user_id", userID))
		return User{}, fmt.Errorf("auth: lookup: %w", err)
	}
	return User{UID: account.UserID, Email: account.Email}, nil
}

func normalizeEmail(email string) (string, error) {
	normalized := strings.ToLower(strings.TrimSpace(email))
	if normalized == "" || !strings.Contains(normalized, "@") {
		return "", ErrInvalidEmail
	}
	return normalized, nil
}

func (s *Service) logError(operation, reason string, err error, fields ...zap.Field) {
	attrs := []zap.Field{
		zap.String("operation", operation),
		zap.String("reason", reason),
	}
	if err != nil {
		attrs = append(attrs, zap.Error(err))
	}
	attrs = append(attrs, fields...)
	s.logger.Error("auth service error", attrs...)
}
