package users

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/solstice-labs/authbridge/internal/auth"
	"gorm.io/gorm"
)

var (
	// ErrInvalidIdentity indicates the provider identity carried no subject.
	ErrInvalidIdentity = errors.New("users: invalid identity")
	// ErrEmailRequired indicates a first-time login whose identity has no email.
	ErrEmailRequired = errors.New("users: email required for account creation")
)

// ServiceConfig describes the dependencies required for user resolution.
type ServiceConfig struct {
	Database   *gorm.DB
	IDProvider func() string
	Clock      func() time.Time
}

// Service resolves provider identities to persistent user accounts.
type Service struct {
	db    *gorm.DB
	newID func() string
	now   func() time.Time
}

// NewService constructs the user service.
func NewService(cfg ServiceConfig) (*Service, error) {
	if cfg.Database == nil {
		return nil, fmt.Errorf("users: database connection required")
	}
	newID := cfg.IDProvider
	if newID == nil {
		newID = uuid.NewString
	}
	clock := cfg.Clock
	if clock == nil {
		clock = time.Now
	}
	return &Service{
		db:    cfg.Database,
		newID: newID,
		now:   clock,
	}, nil
}

// Resolve returns the account for the identity's subject, creating it on
// first login. An existing account is returned unchanged. Two callbacks
// racing on the same new subject both resolve to the single row that wins
// the unique-constraint race; the loser re-reads instead of failing.
func (s *Service) Resolve(ctx context.Context, identity auth.ExternalIdentity) (User, error) {
	authID := normalize(identity.Subject)
	if authID == "" {
		return User{}, ErrInvalidIdentity
	}

	var user User
	err := s.db.WithContext(ctx).
		Where("auth_id = ?", authID).
		First(&user).
		Error
	if err == nil {
		return user, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return User{}, err
	}

	email := strings.ToLower(normalize(identity.Email))
	if email == "" {
		return User{}, ErrEmailRequired
	}

	user = User{
		ID:        s.newID(),
		AuthID:    authID,
		Email:     email,
		FullName:  normalize(identity.FullName),
		AvatarURL: normalize(identity.AvatarURL),
		CreatedAt: s.now(),
	}
	if createErr := s.db.WithContext(ctx).Create(&user).Error; createErr != nil {
		if errors.Is(createErr, gorm.ErrDuplicatedKey) {
			return s.lookup(ctx, authID)
		}
		return User{}, createErr
	}

	return user, nil
}

func (s *Service) lookup(ctx context.Context, authID string) (User, error) {
	var user User
	err := s.db.WithContext(ctx).
		Where("auth_id = ?", authID).
		First(&user).
		Error
	if err != nil {
		return User{}, err
	}
	return user, nil
}
