package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/xxxsen/chanlink/internal/model"
	appErr "github.com/xxxsen/chanlink/internal/pkg/errors"
	"github.com/xxxsen/chanlink/internal/pkg/jwt"
	"github.com/xxxsen/chanlink/internal/pkg/password"
	"github.com/xxxsen/chanlink/internal/pkg/timeutil"
)

type AuthService struct {
	users     AccountStore
	jwtSecret []byte
	jwtTTL    time.Duration
}

func NewAuthService(users AccountStore, secret []byte, ttl time.Duration) *AuthService {
	return &AuthService{users: users, jwtSecret: secret, jwtTTL: ttl}
}

func (s *AuthService) Register(ctx context.Context, name, email, plainPassword string) (*model.User, string, error) {
	email = normalizeEmail(email)
	name = strings.TrimSpace(name)
	if email == "" || !strings.Contains(email, "@") {
		return nil, "", appErr.ErrInvalid
	}
	if err := password.Validate(plainPassword); err != nil {
		return nil, "", appErr.ErrInvalid
	}
	if name == "" {
		name = email[:strings.Index(email, "@")]
	}
	hash, err := password.Hash(plainPassword)
	if err != nil {
		return nil, "", err
	}
	now := timeutil.NowUnix()
	user := &model.User{
		ID:           newID(),
		Name:         name,
		Email:        email,
		PasswordHash: hash,
		Ctime:        now,
		Mtime:        now,
	}
	if err := s.users.Create(ctx, user); err != nil {
		return nil, "", err
	}
	token, err := jwt.GenerateToken(user.ID, user.Email, s.jwtSecret, s.jwtTTL)
	if err != nil {
		return nil, "", err
	}
	return user, token, nil
}

func (s *AuthService) Login(ctx context.Context, email, plainPassword string) (*model.User, string, error) {
	user, err := s.users.GetByEmail(ctx, normalizeEmail(email))
	if err != nil {
		if errors.Is(err, appErr.ErrNotFound) {
			return nil, "", appErr.ErrUnauthorized
		}
		return nil, "", err
	}
	if err := password.Compare(user.PasswordHash, plainPassword); err != nil {
		return nil, "", appErr.ErrUnauthorized
	}
	token, err := jwt.GenerateToken(user.ID, user.Email, s.jwtSecret, s.jwtTTL)
	if err != nil {
		return nil, "", err
	}
	return user, token, nil
}

func normalizeEmail(email string) string {
	return strings.TrimSpace(strings.ToLower(email))
}
