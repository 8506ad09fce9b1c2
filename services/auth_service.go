package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v4"
	"golang.org/x/crypto/bcrypt"

	"github.com/elobot/ladder-system/models"
	"github.com/elobot/ladder-system/repositories"
)

const (
	minPasswordLength = 8
	tokenTTL          = 24 * time.Hour
)

// AuthService — аутентификация модераторов: bcrypt-пароли и JWT.
type AuthService interface {
	Register(ctx context.Context, creds models.Credentials) (*models.Moderator, error)
	Login(ctx context.Context, creds models.Credentials) (string, error)
}

type authService struct {
	moderatorRepo repositories.ModeratorRepository
	jwtSecret     string
}

func NewAuthService(moderatorRepo repositories.ModeratorRepository, jwtSecret string) AuthService {
	return &authService{
		moderatorRepo: moderatorRepo,
		jwtSecret:     jwtSecret,
	}
}

func (s *authService) Register(ctx context.Context, creds models.Credentials) (*models.Moderator, error) {
	if creds.Username == "" {
		return nil, ErrValidationFailed
	}
	if len(creds.Password) < minPasswordLength {
		return nil, ErrPasswordTooShort
	}

	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(creds.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("ошибка хеширования пароля: %w", err)
	}

	moderator := &models.Moderator{
		Username:     creds.Username,
		PasswordHash: string(hashedPassword),
		CreatedAt:    time.Now(),
	}
	if err := s.moderatorRepo.Create(ctx, moderator); err != nil {
		if errors.Is(err, repositories.ErrModeratorUsernameConflict) {
			return nil, ErrUsernameConflict
		}
		return nil, fmt.Errorf("failed to create moderator: %w", err)
	}

	moderator.PasswordHash = ""
	return moderator, nil
}

func (s *authService) Login(ctx context.Context, creds models.Credentials) (string, error) {
	moderator, err := s.moderatorRepo.GetByUsername(ctx, creds.Username)
	if err != nil {
		if errors.Is(err, repositories.ErrModeratorNotFound) {
			return "", ErrInvalidCredential
		}
		return "", fmt.Errorf("failed to find moderator: %w", err)
	}

	err = bcrypt.CompareHashAndPassword([]byte(moderator.PasswordHash), []byte(creds.Password))
	if err != nil {
		if errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
			return "", ErrInvalidCredential
		}
		return "", fmt.Errorf("failed to compare password hash: %w", err)
	}

	claims := jwt.MapClaims{
		"moderator_id": moderator.ID,
		"username":     moderator.Username,
		"exp":          time.Now().Add(tokenTTL).Unix(),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(s.jwtSecret))
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}
	return signed, nil
}
