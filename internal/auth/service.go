package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/fdg312/meal-hub/internal/config"
	"github.com/golang-jwt/jwt/v5"
)

var (
	ErrInvalidToken = errors.New("invalid token")
	ErrDevDisabled  = errors.New("dev auth disabled")
)

const devUserID = "dev-user"

// Service: сервис авторизации: выпуск и проверка JWT
type Service struct {
	config *config.Config
	now    func() time.Time
}

func NewService(cfg *config.Config) *Service {
	return &Service{config: cfg, now: time.Now}
}

// SignInDev: dev-авторизация, выдает JWT на JWT_TTL_MINUTES
func (s *Service) SignInDev(ctx context.Context, req DevAuthRequest) (*DevAuthResponse, error) {
	_ = ctx

	if s.config.AuthMode != config.AuthModeDev {
		return nil, ErrDevDisabled
	}

	userID := strings.TrimSpace(req.UserID)
	if userID == "" {
		userID = devUserID
	}

	ttl := time.Duration(s.config.JWTTTLMinutes) * time.Minute
	if ttl <= 0 {
		ttl = 7 * 24 * time.Hour
	}

	accessToken, err := s.generateJWT(userID, ttl)
	if err != nil {
		return nil, fmt.Errorf("failed to generate dev JWT: %w", err)
	}

	return &DevAuthResponse{
		AccessToken: accessToken,
		TokenType:   "Bearer",
		ExpiresIn:   int64(ttl.Seconds()),
		UserID:      userID,
	}, nil
}

func (s *Service) generateJWT(userID string, ttl time.Duration) (string, error) {
	now := s.now()

	claims := jwt.RegisteredClaims{
		Subject:   userID,
		Issuer:    s.config.JWTIssuer,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(s.config.JWTSecret))
}

// VerifyJWT: проверка JWT токена, возвращает sub
func (s *Service) VerifyJWT(tokenString string) (string, error) {
	var claims jwt.RegisteredClaims
	token, err := jwt.ParseWithClaims(tokenString, &claims, func(token *jwt.Token) (interface{}, error) {
		return []byte(s.config.JWTSecret), nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(s.config.JWTIssuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(s.now),
	)
	if err != nil || !token.Valid {
		return "", ErrInvalidToken
	}

	if strings.TrimSpace(claims.Subject) == "" {
		return "", ErrInvalidToken
	}
	return claims.Subject, nil
}
