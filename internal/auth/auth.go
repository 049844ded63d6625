package auth

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"

	"github.com/cloudydaiyz/ispy-backend/config"
	"github.com/cloudydaiyz/ispy-backend/internal/apperr"
)

const (
	accessTokenTTL  = time.Hour
	refreshTokenTTL = 2 * time.Hour
)

type Service struct {
	cfg config.Config
}

func NewService(cfg config.Config) *Service {
	return &Service{cfg: cfg}
}

// Identity is the verified caller resolved from a bearer token. The
// session core trusts it; only the transport layer constructs it.
type Identity struct {
	Username string
	Role     string
}

type Bearer struct {
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken"`
}

func (s *Service) HashPassword(password string) (string, error) {
	if len(password) < 8 || len(password) > 100 {
		return "", apperr.New(apperr.InvalidInput, "password must be between 8 and 100 characters")
	}
	hashed, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(hashed), nil
}

func (s *Service) VerifyPassword(hash, password string) error {
	if err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)); err != nil {
		return apperr.New(apperr.InvalidAuth, "invalid credentials")
	}
	return nil
}

// IssueTokens mints the access/refresh pair for an authenticated user.
func (s *Service) IssueTokens(username, role string) (Bearer, error) {
	access, err := s.sign(username, role, "access", accessTokenTTL)
	if err != nil {
		return Bearer{}, err
	}
	refresh, err := s.sign(username, role, "refresh", refreshTokenTTL)
	if err != nil {
		return Bearer{}, err
	}
	return Bearer{AccessToken: access, RefreshToken: refresh}, nil
}

// VerifyAccess resolves the identity carried by an access token.
func (s *Service) VerifyAccess(tokenString string) (Identity, error) {
	return s.verify(tokenString, "access")
}

// Refresh rotates the token pair from a valid refresh token.
func (s *Service) Refresh(refreshToken string) (Bearer, error) {
	identity, err := s.verify(refreshToken, "refresh")
	if err != nil {
		return Bearer{}, err
	}
	return s.IssueTokens(identity.Username, identity.Role)
}

func (s *Service) sign(username, role, use string, ttl time.Duration) (string, error) {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"user": username,
		"role": role,
		"use":  use,
		"exp":  time.Now().Add(ttl).Unix(),
	})
	return token.SignedString([]byte(s.cfg.JWTSecret))
}

func (s *Service) verify(tokenString, use string) (Identity, error) {
	token, err := jwt.Parse(tokenString, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return []byte(s.cfg.JWTSecret), nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return Identity{}, apperr.New(apperr.ExpiredPermissions, "token expired")
		}
		return Identity{}, apperr.New(apperr.InvalidAuth, "invalid token")
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return Identity{}, apperr.New(apperr.InvalidAuth, "invalid token claims")
	}
	username, _ := claims["user"].(string)
	role, _ := claims["role"].(string)
	tokenUse, _ := claims["use"].(string)
	if username == "" || role == "" || tokenUse != use {
		return Identity{}, apperr.New(apperr.InvalidAuth, "invalid token claims")
	}
	return Identity{Username: username, Role: role}, nil
}
