package service

import (
	"crypto/subtle"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"

	"filedrop/internal/domain"
)

const sessionIssuer = "filedrop"

type AuthConfig struct {
	AdminUsername string
	AdminPassword string
	APIKey        string
	SessionSecret string
	SessionTTL    time.Duration
}

// AuthService checks the admin credential, issues session tokens and verifies API keys.
type AuthService interface {
	Login(username, password string) (string, domain.Session, error)
	ParseSession(token string) (domain.Session, error)
	ValidAPIKey(key string) bool
}

type authService struct {
	username     string
	passwordHash []byte
	apiKey       string
	secret       []byte
	ttl          time.Duration
	now          func() time.Time
}

func NewAuthService(cfg AuthConfig) (AuthService, error) {
	username := strings.TrimSpace(cfg.AdminUsername)
	if username == "" || cfg.AdminPassword == "" {
		return nil, errors.New("admin credentials are not configured")
	}
	if strings.TrimSpace(cfg.SessionSecret) == "" {
		return nil, errors.New("session secret is not configured")
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(cfg.AdminPassword), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	ttl := cfg.SessionTTL
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}

	return &authService{
		username:     username,
		passwordHash: hash,
		apiKey:       strings.TrimSpace(cfg.APIKey),
		secret:       []byte(cfg.SessionSecret),
		ttl:          ttl,
		now:          time.Now,
	}, nil
}

func (s *authService) Login(username, password string) (string, domain.Session, error) {
	username = strings.TrimSpace(username)
	if username == "" || password == "" {
		return "", domain.Session{}, ErrInvalidCredentials
	}

	userOK := subtle.ConstantTimeCompare([]byte(username), []byte(s.username)) == 1
	// always run bcrypt so a wrong username costs the same as a wrong password
	passErr := bcrypt.CompareHashAndPassword(s.passwordHash, []byte(password))
	if !userOK || passErr != nil {
		return "", domain.Session{}, ErrInvalidCredentials
	}

	now := s.now()
	session := domain.Session{
		Username:  s.username,
		ExpiresAt: now.Add(s.ttl).Truncate(time.Second),
	}
	claims := jwt.RegisteredClaims{
		Issuer:    sessionIssuer,
		Subject:   session.Username,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(session.ExpiresAt),
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return "", domain.Session{}, fmt.Errorf("sign session: %w", err)
	}
	return token, session, nil
}

func (s *authService) ParseSession(token string) (domain.Session, error) {
	if strings.TrimSpace(token) == "" {
		return domain.Session{}, ErrInvalidSession
	}

	claims := &jwt.RegisteredClaims{}
	_, err := jwt.ParseWithClaims(token, claims, func(*jwt.Token) (any, error) {
		return s.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(sessionIssuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(s.now),
	)
	if err != nil {
		return domain.Session{}, fmt.Errorf("%w: %v", ErrInvalidSession, err)
	}
	if claims.Subject != s.username {
		return domain.Session{}, ErrInvalidSession
	}

	return domain.Session{Username: claims.Subject, ExpiresAt: claims.ExpiresAt.Time}, nil
}

func (s *authService) ValidAPIKey(key string) bool {
	if s.apiKey == "" || key == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(key), []byte(s.apiKey)) == 1
}
