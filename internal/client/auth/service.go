// Package auth manages the client session: registration, login, the
// stored token, and its expiry.
package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/golang-jwt/jwt/v5"

	httpClient "github.com/sgheorghe/moviekeeper/internal/client/api"
	"github.com/sgheorghe/moviekeeper/internal/client/storage"
	"github.com/sgheorghe/moviekeeper/internal/validation"
	pkgapi "github.com/sgheorghe/moviekeeper/pkg/api"
)

// ErrNotAuthenticated возвращается, когда нет валидной сессии
var ErrNotAuthenticated = errors.New("not authenticated")

// Service предоставляет функции авторизации
type Service struct {
	apiClient httpClient.ClientAPI
	authStore storage.AuthStorage
	logger    *slog.Logger
}

// NewService создает новый сервис авторизации
func NewService(apiClient httpClient.ClientAPI, authStore storage.AuthStorage, logger *slog.Logger) *Service {
	return &Service{
		apiClient: apiClient,
		authStore: authStore,
		logger:    logger,
	}
}

// Register регистрирует нового пользователя
func (s *Service) Register(ctx context.Context, username, password string) error {
	if err := validation.ValidateUsername(username); err != nil {
		return fmt.Errorf("invalid username: %w", err)
	}
	if err := validation.ValidatePassword(password); err != nil {
		return fmt.Errorf("invalid password: %w", err)
	}

	req := pkgapi.RegisterRequest{
		Username: username,
		Password: password,
	}

	if _, err := s.apiClient.Register(ctx, req); err != nil {
		return fmt.Errorf("registration failed: %w", err)
	}

	return nil
}

// Login выполняет аутентификацию и сохраняет полученный токен локально
func (s *Service) Login(ctx context.Context, username, password string) error {
	if err := validation.ValidateUsername(username); err != nil {
		return fmt.Errorf("invalid username: %w", err)
	}
	if err := validation.ValidatePassword(password); err != nil {
		return fmt.Errorf("invalid password: %w", err)
	}

	req := pkgapi.LoginRequest{
		Username: username,
		Password: password,
	}

	resp, err := s.apiClient.Login(ctx, req)
	if err != nil {
		return fmt.Errorf("login failed: %w", err)
	}

	auth := &storage.AuthData{
		Username:  username,
		Token:     resp.Token,
		ExpiresAt: time.Now().Unix() + resp.ExpiresIn,
	}

	// the token payload carries the canonical identity; the signature
	// is only verifiable by the server, so it is read without checking
	if userID, exp, err := unverifiedClaims(resp.Token); err == nil {
		auth.UserID = userID
		if exp > 0 {
			auth.ExpiresAt = exp
		}
	} else {
		s.logger.Debug("could not read token claims", "error", err)
	}

	if err := s.authStore.SaveAuth(ctx, auth); err != nil {
		return fmt.Errorf("failed to save auth data: %w", err)
	}

	return nil
}

// Logout удаляет локальные данные авторизации
func (s *Service) Logout(ctx context.Context) error {
	if err := s.authStore.DeleteAuth(ctx); err != nil {
		if errors.Is(err, storage.ErrAuthNotFound) {
			return nil
		}
		return fmt.Errorf("failed to delete local auth data: %w", err)
	}
	return nil
}

// Session возвращает текущую сессию или ErrNotAuthenticated
func (s *Service) Session(ctx context.Context) (*storage.AuthData, error) {
	auth, err := s.authStore.GetAuth(ctx)
	if err != nil {
		if errors.Is(err, storage.ErrAuthNotFound) {
			return nil, ErrNotAuthenticated
		}
		return nil, fmt.Errorf("failed to get auth data: %w", err)
	}

	if auth.ExpiresAt > 0 && auth.ExpiresAt <= time.Now().Unix() {
		return nil, ErrNotAuthenticated
	}

	return auth, nil
}

// Token returns the stored bearer token; it satisfies the token-source
// shape the sync and push layers expect.
func (s *Service) Token(ctx context.Context) (string, error) {
	auth, err := s.Session(ctx)
	if err != nil {
		return "", err
	}
	return auth.Token, nil
}

// unverifiedClaims extracts the subject and expiry from a JWT without
// verifying the signature.
func unverifiedClaims(token string) (userID string, expiresAt int64, err error) {
	parsed, _, err := jwt.NewParser().ParseUnverified(token, jwt.MapClaims{})
	if err != nil {
		return "", 0, err
	}

	claims, ok := parsed.Claims.(jwt.MapClaims)
	if !ok {
		return "", 0, errors.New("unexpected claims type")
	}

	if sub, err := claims.GetSubject(); err == nil {
		userID = sub
	}
	if exp, err := claims.GetExpirationTime(); err == nil && exp != nil {
		expiresAt = exp.Unix()
	}

	return userID, expiresAt, nil
}
