package service

import (
	"context"
	"net/http"
	"strings"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/pass-request-client/internal/dto"
	"github.com/noah-isme/pass-request-client/internal/models"
	"github.com/noah-isme/pass-request-client/pkg/apiclient"
	appErrors "github.com/noah-isme/pass-request-client/pkg/errors"
)

// apiDoer is the subset of apiclient.Client the services need.
type apiDoer interface {
	Do(ctx context.Context, req apiclient.Request, out any) error
}

type tokenStore interface {
	Save(ctx context.Context, token string) error
	Load(ctx context.Context) (string, error)
	Delete(ctx context.Context) error
}

// AuthService signs users in and out and persists the bearer token.
type AuthService struct {
	api       apiDoer
	tokens    tokenStore
	validator *validator.Validate
	logger    *zap.Logger
}

// NewAuthService constructs an AuthService instance.
func NewAuthService(api apiDoer, tokens tokenStore, validate *validator.Validate, logger *zap.Logger) *AuthService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = NewValidator()
	}
	return &AuthService{api: api, tokens: tokens, validator: validate, logger: logger}
}

// Login exchanges credentials for a token and stores it.
func (s *AuthService) Login(ctx context.Context, req dto.LoginRequest) error {
	req.Email = strings.TrimSpace(req.Email)
	if err := s.validator.Struct(req); err != nil {
		return translateValidation(err)
	}

	var resp models.TokenResponse
	if err := s.api.Do(ctx, apiclient.Request{Method: http.MethodPost, Endpoint: "/auth/login", Body: req}, &resp); err != nil {
		return err
	}
	return s.persist(ctx, resp.Token)
}

// Register creates an account and stores the returned token.
func (s *AuthService) Register(ctx context.Context, req dto.RegistrationRequest) error {
	req.FullName = strings.TrimSpace(req.FullName)
	req.Email = strings.TrimSpace(req.Email)
	if err := s.validator.Struct(req); err != nil {
		return translateValidation(err)
	}

	var resp models.TokenResponse
	if err := s.api.Do(ctx, apiclient.Request{Method: http.MethodPost, Endpoint: "/auth/registration", Body: req}, &resp); err != nil {
		return err
	}
	return s.persist(ctx, resp.Token)
}

// Logout forgets the stored token. The server keeps no session.
func (s *AuthService) Logout(ctx context.Context) error {
	return s.tokens.Delete(ctx)
}

func (s *AuthService) persist(ctx context.Context, token string) error {
	if token == "" {
		return appErrors.Clone(appErrors.ErrNoData, "response carries no token")
	}
	if err := s.tokens.Save(ctx, token); err != nil {
		s.logger.Error("failed to persist token", zap.Error(err))
		return err
	}
	return nil
}
