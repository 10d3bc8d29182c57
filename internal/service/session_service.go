package service

import (
	"context"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"

	"github.com/noah-isme/pass-request-client/internal/models"
)

// Flow is the top-level screen selected at startup.
type Flow string

const (
	FlowAnonymous     Flow = "anonymous"
	FlowAuthenticated Flow = "authenticated"
)

// Session is the outcome of Bootstrap.
type Session struct {
	Flow Flow
	User *models.User
}

// Authenticated reports whether a user is signed in.
func (s Session) Authenticated() bool {
	return s.Flow == FlowAuthenticated
}

type profileProber interface {
	GetProfile(ctx context.Context) (*models.User, error)
}

// SessionService decides at startup whether the stored token is still usable.
type SessionService struct {
	tokens  tokenStore
	profile profileProber
	logger  *zap.Logger
	now     func() time.Time
}

// NewSessionService constructs a SessionService.
func NewSessionService(tokens tokenStore, profile profileProber, logger *zap.Logger) *SessionService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SessionService{tokens: tokens, profile: profile, logger: logger, now: time.Now}
}

// Bootstrap probes the stored token. Any failure deletes the token and
// selects the anonymous flow, with one exception: when ctx ends during the
// probe the token is kept and ctx's error is returned, since a probe the
// caller abandoned does not show the token is invalid. This is the only
// case in which Bootstrap returns a non-nil error.
func (s *SessionService) Bootstrap(ctx context.Context) (Session, error) {
	token, err := s.tokens.Load(ctx)
	if err != nil {
		s.logger.Warn("token load failed, continuing anonymously", zap.Error(err))
		s.forget(ctx)
		return Session{Flow: FlowAnonymous}, nil
	}
	if token == "" {
		return Session{Flow: FlowAnonymous}, nil
	}

	if expired(token, s.now()) {
		s.logger.Info("stored token expired, skipping profile probe")
		s.forget(ctx)
		return Session{Flow: FlowAnonymous}, nil
	}

	user, err := s.profile.GetProfile(ctx)
	if err != nil {
		// A cancelled probe says nothing about the token.
		if ctxErr := ctx.Err(); ctxErr != nil {
			return Session{Flow: FlowAnonymous}, ctxErr
		}
		s.logger.Info("profile probe failed, discarding token", zap.Error(err))
		s.forget(ctx)
		return Session{Flow: FlowAnonymous}, nil
	}
	return Session{Flow: FlowAuthenticated, User: user}, nil
}

func (s *SessionService) forget(ctx context.Context) {
	if err := s.tokens.Delete(ctx); err != nil {
		s.logger.Warn("failed to delete token", zap.Error(err))
	}
}

// expired reads the exp claim without verifying the signature. Tokens that
// are not JWTs or carry no exp are left for the server to judge.
func expired(token string, now time.Time) bool {
	claims := jwt.RegisteredClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, &claims); err != nil {
		return false
	}
	if claims.ExpiresAt == nil {
		return false
	}
	return !now.Before(claims.ExpiresAt.Time)
}
