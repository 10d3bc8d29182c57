package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/noah-isme/pass-request-client/internal/models"
	appErrors "github.com/noah-isme/pass-request-client/pkg/errors"
)

type fakeProber struct {
	user  *models.User
	err   error
	calls int
	hook  func()
}

func (f *fakeProber) GetProfile(context.Context) (*models.User, error) {
	f.calls++
	if f.hook != nil {
		f.hook()
	}
	return f.user, f.err
}

func signedToken(t *testing.T, exp time.Time) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Subject:   "u-1",
		ExpiresAt: jwt.NewNumericDate(exp),
	})
	signed, err := token.SignedString([]byte("test-secret"))
	require.NoError(t, err)
	return signed
}

func TestBootstrapWithoutToken(t *testing.T) {
	prober := &fakeProber{}
	svc := NewSessionService(&fakeTokens{}, prober, zap.NewNop())

	session, err := svc.Bootstrap(context.Background())
	require.NoError(t, err)
	assert.False(t, session.Authenticated())
	assert.Zero(t, prober.calls)
}

func TestBootstrapValidToken(t *testing.T) {
	user := currentUser()
	prober := &fakeProber{user: &user}
	tokens := &fakeTokens{token: "opaque-token"}
	svc := NewSessionService(tokens, prober, zap.NewNop())

	session, err := svc.Bootstrap(context.Background())
	require.NoError(t, err)
	assert.True(t, session.Authenticated())
	assert.Equal(t, "u-1", session.User.ID)
	assert.Equal(t, "opaque-token", tokens.token)
}

func TestBootstrapProbeFailureForgetsToken(t *testing.T) {
	prober := &fakeProber{err: appErrors.Server(401, "")}
	tokens := &fakeTokens{token: signedToken(t, time.Now().Add(time.Hour))}
	svc := NewSessionService(tokens, prober, zap.NewNop())

	session, err := svc.Bootstrap(context.Background())
	require.NoError(t, err)
	assert.Equal(t, FlowAnonymous, session.Flow)
	assert.Empty(t, tokens.token)
	assert.Equal(t, 1, prober.calls)
}

func TestBootstrapExpiredTokenSkipsProbe(t *testing.T) {
	prober := &fakeProber{}
	tokens := &fakeTokens{token: signedToken(t, time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC))}
	svc := NewSessionService(tokens, prober, zap.NewNop())
	svc.now = func() time.Time { return time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC) }

	session, err := svc.Bootstrap(context.Background())
	require.NoError(t, err)
	assert.False(t, session.Authenticated())
	assert.Zero(t, prober.calls)
	assert.Equal(t, 1, tokens.deletes)
}

func TestBootstrapCancelledProbeKeepsToken(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	prober := &fakeProber{err: appErrors.Clone(appErrors.ErrTransport, "cancelled"), hook: cancel}
	tokens := &fakeTokens{token: "opaque-token"}
	svc := NewSessionService(tokens, prober, zap.NewNop())

	session, err := svc.Bootstrap(ctx)
	require.ErrorIs(t, err, context.Canceled)
	assert.False(t, session.Authenticated())
	assert.Equal(t, "opaque-token", tokens.token)
	assert.Zero(t, tokens.deletes)
}

func TestBootstrapLoadErrorLogsDeleteFailure(t *testing.T) {
	core, logs := observer.New(zapcore.WarnLevel)
	tokens := &fakeTokens{loadErr: errors.New("keyring locked"), deleteErr: errors.New("still locked")}
	svc := NewSessionService(tokens, &fakeProber{}, zap.New(core))

	session, err := svc.Bootstrap(context.Background())
	require.NoError(t, err)
	assert.False(t, session.Authenticated())
	assert.Equal(t, 1, logs.FilterMessage("token load failed, continuing anonymously").Len())
	assert.Equal(t, 1, logs.FilterMessage("failed to delete token").Len())
}

func TestExpired(t *testing.T) {
	now := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)
	assert.True(t, expired(signedToken(t, now), now))
	assert.False(t, expired(signedToken(t, now.Add(time.Minute)), now))
	assert.False(t, expired("not-a-jwt", now))
}
