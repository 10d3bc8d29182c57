package repository

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	appErrors "github.com/noah-isme/pass-request-client/pkg/errors"
	"github.com/noah-isme/pass-request-client/pkg/storage"
)

// TokenStore persists the bearer token between runs. Load returns an empty
// string when no token is stored.
type TokenStore interface {
	Save(ctx context.Context, token string) error
	Load(ctx context.Context) (string, error)
	Delete(ctx context.Context) error
}

func storageError(err error, message string) error {
	return appErrors.Wrap(err, appErrors.ErrStorage.Code, 0, message)
}

// FileTokenStore keeps the token in a user-only file.
type FileTokenStore struct {
	files *storage.LocalStorage
	name  string
}

// NewFileTokenStore stores the token as name inside files.
func NewFileTokenStore(files *storage.LocalStorage, name string) *FileTokenStore {
	if name == "" {
		name = "token"
	}
	return &FileTokenStore{files: files, name: name}
}

// Save writes the token.
func (s *FileTokenStore) Save(_ context.Context, token string) error {
	if _, err := s.files.Save(s.name, []byte(token)); err != nil {
		return storageError(err, "save token")
	}
	return nil
}

// Load reads the token.
func (s *FileTokenStore) Load(_ context.Context) (string, error) {
	data, err := s.files.Read(s.name)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return "", nil
		}
		return "", storageError(err, "load token")
	}
	return strings.TrimSpace(string(data)), nil
}

// Delete removes the token file.
func (s *FileTokenStore) Delete(_ context.Context) error {
	if err := s.files.Delete(s.name); err != nil {
		return storageError(err, "delete token")
	}
	return nil
}

// RedisTokenStore keeps the token under a single Redis key.
type RedisTokenStore struct {
	client *redis.Client
	key    string
	ttl    time.Duration
	logger *zap.Logger
}

// NewRedisTokenStore constructs a Redis-backed store. A zero ttl keeps the
// token until it is deleted.
func NewRedisTokenStore(client *redis.Client, key string, ttl time.Duration, logger *zap.Logger) *RedisTokenStore {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RedisTokenStore{client: client, key: key, ttl: ttl, logger: logger}
}

// Save stores the token.
func (s *RedisTokenStore) Save(ctx context.Context, token string) error {
	if s.client == nil {
		return appErrors.Clone(appErrors.ErrStorage, "redis token store is not configured")
	}
	if err := s.client.Set(ctx, s.key, token, s.ttl).Err(); err != nil {
		return storageError(err, "redis set token")
	}
	return nil
}

// Load fetches the token; a missing key is not an error.
func (s *RedisTokenStore) Load(ctx context.Context) (string, error) {
	if s.client == nil {
		return "", nil
	}
	token, err := s.client.Get(ctx, s.key).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return "", nil
		}
		return "", storageError(err, "redis get token")
	}
	return token, nil
}

// Delete removes the key.
func (s *RedisTokenStore) Delete(ctx context.Context) error {
	if s.client == nil {
		return nil
	}
	if err := s.client.Del(ctx, s.key).Err(); err != nil {
		s.logger.Warn("redis token delete failed", zap.String("key", s.key), zap.Error(err))
		return storageError(err, "redis delete token")
	}
	return nil
}

// MemoryTokenStore keeps the token for the life of the process.
type MemoryTokenStore struct {
	mu    sync.RWMutex
	token string
}

// NewMemoryTokenStore optionally seeds a token.
func NewMemoryTokenStore(token string) *MemoryTokenStore {
	return &MemoryTokenStore{token: token}
}

func (s *MemoryTokenStore) Save(_ context.Context, token string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.token = token
	return nil
}

func (s *MemoryTokenStore) Load(_ context.Context) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.token, nil
}

func (s *MemoryTokenStore) Delete(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.token = ""
	return nil
}
