package repository

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/noah-isme/pass-request-client/pkg/cache"
	"github.com/noah-isme/pass-request-client/pkg/config"
	"github.com/noah-isme/pass-request-client/pkg/storage"
)

// OpenTokenStore builds the store selected by TOKEN_STORE. The returned
// close function releases backend connections.
func OpenTokenStore(ctx context.Context, cfg *config.Config, logger *zap.Logger) (TokenStore, func() error, error) {
	noop := func() error { return nil }

	switch cfg.Token.Store {
	case config.TokenStoreMemory:
		return NewMemoryTokenStore(""), noop, nil
	case config.TokenStoreRedis:
		client, err := cache.NewRedis(ctx, cfg.Redis)
		if err != nil {
			return nil, nil, storageError(err, "connect token redis")
		}
		return NewRedisTokenStore(client, cfg.Token.RedisKey, cfg.Token.RedisTTL, logger), client.Close, nil
	case config.TokenStoreFile, "":
		files, err := storage.NewLocalStorage(cfg.Token.Dir, storage.Private())
		if err != nil {
			return nil, nil, storageError(err, "open token directory")
		}
		return NewFileTokenStore(files, cfg.Token.File), noop, nil
	}
	return nil, nil, fmt.Errorf("unknown token store %q", cfg.Token.Store)
}
