package redis

import (
	"context"
	"errors"
	"fmt"

	goredis "github.com/redis/go-redis/v9"

	"veggiemarket/backend/internal/store"
)

// Store keeps snapshots as plain string values under a key prefix. It has no
// sale archive; the snapshot already carries the ledger.
type Store struct {
	client *goredis.Client
	prefix string
}

// New wraps an existing client. The caller owns the client and closes it.
func New(client *goredis.Client) *Store {
	return &Store{client: client, prefix: "pos:snapshot:"}
}

func (s *Store) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

func (s *Store) Load(ctx context.Context, key string) ([]byte, error) {
	payload, err := s.client.Get(ctx, s.prefix+key).Bytes()
	if errors.Is(err, goredis.Nil) {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load snapshot %s: %w", key, err)
	}
	return payload, nil
}

func (s *Store) Save(ctx context.Context, key string, payload []byte) error {
	if err := s.client.Set(ctx, s.prefix+key, payload, 0).Err(); err != nil {
		return fmt.Errorf("save snapshot %s: %w", key, err)
	}
	return nil
}
