package cache

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	redis "github.com/redis/go-redis/v9"

	"dukaan/backend/internal/domain"
)

const draftKeyPrefix = "dukaan:draft:"

type RedisDraftStore struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRedisDraftStore(addr string, password string, db int, ttl time.Duration) *RedisDraftStore {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	return &RedisDraftStore{client: client, ttl: ttl}
}

func (c *RedisDraftStore) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}

func (c *RedisDraftStore) Close() error {
	return c.client.Close()
}

func (c *RedisDraftStore) Get(ctx context.Context, terminalID string) (*domain.Draft, bool, error) {
	val, err := c.client.Get(ctx, draftKeyPrefix+terminalID).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}

	var draft domain.Draft
	if err := json.Unmarshal(val, &draft); err != nil {
		return nil, false, err
	}
	return &draft, true, nil
}

// Save writes the draft and refreshes its expiry. A zero ttl keeps it forever.
func (c *RedisDraftStore) Save(ctx context.Context, draft domain.Draft) error {
	payload, err := json.Marshal(draft)
	if err != nil {
		return err
	}
	return c.client.Set(ctx, draftKeyPrefix+draft.TerminalID, payload, c.ttl).Err()
}

func (c *RedisDraftStore) Delete(ctx context.Context, terminalID string) error {
	return c.client.Del(ctx, draftKeyPrefix+terminalID).Err()
}
