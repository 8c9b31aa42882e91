package store

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/flowchat/engine/pkg/api"
)

// RedisStore persists flows in Redis. Each flow lives under its own
// key, with a set holding every stored ID for listing
type RedisStore struct {
	client *redis.Client
	prefix string
}

// Options configures a Redis-backed flow store
type Options struct {
	Addr     string
	Password string
	Prefix   string
	DB       int
}

const defaultPrefix = "flowchat"

// NewRedisStore connects to Redis and returns a flow store backed by it
func NewRedisStore(opts *Options) *RedisStore {
	prefix := opts.Prefix
	if prefix == "" {
		prefix = defaultPrefix
	}
	return &RedisStore{
		client: redis.NewClient(&redis.Options{
			Addr:     opts.Addr,
			Password: opts.Password,
			DB:       opts.DB,
		}),
		prefix: prefix,
	}
}

func (s *RedisStore) Save(ctx context.Context, flow *api.Flow) error {
	if flow.ID == "" {
		flow.ID = api.FlowID(uuid.NewString())
	}
	if flow.CreatedAt.IsZero() {
		flow.CreatedAt = time.Now()
	}

	data, err := json.Marshal(flow)
	if err != nil {
		return err
	}

	pipe := s.client.TxPipeline()
	pipe.Set(ctx, s.flowKey(flow.ID), data, 0)
	pipe.SAdd(ctx, s.indexKey(), string(flow.ID))
	_, err = pipe.Exec(ctx)
	return err
}

func (s *RedisStore) Get(
	ctx context.Context, id api.FlowID,
) (*api.Flow, error) {
	data, err := s.client.Get(ctx, s.flowKey(id)).Bytes()
	if err == redis.Nil {
		return nil, fmt.Errorf("%w: %s", ErrFlowNotFound, id)
	}
	if err != nil {
		return nil, err
	}

	var flow api.Flow
	if err := json.Unmarshal(data, &flow); err != nil {
		return nil, err
	}
	return &flow, nil
}

func (s *RedisStore) List(ctx context.Context) ([]*api.Flow, error) {
	ids, err := s.client.SMembers(ctx, s.indexKey()).Result()
	if err != nil {
		return nil, err
	}

	res := make([]*api.Flow, 0, len(ids))
	for _, id := range ids {
		flow, err := s.Get(ctx, api.FlowID(id))
		if err != nil {
			// index entries can outlive their keys; skip strays
			continue
		}
		res = append(res, flow)
	}
	return res, nil
}

func (s *RedisStore) Delete(ctx context.Context, id api.FlowID) error {
	removed, err := s.client.Del(ctx, s.flowKey(id)).Result()
	if err != nil {
		return err
	}
	if removed == 0 {
		return fmt.Errorf("%w: %s", ErrFlowNotFound, id)
	}
	return s.client.SRem(ctx, s.indexKey(), string(id)).Err()
}

func (s *RedisStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

func (s *RedisStore) Close() error {
	return s.client.Close()
}

func (s *RedisStore) flowKey(id api.FlowID) string {
	return fmt.Sprintf("%s:flow:%s", s.prefix, id)
}

func (s *RedisStore) indexKey() string {
	return s.prefix + ":flows"
}
