package persistence

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/jacksonlee411/community-portal/modules/profile/domain/ports"
	"github.com/redis/go-redis/v9"
)

// PolicyRedisRepository keeps one hash per profile: policy key -> "1" / "0".
type PolicyRedisRepository struct {
	client *redis.Client
	prefix string
}

var _ ports.PolicyRepository = (*PolicyRedisRepository)(nil)

func NewPolicyRedisRepository(redisURL string) (*PolicyRedisRepository, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("connect to redis: %w", err)
	}
	return NewPolicyRedisRepositoryWithClient(client), nil
}

func NewPolicyRedisRepositoryWithClient(client *redis.Client) *PolicyRedisRepository {
	return &PolicyRedisRepository{client: client, prefix: "profile:policy:"}
}

func (r *PolicyRedisRepository) key(profileID string) string {
	return r.prefix + profileID
}

func (r *PolicyRedisRepository) LoadPolicy(ctx context.Context, profileID string) (map[string]bool, error) {
	raw, err := r.client.HGetAll(ctx, r.key(profileID)).Result()
	if err != nil {
		return nil, fmt.Errorf("load policy: %w", err)
	}
	out := make(map[string]bool, len(raw))
	for k, v := range raw {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return nil, fmt.Errorf("load policy: key %q has value %q", k, v)
		}
		out[k] = b
	}
	return out, nil
}

// SavePolicy replaces the whole hash in one transaction so readers never see
// a mix of old and new flags.
func (r *PolicyRedisRepository) SavePolicy(ctx context.Context, profileID string, flags map[string]bool) error {
	key := r.key(profileID)
	values := make(map[string]any, len(flags))
	for k, v := range flags {
		values[k] = flagValue(v)
	}
	_, err := r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, key)
		if len(values) > 0 {
			pipe.HSet(ctx, key, values)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("save policy: %w", err)
	}
	return nil
}

// SavePolicyKey sets a single hash field, so concurrent writers of different
// keys do not overwrite each other.
func (r *PolicyRedisRepository) SavePolicyKey(ctx context.Context, profileID string, key string, enabled bool) error {
	if err := r.client.HSet(ctx, r.key(profileID), key, flagValue(enabled)).Err(); err != nil {
		return fmt.Errorf("save policy key: %w", err)
	}
	return nil
}

func flagValue(enabled bool) string {
	if enabled {
		return "1"
	}
	return "0"
}

func (r *PolicyRedisRepository) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}

func (r *PolicyRedisRepository) Close() error {
	return r.client.Close()
}
