package state

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/redis/go-redis/v9"

	logx "github.com/tanpawarit/Chative-Restaurant-Recommender/pkg/logger"
)

// RedisStore persists conversations through any go-redis client. Keys expire
// after the configured TTL, refreshed on every save.
type RedisStore struct {
	rdb  redis.Cmdable
	opts storeOptions
}

func NewRedisStore(rdb redis.Cmdable, opts ...StoreOption) (*RedisStore, error) {
	if rdb == nil {
		return nil, errors.New("redis client is required")
	}
	o, err := applyStoreOptions(opts)
	if err != nil {
		return nil, err
	}
	return &RedisStore{rdb: rdb, opts: o}, nil
}

func (r *RedisStore) conversationKey(contextID string) string {
	return fmt.Sprintf("%sctx:%s", r.opts.keyPrefix, contextID)
}

func (r *RedisStore) userKey(userID string) string {
	return fmt.Sprintf("%suser:%s", r.opts.keyPrefix, userID)
}

func (r *RedisStore) Create(ctx context.Context, userID string) (*ConversationState, error) {
	st := r.opts.newState(userID)
	if err := r.Save(ctx, st); err != nil {
		return nil, err
	}
	return st, nil
}

func (r *RedisStore) Load(ctx context.Context, contextID string) (*ConversationState, error) {
	if strings.TrimSpace(contextID) == "" {
		return nil, ErrInvalidSession
	}
	key := r.conversationKey(contextID)
	raw, err := r.rdb.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrStateNotFound
	}
	if err != nil {
		logx.Error().Err(err).Str("key", key).Msg("failed to load conversation from redis")
		return nil, fmt.Errorf("redis get: %w", err)
	}
	return decodeState(raw)
}

func (r *RedisStore) Save(ctx context.Context, st *ConversationState) error {
	if err := r.opts.prepareSave(st); err != nil {
		return err
	}
	payload, err := json.Marshal(st)
	if err != nil {
		return fmt.Errorf("marshal conversation state: %w", err)
	}

	key := r.conversationKey(st.ContextID)
	userKey := r.userKey(st.UserID)
	_, err = r.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, key, payload, r.opts.ttl)
		pipe.SAdd(ctx, userKey, st.ContextID)
		if r.opts.ttl > 0 {
			pipe.Expire(ctx, userKey, r.opts.ttl)
		}
		return nil
	})
	if err != nil {
		logx.Error().Err(err).Str("key", key).Msg("failed to save conversation to redis")
		return fmt.Errorf("redis save: %w", err)
	}
	return nil
}

func (r *RedisStore) Delete(ctx context.Context, contextID string) error {
	st, err := r.Load(ctx, contextID)
	if errors.Is(err, ErrStateNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	_, err = r.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, r.conversationKey(contextID))
		pipe.SRem(ctx, r.userKey(st.UserID), contextID)
		return nil
	})
	if err != nil {
		return fmt.Errorf("redis delete: %w", err)
	}
	return nil
}

func (r *RedisStore) ListByUser(ctx context.Context, userID string) ([]*ConversationState, error) {
	userKey := r.userKey(userID)
	ids, err := r.rdb.SMembers(ctx, userKey).Result()
	if err != nil && !errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("redis smembers: %w", err)
	}
	if len(ids) == 0 {
		return nil, nil
	}

	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = r.conversationKey(id)
	}
	values, err := r.rdb.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, fmt.Errorf("redis mget: %w", err)
	}

	out := make([]*ConversationState, 0, len(values))
	var stale []any
	for i, v := range values {
		raw, ok := v.(string)
		if !ok {
			stale = append(stale, ids[i])
			continue
		}
		st, err := decodeState([]byte(raw))
		if err != nil {
			logx.Warn().Err(err).Str("context_id", ids[i]).Msg("skipping undecodable conversation")
			continue
		}
		out = append(out, st)
	}
	if len(stale) > 0 {
		if err := r.rdb.SRem(ctx, userKey, stale...).Err(); err != nil {
			logx.Warn().Err(err).Str("key", userKey).Msg("failed to prune user index")
		}
	}
	sortByCreated(out)
	return out, nil
}

func decodeState(raw []byte) (*ConversationState, error) {
	var st ConversationState
	if err := json.Unmarshal(raw, &st); err != nil {
		return nil, fmt.Errorf("unmarshal conversation state: %w", err)
	}
	if err := st.Validate(); err != nil {
		return nil, fmt.Errorf("invalid conversation state loaded from store: %w", err)
	}
	return &st, nil
}
