package state

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

type UpstashRedisConfig struct {
	URL     string        `envconfig:"URL" split_words:"true"`
	Token   string        `envconfig:"TOKEN" split_words:"true"`
	Timeout time.Duration `envconfig:"TIMEOUT" split_words:"true" default:"10s"`
}

// UpstashRedisStore persists conversations in Upstash Redis through its REST
// API. Each conversation is a JSON string key with a TTL; a per-user set
// indexes the context ids for ListByUser.
type UpstashRedisStore struct {
	baseURL string
	token   string
	opts    storeOptions
}

type redisRESTResponse struct {
	Result json.RawMessage `json:"result"`
	Error  string          `json:"error"`
}

func NewUpstashRedisStore(cfg UpstashRedisConfig, opts ...StoreOption) (*UpstashRedisStore, error) {
	baseURL := strings.TrimRight(strings.TrimSpace(cfg.URL), "/")
	if baseURL == "" {
		return nil, errors.New("upstash redis url is required")
	}
	if _, err := url.ParseRequestURI(baseURL); err != nil {
		return nil, fmt.Errorf("invalid redis rest url: %w", err)
	}
	token := strings.TrimSpace(cfg.Token)
	if token == "" {
		return nil, errors.New("upstash redis token is required")
	}

	o, err := applyStoreOptions(opts)
	if err != nil {
		return nil, err
	}
	if o.httpClient == nil {
		timeout := cfg.Timeout
		if timeout <= 0 {
			timeout = 10 * time.Second
		}
		o.httpClient = &http.Client{Timeout: timeout}
	}

	return &UpstashRedisStore{baseURL: baseURL, token: token, opts: o}, nil
}

func (s *UpstashRedisStore) Create(ctx context.Context, userID string) (*ConversationState, error) {
	st := s.opts.newState(userID)
	if err := s.Save(ctx, st); err != nil {
		return nil, err
	}
	return st, nil
}

func (s *UpstashRedisStore) Load(ctx context.Context, contextID string) (*ConversationState, error) {
	if strings.TrimSpace(contextID) == "" {
		return nil, ErrInvalidSession
	}
	resp, err := s.exec(ctx, []any{"GET", s.conversationKey(contextID)})
	if err != nil {
		return nil, err
	}
	return decodeUpstashState(resp.Result)
}

func (s *UpstashRedisStore) Save(ctx context.Context, st *ConversationState) error {
	if err := s.opts.prepareSave(st); err != nil {
		return err
	}
	payload, err := json.Marshal(st)
	if err != nil {
		return fmt.Errorf("marshal conversation state: %w", err)
	}

	set := []any{"SET", s.conversationKey(st.ContextID), string(payload)}
	userKey := s.userKey(st.UserID)
	commands := [][]any{set, {"SADD", userKey, st.ContextID}}
	if s.opts.ttl > 0 {
		secs := ttlSeconds(s.opts.ttl)
		commands[0] = append(set, "EX", secs)
		commands = append(commands, []any{"EXPIRE", userKey, secs})
	}
	_, err = s.pipeline(ctx, commands)
	return err
}

func (s *UpstashRedisStore) Delete(ctx context.Context, contextID string) error {
	st, err := s.Load(ctx, contextID)
	if errors.Is(err, ErrStateNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	_, err = s.pipeline(ctx, [][]any{
		{"DEL", s.conversationKey(contextID)},
		{"SREM", s.userKey(st.UserID), contextID},
	})
	return err
}

// ListByUser reads the user's index set and drops ids whose keys expired.
func (s *UpstashRedisStore) ListByUser(ctx context.Context, userID string) ([]*ConversationState, error) {
	userKey := s.userKey(userID)
	resp, err := s.exec(ctx, []any{"SMEMBERS", userKey})
	if err != nil {
		return nil, err
	}
	var ids []string
	if err := json.Unmarshal(resp.Result, &ids); err != nil {
		return nil, fmt.Errorf("decode user index: %w", err)
	}

	out := make([]*ConversationState, 0, len(ids))
	var stale []any
	for _, id := range ids {
		st, err := s.Load(ctx, id)
		if errors.Is(err, ErrStateNotFound) {
			stale = append(stale, id)
			continue
		}
		if err != nil {
			return nil, err
		}
		out = append(out, st)
	}
	if len(stale) > 0 {
		if _, err := s.exec(ctx, append([]any{"SREM", userKey}, stale...)); err != nil {
			return nil, err
		}
	}
	sortByCreated(out)
	return out, nil
}

func (s *UpstashRedisStore) conversationKey(contextID string) string {
	return s.opts.keyPrefix + "ctx:" + contextID
}

func (s *UpstashRedisStore) userKey(userID string) string {
	return s.opts.keyPrefix + "user:" + userID
}

func decodeUpstashState(raw json.RawMessage) (*ConversationState, error) {
	result := bytes.TrimSpace(raw)
	if len(result) == 0 || bytes.Equal(result, []byte("null")) {
		return nil, ErrStateNotFound
	}
	var encoded string
	if err := json.Unmarshal(result, &encoded); err != nil {
		return nil, fmt.Errorf("decode conversation payload: %w", err)
	}
	return decodeState([]byte(encoded))
}

func (s *UpstashRedisStore) exec(ctx context.Context, command []any) (*redisRESTResponse, error) {
	if len(command) == 0 {
		return nil, errors.New("empty redis command")
	}
	raw, err := s.post(ctx, s.baseURL, command)
	if err != nil {
		return nil, err
	}
	var parsed redisRESTResponse
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return nil, fmt.Errorf("decode redis response: %w", err)
	}
	if parsed.Error != "" {
		return nil, errors.New(parsed.Error)
	}
	return &parsed, nil
}

// pipeline sends several commands in one round trip via the /pipeline endpoint.
func (s *UpstashRedisStore) pipeline(ctx context.Context, commands [][]any) ([]redisRESTResponse, error) {
	raw, err := s.post(ctx, s.baseURL+"/pipeline", commands)
	if err != nil {
		return nil, err
	}
	var parsed []redisRESTResponse
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return nil, fmt.Errorf("decode redis pipeline response: %w", err)
	}
	for i, r := range parsed {
		if r.Error != "" {
			return nil, fmt.Errorf("redis pipeline command %d: %s", i, r.Error)
		}
	}
	return parsed, nil
}

func (s *UpstashRedisStore) post(ctx context.Context, endpoint string, payload any) ([]byte, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal redis command: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build redis request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+s.token)
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.opts.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("execute redis request: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSizeBytes))
	if err != nil {
		return nil, fmt.Errorf("read redis response: %w", err)
	}
	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		return nil, fmt.Errorf("redis http status=%d body=%s", resp.StatusCode, string(raw))
	}
	return raw, nil
}
