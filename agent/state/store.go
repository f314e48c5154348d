package state

import (
	"context"
	"errors"
	"net/http"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
)

var (
	ErrStateNotFound  = errors.New("conversation state not found")
	ErrNilState       = errors.New("conversation state is nil")
	ErrInvalidSession = errors.New("context id is empty")
)

const (
	defaultStoreKeyPrefix = "restaurant:conversation:"
	defaultStoreTTL       = 24 * time.Hour
	maxResponseSizeBytes  = 2 << 20
)

// Store is the persistence contract used by the orchestrator. Load returns
// ErrStateNotFound for unknown or expired context ids.
type Store interface {
	Create(ctx context.Context, userID string) (*ConversationState, error)
	Load(ctx context.Context, contextID string) (*ConversationState, error)
	Save(ctx context.Context, st *ConversationState) error
	Delete(ctx context.Context, contextID string) error
	ListByUser(ctx context.Context, userID string) ([]*ConversationState, error)
}

// Sweeper is implemented by stores that cannot expire records on their own.
type Sweeper interface {
	Sweep(ctx context.Context, cutoff time.Time) (int, error)
}

type storeOptions struct {
	keyPrefix  string
	ttl        time.Duration
	httpClient *http.Client
	now        func() time.Time
}

func defaultStoreOptions() storeOptions {
	return storeOptions{
		keyPrefix: defaultStoreKeyPrefix,
		ttl:       defaultStoreTTL,
		now:       time.Now,
	}
}

// StoreOption customizes any of the Store backends.
type StoreOption func(*storeOptions)

func WithKeyPrefix(prefix string) StoreOption {
	return func(o *storeOptions) {
		trimmed := strings.TrimSpace(prefix)
		if trimmed != "" {
			o.keyPrefix = trimmed
		}
	}
}

// WithTTL sets the retention since last update. Zero disables expiry.
func WithTTL(ttl time.Duration) StoreOption {
	return func(o *storeOptions) {
		o.ttl = ttl
	}
}

func WithHTTPClient(client *http.Client) StoreOption {
	return func(o *storeOptions) {
		if client != nil {
			o.httpClient = client
		}
	}
}

func WithClock(now func() time.Time) StoreOption {
	return func(o *storeOptions) {
		if now != nil {
			o.now = now
		}
	}
}

func applyStoreOptions(opts []StoreOption) (storeOptions, error) {
	o := defaultStoreOptions()
	for _, opt := range opts {
		if opt != nil {
			opt(&o)
		}
	}
	if o.ttl < 0 {
		return o, errors.New("ttl must be >= 0")
	}
	return o, nil
}

func (o storeOptions) newState(userID string) *ConversationState {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		userID = "user-" + uuid.NewString()
	}
	return NewConversationState(NewContextID(), userID, o.now())
}

// prepareSave normalizes timestamps before a write.
func (o storeOptions) prepareSave(st *ConversationState) error {
	if st == nil {
		return ErrNilState
	}
	if strings.TrimSpace(st.ContextID) == "" {
		return ErrInvalidSession
	}
	if st.LastUpdated.IsZero() {
		st.LastUpdated = o.now().UTC()
	} else {
		st.LastUpdated = st.LastUpdated.UTC()
	}
	if st.CreatedAt.IsZero() {
		st.CreatedAt = st.LastUpdated
	}
	return nil
}

func (o storeOptions) expired(st *ConversationState) bool {
	if o.ttl <= 0 || st == nil {
		return false
	}
	return o.now().Sub(st.LastUpdated) > o.ttl
}

func ttlSeconds(ttl time.Duration) int64 {
	seconds := ttl / time.Second
	if seconds <= 0 {
		return 1
	}
	if ttl%time.Second != 0 {
		seconds++
	}
	return int64(seconds)
}

func sortByCreated(states []*ConversationState) {
	sort.SliceStable(states, func(i, j int) bool {
		return states[i].CreatedAt.Before(states[j].CreatedAt)
	})
}
