package state

import (
	"context"
	"strings"
	"time"

	"github.com/puzpuzpuz/xsync/v3"
)

// MemoryStore keeps conversations in a process-local concurrent map.
// Records are cloned on the way in and out so callers never share them.
type MemoryStore struct {
	opts  storeOptions
	items *xsync.MapOf[string, *ConversationState]
}

func NewMemoryStore(opts ...StoreOption) (*MemoryStore, error) {
	o, err := applyStoreOptions(opts)
	if err != nil {
		return nil, err
	}
	return &MemoryStore{
		opts:  o,
		items: xsync.NewMapOf[string, *ConversationState](),
	}, nil
}

func (s *MemoryStore) Create(ctx context.Context, userID string) (*ConversationState, error) {
	st := s.opts.newState(userID)
	if err := s.Save(ctx, st); err != nil {
		return nil, err
	}
	return st.Clone(), nil
}

func (s *MemoryStore) Load(ctx context.Context, contextID string) (*ConversationState, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if strings.TrimSpace(contextID) == "" {
		return nil, ErrInvalidSession
	}
	st, ok := s.items.Load(contextID)
	if !ok {
		return nil, ErrStateNotFound
	}
	if s.opts.expired(st) {
		s.items.Delete(contextID)
		return nil, ErrStateNotFound
	}
	return st.Clone(), nil
}

func (s *MemoryStore) Save(ctx context.Context, st *ConversationState) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := s.opts.prepareSave(st); err != nil {
		return err
	}
	s.items.Store(st.ContextID, st.Clone())
	return nil
}

func (s *MemoryStore) Delete(ctx context.Context, contextID string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if strings.TrimSpace(contextID) == "" {
		return ErrInvalidSession
	}
	s.items.Delete(contextID)
	return nil
}

// ListByUser returns the user's live conversations, oldest first.
func (s *MemoryStore) ListByUser(ctx context.Context, userID string) ([]*ConversationState, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	var out []*ConversationState
	s.items.Range(func(_ string, st *ConversationState) bool {
		if st.UserID == userID && !s.opts.expired(st) {
			out = append(out, st.Clone())
		}
		return true
	})
	sortByCreated(out)
	return out, nil
}

// Sweep removes conversations last updated before cutoff.
func (s *MemoryStore) Sweep(ctx context.Context, cutoff time.Time) (int, error) {
	var stale []string
	s.items.Range(func(id string, st *ConversationState) bool {
		if st.LastUpdated.Before(cutoff) {
			stale = append(stale, id)
		}
		return ctx.Err() == nil
	})
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	for _, id := range stale {
		s.items.Delete(id)
	}
	return len(stale), nil
}

func (s *MemoryStore) Len() int {
	return s.items.Size()
}
