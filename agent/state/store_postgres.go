package state

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/driver/pgdriver"
)

type PostgresConfig struct {
	DSN string `envconfig:"DSN" split_words:"true"`
}

type conversationRow struct {
	bun.BaseModel `bun:"table:conversations,alias:c"`

	ContextID   string             `bun:"context_id,pk"`
	UserID      string             `bun:"user_id,notnull"`
	Stage       string             `bun:"stage,notnull"`
	State       *ConversationState `bun:"state,type:jsonb,notnull"`
	CreatedAt   time.Time          `bun:"created_at,notnull"`
	LastUpdated time.Time          `bun:"last_updated,notnull"`
}

// PostgresStore keeps one jsonb row per conversation. Expiry is handled by
// Sweep; Load also hides rows older than the TTL.
type PostgresStore struct {
	db   *bun.DB
	opts storeOptions
}

// OpenPostgres connects through pgdriver and returns a bun handle.
func OpenPostgres(ctx context.Context, cfg PostgresConfig) (*bun.DB, error) {
	dsn := strings.TrimSpace(cfg.DSN)
	if dsn == "" {
		return nil, errors.New("postgres dsn is required")
	}
	sqldb := sql.OpenDB(pgdriver.NewConnector(pgdriver.WithDSN(dsn)))
	db := bun.NewDB(sqldb, pgdialect.New())
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	return db, nil
}

func NewPostgresStore(db *bun.DB, opts ...StoreOption) (*PostgresStore, error) {
	if db == nil {
		return nil, errors.New("bun db is required")
	}
	o, err := applyStoreOptions(opts)
	if err != nil {
		return nil, err
	}
	return &PostgresStore{db: db, opts: o}, nil
}

// Migrate creates the conversations table and its user index if missing.
func (p *PostgresStore) Migrate(ctx context.Context) error {
	if _, err := p.db.NewCreateTable().
		Model((*conversationRow)(nil)).
		IfNotExists().
		Exec(ctx); err != nil {
		return fmt.Errorf("create conversations table: %w", err)
	}
	if _, err := p.db.NewCreateIndex().
		Model((*conversationRow)(nil)).
		Index("conversations_user_id_idx").
		Column("user_id").
		IfNotExists().
		Exec(ctx); err != nil {
		return fmt.Errorf("create conversations index: %w", err)
	}
	return nil
}

func (p *PostgresStore) Create(ctx context.Context, userID string) (*ConversationState, error) {
	st := p.opts.newState(userID)
	if err := p.Save(ctx, st); err != nil {
		return nil, err
	}
	return st, nil
}

func (p *PostgresStore) Load(ctx context.Context, contextID string) (*ConversationState, error) {
	if strings.TrimSpace(contextID) == "" {
		return nil, ErrInvalidSession
	}
	row := new(conversationRow)
	err := p.db.NewSelect().Model(row).Where("context_id = ?", contextID).Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrStateNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("select conversation: %w", err)
	}
	if row.State == nil || p.opts.expired(row.State) {
		return nil, ErrStateNotFound
	}
	if err := row.State.Validate(); err != nil {
		return nil, fmt.Errorf("invalid conversation state loaded from store: %w", err)
	}
	return row.State, nil
}

func (p *PostgresStore) Save(ctx context.Context, st *ConversationState) error {
	if err := p.opts.prepareSave(st); err != nil {
		return err
	}
	row := &conversationRow{
		ContextID:   st.ContextID,
		UserID:      st.UserID,
		Stage:       string(st.Stage),
		State:       st,
		CreatedAt:   st.CreatedAt,
		LastUpdated: st.LastUpdated,
	}
	_, err := p.db.NewInsert().
		Model(row).
		On("CONFLICT (context_id) DO UPDATE").
		Set("user_id = EXCLUDED.user_id").
		Set("stage = EXCLUDED.stage").
		Set("state = EXCLUDED.state").
		Set("last_updated = EXCLUDED.last_updated").
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("upsert conversation: %w", err)
	}
	return nil
}

func (p *PostgresStore) Delete(ctx context.Context, contextID string) error {
	if strings.TrimSpace(contextID) == "" {
		return ErrInvalidSession
	}
	if _, err := p.db.NewDelete().
		Model((*conversationRow)(nil)).
		Where("context_id = ?", contextID).
		Exec(ctx); err != nil {
		return fmt.Errorf("delete conversation: %w", err)
	}
	return nil
}

func (p *PostgresStore) ListByUser(ctx context.Context, userID string) ([]*ConversationState, error) {
	var rows []conversationRow
	q := p.db.NewSelect().Model(&rows).Where("user_id = ?", userID).Order("created_at ASC")
	if p.opts.ttl > 0 {
		q = q.Where("last_updated >= ?", p.opts.now().Add(-p.opts.ttl).UTC())
	}
	if err := q.Scan(ctx); err != nil {
		return nil, fmt.Errorf("list conversations: %w", err)
	}
	out := make([]*ConversationState, 0, len(rows))
	for _, row := range rows {
		if row.State != nil {
			out = append(out, row.State)
		}
	}
	return out, nil
}

func (p *PostgresStore) Sweep(ctx context.Context, cutoff time.Time) (int, error) {
	res, err := p.db.NewDelete().
		Model((*conversationRow)(nil)).
		Where("last_updated < ?", cutoff.UTC()).
		Exec(ctx)
	if err != nil {
		return 0, fmt.Errorf("sweep conversations: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, err
	}
	return int(n), nil
}
