// Package bunstore persists per-user metadata through Bun, one row per
// user/key pair. Row ids are derived deterministically from the natural key
// so writes are single-statement upserts (last write wins, as the token set
// contract documents).
package bunstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	memberauth "github.com/goliatone/go-memberauth"
	"github.com/goliatone/hashid/pkg/hashid"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// UserMetadataModel is the Bun model for metadata rows.
type UserMetadataModel struct {
	bun.BaseModel `bun:"table:user_metadata,alias:umeta"`

	ID        uuid.UUID `bun:"id,pk,type:uuid"`
	UserID    int64     `bun:"user_id,notnull"`
	Key       string    `bun:"meta_key,notnull"`
	Value     []byte    `bun:"meta_value"`
	CreatedAt time.Time `bun:"created_at,default:current_timestamp"`
	UpdatedAt time.Time `bun:"updated_at,default:current_timestamp"`
}

// Store implements memberauth.MetadataStore over a bun.DB.
type Store struct {
	db *bun.DB
}

var _ memberauth.MetadataStore = (*Store)(nil)

// New creates a new store.
func New(db *bun.DB) *Store {
	return &Store{db: db}
}

// Init creates the backing table if needed. Hosts with their own migration
// pipeline can skip it.
func (s *Store) Init(ctx context.Context) error {
	_, err := s.db.NewCreateTable().
		Model((*UserMetadataModel)(nil)).
		IfNotExists().
		Exec(ctx)
	return err
}

// Get implements memberauth.MetadataStore.
func (s *Store) Get(ctx context.Context, userID int64, key string) ([]byte, error) {
	var model UserMetadataModel
	err := s.db.NewSelect().
		Model(&model).
		Where("user_id = ? AND meta_key = ?", userID, key).
		Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, memberauth.ErrMetadataNotFound
		}
		return nil, err
	}
	return model.Value, nil
}

// Set implements memberauth.MetadataStore.
func (s *Store) Set(ctx context.Context, userID int64, key string, value []byte) error {
	id, err := metadataRowID(userID, key)
	if err != nil {
		return err
	}

	model := &UserMetadataModel{
		ID:        id,
		UserID:    userID,
		Key:       key,
		Value:     value,
		CreatedAt: time.Now(),
		UpdatedAt: time.Now(),
	}

	_, err = s.db.NewInsert().
		Model(model).
		On("CONFLICT (id) DO UPDATE").
		Set("meta_value = EXCLUDED.meta_value").
		Set("updated_at = EXCLUDED.updated_at").
		Exec(ctx)

	return err
}

// Delete implements memberauth.MetadataStore. Deleting an absent key is a
// no-op.
func (s *Store) Delete(ctx context.Context, userID int64, key string) error {
	_, err := s.db.NewDelete().
		Model((*UserMetadataModel)(nil)).
		Where("user_id = ? AND meta_key = ?", userID, key).
		Exec(ctx)
	return err
}

// metadataRowID derives a stable uuid from the natural key so the same
// user/key pair always lands on the same row.
func metadataRowID(userID int64, key string) (uuid.UUID, error) {
	return hashid.NewUUID(fmt.Sprintf("%d/%s", userID, key))
}
