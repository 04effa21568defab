package auth

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/goliatone/go-repository-bun"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// Tokens persists refresh, reset-password, and verify-email tokens. Access
// tokens never reach this store.
type Tokens interface {
	repository.Repository[*Token]

	Save(ctx context.Context, record *Token) (*Token, error)
	SaveTx(ctx context.Context, tx bun.IDB, record *Token) (*Token, error)

	// FindLive returns the persisted record matching the signed string and
	// type, excluding blacklisted rows. Misses yield ErrTokenNotFound.
	FindLive(ctx context.Context, token string, typ TokenType) (*Token, error)
	FindLiveTx(ctx context.Context, tx bun.IDB, token string, typ TokenType) (*Token, error)

	// Blacklist marks a row invalid ahead of natural expiry.
	Blacklist(ctx context.Context, id uuid.UUID) error

	// Consume deletes the row for the signed string and type. It fails with
	// ErrTokenNotFound when no row matched, which makes logout and refresh
	// rotation fail loudly on reuse.
	Consume(ctx context.Context, token string, typ TokenType) error
	ConsumeTx(ctx context.Context, tx bun.IDB, token string, typ TokenType) error

	// DeleteAllForUser removes every token of the given types owned by the
	// user. With no types it removes all of the user's tokens.
	DeleteAllForUser(ctx context.Context, userID uuid.UUID, types ...TokenType) error
	DeleteAllForUserTx(ctx context.Context, tx bun.IDB, userID uuid.UUID, types ...TokenType) error

	// DeleteExpired prunes rows whose expiry is before the cutoff.
	DeleteExpired(ctx context.Context, cutoff time.Time) (int64, error)
}

type tokens struct {
	repository.Repository[*Token]
	db *bun.DB
}

var (
	_ Tokens                        = (*tokens)(nil)
	_ repository.Repository[*Token] = (*tokens)(nil)
)

// NewTokensRepository builds the bun backed token store.
func NewTokensRepository(db *bun.DB) Tokens {
	repo := repository.NewRepository[*Token](db, repository.ModelHandlers[*Token]{
		NewRecord: func() *Token { return &Token{} },
		GetID: func(t *Token) uuid.UUID {
			if t == nil {
				return uuid.Nil
			}
			return t.ID
		},
		SetID: func(t *Token, id uuid.UUID) {
			if t != nil {
				t.ID = id
			}
		},
		GetIdentifier: func() string {
			return "token"
		},
	})

	return &tokens{
		Repository: repo,
		db:         db,
	}
}

func (r *tokens) Save(ctx context.Context, record *Token) (*Token, error) {
	return r.SaveTx(ctx, r.db, record)
}

func (r *tokens) SaveTx(ctx context.Context, tx bun.IDB, record *Token) (*Token, error) {
	prepareTokenDefaults(record)
	return r.Repository.CreateTx(ctx, tx, record)
}

func (r *tokens) FindLive(ctx context.Context, token string, typ TokenType) (*Token, error) {
	return r.FindLiveTx(ctx, r.db, token, typ)
}

func (r *tokens) FindLiveTx(ctx context.Context, tx bun.IDB, token string, typ TokenType) (*Token, error) {
	record := &Token{}
	err := tx.NewSelect().
		Model(record).
		Where("?TableAlias.token = ?", token).
		Where("?TableAlias.type = ?", typ).
		Where("?TableAlias.blacklisted = ?", false).
		Limit(1).
		Scan(ctx)

	if err != nil {
		if errors.Is(err, sql.ErrNoRows) || repository.IsRecordNotFound(err) {
			return nil, ErrTokenNotFound
		}
		return nil, err
	}

	return record, nil
}

func (r *tokens) Blacklist(ctx context.Context, id uuid.UUID) error {
	res, err := r.db.NewUpdate().
		Model((*Token)(nil)).
		Set("blacklisted = ?", true).
		Where("id = ?", id).
		Exec(ctx)
	if err != nil {
		return err
	}

	if affected, err := res.RowsAffected(); err == nil && affected == 0 {
		return ErrTokenNotFound
	}

	return nil
}

func (r *tokens) Consume(ctx context.Context, token string, typ TokenType) error {
	return r.ConsumeTx(ctx, r.db, token, typ)
}

func (r *tokens) ConsumeTx(ctx context.Context, tx bun.IDB, token string, typ TokenType) error {
	res, err := tx.NewDelete().
		Model((*Token)(nil)).
		Where("token = ?", token).
		Where("type = ?", typ).
		Exec(ctx)
	if err != nil {
		return err
	}

	if affected, err := res.RowsAffected(); err == nil && affected == 0 {
		return ErrTokenNotFound
	}

	return nil
}

func (r *tokens) DeleteAllForUser(ctx context.Context, userID uuid.UUID, types ...TokenType) error {
	return r.DeleteAllForUserTx(ctx, r.db, userID, types...)
}

func (r *tokens) DeleteAllForUserTx(ctx context.Context, tx bun.IDB, userID uuid.UUID, types ...TokenType) error {
	q := tx.NewDelete().
		Model((*Token)(nil)).
		Where("user_id = ?", userID)

	if len(types) > 0 {
		q = q.Where("type IN (?)", bun.In(types))
	}

	_, err := q.Exec(ctx)
	return err
}

func (r *tokens) DeleteExpired(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := r.db.NewDelete().
		Model((*Token)(nil)).
		Where("expires_at < ?", cutoff).
		Exec(ctx)
	if err != nil {
		return 0, err
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return 0, nil
	}
	return affected, nil
}

func prepareTokenDefaults(record *Token) {
	if record == nil {
		return
	}

	if record.ID == uuid.Nil {
		record.ID = uuid.New()
	}
}
