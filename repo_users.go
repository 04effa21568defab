package auth

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/goliatone/go-repository-bun"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// Page is a paginated result set.
type Page[T any] struct {
	Results      []T `json:"results"`
	Page         int `json:"page"`
	Limit        int `json:"limit"`
	TotalPages   int `json:"totalPages"`
	TotalResults int `json:"totalResults"`
}

// ListUsersParams filters and paginates the user listing. SortBy accepts
// "field:asc" or "field:desc" on a whitelisted column.
type ListUsersParams struct {
	Name   string
	Role   UserRole
	SortBy string
	Page   int
	Limit  int
}

const (
	defaultPageSize = 10
	maxPageSize     = 100
)

// Columns the listing may sort on. Anything else falls back to created_at.
var sortableUserColumns = map[string]string{
	"name":      "name",
	"email":     "email",
	"role":      "user_role",
	"createdAt": "created_at",
}

// Users is the user store.
type Users interface {
	repository.Repository[*User]

	Register(ctx context.Context, user *User) (*User, error)
	RegisterTx(ctx context.Context, tx bun.IDB, user *User) (*User, error)

	GetByEmail(ctx context.Context, email string) (*User, error)
	GetByEmailTx(ctx context.Context, tx bun.IDB, email string) (*User, error)

	// EmailTaken reports whether another user (excluding excludeID) owns the
	// email already.
	EmailTaken(ctx context.Context, email string, excludeID uuid.UUID) (bool, error)

	UpdateUser(ctx context.Context, record *User) (*User, error)
	UpdateUserTx(ctx context.Context, tx bun.IDB, record *User) (*User, error)

	DeleteUser(ctx context.Context, id uuid.UUID) error
	DeleteUserTx(ctx context.Context, tx bun.IDB, id uuid.UUID) error

	// SetPassword stores a new password hash for the user.
	SetPassword(ctx context.Context, id uuid.UUID, passwordHash string) error
	SetPasswordTx(ctx context.Context, tx bun.IDB, id uuid.UUID, passwordHash string) error

	// MarkEmailVerified flips the verified flag.
	MarkEmailVerified(ctx context.Context, id uuid.UUID) error
	MarkEmailVerifiedTx(ctx context.Context, tx bun.IDB, id uuid.UUID) error

	List(ctx context.Context, params ListUsersParams) (*Page[*User], error)
}

type users struct {
	repository.Repository[*User]
	db *bun.DB
}

var (
	_ Users                        = (*users)(nil)
	_ repository.Repository[*User] = (*users)(nil)
)

// NewUsersRepository builds the bun backed user store.
func NewUsersRepository(db *bun.DB) Users {
	repo := repository.NewRepository[*User](db, repository.ModelHandlers[*User]{
		NewRecord: func() *User { return &User{} },
		GetID: func(u *User) uuid.UUID {
			if u == nil {
				return uuid.Nil
			}
			return u.ID
		},
		SetID: func(u *User, id uuid.UUID) {
			if u != nil {
				u.ID = id
			}
		},
		GetIdentifier: func() string {
			return "email"
		},
	})

	return &users{
		Repository: repo,
		db:         db,
	}
}

func (a *users) Register(ctx context.Context, user *User) (*User, error) {
	return a.RegisterTx(ctx, a.db, user)
}

func (a *users) RegisterTx(ctx context.Context, tx bun.IDB, user *User) (*User, error) {
	prepareUserDefaults(user)

	taken, err := a.emailTakenTx(ctx, tx, user.Email, user.ID)
	if err != nil {
		return nil, err
	}
	if taken {
		return nil, ErrDuplicateEmail
	}

	return a.Repository.CreateTx(ctx, tx, user)
}

func (a *users) GetByEmail(ctx context.Context, email string) (*User, error) {
	return a.GetByEmailTx(ctx, a.db, email)
}

func (a *users) GetByEmailTx(ctx context.Context, tx bun.IDB, email string) (*User, error) {
	record := &User{}
	err := tx.NewSelect().
		Model(record).
		Where("?TableAlias.email = ?", NormalizeEmail(email)).
		Limit(1).
		Scan(ctx)

	if err != nil {
		if errors.Is(err, sql.ErrNoRows) || repository.IsRecordNotFound(err) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}

	return record, nil
}

func (a *users) EmailTaken(ctx context.Context, email string, excludeID uuid.UUID) (bool, error) {
	return a.emailTakenTx(ctx, a.db, email, excludeID)
}

func (a *users) emailTakenTx(ctx context.Context, tx bun.IDB, email string, excludeID uuid.UUID) (bool, error) {
	q := tx.NewSelect().
		Model((*User)(nil)).
		Where("?TableAlias.email = ?", NormalizeEmail(email))

	if excludeID != uuid.Nil {
		q = q.Where("?TableAlias.id != ?", excludeID)
	}

	count, err := q.Count(ctx)
	if err != nil {
		return false, err
	}

	return count > 0, nil
}

func (a *users) UpdateUser(ctx context.Context, record *User) (*User, error) {
	return a.UpdateUserTx(ctx, a.db, record)
}

func (a *users) UpdateUserTx(ctx context.Context, tx bun.IDB, record *User) (*User, error) {
	if record == nil || record.ID == uuid.Nil {
		return nil, ErrUserNotFound
	}

	record.Email = NormalizeEmail(record.Email)

	taken, err := a.emailTakenTx(ctx, tx, record.Email, record.ID)
	if err != nil {
		return nil, err
	}
	if taken {
		return nil, ErrDuplicateEmail
	}

	updated, err := a.Repository.UpdateTx(ctx, tx, record, repository.UpdateByID(record.ID.String()))
	if err != nil {
		if repository.IsRecordNotFound(err) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}

	return updated, nil
}

func (a *users) DeleteUser(ctx context.Context, id uuid.UUID) error {
	return a.DeleteUserTx(ctx, a.db, id)
}

func (a *users) DeleteUserTx(ctx context.Context, tx bun.IDB, id uuid.UUID) error {
	res, err := tx.NewDelete().
		Model((*User)(nil)).
		Where("id = ?", id).
		Exec(ctx)
	if err != nil {
		return err
	}

	if affected, err := res.RowsAffected(); err == nil && affected == 0 {
		return ErrUserNotFound
	}

	return nil
}

func (a *users) SetPassword(ctx context.Context, id uuid.UUID, passwordHash string) error {
	return a.SetPasswordTx(ctx, a.db, id, passwordHash)
}

func (a *users) SetPasswordTx(ctx context.Context, tx bun.IDB, id uuid.UUID, passwordHash string) error {
	res, err := tx.NewUpdate().
		Model((*User)(nil)).
		Set("password_hash = ?", passwordHash).
		Where("id = ?", id).
		Where("deleted_at IS NULL").
		Exec(ctx)
	if err != nil {
		return err
	}

	if affected, err := res.RowsAffected(); err == nil && affected == 0 {
		return ErrUserNotFound
	}

	return nil
}

func (a *users) MarkEmailVerified(ctx context.Context, id uuid.UUID) error {
	return a.MarkEmailVerifiedTx(ctx, a.db, id)
}

func (a *users) MarkEmailVerifiedTx(ctx context.Context, tx bun.IDB, id uuid.UUID) error {
	res, err := tx.NewUpdate().
		Model((*User)(nil)).
		Set("is_email_verified = ?", true).
		Where("id = ?", id).
		Where("deleted_at IS NULL").
		Exec(ctx)
	if err != nil {
		return err
	}

	if affected, err := res.RowsAffected(); err == nil && affected == 0 {
		return ErrUserNotFound
	}

	return nil
}

func (a *users) List(ctx context.Context, params ListUsersParams) (*Page[*User], error) {
	page := params.Page
	if page < 1 {
		page = 1
	}

	limit := params.Limit
	if limit < 1 {
		limit = defaultPageSize
	}
	if limit > maxPageSize {
		limit = maxPageSize
	}

	var records []*User
	q := a.db.NewSelect().Model(&records)

	if params.Name != "" {
		q = q.Where("?TableAlias.name LIKE ?", "%"+params.Name+"%")
	}
	if params.Role != "" {
		q = q.Where("?TableAlias.user_role = ?", params.Role)
	}

	total, err := q.Count(ctx)
	if err != nil {
		return nil, err
	}

	q = q.Order(resolveUserSort(params.SortBy)).
		Limit(limit).
		Offset((page - 1) * limit)

	if err := q.Scan(ctx); err != nil && !errors.Is(err, sql.ErrNoRows) {
		return nil, err
	}

	totalPages := total / limit
	if total%limit != 0 {
		totalPages++
	}

	return &Page[*User]{
		Results:      records,
		Page:         page,
		Limit:        limit,
		TotalPages:   totalPages,
		TotalResults: total,
	}, nil
}

func resolveUserSort(sortBy string) string {
	column := "created_at"
	direction := "ASC"

	if sortBy != "" {
		parts := strings.SplitN(sortBy, ":", 2)
		if mapped, ok := sortableUserColumns[parts[0]]; ok {
			column = mapped
		}
		if len(parts) == 2 && strings.EqualFold(parts[1], "desc") {
			direction = "DESC"
		}
	}

	return fmt.Sprintf("%s %s", column, direction)
}

func prepareUserDefaults(record *User) {
	if record == nil {
		return
	}

	record.Email = NormalizeEmail(record.Email)

	if record.Role == "" {
		record.Role = RoleUser
	}

	if record.ID == uuid.Nil {
		record.ID = uuid.New()
	}
}
