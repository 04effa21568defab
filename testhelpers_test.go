package auth_test

import (
	"context"
	"database/sql"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/restfulkit/go-auth"
	"github.com/stretchr/testify/require"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"github.com/uptrace/bun/driver/sqliteshim"
)

// testConfig is an immutable Config for tests.
type testConfig struct {
	signingKey string
	issuer     string
	audience   []string
	accessTTL  time.Duration
	refreshTTL time.Duration
	resetTTL   time.Duration
	verifyTTL  time.Duration
}

func (c testConfig) GetSigningKey() string                  { return c.signingKey }
func (c testConfig) GetIssuer() string                      { return c.issuer }
func (c testConfig) GetAudience() []string                  { return c.audience }
func (c testConfig) GetAccessTokenTTL() time.Duration       { return c.accessTTL }
func (c testConfig) GetRefreshTokenTTL() time.Duration      { return c.refreshTTL }
func (c testConfig) GetResetPasswordTokenTTL() time.Duration { return c.resetTTL }
func (c testConfig) GetVerifyEmailTokenTTL() time.Duration  { return c.verifyTTL }

func newTestConfig() testConfig {
	return testConfig{
		signingKey: "test-signing-key",
		issuer:     "test-issuer",
		audience:   []string{"test:audience"},
		accessTTL:  30 * time.Minute,
		refreshTTL: 24 * time.Hour,
		resetTTL:   10 * time.Minute,
		verifyTTL:  10 * time.Minute,
	}
}

// newTestDB opens a per-test in-memory SQLite database. The pool is pinned
// to a single connection so every query sees the same memory database.
func newTestDB(t *testing.T) *bun.DB {
	t.Helper()

	sqldb, err := sql.Open(sqliteshim.ShimName, "file:"+uuid.NewString()+"?mode=memory&cache=shared")
	require.NoError(t, err)
	sqldb.SetMaxOpenConns(1)

	db := bun.NewDB(sqldb, sqlitedialect.New())
	t.Cleanup(func() { db.Close() })

	ctx := context.Background()
	_, err = db.NewCreateTable().Model((*auth.User)(nil)).IfNotExists().Exec(ctx)
	require.NoError(t, err)
	_, err = db.NewCreateTable().Model((*auth.Token)(nil)).IfNotExists().Exec(ctx)
	require.NoError(t, err)

	return db
}

// testStack wires the repositories and services against a fresh database.
type testStack struct {
	db     *bun.DB
	cfg    testConfig
	repo   auth.RepositoryManager
	tokens auth.TokenService
	auther *auth.Auther
	mailer *recordingMailer
}

func newTestStack(t *testing.T, cfg testConfig) *testStack {
	t.Helper()

	db := newTestDB(t)
	repo := auth.NewRepositoryManager(db)
	tokens := auth.NewTokenService(cfg, repo)
	mailer := &recordingMailer{}
	auther := auth.NewAuthenticator(repo, tokens).WithMailer(mailer)

	return &testStack{
		db:     db,
		cfg:    cfg,
		repo:   repo,
		tokens: tokens,
		auther: auther,
		mailer: mailer,
	}
}

// recordingMailer captures outbound tokens instead of sending anything.
type recordingMailer struct {
	mu           sync.Mutex
	resetTokens  []string
	verifyTokens []string
}

func (m *recordingMailer) SendResetPasswordEmail(_ context.Context, _, token string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.resetTokens = append(m.resetTokens, token)
	return nil
}

func (m *recordingMailer) SendVerificationEmail(_ context.Context, _, token string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.verifyTokens = append(m.verifyTokens, token)
	return nil
}

func (m *recordingMailer) lastResetToken() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.resetTokens) == 0 {
		return ""
	}
	return m.resetTokens[len(m.resetTokens)-1]
}

func (m *recordingMailer) lastVerifyToken() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.verifyTokens) == 0 {
		return ""
	}
	return m.verifyTokens[len(m.verifyTokens)-1]
}

var (
	sharedHashOnce sync.Once
	sharedHash     string
)

// sharedPasswordHash returns a bcrypt hash of "password1234", computed once
// because hashing at the production cost is slow.
func sharedPasswordHash(t *testing.T) string {
	t.Helper()

	sharedHashOnce.Do(func() {
		h, err := auth.HashPassword("password1234")
		if err != nil {
			panic(err)
		}
		sharedHash = h
	})

	return sharedHash
}

// newRandomID returns an id that does not exist in the store.
func newRandomID(t *testing.T) uuid.UUID {
	t.Helper()
	return uuid.New()
}

// seedUser inserts a user directly through the store, bypassing the hashing
// path for speed.
func seedUser(t *testing.T, repo auth.RepositoryManager, name, email string, role auth.UserRole) *auth.User {
	t.Helper()

	user, err := repo.Users().Register(context.Background(), &auth.User{
		Name:         name,
		Email:        email,
		PasswordHash: sharedPasswordHash(t),
		Role:         role,
	})
	require.NoError(t, err)
	require.NotEqual(t, uuid.Nil, user.ID)

	return user
}
