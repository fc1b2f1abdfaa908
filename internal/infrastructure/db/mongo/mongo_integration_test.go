//go:build integration

package mongo

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	tcmongo "github.com/testcontainers/testcontainers-go/modules/mongodb"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/99minutos/identity-service/internal/core/domain"
)

func startMongo(t *testing.T) *mongo.Database {
	t.Helper()
	ctx := context.Background()

	// Transactions need a replica set.
	container, err := tcmongo.Run(ctx, "mongo:7", tcmongo.WithReplicaSet("rs0"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = container.Terminate(ctx) })

	uri, err := container.ConnectionString(ctx)
	require.NoError(t, err)

	client, db, err := Connect(ctx, Config{URI: uri, Database: "identity_test", Timeout: 20 * time.Second})
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Disconnect(ctx) })
	return db
}

func newIntegrationUser(t *testing.T, id, username, email string) domain.User {
	t.Helper()
	hash, err := domain.RestorePasswordHash("$2a$10$" + username)
	require.NoError(t, err)
	now := time.Now().UTC().Truncate(time.Millisecond)
	u, err := domain.NewUser(domain.UserParams{
		ID:           id,
		Username:     username,
		PasswordHash: hash,
		Email:        email,
		Enabled:      true,
		CreatedAt:    now,
		UpdatedAt:    now,
		Roles:        []domain.Role{domain.DefaultRole, {ID: 3, Name: domain.RoleAdmin}},
	})
	require.NoError(t, err)
	return u
}

func TestMongoStores_Integration(t *testing.T) {
	db := startMongo(t)
	ctx := context.Background()

	users := NewCredentialStore(db)
	revocations := NewRevocationStore(db)
	require.NoError(t, users.EnsureIndexes(ctx))
	require.NoError(t, users.EnsureIndexes(ctx), "index creation is idempotent")
	require.NoError(t, revocations.EnsureIndexes(ctx))

	alice := newIntegrationUser(t, "u-alice", "alice", "alice@example.com")
	res, err := users.Insert(ctx, alice)
	require.NoError(t, err)
	assert.IsType(t, domain.Inserted{}, res)

	got, err := users.FindByUsername(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, alice.ID(), got.ID())
	assert.Equal(t, []string{domain.RoleRead, domain.RoleAdmin}, got.RoleNames())

	res, err = users.Insert(ctx, newIntegrationUser(t, "u-2", "alice", ""))
	require.NoError(t, err)
	assert.IsType(t, domain.AlreadyExists{}, res)

	res, err = users.Insert(ctx, newIntegrationUser(t, "u-3", "alicia", "ALICE@example.com"))
	require.NoError(t, err)
	assert.IsType(t, domain.AlreadyExists{}, res)

	// Two accounts without email do not collide on the partial index.
	res, err = users.Insert(ctx, newIntegrationUser(t, "u-4", "bob", ""))
	require.NoError(t, err)
	assert.IsType(t, domain.Inserted{}, res)
	res, err = users.Insert(ctx, newIntegrationUser(t, "u-5", "carol", ""))
	require.NoError(t, err)
	assert.IsType(t, domain.Inserted{}, res)

	_, err = users.FindByUsername(ctx, "ghost")
	assert.ErrorIs(t, err, domain.ErrUserNotFound)

	next, err := domain.RestorePasswordHash("$2a$10$next")
	require.NoError(t, err)
	require.NoError(t, users.UpdatePassword(ctx, alice.ID(), next, time.Now()))
	got, err = users.FindByUsername(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, "$2a$10$next", got.PasswordHash().Encoded())
	assert.ErrorIs(t, users.UpdatePassword(ctx, "missing", next, time.Now()), domain.ErrUserNotFound)

	now := time.Now().UTC()
	rec := domain.RevokedToken{ID: "r1", JTI: "j1", RevokedAt: now, Reason: domain.ReasonLogout, ExpiresAt: now.Add(time.Minute)}
	require.NoError(t, revocations.Revoke(ctx, rec))
	rec.ID = "r2"
	require.NoError(t, revocations.Revoke(ctx, rec), "repeat revocation is a no-op")

	revoked, err := revocations.IsRevoked(ctx, "j1")
	require.NoError(t, err)
	assert.True(t, revoked)
	revoked, err = revocations.IsRevoked(ctx, "j2")
	require.NoError(t, err)
	assert.False(t, revoked)

	n, err := revocations.PruneExpired(ctx, now.Add(2*time.Minute))
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)
}
