package sqlite

import (
	"context"
	"gym-chat/repositories"
	"gym-chat/repositories/storetest"
	"log/slog"
	"path/filepath"
	"testing"
	"time"

	"github.com/mama165/sdk-go/logs"
	"github.com/stretchr/testify/require"
)

func openSQLite(t *testing.T, opts ...repositories.Option) repositories.IMessageRepository {
	db, err := Open(filepath.Join(t.TempDir(), "chat.db"))
	require.NoError(t, err)
	store := NewMessageRepository(db, logs.GetLoggerFromLevel(slog.LevelDebug), opts...)
	require.NoError(t, store.Migrate(context.Background()))
	return store
}

func TestMessageRepository_Conformance(t *testing.T) {
	storetest.Run(t, openSQLite)
}

func TestMessageRepository_InMemory(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	db, err := Open(":memory:")
	req.NoError(err)
	store := NewMessageRepository(db, logs.GetLoggerFromLevel(slog.LevelDebug))
	defer store.Close()
	req.NoError(store.Migrate(ctx))

	saved, err := store.SaveMessage(ctx, "alice", "bob", "deadlift pr!")
	req.NoError(err)
	got, err := store.GetMessage(ctx, saved.ID)
	req.NoError(err)
	req.Equal(saved.Body, got.Body)
	req.True(saved.CreatedAt.Equal(got.CreatedAt))
}

func TestMessageRepository_MigrateSeedsClock(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "chat.db")
	log := logs.GetLoggerFromLevel(slog.LevelDebug)

	db, err := Open(path)
	req.NoError(err)
	store := NewMessageRepository(db, log)
	req.NoError(store.Migrate(ctx))
	first, err := store.SaveMessage(ctx, "alice", "bob", "first")
	req.NoError(err)
	req.NoError(store.Close())

	db, err = Open(path)
	req.NoError(err)
	store = NewMessageRepository(db, log, repositories.WithClock(func() time.Time { return first.CreatedAt.Add(-time.Hour) }))
	defer store.Close()
	req.NoError(store.Migrate(ctx))
	second, err := store.SaveMessage(ctx, "bob", "alice", "second")
	req.NoError(err)
	req.True(second.CreatedAt.After(first.CreatedAt))
}
