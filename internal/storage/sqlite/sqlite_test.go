package sqlite

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fenggwsx/RoomChat/internal/config"
	"github.com/fenggwsx/RoomChat/internal/storage"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := NewStore(config.DatabaseConfig{Path: filepath.Join(t.TempDir(), "chat.db")})
	require.NoError(t, err)
	require.NoError(t, store.Migrate(context.Background()))
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func TestStoreImplementsInterface(t *testing.T) {
	var _ storage.Store = (*Store)(nil)
}

func TestListMessagesByRoomReturnsNewestChronologically(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	base := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)

	for i := 0; i < 5; i++ {
		require.NoError(t, store.SaveMessage(ctx, &storage.Message{
			User:      "alice",
			Room:      "7",
			Body:      string(rune('a' + i)),
			CreatedAt: base.Add(time.Duration(i) * time.Second),
		}))
	}
	require.NoError(t, store.SaveMessage(ctx, &storage.Message{User: "bob", Room: "8", Body: "other", CreatedAt: base}))

	msgs, err := store.ListMessagesByRoom(ctx, "7", 3)
	require.NoError(t, err)
	require.Len(t, msgs, 3)
	assert.Equal(t, "c", msgs[0].Body)
	assert.Equal(t, "d", msgs[1].Body)
	assert.Equal(t, "e", msgs[2].Body)
	assert.NotEmpty(t, msgs[0].ID)

	all, err := store.ListMessagesByRoom(ctx, "7", 10)
	require.NoError(t, err)
	require.Len(t, all, 5)
	assert.Equal(t, "a", all[0].Body)
	assert.Equal(t, "e", all[4].Body)
}

func TestSaveMessageAssignsIDAndTime(t *testing.T) {
	store := newTestStore(t)
	msg := &storage.Message{User: "alice", Room: "1", Body: "hi"}
	require.NoError(t, store.SaveMessage(context.Background(), msg))
	assert.NotEmpty(t, msg.ID)
	assert.False(t, msg.CreatedAt.IsZero())
}

func TestDeleteMessage(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	msg := &storage.Message{User: "alice", Room: "1", Body: "hi"}
	require.NoError(t, store.SaveMessage(ctx, msg))

	require.NoError(t, store.DeleteMessage(ctx, msg.ID))
	assert.ErrorIs(t, store.DeleteMessage(ctx, msg.ID), storage.ErrNotFound)

	msgs, err := store.ListMessagesByRoom(ctx, "1", 50)
	require.NoError(t, err)
	assert.Empty(t, msgs)
}

func TestDeleteMessagesByAuthor(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	for _, m := range []storage.Message{
		{User: "alice", Room: "1", Email: "a@x", Body: "one"},
		{User: "alice", Room: "1", Email: "a@x", Body: "two"},
		{User: "alice", Room: "2", Email: "a@x", Body: "elsewhere"},
		{User: "bob", Room: "1", Email: "b@x", Body: "stays"},
	} {
		m := m
		require.NoError(t, store.SaveMessage(ctx, &m))
	}

	n, err := store.DeleteMessagesByAuthor(ctx, "alice", "1", "a@x")
	require.NoError(t, err)
	assert.EqualValues(t, 2, n)

	msgs, err := store.ListMessagesByRoom(ctx, "1", 50)
	require.NoError(t, err)
	require.Len(t, msgs, 1)
	assert.Equal(t, "stays", msgs[0].Body)
}

func TestOnlineUserLifecycle(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	_, err := store.FindOnlineUser(ctx, "a@x", "alice", "7")
	assert.ErrorIs(t, err, storage.ErrNotFound)

	user := &storage.OnlineUser{User: "alice", Email: "a@x", Room: "7", ProfilePhoto: "p.png"}
	require.NoError(t, store.CreateOnlineUser(ctx, user))
	assert.NotEmpty(t, user.ID)

	found, err := store.FindOnlineUser(ctx, "a@x", "alice", "7")
	require.NoError(t, err)
	assert.Equal(t, user.ID, found.ID)
	assert.Equal(t, "p.png", found.ProfilePhoto)

	_, err = store.FindOnlineUser(ctx, "a@x", "alice", "8")
	assert.ErrorIs(t, err, storage.ErrNotFound)

	err = store.CreateOnlineUser(ctx, &storage.OnlineUser{User: "other", Email: "a@x", Room: "9"})
	assert.ErrorIs(t, err, storage.ErrDuplicate)

	require.NoError(t, store.DeleteOnlineUser(ctx, user.ID))
	assert.ErrorIs(t, store.DeleteOnlineUser(ctx, user.ID), storage.ErrNotFound)
}
