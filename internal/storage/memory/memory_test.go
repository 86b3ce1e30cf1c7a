package memory

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fenggwsx/RoomChat/internal/storage"
)

func TestStoreImplementsInterface(t *testing.T) {
	var _ storage.Store = (*Store)(nil)
}

func TestListKeepsInsertionOrderForEqualTimes(t *testing.T) {
	ctx := context.Background()
	store := NewStore()
	at := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	for _, body := range []string{"first", "second", "third"} {
		require.NoError(t, store.SaveMessage(ctx, &storage.Message{User: "alice", Room: "1", Body: body, CreatedAt: at}))
	}

	msgs, err := store.ListMessagesByRoom(ctx, "1", 2)
	require.NoError(t, err)
	require.Len(t, msgs, 2)
	assert.Equal(t, "second", msgs[0].Body)
	assert.Equal(t, "third", msgs[1].Body)
}

func TestListFiltersByRoom(t *testing.T) {
	ctx := context.Background()
	store := NewStore()
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	for i, body := range []string{"a", "b", "c"} {
		require.NoError(t, store.SaveMessage(ctx, &storage.Message{Room: "1", Body: body, CreatedAt: base.Add(time.Duration(i) * time.Minute)}))
	}
	require.NoError(t, store.SaveMessage(ctx, &storage.Message{Room: "2", Body: "x", CreatedAt: base}))

	msgs, err := store.ListMessagesByRoom(ctx, "1", 10)
	require.NoError(t, err)
	require.Len(t, msgs, 3)
	assert.Equal(t, "a", msgs[0].Body)
	assert.Equal(t, "c", msgs[2].Body)

	none, err := store.ListMessagesByRoom(ctx, "3", 10)
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestDeletes(t *testing.T) {
	ctx := context.Background()
	store := NewStore()
	keep := &storage.Message{User: "bob", Room: "1", Email: "b@x", Body: "keep"}
	gone := &storage.Message{User: "alice", Room: "1", Email: "a@x", Body: "gone"}
	require.NoError(t, store.SaveMessage(ctx, keep))
	require.NoError(t, store.SaveMessage(ctx, gone))
	require.NoError(t, store.SaveMessage(ctx, &storage.Message{User: "alice", Room: "1", Email: "a@x", Body: "gone too"}))

	n, err := store.DeleteMessagesByAuthor(ctx, "alice", "1", "a@x")
	require.NoError(t, err)
	assert.EqualValues(t, 2, n)
	assert.ErrorIs(t, store.DeleteMessage(ctx, gone.ID), storage.ErrNotFound)
	require.NoError(t, store.DeleteMessage(ctx, keep.ID))
}

func TestOnlineUsers(t *testing.T) {
	ctx := context.Background()
	store := NewStore()
	user := &storage.OnlineUser{User: "alice", Email: "a@x", Room: "7"}
	require.NoError(t, store.CreateOnlineUser(ctx, user))
	assert.ErrorIs(t, store.CreateOnlineUser(ctx, &storage.OnlineUser{User: "eve", Email: "a@x", Room: "1"}), storage.ErrDuplicate)

	found, err := store.FindOnlineUser(ctx, "a@x", "alice", "7")
	require.NoError(t, err)
	assert.Equal(t, user.ID, found.ID)

	_, err = store.FindOnlineUser(ctx, "a@x", "mallory", "7")
	assert.ErrorIs(t, err, storage.ErrNotFound)

	require.NoError(t, store.DeleteOnlineUser(ctx, user.ID))
	_, err = store.FindOnlineUser(ctx, "a@x", "alice", "7")
	assert.ErrorIs(t, err, storage.ErrNotFound)
	require.NoError(t, store.CreateOnlineUser(ctx, &storage.OnlineUser{User: "eve", Email: "a@x", Room: "1"}))
}
