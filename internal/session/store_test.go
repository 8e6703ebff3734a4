package session

import (
	"context"
	"testing"

	"github.com/cloudwego/eino/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryStoreAppendAndLoad(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	require.NoError(t, store.Append(ctx, "s1", schema.UserMessage("hello")))
	require.NoError(t, store.Append(ctx, "s1", schema.AssistantMessage("hi there", nil)))

	msgs, err := store.Load(ctx, "s1")
	require.NoError(t, err)
	require.Len(t, msgs, 2)
	assert.Equal(t, schema.User, msgs[0].Role)
	assert.Equal(t, "hello", msgs[0].Content)
	assert.Equal(t, schema.Assistant, msgs[1].Role)
}

func TestMemoryStoreLoadUnknownSession(t *testing.T) {
	store := NewMemoryStore()
	msgs, err := store.Load(context.Background(), "nope")
	require.NoError(t, err)
	assert.Empty(t, msgs)
}

func TestMemoryStoreSessionsIsolated(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	require.NoError(t, store.Append(ctx, "a", schema.UserMessage("for a")))
	require.NoError(t, store.Append(ctx, "b", schema.UserMessage("for b")))

	msgs, err := store.Load(ctx, "a")
	require.NoError(t, err)
	require.Len(t, msgs, 1)
	assert.Equal(t, "for a", msgs[0].Content)
}

func TestMemoryStoreClear(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	require.NoError(t, store.Append(ctx, "s1", schema.UserMessage("hello")))
	require.NoError(t, store.Clear(ctx, "s1"))

	msgs, err := store.Load(ctx, "s1")
	require.NoError(t, err)
	assert.Empty(t, msgs)
}

func TestMemoryStoreLoadReturnsCopy(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	require.NoError(t, store.Append(ctx, "s1", schema.UserMessage("hello")))

	first, err := store.Load(ctx, "s1")
	require.NoError(t, err)
	first[0] = schema.UserMessage("tampered")

	second, err := store.Load(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, "hello", second[0].Content)
}
