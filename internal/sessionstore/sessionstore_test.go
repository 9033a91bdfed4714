package sessionstore

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/floydai/floyd/pkg/types"
)

func TestCreateImmediatelyAfterNewObservesReadyInit(t *testing.T) {
	store := New(t.TempDir())

	// No sleep, no wait: Create must work even though New's background
	// initialization may not have run a single scheduler tick yet.
	session, err := store.Create(context.Background(), "/work/dir")
	require.NoError(t, err)
	assert.NotEmpty(t, session.ID)
	assert.Equal(t, "/work/dir", session.Directory)
}

func TestSaveLoadRoundTrip(t *testing.T) {
	ctx := context.Background()
	store := New(t.TempDir())

	session, err := store.Create(ctx, "/repo")
	require.NoError(t, err)

	session.Messages = append(session.Messages, types.NewTextMessage(types.RoleUser, "hello there"))
	require.NoError(t, store.Save(ctx, session))

	loaded, err := store.Load(ctx, session.ID)
	require.NoError(t, err)
	assert.Equal(t, session.ID, loaded.ID)
	assert.Equal(t, "hello there", loaded.Messages[0].Text())
}

func TestLoadMissingReturnsNotFound(t *testing.T) {
	store := New(t.TempDir())
	_, err := store.Load(context.Background(), "does-not-exist")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestTitleInferredFromFirstUserMessage(t *testing.T) {
	ctx := context.Background()
	store := New(t.TempDir())

	session, err := store.Create(ctx, "/repo")
	require.NoError(t, err)
	assert.Empty(t, session.Title)

	longText := "please help me refactor the authentication middleware across every handler in this service"
	session.Messages = append(session.Messages, types.NewTextMessage(types.RoleUser, longText))
	require.NoError(t, store.Save(ctx, session))

	assert.NotEmpty(t, session.Title)
	assert.LessOrEqual(t, len([]rune(session.Title)), titleMaxRunes+len("..."))
	assert.Contains(t, session.Title, "...")

	loaded, err := store.Load(ctx, session.ID)
	require.NoError(t, err)
	assert.Equal(t, session.Title, loaded.Title)
}

func TestTitleNotOverwrittenOnceSet(t *testing.T) {
	ctx := context.Background()
	store := New(t.TempDir())

	session, err := store.Create(ctx, "/repo")
	require.NoError(t, err)
	session.Title = "Custom title"
	session.Messages = append(session.Messages, types.NewTextMessage(types.RoleUser, "some other message entirely"))
	require.NoError(t, store.Save(ctx, session))

	assert.Equal(t, "Custom title", session.Title)
}

func TestListOrderedByUpdatedDescending(t *testing.T) {
	ctx := context.Background()
	store := New(t.TempDir())

	first, err := store.Create(ctx, "/a")
	require.NoError(t, err)
	second, err := store.Create(ctx, "/b")
	require.NoError(t, err)

	second.Updated = first.Updated + 1000
	require.NoError(t, store.storage.Put(ctx, []string{sessionPathSegment, second.ID}, second))

	summaries, err := store.List(ctx)
	require.NoError(t, err)
	require.Len(t, summaries, 2)
	assert.Equal(t, second.ID, summaries[0].ID)
	assert.Equal(t, first.ID, summaries[1].ID)
}

func TestDeleteRemovesSession(t *testing.T) {
	ctx := context.Background()
	store := New(t.TempDir())

	session, err := store.Create(ctx, "/repo")
	require.NoError(t, err)
	require.NoError(t, store.Delete(ctx, session.ID))

	_, err = store.Load(ctx, session.ID)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestCreateEvictsOldestPastCap(t *testing.T) {
	ctx := context.Background()
	store := New(t.TempDir())

	var oldest *types.Session
	for i := 0; i < MaxSessions; i++ {
		session, err := store.Create(ctx, fmt.Sprintf("/repo-%d", i))
		require.NoError(t, err)
		if i == 0 {
			oldest = session
			oldest.Updated = 1
			// Save would overwrite Updated with the current time, so
			// the backdated record is written through storage directly.
			require.NoError(t, store.storage.Put(ctx, []string{sessionPathSegment, oldest.ID}, oldest))
		}
	}

	// One more Create should push the store over MaxSessions and evict
	// the session with the smallest Updated timestamp (oldest).
	_, err := store.Create(ctx, "/repo-newest")
	require.NoError(t, err)

	_, err = store.Load(ctx, oldest.ID)
	assert.ErrorIs(t, err, ErrNotFound)

	summaries, err := store.List(ctx)
	require.NoError(t, err)
	assert.LessOrEqual(t, len(summaries), MaxSessions)
}
