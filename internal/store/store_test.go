package store

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"LocalChat/internal/session"
)

func openTemp(t *testing.T, path, key string) *Store {
	t.Helper()
	s, err := Open(context.Background(), path, key, nil)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestLoadAllEmpty(t *testing.T) {
	s := openTemp(t, filepath.Join(t.TempDir(), "chat.db"), "default")

	turns, err := s.LoadAll(context.Background())
	require.NoError(t, err)
	assert.NotNil(t, turns)
	assert.Empty(t, turns)
}

func TestAppendAndLoadInOrder(t *testing.T) {
	ctx := context.Background()
	s := openTemp(t, filepath.Join(t.TempDir(), "chat.db"), "default")

	created := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	want := []session.Turn{
		{Role: session.RoleUser, Content: "hi", CreatedAt: created},
		{Role: session.RoleAssistant, Content: "hello", CreatedAt: created.Add(time.Second)},
		{Role: session.RoleUser, Content: "multi\nline ✓", CreatedAt: created.Add(2 * time.Second)},
	}
	for _, turn := range want {
		require.NoError(t, s.Append(ctx, turn))
	}

	got, err := s.LoadAll(ctx)
	require.NoError(t, err)
	require.Len(t, got, len(want))
	for i := range want {
		assert.Equal(t, want[i].Role, got[i].Role)
		assert.Equal(t, want[i].Content, got[i].Content)
		assert.True(t, want[i].CreatedAt.Equal(got[i].CreatedAt), "turn %d timestamp", i)
	}
}

func TestOrderSurvivesReopen(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "chat.db")

	for round := 0; round < 3; round++ {
		s, err := Open(ctx, path, "default", nil)
		require.NoError(t, err)
		require.NoError(t, s.Append(ctx, session.NewTurn(session.RoleUser, fmt.Sprintf("u%d", round))))
		require.NoError(t, s.Append(ctx, session.NewTurn(session.RoleAssistant, fmt.Sprintf("a%d", round))))
		require.NoError(t, s.Close())
	}

	s := openTemp(t, path, "default")
	got, err := s.LoadAll(ctx)
	require.NoError(t, err)

	var contents []string
	for _, turn := range got {
		contents = append(contents, turn.Content)
	}
	assert.Equal(t, []string{"u0", "a0", "u1", "a1", "u2", "a2"}, contents)
}

func TestSessionKeysAreIsolated(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "chat.db")

	a := openTemp(t, path, "a")
	require.NoError(t, a.Append(ctx, session.NewTurn(session.RoleUser, "for a")))
	require.NoError(t, a.Close())

	b := openTemp(t, path, "b")
	got, err := b.LoadAll(ctx)
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestAppendRejectsUnknownRole(t *testing.T) {
	s := openTemp(t, filepath.Join(t.TempDir(), "chat.db"), "default")

	err := s.Append(context.Background(), session.Turn{Role: "system", Content: "x"})
	assert.ErrorIs(t, err, ErrInvalidTurn)
}

func TestAppendAfterCloseIsStorageError(t *testing.T) {
	s, err := Open(context.Background(), filepath.Join(t.TempDir(), "chat.db"), "default", nil)
	require.NoError(t, err)
	require.NoError(t, s.Close())

	err = s.Append(context.Background(), session.NewTurn(session.RoleUser, "hi"))
	assert.ErrorIs(t, err, ErrStorage)

	_, err = s.LoadAll(context.Background())
	assert.ErrorIs(t, err, ErrStorage)
}

func TestOpenUnwritableLocation(t *testing.T) {
	dir := t.TempDir()
	blocker := filepath.Join(dir, "file")
	require.NoError(t, os.WriteFile(blocker, []byte("x"), 0o600))

	_, err := Open(context.Background(), filepath.Join(blocker, "chat.db"), "default", nil)
	assert.ErrorIs(t, err, ErrStorage)
}

func TestOpenCreatesDirectory(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "dir", "chat.db")
	s := openTemp(t, path, "default")
	require.NoError(t, s.Append(context.Background(), session.NewTurn(session.RoleUser, "hi")))

	_, err := os.Stat(path)
	assert.NoError(t, err)
}
