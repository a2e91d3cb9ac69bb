package docstore

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFileBackend_MissingFileIsEmpty(t *testing.T) {
	b := NewFileBackend(filepath.Join(t.TempDir(), "levels.json"))

	doc, version, err := b.Load(context.Background())
	require.NoError(t, err)
	assert.Empty(t, doc)
	assert.Equal(t, "", version)
}

func TestFileBackend_SaveThenLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "data", "levels.json")
	b := NewFileBackend(path)
	ctx := context.Background()

	doc := Document{}
	doc.EnsureUser("alice").Upsert(LevelEntry{FieldID: "3", "title": "Hill"})

	v1, err := b.Save(ctx, doc, "")
	require.NoError(t, err)
	assert.NotEmpty(t, v1)

	loaded, v2, err := b.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, v1, v2)
	entry, ok := loaded["alice"].Find("3")
	require.True(t, ok)
	assert.Equal(t, "Hill", entry["title"])
}

func TestFileBackend_StaleVersionConflicts(t *testing.T) {
	path := filepath.Join(t.TempDir(), "levels.json")
	b := NewFileBackend(path)
	ctx := context.Background()

	_, err := b.Save(ctx, Document{}, "")
	require.NoError(t, err)
	before, err := os.ReadFile(path)
	require.NoError(t, err)

	// creating over an existing file must fail
	doc := Document{}
	doc.EnsureUser("bob")
	_, err = b.Save(ctx, doc, "")
	assert.ErrorIs(t, err, ErrVersionConflict)

	_, err = b.Save(ctx, doc, "stale")
	assert.ErrorIs(t, err, ErrVersionConflict)

	after, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, before, after)
}
