package cacheindex

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	appErr "github.com/weirwood/scry/internal/pkg/errors"
)

func testIndex(t *testing.T) *Index {
	t.Helper()
	return New(filepath.Join(t.TempDir(), "cache_metadata.json"))
}

func TestIndexLoad_AbsentFileIsEmpty(t *testing.T) {
	idx := testIndex(t)
	require.Empty(t, idx.Load(context.Background()))
}

func TestIndexLoad_MalformedFileIsEmpty(t *testing.T) {
	idx := testIndex(t)
	require.NoError(t, os.WriteFile(idx.Path(), []byte("{not json"), 0o644))
	require.Empty(t, idx.Load(context.Background()))
}

func TestIndexSaveLoad_RoundTrip(t *testing.T) {
	idx := testIndex(t)
	ctx := context.Background()

	entries := []Entry{
		{
			ID:        "id-1",
			Text:      "a red castle on a hill",
			Embedding: []float32{0.1, 0.2, 0.3},
			ImagePath: "image_cache/img_id-1.png",
			Timestamp: time.Now().UTC().Truncate(time.Second),
		},
		{
			ID:        "id-2",
			Text:      "a frozen wall at night",
			Embedding: []float32{-0.4, 0.5, 0.6},
			ImagePath: "image_cache/img_id-2.png",
			Timestamp: time.Now().UTC().Truncate(time.Second),
		},
	}
	require.NoError(t, idx.Save(ctx, entries))

	got := idx.Load(ctx)
	require.Len(t, got, len(entries))
	for i := range entries {
		require.Equal(t, entries[i].ID, got[i].ID)
		require.Equal(t, entries[i].Text, got[i].Text)
		require.Equal(t, entries[i].Embedding, got[i].Embedding)
		require.Equal(t, entries[i].ImagePath, got[i].ImagePath)
		require.True(t, entries[i].Timestamp.Equal(got[i].Timestamp))
	}
}

func TestIndexSave_UsesOriginalFieldNames(t *testing.T) {
	idx := testIndex(t)
	ctx := context.Background()

	require.NoError(t, idx.Save(ctx, []Entry{{
		ID:        "id-1",
		Text:      "text",
		Embedding: []float32{1},
		ImagePath: "image_cache/img_id-1.png",
		Timestamp: time.Now(),
	}}))

	raw, err := os.ReadFile(idx.Path())
	require.NoError(t, err)
	for _, key := range []string{`"id"`, `"text"`, `"embedding"`, `"image_path"`, `"timestamp"`} {
		require.Contains(t, string(raw), key)
	}
}

func TestIndexSave_LeavesNoTempFiles(t *testing.T) {
	idx := testIndex(t)
	ctx := context.Background()
	require.NoError(t, idx.Save(ctx, []Entry{{ID: "x"}}))

	entries, err := os.ReadDir(filepath.Dir(idx.Path()))
	require.NoError(t, err)
	for _, e := range entries {
		require.False(t, strings.HasSuffix(e.Name(), ".tmp"), "leftover temp file %s", e.Name())
	}
}

func TestIndexSave_FailureIsPersistenceError(t *testing.T) {
	// A directory squatting on the index path makes the final rename fail.
	dir := t.TempDir()
	target := filepath.Join(dir, "cache_metadata.json")
	require.NoError(t, os.Mkdir(target, 0o755))

	idx := New(target)
	err := idx.Save(context.Background(), []Entry{{ID: "x"}})
	require.ErrorIs(t, err, appErr.ErrPersistence)
}

func TestIndexSave_EmptySliceWritesEmptyDocument(t *testing.T) {
	idx := testIndex(t)
	ctx := context.Background()
	require.NoError(t, idx.Save(ctx, nil))

	raw, err := os.ReadFile(idx.Path())
	require.NoError(t, err)
	require.Equal(t, "[]", strings.TrimSpace(string(raw)))
	require.Empty(t, idx.Load(ctx))
}

func TestRemove(t *testing.T) {
	entries := []Entry{{ID: "a"}, {ID: "b"}, {ID: "c"}}

	got := Remove(entries, "b")
	require.Len(t, got, 2)
	require.Equal(t, "a", got[0].ID)
	require.Equal(t, "c", got[1].ID)

	// Unknown id leaves the set unchanged.
	got = Remove(entries, "nope")
	require.Len(t, got, 3)

	// The input slice is not mutated.
	require.Len(t, entries, 3)
}
