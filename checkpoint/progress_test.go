package checkpoint //nolint:testpackage

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/v2/bson"
)

func TestProgressRoundTrip(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "progress.json")

	p, err := LoadProgress(path)
	require.NoError(t, err)

	assert.Equal(t, bson.NilObjectID, p.Get("users"), "missing entry yields the zero id")

	id := bson.NewObjectID()
	p.Set("users", id)
	p.Set("posts", bson.NewObjectID())
	require.NoError(t, p.Save())

	reloaded, err := LoadProgress(path)
	require.NoError(t, err)

	assert.Equal(t, id, reloaded.Get("users"))
	assert.Equal(t, bson.NilObjectID, reloaded.Get("comments"))
}

func TestProgressMissingFile(t *testing.T) {
	t.Parallel()

	p, err := LoadProgress(filepath.Join(t.TempDir(), "does-not-exist.json"))
	require.NoError(t, err)
	assert.Equal(t, bson.NilObjectID, p.Get("users"))
}

func TestProgressCorruptFile(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "progress.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0o600))

	_, err := LoadProgress(path)
	require.Error(t, err)
}

func TestProgressClearIsPerCollection(t *testing.T) {
	t.Parallel()

	p, err := LoadProgress(filepath.Join(t.TempDir(), "progress.json"))
	require.NoError(t, err)

	usersID := bson.NewObjectID()
	postsID := bson.NewObjectID()
	p.Set("users", usersID)
	p.Set("posts", postsID)

	p.Clear("users")

	assert.Equal(t, bson.NilObjectID, p.Get("users"))
	assert.Equal(t, postsID, p.Get("posts"), "other collections keep their progress")
}

func TestProgressReset(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "progress.json")

	p, err := LoadProgress(path)
	require.NoError(t, err)

	p.Set("users", bson.NewObjectID())
	require.NoError(t, p.Save())

	require.NoError(t, p.Reset())

	assert.Equal(t, bson.NilObjectID, p.Get("users"))
	assert.NoFileExists(t, path)

	// resetting a reset state is fine
	require.NoError(t, p.Reset())
}
