package checkpoint //nolint:testpackage

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/v2/bson"
)

func testToken(t *testing.T, data string) bson.Raw {
	t.Helper()

	raw, err := bson.Marshal(bson.D{{Key: "_data", Value: data}})
	require.NoError(t, err)

	return bson.Raw(raw)
}

func TestFileTokenStoreRoundTrip(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store := NewFileTokenStore(t.TempDir())

	loaded, err := store.Load(ctx, "users")
	require.NoError(t, err)
	assert.Nil(t, loaded, "missing token loads as nil without error")

	token := testToken(t, "8264be0f")
	require.NoError(t, store.Store(ctx, "users", token))

	loaded, err = store.Load(ctx, "users")
	require.NoError(t, err)
	assert.Equal(t, token, loaded)

	// tokens are independent per collection
	loaded, err = store.Load(ctx, "posts")
	require.NoError(t, err)
	assert.Nil(t, loaded)
}

func TestFileTokenStoreOverwrite(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store := NewFileTokenStore(t.TempDir())

	require.NoError(t, store.Store(ctx, "users", testToken(t, "first")))
	require.NoError(t, store.Store(ctx, "users", testToken(t, "second")))

	loaded, err := store.Load(ctx, "users")
	require.NoError(t, err)
	assert.Equal(t, testToken(t, "second"), loaded)
}

func TestFileTokenStoreClear(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store := NewFileTokenStore(t.TempDir())

	require.NoError(t, store.Store(ctx, "users", testToken(t, "tok")))
	require.NoError(t, store.Clear(ctx, "users"))

	loaded, err := store.Load(ctx, "users")
	require.NoError(t, err)
	assert.Nil(t, loaded)

	// clearing a missing token is fine
	require.NoError(t, store.Clear(ctx, "users"))
}
