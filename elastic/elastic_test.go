package elastic //nolint:testpackage

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/v2/bson"

	"github.com/searchlink/searchlink/slink"
)

func TestEncodeBulk(t *testing.T) {
	t.Parallel()

	batch := slink.NewBulkBatch(2)
	batch.Append(slink.Op{Index: "users", DocID: "a1"}, bson.D{{Key: "name", Value: "alice"}})
	batch.Append(slink.Op{Index: "users", DocID: "b2", Parent: "p9"}, bson.D{{Key: "name", Value: "bob"}})

	body, err := EncodeBulk(batch)
	require.NoError(t, err)

	lines := strings.Split(strings.TrimRight(string(body), "\n"), "\n")
	require.Len(t, lines, 4, "one action and one source line per document")

	var action map[string]map[string]string
	require.NoError(t, json.Unmarshal([]byte(lines[0]), &action))
	assert.Equal(t, "users", action["index"]["_index"])
	assert.Equal(t, "a1", action["index"]["_id"])
	assert.NotContains(t, action["index"], "routing")

	var source map[string]any
	require.NoError(t, json.Unmarshal([]byte(lines[1]), &source))
	assert.Equal(t, "alice", source["name"])

	require.NoError(t, json.Unmarshal([]byte(lines[2]), &action))
	assert.Equal(t, "b2", action["index"]["_id"])
	assert.Equal(t, "p9", action["index"]["routing"])
}

func TestEncodeBulkEmptyBatch(t *testing.T) {
	t.Parallel()

	body, err := EncodeBulk(slink.NewBulkBatch(0))
	require.NoError(t, err)
	assert.Empty(t, body)
}

func TestLoadMappings(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "mappings.json")
	content := `{
		"users": {"index": "app-users", "type": "user"},
		"posts": {"index": "app-posts", "type": "post", "parent": "user_id"}
	}`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	mappings, err := LoadMappings(path)
	require.NoError(t, err)
	require.Len(t, mappings, 2)

	assert.Equal(t, slink.Mapping{Index: "app-users", Type: "user"}, mappings["users"])
	assert.Equal(t, "user_id", mappings["posts"].ParentField)
}

func TestLoadMappingsErrors(t *testing.T) {
	t.Parallel()

	_, err := LoadMappings(filepath.Join(t.TempDir(), "missing.json"))
	require.Error(t, err)

	path := filepath.Join(t.TempDir(), "bad.json")
	require.NoError(t, os.WriteFile(path, []byte("{"), 0o600))

	_, err = LoadMappings(path)
	require.Error(t, err)
}

func TestMappingDefaults(t *testing.T) {
	t.Parallel()

	s := &Sink{
		bulkSize: 10,
		mappings: map[string]slink.Mapping{
			"users": {Index: "app-users", Type: "user"},
		},
	}

	assert.Equal(t, slink.Mapping{Index: "app-users", Type: "user"}, s.Mapping("users"))
	assert.Equal(t, slink.Mapping{Index: "posts", Type: "posts"}, s.Mapping("posts"),
		"unmapped collections index into an index of the same name")
}
