package checkpoint

import (
	"context"
	"encoding/base64"
	"os"
	"path/filepath"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"github.com/searchlink/searchlink/errors"
)

// TokenStore persists one opaque change feed resume token per collection.
// Load returns a nil token without error when none is stored.
type TokenStore interface {
	Load(ctx context.Context, coll string) (bson.Raw, error)
	Store(ctx context.Context, coll string, token bson.Raw) error
	Clear(ctx context.Context, coll string) error
}

type tokenDoc struct {
	Token bson.Raw `bson:"token"`
}

// FileTokenStore keeps resume tokens as one file per collection, each file
// holding the base64 of the BSON-serialized token document.
type FileTokenStore struct {
	dir string
}

// NewFileTokenStore creates a file-backed token store rooted at dir.
func NewFileTokenStore(dir string) *FileTokenStore {
	return &FileTokenStore{dir: dir}
}

func (s *FileTokenStore) path(coll string) string {
	return filepath.Join(s.dir, coll+".token")
}

func (s *FileTokenStore) Load(_ context.Context, coll string) (bson.Raw, error) {
	data, err := os.ReadFile(s.path(coll))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}

		return nil, errors.Wrap(err, "read token file")
	}

	raw, err := base64.StdEncoding.DecodeString(string(data))
	if err != nil {
		return nil, errors.Wrap(err, "decode token file")
	}

	var doc tokenDoc

	err = bson.Unmarshal(raw, &doc)
	if err != nil {
		return nil, errors.Wrap(err, "unmarshal token")
	}

	return doc.Token, nil
}

func (s *FileTokenStore) Store(_ context.Context, coll string, token bson.Raw) error {
	raw, err := bson.Marshal(tokenDoc{Token: token})
	if err != nil {
		return errors.Wrap(err, "marshal token")
	}

	data := base64.StdEncoding.EncodeToString(raw)

	err = os.WriteFile(s.path(coll), []byte(data), 0o600)

	return errors.Wrap(err, "write token file")
}

func (s *FileTokenStore) Clear(_ context.Context, coll string) error {
	err := os.Remove(s.path(coll))
	if err != nil && !os.IsNotExist(err) {
		return errors.Wrap(err, "remove token file")
	}

	return nil
}

// CollectionTokenStore keeps resume tokens in a designated MongoDB
// collection, one document per replicated collection:
// {_id: <collection>, token: <opaque>}.
type CollectionTokenStore struct {
	coll *mongo.Collection
}

// NewCollectionTokenStore creates a token store backed by coll.
func NewCollectionTokenStore(coll *mongo.Collection) *CollectionTokenStore {
	return &CollectionTokenStore{coll: coll}
}

func (s *CollectionTokenStore) Load(ctx context.Context, coll string) (bson.Raw, error) {
	var doc tokenDoc

	err := s.coll.FindOne(ctx, bson.D{{Key: "_id", Value: coll}}).Decode(&doc)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, nil
		}

		return nil, errors.Wrap(err, "find token")
	}

	return doc.Token, nil
}

func (s *CollectionTokenStore) Store(ctx context.Context, coll string, token bson.Raw) error {
	_, err := s.coll.UpdateOne(ctx,
		bson.D{{Key: "_id", Value: coll}},
		bson.D{{Key: "$set", Value: bson.D{{Key: "token", Value: token}}}},
		options.UpdateOne().SetUpsert(true))

	return errors.Wrap(err, "upsert token")
}

func (s *CollectionTokenStore) Clear(ctx context.Context, coll string) error {
	_, err := s.coll.DeleteOne(ctx, bson.D{{Key: "_id", Value: coll}})

	return errors.Wrap(err, "delete token")
}
