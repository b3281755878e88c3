// Package topo provides MongoDB topology helpers.
package topo

import (
	"context"

	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"github.com/searchlink/searchlink/errors"
)

// Server error codes relevant for change stream resumability.
const (
	codeNamespaceNotFound       = 26
	codeCappedPositionLost      = 136
	codeChangeStreamHistoryLost = 286
)

// Connect creates a MongoDB client and verifies the connection.
func Connect(ctx context.Context, uri, appName string) (*mongo.Client, error) {
	opts := options.Client().
		ApplyURI(uri).
		SetAppName(appName)

	client, err := mongo.Connect(opts)
	if err != nil {
		return nil, errors.Wrap(err, "connect")
	}

	err = client.Ping(ctx, nil)
	if err != nil {
		_ = client.Disconnect(context.Background())

		return nil, errors.Wrap(err, "ping")
	}

	return client, nil
}

func hasErrorCode(err error, code int) bool {
	var srvErr mongo.ServerError

	return errors.As(err, &srvErr) && srvErr.HasErrorCode(code)
}

// IsChangeStreamHistoryLost returns true when the resume position is no
// longer resolvable in the oplog.
func IsChangeStreamHistoryLost(err error) bool {
	return hasErrorCode(err, codeChangeStreamHistoryLost)
}

// IsCappedPositionLost returns true when the data underlying the resume
// position no longer exists.
func IsCappedPositionLost(err error) bool {
	return hasErrorCode(err, codeCappedPositionLost)
}

// IsResumeTokenInvalid returns true for errors that invalidate a stored
// resume token. Reattaching with the same token cannot succeed.
func IsResumeTokenInvalid(err error) bool {
	return IsChangeStreamHistoryLost(err) || IsCappedPositionLost(err)
}

// IsNamespaceNotFound returns true when the namespace does not exist.
func IsNamespaceNotFound(err error) bool {
	return hasErrorCode(err, codeNamespaceNotFound)
}
