package config

import "time"

const (
	// DefaultServerPort is the default HTTP control server port.
	DefaultServerPort = 2380

	// DefaultBulkSize is the default number of documents per bulk request.
	DefaultBulkSize = 500
	// MaxBulkSize bounds the configurable bulk size.
	MaxBulkSize = 10_000

	// ChangeStreamBatchSize is the change stream cursor batch size.
	ChangeStreamBatchSize = 100
	// ChangeStreamAwaitTime is the max await time of a change stream read.
	ChangeStreamAwaitTime = 5 * time.Second

	// DisconnectTimeout bounds client disconnects during shutdown.
	DisconnectTimeout = 10 * time.Second
	// CloseFeedTimeout bounds change stream teardown.
	CloseFeedTimeout = 10 * time.Second

	// CheckpointModeFile persists resume tokens as one file per collection.
	CheckpointModeFile = "file"
	// CheckpointModeCollection persists resume tokens in a MongoDB collection.
	CheckpointModeCollection = "collection"

	// DefaultCheckpointDir is the default directory for checkpoint files.
	DefaultCheckpointDir = "."
	// DefaultCheckpointCollection is the default resume-token collection.
	DefaultCheckpointCollection = "searchlink_checkpoints"
	// DefaultProgressFile is the default bootstrap progress file name.
	DefaultProgressFile = "dump-progress.json"
)
