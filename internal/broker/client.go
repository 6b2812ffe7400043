// Package broker defines the contract the stream readers rely on and ships a
// Redis Streams implementation plus an in-memory reference implementation.
package broker

import (
	"context"
	"time"

	"github.com/KirkDiggler/streamclient/internal/entities"
)

//go:generate mockgen -destination=mock/mock_client.go -package=brokermock github.com/KirkDiggler/streamclient/internal/broker Client

// AppendInput contains parameters for appending an entry
type AppendInput struct {
	Log    string
	Fields entities.Fields

	// MaxLen caps the log after the append. Zero leaves the log untrimmed.
	MaxLen int64
	// Approximate lets the broker trim lazily (MAXLEN ~)
	Approximate bool
}

// AppendOutput contains the ID the broker assigned
type AppendOutput struct {
	ID entities.StreamID
}

// ReadInput contains parameters for a plain ordered read
type ReadInput struct {
	Log string
	// After is exclusive. Latest means "after the tail at call time".
	After entities.StreamID
	Count int64
	// Block is how long to wait when nothing is available. Zero does not wait.
	Block time.Duration
}

// ReadOutput contains entries in log order. Empty on timeout.
type ReadOutput struct {
	Entries []entities.LogEntry
}

// CreateGroupInput contains parameters for creating a consumer group
type CreateGroupInput struct {
	Log   string
	Group string
	// Start is the last-delivered position of the new group
	Start entities.StreamID
}

// ReadGroupInput contains parameters for a group read of never-delivered entries
type ReadGroupInput struct {
	Log      string
	Group    string
	Consumer string
	Count    int64
	Block    time.Duration
}

// ReadGroupOutput contains the entries now pending for the consumer
type ReadGroupOutput struct {
	Entries []entities.LogEntry
}

// AckInput identifies a pending entry to acknowledge
type AckInput struct {
	Log   string
	Group string
	ID    entities.StreamID
}

// PendingInput contains parameters for inspecting a group's pending set
type PendingInput struct {
	Log   string
	Group string
	Count int64
	// Consumer narrows the listing to one consumer when set
	Consumer string
}

// PendingOutput lists pending entries in ID order
type PendingOutput struct {
	Entries []entities.PendingEntry
}

// TrimInput contains parameters for trimming a log
type TrimInput struct {
	Log    string
	MaxLen int64
}

// TrimOutput contains the number of entries dropped
type TrimOutput struct {
	Dropped int64
}

// DeleteLogInput names the log to remove
type DeleteLogInput struct {
	Log string
}

// DeleteLogOutput is 1 when the log existed, 0 otherwise
type DeleteLogOutput struct {
	Deleted int64
}

// Client is a single connection handle to a stream broker. Handles are not
// shared between concurrent tasks; ask a Factory for one per task.
type Client interface {
	// Append adds one entry to the end of the log
	Append(ctx context.Context, input AppendInput) (*AppendOutput, error)

	// Read returns up to Count entries strictly after input.After
	Read(ctx context.Context, input ReadInput) (*ReadOutput, error)

	// CreateGroup creates a consumer group, creating an empty log if needed
	CreateGroup(ctx context.Context, input CreateGroupInput) error

	// ReadGroup delivers entries never delivered to the group and marks them
	// pending for the consumer
	ReadGroup(ctx context.Context, input ReadGroupInput) (*ReadGroupOutput, error)

	// Ack removes an entry from the group's pending set
	Ack(ctx context.Context, input AckInput) error

	// Pending lists entries delivered but not yet acked
	Pending(ctx context.Context, input PendingInput) (*PendingOutput, error)

	// Trim drops the oldest entries beyond MaxLen
	Trim(ctx context.Context, input TrimInput) (*TrimOutput, error)

	// DeleteLog removes the log and every group on it
	DeleteLog(ctx context.Context, input DeleteLogInput) (*DeleteLogOutput, error)

	// Close releases the handle
	Close() error
}

// Factory hands out a fresh connection handle
type Factory func() (Client, error)
