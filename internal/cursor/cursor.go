// Package cursor tracks a plain reader's position in a log.
package cursor

import (
	"github.com/KirkDiggler/streamclient/internal/entities"
	"github.com/KirkDiggler/streamclient/internal/errors"
)

// Cursor holds the last seen ID. It belongs to a single reader and does no
// locking.
type Cursor struct {
	lastSeen entities.StreamID
}

// New creates a cursor at start: Beginning, Latest or a concrete ID
func New(start entities.StreamID) *Cursor {
	return &Cursor{lastSeen: start}
}

// Position returns the ID to read after
func (c *Cursor) Position() entities.StreamID {
	return c.lastSeen
}

// Advance moves the cursor to id, which must sort after the current
// position. While the cursor is still at Latest any real ID is accepted.
func (c *Cursor) Advance(id entities.StreamID) error {
	if id.IsSentinel() {
		return errors.OutOfRangef("cannot advance cursor to sentinel %s", id).
			WithMeta("id", id.String())
	}
	if c.lastSeen.IsLatest() || id.After(c.lastSeen) {
		c.lastSeen = id
		return nil
	}
	return errors.OutOfRangef("cursor at %s cannot move to %s", c.lastSeen, id).
		WithMeta("id", id.String()).
		WithMeta("position", c.lastSeen.String())
}

// IsOutOfOrder reports an Advance that would have moved the cursor backwards
func IsOutOfOrder(err error) bool {
	return errors.IsOutOfRange(err)
}
