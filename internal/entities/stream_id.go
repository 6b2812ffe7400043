// Package entities provides the value types shared by brokers and readers.
package entities

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/KirkDiggler/streamclient/internal/errors"
)

// StreamID identifies an entry within a log. IDs are ordered by Millis and
// then by Seq.
type StreamID struct {
	Millis uint64
	Seq    uint64
}

var (
	// Beginning sorts before every real entry
	Beginning = StreamID{}
	// Latest means "only entries appended from now on". It never names a
	// real entry.
	Latest = StreamID{Millis: math.MaxUint64, Seq: math.MaxUint64}
)

// NewStreamID creates a StreamID from its parts
func NewStreamID(millis, seq uint64) StreamID {
	return StreamID{Millis: millis, Seq: seq}
}

// ParseStreamID parses "ms-seq", "ms", "0" or "$"
func ParseStreamID(s string) (StreamID, error) {
	if s == "$" {
		return Latest, nil
	}

	msPart, seqPart, hasSeq := strings.Cut(s, "-")
	ms, err := strconv.ParseUint(msPart, 10, 64)
	if err != nil {
		return StreamID{}, errors.InvalidArgumentf("invalid stream id %q", s).WithMeta("id", s)
	}

	var seq uint64
	if hasSeq {
		seq, err = strconv.ParseUint(seqPart, 10, 64)
		if err != nil {
			return StreamID{}, errors.InvalidArgumentf("invalid stream id %q", s).WithMeta("id", s)
		}
	}

	id := StreamID{Millis: ms, Seq: seq}
	if id.IsLatest() {
		return StreamID{}, errors.InvalidArgumentf("stream id %q is reserved", s).WithMeta("id", s)
	}
	return id, nil
}

// MustParseStreamID is ParseStreamID for literals known to be valid
func MustParseStreamID(s string) StreamID {
	id, err := ParseStreamID(s)
	if err != nil {
		panic(err)
	}
	return id
}

// String renders the ID the way Redis does; Latest renders as "$"
func (id StreamID) String() string {
	if id.IsLatest() {
		return "$"
	}
	return fmt.Sprintf("%d-%d", id.Millis, id.Seq)
}

// Compare returns -1, 0 or +1
func (id StreamID) Compare(other StreamID) int {
	switch {
	case id.Millis < other.Millis:
		return -1
	case id.Millis > other.Millis:
		return 1
	case id.Seq < other.Seq:
		return -1
	case id.Seq > other.Seq:
		return 1
	default:
		return 0
	}
}

// Less reports whether id sorts before other
func (id StreamID) Less(other StreamID) bool {
	return id.Compare(other) < 0
}

// After reports whether id sorts after other
func (id StreamID) After(other StreamID) bool {
	return id.Compare(other) > 0
}

// IsBeginning reports whether id is the Beginning sentinel
func (id StreamID) IsBeginning() bool {
	return id == Beginning
}

// IsLatest reports whether id is the Latest sentinel
func (id StreamID) IsLatest() bool {
	return id == Latest
}

// IsSentinel reports whether id is Beginning or Latest
func (id StreamID) IsSentinel() bool {
	return id.IsBeginning() || id.IsLatest()
}

// Next returns the smallest ID greater than id
func (id StreamID) Next() StreamID {
	if id.Seq == math.MaxUint64 {
		return StreamID{Millis: id.Millis + 1}
	}
	return StreamID{Millis: id.Millis, Seq: id.Seq + 1}
}
