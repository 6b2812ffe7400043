package entities

import (
	"time"

	"github.com/KirkDiggler/streamclient/internal/errors"
)

// Field is one key/value pair of an entry
type Field struct {
	Key   string
	Value string
}

// Fields is an ordered list of pairs. Order is preserved from append to read.
type Fields []Field

// NewFields builds Fields from alternating keys and values
func NewFields(kv ...string) (Fields, error) {
	if len(kv)%2 != 0 {
		return nil, errors.InvalidArgumentf("fields need key/value pairs, got %d strings", len(kv))
	}

	fields := make(Fields, 0, len(kv)/2)
	for i := 0; i < len(kv); i += 2 {
		fields = append(fields, Field{Key: kv[i], Value: kv[i+1]})
	}
	return fields, nil
}

// Validate rejects empty field lists and blank keys
func (f Fields) Validate() error {
	if len(f) == 0 {
		return errors.InvalidArgument("entry must have at least one field")
	}
	for i, field := range f {
		if field.Key == "" {
			return errors.InvalidArgumentf("field %d has an empty key", i)
		}
	}
	return nil
}

// Get returns the value of the first field named key
func (f Fields) Get(key string) (string, bool) {
	for _, field := range f {
		if field.Key == key {
			return field.Value, true
		}
	}
	return "", false
}

// Map flattens the pairs into a map. Later duplicates win.
func (f Fields) Map() map[string]string {
	m := make(map[string]string, len(f))
	for _, field := range f {
		m[field.Key] = field.Value
	}
	return m
}

// Args returns the pairs as alternating key, value arguments
func (f Fields) Args() []interface{} {
	args := make([]interface{}, 0, len(f)*2)
	for _, field := range f {
		args = append(args, field.Key, field.Value)
	}
	return args
}

// Clone returns a copy that shares nothing with f
func (f Fields) Clone() Fields {
	if f == nil {
		return nil
	}
	out := make(Fields, len(f))
	copy(out, f)
	return out
}

// LogEntry is one appended record. Entries are immutable once appended.
type LogEntry struct {
	ID     StreamID
	Fields Fields
}

// Clone returns a deep copy of the entry
func (e LogEntry) Clone() LogEntry {
	return LogEntry{ID: e.ID, Fields: e.Fields.Clone()}
}

// PendingEntry describes an entry delivered to a consumer but not yet acked
type PendingEntry struct {
	ID         StreamID
	Consumer   string
	Idle       time.Duration
	Deliveries int64
}
