package broker

import (
	"context"
	stderrors "errors"
	"fmt"
	"strconv"
	"time"

	"github.com/KirkDiggler/streamclient/internal/entities"
	"github.com/KirkDiggler/streamclient/internal/errors"
	redisclient "github.com/KirkDiggler/streamclient/internal/redis"
)

// RedisConfig holds the configuration for the Redis Streams broker
type RedisConfig struct {
	Client redisclient.Client
}

// Validate ensures all required dependencies are provided
func (c *RedisConfig) Validate() error {
	if c.Client == nil {
		return errors.InvalidArgument("redis client is required")
	}
	return nil
}

// RedisClient implements Client over Redis Streams. Commands go through Do
// so entry fields come back in the order they were appended.
type RedisClient struct {
	client redisclient.Client
}

// NewRedisClient creates a broker handle over an existing go-redis client
func NewRedisClient(cfg *RedisConfig) (*RedisClient, error) {
	if cfg == nil {
		return nil, errors.InvalidArgument("config is required")
	}
	if err := cfg.Validate(); err != nil {
		return nil, errors.Wrap(err, "invalid config")
	}

	return &RedisClient{client: cfg.Client}, nil
}

// NewRedisFactory returns a Factory that opens a new go-redis client per handle
func NewRedisFactory(settings redisclient.Settings) Factory {
	return func() (Client, error) {
		rc, err := redisclient.Connect(settings)
		if err != nil {
			return nil, errors.WrapWithCode(err, errors.CodeInvalidArgument, "failed to configure redis")
		}
		client, err := NewRedisClient(&RedisConfig{Client: rc})
		if err != nil {
			return nil, err
		}
		return client, nil
	}
}

var _ Client = (*RedisClient)(nil)

// Append adds one entry with XADD
func (r *RedisClient) Append(ctx context.Context, input AppendInput) (*AppendOutput, error) {
	if err := validateLog(input.Log); err != nil {
		return nil, err
	}
	if err := input.Fields.Validate(); err != nil {
		return nil, errors.WrapWithCode(err, errors.CodeInvalidArgument, "invalid entry").WithMeta("log", input.Log)
	}
	if input.MaxLen < 0 {
		return nil, rejected(input.Log, "max len must not be negative")
	}

	args := []interface{}{"XADD", input.Log}
	if input.MaxLen > 0 {
		if input.Approximate {
			args = append(args, "MAXLEN", "~", input.MaxLen)
		} else {
			args = append(args, "MAXLEN", input.MaxLen)
		}
	}
	args = append(args, "*")
	args = append(args, input.Fields.Args()...)

	raw, err := r.client.Do(ctx, args...).Text()
	if err != nil {
		return nil, classify(ctx, err, "append", input.Log)
	}

	id, err := entities.ParseStreamID(raw)
	if err != nil {
		return nil, errors.Wrapf(err, "broker returned malformed id %q", raw)
	}

	return &AppendOutput{ID: id}, nil
}

// Read fetches entries with XREAD
func (r *RedisClient) Read(ctx context.Context, input ReadInput) (*ReadOutput, error) {
	if err := validateLog(input.Log); err != nil {
		return nil, err
	}
	if err := validateCount(input.Log, input.Count); err != nil {
		return nil, err
	}
	if input.Block < 0 {
		return nil, rejected(input.Log, "block must not be negative")
	}

	args := []interface{}{"XREAD", "COUNT", input.Count}
	args = appendBlock(args, input.Block)
	args = append(args, "STREAMS", input.Log, input.After.String())

	entries, err := r.readStreams(ctx, args, input.Block, "read", input.Log)
	if err != nil {
		return nil, err
	}
	return &ReadOutput{Entries: entries}, nil
}

// CreateGroup runs XGROUP CREATE ... MKSTREAM
func (r *RedisClient) CreateGroup(ctx context.Context, input CreateGroupInput) error {
	if err := validateGroup(input.Log, input.Group); err != nil {
		return err
	}

	err := r.client.Do(ctx, "XGROUP", "CREATE", input.Log, input.Group, input.Start.String(), "MKSTREAM").Err()
	if err != nil {
		err = classify(ctx, err, "create group", input.Log)
		if IsGroupExists(err) {
			return groupExists(input.Log, input.Group)
		}
		return err
	}
	return nil
}

// ReadGroup delivers never-delivered entries with XREADGROUP and ">"
func (r *RedisClient) ReadGroup(ctx context.Context, input ReadGroupInput) (*ReadGroupOutput, error) {
	if err := validateGroup(input.Log, input.Group); err != nil {
		return nil, err
	}
	if input.Consumer == "" {
		return nil, rejected(input.Log, "consumer name is required")
	}
	if err := validateCount(input.Log, input.Count); err != nil {
		return nil, err
	}
	if input.Block < 0 {
		return nil, rejected(input.Log, "block must not be negative")
	}

	args := []interface{}{"XREADGROUP", "GROUP", input.Group, input.Consumer, "COUNT", input.Count}
	args = appendBlock(args, input.Block)
	args = append(args, "STREAMS", input.Log, ">")

	entries, err := r.readStreams(ctx, args, input.Block, "read group", input.Log)
	if err != nil {
		if IsLogMissing(err) {
			return nil, logMissing(input.Log, input.Group)
		}
		return nil, err
	}
	return &ReadGroupOutput{Entries: entries}, nil
}

// Ack runs XACK; a zero reply means the entry was not pending
func (r *RedisClient) Ack(ctx context.Context, input AckInput) error {
	if err := validateGroup(input.Log, input.Group); err != nil {
		return err
	}
	if input.ID.IsSentinel() {
		return rejected(input.Log, "cannot ack a sentinel id")
	}

	n, err := r.client.Do(ctx, "XACK", input.Log, input.Group, input.ID.String()).Int64()
	if err != nil {
		return classify(ctx, err, "ack", input.Log)
	}
	if n == 0 {
		return notPending(input.Log, input.Group, input.ID)
	}
	return nil
}

// Pending lists the pending set with the extended form of XPENDING
func (r *RedisClient) Pending(ctx context.Context, input PendingInput) (*PendingOutput, error) {
	if err := validateGroup(input.Log, input.Group); err != nil {
		return nil, err
	}
	if err := validateCount(input.Log, input.Count); err != nil {
		return nil, err
	}

	args := []interface{}{"XPENDING", input.Log, input.Group, "-", "+", input.Count}
	if input.Consumer != "" {
		args = append(args, input.Consumer)
	}

	reply, err := r.client.Do(ctx, args...).Slice()
	if err != nil {
		err = classify(ctx, err, "pending", input.Log)
		if IsLogMissing(err) {
			return nil, logMissing(input.Log, input.Group)
		}
		return nil, err
	}

	entries := make([]entities.PendingEntry, 0, len(reply))
	for _, item := range reply {
		entry, err := parsePendingEntry(item)
		if err != nil {
			return nil, errors.Wrapf(err, "malformed pending reply for %s", input.Log)
		}
		entries = append(entries, entry)
	}

	return &PendingOutput{Entries: entries}, nil
}

// Trim runs an exact XTRIM MAXLEN
func (r *RedisClient) Trim(ctx context.Context, input TrimInput) (*TrimOutput, error) {
	if err := validateLog(input.Log); err != nil {
		return nil, err
	}
	if input.MaxLen < 0 {
		return nil, rejected(input.Log, "max len must not be negative")
	}

	n, err := r.client.Do(ctx, "XTRIM", input.Log, "MAXLEN", input.MaxLen).Int64()
	if err != nil {
		return nil, classify(ctx, err, "trim", input.Log)
	}
	return &TrimOutput{Dropped: n}, nil
}

// DeleteLog removes the stream key and its groups with DEL
func (r *RedisClient) DeleteLog(ctx context.Context, input DeleteLogInput) (*DeleteLogOutput, error) {
	if err := validateLog(input.Log); err != nil {
		return nil, err
	}

	n, err := r.client.Do(ctx, "DEL", input.Log).Int64()
	if err != nil {
		return nil, classify(ctx, err, "delete", input.Log)
	}
	return &DeleteLogOutput{Deleted: n}, nil
}

// Close releases the underlying go-redis client
func (r *RedisClient) Close() error {
	if err := r.client.Close(); err != nil {
		return errors.WrapWithCode(err, errors.CodeUnavailable, "failed to close redis client")
	}
	return nil
}

// BLOCK 0 waits forever in Redis, so a zero block omits the option.
func appendBlock(args []interface{}, block time.Duration) []interface{} {
	if block <= 0 {
		return args
	}
	ms := block.Milliseconds()
	if ms == 0 {
		ms = 1
	}
	return append(args, "BLOCK", ms)
}

func (r *RedisClient) readStreams(ctx context.Context, args []interface{}, block time.Duration, op, log string) ([]entities.LogEntry, error) {
	reply, err := redisclient.DoBlocking(ctx, r.client, log, block, args...).Result()
	if err != nil {
		if stderrors.Is(err, redisclient.Nil) {
			return nil, nil
		}
		return nil, classify(ctx, err, op, log)
	}

	entries, err := parseStreamsReply(reply, log)
	if err != nil {
		return nil, errors.Wrapf(err, "malformed %s reply for %s", op, log)
	}
	return entries, nil
}

// parseStreamsReply accepts the RESP2 shape [[name, entries]] and the RESP3
// shape {name: entries}.
func parseStreamsReply(reply interface{}, log string) ([]entities.LogEntry, error) {
	switch streams := reply.(type) {
	case nil:
		return nil, nil
	case []interface{}:
		for _, s := range streams {
			pair, ok := s.([]interface{})
			if !ok || len(pair) != 2 {
				return nil, fmt.Errorf("unexpected stream element %T", s)
			}
			name, err := toString(pair[0])
			if err != nil {
				return nil, err
			}
			if name == log {
				return parseEntries(pair[1])
			}
		}
		return nil, nil
	case map[interface{}]interface{}:
		for k, v := range streams {
			name, err := toString(k)
			if err != nil {
				return nil, err
			}
			if name == log {
				return parseEntries(v)
			}
		}
		return nil, nil
	default:
		return nil, fmt.Errorf("unexpected streams reply %T", reply)
	}
}

func parseEntries(raw interface{}) ([]entities.LogEntry, error) {
	items, ok := raw.([]interface{})
	if !ok {
		if raw == nil {
			return nil, nil
		}
		return nil, fmt.Errorf("unexpected entries reply %T", raw)
	}

	entries := make([]entities.LogEntry, 0, len(items))
	for _, item := range items {
		pair, ok := item.([]interface{})
		if !ok || len(pair) != 2 {
			return nil, fmt.Errorf("unexpected entry element %T", item)
		}

		rawID, err := toString(pair[0])
		if err != nil {
			return nil, err
		}
		id, err := entities.ParseStreamID(rawID)
		if err != nil {
			return nil, err
		}

		fields, err := parseFields(pair[1])
		if err != nil {
			return nil, err
		}
		entries = append(entries, entities.LogEntry{ID: id, Fields: fields})
	}
	return entries, nil
}

func parseFields(raw interface{}) (entities.Fields, error) {
	if raw == nil {
		return nil, nil
	}
	kv, ok := raw.([]interface{})
	if !ok || len(kv)%2 != 0 {
		return nil, fmt.Errorf("unexpected fields reply %T", raw)
	}

	fields := make(entities.Fields, 0, len(kv)/2)
	for i := 0; i < len(kv); i += 2 {
		key, err := toString(kv[i])
		if err != nil {
			return nil, err
		}
		value, err := toString(kv[i+1])
		if err != nil {
			return nil, err
		}
		fields = append(fields, entities.Field{Key: key, Value: value})
	}
	return fields, nil
}

func parsePendingEntry(raw interface{}) (entities.PendingEntry, error) {
	item, ok := raw.([]interface{})
	if !ok || len(item) != 4 {
		return entities.PendingEntry{}, fmt.Errorf("unexpected pending element %T", raw)
	}

	rawID, err := toString(item[0])
	if err != nil {
		return entities.PendingEntry{}, err
	}
	id, err := entities.ParseStreamID(rawID)
	if err != nil {
		return entities.PendingEntry{}, err
	}
	consumer, err := toString(item[1])
	if err != nil {
		return entities.PendingEntry{}, err
	}
	idle, err := toInt64(item[2])
	if err != nil {
		return entities.PendingEntry{}, err
	}
	deliveries, err := toInt64(item[3])
	if err != nil {
		return entities.PendingEntry{}, err
	}

	return entities.PendingEntry{
		ID:         id,
		Consumer:   consumer,
		Idle:       time.Duration(idle) * time.Millisecond,
		Deliveries: deliveries,
	}, nil
}

func toString(v interface{}) (string, error) {
	switch s := v.(type) {
	case string:
		return s, nil
	case []byte:
		return string(s), nil
	case int64:
		return strconv.FormatInt(s, 10), nil
	default:
		return "", fmt.Errorf("unexpected string element %T", v)
	}
}

func toInt64(v interface{}) (int64, error) {
	switch n := v.(type) {
	case int64:
		return n, nil
	case string:
		return strconv.ParseInt(n, 10, 64)
	default:
		return 0, fmt.Errorf("unexpected integer element %T", v)
	}
}
