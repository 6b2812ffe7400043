package broker

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/KirkDiggler/streamclient/internal/entities"
	"github.com/KirkDiggler/streamclient/internal/errors"
	"github.com/KirkDiggler/streamclient/internal/pkg/clock"
)

// InMemoryConfig holds the configuration for the in-memory broker
type InMemoryConfig struct {
	Clock clock.Clock
}

// Validate ensures all required dependencies are provided
func (c *InMemoryConfig) Validate() error {
	if c.Clock == nil {
		return errors.InvalidArgument("clock is required")
	}
	return nil
}

type memoryStore struct {
	mu    sync.Mutex
	clock clock.Clock
	logs  map[string]*memoryLog
	// closed and replaced on every change so blocked readers wake up
	changed chan struct{}
}

type memoryLog struct {
	entries []entities.LogEntry
	lastID  entities.StreamID
	groups  map[string]*memoryGroup
}

type memoryGroup struct {
	lastDelivered entities.StreamID
	pending       map[entities.StreamID]*pendingState
}

type pendingState struct {
	consumer    string
	deliveredAt time.Time
	deliveries  int64
}

// InMemoryClient implements Client over process memory. Handles created with
// Connect share one store, the way several connections share one server.
type InMemoryClient struct {
	store     *memoryStore
	closeOnce sync.Once
	closed    chan struct{}
}

// NewInMemory creates a broker with an empty store
func NewInMemory(cfg *InMemoryConfig) (*InMemoryClient, error) {
	if cfg == nil {
		return nil, errors.InvalidArgument("config is required")
	}
	if err := cfg.Validate(); err != nil {
		return nil, errors.Wrap(err, "invalid config")
	}

	store := &memoryStore{
		clock:   cfg.Clock,
		logs:    make(map[string]*memoryLog),
		changed: make(chan struct{}),
	}
	return newMemoryHandle(store), nil
}

func newMemoryHandle(store *memoryStore) *InMemoryClient {
	return &InMemoryClient{store: store, closed: make(chan struct{})}
}

// Connect opens another handle on the same store
func (m *InMemoryClient) Connect() *InMemoryClient {
	return newMemoryHandle(m.store)
}

// Factory hands out handles on this client's store
func (m *InMemoryClient) Factory() Factory {
	return func() (Client, error) {
		return m.Connect(), nil
	}
}

var _ Client = (*InMemoryClient)(nil)

func (m *InMemoryClient) checkOpen(log string) error {
	select {
	case <-m.closed:
		return connectionError(log, "connection is closed")
	default:
		return nil
	}
}

// Append adds one entry, assigning the next ID from the clock
func (m *InMemoryClient) Append(ctx context.Context, input AppendInput) (*AppendOutput, error) {
	if err := m.checkOpen(input.Log); err != nil {
		return nil, err
	}
	if err := validateLog(input.Log); err != nil {
		return nil, err
	}
	if err := input.Fields.Validate(); err != nil {
		return nil, errors.WrapWithCode(err, errors.CodeInvalidArgument, "invalid entry").WithMeta("log", input.Log)
	}
	if input.MaxLen < 0 {
		return nil, rejected(input.Log, "max len must not be negative")
	}

	s := m.store
	s.mu.Lock()
	defer s.mu.Unlock()

	l := s.logOrCreate(input.Log)
	id := nextID(l.lastID, s.clock.Now())
	l.lastID = id
	l.entries = append(l.entries, entities.LogEntry{ID: id, Fields: input.Fields.Clone()})
	if input.MaxLen > 0 {
		l.trim(input.MaxLen)
	}
	s.notify()

	return &AppendOutput{ID: id}, nil
}

// Read returns entries after input.After, waiting up to Block for new ones
func (m *InMemoryClient) Read(ctx context.Context, input ReadInput) (*ReadOutput, error) {
	if err := m.checkOpen(input.Log); err != nil {
		return nil, err
	}
	if err := validateLog(input.Log); err != nil {
		return nil, err
	}
	if err := validateCount(input.Log, input.Count); err != nil {
		return nil, err
	}
	if input.Block < 0 {
		return nil, rejected(input.Log, "block must not be negative")
	}

	after := input.After
	if after.IsLatest() {
		m.store.mu.Lock()
		if l, ok := m.store.logs[input.Log]; ok {
			after = l.lastID
		} else {
			after = entities.Beginning
		}
		m.store.mu.Unlock()
	}

	entries, err := m.wait(ctx, input.Log, input.Block, func(s *memoryStore) ([]entities.LogEntry, error) {
		l, ok := s.logs[input.Log]
		if !ok {
			return nil, nil
		}
		return l.after(after, input.Count), nil
	})
	if err != nil {
		return nil, err
	}
	return &ReadOutput{Entries: entries}, nil
}

// CreateGroup creates a group, creating the log when missing
func (m *InMemoryClient) CreateGroup(ctx context.Context, input CreateGroupInput) error {
	if err := m.checkOpen(input.Log); err != nil {
		return err
	}
	if err := validateGroup(input.Log, input.Group); err != nil {
		return err
	}

	s := m.store
	s.mu.Lock()
	defer s.mu.Unlock()

	l := s.logOrCreate(input.Log)
	if _, ok := l.groups[input.Group]; ok {
		return groupExists(input.Log, input.Group)
	}

	start := input.Start
	if start.IsLatest() {
		start = l.lastID
	}
	l.groups[input.Group] = &memoryGroup{
		lastDelivered: start,
		pending:       make(map[entities.StreamID]*pendingState),
	}
	return nil
}

// ReadGroup delivers never-delivered entries, waiting up to Block
func (m *InMemoryClient) ReadGroup(ctx context.Context, input ReadGroupInput) (*ReadGroupOutput, error) {
	if err := m.checkOpen(input.Log); err != nil {
		return nil, err
	}
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

	entries, err := m.wait(ctx, input.Log, input.Block, func(s *memoryStore) ([]entities.LogEntry, error) {
		g, l, err := s.group(input.Log, input.Group)
		if err != nil {
			return nil, err
		}

		batch := l.after(g.lastDelivered, input.Count)
		now := s.clock.Now()
		for _, e := range batch {
			g.pending[e.ID] = &pendingState{consumer: input.Consumer, deliveredAt: now, deliveries: 1}
			g.lastDelivered = e.ID
		}
		return batch, nil
	})
	if err != nil {
		return nil, err
	}
	return &ReadGroupOutput{Entries: entries}, nil
}

// Ack removes an entry from the pending set
func (m *InMemoryClient) Ack(ctx context.Context, input AckInput) error {
	if err := m.checkOpen(input.Log); err != nil {
		return err
	}
	if err := validateGroup(input.Log, input.Group); err != nil {
		return err
	}
	if input.ID.IsSentinel() {
		return rejected(input.Log, "cannot ack a sentinel id")
	}

	s := m.store
	s.mu.Lock()
	defer s.mu.Unlock()

	g, _, err := s.group(input.Log, input.Group)
	if err != nil {
		// XACK on a missing group acknowledges nothing
		return notPending(input.Log, input.Group, input.ID)
	}
	if _, ok := g.pending[input.ID]; !ok {
		return notPending(input.Log, input.Group, input.ID)
	}
	delete(g.pending, input.ID)
	return nil
}

// Pending lists pending entries in ID order
func (m *InMemoryClient) Pending(ctx context.Context, input PendingInput) (*PendingOutput, error) {
	if err := m.checkOpen(input.Log); err != nil {
		return nil, err
	}
	if err := validateGroup(input.Log, input.Group); err != nil {
		return nil, err
	}
	if err := validateCount(input.Log, input.Count); err != nil {
		return nil, err
	}

	s := m.store
	s.mu.Lock()
	defer s.mu.Unlock()

	g, _, err := s.group(input.Log, input.Group)
	if err != nil {
		return nil, err
	}

	now := s.clock.Now()
	entries := make([]entities.PendingEntry, 0, len(g.pending))
	for id, p := range g.pending {
		if input.Consumer != "" && p.consumer != input.Consumer {
			continue
		}
		entries = append(entries, entities.PendingEntry{
			ID:         id,
			Consumer:   p.consumer,
			Idle:       now.Sub(p.deliveredAt),
			Deliveries: p.deliveries,
		})
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].ID.Less(entries[j].ID) })
	if int64(len(entries)) > input.Count {
		entries = entries[:input.Count]
	}

	return &PendingOutput{Entries: entries}, nil
}

// Trim drops the oldest entries beyond MaxLen
func (m *InMemoryClient) Trim(ctx context.Context, input TrimInput) (*TrimOutput, error) {
	if err := m.checkOpen(input.Log); err != nil {
		return nil, err
	}
	if err := validateLog(input.Log); err != nil {
		return nil, err
	}
	if input.MaxLen < 0 {
		return nil, rejected(input.Log, "max len must not be negative")
	}

	s := m.store
	s.mu.Lock()
	defer s.mu.Unlock()

	l, ok := s.logs[input.Log]
	if !ok {
		return &TrimOutput{}, nil
	}
	return &TrimOutput{Dropped: l.trim(input.MaxLen)}, nil
}

// DeleteLog removes the log and its groups
func (m *InMemoryClient) DeleteLog(ctx context.Context, input DeleteLogInput) (*DeleteLogOutput, error) {
	if err := m.checkOpen(input.Log); err != nil {
		return nil, err
	}
	if err := validateLog(input.Log); err != nil {
		return nil, err
	}

	s := m.store
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.logs[input.Log]; !ok {
		return &DeleteLogOutput{}, nil
	}
	delete(s.logs, input.Log)
	s.notify()
	return &DeleteLogOutput{Deleted: 1}, nil
}

// Close marks the handle closed; blocked reads on it return a connection error
func (m *InMemoryClient) Close() error {
	m.closeOnce.Do(func() { close(m.closed) })
	return nil
}

// wait runs collect under the store lock until it yields entries, the block
// expires, the context ends or the handle closes.
func (m *InMemoryClient) wait(
	ctx context.Context,
	log string,
	block time.Duration,
	collect func(s *memoryStore) ([]entities.LogEntry, error),
) ([]entities.LogEntry, error) {
	s := m.store

	var timeout <-chan time.Time
	if block > 0 {
		timer := time.NewTimer(block)
		defer timer.Stop()
		timeout = timer.C
	}

	for {
		s.mu.Lock()
		entries, err := collect(s)
		changed := s.changed
		s.mu.Unlock()

		if err != nil {
			return nil, err
		}
		if len(entries) > 0 || block <= 0 {
			return entries, nil
		}

		select {
		case <-changed:
		case <-timeout:
			return nil, nil
		case <-ctx.Done():
			return nil, errors.WrapWithCode(ctx.Err(), errors.GetCode(ctx.Err()), "read interrupted").WithMeta("log", log)
		case <-m.closed:
			return nil, connectionError(log, "connection closed during read")
		}
	}
}

func (s *memoryStore) notify() {
	close(s.changed)
	s.changed = make(chan struct{})
}

func (s *memoryStore) logOrCreate(name string) *memoryLog {
	l, ok := s.logs[name]
	if !ok {
		l = &memoryLog{groups: make(map[string]*memoryGroup)}
		s.logs[name] = l
	}
	return l
}

func (s *memoryStore) group(log, group string) (*memoryGroup, *memoryLog, error) {
	l, ok := s.logs[log]
	if !ok {
		return nil, nil, logMissing(log, group)
	}
	g, ok := l.groups[group]
	if !ok {
		return nil, nil, logMissing(log, group)
	}
	return g, l, nil
}

// after returns copies of up to count entries with ID > id
func (l *memoryLog) after(id entities.StreamID, count int64) []entities.LogEntry {
	start := sort.Search(len(l.entries), func(i int) bool {
		return l.entries[i].ID.After(id)
	})

	end := len(l.entries)
	if int64(end-start) > count {
		end = start + int(count)
	}

	out := make([]entities.LogEntry, 0, end-start)
	for _, e := range l.entries[start:end] {
		out = append(out, e.Clone())
	}
	return out
}

func (l *memoryLog) trim(maxLen int64) int64 {
	excess := int64(len(l.entries)) - maxLen
	if excess <= 0 {
		return 0
	}
	kept := make([]entities.LogEntry, len(l.entries)-int(excess))
	copy(kept, l.entries[excess:])
	l.entries = kept
	return excess
}

// nextID follows the Redis rule: the clock's millisecond when it moved
// forward, otherwise the previous millisecond with the next sequence.
func nextID(last entities.StreamID, now time.Time) entities.StreamID {
	ms := now.UnixMilli()
	if ms < 0 {
		ms = 0
	}
	if uint64(ms) > last.Millis {
		return entities.NewStreamID(uint64(ms), 0)
	}
	return last.Next()
}
