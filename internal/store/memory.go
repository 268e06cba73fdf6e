package store

import (
	"context"
	"sort"
	"sync"
	"time"
)

type memoryDoc struct {
	data    []byte
	version int64
}

// MemoryStore is an in-process Store with the same versioning and event
// semantics as the Redis backend. It backs tests and single-player
// practice matches that never leave the device.
type MemoryStore struct {
	mu          sync.Mutex
	docs        map[string]memoryDoc
	latches     map[string]time.Time
	boards      map[string]map[string]float64
	subscribers map[string][]chan Event
}

// NewMemoryStore constructs an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		docs:        make(map[string]memoryDoc),
		latches:     make(map[string]time.Time),
		boards:      make(map[string]map[string]float64),
		subscribers: make(map[string][]chan Event),
	}
}

// Get returns the payload and version at path.
func (s *MemoryStore) Get(ctx context.Context, path string) ([]byte, int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	doc, ok := s.docs[path]
	if !ok {
		return nil, 0, ErrNotFound
	}
	data := make([]byte, len(doc.data))
	copy(data, doc.data)
	return data, doc.version, nil
}

// Put creates or replaces a document unconditionally.
func (s *MemoryStore) Put(ctx context.Context, path string, data []byte, _ time.Duration) (int64, error) {
	s.mu.Lock()
	doc := s.docs[path]
	doc.version++
	doc.data = append([]byte(nil), data...)
	s.docs[path] = doc
	s.mu.Unlock()

	s.notify(path, data, doc.version, false)
	return doc.version, nil
}

// CompareAndSwap replaces the payload only on a version match.
func (s *MemoryStore) CompareAndSwap(ctx context.Context, path string, data []byte, expected int64) (int64, error) {
	s.mu.Lock()
	doc := s.docs[path]
	if doc.version != expected {
		s.mu.Unlock()
		return 0, ErrVersionMismatch
	}
	doc.version++
	doc.data = append([]byte(nil), data...)
	s.docs[path] = doc
	version := doc.version
	s.mu.Unlock()

	s.notify(path, data, version, false)
	return version, nil
}

// SetMulti writes all paths under one lock acquisition.
func (s *MemoryStore) SetMulti(ctx context.Context, docs map[string][]byte) error {
	type written struct {
		path    string
		data    []byte
		version int64
	}
	s.mu.Lock()
	writes := make([]written, 0, len(docs))
	for path, data := range docs {
		doc := s.docs[path]
		doc.version++
		doc.data = append([]byte(nil), data...)
		s.docs[path] = doc
		writes = append(writes, written{path: path, data: data, version: doc.version})
	}
	s.mu.Unlock()

	for _, w := range writes {
		s.notify(w.path, w.data, w.version, false)
	}
	return nil
}

// Delete removes a document.
func (s *MemoryStore) Delete(ctx context.Context, path string) error {
	s.mu.Lock()
	delete(s.docs, path)
	s.mu.Unlock()
	s.notify(path, nil, 0, true)
	return nil
}

// Subscribe registers a change listener for path.
func (s *MemoryStore) Subscribe(ctx context.Context, path string) (<-chan Event, error) {
	events := make(chan Event, 16)
	s.mu.Lock()
	s.subscribers[path] = append(s.subscribers[path], events)
	s.mu.Unlock()

	go func() {
		<-ctx.Done()
		s.mu.Lock()
		subs := s.subscribers[path]
		for i, ch := range subs {
			if ch == events {
				s.subscribers[path] = append(subs[:i], subs[i+1:]...)
				break
			}
		}
		// notify sends under the same lock, so closing here cannot race
		// a send on this channel.
		close(events)
		s.mu.Unlock()
	}()
	return events, nil
}

// Acquire takes the idempotency latch if free or expired.
func (s *MemoryStore) Acquire(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if expiry, held := s.latches[key]; held && time.Now().Before(expiry) {
		return false, nil
	}
	s.latches[key] = time.Now().Add(ttl)
	return true, nil
}

// IncrementScore adds delta to a leaderboard member.
func (s *MemoryStore) IncrementScore(ctx context.Context, board, member string, delta float64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.boards[board] == nil {
		s.boards[board] = make(map[string]float64)
	}
	s.boards[board][member] += delta
	return nil
}

// CommitScores takes the latch and applies the increments under one lock
// acquisition, so a held latch always means a fully applied commit.
func (s *MemoryStore) CommitScores(ctx context.Context, key string, ttl time.Duration, increments []ScoreIncrement) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if expiry, held := s.latches[key]; held && time.Now().Before(expiry) {
		return false, nil
	}
	s.latches[key] = time.Now().Add(ttl)
	for _, inc := range increments {
		if s.boards[inc.Board] == nil {
			s.boards[inc.Board] = make(map[string]float64)
		}
		s.boards[inc.Board][inc.Member] += inc.Delta
	}
	return true, nil
}

// TopScores returns the best n members, descending by score.
func (s *MemoryStore) TopScores(ctx context.Context, board string, n int64) ([]ScoreEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	entries := make([]ScoreEntry, 0, len(s.boards[board]))
	for member, score := range s.boards[board] {
		entries = append(entries, ScoreEntry{Member: member, Score: score})
	}
	sort.Slice(entries, func(i, j int) bool {
		if entries[i].Score != entries[j].Score {
			return entries[i].Score > entries[j].Score
		}
		return entries[i].Member < entries[j].Member
	})
	if int64(len(entries)) > n {
		entries = entries[:n]
	}
	return entries, nil
}

func (s *MemoryStore) notify(path string, data []byte, version int64, deleted bool) {
	evt := Event{Path: path, Data: append([]byte(nil), data...), Version: version, Deleted: deleted}
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, ch := range s.subscribers[path] {
		select {
		case ch <- evt:
		default:
			// Slow subscribers drop events; they re-read on next wake-up.
		}
	}
}
