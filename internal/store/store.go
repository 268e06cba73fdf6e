package store

import (
	"context"
	"errors"
	"time"
)

// ErrVersionMismatch is returned by CompareAndSwap when the document moved
// since the caller last observed it. Callers re-read and retry.
var ErrVersionMismatch = errors.New("store: document version mismatch")

// ErrNotFound is returned for reads of absent documents.
var ErrNotFound = errors.New("store: document not found")

// Event is a change notification for a subscribed path. Data carries the
// new document payload; Deleted marks removals.
type Event struct {
	Path    string
	Data    []byte
	Version int64
	Deleted bool
}

// ScoreEntry is one leaderboard row.
type ScoreEntry struct {
	Member string  `json:"member"`
	Score  float64 `json:"score"`
}

// ScoreIncrement is one leaderboard delta inside an atomic commit.
type ScoreIncrement struct {
	Board  string
	Member string
	Delta  float64
}

// Store is the realtime document store contract. Documents are opaque JSON
// payloads addressed by path and guarded by a monotonically increasing
// version. All writes publish change events to subscribers of the path.
type Store interface {
	// Get returns the payload and current version, or ErrNotFound.
	Get(ctx context.Context, path string) ([]byte, int64, error)

	// Put creates or replaces a document unconditionally and returns the
	// new version. Reserved for document creation; live documents are
	// mutated through CompareAndSwap.
	Put(ctx context.Context, path string, data []byte, ttl time.Duration) (int64, error)

	// CompareAndSwap replaces the payload only when the stored version
	// equals expected. Returns ErrVersionMismatch otherwise. An expected
	// version of zero asserts the document does not exist yet.
	CompareAndSwap(ctx context.Context, path string, data []byte, expected int64) (int64, error)

	// SetMulti writes several paths atomically: all or none become visible.
	SetMulti(ctx context.Context, docs map[string][]byte) error

	// Delete removes a document. Missing documents are not an error.
	Delete(ctx context.Context, path string) error

	// Subscribe streams change events for a path until ctx is cancelled.
	Subscribe(ctx context.Context, path string) (<-chan Event, error)

	// Acquire takes a one-shot idempotency latch. The first caller wins;
	// later callers get false until the latch expires.
	Acquire(ctx context.Context, key string, ttl time.Duration) (bool, error)

	// IncrementScore atomically adds delta to a leaderboard member.
	IncrementScore(ctx context.Context, board, member string, delta float64) error

	// CommitScores takes the latch at key and applies every increment in
	// one atomic step. Returns false, applying nothing, when the latch is
	// already held. An error leaves the latch free and the boards
	// untouched so the caller can retry the whole commit.
	CommitScores(ctx context.Context, key string, ttl time.Duration, increments []ScoreIncrement) (bool, error)

	// TopScores returns the best n members of a leaderboard, descending.
	TopScores(ctx context.Context, board string, n int64) ([]ScoreEntry, error)
}
