package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const (
	docKeyPrefix   = "doc:"
	eventKeyPrefix = "evt:"
	latchKeyPrefix = "latch:"
	boardKeyPrefix = "board:"
)

// casScript swaps the payload only when the stored version matches
// ARGV[1]. A stored version of 0 means "absent". Returns the new version,
// or -1 on mismatch.
var casScript = redis.NewScript(`
local current = tonumber(redis.call('HGET', KEYS[1], 'version') or '0')
if current ~= tonumber(ARGV[1]) then
    return -1
end
local next = current + 1
redis.call('HSET', KEYS[1], 'data', ARGV[2], 'version', next)
if tonumber(ARGV[3]) > 0 then
    redis.call('PEXPIRE', KEYS[1], ARGV[3])
end
return next
`)

// commitScript takes the latch at KEYS[1] and applies the member/delta
// pairs in ARGV to the boards in KEYS[2..]. The script runs atomically,
// so a held latch means every increment has already been applied and a
// script failure applies none of them.
var commitScript = redis.NewScript(`
if redis.call('EXISTS', KEYS[1]) == 1 then
    return 0
end
if tonumber(ARGV[1]) > 0 then
    redis.call('SET', KEYS[1], ARGV[2], 'PX', ARGV[1])
else
    redis.call('SET', KEYS[1], ARGV[2])
end
local arg = 3
for i = 2, #KEYS do
    redis.call('ZINCRBY', KEYS[i], ARGV[arg + 1], ARGV[arg])
    arg = arg + 2
end
return 1
`)

// RedisStore implements Store on a Redis backend. Documents live in hashes
// with a data payload and a version counter, change events ride pub/sub,
// and leaderboards are sorted sets.
type RedisStore struct {
	client *redis.Client
	logger *zap.Logger
	ttl    time.Duration
}

// NewRedisStore constructs a RedisStore. ttl bounds document lifetime;
// zero keeps documents forever.
func NewRedisStore(client *redis.Client, logger *zap.Logger, ttl time.Duration) *RedisStore {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RedisStore{client: client, logger: logger, ttl: ttl}
}

// Get returns the payload and version at path.
func (s *RedisStore) Get(ctx context.Context, path string) ([]byte, int64, error) {
	values, err := s.client.HMGet(ctx, docKeyPrefix+path, "data", "version").Result()
	if err != nil {
		return nil, 0, fmt.Errorf("get %s: %w", path, err)
	}
	if values[0] == nil || values[1] == nil {
		return nil, 0, ErrNotFound
	}
	data, ok := values[0].(string)
	if !ok {
		return nil, 0, fmt.Errorf("get %s: unexpected payload type", path)
	}
	var version int64
	if raw, ok := values[1].(string); ok {
		if _, err := fmt.Sscan(raw, &version); err != nil {
			return nil, 0, fmt.Errorf("get %s: bad version: %w", path, err)
		}
	}
	return []byte(data), version, nil
}

// Put creates or replaces a document unconditionally.
func (s *RedisStore) Put(ctx context.Context, path string, data []byte, ttl time.Duration) (int64, error) {
	key := docKeyPrefix + path
	pipe := s.client.TxPipeline()
	incr := pipe.HIncrBy(ctx, key, "version", 1)
	pipe.HSet(ctx, key, "data", data)
	if ttl > 0 {
		pipe.PExpire(ctx, key, ttl)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return 0, fmt.Errorf("put %s: %w", path, err)
	}
	version := incr.Val()
	s.publish(ctx, path, data, version, false)
	return version, nil
}

// CompareAndSwap performs an optimistic-concurrency write.
func (s *RedisStore) CompareAndSwap(ctx context.Context, path string, data []byte, expected int64) (int64, error) {
	ttlMillis := int64(0)
	if s.ttl > 0 {
		ttlMillis = s.ttl.Milliseconds()
	}
	result, err := casScript.Run(ctx, s.client, []string{docKeyPrefix + path}, expected, data, ttlMillis).Int64()
	if err != nil {
		return 0, fmt.Errorf("cas %s: %w", path, err)
	}
	if result < 0 {
		return 0, ErrVersionMismatch
	}
	s.publish(ctx, path, data, result, false)
	return result, nil
}

// SetMulti writes several documents in one MULTI/EXEC transaction so a
// connection loss mid-write cannot leave a partial update behind.
func (s *RedisStore) SetMulti(ctx context.Context, docs map[string][]byte) error {
	pipe := s.client.TxPipeline()
	incrs := make(map[string]*redis.IntCmd, len(docs))
	for path, data := range docs {
		key := docKeyPrefix + path
		incrs[path] = pipe.HIncrBy(ctx, key, "version", 1)
		pipe.HSet(ctx, key, "data", data)
		if s.ttl > 0 {
			pipe.PExpire(ctx, key, s.ttl)
		}
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("setmulti: %w", err)
	}
	for path, data := range docs {
		s.publish(ctx, path, data, incrs[path].Val(), false)
	}
	return nil
}

// Delete removes a document and notifies subscribers.
func (s *RedisStore) Delete(ctx context.Context, path string) error {
	if err := s.client.Del(ctx, docKeyPrefix+path).Err(); err != nil {
		return fmt.Errorf("delete %s: %w", path, err)
	}
	s.publish(ctx, path, nil, 0, true)
	return nil
}

// Subscribe relays pub/sub messages for path as Events until ctx ends.
func (s *RedisStore) Subscribe(ctx context.Context, path string) (<-chan Event, error) {
	sub := s.client.Subscribe(ctx, eventKeyPrefix+path)
	if _, err := sub.Receive(ctx); err != nil {
		_ = sub.Close()
		return nil, fmt.Errorf("subscribe %s: %w", path, err)
	}

	events := make(chan Event, 16)
	go func() {
		defer close(events)
		defer sub.Close() //nolint:errcheck
		ch := sub.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-ch:
				if !ok {
					return
				}
				var evt Event
				if err := json.Unmarshal([]byte(msg.Payload), &evt); err != nil {
					s.logger.Warn("dropping malformed store event",
						zap.String("path", path), zap.Error(err))
					continue
				}
				select {
				case events <- evt:
				case <-ctx.Done():
					return
				}
			}
		}
	}()
	return events, nil
}

// Acquire takes an idempotency latch via SETNX semantics.
func (s *RedisStore) Acquire(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	ok, err := s.client.SetNX(ctx, latchKeyPrefix+key, time.Now().UnixMilli(), ttl).Result()
	if err != nil {
		return false, fmt.Errorf("acquire %s: %w", key, err)
	}
	return ok, nil
}

// IncrementScore adds delta to a leaderboard member atomically.
func (s *RedisStore) IncrementScore(ctx context.Context, board, member string, delta float64) error {
	if err := s.client.ZIncrBy(ctx, boardKeyPrefix+board, delta, member).Err(); err != nil {
		return fmt.Errorf("increment %s/%s: %w", board, member, err)
	}
	return nil
}

// CommitScores applies all increments behind the latch in one Lua call.
func (s *RedisStore) CommitScores(ctx context.Context, key string, ttl time.Duration, increments []ScoreIncrement) (bool, error) {
	keys := make([]string, 0, len(increments)+1)
	keys = append(keys, latchKeyPrefix+key)
	args := make([]interface{}, 0, len(increments)*2+2)
	args = append(args, ttl.Milliseconds(), time.Now().UnixMilli())
	for _, inc := range increments {
		keys = append(keys, boardKeyPrefix+inc.Board)
		args = append(args, inc.Member, inc.Delta)
	}
	result, err := commitScript.Run(ctx, s.client, keys, args...).Int64()
	if err != nil {
		return false, fmt.Errorf("commit %s: %w", key, err)
	}
	return result == 1, nil
}

// TopScores returns the highest-scored members of a board.
func (s *RedisStore) TopScores(ctx context.Context, board string, n int64) ([]ScoreEntry, error) {
	if n <= 0 {
		return nil, nil
	}
	rows, err := s.client.ZRevRangeWithScores(ctx, boardKeyPrefix+board, 0, n-1).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, fmt.Errorf("top %s: %w", board, err)
	}
	entries := make([]ScoreEntry, 0, len(rows))
	for _, row := range rows {
		member, _ := row.Member.(string)
		entries = append(entries, ScoreEntry{Member: member, Score: row.Score})
	}
	return entries, nil
}

func (s *RedisStore) publish(ctx context.Context, path string, data []byte, version int64, deleted bool) {
	payload, err := json.Marshal(Event{Path: path, Data: data, Version: version, Deleted: deleted})
	if err != nil {
		s.logger.Warn("failed to encode store event", zap.String("path", path), zap.Error(err))
		return
	}
	if err := s.client.Publish(ctx, eventKeyPrefix+path, payload).Err(); err != nil {
		s.logger.Warn("failed to publish store event", zap.String("path", path), zap.Error(err))
	}
}
