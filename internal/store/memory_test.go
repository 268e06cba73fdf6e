package store

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryStoreGetMissing(t *testing.T) {
	s := NewMemoryStore()

	_, _, err := s.Get(context.Background(), "matches/none")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestMemoryStoreCompareAndSwap(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	version, err := s.Put(ctx, "matches/m1", []byte(`{"a":1}`), 0)
	require.NoError(t, err)
	assert.Equal(t, int64(1), version)

	// Writing against the observed version succeeds.
	version, err = s.CompareAndSwap(ctx, "matches/m1", []byte(`{"a":2}`), 1)
	require.NoError(t, err)
	assert.Equal(t, int64(2), version)

	// A second writer holding the stale version is rejected.
	_, err = s.CompareAndSwap(ctx, "matches/m1", []byte(`{"a":3}`), 1)
	assert.ErrorIs(t, err, ErrVersionMismatch)

	data, version, err := s.Get(ctx, "matches/m1")
	require.NoError(t, err)
	assert.Equal(t, int64(2), version)
	assert.JSONEq(t, `{"a":2}`, string(data))
}

func TestMemoryStoreCASCreateAssertsAbsence(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	_, err := s.CompareAndSwap(ctx, "matches/new", []byte(`{}`), 0)
	require.NoError(t, err)

	_, err = s.CompareAndSwap(ctx, "matches/new", []byte(`{}`), 0)
	assert.ErrorIs(t, err, ErrVersionMismatch)
}

func TestMemoryStoreSubscribeReceivesWrites(t *testing.T) {
	s := NewMemoryStore()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	events, err := s.Subscribe(ctx, "matches/m1")
	require.NoError(t, err)

	_, err = s.Put(context.Background(), "matches/m1", []byte(`{"status":"in_progress"}`), 0)
	require.NoError(t, err)

	select {
	case evt := <-events:
		assert.Equal(t, "matches/m1", evt.Path)
		assert.Equal(t, int64(1), evt.Version)
		assert.False(t, evt.Deleted)
	case <-time.After(time.Second):
		t.Fatal("expected change event")
	}
}

func TestMemoryStoreAcquireLatchIsOneShot(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	ok, err := s.Acquire(ctx, "finish:m1", time.Minute)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = s.Acquire(ctx, "finish:m1", time.Minute)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestMemoryStoreLeaderboard(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	require.NoError(t, s.IncrementScore(ctx, "subject:math", "stu1", 10))
	require.NoError(t, s.IncrementScore(ctx, "subject:math", "stu2", 30))
	require.NoError(t, s.IncrementScore(ctx, "subject:math", "stu1", 5))

	top, err := s.TopScores(ctx, "subject:math", 10)
	require.NoError(t, err)
	require.Len(t, top, 2)
	assert.Equal(t, ScoreEntry{Member: "stu2", Score: 30}, top[0])
	assert.Equal(t, ScoreEntry{Member: "stu1", Score: 15}, top[1])
}

func TestMemoryStoreCommitScoresIsAtomicAndOneShot(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	increments := []ScoreIncrement{
		{Board: "subject:math", Member: "stu1", Delta: 20},
		{Board: "overall", Member: "stu1", Delta: 20},
	}

	ok, err := s.CommitScores(ctx, "finish:m1", time.Minute, increments)
	require.NoError(t, err)
	assert.True(t, ok)

	// Replays find the latch held and apply nothing.
	ok, err = s.CommitScores(ctx, "finish:m1", time.Minute, increments)
	require.NoError(t, err)
	assert.False(t, ok)

	for _, board := range []string{"subject:math", "overall"} {
		top, err := s.TopScores(ctx, board, 10)
		require.NoError(t, err)
		require.Len(t, top, 1)
		assert.Equal(t, ScoreEntry{Member: "stu1", Score: 20}, top[0])
	}
}

func TestMemoryStoreSubscribeCancelDuringWrites(t *testing.T) {
	s := NewMemoryStore()
	path := "matches/contended"

	// Subscribers come and go while a writer hammers the path. Cancelling
	// mid-stream must never let a notification land on a closed channel.
	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < 2000; i++ {
			_, _ = s.Put(context.Background(), path, []byte(`{}`), 0)
		}
	}()

	for i := 0; i < 200; i++ {
		ctx, cancel := context.WithCancel(context.Background())
		events, err := s.Subscribe(ctx, path)
		require.NoError(t, err)
		cancel()
		// Drain until cleanup closes the channel.
		for range events {
		}
	}
	<-done
}

func TestMemoryStoreSetMultiAtomicVisibility(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	err := s.SetMulti(ctx, map[string][]byte{
		"matches/m1": []byte(`{"status":"finished"}`),
		"archive/m1": []byte(`{"status":"finished"}`),
		"summary/m1": []byte(`{"winner":"X"}`),
	})
	require.NoError(t, err)

	for _, path := range []string{"matches/m1", "archive/m1", "summary/m1"} {
		_, version, err := s.Get(ctx, path)
		require.NoError(t, err)
		assert.Equal(t, int64(1), version)
	}
}
