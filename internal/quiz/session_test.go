package quiz

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/madrasati/madrasati-api/internal/models"
	"github.com/madrasati/madrasati-api/internal/store"
)

func TestSessionForwardsStatesUntilFinished(t *testing.T) {
	mem := store.NewMemoryStore()
	c := NewCoordinator(mem, &stubQuestions{}, nil, nil, Config{})
	match := startedMatch(t, c, models.PolicyWinnerTakesAll)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	out := make(chan models.XOGameState, 8)
	done := make(chan error, 1)
	go func() {
		done <- NewSession(c, match.ID, nil).Run(ctx, out)
	}()

	// The initial read arrives before any new writes.
	select {
	case state := <-out:
		assert.Equal(t, models.GameInProgress, state.Status)
	case <-ctx.Done():
		t.Fatal("no initial state")
	}

	_, err := c.AppendChat(ctx, match.ID, "p1", "أحمد", "جاهز؟")
	require.NoError(t, err)
	select {
	case state := <-out:
		require.Len(t, state.Chat, 1)
	case <-ctx.Done():
		t.Fatal("no chat update")
	}

	_, err = c.Forfeit(ctx, match.ID, "p2")
	require.NoError(t, err)

	select {
	case state := <-out:
		assert.Equal(t, models.GameFinished, state.Status)
	case <-ctx.Done():
		t.Fatal("no finish update")
	}
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-ctx.Done():
		t.Fatal("session did not stop")
	}
}

func TestSessionExpiresOverdueQuestion(t *testing.T) {
	mem := store.NewMemoryStore()
	questions := &stubQuestions{queue: []*models.XOQuestion{question("q1", 0)}}
	c := NewCoordinator(mem, questions, nil, nil, Config{
		QuestionTimeLimit: time.Second,
	})
	match := startedMatch(t, c, models.PolicyWinnerTakesAll)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	_, err := c.DrawQuestion(ctx, match.ID, "p1", 0)
	require.NoError(t, err)

	out := make(chan models.XOGameState, 8)
	go func() {
		_ = NewSession(c, match.ID, nil).Run(ctx, out)
	}()

	deadline := time.After(8 * time.Second)
	for {
		select {
		case state := <-out:
			if state.CurrentQuestion == nil && state.Status == models.GameInProgress {
				assert.False(t, state.XIsNext, "timeout advances the turn")
				assert.Nil(t, state.Board[0])
				return
			}
		case <-deadline:
			t.Fatal("question was never expired")
		}
	}
}
