package quiz

import (
	"context"
	"encoding/json"
	"time"

	"go.uber.org/zap"

	"github.com/madrasati/madrasati-api/internal/models"
)

// Session is the per-client reactive loop for one match. It subscribes to
// the match document, forwards decoded states to the consumer, and wakes
// itself up for question deadlines and abandonment so the match always
// reaches finished even when the players stop driving it.
type Session struct {
	coordinator *Coordinator
	matchID     string
	logger      *zap.Logger
}

// NewSession builds a session for one match. logger may be nil.
func NewSession(coordinator *Coordinator, matchID string, logger *zap.Logger) *Session {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Session{coordinator: coordinator, matchID: matchID, logger: logger}
}

// Run blocks until the match finishes or ctx ends. Every observed state,
// including the initial read, is sent to out; out is closed on return.
func (s *Session) Run(ctx context.Context, out chan<- models.XOGameState) error {
	defer close(out)

	events, err := s.coordinator.store.Subscribe(ctx, MatchPath(s.matchID))
	if err != nil {
		return err
	}

	state, _, err := s.coordinator.loadMatch(ctx, s.matchID)
	if err != nil {
		return err
	}
	if !s.forward(ctx, out, state) {
		return ctx.Err()
	}
	if state.Status == models.GameFinished {
		return nil
	}

	timer := time.NewTimer(s.untilWakeup(state))
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case evt, ok := <-events:
			if !ok {
				return ctx.Err()
			}
			if evt.Deleted {
				return nil
			}
			var next models.XOGameState
			if err := json.Unmarshal(evt.Data, &next); err != nil {
				s.logger.Warn("dropping malformed match event",
					zap.String("match_id", s.matchID), zap.Error(err))
				continue
			}
			state = &next
			if !s.forward(ctx, out, state) {
				return ctx.Err()
			}
			if state.Status == models.GameFinished {
				return nil
			}
			resetTimer(timer, s.untilWakeup(state))

		case <-timer.C:
			next, err := s.wake(ctx, state)
			if err != nil {
				s.logger.Warn("session wake-up failed",
					zap.String("match_id", s.matchID), zap.Error(err))
				resetTimer(timer, time.Second)
				continue
			}
			state = next
			if state.Status == models.GameFinished {
				s.forward(ctx, out, state)
				return nil
			}
			resetTimer(timer, s.untilWakeup(state))
		}
	}
}

// wake runs the action the timer fired for: expire an overdue question, or
// abandon a match that has sat idle past the abandonment window.
func (s *Session) wake(ctx context.Context, state *models.XOGameState) (*models.XOGameState, error) {
	if state.CurrentQuestion != nil {
		return s.coordinator.ExpireQuestion(ctx, s.matchID)
	}
	if s.idleFor(state) >= s.coordinator.cfg.AbandonAfter {
		return s.coordinator.Abandon(ctx, s.matchID)
	}
	// Raced with a fresh write; re-read and keep going.
	next, _, err := s.coordinator.loadMatch(ctx, s.matchID)
	return next, err
}

// untilWakeup picks the next deadline: the bound question's expiry when
// one is in play, otherwise the abandonment cutoff.
func (s *Session) untilWakeup(state *models.XOGameState) time.Duration {
	var until time.Duration
	if state.CurrentQuestion != nil && state.QuestionTimerStart != nil {
		limit := s.coordinator.cfg.QuestionTimeLimit
		if state.Settings.QuestionTimeLimit > 0 {
			limit = time.Duration(state.Settings.QuestionTimeLimit) * time.Second
		}
		deadline := time.UnixMilli(*state.QuestionTimerStart).Add(limit)
		until = deadline.Sub(s.coordinator.now())
	} else {
		until = s.coordinator.cfg.AbandonAfter - s.idleFor(state)
	}
	// Floor keeps a wake-up that resolves to a no-op from spinning.
	if until < 250*time.Millisecond {
		until = 250 * time.Millisecond
	}
	return until
}

func (s *Session) idleFor(state *models.XOGameState) time.Duration {
	return s.coordinator.now().Sub(time.UnixMilli(state.UpdatedAt))
}

func (s *Session) forward(ctx context.Context, out chan<- models.XOGameState, state *models.XOGameState) bool {
	select {
	case out <- *state:
		return true
	case <-ctx.Done():
		return false
	}
}

func resetTimer(timer *time.Timer, d time.Duration) {
	if !timer.Stop() {
		select {
		case <-timer.C:
		default:
		}
	}
	timer.Reset(d)
}
