package quiz

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/madrasati/madrasati-api/internal/models"
	"github.com/madrasati/madrasati-api/internal/store"
	apperrors "github.com/madrasati/madrasati-api/pkg/errors"
)

const matchPathPrefix = "matches/"

// MatchPath returns the store path of a match document.
func MatchPath(id string) string {
	return matchPathPrefix + id
}

// errUnchanged tells the mutation loop to skip the write.
var errUnchanged = errors.New("quiz: state unchanged")

// QuestionSource supplies fresh questions for a match round.
type QuestionSource interface {
	Draw(ctx context.Context, principalID, grade, subject string, exclude []string) (*models.XOQuestion, error)
}

// Metrics receives coordinator-level counters. Implementations must be
// safe for concurrent use; a nil Metrics disables reporting.
type Metrics interface {
	CASConflict()
	MatchStarted()
	MatchFinished()
}

// Config carries the match policy knobs.
type Config struct {
	QuestionTimeLimit time.Duration
	WriteRetries      int
	PointsPerCell     float64
	MatchTTL          time.Duration
	FinishLatchTTL    time.Duration
	AbandonAfter      time.Duration
}

func (c Config) withDefaults() Config {
	if c.QuestionTimeLimit <= 0 {
		c.QuestionTimeLimit = 60 * time.Second
	}
	if c.WriteRetries <= 0 {
		c.WriteRetries = 3
	}
	if c.PointsPerCell <= 0 {
		c.PointsPerCell = 10
	}
	if c.FinishLatchTTL <= 0 {
		c.FinishLatchTTL = 24 * time.Hour
	}
	if c.AbandonAfter <= 0 {
		c.AbandonAfter = 10 * time.Minute
	}
	return c
}

// Coordinator drives the lifecycle of trivia matches over the shared
// document store. Every participant's client goes through the same
// operations, so all mutations are optimistic-concurrency writes: read,
// modify, compare-and-swap, retry on a version mismatch.
type Coordinator struct {
	store     store.Store
	questions QuestionSource
	metrics   Metrics
	logger    *zap.Logger
	cfg       Config
	now       func() time.Time
	newID     func() string
}

// NewCoordinator constructs a Coordinator. metrics and logger may be nil.
func NewCoordinator(st store.Store, questions QuestionSource, metrics Metrics, logger *zap.Logger, cfg Config) *Coordinator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Coordinator{
		store:     st,
		questions: questions,
		metrics:   metrics,
		logger:    logger,
		cfg:       cfg.withDefaults(),
		now:       time.Now,
		newID:     uuid.NewString,
	}
}

// CreateMatchParams describes a new match.
type CreateMatchParams struct {
	PrincipalID  string
	Grade        string
	Subject      string
	Host         models.XOGamePlayer
	Settings     models.XOGameSettings
	SinglePlayer bool
}

// CreateMatch opens a match document with the host in the first slot. In
// single-player mode the match starts immediately; otherwise it waits for
// an opponent.
func (c *Coordinator) CreateMatch(ctx context.Context, params CreateMatchParams) (*models.XOGameState, error) {
	if params.SinglePlayer && !params.Settings.AllowSinglePlayer {
		return nil, apperrors.Clone(apperrors.ErrIllegalMove, "single-player matches are disabled for this subject")
	}

	now := c.now().UnixMilli()
	state := &models.XOGameState{
		ID:          c.newID(),
		PrincipalID: params.PrincipalID,
		Grade:       params.Grade,
		Subject:     params.Subject,
		Status:      models.GameWaitingForPlayers,
		XIsNext:     true,
		Scores:      map[models.PlayerSymbol]float64{params.Host.Symbol: 0},
		Settings:    params.Settings,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	host := params.Host
	state.Players[0] = &host
	if params.SinglePlayer {
		state.Status = models.GameInProgress
	}

	payload, err := json.Marshal(state)
	if err != nil {
		return nil, fmt.Errorf("encode match: %w", err)
	}
	// Expected version zero asserts the id is unused.
	if _, err := c.store.CompareAndSwap(ctx, MatchPath(state.ID), payload, 0); err != nil {
		return nil, fmt.Errorf("create match: %w", err)
	}
	if c.metrics != nil {
		c.metrics.MatchStarted()
	}
	return state, nil
}

// JoinMatch fills the second player slot and starts the match.
func (c *Coordinator) JoinMatch(ctx context.Context, matchID string, player models.XOGamePlayer) (*models.XOGameState, error) {
	return c.mutate(ctx, matchID, func(state *models.XOGameState) error {
		if state.Status != models.GameWaitingForPlayers {
			return apperrors.Clone(apperrors.ErrConflict, "match is no longer open")
		}
		host := state.Players[0]
		if host != nil && host.ID == player.ID {
			return apperrors.Clone(apperrors.ErrIllegalMove, "cannot join your own match")
		}
		if host != nil && host.Symbol == player.Symbol {
			return apperrors.Clone(apperrors.ErrIllegalMove, "symbol already taken")
		}
		if state.Players[1] != nil {
			return apperrors.Clone(apperrors.ErrConflict, "match is full")
		}
		joined := player
		state.Players[1] = &joined
		state.Scores[joined.Symbol] = 0
		state.Status = models.GameInProgress
		return nil
	})
}

// DrawQuestion binds a fresh question to an empty cell and starts the
// answer timer. Only the player whose turn it is may draw. A question-bank
// failure leaves the match untouched so the caller can simply retry.
func (c *Coordinator) DrawQuestion(ctx context.Context, matchID, playerID string, cell int) (*models.XOGameState, error) {
	state, _, err := c.loadMatch(ctx, matchID)
	if err != nil {
		return nil, err
	}
	question, err := c.questions.Draw(ctx, state.PrincipalID, state.Grade, state.Subject, state.UsedQuestionIDs)
	if err != nil {
		return nil, fmt.Errorf("draw question: %w", err)
	}

	return c.mutate(ctx, matchID, func(state *models.XOGameState) error {
		if err := c.checkMove(state, playerID, cell); err != nil {
			return err
		}
		if state.CurrentQuestion != nil {
			return apperrors.Clone(apperrors.ErrIllegalMove, "a question is already in play")
		}
		start := c.now().UnixMilli()
		bound := cell
		state.CurrentQuestion = question
		state.QuestionForSquare = &bound
		state.QuestionTimerStart = &start
		state.UsedQuestionIDs = append(state.UsedQuestionIDs, question.ID)
		state.PendingAnswers = nil
		return nil
	})
}

// SubmitAnswer records an answer to the bound question. The non-claiming
// player's answer is provisional and resolved with the round; the claiming
// player's answer resolves the round: a correct answer takes the cell and
// scores, a wrong one releases the cell, and either way the turn advances.
func (c *Coordinator) SubmitAnswer(ctx context.Context, matchID, playerID string, cell, optionIndex int) (*models.XOGameState, error) {
	state, err := c.mutate(ctx, matchID, func(state *models.XOGameState) error {
		if state.Status == models.GameFinished {
			return apperrors.ErrMatchFinished
		}
		if state.Status != models.GameInProgress {
			return apperrors.Clone(apperrors.ErrIllegalMove, "match has not started")
		}
		question := state.CurrentQuestion
		if question == nil || state.QuestionForSquare == nil {
			return apperrors.Clone(apperrors.ErrIllegalMove, "no question is in play")
		}
		if *state.QuestionForSquare != cell {
			return apperrors.Clone(apperrors.ErrIllegalMove, "question is bound to another cell")
		}
		player := playerByID(state, playerID)
		if player == nil {
			return apperrors.Clone(apperrors.ErrForbidden, "not a participant in this match")
		}
		if c.questionExpired(state) {
			return apperrors.Clone(apperrors.ErrIllegalMove, "question timer expired")
		}

		if player != turnPlayer(state) {
			if state.PendingAnswers == nil {
				state.PendingAnswers = make(map[string]int)
			}
			state.PendingAnswers[playerID] = optionIndex
			return nil
		}

		if state.Board[cell] != nil {
			return apperrors.ErrIllegalMove
		}
		if optionIndex == question.CorrectOptionIndex {
			symbol := player.Symbol
			state.Board[cell] = &symbol
			state.Scores[symbol] += c.cfg.PointsPerCell
		}
		c.scorePendingAnswers(state)
		c.endRound(state)
		return nil
	})
	if err != nil {
		return nil, err
	}
	c.commitIfFinished(ctx, state)
	return state, nil
}

// ExpireQuestion resolves a round whose timer ran out. The contested cell
// stays unclaimed and the turn advances. Calling it before the deadline or
// with no question in play is a no-op.
func (c *Coordinator) ExpireQuestion(ctx context.Context, matchID string) (*models.XOGameState, error) {
	state, err := c.mutate(ctx, matchID, func(state *models.XOGameState) error {
		if state.Status != models.GameInProgress || state.CurrentQuestion == nil {
			return errUnchanged
		}
		if !c.questionExpired(state) {
			return errUnchanged
		}
		c.scorePendingAnswers(state)
		c.endRound(state)
		return nil
	})
	if err != nil {
		return nil, err
	}
	c.commitIfFinished(ctx, state)
	return state, nil
}

// Forfeit finishes the match in favour of the remaining opponent.
func (c *Coordinator) Forfeit(ctx context.Context, matchID, playerID string) (*models.XOGameState, error) {
	state, err := c.mutate(ctx, matchID, func(state *models.XOGameState) error {
		if state.Status == models.GameFinished {
			return apperrors.ErrMatchFinished
		}
		player := playerByID(state, playerID)
		if player == nil {
			return apperrors.Clone(apperrors.ErrForbidden, "not a participant in this match")
		}
		state.Status = models.GameFinished
		if opponent := opponentOf(state, playerID); opponent != nil {
			state.Winner = string(opponent.Symbol)
		}
		clearQuestion(state)
		return nil
	})
	if err != nil {
		return nil, err
	}
	c.commitIfFinished(ctx, state)
	return state, nil
}

// Abandon force-finishes a match nobody is driving anymore. Finished
// matches pass through unchanged, so concurrent abandon calls are safe.
func (c *Coordinator) Abandon(ctx context.Context, matchID string) (*models.XOGameState, error) {
	state, err := c.mutate(ctx, matchID, func(state *models.XOGameState) error {
		if state.Status == models.GameFinished {
			return errUnchanged
		}
		state.Status = models.GameFinished
		clearQuestion(state)
		return nil
	})
	if err != nil {
		return nil, err
	}
	c.commitIfFinished(ctx, state)
	return state, nil
}

// AppendChat adds a message to the embedded match chat.
func (c *Coordinator) AppendChat(ctx context.Context, matchID, senderID, senderName, text string) (*models.XOGameState, error) {
	return c.mutate(ctx, matchID, func(state *models.XOGameState) error {
		if playerByID(state, senderID) == nil {
			return apperrors.Clone(apperrors.ErrForbidden, "not a participant in this match")
		}
		state.Chat = append(state.Chat, models.ChatMessage{
			ID:         c.newID(),
			SenderID:   senderID,
			SenderName: senderName,
			Text:       text,
			Timestamp:  c.now().UnixMilli(),
		})
		return nil
	})
}

// CommitScores pushes the final scores of a finished match onto the
// subject and overall leaderboards. The latch and the increments are one
// atomic store operation keyed by match id: duplicate termination
// triggers from either client increment nothing twice, and a failed
// commit leaves the latch free so the next trigger retries the whole
// thing.
func (c *Coordinator) CommitScores(ctx context.Context, matchID string) error {
	state, _, err := c.loadMatch(ctx, matchID)
	if err != nil {
		return err
	}
	if state.Status != models.GameFinished {
		return apperrors.Clone(apperrors.ErrConflict, "match is not finished")
	}

	boards := []string{
		SubjectBoard(state.PrincipalID, state.Grade, state.Subject),
		OverallBoard(state.PrincipalID),
	}
	var increments []store.ScoreIncrement
	for _, player := range state.Players {
		if player == nil {
			continue
		}
		points := state.Scores[player.Symbol]
		for _, board := range boards {
			increments = append(increments, store.ScoreIncrement{
				Board:  board,
				Member: player.ID,
				Delta:  points,
			})
		}
	}

	ok, err := c.store.CommitScores(ctx, "finish:"+matchID, c.cfg.FinishLatchTTL, increments)
	if err != nil {
		return fmt.Errorf("commit scores: %w", err)
	}
	if !ok {
		return nil
	}
	if c.metrics != nil {
		c.metrics.MatchFinished()
	}
	return nil
}

// SubjectBoard names the leaderboard for one school stage and subject.
func SubjectBoard(principalID, grade, subject string) string {
	return fmt.Sprintf("%s:%s:%s", principalID, grade, subject)
}

// OverallBoard names the school-wide leaderboard.
func OverallBoard(principalID string) string {
	return principalID + ":overall"
}

// Match returns the current state and store version of a match.
func (c *Coordinator) Match(ctx context.Context, matchID string) (*models.XOGameState, int64, error) {
	return c.loadMatch(ctx, matchID)
}

// mutate runs the read-modify-CAS loop. On a version mismatch it re-reads
// and reapplies fn, up to the configured retry cap, then reports the match
// as desynchronized. fn returning errUnchanged skips the write.
func (c *Coordinator) mutate(ctx context.Context, matchID string, fn func(*models.XOGameState) error) (*models.XOGameState, error) {
	path := MatchPath(matchID)
	for attempt := 0; attempt <= c.cfg.WriteRetries; attempt++ {
		state, version, err := c.loadMatch(ctx, matchID)
		if err != nil {
			return nil, err
		}
		if err := fn(state); err != nil {
			if errors.Is(err, errUnchanged) {
				return state, nil
			}
			return nil, err
		}
		state.UpdatedAt = c.now().UnixMilli()

		payload, err := json.Marshal(state)
		if err != nil {
			return nil, fmt.Errorf("encode match: %w", err)
		}
		if _, err := c.store.CompareAndSwap(ctx, path, payload, version); err != nil {
			if errors.Is(err, store.ErrVersionMismatch) {
				if c.metrics != nil {
					c.metrics.CASConflict()
				}
				continue
			}
			return nil, fmt.Errorf("write match: %w", err)
		}
		return state, nil
	}
	c.logger.Warn("match write retries exhausted", zap.String("match_id", matchID))
	return nil, apperrors.ErrMatchDesync
}

func (c *Coordinator) loadMatch(ctx context.Context, matchID string) (*models.XOGameState, int64, error) {
	data, version, err := c.store.Get(ctx, MatchPath(matchID))
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, 0, apperrors.Clone(apperrors.ErrNotFound, "match not found")
		}
		return nil, 0, fmt.Errorf("read match: %w", err)
	}
	var state models.XOGameState
	if err := json.Unmarshal(data, &state); err != nil {
		return nil, 0, fmt.Errorf("decode match %s: %w", matchID, err)
	}
	return &state, version, nil
}

// checkMove enforces the shared preconditions of a board action: the match
// is live, the cell is valid and empty, and it is the actor's turn.
func (c *Coordinator) checkMove(state *models.XOGameState, playerID string, cell int) error {
	if state.Status == models.GameFinished {
		return apperrors.ErrMatchFinished
	}
	if state.Status != models.GameInProgress {
		return apperrors.Clone(apperrors.ErrIllegalMove, "match has not started")
	}
	if cell < 0 || cell >= len(state.Board) {
		return apperrors.Clone(apperrors.ErrIllegalMove, "cell out of range")
	}
	if state.Board[cell] != nil {
		return apperrors.ErrIllegalMove
	}
	player := playerByID(state, playerID)
	if player == nil {
		return apperrors.Clone(apperrors.ErrForbidden, "not a participant in this match")
	}
	if player != turnPlayer(state) {
		return apperrors.Clone(apperrors.ErrIllegalMove, "not your turn")
	}
	return nil
}

// scorePendingAnswers grants the provisional responders their points under
// the grant_all policy. winner_takes_all scores only the cell claimant.
func (c *Coordinator) scorePendingAnswers(state *models.XOGameState) {
	if state.Settings.PointsPolicy != models.PolicyGrantAll || state.CurrentQuestion == nil {
		return
	}
	for playerID, option := range state.PendingAnswers {
		if option != state.CurrentQuestion.CorrectOptionIndex {
			continue
		}
		if player := playerByID(state, playerID); player != nil {
			state.Scores[player.Symbol] += c.cfg.PointsPerCell
		}
	}
}

// endRound clears the bound question, toggles the turn and settles the
// outcome if the board decides the match.
func (c *Coordinator) endRound(state *models.XOGameState) {
	clearQuestion(state)
	state.XIsNext = !state.XIsNext
	if winner, done := evaluate(state.Board); done {
		state.Winner = winner
		state.Status = models.GameFinished
	}
}

func (c *Coordinator) questionExpired(state *models.XOGameState) bool {
	if state.QuestionTimerStart == nil {
		return false
	}
	limit := c.cfg.QuestionTimeLimit
	if state.Settings.QuestionTimeLimit > 0 {
		limit = time.Duration(state.Settings.QuestionTimeLimit) * time.Second
	}
	deadline := time.UnixMilli(*state.QuestionTimerStart).Add(limit)
	return !c.now().Before(deadline)
}

func (c *Coordinator) commitIfFinished(ctx context.Context, state *models.XOGameState) {
	if state == nil || state.Status != models.GameFinished {
		return
	}
	if err := c.CommitScores(ctx, state.ID); err != nil {
		c.logger.Warn("leaderboard commit failed",
			zap.String("match_id", state.ID), zap.Error(err))
	}
}

func clearQuestion(state *models.XOGameState) {
	state.CurrentQuestion = nil
	state.QuestionForSquare = nil
	state.QuestionTimerStart = nil
	state.PendingAnswers = nil
}

func playerByID(state *models.XOGameState, id string) *models.XOGamePlayer {
	for _, player := range state.Players {
		if player != nil && player.ID == id {
			return player
		}
	}
	return nil
}

// turnPlayer maps XIsNext onto the slots: the host plays the X side.
func turnPlayer(state *models.XOGameState) *models.XOGamePlayer {
	if state.XIsNext {
		return state.Players[0]
	}
	// Single-player practice keeps the host acting on both turns.
	if state.Players[1] == nil {
		return state.Players[0]
	}
	return state.Players[1]
}

func opponentOf(state *models.XOGameState, playerID string) *models.XOGamePlayer {
	for _, player := range state.Players {
		if player != nil && player.ID != playerID {
			return player
		}
	}
	return nil
}
