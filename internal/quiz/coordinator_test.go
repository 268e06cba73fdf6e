package quiz

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/madrasati/madrasati-api/internal/models"
	"github.com/madrasati/madrasati-api/internal/store"
	apperrors "github.com/madrasati/madrasati-api/pkg/errors"
)

type stubQuestions struct {
	queue    []*models.XOQuestion
	excluded [][]string
}

func (s *stubQuestions) Draw(_ context.Context, _, _, _ string, exclude []string) (*models.XOQuestion, error) {
	s.excluded = append(s.excluded, append([]string(nil), exclude...))
	if len(s.queue) == 0 {
		return nil, assert.AnError
	}
	question := s.queue[0]
	s.queue = s.queue[1:]
	return question, nil
}

func question(id string, correct int) *models.XOQuestion {
	return &models.XOQuestion{
		ID:                 id,
		QuestionText:       "سؤال " + id,
		Options:            [4]string{"أ", "ب", "ج", "د"},
		CorrectOptionIndex: correct,
	}
}

type testClock struct {
	now time.Time
}

func (c *testClock) Now() time.Time { return c.now }

func (c *testClock) Advance(d time.Duration) { c.now = c.now.Add(d) }

func newCoordinator(st store.Store, questions QuestionSource) (*Coordinator, *testClock) {
	clock := &testClock{now: time.Unix(1_700_000_000, 0)}
	c := NewCoordinator(st, questions, nil, nil, Config{
		QuestionTimeLimit: 30 * time.Second,
		WriteRetries:      3,
		PointsPerCell:     10,
	})
	c.now = clock.Now
	return c, clock
}

func startedMatch(t *testing.T, c *Coordinator, policy models.PointsPolicy) *models.XOGameState {
	t.Helper()
	ctx := context.Background()

	state, err := c.CreateMatch(ctx, CreateMatchParams{
		PrincipalID: "school-1",
		Grade:       "الصف الثاني",
		Subject:     "العلوم",
		Host:        models.XOGamePlayer{ID: "p1", Name: "أحمد", Symbol: models.SymbolX},
		Settings:    models.XOGameSettings{PointsPolicy: policy},
	})
	require.NoError(t, err)
	assert.Equal(t, models.GameWaitingForPlayers, state.Status)

	state, err = c.JoinMatch(ctx, state.ID, models.XOGamePlayer{ID: "p2", Name: "سارة", Symbol: models.SymbolO})
	require.NoError(t, err)
	require.Equal(t, models.GameInProgress, state.Status)
	return state
}

func drawAndAnswer(t *testing.T, c *Coordinator, matchID, playerID string, cell, option int) *models.XOGameState {
	t.Helper()
	ctx := context.Background()
	_, err := c.DrawQuestion(ctx, matchID, playerID, cell)
	require.NoError(t, err)
	state, err := c.SubmitAnswer(ctx, matchID, playerID, cell, option)
	require.NoError(t, err)
	return state
}

func TestJoinMatchRules(t *testing.T) {
	c, _ := newCoordinator(store.NewMemoryStore(), &stubQuestions{})
	ctx := context.Background()

	state, err := c.CreateMatch(ctx, CreateMatchParams{
		PrincipalID: "school-1",
		Host:        models.XOGamePlayer{ID: "p1", Symbol: models.SymbolX},
	})
	require.NoError(t, err)

	_, err = c.JoinMatch(ctx, state.ID, models.XOGamePlayer{ID: "p1", Symbol: models.SymbolO})
	require.Error(t, err)

	_, err = c.JoinMatch(ctx, state.ID, models.XOGamePlayer{ID: "p2", Symbol: models.SymbolX})
	require.Error(t, err)

	joined, err := c.JoinMatch(ctx, state.ID, models.XOGamePlayer{ID: "p2", Symbol: models.SymbolO})
	require.NoError(t, err)
	assert.Equal(t, models.GameInProgress, joined.Status)

	// A third player finds the match closed.
	_, err = c.JoinMatch(ctx, state.ID, models.XOGamePlayer{ID: "p3", Symbol: models.SymbolMoon})
	require.Error(t, err)
}

func TestSinglePlayerStartsImmediately(t *testing.T) {
	c, _ := newCoordinator(store.NewMemoryStore(), &stubQuestions{})

	_, err := c.CreateMatch(context.Background(), CreateMatchParams{
		Host:         models.XOGamePlayer{ID: "p1", Symbol: models.SymbolX},
		SinglePlayer: true,
	})
	require.Error(t, err, "single-player needs the settings switch")

	state, err := c.CreateMatch(context.Background(), CreateMatchParams{
		Host:         models.XOGamePlayer{ID: "p1", Symbol: models.SymbolX},
		Settings:     models.XOGameSettings{AllowSinglePlayer: true},
		SinglePlayer: true,
	})
	require.NoError(t, err)
	assert.Equal(t, models.GameInProgress, state.Status)
}

func TestDrawQuestionBindsCellAndTracksUsage(t *testing.T) {
	questions := &stubQuestions{queue: []*models.XOQuestion{question("q1", 0), question("q2", 1)}}
	c, _ := newCoordinator(store.NewMemoryStore(), questions)
	match := startedMatch(t, c, models.PolicyWinnerTakesAll)
	ctx := context.Background()

	// Only the player on turn may draw.
	_, err := c.DrawQuestion(ctx, match.ID, "p2", 0)
	require.Error(t, err)

	state, err := c.DrawQuestion(ctx, match.ID, "p1", 4)
	require.NoError(t, err)
	require.NotNil(t, state.CurrentQuestion)
	assert.Equal(t, "q1", state.CurrentQuestion.ID)
	require.NotNil(t, state.QuestionForSquare)
	assert.Equal(t, 4, *state.QuestionForSquare)
	assert.NotNil(t, state.QuestionTimerStart)
	assert.Equal(t, []string{"q1"}, state.UsedQuestionIDs)

	// A second draw while a question is in play is rejected.
	_, err = c.DrawQuestion(ctx, match.ID, "p1", 5)
	require.Error(t, err)

	// The next round excludes the first question.
	_, err = c.SubmitAnswer(ctx, match.ID, "p1", 4, 0)
	require.NoError(t, err)
	_, err = c.DrawQuestion(ctx, match.ID, "p2", 5)
	require.NoError(t, err)
	assert.Equal(t, []string{"q1"}, questions.excluded[len(questions.excluded)-1])
}

func TestSubmitAnswerCorrectClaimsCell(t *testing.T) {
	questions := &stubQuestions{queue: []*models.XOQuestion{question("q1", 2)}}
	c, _ := newCoordinator(store.NewMemoryStore(), questions)
	match := startedMatch(t, c, models.PolicyWinnerTakesAll)

	state := drawAndAnswer(t, c, match.ID, "p1", 0, 2)

	require.NotNil(t, state.Board[0])
	assert.Equal(t, models.SymbolX, *state.Board[0])
	assert.Equal(t, 10.0, state.Scores[models.SymbolX])
	assert.False(t, state.XIsNext)
	assert.Nil(t, state.CurrentQuestion)

	// The round is resolved; a replayed answer cannot double-score.
	_, err := c.SubmitAnswer(context.Background(), match.ID, "p1", 0, 2)
	require.Error(t, err)
}

func TestSubmitAnswerWrongReleasesCell(t *testing.T) {
	questions := &stubQuestions{queue: []*models.XOQuestion{question("q1", 1)}}
	c, _ := newCoordinator(store.NewMemoryStore(), questions)
	match := startedMatch(t, c, models.PolicyWinnerTakesAll)

	state := drawAndAnswer(t, c, match.ID, "p1", 0, 3)

	assert.Nil(t, state.Board[0])
	assert.Equal(t, 0.0, state.Scores[models.SymbolX])
	assert.False(t, state.XIsNext, "turn advances even on a miss")
}

func TestGrantAllScoresBothCorrectResponders(t *testing.T) {
	questions := &stubQuestions{queue: []*models.XOQuestion{question("q1", 1)}}
	c, _ := newCoordinator(store.NewMemoryStore(), questions)
	match := startedMatch(t, c, models.PolicyGrantAll)
	ctx := context.Background()

	_, err := c.DrawQuestion(ctx, match.ID, "p1", 0)
	require.NoError(t, err)

	// The opponent answers first; the answer stays provisional.
	state, err := c.SubmitAnswer(ctx, match.ID, "p2", 0, 1)
	require.NoError(t, err)
	assert.Nil(t, state.Board[0])
	assert.Equal(t, 0.0, state.Scores[models.SymbolO])

	state, err = c.SubmitAnswer(ctx, match.ID, "p1", 0, 1)
	require.NoError(t, err)
	require.NotNil(t, state.Board[0])
	assert.Equal(t, 10.0, state.Scores[models.SymbolX])
	assert.Equal(t, 10.0, state.Scores[models.SymbolO])
}

func TestWinnerTakesAllIgnoresOpponentAnswer(t *testing.T) {
	questions := &stubQuestions{queue: []*models.XOQuestion{question("q1", 1)}}
	c, _ := newCoordinator(store.NewMemoryStore(), questions)
	match := startedMatch(t, c, models.PolicyWinnerTakesAll)
	ctx := context.Background()

	_, err := c.DrawQuestion(ctx, match.ID, "p1", 0)
	require.NoError(t, err)
	_, err = c.SubmitAnswer(ctx, match.ID, "p2", 0, 1)
	require.NoError(t, err)

	state, err := c.SubmitAnswer(ctx, match.ID, "p1", 0, 1)
	require.NoError(t, err)
	assert.Equal(t, 10.0, state.Scores[models.SymbolX])
	assert.Equal(t, 0.0, state.Scores[models.SymbolO])
}

func TestExpireQuestionReleasesRound(t *testing.T) {
	questions := &stubQuestions{queue: []*models.XOQuestion{question("q1", 0)}}
	c, clock := newCoordinator(store.NewMemoryStore(), questions)
	match := startedMatch(t, c, models.PolicyWinnerTakesAll)
	ctx := context.Background()

	_, err := c.DrawQuestion(ctx, match.ID, "p1", 0)
	require.NoError(t, err)

	// Before the deadline the call is a no-op.
	state, err := c.ExpireQuestion(ctx, match.ID)
	require.NoError(t, err)
	assert.NotNil(t, state.CurrentQuestion)

	clock.Advance(31 * time.Second)

	// A late answer is rejected, then the timeout settles the round.
	_, err = c.SubmitAnswer(ctx, match.ID, "p1", 0, 0)
	require.Error(t, err)

	state, err = c.ExpireQuestion(ctx, match.ID)
	require.NoError(t, err)
	assert.Nil(t, state.CurrentQuestion)
	assert.Nil(t, state.Board[0], "contested cell stays unclaimed")
	assert.False(t, state.XIsNext)
	assert.Equal(t, models.GameInProgress, state.Status)
}

func TestFullMatchWinCommitsLeaderboardOnce(t *testing.T) {
	questions := &stubQuestions{queue: []*models.XOQuestion{
		question("q1", 0), question("q2", 0), question("q3", 0),
		question("q4", 0), question("q5", 0),
	}}
	mem := store.NewMemoryStore()
	c, _ := newCoordinator(mem, questions)
	match := startedMatch(t, c, models.PolicyWinnerTakesAll)
	ctx := context.Background()

	drawAndAnswer(t, c, match.ID, "p1", 0, 0) // X
	drawAndAnswer(t, c, match.ID, "p2", 3, 1) // miss
	drawAndAnswer(t, c, match.ID, "p1", 1, 0) // X
	drawAndAnswer(t, c, match.ID, "p2", 4, 1) // miss
	state := drawAndAnswer(t, c, match.ID, "p1", 2, 0)

	assert.Equal(t, models.GameFinished, state.Status)
	assert.Equal(t, string(models.SymbolX), state.Winner)

	// The win already committed the scores; a replayed trigger is absorbed
	// by the finish latch.
	require.NoError(t, c.CommitScores(ctx, match.ID))

	top, err := mem.TopScores(ctx, SubjectBoard("school-1", "الصف الثاني", "العلوم"), 10)
	require.NoError(t, err)
	require.Len(t, top, 2)
	assert.Equal(t, store.ScoreEntry{Member: "p1", Score: 30}, top[0])
	assert.Equal(t, store.ScoreEntry{Member: "p2", Score: 0}, top[1])

	overall, err := mem.TopScores(ctx, OverallBoard("school-1"), 10)
	require.NoError(t, err)
	require.Len(t, overall, 2)
	assert.Equal(t, 30.0, overall[0].Score)

	// Finished is terminal.
	_, err = c.DrawQuestion(ctx, match.ID, "p2", 5)
	require.Error(t, err)
	_, err = c.Forfeit(ctx, match.ID, "p2")
	assert.ErrorIs(t, err, apperrors.ErrMatchFinished)
}

func TestForfeitAwardsOpponent(t *testing.T) {
	c, _ := newCoordinator(store.NewMemoryStore(), &stubQuestions{})
	match := startedMatch(t, c, models.PolicyWinnerTakesAll)

	state, err := c.Forfeit(context.Background(), match.ID, "p2")
	require.NoError(t, err)
	assert.Equal(t, models.GameFinished, state.Status)
	assert.Equal(t, string(models.SymbolX), state.Winner)
}

func TestAppendChat(t *testing.T) {
	c, _ := newCoordinator(store.NewMemoryStore(), &stubQuestions{})
	match := startedMatch(t, c, models.PolicyWinnerTakesAll)
	ctx := context.Background()

	_, err := c.AppendChat(ctx, match.ID, "stranger", "؟", "مرحبا")
	require.Error(t, err)

	state, err := c.AppendChat(ctx, match.ID, "p1", "أحمد", "بالتوفيق")
	require.NoError(t, err)
	require.Len(t, state.Chat, 1)
	assert.Equal(t, "بالتوفيق", state.Chat[0].Text)
	assert.Equal(t, "p1", state.Chat[0].SenderID)
}

type flakyCommitStore struct {
	store.Store
	failures int
}

func (s *flakyCommitStore) CommitScores(ctx context.Context, key string, ttl time.Duration, increments []store.ScoreIncrement) (bool, error) {
	if s.failures > 0 {
		s.failures--
		return false, assert.AnError
	}
	return s.Store.CommitScores(ctx, key, ttl, increments)
}

func TestCommitScoresRetriesAfterStoreFailure(t *testing.T) {
	questions := &stubQuestions{queue: []*models.XOQuestion{question("q1", 0)}}
	mem := store.NewMemoryStore()
	flaky := &flakyCommitStore{Store: mem, failures: 1}
	c, _ := newCoordinator(flaky, questions)
	match := startedMatch(t, c, models.PolicyWinnerTakesAll)
	ctx := context.Background()

	drawAndAnswer(t, c, match.ID, "p1", 0, 0)

	// The forfeit's own commit attempt hits the store failure.
	_, err := c.Forfeit(ctx, match.ID, "p2")
	require.NoError(t, err)

	top, err := mem.TopScores(ctx, OverallBoard("school-1"), 10)
	require.NoError(t, err)
	assert.Empty(t, top, "a failed commit applies nothing")

	// The failure left the latch free: an explicit retry lands the scores,
	// and a second one cannot double them.
	require.NoError(t, c.CommitScores(ctx, match.ID))
	require.NoError(t, c.CommitScores(ctx, match.ID))

	top, err = mem.TopScores(ctx, OverallBoard("school-1"), 10)
	require.NoError(t, err)
	require.Len(t, top, 2)
	assert.Equal(t, store.ScoreEntry{Member: "p1", Score: 10}, top[0])
	assert.Equal(t, store.ScoreEntry{Member: "p2", Score: 0}, top[1])
}

// racingStore lets a rival writer slip in right before one CompareAndSwap,
// so the caller's write lands on a stale version.
type racingStore struct {
	store.Store
	rival func()
}

func (s *racingStore) CompareAndSwap(ctx context.Context, path string, data []byte, expected int64) (int64, error) {
	if s.rival != nil {
		fn := s.rival
		s.rival = nil
		fn()
	}
	return s.Store.CompareAndSwap(ctx, path, data, expected)
}

func TestRacingAnswersOnStaleVersionScoreOnce(t *testing.T) {
	questions := &stubQuestions{queue: []*models.XOQuestion{question("q1", 0)}}
	mem := store.NewMemoryStore()
	racing := &racingStore{Store: mem}
	c, _ := newCoordinator(racing, questions)
	rival, _ := newCoordinator(mem, questions)
	match := startedMatch(t, c, models.PolicyWinnerTakesAll)
	ctx := context.Background()

	_, err := c.DrawQuestion(ctx, match.ID, "p1", 4)
	require.NoError(t, err)

	// A duplicated submit from the same client commits first; our write
	// loses the version race and the retry sees the round already over.
	racing.rival = func() {
		_, err := rival.SubmitAnswer(ctx, match.ID, "p1", 4, 0)
		require.NoError(t, err)
	}
	_, err = c.SubmitAnswer(ctx, match.ID, "p1", 4, 0)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no question is in play")

	state, _, err := c.Match(ctx, match.ID)
	require.NoError(t, err)
	require.NotNil(t, state.Board[4])
	assert.Equal(t, models.SymbolX, *state.Board[4])
	assert.Equal(t, 10.0, state.Scores[models.SymbolX], "the cell scored exactly once")
	assert.False(t, state.XIsNext, "the turn advanced exactly once")
	assert.Equal(t, []string{"q1"}, state.UsedQuestionIDs)
}

type conflictingStore struct {
	store.Store
}

func (s conflictingStore) CompareAndSwap(context.Context, string, []byte, int64) (int64, error) {
	return 0, store.ErrVersionMismatch
}

func TestMutateRetriesThenDesyncs(t *testing.T) {
	mem := store.NewMemoryStore()
	c, _ := newCoordinator(mem, &stubQuestions{})
	match := startedMatch(t, c, models.PolicyWinnerTakesAll)

	c.store = conflictingStore{Store: mem}
	_, err := c.AppendChat(context.Background(), match.ID, "p1", "أحمد", "hello")
	assert.ErrorIs(t, err, apperrors.ErrMatchDesync)
}

func TestAbandonFinishesIdleMatch(t *testing.T) {
	c, _ := newCoordinator(store.NewMemoryStore(), &stubQuestions{})
	match := startedMatch(t, c, models.PolicyWinnerTakesAll)
	ctx := context.Background()

	state, err := c.Abandon(ctx, match.ID)
	require.NoError(t, err)
	assert.Equal(t, models.GameFinished, state.Status)
	assert.Empty(t, state.Winner)

	// Idempotent: a second abandon passes through.
	state, err = c.Abandon(ctx, match.ID)
	require.NoError(t, err)
	assert.Equal(t, models.GameFinished, state.Status)
}

func TestEvaluateBoard(t *testing.T) {
	x, o, star := models.SymbolX, models.SymbolO, models.SymbolStar

	var board [9]*models.PlayerSymbol
	winner, done := evaluate(board)
	assert.False(t, done)
	assert.Empty(t, winner)

	// Diagonal with a decorative symbol.
	board[0], board[4], board[8] = &star, &star, &star
	winner, done = evaluate(board)
	assert.True(t, done)
	assert.Equal(t, string(star), winner)

	// Full board, no line.
	full := [9]*models.PlayerSymbol{&x, &o, &x, &x, &o, &o, &o, &x, &x}
	winner, done = evaluate(full)
	assert.True(t, done)
	assert.Equal(t, models.WinnerDraw, winner)
}
