package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/madrasati/madrasati-api/internal/middleware"
	"github.com/madrasati/madrasati-api/internal/models"
	"github.com/madrasati/madrasati-api/internal/quiz"
	"github.com/madrasati/madrasati-api/internal/service"
	"github.com/madrasati/madrasati-api/internal/store"
)

type questionSourceStub struct {
	question *models.XOQuestion
}

func (s *questionSourceStub) Draw(ctx context.Context, principalID, grade, subject string, exclude []string) (*models.XOQuestion, error) {
	return s.question, nil
}

type accountNamesStub struct {
	names map[string]string
}

func (s *accountNamesStub) FindNames(ctx context.Context, ids []string) (map[string]string, error) {
	return s.names, nil
}

type gameFixture struct {
	store       *store.MemoryStore
	coordinator *quiz.Coordinator
	handler     *GameHandler
}

func newGameFixture(t *testing.T) *gameFixture {
	t.Helper()
	gin.SetMode(gin.TestMode)

	st := store.NewMemoryStore()
	questions := &questionSourceStub{question: &models.XOQuestion{
		ID:                 "q-1",
		QuestionText:       "كم عدد كواكب المجموعة الشمسية؟",
		Options:            [4]string{"سبعة", "ثمانية", "تسعة", "عشرة"},
		CorrectOptionIndex: 1,
	}}
	coordinator := quiz.NewCoordinator(st, questions, nil, nil, quiz.Config{
		QuestionTimeLimit: 30 * time.Second,
	})
	games := service.NewGameService(st, &accountNamesStub{names: map[string]string{"p1": "أحمد"}}, nil)
	return &gameFixture{
		store:       st,
		coordinator: coordinator,
		handler:     NewGameHandler(coordinator, games, nil),
	}
}

func testContext(t *testing.T, claims *models.JWTClaims, method, target string, payload any) (*gin.Context, *httptest.ResponseRecorder) {
	t.Helper()
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	var body bytes.Buffer
	if payload != nil {
		require.NoError(t, json.NewEncoder(&body).Encode(payload))
	}
	req, err := http.NewRequest(method, target, &body)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	c.Request = req
	c.Set(middleware.ContextUserKey, claims)
	return c, w
}

func decodeState(t *testing.T, w *httptest.ResponseRecorder) models.XOGameState {
	t.Helper()
	var envelope struct {
		Data models.XOGameState `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &envelope))
	return envelope.Data
}

func studentClaims(id, name string) *models.JWTClaims {
	return &models.JWTClaims{AccountID: id, Role: models.RoleStudent, Name: name, PrincipalID: "school-1"}
}

func TestGameHandlerCreateMatch(t *testing.T) {
	f := newGameFixture(t)
	c, w := testContext(t, studentClaims("p1", "أحمد"), http.MethodPost, "/matches", models.CreateMatchRequest{
		Grade:   "الصف الثاني",
		Subject: "العلوم",
		Symbol:  models.SymbolX,
	})

	f.handler.CreateMatch(c)

	require.Equal(t, http.StatusCreated, w.Code)
	state := decodeState(t, w)
	assert.NotEmpty(t, state.ID)
	assert.Equal(t, models.GameWaitingForPlayers, state.Status)
	require.NotNil(t, state.Players[0])
	assert.Equal(t, "p1", state.Players[0].ID)
}

func TestGameHandlerCreateMatchInvalidBody(t *testing.T) {
	f := newGameFixture(t)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	req, _ := http.NewRequest(http.MethodPost, "/matches", bytes.NewReader([]byte(`invalid`)))
	req.Header.Set("Content-Type", "application/json")
	c.Request = req
	c.Set(middleware.ContextUserKey, studentClaims("p1", "أحمد"))

	f.handler.CreateMatch(c)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestGameHandlerJoinThenForfeit(t *testing.T) {
	f := newGameFixture(t)
	created, err := f.coordinator.CreateMatch(context.Background(), quiz.CreateMatchParams{
		PrincipalID: "school-1",
		Grade:       "الصف الثاني",
		Subject:     "العلوم",
		Host:        models.XOGamePlayer{ID: "p1", Name: "أحمد", Symbol: models.SymbolX},
	})
	require.NoError(t, err)

	c, w := testContext(t, studentClaims("p2", "سارة"), http.MethodPost, "/matches/"+created.ID+"/join", models.JoinMatchRequest{
		Symbol: models.SymbolO,
	})
	c.Params = gin.Params{{Key: "id", Value: created.ID}}
	f.handler.JoinMatch(c)

	require.Equal(t, http.StatusOK, w.Code)
	state := decodeState(t, w)
	assert.Equal(t, models.GameInProgress, state.Status)

	c, w = testContext(t, studentClaims("p2", "سارة"), http.MethodPost, "/matches/"+created.ID+"/forfeit", nil)
	c.Params = gin.Params{{Key: "id", Value: created.ID}}
	f.handler.Forfeit(c)

	require.Equal(t, http.StatusOK, w.Code)
	state = decodeState(t, w)
	assert.Equal(t, models.GameFinished, state.Status)
	assert.Equal(t, string(models.SymbolX), state.Winner)
}

func TestGameHandlerGetMatchNotFound(t *testing.T) {
	f := newGameFixture(t)
	c, w := testContext(t, studentClaims("p1", "أحمد"), http.MethodGet, "/matches/missing", nil)
	c.Params = gin.Params{{Key: "id", Value: "missing"}}

	f.handler.GetMatch(c)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestGameHandlerLeaderboard(t *testing.T) {
	f := newGameFixture(t)
	ctx := context.Background()
	board := quiz.SubjectBoard("school-1", "الصف الثاني", "العلوم")
	require.NoError(t, f.store.IncrementScore(ctx, board, "p1", 30))

	query := url.Values{"grade": {"الصف الثاني"}, "subject": {"العلوم"}}
	c, w := testContext(t, studentClaims("p1", "أحمد"), http.MethodGet, "/leaderboard?"+query.Encode(), nil)
	f.handler.Leaderboard(c)

	require.Equal(t, http.StatusOK, w.Code)
	var envelope struct {
		Data []models.XOGameScore `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &envelope))
	require.Len(t, envelope.Data, 1)
	assert.Equal(t, "أحمد", envelope.Data[0].StudentName)
	assert.Equal(t, float64(30), envelope.Data[0].Points)
}
