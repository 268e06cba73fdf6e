package handler

import (
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/madrasati/madrasati-api/internal/middleware"
	"github.com/madrasati/madrasati-api/internal/models"
	"github.com/madrasati/madrasati-api/internal/quiz"
	"github.com/madrasati/madrasati-api/internal/service"
	appErrors "github.com/madrasati/madrasati-api/pkg/errors"
	"github.com/madrasati/madrasati-api/pkg/response"
)

// GameHandler wires HTTP endpoints to the match coordinator and the
// leaderboard service.
type GameHandler struct {
	coordinator *quiz.Coordinator
	games       *service.GameService
	logger      *zap.Logger
}

// NewGameHandler creates a new handler. logger may be nil.
func NewGameHandler(coordinator *quiz.Coordinator, games *service.GameService, logger *zap.Logger) *GameHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &GameHandler{coordinator: coordinator, games: games, logger: logger}
}

// CreateMatch godoc
// @Summary Open a match
// @Description Create a match document with the caller in the first slot
// @Tags Matches
// @Accept json
// @Produce json
// @Param payload body models.CreateMatchRequest true "Match payload"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /matches [post]
func (h *GameHandler) CreateMatch(c *gin.Context) {
	claims := middleware.CurrentClaims(c)
	var req models.CreateMatchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid match payload"))
		return
	}
	state, err := h.coordinator.CreateMatch(c.Request.Context(), quiz.CreateMatchParams{
		PrincipalID: claims.PrincipalID,
		Grade:       req.Grade,
		Subject:     req.Subject,
		Host: models.XOGamePlayer{
			ID:     claims.AccountID,
			Name:   claims.Name,
			Symbol: req.Symbol,
		},
		Settings:     req.Settings,
		SinglePlayer: req.SinglePlayer,
	})
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, state)
}

// JoinMatch godoc
// @Summary Join a match
// @Tags Matches
// @Accept json
// @Produce json
// @Param id path string true "Match id"
// @Param payload body models.JoinMatchRequest true "Join payload"
// @Success 200 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /matches/{id}/join [post]
func (h *GameHandler) JoinMatch(c *gin.Context) {
	claims := middleware.CurrentClaims(c)
	var req models.JoinMatchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid join payload"))
		return
	}
	state, err := h.coordinator.JoinMatch(c.Request.Context(), c.Param("id"), models.XOGamePlayer{
		ID:     claims.AccountID,
		Name:   claims.Name,
		Symbol: req.Symbol,
	})
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, state, nil)
}

// GetMatch godoc
// @Summary Read the match state
// @Tags Matches
// @Produce json
// @Param id path string true "Match id"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /matches/{id} [get]
func (h *GameHandler) GetMatch(c *gin.Context) {
	state, _, err := h.coordinator.Match(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, state, nil)
}

// DrawQuestion godoc
// @Summary Draw a question for a cell
// @Description Bind an unused bank question to a board cell and start the timer
// @Tags Matches
// @Accept json
// @Produce json
// @Param id path string true "Match id"
// @Param payload body models.DrawQuestionRequest true "Draw payload"
// @Success 200 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /matches/{id}/question [post]
func (h *GameHandler) DrawQuestion(c *gin.Context) {
	claims := middleware.CurrentClaims(c)
	var req models.DrawQuestionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid draw payload"))
		return
	}
	state, err := h.coordinator.DrawQuestion(c.Request.Context(), c.Param("id"), claims.AccountID, req.Cell)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, state, nil)
}

// SubmitAnswer godoc
// @Summary Answer the bound question
// @Tags Matches
// @Accept json
// @Produce json
// @Param id path string true "Match id"
// @Param payload body models.AnswerRequest true "Answer payload"
// @Success 200 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /matches/{id}/answer [post]
func (h *GameHandler) SubmitAnswer(c *gin.Context) {
	claims := middleware.CurrentClaims(c)
	var req models.AnswerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid answer payload"))
		return
	}
	state, err := h.coordinator.SubmitAnswer(c.Request.Context(), c.Param("id"), claims.AccountID, req.Cell, req.OptionIndex)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, state, nil)
}

// Chat godoc
// @Summary Post a chat message
// @Tags Matches
// @Accept json
// @Produce json
// @Param id path string true "Match id"
// @Param payload body models.ChatRequest true "Chat payload"
// @Success 200 {object} response.Envelope
// @Router /matches/{id}/chat [post]
func (h *GameHandler) Chat(c *gin.Context) {
	claims := middleware.CurrentClaims(c)
	var req models.ChatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid chat payload"))
		return
	}
	state, err := h.coordinator.AppendChat(c.Request.Context(), c.Param("id"), claims.AccountID, claims.Name, req.Text)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, state, nil)
}

// Forfeit godoc
// @Summary Forfeit the match
// @Description Concede and award the win to the opponent
// @Tags Matches
// @Produce json
// @Param id path string true "Match id"
// @Success 200 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /matches/{id}/forfeit [post]
func (h *GameHandler) Forfeit(c *gin.Context) {
	claims := middleware.CurrentClaims(c)
	state, err := h.coordinator.Forfeit(c.Request.Context(), c.Param("id"), claims.AccountID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, state, nil)
}

// Events godoc
// @Summary Stream match state updates
// @Description Server-sent events; one "state" event per accepted write, closing when the match finishes
// @Tags Matches
// @Produce text/event-stream
// @Param id path string true "Match id"
// @Success 200 {object} models.XOGameState
// @Router /matches/{id}/events [get]
func (h *GameHandler) Events(c *gin.Context) {
	matchID := c.Param("id")
	ctx := c.Request.Context()

	states := make(chan models.XOGameState, 8)
	done := make(chan error, 1)
	session := quiz.NewSession(h.coordinator, matchID, h.logger)
	go func() {
		done <- session.Run(ctx, states)
	}()

	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Header("X-Accel-Buffering", "no")

	c.Stream(func(w io.Writer) bool {
		select {
		case state, ok := <-states:
			if !ok {
				if err := <-done; err != nil && ctx.Err() == nil {
					h.logger.Warn("match stream ended with error",
						zap.String("match_id", matchID), zap.Error(err))
					c.SSEvent("error", appErrors.FromError(err))
				}
				return false
			}
			c.SSEvent("state", state)
			return true
		case <-ctx.Done():
			return false
		}
	})
}

// CreateChallenge godoc
// @Summary Challenge a named opponent
// @Description Record a pending invitation; the match opens when the target accepts
// @Tags Matches
// @Accept json
// @Produce json
// @Param payload body models.CreateChallengeRequest true "Challenge payload"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /challenges [post]
func (h *GameHandler) CreateChallenge(c *gin.Context) {
	claims := middleware.CurrentClaims(c)
	var req models.CreateChallengeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid challenge payload"))
		return
	}
	challenge, err := h.coordinator.CreateChallenge(c.Request.Context(), quiz.ChallengeParams{
		PrincipalID: claims.PrincipalID,
		Grade:       req.Grade,
		Subject:     req.Subject,
		Challenger: models.XOGamePlayer{
			ID:   claims.AccountID,
			Name: claims.Name,
		},
		TargetID: req.TargetID,
	})
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, challenge)
}

// GetChallenge godoc
// @Summary Read a challenge
// @Tags Matches
// @Produce json
// @Param id path string true "Challenge id"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /challenges/{id} [get]
func (h *GameHandler) GetChallenge(c *gin.Context) {
	challenge, err := h.coordinator.Challenge(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, challenge, nil)
}

// AcceptChallenge godoc
// @Summary Accept a challenge
// @Description Open the match with the challenger hosting; only the invited player may accept
// @Tags Matches
// @Produce json
// @Param id path string true "Challenge id"
// @Success 200 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /challenges/{id}/accept [post]
func (h *GameHandler) AcceptChallenge(c *gin.Context) {
	claims := middleware.CurrentClaims(c)
	challenge, match, err := h.coordinator.AcceptChallenge(c.Request.Context(), c.Param("id"), models.XOGamePlayer{
		ID:   claims.AccountID,
		Name: claims.Name,
	})
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, models.ChallengeOutcome{Challenge: challenge, Match: match}, nil)
}

// DeclineChallenge godoc
// @Summary Decline a challenge
// @Tags Matches
// @Produce json
// @Param id path string true "Challenge id"
// @Success 200 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /challenges/{id}/decline [post]
func (h *GameHandler) DeclineChallenge(c *gin.Context) {
	claims := middleware.CurrentClaims(c)
	challenge, err := h.coordinator.DeclineChallenge(c.Request.Context(), c.Param("id"), claims.AccountID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, models.ChallengeOutcome{Challenge: challenge}, nil)
}

// Leaderboard godoc
// @Summary Read a leaderboard
// @Description Subject board when subject is given, school-wide board otherwise
// @Tags Matches
// @Produce json
// @Param grade query string false "Stage filter"
// @Param subject query string false "Subject board"
// @Param limit query int false "Row limit"
// @Success 200 {object} response.Envelope
// @Router /leaderboard [get]
func (h *GameHandler) Leaderboard(c *gin.Context) {
	claims := middleware.CurrentClaims(c)
	limit := int64(queryInt(c, "limit", 10))
	rows, err := h.games.Leaderboard(c.Request.Context(), claims.PrincipalID, c.Query("grade"), c.Query("subject"), limit)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, rows, nil)
}
