package handler

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/madrasati/madrasati-api/internal/middleware"
	"github.com/madrasati/madrasati-api/internal/models"
	"github.com/madrasati/madrasati-api/internal/repository"
	"github.com/madrasati/madrasati-api/internal/service"
	appErrors "github.com/madrasati/madrasati-api/pkg/errors"
	"github.com/madrasati/madrasati-api/pkg/response"
)

// QuestionHandler wires HTTP endpoints to the question bank service.
type QuestionHandler struct {
	service *service.QuestionService
}

// NewQuestionHandler creates a new handler.
func NewQuestionHandler(svc *service.QuestionService) *QuestionHandler {
	return &QuestionHandler{service: svc}
}

// Create godoc
// @Summary Author a question
// @Description Add a multiple-choice question to the school bank
// @Tags Questions
// @Accept json
// @Produce json
// @Param payload body models.CreateQuestionRequest true "Question payload"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /questions [post]
func (h *QuestionHandler) Create(c *gin.Context) {
	claims := middleware.CurrentClaims(c)
	var req models.CreateQuestionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid question payload"))
		return
	}
	author := service.Author{ID: claims.AccountID, Name: claims.Name}
	question, err := h.service.Create(c.Request.Context(), claims.PrincipalID, author, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, question)
}

// List godoc
// @Summary List bank questions
// @Tags Questions
// @Produce json
// @Param grade query string false "Stage filter"
// @Param subject query string false "Subject filter"
// @Param chapter query string false "Chapter filter"
// @Param author query string false "Author kind: ai or teacher"
// @Param page query int false "Page number"
// @Param page_size query int false "Page size"
// @Success 200 {object} response.Envelope
// @Router /questions [get]
func (h *QuestionHandler) List(c *gin.Context) {
	claims := middleware.CurrentClaims(c)
	filter := repository.QuestionFilter{
		PrincipalID: claims.PrincipalID,
		Grade:       c.Query("grade"),
		Subject:     c.Query("subject"),
		Chapter:     c.Query("chapter"),
		AuthorKind:  c.Query("author"),
		Page:        queryInt(c, "page", 1),
		PageSize:    queryInt(c, "page_size", 20),
	}
	questions, total, err := h.service.List(c.Request.Context(), filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, questions, &models.Pagination{
		Page:       filter.Page,
		PageSize:   filter.PageSize,
		TotalCount: total,
	})
}

// Replace godoc
// @Summary Replace a question
// @Description Bank items are immutable; an edit creates a new item and retires the old one
// @Tags Questions
// @Accept json
// @Produce json
// @Param id path string true "Question id"
// @Param payload body models.CreateQuestionRequest true "Question payload"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /questions/{id} [put]
func (h *QuestionHandler) Replace(c *gin.Context) {
	claims := middleware.CurrentClaims(c)
	var req models.CreateQuestionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid question payload"))
		return
	}
	author := service.Author{ID: claims.AccountID, Name: claims.Name}
	question, err := h.service.Replace(c.Request.Context(), claims.PrincipalID, author, c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, question, nil)
}

// Delete godoc
// @Summary Delete a question
// @Tags Questions
// @Param id path string true "Question id"
// @Success 204 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /questions/{id} [delete]
func (h *QuestionHandler) Delete(c *gin.Context) {
	claims := middleware.CurrentClaims(c)
	if err := h.service.Delete(c.Request.Context(), claims.PrincipalID, c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

func queryInt(c *gin.Context, key string, fallback int) int {
	raw := c.Query(key)
	if raw == "" {
		return fallback
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n <= 0 {
		return fallback
	}
	return n
}
