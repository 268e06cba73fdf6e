package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/madrasati/madrasati-api/internal/middleware"
	"github.com/madrasati/madrasati-api/internal/models"
	"github.com/madrasati/madrasati-api/internal/service"
	appErrors "github.com/madrasati/madrasati-api/pkg/errors"
	"github.com/madrasati/madrasati-api/pkg/response"
)

// GradeHandler wires HTTP endpoints to the grade service.
type GradeHandler struct {
	service *service.GradeService
}

// NewGradeHandler creates a new handler.
func NewGradeHandler(svc *service.GradeService) *GradeHandler {
	return &GradeHandler{service: svc}
}

// UpdateGradeCells godoc
// @Summary Record grade cells
// @Description Overwrite the entered cells of one student in one subject
// @Tags Grades
// @Accept json
// @Produce json
// @Param id path string true "Student id"
// @Param subjectId path string true "Subject id"
// @Param payload body models.SubjectGrade true "Grade cells"
// @Success 204 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /students/{id}/grades/{subjectId} [put]
func (h *GradeHandler) UpdateGradeCells(c *gin.Context) {
	claims := middleware.CurrentClaims(c)
	var grade models.SubjectGrade
	if err := c.ShouldBindJSON(&grade); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid grade payload"))
		return
	}
	grade.StudentID = c.Param("id")
	grade.SubjectID = c.Param("subjectId")

	if err := h.service.UpdateGradeCells(c.Request.Context(), claims.PrincipalID, &grade); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// StudentSheet godoc
// @Summary Student result sheet
// @Description Recompute the derived grades, verdict and exam eligibility
// @Tags Grades
// @Produce json
// @Param id path string true "Student id"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /students/{id}/sheet [get]
func (h *GradeHandler) StudentSheet(c *gin.Context) {
	claims := middleware.CurrentClaims(c)
	sheet, err := h.service.StudentSheet(c.Request.Context(), claims.PrincipalID, c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, sheet, nil)
}

// ClassSheets godoc
// @Summary Class result sheets
// @Description Recompute every student sheet of a class in one pass
// @Tags Grades
// @Produce json
// @Param id path string true "Class id"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /classes/{id}/sheets [get]
func (h *GradeHandler) ClassSheets(c *gin.Context) {
	claims := middleware.CurrentClaims(c)
	sheets, err := h.service.ClassSheets(c.Request.Context(), claims.PrincipalID, c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, sheets, nil)
}
