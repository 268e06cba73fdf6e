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

// SchoolHandler wires HTTP endpoints to the school service.
type SchoolHandler struct {
	service *service.SchoolService
}

// NewSchoolHandler creates a new handler.
func NewSchoolHandler(svc *service.SchoolService) *SchoolHandler {
	return &SchoolHandler{service: svc}
}

// GetSettings godoc
// @Summary Get school settings
// @Tags School
// @Produce json
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /school/settings [get]
func (h *SchoolHandler) GetSettings(c *gin.Context) {
	claims := middleware.CurrentClaims(c)
	settings, err := h.service.Settings(c.Request.Context(), claims.PrincipalID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, settings, nil)
}

// UpdateSettings godoc
// @Summary Update school settings
// @Description Store the grading policy: level, decision points, supplementary limit
// @Tags School
// @Accept json
// @Produce json
// @Param payload body models.SettingsRequest true "Settings payload"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /school/settings [put]
func (h *SchoolHandler) UpdateSettings(c *gin.Context) {
	claims := middleware.CurrentClaims(c)
	var req models.SettingsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid settings payload"))
		return
	}
	settings, err := h.service.UpdateSettings(c.Request.Context(), claims.PrincipalID, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, settings, nil)
}

// CreateClass godoc
// @Summary Create a class
// @Tags School
// @Accept json
// @Produce json
// @Param payload body models.CreateClassRequest true "Class payload"
// @Success 201 {object} response.Envelope
// @Router /school/classes [post]
func (h *SchoolHandler) CreateClass(c *gin.Context) {
	claims := middleware.CurrentClaims(c)
	var req models.CreateClassRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid class payload"))
		return
	}
	class, err := h.service.CreateClass(c.Request.Context(), claims.PrincipalID, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, class)
}

// ListClasses godoc
// @Summary List classes
// @Tags School
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /school/classes [get]
func (h *SchoolHandler) ListClasses(c *gin.Context) {
	claims := middleware.CurrentClaims(c)
	classes, err := h.service.ListClasses(c.Request.Context(), claims.PrincipalID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, classes, nil)
}

// GetClass godoc
// @Summary Get a class with its subjects
// @Tags School
// @Produce json
// @Param id path string true "Class id"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /school/classes/{id} [get]
func (h *SchoolHandler) GetClass(c *gin.Context) {
	claims := middleware.CurrentClaims(c)
	class, err := h.service.Class(c.Request.Context(), claims.PrincipalID, c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, class, nil)
}

// DeleteClass godoc
// @Summary Delete a class
// @Tags School
// @Param id path string true "Class id"
// @Success 204 {object} response.Envelope
// @Router /school/classes/{id} [delete]
func (h *SchoolHandler) DeleteClass(c *gin.Context) {
	claims := middleware.CurrentClaims(c)
	if err := h.service.DeleteClass(c.Request.Context(), claims.PrincipalID, c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// AddSubject godoc
// @Summary Add a subject to a class
// @Tags School
// @Accept json
// @Produce json
// @Param id path string true "Class id"
// @Param payload body models.CreateSubjectRequest true "Subject payload"
// @Success 201 {object} response.Envelope
// @Router /school/classes/{id}/subjects [post]
func (h *SchoolHandler) AddSubject(c *gin.Context) {
	claims := middleware.CurrentClaims(c)
	var req models.CreateSubjectRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid subject payload"))
		return
	}
	subject, err := h.service.AddSubject(c.Request.Context(), claims.PrincipalID, c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, subject)
}

// RemoveSubject godoc
// @Summary Remove a subject from a class
// @Tags School
// @Param id path string true "Class id"
// @Param subjectId path string true "Subject id"
// @Success 204 {object} response.Envelope
// @Router /school/classes/{id}/subjects/{subjectId} [delete]
func (h *SchoolHandler) RemoveSubject(c *gin.Context) {
	claims := middleware.CurrentClaims(c)
	if err := h.service.RemoveSubject(c.Request.Context(), claims.PrincipalID, c.Param("id"), c.Param("subjectId")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// AddStudent godoc
// @Summary Add a student to a class roster
// @Tags School
// @Accept json
// @Produce json
// @Param id path string true "Class id"
// @Param payload body models.StudentRequest true "Student payload"
// @Success 201 {object} response.Envelope
// @Router /school/classes/{id}/students [post]
func (h *SchoolHandler) AddStudent(c *gin.Context) {
	claims := middleware.CurrentClaims(c)
	var req models.StudentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid student payload"))
		return
	}
	student, err := h.service.AddStudent(c.Request.Context(), claims.PrincipalID, c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, student)
}

// Roster godoc
// @Summary List the students of a class
// @Tags School
// @Produce json
// @Param id path string true "Class id"
// @Success 200 {object} response.Envelope
// @Router /school/classes/{id}/students [get]
func (h *SchoolHandler) Roster(c *gin.Context) {
	claims := middleware.CurrentClaims(c)
	roster, err := h.service.Roster(c.Request.Context(), claims.PrincipalID, c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, roster, nil)
}

// UpdateStudent godoc
// @Summary Update a roster entry
// @Tags School
// @Accept json
// @Produce json
// @Param id path string true "Student id"
// @Param payload body models.StudentRequest true "Student payload"
// @Success 200 {object} response.Envelope
// @Router /school/students/{id} [put]
func (h *SchoolHandler) UpdateStudent(c *gin.Context) {
	claims := middleware.CurrentClaims(c)
	var req models.StudentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid student payload"))
		return
	}
	student, err := h.service.UpdateStudent(c.Request.Context(), claims.PrincipalID, c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, student, nil)
}

// RemoveStudent godoc
// @Summary Remove a roster entry
// @Tags School
// @Param id path string true "Student id"
// @Success 204 {object} response.Envelope
// @Router /school/students/{id} [delete]
func (h *SchoolHandler) RemoveStudent(c *gin.Context) {
	claims := middleware.CurrentClaims(c)
	if err := h.service.RemoveStudent(c.Request.Context(), claims.PrincipalID, c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}
