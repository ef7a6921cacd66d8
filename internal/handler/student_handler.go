package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/hw-lee/chulseok-api/internal/models"
	"github.com/hw-lee/chulseok-api/internal/service"
	appErrors "github.com/hw-lee/chulseok-api/pkg/errors"
	"github.com/hw-lee/chulseok-api/pkg/response"
)

// StudentHandler exposes roster management endpoints.
type StudentHandler struct {
	students *service.StudentService
}

// NewStudentHandler constructs the handler.
func NewStudentHandler(students *service.StudentService) *StudentHandler {
	return &StudentHandler{students: students}
}

// Register binds roster routes onto the group.
func (h *StudentHandler) Register(rg *gin.RouterGroup) {
	rg.GET("/students", h.list)
	rg.POST("/students", h.create)
	rg.POST("/students/bulk", h.bulkCreate)
	rg.POST("/students/reorder", h.reorder)
	rg.GET("/students/statistics", h.statistics)
	rg.GET("/students/:id", h.get)
	rg.PUT("/students/:id", h.update)
	rg.DELETE("/students/:id", h.deactivate)
}

func (h *StudentHandler) list(c *gin.Context) {
	filter := models.StudentFilter{
		ClassName: c.Query("className"),
		Search:    c.Query("search"),
		SortBy:    c.Query("sortBy"),
		SortOrder: c.Query("sortOrder"),
	}
	if raw := c.Query("active"); raw != "" {
		active := raw == "true"
		filter.Active = &active
	}
	students, err := h.students.List(c.Request.Context(), filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, students, nil)
}

func (h *StudentHandler) get(c *gin.Context) {
	student, err := h.students.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, student, nil)
}

func (h *StudentHandler) create(c *gin.Context) {
	var input service.StudentInput
	if err := c.ShouldBindJSON(&input); err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, err.Error()))
		return
	}
	student, err := h.students.Add(c.Request.Context(), input)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, student)
}

func (h *StudentHandler) bulkCreate(c *gin.Context) {
	var inputs []service.StudentInput
	if err := c.ShouldBindJSON(&inputs); err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, err.Error()))
		return
	}
	result, err := h.students.BulkAdd(c.Request.Context(), inputs)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, result, nil)
}

func (h *StudentHandler) update(c *gin.Context) {
	var input service.StudentInput
	if err := c.ShouldBindJSON(&input); err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, err.Error()))
		return
	}
	student, err := h.students.Update(c.Request.Context(), c.Param("id"), input)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, student, nil)
}

func (h *StudentHandler) deactivate(c *gin.Context) {
	if err := h.students.Deactivate(c.Request.Context(), c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

func (h *StudentHandler) statistics(c *gin.Context) {
	stats, err := h.students.ClassStatistics(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, stats, nil)
}

func (h *StudentHandler) reorder(c *gin.Context) {
	var body struct {
		ClassName string `json:"className"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, err.Error()))
		return
	}
	students, err := h.students.ReorderNumbers(c.Request.Context(), body.ClassName)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, students, nil)
}
