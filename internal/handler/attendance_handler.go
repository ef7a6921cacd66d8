package handler

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/hw-lee/chulseok-api/internal/models"
	"github.com/hw-lee/chulseok-api/internal/service"
	appErrors "github.com/hw-lee/chulseok-api/pkg/errors"
	"github.com/hw-lee/chulseok-api/pkg/response"
)

// AttendanceHandler exposes attendance recording, resolution and bulk-edit
// endpoints.
type AttendanceHandler struct {
	attendance *service.AttendanceService
}

// NewAttendanceHandler constructs the handler.
func NewAttendanceHandler(attendance *service.AttendanceService) *AttendanceHandler {
	return &AttendanceHandler{attendance: attendance}
}

// Register binds attendance routes onto the group.
func (h *AttendanceHandler) Register(rg *gin.RouterGroup) {
	rg.GET("/attendance", h.list)
	rg.POST("/attendance", h.upsert)
	rg.POST("/attendance/validate", h.validate)
	rg.POST("/attendance/bulk", h.bulkUpsert)
	rg.POST("/attendance/cascade-early-leave", h.cascadeEarlyLeave)
	rg.POST("/attendance/reconcile-partial-absence", h.reconcilePartialAbsence)
	rg.GET("/attendance/summary", h.daySummary)
	rg.GET("/attendance/stats/:studentId", h.studentStats)
	rg.DELETE("/attendance/:id", h.remove)
}

func (h *AttendanceHandler) upsert(c *gin.Context) {
	var input service.UpsertEntryInput
	if err := c.ShouldBindJSON(&input); err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, err.Error()))
		return
	}
	entry, err := h.attendance.UpsertEntry(c.Request.Context(), input)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, entry, nil)
}

// validate checks an entry without writing anything.
func (h *AttendanceHandler) validate(c *gin.Context) {
	var input service.UpsertEntryInput
	if err := c.ShouldBindJSON(&input); err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, err.Error()))
		return
	}
	if err := h.attendance.ValidateEntry(input); err != nil {
		appErr := appErrors.FromError(err)
		response.JSON(c, http.StatusOK, gin.H{"valid": false, "message": appErr.Message}, nil)
		return
	}
	response.JSON(c, http.StatusOK, gin.H{"valid": true}, nil)
}

func (h *AttendanceHandler) bulkUpsert(c *gin.Context) {
	var inputs []service.UpsertEntryInput
	if err := c.ShouldBindJSON(&inputs); err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, err.Error()))
		return
	}
	result, err := h.attendance.BulkUpsert(c.Request.Context(), inputs)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, result, nil)
}

func (h *AttendanceHandler) cascadeEarlyLeave(c *gin.Context) {
	var body struct {
		StudentID  string  `json:"studentId"`
		Date       string  `json:"date"`
		FromPeriod int     `json:"fromPeriod"`
		MaxPeriods int     `json:"maxPeriods"`
		Reason     *string `json:"reason"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, err.Error()))
		return
	}
	entries, err := h.attendance.CascadeEarlyLeave(c.Request.Context(), body.StudentID, body.Date, body.FromPeriod, body.MaxPeriods, body.Reason)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, entries, nil)
}

func (h *AttendanceHandler) reconcilePartialAbsence(c *gin.Context) {
	var body struct {
		StudentID      string `json:"studentId"`
		Date           string `json:"date"`
		PresentPeriods []int  `json:"presentPeriods"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, err.Error()))
		return
	}
	entries, err := h.attendance.ReconcilePartialAbsence(c.Request.Context(), body.StudentID, body.Date, body.PresentPeriods)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, entries, nil)
}

func (h *AttendanceHandler) list(c *gin.Context) {
	filter := models.AttendanceFilter{
		DateFrom:  c.Query("dateFrom"),
		DateTo:    c.Query("dateTo"),
		StudentID: c.Query("studentId"),
	}
	if raw := c.Query("statuses"); raw != "" {
		for _, s := range strings.Split(raw, ",") {
			filter.Statuses = append(filter.Statuses, models.AttendanceStatus(strings.TrimSpace(s)))
		}
	}
	if raw := c.Query("periods"); raw != "" {
		for _, p := range strings.Split(raw, ",") {
			period, err := strconv.Atoi(strings.TrimSpace(p))
			if err != nil {
				response.Error(c, appErrors.Clone(appErrors.ErrValidation, "periods must be integers"))
				return
			}
			filter.Periods = append(filter.Periods, period)
		}
	}
	filter.Page, _ = strconv.Atoi(c.DefaultQuery("page", "1"))
	filter.PageSize, _ = strconv.Atoi(c.DefaultQuery("pageSize", "50"))

	entries, pagination, err := h.attendance.List(c.Request.Context(), filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, entries, pagination)
}

func (h *AttendanceHandler) daySummary(c *gin.Context) {
	date := c.Query("date")
	if date == "" {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "date is required"))
		return
	}
	summary, err := h.attendance.DaySummary(c.Request.Context(), date, c.Query("className"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, summary, nil)
}

func (h *AttendanceHandler) studentStats(c *gin.Context) {
	from := c.Query("dateFrom")
	to := c.Query("dateTo")
	if from == "" || to == "" {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "dateFrom and dateTo are required"))
		return
	}
	stats, err := h.attendance.StudentStats(c.Request.Context(), c.Param("studentId"), from, to)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, stats, nil)
}

func (h *AttendanceHandler) remove(c *gin.Context) {
	if err := h.attendance.Delete(c.Request.Context(), c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}
