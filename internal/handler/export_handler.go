package handler

import (
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/hw-lee/chulseok-api/internal/service"
	appErrors "github.com/hw-lee/chulseok-api/pkg/errors"
	"github.com/hw-lee/chulseok-api/pkg/response"
)

// ExportHandler serves CSV/PDF downloads and roster CSV uploads.
type ExportHandler struct {
	exports *service.ExportService
}

// NewExportHandler constructs the handler.
func NewExportHandler(exports *service.ExportService) *ExportHandler {
	return &ExportHandler{exports: exports}
}

// Register binds export routes onto the group.
func (h *ExportHandler) Register(rg *gin.RouterGroup) {
	rg.GET("/exports/roster", h.roster)
	rg.GET("/exports/attendance", h.attendance)
	rg.GET("/exports/report", h.monthlyReport)
	rg.POST("/imports/roster", h.importRoster)
}

func (h *ExportHandler) roster(c *gin.Context) {
	data, err := h.exports.ExportRoster(c.Request.Context(), c.Query("className"))
	if err != nil {
		response.Error(c, err)
		return
	}
	sendFile(c, "roster.csv", "text/csv", data)
}

func (h *ExportHandler) attendance(c *gin.Context) {
	format := c.DefaultQuery("format", service.FormatCSVA)
	data, err := h.exports.ExportAttendance(c.Request.Context(),
		c.Query("dateFrom"), c.Query("dateTo"), c.Query("className"), format)
	if err != nil {
		response.Error(c, err)
		return
	}
	filename := fmt.Sprintf("attendance-%s.csv", time.Now().Format("20060102"))
	sendFile(c, filename, "text/csv", data)
}

func (h *ExportHandler) monthlyReport(c *gin.Context) {
	year, err := strconv.Atoi(c.Query("year"))
	if err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "year must be an integer"))
		return
	}
	month, err := strconv.Atoi(c.Query("month"))
	if err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "month must be an integer"))
		return
	}
	data, err := h.exports.MonthlyReportPDF(c.Request.Context(), year, month, c.Query("className"))
	if err != nil {
		response.Error(c, err)
		return
	}
	filename := fmt.Sprintf("report-%04d-%02d.pdf", year, month)
	sendFile(c, filename, "application/pdf", data)
}

func (h *ExportHandler) importRoster(c *gin.Context) {
	content, err := readUpload(c)
	if err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, err.Error()))
		return
	}
	overwrite := c.Query("overwrite") == "true"
	result, err := h.exports.ImportRoster(c.Request.Context(), content, overwrite)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, result, nil)
}

// readUpload accepts either a multipart "file" field or a raw CSV body.
func readUpload(c *gin.Context) (string, error) {
	if file, err := c.FormFile("file"); err == nil {
		f, err := file.Open()
		if err != nil {
			return "", fmt.Errorf("open upload: %w", err)
		}
		defer f.Close()
		data, err := io.ReadAll(f)
		if err != nil {
			return "", fmt.Errorf("read upload: %w", err)
		}
		return string(data), nil
	}
	data, err := io.ReadAll(c.Request.Body)
	if err != nil {
		return "", fmt.Errorf("read body: %w", err)
	}
	if len(data) == 0 {
		return "", fmt.Errorf("empty upload")
	}
	return string(data), nil
}

func sendFile(c *gin.Context, filename, contentType string, data []byte) {
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	c.Data(http.StatusOK, contentType, data)
}
