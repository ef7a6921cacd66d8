package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/hw-lee/chulseok-api/internal/service"
	"github.com/hw-lee/chulseok-api/pkg/response"
)

// MaintenanceHandler exposes housekeeping operations.
type MaintenanceHandler struct {
	maintenance *service.MaintenanceService
}

// NewMaintenanceHandler constructs the handler.
func NewMaintenanceHandler(maintenance *service.MaintenanceService) *MaintenanceHandler {
	return &MaintenanceHandler{maintenance: maintenance}
}

// Register binds maintenance routes onto the group.
func (h *MaintenanceHandler) Register(rg *gin.RouterGroup) {
	rg.GET("/maintenance/integrity", h.integrity)
	rg.POST("/maintenance/cleanup", h.cleanup)
}

func (h *MaintenanceHandler) integrity(c *gin.Context) {
	report, err := h.maintenance.CheckIntegrity(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, report, nil)
}

func (h *MaintenanceHandler) cleanup(c *gin.Context) {
	if err := h.maintenance.Cleanup(c.Request.Context()); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}
