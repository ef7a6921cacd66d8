package handler

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/hw-lee/chulseok-api/internal/models"
	"github.com/hw-lee/chulseok-api/internal/service"
	"github.com/hw-lee/chulseok-api/pkg/response"
)

// HistoryHandler exposes the read side of the audit log.
type HistoryHandler struct {
	history *service.HistoryService
}

// NewHistoryHandler constructs the handler.
func NewHistoryHandler(history *service.HistoryService) *HistoryHandler {
	return &HistoryHandler{history: history}
}

// Register binds history routes onto the group.
func (h *HistoryHandler) Register(rg *gin.RouterGroup) {
	rg.GET("/history", h.list)
}

func (h *HistoryHandler) list(c *gin.Context) {
	filter := models.HistoryFilter{
		EntityType: c.Query("entityType"),
		EntityID:   c.Query("entityId"),
	}
	filter.Page, _ = strconv.Atoi(c.DefaultQuery("page", "1"))
	filter.PageSize, _ = strconv.Atoi(c.DefaultQuery("pageSize", "50"))

	logs, pagination, err := h.history.List(c.Request.Context(), filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, logs, pagination)
}
