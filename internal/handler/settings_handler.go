package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/hw-lee/chulseok-api/internal/service"
	appErrors "github.com/hw-lee/chulseok-api/pkg/errors"
	"github.com/hw-lee/chulseok-api/pkg/response"
)

// SettingsHandler exposes the singleton settings record.
type SettingsHandler struct {
	settings *service.SettingsService
}

// NewSettingsHandler constructs the handler.
func NewSettingsHandler(settings *service.SettingsService) *SettingsHandler {
	return &SettingsHandler{settings: settings}
}

// Register binds settings routes onto the group.
func (h *SettingsHandler) Register(rg *gin.RouterGroup) {
	rg.GET("/settings", h.get)
	rg.PUT("/settings", h.update)
}

func (h *SettingsHandler) get(c *gin.Context) {
	settings, err := h.settings.Get(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, settings, nil)
}

func (h *SettingsHandler) update(c *gin.Context) {
	var input service.SettingsInput
	if err := c.ShouldBindJSON(&input); err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, err.Error()))
		return
	}
	settings, err := h.settings.Update(c.Request.Context(), input)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, settings, nil)
}
