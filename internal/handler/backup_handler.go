package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/hw-lee/chulseok-api/internal/models"
	"github.com/hw-lee/chulseok-api/internal/service"
	appErrors "github.com/hw-lee/chulseok-api/pkg/errors"
	"github.com/hw-lee/chulseok-api/pkg/response"
)

// BackupHandler exposes the snapshot lifecycle endpoints.
type BackupHandler struct {
	backups *service.BackupService
}

// NewBackupHandler constructs the handler.
func NewBackupHandler(backups *service.BackupService) *BackupHandler {
	return &BackupHandler{backups: backups}
}

// Register binds backup routes onto the group.
func (h *BackupHandler) Register(rg *gin.RouterGroup) {
	rg.GET("/backups", h.list)
	rg.POST("/backups", h.create)
	rg.POST("/backups/restore", h.restoreUpload)
	rg.GET("/backups/:id/download", h.download)
	rg.GET("/backups/:id/validate", h.validate)
	rg.POST("/backups/:id/restore", h.restore)
	rg.DELETE("/backups/:id", h.remove)
}

func (h *BackupHandler) create(c *gin.Context) {
	var body struct {
		Description string `json:"description"`
	}
	// A bare POST with no body is a plain manual backup.
	_ = c.ShouldBindJSON(&body)

	backup, err := h.backups.CreateSnapshot(c.Request.Context(), models.BackupTypeManual, body.Description)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, backup)
}

func (h *BackupHandler) list(c *gin.Context) {
	backups, err := h.backups.List(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, backups, nil)
}

func (h *BackupHandler) download(c *gin.Context) {
	payload, err := h.backups.Load(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, payload, nil)
}

func (h *BackupHandler) validate(c *gin.Context) {
	payload, err := h.backups.Load(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, h.backups.ValidateIntegrity(payload), nil)
}

func (h *BackupHandler) restore(c *gin.Context) {
	var opts models.RestoreOptions
	if err := c.ShouldBindJSON(&opts); err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, err.Error()))
		return
	}
	stats, err := h.backups.Restore(c.Request.Context(), c.Param("id"), opts)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, stats, nil)
}

func (h *BackupHandler) restoreUpload(c *gin.Context) {
	var body struct {
		Payload *models.SnapshotPayload `json:"payload"`
		Options models.RestoreOptions   `json:"options"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, err.Error()))
		return
	}
	if body.Payload == nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "payload is required"))
		return
	}
	stats, err := h.backups.RestorePayload(c.Request.Context(), body.Payload, body.Options)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, stats, nil)
}

func (h *BackupHandler) remove(c *gin.Context) {
	if err := h.backups.Delete(c.Request.Context(), c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}
