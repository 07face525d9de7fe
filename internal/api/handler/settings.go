package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/timmy/facecheck/internal/service"
)

// SettingsHandler exposes threshold overrides.
type SettingsHandler struct {
	integrityService *service.IntegrityService
}

// NewSettingsHandler creates a new settings handler.
func NewSettingsHandler(integrityService *service.IntegrityService) *SettingsHandler {
	return &SettingsHandler{integrityService: integrityService}
}

// UpdateSettingRequest sets one override. An empty value restores the default.
type UpdateSettingRequest struct {
	Value string `json:"value"`
}

// List handles GET /api/v1/settings.
func (h *SettingsHandler) List(c *gin.Context) {
	settings, err := h.integrityService.Settings(c.Request.Context())
	if err != nil {
		respondError(c, "Failed to list settings", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"settings": settings})
}

// Update handles PUT /api/v1/settings/:key.
func (h *SettingsHandler) Update(c *gin.Context) {
	var req UpdateSettingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request: " + err.Error()})
		return
	}
	if err := h.integrityService.UpdateSetting(c.Request.Context(), c.Param("key"), req.Value); err != nil {
		respondError(c, "Failed to update setting", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"key": c.Param("key"), "value": req.Value})
}
