package handler

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/timmy/facecheck/internal/service"
)

// PersonHandler handles duplicate resolution and embedding maintenance for persons.
type PersonHandler struct {
	integrityService *service.IntegrityService
}

// NewPersonHandler creates a new person handler.
func NewPersonHandler(integrityService *service.IntegrityService) *PersonHandler {
	return &PersonHandler{integrityService: integrityService}
}

// MergeRequest represents the merge API request.
type MergeRequest struct {
	KeepID     int64   `json:"keep_id" binding:"required,min=1"`
	DiscardIDs []int64 `json:"discard_ids" binding:"required,min=1"`
}

// ThresholdRequest carries an optional outlier threshold; zero uses the configured value.
type ThresholdRequest struct {
	Threshold float64 `json:"threshold" binding:"min=0,max=1"`
}

func personID(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid person ID: " + c.Param("id")})
		return 0, false
	}
	return id, true
}

// bindThreshold reads an optional JSON body. An empty body means the default threshold.
func bindThreshold(c *gin.Context) (float64, bool) {
	var req ThresholdRequest
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request: " + err.Error()})
			return 0, false
		}
	}
	return req.Threshold, true
}

// Duplicates handles GET /api/v1/persons/duplicates.
func (h *PersonHandler) Duplicates(c *gin.Context) {
	groups, err := h.integrityService.FindDuplicates(c.Request.Context())
	if err != nil {
		respondError(c, "Failed to find duplicates", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"groups": groups, "total": len(groups)})
}

// Merge handles POST /api/v1/persons/merge.
// Parameters:
//   - c: Gin request context.
// Returns: none (writes JSON response).
func (h *PersonHandler) Merge(c *gin.Context) {
	var req MergeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request: " + err.Error()})
		return
	}
	res, err := h.integrityService.Merge(c.Request.Context(), req.KeepID, req.DiscardIDs)
	if err != nil {
		respondError(c, "Merge failed", err)
		return
	}
	c.JSON(http.StatusOK, res)
}

// Delete handles DELETE /api/v1/persons/:id.
func (h *PersonHandler) Delete(c *gin.Context) {
	id, ok := personID(c)
	if !ok {
		return
	}
	res, err := h.integrityService.DeletePerson(c.Request.Context(), id)
	if err != nil {
		respondError(c, "Delete failed", err)
		return
	}
	c.JSON(http.StatusOK, res)
}

// AuditEmbeddings handles GET /api/v1/persons/:id/embeddings/audit?threshold=.
func (h *PersonHandler) AuditEmbeddings(c *gin.Context) {
	id, ok := personID(c)
	if !ok {
		return
	}
	threshold, err := strconv.ParseFloat(c.DefaultQuery("threshold", "0"), 64)
	if err != nil || threshold < 0 || threshold > 1 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid threshold: " + c.Query("threshold")})
		return
	}
	audit, err := h.integrityService.AuditPerson(c.Request.Context(), id, threshold)
	if err != nil {
		respondError(c, "Audit failed", err)
		return
	}
	c.JSON(http.StatusOK, audit)
}

// ClearOutliers handles POST /api/v1/persons/:id/embeddings/clear-outliers.
func (h *PersonHandler) ClearOutliers(c *gin.Context) {
	id, ok := personID(c)
	if !ok {
		return
	}
	threshold, ok := bindThreshold(c)
	if !ok {
		return
	}
	res, err := h.integrityService.ClearOutliers(c.Request.Context(), id, threshold)
	if err != nil {
		respondError(c, "Clear outliers failed", err)
		return
	}
	c.JSON(http.StatusOK, res)
}

// Reinstate handles POST /api/v1/persons/:id/embeddings/reinstate.
func (h *PersonHandler) Reinstate(c *gin.Context) {
	id, ok := personID(c)
	if !ok {
		return
	}
	res, err := h.integrityService.Reinstate(c.Request.Context(), id)
	if err != nil {
		respondError(c, "Reinstate failed", err)
		return
	}
	c.JSON(http.StatusOK, res)
}

// MassAudit handles POST /api/v1/embeddings/mass-audit.
func (h *PersonHandler) MassAudit(c *gin.Context) {
	threshold, ok := bindThreshold(c)
	if !ok {
		return
	}
	res, err := h.integrityService.MassAudit(c.Request.Context(), threshold)
	if err != nil {
		respondError(c, "Mass audit failed", err)
		return
	}
	c.JSON(http.StatusOK, res)
}
