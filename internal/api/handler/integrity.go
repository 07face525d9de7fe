package handler

import (
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/timmy/facecheck/internal/domain"
	"github.com/timmy/facecheck/internal/integrity"
	"github.com/timmy/facecheck/internal/logger"
	"github.com/timmy/facecheck/internal/service"
)

// IntegrityHandler handles scans, fixes and scan history.
type IntegrityHandler struct {
	integrityService *service.IntegrityService
	logger           *logger.Logger

	// Scan job state
	mu            sync.RWMutex
	isRunning     bool
	lastRunTime   time.Time
	lastRunStatus string
}

// NewIntegrityHandler creates a new integrity handler.
// Parameters:
//   - integrityService: integrity service instance.
//   - log: logger instance.
// Returns:
//   - *IntegrityHandler: initialized handler.
func NewIntegrityHandler(integrityService *service.IntegrityService, log *logger.Logger) *IntegrityHandler {
	return &IntegrityHandler{
		integrityService: integrityService,
		logger:           log,
	}
}

// log returns a logger from the request context if available, otherwise the handler logger
func (h *IntegrityHandler) log(c *gin.Context) *logger.Logger {
	if l := logger.FromContext(c.Request.Context()); l != nil {
		return l
	}
	return h.logger
}

// ScanStatusResponse represents the scan job state.
type ScanStatusResponse struct {
	IsRunning     bool   `json:"is_running"`
	LastRunTime   string `json:"last_run_time,omitempty"`
	LastRunStatus string `json:"last_run_status,omitempty"`
}

// RunScan handles POST /api/v1/integrity/scans.
// Only one scan runs at a time; a concurrent request gets 409.
// Parameters:
//   - c: Gin request context.
// Returns: none (writes JSON response).
func (h *IntegrityHandler) RunScan(c *gin.Context) {
	ctx := c.Request.Context()

	h.mu.Lock()
	if h.isRunning {
		h.mu.Unlock()
		logger.CtxWarn(ctx, "Scan request rejected: already running, client_ip=%s", c.ClientIP())
		c.JSON(http.StatusConflict, gin.H{"error": "Scan is already running"})
		return
	}
	h.isRunning = true
	h.mu.Unlock()

	report, run, err := h.integrityService.RunScan(ctx)

	h.mu.Lock()
	h.isRunning = false
	h.lastRunTime = time.Now()
	if err != nil {
		h.lastRunStatus = "failed: " + err.Error()
	} else {
		h.lastRunStatus = string(run.Status)
	}
	h.mu.Unlock()

	if err != nil {
		h.log(c).WithError(err).Error("Integrity scan failed")
		respondError(c, "Scan failed", err)
		return
	}
	c.JSON(http.StatusOK, report)
}

// ScanStatus handles GET /api/v1/integrity/scans/status.
func (h *IntegrityHandler) ScanStatus(c *gin.Context) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	resp := ScanStatusResponse{IsRunning: h.isRunning, LastRunStatus: h.lastRunStatus}
	if !h.lastRunTime.IsZero() {
		resp.LastRunTime = h.lastRunTime.Format(time.RFC3339)
	}
	c.JSON(http.StatusOK, resp)
}

// ApplyFix handles POST /api/v1/integrity/fixes/:type.
// Parameters:
//   - c: Gin request context.
// Returns: none (writes JSON response).
func (h *IntegrityHandler) ApplyFix(c *gin.Context) {
	issueType := integrity.IssueType(c.Param("type"))
	res, err := h.integrityService.ApplyFix(c.Request.Context(), issueType)
	if err != nil {
		respondError(c, "Fix failed", err)
		return
	}
	c.JSON(http.StatusOK, res)
}

// IssueTypes handles GET /api/v1/integrity/issue-types.
func (h *IntegrityHandler) IssueTypes(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"issue_types": h.integrityService.IssueTypes()})
}

// ListRuns handles GET /api/v1/integrity/runs.
func (h *IntegrityHandler) ListRuns(c *gin.Context) {
	status := domain.ScanRunStatus(c.Query("status"))
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "20"))
	offset, _ := strconv.Atoi(c.DefaultQuery("offset", "0"))

	runs, err := h.integrityService.ListRuns(c.Request.Context(), status, limit, offset)
	if err != nil {
		respondError(c, "Failed to list runs", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"runs": runs, "limit": limit, "offset": offset})
}

// GetRun handles GET /api/v1/integrity/runs/:id.
func (h *IntegrityHandler) GetRun(c *gin.Context) {
	run, err := h.integrityService.GetRun(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, "Run not available", err)
		return
	}
	c.JSON(http.StatusOK, run)
}

// GetReport handles GET /api/v1/integrity/runs/:id/report.
func (h *IntegrityHandler) GetReport(c *gin.Context) {
	raw, err := h.integrityService.GetReport(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, "Report not available", err)
		return
	}
	c.Data(http.StatusOK, "application/json", raw)
}
