package handlers

import (
	"encoding/csv"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/cockpit-trainer/cockpit-api/internal/models"
	"github.com/cockpit-trainer/cockpit-api/internal/services"
	"github.com/cockpit-trainer/cockpit-api/internal/store"

	"github.com/gin-gonic/gin"
)

const maxAuditExportRows = 10000

// AuditHandler exposes the audit trail to admins
type AuditHandler struct {
	auditService *services.AuditService
}

// NewAuditHandler creates a new audit handler
func NewAuditHandler(auditService *services.AuditService) *AuditHandler {
	return &AuditHandler{auditService: auditService}
}

// AuditLogListResponse is one page of audit entries
type AuditLogListResponse struct {
	Logs       []models.AuditLog      `json:"logs"`
	Pagination store.PaginationResult `json:"pagination"`
}

// parseAuditFilters reads the shared filter query parameters. Unparseable
// times are ignored.
func parseAuditFilters(c *gin.Context) store.AuditLogFilters {
	filters := store.AuditLogFilters{
		EventType:    models.EventType(c.Query("event_type")),
		ActorUserID:  c.Query("actor_user_id"),
		TargetUserID: c.Query("target_user_id"),
		Severity:     models.EventSeverity(c.Query("severity")),
		ActorIP:      c.Query("actor_ip"),
	}

	if raw := c.Query("success"); raw != "" {
		if success, err := strconv.ParseBool(raw); err == nil {
			filters.Success = &success
		}
	}
	if raw := c.Query("start_time"); raw != "" {
		if t, err := time.Parse(time.RFC3339, raw); err == nil {
			filters.StartTime = t
		}
	}
	if raw := c.Query("end_time"); raw != "" {
		if t, err := time.Parse(time.RFC3339, raw); err == nil {
			filters.EndTime = t
		}
	}
	return filters
}

// ListAuditLogs godoc
//
//	@Summary	List audit log entries
//	@Tags		Admin
//	@Security	BearerAuth
//	@Produce	json
//	@Param		page			query		int		false	"Page number"	default(1)
//	@Param		page_size		query		int		false	"Page size"		default(20)
//	@Param		event_type		query		string	false	"Event type"
//	@Param		actor_user_id	query		string	false	"Actor user ID"
//	@Param		target_user_id	query		string	false	"Target user ID"
//	@Param		severity		query		string	false	"INFO, WARNING or CRITICAL"
//	@Param		success			query		bool	false	"Outcome"
//	@Param		start_time		query		string	false	"RFC3339 lower bound"
//	@Param		end_time		query		string	false	"RFC3339 upper bound"
//	@Success	200				{object}	AuditLogListResponse
//	@Failure	403				{object}	errorResponse
//	@Router		/admin/audit [get]
func (h *AuditHandler) ListAuditLogs(c *gin.Context) {
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	pageSize, _ := strconv.Atoi(c.DefaultQuery("page_size", "20"))
	params := store.NewPaginationParams(page, pageSize, "")

	logs, pagination, err := h.auditService.GetAuditLogs(
		c.Request.Context(),
		params,
		parseAuditFilters(c),
	)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, AuditLogListResponse{Logs: logs, Pagination: pagination})
}

// ExportAuditLogs godoc
//
//	@Summary	Export audit log entries as CSV
//	@Tags		Admin
//	@Security	BearerAuth
//	@Produce	text/csv
//	@Success	200	{string}	string	"CSV file"
//	@Router		/admin/audit/export [get]
func (h *AuditHandler) ExportAuditLogs(c *gin.Context) {
	params := store.PaginationParams{Page: 1, PageSize: maxAuditExportRows}

	logs, _, err := h.auditService.GetAuditLogs(c.Request.Context(), params, parseAuditFilters(c))
	if err != nil {
		respondError(c, err)
		return
	}

	c.Header("Content-Type", "text/csv")
	c.Header("Content-Disposition", fmt.Sprintf(
		"attachment; filename=audit_logs_%s.csv",
		time.Now().Format("2006-01-02"),
	))

	writer := csv.NewWriter(c.Writer)
	defer writer.Flush()

	if err := writer.Write([]string{
		"Event Time",
		"Event Type",
		"Severity",
		"Actor User",
		"Actor IP",
		"Target User",
		"Success",
		"Error Message",
	}); err != nil {
		return
	}

	for _, entry := range logs {
		if err := writer.Write([]string{
			entry.EventTime.Format(time.RFC3339),
			string(entry.EventType),
			string(entry.Severity),
			entry.ActorUserID,
			entry.ActorIP,
			entry.TargetUserID,
			strconv.FormatBool(entry.Success),
			entry.ErrorMessage,
		}); err != nil {
			return
		}
	}
}
