package server

import (
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"
	metricsdomain "github.com/opencivic/muniva/internal/saasmetrics/domain"
	"github.com/opencivic/muniva/pkg/db/pagination"
)

func (s *Server) GetSaasMetrics(c *gin.Context) {
	period := strings.TrimSpace(c.Query("period"))

	report, err := s.metricsSvc.GetSaasMetrics(c.Request.Context(), period)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, report)
}

func (s *Server) GetMetricsEvolution(c *gin.Context) {
	months := 12
	if raw := strings.TrimSpace(c.Query("months")); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil {
			AbortWithError(c, newValidationError("months", "invalid_months", "months must be an integer"))
			return
		}
		months = parsed
	}

	points, err := s.metricsSvc.GetEvolution(c.Request.Context(), months)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"months": months,
		"points": points,
	})
}

func (s *Server) ListMetricsSnapshots(c *gin.Context) {
	var page pagination.Pagination
	if err := c.ShouldBindQuery(&page); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}
	if page.PageSize <= 0 {
		page.PageSize = 12
	}
	if page.PageSize > 120 {
		page.PageSize = 120
	}

	var before metricsdomain.Period
	if page.PageToken != "" {
		cursor, err := pagination.DecodeCursor(page.PageToken)
		if err != nil {
			AbortWithError(c, newValidationError("page_token", "invalid_page_token", "invalid page token"))
			return
		}
		before, err = metricsdomain.ParsePeriod(cursor.Period)
		if err != nil {
			AbortWithError(c, newValidationError("page_token", "invalid_page_token", "invalid page token"))
			return
		}
	}

	snapshots, err := s.snapshotRepo.ListDescending(c.Request.Context(), s.db, before, page.PageSize+1)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	pageInfo, snapshots := pagination.BuildCursorPageInfo(snapshots, page.PageSize, func(snap *metricsdomain.MetricsSnapshot) string {
		token, _ := pagination.EncodeCursor(pagination.Cursor{Period: snap.Period})
		return token
	})

	c.JSON(http.StatusOK, gin.H{
		"snapshots": snapshots,
		"page_info": pageInfo,
	})
}

func (s *Server) GetMetricsHealth(c *gin.Context) {
	report := s.metricsSvc.HealthReport(c.Request.Context())
	c.JSON(http.StatusOK, report)
}

type recalculateRequest struct {
	Event      string `json:"event"`
	TenantID   string `json:"tenant_id"`
	InvoiceID  string `json:"invoice_id"`
	OccurredAt string `json:"occurred_at"`
}

func (s *Server) RecalculateMetrics(c *gin.Context) {
	var req recalculateRequest
	if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
		AbortWithError(c, invalidRequestError())
		return
	}

	kind := metricsdomain.RecalcEventKind(strings.TrimSpace(req.Event))
	if kind == "" {
		kind = metricsdomain.EventManualTrigger
	}

	event := metricsdomain.RecalcEvent{Kind: kind}

	tenantID, err := parseOptionalSnowflakeID(req.TenantID)
	if err != nil {
		AbortWithError(c, newValidationError("tenant_id", "invalid_tenant_id", "invalid tenant id"))
		return
	}
	event.TenantID = tenantID

	invoiceID, err := parseOptionalSnowflakeID(req.InvoiceID)
	if err != nil {
		AbortWithError(c, newValidationError("invoice_id", "invalid_invoice_id", "invalid invoice id"))
		return
	}
	event.InvoiceID = invoiceID

	if raw := strings.TrimSpace(req.OccurredAt); raw != "" {
		occurredAt, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			AbortWithError(c, newValidationError("occurred_at", "invalid_occurred_at", "occurred_at must be RFC 3339"))
			return
		}
		event.OccurredAt = occurredAt
	}

	if err := s.metricsSvc.HandleEvent(c.Request.Context(), event); err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "recalculated", "event": string(kind)})
}

type backfillRequest struct {
	StartYear  int `json:"start_year"`
	StartMonth int `json:"start_month"`
	EndYear    int `json:"end_year"`
	EndMonth   int `json:"end_month"`
}

func (s *Server) BackfillMetrics(c *gin.Context) {
	var req backfillRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	result, err := s.metricsSvc.Backfill(c.Request.Context(), metricsdomain.BackfillRequest{
		StartYear:  req.StartYear,
		StartMonth: time.Month(req.StartMonth),
		EndYear:    req.EndYear,
		EndMonth:   time.Month(req.EndMonth),
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, result)
}

func parseOptionalSnowflakeID(raw string) (*snowflake.ID, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, nil
	}
	parsed, err := snowflake.ParseString(raw)
	if err != nil {
		return nil, err
	}
	return &parsed, nil
}
