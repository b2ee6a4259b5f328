package api

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"io"
	"net/http"
	"strconv"
	"time"

	"tourism-compliance/internal/enforcement"
	"tourism-compliance/internal/hosts"
	"tourism-compliance/internal/models"
	"tourism-compliance/internal/reconciliation"
	"tourism-compliance/internal/review"

	"github.com/gin-gonic/gin"
)

func (h *Handler) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "healthy"})
}

func (h *Handler) ready(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 3*time.Second)
	defer cancel()

	checks := make(map[string]string, len(h.deps.Checks))
	healthy := true
	for name, p := range h.deps.Checks {
		if err := p.Ping(ctx); err != nil {
			checks[name] = err.Error()
			healthy = false
			continue
		}
		checks[name] = "ok"
	}

	if !healthy {
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "not_ready", "checks": checks})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ready", "checks": checks})
}

// intQuery reads a non-negative integer query parameter, def when absent.
func intQuery(c *gin.Context, name string, def int) (int, bool) {
	raw := c.Query(name)
	if raw == "" {
		return def, true
	}
	v, err := strconv.Atoi(raw)
	if err != nil || v < 0 {
		badRequest(c, name+" must be a non-negative integer")
		return 0, false
	}
	return v, true
}

// ==========================
// Review
// ==========================

func (h *Handler) listPending(c *gin.Context) {
	limit, ok := intQuery(c, "limit", 0)
	if !ok {
		return
	}
	offset, ok := intQuery(c, "offset", 0)
	if !ok {
		return
	}

	page, err := h.deps.Review.ListPending(c.Request.Context(), review.PendingQuery{
		MatchType: models.MatchType(c.Query("matchType")),
		Limit:     limit,
		Offset:    offset,
	})
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, page)
}

func (h *Handler) reviewSummary(c *gin.Context) {
	summary, err := h.deps.Review.Summary(c.Request.Context())
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, summary)
}

func (h *Handler) getMatch(c *gin.Context) {
	item, err := h.deps.Review.GetMatch(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, item)
}

func (h *Handler) decide(c *gin.Context) {
	var req review.DecisionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid JSON body: "+err.Error())
		return
	}
	dec, err := req.Parse()
	if err != nil {
		h.respondError(c, err)
		return
	}

	res, err := h.deps.Review.Decide(c.Request.Context(), req.MatchID, dec, req.Notes)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

func (h *Handler) escalations(c *gin.Context) {
	limit, ok := intQuery(c, "limit", 50)
	if !ok {
		return
	}
	entries, err := h.deps.Review.Escalations(c.Request.Context(), limit)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"items": entries, "count": len(entries)})
}

// ==========================
// Enforcement
// ==========================

func (h *Handler) prioritize(c *gin.Context) {
	var req enforcement.Request
	if ok := bindOptionalJSON(c, &req); !ok {
		return
	}
	resp, err := h.deps.Enforcement.Run(c.Request.Context(), req)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// ==========================
// Ingestion
// ==========================

func (h *Handler) ingestListing(c *gin.Context) {
	raw, err := c.GetRawData()
	if err != nil {
		badRequest(c, "unreadable body")
		return
	}
	res, err := h.deps.Ingestion.IngestJSON(c.Request.Context(), raw)
	if err != nil {
		h.respondError(c, err)
		return
	}
	status := http.StatusOK
	if res.Created {
		status = http.StatusCreated
	}
	c.JSON(status, res)
}

func (h *Handler) ingestListings(c *gin.Context) {
	var docs []json.RawMessage
	if err := c.ShouldBindJSON(&docs); err != nil {
		badRequest(c, "body must be a JSON array of listings")
		return
	}
	c.JSON(http.StatusOK, h.deps.Ingestion.IngestMany(c.Request.Context(), docs))
}

// ==========================
// Reconciliation
// ==========================

func (h *Handler) reconcileListing(c *gin.Context) {
	rec, err := h.deps.Reconciliation.ReconcileListing(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, rec)
}

func (h *Handler) runBatch(c *gin.Context) {
	var req reconciliation.BatchRequest
	if ok := bindOptionalJSON(c, &req); !ok {
		return
	}
	res, err := h.deps.Reconciliation.RunBatch(c.Request.Context(), req)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

func (h *Handler) revalidate(c *gin.Context) {
	res, err := h.deps.Reconciliation.Revalidate(c.Request.Context())
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

// ==========================
// Hosts
// ==========================

func (h *Handler) operators(c *gin.Context) {
	minListings, ok := intQuery(c, "min", 2)
	if !ok {
		return
	}
	ops, err := h.deps.Operators(c.Request.Context(), c.Query("city"))
	if err != nil {
		h.respondError(c, err)
		return
	}
	ops = hosts.MultiProperty(ops, minListings)
	if ops == nil {
		ops = []hosts.Operator{}
	}
	c.JSON(http.StatusOK, gin.H{"operators": ops, "count": len(ops)})
}

// bindOptionalJSON decodes the body into dest. An empty body leaves dest at its zero value.
func bindOptionalJSON(c *gin.Context, dest interface{}) bool {
	if err := c.ShouldBindJSON(dest); err != nil && !stderrors.Is(err, io.EOF) {
		badRequest(c, "invalid JSON body: "+err.Error())
		return false
	}
	return true
}
