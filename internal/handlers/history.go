package handlers

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"receipt-sentinel/internal/model"
)

// GetEmails returns the paginated processing history. Supported filters:
// ?status=, ?from=, ?to= (RFC 3339), ?page=, ?per_page=.
func (h *Handlers) GetEmails(c *gin.Context) {
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	perPage, _ := strconv.Atoi(c.DefaultQuery("per_page", "50"))

	status := model.EmailStatus(c.Query("status"))

	var from, to *time.Time
	if v := c.Query("from"); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			c.JSON(http.StatusBadRequest, ErrorResponse{Error: "validation_error", Message: "Invalid from timestamp", Code: http.StatusBadRequest})
			return
		}
		from = &t
	}
	if v := c.Query("to"); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			c.JSON(http.StatusBadRequest, ErrorResponse{Error: "validation_error", Message: "Invalid to timestamp", Code: http.StatusBadRequest})
			return
		}
		to = &t
	}

	emails, total, err := h.repo.EmailHistory(page, perPage, status, from, to)
	if err != nil {
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "database_error", Message: "Failed to fetch emails", Code: http.StatusInternalServerError})
		return
	}
	c.JSON(http.StatusOK, EmailPage{Emails: emails, Total: total, Page: page, PerPage: perPage})
}

// GetEmail returns a single processed email by ID
func (h *Handlers) GetEmail(c *gin.Context) {
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid_id", Message: "Invalid email ID", Code: http.StatusBadRequest})
		return
	}
	email, err := h.repo.GetProcessedEmail(uint(id))
	if err != nil {
		c.JSON(http.StatusNotFound, ErrorResponse{Error: "not_found", Message: "Email not found", Code: http.StatusNotFound})
		return
	}
	c.JSON(http.StatusOK, email)
}

// ForwardEmail re-forwards an email that was previously ignored or blocked
// and records a feedback rule so similar mail is forwarded in the future.
func (h *Handlers) ForwardEmail(c *gin.Context) {
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid_id", Message: "Invalid email ID", Code: http.StatusBadRequest})
		return
	}
	email, err := h.processor.ReprocessAsForwarded(c.Request.Context(), uint(id))
	if err != nil {
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "forward_error", Message: err.Error(), Code: http.StatusInternalServerError})
		return
	}
	c.JSON(http.StatusOK, email)
}

// GetRuns lists recent processing runs, most recent first
func (h *Handlers) GetRuns(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))
	runs, err := h.repo.ListRuns(limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "database_error", Message: "Failed to fetch runs", Code: http.StatusInternalServerError})
		return
	}
	c.JSON(http.StatusOK, runs)
}

// GetRun returns a single processing run by ID
func (h *Handlers) GetRun(c *gin.Context) {
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid_id", Message: "Invalid run ID", Code: http.StatusBadRequest})
		return
	}
	run, err := h.repo.GetRun(uint(id))
	if err != nil {
		c.JSON(http.StatusNotFound, ErrorResponse{Error: "not_found", Message: "Run not found", Code: http.StatusNotFound})
		return
	}
	c.JSON(http.StatusOK, run)
}
