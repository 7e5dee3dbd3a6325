package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
)

// GetCandidates lists learning candidates pending review
func (h *Handlers) GetCandidates(c *gin.Context) {
	candidates, err := h.repo.ListCandidates()
	if err != nil {
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "database_error", Message: "Failed to fetch candidates", Code: http.StatusInternalServerError})
		return
	}
	c.JSON(http.StatusOK, candidates)
}

// ApproveCandidate converts a candidate into an active rule
func (h *Handlers) ApproveCandidate(c *gin.Context) {
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid_id", Message: "Invalid candidate ID", Code: http.StatusBadRequest})
		return
	}
	rule, err := h.learning.ApproveCandidate(uint(id))
	if err != nil {
		c.JSON(http.StatusNotFound, ErrorResponse{Error: "not_found", Message: err.Error(), Code: http.StatusNotFound})
		return
	}
	c.JSON(http.StatusCreated, rule)
}

// RejectCandidate discards a candidate
func (h *Handlers) RejectCandidate(c *gin.Context) {
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid_id", Message: "Invalid candidate ID", Code: http.StatusBadRequest})
		return
	}
	if err := h.learning.RejectCandidate(uint(id)); err != nil {
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "database_error", Message: "Failed to reject candidate", Code: http.StatusInternalServerError})
		return
	}
	c.Status(http.StatusNoContent)
}

// ScanHistory scans recent mailbox history for receipt senders that have no
// matching rule yet and records them as candidates.
func (h *Handlers) ScanHistory(c *gin.Context) {
	var req ScanRequest
	if err := c.ShouldBindJSON(&req); err != nil && err.Error() != "EOF" {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "validation_error", Message: "Invalid request body", Code: http.StatusBadRequest})
		return
	}
	days := req.Days
	if days <= 0 {
		days = 30
	}
	found, err := h.learning.ScanHistory(c.Request.Context(), h.fetcher, h.accounts.ListActive(), days)
	if err != nil {
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "scan_error", Message: err.Error(), Code: http.StatusInternalServerError})
		return
	}
	c.JSON(http.StatusOK, gin.H{"new_candidates": found, "days": days})
}
