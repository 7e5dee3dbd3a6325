package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"receipt-sentinel/internal/model"
)

// GetRules returns manual rules. ?mode=shadow restricts to shadow rules,
// ?mode=active to active ones; the default is all rules.
func (h *Handlers) GetRules(c *gin.Context) {
	var (
		rules []model.ManualRule
		err   error
	)
	switch c.Query("mode") {
	case "shadow":
		rules, err = h.repo.ShadowRules()
	case "active":
		rules, err = h.repo.ActiveRules()
	default:
		rules, err = h.repo.AllRules()
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, ErrorResponse{
			Error:   "database_error",
			Message: "Failed to fetch rules",
			Code:    http.StatusInternalServerError,
		})
		return
	}
	c.JSON(http.StatusOK, rules)
}

// CreateRule creates a new manual rule
func (h *Handlers) CreateRule(c *gin.Context) {
	var req ManualRuleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Error:   "validation_error",
			Message: "Invalid request body",
			Code:    http.StatusBadRequest,
		})
		return
	}

	rule := model.ManualRule{
		EmailPattern:   req.EmailPattern,
		SubjectPattern: req.SubjectPattern,
		Priority:       model.DefaultRulePriority,
		Purpose:        req.Purpose,
		Confidence:     1.0,
	}
	if req.Priority != nil {
		rule.Priority = *req.Priority
	}
	if req.Confidence != nil {
		rule.Confidence = *req.Confidence
	}
	if req.IsShadowMode != nil {
		rule.IsShadowMode = *req.IsShadowMode
	}

	if err := h.repo.CreateRule(&rule); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Error:   "validation_error",
			Message: err.Error(),
			Code:    http.StatusBadRequest,
		})
		return
	}
	c.JSON(http.StatusCreated, rule)
}

// GetRule returns a single rule by ID
func (h *Handlers) GetRule(c *gin.Context) {
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid_id", Message: "Invalid rule ID", Code: http.StatusBadRequest})
		return
	}
	rule, err := h.repo.GetRule(uint(id))
	if err != nil {
		c.JSON(http.StatusNotFound, ErrorResponse{Error: "not_found", Message: "Rule not found", Code: http.StatusNotFound})
		return
	}
	c.JSON(http.StatusOK, rule)
}

// UpdateRule updates an existing rule
func (h *Handlers) UpdateRule(c *gin.Context) {
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid_id", Message: "Invalid rule ID", Code: http.StatusBadRequest})
		return
	}
	rule, err := h.repo.GetRule(uint(id))
	if err != nil {
		c.JSON(http.StatusNotFound, ErrorResponse{Error: "not_found", Message: "Rule not found", Code: http.StatusNotFound})
		return
	}
	var req ManualRuleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "validation_error", Message: "Invalid request body", Code: http.StatusBadRequest})
		return
	}
	if req.EmailPattern != "" {
		rule.EmailPattern = req.EmailPattern
	}
	if req.SubjectPattern != "" {
		rule.SubjectPattern = req.SubjectPattern
	}
	if req.Priority != nil {
		rule.Priority = *req.Priority
	}
	if req.Purpose != "" {
		rule.Purpose = req.Purpose
	}
	if req.Confidence != nil {
		rule.Confidence = *req.Confidence
	}
	if req.IsShadowMode != nil {
		rule.IsShadowMode = *req.IsShadowMode
	}
	if err := h.repo.SaveRule(rule); err != nil {
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "database_error", Message: "Failed to update rule", Code: http.StatusInternalServerError})
		return
	}
	c.JSON(http.StatusOK, rule)
}

// DeleteRule deletes a rule by ID
func (h *Handlers) DeleteRule(c *gin.Context) {
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid_id", Message: "Invalid rule ID", Code: http.StatusBadRequest})
		return
	}
	if err := h.repo.DeleteRule(uint(id)); err != nil {
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "database_error", Message: "Failed to delete rule", Code: http.StatusInternalServerError})
		return
	}
	c.Status(http.StatusNoContent)
}

// PromoteRule flips a shadow rule to active
func (h *Handlers) PromoteRule(c *gin.Context) {
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid_id", Message: "Invalid rule ID", Code: http.StatusBadRequest})
		return
	}
	rule, err := h.repo.GetRule(uint(id))
	if err != nil {
		c.JSON(http.StatusNotFound, ErrorResponse{Error: "not_found", Message: "Rule not found", Code: http.StatusNotFound})
		return
	}
	rule.IsShadowMode = false
	if err := h.repo.SaveRule(rule); err != nil {
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "database_error", Message: "Failed to promote rule", Code: http.StatusInternalServerError})
		return
	}
	c.JSON(http.StatusOK, rule)
}
