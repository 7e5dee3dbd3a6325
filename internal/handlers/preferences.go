package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"receipt-sentinel/internal/model"
)

// GetPreferences returns preferences, optionally filtered by ?type=
func (h *Handlers) GetPreferences(c *gin.Context) {
	var (
		prefs []model.Preference
		err   error
	)
	if t := c.Query("type"); t != "" {
		prefType := model.PreferenceType(t)
		if !prefType.Valid() {
			c.JSON(http.StatusBadRequest, ErrorResponse{Error: "validation_error", Message: "Unknown preference type", Code: http.StatusBadRequest})
			return
		}
		prefs, err = h.repo.PreferencesByType(prefType)
	} else {
		prefs, err = h.repo.AllPreferences()
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "database_error", Message: "Failed to fetch preferences", Code: http.StatusInternalServerError})
		return
	}
	c.JSON(http.StatusOK, prefs)
}

// CreatePreference adds a preference. Adding an existing item is a no-op
// and still returns 200.
func (h *Handlers) CreatePreference(c *gin.Context) {
	var req PreferenceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "validation_error", Message: "Invalid request body", Code: http.StatusBadRequest})
		return
	}
	prefType := model.PreferenceType(req.Type)
	if !prefType.Valid() {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "validation_error", Message: "Unknown preference type", Code: http.StatusBadRequest})
		return
	}
	created, err := h.repo.AddPreference(req.Item, prefType)
	if err != nil {
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "database_error", Message: "Failed to add preference", Code: http.StatusInternalServerError})
		return
	}
	status := http.StatusOK
	if created {
		status = http.StatusCreated
	}
	c.JSON(status, gin.H{"item": req.Item, "type": req.Type, "created": created})
}

// DeletePreference removes a preference by ID
func (h *Handlers) DeletePreference(c *gin.Context) {
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid_id", Message: "Invalid preference ID", Code: http.StatusBadRequest})
		return
	}
	if err := h.repo.DeletePreference(uint(id)); err != nil {
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "database_error", Message: "Failed to delete preference", Code: http.StatusInternalServerError})
		return
	}
	c.Status(http.StatusNoContent)
}
