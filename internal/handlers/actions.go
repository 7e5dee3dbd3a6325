package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"receipt-sentinel/internal/model"
)

// BlockAction handles the one-click block link from a forwarded email.
// Links are GETs because they are opened from a mail client.
func (h *Handlers) BlockAction(c *gin.Context) {
	h.applyAction(c, model.PrefBlockedSender, "blocked")
}

// AllowAction handles the one-click always-forward link
func (h *Handlers) AllowAction(c *gin.Context) {
	h.applyAction(c, model.PrefAlwaysForward, "always forwarded")
}

func (h *Handlers) applyAction(c *gin.Context, prefType model.PreferenceType, verb string) {
	item := c.Query("item")
	if item == "" {
		c.String(http.StatusBadRequest, "missing item parameter")
		return
	}
	created, err := h.repo.AddPreference(item, prefType)
	if err != nil {
		logrus.Errorf("Failed to apply %s action for %q: %v", prefType, item, err)
		c.String(http.StatusInternalServerError, "something went wrong, please try again")
		return
	}
	if created {
		c.String(http.StatusOK, "Done. Mail matching %q will now be %s.", item, verb)
	} else {
		c.String(http.StatusOK, "Mail matching %q is already %s.", item, verb)
	}
}

// Settings returns the current preference configuration
func (h *Handlers) Settings(c *gin.Context) {
	prefs, err := h.repo.AllPreferences()
	if err != nil {
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "database_error", Message: "Failed to fetch preferences", Code: http.StatusInternalServerError})
		return
	}
	blocked := make([]string, 0)
	allowed := make([]string, 0)
	for _, p := range prefs {
		switch p.Type {
		case model.PrefBlockedSender, model.PrefBlockedCategory:
			blocked = append(blocked, p.Item)
		case model.PrefAlwaysForward:
			allowed = append(allowed, p.Item)
		}
	}
	c.JSON(http.StatusOK, gin.H{"blocked": blocked, "always_forward": allowed})
}

// Classify runs the full resolution pipeline against a supplied email
// without forwarding anything and returns the step-by-step trace.
func (h *Handlers) Classify(c *gin.Context) {
	var req ClassifyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "validation_error", Message: "Invalid request body", Code: http.StatusBadRequest})
		return
	}
	trace := h.resolver.Explain(model.EmailMessage{
		From:    req.Sender,
		Subject: req.Subject,
		Body:    req.Body,
	})
	c.JSON(http.StatusOK, trace)
}
