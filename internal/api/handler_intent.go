package api

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"moldubot/internal/intent"
	"moldubot/internal/service"
)

// Decomposer is implemented by *service.IntentService.
type Decomposer interface {
	Decompose(ctx context.Context, message string) intent.Outcome
	Augment(ctx context.Context, message string) (string, bool)
}

type IntentHandler struct {
	intents Decomposer
}

func NewIntentHandler(intents Decomposer) *IntentHandler {
	return &IntentHandler{intents: intents}
}

type messageRequest struct {
	Message string `json:"message"`
}

// Decompose handles POST /intents/decompose
func (h *IntentHandler) Decompose(c *gin.Context) {
	var req messageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
		return
	}

	out := h.intents.Decompose(c.Request.Context(), req.Message)
	c.JSON(http.StatusOK, gin.H{
		"decomposition":   out.Decomposition,
		"source":          out.Source,
		"unusable_reason": out.UnusableReason,
	})
}

// Context handles POST /intents/context
func (h *IntentHandler) Context(c *gin.Context) {
	var req messageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
		return
	}

	augmented, injected := h.intents.Augment(c.Request.Context(), req.Message)
	c.JSON(http.StatusOK, gin.H{
		"augmented": augmented,
		"injected":  injected,
	})
}

// Resolve handles POST /intents/resolve
func (h *IntentHandler) Resolve(c *gin.Context) {
	var req messageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
		return
	}

	name := service.RouteIntent(req.Message)
	c.JSON(http.StatusOK, gin.H{
		"intent":         name,
		"primary_intent": name,
		"confidence":     service.RouterConfidence,
		"router_version": service.RouterVersion,
	})
}
