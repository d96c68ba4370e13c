package api

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"moldubot/internal/intent"
	"moldubot/pkg/logger"
)

const (
	answerEmptyMessage = "요청 내용을 입력해 주세요."
	answerApproved     = "승인 처리되었습니다. (개발 서버 기본 동작)"
	answerCancelled    = "요청을 취소했습니다."

	sourceValidation = "validation"
)

// Executor is implemented by *service.ExecutionService.
type Executor interface {
	Execute(ctx context.Context, d intent.Decomposition, userMessage string) (string, error)
}

type ChatHandler struct {
	intents  Decomposer
	executor Executor
	logger   *zap.Logger
	now      func() time.Time
}

func NewChatHandler(intents Decomposer, executor Executor, logger *zap.Logger) *ChatHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ChatHandler{intents: intents, executor: executor, logger: logger, now: time.Now}
}

type chatRequest struct {
	Message  string `json:"message"`
	ThreadID string `json:"thread_id"`
}

// Chat handles POST /search/chat
func (h *ChatHandler) Chat(c *gin.Context) {
	var req chatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
		return
	}
	ctx := c.Request.Context()
	log := logger.WithTrace(ctx, h.logger)

	threadID := req.ThreadID
	if threadID == "" {
		threadID = fmt.Sprintf("outlook_%d", h.now().Unix())
	}

	text := strings.TrimSpace(req.Message)
	if text == "" {
		log.Info("chat request rejected: empty message")
		c.JSON(http.StatusOK, chatResponse(threadID, answerEmptyMessage, gin.H{"source": sourceValidation}))
		return
	}

	out := h.intents.Decompose(ctx, text)
	answer, err := h.executor.Execute(ctx, out.Decomposition, text)
	if err != nil {
		log.Error("chat execution failed", zap.Strings("steps", out.Decomposition.StepNames()), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "execution failed"})
		return
	}

	log.Info("chat request completed",
		zap.String("source", string(out.Source)),
		zap.Int("answer_length", len(answer)),
	)
	c.JSON(http.StatusOK, chatResponse(threadID, answer, gin.H{
		"source": out.Source,
		"steps":  out.Decomposition.StepNames(),
	}))
}

type confirmRequest struct {
	ThreadID string `json:"thread_id"`
	Approved bool   `json:"approved"`
}

// Confirm handles POST /search/chat/confirm
func (h *ChatHandler) Confirm(c *gin.Context) {
	var req confirmRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
		return
	}

	answer := answerCancelled
	if req.Approved {
		answer = answerApproved
	}
	c.JSON(http.StatusOK, chatResponse(req.ThreadID, answer, gin.H{
		"confirm": gin.H{"approved": req.Approved},
	}))
}

func chatResponse(threadID, answer string, metadata gin.H) gin.H {
	return gin.H{
		"status":    "completed",
		"thread_id": threadID,
		"answer":    answer,
		"metadata":  metadata,
	}
}
