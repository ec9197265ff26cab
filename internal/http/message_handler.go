package http

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"agent-chat/internal/domain"
)

// MessageStore es lo que los handlers necesitan del servicio de mensajes.
type MessageStore interface {
	List(ctx context.Context) ([]domain.Message, error)
	Append(ctx context.Context, author, body string) error
	Subscribe(ctx context.Context) (<-chan []domain.Message, error)
}

// MessageHandler mantiene dependencias para los endpoints de mensajes.
type MessageHandler struct {
	logger *zap.Logger
	store  MessageStore
}

// NewMessageHandler crea una instancia de MessageHandler.
func NewMessageHandler(logger *zap.Logger, store MessageStore) *MessageHandler {
	return &MessageHandler{
		logger: logger,
		store:  store,
	}
}

// ListMessages maneja GET /messages.
func (h *MessageHandler) ListMessages(c *gin.Context) {
	messages, err := h.store.List(c.Request.Context())
	if err != nil {
		h.logger.Error("list messages failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not list messages"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"messages": messages})
}

// SendMessage maneja POST /messages. Autor y cuerpo deben venir en el JSON,
// pero pueden ser cadenas vacías.
func (h *MessageHandler) SendMessage(c *gin.Context) {
	var req struct {
		Author *string `json:"author" binding:"required"`
		Body   *string `json:"body" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Warn("invalid send message request", zap.Error(err))
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
		return
	}

	if err := h.store.Append(c.Request.Context(), *req.Author, *req.Body); err != nil {
		h.logger.Error("append message failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not send message"})
		return
	}

	c.Status(http.StatusNoContent)
}
