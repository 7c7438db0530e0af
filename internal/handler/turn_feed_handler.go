package handler

import (
	"chat-lens-be/internal/pkg/logger"
	"chat-lens-be/internal/service"
	internalWS "chat-lens-be/internal/websocket"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"
	"github.com/google/uuid"
)

// TurnFeedHandler streams a conversation's turn events over a websocket.
type TurnFeedHandler struct {
	service service.IChatbotService
	hub     *internalWS.Hub
	logger  logger.ILogger
}

func NewTurnFeedHandler(service service.IChatbotService, hub *internalWS.Hub, log logger.ILogger) *TurnFeedHandler {
	return &TurnFeedHandler{
		service: service,
		hub:     hub,
		logger:  log,
	}
}

// ServeWs upgrades the request and follows the conversation until the peer
// leaves or the conversation is deleted.
func (h *TurnFeedHandler) ServeWs(c *fiber.Ctx) error {
	conversationID, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "Invalid conversation id")
	}

	// 404 before the upgrade so clients see a plain HTTP error
	if _, err := h.service.GetStatus(c.UserContext(), conversationID); err != nil {
		return err
	}

	if websocket.IsWebSocketUpgrade(c) {
		return websocket.New(func(c *websocket.Conn) {
			h.logger.Info("TurnFeedHandler", "Starting WebSocket session", map[string]interface{}{"conversation_id": conversationID})
			internalWS.ServeWs(h.hub, c, conversationID)
			h.logger.Info("TurnFeedHandler", "WebSocket session ended", map[string]interface{}{"conversation_id": conversationID})
		})(c)
	}
	return fiber.ErrUpgradeRequired
}

func (h *TurnFeedHandler) RegisterRoutes(router fiber.Router) {
	router.Get("/chatbot/v1/conversations/:id/ws", h.ServeWs)
}
