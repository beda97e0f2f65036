package handlers

import (
	"strconv"

	"github.com/driftline/driftline-backend/internal/httpx"
	"github.com/driftline/driftline-backend/internal/service"
	"github.com/gofiber/fiber/v2"
)

type MessageHandler struct {
	relay          *service.RelayService
	messageService *service.MessageService
}

func NewMessageHandler(relay *service.RelayService, messageService *service.MessageService) *MessageHandler {
	return &MessageHandler{
		relay:          relay,
		messageService: messageService,
	}
}

// SendMessage routes a private message: persisted first, delivered live
// when the recipient has a connection.
func (h *MessageHandler) SendMessage(c *fiber.Ctx) error {
	userID, err := httpx.LocalUint(c, "userID")
	if err != nil {
		return httpx.Unauthorized(c, "unauthorized", "Unauthorized")
	}

	var input service.PrivateMessageInput
	if err := c.BodyParser(&input); err != nil {
		return httpx.BadRequest(c, "invalid_request_body", "Invalid request body")
	}

	message, err := h.relay.RoutePrivate(userID, input)
	if err != nil {
		return httpx.FromService(c, err, "send_message_failed")
	}

	return c.Status(fiber.StatusCreated).JSON(message.ToResponse())
}

// GetThread returns the full private thread with a peer.
func (h *MessageHandler) GetThread(c *fiber.Ctx) error {
	userID, err := httpx.LocalUint(c, "userID")
	if err != nil {
		return httpx.Unauthorized(c, "unauthorized", "Unauthorized")
	}

	peerID, err := strconv.ParseUint(c.Query("peer_id"), 10, 32)
	if err != nil || peerID == 0 {
		return httpx.BadRequest(c, "invalid_peer", "peer_id is required")
	}

	messages, err := h.messageService.GetThread(userID, uint(peerID))
	if err != nil {
		return httpx.FromService(c, err, "fetch_messages_failed")
	}

	responses := make([]interface{}, len(messages))
	for i, msg := range messages {
		responses[i] = msg.ToResponse()
	}

	return c.JSON(fiber.Map{
		"messages": responses,
		"count":    len(messages),
	})
}

// GetGroupThread returns the full thread for a group.
func (h *MessageHandler) GetGroupThread(c *fiber.Ctx) error {
	groupID, err := strconv.ParseUint(c.Params("id"), 10, 32)
	if err != nil || groupID == 0 {
		return httpx.BadRequest(c, "invalid_group", "Invalid group ID")
	}

	messages, err := h.messageService.GetGroupThread(uint(groupID))
	if err != nil {
		return httpx.FromService(c, err, "fetch_group_messages_failed")
	}

	responses := make([]interface{}, len(messages))
	for i, msg := range messages {
		responses[i] = msg.ToResponse()
	}

	return c.JSON(fiber.Map{
		"messages": responses,
		"count":    len(messages),
	})
}

// MarkSeen flips one private message's seen flag. Idempotent; only the
// recipient can do it.
func (h *MessageHandler) MarkSeen(c *fiber.Ctx) error {
	userID, err := httpx.LocalUint(c, "userID")
	if err != nil {
		return httpx.Unauthorized(c, "unauthorized", "Unauthorized")
	}

	messageID, err := strconv.ParseUint(c.Params("id"), 10, 32)
	if err != nil || messageID == 0 {
		return httpx.BadRequest(c, "invalid_message", "Invalid message ID")
	}

	if err := h.messageService.MarkSeen(userID, uint(messageID)); err != nil {
		return httpx.FromService(c, err, "mark_seen_failed")
	}

	return c.JSON(fiber.Map{"seen": true})
}

// MarkThreadSeen clears the caller's pending messages from one peer.
// Clients call it when their focus becomes that peer.
func (h *MessageHandler) MarkThreadSeen(c *fiber.Ctx) error {
	userID, err := httpx.LocalUint(c, "userID")
	if err != nil {
		return httpx.Unauthorized(c, "unauthorized", "Unauthorized")
	}

	peerID, err := strconv.ParseUint(c.Params("peer_id"), 10, 32)
	if err != nil || peerID == 0 {
		return httpx.BadRequest(c, "invalid_peer", "Invalid peer ID")
	}

	cleared, err := h.messageService.MarkThreadSeen(userID, uint(peerID))
	if err != nil {
		return httpx.FromService(c, err, "mark_thread_seen_failed")
	}

	return c.JSON(fiber.Map{"cleared": cleared})
}
