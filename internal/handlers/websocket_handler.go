package handlers

import (
	"errors"
	"log"
	"time"

	"github.com/driftline/driftline-backend/internal/cache"
	"github.com/driftline/driftline-backend/internal/handlers/ws"
	"github.com/driftline/driftline-backend/internal/hub"
	"github.com/driftline/driftline-backend/internal/service"
	"github.com/gofiber/websocket/v2"
)

const pongTimeout = 90 * time.Second

type WebSocketHandler struct {
	hub          *hub.Hub
	relay        *service.RelayService
	userService  *service.UserService
	groupService *service.GroupService
	presence     *cache.PresenceCache
}

func NewWebSocketHandler(
	h *hub.Hub,
	relay *service.RelayService,
	userService *service.UserService,
	groupService *service.GroupService,
	presence *cache.PresenceCache,
) *WebSocketHandler {
	return &WebSocketHandler{
		hub:          h,
		relay:        relay,
		userService:  userService,
		groupService: groupService,
		presence:     presence,
	}
}

// HandleWebSocket owns one connection: register, single-reader command
// loop, deferred unregister. Each inbound frame decodes into one of the
// closed command variants and is dispatched to its handler below.
func (h *WebSocketHandler) HandleWebSocket(c *websocket.Conn) {
	userID, ok := c.Locals("userID").(uint)
	if !ok || userID == 0 {
		_ = c.Close()
		return
	}

	c.SetPongHandler(func(string) error {
		h.hub.Touch(userID)
		_ = h.presence.Refresh(userID)
		return c.SetReadDeadline(time.Now().Add(pongTimeout))
	})
	_ = c.SetReadDeadline(time.Now().Add(pongTimeout))

	if err := h.hub.Register(userID, c); err != nil {
		log.Printf("Refusing websocket for user %d: %v", userID, err)
		_ = c.Close()
		return
	}

	go func() {
		if err := h.userService.SetUserOnline(userID); err != nil {
			log.Printf("Failed to set user %d online: %v", userID, err)
		}
	}()

	defer func() {
		h.hub.Unregister(userID, c)
		go func() {
			if err := h.userService.SetUserOffline(userID); err != nil {
				log.Printf("Failed to set user %d offline: %v", userID, err)
			}
		}()
	}()

	for {
		_, raw, err := c.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				log.Printf("Unexpected close for user %d: %v", userID, err)
			}
			return
		}

		// All writes go through the hub so they serialize with live
		// deliveries on the same connection.
		cmd, err := ws.Decode(raw)
		if err != nil {
			_ = h.hub.SendToUser(userID, hub.NewErrorEvent("invalid_command", "Invalid command", err.Error()))
			continue
		}

		if err := h.dispatch(userID, cmd); err != nil {
			_ = h.hub.SendToUser(userID, hub.NewErrorEvent("command_failed", "Command failed", err.Error()))
		}
	}
}

// dispatch is the closed set's only switch: one explicit handler per
// variant.
func (h *WebSocketHandler) dispatch(userID uint, cmd ws.Command) error {
	switch cmd := cmd.(type) {
	case ws.JoinGroupCommand:
		return h.handleJoinGroup(userID, cmd)
	case ws.GroupMessageCommand:
		return h.handleGroupMessage(userID, cmd)
	case ws.FocusCommand:
		return h.handleFocus(userID, cmd)
	case ws.TypingCommand:
		return h.handleTyping(userID, cmd)
	case ws.PingCommand:
		return h.hub.SendToUser(userID, hub.PongEvent{Type: hub.EventPong})
	default:
		return errors.New("unhandled command")
	}
}

func (h *WebSocketHandler) handleJoinGroup(userID uint, cmd ws.JoinGroupCommand) error {
	if cmd.GroupID == 0 {
		return errors.New("group_id is required")
	}
	// Existence check only; channel subscription does not require
	// membership, sending into the group does.
	if _, err := h.groupService.ListMembers(cmd.GroupID); err != nil {
		return err
	}
	return h.hub.Subscribe(userID, cmd.GroupID)
}

func (h *WebSocketHandler) handleGroupMessage(userID uint, cmd ws.GroupMessageCommand) error {
	_, err := h.relay.RouteGroup(userID, service.GroupMessageInput{
		GroupID:  cmd.GroupID,
		ClientID: cmd.ClientID,
		Text:     cmd.Text,
		Image:    cmd.Image,
	})
	return err
}

func (h *WebSocketHandler) handleFocus(userID uint, cmd ws.FocusCommand) error {
	focus := hub.Focus{}
	switch {
	case cmd.PeerID != nil && *cmd.PeerID != 0:
		focus = hub.Focus{Kind: hub.FocusUser, ID: *cmd.PeerID}
	case cmd.GroupID != nil && *cmd.GroupID != 0:
		focus = hub.Focus{Kind: hub.FocusGroup, ID: *cmd.GroupID}
	}
	h.hub.SetFocus(userID, focus)
	return nil
}

func (h *WebSocketHandler) handleTyping(userID uint, cmd ws.TypingCommand) error {
	if cmd.PeerID == 0 {
		return errors.New("peer_id is required")
	}
	h.relay.RelayTyping(userID, cmd.PeerID)
	return nil
}
