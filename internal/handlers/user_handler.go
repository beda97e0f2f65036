package handlers

import (
	"github.com/driftline/driftline-backend/internal/httpx"
	"github.com/driftline/driftline-backend/internal/service"
	"github.com/gofiber/fiber/v2"
)

type UserHandler struct {
	userService *service.UserService
}

func NewUserHandler(userService *service.UserService) *UserHandler {
	return &UserHandler{userService: userService}
}

// ListPeers returns the sidebar: every other user plus the caller's
// unseen count per peer.
func (h *UserHandler) ListPeers(c *fiber.Ctx) error {
	userID, err := httpx.LocalUint(c, "userID")
	if err != nil {
		return httpx.Unauthorized(c, "unauthorized", "Unauthorized")
	}

	entries, err := h.userService.ListPeers(userID)
	if err != nil {
		return httpx.Internal(c, "list_users_failed")
	}

	// unseen keyed by peer id mirrors the shape clients keep locally.
	unseen := make(map[uint]int64)
	users := make([]interface{}, 0, len(entries))
	for _, e := range entries {
		users = append(users, e.User)
		if e.Unseen > 0 {
			unseen[e.User.ID] = e.Unseen
		}
	}

	return c.JSON(fiber.Map{
		"users":           users,
		"unseen_messages": unseen,
	})
}

func (h *UserHandler) GetCurrentUser(c *fiber.Ctx) error {
	userID, err := httpx.LocalUint(c, "userID")
	if err != nil {
		return httpx.Unauthorized(c, "unauthorized", "Unauthorized")
	}

	user, err := h.userService.GetUserByID(userID)
	if err != nil {
		return httpx.FromService(c, err, "fetch_user_failed")
	}

	return c.JSON(user.ToResponse())
}
