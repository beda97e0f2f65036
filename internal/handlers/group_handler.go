package handlers

import (
	"strconv"

	"github.com/driftline/driftline-backend/internal/httpx"
	"github.com/driftline/driftline-backend/internal/models"
	"github.com/driftline/driftline-backend/internal/service"
	"github.com/gofiber/fiber/v2"
)

type GroupHandler struct {
	groupService *service.GroupService
}

func NewGroupHandler(groupService *service.GroupService) *GroupHandler {
	return &GroupHandler{groupService: groupService}
}

type CreateGroupRequest struct {
	Name string `json:"name"`
}

func (h *GroupHandler) CreateGroup(c *fiber.Ctx) error {
	userID, err := httpx.LocalUint(c, "userID")
	if err != nil {
		return httpx.Unauthorized(c, "unauthorized", "Unauthorized")
	}

	var req CreateGroupRequest
	if err := c.BodyParser(&req); err != nil {
		return httpx.BadRequest(c, "invalid_request_body", "Invalid request body")
	}

	group, err := h.groupService.CreateGroup(req.Name, userID)
	if err != nil {
		return httpx.FromService(c, err, "create_group_failed")
	}

	return c.Status(fiber.StatusCreated).JSON(group.ToResponse())
}

func (h *GroupHandler) GetMyGroups(c *fiber.Ctx) error {
	userID, err := httpx.LocalUint(c, "userID")
	if err != nil {
		return httpx.Unauthorized(c, "unauthorized", "Unauthorized")
	}

	groups, err := h.groupService.ListGroupsForUser(userID)
	if err != nil {
		return httpx.Internal(c, "fetch_groups_failed")
	}

	responses := make([]models.GroupResponse, 0, len(groups))
	for _, g := range groups {
		responses = append(responses, g.ToResponse())
	}
	return c.JSON(fiber.Map{"groups": responses})
}

func (h *GroupHandler) JoinGroup(c *fiber.Ctx) error {
	userID, err := httpx.LocalUint(c, "userID")
	if err != nil {
		return httpx.Unauthorized(c, "unauthorized", "Unauthorized")
	}

	groupID, err := strconv.ParseUint(c.Params("id"), 10, 32)
	if err != nil || groupID == 0 {
		return httpx.BadRequest(c, "invalid_group", "Invalid group ID")
	}

	group, err := h.groupService.JoinGroup(uint(groupID), userID)
	if err != nil {
		return httpx.FromService(c, err, "join_group_failed")
	}

	return c.JSON(group.ToResponse())
}

func (h *GroupHandler) LeaveGroup(c *fiber.Ctx) error {
	userID, err := httpx.LocalUint(c, "userID")
	if err != nil {
		return httpx.Unauthorized(c, "unauthorized", "Unauthorized")
	}

	groupID, err := strconv.ParseUint(c.Params("id"), 10, 32)
	if err != nil || groupID == 0 {
		return httpx.BadRequest(c, "invalid_group", "Invalid group ID")
	}

	if err := h.groupService.LeaveGroup(uint(groupID), userID); err != nil {
		return httpx.FromService(c, err, "leave_group_failed")
	}

	return c.JSON(fiber.Map{"message": "Left group successfully"})
}

func (h *GroupHandler) GetGroupMembers(c *fiber.Ctx) error {
	groupID, err := strconv.ParseUint(c.Params("id"), 10, 32)
	if err != nil || groupID == 0 {
		return httpx.BadRequest(c, "invalid_group", "Invalid group ID")
	}

	members, err := h.groupService.ListMembers(uint(groupID))
	if err != nil {
		return httpx.FromService(c, err, "fetch_members_failed")
	}

	responses := make([]models.UserResponse, 0, len(members))
	for _, m := range members {
		responses = append(responses, m.ToResponse())
	}
	return c.JSON(fiber.Map{"members": responses})
}
