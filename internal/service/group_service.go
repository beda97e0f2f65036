package service

import (
	"github.com/driftline/driftline-backend/internal/models"
	"github.com/driftline/driftline-backend/internal/repository"
	"github.com/driftline/driftline-backend/internal/validation"
)

type GroupService struct {
	groupRepo repository.GroupRepositoryInterface
}

func NewGroupService(groupRepo repository.GroupRepositoryInterface) *GroupService {
	return &GroupService{groupRepo: groupRepo}
}

// CreateGroup creates a group whose member set starts as {founder}.
func (s *GroupService) CreateGroup(name string, founderID uint) (*models.Group, error) {
	name = validation.TrimAndLimit(name, validation.MaxGroupNameLength())
	if name == "" {
		return nil, Validationf("group name is required")
	}

	group := &models.Group{
		Name:      name,
		CreatorID: founderID,
	}
	if err := s.groupRepo.Create(group); err != nil {
		return nil, err
	}
	if err := s.groupRepo.AddMember(group.ID, founderID); err != nil {
		return nil, err
	}

	return s.groupRepo.FindByID(group.ID)
}

// JoinGroup adds the user if absent. Joining a group twice leaves the
// member set unchanged.
func (s *GroupService) JoinGroup(groupID, userID uint) (*models.Group, error) {
	if _, err := s.groupRepo.FindByID(groupID); err != nil {
		return nil, translateNotFound(err)
	}
	if err := s.groupRepo.AddMember(groupID, userID); err != nil {
		return nil, err
	}
	return s.groupRepo.FindByID(groupID)
}

func (s *GroupService) LeaveGroup(groupID, userID uint) error {
	if _, err := s.groupRepo.FindByID(groupID); err != nil {
		return translateNotFound(err)
	}
	return s.groupRepo.RemoveMember(groupID, userID)
}

// ListGroupsForUser returns every group containing the user.
func (s *GroupService) ListGroupsForUser(userID uint) ([]models.Group, error) {
	return s.groupRepo.GetUserGroups(userID)
}

func (s *GroupService) ListMembers(groupID uint) ([]models.User, error) {
	if _, err := s.groupRepo.FindByID(groupID); err != nil {
		return nil, translateNotFound(err)
	}
	return s.groupRepo.GetMembers(groupID)
}

func (s *GroupService) IsMember(groupID, userID uint) (bool, error) {
	return s.groupRepo.IsMember(groupID, userID)
}
