package repository

import (
	"github.com/driftline/driftline-backend/internal/models"
)

// UserRepositoryInterface defines the contract for user repository operations
type UserRepositoryInterface interface {
	Create(user *models.User) error
	FindByEmail(email string) (*models.User, error)
	FindByUsername(username string) (*models.User, error)
	FindByID(id uint) (*models.User, error)
	Update(user *models.User) error
	UpdateOnlineStatus(userID uint, isOnline bool) error
	ListOthers(userID uint) ([]models.User, error)
}

// MessageRepositoryInterface is the durable message log. Append assigns
// the ordinal (the serial id); within one conversation readers observe
// messages in append order.
type MessageRepositoryInterface interface {
	Append(message *models.Message) error
	FindByID(id uint) (*models.Message, error)
	FindByClientID(clientID string, senderID uint) (*models.Message, error)
	FindThread(userID1, userID2 uint) ([]models.Message, error)
	FindGroupThread(groupID uint) ([]models.Message, error)
	MarkSeen(messageID uint) error
	MarkThreadSeen(viewerID, peerID uint) (int64, error)
	CountUnseenByPeer(viewerID uint) (map[uint]int64, error)
}

// GroupRepositoryInterface defines the contract for group membership operations
type GroupRepositoryInterface interface {
	Create(group *models.Group) error
	FindByID(id uint) (*models.Group, error)
	AddMember(groupID, userID uint) error
	RemoveMember(groupID, userID uint) error
	GetMembers(groupID uint) ([]models.User, error)
	IsMember(groupID, userID uint) (bool, error)
	GetUserGroups(userID uint) ([]models.Group, error)
}
