package service

import (
	"github.com/driftline/driftline-backend/internal/models"
	"github.com/driftline/driftline-backend/internal/repository"
)

type UserService struct {
	userRepo    repository.UserRepositoryInterface
	messageRepo repository.MessageRepositoryInterface
}

func NewUserService(userRepo repository.UserRepositoryInterface, messageRepo repository.MessageRepositoryInterface) *UserService {
	return &UserService{userRepo: userRepo, messageRepo: messageRepo}
}

// PeerEntry is one sidebar row: a peer plus the viewer's unseen count
// for that peer.
type PeerEntry struct {
	User   models.UserResponse `json:"user"`
	Unseen int64               `json:"unseen"`
}

// ListPeers returns every other user together with the authoritative
// unseen count, recomputed from the message log's seen flags. A client
// reconnecting after a restart starts from these numbers.
func (s *UserService) ListPeers(viewerID uint) ([]PeerEntry, error) {
	users, err := s.userRepo.ListOthers(viewerID)
	if err != nil {
		return nil, err
	}
	counts, err := s.messageRepo.CountUnseenByPeer(viewerID)
	if err != nil {
		return nil, err
	}

	entries := make([]PeerEntry, 0, len(users))
	for _, u := range users {
		entries = append(entries, PeerEntry{
			User:   u.ToResponse(),
			Unseen: counts[u.ID],
		})
	}
	return entries, nil
}

func (s *UserService) GetUserByID(userID uint) (*models.User, error) {
	user, err := s.userRepo.FindByID(userID)
	if err != nil {
		return nil, translateNotFound(err)
	}
	return user, nil
}

// UpdateAvatar points the user's profile at a stored object key.
func (s *UserService) UpdateAvatar(userID uint, objectKey string) (*models.User, error) {
	user, err := s.userRepo.FindByID(userID)
	if err != nil {
		return nil, translateNotFound(err)
	}
	user.Avatar = objectKey
	if err := s.userRepo.Update(user); err != nil {
		return nil, err
	}
	return user, nil
}

func (s *UserService) SetUserOnline(userID uint) error {
	return s.userRepo.UpdateOnlineStatus(userID, true)
}

func (s *UserService) SetUserOffline(userID uint) error {
	return s.userRepo.UpdateOnlineStatus(userID, false)
}
