package service

import (
	"github.com/driftline/driftline-backend/internal/cache"
	"github.com/driftline/driftline-backend/internal/models"
	"github.com/driftline/driftline-backend/internal/repository"
)

// MessageService is the read/seen surface over the message log.
type MessageService struct {
	messageRepo repository.MessageRepositoryInterface
	threads     *cache.ThreadCache
}

func NewMessageService(messageRepo repository.MessageRepositoryInterface, threads *cache.ThreadCache) *MessageService {
	return &MessageService{messageRepo: messageRepo, threads: threads}
}

// GetThread returns the full private thread between viewer and peer in
// append order.
func (s *MessageService) GetThread(viewerID, peerID uint) ([]models.Message, error) {
	if peerID == 0 {
		return nil, Validationf("peer_id is required")
	}
	if cached, ok := s.threads.GetThread(viewerID, peerID); ok {
		return cached, nil
	}

	messages, err := s.messageRepo.FindThread(viewerID, peerID)
	if err != nil {
		return nil, err
	}
	if len(messages) > 0 {
		_ = s.threads.SetThread(viewerID, peerID, messages)
	}
	return messages, nil
}

// GetGroupThread returns the full group thread in append order.
func (s *MessageService) GetGroupThread(groupID uint) ([]models.Message, error) {
	if groupID == 0 {
		return nil, Validationf("group_id is required")
	}
	if cached, ok := s.threads.GetGroupThread(groupID); ok {
		return cached, nil
	}

	messages, err := s.messageRepo.FindGroupThread(groupID)
	if err != nil {
		return nil, err
	}
	if len(messages) > 0 {
		_ = s.threads.SetGroupThread(groupID, messages)
	}
	return messages, nil
}

// MarkSeen flips a private message's seen flag. Group messages carry no
// seen flag and are rejected. Only the recipient may flip the flag; to
// anyone else the message does not exist.
func (s *MessageService) MarkSeen(viewerID, messageID uint) error {
	message, err := s.messageRepo.FindByID(messageID)
	if err != nil {
		return translateNotFound(err)
	}
	if message.IsGroup() {
		return Validationf("seen tracking applies to private messages only")
	}
	if message.RecipientID == nil || *message.RecipientID != viewerID {
		return ErrNotFound
	}
	if err := s.messageRepo.MarkSeen(messageID); err != nil {
		return err
	}
	if message.RecipientID != nil {
		_ = s.threads.InvalidateThread(message.SenderID, *message.RecipientID)
	}
	return nil
}

// MarkThreadSeen marks all pending messages from peer to viewer as seen.
// Called when the viewer's focus becomes the peer.
func (s *MessageService) MarkThreadSeen(viewerID, peerID uint) (int64, error) {
	if peerID == 0 {
		return 0, Validationf("peer_id is required")
	}
	cleared, err := s.messageRepo.MarkThreadSeen(viewerID, peerID)
	if err != nil {
		return 0, err
	}
	if cleared > 0 {
		_ = s.threads.InvalidateThread(viewerID, peerID)
	}
	return cleared, nil
}
