package service

import (
	"errors"
	"log"

	"github.com/driftline/driftline-backend/internal/cache"
	"github.com/driftline/driftline-backend/internal/hub"
	"github.com/driftline/driftline-backend/internal/models"
	"github.com/driftline/driftline-backend/internal/repository"
	"github.com/driftline/driftline-backend/internal/validation"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// RelayService is the conversation router: it validates, persists, and
// fans out outbound messages. Persistence strictly happens before any
// live delivery, so a crash in between can only lose the live signal,
// never the message.
type RelayService struct {
	messageRepo repository.MessageRepositoryInterface
	groupRepo   repository.GroupRepositoryInterface
	userRepo    repository.UserRepositoryInterface
	hub         *hub.Hub
	threads     *cache.ThreadCache
}

func NewRelayService(
	messageRepo repository.MessageRepositoryInterface,
	groupRepo repository.GroupRepositoryInterface,
	userRepo repository.UserRepositoryInterface,
	h *hub.Hub,
	threads *cache.ThreadCache,
) *RelayService {
	return &RelayService{
		messageRepo: messageRepo,
		groupRepo:   groupRepo,
		userRepo:    userRepo,
		hub:         h,
		threads:     threads,
	}
}

type PrivateMessageInput struct {
	RecipientID uint   `json:"recipient_id"`
	ClientID    string `json:"client_id"`
	Text        string `json:"text"`
	Image       string `json:"image"`
}

type GroupMessageInput struct {
	GroupID  uint   `json:"group_id"`
	ClientID string `json:"client_id"`
	Text     string `json:"text"`
	Image    string `json:"image"`
}

// RoutePrivate persists a private message and attempts live delivery.
// If the recipient is live and focused on the sender the message is
// marked seen immediately; live but unfocused, the recipient's client
// bumps its unseen counter; offline, the message waits for the next
// fetch. A vanished connection mid-route is swallowed: durability is
// already satisfied.
func (s *RelayService) RoutePrivate(senderID uint, input PrivateMessageInput) (*models.Message, error) {
	input.Text = validation.TrimAndLimit(input.Text, validation.MaxMessageLength())
	if input.RecipientID == 0 {
		return nil, Validationf("recipient_id is required")
	}
	if input.RecipientID == senderID {
		return nil, Validationf("cannot message yourself")
	}
	if input.Text == "" && input.Image == "" {
		return nil, Validationf("message body is empty")
	}

	if _, err := s.userRepo.FindByID(input.RecipientID); err != nil {
		return nil, translateNotFound(err)
	}

	// Idempotent resend: a client retrying with the same client_id gets
	// the already-stored message back, with no second append or fan-out.
	if input.ClientID != "" {
		if existing, err := s.messageRepo.FindByClientID(input.ClientID, senderID); err == nil {
			return existing, nil
		} else if !errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, err
		}
	}

	// The (client_id, sender_id) unique index treats "" as a value, so a
	// sender without a client id gets one assigned here; otherwise their
	// second message would collide with their first.
	if input.ClientID == "" {
		input.ClientID = uuid.NewString()
	}

	recipientID := input.RecipientID
	message := &models.Message{
		ClientID:    input.ClientID,
		SenderID:    senderID,
		RecipientID: &recipientID,
		Text:        input.Text,
		Image:       input.Image,
	}

	if err := s.messageRepo.Append(message); err != nil {
		return nil, err
	}
	_ = s.threads.InvalidateThread(senderID, recipientID)

	stored, err := s.messageRepo.FindByID(message.ID)
	if err != nil {
		stored = message
	}

	// Seen-on-delivery: the recipient is looking at this thread right now.
	if s.hub.FocusOf(recipientID).OnUser(senderID) {
		if err := s.messageRepo.MarkSeen(stored.ID); err != nil {
			log.Printf("Failed to mark message %d seen on delivery: %v", stored.ID, err)
		} else {
			stored.Seen = true
		}
	}

	if err := s.hub.SendToUser(recipientID, hub.NewPrivateMessageEvent(stored.ToResponse())); err != nil {
		if !errors.Is(err, hub.ErrNotConnected) {
			log.Printf("Live delivery to user %d failed, message %d remains durable: %v", recipientID, stored.ID, err)
		}
	}

	return stored, nil
}

// RouteGroup validates group membership before persisting, then echoes
// the stored message to every channel subscriber, the sender included.
func (s *RelayService) RouteGroup(senderID uint, input GroupMessageInput) (*models.Message, error) {
	input.Text = validation.TrimAndLimit(input.Text, validation.MaxMessageLength())
	if input.GroupID == 0 {
		return nil, Validationf("group_id is required")
	}
	if input.Text == "" && input.Image == "" {
		return nil, Validationf("message body is empty")
	}

	if _, err := s.groupRepo.FindByID(input.GroupID); err != nil {
		return nil, translateNotFound(err)
	}
	isMember, err := s.groupRepo.IsMember(input.GroupID, senderID)
	if err != nil {
		return nil, err
	}
	if !isMember {
		return nil, ErrNotMember
	}

	if input.ClientID != "" {
		if existing, err := s.messageRepo.FindByClientID(input.ClientID, senderID); err == nil {
			return existing, nil
		} else if !errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, err
		}
	}

	if input.ClientID == "" {
		input.ClientID = uuid.NewString()
	}

	groupID := input.GroupID
	message := &models.Message{
		ClientID: input.ClientID,
		SenderID: senderID,
		GroupID:  &groupID,
		Text:     input.Text,
		Image:    input.Image,
	}

	if err := s.messageRepo.Append(message); err != nil {
		return nil, err
	}
	_ = s.threads.InvalidateGroupThread(groupID)

	stored, err := s.messageRepo.FindByID(message.ID)
	if err != nil {
		stored = message
	}

	s.hub.SendToGroup(groupID, hub.NewGroupMessageEvent(stored.ToResponse()))

	return stored, nil
}

// RelayTyping forwards an ephemeral typing notice; it is never persisted
// and an offline peer simply misses it.
func (s *RelayService) RelayTyping(senderID, peerID uint) {
	if err := s.hub.SendToUser(peerID, hub.NewTypingEvent(senderID)); err != nil && !errors.Is(err, hub.ErrNotConnected) {
		log.Printf("Typing relay to user %d failed: %v", peerID, err)
	}
}
