package models

import (
	"time"

	"gorm.io/gorm"
)

// A message carries either text or an image object reference (or both,
// for a captioned image). Exactly one of RecipientID / GroupID is set.
type Message struct {
	ID        uint           `gorm:"primarykey" json:"id"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`

	// UUID assigned by the sending client, used to de-duplicate a live
	// delivery against a history fetch of the same message.
	ClientID string `gorm:"type:varchar(36);uniqueIndex:idx_client_sender" json:"client_id"`

	SenderID    uint   `gorm:"not null;uniqueIndex:idx_client_sender;index" json:"sender_id"`
	Sender      User   `gorm:"foreignKey:SenderID" json:"sender"`
	RecipientID *uint  `gorm:"index" json:"recipient_id"` // null for group messages
	GroupID     *uint  `gorm:"index" json:"group_id"`     // null for private messages
	Group       *Group `gorm:"foreignKey:GroupID" json:"-"`

	Text  string `gorm:"type:text" json:"text"`
	Image string `json:"image"` // object storage reference

	// Seen applies to private messages only; group read tracking is out
	// of scope for the relay.
	Seen   bool       `gorm:"default:false;index" json:"seen"`
	SeenAt *time.Time `json:"seen_at"`
}

func (m *Message) IsPrivate() bool {
	return m.RecipientID != nil
}

func (m *Message) IsGroup() bool {
	return m.GroupID != nil
}

type MessageResponse struct {
	ID          uint      `json:"id"`
	ClientID    string    `json:"client_id"`
	SenderID    uint      `json:"sender_id"`
	RecipientID *uint     `json:"recipient_id,omitempty"`
	GroupID     *uint     `json:"group_id,omitempty"`
	Text        string    `json:"text"`
	Image       string    `json:"image,omitempty"`
	Seen        bool      `json:"seen"`
	CreatedAt   time.Time `json:"created_at"`
}

func (m *Message) ToResponse() MessageResponse {
	return MessageResponse{
		ID:          m.ID,
		ClientID:    m.ClientID,
		SenderID:    m.SenderID,
		RecipientID: m.RecipientID,
		GroupID:     m.GroupID,
		Text:        m.Text,
		Image:       m.Image,
		Seen:        m.Seen,
		CreatedAt:   m.CreatedAt,
	}
}
