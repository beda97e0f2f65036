package repository

import (
	"github.com/driftline/driftline-backend/internal/models"
	"gorm.io/gorm"
)

type MessageRepository struct {
	db *gorm.DB
}

func NewMessageRepository(db *gorm.DB) *MessageRepository {
	return &MessageRepository{db: db}
}

// Append stores the message and lets the database assign its ordinal.
// Each append is a single-row insert, so concurrent routes to the same
// conversation serialize at the messages sequence and every reader sees
// one consistent order.
func (r *MessageRepository) Append(message *models.Message) error {
	return r.db.Create(message).Error
}

func (r *MessageRepository) FindByID(id uint) (*models.Message, error) {
	var message models.Message
	if err := r.db.Preload("Sender").First(&message, id).Error; err != nil {
		return nil, err
	}
	return &message, nil
}

func (r *MessageRepository) FindByClientID(clientID string, senderID uint) (*models.Message, error) {
	var message models.Message
	err := r.db.Where("client_id = ? AND sender_id = ?", clientID, senderID).
		First(&message).Error
	if err != nil {
		return nil, err
	}
	return &message, nil
}

// FindThread returns the full private thread between two users in append
// order.
func (r *MessageRepository) FindThread(userID1, userID2 uint) ([]models.Message, error) {
	var messages []models.Message
	err := r.db.Preload("Sender").
		Where("group_id IS NULL AND ((sender_id = ? AND recipient_id = ?) OR (sender_id = ? AND recipient_id = ?))",
			userID1, userID2, userID2, userID1).
		Order("id ASC").
		Find(&messages).Error
	return messages, err
}

// FindGroupThread returns the full group thread in append order.
func (r *MessageRepository) FindGroupThread(groupID uint) ([]models.Message, error) {
	var messages []models.Message
	err := r.db.Preload("Sender").
		Where("group_id = ?", groupID).
		Order("id ASC").
		Find(&messages).Error
	return messages, err
}

// MarkSeen flips the seen flag. Idempotent: marking twice is the same as
// marking once.
func (r *MessageRepository) MarkSeen(messageID uint) error {
	return r.db.Model(&models.Message{}).
		Where("id = ? AND seen = false", messageID).
		Updates(map[string]interface{}{
			"seen":    true,
			"seen_at": gorm.Expr("NOW()"),
		}).Error
}

// MarkThreadSeen marks every pending message from peer to viewer as seen
// and reports how many were flipped.
func (r *MessageRepository) MarkThreadSeen(viewerID, peerID uint) (int64, error) {
	res := r.db.Model(&models.Message{}).
		Where("recipient_id = ? AND sender_id = ? AND seen = false", viewerID, peerID).
		Updates(map[string]interface{}{
			"seen":    true,
			"seen_at": gorm.Expr("NOW()"),
		})
	return res.RowsAffected, res.Error
}

type unseenRow struct {
	PeerID uint  `gorm:"column:peer_id"`
	Count  int64 `gorm:"column:unseen"`
}

// CountUnseenByPeer returns, for each peer who has pending private
// messages to the viewer, the number of unseen messages. Peers with no
// pending messages are absent from the map.
func (r *MessageRepository) CountUnseenByPeer(viewerID uint) (map[uint]int64, error) {
	var rows []unseenRow
	err := r.db.Raw(`
SELECT m.sender_id AS peer_id, COUNT(*) AS unseen
FROM messages m
WHERE m.recipient_id = ?
  AND m.seen = false
  AND m.deleted_at IS NULL
GROUP BY m.sender_id
`, viewerID).Scan(&rows).Error
	if err != nil {
		return nil, err
	}

	counts := make(map[uint]int64, len(rows))
	for _, row := range rows {
		counts[row.PeerID] = row.Count
	}
	return counts, nil
}
