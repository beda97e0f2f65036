package models

import (
	"time"

	"gorm.io/gorm"
)

type Group struct {
	ID        uint           `gorm:"primarykey" json:"id"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`

	Name      string `gorm:"size:100;not null" json:"name"`
	CreatorID uint   `gorm:"not null" json:"creator_id"`

	Creator User          `gorm:"foreignKey:CreatorID" json:"creator"`
	Members []GroupMember `gorm:"foreignKey:GroupID" json:"members"`
}

// GroupMember's composite primary key makes the member set duplicate-free
// at the schema level.
type GroupMember struct {
	GroupID  uint      `gorm:"primaryKey" json:"group_id"`
	UserID   uint      `gorm:"primaryKey" json:"user_id"`
	JoinedAt time.Time `gorm:"autoCreateTime" json:"joined_at"`

	User  User  `gorm:"foreignKey:UserID" json:"user"`
	Group Group `gorm:"foreignKey:GroupID" json:"-"`
}

type GroupResponse struct {
	ID        uint      `json:"id"`
	Name      string    `json:"name"`
	CreatorID uint      `json:"creator_id"`
	MemberIDs []uint    `json:"member_ids"`
	CreatedAt time.Time `json:"created_at"`
}

func (g *Group) ToResponse() GroupResponse {
	memberIDs := make([]uint, 0, len(g.Members))
	for _, m := range g.Members {
		memberIDs = append(memberIDs, m.UserID)
	}
	return GroupResponse{
		ID:        g.ID,
		Name:      g.Name,
		CreatorID: g.CreatorID,
		MemberIDs: memberIDs,
		CreatedAt: g.CreatedAt,
	}
}
