package repository

import (
	"github.com/driftline/driftline-backend/internal/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type GroupRepository struct {
	db *gorm.DB
}

func NewGroupRepository(db *gorm.DB) *GroupRepository {
	return &GroupRepository{db: db}
}

func (r *GroupRepository) Create(group *models.Group) error {
	return r.db.Create(group).Error
}

func (r *GroupRepository) FindByID(id uint) (*models.Group, error) {
	var group models.Group
	if err := r.db.Preload("Members", func(db *gorm.DB) *gorm.DB {
		return db.Order("joined_at ASC")
	}).Preload("Creator").First(&group, id).Error; err != nil {
		return nil, err
	}
	return &group, nil
}

// AddMember is idempotent: the composite primary key plus ON CONFLICT DO
// NOTHING means a repeated (or concurrent) join leaves the member set
// unchanged.
func (r *GroupRepository) AddMember(groupID, userID uint) error {
	member := models.GroupMember{
		GroupID: groupID,
		UserID:  userID,
	}
	return r.db.Clauses(clause.OnConflict{DoNothing: true}).Create(&member).Error
}

func (r *GroupRepository) RemoveMember(groupID, userID uint) error {
	return r.db.Where("group_id = ? AND user_id = ?", groupID, userID).
		Delete(&models.GroupMember{}).Error
}

func (r *GroupRepository) GetMembers(groupID uint) ([]models.User, error) {
	var members []models.User
	err := r.db.Joins("JOIN group_members ON group_members.user_id = users.id").
		Where("group_members.group_id = ?", groupID).
		Order("group_members.joined_at ASC").
		Find(&members).Error
	return members, err
}

func (r *GroupRepository) IsMember(groupID, userID uint) (bool, error) {
	var count int64
	err := r.db.Model(&models.GroupMember{}).
		Where("group_id = ? AND user_id = ?", groupID, userID).
		Count(&count).Error
	return count > 0, err
}

func (r *GroupRepository) GetUserGroups(userID uint) ([]models.Group, error) {
	var groups []models.Group
	err := r.db.Joins("JOIN group_members ON group_members.group_id = groups.id").
		Where("group_members.user_id = ?", userID).
		Preload("Members").
		Preload("Creator").
		Find(&groups).Error
	return groups, err
}
