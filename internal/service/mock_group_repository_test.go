package service

import (
	"sort"
	"time"

	"github.com/driftline/driftline-backend/internal/models"
	"gorm.io/gorm"
)

// MockGroupRepository is a mock implementation for tests.
// It implements repository.GroupRepositoryInterface.
type MockGroupRepository struct {
	groups  map[uint]*models.Group
	members map[uint][]uint
	nextID  uint
}

func NewMockGroupRepository() *MockGroupRepository {
	return &MockGroupRepository{
		groups:  make(map[uint]*models.Group),
		members: make(map[uint][]uint),
		nextID:  1,
	}
}

func (m *MockGroupRepository) Create(group *models.Group) error {
	if group.ID == 0 {
		group.ID = m.nextID
		m.nextID++
	}
	m.groups[group.ID] = group
	return nil
}

func (m *MockGroupRepository) FindByID(id uint) (*models.Group, error) {
	g, ok := m.groups[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	// Rebuild the member association the way a preload would.
	out := *g
	out.Members = nil
	for _, uid := range m.members[id] {
		out.Members = append(out.Members, models.GroupMember{
			GroupID:  id,
			UserID:   uid,
			JoinedAt: time.Now(),
		})
	}
	return &out, nil
}

// AddMember mirrors the conflict-ignoring insert: adding an existing
// member is a no-op.
func (m *MockGroupRepository) AddMember(groupID, userID uint) error {
	for _, uid := range m.members[groupID] {
		if uid == userID {
			return nil
		}
	}
	m.members[groupID] = append(m.members[groupID], userID)
	return nil
}

func (m *MockGroupRepository) RemoveMember(groupID, userID uint) error {
	members := m.members[groupID]
	for i, uid := range members {
		if uid == userID {
			m.members[groupID] = append(members[:i], members[i+1:]...)
			return nil
		}
	}
	return nil
}

func (m *MockGroupRepository) GetMembers(groupID uint) ([]models.User, error) {
	var users []models.User
	for _, uid := range m.members[groupID] {
		users = append(users, models.User{ID: uid})
	}
	return users, nil
}

func (m *MockGroupRepository) IsMember(groupID, userID uint) (bool, error) {
	for _, uid := range m.members[groupID] {
		if uid == userID {
			return true, nil
		}
	}
	return false, nil
}

func (m *MockGroupRepository) GetUserGroups(userID uint) ([]models.Group, error) {
	var ids []uint
	for gid, members := range m.members {
		for _, uid := range members {
			if uid == userID {
				ids = append(ids, gid)
				break
			}
		}
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	var out []models.Group
	for _, gid := range ids {
		if g, ok := m.groups[gid]; ok {
			out = append(out, *g)
		}
	}
	return out, nil
}
