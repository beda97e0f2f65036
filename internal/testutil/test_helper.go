package testutil

import (
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/driftline/driftline-backend/internal/models"
	"gorm.io/gorm"
)

// TestHelper provides utility functions for tests
type TestHelper struct {
	t *testing.T
}

func NewTestHelper(t *testing.T) *TestHelper {
	return &TestHelper{t: t}
}

// CreateTestUser creates a test user with default values
func (h *TestHelper) CreateTestUser(id uint, username, email string) *models.User {
	if id == 0 {
		id = 1
	}
	if username == "" {
		username = "testuser"
	}
	if email == "" {
		email = "test@example.com"
	}

	return &models.User{
		ID:           id,
		Username:     username,
		Email:        email,
		PasswordHash: "hashed_password_123",
		FullName:     "Test User",
		IsOnline:     false,
		CreatedAt:    time.Now(),
		UpdatedAt:    time.Now(),
	}
}

// CreateTestMessage creates a private test message with default values
func (h *TestHelper) CreateTestMessage(id uint, senderID uint, text string) *models.Message {
	if id == 0 {
		id = 1
	}
	if senderID == 0 {
		senderID = 1
	}
	if text == "" {
		text = "Test message"
	}

	recipientID := uint(2)
	return &models.Message{
		ID:          id,
		ClientID:    fmt.Sprintf("client-%d", id),
		SenderID:    senderID,
		RecipientID: &recipientID,
		Text:        text,
		CreatedAt:   time.Now(),
		UpdatedAt:   time.Now(),
		Sender: models.User{
			ID:       senderID,
			Username: "sender",
			Email:    "sender@example.com",
		},
	}
}

// CreateTestGroup creates a test group with the given members
func (h *TestHelper) CreateTestGroup(id uint, name string, creatorID uint, memberIDs ...uint) *models.Group {
	if id == 0 {
		id = 1
	}
	if name == "" {
		name = "Test Group"
	}
	if creatorID == 0 {
		creatorID = 1
	}

	group := &models.Group{
		ID:        id,
		Name:      name,
		CreatorID: creatorID,
		CreatedAt: time.Now(),
		UpdatedAt: time.Now(),
	}
	for _, uid := range memberIDs {
		group.Members = append(group.Members, models.GroupMember{
			GroupID:  id,
			UserID:   uid,
			JoinedAt: time.Now(),
		})
	}
	return group
}

// SetupTestEnv sets up required environment variables for testing
func (h *TestHelper) SetupTestEnv() {
	os.Setenv("JWT_SECRET", "test-secret-key-for-testing-only")
	os.Setenv("DATABASE_URL", "")
}

// TeardownTestEnv cleans up environment variables after testing
func (h *TestHelper) TeardownTestEnv() {
	os.Unsetenv("JWT_SECRET")
	os.Unsetenv("DATABASE_URL")
}

// AssertError checks if an error occurred when it should (or shouldn't)
func (h *TestHelper) AssertError(err error, shouldErr bool, testName string) {
	if (err != nil) != shouldErr {
		if shouldErr {
			h.t.Errorf("%s: expected error but got nil", testName)
		} else {
			h.t.Errorf("%s: unexpected error: %v", testName, err)
		}
	}
}

// AssertEqual checks if two values are equal
func (h *TestHelper) AssertEqual(got, want interface{}, testName string) {
	if got != want {
		h.t.Errorf("%s: got %v, want %v", testName, got, want)
	}
}

// GetRecordNotFoundError returns the error gorm reports for a missing row
func GetRecordNotFoundError() error {
	return gorm.ErrRecordNotFound
}
