package service

import (
	"errors"
	"strings"
	"testing"

	"github.com/driftline/driftline-backend/internal/models"
)

func TestCreateGroupFounderIsMember(t *testing.T) {
	repo := NewMockGroupRepository()
	svc := NewGroupService(repo)

	group, err := svc.CreateGroup("general", 7)
	if err != nil {
		t.Fatalf("CreateGroup: %v", err)
	}
	if group.Name != "general" {
		t.Errorf("name = %q, want %q", group.Name, "general")
	}

	isMember, _ := repo.IsMember(group.ID, 7)
	if !isMember {
		t.Error("founder must be a member of the new group")
	}
	if len(group.Members) != 1 {
		t.Errorf("member set size = %d, want 1", len(group.Members))
	}
}

func TestCreateGroupValidation(t *testing.T) {
	svc := NewGroupService(NewMockGroupRepository())

	tests := []struct {
		name      string
		groupName string
	}{
		{"empty name", ""},
		{"whitespace name", "   "},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := svc.CreateGroup(tt.groupName, 1); !errors.Is(err, ErrValidation) {
				t.Errorf("expected ErrValidation, got %v", err)
			}
		})
	}
}

func TestCreateGroupTruncatesLongName(t *testing.T) {
	svc := NewGroupService(NewMockGroupRepository())

	group, err := svc.CreateGroup(strings.Repeat("x", 500), 1)
	if err != nil {
		t.Fatalf("CreateGroup: %v", err)
	}
	if len(group.Name) > 100 {
		t.Errorf("name length = %d, want <= 100", len(group.Name))
	}
}

func TestJoinGroupIsIdempotent(t *testing.T) {
	repo := NewMockGroupRepository()
	svc := NewGroupService(repo)

	group, err := svc.CreateGroup("general", 1)
	if err != nil {
		t.Fatalf("CreateGroup: %v", err)
	}

	first, err := svc.JoinGroup(group.ID, 2)
	if err != nil {
		t.Fatalf("first join: %v", err)
	}
	second, err := svc.JoinGroup(group.ID, 2)
	if err != nil {
		t.Fatalf("second join: %v", err)
	}

	// Joining twice leaves the member set unchanged, no error, no
	// duplicate entry.
	if len(first.Members) != 2 || len(second.Members) != 2 {
		t.Errorf("member set sizes = %d then %d, want 2 and 2", len(first.Members), len(second.Members))
	}
	for i := range first.Members {
		if first.Members[i].UserID != second.Members[i].UserID {
			t.Errorf("member order changed at %d: %d vs %d", i, first.Members[i].UserID, second.Members[i].UserID)
		}
	}
}

func TestJoinGroupUnknownGroup(t *testing.T) {
	svc := NewGroupService(NewMockGroupRepository())

	if _, err := svc.JoinGroup(42, 1); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestLeaveGroup(t *testing.T) {
	repo := NewMockGroupRepository()
	svc := NewGroupService(repo)

	group, _ := svc.CreateGroup("general", 1)
	if _, err := svc.JoinGroup(group.ID, 2); err != nil {
		t.Fatalf("join: %v", err)
	}

	if err := svc.LeaveGroup(group.ID, 2); err != nil {
		t.Fatalf("leave: %v", err)
	}
	isMember, _ := repo.IsMember(group.ID, 2)
	if isMember {
		t.Error("user still a member after leaving")
	}

	// Leaving a group you are not in is a no-op.
	if err := svc.LeaveGroup(group.ID, 2); err != nil {
		t.Errorf("repeated leave: %v", err)
	}
}

func TestListGroupsForUser(t *testing.T) {
	repo := NewMockGroupRepository()
	svc := NewGroupService(repo)

	a, _ := svc.CreateGroup("alpha", 1)
	b, _ := svc.CreateGroup("beta", 2)
	if _, err := svc.JoinGroup(b.ID, 1); err != nil {
		t.Fatalf("join: %v", err)
	}
	if _, err := svc.CreateGroup("gamma", 3); err != nil {
		t.Fatalf("create: %v", err)
	}

	groups, err := svc.ListGroupsForUser(1)
	if err != nil {
		t.Fatalf("ListGroupsForUser: %v", err)
	}
	if len(groups) != 2 {
		t.Fatalf("got %d groups, want 2", len(groups))
	}
	want := map[uint]bool{a.ID: true, b.ID: true}
	for _, g := range groups {
		if !want[g.ID] {
			t.Errorf("unexpected group %d in listing", g.ID)
		}
	}
}

func TestListMembersUnknownGroup(t *testing.T) {
	svc := NewGroupService(NewMockGroupRepository())

	if _, err := svc.ListMembers(42); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestGroupResponseMemberIDs(t *testing.T) {
	group := &models.Group{
		ID:   5,
		Name: "general",
		Members: []models.GroupMember{
			{GroupID: 5, UserID: 1},
			{GroupID: 5, UserID: 2},
		},
	}

	resp := group.ToResponse()
	if len(resp.MemberIDs) != 2 || resp.MemberIDs[0] != 1 || resp.MemberIDs[1] != 2 {
		t.Errorf("MemberIDs = %v, want [1 2]", resp.MemberIDs)
	}
}
