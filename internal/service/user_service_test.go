package service

import (
	"errors"
	"testing"

	"github.com/driftline/driftline-backend/internal/models"
)

func TestListPeersCarriesUnseenCounts(t *testing.T) {
	userRepo := NewMockUserRepository()
	messageRepo := NewMockMessageRepository()
	svc := NewUserService(userRepo, messageRepo)

	for id, name := range map[uint]string{1: "alice", 2: "bob", 3: "carol"} {
		userRepo.users[id] = &models.User{ID: id, Username: name}
	}

	seedThread(messageRepo, 2, 1, "one", "two")
	seedThread(messageRepo, 3, 1, "three")
	messageRepo.MarkThreadSeen(1, 3)

	entries, err := svc.ListPeers(1)
	if err != nil {
		t.Fatalf("ListPeers: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("got %d peers, want 2", len(entries))
	}

	byID := make(map[uint]PeerEntry)
	for _, e := range entries {
		if e.User.ID == 1 {
			t.Fatal("viewer must not appear in their own peer list")
		}
		byID[e.User.ID] = e
	}
	if byID[2].Unseen != 2 {
		t.Errorf("unseen from bob = %d, want 2", byID[2].Unseen)
	}
	if byID[3].Unseen != 0 {
		t.Errorf("unseen from carol = %d, want 0", byID[3].Unseen)
	}
}

func TestUpdateAvatar(t *testing.T) {
	userRepo := NewMockUserRepository()
	svc := NewUserService(userRepo, NewMockMessageRepository())
	userRepo.users[1] = &models.User{ID: 1, Username: "alice"}

	user, err := svc.UpdateAvatar(1, "avatars/1/abc.jpg")
	if err != nil {
		t.Fatalf("UpdateAvatar: %v", err)
	}
	if user.Avatar != "avatars/1/abc.jpg" {
		t.Errorf("avatar = %q", user.Avatar)
	}

	if _, err := svc.UpdateAvatar(99, "x"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestOnlineStatusRoundTrip(t *testing.T) {
	userRepo := NewMockUserRepository()
	svc := NewUserService(userRepo, NewMockMessageRepository())
	userRepo.users[1] = &models.User{ID: 1, Username: "alice"}

	if err := svc.SetUserOnline(1); err != nil {
		t.Fatalf("SetUserOnline: %v", err)
	}
	if !userRepo.users[1].IsOnline {
		t.Error("user should be online")
	}
	if err := svc.SetUserOffline(1); err != nil {
		t.Fatalf("SetUserOffline: %v", err)
	}
	if userRepo.users[1].IsOnline {
		t.Error("user should be offline")
	}
}
