package client

import (
	"testing"

	"github.com/driftline/driftline-backend/internal/models"
)

func privateMsg(id, senderID, recipientID uint, text string) models.MessageResponse {
	return models.MessageResponse{ID: id, SenderID: senderID, RecipientID: &recipientID, Text: text}
}

func groupMsg(id, senderID, groupID uint, text string) models.MessageResponse {
	return models.MessageResponse{ID: id, SenderID: senderID, GroupID: &groupID, Text: text}
}

func TestUnseenIncrementsOnlyWhenUnfocused(t *testing.T) {
	st := NewState(1)

	// Three messages from bob while no conversation is open.
	st.ApplyMessage(privateMsg(10, 2, 1, "one"))
	st.ApplyMessage(privateMsg(11, 2, 1, "two"))
	st.ApplyMessage(privateMsg(12, 2, 1, "three"))
	if got := st.Unseen(2); got != 3 {
		t.Fatalf("unseen = %d, want 3", got)
	}

	// Focusing bob resets the counter to exactly 0.
	ackPeer, ack := st.SetFocus(PeerConversation(2))
	if !ack || ackPeer != 2 {
		t.Fatalf("SetFocus ack = (%d, %v), want (2, true)", ackPeer, ack)
	}
	if got := st.Unseen(2); got != 0 {
		t.Fatalf("unseen after focus = %d, want 0", got)
	}

	// While focused, further messages land without bumping the counter.
	st.ApplyMessage(privateMsg(13, 2, 1, "four"))
	if got := st.Unseen(2); got != 0 {
		t.Errorf("unseen while focused = %d, want 0", got)
	}

	// Focusing away re-arms the counter.
	st.SetFocus(Conversation{})
	st.ApplyMessage(privateMsg(14, 2, 1, "five"))
	if got := st.Unseen(2); got != 1 {
		t.Errorf("unseen after refocus = %d, want 1", got)
	}
}

func TestUnseenTracksPerPeer(t *testing.T) {
	st := NewState(1)

	st.ApplyMessage(privateMsg(10, 2, 1, "from bob"))
	st.ApplyMessage(privateMsg(11, 3, 1, "from carol"))
	st.ApplyMessage(privateMsg(12, 3, 1, "from carol again"))

	if got := st.Unseen(2); got != 1 {
		t.Errorf("unseen from bob = %d, want 1", got)
	}
	if got := st.Unseen(3); got != 2 {
		t.Errorf("unseen from carol = %d, want 2", got)
	}

	all := st.UnseenAll()
	if len(all) != 2 || all[2] != 1 || all[3] != 2 {
		t.Errorf("UnseenAll = %v", all)
	}
}

func TestOwnMessagesNeverCountAsUnseen(t *testing.T) {
	st := NewState(1)

	st.ApplyMessage(privateMsg(10, 1, 2, "sent by viewer"))
	if got := st.Unseen(2); got != 0 {
		t.Errorf("unseen = %d, want 0 for the viewer's own message", got)
	}

	// The sent message still lands in the thread with the peer.
	if got := len(st.Transcript(PeerConversation(2))); got != 1 {
		t.Errorf("transcript length = %d, want 1", got)
	}
}

func TestGroupMessagesDoNotTouchUnseen(t *testing.T) {
	st := NewState(1)

	st.ApplyMessage(groupMsg(10, 2, 5, "group chatter"))
	if got := st.Unseen(2); got != 0 {
		t.Errorf("unseen = %d, group traffic must not count", got)
	}
	if got := len(st.Transcript(GroupConversation(5))); got != 1 {
		t.Errorf("group transcript length = %d, want 1", got)
	}
}

func TestApplyMessageDeduplicatesById(t *testing.T) {
	st := NewState(1)

	msg := privateMsg(10, 2, 1, "hello")
	st.ApplyMessage(msg)
	st.ApplyMessage(msg)

	if got := len(st.Transcript(PeerConversation(2))); got != 1 {
		t.Errorf("transcript length = %d, want 1 after duplicate apply", got)
	}
	if got := st.Unseen(2); got != 1 {
		t.Errorf("unseen = %d, duplicate must not double-count", got)
	}
}

func TestMergeHistoryDeduplicatesAgainstLiveEvents(t *testing.T) {
	st := NewState(1)
	conv := PeerConversation(2)

	// A live event raced ahead of the history fetch.
	st.ApplyMessage(privateMsg(12, 2, 1, "live"))

	st.MergeHistory(conv, []models.MessageResponse{
		privateMsg(10, 1, 2, "older"),
		privateMsg(11, 2, 1, "old"),
		privateMsg(12, 2, 1, "live"),
	})

	transcript := st.Transcript(conv)
	if len(transcript) != 3 {
		t.Fatalf("transcript length = %d, want 3", len(transcript))
	}
	for i, wantID := range []uint{10, 11, 12} {
		if transcript[i].ID != wantID {
			t.Errorf("transcript[%d].ID = %d, want %d", i, transcript[i].ID, wantID)
		}
	}
}

func TestPresenceReplacement(t *testing.T) {
	st := NewState(1)

	st.ApplyPresence([]uint{1, 2, 3})
	if !st.IsOnline(2) {
		t.Error("user 2 should be online")
	}

	// Full-set semantics: the next event replaces, not merges.
	st.ApplyPresence([]uint{1, 3})
	if st.IsOnline(2) {
		t.Error("user 2 should have gone offline")
	}
	online := st.Online()
	if len(online) != 2 || online[0] != 1 || online[1] != 3 {
		t.Errorf("online = %v, want [1 3]", online)
	}
}

func TestSetUnseenOverwritesLocalCounts(t *testing.T) {
	st := NewState(1)
	st.ApplyMessage(privateMsg(10, 2, 1, "stale local state"))

	st.SetUnseen(map[uint]int64{3: 5})
	if got := st.Unseen(2); got != 0 {
		t.Errorf("unseen from 2 = %d, want 0 after authoritative resync", got)
	}
	if got := st.Unseen(3); got != 5 {
		t.Errorf("unseen from 3 = %d, want 5", got)
	}
}

func TestRetryDelayIsCappedExponential(t *testing.T) {
	if d := retryDelay(0); d != baseRetryDelay {
		t.Errorf("first delay = %s, want %s", d, baseRetryDelay)
	}
	if d0, d1 := retryDelay(1), retryDelay(2); d1 != 2*d0 {
		t.Errorf("delays not doubling: %s then %s", d0, d1)
	}
	if d := retryDelay(100); d > maxRetryDelay {
		t.Errorf("delay %s exceeds cap %s", d, maxRetryDelay)
	}
}
