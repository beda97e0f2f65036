// Package client implements the consumer side of the relay: an HTTP API
// wrapper, local conversation state, and a synchronizer that keeps that
// state converged with the server over one websocket connection.
package client

import (
	"sort"
	"sync"

	"github.com/driftline/driftline-backend/internal/hub"
	"github.com/driftline/driftline-backend/internal/models"
)

// Conversation identifies a thread the way the focus pointer does: a
// private peer or a group. The zero value is "no conversation".
type Conversation = hub.Focus

func PeerConversation(peerID uint) Conversation {
	return Conversation{Kind: hub.FocusUser, ID: peerID}
}

func GroupConversation(groupID uint) Conversation {
	return Conversation{Kind: hub.FocusGroup, ID: groupID}
}

// State is the client's local view: transcripts per conversation, the
// unseen counter per private peer, the online set, and the focus
// pointer. All mutation happens through methods; the synchronizer's
// consumer goroutine is the main writer, snapshot readers can be any
// goroutine.
type State struct {
	mu       sync.RWMutex
	viewerID uint

	focus       Conversation
	online      map[uint]struct{}
	transcripts map[Conversation][]models.MessageResponse
	known       map[Conversation]map[uint]struct{}
	unseen      map[uint]int64
}

func NewState(viewerID uint) *State {
	return &State{
		viewerID:    viewerID,
		online:      make(map[uint]struct{}),
		transcripts: make(map[Conversation][]models.MessageResponse),
		known:       make(map[Conversation]map[uint]struct{}),
		unseen:      make(map[uint]int64),
	}
}

func (s *State) ViewerID() uint { return s.viewerID }

// conversationOf maps a message to the thread it belongs to from the
// viewer's side: group messages key on the group, private ones on the
// other party.
func (s *State) conversationOf(m models.MessageResponse) Conversation {
	if m.GroupID != nil {
		return GroupConversation(*m.GroupID)
	}
	if m.SenderID == s.viewerID && m.RecipientID != nil {
		return PeerConversation(*m.RecipientID)
	}
	return PeerConversation(m.SenderID)
}

func (s *State) remember(conv Conversation, id uint) bool {
	ids, ok := s.known[conv]
	if !ok {
		ids = make(map[uint]struct{})
		s.known[conv] = ids
	}
	if _, dup := ids[id]; dup {
		return false
	}
	ids[id] = struct{}{}
	return true
}

// ApplyMessage folds one live message into the state. It reports the
// conversation the message landed in and whether that conversation is
// the current focus; the caller acks seen for focused private inbound.
// A message already known (same id from a history fetch) is a no-op.
func (s *State) ApplyMessage(m models.MessageResponse) (conv Conversation, focused bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	conv = s.conversationOf(m)
	if !s.remember(conv, m.ID) {
		return conv, conv == s.focus
	}
	s.transcripts[conv] = append(s.transcripts[conv], m)

	focused = conv == s.focus
	inbound := m.SenderID != s.viewerID
	if !focused && inbound && conv.Kind == hub.FocusUser {
		s.unseen[conv.ID]++
	}
	return conv, focused
}

// MergeHistory folds a fetched transcript into a conversation. Messages
// already applied live keep their single copy; ordering stays by message
// id, which is append order on the server.
func (s *State) MergeHistory(conv Conversation, messages []models.MessageResponse) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, m := range messages {
		if s.remember(conv, m.ID) {
			s.transcripts[conv] = append(s.transcripts[conv], m)
		}
	}
	t := s.transcripts[conv]
	sort.Slice(t, func(i, j int) bool { return t[i].ID < t[j].ID })
}

// SetFocus moves the focus pointer. Focusing a private peer zeroes that
// peer's unseen counter; ackPeer is set when the caller should tell the
// server the thread was seen.
func (s *State) SetFocus(conv Conversation) (ackPeer uint, ack bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.focus = conv
	if conv.Kind == hub.FocusUser {
		s.unseen[conv.ID] = 0
		return conv.ID, true
	}
	return 0, false
}

func (s *State) Focus() Conversation {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.focus
}

// SetUnseen overwrites a peer's counter with the server's authoritative
// number, used when resyncing after a (re)connect.
func (s *State) SetUnseen(counts map[uint]int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.unseen = make(map[uint]int64, len(counts))
	for peer, n := range counts {
		s.unseen[peer] = n
	}
}

func (s *State) Unseen(peerID uint) int64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.unseen[peerID]
}

func (s *State) UnseenAll() map[uint]int64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[uint]int64, len(s.unseen))
	for peer, n := range s.unseen {
		if n > 0 {
			out[peer] = n
		}
	}
	return out
}

// ApplyPresence replaces the online set with the published full set.
func (s *State) ApplyPresence(userIDs []uint) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.online = make(map[uint]struct{}, len(userIDs))
	for _, id := range userIDs {
		s.online[id] = struct{}{}
	}
}

func (s *State) IsOnline(userID uint) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.online[userID]
	return ok
}

func (s *State) Online() []uint {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]uint, 0, len(s.online))
	for id := range s.online {
		out = append(out, id)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Transcript returns a copy of a conversation's messages in id order.
func (s *State) Transcript(conv Conversation) []models.MessageResponse {
	s.mu.RLock()
	defer s.mu.RUnlock()
	t := s.transcripts[conv]
	out := make([]models.MessageResponse, len(t))
	copy(out, t)
	return out
}
