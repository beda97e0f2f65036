package client

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/driftline/driftline-backend/internal/handlers/ws"
	"github.com/driftline/driftline-backend/internal/hub"
	"github.com/driftline/driftline-backend/internal/service"
)

const (
	baseRetryDelay = 500 * time.Millisecond
	maxRetryDelay  = 30 * time.Second
	maxRetryShift  = 6
)

var ErrDisconnected = errors.New("not connected")

// Synchronizer keeps a State converged with the server: one websocket
// connection, one consumer goroutine applying events in arrival order,
// reconnect with capped exponential backoff, and a resync (authoritative
// unseen counts plus the focused transcript) after every connect.
type Synchronizer struct {
	api   *API
	state *State
	wsURL string

	dialer *websocket.Dialer

	connMu sync.Mutex
	conn   *websocket.Conn

	// OnTyping, when set, is called from the consumer goroutine for each
	// ephemeral typing notice.
	OnTyping func(peerID uint)
}

func NewSynchronizer(api *API, wsURL string, state *State) *Synchronizer {
	return &Synchronizer{
		api:    api,
		state:  state,
		wsURL:  wsURL,
		dialer: &websocket.Dialer{HandshakeTimeout: 10 * time.Second},
	}
}

func (s *Synchronizer) State() *State { return s.state }

func retryDelay(attempt int) time.Duration {
	if attempt > maxRetryShift {
		attempt = maxRetryShift
	}
	d := baseRetryDelay * (1 << attempt)
	if d > maxRetryDelay {
		d = maxRetryDelay
	}
	return d
}

// Run connects and consumes events until ctx is cancelled. Connection
// loss is handled internally; callers see a single blocking call.
func (s *Synchronizer) Run(ctx context.Context) error {
	attempt := 0
	for {
		conn, err := s.dial(ctx)
		if err != nil {
			delay := retryDelay(attempt)
			attempt++
			log.Printf("sync: connect failed, retrying in %s: %v", delay, err)
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(delay):
				continue
			}
		}
		attempt = 0

		s.setConn(conn)
		if err := s.resync(ctx); err != nil {
			log.Printf("sync: resync failed: %v", err)
		}
		err = s.consume(ctx, conn)
		s.setConn(nil)
		_ = conn.Close()
		if ctx.Err() != nil {
			return ctx.Err()
		}
		log.Printf("sync: connection lost: %v", err)
	}
}

func (s *Synchronizer) dial(ctx context.Context) (*websocket.Conn, error) {
	url := s.wsURL + "?token=" + s.api.Token()
	conn, _, err := s.dialer.DialContext(ctx, url, nil)
	return conn, err
}

func (s *Synchronizer) setConn(conn *websocket.Conn) {
	s.connMu.Lock()
	s.conn = conn
	s.connMu.Unlock()
}

func (s *Synchronizer) writeCommand(cmdType string, payload interface{}) error {
	frame, err := ws.Encode(cmdType, payload)
	if err != nil {
		return err
	}
	s.connMu.Lock()
	defer s.connMu.Unlock()
	if s.conn == nil {
		return ErrDisconnected
	}
	return s.conn.WriteMessage(websocket.TextMessage, frame)
}

// resync pulls the authoritative unseen counts and, when a conversation
// is focused, re-announces the focus and merges its transcript. Live
// events that raced the fetch de-duplicate on message id.
func (s *Synchronizer) resync(ctx context.Context) error {
	peers, err := s.api.ListPeers(ctx)
	if err != nil {
		return err
	}
	s.state.SetUnseen(peers.Unseen)

	focus := s.state.Focus()
	switch focus.Kind {
	case hub.FocusUser:
		if err := s.sendFocus(focus); err != nil {
			return err
		}
		messages, err := s.api.FetchThread(ctx, focus.ID)
		if err != nil {
			return err
		}
		s.state.MergeHistory(focus, messages)
	case hub.FocusGroup:
		if err := s.writeCommand(ws.CmdJoinGroup, ws.JoinGroupCommand{GroupID: focus.ID}); err != nil {
			return err
		}
		if err := s.sendFocus(focus); err != nil {
			return err
		}
		messages, err := s.api.FetchGroupThread(ctx, focus.ID)
		if err != nil {
			return err
		}
		s.state.MergeHistory(focus, messages)
	}
	return nil
}

func (s *Synchronizer) sendFocus(conv Conversation) error {
	var cmd ws.FocusCommand
	switch conv.Kind {
	case hub.FocusUser:
		id := conv.ID
		cmd.PeerID = &id
	case hub.FocusGroup:
		id := conv.ID
		cmd.GroupID = &id
	}
	return s.writeCommand(ws.CmdFocus, cmd)
}

// Open moves the focus to a conversation: announces it to the server,
// zeroes the local unseen counter, acks the thread as seen and loads its
// transcript. The local reset is optimistic: if the focus announcement or
// the seen ack fails, the counter stays zeroed and the server's count may
// disagree until the next resync, which overwrites local counts with the
// server's.
func (s *Synchronizer) Open(ctx context.Context, conv Conversation) error {
	ackPeer, ack := s.state.SetFocus(conv)
	if err := s.sendFocus(conv); err != nil && !errors.Is(err, ErrDisconnected) {
		return err
	}
	if ack {
		if err := s.api.MarkThreadSeen(ctx, ackPeer); err != nil {
			return err
		}
		messages, err := s.api.FetchThread(ctx, ackPeer)
		if err != nil {
			return err
		}
		s.state.MergeHistory(conv, messages)
		return nil
	}
	if conv.Kind == hub.FocusGroup {
		messages, err := s.api.FetchGroupThread(ctx, conv.ID)
		if err != nil {
			return err
		}
		s.state.MergeHistory(conv, messages)
	}
	return nil
}

// CloseConversation drops the focus without opening another thread.
func (s *Synchronizer) CloseConversation() error {
	s.state.SetFocus(Conversation{})
	if err := s.sendFocus(Conversation{}); err != nil && !errors.Is(err, ErrDisconnected) {
		return err
	}
	return nil
}

// SendPrivate sends over HTTP so persistence is confirmed before the
// message enters the local transcript. The client id is generated once
// up front; resending the same input after a timeout lands on the
// already-persisted row instead of a duplicate.
func (s *Synchronizer) SendPrivate(ctx context.Context, peerID uint, text, image string) error {
	input := service.PrivateMessageInput{
		RecipientID: peerID,
		ClientID:    uuid.NewString(),
		Text:        text,
		Image:       image,
	}
	msg, err := s.api.SendMessage(ctx, input)
	var apiErr *apiError
	if err != nil && !errors.As(err, &apiErr) {
		// Transport failure: the server may have persisted the row
		// anyway, so resend with the same client id.
		msg, err = s.api.SendMessage(ctx, input)
	}
	if err != nil {
		return err
	}
	s.state.ApplyMessage(msg)
	return nil
}

// SendGroup ships a group message over the websocket; the echo event
// carries the persisted row back into the transcript.
func (s *Synchronizer) SendGroup(groupID uint, text, image string) error {
	return s.writeCommand(ws.CmdGroupMessage, ws.GroupMessageCommand{
		GroupID:  groupID,
		ClientID: uuid.NewString(),
		Text:     text,
		Image:    image,
	})
}

func (s *Synchronizer) JoinGroup(groupID uint) error {
	return s.writeCommand(ws.CmdJoinGroup, ws.JoinGroupCommand{GroupID: groupID})
}

func (s *Synchronizer) NotifyTyping(peerID uint) error {
	return s.writeCommand(ws.CmdTyping, ws.TypingCommand{PeerID: peerID})
}

func (s *Synchronizer) consume(ctx context.Context, conn *websocket.Conn) error {
	for {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		_, raw, err := conn.ReadMessage()
		if err != nil {
			return err
		}
		s.handleFrame(ctx, raw)
	}
}

// handleFrame applies one server event. Called only from the consumer
// goroutine, so events mutate state in arrival order.
func (s *Synchronizer) handleFrame(ctx context.Context, raw []byte) {
	var envelope struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(raw, &envelope); err != nil {
		log.Printf("sync: malformed frame: %v", err)
		return
	}

	switch envelope.Type {
	case hub.EventPresence:
		var ev hub.PresenceEvent
		if err := json.Unmarshal(raw, &ev); err != nil {
			log.Printf("sync: malformed presence event: %v", err)
			return
		}
		s.state.ApplyPresence(ev.UserIDs)

	case hub.EventNewMessage, hub.EventGroupMessage:
		var ev hub.MessageEvent
		if err := json.Unmarshal(raw, &ev); err != nil {
			log.Printf("sync: malformed message event: %v", err)
			return
		}
		conv, focused := s.state.ApplyMessage(ev.Message)
		if focused && conv.Kind == hub.FocusUser && ev.Message.SenderID != s.state.ViewerID() {
			if err := s.api.MarkThreadSeen(ctx, conv.ID); err != nil {
				log.Printf("sync: seen ack for peer %d failed: %v", conv.ID, err)
			}
		}

	case hub.EventTyping:
		var ev hub.TypingEvent
		if err := json.Unmarshal(raw, &ev); err != nil {
			return
		}
		if s.OnTyping != nil {
			s.OnTyping(ev.UserID)
		}

	case hub.EventPong:
		// Application-level keepalive answer; nothing to update.

	case hub.EventError:
		var ev hub.ErrorEvent
		if err := json.Unmarshal(raw, &ev); err != nil {
			return
		}
		log.Printf("sync: server rejected command: %s %s", ev.Code, ev.Error)

	default:
		log.Printf("sync: unknown event type %q", envelope.Type)
	}
}
