package hub

import (
	"errors"
	"log"
	"sort"
	"sync"
	"time"

	"github.com/gofiber/websocket/v2"
)

// ErrNotConnected reports that the target user has no live connection.
// Callers treat it as "live delivery skipped"; durability is handled
// upstream.
var ErrNotConnected = errors.New("user not connected")

// Conn is the write side of a live connection. *websocket.Conn satisfies
// it; tests substitute a recorder.
type Conn interface {
	WriteJSON(v interface{}) error
	WriteControl(messageType int, data []byte, deadline time.Time) error
	Close() error
}

// PresenceMirror reflects registry mutations into a shared cache. May be
// nil.
type PresenceMirror interface {
	SetUserOnline(userID uint) error
	SetUserOffline(userID uint) error
}

// client wraps a live connection with its metadata. Writes to the
// connection are serialized by writeMu.
type client struct {
	conn     Conn
	userID   uint
	focus    Focus
	lastPong time.Time
	ticker   *time.Ticker
	closed   chan struct{}
	writeMu  sync.Mutex
}

func (c *client) send(event interface{}) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	return c.conn.WriteJSON(event)
}

// Hub owns the connection registry and the group channel subscriptions.
// It is an explicit capability: constructed once at startup and handed to
// the router and the websocket handler. The internal maps never escape.
type Hub struct {
	mu      sync.RWMutex
	clients map[uint]*client
	rooms   map[uint]map[*client]struct{}

	mirror       PresenceMirror
	pingInterval time.Duration
	pongTimeout  time.Duration
	stop         chan struct{}
}

func NewHub(mirror PresenceMirror) *Hub {
	h := &Hub{
		clients:      make(map[uint]*client),
		rooms:        make(map[uint]map[*client]struct{}),
		mirror:       mirror,
		pingInterval: 30 * time.Second,
		pongTimeout:  90 * time.Second,
		stop:         make(chan struct{}),
	}
	go h.healthChecker()
	return h
}

// Close stops the hub's background workers and closes every live
// connection.
func (h *Hub) Close() {
	close(h.stop)

	h.mu.Lock()
	clients := make([]*client, 0, len(h.clients))
	for _, c := range h.clients {
		clients = append(clients, c)
	}
	h.clients = make(map[uint]*client)
	h.rooms = make(map[uint]map[*client]struct{})
	h.mu.Unlock()

	for _, c := range clients {
		h.teardown(c)
	}
}

// Register tracks a live connection for a verified user. Only one handle
// per user is tracked: a second registration replaces the first
// (last-registration-wins) and the replaced connection is closed.
func (h *Hub) Register(userID uint, conn Conn) error {
	if userID == 0 {
		return errors.New("refusing to register connection without verified user id")
	}

	c := &client{
		conn:     conn,
		userID:   userID,
		focus:    Focus{},
		lastPong: time.Now(),
		ticker:   time.NewTicker(h.pingInterval),
		closed:   make(chan struct{}),
	}

	h.mu.Lock()
	prev := h.clients[userID]
	h.clients[userID] = c
	total := len(h.clients)
	h.mu.Unlock()

	if prev != nil {
		log.Printf("User %d re-registered, replacing previous connection", userID)
		h.teardown(prev)
	}

	go h.pingRoutine(c)

	if h.mirror != nil {
		if err := h.mirror.SetUserOnline(userID); err != nil {
			log.Printf("Failed to mirror user %d online: %v", userID, err)
		}
	}

	log.Printf("User %d connected (total: %d)", userID, total)
	h.publishPresence()
	return nil
}

// Unregister removes the entry for userID if conn is still its live
// handle. The guard keeps a replaced connection's deferred unregister
// from evicting its replacement. No-op when there is no match.
func (h *Hub) Unregister(userID uint, conn Conn) {
	h.mu.Lock()
	c, ok := h.clients[userID]
	if !ok || c.conn != conn {
		h.mu.Unlock()
		return
	}
	delete(h.clients, userID)
	h.dropFromRoomsLocked(c)
	total := len(h.clients)
	h.mu.Unlock()

	h.teardown(c)

	if h.mirror != nil {
		if err := h.mirror.SetUserOffline(userID); err != nil {
			log.Printf("Failed to mirror user %d offline: %v", userID, err)
		}
	}

	log.Printf("User %d disconnected (total: %d)", userID, total)
	h.publishPresence()
}

func (h *Hub) teardown(c *client) {
	select {
	case <-c.closed:
	default:
		close(c.closed)
	}
	c.ticker.Stop()
	_ = c.conn.Close()
}

func (h *Hub) dropFromRoomsLocked(c *client) {
	for groupID, room := range h.rooms {
		delete(room, c)
		if len(room) == 0 {
			delete(h.rooms, groupID)
		}
	}
}

// IsOnline reports whether the user has a live connection.
func (h *Hub) IsOnline(userID uint) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	_, ok := h.clients[userID]
	return ok
}

// Snapshot returns a sorted copy of the currently online user ids.
func (h *Hub) Snapshot() []uint {
	h.mu.RLock()
	ids := make([]uint, 0, len(h.clients))
	for id := range h.clients {
		ids = append(ids, id)
	}
	h.mu.RUnlock()

	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// Count returns the number of live connections.
func (h *Hub) Count() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// SetFocus records which conversation the user's client is viewing. The
// router consults it to mark private messages seen on delivery.
func (h *Hub) SetFocus(userID uint, focus Focus) {
	h.mu.Lock()
	if c, ok := h.clients[userID]; ok {
		c.focus = focus
	}
	h.mu.Unlock()
}

// FocusOf returns the last reported focus for the user, or the zero Focus
// when the user is offline.
func (h *Hub) FocusOf(userID uint) Focus {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if c, ok := h.clients[userID]; ok {
		return c.focus
	}
	return Focus{}
}

// Subscribe adds the user's live connection to a group channel. Channel
// membership is per-connection and independent of the registry: it lapses
// with the connection, not with presence.
func (h *Hub) Subscribe(userID, groupID uint) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	c, ok := h.clients[userID]
	if !ok {
		return ErrNotConnected
	}
	room, ok := h.rooms[groupID]
	if !ok {
		room = make(map[*client]struct{})
		h.rooms[groupID] = room
	}
	room[c] = struct{}{}
	return nil
}

// SendToUser delivers one event to the user's live connection. Returns
// ErrNotConnected when the user is offline. A write failure evicts the
// connection and is reported to the caller.
func (h *Hub) SendToUser(userID uint, event interface{}) error {
	h.mu.RLock()
	c, ok := h.clients[userID]
	h.mu.RUnlock()

	if !ok {
		return ErrNotConnected
	}

	if err := c.send(event); err != nil {
		log.Printf("Error sending to user %d: %v", userID, err)
		h.Unregister(userID, c.conn)
		return err
	}
	return nil
}

// SendToGroup fans one event out to every connection subscribed to the
// group's channel, the sender's included. Dead subscribers are evicted.
func (h *Hub) SendToGroup(groupID uint, event interface{}) {
	h.mu.RLock()
	subscribers := make([]*client, 0, len(h.rooms[groupID]))
	for c := range h.rooms[groupID] {
		subscribers = append(subscribers, c)
	}
	h.mu.RUnlock()

	for _, c := range subscribers {
		if err := c.send(event); err != nil {
			log.Printf("Error sending to group %d subscriber %d: %v", groupID, c.userID, err)
			h.Unregister(c.userID, c.conn)
		}
	}
}

// Touch refreshes the user's liveness after a pong frame.
func (h *Hub) Touch(userID uint) {
	h.mu.Lock()
	if c, ok := h.clients[userID]; ok {
		c.lastPong = time.Now()
	}
	h.mu.Unlock()
}

// publishPresence broadcasts the full online set to every live
// connection. Full set rather than a diff: every client converges within
// one broadcast of each mutation.
func (h *Hub) publishPresence() {
	event := PresenceEvent{Type: EventPresence, UserIDs: h.Snapshot()}

	h.mu.RLock()
	clients := make([]*client, 0, len(h.clients))
	for _, c := range h.clients {
		clients = append(clients, c)
	}
	h.mu.RUnlock()

	for _, c := range clients {
		if err := c.send(event); err != nil {
			log.Printf("Error broadcasting presence to user %d: %v", c.userID, err)
			h.Unregister(c.userID, c.conn)
		}
	}
}

func (h *Hub) pingRoutine(c *client) {
	for {
		select {
		case <-c.closed:
			return
		case <-c.ticker.C:
			c.writeMu.Lock()
			err := c.conn.WriteControl(websocket.PingMessage, []byte{}, time.Now().Add(10*time.Second))
			c.writeMu.Unlock()
			if err != nil {
				log.Printf("Ping failed for user %d: %v", c.userID, err)
				h.Unregister(c.userID, c.conn)
				return
			}
		}
	}
}

func (h *Hub) healthChecker() {
	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-h.stop:
			return
		case <-ticker.C:
			now := time.Now()

			h.mu.RLock()
			dead := make([]*client, 0)
			for _, c := range h.clients {
				if now.Sub(c.lastPong) > h.pongTimeout {
					dead = append(dead, c)
				}
			}
			h.mu.RUnlock()

			for _, c := range dead {
				log.Printf("Removing dead connection for user %d (no pong received)", c.userID)
				h.Unregister(c.userID, c.conn)
			}
		}
	}
}
