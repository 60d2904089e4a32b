package notify

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"time"

	mapset "github.com/deckarep/golang-set/v2"
	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"
)

const (
	subscribeTimeout = 10 * time.Second
	writeTimeout     = 10 * time.Second
	pingInterval     = 30 * time.Second
	sendBuffer       = 16
)

var ErrMissingOrganization = errors.New("subscribe message without organizationId")

// subscription is the first message a client sends after connecting.
type subscription struct {
	OrganizationID string `json:"organizationId"`
}

type subscriber struct {
	conn           *websocket.Conn
	organizationID string
	send           chan *Message
}

var _ Broadcaster = (*Hub)(nil)

// Hub keeps the websocket clients of this process grouped by organization.
type Hub struct {
	mu          sync.RWMutex
	subscribers map[string]mapset.Set[*subscriber]
	upgrader    websocket.Upgrader
}

func NewHub() *Hub {
	return &Hub{
		subscribers: make(map[string]mapset.Set[*subscriber]),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			// origin checks are left to the CORS layer in front of the API
			CheckOrigin: func(r *http.Request) bool { return true },
		},
	}
}

// Broadcast queues msg for every subscriber of its organization.
// Subscribers whose buffer is full miss the message.
func (h *Hub) Broadcast(_ context.Context, msg *Message) error {
	h.mu.RLock()
	defer h.mu.RUnlock()

	subs, ok := h.subscribers[msg.OrganizationID]
	if !ok {
		return nil
	}

	subs.Each(func(s *subscriber) bool {
		select {
		case s.send <- msg:
		default:
			logrus.Warnf("dropping %s for a slow client of organization %s", msg.Event, msg.OrganizationID)
		}
		return false
	})

	return nil
}

// Subscribers returns the number of clients subscribed to an organization.
func (h *Hub) Subscribers(organizationID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()

	if subs, ok := h.subscribers[organizationID]; ok {
		return subs.Cardinality()
	}
	return 0
}

// ServeHTTP upgrades the request to a websocket and subscribes the client to the organization
// named in its first message. The subscription ends when the connection closes.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		logrus.Errorf("websocket upgrade failed: %v", err)
		return
	}
	defer conn.Close()

	var sub subscription
	_ = conn.SetReadDeadline(time.Now().Add(subscribeTimeout))
	if err := conn.ReadJSON(&sub); err != nil {
		logrus.Warnf("websocket client did not subscribe: %v", err)
		return
	}
	if sub.OrganizationID == "" {
		_ = conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.ClosePolicyViolation, ErrMissingOrganization.Error()),
			time.Now().Add(writeTimeout))
		return
	}
	_ = conn.SetReadDeadline(time.Time{})

	s := &subscriber{
		conn:           conn,
		organizationID: sub.OrganizationID,
		send:           make(chan *Message, sendBuffer),
	}
	h.subscribe(s)
	defer h.unsubscribe(s)

	go h.write(s)

	// the client does not send anything else; reading detects the disconnect
	for {
		if _, _, err := conn.NextReader(); err != nil {
			return
		}
	}
}

// Close disconnects every client.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()

	for _, subs := range h.subscribers {
		subs.Each(func(s *subscriber) bool {
			_ = s.conn.Close()
			return false
		})
	}
}

func (h *Hub) subscribe(s *subscriber) {
	h.mu.Lock()
	defer h.mu.Unlock()

	subs, ok := h.subscribers[s.organizationID]
	if !ok {
		subs = mapset.NewThreadUnsafeSet[*subscriber]()
		h.subscribers[s.organizationID] = subs
	}
	subs.Add(s)

	logrus.Infof("websocket client subscribed to organization %s", s.organizationID)
}

func (h *Hub) unsubscribe(s *subscriber) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if subs, ok := h.subscribers[s.organizationID]; ok {
		subs.Remove(s)
		if subs.Cardinality() == 0 {
			delete(h.subscribers, s.organizationID)
		}
	}
	close(s.send)

	logrus.Infof("websocket client left organization %s", s.organizationID)
}

func (h *Hub) write(s *subscriber) {
	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()

	for {
		select {
		case msg, ok := <-s.send:
			if !ok {
				return
			}
			_ = s.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			if err := s.conn.WriteJSON(msg); err != nil {
				logrus.Warnf("websocket write failed: %v", err)
				_ = s.conn.Close()
				return
			}
		case <-ticker.C:
			if err := s.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeTimeout)); err != nil {
				_ = s.conn.Close()
				return
			}
		}
	}
}
