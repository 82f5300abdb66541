package websocket

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/dukerupert/fintrack/internal/auth"
)

// Message is a change notification delivered to a resource owner and to
// every connected admin.
type Message struct {
	Type   string `json:"type"`
	Entity string `json:"entity"`
	Action string `json:"action"`
	ID     int64  `json:"id,omitempty"`
	Owner  int64  `json:"user"`
	Data   any    `json:"data,omitempty"`
}

// NewMessage creates a Message with the Type field derived from entity and action.
func NewMessage(entity, action string, id, owner int64, data any) Message {
	return Message{
		Type:   fmt.Sprintf("%s_%s", entity, action),
		Entity: entity,
		Action: action,
		ID:     id,
		Owner:  owner,
		Data:   data,
	}
}

// Authenticator resolves a connection's session token to the current
// identity of its user.
type Authenticator interface {
	Authenticate(ctx context.Context, token string) (auth.Identity, error)
}

// Hub tracks connected clients and routes messages by owner. Every delivery
// re-resolves the recipient's token, so a role change, a deleted account or
// an expired token takes effect on the next message.
type Hub struct {
	mu      sync.RWMutex
	clients map[*Client]struct{}
	authn   Authenticator
	logger  *slog.Logger
}

func NewHub(authn Authenticator, logger *slog.Logger) *Hub {
	return &Hub{
		clients: make(map[*Client]struct{}),
		authn:   authn,
		logger:  logger,
	}
}

func (h *Hub) Register(c *Client) {
	h.mu.Lock()
	h.clients[c] = struct{}{}
	h.mu.Unlock()
	h.logger.Debug("client connected", "user_id", c.userID)
}

// Unregister removes a client from the hub and closes its send channel.
func (h *Hub) Unregister(c *Client) {
	h.mu.Lock()
	if _, ok := h.clients[c]; ok {
		delete(h.clients, c)
		close(c.send)
	}
	h.mu.Unlock()
}

// Notify delivers msg to every connection of msg.Owner and to connections
// of users who are admins at delivery time.
func (h *Hub) Notify(ctx context.Context, msg Message) {
	h.deliver(ctx, msg, true)
}

// NotifyOwner delivers msg only to connections of msg.Owner.
func (h *Hub) NotifyOwner(ctx context.Context, msg Message) {
	h.deliver(ctx, msg, false)
}

func (h *Hub) deliver(ctx context.Context, msg Message, admins bool) {
	data, err := json.Marshal(msg)
	if err != nil {
		h.logger.Error("marshal notification", "type", msg.Type, "error", err)
		return
	}

	h.mu.RLock()
	candidates := make([]*Client, 0, len(h.clients))
	for c := range h.clients {
		if admins || c.userID == msg.Owner {
			candidates = append(candidates, c)
		}
	}
	h.mu.RUnlock()

	for _, c := range candidates {
		id, err := h.resolve(ctx, c)
		if err != nil {
			continue
		}
		if id.UserID != msg.Owner && !(admins && id.IsAdmin()) {
			continue
		}
		h.send(c, data, msg.Type)
	}
}

// resolve re-authenticates c. Clients whose session no longer authenticates
// are unregistered and closed.
func (h *Hub) resolve(ctx context.Context, c *Client) (auth.Identity, error) {
	id, err := h.authn.Authenticate(ctx, c.token)
	switch {
	case err == nil:
		return id, nil
	case errors.Is(err, auth.ErrUnauthenticated):
		h.logger.Info("closing connection", "user_id", c.userID, "reason", err)
		h.Unregister(c)
		c.close()
	default:
		h.logger.Error("authenticate connection", "user_id", c.userID, "error", err)
	}
	return auth.Identity{}, err
}

func (h *Hub) send(c *Client, data []byte, typ string) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	if _, ok := h.clients[c]; !ok {
		return
	}
	select {
	case c.send <- data:
	default:
		// Client buffer full, drop to avoid blocking
		h.logger.Warn("dropped notification", "user_id", c.userID, "type", typ)
	}
}

func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}
