package websocket

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	ws "github.com/coder/websocket"

	"github.com/dukerupert/fintrack/internal/auth"
	"github.com/dukerupert/fintrack/internal/model"
)

// sessions is an Authenticator whose answers tests can change while clients
// stay connected.
type sessions struct {
	mu  sync.Mutex
	ids map[string]auth.Identity
}

func newSessions() *sessions {
	return &sessions{ids: make(map[string]auth.Identity)}
}

func (s *sessions) Authenticate(_ context.Context, token string) (auth.Identity, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	id, ok := s.ids[token]
	if !ok {
		return auth.Identity{}, fmt.Errorf("%w: unknown session", auth.ErrUnauthenticated)
	}
	return id, nil
}

func (s *sessions) set(userID int64, admin bool) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	role := model.RoleUser
	if admin {
		role = model.RoleAdmin
	}
	token := fmt.Sprintf("token-%d", userID)
	s.ids[token] = auth.Identity{UserID: userID, Role: role}
	return token
}

func (s *sessions) revoke(userID int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.ids, fmt.Sprintf("token-%d", userID))
}

type brokenSessions struct{}

func (brokenSessions) Authenticate(context.Context, string) (auth.Identity, error) {
	return auth.Identity{}, errors.New("db down")
}

func newTestHub() (*Hub, *sessions) {
	s := newSessions()
	return NewHub(s, slog.Default()), s
}

// mockClient creates a Client with a send channel but no real connection.
func mockClient(hub *Hub, s *sessions, userID int64, admin bool) *Client {
	return &Client{
		hub:    hub,
		send:   make(chan []byte, sendBufferSize),
		userID: userID,
		token:  s.set(userID, admin),
	}
}

func receive(t *testing.T, c *Client) (Message, bool) {
	t.Helper()
	select {
	case data := <-c.send:
		var got Message
		if err := json.Unmarshal(data, &got); err != nil {
			t.Fatalf("unmarshal: %v", err)
		}
		return got, true
	case <-time.After(50 * time.Millisecond):
		return Message{}, false
	}
}

func TestRegisterUnregister(t *testing.T) {
	hub, s := newTestHub()

	c1 := mockClient(hub, s, 1, false)
	c2 := mockClient(hub, s, 2, false)
	hub.Register(c1)
	hub.Register(c2)

	if got := hub.ClientCount(); got != 2 {
		t.Fatalf("expected 2 clients, got %d", got)
	}

	hub.Unregister(c1)
	if got := hub.ClientCount(); got != 1 {
		t.Fatalf("expected 1 client after unregister, got %d", got)
	}

	hub.Unregister(c2)
	if got := hub.ClientCount(); got != 0 {
		t.Fatalf("expected 0 clients, got %d", got)
	}
}

func TestDoubleUnregister(t *testing.T) {
	hub, s := newTestHub()
	c := mockClient(hub, s, 1, false)
	hub.Register(c)
	hub.Unregister(c)
	// Should not panic
	hub.Unregister(c)

	if got := hub.ClientCount(); got != 0 {
		t.Fatalf("expected 0 clients, got %d", got)
	}
}

func TestNotifyRoutesByOwner(t *testing.T) {
	hub, s := newTestHub()

	owner := mockClient(hub, s, 1, false)
	stranger := mockClient(hub, s, 2, false)
	admin := mockClient(hub, s, 3, true)
	for _, c := range []*Client{owner, stranger, admin} {
		hub.Register(c)
		defer hub.Unregister(c)
	}

	hub.Notify(context.Background(), NewMessage("transaction", "created", 42, 1, map[string]any{"amount": 12.5}))

	for name, c := range map[string]*Client{"owner": owner, "admin": admin} {
		got, ok := receive(t, c)
		if !ok {
			t.Fatalf("%s: timeout waiting for message", name)
		}
		if got.Type != "transaction_created" || got.ID != 42 || got.Owner != 1 {
			t.Errorf("%s: got %+v", name, got)
		}
	}
	if _, ok := receive(t, stranger); ok {
		t.Error("stranger should not receive another user's change")
	}
}

func TestNotifyOwnerSkipsAdmins(t *testing.T) {
	hub, s := newTestHub()

	owner := mockClient(hub, s, 1, false)
	admin := mockClient(hub, s, 3, true)
	hub.Register(owner)
	hub.Register(admin)
	defer hub.Unregister(owner)
	defer hub.Unregister(admin)

	hub.NotifyOwner(context.Background(), NewMessage("goal", "deadline", 7, 1, nil))

	if _, ok := receive(t, owner); !ok {
		t.Error("owner should receive the reminder")
	}
	if _, ok := receive(t, admin); ok {
		t.Error("admin should not receive owner-only messages")
	}
}

func TestNotifyFollowsRoleChanges(t *testing.T) {
	hub, s := newTestHub()

	watcher := mockClient(hub, s, 2, true)
	hub.Register(watcher)
	defer hub.Unregister(watcher)

	hub.Notify(context.Background(), NewMessage("transaction", "created", 1, 3, nil))
	if _, ok := receive(t, watcher); !ok {
		t.Fatal("admin should receive other users' changes")
	}

	s.set(2, false)
	hub.Notify(context.Background(), NewMessage("transaction", "created", 2, 3, nil))
	if got, ok := receive(t, watcher); ok {
		t.Errorf("demoted admin received %+v", got)
	}

	hub.Notify(context.Background(), NewMessage("transaction", "created", 3, 2, nil))
	if _, ok := receive(t, watcher); !ok {
		t.Error("demoted admin should still receive its own changes")
	}
}

func TestNotifyPromotedUser(t *testing.T) {
	hub, s := newTestHub()

	c := mockClient(hub, s, 2, false)
	hub.Register(c)
	defer hub.Unregister(c)

	s.set(2, true)
	hub.Notify(context.Background(), NewMessage("goal", "created", 1, 3, nil))
	if _, ok := receive(t, c); !ok {
		t.Error("promoted user should receive admin fan-out")
	}
}

func TestNotifyDropsRevokedSession(t *testing.T) {
	hub, s := newTestHub()

	owner := mockClient(hub, s, 1, false)
	hub.Register(owner)

	s.revoke(1)
	hub.NotifyOwner(context.Background(), NewMessage("goal", "deadline", 7, 1, nil))

	if got := hub.ClientCount(); got != 0 {
		t.Errorf("ClientCount = %d, want 0 after revoked session", got)
	}
	if _, ok := <-owner.send; ok {
		t.Error("revoked client should not receive the message")
	}
}

func TestNotifyKeepsClientOnLookupError(t *testing.T) {
	hub := NewHub(brokenSessions{}, slog.Default())

	c := &Client{hub: hub, send: make(chan []byte, sendBufferSize), userID: 1, token: "t"}
	hub.Register(c)
	defer hub.Unregister(c)

	hub.Notify(context.Background(), NewMessage("goal", "created", 1, 1, nil))
	if got := hub.ClientCount(); got != 1 {
		t.Errorf("ClientCount = %d, want 1", got)
	}
	if _, ok := receive(t, c); ok {
		t.Error("unverified client should not receive the message")
	}
}

func TestNotifyEmptyHub(t *testing.T) {
	hub, _ := newTestHub()
	// Should not panic
	hub.Notify(context.Background(), NewMessage("goal", "deleted", 1, 1, nil))
}

func TestNotifyFullBuffer(t *testing.T) {
	hub, s := newTestHub()

	c := mockClient(hub, s, 1, false)
	hub.Register(c)

	for i := 0; i < sendBufferSize; i++ {
		hub.Notify(context.Background(), NewMessage("test", "fill", int64(i), 1, nil))
	}

	// This should drop the message, not panic or block
	hub.Notify(context.Background(), NewMessage("test", "dropped", 999, 1, nil))

	count := 0
	for {
		select {
		case <-c.send:
			count++
		default:
			goto done
		}
	}
done:
	if count != sendBufferSize {
		t.Errorf("expected %d messages, got %d", sendBufferSize, count)
	}

	hub.Unregister(c)
}

func TestNewMessage(t *testing.T) {
	msg := NewMessage("goal", "updated", 5, 9, nil)
	if msg.Type != "goal_updated" {
		t.Errorf("expected type goal_updated, got %s", msg.Type)
	}
	if msg.Entity != "goal" || msg.Action != "updated" {
		t.Errorf("unexpected entity/action %s/%s", msg.Entity, msg.Action)
	}
	if msg.ID != 5 || msg.Owner != 9 {
		t.Errorf("unexpected id/owner %d/%d", msg.ID, msg.Owner)
	}
}

func TestConcurrentAccess(t *testing.T) {
	hub, s := newTestHub()
	var wg sync.WaitGroup

	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(uid int64) {
			defer wg.Done()
			c := mockClient(hub, s, uid, uid%5 == 0)
			hub.Register(c)
			hub.Notify(context.Background(), NewMessage("test", "concurrent", 0, uid, nil))
			for {
				select {
				case <-c.send:
				default:
					hub.Unregister(c)
					return
				}
			}
		}(int64(i))
	}

	wg.Wait()

	if got := hub.ClientCount(); got != 0 {
		t.Errorf("expected 0 clients after concurrent test, got %d", got)
	}
}

func TestHandleWebSocketRequiresIdentity(t *testing.T) {
	hub, _ := newTestHub()
	h := HandleWebSocket(hub, nil, slog.Default())

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest("GET", "/ws", nil))
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusUnauthorized)
	}
}

func TestHandleWebSocketDelivers(t *testing.T) {
	hub, s := newTestHub()
	withUser := func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := auth.WithIdentity(r.Context(), auth.Identity{UserID: 4, Role: model.RoleUser})
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
	srv := httptest.NewServer(withUser(HandleWebSocket(hub, []string{"http://localhost:4200"}, slog.Default())))
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	token := s.set(4, false)
	conn, _, err := ws.Dial(ctx, "ws"+strings.TrimPrefix(srv.URL, "http"), &ws.DialOptions{
		HTTPHeader: http.Header{"Authorization": {"Bearer " + token}},
	})
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.CloseNow()

	deadline := time.Now().Add(time.Second)
	for hub.ClientCount() == 0 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}

	hub.Notify(context.Background(), NewMessage("goal", "created", 11, 4, nil))

	_, data, err := conn.Read(ctx)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	var got Message
	if err := json.Unmarshal(data, &got); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if got.Type != "goal_created" || got.ID != 11 {
		t.Errorf("got %+v", got)
	}
}

func TestOriginPatterns(t *testing.T) {
	got := originPatterns([]string{"http://localhost:4200", "https://app.example.com"})
	if len(got) != 2 || got[0] != "localhost:4200" || got[1] != "app.example.com" {
		t.Errorf("originPatterns = %v", got)
	}
	if got := originPatterns([]string{"http://a", "*"}); len(got) != 1 || got[0] != "*" {
		t.Errorf("wildcard = %v", got)
	}
}
