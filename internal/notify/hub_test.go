package notify

import (
	"context"
	"errors"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func dial(t *testing.T, server *httptest.Server, organizationID string) *websocket.Conn {
	t.Helper()

	url := "ws" + strings.TrimPrefix(server.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })

	require.NoError(t, conn.WriteJSON(subscription{OrganizationID: organizationID}))
	return conn
}

func TestHub_BroadcastToOrganization(t *testing.T) {
	hub := NewHub()
	server := httptest.NewServer(hub)
	defer server.Close()

	orgA := dial(t, server, "org-a")
	orgB := dial(t, server, "org-b")

	require.Eventually(t, func() bool {
		return hub.Subscribers("org-a") == 1 && hub.Subscribers("org-b") == 1
	}, time.Second, 10*time.Millisecond)

	err := hub.Broadcast(context.Background(), &Message{
		Event:          EventEntryUpdated,
		OrganizationID: "org-a",
		EntryID:        "entry-1",
	})
	require.NoError(t, err)

	var got Message
	require.NoError(t, orgA.SetReadDeadline(time.Now().Add(time.Second)))
	require.NoError(t, orgA.ReadJSON(&got))
	assert.Equal(t, Message{Event: EventEntryUpdated, OrganizationID: "org-a", EntryID: "entry-1"}, got)

	// org-b is not notified
	require.NoError(t, orgB.SetReadDeadline(time.Now().Add(100*time.Millisecond)))
	_, _, err = orgB.ReadMessage()
	assert.Error(t, err)
}

func TestHub_UnsubscribeOnDisconnect(t *testing.T) {
	hub := NewHub()
	server := httptest.NewServer(hub)
	defer server.Close()

	conn := dial(t, server, "org-a")
	require.Eventually(t, func() bool { return hub.Subscribers("org-a") == 1 }, time.Second, 10*time.Millisecond)

	require.NoError(t, conn.Close())
	assert.Eventually(t, func() bool { return hub.Subscribers("org-a") == 0 }, time.Second, 10*time.Millisecond)

	// broadcasting to an organization without subscribers is not an error
	assert.NoError(t, hub.Broadcast(context.Background(), &Message{Event: EventEntryDeleted, OrganizationID: "org-a"}))
}

func TestHub_RejectsMissingOrganization(t *testing.T) {
	hub := NewHub()
	server := httptest.NewServer(hub)
	defer server.Close()

	conn := dial(t, server, "")
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(time.Second)))
	_, _, err := conn.ReadMessage()

	var closeErr *websocket.CloseError
	require.ErrorAs(t, err, &closeErr)
	assert.Equal(t, websocket.ClosePolicyViolation, closeErr.Code)
}

type recorder struct {
	messages []*Message
	err      error
}

func (r *recorder) Broadcast(_ context.Context, msg *Message) error {
	r.messages = append(r.messages, msg)
	return r.err
}

func TestFanout(t *testing.T) {
	ok := &recorder{}
	failing := &recorder{err: errors.New("unavailable")}

	msg := &Message{Event: EventEntryCreated, OrganizationID: "org"}
	err := Fanout{failing, ok}.Broadcast(context.Background(), msg)

	assert.ErrorContains(t, err, "unavailable")
	assert.Equal(t, []*Message{msg}, ok.messages, "a failing broadcaster does not stop the others")
	assert.Len(t, failing.messages, 1)
	assert.NoError(t, Discard{}.Broadcast(context.Background(), msg))
}
