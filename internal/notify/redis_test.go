package notify

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	redis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type syncRecorder struct {
	mu       sync.Mutex
	messages []Message
}

func (r *syncRecorder) Broadcast(_ context.Context, msg *Message) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.messages = append(r.messages, *msg)
	return nil
}

func (r *syncRecorder) received() []Message {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Message(nil), r.messages...)
}

func TestRedisRelay(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()

	local := &syncRecorder{}
	relay := NewRedisRelay(client, local)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- relay.Run(ctx) }()

	require.Eventually(t, func() bool {
		return mr.PubSubNumPat() > 0
	}, time.Second, 10*time.Millisecond)

	publisher := NewRedisBroadcaster(client)
	require.NoError(t, publisher.Broadcast(ctx, &Message{
		Event:          EventEntryCreated,
		OrganizationID: "org-1",
		EntryID:        "entry-1",
	}))

	require.Eventually(t, func() bool { return len(local.received()) == 1 }, time.Second, 10*time.Millisecond)
	assert.Equal(t, Message{Event: EventEntryCreated, OrganizationID: "org-1", EntryID: "entry-1"}, local.received()[0])

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("relay did not stop")
	}
}
