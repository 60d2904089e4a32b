package notify

import (
	"context"
	"encoding/json"
	"strings"

	redis "github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

const channelPrefix = "knowledge:org:"

func organizationChannel(organizationID string) string {
	return channelPrefix + organizationID
}

var _ Broadcaster = (*RedisBroadcaster)(nil)

// RedisBroadcaster publishes messages on a per-organization channel. Every server
// instance relays them to its own websocket clients.
type RedisBroadcaster struct {
	client *redis.Client
}

func NewRedisBroadcaster(client *redis.Client) *RedisBroadcaster {
	return &RedisBroadcaster{client: client}
}

func (r *RedisBroadcaster) Broadcast(ctx context.Context, msg *Message) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return err
	}

	return r.client.Publish(ctx, organizationChannel(msg.OrganizationID), data).Err()
}

// RedisRelay forwards messages published by any instance to a local broadcaster.
type RedisRelay struct {
	client *redis.Client
	local  Broadcaster
}

func NewRedisRelay(client *redis.Client, local Broadcaster) *RedisRelay {
	return &RedisRelay{client: client, local: local}
}

// Run relays messages until ctx is cancelled.
func (r *RedisRelay) Run(ctx context.Context) error {
	sub := r.client.PSubscribe(ctx, channelPrefix+"*")
	defer sub.Close()

	// wait for the subscription to be confirmed before reporting readiness
	if _, err := sub.Receive(ctx); err != nil {
		return err
	}
	logrus.Infof("relaying organization notifications from redis")

	ch := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return nil
		case m, ok := <-ch:
			if !ok {
				return nil
			}

			var msg Message
			if err := json.Unmarshal([]byte(m.Payload), &msg); err != nil {
				logrus.Warnf("invalid notification on %s: %v", m.Channel, err)
				continue
			}
			if msg.OrganizationID == "" {
				msg.OrganizationID = strings.TrimPrefix(m.Channel, channelPrefix)
			}

			if err := r.local.Broadcast(ctx, &msg); err != nil {
				logrus.Warnf("relay %s failed: %v", msg.Event, err)
			}
		}
	}
}
