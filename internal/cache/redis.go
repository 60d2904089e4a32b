package cache

import (
	"context"
	"encoding/json"
	"errors"
	"strconv"
	"time"

	"github.com/emrgen/knowledge/internal/linker"
	redis "github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

func graphKey(organizationID string) string {
	return "knowledge:graph:" + organizationID
}

func generationKey(organizationID string) string {
	return "knowledge:graph-generation:" + organizationID
}

// setIfCurrent writes the payload only while the generation still equals ARGV[1].
var setIfCurrent = redis.NewScript(`
local current = redis.call("GET", KEYS[1]) or "0"
if current ~= ARGV[1] then
	return 0
end
if tonumber(ARGV[3]) > 0 then
	redis.call("SET", KEYS[2], ARGV[2], "PX", ARGV[3])
else
	redis.call("SET", KEYS[2], ARGV[2])
end
return 1
`)

var _ GraphCache = (*Redis)(nil)

type Redis struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRedis(client *redis.Client, ttl time.Duration) *Redis {
	return &Redis{client: client, ttl: ttl}
}

func (r *Redis) GetGraph(ctx context.Context, organizationID string) ([]linker.LinkedEntry, bool, error) {
	res := r.client.Get(ctx, graphKey(organizationID))
	if res.Err() != nil {
		if errors.Is(res.Err(), redis.Nil) {
			return nil, false, nil
		}
		return nil, false, res.Err()
	}

	buf, err := res.Bytes()
	if err != nil {
		return nil, false, err
	}

	var entries []linker.LinkedEntry
	if err := json.Unmarshal(buf, &entries); err != nil {
		// a corrupt value is treated as a miss and replaced on the next write
		logrus.Warnf("discarding cached graph of organization %s: %v", organizationID, err)
		return nil, false, nil
	}

	return entries, true, nil
}

func (r *Redis) Generation(ctx context.Context, organizationID string) (int64, error) {
	generation, err := r.client.Get(ctx, generationKey(organizationID)).Int64()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	return generation, err
}

func (r *Redis) SetGraph(ctx context.Context, organizationID string, generation int64, entries []linker.LinkedEntry) (bool, error) {
	value, err := json.Marshal(entries)
	if err != nil {
		return false, err
	}

	keys := []string{generationKey(organizationID), graphKey(organizationID)}
	written, err := setIfCurrent.Run(ctx, r.client, keys, strconv.FormatInt(generation, 10), value, r.ttl.Milliseconds()).Int()
	if err != nil {
		return false, err
	}

	return written == 1, nil
}

func (r *Redis) InvalidateGraph(ctx context.Context, organizationID string) error {
	_, err := r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Incr(ctx, generationKey(organizationID))
		pipe.Del(ctx, graphKey(organizationID))
		return nil
	})
	return err
}
