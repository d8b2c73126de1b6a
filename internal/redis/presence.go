package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"
)

// PresenceStatus represents a user's online status
type PresenceStatus struct {
	UserID      string    `json:"user_id"`
	IsOnline    bool      `json:"is_online"`
	LastSeen    time.Time `json:"last_seen"`
	Status      string    `json:"status"`
	Connections int64     `json:"connections"`
}

// PresenceStore tracks live websocket connections across every instance.
// A user is online while at least one connection hash entry exists.
type PresenceStore struct {
	client     *goredis.Client
	instanceID string
	ttl        time.Duration
}

const (
	presenceKeyPrefix    = "presence:"
	presenceOnlineSet    = "presence:online"
	connectionsKeyPrefix = "connections:"
	offlineRetention     = 24 * time.Hour
)

func NewPresenceStore(client *goredis.Client, instanceID string, ttl time.Duration) *PresenceStore {
	if ttl == 0 {
		ttl = 5 * time.Minute
	}
	return &PresenceStore{
		client:     client,
		instanceID: instanceID,
		ttl:        ttl,
	}
}

// TrackUserConnection records a connection and marks the user online.
func (p *PresenceStore) TrackUserConnection(ctx context.Context, userID, connectionID string) error {
	now := time.Now().UTC()
	connectionData, _ := json.Marshal(map[string]string{
		"connection_id": connectionID,
		"instance_id":   p.instanceID,
		"connected_at":  now.Format(time.RFC3339),
	})
	status, _ := json.Marshal(PresenceStatus{
		UserID:   userID,
		IsOnline: true,
		LastSeen: now,
		Status:   "online",
	})

	pipe := p.client.TxPipeline()
	pipe.HSet(ctx, connectionsKeyPrefix+userID, connectionID, connectionData)
	pipe.Expire(ctx, connectionsKeyPrefix+userID, p.ttl)
	pipe.Set(ctx, presenceKeyPrefix+userID, status, p.ttl)
	pipe.SAdd(ctx, presenceOnlineSet, userID)
	_, err := pipe.Exec(ctx)
	return err
}

// removeConnectionScript deletes one connection entry and, only when none is
// left on any instance, stores the offline record and leaves the online set.
// KEYS: connections hash, presence record, online set.
// ARGV: connection id, offline record, retention seconds, user id.
var removeConnectionScript = goredis.NewScript(`
redis.call('HDEL', KEYS[1], ARGV[1])
local remaining = redis.call('HLEN', KEYS[1])
if remaining == 0 then
	redis.call('SET', KEYS[2], ARGV[2], 'EX', ARGV[3])
	redis.call('SREM', KEYS[3], ARGV[4])
end
return remaining
`)

// RemoveUserConnection drops a connection. When no connection remains on any
// instance the user is marked offline and their last seen time recorded. The
// delete, the count and the offline write happen in one script so a
// connection tracked meanwhile by another instance is never marked offline.
func (p *PresenceStore) RemoveUserConnection(ctx context.Context, userID, connectionID string) error {
	status, err := json.Marshal(PresenceStatus{
		UserID:   userID,
		IsOnline: false,
		LastSeen: time.Now().UTC(),
		Status:   "offline",
	})
	if err != nil {
		return err
	}

	keys := []string{connectionsKeyPrefix + userID, presenceKeyPrefix + userID, presenceOnlineSet}
	_, err = removeConnectionScript.Run(ctx, p.client, keys,
		connectionID, status, int64(offlineRetention/time.Second), userID).Int64()
	if err != nil {
		return fmt.Errorf("remove connection: %w", err)
	}
	return nil
}

// Heartbeat keeps the presence keys of a connected user from expiring.
func (p *PresenceStore) Heartbeat(ctx context.Context, userID string) error {
	pipe := p.client.Pipeline()
	pipe.Expire(ctx, presenceKeyPrefix+userID, p.ttl)
	pipe.Expire(ctx, connectionsKeyPrefix+userID, p.ttl)
	_, err := pipe.Exec(ctx)
	return err
}

// GetPresence gets the presence status of a user. Live connection entries
// decide whether the user is online; the stored record supplies last seen.
func (p *PresenceStore) GetPresence(ctx context.Context, userID string) (*PresenceStatus, error) {
	pipe := p.client.Pipeline()
	dataCmd := pipe.Get(ctx, presenceKeyPrefix+userID)
	countCmd := pipe.HLen(ctx, connectionsKeyPrefix+userID)
	if _, err := pipe.Exec(ctx); err != nil && err != goredis.Nil {
		return nil, fmt.Errorf("get presence: %w", err)
	}

	status := PresenceStatus{UserID: userID}
	data, err := dataCmd.Result()
	switch {
	case err == goredis.Nil:
	case err != nil:
		return nil, err
	default:
		if err := json.Unmarshal([]byte(data), &status); err != nil {
			return nil, err
		}
	}

	status.Connections = countCmd.Val()
	status.IsOnline = status.Connections > 0
	if status.IsOnline {
		status.Status = "online"
	} else {
		status.Status = "offline"
	}
	return &status, nil
}

// IsOnline reports whether the user has a live connection on any instance.
func (p *PresenceStore) IsOnline(ctx context.Context, userID string) (bool, error) {
	n, err := p.client.HLen(ctx, connectionsKeyPrefix+userID).Result()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// GetOnlineCount returns the count of online users
func (p *PresenceStore) GetOnlineCount(ctx context.Context) (int64, error) {
	return p.client.SCard(ctx, presenceOnlineSet).Result()
}
