package realtime

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"
)

const presenceTTL = 24 * time.Hour

// PresenceCache mirrors nutritionist presence into redis so other instances
// can answer presence reads without hitting the profile table.
type PresenceCache struct {
	client *redis.Client
}

type presenceEntry struct {
	Status   string `json:"status"`
	LastSeen int64  `json:"last_seen"`
}

func NewPresenceCache(client *redis.Client) *PresenceCache {
	return &PresenceCache{client: client}
}

func presenceKey(nutritionistID string) string {
	return "presence:" + nutritionistID
}

func (c *PresenceCache) Set(ctx context.Context, nutritionistID, status string, lastSeen time.Time) error {
	payload, err := json.Marshal(presenceEntry{Status: status, LastSeen: lastSeen.Unix()})
	if err != nil {
		return err
	}
	return c.client.Set(ctx, presenceKey(nutritionistID), payload, presenceTTL).Err()
}

// Get returns the cached status and last-seen time, or ok=false when the key
// is missing or unreadable.
func (c *PresenceCache) Get(ctx context.Context, nutritionistID string) (string, time.Time, bool) {
	raw, err := c.client.Get(ctx, presenceKey(nutritionistID)).Bytes()
	if err != nil {
		return "", time.Time{}, false
	}

	var entry presenceEntry
	if err := json.Unmarshal(raw, &entry); err != nil {
		return "", time.Time{}, false
	}
	return entry.Status, time.Unix(entry.LastSeen, 0), true
}
