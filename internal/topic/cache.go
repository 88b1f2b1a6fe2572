package topic

import (
	"context"
	"encoding/json"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

const defaultCatalogTTL = 30 * time.Minute

// CatalogCache keeps the topic catalog in Redis so each session load avoids
// a full reference-data scan.
type CatalogCache struct {
	client *redis.Client
	ttl    time.Duration
}

func NewCatalogCache(client *redis.Client, ttl time.Duration) *CatalogCache {
	if ttl <= 0 {
		ttl = defaultCatalogTTL
	}
	return &CatalogCache{client: client, ttl: ttl}
}

func (c *CatalogCache) key(topicCap int64) string {
	return "topiccatalog:" + strconv.FormatInt(topicCap, 10)
}

// Get returns the cached catalog for the given specialty cap, or nil on miss.
func (c *CatalogCache) Get(ctx context.Context, topicCap int64) ([]Topic, error) {
	data, err := c.client.Get(ctx, c.key(topicCap)).Bytes()
	if err != nil {
		if err == redis.Nil {
			return nil, nil
		}
		return nil, err
	}
	var catalog []Topic
	if err := json.Unmarshal(data, &catalog); err != nil {
		return nil, err
	}
	return catalog, nil
}

// Set stores the catalog under the specialty cap key.
func (c *CatalogCache) Set(ctx context.Context, topicCap int64, catalog []Topic) error {
	data, err := json.Marshal(catalog)
	if err != nil {
		return err
	}
	return c.client.Set(ctx, c.key(topicCap), data, c.ttl).Err()
}
