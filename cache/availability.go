// Package cache keeps a short lived copy of event availability in Redis for
// the public read endpoint. The reservation engine never reads it.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"boxoffice/entity"
	"boxoffice/monitoring"

	"github.com/ThreeDotsLabs/go-event-driven/common/log"
	"github.com/redis/go-redis/v9"
)

type AvailabilitySource interface {
	Availability(ctx context.Context, eventID string) (entity.Availability, error)
}

type Availability struct {
	rdb    redis.Cmdable
	source AvailabilitySource
	ttl    time.Duration
}

func NewAvailability(rdb redis.Cmdable, source AvailabilitySource, ttl time.Duration) *Availability {
	return &Availability{
		rdb:    rdb,
		source: source,
		ttl:    ttl,
	}
}

func availabilityKey(eventID string) string {
	return "availability:" + eventID
}

// Get serves the cached availability of the event, loading it from the source
// on a miss. Redis failures fall back to the source.
func (c *Availability) Get(ctx context.Context, eventID string) (entity.Availability, error) {
	logger := log.FromContext(ctx)
	key := availabilityKey(eventID)

	raw, err := c.rdb.Get(ctx, key).Bytes()
	switch {
	case err == nil:
		var a entity.Availability
		if err := json.Unmarshal(raw, &a); err == nil {
			monitoring.TrackAvailabilityCache(true)
			return a, nil
		}
		logger.WithField("key", key).Warn("Dropping malformed cached availability")
	case !errors.Is(err, redis.Nil):
		logger.WithError(err).Warn("Failed to read cached availability")
	}

	monitoring.TrackAvailabilityCache(false)

	a, err := c.source.Availability(ctx, eventID)
	if err != nil {
		return entity.Availability{}, err
	}

	payload, err := json.Marshal(a)
	if err != nil {
		return entity.Availability{}, fmt.Errorf("marshalling availability: %w", err)
	}
	if err := c.rdb.Set(ctx, key, payload, c.ttl).Err(); err != nil {
		logger.WithError(err).Warn("Failed to cache availability")
	}

	return a, nil
}

func (c *Availability) Invalidate(ctx context.Context, eventID string) error {
	if err := c.rdb.Del(ctx, availabilityKey(eventID)).Err(); err != nil {
		return fmt.Errorf("invalidating availability of %s: %w", eventID, err)
	}
	return nil
}
