// Package media describes the files posted to the bin channel.
package media

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/gotd/td/tgerr"
	"go.uber.org/zap"

	"github.com/fastfinder/fastfinder/internal/cache"
	"github.com/fastfinder/fastfinder/internal/logging"
)

// ErrNotFound is returned when a message does not exist or carries no media.
var ErrNotFound = errors.New("media not found")

// Info is the streamable media of one channel message.
type Info struct {
	FileID   string `msgpack:"file_id"`
	UniqueID string `msgpack:"unique_id"`
	Size     int64  `msgpack:"size"`
	MimeType string `msgpack:"mime_type"`
	Name     string `msgpack:"name"`
	Kind     string `msgpack:"kind"`
}

// Source looks up the media of a channel message.
type Source interface {
	Media(ctx context.Context, channelID int64, messageID int) (*Info, error)
}

// Cached memoizes lookups of an underlying Source.
type Cached struct {
	source Source
	cache  cache.Cacher
	ttl    time.Duration
	logger *zap.Logger
}

func NewCached(source Source, cacher cache.Cacher, ttl time.Duration) *Cached {
	return &Cached{
		source: source,
		cache:  cacher,
		ttl:    ttl,
		logger: logging.Component("MEDIA"),
	}
}

func (c *Cached) Media(ctx context.Context, channelID int64, messageID int) (*Info, error) {
	info, err := cache.Fetch(ctx, c.cache, cache.KeyMedia(channelID, messageID), c.ttl, func() (Info, error) {
		info, err := c.source.Media(ctx, channelID, messageID)
		if err != nil {
			return Info{}, err
		}
		return *info, nil
	})
	if err != nil {
		return nil, err
	}
	return &info, nil
}

// Forget drops the cached entry so the next lookup fetches a fresh file
// reference.
func (c *Cached) Forget(ctx context.Context, channelID int64, messageID int) {
	if err := c.cache.Delete(ctx, cache.KeyMedia(channelID, messageID)); err != nil {
		c.logger.Warn("media.forget", zap.Int("message", messageID), zap.Error(err))
	}
}

// IsReferenceExpired reports whether err means the cached file reference went
// stale.
func IsReferenceExpired(err error) bool {
	return tgerr.Is(err, "FILE_REFERENCE_EXPIRED", "FILE_REFERENCE_INVALID")
}
