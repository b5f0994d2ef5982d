package reader

import (
	"bytes"
	"context"
	"iter"
	"strconv"
	"time"

	"github.com/go-faster/errors"
	"github.com/gotd/td/tg"
	"github.com/gotd/td/tgerr"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.uber.org/zap"

	"github.com/fastfinder/fastfinder/internal/chunk"
	"github.com/fastfinder/fastfinder/internal/fileid"
	"github.com/fastfinder/fastfinder/internal/location"
	"github.com/fastfinder/fastfinder/internal/logging"
	"github.com/fastfinder/fastfinder/internal/session"
)

var (
	chunksFetched = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "fastfinder_chunks_fetched_total",
		Help: "upload.getFile calls that returned data",
	}, []string{"dc"})
	bytesFetched = promauto.NewCounter(prometheus.CounterOpts{
		Name: "fastfinder_fetched_bytes_total",
		Help: "Bytes received from upload.getFile",
	})
	floodWaits = promauto.NewCounter(prometheus.CounterOpts{
		Name: "fastfinder_flood_waits_total",
		Help: "FLOOD_WAIT errors returned while fetching chunks",
	})
)

// maxChunk is the largest limit upload.getFile accepts.
const maxChunk = 1024 * 1024

type Config struct {
	ChunkTimeout time.Duration
	FloodRetries int
	MaxFloodWait time.Duration
}

// Streamer fetches file ranges through the per datacenter sessions.
type Streamer struct {
	sessions *session.Registry
	config   Config
}

func NewStreamer(sessions *session.Registry, config Config) *Streamer {
	return &Streamer{sessions: sessions, config: config}
}

// Source returns a chunk source reading the file described by desc.
func (s *Streamer) Source(ctx context.Context, desc *fileid.Descriptor) (ChunkSource, error) {
	loc, err := location.Resolve(desc)
	if err != nil {
		return nil, err
	}
	return &chunkSource{
		sessions: s.sessions,
		config:   s.config,
		dc:       desc.DC,
		location: loc,
		logger:   logging.FromContext(ctx).With(zap.Int("dc", desc.DC)),
	}, nil
}

// Stream yields the bytes of plan for the file described by desc.
func (s *Streamer) Stream(ctx context.Context, desc *fileid.Descriptor, plan chunk.Plan) iter.Seq2[[]byte, error] {
	src, err := s.Source(ctx, desc)
	if err != nil {
		return failed(err)
	}
	return Yield(ctx, src, plan)
}

// ReadAll downloads a whole file whose size is unknown.
func (s *Streamer) ReadAll(ctx context.Context, desc *fileid.Descriptor) ([]byte, error) {
	src, err := s.Source(ctx, desc)
	if err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	for offset := int64(0); ; offset += maxChunk {
		data, err := src.Chunk(ctx, offset, maxChunk)
		if err != nil {
			return nil, err
		}
		buf.Write(data)
		if len(data) < maxChunk {
			return buf.Bytes(), nil
		}
	}
}

type chunkSource struct {
	sessions *session.Registry
	config   Config
	dc       int
	location tg.InputFileLocationClass
	logger   *zap.Logger
}

func (c *chunkSource) Chunk(ctx context.Context, offset int64, limit int64) ([]byte, error) {
	dropped := false
	for attempt := 0; ; attempt++ {
		sess, err := c.sessions.Get(ctx, c.dc)
		if err != nil {
			return nil, err
		}

		data, err := c.fetch(ctx, sess, offset, limit)
		if err == nil {
			chunksFetched.WithLabelValues(strconv.Itoa(c.dc)).Inc()
			bytesFetched.Add(float64(len(data)))
			return data, nil
		}

		if wait, ok := tgerr.AsFloodWait(err); ok {
			floodWaits.Inc()
			if attempt >= c.config.FloodRetries || wait > c.config.MaxFloodWait {
				return nil, errors.Wrapf(ErrFloodWaitExhausted, "wait %s after %d attempts", wait, attempt+1)
			}
			c.logger.Warn("chunk.floodwait", zap.Int64("offset", offset), zap.Duration("wait", wait))
			if err := sleep(ctx, wait); err != nil {
				return nil, err
			}
			continue
		}

		if session.IsAuthKeyError(err) && !dropped {
			c.logger.Warn("chunk.session.reset", zap.Error(err))
			c.sessions.Drop(c.dc, sess)
			dropped = true
			continue
		}

		return nil, err
	}
}

func (c *chunkSource) fetch(parent context.Context, sess *session.Session, offset int64, limit int64) ([]byte, error) {
	ctx := parent
	if c.config.ChunkTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(parent, c.config.ChunkTimeout)
		defer cancel()
	}

	res, err := sess.API().UploadGetFile(ctx, &tg.UploadGetFileRequest{
		Location: c.location,
		Offset:   offset,
		Limit:    int(limit),
		Precise:  true,
	})
	if err != nil {
		if parent.Err() == nil && errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return nil, errors.Wrapf(ErrChunkTimeout, "offset %d", offset)
		}
		return nil, err
	}

	switch result := res.(type) {
	case *tg.UploadFile:
		return result.Bytes, nil
	default:
		return nil, ErrCDNRedirect
	}
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
