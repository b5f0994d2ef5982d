// Package web serves the streaming, watch and status endpoints.
package web

import (
	"context"
	"iter"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/fastfinder/fastfinder/internal/chizap"
	"github.com/fastfinder/fastfinder/internal/chunk"
	"github.com/fastfinder/fastfinder/internal/fileid"
	"github.com/fastfinder/fastfinder/internal/media"
	"github.com/fastfinder/fastfinder/internal/middleware"
	"github.com/fastfinder/fastfinder/internal/session"
)

// Streamer reads file bytes for a decoded identifier.
type Streamer interface {
	Stream(ctx context.Context, desc *fileid.Descriptor, plan chunk.Plan) iter.Seq2[[]byte, error]
	ReadAll(ctx context.Context, desc *fileid.Descriptor) ([]byte, error)
}

// Sessions reports the open datacenter sessions.
type Sessions interface {
	HomeDC() int
	Stats() []session.Stat
}

// Forgetter drops cached media info whose file reference expired.
type Forgetter interface {
	Forget(ctx context.Context, channelID int64, messageID int)
}

type Options struct {
	// Channel holds the streamed messages.
	Channel int64
	// BaseURL prefixes the links rendered in pages. It ends with a slash.
	BaseURL     string
	BotUsername string
	Planner     chunk.Planner
}

type Server struct {
	media    media.Source
	streamer Streamer
	sessions Sessions
	opts     Options
	logger   *zap.Logger
}

func NewServer(source media.Source, streamer Streamer, sessions Sessions, opts Options, logger *zap.Logger) *Server {
	if opts.BaseURL != "" && !strings.HasSuffix(opts.BaseURL, "/") {
		opts.BaseURL += "/"
	}
	return &Server{
		media:    source,
		streamer: streamer,
		sessions: sessions,
		opts:     opts,
		logger:   logger,
	}
}

func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(chimw.Recoverer)
	r.Use(chimw.RealIP)
	r.Use(middleware.InjectLogger(s.logger))
	r.Use(chizap.Chizap(s.logger, &chizap.Config{
		UTC:          true,
		SkipPaths:    []string{"/metrics", "/status"},
		DefaultLevel: zapcore.InfoLevel,
	}))
	r.Use(middleware.Metrics())
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{http.MethodGet, http.MethodHead, http.MethodOptions},
		AllowedHeaders: []string{"Range", "If-None-Match"},
		ExposedHeaders: []string{"Content-Range", "Content-Length", "Accept-Ranges", "ETag"},
		MaxAge:         86400,
	}))

	r.Get("/", s.index)
	r.Head("/", s.index)
	r.Get("/watch/{messageID:[0-9]+}", s.watch)
	r.Get("/download/{messageID:[0-9]+}", s.download)
	r.Head("/download/{messageID:[0-9]+}", s.download)
	r.Get("/status", s.status)
	r.Handle("/metrics", promhttp.Handler())
	return r
}

func messageID(r *http.Request) (int, bool) {
	id, err := strconv.Atoi(chi.URLParam(r, "messageID"))
	return id, err == nil && id > 0
}
