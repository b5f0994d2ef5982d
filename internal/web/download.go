package web

import (
	"context"
	"encoding/hex"
	"fmt"
	"mime"
	"net/http"
	"net/url"
	"path/filepath"
	"strconv"
	"strings"
	"unicode"

	"github.com/go-faster/errors"
	"github.com/google/uuid"
	"github.com/zeebo/blake3"
	"go.uber.org/zap"

	"github.com/fastfinder/fastfinder/internal/chunk"
	"github.com/fastfinder/fastfinder/internal/fileid"
	"github.com/fastfinder/fastfinder/internal/http_range"
	"github.com/fastfinder/fastfinder/internal/location"
	"github.com/fastfinder/fastfinder/internal/logging"
	"github.com/fastfinder/fastfinder/internal/media"
	"github.com/fastfinder/fastfinder/internal/reader"
)

const somethingWentWrong = "<h1>Something went wrong</h1>"

func (s *Server) download(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := logging.FromContext(ctx)

	id, ok := messageID(r)
	if !ok {
		writeHTML(w, http.StatusNotFound, notFound)
		return
	}

	for attempt := 0; ; attempt++ {
		info, err := s.media.Media(ctx, s.opts.Channel, id)
		if errors.Is(err, media.ErrNotFound) {
			writeHTML(w, http.StatusNotFound, notFound)
			return
		}
		if err != nil {
			logger.Error("download.lookup", zap.Int("message", id), zap.Error(err))
			writeHTML(w, http.StatusInternalServerError, somethingWentWrong)
			return
		}

		started, err := s.serveMedia(w, r, info)
		if err == nil {
			return
		}
		if ctx.Err() != nil {
			logger.Debug("download.cancelled", zap.Int("message", id))
			return
		}
		if started {
			logger.Warn("download.truncated", zap.Int("message", id), zap.Error(err))
			return
		}

		if media.IsReferenceExpired(err) && attempt == 0 {
			if f, ok := s.media.(Forgetter); ok {
				logger.Info("download.reference.expired", zap.Int("message", id))
				f.Forget(ctx, s.opts.Channel, id)
				continue
			}
		}

		logger.Error("download.failed", zap.Int("message", id), zap.Error(err))
		for _, key := range []string{"Content-Disposition", "Content-Range", "Accept-Ranges", "ETag"} {
			w.Header().Del(key)
		}
		writeHTML(w, errorStatus(err), somethingWentWrong)
		return
	}
}

// serveMedia writes info to w. started reports whether the response status
// was already sent, after which errors can only truncate the body.
func (s *Server) serveMedia(w http.ResponseWriter, r *http.Request, info *media.Info) (started bool, err error) {
	ctx := r.Context()

	desc, err := fileid.Decode(info.FileID)
	if err != nil {
		return false, err
	}

	size := info.Size
	var buffered []byte
	if size <= 0 {
		// Photos may not report a size, buffer them whole.
		if buffered, err = s.streamer.ReadAll(ctx, desc); err != nil {
			return false, err
		}
		size = int64(len(buffered))
	}

	from, until := int64(0), size-1
	rangeHeader := r.Header.Get("Range")
	if rangeHeader != "" {
		ranges, err := http_range.Parse(rangeHeader, size)
		if err != nil || len(ranges) != 1 {
			w.Header().Set("Content-Range", fmt.Sprintf("bytes */%d", size))
			writeHTML(w, http.StatusRequestedRangeNotSatisfiable, "<h3>Requested range not satisfiable</h3>")
			return true, nil
		}
		from, until = ranges[0].Start, ranges[0].End
	}

	etag := entityTag(info, size)
	name := fileName(info)

	h := w.Header()
	h.Set("Content-Type", contentType(info.MimeType, name))
	h.Set("Content-Disposition", contentDisposition(name))
	h.Set("Accept-Ranges", "bytes")
	h.Set("ETag", etag)
	if size > 0 {
		h.Set("Content-Range", fmt.Sprintf("bytes %d-%d/%d", from, until, size))
	}

	status := http.StatusOK
	if rangeHeader != "" {
		status = http.StatusPartialContent
	} else {
		if match := r.Header.Get("If-None-Match"); match != "" && match == etag {
			w.WriteHeader(http.StatusNotModified)
			return true, nil
		}
		h.Set("Content-Length", strconv.FormatInt(size, 10))
	}

	if r.Method == http.MethodHead || size == 0 {
		w.WriteHeader(status)
		return true, nil
	}

	if buffered != nil {
		w.WriteHeader(status)
		_, err := w.Write(buffered[from : until+1])
		return true, err
	}

	plan, err := s.opts.Planner.Plan(from, until)
	if err != nil {
		return false, err
	}
	return s.stream(ctx, w, status, desc, plan)
}

// stream sends the status once the first chunk arrived, so failures of the
// first fetch still produce a clean error response.
func (s *Server) stream(ctx context.Context, w http.ResponseWriter, status int, desc *fileid.Descriptor, plan chunk.Plan) (bool, error) {
	rc := http.NewResponseController(w)
	started := false
	for data, err := range s.streamer.Stream(ctx, desc, plan) {
		if err != nil {
			return started, err
		}
		if !started {
			w.WriteHeader(status)
			started = true
		}
		if _, err := w.Write(data); err != nil {
			return true, err
		}
		if err := rc.Flush(); err != nil && !errors.Is(err, http.ErrNotSupported) {
			return true, err
		}
	}
	if !started {
		w.WriteHeader(status)
	}
	return true, nil
}

func errorStatus(err error) int {
	switch {
	case errors.Is(err, fileid.ErrMalformedReference),
		errors.Is(err, location.ErrUnsupportedType),
		errors.Is(err, location.ErrWebLocation):
		return http.StatusInternalServerError
	case errors.Is(err, reader.ErrFloodWaitExhausted):
		return http.StatusServiceUnavailable
	case errors.Is(err, reader.ErrChunkTimeout):
		return http.StatusGatewayTimeout
	default:
		return http.StatusBadGateway
	}
}

func entityTag(info *media.Info, size int64) string {
	sum := blake3.Sum256([]byte(info.UniqueID + ":" + strconv.FormatInt(size, 10)))
	return `"` + hex.EncodeToString(sum[:16]) + `"`
}

func fileName(info *media.Info) string {
	if info.Name != "" {
		return info.Name
	}
	ext := ".bin"
	if exts, err := mime.ExtensionsByType(info.MimeType); err == nil && len(exts) > 0 {
		ext = exts[0]
	}
	return uuid.NewString()[:8] + ext
}

func contentType(mimeType, name string) string {
	if mimeType != "" {
		return mimeType
	}
	if t := mime.TypeByExtension(filepath.Ext(name)); t != "" {
		return t
	}
	return "application/octet-stream"
}

func contentDisposition(name string) string {
	quoted := strings.NewReplacer(`\`, `\\`, `"`, `\"`).Replace(name)
	for _, r := range name {
		if r > unicode.MaxASCII || !unicode.IsPrint(r) {
			return fmt.Sprintf(`attachment; filename="%s"; filename*=UTF-8''%s`,
				strings.Map(asciiOnly, quoted), url.PathEscape(name))
		}
	}
	return fmt.Sprintf(`attachment; filename="%s"`, quoted)
}

func asciiOnly(r rune) rune {
	if r > unicode.MaxASCII || !unicode.IsPrint(r) {
		return '_'
	}
	return r
}

func writeHTML(w http.ResponseWriter, status int, body string) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Del("Content-Length")
	w.WriteHeader(status)
	w.Write([]byte(body))
}
