package session

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/go-faster/errors"
	"github.com/gotd/td/bin"
	"github.com/gotd/td/tg"
	"github.com/gotd/td/tgerr"
)

var ErrClosed = errors.New("session closed")

// Conn is an invoker bound to one datacenter.
type Conn interface {
	tg.Invoker
	Close() error
}

// Authorized is implemented by connections that already carry the bot
// authorization, so the registry skips the export/import exchange.
type Authorized interface {
	Authorized() bool
}

// ConnOptions describes how a connection was opened.
type ConnOptions struct {
	// Media is set for connections to media-only datacenter addresses.
	Media    bool
	TestMode bool
}

// Described is implemented by connections that report their ConnOptions.
type Described interface {
	Options() ConnOptions
}

// Session is a long-lived connection to one datacenter shared by every
// stream targeting it.
type Session struct {
	DC       int
	Media    bool
	TestMode bool
	Created  time.Time

	conn   Conn
	api    *tg.Client
	closed atomic.Bool
}

func newSession(dc int, conn Conn) *Session {
	s := &Session{
		DC:      dc,
		Created: time.Now(),
		conn:    conn,
	}
	if d, ok := conn.(Described); ok {
		opts := d.Options()
		s.Media, s.TestMode = opts.Media, opts.TestMode
	}
	s.api = tg.NewClient(s)
	return s
}

func (s *Session) Invoke(ctx context.Context, input bin.Encoder, output bin.Decoder) error {
	if s.closed.Load() {
		return ErrClosed
	}
	return s.conn.Invoke(ctx, input, output)
}

func (s *Session) API() *tg.Client {
	return s.api
}

func (s *Session) Open() bool {
	return !s.closed.Load()
}

func (s *Session) Close() error {
	if !s.closed.CompareAndSwap(false, true) {
		return nil
	}
	return s.conn.Close()
}

func (s *Session) preAuthorized() bool {
	a, ok := s.conn.(Authorized)
	return ok && a.Authorized()
}

// IsAuthKeyError reports whether err means the session's authorization is gone
// and the session has to be recreated.
func IsAuthKeyError(err error) bool {
	return tgerr.Is(err,
		"AUTH_KEY_UNREGISTERED",
		"AUTH_KEY_INVALID",
		"AUTH_KEY_PERM_EMPTY",
		"SESSION_REVOKED",
		"SESSION_EXPIRED",
	) || errors.Is(err, ErrClosed)
}
