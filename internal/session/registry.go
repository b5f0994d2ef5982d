// Package session keeps one authorized connection per Telegram datacenter.
package session

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/go-faster/errors"
	"github.com/gotd/td/tg"
	"github.com/gotd/td/tgerr"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/fastfinder/fastfinder/internal/logging"
)

var (
	sessionsOpen = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "fastfinder_sessions_open",
		Help: "Number of open datacenter sessions",
	})
	authExchanges = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "fastfinder_auth_exchanges_total",
		Help: "Cross datacenter authorization exchanges",
	}, []string{"dc", "result"})
)

// Dialer opens connections to datacenters on behalf of the bot account.
type Dialer interface {
	HomeDC() int
	Dial(ctx context.Context, dc int) (Conn, error)
	// ExportAuthorization asks the home datacenter for a token importable on dc.
	ExportAuthorization(ctx context.Context, dc int) (*tg.AuthExportedAuthorization, error)
}

// AuthExchangeError is returned when a cross datacenter session could not be authorized.
type AuthExchangeError struct {
	DC       int
	Attempts int
	Err      error
}

func (e *AuthExchangeError) Error() string {
	return fmt.Sprintf("authorize dc %d after %d attempts: %v", e.DC, e.Attempts, e.Err)
}

func (e *AuthExchangeError) Unwrap() error {
	return e.Err
}

const (
	DefaultImportRetries = 3

	errAuthBytesInvalid = "AUTH_BYTES_INVALID"
)

type Option func(*Registry)

func WithImportRetries(n int) Option {
	return func(r *Registry) {
		if n > 0 {
			r.importRetries = n
		}
	}
}

func WithLogger(lg *zap.Logger) Option {
	return func(r *Registry) {
		r.logger = lg
	}
}

type Registry struct {
	dialer        Dialer
	importRetries int
	logger        *zap.Logger

	mu       sync.Mutex
	sessions map[int]*Session
	locks    sync.Map // map[int]*sync.Mutex
}

func NewRegistry(dialer Dialer, opts ...Option) *Registry {
	r := &Registry{
		dialer:        dialer,
		importRetries: DefaultImportRetries,
		logger:        logging.Component("SESSION"),
		sessions:      make(map[int]*Session),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

func (r *Registry) getCreationLock(dc int) *sync.Mutex {
	lock, _ := r.locks.LoadOrStore(dc, &sync.Mutex{})
	return lock.(*sync.Mutex)
}

func (r *Registry) lookup(dc int) *Session {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sessions[dc]
	if !ok {
		return nil
	}
	if !s.Open() {
		delete(r.sessions, dc)
		sessionsOpen.Set(float64(len(r.sessions)))
		return nil
	}
	return s
}

// Get returns the session for dc, creating and authorizing it on first use.
// Concurrent callers for the same dc wait for a single creation.
func (r *Registry) Get(ctx context.Context, dc int) (*Session, error) {
	if s := r.lookup(dc); s != nil {
		return s, nil
	}

	lock := r.getCreationLock(dc)
	lock.Lock()
	defer lock.Unlock()

	if s := r.lookup(dc); s != nil {
		return s, nil
	}

	s, err := r.create(ctx, dc)
	if err != nil {
		r.logger.Error("session.create", zap.Int("dc", dc), zap.Error(err))
		return nil, err
	}

	r.mu.Lock()
	r.sessions[dc] = s
	sessionsOpen.Set(float64(len(r.sessions)))
	r.mu.Unlock()

	r.logger.Info("session.ready", zap.Int("dc", dc))
	return s, nil
}

func (r *Registry) create(ctx context.Context, dc int) (*Session, error) {
	r.logger.Debug("session.create", zap.Int("dc", dc))

	conn, err := r.dialer.Dial(ctx, dc)
	if err != nil {
		return nil, errors.Wrapf(err, "dial dc %d", dc)
	}
	s := newSession(dc, conn)

	if dc == r.dialer.HomeDC() || s.preAuthorized() {
		return s, nil
	}

	if err := r.importAuthorization(ctx, s); err != nil {
		authExchanges.WithLabelValues(strconv.Itoa(dc), "failed").Inc()
		if cerr := s.Close(); cerr != nil {
			r.logger.Warn("session.close", zap.Int("dc", dc), zap.Error(cerr))
		}
		return nil, err
	}
	authExchanges.WithLabelValues(strconv.Itoa(dc), "ok").Inc()
	return s, nil
}

func (r *Registry) importAuthorization(ctx context.Context, s *Session) error {
	var lastErr error
	for attempt := 1; attempt <= r.importRetries; attempt++ {
		auth, err := r.dialer.ExportAuthorization(ctx, s.DC)
		if err != nil {
			return &AuthExchangeError{DC: s.DC, Attempts: attempt, Err: errors.Wrap(err, "export authorization")}
		}

		_, err = s.API().AuthImportAuthorization(ctx, &tg.AuthImportAuthorizationRequest{
			ID:    auth.ID,
			Bytes: auth.Bytes,
		})
		if err == nil {
			return nil
		}
		if !tgerr.Is(err, errAuthBytesInvalid) {
			return &AuthExchangeError{DC: s.DC, Attempts: attempt, Err: errors.Wrap(err, "import authorization")}
		}

		r.logger.Debug("session.import.retry", zap.Int("dc", s.DC), zap.Int("attempt", attempt))
		lastErr = err
	}
	return &AuthExchangeError{DC: s.DC, Attempts: r.importRetries, Err: lastErr}
}

// Drop forgets s if it is still the registered session for dc and closes it.
func (r *Registry) Drop(dc int, s *Session) {
	r.mu.Lock()
	if cur, ok := r.sessions[dc]; ok && cur == s {
		delete(r.sessions, dc)
		sessionsOpen.Set(float64(len(r.sessions)))
	}
	r.mu.Unlock()

	if err := s.Close(); err != nil {
		r.logger.Warn("session.close", zap.Int("dc", dc), zap.Error(err))
	}
	r.logger.Info("session.dropped", zap.Int("dc", dc))
}

// Close closes every registered session.
func (r *Registry) Close() error {
	r.mu.Lock()
	sessions := r.sessions
	r.sessions = make(map[int]*Session)
	sessionsOpen.Set(0)
	r.mu.Unlock()

	var err error
	for dc, s := range sessions {
		if cerr := s.Close(); cerr != nil {
			err = multierr.Append(err, errors.Wrapf(cerr, "close dc %d", dc))
		}
	}
	return err
}

type Stat struct {
	DC      int
	Media   bool
	Created time.Time
}

// Stats lists open sessions ordered by datacenter.
func (r *Registry) Stats() []Stat {
	r.mu.Lock()
	defer r.mu.Unlock()

	stats := make([]Stat, 0, len(r.sessions))
	for dc, s := range r.sessions {
		if s.Open() {
			stats = append(stats, Stat{DC: dc, Media: s.Media, Created: s.Created})
		}
	}
	sort.Slice(stats, func(i, j int) bool { return stats[i].DC < stats[j].DC })
	return stats
}

func (r *Registry) HomeDC() int {
	return r.dialer.HomeDC()
}
