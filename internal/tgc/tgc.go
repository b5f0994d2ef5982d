package tgc

import (
	"context"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/go-faster/errors"
	tgbbolt "github.com/gotd/contrib/bbolt"
	"github.com/gotd/contrib/clock"
	"github.com/gotd/contrib/middleware/floodwait"
	"github.com/gotd/contrib/middleware/ratelimit"
	"github.com/gotd/td/session"
	"github.com/gotd/td/telegram"
	"github.com/gotd/td/telegram/dcs"
	"go.etcd.io/bbolt"
	"go.uber.org/multierr"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/fastfinder/fastfinder/internal/config"
	"github.com/fastfinder/fastfinder/internal/logging"
	"github.com/fastfinder/fastfinder/internal/recovery"
)

const sessionBucket = "fastfinder"

func sessionKey(indexes ...string) string {
	return strings.Join(indexes, ":")
}

func newClient(ctx context.Context, config *config.TGConfig, storage session.Storage, middlewares ...telegram.Middleware) (*telegram.Client, error) {
	dialer, err := proxyDialer(config.Proxy)
	if err != nil {
		return nil, errors.Wrap(err, "get dialer")
	}

	var logger *zap.Logger
	if config.EnableLogging {
		logger = logging.FromContext(ctx).Named("td")
	}

	dcList := dcs.Prod()
	if config.TestMode {
		dcList = dcs.Test()
	}

	opts := telegram.Options{
		Resolver: dcs.Plain(dcs.PlainOptions{
			Dial: dialer,
		}),
		DCList: dcList,
		ReconnectionBackoff: func() backoff.BackOff {
			return newBackoff(config.ReconnectTimeout)
		},
		Device: telegram.DeviceConfig{
			DeviceModel:    config.DeviceModel,
			SystemVersion:  config.SystemVersion,
			AppVersion:     config.AppVersion,
			SystemLangCode: config.SystemLangCode,
			LangPack:       config.LangPack,
			LangCode:       config.LangCode,
		},
		SessionStorage: storage,
		RetryInterval:  2 * time.Second,
		MaxRetries:     10,
		DialTimeout:    10 * time.Second,
		Middlewares:    middlewares,
		Logger:         logger,
		OnTransfer:     onTransfer,
	}
	if config.Ntp {
		c, err := clock.NewNTP()
		if err != nil {
			return nil, errors.Wrap(err, "create clock")
		}
		opts.Clock = c
	}

	return telegram.NewClient(config.AppId, config.AppHash, opts), nil
}

// BotClient creates a client whose session is persisted in boltdb under the
// bot token.
func BotClient(ctx context.Context, boltdb *bbolt.DB, config *config.TGConfig, middlewares ...telegram.Middleware) (*telegram.Client, error) {
	storage := tgbbolt.NewSessionStorage(boltdb, sessionKey("botsession", config.BotToken), []byte(sessionBucket))
	return newClient(ctx, config, storage, middlewares...)
}

// Bot is a connected bot client and the resources backing it.
type Bot struct {
	Client *telegram.Client

	db   *bbolt.DB
	stop StopFunc
}

// StartBot opens the session database, connects and signs in the bot.
func StartBot(ctx context.Context, config *config.TGConfig) (*Bot, error) {
	db, err := NewBoltDB(config.SessionFile)
	if err != nil {
		return nil, errors.Wrap(err, "open session db")
	}

	middlewares := NewMiddleware(config, WithFloodWait(), WithRateLimit())
	client, err := BotClient(ctx, db, config, middlewares...)
	if err != nil {
		db.Close()
		return nil, err
	}

	stop, err := Connect(client, WithContext(ctx), WithBotToken(config.BotToken))
	if err != nil {
		db.Close()
		return nil, errors.Wrap(err, "connect bot")
	}

	return &Bot{Client: client, db: db, stop: stop}, nil
}

func (b *Bot) Close() error {
	return multierr.Combine(b.stop(), b.db.Close())
}

type middlewareOption func(*middlewareConfig)

type middlewareConfig struct {
	config      *config.TGConfig
	middlewares []telegram.Middleware
}

func NewMiddleware(config *config.TGConfig, opts ...middlewareOption) []telegram.Middleware {
	mc := &middlewareConfig{
		config:      config,
		middlewares: []telegram.Middleware{},
	}
	for _, opt := range opts {
		opt(mc)
	}
	return mc.middlewares
}

// WithFloodWait sleeps through FLOOD_WAIT transparently. Streaming sessions
// do not use it, the streamer bounds those waits itself.
func WithFloodWait() middlewareOption {
	return func(mc *middlewareConfig) {
		mc.middlewares = append(mc.middlewares, floodwait.NewSimpleWaiter())
	}
}

func WithRecovery(ctx context.Context) middlewareOption {
	return func(mc *middlewareConfig) {
		timeout := mc.config.ReconnectTimeout
		mc.middlewares = append(mc.middlewares, recovery.New(ctx, func() backoff.BackOff {
			return newBackoff(timeout)
		}))
	}
}

func WithRateLimit() middlewareOption {
	return func(mc *middlewareConfig) {
		if mc.config.RateLimit {
			mc.middlewares = append(mc.middlewares,
				ratelimit.New(rate.Every(time.Millisecond*time.Duration(mc.config.Rate)), mc.config.RateBurst))
		}
	}
}

func newBackoff(timeout time.Duration) backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	b.Multiplier = 1.1
	b.MaxElapsedTime = timeout
	b.MaxInterval = 10 * time.Second
	return b
}
