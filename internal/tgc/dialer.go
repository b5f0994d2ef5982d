package tgc

import (
	"context"

	"github.com/go-faster/errors"
	"github.com/gotd/td/telegram"
	"github.com/gotd/td/tg"

	"github.com/fastfinder/fastfinder/internal/session"
)

func chainMiddlewares(invoker tg.Invoker, chain ...telegram.Middleware) tg.Invoker {
	if len(chain) == 0 {
		return invoker
	}
	for i := len(chain) - 1; i >= 0; i-- {
		invoker = chain[i].Handle(invoker)
	}

	return invoker
}

type deferTransferKey struct{}

// withDeferredTransfer marks ctx so that opening a foreign pool skips the
// client's own authorization transfer. The session registry imports the
// authorization itself, retrying rejected tokens.
func withDeferredTransfer(ctx context.Context) context.Context {
	return context.WithValue(ctx, deferTransferKey{}, true)
}

func transferDeferred(ctx context.Context) bool {
	v, _ := ctx.Value(deferTransferKey{}).(bool)
	return v
}

// onTransfer is installed as telegram.Options.OnTransfer.
func onTransfer(ctx context.Context, _ *telegram.Client, fn func(context.Context) error) error {
	if transferDeferred(ctx) {
		return nil
	}
	return fn(ctx)
}

// PoolClient is the part of telegram.Client the dialer needs.
type PoolClient interface {
	Config() tg.Config
	API() *tg.Client
	Pool(max int64) (telegram.CloseInvoker, error)
	DC(ctx context.Context, dc int, max int64) (telegram.CloseInvoker, error)
	MediaOnly(ctx context.Context, dc int, max int64) (telegram.CloseInvoker, error)
}

type DialerOptions struct {
	PoolSize    int64
	TestMode    bool
	Middlewares []telegram.Middleware
}

// Dialer opens per datacenter connection pools on a signed in client.
type Dialer struct {
	client PoolClient
	opts   DialerOptions
}

func NewDialer(client PoolClient, opts DialerOptions) *Dialer {
	return &Dialer{client: client, opts: opts}
}

func (d *Dialer) HomeDC() int {
	return d.client.Config().ThisDC
}

// Dial returns the home pool for the home datacenter. Other datacenters get
// an unauthorized pool, on media-only addresses when the datacenter has any.
func (d *Dialer) Dial(ctx context.Context, dc int) (session.Conn, error) {
	var (
		invoker telegram.CloseInvoker
		media   bool
		err     error
	)
	switch {
	case dc == d.HomeDC():
		invoker, err = d.client.Pool(d.opts.PoolSize)
	case hasMediaOption(d.client.Config().DCOptions, dc):
		media = true
		invoker, err = d.client.MediaOnly(withDeferredTransfer(ctx), dc, d.opts.PoolSize)
	default:
		invoker, err = d.client.DC(withDeferredTransfer(ctx), dc, d.opts.PoolSize)
	}
	if err != nil {
		return nil, errors.Wrapf(err, "pool dc %d", dc)
	}

	return &conn{
		Invoker:    chainMiddlewares(invoker, d.opts.Middlewares...),
		closer:     invoker,
		authorized: dc == d.HomeDC(),
		options:    session.ConnOptions{Media: media, TestMode: d.opts.TestMode},
	}, nil
}

func (d *Dialer) ExportAuthorization(ctx context.Context, dc int) (*tg.AuthExportedAuthorization, error) {
	return d.client.API().AuthExportAuthorization(ctx, dc)
}

func hasMediaOption(options []tg.DCOption, dc int) bool {
	for _, o := range options {
		if o.ID == dc && o.MediaOnly && !o.CDN {
			return true
		}
	}
	return false
}

type conn struct {
	tg.Invoker
	closer     telegram.CloseInvoker
	authorized bool
	options    session.ConnOptions
}

func (c *conn) Close() error {
	return c.closer.Close()
}

// Authorized is true only for the home pool, which shares the bot's auth key.
func (c *conn) Authorized() bool {
	return c.authorized
}

func (c *conn) Options() session.ConnOptions {
	return c.options
}
