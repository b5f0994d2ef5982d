// Package recovery retries RPC calls that failed below the RPC layer, such
// as a dropped connection during reconnect.
package recovery

import (
	"context"

	"github.com/cenkalti/backoff/v4"
	"github.com/go-faster/errors"
	"github.com/gotd/td/bin"
	"github.com/gotd/td/telegram"
	"github.com/gotd/td/tg"
	"github.com/gotd/td/tgerr"
)

type recovery struct {
	ctx     context.Context
	backoff func() backoff.BackOff
}

// New returns a middleware retrying transport failures with a fresh backoff
// per call until ctx is done.
func New(ctx context.Context, newBackoff func() backoff.BackOff) telegram.Middleware {
	return &recovery{
		ctx:     ctx,
		backoff: newBackoff,
	}
}

func (r *recovery) Handle(next tg.Invoker) telegram.InvokeFunc {
	return func(ctx context.Context, input bin.Encoder, output bin.Decoder) error {
		return backoff.Retry(func() error {
			err := next.Invoke(ctx, input, output)
			if err == nil {
				return nil
			}
			if r.shouldRecover(ctx, err) {
				return errors.Wrap(err, "recover")
			}
			return backoff.Permanent(err)
		}, backoff.WithContext(r.backoff(), ctx))
	}
}

func (r *recovery) shouldRecover(ctx context.Context, err error) bool {
	if r.ctx.Err() != nil || ctx.Err() != nil {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	// RPC errors are answers, not transport failures.
	_, ok := tgerr.As(err)
	return !ok
}
