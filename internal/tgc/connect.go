package tgc

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/gotd/td/telegram"
)

type StopFunc func() error

type connectOptions struct {
	ctx     context.Context
	token   string
	timeout time.Duration
}

type Option interface {
	apply(o *connectOptions)
}

type fnOption func(o *connectOptions)

func (f fnOption) apply(o *connectOptions) {
	f(o)
}

func WithContext(ctx context.Context) Option {
	return fnOption(func(o *connectOptions) {
		o.ctx = ctx
	})
}

func WithBotToken(token string) Option {
	return fnOption(func(o *connectOptions) {
		o.token = token
	})
}

// WithStartTimeout bounds the time spent connecting and signing in.
func WithStartTimeout(timeout time.Duration) Option {
	return fnOption(func(o *connectOptions) {
		o.timeout = timeout
	})
}

// Connect runs client in the background and returns once it is signed in.
// The returned StopFunc disconnects and waits for the client to exit.
func Connect(client *telegram.Client, options ...Option) (StopFunc, error) {
	opt := &connectOptions{
		ctx:     context.Background(),
		timeout: time.Minute,
	}
	for _, o := range options {
		o.apply(opt)
	}

	ctx, cancel := context.WithCancel(opt.ctx)

	errC := make(chan error, 1)
	initDone := make(chan struct{})
	go func() {
		defer close(errC)
		errC <- RunWithAuth(ctx, client, opt.token, func(ctx context.Context) error {
			close(initDone)
			<-ctx.Done()
			if errors.Is(ctx.Err(), context.Canceled) {
				return nil
			}
			return ctx.Err()
		})
	}()

	timer := time.NewTimer(opt.timeout)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		cancel()
		return nil, ctx.Err()
	case err := <-errC:
		cancel()
		if err == nil {
			err = errors.New("client stopped before sign in")
		}
		return nil, err
	case <-timer.C:
		cancel()
		<-errC
		return nil, errors.Errorf("sign in did not finish in %s", opt.timeout)
	case <-initDone:
	}

	return func() error {
		cancel()
		return <-errC
	}, nil
}
