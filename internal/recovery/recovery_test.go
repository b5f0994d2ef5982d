package recovery

import (
	"context"
	"testing"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/go-faster/errors"
	"github.com/gotd/td/bin"
	"github.com/gotd/td/tg"
	"github.com/gotd/td/tgerr"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type flakyInvoker struct {
	calls int
	errs  []error
}

func (f *flakyInvoker) Invoke(ctx context.Context, input bin.Encoder, output bin.Decoder) error {
	f.calls++
	if f.calls <= len(f.errs) {
		return f.errs[f.calls-1]
	}
	return nil
}

func fastBackoff() backoff.BackOff {
	return backoff.WithMaxRetries(backoff.NewConstantBackOff(time.Millisecond), 5)
}

func invoke(t *testing.T, ctx context.Context, next tg.Invoker) error {
	t.Helper()
	mw := New(context.Background(), fastBackoff)
	return mw.Handle(next).Invoke(ctx, &tg.HelpGetConfigRequest{}, &tg.Config{})
}

func TestRecoversTransportErrors(t *testing.T) {
	next := &flakyInvoker{errs: []error{errors.New("connection reset"), errors.New("engine closed")}}
	require.NoError(t, invoke(t, context.Background(), next))
	assert.Equal(t, 3, next.calls)
}

func TestRPCErrorIsPermanent(t *testing.T) {
	next := &flakyInvoker{errs: []error{tgerr.New(400, "FILE_REFERENCE_EXPIRED")}}
	err := invoke(t, context.Background(), next)
	assert.True(t, tgerr.Is(err, "FILE_REFERENCE_EXPIRED"))
	assert.Equal(t, 1, next.calls)
}

func TestDeadlineIsPermanent(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	next := &flakyInvoker{errs: []error{context.Canceled, context.Canceled}}
	err := invoke(t, ctx, next)
	assert.Error(t, err)
	assert.Equal(t, 1, next.calls)

	next = &flakyInvoker{errs: []error{errors.Wrap(context.DeadlineExceeded, "rpc")}}
	err = invoke(t, context.Background(), next)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Equal(t, 1, next.calls)
}
