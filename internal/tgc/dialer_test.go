package tgc

import (
	"context"
	"errors"
	"testing"

	"github.com/gotd/td/bin"
	"github.com/gotd/td/telegram"
	"github.com/gotd/td/tg"
	"github.com/gotd/td/tgerr"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/suite"
	"go.uber.org/zap"

	"github.com/fastfinder/fastfinder/internal/session"
	"github.com/fastfinder/fastfinder/internal/tgtest"
)

type poolInvoker struct {
	client *fakePoolClient
	closed bool
}

func (p *poolInvoker) Invoke(ctx context.Context, input bin.Encoder, output bin.Decoder) error {
	switch req := input.(type) {
	case *tg.AuthExportAuthorizationRequest:
		p.client.exports++
		return tgtest.Respond(output, &tg.AuthExportedAuthorization{ID: int64(p.client.exports), Bytes: []byte{byte(req.DCID)}})
	case *tg.AuthImportAuthorizationRequest:
		p.client.imports++
		if p.client.imports <= p.client.rejectImports {
			return tgerr.New(400, "AUTH_BYTES_INVALID")
		}
		return tgtest.Respond(output, &tg.AuthAuthorization{User: &tg.UserEmpty{ID: 1}})
	default:
		return errors.New("unexpected request")
	}
}

func (p *poolInvoker) Close() error {
	p.closed = true
	return nil
}

type fakePoolClient struct {
	config        tg.Config
	rejectImports int

	exports, imports int
	opened           []string
	deferred         []bool
	pools            []*poolInvoker
}

func (c *fakePoolClient) Config() tg.Config { return c.config }

func (c *fakePoolClient) API() *tg.Client {
	return tg.NewClient(&poolInvoker{client: c})
}

func (c *fakePoolClient) open(ctx context.Context, kind string) (telegram.CloseInvoker, error) {
	c.opened = append(c.opened, kind)
	c.deferred = append(c.deferred, transferDeferred(ctx))
	p := &poolInvoker{client: c}
	c.pools = append(c.pools, p)
	return p, nil
}

func (c *fakePoolClient) Pool(max int64) (telegram.CloseInvoker, error) {
	return c.open(context.Background(), "home")
}

func (c *fakePoolClient) DC(ctx context.Context, dc int, max int64) (telegram.CloseInvoker, error) {
	return c.open(ctx, "dc")
}

func (c *fakePoolClient) MediaOnly(ctx context.Context, dc int, max int64) (telegram.CloseInvoker, error) {
	return c.open(ctx, "media")
}

type DialerSuite struct {
	suite.Suite
	client   *fakePoolClient
	registry *session.Registry
}

func (suite *DialerSuite) SetupTest() {
	suite.client = &fakePoolClient{config: tg.Config{
		ThisDC: 2,
		DCOptions: []tg.DCOption{
			{ID: 2, IPAddress: "149.154.167.50", Port: 443},
			{ID: 4, IPAddress: "149.154.167.91", Port: 443},
			{ID: 4, IPAddress: "149.154.164.250", Port: 443, MediaOnly: true},
			{ID: 5, IPAddress: "91.108.56.100", Port: 443},
		},
	}}
	dialer := NewDialer(suite.client, DialerOptions{PoolSize: 2, TestMode: true})
	suite.registry = session.NewRegistry(dialer, session.WithLogger(zap.NewNop()))
}

func (suite *DialerSuite) TestHomeDCUsesPoolWithoutExchange() {
	sess, err := suite.registry.Get(context.Background(), 2)
	suite.Require().NoError(err)
	suite.Equal([]string{"home"}, suite.client.opened)
	suite.Zero(suite.client.exports)
	suite.Zero(suite.client.imports)
	suite.False(sess.Media)
	suite.True(sess.TestMode)
}

func (suite *DialerSuite) TestForeignDCRetriesRejectedImports() {
	suite.client.rejectImports = 2

	sess, err := suite.registry.Get(context.Background(), 4)
	suite.Require().NoError(err)
	suite.Equal([]string{"media"}, suite.client.opened)
	suite.Equal([]bool{true}, suite.client.deferred)
	suite.Equal(3, suite.client.exports)
	suite.Equal(3, suite.client.imports)
	suite.True(sess.Media)
}

func (suite *DialerSuite) TestForeignDCGivesUpAfterRetries() {
	suite.client.rejectImports = 10

	_, err := suite.registry.Get(context.Background(), 4)
	var authErr *session.AuthExchangeError
	suite.Require().ErrorAs(err, &authErr)
	suite.Equal(4, authErr.DC)
	suite.Equal(3, authErr.Attempts)
	suite.Equal(3, suite.client.imports)
	suite.True(suite.client.pools[0].closed)
}

func (suite *DialerSuite) TestForeignDCWithoutMediaOptionUsesPrimary() {
	sess, err := suite.registry.Get(context.Background(), 5)
	suite.Require().NoError(err)
	suite.Equal([]string{"dc"}, suite.client.opened)
	suite.Equal([]bool{true}, suite.client.deferred)
	suite.Equal(1, suite.client.imports)
	suite.False(sess.Media)
}

func TestDialerSuite(t *testing.T) {
	suite.Run(t, new(DialerSuite))
}

func TestOnTransfer(t *testing.T) {
	calls := 0
	fn := func(context.Context) error {
		calls++
		return nil
	}

	assert.NoError(t, onTransfer(withDeferredTransfer(context.Background()), nil, fn))
	assert.Zero(t, calls)

	assert.NoError(t, onTransfer(context.Background(), nil, fn))
	assert.Equal(t, 1, calls)
}

func TestConnAuthorizedOnlyForHomePool(t *testing.T) {
	client := &fakePoolClient{config: tg.Config{ThisDC: 2}}
	dialer := NewDialer(client, DialerOptions{})

	home, err := dialer.Dial(context.Background(), 2)
	assert.NoError(t, err)
	foreign, err := dialer.Dial(context.Background(), 4)
	assert.NoError(t, err)

	assert.True(t, home.(session.Authorized).Authorized())
	assert.False(t, foreign.(session.Authorized).Authorized())
}
