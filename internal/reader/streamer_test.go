package reader

import (
	"context"
	"crypto/rand"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gotd/td/tg"
	"github.com/gotd/td/tgerr"
	"github.com/stretchr/testify/suite"
	"go.uber.org/zap"

	"github.com/fastfinder/fastfinder/internal/chunk"
	"github.com/fastfinder/fastfinder/internal/fileid"
	"github.com/fastfinder/fastfinder/internal/session"
	"github.com/fastfinder/fastfinder/internal/tgtest"
)

type fileConn struct {
	*tgtest.File
}

func (fileConn) Close() error { return nil }

type fileDialer struct {
	file  *tgtest.File
	dials atomic.Int32
}

func (d *fileDialer) HomeDC() int { return 2 }

func (d *fileDialer) Dial(ctx context.Context, dc int) (session.Conn, error) {
	d.dials.Add(1)
	return fileConn{File: d.file}, nil
}

func (d *fileDialer) ExportAuthorization(ctx context.Context, dc int) (*tg.AuthExportedAuthorization, error) {
	return &tg.AuthExportedAuthorization{ID: 1, Bytes: []byte{1}}, nil
}

type StreamerSuite struct {
	suite.Suite
	data     []byte
	file     *tgtest.File
	dialer   *fileDialer
	streamer *Streamer
	desc     *fileid.Descriptor
}

func (suite *StreamerSuite) SetupTest() {
	suite.data = make([]byte, 10000)
	rand.Read(suite.data)
	suite.file = &tgtest.File{Data: suite.data}
	suite.dialer = &fileDialer{file: suite.file}
	registry := session.NewRegistry(suite.dialer, session.WithLogger(zap.NewNop()))
	suite.streamer = NewStreamer(registry, Config{
		ChunkTimeout: time.Second,
		FloodRetries: 2,
		MaxFloodWait: time.Second,
	})
	suite.desc = &fileid.Descriptor{Type: fileid.Video, DC: 2, MediaID: 1, AccessHash: 2}
}

func (suite *StreamerSuite) plan(from, until int64) chunk.Plan {
	plan, err := chunk.DefaultPlanner().Plan(from, until)
	suite.Require().NoError(err)
	return plan
}

func (suite *StreamerSuite) TestStream() {
	var requests []*tg.UploadGetFileRequest
	suite.file.Hook = func(ctx context.Context, req *tg.UploadGetFileRequest) error {
		requests = append(requests, req)
		return nil
	}

	got, err := collect(suite.T(), suite.streamer.Stream(context.Background(), suite.desc, suite.plan(10, 9000)))
	suite.Require().NoError(err)
	suite.Equal(suite.data[10:9001], got)

	suite.Require().NotEmpty(requests)
	suite.True(requests[0].Precise)
	suite.Equal(&tg.InputDocumentFileLocation{ID: 1, AccessHash: 2}, requests[0].Location)
	suite.Equal(int32(1), suite.dialer.dials.Load())
}

func (suite *StreamerSuite) TestFloodWaitRetriedAtSameOffset() {
	var offsets []int64
	floods := 0
	suite.file.Hook = func(ctx context.Context, req *tg.UploadGetFileRequest) error {
		offsets = append(offsets, req.Offset)
		if req.Offset == 0 && floods == 0 {
			floods++
			return tgtest.FloodWait(0)
		}
		return nil
	}

	got, err := collect(suite.T(), suite.streamer.Stream(context.Background(), suite.desc, suite.plan(0, 4095)))
	suite.Require().NoError(err)
	suite.Equal(suite.data[:4096], got)
	suite.Equal([]int64{0, 0}, offsets)
}

func (suite *StreamerSuite) TestFloodWaitExhausted() {
	calls := 0
	suite.file.Hook = func(ctx context.Context, req *tg.UploadGetFileRequest) error {
		calls++
		return tgtest.FloodWait(0)
	}

	_, err := collect(suite.T(), suite.streamer.Stream(context.Background(), suite.desc, suite.plan(0, 100)))
	suite.ErrorIs(err, ErrFloodWaitExhausted)
	suite.Equal(3, calls)
}

func (suite *StreamerSuite) TestFloodWaitTooLong() {
	suite.file.Hook = func(ctx context.Context, req *tg.UploadGetFileRequest) error {
		return tgtest.FloodWait(60)
	}

	_, err := collect(suite.T(), suite.streamer.Stream(context.Background(), suite.desc, suite.plan(0, 100)))
	suite.ErrorIs(err, ErrFloodWaitExhausted)
}

func (suite *StreamerSuite) TestChunkTimeout() {
	suite.streamer.config.ChunkTimeout = 20 * time.Millisecond
	suite.file.Hook = func(ctx context.Context, req *tg.UploadGetFileRequest) error {
		<-ctx.Done()
		return ctx.Err()
	}

	_, err := collect(suite.T(), suite.streamer.Stream(context.Background(), suite.desc, suite.plan(0, 100)))
	suite.ErrorIs(err, ErrChunkTimeout)
}

func (suite *StreamerSuite) TestAuthKeyErrorResetsSession() {
	failed := false
	suite.file.Hook = func(ctx context.Context, req *tg.UploadGetFileRequest) error {
		if !failed {
			failed = true
			return tgerr.New(401, "AUTH_KEY_UNREGISTERED")
		}
		return nil
	}

	got, err := collect(suite.T(), suite.streamer.Stream(context.Background(), suite.desc, suite.plan(0, 99)))
	suite.Require().NoError(err)
	suite.Equal(suite.data[:100], got)
	suite.Equal(int32(2), suite.dialer.dials.Load())
}

func (suite *StreamerSuite) TestUnsupportedDescriptor() {
	desc := &fileid.Descriptor{Type: fileid.Document, DC: 2, URL: "https://example.com/file"}
	_, err := collect(suite.T(), suite.streamer.Stream(context.Background(), desc, suite.plan(0, 1)))
	suite.Error(err)
	suite.Equal(int32(0), suite.dialer.dials.Load())
}

func (suite *StreamerSuite) TestReadAll() {
	data := make([]byte, maxChunk+10)
	rand.Read(data)
	suite.file.Data = data

	got, err := suite.streamer.ReadAll(context.Background(), suite.desc)
	suite.Require().NoError(err)
	suite.Equal(data, got)
}

func TestStreamerSuite(t *testing.T) {
	suite.Run(t, new(StreamerSuite))
}
