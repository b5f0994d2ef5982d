package tgc

import (
	"context"
	"testing"

	"github.com/go-faster/errors"
	"github.com/gotd/td/bin"
	"github.com/gotd/td/tg"
	"github.com/stretchr/testify/suite"

	"github.com/fastfinder/fastfinder/internal/fileid"
	"github.com/fastfinder/fastfinder/internal/media"
	"github.com/fastfinder/fastfinder/internal/tgtest"
)

const (
	binChannel = int64(-1001234567890)
	channelID  = int64(1234567890)
)

type channelInvoker struct {
	messages      map[int]tg.MessageClass
	channelCalls  int
	messagesCalls int
}

func (c *channelInvoker) Invoke(ctx context.Context, input bin.Encoder, output bin.Decoder) error {
	switch req := input.(type) {
	case *tg.ChannelsGetChannelsRequest:
		c.channelCalls++
		return tgtest.Respond(output, &tg.MessagesChats{Chats: []tg.ChatClass{
			&tg.Channel{ID: channelID, AccessHash: 99, Title: "bin", Photo: &tg.ChatPhotoEmpty{}},
		}})
	case *tg.ChannelsGetMessagesRequest:
		c.messagesCalls++
		if ch, ok := req.Channel.(*tg.InputChannel); !ok || ch.ChannelID != channelID || ch.AccessHash != 99 {
			return errors.Errorf("unexpected channel %v", req.Channel)
		}
		id := req.ID[0].(*tg.InputMessageID).ID
		msg, ok := c.messages[id]
		if !ok {
			msg = &tg.MessageEmpty{ID: id}
		}
		return tgtest.Respond(output, &tg.MessagesChannelMessages{Messages: []tg.MessageClass{msg}})
	default:
		return errors.Errorf("unexpected request %T", input)
	}
}

type MessageSourceSuite struct {
	suite.Suite
	invoker *channelInvoker
	source  *MessageSource
}

func (suite *MessageSourceSuite) SetupTest() {
	video := &tg.Document{
		ID:            100,
		AccessHash:    200,
		FileReference: []byte{1, 2, 3},
		MimeType:      "video/x-matroska",
		Size:          5000,
		DCID:          4,
		Attributes: []tg.DocumentAttributeClass{
			&tg.DocumentAttributeVideo{Duration: 10, W: 640, H: 360},
			&tg.DocumentAttributeFilename{FileName: "movie.mkv"},
		},
	}
	photo := &tg.Photo{
		ID:            300,
		AccessHash:    400,
		FileReference: []byte{4},
		DCID:          2,
		Sizes: []tg.PhotoSizeClass{
			&tg.PhotoSize{Type: "m", W: 320, H: 320, Size: 1000},
			&tg.PhotoSizeProgressive{Type: "y", W: 1280, H: 1280, Sizes: []int{100, 2000, 9000}},
		},
	}
	peer := &tg.PeerChannel{ChannelID: channelID}
	suite.invoker = &channelInvoker{messages: map[int]tg.MessageClass{
		7: &tg.Message{ID: 7, PeerID: peer, Media: &tg.MessageMediaDocument{Document: video}},
		8: &tg.Message{ID: 8, PeerID: peer, Media: &tg.MessageMediaPhoto{Photo: photo}},
		9: &tg.Message{ID: 9, PeerID: peer, Message: "just text"},
	}}
	suite.source = NewMessageSource(tg.NewClient(suite.invoker))
}

func (suite *MessageSourceSuite) TestDocument() {
	info, err := suite.source.Media(context.Background(), binChannel, 7)
	suite.Require().NoError(err)
	suite.Equal(int64(5000), info.Size)
	suite.Equal("movie.mkv", info.Name)
	suite.Equal("video/x-matroska", info.MimeType)
	suite.Equal("video", info.Kind)
	suite.NotEmpty(info.UniqueID)

	desc, err := fileid.Decode(info.FileID)
	suite.Require().NoError(err)
	suite.Equal(fileid.Video, desc.Type)
	suite.Equal(4, desc.DC)
	suite.Equal(int64(100), desc.MediaID)
	suite.Equal(int64(200), desc.AccessHash)
	suite.Equal([]byte{1, 2, 3}, desc.FileReference)
}

func (suite *MessageSourceSuite) TestPhoto() {
	info, err := suite.source.Media(context.Background(), binChannel, 8)
	suite.Require().NoError(err)
	suite.Equal(int64(9000), info.Size)
	suite.Equal("photo", info.Kind)

	desc, err := fileid.Decode(info.FileID)
	suite.Require().NoError(err)
	suite.Equal(fileid.Photo, desc.Type)
	suite.Equal("y", desc.ThumbnailSize)
	suite.Equal(2, desc.DC)
}

func (suite *MessageSourceSuite) TestNotFound() {
	for _, id := range []int{9, 10, 0} {
		_, err := suite.source.Media(context.Background(), binChannel, id)
		suite.ErrorIs(err, media.ErrNotFound, "message %d", id)
	}
}

func (suite *MessageSourceSuite) TestChannelResolvedOnce() {
	for _, id := range []int{7, 8, 7} {
		_, err := suite.source.Media(context.Background(), binChannel, id)
		suite.Require().NoError(err)
	}
	_, err := suite.source.Media(context.Background(), channelID, 7)
	suite.Require().NoError(err)

	suite.Equal(1, suite.invoker.channelCalls)
	suite.Equal(4, suite.invoker.messagesCalls)
}

func TestMessageSourceSuite(t *testing.T) {
	suite.Run(t, new(MessageSourceSuite))
}

func (suite *MessageSourceSuite) TestDocumentKinds() {
	cases := []struct {
		attrs []tg.DocumentAttributeClass
		want  fileid.Type
	}{
		{nil, fileid.Document},
		{[]tg.DocumentAttributeClass{&tg.DocumentAttributeAudio{Duration: 3}}, fileid.Audio},
		{[]tg.DocumentAttributeClass{&tg.DocumentAttributeAudio{Voice: true}}, fileid.Voice},
		{[]tg.DocumentAttributeClass{&tg.DocumentAttributeVideo{RoundMessage: true}}, fileid.VideoNote},
		{[]tg.DocumentAttributeClass{&tg.DocumentAttributeAnimated{}, &tg.DocumentAttributeVideo{}}, fileid.Animation},
	}
	for _, tc := range cases {
		desc := documentDescriptor(&tg.Document{ID: 1, Attributes: tc.attrs})
		suite.Equal(tc.want, desc.Type)
	}
}

func (suite *MessageSourceSuite) TestLargestPhotoSize() {
	_, _, ok := largestPhotoSize([]tg.PhotoSizeClass{&tg.PhotoStrippedSize{Type: "i"}})
	suite.False(ok)

	size, typ, ok := largestPhotoSize([]tg.PhotoSizeClass{
		&tg.PhotoSize{Type: "x", Size: 0},
	})
	suite.True(ok)
	suite.Equal(int64(0), size)
	suite.Equal("x", typ)
}
