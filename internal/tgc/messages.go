package tgc

import (
	"context"
	"sync"

	"github.com/go-faster/errors"
	"github.com/gotd/td/tg"

	"github.com/fastfinder/fastfinder/internal/fileid"
	"github.com/fastfinder/fastfinder/internal/location"
	"github.com/fastfinder/fastfinder/internal/media"
)

var (
	ErrInValidChannelId       = errors.New("invalid channel id")
	ErrInvalidChannelMessages = errors.New("invalid channel messages")
)

func GetChannelById(ctx context.Context, client *tg.Client, channelId int64) (*tg.InputChannel, error) {
	inputChannel := &tg.InputChannel{
		ChannelID: channelId,
	}
	channels, err := client.ChannelsGetChannels(ctx, []tg.InputChannelClass{inputChannel})
	if err != nil {
		return nil, err
	}

	for _, chat := range channels.GetChats() {
		if channel, ok := chat.(*tg.Channel); ok && channel.ID == channelId {
			return channel.AsInput(), nil
		}
	}
	return nil, ErrInValidChannelId
}

// MessageSource reads media info straight from channel messages.
type MessageSource struct {
	api *tg.Client

	mu       sync.Mutex
	channels map[int64]*tg.InputChannel
}

func NewMessageSource(api *tg.Client) *MessageSource {
	return &MessageSource{api: api, channels: make(map[int64]*tg.InputChannel)}
}

// Media returns the media of messageID in channelID. channelID may be given
// in the marked -100 form.
func (s *MessageSource) Media(ctx context.Context, channelID int64, messageID int) (*media.Info, error) {
	if messageID <= 0 {
		return nil, media.ErrNotFound
	}

	channel, err := s.channel(ctx, channelID)
	if err != nil {
		return nil, err
	}

	res, err := s.api.ChannelsGetMessages(ctx, &tg.ChannelsGetMessagesRequest{
		Channel: channel,
		ID:      []tg.InputMessageClass{&tg.InputMessageID{ID: messageID}},
	})
	if err != nil {
		return nil, errors.Wrapf(err, "get message %d", messageID)
	}

	messages, ok := res.(*tg.MessagesChannelMessages)
	if !ok {
		return nil, ErrInvalidChannelMessages
	}
	for _, m := range messages.Messages {
		if msg, ok := m.(*tg.Message); ok && msg.ID == messageID {
			return InfoFromMedia(msg.Media)
		}
	}
	return nil, media.ErrNotFound
}

func (s *MessageSource) channel(ctx context.Context, channelID int64) (*tg.InputChannel, error) {
	if channelID < 0 {
		channelID = location.ChannelID(channelID)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if c, ok := s.channels[channelID]; ok {
		return c, nil
	}

	c, err := GetChannelById(ctx, s.api, channelID)
	if err != nil {
		return nil, errors.Wrapf(err, "channel %d", channelID)
	}
	s.channels[channelID] = c
	return c, nil
}

// InfoFromMedia builds the streamable info of a message media. Media other
// than documents and photos is reported as not found.
func InfoFromMedia(m tg.MessageMediaClass) (*media.Info, error) {
	var (
		desc *fileid.Descriptor
		info media.Info
	)
	switch m := m.(type) {
	case *tg.MessageMediaDocument:
		doc, ok := m.Document.(*tg.Document)
		if !ok {
			return nil, media.ErrNotFound
		}
		desc = documentDescriptor(doc)
		info.Size = doc.Size
		info.MimeType = doc.MimeType
		info.Name = documentName(doc)
	case *tg.MessageMediaPhoto:
		photo, ok := m.Photo.(*tg.Photo)
		if !ok {
			return nil, media.ErrNotFound
		}
		size, thumb, ok := largestPhotoSize(photo.Sizes)
		if !ok {
			return nil, media.ErrNotFound
		}
		desc = &fileid.Descriptor{
			Type:              fileid.Photo,
			DC:                photo.DCID,
			MediaID:           photo.ID,
			AccessHash:        photo.AccessHash,
			FileReference:     photo.FileReference,
			ThumbnailSource:   fileid.SourceThumbnail,
			ThumbnailFileType: fileid.Photo,
			ThumbnailSize:     thumb,
		}
		info.Size = size
		info.MimeType = "image/jpeg"
	default:
		return nil, media.ErrNotFound
	}

	id, err := fileid.Encode(desc)
	if err != nil {
		return nil, errors.Wrap(err, "encode file id")
	}
	info.FileID = id
	info.UniqueID = desc.UniqueID()
	info.Kind = desc.Type.String()
	return &info, nil
}

func documentDescriptor(doc *tg.Document) *fileid.Descriptor {
	desc := &fileid.Descriptor{
		Type:          fileid.Document,
		DC:            doc.DCID,
		MediaID:       doc.ID,
		AccessHash:    doc.AccessHash,
		FileReference: doc.FileReference,
	}
	for _, attr := range doc.Attributes {
		switch attr := attr.(type) {
		case *tg.DocumentAttributeVideo:
			if desc.Type == fileid.Animation {
				continue
			}
			desc.Type = fileid.Video
			if attr.RoundMessage {
				desc.Type = fileid.VideoNote
			}
		case *tg.DocumentAttributeAudio:
			desc.Type = fileid.Audio
			if attr.Voice {
				desc.Type = fileid.Voice
			}
		case *tg.DocumentAttributeAnimated:
			desc.Type = fileid.Animation
		case *tg.DocumentAttributeSticker:
			desc.Type = fileid.Sticker
		}
	}
	return desc
}

func documentName(doc *tg.Document) string {
	for _, attr := range doc.Attributes {
		if name, ok := attr.(*tg.DocumentAttributeFilename); ok {
			return name.FileName
		}
	}
	return ""
}

// largestPhotoSize returns the byte size and type of the biggest downloadable
// size. A zero byte size means the size is not known up front.
func largestPhotoSize(sizes []tg.PhotoSizeClass) (int64, string, bool) {
	var (
		best     int64 = -1
		bestType string
	)
	for _, s := range sizes {
		var (
			size int64
			typ  string
		)
		switch s := s.(type) {
		case *tg.PhotoSize:
			size, typ = int64(s.Size), s.Type
		case *tg.PhotoSizeProgressive:
			if len(s.Sizes) > 0 {
				size = int64(s.Sizes[len(s.Sizes)-1])
			}
			typ = s.Type
		default:
			continue
		}
		if len(typ) == 1 && size > best {
			best, bestType = size, typ
		}
	}
	if best < 0 {
		return 0, "", false
	}
	return best, bestType, true
}
