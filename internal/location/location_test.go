package location

import (
	"testing"

	"github.com/gotd/td/tg"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fastfinder/fastfinder/internal/fileid"
)

func TestChannelID(t *testing.T) {
	assert.Equal(t, int64(1234567890), ChannelID(-1001234567890))
}

func TestPeer(t *testing.T) {
	assert.Equal(t, &tg.InputPeerUser{UserID: 42, AccessHash: 7}, Peer(42, 7))
	assert.Equal(t, &tg.InputPeerChat{ChatID: 100}, Peer(-100, 0))
	assert.Equal(t, &tg.InputPeerChannel{ChannelID: 555, AccessHash: 9}, Peer(-1000000000555, 9))
}

func TestResolveDocument(t *testing.T) {
	for _, tp := range []fileid.Type{fileid.Video, fileid.Document, fileid.Audio, fileid.Voice, fileid.Animation, fileid.Sticker} {
		d := &fileid.Descriptor{Type: tp, DC: 2, MediaID: 1, AccessHash: 2, FileReference: []byte{3}}
		loc, err := Resolve(d)
		require.NoError(t, err)
		assert.Equal(t, &tg.InputDocumentFileLocation{ID: 1, AccessHash: 2, FileReference: []byte{3}}, loc, tp.String())
	}
}

func TestResolvePhoto(t *testing.T) {
	d := &fileid.Descriptor{
		Type:            fileid.Photo,
		DC:              2,
		MediaID:         1,
		AccessHash:      2,
		FileReference:   []byte{3},
		ThumbnailSource: fileid.SourceThumbnail,
		ThumbnailSize:   "y",
	}
	loc, err := Resolve(d)
	require.NoError(t, err)
	assert.Equal(t, &tg.InputPhotoFileLocation{ID: 1, AccessHash: 2, FileReference: []byte{3}, ThumbSize: "y"}, loc)
}

func TestResolveChatPhoto(t *testing.T) {
	t.Run("legacy big channel", func(t *testing.T) {
		d := &fileid.Descriptor{
			Type:            fileid.ChatPhoto,
			DC:              1,
			ThumbnailSource: fileid.SourceChatPhotoBigLegacy,
			ChatID:          -1000000000010,
			ChatAccessHash:  77,
			VolumeID:        5,
			LocalID:         6,
		}
		loc, err := Resolve(d)
		require.NoError(t, err)
		assert.Equal(t, &tg.InputPeerPhotoFileLocationLegacy{
			Big:      true,
			Peer:     &tg.InputPeerChannel{ChannelID: 10, AccessHash: 77},
			VolumeID: 5,
			LocalID:  6,
		}, loc)
	})

	t.Run("small user", func(t *testing.T) {
		d := &fileid.Descriptor{
			Type:            fileid.ChatPhoto,
			DC:              1,
			MediaID:         99,
			ThumbnailSource: fileid.SourceChatPhotoSmall,
			ChatID:          12,
			ChatAccessHash:  3,
		}
		loc, err := Resolve(d)
		require.NoError(t, err)
		assert.Equal(t, &tg.InputPeerPhotoFileLocation{
			Peer:    &tg.InputPeerUser{UserID: 12, AccessHash: 3},
			PhotoID: 99,
		}, loc)
	})
}

func TestResolveStickerSetThumb(t *testing.T) {
	d := &fileid.Descriptor{
		Type:                 fileid.Thumbnail,
		DC:                   1,
		ThumbnailSource:      fileid.SourceStickerSetThumbnailVersion,
		StickerSetID:         1,
		StickerSetAccessHash: 2,
		StickerSetVersion:    3,
	}
	loc, err := Resolve(d)
	require.NoError(t, err)
	assert.Equal(t, &tg.InputStickerSetThumb{
		Stickerset:   &tg.InputStickerSetID{ID: 1, AccessHash: 2},
		ThumbVersion: 3,
	}, loc)
}

func TestResolveErrors(t *testing.T) {
	_, err := Resolve(&fileid.Descriptor{Type: fileid.Type(77), DC: 1})
	assert.ErrorIs(t, err, ErrUnsupportedType)

	_, err = Resolve(&fileid.Descriptor{Type: fileid.Document, DC: 1, URL: "https://example.com"})
	assert.ErrorIs(t, err, ErrWebLocation)
}
