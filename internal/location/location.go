// Package location maps decoded file identifiers to upload.getFile locations.
package location

import (
	"github.com/go-faster/errors"
	"github.com/gotd/td/tg"

	"github.com/fastfinder/fastfinder/internal/fileid"
)

var (
	ErrUnsupportedType = errors.New("unsupported file type")
	ErrWebLocation     = errors.New("web files cannot be fetched with upload.getFile")
)

const maxChannelID = 1000000000000

// ChannelID converts a marked Bot API channel id (-100...) to the MTProto one.
func ChannelID(chatID int64) int64 {
	return -chatID - maxChannelID
}

// Peer builds the input peer addressed by a Bot API chat id.
func Peer(chatID, accessHash int64) tg.InputPeerClass {
	switch {
	case chatID > 0:
		return &tg.InputPeerUser{UserID: chatID, AccessHash: accessHash}
	case accessHash == 0:
		return &tg.InputPeerChat{ChatID: -chatID}
	default:
		return &tg.InputPeerChannel{ChannelID: ChannelID(chatID), AccessHash: accessHash}
	}
}

// Resolve returns the remote location for d.
func Resolve(d *fileid.Descriptor) (tg.InputFileLocationClass, error) {
	if d.IsWeb() {
		return nil, ErrWebLocation
	}

	switch d.Type {
	case fileid.ChatPhoto:
		return chatPhoto(d)
	case fileid.Photo, fileid.Wallpaper, fileid.EncryptedThumbnail:
		return photo(d), nil
	case fileid.Thumbnail:
		return thumbnail(d)
	case fileid.Voice, fileid.Video, fileid.Document, fileid.Encrypted, fileid.Temp,
		fileid.Sticker, fileid.Audio, fileid.Animation, fileid.VideoNote,
		fileid.SecureRaw, fileid.Secure, fileid.Background, fileid.DocumentAsFile:
		return document(d), nil
	default:
		return nil, errors.Wrapf(ErrUnsupportedType, "type %d", int32(d.Type))
	}
}

func chatPhoto(d *fileid.Descriptor) (tg.InputFileLocationClass, error) {
	peer := Peer(d.ChatID, d.ChatAccessHash)
	switch d.ThumbnailSource {
	case fileid.SourceChatPhotoSmallLegacy, fileid.SourceChatPhotoBigLegacy:
		return &tg.InputPeerPhotoFileLocationLegacy{
			Big:      d.ThumbnailSource.Big(),
			Peer:     peer,
			VolumeID: d.VolumeID,
			LocalID:  int(d.LocalID),
		}, nil
	case fileid.SourceChatPhotoSmall, fileid.SourceChatPhotoBig:
		return &tg.InputPeerPhotoFileLocation{
			Big:     d.ThumbnailSource.Big(),
			Peer:    peer,
			PhotoID: d.MediaID,
		}, nil
	default:
		return nil, errors.Wrapf(ErrUnsupportedType, "chat photo source %d", int32(d.ThumbnailSource))
	}
}

func thumbnail(d *fileid.Descriptor) (tg.InputFileLocationClass, error) {
	switch d.ThumbnailSource {
	case fileid.SourceStickerSetThumbnail, fileid.SourceStickerSetThumbnailVersion:
		return &tg.InputStickerSetThumb{
			Stickerset: &tg.InputStickerSetID{
				ID:         d.StickerSetID,
				AccessHash: d.StickerSetAccessHash,
			},
			ThumbVersion: int(d.StickerSetVersion),
		}, nil
	case fileid.SourceThumbnail:
		if d.ThumbnailFileType == fileid.Photo {
			return photo(d), nil
		}
		return document(d), nil
	default:
		return nil, errors.Wrapf(ErrUnsupportedType, "thumbnail source %d", int32(d.ThumbnailSource))
	}
}

func photo(d *fileid.Descriptor) *tg.InputPhotoFileLocation {
	return &tg.InputPhotoFileLocation{
		ID:            d.MediaID,
		AccessHash:    d.AccessHash,
		FileReference: d.FileReference,
		ThumbSize:     d.ThumbnailSize,
	}
}

func document(d *fileid.Descriptor) *tg.InputDocumentFileLocation {
	return &tg.InputDocumentFileLocation{
		ID:            d.MediaID,
		AccessHash:    d.AccessHash,
		FileReference: d.FileReference,
		ThumbSize:     d.ThumbnailSize,
	}
}
