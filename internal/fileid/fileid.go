// Package fileid decodes and encodes Bot API style file identifiers.
//
// A file identifier is the URL-safe base64 form of a zero-run-length packed
// little-endian structure. The structure carries the media type, the
// datacenter holding the file and everything needed to build an
// upload.getFile location.
package fileid

import (
	"github.com/go-faster/errors"
)

// Type is the media class stored in a file identifier.
type Type int32

const (
	Thumbnail Type = iota
	ChatPhoto
	Photo
	Voice
	Video
	Document
	Encrypted
	Temp
	Sticker
	Audio
	Animation
	EncryptedThumbnail
	Wallpaper
	VideoNote
	SecureRaw
	Secure
	Background
	DocumentAsFile
)

var typeNames = [...]string{
	Thumbnail:          "thumbnail",
	ChatPhoto:          "chat_photo",
	Photo:              "photo",
	Voice:              "voice",
	Video:              "video",
	Document:           "document",
	Encrypted:          "encrypted",
	Temp:               "temp",
	Sticker:            "sticker",
	Audio:              "audio",
	Animation:          "animation",
	EncryptedThumbnail: "encrypted_thumbnail",
	Wallpaper:          "wallpaper",
	VideoNote:          "video_note",
	SecureRaw:          "secure_raw",
	Secure:             "secure",
	Background:         "background",
	DocumentAsFile:     "document_as_file",
}

func (t Type) String() string {
	if t.Valid() {
		return typeNames[t]
	}
	return "unknown"
}

func (t Type) Valid() bool {
	return t >= Thumbnail && t <= DocumentAsFile
}

// IsPhoto reports whether identifiers of this type carry a photo size source.
func (t Type) IsPhoto() bool {
	switch t {
	case Thumbnail, ChatPhoto, Photo, Wallpaper, EncryptedThumbnail:
		return true
	default:
		return false
	}
}

// ThumbnailSource tells how a photo-class identifier addresses its size.
type ThumbnailSource int32

const (
	SourceLegacy ThumbnailSource = iota
	SourceThumbnail
	SourceChatPhotoSmall
	SourceChatPhotoBig
	SourceStickerSetThumbnail
	SourceChatPhotoSmallLegacy
	SourceChatPhotoBigLegacy
	SourceStickerSetThumbnailLegacy
	SourceStickerSetThumbnailVersion
)

func (s ThumbnailSource) Valid() bool {
	return s >= SourceLegacy && s <= SourceStickerSetThumbnailVersion
}

// Big reports whether the source addresses the big variant of a chat photo.
func (s ThumbnailSource) Big() bool {
	return s == SourceChatPhotoBig || s == SourceChatPhotoBigLegacy
}

// ErrMalformedReference is returned for any identifier whose envelope
// cannot be decoded.
var ErrMalformedReference = errors.New("malformed file reference")

// Descriptor is a decoded file identifier. It is treated as immutable.
type Descriptor struct {
	Type          Type
	DC            int
	MediaID       int64
	AccessHash    int64
	FileReference []byte
	URL           string

	ThumbnailSource   ThumbnailSource
	ThumbnailFileType Type
	ThumbnailSize     string
	VolumeID          int64
	LocalID           int32
	Secret            int64

	ChatID         int64
	ChatAccessHash int64

	StickerSetID         int64
	StickerSetAccessHash int64
	StickerSetVersion    int32
}

// IsWeb reports whether the identifier points to a remote web file.
func (d *Descriptor) IsWeb() bool {
	return d.URL != ""
}
