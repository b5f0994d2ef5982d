package fileid

import (
	"encoding/base64"
	"strings"

	"github.com/go-faster/errors"
	"github.com/gotd/td/bin"
)

const (
	webLocationFlag   = 1 << 24
	fileReferenceFlag = 1 << 25

	currentMajor = 4
	currentMinor = 30
	oldestMajor  = 2
)

func malformed(format string, args ...any) error {
	return errors.Wrapf(ErrMalformedReference, format, args...)
}

// Decode parses a file identifier. Any framing problem is reported as
// ErrMalformedReference.
func Decode(reference string) (*Descriptor, error) {
	if reference == "" {
		return nil, malformed("empty reference")
	}

	raw, err := base64.RawURLEncoding.DecodeString(strings.TrimRight(reference, "="))
	if err != nil {
		return nil, malformed("base64: %v", err)
	}

	data, err := rleDecode(raw)
	if err != nil {
		return nil, err
	}
	if len(data) < 1 {
		return nil, malformed("empty payload")
	}

	major := int(data[len(data)-1])
	switch {
	case major < oldestMajor || major > currentMajor:
		return nil, malformed("unsupported version %d", major)
	case major < currentMajor:
		data = data[:len(data)-1]
	default:
		if len(data) < 2 {
			return nil, malformed("missing minor version")
		}
		data = data[:len(data)-2]
	}

	b := &bin.Buffer{Buf: data}
	d, err := decodeBody(b, major)
	if err != nil {
		return nil, err
	}
	if b.Len() != 0 {
		return nil, malformed("%d trailing bytes", b.Len())
	}
	return d, nil
}

func decodeBody(b *bin.Buffer, major int) (*Descriptor, error) {
	rawType, err := b.Int32()
	if err != nil {
		return nil, malformed("type: %v", err)
	}
	dc, err := b.Int32()
	if err != nil {
		return nil, malformed("dc: %v", err)
	}

	d := &Descriptor{
		Type: Type(rawType &^ (webLocationFlag | fileReferenceFlag)),
		DC:   int(dc),
	}
	if !d.Type.Valid() {
		return nil, malformed("unknown type %d", int32(d.Type))
	}
	if d.DC <= 0 {
		return nil, malformed("invalid dc %d", d.DC)
	}

	if rawType&webLocationFlag != 0 {
		if d.URL, err = b.String(); err != nil {
			return nil, malformed("url: %v", err)
		}
		if d.URL == "" {
			return nil, malformed("empty url")
		}
		if d.AccessHash, err = b.Long(); err != nil {
			return nil, malformed("access hash: %v", err)
		}
		return d, nil
	}

	if rawType&fileReferenceFlag != 0 {
		if d.FileReference, err = b.Bytes(); err != nil {
			return nil, malformed("file reference: %v", err)
		}
	}

	if d.MediaID, err = b.Long(); err != nil {
		return nil, malformed("media id: %v", err)
	}
	if d.AccessHash, err = b.Long(); err != nil {
		return nil, malformed("access hash: %v", err)
	}

	if !d.Type.IsPhoto() {
		return d, nil
	}

	if major < currentMajor {
		if d.VolumeID, err = b.Long(); err != nil {
			return nil, malformed("volume id: %v", err)
		}
	} else {
		source, err := b.Int32()
		if err != nil {
			return nil, malformed("thumbnail source: %v", err)
		}
		d.ThumbnailSource = ThumbnailSource(source)
	}

	if err := decodeSource(b, d); err != nil {
		return nil, err
	}
	return d, nil
}

func decodeSource(b *bin.Buffer, d *Descriptor) error {
	var err error
	switch d.ThumbnailSource {
	case SourceLegacy:
		if d.Secret, err = b.Long(); err != nil {
			return malformed("secret: %v", err)
		}
		d.LocalID, err = b.Int32()
	case SourceThumbnail:
		var fileType, size int32
		if fileType, err = b.Int32(); err != nil {
			return malformed("thumbnail type: %v", err)
		}
		if size, err = b.Int32(); err != nil {
			return malformed("thumbnail size: %v", err)
		}
		if size < 0 || size > 0x7f {
			return malformed("thumbnail size %d", size)
		}
		d.ThumbnailFileType = Type(fileType)
		d.ThumbnailSize = string(rune(size))
		d.LocalID, err = b.Int32()
	case SourceChatPhotoSmall, SourceChatPhotoBig:
		if d.ChatID, err = b.Long(); err != nil {
			return malformed("chat id: %v", err)
		}
		if d.ChatAccessHash, err = b.Long(); err != nil {
			return malformed("chat access hash: %v", err)
		}
		d.LocalID, err = b.Int32()
	case SourceStickerSetThumbnail:
		if d.StickerSetID, err = b.Long(); err != nil {
			return malformed("sticker set id: %v", err)
		}
		if d.StickerSetAccessHash, err = b.Long(); err != nil {
			return malformed("sticker set access hash: %v", err)
		}
		d.LocalID, err = b.Int32()
	case SourceChatPhotoSmallLegacy, SourceChatPhotoBigLegacy:
		if d.ChatID, err = b.Long(); err != nil {
			return malformed("chat id: %v", err)
		}
		if d.ChatAccessHash, err = b.Long(); err != nil {
			return malformed("chat access hash: %v", err)
		}
		if d.VolumeID, err = b.Long(); err != nil {
			return malformed("volume id: %v", err)
		}
		d.LocalID, err = b.Int32()
	case SourceStickerSetThumbnailLegacy:
		if d.StickerSetID, err = b.Long(); err != nil {
			return malformed("sticker set id: %v", err)
		}
		if d.StickerSetAccessHash, err = b.Long(); err != nil {
			return malformed("sticker set access hash: %v", err)
		}
		if d.VolumeID, err = b.Long(); err != nil {
			return malformed("volume id: %v", err)
		}
		d.LocalID, err = b.Int32()
	case SourceStickerSetThumbnailVersion:
		if d.StickerSetID, err = b.Long(); err != nil {
			return malformed("sticker set id: %v", err)
		}
		if d.StickerSetAccessHash, err = b.Long(); err != nil {
			return malformed("sticker set access hash: %v", err)
		}
		d.StickerSetVersion, err = b.Int32()
	default:
		return malformed("unknown thumbnail source %d", int32(d.ThumbnailSource))
	}
	if err != nil {
		return malformed("local id: %v", err)
	}
	return nil
}

// Encode packs d into the current (major 4) identifier format.
func Encode(d *Descriptor) (string, error) {
	if d == nil || !d.Type.Valid() {
		return "", errors.New("invalid descriptor type")
	}

	b := &bin.Buffer{}
	rawType := int32(d.Type)
	switch {
	case d.IsWeb():
		rawType |= webLocationFlag
	case len(d.FileReference) > 0:
		rawType |= fileReferenceFlag
	}
	b.PutInt32(rawType)
	b.PutInt32(int32(d.DC))

	if d.IsWeb() {
		b.PutString(d.URL)
		b.PutLong(d.AccessHash)
		return pack(b), nil
	}

	if len(d.FileReference) > 0 {
		b.PutBytes(d.FileReference)
	}
	b.PutLong(d.MediaID)
	b.PutLong(d.AccessHash)

	if d.Type.IsPhoto() {
		if err := encodeSource(b, d); err != nil {
			return "", err
		}
	}
	return pack(b), nil
}

func encodeSource(b *bin.Buffer, d *Descriptor) error {
	b.PutInt32(int32(d.ThumbnailSource))
	switch d.ThumbnailSource {
	case SourceLegacy:
		b.PutLong(d.Secret)
	case SourceThumbnail:
		if len(d.ThumbnailSize) != 1 {
			return errors.Errorf("thumbnail size %q must be a single character", d.ThumbnailSize)
		}
		b.PutInt32(int32(d.ThumbnailFileType))
		b.PutInt32(int32(d.ThumbnailSize[0]))
	case SourceChatPhotoSmall, SourceChatPhotoBig:
		b.PutLong(d.ChatID)
		b.PutLong(d.ChatAccessHash)
	case SourceStickerSetThumbnail:
		b.PutLong(d.StickerSetID)
		b.PutLong(d.StickerSetAccessHash)
	case SourceChatPhotoSmallLegacy, SourceChatPhotoBigLegacy:
		b.PutLong(d.ChatID)
		b.PutLong(d.ChatAccessHash)
		b.PutLong(d.VolumeID)
	case SourceStickerSetThumbnailLegacy:
		b.PutLong(d.StickerSetID)
		b.PutLong(d.StickerSetAccessHash)
		b.PutLong(d.VolumeID)
	case SourceStickerSetThumbnailVersion:
		b.PutLong(d.StickerSetID)
		b.PutLong(d.StickerSetAccessHash)
		b.PutInt32(d.StickerSetVersion)
		return nil
	default:
		return errors.Errorf("unknown thumbnail source %d", int32(d.ThumbnailSource))
	}
	b.PutInt32(d.LocalID)
	return nil
}

func pack(b *bin.Buffer) string {
	data := append(b.Raw(), currentMinor, currentMajor)
	return base64.RawURLEncoding.EncodeToString(rleEncode(data))
}

// rleDecode expands runs encoded as a zero byte followed by the run length.
func rleDecode(data []byte) ([]byte, error) {
	out := make([]byte, 0, len(data)*2)
	for i := 0; i < len(data); i++ {
		if data[i] != 0 {
			out = append(out, data[i])
			continue
		}
		i++
		if i == len(data) {
			return nil, malformed("truncated zero run")
		}
		if data[i] == 0 {
			return nil, malformed("empty zero run")
		}
		for n := data[i]; n > 0; n-- {
			out = append(out, 0)
		}
	}
	return out, nil
}

func rleEncode(data []byte) []byte {
	out := make([]byte, 0, len(data))
	var zeros byte
	flush := func() {
		if zeros > 0 {
			out = append(out, 0, zeros)
			zeros = 0
		}
	}
	for _, c := range data {
		if c != 0 {
			flush()
			out = append(out, c)
			continue
		}
		if zeros == 0xff {
			flush()
		}
		zeros++
	}
	flush()
	return out
}
