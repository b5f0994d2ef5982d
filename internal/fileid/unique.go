package fileid

import (
	"encoding/base64"

	"github.com/gotd/td/bin"
)

type uniqueType int32

const (
	uniqueWeb uniqueType = iota
	uniquePhoto
	uniqueDocument
	uniqueSecure
	uniqueEncrypted
	uniqueTemp
)

func (d *Descriptor) uniqueType() uniqueType {
	switch {
	case d.IsWeb():
		return uniqueWeb
	case d.Type == Secure || d.Type == SecureRaw:
		return uniqueSecure
	case d.Type == Encrypted:
		return uniqueEncrypted
	case d.Type == Temp:
		return uniqueTemp
	default:
		return uniqueDocument
	}
}

// UniqueID returns an identifier that stays the same for one stored object
// no matter which bot or file reference produced the descriptor.
func (d *Descriptor) UniqueID() string {
	b := &bin.Buffer{}
	t := d.uniqueType()
	b.PutInt32(int32(t))
	if t == uniqueWeb {
		b.PutString(d.URL)
	} else {
		b.PutLong(d.MediaID)
	}
	return base64.RawURLEncoding.EncodeToString(rleEncode(b.Raw()))
}
