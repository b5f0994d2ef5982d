// Package tgtest contains fakes for code that talks to Telegram through tg.Invoker.
package tgtest

import (
	"context"
	"strconv"

	"github.com/go-faster/errors"
	"github.com/gotd/td/bin"
	"github.com/gotd/td/tg"
	"github.com/gotd/td/tgerr"
)

// Respond encodes result and decodes it into output, the way a real
// connection hands an RPC result back to tg.Client.
func Respond(output bin.Decoder, result bin.Encoder) error {
	var b bin.Buffer
	if err := result.Encode(&b); err != nil {
		return errors.Wrap(err, "encode result")
	}
	return output.Decode(&b)
}

// FloodWait returns the RPC error for a FLOOD_WAIT of the given seconds.
func FloodWait(seconds int) error {
	return tgerr.New(420, "FLOOD_WAIT_"+strconv.Itoa(seconds))
}

// File answers upload.getFile requests from an in-memory byte slice.
type File struct {
	Data []byte
	// Hook runs before every request and may return an error instead of data.
	Hook func(ctx context.Context, req *tg.UploadGetFileRequest) error
}

func (f *File) Invoke(ctx context.Context, input bin.Encoder, output bin.Decoder) error {
	req, ok := input.(*tg.UploadGetFileRequest)
	if !ok {
		return errors.Errorf("unexpected request %T", input)
	}
	if f.Hook != nil {
		if err := f.Hook(ctx, req); err != nil {
			return err
		}
	}

	start := min(req.Offset, int64(len(f.Data)))
	end := min(req.Offset+int64(req.Limit), int64(len(f.Data)))
	return Respond(output, &tg.UploadFile{
		Type:  &tg.StorageFilePartial{},
		Bytes: f.Data[start:end],
	})
}
