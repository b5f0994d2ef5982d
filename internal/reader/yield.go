// Package reader streams byte ranges of Telegram files chunk by chunk.
package reader

import (
	"context"
	"iter"

	"github.com/go-faster/errors"

	"github.com/fastfinder/fastfinder/internal/chunk"
)

var (
	ErrChunkTimeout       = errors.New("chunk fetch timed out")
	ErrFloodWaitExhausted = errors.New("flood wait retries exhausted")
	ErrCDNRedirect        = errors.New("cdn redirect is not supported")
)

type ChunkSource interface {
	Chunk(ctx context.Context, offset int64, limit int64) ([]byte, error)
}

// Yield returns the trimmed parts of plan in offset order. Parts are fetched
// one at a time and only when the consumer asks for the next one. The
// sequence ends at the last part, at the first empty chunk or after
// yielding an error.
func Yield(ctx context.Context, src ChunkSource, plan chunk.Plan) iter.Seq2[[]byte, error] {
	return func(yield func([]byte, error) bool) {
		for part := range plan.Parts {
			if err := ctx.Err(); err != nil {
				yield(nil, err)
				return
			}

			offset := plan.PartOffset(part)
			data, err := src.Chunk(ctx, offset, plan.ChunkSize)
			if err != nil {
				yield(nil, errors.Wrapf(err, "part %d at %d", part, offset))
				return
			}
			if len(data) == 0 {
				return
			}
			if !yield(plan.Trim(part, data), nil) {
				return
			}
		}
	}
}

func failed(err error) iter.Seq2[[]byte, error] {
	return func(yield func([]byte, error) bool) {
		yield(nil, err)
	}
}
