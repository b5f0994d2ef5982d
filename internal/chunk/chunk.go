// Package chunk plans aligned upload.getFile requests for a byte range.
package chunk

import (
	"github.com/go-faster/errors"
)

const kib = 1024

var ErrInvalidRange = errors.New("invalid byte range")

// Planner picks chunk sizes of 1 KiB * 2^e with e clamped to
// [MinExponent, MaxExponent].
type Planner struct {
	MinExponent int
	MaxExponent int
	// Fallback is used for empty or single-byte requests.
	Fallback int64
}

func DefaultPlanner() Planner {
	return Planner{MinExponent: 2, MaxExponent: 10, Fallback: 256 * kib}
}

// ChunkSize returns the smallest allowed power of two chunk covering length bytes.
func (p Planner) ChunkSize(length int64) int64 {
	if length <= 0 {
		return p.Fallback
	}
	e := max(p.MinExponent, 0)
	for e < p.MaxExponent && int64(kib)<<e < length {
		e++
	}
	return int64(kib) << e
}

// Plan describes the aligned requests serving the inclusive range [From, Until].
type Plan struct {
	From, Until int64

	ChunkSize    int64
	Offset       int64
	FirstPartCut int64
	LastPartCut  int64
	Parts        int64
}

func (p Planner) Plan(from, until int64) (Plan, error) {
	if from < 0 || until < from {
		return Plan{}, errors.Wrapf(ErrInvalidRange, "%d-%d", from, until)
	}

	size := p.ChunkSize(until - from)
	offset := from - from%size

	return Plan{
		From:         from,
		Until:        until,
		ChunkSize:    size,
		Offset:       offset,
		FirstPartCut: from - offset,
		LastPartCut:  until%size + 1,
		Parts:        (until-offset)/size + 1,
	}, nil
}

// Length is the number of bytes the plan yields.
func (p Plan) Length() int64 {
	return p.Until - p.From + 1
}

// PartOffset is the request offset of the given part.
func (p Plan) PartOffset(part int64) int64 {
	return p.Offset + part*p.ChunkSize
}

// Trim cuts a fetched part down to the bytes inside the range. A single part
// plan is cut on both ends.
func (p Plan) Trim(part int64, data []byte) []byte {
	lo, hi := int64(0), int64(len(data))
	if part == 0 {
		lo = p.FirstPartCut
	}
	if part == p.Parts-1 {
		hi = min(hi, p.LastPartCut)
	}
	lo = min(lo, hi)
	return data[lo:hi]
}
