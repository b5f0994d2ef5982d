package http_range

import (
	"strconv"
	"strings"

	"github.com/go-faster/errors"
)

type Range struct {
	Start int64
	End   int64
}

func (r Range) Length() int64 {
	return r.End - r.Start + 1
}

var (
	ErrNoOverlap = errors.New("invalid range: failed to overlap")

	ErrInvalid = errors.New("invalid range")
)

// Parse parses a Range header against a representation of size bytes.
// Syntactically broken specs make the whole header invalid, unsatisfiable
// ones are dropped.
func Parse(header string, size int64) ([]*Range, error) {
	index := strings.Index(header, "=")

	if index == -1 || strings.TrimSpace(header[:index]) != "bytes" {
		return nil, ErrInvalid
	}

	arr := strings.Split(header[index+1:], ",")
	ranges := make([]*Range, 0, len(arr))

	for _, value := range arr {
		r := strings.Split(strings.TrimSpace(value), "-")
		if len(r) != 2 {
			return nil, ErrInvalid
		}
		start, startErr := strconv.ParseInt(r[0], 10, 64)
		end, endErr := strconv.ParseInt(r[1], 10, 64)

		if startErr != nil && endErr != nil {
			return nil, ErrInvalid
		}
		if (startErr == nil && start < 0) || (endErr == nil && end < 0) {
			return nil, ErrInvalid
		}

		// -nnn and nnn-
		if startErr != nil {
			if r[0] != "" {
				return nil, ErrInvalid
			}
			if end == 0 {
				continue
			}
			start = max(size-end, 0)
			end = size - 1
		} else if endErr != nil {
			if r[1] != "" {
				return nil, ErrInvalid
			}
			end = size - 1
		} else if end < start {
			return nil, ErrInvalid
		}

		if end >= size {
			end = size - 1
		}

		if start > end || start >= size {
			continue
		}

		ranges = append(ranges, &Range{
			Start: start,
			End:   end,
		})
	}

	if len(ranges) == 0 {
		return nil, ErrNoOverlap
	}

	return ranges, nil
}
