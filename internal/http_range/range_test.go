package http_range

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse(t *testing.T) {
	tests := []struct {
		header string
		want   []*Range
	}{
		{"bytes=0-1023", []*Range{{0, 1023}}},
		{"bytes=100-", []*Range{{100, 4999}}},
		{"bytes=-500", []*Range{{4500, 4999}}},
		{"bytes=-9000", []*Range{{0, 4999}}},
		{"bytes=4000-9000", []*Range{{4000, 4999}}},
		{"bytes=0-1, 5-9", []*Range{{0, 1}, {5, 9}}},
		{"bytes=6000-7000, 0-0", []*Range{{0, 0}}},
	}
	for _, tt := range tests {
		t.Run(tt.header, func(t *testing.T) {
			got, err := Parse(tt.header, 5000)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParseErrors(t *testing.T) {
	invalid := []string{"", "bytes", "items=0-1", "bytes=a-b", "bytes=5", "bytes=1-2-3", "bytes=10-5", "bytes=-", "bytes=x-5"}
	for _, h := range invalid {
		_, err := Parse(h, 5000)
		assert.ErrorIs(t, err, ErrInvalid, h)
	}

	for _, h := range []string{"bytes=5000-", "bytes=6000-7000", "bytes=-0"} {
		_, err := Parse(h, 5000)
		assert.ErrorIs(t, err, ErrNoOverlap, h)
	}
}

func TestRangeLength(t *testing.T) {
	assert.Equal(t, int64(1024), Range{Start: 0, End: 1023}.Length())
}
