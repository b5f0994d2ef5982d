package chunk

import (
	"math/bits"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestChunkSize(t *testing.T) {
	p := DefaultPlanner()

	assert.Equal(t, int64(256*kib), p.ChunkSize(0))
	assert.Equal(t, int64(256*kib), p.ChunkSize(-5))
	assert.Equal(t, int64(4*kib), p.ChunkSize(1))
	assert.Equal(t, int64(4*kib), p.ChunkSize(4096))
	assert.Equal(t, int64(8*kib), p.ChunkSize(4097))
	assert.Equal(t, int64(1024*kib), p.ChunkSize(1<<40))
}

func TestChunkSizeBounds(t *testing.T) {
	p := DefaultPlanner()
	for length := int64(1); length < 1<<24; length = length*3 + 1 {
		size := p.ChunkSize(length)
		assert.Equal(t, 1, bits.OnesCount64(uint64(size)), "power of two for %d", length)
		assert.GreaterOrEqual(t, size, int64(4*kib))
		assert.LessOrEqual(t, size, int64(1024*kib))
	}
}

func TestPlanFirstKilobyteWithoutMinimumClamp(t *testing.T) {
	p := Planner{MinExponent: 0, MaxExponent: 10, Fallback: 256 * kib}

	plan, err := p.Plan(0, 1023)
	require.NoError(t, err)
	assert.Equal(t, int64(1024), plan.ChunkSize)
	assert.Equal(t, int64(0), plan.Offset)
	assert.Equal(t, int64(0), plan.FirstPartCut)
	assert.Equal(t, int64(1024), plan.LastPartCut)
	assert.Equal(t, int64(1), plan.Parts)
	assert.Equal(t, int64(1024), plan.Length())
}

func TestPlanAlignment(t *testing.T) {
	p := DefaultPlanner()
	for _, r := range [][2]int64{{0, 0}, {1, 1}, {5000, 9000}, {4095, 4096}, {1 << 20, 3 << 20}, {123456, 7654321}} {
		plan, err := p.Plan(r[0], r[1])
		require.NoError(t, err)
		assert.Zero(t, plan.Offset%plan.ChunkSize)
		assert.LessOrEqual(t, plan.Offset, r[0])
		assert.Less(t, r[0], plan.Offset+plan.ChunkSize)
		assert.LessOrEqual(t, r[1], plan.PartOffset(plan.Parts-1)+plan.ChunkSize-1)
		assert.GreaterOrEqual(t, r[1], plan.PartOffset(plan.Parts-1))
	}
}

func TestPlanStraddlingBoundary(t *testing.T) {
	p := Planner{MinExponent: 0, MaxExponent: 0, Fallback: kib}

	plan, err := p.Plan(1000, 1100)
	require.NoError(t, err)
	assert.Equal(t, int64(1024), plan.ChunkSize)
	assert.Equal(t, int64(2), plan.Parts)
	assert.Equal(t, int64(1000), plan.FirstPartCut)
	assert.Equal(t, int64(77), plan.LastPartCut)
}

func TestPlanInvalid(t *testing.T) {
	p := DefaultPlanner()
	_, err := p.Plan(-1, 10)
	assert.ErrorIs(t, err, ErrInvalidRange)
	_, err = p.Plan(10, 9)
	assert.ErrorIs(t, err, ErrInvalidRange)
}

func TestTrim(t *testing.T) {
	data := []byte("0123456789")

	single := Plan{FirstPartCut: 2, LastPartCut: 5, Parts: 1}
	assert.Equal(t, []byte("234"), single.Trim(0, data))

	multi := Plan{FirstPartCut: 2, LastPartCut: 5, Parts: 3}
	assert.Equal(t, []byte("23456789"), multi.Trim(0, data))
	assert.Equal(t, data, multi.Trim(1, data))
	assert.Equal(t, []byte("01234"), multi.Trim(2, data))

	short := Plan{FirstPartCut: 2, LastPartCut: 50, Parts: 1}
	assert.Equal(t, []byte("23456789"), short.Trim(0, data))

	past := Plan{FirstPartCut: 20, LastPartCut: 50, Parts: 1}
	assert.Empty(t, past.Trim(0, data))
}
