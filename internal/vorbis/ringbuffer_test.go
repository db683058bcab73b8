package vorbis

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func constBlock(v float32, n int) [][]float32 {
	row := make([]float32, n)
	for i := range row {
		row[i] = v
	}
	return [][]float32{row}
}

// TestRingBufferOverlapAdd verifies that the second half of one block sums
// with the first half of the next, which is the entire point of overlap-add
// reconstruction.
func TestRingBufferOverlapAdd(t *testing.T) {
	rb := NewRingBuffer(1, 4, 8)

	rb.AddBlock(constBlock(1, 4), 4)
	rb.AddBlock(constBlock(2, 4), 4)

	require.Equal(t, 4, rb.Len())
	dst := make([]float32, 4)
	n := rb.CopyTo(dst)
	require.Equal(t, 4, n)
	require.Equal(t, []float32{1, 1, 3, 3}, dst)
}

// TestRingBufferCopyToPartialDrain checks that CopyTo only advances start
// by what it actually copied, leaving the remainder available.
func TestRingBufferCopyToPartialDrain(t *testing.T) {
	rb := NewRingBuffer(1, 4, 8)
	rb.AddBlock(constBlock(1, 4), 4)
	rb.AddBlock(constBlock(2, 4), 4)

	dst := make([]float32, 2)
	n := rb.CopyTo(dst)
	require.Equal(t, 2, n)
	require.Equal(t, []float32{1, 1}, dst)
	require.Equal(t, 2, rb.Len())

	rest := make([]float32, 2)
	n2 := rb.CopyTo(rest)
	require.Equal(t, 2, n2)
	require.Equal(t, []float32{3, 3}, rest)
	require.Equal(t, 0, rb.Len())
}

// TestRingBufferRemoveItemsClampsToAvailable verifies preroll discard after
// a seek never advances past what's actually buffered.
func TestRingBufferRemoveItemsClampsToAvailable(t *testing.T) {
	rb := NewRingBuffer(1, 4, 8)
	rb.AddBlock(constBlock(1, 4), 4)

	rb.RemoveItems(1000)
	require.Equal(t, 0, rb.Len())
}

// TestRingBufferClearZeroesState confirms Clear resets cursors and backing
// storage so no stale overlap survives into the next stream.
func TestRingBufferClearZeroesState(t *testing.T) {
	rb := NewRingBuffer(1, 4, 8)
	rb.AddBlock(constBlock(1, 4), 4)
	rb.Clear()

	require.Equal(t, 0, rb.Len())
	dst := make([]float32, 4)
	n := rb.CopyTo(dst)
	require.Equal(t, 0, n)

	rb.AddBlock(constBlock(5, 4), 4)
	out := make([]float32, 2)
	rb.CopyTo(out)
	require.Equal(t, []float32{5, 5}, out)
}
