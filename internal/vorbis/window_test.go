package vorbis

import (
	"testing"

	"github.com/stretchr/testify/require"
)

// TestTaperSumOfSquaresIdentity checks the canonical Vorbis window property
// that w[i]^2 + w[n-1-i]^2 == 1 for every sample of a single taper half,
// which falls directly out of sin^2(x) + sin^2(pi/2 - x) == 1.
func TestTaperSumOfSquaresIdentity(t *testing.T) {
	for _, n := range []int{8, 64, 1024} {
		w := taper(n)
		require.Len(t, w, n)
		for i := 0; i < n; i++ {
			sum := float64(w[i])*float64(w[i]) + float64(w[n-1-i])*float64(w[n-1-i])
			require.InDelta(t, 1.0, sum, 1e-5)
		}
	}
}

// TestShortWindowSumOfSquares verifies the overlap form of the identity
// across the whole assembled short-block window, which is two back-to-back
// equal-length tapers with no flat plateau: each sample of the rising half
// pairs with the sample half a window later, w[i]^2 + w[i+L/2]^2 == 1.
func TestShortWindowSumOfSquares(t *testing.T) {
	wc := NewWindowCache(256, 2048)
	w := wc.Window(false, true, true)
	require.Len(t, w, 256)
	half := len(w) / 2
	for i := 0; i < half; i++ {
		sum := float64(w[i])*float64(w[i]) + float64(w[i+half])*float64(w[i+half])
		require.InDelta(t, 1.0, sum, 1e-5)
	}
}

// TestLongWindowPlateauIsUnity checks that a long block window sandwiched
// between two long neighbors reaches 1.0 at its centre. With two long
// neighbors the plateau has zero width, so the centre is where the rising
// and falling tapers meet.
func TestLongWindowPlateauIsUnity(t *testing.T) {
	wc := NewWindowCache(256, 2048)
	w := wc.Window(true, true, true)
	require.Len(t, w, 2048)
	mid := len(w) / 2
	require.InDelta(t, 1.0, w[mid], 1e-6)
}

// TestWindowCacheDistinguishesNeighborCombinations confirms that the long
// block's window starts differently after a short previous block than after
// a long one, when the short block size differs from the long one.
func TestWindowCacheDistinguishesNeighborCombinations(t *testing.T) {
	wc := NewWindowCache(256, 2048)
	allLong := wc.Window(true, true, true)
	shortPrev := wc.Window(true, false, true)
	require.NotEqual(t, allLong[0], shortPrev[0])
}
