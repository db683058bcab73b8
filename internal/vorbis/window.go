package vorbis

import "math"

// taper returns the n-sample rising half of a Vorbis window:
// sin(pi/2 * sin^2(pi/2 * (i+0.5)/n)).
func taper(n int) []float32 {
	w := make([]float32, n)
	for i := 0; i < n; i++ {
		x := math.Sin(math.Pi / 2 * (float64(i) + 0.5) / float64(n))
		w[i] = float32(math.Sin(math.Pi / 2 * x * x))
	}
	return w
}

// buildWindow assembles a window of length blockSize from a leftN-sample
// rising taper, a flat unity plateau, and an rightN-sample falling taper
// (the left taper read backwards). leftN == rightN == blockSize/2 collapses
// the plateau to zero width, which is exactly the short-block case.
func buildWindow(blockSize, leftN, rightN int) []float32 {
	w := make([]float32, blockSize)
	left := taper(leftN)
	copy(w[:leftN], left)
	for i := leftN; i < blockSize-rightN; i++ {
		w[i] = 1
	}
	right := taper(rightN)
	for k := 0; k < rightN; k++ {
		w[blockSize-rightN+k] = right[rightN-1-k]
	}
	return w
}

// WindowCache precomputes the window shapes a stream's two block sizes can
// require: four variants for the long block (one per combination of
// previous/next block being long or short) and one for the short block
// (whose neighbors never affect its own taper length).
type WindowCache struct {
	block0, block1 int

	// indexed [prevLong][nextLong]
	long  [2][2][]float32
	short []float32
}

// NewWindowCache builds every window shape used by a stream with the given
// block sizes (block0 <= block1, both powers of two).
func NewWindowCache(block0, block1 int) *WindowCache {
	wc := &WindowCache{block0: block0, block1: block1}
	for _, prevLong := range []bool{false, true} {
		for _, nextLong := range []bool{false, true} {
			leftN := block0 / 2
			if prevLong {
				leftN = block1 / 2
			}
			rightN := block0 / 2
			if nextLong {
				rightN = block1 / 2
			}
			wc.long[boolIdx(prevLong)][boolIdx(nextLong)] = buildWindow(block1, leftN, rightN)
		}
	}
	wc.short = buildWindow(block0, block0/2, block0/2)
	return wc
}

func boolIdx(b bool) int {
	if b {
		return 1
	}
	return 0
}

// Window returns the window to apply to a block of blockFlag (true = long),
// given whether the previous and next blocks are long.
func (wc *WindowCache) Window(blockFlag, prevLong, nextLong bool) []float32 {
	if !blockFlag {
		return wc.short
	}
	return wc.long[boolIdx(prevLong)][boolIdx(nextLong)]
}
