package vorbis

// RingBuffer is the interleaved overlap-add output buffer a StreamDecoder
// writes decoded blocks into and a caller drains via ReadSamples. It stores
// whole frames (one sample per channel) in a circular array sized to hold
// both block sizes' worth of overlap plus a little slack.
type RingBuffer struct {
	channels     int
	frameCap     int
	data         []float32 // frameCap * channels, interleaved
	start, end   int        // frame counters (monotonic; index into data via % frameCap)
	writePos     int        // frame offset of the next block's overlap seam
}

// NewRingBuffer allocates a buffer sized for a stream with the given
// channel count and block sizes.
func NewRingBuffer(channels, block0, block1 int) *RingBuffer {
	frameCap := block1/2 + block0/2 + channels
	return &RingBuffer{
		channels: channels,
		frameCap: frameCap,
		data:     make([]float32, frameCap*channels),
	}
}

// Len reports how many frames are currently available to read.
func (rb *RingBuffer) Len() int { return rb.end - rb.start }

func (rb *RingBuffer) frameIndex(frame int) int {
	idx := frame % rb.frameCap
	if idx < 0 {
		idx += rb.frameCap
	}
	return idx
}

// AddBlock overlap-adds one decoded, windowed block. windowed holds one
// slice of length blockSize per channel. The first half is summed onto
// whatever is already at the current write position (the tail of the
// previous block's second half); the second half overwrites fresh buffer
// space. The write position then advances by half the block size, as does
// the logical end of available output.
func (rb *RingBuffer) AddBlock(windowed [][]float32, blockSize int) {
	half := blockSize / 2

	for i := 0; i < half; i++ {
		frame := rb.writePos + i
		base := rb.frameIndex(frame) * rb.channels
		for ch := 0; ch < rb.channels; ch++ {
			rb.data[base+ch] += windowed[ch][i]
		}
	}
	for i := half; i < blockSize; i++ {
		frame := rb.writePos + i
		base := rb.frameIndex(frame) * rb.channels
		for ch := 0; ch < rb.channels; ch++ {
			rb.data[base+ch] = windowed[ch][i]
		}
	}

	rb.writePos += half
	rb.end += half
}

// CopyTo drains up to len(dst)/channels frames into dst (interleaved) and
// advances start by the number of frames copied. Returns the number of
// floats written.
func (rb *RingBuffer) CopyTo(dst []float32) int {
	framesWanted := len(dst) / rb.channels
	available := rb.Len()
	if framesWanted > available {
		framesWanted = available
	}
	for i := 0; i < framesWanted; i++ {
		base := rb.frameIndex(rb.start+i) * rb.channels
		copy(dst[i*rb.channels:(i+1)*rb.channels], rb.data[base:base+rb.channels])
	}
	rb.start += framesWanted
	return framesWanted * rb.channels
}

// RemoveItems advances start by n frames without reading them, clamped to
// what's available. Used to discard preroll after a seek.
func (rb *RingBuffer) RemoveItems(n int) {
	if n > rb.Len() {
		n = rb.Len()
	}
	rb.start += n
}

// Clear resets both cursors and zeroes the backing storage, so no stale
// overlap survives a seek or parameter change.
func (rb *RingBuffer) Clear() {
	rb.start, rb.end, rb.writePos = 0, 0, 0
	for i := range rb.data {
		rb.data[i] = 0
	}
}
