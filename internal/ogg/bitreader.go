package ogg

import (
	"math"

	"github.com/philipch07/vorbisdec/internal/pool"
)

// BitReader reads LSB-first bit fields from a packet's byte stream, walking
// across continuation fragments (merged_tail) transparently. Reads past the
// end of the packet return zero bits and set the EOP flag rather than
// erroring, since end-of-packet is a normal per-field outcome, not a fatal
// condition (§7).
type BitReader struct {
	packet *Packet
	pool   *pool.BufferPool

	data    []byte
	poolBuf []byte // full-size slot backing data, when borrowed from pool
	bitPos  int
	loaded  bool
	eop     bool
}

// NewBitReader creates a reader over packet. bp may be nil, in which case
// the backing buffer is allocated directly instead of pooled.
func NewBitReader(packet *Packet, bp *pool.BufferPool) *BitReader {
	return &BitReader{packet: packet, pool: bp}
}

func (r *BitReader) ensureLoaded() error {
	if r.loaded {
		return nil
	}
	data, err := r.packet.Bytes()
	if err != nil {
		return err
	}

	if r.pool != nil && r.pool.SlotBytes() >= len(data) {
		slot := r.pool.Get()
		copy(slot, data)
		r.poolBuf = slot
		r.data = slot[:len(data)]
	} else {
		r.data = data
	}
	r.loaded = true
	return nil
}

// Release returns any pooled backing buffer. It is a no-op when the reader
// was constructed without a pool or the packet outgrew the pool's slot
// size.
func (r *BitReader) Release() {
	if r.poolBuf != nil {
		_ = r.pool.Put(r.poolBuf)
		r.poolBuf = nil
	}
	r.data = nil
}

// ReadBit reads a single bit.
func (r *BitReader) ReadBit() (uint32, error) {
	v, err := r.ReadBits(1)
	return uint32(v), err
}

// ReadBits reads n bits (1 <= n <= 64), LSB first, and returns them
// right-aligned in the result.
func (r *BitReader) ReadBits(n uint) (uint64, error) {
	if n == 0 {
		return 0, nil
	}
	if n > 64 {
		return 0, NewError(OutOfRange, "read_bits: n out of range")
	}
	if err := r.ensureLoaded(); err != nil {
		return 0, err
	}

	var out uint64
	totalBits := len(r.data) * 8
	for i := uint(0); i < n; i++ {
		if r.bitPos >= totalBits {
			r.eop = true
			r.bitPos++
			continue
		}
		byteIdx := r.bitPos >> 3
		bitIdx := uint(r.bitPos & 7)
		bit := (r.data[byteIdx] >> bitIdx) & 1
		out |= uint64(bit) << i
		r.bitPos++
	}
	return out, nil
}

// ReadU32 reads 32 bits and reinterprets them as a uint32.
func (r *BitReader) ReadU32() (uint32, error) {
	v, err := r.ReadBits(32)
	return uint32(v), err
}

// TryPeekBits peeks up to n bits without consuming them, reporting how many
// bits were actually available (which may be less than n at end of
// packet).
func (r *BitReader) TryPeekBits(n uint) (uint64, uint) {
	if err := r.ensureLoaded(); err != nil {
		return 0, 0
	}
	save := r.bitPos
	saveEOP := r.eop

	v, _ := r.ReadBits(n)

	totalBits := len(r.data) * 8
	avail := n
	if save+int(n) > totalBits {
		if save >= totalBits {
			avail = 0
		} else {
			avail = uint(totalBits - save)
		}
	}

	r.bitPos = save
	r.eop = saveEOP
	return v, avail
}

// SkipBits advances the bit cursor by n bits without reading them. A
// negative n rewinds.
func (r *BitReader) SkipBits(n int) {
	r.bitPos += n
	if r.bitPos < 0 {
		r.bitPos = 0
	}
}

// ResetBitReader rewinds to the start of the packet and clears EOP.
func (r *BitReader) ResetBitReader() {
	r.bitPos = 0
	r.eop = false
}

// EOP reports whether any read has run past the end of the packet since
// construction or the last ResetBitReader.
func (r *BitReader) EOP() bool { return r.eop }

// ReadVorbisFloat32 decodes the 32-bit Vorbis-packed float used by
// codebook VQ lookup parameters: 1 sign bit, a 10-bit exponent biased by
// 788, and a 21-bit mantissa (bits 0..20), per the canonical Vorbis I
// float32_unpack algorithm.
func (r *BitReader) ReadVorbisFloat32() (float32, error) {
	bits, err := r.ReadBits(32)
	if err != nil {
		return 0, err
	}
	v := uint32(bits)

	mantissa := int64(v & 0x1fffff)
	sign := v&0x80000000 != 0
	exponent := int((v >> 21) & 0x3ff)

	if sign {
		mantissa = -mantissa
	}

	return float32(math.Ldexp(float64(mantissa), exponent-788)), nil
}

// Done releases the underlying packet.
func (r *BitReader) Done() {
	r.packet.Done()
}
