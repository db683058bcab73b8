package vorbis

import (
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/philipch07/vorbisdec/internal/ogg"
	"github.com/philipch07/vorbisdec/internal/pool"
)

// bitWriter packs bits LSB-first into bytes, mirroring what ogg.BitReader
// expects to read back.
type bitWriter struct {
	bytes   []byte
	bitPos  int
}

func (w *bitWriter) WriteBits(value uint64, n int) {
	for i := 0; i < n; i++ {
		byteIdx := w.bitPos >> 3
		for byteIdx >= len(w.bytes) {
			w.bytes = append(w.bytes, 0)
		}
		bit := byte((value >> uint(i)) & 1)
		w.bytes[byteIdx] |= bit << uint(w.bitPos&7)
		w.bitPos++
	}
}

// memSource is a minimal in-memory ogg.ByteSource for building a single
// synthetic packet to feed a codebook parse.
type memSource struct {
	data []byte
	lock *ogg.Lock
}

func newMemSource(data []byte) *memSource { return &memSource{data: data, lock: ogg.NewLock()} }

func (s *memSource) ReadAt(p []byte, pos int64) (int, error) {
	if pos >= int64(len(s.data)) {
		return 0, nil
	}
	return copy(p, s.data[pos:]), nil
}
func (s *memSource) Length() (int64, error)         { return int64(len(s.data)), nil }
func (s *memSource) CanSeek() bool                  { return true }
func (s *memSource) Close() error                    { return nil }
func (s *memSource) TakeLock(h any) error           { return s.lock.TakeLock(h) }
func (s *memSource) ReleaseLock(h any) error        { return s.lock.ReleaseLock(h) }

func packetFromBytes(t *testing.T, body []byte) *ogg.Packet {
	t.Helper()
	segTable := []byte{}
	remaining := len(body)
	for remaining >= 255 {
		segTable = append(segTable, 255)
		remaining -= 255
	}
	segTable = append(segTable, byte(remaining))

	const pageHeaderSize = 27
	hdr := make([]byte, pageHeaderSize)
	copy(hdr[0:4], "OggS")
	hdr[5] = 0x02 | 0x04 // BOS + EOS: a single-packet page
	binary.LittleEndian.PutUint32(hdr[14:18], uint32(5))
	hdr[26] = byte(len(segTable))

	full := append(append(append([]byte{}, hdr...), segTable...), body...)
	crc := ogg.Checksum(0, full)
	binary.LittleEndian.PutUint32(full[22:26], crc)

	src := newMemSource(full)
	br := ogg.NewBufferedReader(src, 4096, 1<<20)
	pages := ogg.NewPageReader(br)
	reader := ogg.NewPacketReader(pages, br, 5)
	packet, err := reader.GetNextPacket()
	require.NoError(t, err)
	require.NotNil(t, packet)
	return packet
}

// buildTinyCodebook encodes a 4-entry, 1-dimension, map_type-0 codebook
// with lengths [1,2,3,3] (a complete Kraft-sum-1 tree), followed by the
// four codewords that canonical Huffman assignment is expected to produce
// for that exact length list.
func buildTinyCodebook() []byte {
	w := &bitWriter{}
	w.WriteBits(0x564342, 24)
	w.WriteBits(1, 16) // dimensions
	w.WriteBits(4, 24) // entries
	w.WriteBits(0, 1)  // ordered = false
	w.WriteBits(0, 1)  // sparse = false
	for _, l := range []int{1, 2, 3, 3} {
		w.WriteBits(uint64(l-1), 5)
	}
	w.WriteBits(0, 4) // map_type = 0

	// Hand-derived codewords for canonical assignment over lengths
	// [1,2,3,3]: entry0=0b0(1), entry1=0b01(2), entry2=0b011(3), entry3=0b111(3).
	w.WriteBits(0, 1)
	w.WriteBits(0b01, 2)
	w.WriteBits(0b011, 3)
	w.WriteBits(0b111, 3)

	return w.bytes
}

func TestCodebookDecodesOwnCodewords(t *testing.T) {
	packet := packetFromBytes(t, buildTinyCodebook())
	np := pool.NewNodePool(16)
	br := ogg.NewBitReader(packet, nil)

	cb, err := ParseCodebook(br, np)
	require.NoError(t, err)
	require.Equal(t, 4, cb.Entries)
	require.Equal(t, 0, cb.MapType)

	for _, want := range []int32{0, 1, 2, 3} {
		got, err := cb.DecodeScalar(br)
		require.NoError(t, err)
		require.Equal(t, want, got)
	}
}
