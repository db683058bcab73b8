package vorbis

import (
	"github.com/google/uuid"

	"github.com/philipch07/vorbisdec/internal/ogg"
	"github.com/philipch07/vorbisdec/internal/pool"
)

// StreamDecoder drives one logical Vorbis stream end to end: it consumes
// the three header packets, then decodes audio packets on demand into an
// overlap-add ring buffer that ReadSamples drains.
type StreamDecoder struct {
	id string

	pages   *ogg.PageReader
	packets *ogg.PacketReader

	bufferPool *pool.BufferPool
	nodePool   *pool.NodePool

	ident   *Identification
	comment *Comment
	setup   *Setup

	windows      *WindowCache
	imdct0       *IMDCT
	imdct1       *IMDCT
	ring         *RingBuffer
	modeIlogBits uint

	prevBlockSize   int
	firstPacket     bool
	granule         int64
	lastPageGranule int64

	parameterChange    bool
	pendingIdentPacket *ogg.Packet
	clipCount          uint64

	seekPreroll int
	eos         bool
	disposed    bool
}

// NewStreamDecoder constructs a decoder over packets (whose pages flow
// through pages, tracked here only for waste-bit stats) and completes Init
// by consuming the identification, comment, and setup header packets.
func NewStreamDecoder(pages *ogg.PageReader, packets *ogg.PacketReader, bufferPoolSize, bufferPoolSlotBytes, nodePoolSize, seekPreroll int) (*StreamDecoder, error) {
	d := &StreamDecoder{
		id:          uuid.New().String(),
		pages:       pages,
		packets:     packets,
		bufferPool:  pool.NewBufferPool(bufferPoolSize, bufferPoolSlotBytes),
		nodePool:    pool.NewNodePool(nodePoolSize),
		firstPacket: true,
		seekPreroll: seekPreroll,
	}
	if err := d.initHeaders(); err != nil {
		return nil, err
	}
	return d, nil
}

func (d *StreamDecoder) initHeaders() error {
	// A parameter change retains the identification packet that triggered
	// it (see decodeNextPacket); re-init must consume that packet rather
	// than calling GetNextPacket again, which would instead return the
	// packet after it (the new comment header) and misparse it.
	identPacket := d.pendingIdentPacket
	d.pendingIdentPacket = nil
	if identPacket == nil {
		var err error
		identPacket, err = d.packets.GetNextPacket()
		if err != nil {
			return err
		}
		if identPacket == nil {
			return newError(UnexpectedEOF, "stream ended before identification header")
		}
	}
	identBytes, err := identPacket.Bytes()
	if err != nil {
		return err
	}
	ident, err := parseIdentification(identBytes)
	identPacket.Done()
	if err != nil {
		return err
	}
	d.ident = ident

	commentPacket, err := d.packets.GetNextPacket()
	if err != nil {
		return err
	}
	if commentPacket == nil {
		return newError(UnexpectedEOF, "stream ended before comment header")
	}
	commentBytes, err := commentPacket.Bytes()
	if err != nil {
		return err
	}
	comment, err := parseComment(commentBytes)
	commentPacket.Done()
	if err != nil {
		return err
	}
	d.comment = comment

	setupPacket, err := d.packets.GetNextPacket()
	if err != nil {
		return err
	}
	if setupPacket == nil {
		return newError(UnexpectedEOF, "stream ended before setup header")
	}
	setup, err := parseSetup(setupPacket, d.bufferPool, d.nodePool, ident.Channels)
	setupPacket.Done()
	if err != nil {
		return err
	}
	d.setup = setup
	d.modeIlogBits = uint(ilog(uint32(len(setup.Modes) - 1)))

	d.windows = NewWindowCache(ident.Block0Size, ident.Block1Size)
	d.imdct0 = NewIMDCT(ident.Block0Size)
	d.imdct1 = NewIMDCT(ident.Block1Size)
	d.ring = NewRingBuffer(ident.Channels, ident.Block0Size, ident.Block1Size)
	return nil
}

// Identification exposes the parsed first header, for callers that need
// the channel count or sample rate.
func (d *StreamDecoder) Identification() *Identification { return d.ident }

// Comment exposes the parsed comment header.
func (d *StreamDecoder) Comment() *Comment { return d.comment }

// ReadSamples fills dst (interleaved per-channel floats) with decoded PCM,
// decoding as many audio packets as needed. It returns fewer than
// len(dst) samples when a parameter change is pending or the stream has
// ended.
func (d *StreamDecoder) ReadSamples(dst []float32) (int, error) {
	if d.disposed {
		return 0, ogg.ErrDisposed
	}
	if d.parameterChange {
		return 0, nil
	}

	for d.ring.Len()*d.ident.Channels < len(dst) {
		if d.eos {
			break
		}
		ok, err := d.decodeNextPacket()
		if err != nil {
			return 0, err
		}
		if !ok {
			break
		}
		if d.parameterChange {
			break
		}
	}

	n := d.ring.CopyTo(dst)
	applyClipping(dst[:n], &d.clipCount)
	return n, nil
}

// decodeNextPacket decodes exactly one audio packet into the ring buffer.
// It returns false at clean end of stream.
func (d *StreamDecoder) decodeNextPacket() (bool, error) {
	packet, err := d.packets.GetNextPacket()
	if err != nil {
		return false, err
	}
	if packet == nil {
		d.eos = true
		return false, nil
	}

	if packet.GranulePosition() >= 0 {
		d.lastPageGranule = packet.GranulePosition()
	}

	// A repeated identification header mid-stream, on this same serial,
	// marks a new parameter segment; re-running Init would stomp our own
	// state, so instead we flag the change and let the caller clear it
	// before continuing. The triggering packet is the first of the new
	// header trio, so it is retained rather than released here --
	// ClearParameterChange's initHeaders consumes it directly instead of
	// reading past it. (A chained stream carried on a new serial number
	// never reaches this PacketReader at all; that case is the caller's
	// responsibility, surfaced through PageReader.OnNewStream the way
	// vorbisdump's multiplexing loop handles it -- a fresh StreamDecoder
	// per new serial, with no mid-stream detection needed.)
	if looksLikeIdentification(packet) {
		d.parameterChange = true
		d.pendingIdentPacket = packet
		d.ring.Clear()
		d.firstPacket = true
		return true, nil
	}
	defer packet.Done()

	br := ogg.NewBitReader(packet, d.bufferPool)
	defer br.Release()

	modeIdxBits, err := br.ReadBits(d.modeIlogBits)
	if err != nil {
		return false, err
	}
	modeIdx := int(modeIdxBits)
	if modeIdx < 0 || modeIdx >= len(d.setup.Modes) {
		return false, newError(InvalidData, "audio packet: mode index out of range")
	}
	mode := d.setup.Modes[modeIdx]

	blockSize := d.ident.Block0Size
	transform := d.imdct0
	if mode.BlockFlag {
		blockSize = d.ident.Block1Size
		transform = d.imdct1
	}

	prevLong, nextLong := false, false
	if mode.BlockFlag {
		p, err := br.ReadBit()
		if err != nil {
			return false, err
		}
		nx, err := br.ReadBit()
		if err != nil {
			return false, err
		}
		prevLong, nextLong = p != 0, nx != 0
	}
	window := d.windows.Window(mode.BlockFlag, prevLong, nextLong)

	mapping := d.setup.Mappings[mode.MappingIndex]
	n := blockSize / 2
	vectors, err := mapping.Decode(br, d.setup.Floors, d.setup.Residues, d.setup.Codebooks, d.ident.Channels, n)
	if err != nil {
		return false, err
	}

	windowed := make([][]float32, d.ident.Channels)
	for ch, vec := range vectors {
		samples := transform.Transform(vec)
		for i, w := range window {
			samples[i] *= w
		}
		windowed[ch] = samples
	}
	d.ring.AddBlock(windowed, blockSize)

	if d.firstPacket {
		d.ring.RemoveItems(blockSize / 2)
		d.firstPacket = false
	} else {
		d.granule += int64(d.prevBlockSize+blockSize) / 4
	}
	d.prevBlockSize = blockSize

	return true, nil
}

// looksLikeIdentification reports whether packet carries the identification
// magic, which only ever appears at the start of a logical stream segment.
func looksLikeIdentification(packet *ogg.Packet) bool {
	data, err := packet.Bytes()
	if err != nil || len(data) < 7 {
		return false
	}
	return [7]byte(data[0:7]) == identMagic
}

// SeekTo seeks the underlying packet stream to target and resets overlap
// state so the next decoded block starts a fresh window sequence.
func (d *StreamDecoder) SeekTo(target int64) error {
	if d.disposed {
		return ogg.ErrDisposed
	}
	if err := d.packets.SeekTo(target, d.seekPreroll); err != nil {
		return err
	}
	d.ring.Clear()
	d.firstPacket = true
	d.prevBlockSize = 0
	d.granule = target
	d.eos = false
	return nil
}

// CurrentPosition returns the decoder's current granule cursor.
func (d *StreamDecoder) CurrentPosition() int64 { return d.granule }

// LastGranulePosition returns the most recent page granule position
// observed for this stream.
func (d *StreamDecoder) LastGranulePosition() int64 { return d.lastPageGranule }

// Stats returns a snapshot of this stream's counters.
func (d *StreamDecoder) Stats() Stats {
	waste := uint64(0)
	if d.pages != nil {
		waste = d.pages.WasteBits()
	}
	return Stats{
		DecoderID:     d.id,
		ContainerBits: d.packets.ContainerOverheadBits(),
		WasteBits:     waste,
		ClipCount:     d.clipCount,
	}
}

// IsParameterChange reports whether a new identification/setup trio has
// been observed mid-stream, halting sample production until cleared.
func (d *StreamDecoder) IsParameterChange() bool { return d.parameterChange }

// ClearParameterChange re-initializes the decoder from the new header trio
// already buffered at the current packet position and resumes decoding.
func (d *StreamDecoder) ClearParameterChange() error {
	if !d.parameterChange {
		return nil
	}
	if err := d.initHeaders(); err != nil {
		return err
	}
	d.parameterChange = false
	return nil
}

// Dispose releases this decoder's packet reader and pools.
func (d *StreamDecoder) Dispose() {
	if d.disposed {
		return
	}
	d.disposed = true
	d.packets.Dispose()
	if d.setup != nil {
		for _, cb := range d.setup.Codebooks {
			cb.Release()
		}
	}
}

// applyClipping clamps samples to [-1, 1] in place and latches clipCount
// once per call that needed clamping, matching the "sticky clipped flag"
// contract: clipping twice in a row is idempotent since an already-clamped
// sample never re-triggers the counter on a second pass.
func applyClipping(samples []float32, clipCount *uint64) {
	clipped := false
	for i, s := range samples {
		if s > 1 {
			samples[i] = 1
			clipped = true
		} else if s < -1 {
			samples[i] = -1
			clipped = true
		}
	}
	if clipped {
		*clipCount++
	}
}
