package ogg

import "sort"

type packetNode struct {
	pkt        *Packet
	prev, next *packetNode
}

type seekEntry struct {
	granule    int64
	pageOffset int64
}

// PacketReader reassembles one logical stream's packets from the pages the
// PageReader hands it, in arrival order, and exposes a seek index for
// random access on seekable sources.
type PacketReader struct {
	serial int32
	pages  *PageReader
	br     *BufferedReader

	head, tail *packetNode
	readCursor *packetNode

	pending *Packet // dangling, not-yet-complete packet chain

	seekIndex []seekEntry

	lastDiscardedOffset uint64
	containerBits        uint64

	eos      bool
	disposed bool
}

// NewPacketReader creates a PacketReader for serial and registers it with
// pages so future pages for that serial are routed here.
func NewPacketReader(pages *PageReader, br *BufferedReader, serial int32) *PacketReader {
	r := &PacketReader{serial: serial, pages: pages, br: br}
	pages.Register(r)
	return r
}

// Serial returns the logical stream serial this reader services.
func (r *PacketReader) Serial() int32 { return r.serial }

// ContainerOverheadBits returns the accumulated framing cost (page headers
// and segment tables) observed for this stream so far.
func (r *PacketReader) ContainerOverheadBits() uint64 { return r.containerBits }

// acceptPage is called by the PageReader once per page routed to this
// serial. It splits the page into fragments, merges continuations with any
// dangling packet, and appends completed packets to the read queue.
func (r *PacketReader) acceptPage(page *Page) {
	r.containerBits += uint64(pageHeaderSize+len(page.SegmentTable)) * 8

	frags := page.fragments()
	if len(frags) == 0 {
		return
	}

	for i, f := range frags {
		isFirst := i == 0
		isLast := i == len(frags)-1

		p := &Packet{
			StreamOffset:        uint64(page.DataOffset + f.offset),
			Length:              uint32(f.length),
			PageGranulePosition: page.GranulePosition,
			PageSequenceNumber:  page.SequenceNumber,
			reader:              r,
		}
		if isFirst && page.Flags.ContinuesPacket {
			p.Flags.IsContinuation = true
		}
		if isFirst && page.IsResync {
			p.Flags.IsResync = true
		}
		if isLast && !f.complete {
			p.Flags.IsContinued = true
		}
		if isLast && page.Flags.EndOfStream {
			p.Flags.IsEndOfStream = true
		}

		if p.Flags.IsContinuation && r.pending != nil {
			r.pending.appendFragment(p)
			if f.complete {
				r.enqueue(r.pending)
				r.pending = nil
			}
			continue
		}

		if f.complete {
			r.enqueue(p)
		} else {
			r.pending = p
		}
	}

	if page.GranulePosition >= 0 {
		pageStart := page.DataOffset - int64(pageHeaderSize+len(page.SegmentTable))
		r.seekIndex = append(r.seekIndex, seekEntry{granule: page.GranulePosition, pageOffset: pageStart})
	}

	if page.Flags.EndOfStream {
		r.eos = true
	}
}

func (r *PacketReader) enqueue(p *Packet) {
	n := &packetNode{pkt: p}
	if r.tail != nil {
		r.tail.next = n
		n.prev = r.tail
	} else {
		r.head = n
	}
	r.tail = n
	if r.readCursor == nil {
		r.readCursor = n
	}
}

// GetNextPacket returns the next unread packet, driving the page reader
// forward (gathering and dispatching pages, possibly for other serials
// too) until one becomes available or the stream ends.
func (r *PacketReader) GetNextPacket() (*Packet, error) {
	if r.disposed {
		return nil, ErrDisposed
	}
	for {
		if r.readCursor != nil {
			n := r.readCursor
			r.readCursor = n.next
			return n.pkt, nil
		}
		if r.eos {
			return nil, nil
		}
		if err := r.pages.GatherNextPage(); err != nil {
			if kind, ok := KindOf(err); ok && kind == UnexpectedEOF {
				r.eos = true
				continue
			}
			return nil, err
		}
	}
}

// PeekNextPacket returns the next packet without consuming it.
func (r *PacketReader) PeekNextPacket() (*Packet, error) {
	if r.disposed {
		return nil, ErrDisposed
	}
	for {
		if r.readCursor != nil {
			return r.readCursor.pkt, nil
		}
		if r.eos {
			return nil, nil
		}
		if err := r.pages.GatherNextPage(); err != nil {
			if kind, ok := KindOf(err); ok && kind == UnexpectedEOF {
				r.eos = true
				continue
			}
			return nil, err
		}
	}
}

// releaseThrough permits the buffered reader to discard bytes up to and
// including packet's byte range, trimming the retained node list down to
// one packet of backward-seek slack.
func (r *PacketReader) releaseThrough(packet *Packet) {
	var node *packetNode
	for n := r.head; n != nil; n = n.next {
		if n.pkt == packet {
			node = n
			break
		}
	}
	if node == nil {
		return
	}

	tail := packet.tail()
	end := tail.StreamOffset + uint64(tail.Length)
	if end > r.lastDiscardedOffset {
		r.lastDiscardedOffset = end
	}

	// Keep one prior node linked in the list. The discard below also
	// covers that node's bytes, so it cannot be read again afterwards.
	keepFrom := node.prev
	if keepFrom == nil {
		return
	}
	r.head = keepFrom
	keepFrom.prev = nil

	r.br.DiscardThrough(int64(r.lastDiscardedOffset))
}

// readRange fetches n bytes for a fragment from the shared buffered
// reader. Used by Packet.Bytes and the bit reader.
func (r *PacketReader) readRange(offset uint64, dst []byte) error {
	_, err := r.br.Read(int64(offset), dst)
	return err
}

// SeekTo seeks the stream to the latest packet whose page granule is less
// than or equal to target, then steps back preroll packets. Requires a
// seekable source.
func (r *PacketReader) SeekTo(target int64, preroll int) error {
	if r.disposed {
		return ErrDisposed
	}
	if !r.br.CanSeek() {
		return NewError(OutOfRange, "seek_to requires a seekable source")
	}

	entries := r.seekIndex
	idx := sort.Search(len(entries), func(i int) bool { return entries[i].granule > target })
	if idx == 0 {
		// Nothing indexed at or before target yet; restart from the
		// beginning of the stream's known pages.
		idx = 0
	} else {
		idx--
	}

	var pageOffset int64
	if len(entries) > 0 {
		pageOffset = entries[idx].pageOffset
	}

	// Reset reader/page-reader state and replay forward from the chosen
	// page so the fragment chain and pending continuation are rebuilt
	// consistently rather than left pointing at stale nodes.
	r.head, r.tail, r.readCursor, r.pending = nil, nil, nil, nil
	r.eos = false
	r.pages.nextPageOffset = pageOffset

	// Walk forward gathering packets until we've produced at least preroll
	// packets before the target granule, or run out of stream.
	var buffered []*packetNode
	for {
		before := r.tail
		if err := r.pages.GatherNextPage(); err != nil {
			if kind, ok := KindOf(err); ok && kind == UnexpectedEOF {
				break
			}
			return err
		}
		for n := firstNewNode(before, r.tail); n != nil; n = n.next {
			buffered = append(buffered, n)
			if n.pkt.GranulePosition() >= target {
				goto done
			}
		}
	}
done:
	stepBack := preroll
	start := len(buffered) - 1 - stepBack
	if start < 0 {
		start = 0
	}
	if start < len(buffered) {
		r.readCursor = buffered[start]
	}
	return nil
}

func firstNewNode(before, after *packetNode) *packetNode {
	if before == nil {
		return firstNode(after)
	}
	return before.next
}

func firstNode(n *packetNode) *packetNode {
	for n != nil && n.prev != nil {
		n = n.prev
	}
	return n
}

// Dispose releases this packet reader's registration.
func (r *PacketReader) Dispose() {
	if r.disposed {
		return
	}
	r.disposed = true
	r.pages.DisposeStream(r.serial)
}
