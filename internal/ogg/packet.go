package ogg

// PacketFlags mirrors the flags carried on a delivered packet.
type PacketFlags struct {
	IsContinued    bool // this packet's final fragment spills into the next page
	IsContinuation bool // this fragment absorbed a dangling packet from a previous page
	IsResync       bool // this fragment's page was reached by skipping bytes
	IsEndOfStream  bool // this fragment's page carried the stream's EOS flag
}

// Packet is one logical unit delivered to Vorbis. A packet that spans
// multiple pages is represented as a chain: Next points at the fragment
// continuing it on a later page. Bytes are not copied eagerly -- each
// fragment only remembers where its bytes live in the container
// (StreamOffset/Length) and a back-reference to the PacketReader that can
// fetch them.
type Packet struct {
	StreamOffset        uint64
	Length               uint32
	PageGranulePosition int64
	PageSequenceNumber  int32
	Flags               PacketFlags
	Next                *Packet

	reader *PacketReader
	done   bool
}

// appendFragment links next onto the tail of p's continuation chain.
func (p *Packet) appendFragment(next *Packet) {
	tail := p
	for tail.Next != nil {
		tail = tail.Next
	}
	tail.Next = next
}

// tail returns the last fragment in the chain (p itself if it has none).
func (p *Packet) tail() *Packet {
	t := p
	for t.Next != nil {
		t = t.Next
	}
	return t
}

// GranulePosition returns the granule position of the page carrying this
// packet's final fragment, per the spec's definition for multi-page
// packets.
func (p *Packet) GranulePosition() int64 {
	return p.tail().PageGranulePosition
}

// SequenceNumber returns the page sequence number of the packet's final
// fragment.
func (p *Packet) SequenceNumber() int32 {
	return p.tail().PageSequenceNumber
}

// TotalLength returns the sum of every fragment's length.
func (p *Packet) TotalLength() int {
	n := 0
	for f := p; f != nil; f = f.Next {
		n += int(f.Length)
	}
	return n
}

// IsEndOfStream reports whether any fragment in the chain carried the
// stream's end-of-stream flag. Only the last completed packet of a page
// may carry it, so this is equivalent to checking the tail, but checking
// the whole chain is defensive against reassembly order changes.
func (p *Packet) IsEndOfStream() bool {
	for f := p; f != nil; f = f.Next {
		if f.Flags.IsEndOfStream {
			return true
		}
	}
	return false
}

// Bytes materializes the packet's full byte content by walking the
// fragment chain and pulling each fragment's range from the reader's
// buffered source. It is used by tests, by the header parsers, and by the
// bit reader, which loads the whole packet through it on its first read.
func (p *Packet) Bytes() ([]byte, error) {
	out := make([]byte, 0, p.TotalLength())
	for f := p; f != nil; f = f.Next {
		if f.Length == 0 {
			continue
		}
		buf := make([]byte, f.Length)
		if err := f.reader.readRange(f.StreamOffset, buf); err != nil {
			return nil, err
		}
		out = append(out, buf...)
	}
	return out, nil
}

// Done marks the packet as no longer needed, releasing the packet reader's
// retained byte range up to and including this packet.
func (p *Packet) Done() {
	if p.done {
		return
	}
	p.done = true
	if p.reader != nil {
		p.reader.releaseThrough(p)
	}
}
