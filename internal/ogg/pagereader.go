package ogg

import (
	"bytes"
)

const resyncScanLimit = 65536

// NewStreamFunc is invoked the first time a page for an unseen serial
// arrives. Returning true tells the PageReader to ignore that serial from
// then on (its pages are silently dropped). Returning false means the
// observer has (synchronously, during this call) registered a PacketReader
// for the serial via Register; if it didn't, the page is dropped anyway.
type NewStreamFunc func(serial int32, page *Page) (ignore bool)

// PageReader scans a byte source for Ogg pages, resyncing past corruption,
// and dispatches each page's packet fragments to the PacketReader
// registered for its serial.
type PageReader struct {
	br *BufferedReader

	nextPageOffset int64
	wasteBits      uint64

	packetReaders   map[int32]*PacketReader
	disposedSerials map[int32]bool

	OnNewStream NewStreamFunc

	disposed bool
}

// NewPageReader creates a PageReader over br, starting at the beginning of
// the source.
func NewPageReader(br *BufferedReader) *PageReader {
	return &PageReader{
		br:              br,
		packetReaders:   make(map[int32]*PacketReader),
		disposedSerials: make(map[int32]bool),
	}
}

// Register associates a PacketReader with its serial so future pages are
// routed to it.
func (pr *PageReader) Register(pktReader *PacketReader) {
	pr.packetReaders[pktReader.serial] = pktReader
}

// DisposeStream marks a serial as ignored: its packet reader (if any) is
// unregistered and future pages for it are dropped silently.
func (pr *PageReader) DisposeStream(serial int32) {
	delete(pr.packetReaders, serial)
	pr.disposedSerials[serial] = true
}

// WasteBits reports the cumulative number of bits skipped while
// resynchronizing after corrupt or truncated pages.
func (pr *PageReader) WasteBits() uint64 { return pr.wasteBits }

// GatherNextPage finds and dispatches exactly one page. It is the only
// PageReader operation that may do unbounded work (bounded in practice by
// resyncScanLimit per attempt).
func (pr *PageReader) GatherNextPage() error {
	if pr.disposed {
		return ErrDisposed
	}
	page, err := pr.findNextPage()
	if err != nil {
		return err
	}
	pr.dispatch(page)
	return nil
}

func (pr *PageReader) findNextPage() (*Page, error) {
	if err := pr.br.TakeLock(pr); err != nil {
		return nil, err
	}
	defer pr.br.ReleaseLock(pr)

	offset := pr.nextPageOffset
	resynced := false

	for {
		page, err := parsePageAt(pr.br, pr, offset)
		if err == nil {
			page.IsResync = resynced
			pr.nextPageOffset = page.DataOffset + int64(page.BodySize())
			return page, nil
		}

		if kind, ok := KindOf(err); ok && kind == UnexpectedEOF {
			return nil, err
		}

		// InvalidData (bad capture/version) or CrcMismatch: scan forward
		// for the next plausible sync point.
		resynced = true
		next, found := pr.scanForCapture(offset+1, resyncScanLimit)
		if !found {
			return nil, errResyncExhausted
		}
		pr.wasteBits += uint64(next-offset) * 8
		offset = next
	}
}

var errResyncExhausted = NewError(UnexpectedEOF, "no Ogg page found within resync scan limit")

// scanForCapture searches for the next "OggS" capture pattern starting at
// start, giving up after limit bytes have been examined.
func (pr *PageReader) scanForCapture(start int64, limit int) (int64, bool) {
	const chunkSize = 4096
	pos := start
	examined := 0
	var carry []byte

	for examined < limit {
		buf := make([]byte, chunkSize)
		n, err := pr.br.Read(pos, buf)
		if n == 0 {
			return 0, false
		}
		buf = buf[:n]

		haystack := buf
		base := pos
		if len(carry) > 0 {
			haystack = append(append([]byte{}, carry...), buf...)
			base = pos - int64(len(carry))
		}

		if idx := bytes.Index(haystack, []byte(capturePattern)); idx >= 0 {
			return base + int64(idx), true
		}

		examined += n
		pos += int64(n)
		if len(haystack) >= 3 {
			carry = append([]byte{}, haystack[len(haystack)-3:]...)
		} else {
			carry = append([]byte{}, haystack...)
		}

		if err != nil {
			return 0, false
		}
	}
	return 0, false
}

func (pr *PageReader) dispatch(page *Page) {
	if pr.disposedSerials[page.StreamSerial] {
		return
	}
	target, ok := pr.packetReaders[page.StreamSerial]
	if !ok {
		ignore := true
		if pr.OnNewStream != nil {
			ignore = pr.OnNewStream(page.StreamSerial, page)
		}
		if ignore {
			pr.disposedSerials[page.StreamSerial] = true
			return
		}
		target, ok = pr.packetReaders[page.StreamSerial]
		if !ok {
			return
		}
	}
	target.acceptPage(page)
}

// Dispose releases the underlying buffered reader and source.
func (pr *PageReader) Dispose() error {
	if pr.disposed {
		return nil
	}
	pr.disposed = true
	return pr.br.Dispose()
}
