// Command vorbisdump decodes every logical Vorbis stream in an Ogg file in
// sequence and reports decode statistics for each, the way the teacher
// project's main.go is a thin, flag-free entry point wiring config and
// logging around the real work.
package main

import (
	"log"
	"os"

	"github.com/philipch07/vorbisdec/internal/config"
	"github.com/philipch07/vorbisdec/internal/ogg"
	"github.com/philipch07/vorbisdec/internal/vorbis"
)

// fileSource adapts *os.File to ogg.ByteSource, the only in-repo
// implementation of that interface (the core otherwise never touches the
// filesystem directly).
type fileSource struct {
	f    *os.File
	lock *ogg.Lock
}

func (s *fileSource) ReadAt(p []byte, pos int64) (int, error) { return s.f.ReadAt(p, pos) }

func (s *fileSource) Length() (int64, error) {
	fi, err := s.f.Stat()
	if err != nil {
		return 0, err
	}
	return fi.Size(), nil
}

func (s *fileSource) CanSeek() bool { return true }
func (s *fileSource) Close() error  { return s.f.Close() }

func (s *fileSource) TakeLock(holder any) error    { return s.lock.TakeLock(holder) }
func (s *fileSource) ReleaseLock(holder any) error { return s.lock.ReleaseLock(holder) }

func main() {
	if len(os.Args) < 2 {
		log.Fatal("vorbisdump: usage: vorbisdump <file.ogg>")
	}
	cfg := config.Load()

	f, err := os.Open(os.Args[1])
	if err != nil {
		log.Fatalf("vorbisdump: %v", err)
	}
	src := &fileSource{f: f, lock: ogg.NewLock()}
	defer src.Close()

	br := ogg.NewBufferedReader(src, cfg.BufReaderWindow, cfg.BufReaderMax)
	pages := ogg.NewPageReader(br)

	readers := map[int32]*ogg.PacketReader{}
	decoders := map[int32]*vorbis.StreamDecoder{}
	var order []int32
	var pending []int32

	pages.OnNewStream = func(serial int32, page *ogg.Page) bool {
		readers[serial] = ogg.NewPacketReader(pages, br, serial)
		pending = append(pending, serial)
		return false
	}

	totalSamples := 0
	buf := make([]float32, 4096)

	for {
		for len(pending) > 0 {
			serial := pending[0]
			pending = pending[1:]

			dec, err := vorbis.NewStreamDecoder(pages, readers[serial],
				cfg.BufferPoolSize, cfg.BufferPoolSlotBytes, cfg.NodePoolSize, cfg.DefaultSeekPreroll)
			if err != nil {
				log.Printf("vorbisdump: stream %d: init failed: %v", serial, err)
				continue
			}
			decoders[serial] = dec
			order = append(order, serial)
			ident := dec.Identification()
			log.Printf("vorbisdump: stream %d: %d ch, %d Hz, id=%s",
				serial, ident.Channels, ident.SampleRate, dec.Stats().DecoderID)
		}

		if len(order) == 0 {
			if err := pages.GatherNextPage(); err != nil {
				if kind, ok := vorbis.KindOf(err); ok && kind == vorbis.UnexpectedEOF {
					break
				}
				log.Fatalf("vorbisdump: %v", err)
			}
			continue
		}

		serial := order[0]
		dec := decoders[serial]

		n, err := dec.ReadSamples(buf)
		if err != nil {
			log.Printf("vorbisdump: stream %d: decode error: %v", serial, err)
			order = order[1:]
			continue
		}

		if dec.IsParameterChange() {
			reportStats(serial, dec)
			if err := dec.ClearParameterChange(); err != nil {
				log.Printf("vorbisdump: stream %d: parameter change failed: %v", serial, err)
				order = order[1:]
			}
			continue
		}

		if n == 0 {
			reportStats(serial, dec)
			dec.Dispose()
			order = order[1:]
			continue
		}

		totalSamples += n / dec.Identification().Channels
	}

	log.Printf("vorbisdump: done, %d total samples decoded across %d stream(s)", totalSamples, len(decoders))
}

func reportStats(serial int32, dec *vorbis.StreamDecoder) {
	s := dec.Stats()
	log.Printf("vorbisdump: stream %d done: id=%s container_bits=%d waste_bits=%d clips=%d",
		serial, s.DecoderID, s.ContainerBits, s.WasteBits, s.ClipCount)
}
