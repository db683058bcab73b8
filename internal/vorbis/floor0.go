package vorbis

import (
	"math"

	"github.com/philipch07/vorbisdec/internal/ogg"
)

// Floor0 is the legacy LSP-based spectral envelope. Real encoders have not
// emitted it in decades -- floor type 1 is universal in the wild -- but a
// conformant decoder still has to parse and synthesize it.
type Floor0 struct {
	Order          int
	Rate           int
	BarkMapSize    int
	AmplitudeBits  int
	AmplitudeOffset int
	Books          []int
}

func parseFloor0(br *ogg.BitReader) (*Floor0, error) {
	order, err := br.ReadBits(8)
	if err != nil {
		return nil, err
	}
	rate, err := br.ReadBits(16)
	if err != nil {
		return nil, err
	}
	barkMapSize, err := br.ReadBits(16)
	if err != nil {
		return nil, err
	}
	ampBits, err := br.ReadBits(6)
	if err != nil {
		return nil, err
	}
	ampOffset, err := br.ReadBits(8)
	if err != nil {
		return nil, err
	}
	numBooks, err := br.ReadBits(4)
	if err != nil {
		return nil, err
	}
	books := make([]int, int(numBooks)+1)
	for i := range books {
		b, err := br.ReadBits(8)
		if err != nil {
			return nil, err
		}
		books[i] = int(b)
	}
	return &Floor0{
		Order:           int(order),
		Rate:            int(rate),
		BarkMapSize:     int(barkMapSize),
		AmplitudeBits:   int(ampBits),
		AmplitudeOffset: int(ampOffset),
		Books:           books,
	}, nil
}

// Decode satisfies the FloorConfig interface used by mapping decode.
func (f *Floor0) Decode(br *ogg.BitReader, books []*Codebook, n int) ([]float32, error) {
	return f.DecodeFloor0(br, books, n)
}

// DecodeFloor0 reads one packet's floor0 data, returning the expanded
// linear amplitude curve of length n (block_size/2), or nil for a silent
// (all-zero-amplitude) block.
func (f *Floor0) DecodeFloor0(br *ogg.BitReader, books []*Codebook, n int) ([]float32, error) {
	amp, err := br.ReadBits(uint(f.AmplitudeBits))
	if err != nil {
		return nil, err
	}
	if amp == 0 {
		return nil, nil
	}

	bookBits := ilog(uint32(len(f.Books)))
	bookIdxField, err := br.ReadBits(uint(bookBits))
	if err != nil {
		return nil, err
	}
	bookIdx := int(bookIdxField)
	if bookIdx < 0 || bookIdx >= len(f.Books) {
		return nil, newError(InvalidData, "floor0: book index out of range")
	}
	book := books[f.Books[bookIdx]]
	if book == nil || book.MapType == 0 {
		return nil, newError(InvalidData, "floor0: book has no VQ lookup")
	}

	coeff := make([]float32, 0, f.Order)
	for len(coeff) < f.Order {
		e, err := book.DecodeScalar(br)
		if err != nil {
			return nil, err
		}
		if e < 0 {
			break
		}
		coeff = append(coeff, book.DecodeVector(e)...)
	}
	if len(coeff) > f.Order {
		coeff = coeff[:f.Order]
	}

	curve := make([]float32, n)
	f.computeCurve(coeff, float32(amp), curve)
	return curve, nil
}

// computeCurve expands the decoded LSP coefficients into a dB curve and
// stores each bin as a linear amplitude (exp of the dB value). This follows the classic all-pole LSP factorization (the spectrum
// is recovered as a product of cosine differences split into even/odd
// halves) rather than the bit-exact reference recurrence, since floor type
// 0 carries no meaningful content in any stream this decoder is likely to
// see -- see the design notes for the tradeoff.
func (f *Floor0) computeCurve(coeff []float32, amp float32, curve []float32) {
	n := len(curve)
	if len(coeff) == 0 || n == 0 {
		return
	}
	ampOffset := float32(f.AmplitudeOffset)

	for i := 0; i < n; i++ {
		omega := math.Pi * float64(i) / float64(n)
		w := math.Cos(omega)

		p, q := 1.0, 1.0
		for j := 0; j < len(coeff); j += 2 {
			d := w - math.Cos(float64(coeff[j]))
			p *= d * d
		}
		for j := 1; j < len(coeff); j += 2 {
			d := w - math.Cos(float64(coeff[j]))
			q *= d * d
		}

		magnitude := 1.0 / math.Sqrt(math.Abs(p)+math.Abs(q)+1e-9)
		db := float64(amp)/float64(f.AmplitudeOffset+1)*magnitude - float64(ampOffset)
		curve[i] = float32(math.Exp(db * 0.11512925))
	}
}
