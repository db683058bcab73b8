package ogg

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestChecksumDeterministic(t *testing.T) {
	data := []byte("the quick brown fox jumps over the lazy dog")
	a := Checksum(0, data)
	b := Checksum(0, data)
	require.Equal(t, a, b)
}

func TestChecksumDetectsCorruption(t *testing.T) {
	data := []byte("OggS page body contents for checksum testing")
	original := Checksum(0, data)

	corrupted := append([]byte(nil), data...)
	corrupted[3] ^= 0xFF
	require.NotEqual(t, original, Checksum(0, corrupted))
}

func TestChecksumContinuation(t *testing.T) {
	data := []byte("split across two continuation calls")
	whole := Checksum(0, data)

	mid := len(data) / 2
	split := Checksum(Checksum(0, data[:mid]), data[mid:])
	require.Equal(t, whole, split)
}
