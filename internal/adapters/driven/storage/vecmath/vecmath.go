// Package vecmath holds vector helpers shared by the brute-force indexes.
package vecmath

import (
	"encoding/binary"
	"math"

	"github.com/viant/vec/search"
)

// Magnitude returns the Euclidean norm of v.
func Magnitude(v []float32) float32 {
	return search.Float32s(v).Magnitude()
}

// Cosine returns the cosine similarity of a and b. The magnitudes only
// screen out zero vectors, which score 0 like mismatched lengths.
// CosineDistance is the one distance exported on every architecture.
func Cosine(a, b []float32, magA, magB float32) float64 {
	if len(a) != len(b) || len(a) == 0 || magA == 0 || magB == 0 {
		return 0
	}
	return 1 - float64(search.Float32s(a).CosineDistance(b))
}

// Encode converts a []float32 to a little-endian byte slice for storage.
func Encode(floats []float32) []byte {
	if floats == nil {
		return nil
	}
	buf := make([]byte, len(floats)*4)
	for i, f := range floats {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(f))
	}
	return buf
}

// Decode converts a byte slice back to []float32.
func Decode(data []byte) []float32 {
	if len(data) == 0 {
		return nil
	}
	floats := make([]float32, len(data)/4)
	for i := range floats {
		floats[i] = math.Float32frombits(binary.LittleEndian.Uint32(data[i*4:]))
	}
	return floats
}
