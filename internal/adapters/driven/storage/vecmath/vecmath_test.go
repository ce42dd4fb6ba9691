package vecmath

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCosine(t *testing.T) {
	a := []float32{1, 0}
	b := []float32{0, 1}
	c := []float32{2, 0}

	assert.InDelta(t, 0.0, Cosine(a, b, Magnitude(a), Magnitude(b)), 1e-6)
	assert.InDelta(t, 1.0, Cosine(a, c, Magnitude(a), Magnitude(c)), 1e-6)
	assert.InDelta(t, -1.0, Cosine(a, []float32{-1, 0}, 1, 1), 1e-6)
}

func TestCosine_MatchesDotProduct(t *testing.T) {
	a := []float32{0.3, -1.2, 2.5, 0, 4}
	b := []float32{1.1, 0.4, -0.7, 3, 0.2}

	var dot, na, nb float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	want := dot / (math.Sqrt(na) * math.Sqrt(nb))

	assert.InDelta(t, want, Cosine(a, b, Magnitude(a), Magnitude(b)), 1e-5)
	assert.InDelta(t, math.Sqrt(na), float64(Magnitude(a)), 1e-5)
}

func TestCosine_Degenerate(t *testing.T) {
	assert.Equal(t, 0.0, Cosine([]float32{1}, []float32{1, 2}, 1, 1))
	assert.Equal(t, 0.0, Cosine([]float32{0, 0}, []float32{1, 0}, 0, 1))
	assert.Equal(t, 0.0, Cosine(nil, nil, 0, 0))
}

func TestEncodeDecode(t *testing.T) {
	v := []float32{0.25, -1.5, 3}
	assert.Equal(t, v, Decode(Encode(v)))
	assert.Len(t, Encode(v), 12)
	assert.Nil(t, Decode(nil))
	assert.Nil(t, Encode(nil))
}
