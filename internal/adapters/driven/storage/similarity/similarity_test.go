package similarity

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCosine(t *testing.T) {
	tests := []struct {
		name string
		a, b []float32
		want float64
	}{
		{name: "identical", a: []float32{1, 2, 3}, b: []float32{1, 2, 3}, want: 1.0},
		{name: "orthogonal", a: []float32{1, 0}, b: []float32{0, 1}, want: 0.0},
		{name: "opposite clamps to zero", a: []float32{1, 0}, b: []float32{-1, 0}, want: 0.0},
		{name: "scaled copies", a: []float32{1, 1}, b: []float32{5, 5}, want: 1.0},
		{name: "mismatched lengths", a: []float32{1, 2}, b: []float32{1, 2, 3}, want: 0.0},
		{name: "empty", a: nil, b: nil, want: 0.0},
		{name: "zero vector", a: []float32{0, 0}, b: []float32{1, 1}, want: 0.0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.want, Cosine(tt.a, tt.b), 1e-9)
		})
	}
}

func TestCosinePartialOverlap(t *testing.T) {
	// 45 degrees apart.
	got := Cosine([]float32{1, 0}, []float32{1, 1})
	assert.InDelta(t, 0.7071, got, 0.001)
}

func TestVectorCodecRoundTrip(t *testing.T) {
	vector := []float32{0, 1.5, -2.25, 3.14159, -0.0001}

	decoded, err := DecodeVector(EncodeVector(vector))
	require.NoError(t, err)
	assert.Equal(t, vector, decoded)
}

func TestDecodeVectorRejectsBadLength(t *testing.T) {
	_, err := DecodeVector([]byte{1, 2, 3})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not a multiple of 4")
}

func TestEncodeVectorEmpty(t *testing.T) {
	decoded, err := DecodeVector(EncodeVector(nil))
	require.NoError(t, err)
	assert.Empty(t, decoded)
}
