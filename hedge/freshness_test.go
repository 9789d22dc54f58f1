package hedge

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIsAcceptable(t *testing.T) {
	tests := []struct {
		name      string
		marker    uint64
		threshold *uint64
		want      bool
	}{
		{name: "given nil threshold, then accepts", marker: 0, threshold: nil, want: true},
		{name: "given marker above threshold, then accepts", marker: 101, threshold: AtLeast(100), want: true},
		{name: "given marker equal to threshold, then accepts", marker: 100, threshold: AtLeast(100), want: true},
		{name: "given marker below threshold, then rejects", marker: 99, threshold: AtLeast(100), want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsAcceptable(tt.marker, tt.threshold))
		})
	}
}

func TestStaleError(t *testing.T) {
	err := staleError(90, 100)

	assert.ErrorIs(t, err, ErrStaleResponse)
	assert.Contains(t, err.Error(), "100")
	assert.Contains(t, err.Error(), "90")
}
