package srp

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestEqual(t *testing.T) {
	tests := []struct {
		name string
		a, b []byte
		want bool
		scan int
	}{
		{"identical", []byte{1, 2, 3}, []byte{1, 2, 3}, true, 3},
		{"first byte differs", []byte{9, 2, 3}, []byte{1, 2, 3}, false, 3},
		{"last byte differs", []byte{1, 2, 3}, []byte{1, 2, 9}, false, 3},
		{"length mismatch", []byte{1, 2, 3}, []byte{1, 2}, false, 0},
		{"both empty", nil, []byte{}, true, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, scanned := equal(tt.a, tt.b)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, tt.scan, scanned)
			assert.Equal(t, tt.want, Equal(tt.a, tt.b))
		})
	}
}

// A mismatch in the first byte must not shorten the scan.
func TestEqual_ScansFullLengthOnEarlyMismatch(t *testing.T) {
	a := make([]byte, 256)
	b := make([]byte, 256)
	b[0] = 0xff

	_, early := equal(a, b)

	b[0] = 0
	b[255] = 0xff
	_, late := equal(a, b)

	assert.Equal(t, 256, early)
	assert.Equal(t, early, late)
}
