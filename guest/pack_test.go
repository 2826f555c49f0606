package guest

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPackUnpackPtrLen(t *testing.T) {
	tests := []struct {
		name   string
		ptr    uint32
		length uint32
	}{
		{name: "zero", ptr: 0, length: 0},
		{name: "typical", ptr: 0x12345678, length: 0xABCDEF00},
		{name: "max", ptr: 0xFFFFFFFF, length: 0xFFFFFFFF},
		{name: "empty buffer", ptr: 1024, length: 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			packed := PackPtrLen(tt.ptr, tt.length)
			assert.Equal(t, uint64(tt.ptr)<<PtrHighBits|uint64(tt.length), packed)

			ptr, length := UnpackPtrLen(packed)
			assert.Equal(t, tt.ptr, ptr)
			assert.Equal(t, tt.length, length)
		})
	}
}

func TestPackPtrLen_NullPointer(t *testing.T) {
	assert.Panics(t, func() { PackPtrLen(0, 8) })
	assert.Panics(t, func() { UnpackPtrLen(8) })
}
