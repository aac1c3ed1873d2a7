package xpad

import (
	"testing"
	"unsafe"
)

func TestUint64IsCacheLineSized(t *testing.T) {
	t.Parallel()

	if got := unsafe.Sizeof(Uint64{}); got != CacheLineSize {
		t.Errorf("unsafe.Sizeof(Uint64{}) = %d, want %d", got, CacheLineSize)
	}
}

func TestInt64IsCacheLineSized(t *testing.T) {
	t.Parallel()

	if got := unsafe.Sizeof(Int64{}); got != CacheLineSize {
		t.Errorf("unsafe.Sizeof(Int64{}) = %d, want %d", got, CacheLineSize)
	}
}

func TestAdjacentUint64sDontShareACacheLine(t *testing.T) {
	t.Parallel()

	var a [2]Uint64
	addrA := uintptr(unsafe.Pointer(&a[0]))
	addrB := uintptr(unsafe.Pointer(&a[1]))
	if addrB-addrA < CacheLineSize {
		t.Errorf("adjacent Uint64 slots are %d bytes apart, want at least %d", addrB-addrA, CacheLineSize)
	}
}
