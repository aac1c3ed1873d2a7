// Package xpad provides cache-line padding helpers used to keep hot mutable
// slots owned by different goroutines (or different CPUs) from sharing a
// cache line with each other or with read-only data.
package xpad

// CacheLineSize is the cache line size assumed for the whole machine. The
// library targets homogeneous x86-64 CPUs, where 64 bytes is all but
// universal, so a single constant is used instead of probing per-CPU
// coherency line sizes.
const CacheLineSize = 64

// Uint64 is a cache-line-padded uint64. Use it for a hot mutable counter
// (a sequence counter, a readiness counter) that many goroutines touch
// concurrently, so neighboring padded slots never false-share.
type Uint64 struct {
	V uint64
	_ [CacheLineSize - 8]byte
}

// Int64 is the signed counterpart of Uint64.
type Int64 struct {
	V int64
	_ [CacheLineSize - 8]byte
}
