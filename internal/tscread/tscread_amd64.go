//go:build amd64

package tscread

const supported = true

// read is implemented in tscread_amd64.s: a bare RDTSC combining EDX:EAX
// into the returned uint64. It has no ordering guarantee relative to other
// memory operations.
//
//go:noescape
func read() uint64

// readFenced is implemented in tscread_amd64.s: LFENCE followed by RDTSC,
// combined into the returned uint64. The LFENCE blocks the CPU from
// executing RDTSC until every earlier instruction — in particular the
// acquire-load of a sequence counter — has completed, which a bare RDTSC
// does not guarantee on its own.
//
//go:noescape
func readFenced() uint64
