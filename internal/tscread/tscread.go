// Package tscread reads the x86 Time-Stamp Counter: a single hardware
// instruction, cycle-cheap and with no built-in ordering or reliability
// guarantee. Everything that decides whether the values it returns are
// trustworthy lives elsewhere; this package only knows how to read the
// register.
package tscread

// Read returns the raw TSC value on the calling CPU. It is cycle-cheap (a
// single instruction on amd64) and carries no ordering guarantee on its
// own — callers that need ordering relative to other memory operations
// must use ReadFenced instead.
func Read() uint64 {
	return read()
}

// ReadFenced returns the raw TSC value on the calling CPU the same way
// Read does, but first executes a full load fence, so the read cannot be
// reordered ahead of an acquire-load (or any other memory operation) that
// precedes it in program order. An ordinary acquire load only stops later
// loads/stores from being reordered ahead of it in the compiler's and the
// CPU's view of memory traffic — it does nothing to stop an unserialized
// instruction like RDTSC from executing early, since RDTSC doesn't touch
// memory at all. This is MeKo-Christian-tsc's GetInOrder counterpart: a
// TSC read taken "in strict order" rather than the free-running Read.
func ReadFenced() uint64 {
	return readFenced()
}

// Supported reports whether this build target has a hardware TSC read
// implemented. Non-amd64 builds fall back to a stub that always returns
// false, mirroring MeKo-Christian-tsc's own tsc_generic.go.
func Supported() bool {
	return supported
}
