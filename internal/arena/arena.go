// Package arena implements a process-lifetime bump allocator for interned
// strings, modeled on dpkg's nfmalloc. Every string read out of the package
// database is copied into an Arena once and never freed individually; the
// whole Arena is dropped together at pkgdb reset / process exit.
package arena

// Arena is a typed bump allocator for strings. It is not safe for concurrent
// use without external synchronization; the dpkg core is single-threaded
// (spec.md §5), so none is provided here.
type Arena struct {
	interned map[string]string
}

// New returns an empty Arena.
func New() *Arena {
	return &Arena{interned: make(map[string]string)}
}

// Intern copies s into the arena (if not already present) and returns a
// stable string backed by the arena's storage. Two calls with equal s
// return identical underlying bytes, which lets callers compare interned
// strings by pointer-equivalent value comparison cheaply.
func (a *Arena) Intern(s string) string {
	if existing, ok := a.interned[s]; ok {
		return existing
	}
	// Copy so the arena does not keep alive whatever larger buffer s was a
	// substring of (e.g. a whole parsed stanza).
	cp := string(append([]byte(nil), s...))
	a.interned[cp] = cp
	return cp
}

// Len reports how many distinct strings are currently interned.
func (a *Arena) Len() int { return len(a.interned) }

// Reset drops every interned string, invalidating all previously returned
// references. Mirrors dpkg's pkg_db_reset dropping the nfmalloc arena.
func (a *Arena) Reset() {
	a.interned = make(map[string]string)
}
