package rehire

// Identity is the canonical, fully resolved name of one module cache entry.
// For file based hosts this is an absolute path.
type Identity string

func (i Identity) String() string { return string(i) }

// Entry is the host's record for a loaded unit. Rehire never looks inside an
// entry it didn't create; it only moves entries in and out of the cache, and
// relies on pointer identity when restoring them.
type Entry struct {
	Exports any
}

// NewEntry wraps a replacement value, so it can be stored in a [Cache].
func NewEntry(exports any) *Entry {
	return &Entry{Exports: exports}
}

// Cache is the shared module cache of a host.
type Cache interface {
	Get(id Identity) (*Entry, bool)
	Has(id Identity) bool
	Set(id Identity, e *Entry)
	Delete(id Identity)
	// Resolve returns the canonical identity of specifier. Relative specifiers
	// have already been made absolute against dir; dir is passed along for
	// hosts with directory dependent lookup rules.
	Resolve(specifier, dir string) (Identity, error)
}

// Loader performs the actual load of a unit, returning its exported value.
// A loader should load the unit fresh, as each [Handle] has its own private
// state.
type Loader interface {
	Load(id Identity) (any, error)
}

// Introspector reads and writes the private bindings of a loaded unit. The
// unit is the exported value returned by [Loader.Load].
//
// Both functions should return an error matching [ErrBindingNotFound] when
// the unit has no binding of that name.
type Introspector interface {
	GetInternal(unit any, name string) (any, error)
	SetInternal(unit any, name string, value any) error
}

// Host is a module system that rehire can operate on.
type Host interface {
	Cache
	Loader
	Introspector
}
