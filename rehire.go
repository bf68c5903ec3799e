package rehire

import (
	"fmt"
	"os"
	"strings"

	"go.uber.org/zap"
)

// Rehirer loads units from a [Host] with dependencies replaced.
type Rehirer struct {
	host        Host
	resolver    PathResolver
	substitutor *Substitutor
}

type Option func(*options)

type options struct {
	dir         string
	substitutor *Substitutor
}

// WithDir sets the directory relative specifiers passed to Load are resolved
// against. The default is the working directory of the process.
func WithDir(dir string) Option {
	return func(o *options) { o.dir = dir }
}

// WithSubstitutor makes the Rehirer share a substitutor with other code
// operating on the same cache.
func WithSubstitutor(s *Substitutor) Option {
	return func(o *options) { o.substitutor = s }
}

func New(host Host, opts ...Option) *Rehirer {
	if host == nil {
		panic("rehire: New: host is nil")
	}
	var o options
	for _, opt := range opts {
		opt(&o)
	}
	if o.dir == "" {
		wd, err := os.Getwd()
		if err != nil {
			panic(fmt.Sprintf("rehire: New: no directory given, and cannot get working directory: %v", err))
		}
		o.dir = wd
	}
	if o.substitutor == nil {
		o.substitutor = NewSubstitutor(host)
	}
	return &Rehirer{
		host:        host,
		resolver:    NewPathResolver(host, o.dir),
		substitutor: o.substitutor,
	}
}

// In returns a Rehirer resolving relative specifiers against dir. The
// returned value shares the host and substitutor.
func (r *Rehirer) In(dir string) *Rehirer {
	clone := *r
	clone.resolver = NewPathResolver(r.host, dir)
	return &clone
}

// Dir returns the directory relative specifiers are resolved against.
func (r *Rehirer) Dir() string { return r.resolver.dir }

// Load loads a fresh copy of the unit named by specifier, while the
// dependencies in deps are replaced. The keys of deps are specifiers as the
// unit itself would use them; relative keys are resolved against the unit's
// own directory.
//
// The module cache is restored before Load returns, including when the load
// fails. Errors match [ErrModuleNotFound] when the unit or a dependency cannot
// be resolved, in which case the cache was never touched, or
// [ErrLoadFailure] when the host failed to load the unit.
func (r *Rehirer) Load(specifier string, deps map[string]any) (*Handle, error) {
	id, err := r.resolver.Resolve(specifier, "")
	if err != nil {
		return nil, err
	}
	mapping, err := r.normalize(id, deps)
	if err != nil {
		return nil, err
	}

	session := NewSession()
	if err := r.substitutor.Patch(session, mapping); err != nil {
		return nil, err
	}
	log := Logger().With(zap.String("session", session.ID()), zap.Stringer("identity", id))
	log.Debug("rehire: loading", zap.Int("dependencies", len(mapping)))

	handle, err := r.load(session, id)
	if err != nil {
		log.Warn("rehire: load failed", zap.Error(err))
	}
	return handle, err
}

func (r *Rehirer) load(session *Session, id Identity) (handle *Handle, err error) {
	defer r.substitutor.Restore(session, session.Keys())
	defer func() {
		if p := recover(); p != nil {
			handle = nil
			err = LoadError{id, fmt.Errorf("panic: %v", p)}
		}
	}()

	value, err := r.host.Load(id)
	if err != nil {
		return nil, LoadError{id, err}
	}
	return &Handle{
		id:       id,
		value:    value,
		bindings: NewBindings(value, r.host),
	}, nil
}

// normalize resolves the keys of deps from the directory of the unit id, and
// wraps the values in cache entries.
func (r *Rehirer) normalize(id Identity, deps map[string]any) (map[Identity]*Entry, error) {
	dir := r.resolver.DirOf(id)
	res := make(map[Identity]*Entry, len(deps))
	for _, kv := range iterateSorted(deps) {
		depID, err := r.resolver.Resolve(kv.k, dir)
		if err != nil {
			return nil, err
		}
		res[depID] = NewEntry(kv.v)
	}
	return res, nil
}

// Load is a shorthand for New(host).Load(specifier, deps).
func Load(host Host, specifier string, deps map[string]any) (*Handle, error) {
	return New(host).Load(specifier, deps)
}

// Debug returns a description of the overridden bindings of a handle, useful
// when troubleshooting a test.
func Debug(h *Handle) string {
	var b strings.Builder
	b.WriteString(fmt.Sprintf("Unit: %s\n", h.id))
	names := h.bindings.Captured()
	if len(names) == 0 {
		b.WriteString("No overridden bindings\n")
		return b.String()
	}
	b.WriteString("Overridden bindings:\n")
	for _, n := range names {
		original, _ := h.bindings.Original(n)
		current, err := h.bindings.Get(n)
		if err != nil {
			b.WriteString(fmt.Sprintf(" - %s (original: %#v, current: %v)\n", n, original, err))
			continue
		}
		b.WriteString(fmt.Sprintf(" - %s (original: %#v, current: %#v)\n", n, original, current))
	}
	return b.String()
}
