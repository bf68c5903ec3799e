package rehire

import (
	"errors"
	"fmt"
	"maps"
	"slices"
	"sync"

	"go.uber.org/zap"
)

// Revert undoes a single call to [Bindings.Set] or [Bindings.SetAll], by
// resetting the names it set to their original values.
type Revert func() error

// Bindings reads and overrides the private bindings of one loaded unit.
//
// The first time a name is overridden, its current value is captured. Later
// overrides of the same name leave the captured value alone, so Reset always
// restores the value from before the first override. After a Reset, the next
// override captures again.
type Bindings struct {
	unit  any
	intro Introspector

	mu       sync.Mutex
	captured map[string]any
}

// NewBindings creates a binding store for unit, which must be a value returned
// by a [Loader] matching intro.
func NewBindings(unit any, intro Introspector) *Bindings {
	if intro == nil {
		panic("rehire: NewBindings: introspector is nil")
	}
	return &Bindings{unit: unit, intro: intro, captured: make(map[string]any)}
}

// Get returns the current value of the binding name, as seen by the unit.
func (b *Bindings) Get(name string) (any, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.get(name)
}

func (b *Bindings) get(name string) (any, error) {
	v, err := b.intro.GetInternal(b.unit, name)
	if err != nil {
		return nil, b.notFound(name, err)
	}
	return v, nil
}

func (b *Bindings) notFound(name string, err error) error {
	if errors.Is(err, ErrBindingNotFound) {
		var target BindingNotFoundError
		if errors.As(err, &target) {
			return err
		}
		return errors.Join(BindingNotFoundError{name}, err)
	}
	return err
}

// Set overrides a single binding. See [Bindings.SetAll].
func (b *Bindings) Set(name string, value any) (Revert, error) {
	return b.SetAll(map[string]any{name: value})
}

// SetAll overrides several bindings in one step. Either all bindings are
// overridden, or none are: if any name doesn't exist, nothing is written, and
// if writing a value fails, the values already written are put back. Failures
// to put a value back are joined with the error of the failed write.
//
// The returned [Revert] resets exactly the names in values.
func (b *Bindings) SetAll(values map[string]any) (Revert, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	sorted := iterateSorted(values)
	// current holds the values before this call, for rolling back a failed
	// write; fresh is the names captured by this call.
	current := make(map[string]any, len(sorted))
	var fresh []string
	for _, kv := range sorted {
		v, err := b.get(kv.k)
		if err != nil {
			for _, n := range fresh {
				delete(b.captured, n)
			}
			return nil, err
		}
		current[kv.k] = v
		if _, ok := b.captured[kv.k]; !ok {
			b.captured[kv.k] = v
			fresh = append(fresh, kv.k)
		}
	}
	for i, kv := range sorted {
		if err := b.intro.SetInternal(b.unit, kv.k, kv.v); err != nil {
			errs := []error{b.notFound(kv.k, err)}
			for _, done := range sorted[:i] {
				if err := b.intro.SetInternal(b.unit, done.k, current[done.k]); err != nil {
					errs = append(errs, fmt.Errorf("rehire: rolling back %q: %w", done.k, err))
				}
			}
			for _, n := range fresh {
				delete(b.captured, n)
			}
			return nil, errors.Join(errs...)
		}
	}
	names := slices.Sorted(maps.Keys(values))
	Logger().Debug("rehire: bindings overridden", zap.Strings("names", names))

	return func() error {
		b.mu.Lock()
		defer b.mu.Unlock()
		return b.reset(names)
	}, nil
}

// Reset restores every overridden binding to the value it had before it was
// first overridden, and forgets the captured values. Calling Reset when
// nothing is overridden does nothing.
//
// A binding that cannot be restored stays captured, so a later Reset can try
// again.
func (b *Bindings) Reset() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.reset(slices.Sorted(maps.Keys(b.captured)))
}

func (b *Bindings) reset(names []string) error {
	var errs []error
	for _, name := range names {
		original, ok := b.captured[name]
		if !ok {
			continue
		}
		if err := b.intro.SetInternal(b.unit, name, original); err != nil {
			errs = append(errs, err)
			continue
		}
		delete(b.captured, name)
	}
	if len(names) > 0 {
		Logger().Debug("rehire: bindings reset", zap.Strings("names", names))
	}
	return errors.Join(errs...)
}

// Captured returns the names that are currently overridden, sorted.
func (b *Bindings) Captured() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return slices.Sorted(maps.Keys(b.captured))
}

// Original returns the captured original value of name, if overridden.
func (b *Bindings) Original(name string) (any, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	v, ok := b.captured[name]
	return v, ok
}
