package rehire_test

import (
	"errors"
	"fmt"
	"maps"
	"path/filepath"

	"github.com/gost-dom/rehire"
)

// unit is what the fake host loads: an exported value with a private scope.
type unit struct {
	scope   map[string]any
	exports any
}

// Greet is a forwarding function, returning the private binding "greeting".
func (u *unit) Greet() any { return u.scope["greeting"] }

type factory func(require func(string) (any, error)) (*unit, error)

type op struct {
	kind string
	id   rehire.Identity
}

// fakeHost is an in-memory module system. Files exist at absolute paths,
// packages are bare names mapped to identities.
type fakeHost struct {
	entries  map[rehire.Identity]*rehire.Entry
	files    map[rehire.Identity]factory
	packages map[string]rehire.Identity
	// writes records every mutation of the cache.
	writes []op
	// observed records the values dependencies had during loads.
	observed map[string]any
}

func newFakeHost() *fakeHost {
	return &fakeHost{
		entries:  make(map[rehire.Identity]*rehire.Entry),
		files:    make(map[rehire.Identity]factory),
		packages: make(map[string]rehire.Identity),
		observed: make(map[string]any),
	}
}

func (h *fakeHost) Get(id rehire.Identity) (*rehire.Entry, bool) {
	e, ok := h.entries[id]
	return e, ok
}

func (h *fakeHost) Has(id rehire.Identity) bool {
	_, ok := h.entries[id]
	return ok
}

func (h *fakeHost) Set(id rehire.Identity, e *rehire.Entry) {
	h.writes = append(h.writes, op{"set", id})
	h.entries[id] = e
}

func (h *fakeHost) Delete(id rehire.Identity) {
	h.writes = append(h.writes, op{"delete", id})
	delete(h.entries, id)
}

func (h *fakeHost) Resolve(specifier, dir string) (rehire.Identity, error) {
	if filepath.IsAbs(specifier) {
		id := rehire.Identity(filepath.Clean(specifier))
		if _, ok := h.files[id]; ok {
			return id, nil
		}
		return "", fmt.Errorf("no file %s", specifier)
	}
	if id, ok := h.packages[specifier]; ok {
		return id, nil
	}
	return "", fmt.Errorf("no package %s", specifier)
}

// addFile registers a unit at the absolute path id.
func (h *fakeHost) addFile(id string, f factory) {
	h.files[rehire.Identity(id)] = f
}

// addPackage registers a package that has been loaded before, so the cache
// holds an entry for it. The entry is returned.
func (h *fakeHost) addPackage(name string, exports any) *rehire.Entry {
	id := rehire.Identity(name)
	h.packages[name] = id
	h.files[id] = func(func(string) (any, error)) (*unit, error) {
		return &unit{exports: exports}, nil
	}
	e := rehire.NewEntry(exports)
	h.entries[id] = e
	return e
}

func (h *fakeHost) Load(id rehire.Identity) (any, error) {
	f, ok := h.files[id]
	if !ok {
		return nil, fmt.Errorf("no file %s", id)
	}
	dir := filepath.Dir(string(id))
	require := func(specifier string) (any, error) {
		lookup := specifier
		if rehire.IsRelative(specifier) {
			lookup = filepath.Join(dir, specifier)
		}
		depID, err := h.Resolve(lookup, dir)
		if err != nil {
			return nil, err
		}
		if e, ok := h.entries[depID]; ok {
			h.observed[specifier] = e.Exports
			return e.Exports, nil
		}
		dep, err := h.Load(depID)
		if err != nil {
			return nil, err
		}
		h.entries[depID] = rehire.NewEntry(dep)
		h.observed[specifier] = dep
		return dep, nil
	}
	u, err := f(require)
	if err != nil {
		return nil, err
	}
	return u, nil
}

var errNoBinding = errors.New("no such variable")

func (h *fakeHost) GetInternal(u any, name string) (any, error) {
	scope := u.(*unit).scope
	v, ok := scope[name]
	if !ok {
		return nil, rehire.BindingNotFoundError{Name: name}
	}
	return v, nil
}

func (h *fakeHost) SetInternal(u any, name string, value any) error {
	scope := u.(*unit).scope
	if _, ok := scope[name]; !ok {
		return fmt.Errorf("%w: %s", errNoBinding, name)
	}
	scope[name] = value
	return nil
}

// snapshot returns a copy of the cache.
func (h *fakeHost) snapshot() map[rehire.Identity]*rehire.Entry {
	return maps.Clone(h.entries)
}

// greeter is a unit requiring "./helper" and "fs-like" at load time, and keeping
// a greeting in its private scope.
func greeter(require func(string) (any, error)) (*unit, error) {
	helper, err := require("./helper")
	if err != nil {
		return nil, err
	}
	fs, err := require("fs-like")
	if err != nil {
		return nil, err
	}
	return &unit{scope: map[string]any{
		"greeting": "hello",
		"helper":   helper,
		"fs":       fs,
	}}, nil
}

func helperUnit(func(string) (any, error)) (*unit, error) {
	return &unit{scope: map[string]any{}, exports: "real helper"}, nil
}

// newGreeterHost returns a host with /app/main.go, /app/helper.go and package
// fs-like, where fs-like is already in the cache.
func newGreeterHost() (*fakeHost, *rehire.Entry) {
	h := newFakeHost()
	h.addFile("/app/main", greeter)
	h.addFile("/app/helper", helperUnit)
	e := h.addPackage("fs-like", "real fs")
	return h, e
}
