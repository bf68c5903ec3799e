package rehire

import (
	"path/filepath"
	"strings"
)

// PathResolver turns specifiers into canonical identities. Relative
// specifiers are resolved against an explicit directory, never against the
// location of the calling code.
type PathResolver struct {
	cache Cache
	// dir is used for identities that aren't file paths.
	dir string
}

func NewPathResolver(cache Cache, dir string) PathResolver {
	return PathResolver{cache, dir}
}

// IsRelative reports whether specifier is relative to the directory of the
// unit requesting it, i.e., starts with "./" or "../".
func IsRelative(specifier string) bool {
	return specifier == "." || specifier == ".." ||
		strings.HasPrefix(specifier, "./") || strings.HasPrefix(specifier, "../")
}

// Resolve resolves specifier from dir. If dir is empty, the resolver's own
// directory is used.
func (r PathResolver) Resolve(specifier, dir string) (Identity, error) {
	if dir == "" {
		dir = r.dir
	}
	if specifier == "" {
		return "", ModuleNotFoundError{Specifier: specifier, Dir: dir}
	}
	lookup := specifier
	if IsRelative(specifier) {
		lookup = filepath.Join(dir, filepath.FromSlash(specifier))
	}
	id, err := r.cache.Resolve(lookup, dir)
	if err != nil {
		return "", ModuleNotFoundError{Specifier: specifier, Dir: dir, Err: err}
	}
	return id, nil
}

// DirOf returns the directory that relative dependencies of the unit id are
// resolved against.
func (r PathResolver) DirOf(id Identity) string {
	if filepath.IsAbs(string(id)) {
		return filepath.Dir(string(id))
	}
	return r.dir
}
