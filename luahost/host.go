// Package luahost implements a [rehire.Host] for Lua scripts, running on
// github.com/Shopify/go-lua.
//
// The host replaces the global require function of its Lua state with one
// that resolves modules to canonical identities, and caches them in a cache
// rehire can patch:
//
//   - Specifiers starting with "./" or "../" are resolved against the
//     directory of the script calling require.
//   - Absolute paths are used as is.
//   - Other names are standard libraries, modules registered with
//     [Host.Preload], or files found by the templates in [Config.Path].
//
// Scripts are identified by their absolute path, with the ".lua" extension.
// Standard libraries and preloaded modules are identified by their name, and
// cannot be loaded by [Host.Load].
//
// The private bindings of a unit are the upvalues of the functions reachable
// from the value the script returned; i.e., the script's local variables used
// by its exported functions.
//
// A Host is not safe for concurrent use, as a Lua state isn't.
package luahost

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/Shopify/go-lua"
	"github.com/gost-dom/rehire"
	"go.uber.org/zap"
)

// DefaultPath is the default list of search templates.
var DefaultPath = []string{"?.lua", "?/init.lua"}

var stdlibs = []string{
	"_G", "package", "coroutine", "table", "io", "os", "string", "bit32", "math", "debug",
}

// Config configures a [Host].
type Config struct {
	// Root is the directory relative templates in Path are relative to, and
	// the directory used for relative requires outside of a script. Defaults
	// to the working directory.
	Root string
	// Path is the list of templates bare module names are searched with. A
	// "?" is replaced by the module name, with dots replaced by path
	// separators. Defaults to DefaultPath.
	Path []string
}

// Host is a Lua module system.
type Host struct {
	state *lua.State
	root  string
	path  []string

	entries map[rehire.Identity]*rehire.Entry
	// native holds the identities that aren't scripts.
	native  map[rehire.Identity]bool
	loading map[rehire.Identity]bool
	// dirs is a stack of the directories of the scripts being executed.
	dirs []string
	refs int
}

var _ rehire.Host = (*Host)(nil)

// New creates a host with a new Lua state, with the standard libraries open.
func New(cfg Config) (*Host, error) {
	root := cfg.Root
	if root == "" {
		root = "."
	}
	root, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("luahost: root: %w", err)
	}
	path := cfg.Path
	if len(path) == 0 {
		path = DefaultPath
	}
	l := lua.NewState()
	lua.OpenLibraries(l)
	h := &Host{
		state:   l,
		root:    root,
		path:    slices.Clone(path),
		entries: make(map[rehire.Identity]*rehire.Entry),
		native:  make(map[rehire.Identity]bool),
		loading: make(map[rehire.Identity]bool),
	}
	l.NewTable()
	l.SetField(lua.RegistryIndex, refsKey)
	l.NewTable()
	l.SetField(lua.RegistryIndex, idsKey)

	for _, name := range stdlibs {
		l.Global(name)
		if l.TypeOf(-1) != lua.TypeNil {
			id := rehire.Identity(name)
			h.entries[id] = rehire.NewEntry(h.toGo(-1))
			h.native[id] = true
		}
		l.Pop(1)
	}
	l.PushGoFunction(h.require)
	l.SetGlobal("require")
	return h, nil
}

// State returns the underlying Lua state.
func (h *Host) State() *lua.State { return h.state }

// Root returns the root directory of the host.
func (h *Host) Root() string { return h.root }

// Preload registers a module implemented in Go. The value is converted to
// Lua each time the module is required; see [Host.Push].
func (h *Host) Preload(name string, value any) {
	id := rehire.Identity(name)
	h.entries[id] = rehire.NewEntry(value)
	h.native[id] = true
}

func (h *Host) Get(id rehire.Identity) (*rehire.Entry, bool) {
	e, ok := h.entries[id]
	return e, ok
}

func (h *Host) Has(id rehire.Identity) bool {
	_, ok := h.entries[id]
	return ok
}

func (h *Host) Set(id rehire.Identity, e *rehire.Entry) { h.entries[id] = e }

func (h *Host) Delete(id rehire.Identity) { delete(h.entries, id) }

// Identities returns the identities currently in the cache, sorted.
func (h *Host) Identities() []rehire.Identity {
	res := make([]rehire.Identity, 0, len(h.entries))
	for id := range h.entries {
		res = append(res, id)
	}
	slices.Sort(res)
	return res
}

func (h *Host) Resolve(specifier, dir string) (rehire.Identity, error) {
	if rehire.IsRelative(specifier) {
		if dir == "" {
			dir = h.root
		}
		specifier = filepath.Join(dir, specifier)
	}
	if filepath.IsAbs(specifier) {
		if p, ok := findScript(specifier); ok {
			return rehire.Identity(p), nil
		}
		return "", fmt.Errorf("no file %s", specifier)
	}
	if h.native[rehire.Identity(specifier)] {
		return rehire.Identity(specifier), nil
	}
	name := strings.ReplaceAll(specifier, ".", string(filepath.Separator))
	tried := make([]string, 0, len(h.path))
	for _, tmpl := range h.path {
		p := filepath.FromSlash(strings.ReplaceAll(tmpl, "?", name))
		if !filepath.IsAbs(p) {
			p = filepath.Join(h.root, p)
		}
		if isFile(p) {
			return rehire.Identity(p), nil
		}
		tried = append(tried, p)
	}
	return "", fmt.Errorf("no module %s, tried %s", specifier, strings.Join(tried, ", "))
}

func findScript(p string) (string, bool) {
	p = filepath.Clean(p)
	for _, c := range []string{p, p + ".lua", filepath.Join(p, "init.lua")} {
		if isFile(c) {
			return c, true
		}
	}
	return "", false
}

func isFile(p string) bool {
	info, err := os.Stat(p)
	return err == nil && info.Mode().IsRegular()
}

var errNotScript = errors.New("not a script")

// Load executes the script id, returning the value it returns, or true if it
// returns nothing. The result is not cached; modules it requires are.
func (h *Host) Load(id rehire.Identity) (any, error) {
	if h.native[id] {
		return nil, fmt.Errorf("%s: %w", id, errNotScript)
	}
	if h.loading[id] {
		return nil, fmt.Errorf("%s: cyclic require", id)
	}
	h.loading[id] = true
	defer delete(h.loading, id)

	path := string(id)
	rehire.Logger().Debug("luahost: running script", zap.String("path", path))
	l := h.state
	top := l.Top()
	if err := lua.LoadFile(l, path, ""); err != nil {
		l.SetTop(top)
		return nil, err
	}
	h.dirs = append(h.dirs, filepath.Dir(path))
	defer func() { h.dirs = h.dirs[:len(h.dirs)-1] }()
	if err := l.ProtectedCall(0, 1, 0); err != nil {
		l.SetTop(top)
		return nil, err
	}
	defer l.SetTop(top)
	if l.TypeOf(-1) == lua.TypeNil {
		return true, nil
	}
	res := h.toGo(-1)
	if v, ok := res.(*Value); ok {
		v.source = "@" + path
	}
	return res, nil
}

// dir returns the directory relative requires are resolved against.
func (h *Host) dir() string {
	if len(h.dirs) == 0 {
		return h.root
	}
	return h.dirs[len(h.dirs)-1]
}

// require replaces the global require function.
func (h *Host) require(l *lua.State) int {
	name := lua.CheckString(l, 1)
	id, err := rehire.NewPathResolver(h, h.root).Resolve(name, h.dir())
	if err != nil {
		lua.Errorf(l, "%s", err.Error())
		return 0
	}
	e, ok := h.entries[id]
	if !ok {
		v, err := h.Load(id)
		if err != nil {
			lua.Errorf(l, "rehire: loading %s: %s", id, err.Error())
			return 0
		}
		e = rehire.NewEntry(v)
		h.entries[id] = e
	}
	h.Push(e.Exports)
	return 1
}

// RunFile executes the script at path as a top level script; it is not
// cached.
func (h *Host) RunFile(path string) error {
	abs, err := filepath.Abs(path)
	if err != nil {
		return err
	}
	_, err = h.Load(rehire.Identity(abs))
	return err
}

// DoString executes a chunk of Lua code. Relative requires are resolved
// against the host's root.
func (h *Host) DoString(code string) error {
	l := h.state
	top := l.Top()
	defer l.SetTop(top)
	if err := lua.LoadString(l, code); err != nil {
		return err
	}
	return l.ProtectedCall(0, 0, 0)
}
