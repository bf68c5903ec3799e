package luahost_test

import (
	"path/filepath"
	"testing"

	"github.com/Shopify/go-lua"
	"github.com/gost-dom/rehire"
	"github.com/gost-dom/rehire/luahost"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newHost(t *testing.T) *luahost.Host {
	t.Helper()
	h, err := luahost.New(luahost.Config{
		Root: "testdata",
		Path: []string{"lua_modules/?.lua", "lua_modules/?/init.lua"},
	})
	require.NoError(t, err)
	return h
}

func testdata(t *testing.T, p string) rehire.Identity {
	t.Helper()
	abs, err := filepath.Abs(filepath.Join("testdata", p))
	require.NoError(t, err)
	return rehire.Identity(abs)
}

func TestResolve(t *testing.T) {
	h := newHost(t)
	greeter := filepath.Join(h.Root(), "greeter")

	cases := []struct {
		name string
		spec string
		dir  string
		id   rehire.Identity
	}{
		{"relative", "./helper", greeter, testdata(t, "greeter/helper.lua")},
		{"relative with extension", "./helper.lua", greeter, testdata(t, "greeter/helper.lua")},
		{"absolute", string(testdata(t, "greeter/main")), "", testdata(t, "greeter/main.lua")},
		{"package", "pkg", "", testdata(t, "lua_modules/pkg.lua")},
		{"package init", "nested", "", testdata(t, "lua_modules/nested/init.lua")},
		{"standard library", "string", "", "string"},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			id, err := h.Resolve(c.spec, c.dir)
			require.NoError(t, err)
			assert.Equal(t, c.id, id)
		})
	}

	_, err := h.Resolve("does-not-exist", "")
	assert.ErrorContains(t, err, "no module does-not-exist")
}

func TestRelativeSpecifierAndPackageNameShareIdentity(t *testing.T) {
	h := newHost(t)

	byName, err := h.Resolve("pkg", "")
	require.NoError(t, err)
	byPath, err := rehire.NewPathResolver(h, h.Root()).Resolve("./lua_modules/pkg", "")
	require.NoError(t, err)

	assert.Equal(t, byName, byPath)
}

func TestRequireCachesModules(t *testing.T) {
	h := newHost(t)

	require.NoError(t, h.DoString(`
		local a = require("pkg")
		local b = require("./lua_modules/pkg")
		assert(a == b, "pkg was loaded twice")
	`))
	assert.True(t, h.Has(testdata(t, "lua_modules/pkg.lua")))
}

func TestRequireUnknownModule(t *testing.T) {
	h := newHost(t)

	err := h.DoString(`require("does-not-exist")`)

	assert.ErrorContains(t, err, "cannot find module")
}

func TestLoadReturnsExports(t *testing.T) {
	h := newHost(t)

	v, err := h.Load(testdata(t, "lua_modules/nested/init.lua"))
	require.NoError(t, err)

	assert.Equal(t, map[string]any{
		"nested": true,
		"list":   []any{1, 2, 3},
	}, h.Export(v))
	assert.False(t, h.Has(testdata(t, "lua_modules/nested/init.lua")), "Load must not cache the unit")
}

func TestLoadScriptReturningNothing(t *testing.T) {
	h := newHost(t)

	v, err := h.Load(testdata(t, "greeter/plain.lua"))
	require.NoError(t, err)
	assert.Equal(t, true, v)
}

func TestLoadNativeModule(t *testing.T) {
	h := newHost(t)

	_, err := h.Load("string")

	assert.ErrorContains(t, err, "not a script")
}

func TestPreload(t *testing.T) {
	h := newHost(t)
	h.Preload("config", map[string]any{"name": "test"})

	require.NoError(t, h.DoString(`
		local config = require("config")
		assert(config.name == "test")
	`))
	id, err := h.Resolve("config", "")
	require.NoError(t, err)
	assert.Equal(t, rehire.Identity("config"), id)
}

func TestGoFunctionValues(t *testing.T) {
	h := newHost(t)
	h.Preload("double", lua.Function(func(l *lua.State) int {
		n := lua.CheckInteger(l, 1)
		l.PushInteger(n * 2)
		return 1
	}))

	require.NoError(t, h.DoString(`
		local double = require("double")
		assert(double(21) == 42)
	`))
}

func TestCallAndField(t *testing.T) {
	h := newHost(t)
	v, err := h.Load(testdata(t, "lua_modules/pkg.lua"))
	require.NoError(t, err)

	version, err := h.CallField(v, "version")
	require.NoError(t, err)
	assert.Equal(t, "1.0", version)

	_, err = h.Field("not a table", "x")
	assert.Error(t, err)

	_, err = h.CallField(v, "missing")
	assert.Error(t, err, "Calling nil should fail")
}

func TestValueSame(t *testing.T) {
	h := newHost(t)
	v, err := h.Load(testdata(t, "lua_modules/pkg.lua"))
	require.NoError(t, err)
	a, err := h.Field(v, "version")
	require.NoError(t, err)
	b, err := h.Field(v, "version")
	require.NoError(t, err)

	fa, fb := a.(*luahost.Value), b.(*luahost.Value)
	assert.NotSame(t, fa, fb)
	assert.True(t, fa.Same(fb))
	assert.False(t, fa.Same(v.(*luahost.Value)))
	assert.Equal(t, lua.TypeFunction, fa.Type())
}
