package luahost_test

import (
	"path/filepath"
	"testing"

	"github.com/gost-dom/rehire"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGlobalFromScript(t *testing.T) {
	h := newHost(t)
	h.InstallGlobal(rehire.New(h, rehire.WithDir(h.Root())))

	require.NoError(t, h.RunFile(filepath.Join("testdata", "scripts", "pass.lua")))
	assert.True(t, h.Has(testdata(t, "greeter/helper.lua")), "The real helper should be cached after the script")
}

func TestGlobalFailingAssertion(t *testing.T) {
	h := newHost(t)
	h.InstallGlobal(rehire.New(h, rehire.WithDir(h.Root())))

	err := h.RunFile(filepath.Join("testdata", "scripts", "fail.lua"))

	assert.ErrorContains(t, err, "greeting was overridden")
}

func TestGlobalUnknownModule(t *testing.T) {
	h := newHost(t)
	h.InstallGlobal(rehire.New(h, rehire.WithDir(h.Root())))

	err := h.RunFile(filepath.Join("testdata", "scripts", "missing.lua"))

	assert.ErrorContains(t, err, `cannot find module "./does-not-exist"`)
}

func TestGlobalResolvesFromRootOutsideScripts(t *testing.T) {
	h := newHost(t)
	h.InstallGlobal(rehire.New(h))

	require.NoError(t, h.DoString(`
		local m = rehire("./greeter/counter")
		m:set("step", 5)
		assert(m.value.next() == 5)
		m:reset()
		assert(m:get("step") == 1)
		assert(m.value.next() == 6)

		m:set({ count = 10, step = 2 })
		assert(m.value.next() == 12)
		m:reset()
		assert(m.value.peek() == 6)
	`))
}

func TestGlobalRejectsInvalidDependencies(t *testing.T) {
	h := newHost(t)
	h.InstallGlobal(rehire.New(h))

	err := h.DoString(`rehire("./greeter/counter", "not a table")`)

	assert.ErrorContains(t, err, "table expected")
}

func TestGlobalUnknownBinding(t *testing.T) {
	h := newHost(t)
	h.InstallGlobal(rehire.New(h))

	err := h.DoString(`rehire("./greeter/counter"):set("nope", 1)`)

	assert.ErrorContains(t, err, `binding "nope" not found`)
}
