package luahost

import (
	"github.com/Shopify/go-lua"
	"github.com/gost-dom/rehire"
)

// InstallGlobal makes r available to scripts as the global function rehire:
//
//	local m = rehire("./module", { ["./dependency"] = fake })
//	m.value.run()
//	m:set("localVariable", 42)
//	m:set({ a = 1, b = 2 })
//	m:get("localVariable")
//	m:reset()
//
// Relative specifiers are resolved against the directory of the calling
// script. r must operate on h.
func (h *Host) InstallGlobal(r *rehire.Rehirer) {
	l := h.state
	l.PushGoFunction(func(l *lua.State) int { return h.rehire(l, r) })
	l.SetGlobal("rehire")
}

func (h *Host) rehire(l *lua.State, r *rehire.Rehirer) int {
	specifier := lua.CheckString(l, 1)
	deps := map[string]any{}
	switch l.TypeOf(2) {
	case lua.TypeNone, lua.TypeNil:
	case lua.TypeTable:
		h.readTable(2, deps)
	default:
		lua.ArgumentError(l, 2, "table expected")
		return 0
	}
	handle, err := r.In(h.dir()).Load(specifier, deps)
	if err != nil {
		lua.Errorf(l, "%s", err.Error())
		return 0
	}
	h.pushHandle(handle)
	return 1
}

// readTable copies the string keyed fields of the table at index into m.
func (h *Host) readTable(index int, m map[string]any) {
	l := h.state
	index = l.AbsIndex(index)
	l.PushNil()
	for l.Next(index) {
		if l.TypeOf(-2) == lua.TypeString {
			k, _ := l.ToString(-2)
			m[k] = h.toGo(-1)
		}
		l.Pop(1)
	}
}

func (h *Host) pushHandle(handle *rehire.Handle) {
	l := h.state
	l.NewTable()
	h.Push(handle.Value())
	l.SetField(-2, "value")
	l.PushGoFunction(func(l *lua.State) int {
		name := lua.CheckString(l, 2)
		v, err := handle.Binding(name)
		if err != nil {
			lua.Errorf(l, "%s", err.Error())
			return 0
		}
		h.Push(v)
		return 1
	})
	l.SetField(-2, "get")
	l.PushGoFunction(func(l *lua.State) int {
		var err error
		if l.TypeOf(2) == lua.TypeTable {
			values := map[string]any{}
			h.readTable(2, values)
			_, err = handle.SetBindings(values)
		} else {
			name := lua.CheckString(l, 2)
			_, err = handle.SetBinding(name, h.toGo(3))
		}
		if err != nil {
			lua.Errorf(l, "%s", err.Error())
		}
		return 0
	})
	l.SetField(-2, "set")
	l.PushGoFunction(func(l *lua.State) int {
		if err := handle.Reset(); err != nil {
			lua.Errorf(l, "%s", err.Error())
		}
		return 0
	})
	l.SetField(-2, "reset")
}
