package luahost

import (
	"slices"

	"github.com/Shopify/go-lua"
	"github.com/gost-dom/rehire"
)

// GetInternal returns the value of the local variable name, as seen by the
// functions of unit.
func (h *Host) GetInternal(unit any, name string) (any, error) {
	l := h.state
	top := l.Top()
	defer l.SetTop(top)
	fn, up, ok := h.locate(unit, name)
	if !ok {
		return nil, rehire.BindingNotFoundError{Name: name}
	}
	lua.UpValue(l, fn, up)
	return h.toGo(-1), nil
}

// SetInternal sets the local variable name, as seen by the functions of unit.
// All functions sharing the variable see the new value.
func (h *Host) SetInternal(unit any, name string, value any) error {
	l := h.state
	top := l.Top()
	defer l.SetTop(top)
	fn, up, ok := h.locate(unit, name)
	if !ok {
		return rehire.BindingNotFoundError{Name: name}
	}
	h.Push(value)
	lua.SetUpValue(l, fn, up)
	return nil
}

// locate searches the functions defined by the unit's own script for an
// upvalue called name. On success, the function holding the upvalue is on the
// stack at index fn, and up is the upvalue's position. The caller must restore
// the stack top.
//
// The search is breadth first from the unit's value, visiting table fields in
// key order, so the same name always finds the same variable. Functions
// defined by other scripts, and Go functions, are neither matched nor
// searched; _ENV is never searched.
func (h *Host) locate(unit any, name string) (fn, up int, ok bool) {
	v, isRef := unit.(*Value)
	if !isRef || v.host != h || v.source == "" || name == "" || name == "_ENV" {
		return 0, 0, false
	}
	l := h.state
	if !l.CheckStack(8) {
		return 0, 0, false
	}
	l.NewTable()
	seen := l.Top()
	l.NewTable()
	queue := l.Top()
	tail := 0
	enqueue := func(index int) {
		index = l.AbsIndex(index)
		if t := l.TypeOf(index); t != lua.TypeFunction && t != lua.TypeTable {
			return
		}
		l.PushValue(index)
		l.RawGet(seen)
		visited := l.TypeOf(-1) != lua.TypeNil
		l.Pop(1)
		if visited {
			return
		}
		l.PushValue(index)
		l.PushBoolean(true)
		l.RawSet(seen)
		tail++
		l.PushValue(index)
		l.RawSetInt(queue, tail)
	}

	h.pushRef(v.ref)
	enqueue(-1)
	l.Pop(1)
	for head := 1; head <= tail; head++ {
		l.RawGetInt(queue, head)
		index := l.Top()
		if l.TypeOf(index) == lua.TypeFunction {
			if !h.definedIn(index, v.source) {
				l.Pop(1)
				continue
			}
			if i, found := upValueNamed(l, index, name); found {
				return index, i, true
			}
			for i := 1; ; i++ {
				n, ok := lua.UpValue(l, index, i)
				if !ok {
					break
				}
				if n != "_ENV" {
					enqueue(-1)
				}
				l.Pop(1)
			}
		} else {
			h.enqueueFields(index, enqueue)
		}
		l.Pop(1)
	}
	return 0, 0, false
}

func upValueNamed(l *lua.State, fn int, name string) (int, bool) {
	for i := 1; ; i++ {
		n, ok := lua.UpValue(l, fn, i)
		if !ok {
			return 0, false
		}
		l.Pop(1)
		if n == name {
			return i, true
		}
	}
}

// definedIn reports whether the function at index was created by the chunk
// with the given source.
func (h *Host) definedIn(index int, source string) bool {
	l := h.state
	l.PushValue(index)
	d, _ := lua.Info(l, ">S", nil)
	return d.Source == source
}

// enqueueFields passes the values of the table at index to enqueue, string
// keys in sorted order first, then number keys in ascending order. Fields with
// other keys are skipped.
func (h *Host) enqueueFields(index int, enqueue func(int)) {
	l := h.state
	var (
		names   []string
		numbers []float64
	)
	l.PushNil()
	for l.Next(index) {
		switch l.TypeOf(-2) {
		case lua.TypeString:
			k, _ := l.ToString(-2)
			names = append(names, k)
		case lua.TypeNumber:
			k, _ := l.ToNumber(-2)
			numbers = append(numbers, k)
		}
		l.Pop(1)
	}
	slices.Sort(names)
	slices.Sort(numbers)
	for _, k := range names {
		l.PushString(k)
		l.RawGet(index)
		enqueue(-1)
		l.Pop(1)
	}
	for _, k := range numbers {
		l.PushNumber(k)
		l.RawGet(index)
		enqueue(-1)
		l.Pop(1)
	}
}
