package luahost

import (
	"fmt"
	"maps"
	"math"
	"slices"

	"github.com/Shopify/go-lua"
)

// Registry fields holding the values referenced from Go, by ref, and the ref
// of each referenced value.
const (
	refsKey = "rehire.refs"
	idsKey  = "rehire.refids"
)

// maxExportDepth limits how deep Export follows nested tables.
const maxExportDepth = 32

// Value is a reference from Go to a Lua table, function, userdata, or thread.
// Pushing a Value pushes the very same Lua object, so a Value can be used to
// restore a binding exactly.
type Value struct {
	host     *Host
	ref      int
	typ      lua.Type
	typeName string
	// source is the chunk source of the script, for values returned by
	// Host.Load.
	source string
}

// Type returns the Lua type of the value.
func (v *Value) Type() lua.Type { return v.typ }

func (v *Value) String() string {
	return fmt.Sprintf("lua %s #%d", v.typeName, v.ref)
}

// Same reports whether v and other reference the same Lua object.
func (v *Value) Same(other *Value) bool {
	if v == nil || other == nil || v.host != other.host {
		return v == other
	}
	l := v.host.state
	top := l.Top()
	defer l.SetTop(top)
	v.host.pushRef(v.ref)
	v.host.pushRef(other.ref)
	return l.RawEqual(-1, -2)
}

func (h *Host) pushRef(ref int) {
	l := h.state
	l.Field(lua.RegistryIndex, refsKey)
	l.RawGetInt(-1, ref)
	l.Remove(-2)
}

// newRef references the value at index. A value referenced before gets the
// same ref again, so the number of refs is bounded by the number of distinct
// objects seen from Go.
func (h *Host) newRef(index int) *Value {
	l := h.state
	index = l.AbsIndex(index)
	l.Field(lua.RegistryIndex, idsKey)
	l.PushValue(index)
	l.RawGet(-2)
	ref, ok := l.ToInteger(-1)
	l.Pop(2)
	if !ok {
		h.refs++
		ref = h.refs
		l.Field(lua.RegistryIndex, refsKey)
		l.PushValue(index)
		l.RawSetInt(-2, ref)
		l.Pop(1)
		l.Field(lua.RegistryIndex, idsKey)
		l.PushValue(index)
		l.PushInteger(ref)
		l.RawSet(-3)
		l.Pop(1)
	}
	return &Value{
		host:     h,
		ref:      ref,
		typ:      l.TypeOf(index),
		typeName: lua.TypeNameOf(l, index),
	}
}

// toGo converts the Lua value at index. Strings, numbers, and booleans are
// converted to Go values, integral numbers to int; other values become a
// *Value.
func (h *Host) toGo(index int) any {
	l := h.state
	switch l.TypeOf(index) {
	case lua.TypeNil, lua.TypeNone:
		return nil
	case lua.TypeBoolean:
		return l.ToBoolean(index)
	case lua.TypeNumber:
		n, _ := l.ToNumber(index)
		return normalizeNumber(n)
	case lua.TypeString:
		s, _ := l.ToString(index)
		return s
	default:
		return h.newRef(index)
	}
}

func normalizeNumber(value float64) any {
	if math.Mod(value, 1) == 0 && value >= math.MinInt32 && value <= math.MaxInt32 {
		return int(value)
	}
	return value
}

// Push pushes a Go value onto the Lua stack.
//
// A *Value pushes the Lua object it references. Maps with string keys and
// slices become tables, and Go functions with the signature of a
// [lua.Function] become Lua functions. Other values become userdata.
func (h *Host) Push(value any) {
	l := h.state
	l.CheckStack(4)
	switch v := value.(type) {
	case nil:
		l.PushNil()
	case *Value:
		if v.host != h {
			panic("luahost: value belongs to another host")
		}
		h.pushRef(v.ref)
	case bool:
		l.PushBoolean(v)
	case string:
		l.PushString(v)
	case int:
		l.PushInteger(v)
	case int32:
		l.PushInteger(int(v))
	case int64:
		l.PushNumber(float64(v))
	case float32:
		l.PushNumber(float64(v))
	case float64:
		l.PushNumber(v)
	case lua.Function:
		l.PushGoFunction(v)
	case func(*lua.State) int:
		l.PushGoFunction(v)
	case map[string]any:
		l.NewTable()
		for _, k := range slices.Sorted(maps.Keys(v)) {
			h.Push(v[k])
			l.SetField(-2, k)
		}
	case []any:
		l.NewTable()
		for i, e := range v {
			h.Push(e)
			l.RawSetInt(-2, i+1)
		}
	default:
		l.PushUserData(v)
	}
}

// Export converts a value returned by the host into plain Go values; tables
// with consecutive integer keys starting from 1 become []any, other tables
// map[string]any, ignoring non-string keys. Functions are left as *Value.
func (h *Host) Export(value any) any {
	v, ok := value.(*Value)
	if !ok || v.typ != lua.TypeTable {
		return value
	}
	l := h.state
	top := l.Top()
	defer l.SetTop(top)
	h.pushRef(v.ref)
	return h.tableToGo(l.Top(), 0)
}

func (h *Host) exportAt(index, depth int) any {
	if h.state.TypeOf(index) == lua.TypeTable && depth < maxExportDepth {
		return h.tableToGo(index, depth+1)
	}
	return h.toGo(index)
}

func (h *Host) tableToGo(index, depth int) any {
	l := h.state
	l.CheckStack(4)
	index = l.AbsIndex(index)
	isArray := true
	maxIndex := 0
	count := 0
	l.PushNil()
	for l.Next(index) {
		if isArray {
			if l.TypeOf(-2) != lua.TypeNumber {
				isArray = false
			} else if idx, ok := l.ToInteger(-2); ok && idx > 0 {
				count++
				if idx > maxIndex {
					maxIndex = idx
				}
			} else {
				isArray = false
			}
		}
		l.Pop(1)
	}

	if isArray && count > 0 && maxIndex == count {
		result := make([]any, 0, maxIndex)
		for i := 1; i <= maxIndex; i++ {
			l.RawGetInt(index, i)
			result = append(result, h.exportAt(-1, depth))
			l.Pop(1)
		}
		return result
	}

	output := map[string]any{}
	l.PushNil()
	for l.Next(index) {
		if l.TypeOf(-2) == lua.TypeString {
			key, _ := l.ToString(-2)
			output[key] = h.exportAt(-1, depth)
		}
		l.Pop(1)
	}
	return output
}

// Call calls the function fn with args, and returns its first result.
func (h *Host) Call(fn any, args ...any) (any, error) {
	l := h.state
	top := l.Top()
	defer l.SetTop(top)
	l.CheckStack(len(args) + 2)
	h.Push(fn)
	for _, a := range args {
		h.Push(a)
	}
	if err := l.ProtectedCall(len(args), 1, 0); err != nil {
		return nil, err
	}
	return h.toGo(-1), nil
}

// Field returns the field key of the table value t.
func (h *Host) Field(t any, key string) (any, error) {
	l := h.state
	top := l.Top()
	defer l.SetTop(top)
	h.Push(t)
	if l.TypeOf(-1) != lua.TypeTable {
		return nil, fmt.Errorf("luahost: indexing %v: not a table", t)
	}
	l.Field(-1, key)
	return h.toGo(-1), nil
}

// CallField calls the function in field key of the table value t.
func (h *Host) CallField(t any, key string, args ...any) (any, error) {
	fn, err := h.Field(t, key)
	if err != nil {
		return nil, err
	}
	return h.Call(fn, args...)
}
