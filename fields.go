package rehire

import (
	"fmt"
	"iter"
	"reflect"
	"strings"
	"unsafe"
)

// FieldIntrospector is an [Introspector] for units implemented in Go, where
// the unit is a pointer to a struct, and the private bindings are its fields,
// exported or not.
//
// A name is either a dotted path from the unit, e.g., "store.client", or a
// single field name, which is searched for through struct fields, pointers,
// and interfaces reachable from the unit. The search is depth first in field
// order, and the first match is used.
//
// Values are set in place, so every holder of a pointer into the graph sees
// the new value.
type FieldIntrospector struct{}

var _ Introspector = FieldIntrospector{}

func (FieldIntrospector) GetInternal(unit any, name string) (any, error) {
	f, err := lookupField(unit, name)
	if err != nil {
		return nil, err
	}
	return f.Interface(), nil
}

func (FieldIntrospector) SetInternal(unit any, name string, value any) error {
	f, err := lookupField(unit, name)
	if err != nil {
		return err
	}
	if value == nil {
		switch f.Kind() {
		case reflect.Pointer, reflect.Interface, reflect.Map, reflect.Slice,
			reflect.Func, reflect.Chan:
			f.SetZero()
			return nil
		}
		return fmt.Errorf("rehire: field %s of type %s cannot be nil", name, f.Type())
	}
	v := reflect.ValueOf(value)
	if !v.Type().AssignableTo(f.Type()) {
		return fmt.Errorf("rehire: cannot assign %s to field %s of type %s",
			v.Type(), name, f.Type())
	}
	f.Set(v)
	return nil
}

func lookupField(unit any, name string) (reflect.Value, error) {
	root := reflect.ValueOf(unit)
	if name == "" || root.Kind() != reflect.Pointer || root.IsNil() {
		return reflect.Value{}, BindingNotFoundError{Name: name}
	}
	var (
		f  reflect.Value
		ok bool
	)
	if strings.Contains(name, ".") {
		f, ok = fieldByPath(root, strings.Split(name, "."))
	} else {
		f, ok = findField(root, name, make(map[uintptr]bool))
	}
	if !ok {
		return reflect.Value{}, BindingNotFoundError{Name: name}
	}
	if !f.CanSet() {
		return reflect.Value{}, fmt.Errorf("rehire: field %s is not addressable", name)
	}
	return f, nil
}

func fieldByPath(v reflect.Value, path []string) (reflect.Value, bool) {
	for _, name := range path {
		s, ok := structOf(v)
		if !ok {
			return reflect.Value{}, false
		}
		sf, ok := s.Type().FieldByName(name)
		if !ok {
			return reflect.Value{}, false
		}
		v = settable(s.FieldByIndex(sf.Index))
	}
	return v, true
}

// findField searches the struct reachable from v. Pointers already visited
// are skipped, so cyclic graphs terminate.
func findField(v reflect.Value, name string, visited map[uintptr]bool) (reflect.Value, bool) {
	for v.Kind() == reflect.Interface || v.Kind() == reflect.Pointer {
		if v.IsNil() {
			return reflect.Value{}, false
		}
		if v.Kind() == reflect.Pointer {
			if visited[v.Pointer()] {
				return reflect.Value{}, false
			}
			visited[v.Pointer()] = true
		}
		v = v.Elem()
	}
	if v.Kind() != reflect.Struct {
		return reflect.Value{}, false
	}
	for f, fv := range fields(v) {
		if f.Name == name {
			return fv, true
		}
	}
	for _, fv := range fields(v) {
		if res, ok := findField(fv, name, visited); ok {
			return res, true
		}
	}
	return reflect.Value{}, false
}

func structOf(v reflect.Value) (reflect.Value, bool) {
	for v.Kind() == reflect.Interface || v.Kind() == reflect.Pointer {
		if v.IsNil() {
			return reflect.Value{}, false
		}
		v = v.Elem()
	}
	return v, v.Kind() == reflect.Struct
}

// fields iterates the fields of the struct v. Unexported fields are made
// settable, which requires v to be addressable; values reached through a
// pointer always are.
func fields(v reflect.Value) iter.Seq2[reflect.StructField, reflect.Value] {
	t := v.Type()
	return func(yield func(reflect.StructField, reflect.Value) bool) {
		for i := range t.NumField() {
			if !yield(t.Field(i), settable(v.Field(i))) {
				return
			}
		}
	}
}

func settable(f reflect.Value) reflect.Value {
	if f.CanSet() || !f.CanAddr() {
		return f
	}
	return reflect.NewAt(f.Type(), unsafe.Pointer(f.UnsafeAddr())).Elem()
}
