package rehire

// Handle is the result of loading a unit with [Rehirer.Load]. The handle is
// owned by the caller that loaded it.
type Handle struct {
	id       Identity
	value    any
	bindings *Bindings
}

// Value returns the exported value of the unit.
func (h *Handle) Value() any { return h.value }

// Identity returns the canonical identity the unit was loaded from.
func (h *Handle) Identity() Identity { return h.id }

// Bindings returns the binding store of the unit.
func (h *Handle) Bindings() *Bindings { return h.bindings }

// Binding returns the current value of the private binding name.
func (h *Handle) Binding(name string) (any, error) { return h.bindings.Get(name) }

// SetBinding overrides the private binding name.
func (h *Handle) SetBinding(name string, value any) (Revert, error) {
	return h.bindings.Set(name, value)
}

// SetBindings overrides several private bindings in one step.
func (h *Handle) SetBindings(values map[string]any) (Revert, error) {
	return h.bindings.SetAll(values)
}

// Reset restores all overridden bindings to their original values.
func (h *Handle) Reset() error { return h.bindings.Reset() }

// TB is the part of [testing.TB] used by [Handle.Cleanup].
type TB interface {
	Helper()
	Cleanup(func())
	Errorf(format string, args ...any)
}

// Cleanup resets the handle's bindings when the test completes.
func (h *Handle) Cleanup(t TB) {
	t.Helper()
	t.Cleanup(func() {
		if err := h.Reset(); err != nil {
			t.Errorf("rehire: reset %s: %v", h.id, err)
		}
	})
}
