package rehire

import (
	"errors"
	"fmt"
)

var (
	ErrModuleNotFound  = errors.New("rehire: module not found")
	ErrBindingNotFound = errors.New("rehire: binding not found")
	ErrLoadFailure     = errors.New("rehire: load failure")
	// ErrSessionConflict is returned when a dependency is substituted while
	// another live session is already substituting it.
	ErrSessionConflict = errors.New("rehire: identity is substituted by another session")
)

// ModuleNotFoundError is returned when a specifier cannot be resolved. The
// module cache is never touched when this error is returned from Load.
type ModuleNotFoundError struct {
	Specifier string
	Dir       string
	Err       error
}

func (e ModuleNotFoundError) Error() string {
	msg := fmt.Sprintf("rehire: cannot find module %q", e.Specifier)
	if e.Dir != "" {
		msg += fmt.Sprintf(" from %s", e.Dir)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e ModuleNotFoundError) Is(target error) bool { return target == ErrModuleNotFound }
func (e ModuleNotFoundError) Unwrap() error        { return e.Err }

// BindingNotFoundError is returned when a unit has no private binding with the
// requested name.
type BindingNotFoundError struct {
	Name string
}

func (e BindingNotFoundError) Error() string {
	return fmt.Sprintf("rehire: binding %q not found", e.Name)
}

func (e BindingNotFoundError) Is(target error) bool { return target == ErrBindingNotFound }

// LoadError wraps an error raised by the host while loading a unit.
type LoadError struct {
	Identity Identity
	Err      error
}

func (e LoadError) Error() string {
	return fmt.Sprintf("rehire: loading %s: %v", e.Identity, e.Err)
}

func (e LoadError) Is(target error) bool { return target == ErrLoadFailure }
func (e LoadError) Unwrap() error        { return e.Err }

type conflictError struct {
	id Identity
}

func (e conflictError) Error() string {
	return fmt.Sprintf("%s: %s", ErrSessionConflict.Error(), e.id)
}

func (e conflictError) Is(target error) bool { return target == ErrSessionConflict }
