package hostobject

import (
	"errors"
	"fmt"
)

var (
	// ErrDuplicateMember is reported when a name is declared twice in one table.
	ErrDuplicateMember = errors.New("duplicate member name")
	// ErrEmptyName is reported when a member is declared without a name.
	ErrEmptyName = errors.New("member name cannot be empty")
	// ErrNilMember is reported when a member function is nil.
	ErrNilMember = errors.New("member function is nil")
	// ErrBuildPanic is reported when a declaration's build function panics.
	ErrBuildPanic = errors.New("declaration build panicked")
	// ErrObjectClosed is wrapped by StaleObjectError.
	ErrObjectClosed = errors.New("host object is closed")
	// ErrUnknownProperty is wrapped by UnknownPropertyError.
	ErrUnknownProperty = errors.New("unknown property")
)

// DeclarationError reports an invalid member declaration.
// It is fatal to the declaration: no tables are built. Name is empty when the
// failure is not tied to one member.
type DeclarationError struct {
	Err  error
	Type string
	Name string
	Kind Kind
}

func (e *DeclarationError) Error() string {
	if e.Name == "" && e.Kind == KindNotFound {
		return fmt.Sprintf("declaring %s: %v", e.Type, e.Err)
	}
	return fmt.Sprintf("declaring %s %s %q: %v", e.Type, e.Kind, e.Name, e.Err)
}

func (e *DeclarationError) Unwrap() error {
	return e.Err
}

// UnknownPropertyError reports a write to a property without a setter
// under SetStrict.
type UnknownPropertyError struct {
	Type string
	Name string
}

func (e *UnknownPropertyError) Error() string {
	return fmt.Sprintf("cannot set %q on %s: no such property", e.Name, e.Type)
}

func (e *UnknownPropertyError) Unwrap() error {
	return ErrUnknownProperty
}

// StaleObjectError reports access through a closed Object, including calls to
// function values handed out before Close.
type StaleObjectError struct {
	Type string
	Name string
}

func (e *StaleObjectError) Error() string {
	return fmt.Sprintf("%s.%s: %v", e.Type, e.Name, ErrObjectClosed)
}

func (e *StaleObjectError) Unwrap() error {
	return ErrObjectClosed
}

// MemberError reports a failure inside an exported member that was converted
// from a panic by PanicRecovery.
type MemberError struct {
	Err   error
	Name  string
	Panic any
}

func (e *MemberError) Error() string {
	return fmt.Sprintf("%s: %v", e.Name, e.Err)
}

func (e *MemberError) Unwrap() error {
	return e.Err
}

// panicError turns a recovered panic value into an error.
func panicError(name string, r any) *MemberError {
	var msg string
	if err, ok := r.(error); ok {
		msg = err.Error()
	} else if s, ok := r.(string); ok {
		msg = s
	} else {
		msg = "panic recovered"
	}
	return &MemberError{
		Name:  name,
		Err:   errors.New("panic: " + msg),
		Panic: r,
	}
}
