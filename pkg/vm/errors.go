package vm

import "fmt"

// RuntimeError reports a failure raised while executing bytecode: a type
// mismatch in an operator or container access, an out-of-range index, an
// arity mismatch on a script-function call, a division by zero, or a
// host-initiated failure (the `error(msg)` builtin). Spec §7: "type
// mismatches in operators and container accesses are runtime errors, not
// panics."
type RuntimeError struct {
	Message string
	IP      int
}

func (e *RuntimeError) Error() string {
	return fmt.Sprintf("runtime error at ip %d: %s", e.IP, e.Message)
}

// UndefinedGlobalVariable reports a `get(name)` lookup against a name the
// host has never `post`ed.
type UndefinedGlobalVariable struct {
	Name string
}

func (e *UndefinedGlobalVariable) Error() string {
	return fmt.Sprintf("undefined global variable %q", e.Name)
}

func (vm *VM) fail(format string, args ...interface{}) error {
	return &RuntimeError{Message: fmt.Sprintf(format, args...), IP: vm.r.IP()}
}
