package vm

import "github.com/kristofer/ionscript/pkg/value"

// HostGroup is the runtime half of the host-function calling convention
// (spec §6): a single callable dispatching on an integer function id,
// registered against the VM under a group id that CALL_HF instructions
// reference. pkg/hostfunc's Registry is the compile-time counterpart
// that assigns these same group/function ids and checks arity; pkg/stdlib
// wires both halves together for the builtin functions.
type HostGroup interface {
	// Call services one CALL_HF dispatch. It must call exactly one of
	// CallManager's Return* methods before returning, unless it intends
	// to suspend the VM and fulfil the call later via the VM's
	// ResolvePendingCall (spec §5's coroutine-style suspension).
	Call(cm *CallManager, funcID uint8) error
}

// CallManager is the view a HostGroup gets over one CALL_HF's arguments
// and return slot (spec §6: "argument_count, argument(i), ...
// return_value(v)"). It is valid only for the duration of the Call that
// received it, or — if the group defers resolution — until the matching
// ResolvePendingCall.
type CallManager struct {
	vm       *VM
	base     int // index into vm.values of argument 0
	nArgs    int
	result   value.Value
	resolved bool
}

// ArgCount returns the number of arguments this call was made with.
func (cm *CallManager) ArgCount() int { return cm.nArgs }

// Arg returns the i'th argument (0-based). Panics if i is out of range,
// the same contract PushVal/PopTo have for out-of-range locations — a
// host group is expected to have already checked ArgCount/arity.
func (cm *CallManager) Arg(i int) value.Value {
	return cm.vm.values[cm.base+i]
}

// AssertArgType fails with a RuntimeError if argument i is not of kind
// want, sparing each host group from repeating the check by hand.
func (cm *CallManager) AssertArgType(i int, want value.Kind) error {
	if i < 0 || i >= cm.nArgs {
		return cm.vm.fail("argument index %d out of range (call has %d arguments)", i, cm.nArgs)
	}
	if got := cm.Arg(i).Kind(); got != want {
		return cm.vm.fail("argument %d: expected %s, got %s", i, want, got)
	}
	return nil
}

// Return resolves the call with v: once Call returns, the VM pops the
// arguments, pushes v in their place, and resumes dispatch.
func (cm *CallManager) Return(v value.Value) {
	cm.result = v
	cm.resolved = true
}

func (cm *CallManager) ReturnNil()            { cm.Return(value.NewNil()) }
func (cm *CallManager) ReturnNumber(n float64) { cm.Return(value.NewNumber(n)) }
func (cm *CallManager) ReturnString(s string)  { cm.Return(value.NewString(s)) }
func (cm *CallManager) ReturnBool(b bool)      { cm.Return(value.NewBool(b)) }
