// Package vm implements the register/stack virtual machine (C7) that
// executes bytecode produced by pkg/compiler.
//
// Virtual Machine Architecture:
//
// The VM keeps one flat value stack (`values`) shared by every activation
// record on the call stack. Each activation record remembers three things
// (spec §4.4, GLOSSARY):
//
//	return_ip             — where to resume the caller
//	stack_size             — where to truncate `values` back to on return
//	first_variable_location — the frame's addressing origin
//
// A bytecode Location is a signed byte: non-negative values are named
// slots (locals and interned literals), negative values are registers
// (anonymous expression temporaries). Both kinds resolve through the same
// formula, `first_variable_location + location` — named slots count up
// from the frame's origin, registers count down into the register band
// a PCALL_SF/REG instruction reserved just below it. This uniform
// addressing is why the instruction set has no separate "local" vs
// "register" opcode family.
//
// Execution Model:
//
// Run drives the dispatch loop from a fresh bytecode.Buffer until the
// reader is exhausted (the top-level program has no RETURN of its own).
// CallFunction re-enters the same dispatch loop for a re-entrant,
// embedder-initiated call: it pushes an activation record with the
// sentinel return_ip=0 and runs until the cursor lands back on 0, which
// only a RETURN/RETURN_NIL executed by that call's own body can do.
//
// Host-function suspension:
//
// CALL_HF hands a CallManager to the registered HostGroup and sets state
// WAITING_FOR_RETURN. A host group that resolves the call inline (the
// common case — print, len, append, ...) leaves the VM ready to keep
// dispatching in the same step. A host group that does not call a
// CallManager.Return* method before returning leaves the VM suspended;
// the embedder fulfils it later with ResolvePendingCall and resumes
// dispatch with GoOn (spec §5: "the WAITING_FOR_RETURN/PAUSED dance...
// implement with an explicit state enum, not with stack unwinding").
package vm

import (
	"github.com/pkg/errors"

	"github.com/kristofer/ionscript/pkg/bytecode"
	"github.com/kristofer/ionscript/pkg/value"
)

// State is the VM's execution state (spec §4.4).
type State int

const (
	Running State = iota
	Paused
	WaitingForReturn
	Finished
)

func (s State) String() string {
	switch s {
	case Running:
		return "RUNNING"
	case Paused:
		return "PAUSED"
	case WaitingForReturn:
		return "WAITING_FOR_RETURN"
	case Finished:
		return "FINISHED"
	default:
		return "UNKNOWN"
	}
}

// activation is one in-progress call's bookkeeping (GLOSSARY: "Activation
// record").
type activation struct {
	returnIP    int
	stackSize   int
	firstVarLoc int
}

// Options configures resource limits the teacher's VM leaves as bare
// constants; here they are a plain defaults struct in the same shape
// pkg/vm.New() used for its own configuration.
type Options struct {
	// MaxCallDepth caps the activation stack, guarding against unbounded
	// script-function recursion. Zero means use DefaultMaxCallDepth.
	MaxCallDepth int
}

// DefaultMaxCallDepth is used when Options.MaxCallDepth is zero.
const DefaultMaxCallDepth = 1024

// VM executes one compiled program at a time. It is not safe for
// concurrent use from multiple goroutines (spec §5: "single-threaded
// cooperative execution").
type VM struct {
	values      []value.Value
	activations []activation
	r           *bytecode.Reader

	state State

	groups  map[uint8]HostGroup
	globals *Globals

	pending        *CallManager
	stopOnIPZero   bool
	pauseRequested bool

	maxCallDepth int

	// Trace, if set, is called once per dispatched instruction before it
	// executes — an embedder's hook for logging, since the core carries
	// no logging dependency of its own (spec §1 externalizes I/O).
	Trace func(ip int, op bytecode.OpCode)
}

// New creates a VM with the given resource options.
func New(opts Options) *VM {
	maxDepth := opts.MaxCallDepth
	if maxDepth == 0 {
		maxDepth = DefaultMaxCallDepth
	}
	return &VM{
		groups:       make(map[uint8]HostGroup),
		globals:      NewGlobals(),
		maxCallDepth: maxDepth,
	}
}

// Globals returns the VM's global-variable table.
func (vm *VM) Globals() *Globals { return vm.globals }

// State returns the VM's current execution state.
func (vm *VM) State() State { return vm.state }

// RegisterHostGroup installs a HostGroup under id, the same id the
// compiler baked into CALL_HF's hfg_id operand via pkg/hostfunc.Registry.
func (vm *VM) RegisterHostGroup(id uint8, g HostGroup) {
	vm.groups[id] = g
}

func (vm *VM) current() *activation {
	return &vm.activations[len(vm.activations)-1]
}

func (vm *VM) root() *activation {
	return &vm.activations[0]
}

func (vm *VM) push(v value.Value) {
	vm.values = append(vm.values, v)
}

func (vm *VM) pop() value.Value {
	v := vm.values[len(vm.values)-1]
	vm.values = vm.values[:len(vm.values)-1]
	return v
}

func (vm *VM) addrLocal(loc bytecode.Location) int {
	return vm.current().firstVarLoc + int(loc)
}

func (vm *VM) addrGlobal(loc bytecode.Location) int {
	return vm.root().firstVarLoc + int(loc)
}

// Run loads buf and executes it from the start: the top-level program,
// ending when the instruction stream is exhausted.
func (vm *VM) Run(buf *bytecode.Buffer) error {
	vm.values = nil
	vm.activations = []activation{{returnIP: 0, stackSize: 0, firstVarLoc: 0}}
	vm.r = bytecode.NewReader(buf.Code)
	vm.state = Running
	vm.stopOnIPZero = false

	_, err := vm.dispatchLoop()
	return err
}

// CallFunction re-enters the dispatch loop to invoke a script function
// value directly with the given arguments (spec §4.4 "Re-entry"), as a
// host function does when it calls back into the script (e.g. a
// user-supplied comparator or callback). The VM must already be holding
// a loaded program (a prior Run), since fn.IP addresses into it.
func (vm *VM) CallFunction(fn value.Value, args []value.Value) (value.Value, error) {
	if fn.Kind() != value.ScriptFunction {
		return value.Value{}, vm.fail("cannot call a value of type %s", fn.Kind())
	}
	f := fn.Function()
	if len(args) != int(f.NArgs) {
		return value.Value{}, vm.fail("function expects %d argument(s), got %d", f.NArgs, len(args))
	}
	if len(vm.activations)+1 > vm.maxCallDepth {
		return value.Value{}, vm.fail("call stack depth exceeded (max %d)", vm.maxCallDepth)
	}

	savedIP := vm.r.IP()
	for i := 0; i < int(f.NRegisters); i++ {
		vm.push(value.NewNil())
	}
	for _, a := range args {
		vm.push(a)
	}
	vm.activations = append(vm.activations, activation{
		returnIP:    0,
		stackSize:   len(vm.values) - int(f.NRegisters) - len(args),
		firstVarLoc: len(vm.values) - len(args),
	})
	vm.r.SetIP(int(f.IP))
	vm.state = Running

	savedStop := vm.stopOnIPZero
	vm.stopOnIPZero = true
	result, err := vm.dispatchLoop()
	vm.stopOnIPZero = savedStop

	if err == nil {
		vm.r.SetIP(savedIP)
		vm.state = Running
	}
	return result, err
}

// Pause requests a cooperative pause, honored at the next instruction
// boundary (spec §5). GoOn resumes dispatch from where it left off.
func (vm *VM) Pause() { vm.pauseRequested = true }

// GoOn resumes a VM left PAUSED or WAITING_FOR_RETURN (after
// ResolvePendingCall). It is an error to call GoOn from any other state.
func (vm *VM) GoOn() error {
	if vm.state != Paused && vm.state != WaitingForReturn {
		return vm.fail("GoOn called while VM is %s, not PAUSED or WAITING_FOR_RETURN", vm.state)
	}
	vm.state = Running
	_, err := vm.dispatchLoop()
	return err
}

// ResolvePendingCall fulfils a CALL_HF that a HostGroup left suspended:
// it supplies the return value, pops the call's arguments, pushes v in
// their place, and leaves the VM ready for GoOn to resume dispatch.
func (vm *VM) ResolvePendingCall(v value.Value) error {
	if vm.pending == nil {
		return vm.fail("no pending host call to resolve")
	}
	cm := vm.pending
	vm.pending = nil
	vm.values = vm.values[:cm.base]
	vm.push(v)
	vm.state = Paused
	return nil
}

// dispatchLoop runs instructions until the VM pauses, finishes, suspends
// on a host call, or (when stopOnIPZero is set, for CallFunction) the
// cursor returns to the sentinel ip 0. On a stopOnIPZero exit it pops and
// returns the single value RETURN left on the stack.
func (vm *VM) dispatchLoop() (value.Value, error) {
	for {
		if vm.pauseRequested {
			vm.pauseRequested = false
			vm.state = Paused
			return value.NewNil(), nil
		}
		if vm.stopOnIPZero && vm.r.IP() == 0 {
			vm.state = Paused
			return vm.pop(), nil
		}
		if vm.r.AtEnd() {
			vm.state = Finished
			return value.NewNil(), nil
		}

		ip := vm.r.IP()
		op := vm.r.Op()
		if vm.Trace != nil {
			vm.Trace(ip, op)
		}
		if err := vm.step(op); err != nil {
			vm.state = Finished
			return value.Value{}, errors.Wrapf(err, "at ip %d", ip)
		}
		if vm.state == WaitingForReturn {
			return value.NewNil(), nil
		}
	}
}

// step executes the single instruction op, whose opcode byte has already
// been consumed from the reader.
func (vm *VM) step(op bytecode.OpCode) error {
	switch op {
	case bytecode.OpReg:
		n := vm.r.SmallSize()
		for i := uint8(0); i < n; i++ {
			vm.push(value.NewNil())
		}
		vm.current().firstVarLoc += int(n)

	case bytecode.OpPush:
		vm.push(value.NewNil())
	case bytecode.OpPushN:
		vm.push(value.NewNumber(vm.r.Number()))
	case bytecode.OpPushS:
		vm.push(value.NewString(vm.r.String()))
	case bytecode.OpPushB:
		vm.push(value.NewBool(vm.r.Bool()))
	case bytecode.OpPushVal:
		loc := vm.r.Location()
		vm.push(vm.values[vm.addrLocal(loc)])
	case bytecode.OpPopTo:
		loc := vm.r.Location()
		vm.values[vm.addrLocal(loc)] = vm.pop()
	case bytecode.OpPop:
		vm.pop()
	case bytecode.OpPopN:
		n := vm.r.SmallSize()
		vm.values = vm.values[:len(vm.values)-int(n)]

	case bytecode.OpStoreAtNil:
		loc := vm.r.Location()
		vm.values[vm.addrLocal(loc)] = value.NewNil()
	case bytecode.OpStoreAtF:
		loc := vm.r.Location()
		ip := vm.r.Index()
		nArgs := vm.r.SmallSize()
		nRegs := vm.r.SmallSize()
		vm.values[vm.addrLocal(loc)] = value.NewFunction(ip, nArgs, nRegs)
	case bytecode.OpMove:
		dst, src := vm.r.Location(), vm.r.Location()
		vm.values[vm.addrLocal(dst)] = vm.values[vm.addrLocal(src)]

	case bytecode.OpAdd:
		return vm.binaryArith(value.Add)
	case bytecode.OpSub:
		return vm.binaryArith(value.Sub)
	case bytecode.OpMul:
		return vm.binaryArith(value.Mul)
	case bytecode.OpDiv:
		return vm.binaryArith(value.Div)

	case bytecode.OpNot:
		target, src := vm.r.Location(), vm.r.Location()
		vm.values[vm.addrLocal(target)] = value.Not(vm.values[vm.addrLocal(src)])
	case bytecode.OpAnd:
		target, a, b := vm.r.Location(), vm.r.Location(), vm.r.Location()
		vm.values[vm.addrLocal(target)] = value.And(vm.values[vm.addrLocal(a)], vm.values[vm.addrLocal(b)])
	case bytecode.OpOr:
		target, a, b := vm.r.Location(), vm.r.Location(), vm.r.Location()
		vm.values[vm.addrLocal(target)] = value.Or(vm.values[vm.addrLocal(a)], vm.values[vm.addrLocal(b)])

	case bytecode.OpEq:
		target, a, b := vm.r.Location(), vm.r.Location(), vm.r.Location()
		vm.values[vm.addrLocal(target)] = value.NewBool(value.Equal(vm.values[vm.addrLocal(a)], vm.values[vm.addrLocal(b)]))
	case bytecode.OpNeq:
		target, a, b := vm.r.Location(), vm.r.Location(), vm.r.Location()
		vm.values[vm.addrLocal(target)] = value.NewBool(!value.Equal(vm.values[vm.addrLocal(a)], vm.values[vm.addrLocal(b)]))
	case bytecode.OpGr:
		return vm.compare(">")
	case bytecode.OpGre:
		return vm.compare(">=")
	case bytecode.OpLs:
		return vm.compare("<")
	case bytecode.OpLse:
		return vm.compare("<=")

	case bytecode.OpJump:
		ip := vm.r.Index()
		vm.r.SetIP(int(ip))
	case bytecode.OpJumpCond:
		loc := vm.r.Location()
		ip := vm.r.Index()
		if !vm.values[vm.addrLocal(loc)].Truthy() {
			vm.r.SetIP(int(ip))
		}

	case bytecode.OpReturnNil:
		vm.doReturn(value.NewNil())
	case bytecode.OpReturn:
		loc := vm.r.Location()
		v := vm.values[vm.addrLocal(loc)]
		vm.doReturn(v)

	case bytecode.OpPCallSFG:
		return vm.pcall(vm.addrGlobal)
	case bytecode.OpPCallSFL:
		return vm.pcall(vm.addrLocal)
	case bytecode.OpCallSFG:
		return vm.call(vm.addrGlobal)
	case bytecode.OpCallSFL:
		return vm.call(vm.addrLocal)
	case bytecode.OpCallHF:
		return vm.callHost()

	case bytecode.OpListNew:
		target := vm.r.Location()
		vm.values[vm.addrLocal(target)] = value.NewList(nil)
	case bytecode.OpListAdd:
		listLoc, valLoc := vm.r.Location(), vm.r.Location()
		list := vm.values[vm.addrLocal(listLoc)]
		if list.Kind() != value.List {
			return vm.fail("list.add: target is not a list (got %s)", list.Kind())
		}
		list.List().Items = append(list.List().Items, vm.values[vm.addrLocal(valLoc)])
	case bytecode.OpDictionaryNew:
		target := vm.r.Location()
		vm.values[vm.addrLocal(target)] = value.NewDictionary(value.NewDict())
	case bytecode.OpDictionaryAdd:
		dictLoc, keyLoc, valLoc := vm.r.Location(), vm.r.Location(), vm.r.Location()
		dict := vm.values[vm.addrLocal(dictLoc)]
		if dict.Kind() != value.Dictionary {
			return vm.fail("dict.add: target is not a dictionary (got %s)", dict.Kind())
		}
		if err := dict.Dict().Set(vm.values[vm.addrLocal(keyLoc)], vm.values[vm.addrLocal(valLoc)]); err != nil {
			return vm.fail("%v", err)
		}

	case bytecode.OpGet:
		return vm.containerGet()
	case bytecode.OpSet:
		return vm.containerSet()

	default:
		return vm.fail("unknown opcode %d", op)
	}
	return nil
}

func (vm *VM) binaryArith(fn func(a, b value.Value) (value.Value, error)) error {
	target, a, b := vm.r.Location(), vm.r.Location(), vm.r.Location()
	result, err := fn(vm.values[vm.addrLocal(a)], vm.values[vm.addrLocal(b)])
	if err != nil {
		return vm.fail("%v", err)
	}
	vm.values[vm.addrLocal(target)] = result
	return nil
}

func (vm *VM) compare(op string) error {
	target, a, b := vm.r.Location(), vm.r.Location(), vm.r.Location()
	result, err := value.Compare(op, vm.values[vm.addrLocal(a)], vm.values[vm.addrLocal(b)])
	if err != nil {
		return vm.fail("%v", err)
	}
	vm.values[vm.addrLocal(target)] = result
	return nil
}

// doReturn implements RETURN/RETURN_NIL: truncate the value stack to the
// current activation's stack_size, push the result, restore the caller's
// cursor, and pop the activation.
func (vm *VM) doReturn(result value.Value) {
	act := vm.current()
	returnIP := act.returnIP
	vm.values = vm.values[:act.stackSize]
	vm.push(result)
	vm.activations = vm.activations[:len(vm.activations)-1]
	vm.r.SetIP(returnIP)
}

// pcall implements PCALL_SF_{G|L}: reserve the callee's register band.
func (vm *VM) pcall(resolve func(bytecode.Location) int) error {
	loc := vm.r.Location()
	fnVal := vm.values[resolve(loc)]
	if fnVal.Kind() != value.ScriptFunction {
		return vm.fail("attempt to call a value of type %s", fnVal.Kind())
	}
	for i := uint8(0); i < fnVal.Function().NRegisters; i++ {
		vm.push(value.NewNil())
	}
	return nil
}

// call implements CALL_SF_{G|L}: verify arity, push an activation record,
// and transfer control to the callee's entry point.
func (vm *VM) call(resolve func(bytecode.Location) int) error {
	loc := vm.r.Location()
	nArgs := vm.r.SmallSize()
	fnVal := vm.values[resolve(loc)]
	if fnVal.Kind() != value.ScriptFunction {
		return vm.fail("attempt to call a value of type %s", fnVal.Kind())
	}
	fn := fnVal.Function()
	if int(nArgs) != int(fn.NArgs) {
		return vm.fail("function expects %d argument(s), got %d", fn.NArgs, nArgs)
	}
	if len(vm.activations)+1 > vm.maxCallDepth {
		return vm.fail("call stack depth exceeded (max %d)", vm.maxCallDepth)
	}
	vm.activations = append(vm.activations, activation{
		returnIP:    vm.r.IP(),
		stackSize:   len(vm.values) - int(fn.NRegisters) - int(nArgs),
		firstVarLoc: len(vm.values) - int(nArgs),
	})
	vm.r.SetIP(int(fn.IP))
	return nil
}

// callHost implements CALL_HF: hand the call off to the registered
// HostGroup, then either resume immediately (the group resolved inline)
// or leave the VM WAITING_FOR_RETURN for ResolvePendingCall.
func (vm *VM) callHost() error {
	hfgID := vm.r.SmallSize()
	fnID := vm.r.SmallSize()
	nArgs := vm.r.SmallSize()

	group, ok := vm.groups[hfgID]
	if !ok {
		return vm.fail("no host function group registered for id %d", hfgID)
	}

	cm := &CallManager{vm: vm, base: len(vm.values) - int(nArgs), nArgs: int(nArgs)}
	vm.state = WaitingForReturn
	if err := group.Call(cm, fnID); err != nil {
		return err
	}
	if !cm.resolved {
		vm.pending = cm
		return nil
	}
	vm.values = vm.values[:cm.base]
	vm.push(cm.result)
	vm.state = Running
	return nil
}

func (vm *VM) containerGet() error {
	target, containerLoc, indexLoc := vm.r.Location(), vm.r.Location(), vm.r.Location()
	container := vm.values[vm.addrLocal(containerLoc)]
	index := vm.values[vm.addrLocal(indexLoc)]

	switch container.Kind() {
	case value.List:
		i, err := listIndex(index, len(container.List().Items))
		if err != nil {
			return vm.fail("%v", err)
		}
		vm.values[vm.addrLocal(target)] = container.List().Items[i]
	case value.Dictionary:
		v, ok, err := container.Dict().Get(index)
		if err != nil {
			return vm.fail("%v", err)
		}
		if !ok {
			return vm.fail("key %s not found in dictionary", index.String())
		}
		vm.values[vm.addrLocal(target)] = v
	default:
		return vm.fail("cannot index into a value of type %s", container.Kind())
	}
	return nil
}

func (vm *VM) containerSet() error {
	containerLoc, indexLoc, valLoc := vm.r.Location(), vm.r.Location(), vm.r.Location()
	container := vm.values[vm.addrLocal(containerLoc)]
	index := vm.values[vm.addrLocal(indexLoc)]
	newVal := vm.values[vm.addrLocal(valLoc)]

	switch container.Kind() {
	case value.List:
		i, err := listIndex(index, len(container.List().Items))
		if err != nil {
			return vm.fail("%v", err)
		}
		container.List().Items[i] = newVal
	case value.Dictionary:
		if err := container.Dict().Set(index, newVal); err != nil {
			return vm.fail("%v", err)
		}
	default:
		return vm.fail("cannot index into a value of type %s", container.Kind())
	}
	return nil
}

func listIndex(idx value.Value, size int) (int, error) {
	if idx.Kind() != value.Number {
		return 0, errors.Errorf("list index must be a number, got %s", idx.Kind())
	}
	i := int(idx.Number())
	if float64(i) != idx.Number() || i < 0 || i >= size {
		return 0, errors.Errorf("list index %v out of range (size %d)", idx.Number(), size)
	}
	return i, nil
}
