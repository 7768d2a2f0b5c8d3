// Package stdlib implements the default set of built-in host functions
// (spec §6): print, post, get, len, append, remove, assert, dump, str,
// join, error. It is not part of the C1–C7 core — spec §1 scopes "the
// set of built-in host functions" as an external concern — but an
// embedder needs at least this much to run anything beyond pure
// arithmetic, and the end-to-end scenarios in spec §8 all exercise it.
//
// Wiring: Register both halves against a shared group id — the
// compile-time pkg/hostfunc.Registry (arity, name -> {group,func} ids)
// and the runtime pkg/vm.HostGroup (the actual dispatch) — so the
// compiler and the VM agree on what CALL_HF's operands mean.
package stdlib

import (
	"fmt"
	"io"
	"os"
	"sort"
	"strings"

	"github.com/kristofer/ionscript/pkg/hostfunc"
	"github.com/kristofer/ionscript/pkg/value"
	"github.com/kristofer/ionscript/pkg/vm"
)

// GroupID is the host-function-group id stdlib registers itself under.
// An embedder wiring additional host groups alongside stdlib should pick
// different ids for those.
const GroupID uint8 = 0

// Function ids, stable for the lifetime of a compiled program: a script
// compiled against one version of this package must keep dispatching to
// the same builtin after a VM upgrade.
const (
	fnPrint uint8 = iota
	fnPost
	fnGet
	fnLen
	fnAppend
	fnRemove
	fnAssert
	fnDump
	fnStr
	fnJoin
	fnError
)

var signatures = map[string]hostfunc.Signature{
	"print":  {GroupID: GroupID, FuncID: fnPrint, MinArgs: 0, MaxArgs: -1},
	"post":   {GroupID: GroupID, FuncID: fnPost, MinArgs: 2, MaxArgs: 2},
	"get":    {GroupID: GroupID, FuncID: fnGet, MinArgs: 1, MaxArgs: 1},
	"len":    {GroupID: GroupID, FuncID: fnLen, MinArgs: 1, MaxArgs: 1},
	"append": {GroupID: GroupID, FuncID: fnAppend, MinArgs: 2, MaxArgs: 2},
	"remove": {GroupID: GroupID, FuncID: fnRemove, MinArgs: 2, MaxArgs: 2},
	"assert": {GroupID: GroupID, FuncID: fnAssert, MinArgs: 1, MaxArgs: 2},
	"dump":   {GroupID: GroupID, FuncID: fnDump, MinArgs: 0, MaxArgs: 0},
	"str":    {GroupID: GroupID, FuncID: fnStr, MinArgs: 1, MaxArgs: 1},
	"join":   {GroupID: GroupID, FuncID: fnJoin, MinArgs: 1, MaxArgs: -1},
	"error":  {GroupID: GroupID, FuncID: fnError, MinArgs: 1, MaxArgs: 1},
}

// RegisterSignatures adds every builtin's compile-time signature to reg,
// so the compiler can resolve calls to them and check arity.
func RegisterSignatures(reg *hostfunc.Registry) {
	for name, sig := range signatures {
		reg.Register(name, sig)
	}
}

// Group is the runtime HostGroup implementing the builtins. Out is where
// `print` writes (defaults to os.Stdout via New).
type Group struct {
	Out io.Writer
	vm  *vm.VM
}

// New returns a Group wired to machine's globals (for post/get/dump) and
// writing print's output to stdout. Register it with
// machine.RegisterHostGroup(stdlib.GroupID, ...) after also calling
// RegisterSignatures against the compiler's hostfunc.Registry.
func New(machine *vm.VM) *Group {
	return &Group{Out: os.Stdout, vm: machine}
}

// Call dispatches funcID to the builtin it identifies (spec §6).
func (g *Group) Call(cm *vm.CallManager, funcID uint8) error {
	switch funcID {
	case fnPrint:
		return g.print(cm)
	case fnPost:
		return g.post(cm)
	case fnGet:
		return g.get(cm)
	case fnLen:
		return g.len(cm)
	case fnAppend:
		return g.append(cm)
	case fnRemove:
		return g.remove(cm)
	case fnAssert:
		return g.assert(cm)
	case fnDump:
		return g.dump(cm)
	case fnStr:
		return g.str(cm)
	case fnJoin:
		return g.join(cm)
	case fnError:
		return g.error(cm)
	default:
		return &vm.RuntimeError{Message: fmt.Sprintf("stdlib: unknown function id %d", funcID)}
	}
}

func (g *Group) print(cm *vm.CallManager) error {
	parts := make([]string, cm.ArgCount())
	for i := range parts {
		parts[i] = cm.Arg(i).String()
	}
	fmt.Fprint(g.Out, strings.Join(parts, ""))
	cm.ReturnNil()
	return nil
}

func (g *Group) post(cm *vm.CallManager) error {
	if err := cm.AssertArgType(0, value.String); err != nil {
		return err
	}
	g.vm.Globals().Post(cm.Arg(0).Str(), cm.Arg(1))
	cm.ReturnNil()
	return nil
}

func (g *Group) get(cm *vm.CallManager) error {
	if err := cm.AssertArgType(0, value.String); err != nil {
		return err
	}
	name := cm.Arg(0).Str()
	v, ok := g.vm.Globals().Get(name)
	if !ok {
		return &vm.UndefinedGlobalVariable{Name: name}
	}
	cm.Return(v)
	return nil
}

func (g *Group) len(cm *vm.CallManager) error {
	arg := cm.Arg(0)
	switch arg.Kind() {
	case value.List:
		cm.ReturnNumber(float64(len(arg.List().Items)))
	case value.Dictionary:
		cm.ReturnNumber(float64(arg.Dict().Len()))
	case value.String:
		cm.ReturnNumber(float64(len(arg.Str())))
	default:
		return &vm.RuntimeError{Message: fmt.Sprintf("len: unsupported operand type %s", arg.Kind())}
	}
	return nil
}

func (g *Group) append(cm *vm.CallManager) error {
	if err := cm.AssertArgType(0, value.List); err != nil {
		return err
	}
	list := cm.Arg(0).List()
	list.Items = append(list.Items, cm.Arg(1))
	cm.ReturnNil()
	return nil
}

func (g *Group) remove(cm *vm.CallManager) error {
	if err := cm.AssertArgType(0, value.List); err != nil {
		return err
	}
	if err := cm.AssertArgType(1, value.Number); err != nil {
		return err
	}
	list := cm.Arg(0).List()
	i := int(cm.Arg(1).Number())
	if i < 0 || i >= len(list.Items) {
		return &vm.RuntimeError{Message: fmt.Sprintf("remove: index %d out of range (size %d)", i, len(list.Items))}
	}
	list.Items = append(list.Items[:i], list.Items[i+1:]...)
	cm.ReturnNil()
	return nil
}

// assert implements the user-facing assertion builtin: `assert(cond[,
// msg])` fails the call with a RuntimeError reading "user assertion
// failed: <msg>." when cond is falsy (spec §8 scenario S7).
func (g *Group) assert(cm *vm.CallManager) error {
	if cm.Arg(0).Truthy() {
		cm.ReturnNil()
		return nil
	}
	msg := "assertion failed"
	if cm.ArgCount() > 1 {
		msg = cm.Arg(1).String()
	}
	return &vm.RuntimeError{Message: fmt.Sprintf("user assertion failed: %s.", msg)}
}

func (g *Group) dump(cm *vm.CallManager) error {
	keys := g.vm.Globals().Keys()
	sort.Strings(keys)
	var b strings.Builder
	for _, k := range keys {
		v, _ := g.vm.Globals().Get(k)
		fmt.Fprintf(&b, "%s = %s\n", k, v.String())
	}
	fmt.Fprint(g.Out, b.String())
	cm.ReturnNil()
	return nil
}

func (g *Group) str(cm *vm.CallManager) error {
	cm.ReturnString(cm.Arg(0).String())
	return nil
}

func (g *Group) join(cm *vm.CallManager) error {
	sep := cm.Arg(0).String()
	var parts []string
	if cm.ArgCount() == 2 && cm.Arg(1).Kind() == value.List {
		for _, item := range cm.Arg(1).List().Items {
			parts = append(parts, item.String())
		}
	} else {
		for i := 1; i < cm.ArgCount(); i++ {
			parts = append(parts, cm.Arg(i).String())
		}
	}
	cm.ReturnString(strings.Join(parts, sep))
	return nil
}

func (g *Group) error(cm *vm.CallManager) error {
	return &vm.RuntimeError{Message: cm.Arg(0).String()}
}
