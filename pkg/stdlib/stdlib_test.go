package stdlib_test

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/kristofer/ionscript/pkg/compiler"
	"github.com/kristofer/ionscript/pkg/hostfunc"
	"github.com/kristofer/ionscript/pkg/lexer"
	"github.com/kristofer/ionscript/pkg/parser"
	"github.com/kristofer/ionscript/pkg/stdlib"
	"github.com/kristofer/ionscript/pkg/vm"
)

// harness parses, compiles, and runs src with the stdlib host group wired
// in, returning the machine (for Globals inspection) and print's output.
func harness(t *testing.T, src string) (*vm.VM, string) {
	t.Helper()
	p := parser.New(lexer.New(src))
	root, err := p.Parse()
	require.NoError(t, err)

	reg := hostfunc.NewRegistry()
	stdlib.RegisterSignatures(reg)

	c := compiler.New(reg)
	buf, err := c.Compile(root)
	require.NoError(t, err)

	machine := vm.New(vm.Options{})
	group := stdlib.New(machine)
	var out bytes.Buffer
	group.Out = &out
	machine.RegisterHostGroup(stdlib.GroupID, group)

	require.NoError(t, machine.Run(buf))
	return machine, out.String()
}

func TestStdlib_Print(t *testing.T) {
	_, out := harness(t, `print("hello ", "world")`+"\n")
	require.Equal(t, "hello world", out)
}

func TestStdlib_PostAndGet(t *testing.T) {
	machine, _ := harness(t, `
post("score", 42)
x = get("score")
`+"capture_unused = x\n")
	v, ok := machine.Globals().Get("score")
	require.True(t, ok)
	require.Equal(t, 42.0, v.Number())
}

func TestStdlib_Len(t *testing.T) {
	_, out := harness(t, `
l = [1, 2, 3]
print(len(l))
print(len("abcd"))
`)
	require.Equal(t, "34", out)
}

func TestStdlib_AppendAndRemove(t *testing.T) {
	_, out := harness(t, `
l = [1, 2]
append(l, 3)
print(len(l))
remove(l, 0)
print(len(l))
print(l[0])
`)
	require.Equal(t, "32" + "2", out)
}

func TestStdlib_AssertPasses(t *testing.T) {
	_, out := harness(t, `assert(1 == 1)
print("ok")
`)
	require.Equal(t, "ok", out)
}

func TestStdlib_AssertFailureIsRuntimeError(t *testing.T) {
	p := parser.New(lexer.New(`assert(1 == 2, "one is not two")` + "\n"))
	root, err := p.Parse()
	require.NoError(t, err)

	reg := hostfunc.NewRegistry()
	stdlib.RegisterSignatures(reg)
	c := compiler.New(reg)
	buf, err := c.Compile(root)
	require.NoError(t, err)

	machine := vm.New(vm.Options{})
	machine.RegisterHostGroup(stdlib.GroupID, stdlib.New(machine))
	err = machine.Run(buf)
	require.Error(t, err)
	require.Contains(t, err.Error(), "one is not two")
}

func TestStdlib_Str(t *testing.T) {
	_, out := harness(t, `print(str(42))`+"\n")
	require.Equal(t, "42", out)
}

func TestStdlib_JoinWithList(t *testing.T) {
	_, out := harness(t, `print(join(", ", [1, 2, 3]))`+"\n")
	require.Equal(t, "1, 2, 3", out)
}

func TestStdlib_JoinWithVarargs(t *testing.T) {
	_, out := harness(t, `print(join("-", "a", "b", "c"))`+"\n")
	require.Equal(t, "a-b-c", out)
}

func TestStdlib_Error(t *testing.T) {
	p := parser.New(lexer.New(`error("boom")` + "\n"))
	root, err := p.Parse()
	require.NoError(t, err)

	reg := hostfunc.NewRegistry()
	stdlib.RegisterSignatures(reg)
	c := compiler.New(reg)
	buf, err := c.Compile(root)
	require.NoError(t, err)

	machine := vm.New(vm.Options{})
	machine.RegisterHostGroup(stdlib.GroupID, stdlib.New(machine))
	err = machine.Run(buf)
	require.Error(t, err)
	require.Contains(t, err.Error(), "boom")
}

func TestStdlib_GetUndefinedGlobalIsError(t *testing.T) {
	p := parser.New(lexer.New(`x = get("missing")` + "\n"))
	root, err := p.Parse()
	require.NoError(t, err)

	reg := hostfunc.NewRegistry()
	stdlib.RegisterSignatures(reg)
	c := compiler.New(reg)
	buf, err := c.Compile(root)
	require.NoError(t, err)

	machine := vm.New(vm.Options{})
	machine.RegisterHostGroup(stdlib.GroupID, stdlib.New(machine))
	err = machine.Run(buf)
	require.Error(t, err)
}
