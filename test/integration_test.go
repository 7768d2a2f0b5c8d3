// Package test provides end-to-end integration tests for ionscript: full
// source -> lex -> parse -> compile -> run pipelines, exercising the
// scenarios and invariants documented for the language.
package test

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/kristofer/ionscript/pkg/ast"
	"github.com/kristofer/ionscript/pkg/compiler"
	"github.com/kristofer/ionscript/pkg/hostfunc"
	"github.com/kristofer/ionscript/pkg/lexer"
	"github.com/kristofer/ionscript/pkg/parser"
	"github.com/kristofer/ionscript/pkg/stdlib"
	"github.com/kristofer/ionscript/pkg/vm"
)

// runProgram parses, compiles, and runs src with the standard host-function
// group wired in, returning what it printed to stdout.
func runProgram(t *testing.T, src string) (string, error) {
	t.Helper()

	p := parser.New(lexer.New(src))
	program, err := p.Parse()
	require.NoError(t, err)

	reg := hostfunc.NewRegistry()
	stdlib.RegisterSignatures(reg)

	c := compiler.New(reg)
	buf, err := c.Compile(program)
	require.NoError(t, err)

	machine := vm.New(vm.Options{})
	group := stdlib.New(machine)
	var out bytes.Buffer
	group.Out = &out
	machine.RegisterHostGroup(stdlib.GroupID, group)

	err = machine.Run(buf)
	return out.String(), err
}

func TestScenario_S1_ArithmeticPrecedence(t *testing.T) {
	out, err := runProgram(t, "print(1 + 2 * 3)\n")
	require.NoError(t, err)
	require.Equal(t, "7", out)
}

func TestScenario_S2_WhileLoop(t *testing.T) {
	out, err := runProgram(t, "x = 0\nwhile x < 3\n  x = x + 1\nend\nprint(x)\n")
	require.NoError(t, err)
	require.Equal(t, "3", out)
}

func TestScenario_S3_FunctionCallAndArityError(t *testing.T) {
	src := "def f(a, b)\n  return a + b\nend\nprint(f(2, 5))\n"
	out, err := runProgram(t, src)
	require.NoError(t, err)
	require.Equal(t, "7", out)

	_, err = runProgram(t, "def f(a, b)\n  return a + b\nend\nprint(f(1))\n")
	require.Error(t, err)
	require.Contains(t, err.Error(), "1")
	require.Contains(t, err.Error(), "2")
}

func TestScenario_S4_ListAppendAndLen(t *testing.T) {
	src := `
l = [1, 2, 3]
append(l, 4)
print(len(l))
print(l[3])
`
	out, err := runProgram(t, src)
	require.NoError(t, err)
	require.Equal(t, "44", out)
}

func TestScenario_S5_DictionaryGetSet(t *testing.T) {
	src := `
d = {"a": 1}
d["b"] = 2
print(d["a"] + d["b"])
`
	out, err := runProgram(t, src)
	require.NoError(t, err)
	require.Equal(t, "3", out)
}

func TestScenario_S6_ForLoopWithContinue(t *testing.T) {
	src := `
for i = 0; i < 3; i = i + 1
  if i == 1
    continue
  end
  print(i)
end
`
	out, err := runProgram(t, src)
	require.NoError(t, err)
	require.Equal(t, "02", out)
}

func TestScenario_S7_AssertFailureMessage(t *testing.T) {
	_, err := runProgram(t, `assert(1 == 2, "nope")`+"\n")
	require.Error(t, err)
	require.Contains(t, err.Error(), "user assertion failed: nope.")
}

// TestInvariant_LoopUnwindRestoresStackSize exercises property 4: break and
// continue unwind the value stack exactly to the loop's entry size, so the
// loop variable's own slot survives untouched and a variable declared
// after the loop lands where it would have without the loop ever running.
func TestInvariant_LoopUnwindRestoresStackSize(t *testing.T) {
	src := `
x = 0
while x < 5
  x = x + 1
  if x == 2
    continue
  end
  if x == 4
    break
  end
end
y = x + 100
print(y)
`
	out, err := runProgram(t, src)
	require.NoError(t, err)
	require.Equal(t, "104", out)
}

// TestInvariant_LiteralInterning exercises property 6: two textually
// identical literals within one function occupy a single named slot, so
// mutating one occurrence's underlying value never happens (numbers and
// strings are immutable) but repeating a literal many times must not grow
// the frame — a function recursing on itself would otherwise run out of
// the 127 named-slot budget (spec §9) long before hitting a real
// programmer-visible limit.
func TestInvariant_LiteralInterning(t *testing.T) {
	src := `
def repeat()
  a = 1
  b = 1
  c = 1
  d = 1
  return a + b + c + d
end
print(repeat())
`
	out, err := runProgram(t, src)
	require.NoError(t, err)
	require.Equal(t, "4", out)
}

// TestInvariant_ParseSucceedsThenCompileSucceeds exercises property 1 in
// its positive direction: any program that parses cleanly also compiles,
// given no semantic errors (undefined names, inconsistent comparisons).
func TestInvariant_ParseSucceedsThenCompileSucceeds(t *testing.T) {
	programs := []string{
		"print(1)\n",
		"x = 1\nif x > 0\n  print(x)\nend\n",
		"def f(a)\n  return a\nend\nprint(f(1))\n",
		"l = [1, 2]\nprint(l[0])\n",
	}
	for _, src := range programs {
		p := parser.New(lexer.New(src))
		root, err := p.Parse()
		require.NoError(t, err)

		reg := hostfunc.NewRegistry()
		stdlib.RegisterSignatures(reg)
		c := compiler.New(reg)
		_, err = c.Compile(root)
		require.NoError(t, err)
	}
}

// TestInvariant_ConstantFoldingMatchesVM exercises property 2: a pure
// arithmetic expression over literals is simplified at parse time to the
// same value the VM would compute for it at runtime.
func TestInvariant_ConstantFoldingMatchesVM(t *testing.T) {
	src := "print(2 + 3 * 4 - 1)\n"

	p := parser.New(lexer.New(src))
	root, err := p.Parse()
	require.NoError(t, err)

	// The print(...) argument should have folded down to a single
	// NumberLit node before the compiler ever runs.
	call := root.Children[0]
	require.Equal(t, ast.FunctionCall, call.Kind)
	arg := call.Children[0]
	require.Equal(t, ast.NumberLit, arg.Kind)
	require.Equal(t, 13.0, arg.Number)

	out, err := runProgram(t, src)
	require.NoError(t, err)
	require.Equal(t, "13", out)
}
