package parser

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/kristofer/ionscript/pkg/ast"
	"github.com/kristofer/ionscript/pkg/lexer"
)

func parse(t *testing.T, src string) *ast.Node {
	t.Helper()
	p := New(lexer.New(src))
	n, err := p.Parse()
	require.NoError(t, err)
	return n
}

func TestParse_SimpleAssignment(t *testing.T) {
	block := parse(t, "x = 1 + 2\n")
	require.Len(t, block.Children, 1)
	assign := block.Child(0)
	require.Equal(t, ast.Assignment, assign.Kind)
	require.Equal(t, ast.Variable, assign.Left().Kind)
	// constant-folded: 1 + 2 -> 3
	require.Equal(t, ast.NumberLit, assign.Right().Kind)
	require.Equal(t, 3.0, assign.Right().Number)
}

func TestParse_CompoundAssignmentDesugars(t *testing.T) {
	block := parse(t, "x += 2\n")
	assign := block.Child(0)
	require.Equal(t, ast.Assignment, assign.Kind)
	rhs := assign.Right()
	require.Equal(t, ast.Sum, rhs.Kind)
	require.Equal(t, ast.Variable, rhs.Left().Kind)
	require.Equal(t, "x", rhs.Left().Str)
}

func TestParse_DivisionByLiteralZeroNotFolded(t *testing.T) {
	block := parse(t, "x = 1 / 0\n")
	assign := block.Child(0)
	require.Equal(t, ast.Division, assign.Right().Kind)
}

func TestParse_IfElseIf(t *testing.T) {
	block := parse(t, `
if x < 1
  y = 1
else if x < 2
  y = 2
else
  y = 3
end
`)
	ifNode := block.Child(0)
	require.Equal(t, ast.If, ifNode.Kind)
	require.Len(t, ifNode.Children, 3)
	elseIf := ifNode.Child(2)
	require.Equal(t, ast.If, elseIf.Kind)
}

func TestParse_IfInlineForm(t *testing.T) {
	block := parse(t, "if x < 1: y = 1\n")
	ifNode := block.Child(0)
	require.Equal(t, ast.If, ifNode.Kind)
	require.Len(t, ifNode.Children, 2)
}

func TestParse_WhileInlineForm(t *testing.T) {
	block := parse(t, "x = 0\nwhile x < 3: x = x + 1\n")
	require.Equal(t, ast.While, block.Child(1).Kind)
}

func TestParse_ForLoop(t *testing.T) {
	block := parse(t, `
for i = 0; i < 3; i = i + 1
  print(i)
end
`)
	forNode := block.Child(0)
	require.Equal(t, ast.For, forNode.Kind)
	require.Len(t, forNode.Children, 4)
	require.Equal(t, ast.Assignment, forNode.Child(0).Kind)
}

func TestParse_FunctionDef(t *testing.T) {
	block := parse(t, `
def add(a, b)
  return a + b
end
`)
	fn := block.Child(0)
	require.Equal(t, ast.FunctionDef, fn.Kind)
	require.Equal(t, "add", fn.Str)
	require.Equal(t, ast.Argument, fn.Child(0).Kind)
	require.Equal(t, ast.Argument, fn.Child(1).Kind)
	body := fn.Child(2)
	require.Equal(t, ast.Block, body.Kind)
	require.Equal(t, ast.Return, body.Child(0).Kind)
}

func TestParse_ReturnOutsideFunctionIsError(t *testing.T) {
	p := New(lexer.New("return 1\n"))
	_, err := p.Parse()
	require.Error(t, err)
}

func TestParse_BreakOutsideLoopIsError(t *testing.T) {
	p := New(lexer.New("break\n"))
	_, err := p.Parse()
	require.Error(t, err)
}

func TestParse_MethodCallSugar(t *testing.T) {
	block := parse(t, "x.push(1)\n")
	call := block.Child(0)
	require.Equal(t, ast.FunctionCall, call.Kind)
	require.Equal(t, "push", call.Str)
	require.Len(t, call.Children, 2)
	require.Equal(t, ast.Variable, call.Child(0).Kind)
	require.Equal(t, "x", call.Child(0).Str)
}

func TestParse_ContainerElement(t *testing.T) {
	block := parse(t, "y = x[0]\n")
	assign := block.Child(0)
	elem := assign.Right()
	require.Equal(t, ast.ContainerElement, elem.Kind)
}

func TestParse_ListAndDictLiterals(t *testing.T) {
	block := parse(t, "x = [1, 2, 3]\ny = {\"a\": 1, \"b\": 2}\n")
	list := block.Child(0).Right()
	require.Equal(t, ast.List, list.Kind)
	require.Len(t, list.Children, 3)

	dict := block.Child(1).Right()
	require.Equal(t, ast.Dictionary, dict.Kind)
	require.Len(t, dict.Children, 2)
	require.Equal(t, ast.Pair, dict.Child(0).Kind)
}

func TestParse_NewCallDesugarsToFunctionCall(t *testing.T) {
	block := parse(t, "x = new Point(1, 2)\n")
	call := block.Child(0).Right()
	require.Equal(t, ast.FunctionCall, call.Kind)
	require.Equal(t, "Point_new", call.Str)
	require.Len(t, call.Children, 2)
}

func TestParse_AndOrPrecedence(t *testing.T) {
	block := parse(t, "x = a and b or c\n")
	// the grammar makes `and` the outer (loosest-binding) rule and `or`
	// the inner one (spec §4.2's ladder lists `and` before `or`):
	// a and (b or c)
	and := block.Child(0).Right()
	require.Equal(t, ast.And, and.Kind)
	require.Equal(t, ast.Or, and.Right().Kind)
}
