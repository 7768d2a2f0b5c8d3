// Package compiler implements the single-pass tree-walking compiler (C5):
// ast.Node -> bytecode.
//
// Two disjoint regions share the VM's value stack (spec §4.3):
//
//   - Named slots, non-negative locations relative to the current
//     activation frame's base: globals at the bottom, then each
//     function's own locals/arguments. Looked up by a linear scan of the
//     compiler's name-stack, confined to the current frame.
//   - Registers, negative locations counting down from the same frame
//     base into the register band reserved just below it, holding
//     anonymous intermediates of expression evaluation. This
//     compiler tracks them with a simple LIFO depth counter (allocReg /
//     freeReg): allocating a register increments the depth and records
//     the new high-water mark, freeing it decrements the depth. Because
//     every allocation updates the high-water mark as a side effect, the
//     list/dictionary-literal register-undercount noted as an open
//     question in the source material (computing but discarding
//     max(-result, n_required) instead of storing it back) cannot
//     reproduce here — there is nothing to discard.
//
// Literal interning (Nil/Bool/Number/String) is per function: the first
// occurrence of a given literal within a function pushes a new named
// slot, keyed by a synthetic name ("true", "false", the number's decimal
// text, or "$"+the string contents — the "$" prefix keeps string keys
// from colliding with identifier names); later occurrences reuse that
// slot.
//
// Loop headers and call-argument lists are compiled in two passes. A
// declare-only walk first interns any literals (and declares any
// assignment-target variables) appearing in a loop's condition/step or a
// call's arguments, emitting only the slot-creating opcodes; the real
// walk that follows then only emits computation, because everything it
// references is already a named slot. This keeps a loop's condition
// bytecode — which runs once per iteration via the back-jump — from
// re-pushing a literal's slot on every pass.
package compiler

import (
	"fmt"
	"strconv"

	"github.com/pkg/errors"

	"github.com/kristofer/ionscript/pkg/ast"
	"github.com/kristofer/ionscript/pkg/bytecode"
	"github.com/kristofer/ionscript/pkg/hostfunc"
)

// Location is an alias of bytecode.Location for readability in this
// package.
type Location = bytecode.Location

const maxNamedSlots = 127 // signed byte: 0..127 non-negative
const maxRegisters = 128  // signed byte: -1..-128

// SemanticError reports a name-resolution or type-consistency failure
// caught at compile time (spec §6, §7).
type SemanticError struct {
	Line    int
	Message string
}

func (e *SemanticError) Error() string {
	return fmt.Sprintf("line %d: %s", e.Line, e.Message)
}

// loopCtx tracks the compile-time state of one enclosing loop: the
// name-stack size at the loop body's entry (so break/continue know how
// many slots to pop before jumping), and the jump offsets that must be
// patched once the loop's back-edge and exit point are known.
type loopCtx struct {
	bodyNamesStart int
	continueFixups []int
	breakFixups    []int
}

// Compiler turns a parsed ast.Node tree into a bytecode.Buffer.
type Compiler struct {
	w    *bytecode.Writer
	host *hostfunc.Registry

	names     []string
	frameBase int
	regDepth  int
	highWater int

	frameStack     []int
	regDepthStack  []int
	highWaterStack []int

	literals map[string]Location
	funcs    map[string]Location // script-function name -> global slot location

	loopStack []*loopCtx

	errs []error
}

// New creates a Compiler. host may be nil if the program calls no host
// functions.
func New(host *hostfunc.Registry) *Compiler {
	if host == nil {
		host = hostfunc.NewRegistry()
	}
	return &Compiler{
		host:     host,
		literals: make(map[string]Location),
		funcs:    make(map[string]Location),
	}
}

func (c *Compiler) errorf(line int, format string, args ...interface{}) {
	c.errs = append(c.errs, &SemanticError{Line: line, Message: fmt.Sprintf(format, args...)})
}

// Compile compiles root (the program's top-level Block) into a bytecode
// buffer. root's top-level names become the program's globals.
func (c *Compiler) Compile(root *ast.Node) (*bytecode.Buffer, error) {
	c.w = bytecode.NewWriter()

	c.w.Op(bytecode.OpReg)
	regOff := c.w.Len()
	c.w.SmallSize(0)

	for _, stmt := range root.Children {
		c.compileStatement(stmt)
	}

	c.w.PatchSmallSize(regOff, uint8(c.highWater))

	if len(c.errs) > 0 {
		return nil, errors.Wrapf(c.errs[0], "compile: %d error(s)", len(c.errs))
	}
	return bytecode.Assemble(c.w), nil
}

// --- name-stack / frame / register bookkeeping ---

func (c *Compiler) pushName(name string) Location {
	if len(c.names)-c.frameBase >= maxNamedSlots {
		c.errorf(0, "too many named slots in one frame (max %d)", maxNamedSlots)
	}
	c.names = append(c.names, name)
	return Location(len(c.names) - 1 - c.frameBase)
}

func (c *Compiler) lookupLocalOnly(name string) (Location, bool) {
	for i := len(c.names) - 1; i >= c.frameBase; i-- {
		if c.names[i] == name {
			return Location(i - c.frameBase), true
		}
	}
	return 0, false
}

func (c *Compiler) pushFrame() {
	c.frameStack = append(c.frameStack, c.frameBase)
	c.frameBase = len(c.names)
	c.regDepthStack = append(c.regDepthStack, c.regDepth)
	c.regDepth = 0
	c.highWaterStack = append(c.highWaterStack, c.highWater)
	c.highWater = 0
}

func (c *Compiler) popFrame() {
	n := len(c.frameStack) - 1
	c.frameBase = c.frameStack[n]
	c.frameStack = c.frameStack[:n]
	c.regDepth = c.regDepthStack[n]
	c.regDepthStack = c.regDepthStack[:n]
	c.highWater = c.highWaterStack[n]
	c.highWaterStack = c.highWaterStack[:n]
}

func (c *Compiler) allocReg() Location {
	c.regDepth++
	if c.regDepth > c.highWater {
		c.highWater = c.regDepth
	}
	if c.regDepth > maxRegisters {
		c.errorf(0, "too many live registers in one frame (max %d)", maxRegisters)
	}
	return Location(-c.regDepth)
}

func (c *Compiler) freeReg() {
	if c.regDepth > 0 {
		c.regDepth--
	}
}

// freeIfReg frees loc's register slot if loc addresses a register (a
// negative location); named slots are never freed this way.
func (c *Compiler) freeIfReg(loc Location) {
	if loc < 0 {
		c.freeReg()
	}
}

// --- literal interning ---

func (c *Compiler) internNil() Location {
	return c.intern("nil", func() { c.w.Op(bytecode.OpPush) })
}

func (c *Compiler) internBool(b bool) Location {
	key := "false"
	if b {
		key = "true"
	}
	return c.intern(key, func() {
		c.w.Op(bytecode.OpPushB)
		c.w.Bool(b)
	})
}

func (c *Compiler) internNumber(v float64) Location {
	key := strconv.FormatFloat(v, 'g', -1, 64)
	return c.intern(key, func() {
		c.w.Op(bytecode.OpPushN)
		c.w.Number(v)
	})
}

func (c *Compiler) internString(s string) Location {
	key := "$" + s
	return c.intern(key, func() {
		c.w.Op(bytecode.OpPushS)
		c.w.String(s)
	})
}

func (c *Compiler) intern(key string, emit func()) Location {
	if loc, ok := c.literals[key]; ok {
		return loc
	}
	loc := c.pushName(key)
	c.literals[key] = loc
	emit()
	return loc
}

// --- name-stack cleanup (block scopes) ---

// popNamesEmitted drops the names introduced since start, both at
// runtime (POP/POP_N, batched at up to 255 per POP_N) and in the
// compiler's own bookkeeping, removing any of them from funcs and any
// interned literal whose slot is popped from literals too.
func (c *Compiler) popNamesEmitted(start int) {
	count := len(c.names) - start
	c.emitUnwindPops(count)
	for i, name := range c.names[start:] {
		delete(c.funcs, name)
		if loc, ok := c.literals[name]; ok && int(loc) == start+i-c.frameBase {
			delete(c.literals, name)
		}
	}
	c.names = c.names[:start]
}

// emitUnwindPops drops count value-stack slots without touching the
// compiler's name-stack — used by break/continue, which must unwind the
// runtime stack early without un-declaring names still in textual scope.
func (c *Compiler) emitUnwindPops(count int) {
	for count > 0 {
		chunk := count
		if chunk > 255 {
			chunk = 255
		}
		if chunk == 1 {
			c.w.Op(bytecode.OpPop)
		} else {
			c.w.Op(bytecode.OpPopN)
			c.w.SmallSize(uint8(chunk))
		}
		count -= chunk
	}
}

// --- declare-only pre-pass ---

// declareOnlyWalk interns literals and declares new assignment-target
// variables found anywhere in n's subtree, emitting only the slot
// creating opcodes, and skips every other kind of opcode.
func (c *Compiler) declareOnlyWalk(n *ast.Node) {
	if n == nil {
		return
	}
	switch n.Kind {
	case ast.NilLit:
		c.internNil()
		return
	case ast.BooleanLit:
		c.internBool(n.Boolean)
		return
	case ast.NumberLit:
		c.internNumber(n.Number)
		return
	case ast.StringLit:
		c.internString(n.Str)
		return
	case ast.Variable:
		return
	case ast.Negation:
		// compileNegation subtracts from an interned zero.
		c.internNumber(0)
	case ast.Assignment:
		if lhs := n.Left(); lhs.Kind == ast.Variable {
			if _, ok := c.lookupLocalOnly(lhs.Str); !ok {
				c.pushName(lhs.Str)
				c.w.Op(bytecode.OpPush)
			}
		} else {
			c.declareOnlyWalk(lhs)
		}
		c.declareOnlyWalk(n.Right())
		return
	}
	for _, child := range n.Children {
		c.declareOnlyWalk(child)
	}
}

// --- statements ---

func (c *Compiler) compileStatement(n *ast.Node) {
	switch n.Kind {
	case ast.If:
		c.compileIf(n)
	case ast.While:
		c.compileWhile(n)
	case ast.For:
		c.compileFor(n)
	case ast.FunctionDef:
		c.compileFunctionDef(n)
	case ast.Return:
		c.compileReturn(n)
	case ast.Continue:
		c.compileContinue(n)
	case ast.Break:
		c.compileBreak(n)
	case ast.Block:
		c.compileBlock(n)
	default:
		loc := c.compileExpr(n)
		c.freeIfReg(loc)
	}
}

// compileBlock compiles a block-scoped statement sequence (an if/while/
// for body), popping whatever names it introduced on exit.
func (c *Compiler) compileBlock(n *ast.Node) {
	start := len(c.names)
	for _, stmt := range n.Children {
		c.compileStatement(stmt)
	}
	c.popNamesEmitted(start)
}

func (c *Compiler) compileIf(n *ast.Node) {
	condLoc := c.compileExpr(n.Child(0))
	c.w.Op(bytecode.OpJumpCond)
	c.w.Location(condLoc)
	c.freeIfReg(condLoc)
	condJumpOff := c.w.Index(0)

	c.compileBlock(n.Child(1))

	elseNode := n.Child(2)
	if elseNode == nil {
		c.w.PatchIndex(condJumpOff, bytecode.Index(c.w.Len()))
		return
	}

	c.w.Op(bytecode.OpJump)
	endJumpOff := c.w.Index(0)
	c.w.PatchIndex(condJumpOff, bytecode.Index(c.w.Len()))

	if elseNode.Kind == ast.If {
		c.compileIf(elseNode)
	} else {
		c.compileBlock(elseNode)
	}
	c.w.PatchIndex(endJumpOff, bytecode.Index(c.w.Len()))
}

func (c *Compiler) compileWhile(n *ast.Node) {
	condNode, bodyNode := n.Child(0), n.Child(1)

	c.declareOnlyWalk(condNode)
	loopTop := bytecode.Index(c.w.Len())

	condLoc := c.compileExpr(condNode)
	c.w.Op(bytecode.OpJumpCond)
	c.w.Location(condLoc)
	c.freeIfReg(condLoc)
	exitOff := c.w.Index(0)

	lp := &loopCtx{bodyNamesStart: len(c.names)}
	c.loopStack = append(c.loopStack, lp)
	for _, stmt := range bodyNode.Children {
		c.compileStatement(stmt)
	}
	c.popNamesEmitted(lp.bodyNamesStart)

	c.w.Op(bytecode.OpJump)
	c.w.PatchIndex(c.w.Index(0), loopTop)

	afterLoop := bytecode.Index(c.w.Len())
	c.w.PatchIndex(exitOff, afterLoop)
	for _, off := range lp.continueFixups {
		c.w.PatchIndex(off, loopTop)
	}
	for _, off := range lp.breakFixups {
		c.w.PatchIndex(off, afterLoop)
	}
	c.loopStack = c.loopStack[:len(c.loopStack)-1]
}

func (c *Compiler) compileFor(n *ast.Node) {
	initNode, condNode, stepNode, bodyNode := n.Child(0), n.Child(1), n.Child(2), n.Child(3)

	c.declareOnlyWalk(condNode)
	c.declareOnlyWalk(stepNode)

	initLoc := c.compileExpr(initNode)
	c.freeIfReg(initLoc)

	loopTop := bytecode.Index(c.w.Len())
	condLoc := c.compileExpr(condNode)
	c.w.Op(bytecode.OpJumpCond)
	c.w.Location(condLoc)
	c.freeIfReg(condLoc)
	exitOff := c.w.Index(0)

	lp := &loopCtx{bodyNamesStart: len(c.names)}
	c.loopStack = append(c.loopStack, lp)
	for _, stmt := range bodyNode.Children {
		c.compileStatement(stmt)
	}
	c.popNamesEmitted(lp.bodyNamesStart)

	stepIndex := bytecode.Index(c.w.Len())
	stepLoc := c.compileExpr(stepNode)
	c.freeIfReg(stepLoc)

	c.w.Op(bytecode.OpJump)
	c.w.PatchIndex(c.w.Index(0), loopTop)

	afterLoop := bytecode.Index(c.w.Len())
	c.w.PatchIndex(exitOff, afterLoop)
	for _, off := range lp.continueFixups {
		c.w.PatchIndex(off, stepIndex)
	}
	for _, off := range lp.breakFixups {
		c.w.PatchIndex(off, afterLoop)
	}
	c.loopStack = c.loopStack[:len(c.loopStack)-1]
}

func (c *Compiler) currentLoop() *loopCtx {
	if len(c.loopStack) == 0 {
		return nil
	}
	return c.loopStack[len(c.loopStack)-1]
}

func (c *Compiler) compileBreak(n *ast.Node) {
	lp := c.currentLoop()
	if lp == nil {
		c.errorf(n.Line, "break outside a loop")
		return
	}
	c.emitUnwindPops(len(c.names) - lp.bodyNamesStart)
	c.w.Op(bytecode.OpJump)
	lp.breakFixups = append(lp.breakFixups, c.w.Index(0))
}

func (c *Compiler) compileContinue(n *ast.Node) {
	lp := c.currentLoop()
	if lp == nil {
		c.errorf(n.Line, "continue outside a loop")
		return
	}
	c.emitUnwindPops(len(c.names) - lp.bodyNamesStart)
	c.w.Op(bytecode.OpJump)
	lp.continueFixups = append(lp.continueFixups, c.w.Index(0))
}

func (c *Compiler) compileFunctionDef(n *ast.Node) {
	name := n.Str
	nArgs := len(n.Children) - 1
	body := n.Children[nArgs]

	loc := c.pushName(name)
	c.w.Op(bytecode.OpPush)
	c.funcs[name] = loc

	c.w.Op(bytecode.OpStoreAtF)
	c.w.Location(loc)
	ipOff := c.w.Index(0)
	nArgsOff := c.w.Len()
	c.w.SmallSize(0)
	nRegsOff := c.w.Len()
	c.w.SmallSize(0)

	c.w.Op(bytecode.OpJump)
	skipOff := c.w.Index(0)

	entryIP := bytecode.Index(c.w.Len())

	fnNamesStart := len(c.names)
	c.pushFrame()
	savedLiterals := c.literals
	c.literals = make(map[string]Location)

	for i := 0; i < nArgs; i++ {
		c.pushName(n.Child(i).Str)
	}
	for _, stmt := range body.Children {
		c.compileStatement(stmt)
	}
	c.w.Op(bytecode.OpReturnNil)

	nRegs := c.highWater
	c.popFrame()
	c.literals = savedLiterals
	c.names = c.names[:fnNamesStart]

	c.w.PatchIndex(ipOff, entryIP)
	c.w.PatchSmallSize(nArgsOff, uint8(nArgs))
	c.w.PatchSmallSize(nRegsOff, uint8(nRegs))
	c.w.PatchIndex(skipOff, bytecode.Index(c.w.Len()))
}

func (c *Compiler) compileReturn(n *ast.Node) {
	if len(n.Children) == 0 {
		c.w.Op(bytecode.OpReturnNil)
		return
	}
	loc := c.compileExpr(n.Child(0))
	c.w.Op(bytecode.OpReturn)
	c.w.Location(loc)
	c.freeIfReg(loc)
}

// --- expressions ---

func (c *Compiler) compileExpr(n *ast.Node) Location {
	switch n.Kind {
	case ast.NilLit:
		return c.internNil()
	case ast.BooleanLit:
		return c.internBool(n.Boolean)
	case ast.NumberLit:
		return c.internNumber(n.Number)
	case ast.StringLit:
		return c.internString(n.Str)
	case ast.Variable:
		return c.compileVariableRead(n)
	case ast.Assignment:
		return c.compileAssignment(n)
	case ast.FunctionCall:
		return c.compileCall(n)
	case ast.ContainerElement:
		return c.compileContainerGet(n)
	case ast.List:
		return c.compileList(n)
	case ast.Dictionary:
		return c.compileDictionary(n)
	case ast.Negation:
		return c.compileNegation(n)
	case ast.Not:
		return c.compileUnary(n, bytecode.OpNot)
	case ast.Sum, ast.Difference, ast.Product, ast.Division, ast.And, ast.Or,
		ast.Equals, ast.NotEquals, ast.Greater, ast.GreaterEquals, ast.Lesser, ast.LesserEquals:
		return c.compileBinary(n)
	default:
		c.errorf(n.Line, "internal: cannot compile node of kind %s as an expression", n.Kind)
		return c.allocReg()
	}
}

func (c *Compiler) compileVariableRead(n *ast.Node) Location {
	if loc, ok := c.lookupLocalOnly(n.Str); ok {
		return loc
	}
	c.errorf(n.Line, "undefined variable %q", n.Str)
	return c.allocReg()
}

func (c *Compiler) compileAssignment(n *ast.Node) Location {
	lhs, rhs := n.Left(), n.Right()
	switch lhs.Kind {
	case ast.Variable:
		loc, ok := c.lookupLocalOnly(lhs.Str)
		if !ok {
			loc = c.pushName(lhs.Str)
			c.w.Op(bytecode.OpPush)
		}
		rhsLoc := c.compileExpr(rhs)
		if rhsLoc != loc {
			c.w.Op(bytecode.OpMove)
			c.w.Location(loc)
			c.w.Location(rhsLoc)
			c.freeIfReg(rhsLoc)
		}
		return loc

	case ast.ContainerElement:
		containerLoc := c.compileExpr(lhs.Left())
		indexLoc := c.compileExpr(lhs.Right())
		rhsLoc := c.compileExpr(rhs)
		c.w.Op(bytecode.OpSet)
		c.w.Location(containerLoc)
		c.w.Location(indexLoc)
		c.w.Location(rhsLoc)
		c.freeIfReg(rhsLoc)
		c.freeIfReg(indexLoc)
		c.freeIfReg(containerLoc)
		return rhsLoc

	default:
		c.errorf(n.Line, "invalid assignment target")
		return c.allocReg()
	}
}

var binaryOps = map[ast.Kind]bytecode.OpCode{
	ast.Sum:           bytecode.OpAdd,
	ast.Difference:    bytecode.OpSub,
	ast.Product:       bytecode.OpMul,
	ast.Division:      bytecode.OpDiv,
	ast.And:           bytecode.OpAnd,
	ast.Or:            bytecode.OpOr,
	ast.Equals:        bytecode.OpEq,
	ast.NotEquals:     bytecode.OpNeq,
	ast.Greater:       bytecode.OpGr,
	ast.GreaterEquals: bytecode.OpGre,
	ast.Lesser:        bytecode.OpLs,
	ast.LesserEquals:  bytecode.OpLse,
}

var orderingComparisons = map[ast.Kind]bool{
	ast.Greater: true, ast.GreaterEquals: true, ast.Lesser: true, ast.LesserEquals: true,
}

func (c *Compiler) compileBinary(n *ast.Node) Location {
	if orderingComparisons[n.Kind] {
		c.checkComparisonConsistency(n)
	}
	leftLoc := c.compileExpr(n.Left())
	rightLoc := c.compileExpr(n.Right())
	target := c.allocReg()
	c.w.Op(binaryOps[n.Kind])
	c.w.Location(target)
	c.w.Location(leftLoc)
	c.w.Location(rightLoc)
	c.freeIfReg(rightLoc)
	c.freeIfReg(leftLoc)
	return target
}

// checkComparisonConsistency rejects ordering comparisons that are
// statically known to be ill-typed: against a literal nil or boolean
// operand (neither nil nor booleans have an ordering), or between a
// literal number and a literal string.
func (c *Compiler) checkComparisonConsistency(n *ast.Node) {
	left, right := n.Left(), n.Right()
	if left.Kind == ast.NilLit || right.Kind == ast.NilLit {
		c.errorf(n.Line, "cannot order-compare against nil")
		return
	}
	if left.Kind == ast.BooleanLit || right.Kind == ast.BooleanLit {
		c.errorf(n.Line, "cannot order-compare against a boolean")
		return
	}
	if (left.Kind == ast.NumberLit && right.Kind == ast.StringLit) ||
		(left.Kind == ast.StringLit && right.Kind == ast.NumberLit) {
		c.errorf(n.Line, "cannot order-compare a number literal and a string literal")
	}
}

// compileNegation desugars unary `-x` to `0 - x`: the source material's
// compiler has no dedicated negate opcode (SyntaxTree::TYPE_NEGATION is
// never matched in its switch), so non-literal negation falls back to
// subtraction from an interned zero rather than reproducing that gap.
func (c *Compiler) compileNegation(n *ast.Node) Location {
	srcLoc := c.compileExpr(n.Left())
	zeroLoc := c.internNumber(0)
	target := c.allocReg()
	c.w.Op(bytecode.OpSub)
	c.w.Location(target)
	c.w.Location(zeroLoc)
	c.w.Location(srcLoc)
	c.freeIfReg(srcLoc)
	return target
}

func (c *Compiler) compileUnary(n *ast.Node, op bytecode.OpCode) Location {
	srcLoc := c.compileExpr(n.Left())
	target := c.allocReg()
	c.w.Op(op)
	c.w.Location(target)
	c.w.Location(srcLoc)
	c.freeIfReg(srcLoc)
	return target
}

func (c *Compiler) compileContainerGet(n *ast.Node) Location {
	containerLoc := c.compileExpr(n.Left())
	indexLoc := c.compileExpr(n.Right())
	target := c.allocReg()
	c.w.Op(bytecode.OpGet)
	c.w.Location(target)
	c.w.Location(containerLoc)
	c.w.Location(indexLoc)
	c.freeIfReg(indexLoc)
	c.freeIfReg(containerLoc)
	return target
}

func (c *Compiler) compileList(n *ast.Node) Location {
	target := c.allocReg()
	c.w.Op(bytecode.OpListNew)
	c.w.Location(target)
	for _, item := range n.Children {
		itemLoc := c.compileExpr(item)
		c.w.Op(bytecode.OpListAdd)
		c.w.Location(target)
		c.w.Location(itemLoc)
		c.freeIfReg(itemLoc)
	}
	return target
}

func (c *Compiler) compileDictionary(n *ast.Node) Location {
	target := c.allocReg()
	c.w.Op(bytecode.OpDictionaryNew)
	c.w.Location(target)
	for _, pair := range n.Children {
		keyLoc := c.compileExpr(pair.Left())
		valLoc := c.compileExpr(pair.Right())
		c.w.Op(bytecode.OpDictionaryAdd)
		c.w.Location(target)
		c.w.Location(keyLoc)
		c.w.Location(valLoc)
		c.freeIfReg(valLoc)
		c.freeIfReg(keyLoc)
	}
	return target
}

// --- calls ---

// compileCall resolves n's callee in order: a local (argument/variable of
// the current frame) holding a script function, a known top-level
// function definition, then the host-function registry (spec §4.3).
func (c *Compiler) compileCall(n *ast.Node) Location {
	for _, arg := range n.Children {
		c.declareOnlyWalk(arg)
	}

	if loc, ok := c.lookupLocalOnly(n.Str); ok {
		return c.compileScriptCall(loc, n.Children, bytecode.OpPCallSFL, bytecode.OpCallSFL)
	}
	if loc, ok := c.funcs[n.Str]; ok {
		return c.compileScriptCall(loc, n.Children, bytecode.OpPCallSFG, bytecode.OpCallSFG)
	}
	if sig, ok := c.host.Lookup(n.Str); ok {
		return c.compileHostCall(n, sig)
	}

	c.errorf(n.Line, "undefined function %q", n.Str)
	return c.allocReg()
}

func (c *Compiler) compileScriptCall(calleeLoc Location, args []*ast.Node, pcallOp, callOp bytecode.OpCode) Location {
	c.w.Op(pcallOp)
	c.w.Location(calleeLoc)

	for _, arg := range args {
		loc := c.compileExpr(arg)
		c.w.Op(bytecode.OpPushVal)
		c.w.Location(loc)
		c.freeIfReg(loc)
	}

	c.w.Op(callOp)
	c.w.Location(calleeLoc)
	c.w.SmallSize(uint8(len(args)))

	target := c.allocReg()
	c.w.Op(bytecode.OpPopTo)
	c.w.Location(target)
	return target
}

func (c *Compiler) compileHostCall(n *ast.Node, sig hostfunc.Signature) Location {
	argc := len(n.Children)
	if argc < sig.MinArgs || (sig.MaxArgs >= 0 && argc > sig.MaxArgs) {
		c.errorf(n.Line, "host function %q takes %d..%s arguments, got %d", n.Str, sig.MinArgs, maxArgsLabel(sig.MaxArgs), argc)
	}

	for _, arg := range n.Children {
		loc := c.compileExpr(arg)
		c.w.Op(bytecode.OpPushVal)
		c.w.Location(loc)
		c.freeIfReg(loc)
	}

	c.w.Op(bytecode.OpCallHF)
	c.w.SmallSize(sig.GroupID)
	c.w.SmallSize(sig.FuncID)
	c.w.SmallSize(uint8(argc))

	target := c.allocReg()
	c.w.Op(bytecode.OpPopTo)
	c.w.Location(target)
	return target
}

func maxArgsLabel(max int) string {
	if max < 0 {
		return "inf"
	}
	return strconv.Itoa(max)
}
