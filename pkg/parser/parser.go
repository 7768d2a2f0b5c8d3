// Package parser implements the recursive-descent parser (C3): it turns a
// token stream from pkg/lexer into an ast.Node tree, folding constants as
// it goes via ast.Simplify.
//
// Parser Architecture:
//
// The parser is a classic recursive-descent parser with one token of
// lookahead:
//  1. Each grammar rule corresponds to a parsing function
//  2. The parser decides what to parse from the current token (curTok)
//  3. Functions call each other recursively to handle nested structures
//
// Token Management:
//
// The parser maintains two tokens at all times:
//   - curTok: the current token being examined
//   - peekTok: the next token, already scanned; no grammar rule reads it
//
// Grammar (lowest precedence first):
//
//	expression   := assignment
//	assignment   := and ( ("=" | "+=" | "-=" | "*=" | "/=") expression )?
//	and          := or ( "and" or )*
//	or           := comparison ( "or" comparison )*
//	comparison   := additive ( ("==" | "!=" | ">" | ">=" | "<" | "<=") additive )*
//	additive     := multiplicative ( ("+" | "-") multiplicative )*
//	multiplicative := methodCall ( ("*" | "/") methodCall )*
//	methodCall   := dereference ( "." IDENT "(" params ")" )*
//	dereference  := factor ( "[" expression "]" )*
//	factor       := NUMBER | STRING | "true" | "false" | "nil"
//	              | IDENT ( "(" params ")" )?
//	              | "(" expression ")" | "-" factor | "not" methodCall
//	              | "[" list-items "]" | "{" dict-pairs "}"
//	              | "new" IDENT ( "(" params ")" )?
//
// Assignment is right-associative; compound forms (`+= -= *= /=`) desugar
// to `lhs = lhs op rhs` by structurally copying the lhs subtree (see
// ast.Node.Copy), so the compiler never needs to know compound assignment
// exists.
//
// `x.method(args)` is sugar, not a distinct node kind: it produces an
// ordinary ast.FunctionCall whose first child is the receiver and whose
// remaining children are the call arguments.
//
// Statement forms. Every block-taking statement (if/while/for/def/else)
// accepts two syntaxes: an inline `: statement` single-statement form, or
// a multi-line block terminated by a matching `end`. An if/else-if/else
// chain has a single terminating `end`, consumed by whichever link of
// the chain comes last.
//
// Errors accumulate in errs rather than aborting at the first one, so a
// caller can report every syntax error found in one pass.
package parser

import (
	"fmt"

	"github.com/kristofer/ionscript/pkg/ast"
	"github.com/kristofer/ionscript/pkg/lexer"
	"github.com/kristofer/ionscript/pkg/token"
)

// context tracks which statements are legal at the current nesting point:
// return is only legal inside a function body, break/continue only inside
// a loop body (spec §4.2).
type context struct {
	insideFunction bool
	insideLoop     bool
}

// Parser converts a token stream into an ast.Node tree.
type Parser struct {
	l       *lexer.Lexer
	curTok  token.Token
	peekTok token.Token
	errs    []error
}

// New creates a Parser over source, priming the two-token lookahead
// window.
func New(l *lexer.Lexer) *Parser {
	p := &Parser{l: l}
	p.next()
	p.next()
	return p
}

func (p *Parser) next() {
	p.curTok = p.peekTok
	var err error
	p.peekTok, err = p.l.NextToken()
	if err != nil {
		p.errorf("%v", err)
		p.peekTok = token.Token{Kind: token.Illegal}
	}
}

func (p *Parser) errorf(format string, args ...interface{}) {
	msg := fmt.Sprintf(format, args...)
	p.errs = append(p.errs, fmt.Errorf("line %d: %s", p.curTok.Line, msg))
}

// Errors returns every syntax error accumulated during Parse.
func (p *Parser) Errors() []error { return p.errs }

func (p *Parser) expect(k token.Kind) {
	if p.curTok.Kind != k {
		p.errorf("expected %s, got %s %q", k, p.curTok.Kind, p.curTok.Lexeme)
		return
	}
	p.next()
}

func (p *Parser) accept(k token.Kind) bool {
	if p.curTok.Kind == k {
		p.next()
		return true
	}
	return false
}

// skipSeparators consumes any run of newlines/semicolons, the statement
// separators a block may have any number of between statements.
func (p *Parser) skipSeparators() {
	for p.curTok.Kind == token.Newline || p.curTok.Kind == token.Semi {
		p.next()
	}
}

// endOfStatement consumes the single separator terminating a statement:
// a newline, a semicolon, or EOF.
func (p *Parser) endOfStatement() {
	if p.accept(token.Newline) {
		return
	}
	if p.accept(token.Semi) {
		return
	}
	if p.curTok.Kind != token.EOF {
		p.errorf("expected end of statement, got %s %q", p.curTok.Kind, p.curTok.Lexeme)
	}
}

// Parse parses the whole token stream as a top-level block of statements.
func (p *Parser) Parse() (*ast.Node, error) {
	block := p.parseBlock(context{})
	p.expect(token.EOF)
	if len(p.errs) > 0 {
		return block, fmt.Errorf("parser: %d error(s), first: %v", len(p.errs), p.errs[0])
	}
	return block, nil
}

// parseBlock parses statements until EOF, `else`, or `end`. The caller is
// responsible for consuming whichever of those terminates the block.
func (p *Parser) parseBlock(ctx context) *ast.Node {
	block := ast.New(ast.Block, p.curTok.Line)
	for {
		p.skipSeparators()
		if p.curTok.Kind == token.EOF || p.curTok.Kind == token.Else || p.curTok.Kind == token.End {
			break
		}
		block.AddChild(p.parseStatement(ctx))
	}
	return block
}

// parseSuite parses the body of a block-taking statement: either the
// inline `: statement` form, or a `newline ... end` block. Returns the
// body node; the caller's own `end` handling differs (in an if/else
// chain the last link consumes `end`), so parseFor/parseWhile consume it
// themselves while parseIf delegates to parseElse when an else follows.
func (p *Parser) parseSuite(ctx context) (body *ast.Node, consumedEnd bool) {
	if p.accept(token.Newline) {
		return p.parseBlock(ctx), false
	}
	p.expect(token.Colon)
	single := ast.New(ast.Block, p.curTok.Line)
	single.AddChild(p.parseStatement(ctx))
	return single, true
}

func (p *Parser) parseStatement(ctx context) *ast.Node {
	var n *ast.Node
	switch p.curTok.Kind {
	case token.If:
		n = p.parseIf(ctx)
	case token.While:
		n = p.parseWhile(ctx)
	case token.For:
		n = p.parseFor(ctx)
	case token.Def:
		if ctx.insideFunction {
			p.errorf("nested function definitions are not allowed")
		}
		n = p.parseFunctionDef()
	case token.Return:
		line := p.curTok.Line
		if !ctx.insideFunction {
			p.errorf("return outside a function")
		}
		p.next()
		n = ast.New(ast.Return, line)
		if p.curTok.Kind != token.Newline && p.curTok.Kind != token.Semi && p.curTok.Kind != token.EOF {
			n.AddChild(p.parseExpression())
		}
		p.endOfStatement()
	case token.Continue:
		if !ctx.insideLoop {
			p.errorf("continue outside a loop")
		}
		n = ast.New(ast.Continue, p.curTok.Line)
		p.next()
		p.endOfStatement()
	case token.Break:
		if !ctx.insideLoop {
			p.errorf("break outside a loop")
		}
		n = ast.New(ast.Break, p.curTok.Line)
		p.next()
		p.endOfStatement()
	default:
		n = p.parseExpression()
		p.endOfStatement()
	}
	return ast.Simplify(n)
}

// parseIf parses `if cond ... (else if cond ...)* (else ...)? end`. The
// chain's single terminating `end` is consumed by its last link: this
// call when no else follows, otherwise parseElse (or the parseIf it
// recurses into for an `else if`).
func (p *Parser) parseIf(ctx context) *ast.Node {
	line := p.curTok.Line
	p.expect(token.If)
	n := ast.New(ast.If, line)
	n.AddChild(p.parseExpression())

	body, consumedEnd := p.parseSuite(ctx)
	n.AddChild(body)

	if consumedEnd {
		if p.curTok.Kind == token.Else {
			n.AddChild(p.parseElse(ctx))
		}
		return n
	}

	if !p.accept(token.End) {
		if p.curTok.Kind == token.Else {
			n.AddChild(p.parseElse(ctx))
		} else {
			p.errorf("expected 'end' or 'else', got %s", p.curTok.Kind)
		}
	}
	return n
}

// parseElse parses the `else` branch of an if-chain: either `else if ...`
// (which recurses into parseIf and consumes the eventual `end` itself) or
// a plain `else` block/inline suite (which must consume its own `end`).
func (p *Parser) parseElse(ctx context) *ast.Node {
	p.expect(token.Else)
	if p.curTok.Kind == token.If {
		return p.parseIf(ctx)
	}
	body, consumedEnd := p.parseSuite(ctx)
	if !consumedEnd {
		p.expect(token.End)
	}
	return body
}

func (p *Parser) parseWhile(ctx context) *ast.Node {
	line := p.curTok.Line
	p.expect(token.While)
	n := ast.New(ast.While, line)
	n.AddChild(p.parseExpression())

	loopCtx := context{insideFunction: ctx.insideFunction, insideLoop: true}
	body, consumedEnd := p.parseSuite(loopCtx)
	n.AddChild(body)
	if !consumedEnd {
		p.expect(token.End)
	}
	return n
}

// parseFor parses `for init; cond; step ... end` (spec §8 S6's literal,
// paren-free syntax).
func (p *Parser) parseFor(ctx context) *ast.Node {
	line := p.curTok.Line
	p.expect(token.For)
	n := ast.New(ast.For, line)
	n.AddChild(p.parseExpression())
	p.expect(token.Semi)
	n.AddChild(p.parseExpression())
	p.expect(token.Semi)
	n.AddChild(p.parseExpression())

	loopCtx := context{insideFunction: ctx.insideFunction, insideLoop: true}
	body, consumedEnd := p.parseSuite(loopCtx)
	n.AddChild(body)
	if !consumedEnd {
		p.expect(token.End)
	}
	return n
}

func (p *Parser) parseFunctionDef() *ast.Node {
	line := p.curTok.Line
	p.expect(token.Def)
	n := ast.New(ast.FunctionDef, line)
	n.Str = p.curTok.Lexeme
	p.expect(token.Identifier)

	if p.accept(token.LParen) {
		if !p.accept(token.RParen) {
			for {
				if p.curTok.Kind != token.Identifier {
					p.errorf("expected parameter name, got %s", p.curTok.Kind)
					break
				}
				arg := ast.New(ast.Argument, p.curTok.Line)
				arg.Str = p.curTok.Lexeme
				n.AddChild(arg)
				p.next()
				if !p.accept(token.Comma) {
					break
				}
			}
			p.expect(token.RParen)
		}
	}

	fnCtx := context{insideFunction: true}
	body, consumedEnd := p.parseSuite(fnCtx)
	n.AddChild(body)
	if !consumedEnd {
		p.expect(token.End)
	}
	return n
}

// parseExpression parses assignment, the lowest-precedence grammar rule.
// Compound assignment desugars here: `x += e` becomes `x = x + e` by
// copying the already-parsed lhs subtree (ast.Node.Copy) into a freshly
// built Sum/Difference/Product/Division node.
func (p *Parser) parseExpression() *ast.Node {
	left := p.parseAnd()

	var opKind ast.Kind
	switch p.curTok.Kind {
	case token.Assign:
		p.next()
		n := ast.New(ast.Assignment, left.Line)
		n.AddChild(left)
		n.AddChild(p.parseExpression())
		return n
	case token.PlusAssign:
		opKind = ast.Sum
	case token.MinusAssign:
		opKind = ast.Difference
	case token.StarAssign:
		opKind = ast.Product
	case token.SlashAssign:
		opKind = ast.Division
	default:
		return left
	}

	p.next()
	rhs := ast.New(opKind, left.Line)
	rhs.AddChild(left.Copy())
	rhs.AddChild(p.parseExpression())

	n := ast.New(ast.Assignment, left.Line)
	n.AddChild(left)
	n.AddChild(rhs)
	return n
}

func (p *Parser) parseAnd() *ast.Node {
	left := p.parseOr()
	for p.curTok.Kind == token.And {
		p.next()
		n := ast.New(ast.And, left.Line)
		n.AddChild(left)
		n.AddChild(p.parseOr())
		left = n
	}
	return left
}

func (p *Parser) parseOr() *ast.Node {
	left := p.parseComparison()
	for p.curTok.Kind == token.Or {
		p.next()
		n := ast.New(ast.Or, left.Line)
		n.AddChild(left)
		n.AddChild(p.parseComparison())
		left = n
	}
	return left
}

var comparisonKinds = map[token.Kind]ast.Kind{
	token.Equals:       ast.Equals,
	token.NotEquals:    ast.NotEquals,
	token.Greater:      ast.Greater,
	token.GreaterEqual: ast.GreaterEquals,
	token.Less:         ast.Lesser,
	token.LessEqual:    ast.LesserEquals,
}

func (p *Parser) parseComparison() *ast.Node {
	left := p.parseAdditive()
	for {
		kind, ok := comparisonKinds[p.curTok.Kind]
		if !ok {
			return left
		}
		p.next()
		n := ast.New(kind, left.Line)
		n.AddChild(left)
		n.AddChild(p.parseAdditive())
		left = n
	}
}

func (p *Parser) parseAdditive() *ast.Node {
	left := p.parseMultiplicative()
	for {
		var kind ast.Kind
		switch p.curTok.Kind {
		case token.Plus:
			kind = ast.Sum
		case token.Minus:
			kind = ast.Difference
		default:
			return left
		}
		p.next()
		n := ast.New(kind, left.Line)
		n.AddChild(left)
		n.AddChild(p.parseMultiplicative())
		left = n
	}
}

func (p *Parser) parseMultiplicative() *ast.Node {
	left := p.parseMethodCall()
	for {
		var kind ast.Kind
		switch p.curTok.Kind {
		case token.Star:
			kind = ast.Product
		case token.Slash:
			kind = ast.Division
		default:
			return left
		}
		p.next()
		n := ast.New(kind, left.Line)
		n.AddChild(left)
		n.AddChild(p.parseMethodCall())
		left = n
	}
}

// parseMethodCall handles `recv.method(args)` sugar: it produces an
// ordinary FunctionCall node whose first child is the receiver (recv)
// and whose remaining children are the parsed arguments.
func (p *Parser) parseMethodCall() *ast.Node {
	left := p.parseDereference()
	for p.curTok.Kind == token.Dot {
		p.next()
		if p.curTok.Kind != token.Identifier {
			p.errorf("expected method name after '.', got %s", p.curTok.Kind)
		}
		n := ast.New(ast.FunctionCall, left.Line)
		n.Str = p.curTok.Lexeme
		p.next()
		n.AddChild(left)
		p.expect(token.LParen)
		p.parseParams(n)
		p.expect(token.RParen)
		left = n
	}
	return left
}

func (p *Parser) parseDereference() *ast.Node {
	left := p.parseFactor()
	for p.accept(token.LBracket) {
		n := ast.New(ast.ContainerElement, left.Line)
		n.AddChild(left)
		n.AddChild(p.parseExpression())
		p.expect(token.RBracket)
		left = n
	}
	return left
}

func (p *Parser) parseFactor() *ast.Node {
	line := p.curTok.Line
	switch p.curTok.Kind {
	case token.Nil:
		p.next()
		return ast.New(ast.NilLit, line)

	case token.Identifier:
		name := p.curTok.Lexeme
		p.next()
		if p.accept(token.LParen) {
			n := ast.New(ast.FunctionCall, line)
			n.Str = name
			p.parseParams(n)
			p.expect(token.RParen)
			return n
		}
		n := ast.New(ast.Variable, line)
		n.Str = name
		return n

	case token.Number:
		n := ast.New(ast.NumberLit, line)
		n.Number = p.curTok.Number
		p.next()
		return n

	case token.LParen:
		p.next()
		n := p.parseExpression()
		p.expect(token.RParen)
		return n

	case token.Minus:
		p.next()
		n := ast.New(ast.Negation, line)
		n.AddChild(p.parseFactor())
		return n

	case token.String:
		n := ast.New(ast.StringLit, line)
		n.Str = p.curTok.Lexeme
		p.next()
		return n

	case token.Not:
		p.next()
		n := ast.New(ast.Not, line)
		n.AddChild(p.parseMethodCall())
		return n

	case token.True:
		p.next()
		n := ast.New(ast.BooleanLit, line)
		n.Boolean = true
		return n

	case token.False:
		p.next()
		n := ast.New(ast.BooleanLit, line)
		n.Boolean = false
		return n

	case token.LBracket:
		p.next()
		n := ast.New(ast.List, line)
		if p.accept(token.RBracket) {
			return n
		}
		n.AddChild(p.parseExpression())
		for p.curTok.Kind != token.RBracket {
			p.expect(token.Comma)
			n.AddChild(p.parseExpression())
		}
		p.expect(token.RBracket)
		return n

	case token.LBrace:
		p.next()
		n := ast.New(ast.Dictionary, line)
		p.skipSeparators()
		if p.accept(token.RBrace) {
			return n
		}
		n.AddChild(p.parsePair())
		for p.curTok.Kind != token.RBrace {
			p.expect(token.Comma)
			p.skipSeparators()
			n.AddChild(p.parsePair())
			p.skipSeparators()
		}
		p.expect(token.RBrace)
		return n

	case token.New:
		p.next()
		if p.curTok.Kind != token.Identifier {
			p.errorf("expected class name after 'new', got %s", p.curTok.Kind)
		}
		n := ast.New(ast.FunctionCall, line)
		n.Str = p.curTok.Lexeme + "_new"
		p.next()
		if p.accept(token.LParen) {
			p.parseParams(n)
			p.expect(token.RParen)
		}
		return n

	default:
		p.errorf("unexpected token %s %q", p.curTok.Kind, p.curTok.Lexeme)
		p.next()
		return ast.New(ast.NilLit, line)
	}
}

func (p *Parser) parsePair() *ast.Node {
	n := ast.New(ast.Pair, p.curTok.Line)
	n.AddChild(p.parseExpression())
	p.expect(token.Colon)
	n.AddChild(p.parseExpression())
	return n
}

// parseParams parses a comma-separated argument list into n's children,
// stopping before the closing ')' (which the caller consumes).
func (p *Parser) parseParams(n *ast.Node) {
	if p.curTok.Kind == token.RParen {
		return
	}
	n.AddChild(p.parseExpression())
	for p.curTok.Kind != token.RParen {
		p.expect(token.Comma)
		n.AddChild(p.parseExpression())
	}
}
