// Package compiler implements the single-pass Pratt parser/emitter for Lox:
// it walks tokens produced by the scanner and emits bytecode directly, with
// no intermediate AST. Lexical scope resolution, upvalue capture and
// forward-jump patching all happen as a side effect of parsing.
package compiler

import (
	"strconv"
	"strings"

	"github.com/mna/loxvm/lang/scanner"
	"github.com/mna/loxvm/lang/token"
	"github.com/mna/loxvm/lang/value"
)

// maxLocals bounds the fixed per-function locals array to 256 entries, the
// same width as the OP_GET_LOCAL/OP_SET_LOCAL byte operand.
const maxLocals = 256

// maxUpvalues bounds the number of distinct free variables a single
// function may capture; it shares the same byte-operand width as locals.
const maxUpvalues = 256

// Interner canonicalizes string constants at compile time so that the same
// byte sequence produced by two different literals -- or by a literal and a
// value later created at runtime -- resolves to the same *value.ObjString,
// keeping at most one String object alive per distinct byte sequence across
// the compile/run boundary.
type Interner interface {
	Intern(s string) *value.ObjString
}

type funcKind int

const (
	funcKindScript funcKind = iota
	funcKindFunction
)

type local struct {
	name       string
	depth      int // -1 means declared but not yet initialized
	isCaptured bool
}

type upvalueRef struct {
	index   int
	isLocal bool
}

// funcState is the per-function compilation context, stacked via enclosing
// to support nested function and closure compilation.
type funcState struct {
	enclosing *funcState

	function *value.ObjFunction
	kind     funcKind

	locals     []local
	scopeDepth int
	upvalues   []upvalueRef
}

// compiler holds all state for compiling one source string to one top-level
// ObjFunction. It is not reentrant and not safe for concurrent use.
type compiler struct {
	scan *scanner.Scanner
	cur  scanner.Token
	prev scanner.Token

	hadError  bool
	panicMode bool
	errs      ErrorList

	intern Interner
	fc     *funcState
}

// Compile compiles source into a top-level ObjFunction (named "<script>",
// arity 0) ready to be wrapped in a Closure and run, or returns an
// ErrorList if any compile error was reported. Compilation continues after
// an error via statement-boundary synchronization so that multiple errors
// from a single run are all surfaced together.
func Compile(source string, intern Interner) (*value.ObjFunction, error) {
	c := &compiler{
		scan:   scanner.New(source),
		intern: intern,
	}

	topLevel := value.NewObjFunction()
	c.fc = &funcState{function: topLevel, kind: funcKindScript}
	// slot 0 is reserved for the callee itself (the script's implicit
	// closure, never referenced directly by name).
	c.fc.locals = append(c.fc.locals, local{name: "", depth: 0})

	c.advance()
	for !c.match(token.EOF) {
		c.declaration()
	}
	fn := c.endCompiler()

	if c.hadError {
		return nil, c.errs
	}
	return fn, nil
}

func (c *compiler) currentChunk() *value.Chunk { return &c.fc.function.Chunk }

// ---- token stream plumbing ----

func (c *compiler) advance() {
	c.prev = c.cur
	for {
		c.cur = c.scan.Scan()
		if c.cur.Kind != token.ERROR {
			break
		}
		c.errorAtCurrent(c.cur.Lexeme)
	}
}

func (c *compiler) check(kind token.Token) bool { return c.cur.Kind == kind }

func (c *compiler) match(kind token.Token) bool {
	if !c.check(kind) {
		return false
	}
	c.advance()
	return true
}

func (c *compiler) consume(kind token.Token, msg string) {
	if c.cur.Kind == kind {
		c.advance()
		return
	}
	c.errorAtCurrent(msg)
}

func (c *compiler) errorAtCurrent(msg string) { c.errorAt(c.cur, msg) }
func (c *compiler) error(msg string)          { c.errorAt(c.prev, msg) }

func (c *compiler) errorAt(tok scanner.Token, msg string) {
	if c.panicMode {
		return
	}
	c.panicMode = true
	c.hadError = true

	where := tok.Lexeme
	if tok.Kind == token.EOF {
		where = ""
	}
	c.errs = append(c.errs, &Error{Line: tok.Line, Where: where, Msg: msg})
}

// synchronize skips tokens until it reaches a likely statement boundary, so
// a single error doesn't cascade into a wall of spurious follow-on errors.
func (c *compiler) synchronize() {
	c.panicMode = false
	for c.cur.Kind != token.EOF {
		if c.prev.Kind == token.SEMI {
			return
		}
		switch c.cur.Kind {
		case token.CLASS, token.FUN, token.VAR, token.FOR, token.IF, token.WHILE, token.PRINT, token.ASSERT, token.RETURN:
			return
		}
		c.advance()
	}
}

// ---- emission helpers ----

func (c *compiler) emitByte(b byte) { c.currentChunk().Write(b, c.prev.Line) }
func (c *compiler) emitOp(op value.OpCode) { c.emitByte(byte(op)) }
func (c *compiler) emitBytes(op value.OpCode, operand byte) {
	c.emitOp(op)
	c.emitByte(operand)
}

func (c *compiler) emitConstant(v value.Value) {
	c.currentChunk().WriteConstant(v, c.prev.Line)
}

func (c *compiler) emitReturn() {
	c.emitOp(value.OpNil)
	c.emitOp(value.OpReturn)
}

// emitJump writes op followed by a two-byte placeholder and returns the
// offset of the placeholder's first byte, to be patched later.
func (c *compiler) emitJump(op value.OpCode) int {
	c.emitOp(op)
	c.emitByte(0xff)
	c.emitByte(0xff)
	return len(c.currentChunk().Code) - 2
}

// patchJump backpatches the jump placeholder at offset to land at the
// current bytecode position, writing the distance as a big-endian u16.
func (c *compiler) patchJump(offset int) {
	jump := len(c.currentChunk().Code) - offset - 2
	if jump > 0xffff {
		c.error("Too much code to jump over.")
		return
	}
	code := c.currentChunk().Code
	code[offset] = byte(jump >> 8)
	code[offset+1] = byte(jump)
}

// emitLoop emits OP_LOOP with the backward distance to loopStart.
func (c *compiler) emitLoop(loopStart int) {
	c.emitOp(value.OpLoop)
	offset := len(c.currentChunk().Code) + 2 - loopStart
	if offset > 0xffff {
		c.error("Too much code to jump over.")
		return
	}
	c.emitByte(byte(offset >> 8))
	c.emitByte(byte(offset))
}

// ---- scope / variable resolution ----

func (c *compiler) beginScope() { c.fc.scopeDepth++ }

func (c *compiler) endScope() {
	c.fc.scopeDepth--
	locals := c.fc.locals
	for len(locals) > 0 && locals[len(locals)-1].depth > c.fc.scopeDepth {
		if locals[len(locals)-1].isCaptured {
			c.emitOp(value.OpCloseUpvalue)
		} else {
			c.emitOp(value.OpPop)
		}
		locals = locals[:len(locals)-1]
	}
	c.fc.locals = locals
}

func (c *compiler) identifierConstant(name string) byte {
	s := c.intern.Intern(name)
	idx := c.currentChunk().AddConstant(value.FromObj(s))
	if idx > 255 {
		c.error("Too many constants in one chunk.")
		return 0
	}
	return byte(idx)
}

func (c *compiler) resolveLocal(fc *funcState, name string) int {
	for i := len(fc.locals) - 1; i >= 0; i-- {
		if fc.locals[i].name == name {
			if fc.locals[i].depth == -1 {
				c.error("Can't read local variable in its own initializer.")
			}
			return i
		}
	}
	return -1
}

func (c *compiler) addUpvalue(fc *funcState, index int, isLocal bool) int {
	for i, uv := range fc.upvalues {
		if uv.index == index && uv.isLocal == isLocal {
			return i
		}
	}
	if len(fc.upvalues) >= maxUpvalues {
		c.error("Too many closure variables in function.")
		return 0
	}
	fc.upvalues = append(fc.upvalues, upvalueRef{index: index, isLocal: isLocal})
	fc.function.UpvalueCount = len(fc.upvalues)
	return len(fc.upvalues) - 1
}

func (c *compiler) resolveUpvalue(fc *funcState, name string) int {
	if fc.enclosing == nil {
		return -1
	}
	if local := c.resolveLocal(fc.enclosing, name); local != -1 {
		fc.enclosing.locals[local].isCaptured = true
		return c.addUpvalue(fc, local, true)
	}
	if upvalue := c.resolveUpvalue(fc.enclosing, name); upvalue != -1 {
		return c.addUpvalue(fc, upvalue, false)
	}
	return -1
}

func (c *compiler) addLocal(name string) {
	if len(c.fc.locals) >= maxLocals {
		c.error("Too many local variables in function.")
		return
	}
	c.fc.locals = append(c.fc.locals, local{name: name, depth: -1})
}

func (c *compiler) declareVariable(name string) {
	if c.fc.scopeDepth == 0 {
		return
	}
	for i := len(c.fc.locals) - 1; i >= 0; i-- {
		l := c.fc.locals[i]
		if l.depth != -1 && l.depth < c.fc.scopeDepth {
			break
		}
		if l.name == name {
			c.error("Already a variable with this name in this scope.")
		}
	}
	c.addLocal(name)
}

func (c *compiler) markInitialized() {
	if c.fc.scopeDepth == 0 {
		return
	}
	c.fc.locals[len(c.fc.locals)-1].depth = c.fc.scopeDepth
}

func (c *compiler) parseVariable(errMsg string) byte {
	c.consume(token.IDENT, errMsg)
	c.declareVariable(c.prev.Lexeme)
	if c.fc.scopeDepth > 0 {
		return 0
	}
	return c.identifierConstant(c.prev.Lexeme)
}

func (c *compiler) defineVariable(global byte) {
	if c.fc.scopeDepth > 0 {
		c.markInitialized()
		return
	}
	c.emitBytes(value.OpDefineGlobal, global)
}

func (c *compiler) namedVariable(name string, canAssign bool) {
	var getOp, setOp value.OpCode
	arg := c.resolveLocal(c.fc, name)
	if arg != -1 {
		getOp, setOp = value.OpGetLocal, value.OpSetLocal
	} else if arg = c.resolveUpvalue(c.fc, name); arg != -1 {
		getOp, setOp = value.OpGetUpvalue, value.OpSetUpvalue
	} else {
		arg = int(c.identifierConstant(name))
		getOp, setOp = value.OpGetGlobal, value.OpSetGlobal
	}

	if canAssign && c.match(token.EQ) {
		c.expression()
		c.emitBytes(setOp, byte(arg))
	} else {
		c.emitBytes(getOp, byte(arg))
	}
}

// ---- expressions ----

func (c *compiler) expression() { c.parsePrecedence(precAssignment) }

func (c *compiler) parsePrecedence(prec precedence) {
	c.advance()
	prefix := getRule(c.prev.Kind).prefix
	if prefix == nil {
		c.error("Expect expression.")
		return
	}
	canAssign := prec <= precAssignment
	prefix(c, canAssign)

	for prec <= getRule(c.cur.Kind).precedence {
		c.advance()
		infix := getRule(c.prev.Kind).infix
		infix(c, canAssign)
	}

	if canAssign && c.match(token.EQ) {
		c.error("Invalid assignment target.")
	}
}

func grouping(c *compiler, _ bool) {
	c.expression()
	c.consume(token.RPAREN, "Expect ')' after expression.")
}

func unary(c *compiler, _ bool) {
	opType := c.prev.Kind
	c.parsePrecedence(precUnary)
	switch opType {
	case token.MINUS:
		c.emitOp(value.OpNegate)
	case token.BANG:
		c.emitOp(value.OpNot)
	}
}

func binary(c *compiler, _ bool) {
	opType := c.prev.Kind
	rule := getRule(opType)
	c.parsePrecedence(rule.precedence + 1)

	switch opType {
	case token.PLUS:
		c.emitOp(value.OpAdd)
	case token.MINUS:
		c.emitOp(value.OpSubtract)
	case token.STAR:
		c.emitOp(value.OpMultiply)
	case token.SLASH:
		c.emitOp(value.OpDivide)
	case token.BANG_EQ:
		c.emitOp(value.OpEqual)
		c.emitOp(value.OpNot)
	case token.EQ_EQ:
		c.emitOp(value.OpEqual)
	case token.GT:
		c.emitOp(value.OpGreater)
	case token.GT_EQ:
		c.emitOp(value.OpLess)
		c.emitOp(value.OpNot)
	case token.LT:
		c.emitOp(value.OpLess)
	case token.LT_EQ:
		c.emitOp(value.OpGreater)
		c.emitOp(value.OpNot)
	}
}

// ternary compiles `cond ? thenExpr : elseExpr`, mirroring the if/else
// statement's jump shape so exactly one of the two branches leaves its
// value on the stack.
func ternary(c *compiler, _ bool) {
	thenJump := c.emitJump(value.OpJumpIfFalse)
	c.emitOp(value.OpPop)
	c.parsePrecedence(precAssignment)

	elseJump := c.emitJump(value.OpJump)
	c.patchJump(thenJump)
	c.emitOp(value.OpPop)
	c.consume(token.COLON, "Expect ':' after then branch of ternary expression.")
	c.parsePrecedence(precTernary)
	c.patchJump(elseJump)
}

func and_(c *compiler, _ bool) {
	endJump := c.emitJump(value.OpJumpIfFalse)
	c.emitOp(value.OpPop)
	c.parsePrecedence(precAnd)
	c.patchJump(endJump)
}

func or_(c *compiler, _ bool) {
	elseJump := c.emitJump(value.OpJumpIfFalse)
	endJump := c.emitJump(value.OpJump)
	c.patchJump(elseJump)
	c.emitOp(value.OpPop)
	c.parsePrecedence(precOr)
	c.patchJump(endJump)
}

func number(c *compiler, _ bool) {
	n, err := strconv.ParseFloat(c.prev.Lexeme, 64)
	if err != nil {
		c.error("Invalid number literal.")
		return
	}
	c.emitConstant(value.Number(n))
}

func str(c *compiler, _ bool) {
	// strip the surrounding quotes; Lox strings have no escape sequences.
	lit := c.prev.Lexeme
	lit = strings.TrimSuffix(strings.TrimPrefix(lit, `"`), `"`)
	s := c.intern.Intern(lit)
	c.emitConstant(value.FromObj(s))
}

func literal(c *compiler, _ bool) {
	switch c.prev.Kind {
	case token.FALSE:
		c.emitOp(value.OpFalse)
	case token.TRUE:
		c.emitOp(value.OpTrue)
	case token.NIL:
		c.emitOp(value.OpNil)
	}
}

func variable(c *compiler, canAssign bool) {
	c.namedVariable(c.prev.Lexeme, canAssign)
}

func call(c *compiler, _ bool) {
	argCount := c.argumentList()
	c.emitBytes(value.OpCall, argCount)
}

func (c *compiler) argumentList() byte {
	var count int
	if !c.check(token.RPAREN) {
		for {
			c.expression()
			if count == 255 {
				c.error("Can't have more than 255 arguments.")
			}
			count++
			if !c.match(token.COMMA) {
				break
			}
		}
	}
	c.consume(token.RPAREN, "Expect ')' after arguments.")
	return byte(count)
}
