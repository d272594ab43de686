package compiler

import "github.com/mna/loxvm/lang/token"

// precedence levels, lowest to highest:
// None < Assignment < Ternary < Or < And < Equality < Comparison < Term <
// Factor < Unary < Call < Primary.
type precedence int

const (
	precNone precedence = iota
	precAssignment
	precTernary
	precOr
	precAnd
	precEquality
	precComparison
	precTerm
	precFactor
	precUnary
	precCall
	precPrimary
)

type parseFn func(c *compiler, canAssign bool)

type parseRule struct {
	prefix     parseFn
	infix      parseFn
	precedence precedence
}

var rules = [...]parseRule{
	token.LPAREN:  {prefix: grouping, infix: call, precedence: precCall},
	token.MINUS:   {prefix: unary, infix: binary, precedence: precTerm},
	token.PLUS:    {infix: binary, precedence: precTerm},
	token.SLASH:   {infix: binary, precedence: precFactor},
	token.STAR:    {infix: binary, precedence: precFactor},
	token.BANG:    {prefix: unary},
	token.BANG_EQ: {infix: binary, precedence: precEquality},
	token.EQ_EQ:   {infix: binary, precedence: precEquality},
	token.GT:      {infix: binary, precedence: precComparison},
	token.GT_EQ:   {infix: binary, precedence: precComparison},
	token.LT:      {infix: binary, precedence: precComparison},
	token.LT_EQ:   {infix: binary, precedence: precComparison},
	token.IDENT:   {prefix: variable},
	token.NUMBER:  {prefix: number},
	token.STRING:  {prefix: str},
	token.AND:     {infix: and_, precedence: precAnd},
	token.OR:      {infix: or_, precedence: precOr},
	token.FALSE:   {prefix: literal},
	token.NIL:     {prefix: literal},
	token.TRUE:    {prefix: literal},
	token.QMARK:   {infix: ternary, precedence: precTernary},
}

func getRule(tok token.Token) *parseRule {
	if int(tok) >= len(rules) {
		return &parseRule{}
	}
	return &rules[tok]
}
