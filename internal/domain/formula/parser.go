package formula

import (
	"sort"
	"strings"
)

const (
	MaxLength = 4096
	MaxDepth  = 64
)

// Expr is a compiled formula. It holds no scope and is safe for concurrent
// use by any number of goroutines.
type Expr struct {
	src  string
	root node
}

type arity struct {
	min int
	max int // -1 is unbounded
}

var functions = map[string]arity{
	"if":    {min: 3, max: 3},
	"min":   {min: 1, max: -1},
	"max":   {min: 1, max: -1},
	"round": {min: 1, max: 2},
	"floor": {min: 1, max: 1},
	"ceil":  {min: 1, max: 1},
	"abs":   {min: 1, max: 1},
}

var comparisonOps = map[string]struct{}{
	">": {}, "<": {}, ">=": {}, "<=": {}, "==": {}, "!=": {},
}

// Compile parses src into an evaluable expression.
func Compile(src string) (*Expr, error) {
	if strings.TrimSpace(src) == "" {
		return nil, syntaxErr(-1, "Empty expression")
	}
	if len(src) > MaxLength {
		return nil, syntaxErr(-1, "Formula exceeds %d characters", MaxLength)
	}
	tokens, err := tokenize(src)
	if err != nil {
		return nil, err
	}
	p := &parser{tokens: tokens}
	root, err := p.parseExpression()
	if err != nil {
		return nil, err
	}
	if tok := p.peek(); tok.kind != tokEOF {
		return nil, syntaxErr(tok.pos, "Unexpected %q", tok.text)
	}
	return &Expr{src: src, root: root}, nil
}

func (e *Expr) String() string {
	return e.src
}

// Identifiers returns the sorted, de-duplicated variable names the formula reads.
func (e *Expr) Identifiers() []string {
	seen := map[string]struct{}{}
	collectIdents(e.root, seen)
	names := make([]string, 0, len(seen))
	for name := range seen {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

type parser struct {
	tokens []token
	pos    int
	depth  int
}

func (p *parser) peek() token {
	return p.tokens[p.pos]
}

func (p *parser) next() token {
	tok := p.tokens[p.pos]
	if tok.kind != tokEOF {
		p.pos++
	}
	return tok
}

func (p *parser) enter(pos int) error {
	p.depth++
	if p.depth > MaxDepth {
		return syntaxErr(pos, "Formula nesting exceeds %d levels", MaxDepth)
	}
	return nil
}

func (p *parser) leave() {
	p.depth--
}

func (p *parser) parseExpression() (node, error) {
	if err := p.enter(p.peek().pos); err != nil {
		return nil, err
	}
	defer p.leave()

	left, err := p.parseAdditive()
	if err != nil {
		return nil, err
	}
	for {
		tok := p.peek()
		if tok.kind != tokOperator {
			return left, nil
		}
		if _, ok := comparisonOps[tok.text]; !ok {
			return left, nil
		}
		p.next()
		right, err := p.parseAdditive()
		if err != nil {
			return nil, err
		}
		left = &binaryNode{pos: tok.pos, op: tok.text, left: left, right: right}
	}
}

func (p *parser) parseAdditive() (node, error) {
	left, err := p.parseMultiplicative()
	if err != nil {
		return nil, err
	}
	for {
		tok := p.peek()
		if tok.kind != tokOperator || (tok.text != "+" && tok.text != "-") {
			return left, nil
		}
		p.next()
		right, err := p.parseMultiplicative()
		if err != nil {
			return nil, err
		}
		left = &binaryNode{pos: tok.pos, op: tok.text, left: left, right: right}
	}
}

func (p *parser) parseMultiplicative() (node, error) {
	left, err := p.parseUnary()
	if err != nil {
		return nil, err
	}
	for {
		tok := p.peek()
		if tok.kind != tokOperator || (tok.text != "*" && tok.text != "/" && tok.text != "%") {
			return left, nil
		}
		p.next()
		right, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		left = &binaryNode{pos: tok.pos, op: tok.text, left: left, right: right}
	}
}

func (p *parser) parseUnary() (node, error) {
	tok := p.peek()
	if tok.kind == tokOperator && (tok.text == "-" || tok.text == "+") {
		if err := p.enter(tok.pos); err != nil {
			return nil, err
		}
		defer p.leave()
		p.next()
		operand, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		return &unaryNode{pos: tok.pos, op: tok.text, operand: operand}, nil
	}
	return p.parsePower()
}

// parsePower binds tighter than unary minus on its left and is right
// associative: -2^2 is -4 and 2^3^2 is 2^9.
func (p *parser) parsePower() (node, error) {
	base, err := p.parsePrimary()
	if err != nil {
		return nil, err
	}
	tok := p.peek()
	if tok.kind != tokOperator || tok.text != "^" {
		return base, nil
	}
	if err := p.enter(tok.pos); err != nil {
		return nil, err
	}
	defer p.leave()
	p.next()
	exponent, err := p.parseUnary()
	if err != nil {
		return nil, err
	}
	return &binaryNode{pos: tok.pos, op: "^", left: base, right: exponent}, nil
}

func (p *parser) parsePrimary() (node, error) {
	tok := p.next()
	switch tok.kind {
	case tokNumber:
		return &numberNode{pos: tok.pos, value: tok.num}, nil
	case tokIdent:
		if p.peek().kind == tokLeftParen {
			return p.parseCall(tok)
		}
		return &identNode{pos: tok.pos, name: tok.text}, nil
	case tokLeftParen:
		inner, err := p.parseExpression()
		if err != nil {
			return nil, err
		}
		if closing := p.next(); closing.kind != tokRightParen {
			return nil, syntaxErr(closing.pos, "Parenthesis ) expected")
		}
		return inner, nil
	case tokEOF:
		return nil, syntaxErr(tok.pos, "Unexpected end of expression")
	default:
		return nil, syntaxErr(tok.pos, "Value expected, got %q", tok.text)
	}
}

func (p *parser) parseCall(name token) (node, error) {
	fn, ok := functions[name.text]
	if !ok {
		return nil, syntaxErr(name.pos, "Unknown function %s", name.text)
	}
	p.next() // (

	var args []node
	if p.peek().kind != tokRightParen {
		for {
			arg, err := p.parseExpression()
			if err != nil {
				return nil, err
			}
			args = append(args, arg)
			if p.peek().kind != tokComma {
				break
			}
			p.next()
		}
	}
	if closing := p.next(); closing.kind != tokRightParen {
		return nil, syntaxErr(closing.pos, "Parenthesis ) expected")
	}
	if len(args) < fn.min || (fn.max >= 0 && len(args) > fn.max) {
		return nil, syntaxErr(name.pos, "Wrong number of arguments in function %s (%d provided)", name.text, len(args))
	}
	return &callNode{pos: name.pos, name: name.text, args: args}, nil
}
