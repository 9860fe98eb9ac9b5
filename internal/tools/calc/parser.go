package calc

import (
	"errors"
	"fmt"
	"math"
	"strconv"
)

// MaxExpressionLength bounds the input accepted by [Evaluate].
const MaxExpressionLength = 512

// maxDepth bounds parenthesis and unary-minus nesting.
const maxDepth = 64

// ErrDivisionByZero is returned when a divisor evaluates to zero.
var ErrDivisionByZero = errors.New("division by zero")

type tokenKind int

const (
	tokNumber tokenKind = iota
	tokPlus
	tokMinus
	tokStar
	tokSlash
	tokLParen
	tokRParen
	tokEOF
)

type token struct {
	kind tokenKind
	num  float64
	pos  int
}

// tokenize splits expr into numbers, the four operators and parentheses.
// Any other non-space character is rejected.
func tokenize(expr string) ([]token, error) {
	var toks []token
	for i := 0; i < len(expr); {
		c := expr[i]
		switch {
		case c == ' ' || c == '\t' || c == '\n' || c == '\r':
			i++
		case c == '+':
			toks = append(toks, token{kind: tokPlus, pos: i})
			i++
		case c == '-':
			toks = append(toks, token{kind: tokMinus, pos: i})
			i++
		case c == '*':
			toks = append(toks, token{kind: tokStar, pos: i})
			i++
		case c == '/':
			toks = append(toks, token{kind: tokSlash, pos: i})
			i++
		case c == '(':
			toks = append(toks, token{kind: tokLParen, pos: i})
			i++
		case c == ')':
			toks = append(toks, token{kind: tokRParen, pos: i})
			i++
		case (c >= '0' && c <= '9') || c == '.':
			start := i
			dots := 0
			for i < len(expr) && ((expr[i] >= '0' && expr[i] <= '9') || expr[i] == '.') {
				if expr[i] == '.' {
					dots++
				}
				i++
			}
			lit := expr[start:i]
			if dots > 1 || lit == "." {
				return nil, fmt.Errorf("invalid number %q at position %d", lit, start)
			}
			v, err := strconv.ParseFloat(lit, 64)
			if err != nil {
				return nil, fmt.Errorf("invalid number %q at position %d", lit, start)
			}
			toks = append(toks, token{kind: tokNumber, num: v, pos: start})
		default:
			return nil, fmt.Errorf("unexpected character %q at position %d", c, i)
		}
	}
	return append(toks, token{kind: tokEOF, pos: len(expr)}), nil
}

// parser is a recursive-descent evaluator over:
//
//	expr   = term { ("+" | "-") term }
//	term   = unary { ("*" | "/") unary }
//	unary  = "-" unary | "+" unary | factor
//	factor = number | "(" expr ")"
type parser struct {
	toks  []token
	pos   int
	depth int
}

// Evaluate parses and evaluates an arithmetic expression over numbers,
// + - * /, unary minus and parentheses.
func Evaluate(expr string) (float64, error) {
	if len(expr) > MaxExpressionLength {
		return 0, fmt.Errorf("expression longer than %d characters", MaxExpressionLength)
	}
	toks, err := tokenize(expr)
	if err != nil {
		return 0, err
	}
	if toks[0].kind == tokEOF {
		return 0, errors.New("empty expression")
	}

	p := &parser{toks: toks}
	v, err := p.expr()
	if err != nil {
		return 0, err
	}
	if tok := p.peek(); tok.kind != tokEOF {
		return 0, fmt.Errorf("unexpected token at position %d", tok.pos)
	}
	if math.IsInf(v, 0) || math.IsNaN(v) {
		return 0, errors.New("result out of range")
	}
	return v, nil
}

func (p *parser) peek() token { return p.toks[p.pos] }

func (p *parser) next() token {
	t := p.toks[p.pos]
	if t.kind != tokEOF {
		p.pos++
	}
	return t
}

func (p *parser) expr() (float64, error) {
	left, err := p.term()
	if err != nil {
		return 0, err
	}
	for {
		switch p.peek().kind {
		case tokPlus:
			p.next()
			right, err := p.term()
			if err != nil {
				return 0, err
			}
			left += right
		case tokMinus:
			p.next()
			right, err := p.term()
			if err != nil {
				return 0, err
			}
			left -= right
		default:
			return left, nil
		}
	}
}

func (p *parser) term() (float64, error) {
	left, err := p.unary()
	if err != nil {
		return 0, err
	}
	for {
		switch p.peek().kind {
		case tokStar:
			p.next()
			right, err := p.unary()
			if err != nil {
				return 0, err
			}
			left *= right
		case tokSlash:
			op := p.next()
			right, err := p.unary()
			if err != nil {
				return 0, err
			}
			if right == 0 {
				return 0, fmt.Errorf("%w at position %d", ErrDivisionByZero, op.pos)
			}
			left /= right
		default:
			return left, nil
		}
	}
}

func (p *parser) unary() (float64, error) {
	switch p.peek().kind {
	case tokMinus, tokPlus:
		op := p.next()
		if err := p.enter(op.pos); err != nil {
			return 0, err
		}
		v, err := p.unary()
		p.depth--
		if err != nil {
			return 0, err
		}
		if op.kind == tokMinus {
			return -v, nil
		}
		return v, nil
	}
	return p.factor()
}

func (p *parser) factor() (float64, error) {
	tok := p.next()
	switch tok.kind {
	case tokNumber:
		return tok.num, nil
	case tokLParen:
		if err := p.enter(tok.pos); err != nil {
			return 0, err
		}
		v, err := p.expr()
		p.depth--
		if err != nil {
			return 0, err
		}
		if closing := p.next(); closing.kind != tokRParen {
			return 0, fmt.Errorf("missing ')' for '(' at position %d", tok.pos)
		}
		return v, nil
	case tokEOF:
		return 0, errors.New("unexpected end of expression")
	default:
		return 0, fmt.Errorf("unexpected token at position %d", tok.pos)
	}
}

func (p *parser) enter(pos int) error {
	p.depth++
	if p.depth > maxDepth {
		return fmt.Errorf("expression nested too deeply at position %d", pos)
	}
	return nil
}
