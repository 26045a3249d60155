package tools

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// Evaluate computes a basic arithmetic expression: + - * /, unary minus,
// parentheses, decimal numbers.
func Evaluate(expression string) (float64, error) {
	p := &parser{input: expression}
	v, err := p.expr()
	if err != nil {
		return 0, err
	}
	p.skipSpaces()
	if p.pos < len(p.input) {
		return 0, fmt.Errorf("tools: unexpected character %q at position %d", p.input[p.pos], p.pos)
	}
	return v, nil
}

// FormatResult renders an evaluation result without a trailing ".000000" for
// integral values.
func FormatResult(v float64) string {
	if v == float64(int64(v)) {
		return strconv.FormatInt(int64(v), 10)
	}
	return strconv.FormatFloat(v, 'g', -1, 64)
}

type parser struct {
	input string
	pos   int
}

func (p *parser) skipSpaces() {
	for p.pos < len(p.input) && p.input[p.pos] == ' ' {
		p.pos++
	}
}

func (p *parser) peek() (byte, bool) {
	p.skipSpaces()
	if p.pos >= len(p.input) {
		return 0, false
	}
	return p.input[p.pos], true
}

// expr := term (('+'|'-') term)*
func (p *parser) expr() (float64, error) {
	v, err := p.term()
	if err != nil {
		return 0, err
	}
	for {
		c, ok := p.peek()
		if !ok || (c != '+' && c != '-') {
			return v, nil
		}
		p.pos++
		rhs, err := p.term()
		if err != nil {
			return 0, err
		}
		if c == '+' {
			v += rhs
		} else {
			v -= rhs
		}
	}
}

// term := factor (('*'|'/') factor)*
func (p *parser) term() (float64, error) {
	v, err := p.factor()
	if err != nil {
		return 0, err
	}
	for {
		c, ok := p.peek()
		if !ok || (c != '*' && c != '/') {
			return v, nil
		}
		p.pos++
		rhs, err := p.factor()
		if err != nil {
			return 0, err
		}
		if c == '*' {
			v *= rhs
		} else {
			if rhs == 0 {
				return 0, errors.New("tools: division by zero")
			}
			v /= rhs
		}
	}
}

// factor := '-' factor | '(' expr ')' | number
func (p *parser) factor() (float64, error) {
	c, ok := p.peek()
	if !ok {
		return 0, errors.New("tools: unexpected end of expression")
	}
	switch {
	case c == '-':
		p.pos++
		v, err := p.factor()
		if err != nil {
			return 0, err
		}
		return -v, nil
	case c == '(':
		p.pos++
		v, err := p.expr()
		if err != nil {
			return 0, err
		}
		if c, ok := p.peek(); !ok || c != ')' {
			return 0, errors.New("tools: missing closing parenthesis")
		}
		p.pos++
		return v, nil
	default:
		return p.number()
	}
}

func (p *parser) number() (float64, error) {
	p.skipSpaces()
	start := p.pos
	for p.pos < len(p.input) {
		c := p.input[p.pos]
		if (c >= '0' && c <= '9') || c == '.' {
			p.pos++
			continue
		}
		break
	}
	if start == p.pos {
		return 0, fmt.Errorf("tools: expected a number at position %d", start)
	}
	v, err := strconv.ParseFloat(strings.TrimSpace(p.input[start:p.pos]), 64)
	if err != nil {
		return 0, fmt.Errorf("tools: invalid number %q: %w", p.input[start:p.pos], err)
	}
	return v, nil
}
