// Copyright (c) Abstract Machines
// SPDX-License-Identifier: Apache-2.0

package selector

import (
	"fmt"
	"strconv"
	"unicode/utf8"
)

// parser is a recursive-descent parser over the selector grammar:
//
//	expr    := and (OR and)*
//	and     := not (AND not)*
//	not     := NOT not | cmp
//	cmp     := sum (cmpOp sum | [NOT] BETWEEN sum AND sum
//	           | [NOT] IN '(' string {',' string} ')'
//	           | [NOT] LIKE string [ESCAPE string]
//	           | IS [NOT] NULL)?
//	sum     := product (('+'|'-') product)*
//	product := unary (('*'|'/') unary)*
//	unary   := ('-'|'+') unary | primary
//	primary := literal | TRUE | FALSE | identifier | '(' expr ')'
type parser struct {
	src  string
	toks []token
	pos  int
}

func newParser(src string) *parser {
	return &parser{src: src}
}

func (p *parser) parse() (node, error) {
	// Tokenize eagerly so lexical errors surface before any grammar
	// handling.
	l := newLexer(p.src)
	for {
		t, err := l.next()
		if err != nil {
			return nil, err
		}
		p.toks = append(p.toks, t)
		if t.kind == tokEOF {
			break
		}
	}
	if len(p.toks) == 1 {
		return nil, fmt.Errorf("empty selector")
	}

	root, err := p.parseOr()
	if err != nil {
		return nil, err
	}
	if t := p.cur(); t.kind != tokEOF {
		return nil, fmt.Errorf("unexpected %q at position %d", t.text, t.pos)
	}
	return root, nil
}

func (p *parser) cur() token {
	return p.toks[p.pos]
}

func (p *parser) advance() token {
	t := p.toks[p.pos]
	if p.pos < len(p.toks)-1 {
		p.pos++
	}
	return t
}

// acceptKeyword consumes the next token when it is the given keyword.
func (p *parser) acceptKeyword(kw string) bool {
	if p.cur().keyword(kw) {
		p.advance()
		return true
	}
	return false
}

func (p *parser) expectKeyword(kw string) error {
	t := p.cur()
	if !t.keyword(kw) {
		return fmt.Errorf("expected %s, got %q at position %d", kw, t.text, t.pos)
	}
	p.advance()
	return nil
}

func (p *parser) acceptOp(op string) bool {
	t := p.cur()
	if t.kind == tokOp && t.text == op {
		p.advance()
		return true
	}
	return false
}

func (p *parser) parseOr() (node, error) {
	left, err := p.parseAnd()
	if err != nil {
		return nil, err
	}
	for p.acceptKeyword("OR") {
		right, err := p.parseAnd()
		if err != nil {
			return nil, err
		}
		left = orNode{left: left, right: right}
	}
	return left, nil
}

func (p *parser) parseAnd() (node, error) {
	left, err := p.parseNot()
	if err != nil {
		return nil, err
	}
	for p.acceptKeyword("AND") {
		right, err := p.parseNot()
		if err != nil {
			return nil, err
		}
		left = andNode{left: left, right: right}
	}
	return left, nil
}

func (p *parser) parseNot() (node, error) {
	if p.acceptKeyword("NOT") {
		inner, err := p.parseNot()
		if err != nil {
			return nil, err
		}
		return notNode{inner: inner}, nil
	}
	return p.parseComparison()
}

func (p *parser) parseComparison() (node, error) {
	left, err := p.parseSum()
	if err != nil {
		return nil, err
	}

	negated := false
	if p.cur().keyword("NOT") {
		// Only valid before BETWEEN, IN or LIKE here.
		next := p.toks[p.pos+1]
		if next.keyword("BETWEEN") || next.keyword("IN") || next.keyword("LIKE") {
			p.advance()
			negated = true
		} else {
			return nil, fmt.Errorf("unexpected NOT at position %d", p.cur().pos)
		}
	}

	switch {
	case p.acceptKeyword("BETWEEN"):
		return p.parseBetween(left, negated)
	case p.acceptKeyword("IN"):
		return p.parseIn(left, negated)
	case p.acceptKeyword("LIKE"):
		return p.parseLike(left, negated)
	case p.cur().keyword("IS"):
		p.advance()
		isNot := p.acceptKeyword("NOT")
		if err := p.expectKeyword("NULL"); err != nil {
			return nil, err
		}
		return isNullNode{operand: left, negated: isNot}, nil
	}

	t := p.cur()
	if t.kind == tokOp {
		switch t.text {
		case "=", "<>", "<", "<=", ">", ">=":
			p.advance()
			right, err := p.parseSum()
			if err != nil {
				return nil, err
			}
			return cmpNode{op: t.text, left: left, right: right}, nil
		}
	}
	return left, nil
}

func (p *parser) parseBetween(operand node, negated bool) (node, error) {
	low, err := p.parseSum()
	if err != nil {
		return nil, err
	}
	if err := p.expectKeyword("AND"); err != nil {
		return nil, err
	}
	high, err := p.parseSum()
	if err != nil {
		return nil, err
	}
	return betweenNode{operand: operand, low: low, high: high, negated: negated}, nil
}

func (p *parser) parseIn(operand node, negated bool) (node, error) {
	t := p.cur()
	if t.kind != tokLParen {
		return nil, fmt.Errorf("expected ( after IN at position %d", t.pos)
	}
	p.advance()

	var values []string
	for {
		t = p.cur()
		if t.kind != tokString {
			return nil, fmt.Errorf("expected string literal in IN list at position %d", t.pos)
		}
		values = append(values, t.text)
		p.advance()

		t = p.cur()
		if t.kind == tokComma {
			p.advance()
			continue
		}
		if t.kind == tokRParen {
			p.advance()
			break
		}
		return nil, fmt.Errorf("expected , or ) in IN list at position %d", t.pos)
	}
	return inNode{operand: operand, values: values, negated: negated}, nil
}

func (p *parser) parseLike(operand node, negated bool) (node, error) {
	t := p.cur()
	if t.kind != tokString {
		return nil, fmt.Errorf("expected string pattern after LIKE at position %d", t.pos)
	}
	pattern := t.text
	p.advance()

	var escape rune
	hasEscape := false
	if p.acceptKeyword("ESCAPE") {
		t = p.cur()
		if t.kind != tokString || utf8.RuneCountInString(t.text) != 1 {
			return nil, fmt.Errorf("ESCAPE requires a single-character string at position %d", t.pos)
		}
		escape, _ = utf8.DecodeRuneInString(t.text)
		hasEscape = true
		p.advance()
	}
	return likeNode{operand: operand, pattern: pattern, escape: escape, hasEscape: hasEscape, negated: negated}, nil
}

func (p *parser) parseSum() (node, error) {
	left, err := p.parseProduct()
	if err != nil {
		return nil, err
	}
	for {
		switch {
		case p.acceptOp("+"):
			right, err := p.parseProduct()
			if err != nil {
				return nil, err
			}
			left = arithNode{op: '+', left: left, right: right}
		case p.acceptOp("-"):
			right, err := p.parseProduct()
			if err != nil {
				return nil, err
			}
			left = arithNode{op: '-', left: left, right: right}
		default:
			return left, nil
		}
	}
}

func (p *parser) parseProduct() (node, error) {
	left, err := p.parseUnary()
	if err != nil {
		return nil, err
	}
	for {
		switch {
		case p.acceptOp("*"):
			right, err := p.parseUnary()
			if err != nil {
				return nil, err
			}
			left = arithNode{op: '*', left: left, right: right}
		case p.acceptOp("/"):
			right, err := p.parseUnary()
			if err != nil {
				return nil, err
			}
			left = arithNode{op: '/', left: left, right: right}
		default:
			return left, nil
		}
	}
}

func (p *parser) parseUnary() (node, error) {
	if p.acceptOp("-") {
		inner, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		return negNode{inner: inner}, nil
	}
	if p.acceptOp("+") {
		return p.parseUnary()
	}
	return p.parsePrimary()
}

func (p *parser) parsePrimary() (node, error) {
	t := p.cur()
	switch t.kind {
	case tokInt:
		v, err := strconv.ParseInt(t.text, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid integer %q at position %d", t.text, t.pos)
		}
		p.advance()
		return literalNode{value: v}, nil
	case tokFloat:
		v, err := strconv.ParseFloat(t.text, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid number %q at position %d", t.text, t.pos)
		}
		p.advance()
		return literalNode{value: v}, nil
	case tokString:
		p.advance()
		return literalNode{value: t.text}, nil
	case tokLParen:
		p.advance()
		inner, err := p.parseOr()
		if err != nil {
			return nil, err
		}
		if p.cur().kind != tokRParen {
			return nil, fmt.Errorf("missing ) at position %d", p.cur().pos)
		}
		p.advance()
		return inner, nil
	case tokIdent:
		if t.keyword("TRUE") {
			p.advance()
			return literalNode{value: true}, nil
		}
		if t.keyword("FALSE") {
			p.advance()
			return literalNode{value: false}, nil
		}
		if t.keyword("NULL") {
			p.advance()
			return literalNode{value: nil}, nil
		}
		if t.keyword("AND") || t.keyword("OR") || t.keyword("NOT") ||
			t.keyword("BETWEEN") || t.keyword("IN") || t.keyword("LIKE") ||
			t.keyword("IS") || t.keyword("ESCAPE") {
			return nil, fmt.Errorf("unexpected keyword %q at position %d", t.text, t.pos)
		}
		p.advance()
		return identNode{name: t.text}, nil
	default:
		return nil, fmt.Errorf("unexpected %q at position %d", t.text, t.pos)
	}
}
