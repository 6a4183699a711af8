// Copyright (c) Abstract Machines
// SPDX-License-Identifier: Apache-2.0

package selector

import (
	"fmt"
	"strings"
	"unicode"
)

type tokenKind int

const (
	tokEOF tokenKind = iota
	tokIdent
	tokInt
	tokFloat
	tokString
	tokOp     // = <> < <= > >= + - * /
	tokLParen
	tokRParen
	tokComma
)

type token struct {
	kind tokenKind
	text string
	pos  int
}

// keyword reports whether the token is the given keyword, case-insensitively.
// Selector keywords are not reserved as property names unless they appear in
// keyword position, which the parser decides.
func (t token) keyword(kw string) bool {
	return t.kind == tokIdent && strings.EqualFold(t.text, kw)
}

type lexer struct {
	src string
	i   int
}

func newLexer(src string) *lexer {
	return &lexer{src: src}
}

func (l *lexer) next() (token, error) {
	for l.i < len(l.src) && unicode.IsSpace(rune(l.src[l.i])) {
		l.i++
	}
	if l.i >= len(l.src) {
		return token{kind: tokEOF, pos: l.i}, nil
	}

	start := l.i
	c := l.src[l.i]

	switch {
	case c == '(':
		l.i++
		return token{kind: tokLParen, text: "(", pos: start}, nil
	case c == ')':
		l.i++
		return token{kind: tokRParen, text: ")", pos: start}, nil
	case c == ',':
		l.i++
		return token{kind: tokComma, text: ",", pos: start}, nil
	case c == '\'':
		return l.lexString()
	case c >= '0' && c <= '9' || c == '.' && l.i+1 < len(l.src) && l.src[l.i+1] >= '0' && l.src[l.i+1] <= '9':
		return l.lexNumber()
	case isIdentStart(rune(c)):
		return l.lexIdent()
	case c == '<':
		if l.i+1 < len(l.src) && (l.src[l.i+1] == '=' || l.src[l.i+1] == '>') {
			l.i += 2
			return token{kind: tokOp, text: l.src[start:l.i], pos: start}, nil
		}
		l.i++
		return token{kind: tokOp, text: "<", pos: start}, nil
	case c == '>':
		if l.i+1 < len(l.src) && l.src[l.i+1] == '=' {
			l.i += 2
			return token{kind: tokOp, text: ">=", pos: start}, nil
		}
		l.i++
		return token{kind: tokOp, text: ">", pos: start}, nil
	case c == '=' || c == '+' || c == '-' || c == '*' || c == '/':
		l.i++
		return token{kind: tokOp, text: string(c), pos: start}, nil
	default:
		return token{}, fmt.Errorf("unexpected character %q at position %d", c, start)
	}
}

// lexString scans a single-quoted literal. A doubled quote is an escaped
// quote, per SQL convention.
func (l *lexer) lexString() (token, error) {
	start := l.i
	l.i++ // opening quote
	var sb strings.Builder
	for l.i < len(l.src) {
		c := l.src[l.i]
		if c == '\'' {
			if l.i+1 < len(l.src) && l.src[l.i+1] == '\'' {
				sb.WriteByte('\'')
				l.i += 2
				continue
			}
			l.i++
			return token{kind: tokString, text: sb.String(), pos: start}, nil
		}
		sb.WriteByte(c)
		l.i++
	}
	return token{}, fmt.Errorf("unterminated string literal at position %d", start)
}

func (l *lexer) lexNumber() (token, error) {
	start := l.i
	isFloat := false
	for l.i < len(l.src) {
		c := l.src[l.i]
		if c >= '0' && c <= '9' {
			l.i++
			continue
		}
		if c == '.' && !isFloat {
			isFloat = true
			l.i++
			continue
		}
		if (c == 'e' || c == 'E') && l.i > start {
			isFloat = true
			l.i++
			if l.i < len(l.src) && (l.src[l.i] == '+' || l.src[l.i] == '-') {
				l.i++
			}
			continue
		}
		break
	}
	kind := tokInt
	if isFloat {
		kind = tokFloat
	}
	return token{kind: kind, text: l.src[start:l.i], pos: start}, nil
}

func (l *lexer) lexIdent() (token, error) {
	start := l.i
	for l.i < len(l.src) && isIdentPart(rune(l.src[l.i])) {
		l.i++
	}
	return token{kind: tokIdent, text: l.src[start:l.i], pos: start}, nil
}

func isIdentStart(r rune) bool {
	return r == '_' || r == '$' || unicode.IsLetter(r)
}

func isIdentPart(r rune) bool {
	return isIdentStart(r) || unicode.IsDigit(r) || r == '.'
}
