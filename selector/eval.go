// Copyright (c) Abstract Machines
// SPDX-License-Identifier: Apache-2.0

package selector

import "fmt"

// node is one compiled expression node. Evaluation follows SQL three-valued
// logic: a nil result is "unknown" and propagates through comparisons and
// boolean operators; only an explicit true at the root is a match.
type node interface {
	eval(ctx *Context) (any, error)
}

type literalNode struct {
	value any
}

func (n literalNode) eval(*Context) (any, error) {
	return n.value, nil
}

type identNode struct {
	name string
}

func (n identNode) eval(ctx *Context) (any, error) {
	return ctx.value(n.name)
}

type notNode struct {
	inner node
}

func (n notNode) eval(ctx *Context) (any, error) {
	v, err := n.inner.eval(ctx)
	if err != nil {
		return nil, err
	}
	b, ok := v.(bool)
	if !ok {
		return nil, nil
	}
	return !b, nil
}

type andNode struct {
	left, right node
}

func (n andNode) eval(ctx *Context) (any, error) {
	l, err := n.left.eval(ctx)
	if err != nil {
		return nil, err
	}
	if b, ok := l.(bool); ok && !b {
		return false, nil
	}
	r, err := n.right.eval(ctx)
	if err != nil {
		return nil, err
	}
	if b, ok := r.(bool); ok && !b {
		return false, nil
	}
	lb, lok := l.(bool)
	rb, rok := r.(bool)
	if lok && rok {
		return lb && rb, nil
	}
	return nil, nil
}

type orNode struct {
	left, right node
}

func (n orNode) eval(ctx *Context) (any, error) {
	l, err := n.left.eval(ctx)
	if err != nil {
		return nil, err
	}
	if b, ok := l.(bool); ok && b {
		return true, nil
	}
	r, err := n.right.eval(ctx)
	if err != nil {
		return nil, err
	}
	if b, ok := r.(bool); ok && b {
		return true, nil
	}
	lb, lok := l.(bool)
	rb, rok := r.(bool)
	if lok && rok {
		return lb || rb, nil
	}
	return nil, nil
}

type cmpNode struct {
	op          string
	left, right node
}

func (n cmpNode) eval(ctx *Context) (any, error) {
	l, err := n.left.eval(ctx)
	if err != nil {
		return nil, err
	}
	r, err := n.right.eval(ctx)
	if err != nil {
		return nil, err
	}
	if l == nil || r == nil {
		return nil, nil
	}

	if n.op == "=" || n.op == "<>" {
		eq, known := equalValues(l, r)
		if !known {
			return nil, nil
		}
		if n.op == "<>" {
			return !eq, nil
		}
		return eq, nil
	}

	lf, lok := asNumber(l)
	rf, rok := asNumber(r)
	if !lok || !rok {
		return nil, nil
	}
	switch n.op {
	case "<":
		return lf < rf, nil
	case "<=":
		return lf <= rf, nil
	case ">":
		return lf > rf, nil
	case ">=":
		return lf >= rf, nil
	}
	return nil, fmt.Errorf("unknown comparison operator %q", n.op)
}

type arithNode struct {
	op          byte
	left, right node
}

func (n arithNode) eval(ctx *Context) (any, error) {
	l, err := n.left.eval(ctx)
	if err != nil {
		return nil, err
	}
	r, err := n.right.eval(ctx)
	if err != nil {
		return nil, err
	}
	if l == nil || r == nil {
		return nil, nil
	}

	li, liok := l.(int64)
	ri, riok := r.(int64)
	if liok && riok && n.op != '/' {
		switch n.op {
		case '+':
			return li + ri, nil
		case '-':
			return li - ri, nil
		case '*':
			return li * ri, nil
		}
	}

	lf, lok := asNumber(l)
	rf, rok := asNumber(r)
	if !lok || !rok {
		return nil, fmt.Errorf("arithmetic on non-numeric value")
	}
	switch n.op {
	case '+':
		return lf + rf, nil
	case '-':
		return lf - rf, nil
	case '*':
		return lf * rf, nil
	case '/':
		if rf == 0 {
			return nil, fmt.Errorf("division by zero")
		}
		return lf / rf, nil
	}
	return nil, fmt.Errorf("unknown arithmetic operator %q", n.op)
}

type negNode struct {
	inner node
}

func (n negNode) eval(ctx *Context) (any, error) {
	v, err := n.inner.eval(ctx)
	if err != nil {
		return nil, err
	}
	switch t := v.(type) {
	case nil:
		return nil, nil
	case int64:
		return -t, nil
	case float64:
		return -t, nil
	default:
		return nil, fmt.Errorf("unary minus on non-numeric value")
	}
}

type betweenNode struct {
	operand, low, high node
	negated            bool
}

func (n betweenNode) eval(ctx *Context) (any, error) {
	v, err := n.operand.eval(ctx)
	if err != nil {
		return nil, err
	}
	lo, err := n.low.eval(ctx)
	if err != nil {
		return nil, err
	}
	hi, err := n.high.eval(ctx)
	if err != nil {
		return nil, err
	}
	vf, vok := asNumber(v)
	lf, lok := asNumber(lo)
	hf, hok := asNumber(hi)
	if !vok || !lok || !hok {
		return nil, nil
	}
	in := vf >= lf && vf <= hf
	if n.negated {
		return !in, nil
	}
	return in, nil
}

type inNode struct {
	operand node
	values  []string
	negated bool
}

func (n inNode) eval(ctx *Context) (any, error) {
	v, err := n.operand.eval(ctx)
	if err != nil {
		return nil, err
	}
	s, ok := v.(string)
	if !ok {
		return nil, nil
	}
	found := false
	for _, candidate := range n.values {
		if s == candidate {
			found = true
			break
		}
	}
	if n.negated {
		return !found, nil
	}
	return found, nil
}

type isNullNode struct {
	operand node
	negated bool
}

func (n isNullNode) eval(ctx *Context) (any, error) {
	v, err := n.operand.eval(ctx)
	if err != nil {
		return nil, err
	}
	if n.negated {
		return v != nil, nil
	}
	return v == nil, nil
}

type likeNode struct {
	operand   node
	pattern   string
	escape    rune
	hasEscape bool
	negated   bool
}

func (n likeNode) eval(ctx *Context) (any, error) {
	v, err := n.operand.eval(ctx)
	if err != nil {
		return nil, err
	}
	s, ok := v.(string)
	if !ok {
		return nil, nil
	}
	m := likeMatch([]rune(s), []rune(n.pattern), n.escape, n.hasEscape)
	if n.negated {
		return !m, nil
	}
	return m, nil
}

// likeMatch implements SQL LIKE: % matches any run of characters, _ matches
// exactly one, and the escape character forces the following pattern
// character to be taken literally.
func likeMatch(s, p []rune, escape rune, hasEscape bool) bool {
	if len(p) == 0 {
		return len(s) == 0
	}

	c := p[0]
	if hasEscape && c == escape {
		if len(p) < 2 {
			return false
		}
		return len(s) > 0 && s[0] == p[1] && likeMatch(s[1:], p[2:], escape, hasEscape)
	}

	switch c {
	case '%':
		for i := 0; i <= len(s); i++ {
			if likeMatch(s[i:], p[1:], escape, hasEscape) {
				return true
			}
		}
		return false
	case '_':
		return len(s) > 0 && likeMatch(s[1:], p[1:], escape, hasEscape)
	default:
		return len(s) > 0 && s[0] == c && likeMatch(s[1:], p[1:], escape, hasEscape)
	}
}

// equalValues compares two non-nil values for equality, promoting mixed
// numeric types. The second result is false when the types are incomparable.
func equalValues(l, r any) (eq, known bool) {
	switch lv := l.(type) {
	case string:
		rv, ok := r.(string)
		if !ok {
			return false, false
		}
		return lv == rv, true
	case bool:
		rv, ok := r.(bool)
		if !ok {
			return false, false
		}
		return lv == rv, true
	default:
		lf, lok := asNumber(l)
		rf, rok := asNumber(r)
		if !lok || !rok {
			return false, false
		}
		return lf == rf, true
	}
}

// asNumber promotes int64 and float64 values to float64 for comparison.
func asNumber(v any) (float64, bool) {
	switch t := v.(type) {
	case int64:
		return float64(t), true
	case float64:
		return t, true
	default:
		return 0, false
	}
}
