package preprocess

import "slices"

type exprKind uint8

const (
	exprVar exprKind = iota
	exprObject
	exprAnd
	exprOr
	exprLess
	exprLessEq
	exprEq
	exprNotEq
	exprGreater
	exprGreaterEq
)

func (k exprKind) isOperator() bool   { return k >= exprAnd }
func (k exprKind) isRelational() bool { return k >= exprLess }

var operatorKinds = map[string]exprKind{
	"&&": exprAnd,
	"||": exprOr,
	"<":  exprLess,
	"<=": exprLessEq,
	"==": exprEq,
	"!=": exprNotEq,
	">":  exprGreater,
	">=": exprGreaterEq,
}

// expr is a node of a parsed @property expression. A node with children
// is a parenthesized group; a leaf is an operand or an operator token.
type expr struct {
	kind     exprKind
	value    []byte
	negated  bool
	result   int32
	children []*expr
}

func isOperatorChar(c byte) bool {
	switch c {
	case '&', '|', '=', '<', '>', '!':
		return true
	}
	return false
}

// evalExpression evaluates the expression whose text starts at start (just
// past "@property("). It returns the result and the offset past ')'.
func (p *Parser) evalExpression(ctx *Context, buf string, start int) (result bool, next int, bad bool) {
	start = clamp(buf, start)
	end, ok := closingParen(buf, start)
	if !ok {
		p.syntaxError(ctx, buf, start, "opening parenthesis without matching closure")
		return false, start, true
	}

	root, bad := tokenize(buf[start:end])
	if !bad {
		var v int32
		v, bad = p.evalList(ctx, buf, start, []*expr{root})
		result = v != 0
	}
	if bad {
		p.syntaxError(ctx, buf, start, "invalid expression", "expr", buf[start:end])
		result = false
	}
	return result, end + 1, bad
}

// tokenize builds the expression tree for src.
func tokenize(src string) (*expr, bool) {
	root := &expr{}
	cur := root
	var parents []*expr
	textStarted := false
	negate := false

	for i := 0; i < len(src); i++ {
		c := src[i]
		switch {
		case c == '(':
			child := &expr{negated: negate}
			cur.children = append(cur.children, child)
			parents = append(parents, cur)
			cur = child
			textStarted = false
			negate = false
		case c == ')':
			if len(parents) == 0 {
				return root, true
			}
			cur = parents[len(parents)-1]
			parents = parents[:len(parents)-1]
			textStarted = false
		case c == ' ' || c == '\t' || c == '\n' || c == '\r':
			textStarted = false
		case c == '!' && (i+1 == len(src) || src[i+1] != '='):
			negate = true
		default:
			if !textStarted {
				textStarted = true
				cur.children = append(cur.children, &expr{negated: negate})
			}
			if isOperatorChar(c) {
				if negate {
					return root, true
				}
				last := cur.children[len(cur.children)-1]
				if len(last.value) > 0 && c != last.value[len(last.value)-1] && c != '=' {
					cur.children = append(cur.children, &expr{})
				}
			}
			last := cur.children[len(cur.children)-1]
			last.value = append(last.value, c)
			negate = false
		}
	}
	return root, len(parents) != 0
}

// evalList classifies, regroups and folds a sibling list left to right.
func (p *Parser) evalList(ctx *Context, buf string, at int, list []*expr) (int32, bool) {
	lastWasOperator := true
	for _, e := range list {
		if k, ok := operatorKinds[string(e.value)]; ok {
			e.kind = k
		} else if len(e.children) > 0 {
			e.kind = exprObject
		} else {
			e.kind = exprVar
		}
		if e.kind.isOperator() == lastWasOperator {
			p.syntaxError(ctx, buf, at, "unrecognized token", "token", string(e.value))
			return 0, true
		}
		lastWasOperator = e.kind.isOperator()
	}

	// Relational operators bind tighter than && and ||: fold each
	// "a < b" run into a single group node.
	if len(list) > 3 {
		list = slices.Clone(list)
		for i := 1; i < len(list); {
			if !list[i].kind.isRelational() {
				i++
				continue
			}
			if i+1 >= len(list) {
				return 0, true
			}
			list[i-1] = &expr{kind: exprObject, children: []*expr{list[i-1], list[i], list[i+1]}}
			list = slices.Delete(list, i, i+2)
		}
	}

	for _, e := range list {
		switch e.kind {
		case exprVar:
			e.result = numberOrProperty(ctx, string(e.value), 0)
		case exprObject:
			r, bad := p.evalList(ctx, buf, at, e.children)
			if bad {
				return 0, true
			}
			e.result = r
		}
	}

	ret := int32(1)
	next := exprVar
	for _, e := range list {
		r := e.result
		if e.negated {
			r = b2i(r == 0)
		}
		switch next {
		case exprOr:
			ret = b2i(ret != 0 || r != 0)
		case exprAnd:
			ret = b2i(ret != 0 && r != 0)
		case exprLess:
			ret = b2i(ret < r)
		case exprLessEq:
			ret = b2i(ret <= r)
		case exprEq:
			ret = b2i(ret == r)
		case exprNotEq:
			ret = b2i(ret != r)
		case exprGreater:
			ret = b2i(ret > r)
		case exprGreaterEq:
			ret = b2i(ret >= r)
		case exprVar, exprObject:
			if !e.kind.isOperator() {
				ret = r
			}
		}
		next = e.kind
	}
	return ret, false
}

func b2i(b bool) int32 {
	if b {
		return 1
	}
	return 0
}
