package preprocess

import (
	"strconv"
	"strings"

	"github.com/gogpu/hlms/idstring"
)

// operation is an arithmetic directive. Printing directives (@counter and
// @value) have a nil fn.
type operation struct {
	name string
	fn   func(a, b int32) (int32, bool)
	bump bool
}

func opSet(_, b int32) (int32, bool) { return b, true }
func opAdd(a, b int32) (int32, bool) { return a + b, true }
func opSub(a, b int32) (int32, bool) { return a - b, true }
func opMul(a, b int32) (int32, bool) { return a * b, true }
func opMin(a, b int32) (int32, bool) { return min(a, b), true }
func opMax(a, b int32) (int32, bool) { return max(a, b), true }

func opDiv(a, b int32) (int32, bool) {
	if b == 0 {
		return 0, false
	}
	return a / b, true
}

func opMod(a, b int32) (int32, bool) {
	if b == 0 {
		return 0, false
	}
	return a % b, true
}

var mathOps = []operation{
	{name: "pset", fn: opSet},
	{name: "padd", fn: opAdd},
	{name: "psub", fn: opSub},
	{name: "pmul", fn: opMul},
	{name: "pdiv", fn: opDiv},
	{name: "pmod", fn: opMod},
	{name: "pmin", fn: opMin},
	{name: "pmax", fn: opMax},
}

var counterOps = []operation{
	{name: "counter", bump: true},
	{name: "value"},
	{name: "set", fn: opSet},
	{name: "add", fn: opAdd},
	{name: "sub", fn: opSub},
	{name: "mul", fn: opMul},
	{name: "div", fn: opDiv},
	{name: "mod", fn: opMod},
	{name: "min", fn: opMin},
	{name: "max", fn: opMax},
}

// ParseMath applies the @pset family. These directives produce no text.
func (p *Parser) ParseMath(ctx *Context, in string) (string, bool) {
	return p.parseOps(ctx, in, mathOps)
}

// ParseCounter applies @counter, @value and the unprefixed arithmetic
// directives.
func (p *Parser) ParseCounter(ctx *Context, in string) (string, bool) {
	return p.parseOps(ctx, in, counterOps)
}

// nextOp finds the next '@' at or after pos whose keyword matches one of
// ops. The keyword is the text up to the first space, tab or '('.
// Other '@' sequences are left untouched.
func nextOp(in string, pos int, ops []operation) (int, *operation) {
	for {
		at := strings.IndexByte(in[pos:], '@')
		if at < 0 {
			return -1, nil
		}
		at += pos
		kw := in[at+1:]
		if n := strings.IndexAny(kw, " \t("); n >= 0 {
			kw = kw[:n]
		}
		for i := range ops {
			if ops[i].name == kw {
				return at, &ops[i]
			}
		}
		pos = at + 1
	}
}

func (p *Parser) parseOps(ctx *Context, in string, ops []operation) (string, bool) {
	var out strings.Builder
	out.Grow(len(in))

	pos := 0
	bad := false
	for !bad {
		at, op := nextOp(in, pos, ops)
		if op == nil {
			break
		}
		out.WriteString(in[pos:at])

		args, next, argBad := p.paramArgs(ctx, in, at+1+len(op.name)+1)
		pos = next
		bad = argBad
		if op.fn == nil {
			bad = bad || len(args) != 1
		} else {
			bad = bad || len(args) < 2 || len(args) > 3
		}
		if bad {
			if op.fn == nil {
				p.syntaxError(ctx, in, at, "@"+op.name+" expects one parameter")
			} else {
				p.syntaxError(ctx, in, at, "@"+op.name+" expects two or three parameters")
			}
			break
		}

		dst := idstring.New(args[0])
		if op.fn == nil {
			v := ctx.Props.Get(dst, 0)
			out.WriteString(strconv.FormatInt(int64(v), 10))
			if op.bump {
				ctx.Props.Set(dst, v+1)
			}
			continue
		}

		idx := 0
		if len(args) == 3 {
			idx = 1
		}
		a := numberOrProperty(ctx, args[idx], 0)
		b := numberOrProperty(ctx, args[idx+1], 0)
		v, ok := op.fn(a, b)
		if !ok {
			p.syntaxError(ctx, in, at, "@"+op.name+": division by zero")
			bad = true
			break
		}
		ctx.Props.Set(dst, v)
	}
	out.WriteString(in[clamp(in, pos):])
	return out.String(), bad
}
