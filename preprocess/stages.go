package preprocess

import (
	"strconv"
	"strings"

	"github.com/gogpu/hlms/idstring"
	"github.com/gogpu/hlms/property"
)

const (
	endLen  = len("@end") + 1
	elseLen = len("@else") + 1
)

// ParseForEach expands every top-level @foreach block once. Nested loops
// survive into the output; [Parser.Parse] repeats the stage until none
// remain.
func (p *Parser) ParseForEach(ctx *Context, in string) (string, bool) {
	var out strings.Builder
	out.Grow(len(in))

	pos := 0
	bad := false
	for !bad {
		at := strings.Index(in[pos:], "@foreach")
		if at < 0 {
			break
		}
		at += pos
		out.WriteString(in[pos:at])

		args, bodyStart, argBad := p.paramArgs(ctx, in, at+len("@foreach("))
		bodyEnd, _, blockBad := p.findBlockEnd(ctx, in, bodyStart, false)
		bad = argBad || blockBad

		if !bad {
			count := numberOrProperty(ctx, args[0], 0)
			var counterVar string
			if len(args) > 1 {
				counterVar = args[1]
			}
			start := int32(0)
			if len(args) > 2 {
				start = numberOrProperty(ctx, args[2], -1)
				if start < 0 {
					p.syntaxError(ctx, in, bodyStart, "invalid @foreach start: not a number nor a variable", "arg", args[2])
					bad = true
					start, count = 0, 0
				}
			}
			body := in[bodyStart:bodyEnd]
			for i := start; i < count; i++ {
				repeat(&out, body, int(i), counterVar)
			}
		}

		pos = clamp(in, bodyEnd+endLen)
	}
	out.WriteString(in[clamp(in, pos):])
	return out.String(), bad
}

// repeat writes body with every "@<counterVar>" replaced by idx.
func repeat(out *strings.Builder, body string, idx int, counterVar string) {
	if counterVar == "" {
		out.WriteString(body)
		return
	}
	for i := 0; i < len(body); {
		if body[i] == '@' && strings.HasPrefix(body[i+1:], counterVar) {
			out.WriteString(strconv.Itoa(idx))
			i += 1 + len(counterVar)
			continue
		}
		out.WriteByte(body[i])
		i++
	}
}

// ParseProperties resolves @property blocks, re-running until no
// @property directive is left.
func (p *Parser) ParseProperties(ctx *Context, in string) (string, bool) {
	out, bad := p.parsePropertiesOnce(ctx, in)
	for !bad && strings.Contains(out, "@property") {
		out, bad = p.parsePropertiesOnce(ctx, out)
	}
	return out, bad
}

func (p *Parser) parsePropertiesOnce(ctx *Context, in string) (string, bool) {
	var out strings.Builder
	out.Grow(len(in))

	pos := 0
	bad := false
	for !bad {
		at := strings.Index(in[pos:], "@property")
		if at < 0 {
			break
		}
		at += pos
		out.WriteString(in[pos:at])

		result, bodyStart, exprBad := p.evalExpression(ctx, in, at+len("@property("))
		bodyEnd, isElse, blockBad := p.findBlockEnd(ctx, in, bodyStart, true)
		bad = exprBad || blockBad

		if result && !bad {
			out.WriteString(in[bodyStart:bodyEnd])
		}

		if !isElse {
			pos = clamp(in, bodyEnd+endLen)
			continue
		}

		elseStart := clamp(in, bodyEnd+elseLen)
		elseEnd, _, elseBad := p.findBlockEnd(ctx, in, elseStart, false)
		bad = bad || elseBad
		if !bad && !result {
			out.WriteString(in[elseStart:elseEnd])
		}
		pos = clamp(in, elseEnd+endLen)
	}
	out.WriteString(in[clamp(in, pos):])
	return out.String(), bad
}

// pieceArg parses the single name argument of a piece directive.
func (p *Parser) pieceArg(ctx *Context, in string, start int, directive string) (idstring.IdString, string, int, bool) {
	args, next, bad := p.paramArgs(ctx, in, start)
	if !bad && len(args) != 1 {
		bad = true
	}
	if bad {
		p.syntaxError(ctx, in, start, directive+" expects one parameter")
		return 0, "", next, true
	}
	return idstring.New(args[0]), args[0], next, false
}

// ParseUndefPieces removes the pieces named by @undefpiece.
func (p *Parser) ParseUndefPieces(ctx *Context, in string) (string, bool) {
	var out strings.Builder
	out.Grow(len(in))

	pos := 0
	bad := false
	for !bad {
		at := strings.Index(in[pos:], "@undefpiece")
		if at < 0 {
			break
		}
		at += pos
		out.WriteString(in[pos:at])

		var id idstring.IdString
		id, _, pos, bad = p.pieceArg(ctx, in, at+len("@undefpiece("), "@undefpiece")
		if !bad {
			delete(ctx.Pieces, id)
		}
	}
	out.WriteString(in[clamp(in, pos):])
	return out.String(), bad
}

// CollectPieces stores every @piece body in ctx.Pieces and removes it
// from the output. Redefining a piece is an error.
func (p *Parser) CollectPieces(ctx *Context, in string) (string, bool) {
	if ctx.Pieces == nil {
		ctx.Pieces = property.Pieces{}
	}

	var out strings.Builder
	out.Grow(len(in))

	pos := 0
	bad := false
	for !bad {
		at := strings.Index(in[pos:], "@piece")
		if at < 0 {
			break
		}
		at += pos
		out.WriteString(in[pos:at])

		id, name, bodyStart, argBad := p.pieceArg(ctx, in, at+len("@piece("), "@piece")
		pos = bodyStart
		if argBad {
			bad = true
			break
		}
		if _, dup := ctx.Pieces[id]; dup {
			p.syntaxError(ctx, in, bodyStart, "@piece already defined", "piece", name)
			bad = true
			break
		}

		bodyEnd, _, blockBad := p.findBlockEnd(ctx, in, bodyStart, false)
		bad = blockBad
		ctx.Pieces[id] = in[bodyStart:bodyEnd]
		pos = clamp(in, bodyEnd+endLen)
	}
	out.WriteString(in[clamp(in, pos):])
	return out.String(), bad
}

// InsertPieces replaces @insertpiece directives with the named piece.
// Unknown pieces insert nothing.
func (p *Parser) InsertPieces(ctx *Context, in string) (string, bool) {
	var out strings.Builder
	out.Grow(len(in))

	pos := 0
	bad := false
	for !bad {
		at := strings.Index(in[pos:], "@insertpiece")
		if at < 0 {
			break
		}
		at += pos
		out.WriteString(in[pos:at])

		var id idstring.IdString
		id, _, pos, bad = p.pieceArg(ctx, in, at+len("@insertpiece("), "@insertpiece")
		if !bad {
			out.WriteString(ctx.Pieces[id])
		}
	}
	out.WriteString(in[clamp(in, pos):])
	return out.String(), bad
}
