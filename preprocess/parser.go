package preprocess

import (
	"context"
	"log/slog"
	"strings"

	"github.com/gogpu/hlms/idstring"
	"github.com/gogpu/hlms/property"
)

// Context is the mutable state a template is evaluated against.
// Math and counter directives write to Props; piece directives write to
// Pieces. A Context must not be shared between goroutines.
type Context struct {
	Props    *property.Store
	Pieces   property.Pieces
	Filename string
}

// NewContext returns a Context with an empty store and piece map.
func NewContext(filename string) *Context {
	return &Context{
		Props:    property.NewStore(64),
		Pieces:   property.Pieces{},
		Filename: filename,
	}
}

func (c *Context) prop(name string, def int32) int32 {
	return c.Props.Get(idstring.New(name), def)
}

// Parser runs template directives. The zero value discards diagnostics.
type Parser struct {
	log *slog.Logger
}

// NewParser returns a Parser that reports syntax errors to log.
// A nil log discards them.
func NewParser(log *slog.Logger) *Parser {
	return &Parser{log: log}
}

func (p *Parser) syntaxError(ctx *Context, buf string, at int, msg string, args ...any) {
	if p == nil || p.log == nil || !p.log.Enabled(context.Background(), slog.LevelWarn) {
		return
	}
	attrs := append([]any{"file", ctx.Filename, "line", LineOf(buf, at)}, args...)
	p.log.Warn("hlms preprocess: "+msg, attrs...)
}

// Parse runs the full pipeline over in and returns the generated source.
// The second result reports whether any stage hit a syntax error.
func (p *Parser) Parse(ctx *Context, in string) (string, bool) {
	out, bad := p.ParseMath(ctx, in)
	for !bad && strings.Contains(out, "@foreach") {
		var b bool
		out, b = p.ParseForEach(ctx, out)
		bad = bad || b
	}

	var b bool
	out, b = p.ParseProperties(ctx, out)
	bad = bad || b
	out, b = p.ParseUndefPieces(ctx, out)
	bad = bad || b

	for !bad && (strings.Contains(out, "@piece") || strings.Contains(out, "@insertpiece")) {
		out, b = p.CollectPieces(ctx, out)
		bad = bad || b
		out, b = p.InsertPieces(ctx, out)
		bad = bad || b
	}

	out, b = p.ParseCounter(ctx, out)
	bad = bad || b

	if bad && p != nil && p.log != nil {
		p.log.Warn("hlms preprocess: there were syntax errors", "file", ctx.Filename)
	}
	return out, bad
}

// ParsePieceFile runs the reduced pipeline applied to piece files: the
// pieces they define are collected into ctx but not inserted, and the
// returned text is normally discarded.
func (p *Parser) ParsePieceFile(ctx *Context, in string) (string, bool) {
	out, bad := p.ParseMath(ctx, in)
	for strings.Contains(out, "@foreach") {
		var b bool
		out, b = p.ParseForEach(ctx, out)
		if b {
			bad = true
			break
		}
	}

	var b bool
	out, b = p.ParseProperties(ctx, out)
	bad = bad || b
	out, b = p.ParseUndefPieces(ctx, out)
	bad = bad || b
	out, b = p.CollectPieces(ctx, out)
	bad = bad || b
	out, b = p.ParseCounter(ctx, out)
	bad = bad || b
	return out, bad
}

// LineOf returns the 1-based line of byte offset at in buf.
func LineOf(buf string, at int) int {
	at = min(max(at, 0), len(buf))
	return 1 + strings.Count(buf[:at], "\n")
}

// clamp keeps a scan position inside buf.
func clamp(buf string, pos int) int {
	return min(max(pos, 0), len(buf))
}

// closingParen returns the offset of the ')' that closes an argument list
// whose contents start at start.
func closingParen(buf string, start int) (int, bool) {
	nesting := 0
	for i := start; i < len(buf); i++ {
		switch buf[i] {
		case '(':
			nesting++
		case ')':
			nesting--
			if nesting < 0 {
				return i, true
			}
		}
	}
	return -1, false
}

// paramArgs splits the comma separated argument list starting at start.
// It returns the arguments and the offset just past the closing paren.
func (p *Parser) paramArgs(ctx *Context, buf string, start int) ([]string, int, bool) {
	start = clamp(buf, start)
	end, ok := closingParen(buf, start)
	if !ok {
		p.syntaxError(ctx, buf, start, "opening parenthesis without matching closure")
		return nil, start, true
	}

	args := []string{""}
	state := 0 // 0: before token, 1: in token, 2: after token
	for i := start; i < end; i++ {
		c := buf[i]
		switch c {
		case '(', ')', '@', '&', '|':
			p.syntaxError(ctx, buf, start, "unexpected character in argument list", "char", string(c))
			return args, end + 1, true
		case ' ', '\t', '\n', '\r':
			if state == 1 {
				state = 2
			}
		case ',':
			state = 0
			args = append(args, "")
		default:
			if state == 2 {
				p.syntaxError(ctx, buf, start, "',' or ')' expected")
				return args, end + 1, true
			}
			args[len(args)-1] += string(c)
			state = 1
		}
	}
	return args, end + 1, false
}

// blockKeywords open a block that is closed by @end.
var blockKeywords = [...]string{"foreach", "property", "piece", "else"}

// findBlockEnd scans from start for the @end (or, when allowElse is set,
// the @else) that closes the current block. It returns the offset of the
// closing '@'. On failure the end of buf is returned.
func (p *Parser) findBlockEnd(ctx *Context, buf string, start int, allowElse bool) (end int, isElse, bad bool) {
	start = clamp(buf, start)

	// allowed[n] reports whether an @else may appear at nesting depth n.
	allowed := []bool{allowElse}
	setAllowed := func(n int, v bool) {
		for len(allowed) <= n {
			allowed = append(allowed, false)
		}
		allowed[n] = v
	}
	isAllowed := func(n int) bool { return n < len(allowed) && allowed[n] }

	nesting := 0
	for i := start; i < len(buf); i++ {
		if buf[i] != '@' {
			continue
		}
		rest := buf[i+1:]

		if strings.HasPrefix(rest, "end") {
			nesting--
			if nesting < 0 {
				return i, false, bad
			}
			i += len("end")
			continue
		}

		if allowElse && strings.HasPrefix(rest, "else") {
			if !isAllowed(nesting) {
				p.syntaxError(ctx, buf, i, "unexpected @else while looking for @end")
				bad = true
			}
			if nesting == 0 {
				return i, true, bad
			}
			// A second @else at this depth is not allowed.
			setAllowed(nesting, false)
			i += len("else")
			continue
		}

		for k, kw := range blockKeywords {
			if !strings.HasPrefix(rest, kw) {
				continue
			}
			if kw == "else" {
				if !isAllowed(nesting) {
					p.syntaxError(ctx, buf, i, "unexpected @else while looking for @end")
					bad = true
				}
			} else {
				nesting++
			}
			setAllowed(nesting, k == 1)
			i += 1 + len(kw)
			break
		}
	}

	near := buf[start:min(len(buf), start+63)]
	p.syntaxError(ctx, buf, start, "start block (e.g. @foreach; @property) without matching @end", "near", near)
	return len(buf), false, true
}

// leadingInt parses the decimal integer at the start of s the way strtol
// does: optional whitespace and sign, then digits. Trailing text is ignored.
func leadingInt(s string) (int32, bool) {
	i := 0
	for i < len(s) && (s[i] == ' ' || s[i] == '\t' || s[i] == '\n' || s[i] == '\r') {
		i++
	}
	neg := false
	if i < len(s) && (s[i] == '+' || s[i] == '-') {
		neg = s[i] == '-'
		i++
	}
	digits := 0
	var v int64
	for ; i < len(s) && s[i] >= '0' && s[i] <= '9'; i++ {
		if v < 1<<32 {
			v = v*10 + int64(s[i]-'0')
		}
		digits++
	}
	if digits == 0 {
		return 0, false
	}
	if neg {
		v = -v
	}
	return int32(max(min(v, 1<<31-1), -1<<31)), true //nolint:gosec // G115: clamped to int32 range
}

// numberOrProperty resolves an operand as a literal first and a property second.
func numberOrProperty(ctx *Context, s string, def int32) int32 {
	if v, ok := leadingInt(s); ok {
		return v
	}
	return ctx.prop(s, def)
}
