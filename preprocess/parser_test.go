package preprocess

import (
	"strings"
	"testing"

	"github.com/gogpu/hlms/idstring"
)

func newTestContext(props map[string]int32) *Context {
	ctx := NewContext("test.glsl")
	for k, v := range props {
		ctx.Props.Set(idstring.New(k), v)
	}
	return ctx
}

func TestParse(t *testing.T) {
	tests := []struct {
		name  string
		props map[string]int32
		in    string
		want  string
	}{
		{"plain text", nil, "void main() {}", "void main() {}"},
		{"unknown directive passes through", nil, "a@foo b", "a@foo b"},
		{"foreach", nil, "@foreach(3, i)X@iX@end", "X0XX1XX2X"},
		{"foreach with start", nil, "@foreach(3, i, 1)X@iX@end", "X1XX2X"},
		{"foreach count from property", map[string]int32{"n": 2}, "@foreach(n, i)<@i>@end", "<0><1>"},
		{"foreach missing count property", nil, "[@foreach(n, i)x@end ]", "[]"},
		{"nested foreach", nil, "@foreach(2, i)@foreach(2, j)@i@j @end\n@end", "00 01 10 11 "},
		{"property true", map[string]int32{"a": 1}, "@property(a)yes@end", "yes"},
		{"property false", nil, "[@property(a)yes@end ]", "[]"},
		{"property else", nil, "@property(a)T@else F@end", "F"},
		{"negation", nil, "@property(!a)N@end", "N"},
		{"negated group", map[string]int32{"a": 1, "b": 0}, "@property(!(a && b))N@end", "N"},
		{"relational literal", map[string]int32{"n": 3}, "@property(n >= 2)big@end", "big"},
		{"not equal", map[string]int32{"n": 3}, "@property(n != 3)x@else y@end", "y"},
		{"nested property", map[string]int32{"a": 1, "b": 1}, "@property(a)[@property(b)B@end\n]@end", "[B]"},
		{"end swallows one char", map[string]int32{"a": 1, "b": 1}, "X@property(a)<@property(b)B@end@end|Y", "X<B"},
		{"pieces", nil, "@piece(hdr)H@end\nA@insertpiece(hdr)B", "AHB"},
		{"insert unknown piece", nil, "[@insertpiece(nope)]", "[]"},
		{"counter", nil, "@counter(n)@counter(n)@value(n)", "012"},
		{"math is silent", nil, "@pset(a, 5)@padd(a, 2)@value(a)", "7"},
		{"three arg add", nil, "@add(x, 2, 3)@value(x)", "5"},
		{"min max", map[string]int32{"a": 4}, "@min(a, 2)@value(a) @max(b, a, 9)@value(b)", "2 9"},
		{"math drives property", nil, "@pset(k, 2)@property(k == 2)two@end", "two"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := newTestContext(tt.props)
			got, bad := NewParser(nil).Parse(ctx, tt.in)
			if bad {
				t.Fatalf("Parse(%q) reported a syntax error", tt.in)
			}
			if got != tt.want {
				t.Errorf("Parse(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestParseSyntaxErrors(t *testing.T) {
	tests := []struct {
		name string
		in   string
	}{
		{"double else", "@property(a)x@else y@else z@end"},
		{"else inside foreach", "@foreach(2)a@else b@end"},
		{"unterminated property", "@property(a)x"},
		{"unbalanced expression", "@property((a)x@end"},
		{"adjacent operands", "@property(a b)x@end"},
		{"adjacent operators", "@property(a && || b)x@end"},
		{"piece redefined", "@piece(x)a@end\n@piece(x)b@end\n"},
		{"division by zero", "@pdiv(a, 0)"},
		{"modulo by zero", "@mod(a, 4, 0)"},
		{"too many args", "@add(a, 1, 2, 3)"},
		{"counter arity", "@counter(a, b)"},
		{"bad char in args", "@insertpiece(a&b)"},
		{"comma expected", "@insertpiece(a b)"},
		{"negative foreach start", "@foreach(3, i, missing)x@end"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, bad := NewParser(nil).Parse(newTestContext(nil), tt.in); !bad {
				t.Errorf("Parse(%q) expected a syntax error", tt.in)
			}
		})
	}
}

func TestRelationalPrecedence(t *testing.T) {
	tests := []struct {
		a, b, c int32
		want    string
	}{
		{1, 0, 1, "T"}, // 1 && (0 < 1)
		{0, 0, 1, "F"}, // (0 && 0) < 1 would be true
		{1, 2, 1, "F"},
	}
	for _, tt := range tests {
		ctx := newTestContext(map[string]int32{"a": tt.a, "b": tt.b, "c": tt.c})
		got, bad := NewParser(nil).ParseProperties(ctx, "@property(a && b < c)T@else F@end")
		if bad {
			t.Fatalf("a=%d b=%d c=%d: syntax error", tt.a, tt.b, tt.c)
		}
		if got != tt.want {
			t.Errorf("a=%d b=%d c=%d: got %q, want %q", tt.a, tt.b, tt.c, got, tt.want)
		}
	}
}

func TestCollectPiecesStoresBodies(t *testing.T) {
	ctx := newTestContext(nil)
	out, bad := NewParser(nil).CollectPieces(ctx, "@piece(a)alpha@end\n@piece(b)@property(x)bx@end@end\nrest")
	if bad {
		t.Fatal("unexpected syntax error")
	}
	if out != "rest" {
		t.Errorf("output = %q, want %q", out, "rest")
	}
	if got := ctx.Pieces[idstring.New("a")]; got != "alpha" {
		t.Errorf("piece a = %q", got)
	}
	if got := ctx.Pieces[idstring.New("b")]; got != "@property(x)bx@end" {
		t.Errorf("piece b = %q", got)
	}
}

func TestUndefPieceRemovesInheritedPiece(t *testing.T) {
	ctx := newTestContext(nil)
	ctx.Pieces[idstring.New("p")] = "P"
	out, bad := NewParser(nil).Parse(ctx, "@undefpiece(p)[@insertpiece(p)]")
	if bad || out != "[]" {
		t.Errorf("Parse = %q, %v; want %q", out, bad, "[]")
	}
}

func TestLineOf(t *testing.T) {
	buf := "a\nb\nc"
	tests := []struct {
		at   int
		want int
	}{
		{0, 1}, {1, 1}, {2, 2}, {4, 3}, {100, 3}, {-1, 1},
	}
	for _, tt := range tests {
		if got := LineOf(buf, tt.at); got != tt.want {
			t.Errorf("LineOf(%d) = %d, want %d", tt.at, got, tt.want)
		}
	}
}

func TestNilPiecesMap(t *testing.T) {
	ctx := &Context{Props: newTestContext(nil).Props}
	out, bad := NewParser(nil).Parse(ctx, "@piece(p)x@end\n@insertpiece(p)")
	if bad || out != "x" {
		t.Errorf("Parse = %q, %v", out, bad)
	}
}

func BenchmarkParse(b *testing.B) {
	var sb strings.Builder
	for range 32 {
		sb.WriteString("@property(hlms_skeleton && hlms_bones_per_vertex >= 2)\n  skin();\n@else\n  rigid();\n@end\n")
		sb.WriteString("@foreach(hlms_uv_count, n)\n  uv@n = in_uv@n;\n@end\n")
	}
	src := sb.String()
	ctx := newTestContext(map[string]int32{"hlms_skeleton": 1, "hlms_bones_per_vertex": 4, "hlms_uv_count": 2})
	p := NewParser(nil)
	for b.Loop() {
		_, _ = p.Parse(ctx, src)
	}
}

func TestParsePieceFileCollectsOnly(t *testing.T) {
	ctx := newTestContext(map[string]int32{"a": 1})
	src := "@property(a)@piece(p)A@end\n@end\n@piece(q)[@insertpiece(p)]@end\n"
	if _, bad := NewParser(nil).ParsePieceFile(ctx, src); bad {
		t.Fatal("unexpected syntax error")
	}
	if got := ctx.Pieces[idstring.New("p")]; got != "A" {
		t.Errorf("piece p = %q, want %q", got, "A")
	}
	if got := ctx.Pieces[idstring.New("q")]; got != "[@insertpiece(p)]" {
		t.Errorf("piece q = %q; piece files must not expand insertions", got)
	}
}
