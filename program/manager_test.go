package program

import (
	"bytes"
	"errors"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/gogpu/hlms"
)

func TestMicrocodeHashDependsOnRenderSystem(t *testing.T) {
	a := MicrocodeHash("void main(){}", "gl")
	if a != MicrocodeHash("void main(){}", "gl") {
		t.Fatal("MicrocodeHash is not deterministic")
	}
	if a == MicrocodeHash("void main(){}", "vk") {
		t.Error("render system name does not change the key")
	}
	if a == MicrocodeHash("void main(){ }", "gl") {
		t.Error("source does not change the key")
	}
}

func TestCreateProgramReusesMicrocode(t *testing.T) {
	var calls atomic.Int32
	c := CompilerFunc(func(r *Request) ([]byte, error) {
		calls.Add(1)
		return []byte("bin:" + r.Source), nil
	})
	m := NewManager("gl", WithCompiler(c))

	p1, err := m.CreateProgram("100000000VertexShader_vs", "glsl", hlms.VertexShader, "src", hlms.ProgramOptions{})
	if err != nil {
		t.Fatal(err)
	}
	p2, err := m.CreateProgram("100000001VertexShader_vs", "glsl", hlms.VertexShader, "src", hlms.ProgramOptions{})
	if err != nil {
		t.Fatal(err)
	}
	if calls.Load() != 1 {
		t.Errorf("compiler called %d times, want 1", calls.Load())
	}
	if string(p2.Microcode()) != "bin:src" {
		t.Errorf("Microcode = %q", p2.Microcode())
	}
	if p1.Name() == p2.Name() {
		t.Error("programs should keep their own names")
	}
	s := m.Stats()
	if s.Compiled != 1 || s.Reused != 1 {
		t.Errorf("Stats = %+v, want 1 compiled 1 reused", s)
	}
	if !m.Dirty() {
		t.Error("new microcode should mark the cache dirty")
	}
}

func TestCreateProgramConcurrentCompilesOnce(t *testing.T) {
	var calls atomic.Int32
	c := CompilerFunc(func(r *Request) ([]byte, error) {
		calls.Add(1)
		return []byte(r.Source), nil
	})
	m := NewManager("gl", WithCompiler(c))

	var wg sync.WaitGroup
	for range 16 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := m.CreateProgram("p", "glsl", hlms.PixelShader, "same", hlms.ProgramOptions{}); err != nil {
				t.Error(err)
			}
		}()
	}
	wg.Wait()
	if calls.Load() != 1 {
		t.Errorf("compiler called %d times, want 1", calls.Load())
	}
}

func TestCreateProgramWithoutCache(t *testing.T) {
	m := NewManager("gl", WithMicrocodeCache(false))
	for range 2 {
		if _, err := m.CreateProgram("p", "glsl", hlms.PixelShader, "x", hlms.ProgramOptions{}); err != nil {
			t.Fatal(err)
		}
	}
	if m.NumMicrocode() != 0 || m.Dirty() {
		t.Error("disabled cache stored microcode")
	}
	if s := m.Stats(); s.Compiled != 2 {
		t.Errorf("Compiled = %d, want 2", s.Compiled)
	}
}

func TestCreateProgramCompileError(t *testing.T) {
	bad := errors.New("syntax")
	m := NewManager("gl", WithCompiler(CompilerFunc(func(*Request) ([]byte, error) { return nil, bad })))
	_, err := m.CreateProgram("p", "glsl", hlms.PixelShader, "x", hlms.ProgramOptions{})
	if !errors.Is(err, ErrCompile) || !errors.Is(err, bad) {
		t.Errorf("err = %v, want ErrCompile wrapping the compiler error", err)
	}
	if m.NumMicrocode() != 0 {
		t.Error("failed compile was cached")
	}
}

func TestMicrocodeCacheEditing(t *testing.T) {
	m := NewManager("gl")
	k := MicrocodeHash("a", "gl")
	if m.IsMicrocodeAvailable(k) {
		t.Fatal("empty cache reports microcode")
	}
	m.AddMicrocode(k, []byte{1, 2})
	if code, ok := m.Microcode(k); !ok || !bytes.Equal(code, []byte{1, 2}) {
		t.Errorf("Microcode = %v, %v", code, ok)
	}
	m.RemoveMicrocode(k)
	if m.IsMicrocodeAvailable(k) {
		t.Error("RemoveMicrocode kept the entry")
	}
	m.AddMicrocode(k, nil)
	m.ClearMicrocode()
	if m.NumMicrocode() != 0 {
		t.Error("ClearMicrocode kept entries")
	}
}

func TestSaveLoadMicrocodeCache(t *testing.T) {
	src := NewManager("gl")
	keys := []string{"a", "b", "c"}
	for i, s := range keys {
		src.AddMicrocode(MicrocodeHash(s, "gl"), bytes.Repeat([]byte{byte(i)}, i+1))
	}

	var buf bytes.Buffer
	wrote, err := src.SaveMicrocodeCache(&buf)
	if err != nil || !wrote {
		t.Fatalf("SaveMicrocodeCache = %v, %v", wrote, err)
	}
	if src.Dirty() {
		t.Error("save should clear the dirty flag")
	}
	// 4 byte count + 3 × (16 + 4) + 1+2+3 bytes of code.
	if want := 4 + 3*20 + 6; buf.Len() != want {
		t.Errorf("file is %d bytes, want %d", buf.Len(), want)
	}
	if buf.Bytes()[0] != 3 {
		t.Errorf("count byte = %d, want 3", buf.Bytes()[0])
	}

	again, err := src.SaveMicrocodeCache(&bytes.Buffer{})
	if err != nil || again {
		t.Errorf("clean cache saved again: %v, %v", again, err)
	}

	dst := NewManager("gl")
	dst.AddMicrocode(MicrocodeHash("stale", "gl"), []byte{9})
	if err := dst.LoadMicrocodeCache(bytes.NewReader(buf.Bytes())); err != nil {
		t.Fatal(err)
	}
	if dst.NumMicrocode() != 3 || dst.IsMicrocodeAvailable(MicrocodeHash("stale", "gl")) {
		t.Errorf("load did not replace contents: %d entries", dst.NumMicrocode())
	}
	code, _ := dst.Microcode(MicrocodeHash("c", "gl"))
	if !bytes.Equal(code, []byte{2, 2, 2}) {
		t.Errorf("c = %v", code)
	}
	if dst.Dirty() {
		t.Error("load should leave the cache clean")
	}
}

func TestLoadMicrocodeCacheCorrupt(t *testing.T) {
	tests := []struct {
		name string
		data []byte
	}{
		{"empty", nil},
		{"short count", []byte{1, 0}},
		{"missing entry", []byte{1, 0, 0, 0}},
		{"truncated code", append(append([]byte{1, 0, 0, 0}, make([]byte, 16)...), 8, 0, 0, 0, 1)},
		{"oversized", append(append([]byte{1, 0, 0, 0}, make([]byte, 16)...), 0xff, 0xff, 0xff, 0xff)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := NewManager("gl")
			err := m.LoadMicrocodeCache(bytes.NewReader(tt.data))
			if !errors.Is(err, ErrCorruptCache) {
				t.Errorf("err = %v, want ErrCorruptCache", err)
			}
			if m.NumMicrocode() != 0 {
				t.Error("partial load left entries")
			}
		})
	}
}

func TestCacheLimitEvicts(t *testing.T) {
	m := NewManager("gl", WithCacheLimit(2))
	for _, s := range []string{"a", "b", "c"} {
		if _, err := m.CreateProgram(s, "glsl", hlms.VertexShader, s, hlms.ProgramOptions{}); err != nil {
			t.Fatal(err)
		}
	}
	if m.NumMicrocode() != 2 {
		t.Errorf("NumMicrocode = %d, want 2", m.NumMicrocode())
	}
	if m.IsMicrocodeAvailable(MicrocodeHash("a", "gl")) {
		t.Error("oldest entry survived")
	}
}

func TestProgramBindSamplers(t *testing.T) {
	m := NewManager("gl")
	p, err := m.CreateProgram("p", "glsl", hlms.PixelShader, "x", hlms.ProgramOptions{})
	if err != nil {
		t.Fatal(err)
	}
	b, ok := p.(hlms.SamplerBinder)
	if !ok {
		t.Fatal("Program does not implement SamplerBinder")
	}
	units := []int32{2, 3}
	b.BindSamplers("textureMaps", units)
	units[0] = 9
	if got := p.(*Program).Samplers("textureMaps"); len(got) != 2 || got[0] != 2 {
		t.Errorf("Samplers = %v, want [2 3]", got)
	}
}

func BenchmarkCreateProgramCached(b *testing.B) {
	m := NewManager("gl")
	for b.Loop() {
		_, _ = m.CreateProgram("p", "glsl", hlms.VertexShader, "void main() {}", hlms.ProgramOptions{})
	}
}
