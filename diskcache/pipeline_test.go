package diskcache

import (
	"bytes"
	"encoding/binary"
	"errors"
	"testing"

	"github.com/google/uuid"
)

var testUUID = uuid.MustParse("6ba7b810-9dad-11d1-80b4-00c04fd430c8")

func TestPipelineHeaderSize(t *testing.T) {
	if got := binary.Size(PipelinePrefixHeader{}); got != PipelineHeaderSize {
		t.Errorf("binary.Size = %d, want %d", got, PipelineHeaderSize)
	}
}

func TestPipelineCacheRoundTrip(t *testing.T) {
	hdr := NewPipelineHeader(0x10de, 0x2684, 53518, testUUID)
	data := []byte("opaque driver blob")

	var buf bytes.Buffer
	if err := WritePipelineCache(&buf, hdr, data); err != nil {
		t.Fatal(err)
	}
	if buf.Len() != PipelineHeaderSize+len(data) {
		t.Fatalf("file size = %d, want %d", buf.Len(), PipelineHeaderSize+len(data))
	}
	raw := buf.Bytes()
	if magic := binary.LittleEndian.Uint32(raw); magic != PipelineMagic {
		t.Errorf("magic = %#x", magic)
	}
	if size := binary.LittleEndian.Uint32(raw[4:]); size != uint32(len(data)) {
		t.Errorf("data size = %d", size)
	}
	if !bytes.Equal(raw[32:48], testUUID[:]) {
		t.Errorf("uuid bytes = %x", raw[32:48])
	}

	got, err := ReadPipelineCache(bytes.NewReader(raw), hdr)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(got, data) {
		t.Errorf("data = %q, want %q", got, data)
	}
}

func TestReadPipelineCacheRejects(t *testing.T) {
	hdr := NewPipelineHeader(0x1002, 0x73bf, 1, testUUID)
	var buf bytes.Buffer
	if err := WritePipelineCache(&buf, hdr, []byte("0123456789")); err != nil {
		t.Fatal(err)
	}
	good := buf.Bytes()

	otherDriver := hdr
	otherDriver.DriverVersion++
	otherUUID := hdr
	otherUUID.UUID = uuid.UUID{}

	flip := func(i int) []byte {
		b := bytes.Clone(good)
		b[i] ^= 0xFF
		return b
	}

	tests := []struct {
		name   string
		data   []byte
		expect PipelinePrefixHeader
		want   error
	}{
		{"empty", nil, hdr, ErrCorrupt},
		{"bad magic", flip(0), hdr, ErrBadMagic},
		{"other driver", good, otherDriver, ErrIncompatible},
		{"other uuid", good, otherUUID, ErrIncompatible},
		{"truncated", good[:len(good)-1], hdr, ErrCorrupt},
		{"data flipped", flip(len(good) - 1), hdr, ErrCorrupt},
		{"hash flipped", flip(8), hdr, ErrCorrupt},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ReadPipelineCache(bytes.NewReader(tt.data), tt.expect)
			if !errors.Is(err, tt.want) {
				t.Errorf("err = %v, want %v", err, tt.want)
			}
		})
	}
}
