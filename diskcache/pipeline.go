// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package diskcache

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"hash/fnv"
	"io"
	"strconv"

	"fortio.org/safecast"
	"github.com/google/uuid"
)

// PipelineMagic starts every pipeline cache file.
const PipelineMagic uint32 = 0x43504B56

// PipelineHeaderSize is the encoded size of PipelinePrefixHeader.
const PipelineHeaderSize = 48

// maxPipelineData bounds the blob size accepted from a header.
const maxPipelineData = 1 << 30

// Pipeline cache errors. ErrIncompatible means the blob is intact but was
// produced by another device or driver.
var (
	ErrBadMagic     = errors.New("diskcache: not a pipeline cache")
	ErrIncompatible = errors.New("diskcache: pipeline cache from another device or driver")
	ErrCorrupt      = errors.New("diskcache: corrupt cache")
)

// PipelinePrefixHeader precedes the driver's pipeline cache data. The
// layout is little-endian with no padding.
type PipelinePrefixHeader struct {
	Magic    uint32
	DataSize uint32
	// DataHash is FNV-1a 64 over the header, with DataHash zero, followed
	// by the data.
	DataHash uint64

	VendorID      uint32
	DeviceID      uint32
	DriverVersion uint32
	DriverABI     uint32 // pointer size of the process that wrote the data

	UUID uuid.UUID // the driver's pipeline cache UUID
}

// NewPipelineHeader returns a header for the given device, with the magic
// and the ABI of the running process filled in.
func NewPipelineHeader(vendorID, deviceID, driverVersion uint32, cacheUUID uuid.UUID) PipelinePrefixHeader {
	return PipelinePrefixHeader{
		Magic:         PipelineMagic,
		VendorID:      vendorID,
		DeviceID:      deviceID,
		DriverVersion: driverVersion,
		DriverABI:     strconv.IntSize / 8,
		UUID:          cacheUUID,
	}
}

// compatible reports whether h and other describe the same device and
// driver.
func (h *PipelinePrefixHeader) compatible(other *PipelinePrefixHeader) bool {
	return h.VendorID == other.VendorID &&
		h.DeviceID == other.DeviceID &&
		h.DriverVersion == other.DriverVersion &&
		h.DriverABI == other.DriverABI &&
		h.UUID == other.UUID
}

func pipelineHash(hdr PipelinePrefixHeader, data []byte) uint64 {
	hdr.DataHash = 0
	h := fnv.New64a()
	_ = binary.Write(h, binary.LittleEndian, &hdr)
	_, _ = h.Write(data)
	return h.Sum64()
}

// Verify reports whether data matches the size and hash in h.
func (h *PipelinePrefixHeader) Verify(data []byte) bool {
	return int64(h.DataSize) == int64(len(data)) && pipelineHash(*h, data) == h.DataHash
}

// WritePipelineCache writes hdr followed by data. DataSize and DataHash
// are computed; the other fields are written as given.
func WritePipelineCache(w io.Writer, hdr PipelinePrefixHeader, data []byte) error {
	size, err := safecast.Conv[uint32](len(data))
	if err != nil {
		return fmt.Errorf("diskcache: pipeline data: %w", err)
	}
	hdr.DataSize = size
	hdr.DataHash = pipelineHash(hdr, data)

	var buf bytes.Buffer
	buf.Grow(PipelineHeaderSize + len(data))
	if err := binary.Write(&buf, binary.LittleEndian, &hdr); err != nil {
		return err
	}
	buf.Write(data)
	_, err = w.Write(buf.Bytes())
	return err
}

// ReadPipelineHeader reads and returns the header of a pipeline cache
// file without checking it against a device.
func ReadPipelineHeader(r io.Reader) (PipelinePrefixHeader, error) {
	var hdr PipelinePrefixHeader
	if err := binary.Read(r, binary.LittleEndian, &hdr); err != nil {
		return hdr, fmt.Errorf("%w: header: %w", ErrCorrupt, err)
	}
	if hdr.Magic != PipelineMagic {
		return hdr, ErrBadMagic
	}
	return hdr, nil
}

// ReadPipelineCache reads a file written by WritePipelineCache and
// returns its data if the header matches expect's device and driver
// fields. expect's Magic, DataSize and DataHash are ignored.
func ReadPipelineCache(r io.Reader, expect PipelinePrefixHeader) ([]byte, error) {
	hdr, err := ReadPipelineHeader(r)
	if err != nil {
		return nil, err
	}
	if !hdr.compatible(&expect) {
		return nil, ErrIncompatible
	}
	if hdr.DataSize > maxPipelineData {
		return nil, fmt.Errorf("%w: data size %d", ErrCorrupt, hdr.DataSize)
	}
	data := make([]byte, hdr.DataSize)
	if _, err := io.ReadFull(r, data); err != nil {
		return nil, fmt.Errorf("%w: data: %w", ErrCorrupt, err)
	}
	if !hdr.Verify(data) {
		return nil, fmt.Errorf("%w: hash mismatch", ErrCorrupt)
	}
	return data, nil
}
