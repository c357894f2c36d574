package sigstruct

import (
	"encoding/binary"
	"fmt"
	"io"

	"github.com/spf13/afero"

	"github.com/tdxtools/tdxmodule/version"
)

// Constants for sigstruct parsing. Offsets are relative to the start of the
// blob file unless noted otherwise.
const (
	// Offset is the byte offset of the signature structure within the blob
	Offset = 0x1000

	// TypeOffset is the offset of the module type field within the sigstruct
	TypeOffset = 12

	// FamilyModelCountOffset is the offset of the CPUID table entry count
	// within the sigstruct
	FamilyModelCountOffset = 1024

	// FamilyModelTableOffset is the offset of the CPUID table entries within
	// the sigstruct
	FamilyModelTableOffset = 1028

	// MaxFamilyModelEntries bounds the CPUID table size; the sigstruct format
	// reserves one byte's worth of entries
	MaxFamilyModelEntries = 255

	// DebugTypeBit marks a debug build in the module type flags
	DebugTypeBit = 1 << 31
)

// Type holds the module type flags read from the sigstruct. Only bit 31
// (debug build) is interpreted by this tooling.
type Type uint32

// Debug reports whether the type flags mark the module as a debug build.
func (t Type) Debug() bool {
	return t&DebugTypeBit != 0
}

// Header contains the fields harvested from a module blob's sigstruct.
type Header struct {
	// SupportedCPUs is the set of CPU family-models the module supports,
	// stepping bits already masked
	SupportedCPUs []version.CPUFamilyModel

	// Type is the module type flags
	Type Type
}

// Supports reports whether the raw CPUID.1.EAX value matches any entry of
// the supported family-model table.
func (h *Header) Supports(raw uint32) bool {
	fm := version.NewCPUFamilyModel(raw)
	for _, s := range h.SupportedCPUs {
		if s == fm {
			return true
		}
	}
	return false
}

// Parse reads the sigstruct fields from the blob at the given path.
//
// Example:
//
//	hdr, err := sigstruct.Parse(afero.NewOsFs(), blobPath)
func Parse(fsys afero.Fs, path string) (*Header, error) {
	f, err := fsys.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open blob: %w", err)
	}
	defer func() { _ = f.Close() }()

	return ParseReaderAt(f)
}

// ParseReaderAt reads the sigstruct fields from any io.ReaderAt.
// This is useful for testing and reading from non-file sources.
func ParseReaderAt(r io.ReaderAt) (*Header, error) {
	typ, err := readUint32(r, Offset+TypeOffset)
	if err != nil {
		return nil, fmt.Errorf("failed to read module type: %w", err)
	}

	count, err := readUint32(r, Offset+FamilyModelCountOffset)
	if err != nil {
		return nil, fmt.Errorf("failed to read CPUID table size: %w", err)
	}
	if count > MaxFamilyModelEntries {
		return nil, fmt.Errorf("invalid CPUID table size %d: maximum is %d", count, MaxFamilyModelEntries)
	}

	supported := make([]version.CPUFamilyModel, 0, count)
	for i := uint32(0); i < count; i++ {
		entry, err := readUint32(r, Offset+FamilyModelTableOffset+int64(i)*4)
		if err != nil {
			return nil, fmt.Errorf("failed to read CPUID table entry %d: %w", i, err)
		}
		supported = append(supported, version.NewCPUFamilyModel(entry))
	}

	return &Header{
		SupportedCPUs: supported,
		Type:          Type(typ),
	}, nil
}

// readUint32 reads a little-endian uint32 at the given absolute offset.
func readUint32(r io.ReaderAt, off int64) (uint32, error) {
	var buf [4]byte
	n, err := r.ReadAt(buf[:], off)
	if n != len(buf) {
		if err == nil || err == io.EOF {
			err = fmt.Errorf("short read: got %d bytes at offset 0x%X, expected 4", n, off)
		}
		return 0, err
	}
	return binary.LittleEndian.Uint32(buf[:]), nil
}
