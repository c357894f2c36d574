package sigstruct

import (
	"bytes"
	"encoding/binary"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tdxtools/tdxmodule/version"
)

// buildBlob assembles a minimal blob image: zero padding up to the sigstruct,
// then the type flags and CPUID table at their fixed offsets.
func buildBlob(typ uint32, cpuidEntries []uint32) []byte {
	size := Offset + FamilyModelTableOffset + len(cpuidEntries)*4
	blob := make([]byte, size)
	binary.LittleEndian.PutUint32(blob[Offset+TypeOffset:], typ)
	binary.LittleEndian.PutUint32(blob[Offset+FamilyModelCountOffset:], uint32(len(cpuidEntries)))
	for i, e := range cpuidEntries {
		binary.LittleEndian.PutUint32(blob[Offset+FamilyModelTableOffset+i*4:], e)
	}
	return blob
}

func TestParseReaderAt(t *testing.T) {
	tests := []struct {
		name     string
		blob     []byte
		wantType Type
		wantCPUs []version.CPUFamilyModel
		wantErr  bool
	}{
		{
			name:     "production module with two entries",
			blob:     buildBlob(0x00000001, []uint32{0x000806F8, 0x000C06F2}),
			wantType: Type(0x00000001),
			wantCPUs: []version.CPUFamilyModel{0x000806F0, 0x000C06F0},
		},
		{
			name:     "debug module",
			blob:     buildBlob(0x80000000, []uint32{0x000806F0}),
			wantType: Type(0x80000000),
			wantCPUs: []version.CPUFamilyModel{0x000806F0},
		},
		{
			name:     "empty CPUID table",
			blob:     buildBlob(0x00000001, nil),
			wantType: Type(0x00000001),
			wantCPUs: []version.CPUFamilyModel{},
		},
		{
			name:    "blob shorter than sigstruct",
			blob:    make([]byte, Offset),
			wantErr: true,
		},
		{
			name:    "truncated CPUID table",
			blob:    buildBlob(0x00000001, []uint32{0x000806F0, 0x000C06F0})[:Offset+FamilyModelTableOffset+4],
			wantErr: true,
		},
		{
			name: "absurd entry count",
			blob: func() []byte {
				b := buildBlob(0, nil)
				binary.LittleEndian.PutUint32(b[Offset+FamilyModelCountOffset:], 100000)
				return b
			}(),
			wantErr: true,
		},
		{
			name:    "empty file",
			blob:    nil,
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			hdr, err := ParseReaderAt(bytes.NewReader(tt.blob))
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantType, hdr.Type)
			assert.Equal(t, tt.wantCPUs, hdr.SupportedCPUs)
		})
	}
}

func TestParse(t *testing.T) {
	fs := afero.NewMemMapFs()
	blob := buildBlob(0x00000001, []uint32{0x000806F8})
	require.NoError(t, afero.WriteFile(fs, "/blobs/tdx_module_1.5.12.blob", blob, 0o644))

	hdr, err := Parse(fs, "/blobs/tdx_module_1.5.12.blob")
	require.NoError(t, err)
	assert.Equal(t, []version.CPUFamilyModel{0x000806F0}, hdr.SupportedCPUs)

	_, err = Parse(fs, "/blobs/missing.blob")
	require.Error(t, err)
}

func TestTypeDebug(t *testing.T) {
	assert.True(t, Type(0x80000000).Debug())
	assert.True(t, Type(0x80000001).Debug())
	assert.False(t, Type(0x00000001).Debug())
	assert.False(t, Type(0x7FFFFFFF).Debug())
}

func TestHeaderSupports(t *testing.T) {
	hdr := &Header{SupportedCPUs: []version.CPUFamilyModel{0x000806F0}}

	// Any stepping of a listed family-model matches.
	assert.True(t, hdr.Supports(0x000806F0))
	assert.True(t, hdr.Supports(0x000806F5))
	assert.False(t, hdr.Supports(0x000C06F0))

	empty := &Header{}
	assert.False(t, empty.Supports(0x000806F0))
}
