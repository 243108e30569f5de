// Copyright 2026 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package elffile

// ImageHeader is the fixed-size header at offset 0 of a 64-bit ELF image.
// The layout mirrors the on-disk encoding so it can be read directly with
// encoding/binary.
type ImageHeader struct {
	Magic             [4]byte
	Class             uint8 // bit format; 2 = 64-bit
	Data              uint8 // endianness; 1 = little-endian
	Version           uint8
	ABI               uint8
	ABIVersion        uint8
	_                 [7]byte
	Type              uint16 // file type; distinguishes PIE from fixed-load
	Machine           uint16 // instruction set
	Version2          uint32
	Entry             uint64 // entry-point virtual address
	ProgramOff        uint64
	SectionOff        uint64 // section table file offset
	Flags             uint32
	HeaderSize        uint16
	ProgramEntrySize  uint16
	ProgramEntryCount uint16
	SectionEntrySize  uint16
	SectionEntryCount uint16
	SectionNameIndex  uint16
}

// File types.
const (
	TypeNone   = 0
	TypeRel    = 1
	TypeExec   = 2 // fixed-load executable
	TypeShared = 3 // shared object or position-independent executable
	TypeCore   = 4
)

var elfMagic = [4]byte{0x7f, 'E', 'L', 'F'}

// Valid reports whether the header carries the ELF magic bytes.
func (h *ImageHeader) Valid() bool {
	return h.Magic == elfMagic
}
