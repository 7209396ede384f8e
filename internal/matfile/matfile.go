// Package matfile implements the container file holding serialized sparse
// matrices. A container is a fixed header, 64-byte-aligned payload
// sections, and a trailing name directory, so readers can map the file and
// hand out zero-copy payload slices.
package matfile

import (
	"encoding/binary"
	"errors"
)

const (
	fileMagic   = 0x46584d53 // "SMXF"
	fileVersion = 1

	headerSize = 32
	align      = 64
)

var (
	ErrCorruptFile        = errors.New("matfile: corrupt file")
	ErrInvalidMagic       = errors.New("matfile: invalid magic")
	ErrUnsupportedVersion = errors.New("matfile: unsupported version")
)

type header struct {
	Magic        uint32
	Version      uint32
	SectionCount uint64
	DirOffset    uint64
	FileSize     uint64
}

// Section is one named payload inside a container.
type Section struct {
	Name   string
	Offset uint64
	Size   uint64
}

func encodeHeader(h header) []byte {
	buf := make([]byte, headerSize)
	binary.LittleEndian.PutUint32(buf[0:], h.Magic)
	binary.LittleEndian.PutUint32(buf[4:], h.Version)
	binary.LittleEndian.PutUint64(buf[8:], h.SectionCount)
	binary.LittleEndian.PutUint64(buf[16:], h.DirOffset)
	binary.LittleEndian.PutUint64(buf[24:], h.FileSize)
	return buf
}

func decodeHeader(buf []byte) (header, bool) {
	if len(buf) < headerSize {
		return header{}, false
	}
	return header{
		Magic:        binary.LittleEndian.Uint32(buf[0:]),
		Version:      binary.LittleEndian.Uint32(buf[4:]),
		SectionCount: binary.LittleEndian.Uint64(buf[8:]),
		DirOffset:    binary.LittleEndian.Uint64(buf[16:]),
		FileSize:     binary.LittleEndian.Uint64(buf[24:]),
	}, true
}

// The directory entry form is nameLen (u16), name bytes, offset (u64),
// size (u64).

func encodeDirEntry(s Section) []byte {
	buf := make([]byte, 2+len(s.Name)+16)
	binary.LittleEndian.PutUint16(buf[0:], uint16(len(s.Name)))
	copy(buf[2:], s.Name)
	binary.LittleEndian.PutUint64(buf[2+len(s.Name):], s.Offset)
	binary.LittleEndian.PutUint64(buf[10+len(s.Name):], s.Size)
	return buf
}

func decodeDirEntry(buf []byte) (Section, int, bool) {
	if len(buf) < 2 {
		return Section{}, 0, false
	}
	nameLen := int(binary.LittleEndian.Uint16(buf[0:]))
	n := 2 + nameLen + 16
	if len(buf) < n {
		return Section{}, 0, false
	}
	return Section{
		Name:   string(buf[2 : 2+nameLen]),
		Offset: binary.LittleEndian.Uint64(buf[2+nameLen:]),
		Size:   binary.LittleEndian.Uint64(buf[10+nameLen:]),
	}, n, true
}

func padTo(off uint64) uint64 {
	if r := off % align; r != 0 {
		return off + align - r
	}
	return off
}
