package sparse

import (
	"encoding/binary"
	"fmt"
	"io"
)

// Stream serialization. The on-wire form is a fixed header followed by the
// live extents of the three regions in layout order (values, major index,
// secondary index), all little-endian. Compressed pointer arrays are
// written normalized to start at zero, so serializing a column-slice view
// produces a self-contained matrix.

const (
	streamMagic   = 0x584d5053 // "SPMX"
	streamVersion = 1
)

type streamHeader struct {
	Magic      uint32
	Version    uint32
	Format     uint8
	ElemBytes  uint8
	IndexBytes uint8
	_          uint8
	Rows       int64
	Cols       int64
	Nz         int64
	BlockSize  int64
}

const streamHeaderBytes = 4 + 4 + 4 + 4*8

// WriteTo serializes the matrix. Host-visible read: forces a device barrier.
func (m *Matrix[T]) WriteTo(w io.Writer) (int64, error) {
	if err := m.checkValid("WriteTo"); err != nil {
		return 0, err
	}
	nz, err := m.NzCount()
	if err != nil {
		return 0, err
	}
	m.dev.Stream().Synchronize()

	h := streamHeader{
		Magic:      streamMagic,
		Version:    streamVersion,
		Format:     uint8(m.format),
		ElemBytes:  uint8(m.elemBytes()),
		IndexBytes: indexBytes,
		Rows:       int64(m.rows),
		Cols:       int64(m.cols),
		Nz:         int64(nz),
		BlockSize:  int64(m.blockSize),
	}
	if err := binary.Write(w, binary.LittleEndian, h); err != nil {
		return 0, err
	}
	written := int64(streamHeaderBytes)

	var vals []T
	var major, sec []Index
	switch {
	case m.format.Compressed():
		start := m.dataStart()
		vals = m.values()[start : start+nz]
		major = m.majorIndex()[start : start+nz]
		slots := SecondaryIndexCount(m.rows, m.cols, 0, m.format)
		raw := m.secondaryIndex()[:slots]
		sec = make([]Index, slots)
		for i, p := range raw {
			sec[i] = p - raw[0]
		}
	case m.format.Block():
		vals = m.values()[:nz]
		major = m.majorIndex()
		sec = m.secondaryIndex()[:m.blockSize]
	default:
		return written, unsupported("WriteTo", m.format)
	}
	for _, part := range []any{vals, major, sec} {
		if err := binary.Write(w, binary.LittleEndian, part); err != nil {
			return written, err
		}
	}
	written += int64(len(vals)*m.elemBytes() + (len(major)+len(sec))*indexBytes)
	return written, nil
}

// ReadFrom replaces the matrix contents with a serialized matrix.
func (m *Matrix[T]) ReadFrom(r io.Reader) (int64, error) {
	if err := m.verifyResizable("ReadFrom"); err != nil {
		return 0, err
	}
	var h streamHeader
	if err := binary.Read(r, binary.LittleEndian, &h); err != nil {
		return 0, err
	}
	read := int64(streamHeaderBytes)
	if h.Magic != streamMagic {
		return read, fmt.Errorf("ReadFrom: bad magic %#x", h.Magic)
	}
	if h.Version != streamVersion {
		return read, fmt.Errorf("ReadFrom: unsupported version %d", h.Version)
	}
	if int(h.ElemBytes) != m.elemBytes() {
		return read, fmt.Errorf("ReadFrom: element width %d, want %d", h.ElemBytes, m.elemBytes())
	}
	if h.IndexBytes != indexBytes {
		return read, fmt.Errorf("ReadFrom: index width %d, want %d", h.IndexBytes, indexBytes)
	}
	f := Format(h.Format)
	rows, cols, nz := int(h.Rows), int(h.Cols), int(h.Nz)
	if rows < 0 || cols < 0 || nz < 0 {
		return read, fmt.Errorf("ReadFrom: invalid shape %dx%d (nz %d)", rows, cols, nz)
	}

	switch {
	case f.Compressed():
		slots := SecondaryIndexCount(rows, cols, 0, f)
		vals := make([]T, nz)
		major := make([]Index, nz)
		sec := make([]Index, slots)
		for _, part := range []any{vals, major, sec} {
			if err := binary.Read(r, binary.LittleEndian, part); err != nil {
				return read, err
			}
		}
		read += int64(nz*m.elemBytes() + (nz+slots)*indexBytes)
		if f.RowMajor() {
			return read, m.SetFromCSR(sec, major, vals, rows, cols)
		}
		return read, m.SetFromCSC(sec, major, vals, rows, cols)
	case f.Block():
		blockSize := int(h.BlockSize)
		slots := cols
		if f == BlockRow {
			slots = rows
		}
		if blockSize < 0 || blockSize > slots {
			return read, fmt.Errorf("ReadFrom: %d blocks for %d slots", blockSize, slots)
		}
		vals := make([]T, nz)
		major := make([]Index, slots)
		sec := make([]Index, blockSize)
		for _, part := range []any{vals, major, sec} {
			if err := binary.Read(r, binary.LittleEndian, part); err != nil {
				return read, err
			}
		}
		read += int64(nz*m.elemBytes() + (slots+blockSize)*indexBytes)
		return read, m.setBlocks(f, sec, vals, rows, cols)
	default:
		return read, unsupported("ReadFrom", f)
	}
}
