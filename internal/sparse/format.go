package sparse

import (
	"fmt"
	"strings"
)

// Format selects the packed storage layout of a sparse matrix.
type Format uint8

const (
	// CSC stores columns compressed: per-entry row ids in the major index,
	// a cols+1 monotonic pointer array in the secondary index.
	CSC Format = iota
	// CSR stores rows compressed: per-entry column ids in the major index,
	// a rows+1 monotonic pointer array in the secondary index.
	CSR
	// BlockCol stores dense column blocks for a subset of columns.
	BlockCol
	// BlockRow stores dense row blocks for a subset of rows.
	BlockRow
	// COO is the coordinate format. Reserved: only layout sizing is
	// defined for it, no operations accept it yet.
	COO
)

// RowMajor reports whether the compressed (or blocked) dimension is rows.
func (f Format) RowMajor() bool { return f == CSR || f == BlockRow }

// Compressed reports whether f is one of the pointer-array layouts.
func (f Format) Compressed() bool { return f == CSC || f == CSR }

// Block reports whether f is one of the block-sparse layouts.
func (f Format) Block() bool { return f == BlockCol || f == BlockRow }

func (f Format) String() string {
	switch f {
	case CSC:
		return "csc"
	case CSR:
		return "csr"
	case BlockCol:
		return "blockcol"
	case BlockRow:
		return "blockrow"
	case COO:
		return "coo"
	default:
		return fmt.Sprintf("format(%d)", uint8(f))
	}
}

// ParseFormat maps a format name to its Format value.
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "csc":
		return CSC, nil
	case "csr":
		return CSR, nil
	case "blockcol", "sbc":
		return BlockCol, nil
	case "blockrow", "sbr":
		return BlockRow, nil
	case "coo":
		return COO, nil
	default:
		return CSC, fmt.Errorf("unknown sparse format %q (expected csc, csr, blockcol, blockrow, or coo)", s)
	}
}
