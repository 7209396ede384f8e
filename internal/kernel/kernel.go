// Package kernel holds the linear-algebra primitives the matrix engine
// dispatches to: dense GEMM, sparse×dense SPMM and sparse×sparse SPGEMM.
// The functions here are the contract boundary for vendor kernels; this
// build ships a reference CPU implementation behind the same signatures.
//
// Dense operands are flat row-major slices. Sparse operands are CSR
// triples (rowPtr, colIdx, values) with int32 indices. The functions do no
// device or stream management; callers run them on the owning stream.
package kernel

// Float is the element domain of all kernels.
type Float interface {
	~float32 | ~float64
}

// Index is the sparse index width used across the engine.
type Index = int32
