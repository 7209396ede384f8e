package api

import "github.com/mkarling/sparsemat/internal/sparse"

// CreateMatrixRequest loads a matrix from host arrays. Compressed formats
// take the (ptr, idx, values) triple; block formats take block_ids plus one
// dense block per id in values.
type CreateMatrixRequest struct {
	Format   string         `json:"format"`
	Rows     int            `json:"rows"`
	Cols     int            `json:"cols"`
	Ptr      []sparse.Index `json:"ptr,omitempty"`
	Idx      []sparse.Index `json:"idx,omitempty"`
	BlockIDs []sparse.Index `json:"block_ids,omitempty"`
	Values   []float32      `json:"values"`
}

// MatrixInfo is the public view of a stored matrix.
type MatrixInfo struct {
	ID          string `json:"id"`
	Object      string `json:"object"`
	Format      string `json:"format"`
	Rows        int    `json:"rows"`
	Cols        int    `json:"cols"`
	Nz          int    `json:"nz"`
	Capacity    int    `json:"capacity"`
	BufferBytes int    `json:"buffer_bytes"`
	Device      int    `json:"device"`
}

// MatrixExport is a self-contained host copy of a matrix.
type MatrixExport struct {
	ID       string         `json:"id"`
	Format   string         `json:"format"`
	Rows     int            `json:"rows"`
	Cols     int            `json:"cols"`
	Ptr      []sparse.Index `json:"ptr,omitempty"`
	Idx      []sparse.Index `json:"idx,omitempty"`
	BlockIDs []sparse.Index `json:"block_ids,omitempty"`
	Values   []float32      `json:"values"`
}

type ConvertRequest struct {
	Format string `json:"format"`
}

type MultiplyRequest struct {
	A      string `json:"a"`
	B      string `json:"b"`
	TransA bool   `json:"trans_a"`
	TransB bool   `json:"trans_b"`
}

// MatrixNorms reports the reduction family over a matrix's stored values.
type MatrixNorms struct {
	ID        string  `json:"id"`
	Nz        int     `json:"nz"`
	Sum       float32 `json:"sum"`
	SumAbs    float32 `json:"sum_abs"`
	Frobenius float32 `json:"frobenius"`
	NormInf   float32 `json:"norm_inf"`
	Norm1     float32 `json:"norm_1"`
	Norm0     float32 `json:"norm_0"`
}

type DeleteMatrixResp struct {
	ID      string `json:"id"`
	Object  string `json:"object"`
	Deleted bool   `json:"deleted"`
}

type ListMatricesResp struct {
	Object string       `json:"object"`
	Data   []MatrixInfo `json:"data"`
}

type ResponseError struct {
	Message string `json:"message"`
	Type    string `json:"type"`
	Param   string `json:"param,omitempty"`
	Code    string `json:"code,omitempty"`
}
