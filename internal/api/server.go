// Package api exposes the sparse matrix engine over HTTP: matrices are
// created from host triples, held server-side under opaque ids, and
// operated on by id.
package api

import (
	"errors"
	"fmt"
	"io"
	"net/http"

	gojson "github.com/goccy/go-json"
	"github.com/labstack/echo/v5"

	"github.com/mkarling/sparsemat/internal/device"
	"github.com/mkarling/sparsemat/internal/logger"
	"github.com/mkarling/sparsemat/internal/sparse"
)

type Server struct {
	store *MatrixStore
	dev   *device.Device
	log   logger.Logger
}

func NewServer(dev *device.Device, store *MatrixStore, log logger.Logger) *Server {
	if store == nil {
		store = NewMatrixStore()
	}
	if log == nil {
		log = logger.Default()
	}
	return &Server{store: store, dev: dev, log: log}
}

func (s *Server) Register(e *echo.Echo) {
	e.POST("/v1/matrices", s.handleCreateMatrix)
	e.GET("/v1/matrices", s.handleListMatrices)
	e.GET("/v1/matrices/:id", s.handleGetMatrix)
	e.DELETE("/v1/matrices/:id", s.handleDeleteMatrix)
	e.GET("/v1/matrices/:id/export", s.handleExportMatrix)
	e.GET("/v1/matrices/:id/norms", s.handleMatrixNorms)
	e.POST("/v1/matrices/:id/convert", s.handleConvertMatrix)
	e.POST("/v1/multiply", s.handleMultiply)
}

func (s *Server) handleCreateMatrix(c *echo.Context) error {
	req, err := decodeJSON[CreateMatrixRequest](c.Request().Body)
	if err != nil {
		return writeBadRequest(c, err.Error())
	}
	m, err := s.loadMatrix(&req)
	if err != nil {
		if errors.Is(err, ErrInvalidRequest) {
			return writeBadRequest(c, err.Error())
		}
		return writeError(c, http.StatusInternalServerError, "server_error", err.Error(), "", "")
	}
	id := s.store.Put(m)
	info, err := s.matrixInfo(id, m)
	if err != nil {
		return writeError(c, http.StatusInternalServerError, "server_error", err.Error(), "", "")
	}
	s.log.Info("matrix created", "id", id, "format", info.Format, "rows", info.Rows, "cols", info.Cols, "nz", info.Nz)
	return c.JSON(http.StatusOK, info)
}

func (s *Server) loadMatrix(req *CreateMatrixRequest) (*sparse.Matrix[float32], error) {
	f, err := sparse.ParseFormat(req.Format)
	if err != nil {
		return nil, newInvalidRequest(err.Error())
	}
	m := sparse.NewEmpty[float32](s.dev, f)
	switch f {
	case sparse.CSC:
		err = m.SetFromCSC(req.Ptr, req.Idx, req.Values, req.Rows, req.Cols)
	case sparse.CSR:
		err = m.SetFromCSR(req.Ptr, req.Idx, req.Values, req.Rows, req.Cols)
	case sparse.BlockCol:
		err = m.SetFromSBC(req.BlockIDs, req.Values, req.Rows, req.Cols)
	case sparse.BlockRow:
		err = m.SetFromSBR(req.BlockIDs, req.Values, req.Rows, req.Cols)
	default:
		err = fmt.Errorf("format %s not accepted", f)
	}
	if err != nil {
		m.Release()
		return nil, newInvalidRequest(err.Error())
	}
	return m, nil
}

func (s *Server) handleListMatrices(c *echo.Context) error {
	resp := ListMatricesResp{Object: "list", Data: []MatrixInfo{}}
	for _, id := range s.store.IDs() {
		ok, err := s.store.With(id, func(m *sparse.Matrix[float32]) error {
			info, err := s.matrixInfo(id, m)
			if err != nil {
				return err
			}
			resp.Data = append(resp.Data, info)
			return nil
		})
		if !ok {
			continue
		}
		if err != nil {
			return writeError(c, http.StatusInternalServerError, "server_error", err.Error(), "", "")
		}
	}
	return c.JSON(http.StatusOK, resp)
}

func (s *Server) handleGetMatrix(c *echo.Context) error {
	id := c.Param("id")
	var info MatrixInfo
	ok, err := s.store.With(id, func(m *sparse.Matrix[float32]) error {
		var err error
		info, err = s.matrixInfo(id, m)
		return err
	})
	if !ok {
		return writeNotFound(c, fmt.Sprintf("matrix %q not found", id))
	}
	if err != nil {
		return writeError(c, http.StatusInternalServerError, "server_error", err.Error(), "", "")
	}
	return c.JSON(http.StatusOK, info)
}

func (s *Server) handleDeleteMatrix(c *echo.Context) error {
	id := c.Param("id")
	if !s.store.Delete(id) {
		return writeNotFound(c, fmt.Sprintf("matrix %q not found", id))
	}
	return c.JSON(http.StatusOK, DeleteMatrixResp{ID: id, Object: "matrix.deleted", Deleted: true})
}

func (s *Server) handleExportMatrix(c *echo.Context) error {
	id := c.Param("id")
	var out MatrixExport
	ok, err := s.store.With(id, func(m *sparse.Matrix[float32]) error {
		var err error
		out, err = exportMatrix(id, m)
		return err
	})
	if !ok {
		return writeNotFound(c, fmt.Sprintf("matrix %q not found", id))
	}
	if err != nil {
		return writeError(c, http.StatusInternalServerError, "server_error", err.Error(), "", "")
	}
	return c.JSON(http.StatusOK, out)
}

func exportMatrix(id string, m *sparse.Matrix[float32]) (MatrixExport, error) {
	out := MatrixExport{
		ID:     id,
		Format: m.Format().String(),
		Rows:   m.Rows(),
		Cols:   m.Cols(),
	}
	switch m.Format() {
	case sparse.CSC:
		ptr, idx, vals, err := m.ToCSC()
		if err != nil {
			return out, err
		}
		out.Ptr, out.Idx, out.Values = ptr, idx, vals
	case sparse.CSR:
		ptr, idx, vals, err := m.ToCSR()
		if err != nil {
			return out, err
		}
		out.Ptr, out.Idx, out.Values = ptr, idx, vals
	default:
		ids, err := m.BlockIDToMajor()
		if err != nil {
			return out, err
		}
		vals, err := m.NzValues()
		if err != nil {
			return out, err
		}
		out.BlockIDs = append([]sparse.Index(nil), ids[:m.BlockSize()]...)
		out.Values = append([]float32(nil), vals...)
	}
	return out, nil
}

func (s *Server) handleMatrixNorms(c *echo.Context) error {
	id := c.Param("id")
	var out MatrixNorms
	ok, err := s.store.With(id, func(m *sparse.Matrix[float32]) error {
		out.ID = id
		var err error
		if out.Nz, err = m.NzCount(); err != nil {
			return err
		}
		if out.Sum, err = m.SumOfElements(); err != nil {
			return err
		}
		if out.SumAbs, err = m.SumOfAbsElements(); err != nil {
			return err
		}
		if out.Frobenius, err = m.FrobeniusNorm(); err != nil {
			return err
		}
		if out.NormInf, err = m.MatrixNormInf(); err != nil {
			return err
		}
		if out.Norm1, err = m.MatrixNorm1(); err != nil {
			return err
		}
		out.Norm0, err = m.MatrixNorm0()
		return err
	})
	if !ok {
		return writeNotFound(c, fmt.Sprintf("matrix %q not found", id))
	}
	if err != nil {
		return writeError(c, http.StatusInternalServerError, "server_error", err.Error(), "", "")
	}
	return c.JSON(http.StatusOK, out)
}

func (s *Server) handleConvertMatrix(c *echo.Context) error {
	id := c.Param("id")
	req, err := decodeJSON[ConvertRequest](c.Request().Body)
	if err != nil {
		return writeBadRequest(c, err.Error())
	}
	f, err := sparse.ParseFormat(req.Format)
	if err != nil {
		return writeBadRequest(c, err.Error())
	}
	var info MatrixInfo
	ok, err := s.store.With(id, func(m *sparse.Matrix[float32]) error {
		if err := m.ConvertToSparseFormat(f); err != nil {
			return err
		}
		var err error
		info, err = s.matrixInfo(id, m)
		return err
	})
	if !ok {
		return writeNotFound(c, fmt.Sprintf("matrix %q not found", id))
	}
	if err != nil {
		return writeError(c, http.StatusInternalServerError, "server_error", err.Error(), "", "")
	}
	s.log.Info("matrix converted", "id", id, "format", info.Format)
	return c.JSON(http.StatusOK, info)
}

func (s *Server) handleMultiply(c *echo.Context) error {
	req, err := decodeJSON[MultiplyRequest](c.Request().Body)
	if err != nil {
		return writeBadRequest(c, err.Error())
	}
	out := sparse.NewEmpty[float32](s.dev, sparse.CSR)
	ok, err := s.store.With2(req.A, req.B, func(a, b *sparse.Matrix[float32]) error {
		return out.AssignProductOf(a, req.TransA, b, req.TransB)
	})
	if !ok {
		return writeNotFound(c, "operand matrix not found")
	}
	if err != nil {
		out.Release()
		if errors.Is(err, sparse.ErrShapeMismatch) {
			return writeBadRequest(c, err.Error())
		}
		return writeError(c, http.StatusInternalServerError, "server_error", err.Error(), "", "")
	}
	id := s.store.Put(out)
	info, err := s.matrixInfo(id, out)
	if err != nil {
		return writeError(c, http.StatusInternalServerError, "server_error", err.Error(), "", "")
	}
	s.log.Info("matrix product", "id", id, "a", req.A, "b", req.B, "nz", info.Nz)
	return c.JSON(http.StatusOK, info)
}

func (s *Server) matrixInfo(id string, m *sparse.Matrix[float32]) (MatrixInfo, error) {
	nz, err := m.NzCount()
	if err != nil {
		return MatrixInfo{}, err
	}
	return MatrixInfo{
		ID:          id,
		Object:      "matrix",
		Format:      m.Format().String(),
		Rows:        m.Rows(),
		Cols:        m.Cols(),
		Nz:          nz,
		Capacity:    m.SizeAllocated(),
		BufferBytes: m.BufferSizeAllocated(),
		Device:      int(m.Device().ID()),
	}, nil
}

func writeBadRequest(c *echo.Context, msg string) error {
	return writeError(c, http.StatusBadRequest, "invalid_request_error", msg, "", "")
}

func writeNotFound(c *echo.Context, msg string) error {
	return writeError(c, http.StatusNotFound, "not_found_error", msg, "", "")
}

func writeError(c *echo.Context, status int, errType, msg, param, code string) error {
	return c.JSON(status, map[string]any{
		"error": ResponseError{
			Message: msg,
			Type:    errType,
			Code:    code,
			Param:   param,
		},
	})
}

func decodeJSON[T any](r io.Reader) (T, error) {
	var out T
	dec := gojson.NewDecoder(r)
	if err := dec.Decode(&out); err != nil {
		return out, err
	}
	return out, nil
}
