package api

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	gojson "github.com/goccy/go-json"
	"github.com/labstack/echo/v5"

	"github.com/mkarling/sparsemat/internal/device"
)

func newTestEcho() *echo.Echo {
	server := NewServer(device.Get(device.ID(60)), NewMatrixStore(), nil)
	e := echo.New()
	server.Register(e)
	return e
}

func doJSON(t *testing.T, e *echo.Echo, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

func decodeBody[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	if err := gojson.Unmarshal(rec.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode response: %v (body: %s)", err, rec.Body.String())
	}
	return out
}

const testMatrixBody = `{
	"format": "csc",
	"rows": 3,
	"cols": 3,
	"ptr": [0, 1, 2, 3],
	"idx": [0, 2, 0],
	"values": [1, 3, 2]
}`

func createTestMatrix(t *testing.T, e *echo.Echo) MatrixInfo {
	t.Helper()
	rec := doJSON(t, e, http.MethodPost, "/v1/matrices", testMatrixBody)
	if rec.Code != http.StatusOK {
		t.Fatalf("create: status %d, body %s", rec.Code, rec.Body.String())
	}
	return decodeBody[MatrixInfo](t, rec)
}

func TestCreateAndGetMatrix(t *testing.T) {
	e := newTestEcho()
	info := createTestMatrix(t, e)
	if info.Format != "csc" || info.Rows != 3 || info.Cols != 3 || info.Nz != 3 {
		t.Fatalf("create info = %+v", info)
	}
	if !strings.HasPrefix(info.ID, "mat_") {
		t.Errorf("id = %q, want mat_ prefix", info.ID)
	}

	rec := doJSON(t, e, http.MethodGet, "/v1/matrices/"+info.ID, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("get: status %d", rec.Code)
	}
	got := decodeBody[MatrixInfo](t, rec)
	if got.ID != info.ID || got.Nz != 3 {
		t.Errorf("get info = %+v", got)
	}
}

func TestCreateMatrixRejectsBadInput(t *testing.T) {
	e := newTestEcho()

	tests := []struct {
		name string
		body string
	}{
		{"unknown format", `{"format":"dense","rows":1,"cols":1,"values":[1]}`},
		{"non-monotonic pointers", `{"format":"csc","rows":3,"cols":3,"ptr":[0,2,1,3],"idx":[0,2,0],"values":[1,3,2]}`},
		{"malformed json", `{"format":`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := doJSON(t, e, http.MethodPost, "/v1/matrices", tt.body)
			if rec.Code != http.StatusBadRequest {
				t.Errorf("status %d, want 400 (body %s)", rec.Code, rec.Body.String())
			}
		})
	}
}

func TestGetMatrixNotFound(t *testing.T) {
	e := newTestEcho()
	rec := doJSON(t, e, http.MethodGet, "/v1/matrices/mat_missing", "")
	if rec.Code != http.StatusNotFound {
		t.Fatalf("status %d, want 404", rec.Code)
	}
}

func TestDeleteMatrix(t *testing.T) {
	e := newTestEcho()
	info := createTestMatrix(t, e)

	rec := doJSON(t, e, http.MethodDelete, "/v1/matrices/"+info.ID, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("delete: status %d", rec.Code)
	}
	resp := decodeBody[DeleteMatrixResp](t, rec)
	if !resp.Deleted || resp.ID != info.ID {
		t.Errorf("delete resp = %+v", resp)
	}

	rec = doJSON(t, e, http.MethodGet, "/v1/matrices/"+info.ID, "")
	if rec.Code != http.StatusNotFound {
		t.Errorf("get after delete: status %d, want 404", rec.Code)
	}
}

func TestConvertAndExport(t *testing.T) {
	e := newTestEcho()
	info := createTestMatrix(t, e)

	rec := doJSON(t, e, http.MethodPost, "/v1/matrices/"+info.ID+"/convert", `{"format":"csr"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("convert: status %d, body %s", rec.Code, rec.Body.String())
	}
	conv := decodeBody[MatrixInfo](t, rec)
	if conv.Format != "csr" || conv.Nz != 3 {
		t.Errorf("convert info = %+v", conv)
	}

	rec = doJSON(t, e, http.MethodGet, "/v1/matrices/"+info.ID+"/export", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("export: status %d", rec.Code)
	}
	out := decodeBody[MatrixExport](t, rec)
	if out.Format != "csr" {
		t.Errorf("export format = %s", out.Format)
	}
	wantPtr := []int32{0, 2, 2, 3}
	for i, p := range wantPtr {
		if out.Ptr[i] != p {
			t.Errorf("ptr[%d] = %d, want %d", i, out.Ptr[i], p)
		}
	}
}

func TestMatrixNorms(t *testing.T) {
	e := newTestEcho()
	info := createTestMatrix(t, e)

	rec := doJSON(t, e, http.MethodGet, "/v1/matrices/"+info.ID+"/norms", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("norms: status %d", rec.Code)
	}
	norms := decodeBody[MatrixNorms](t, rec)
	if norms.Sum != 6 || norms.Norm1 != 6 || norms.NormInf != 3 || norms.Norm0 != 3 {
		t.Errorf("norms = %+v", norms)
	}
}

func TestMultiply(t *testing.T) {
	e := newTestEcho()
	a := createTestMatrix(t, e)
	b := createTestMatrix(t, e)

	body := `{"a":"` + a.ID + `","b":"` + b.ID + `"}`
	rec := doJSON(t, e, http.MethodPost, "/v1/multiply", body)
	if rec.Code != http.StatusOK {
		t.Fatalf("multiply: status %d, body %s", rec.Code, rec.Body.String())
	}
	prod := decodeBody[MatrixInfo](t, rec)
	if prod.Rows != 3 || prod.Cols != 3 || prod.Format != "csr" {
		t.Errorf("product info = %+v", prod)
	}

	// S*S = [[1,6,2],[0,0,0],[0,0,0]] stores the three row-0 entries.
	if prod.Nz != 3 {
		t.Errorf("product nz = %d, want 3", prod.Nz)
	}

	rec = doJSON(t, e, http.MethodPost, "/v1/multiply", `{"a":"`+a.ID+`","b":"mat_missing"}`)
	if rec.Code != http.StatusNotFound {
		t.Errorf("missing operand: status %d, want 404", rec.Code)
	}
}
