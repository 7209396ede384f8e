package sparse

import (
	"errors"
	"slices"
	"testing"

	"github.com/mkarling/sparsemat/internal/device"
)

// The 3x3 matrix used throughout:
//
//	1 0 2
//	0 0 0
//	0 3 0
var (
	testColPtr = []Index{0, 1, 2, 3}
	testRowIdx = []Index{0, 2, 0}
	testVals   = []float32{1, 3, 2}
)

func testDev(t *testing.T) *device.Device {
	t.Helper()
	return device.Get(device.ID(40))
}

func newTestCSC(t *testing.T, dev *device.Device) *Matrix[float32] {
	t.Helper()
	m := NewEmpty[float32](dev, CSC)
	if err := m.SetFromCSC(testColPtr, testRowIdx, testVals, 3, 3); err != nil {
		t.Fatalf("SetFromCSC: %v", err)
	}
	return m
}

func TestSetFromCSCRoundTrip(t *testing.T) {
	m := newTestCSC(t, testDev(t))
	defer m.Release()

	ptr, idx, vals, err := m.ToCSC()
	if err != nil {
		t.Fatalf("ToCSC: %v", err)
	}
	if !slices.Equal(ptr, testColPtr) || !slices.Equal(idx, testRowIdx) || !slices.Equal(vals, testVals) {
		t.Errorf("round trip: ptr=%v idx=%v vals=%v", ptr, idx, vals)
	}
	if err := m.IsValid(); err != nil {
		t.Errorf("IsValid: %v", err)
	}
}

func TestSetFromCSCRejectsBadInput(t *testing.T) {
	dev := testDev(t)
	m := NewEmpty[float32](dev, CSC)
	defer m.Release()

	tests := []struct {
		name string
		ptr  []Index
		idx  []Index
		vals []float32
	}{
		{"short pointer array", []Index{0, 1}, testRowIdx, testVals},
		{"non-monotonic pointers", []Index{0, 2, 1, 3}, testRowIdx, testVals},
		{"nonzero start", []Index{1, 1, 2, 3}, testRowIdx, testVals},
		{"row out of range", testColPtr, []Index{0, 5, 0}, testVals},
		{"value count mismatch", testColPtr, testRowIdx, []float32{1, 3}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := m.SetFromCSC(tt.ptr, tt.idx, tt.vals, 3, 3); err == nil {
				t.Error("want error, got nil")
			}
		})
	}
}

func TestNzCountCache(t *testing.T) {
	m := newTestCSC(t, testDev(t))
	defer m.Release()

	if !m.HasCachedNzCount() {
		t.Fatal("host import should leave the nz count cached")
	}
	if n, err := m.NzCount(); err != nil || n != 3 {
		t.Fatalf("NzCount = %d, %v; want 3", n, err)
	}

	m.InvalidateCachedNzCount()
	if m.HasCachedNzCount() {
		t.Fatal("cache still valid after invalidation")
	}
	if n, err := m.NzCount(); err != nil || n != 3 {
		t.Fatalf("refetched NzCount = %d, %v; want 3", n, err)
	}
	if !m.HasCachedNzCount() {
		t.Fatal("NzCount should repopulate the cache")
	}

	if err := m.UpdateCachedNzCount(3, true); err != nil {
		t.Fatalf("verified update of correct count: %v", err)
	}
	if err := m.UpdateCachedNzCount(99, true); !errors.Is(err, ErrNzCountMismatch) {
		t.Fatalf("verified update of wrong count: %v, want ErrNzCountMismatch", err)
	}
}

func TestCapacityGrowOnly(t *testing.T) {
	dev := testDev(t)
	m, err := New[float32](dev, 4, 4, 10, CSC)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer m.Release()
	if m.SizeAllocated() != 10 {
		t.Fatalf("SizeAllocated = %d, want 10", m.SizeAllocated())
	}

	// A smaller requirement under growOnly must not shrink capacity.
	if err := m.RequireSizeAndAllocate(4, 4, 4, CSC, true, false); err != nil {
		t.Fatalf("RequireSizeAndAllocate: %v", err)
	}
	if m.SizeAllocated() != 10 {
		t.Errorf("growOnly shrank capacity to %d", m.SizeAllocated())
	}

	if err := m.Allocate(4, 4, 20, true, false); err != nil {
		t.Fatalf("Allocate: %v", err)
	}
	if m.SizeAllocated() != 20 {
		t.Errorf("SizeAllocated = %d, want 20", m.SizeAllocated())
	}

	// Without growOnly a smaller requirement reallocates down.
	if err := m.RequireSizeAndAllocate(4, 4, 5, CSC, false, false); err != nil {
		t.Fatalf("RequireSizeAndAllocate: %v", err)
	}
	if m.SizeAllocated() != 5 {
		t.Errorf("SizeAllocated = %d, want 5", m.SizeAllocated())
	}
}

func TestAllocateGrowsElementCapacityOnReusedBuffer(t *testing.T) {
	dev := testDev(t)
	// A wide CSC shape over-provisions the buffer in bytes through its long
	// pointer array. Importing a denser matrix afterwards must still grow
	// the element capacity: region offsets derive from it, so reusing the
	// bytes at the old capacity would overflow the value region.
	m, err := New[float64](dev, 2, 1000, 10, CSC)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer m.Release()

	// 5x5 CSR with four entries per row, 20 in total.
	ptr := make([]Index, 6)
	idx := make([]Index, 0, 20)
	vals := make([]float64, 0, 20)
	for i := range 5 {
		for j := range 4 {
			idx = append(idx, Index(j))
			vals = append(vals, float64(4*i+j+1))
		}
		ptr[i+1] = Index(len(idx))
	}
	if err := m.SetFromCSR(ptr, idx, vals, 5, 5); err != nil {
		t.Fatalf("SetFromCSR: %v", err)
	}
	if m.SizeAllocated() < 20 {
		t.Errorf("SizeAllocated = %d, want >= 20", m.SizeAllocated())
	}
	gotPtr, gotIdx, gotVals, err := m.ToCSR()
	if err != nil {
		t.Fatalf("ToCSR: %v", err)
	}
	if !slices.Equal(gotPtr, ptr) || !slices.Equal(gotIdx, idx) || !slices.Equal(gotVals, vals) {
		t.Errorf("round trip mismatch: ptr %v idx %v vals %v", gotPtr, gotIdx, gotVals)
	}
}

func TestRequireSizeReallocInvalidatesNzCache(t *testing.T) {
	m := newTestCSC(t, testDev(t))
	defer m.Release()
	if n, err := m.NzCount(); err != nil || n != 3 {
		t.Fatalf("NzCount = %d, %v; want 3", n, err)
	}

	// Same shape and format, but the larger reservation forces a
	// destructive reallocation; the cached count must not survive it.
	if err := m.RequireSize(3, 3, 500, CSC, true); err != nil {
		t.Fatalf("RequireSize: %v", err)
	}
	if m.HasCachedNzCount() {
		t.Error("nz cache still valid after destructive reallocation")
	}
	if n, err := m.NzCount(); err != nil || n != 0 {
		t.Errorf("NzCount = %d, %v; want 0 (fresh buffer)", n, err)
	}
}

func TestAllocateKeepExistingValues(t *testing.T) {
	m := newTestCSC(t, testDev(t))
	defer m.Release()

	if err := m.Allocate(3, 3, 64, true, true); err != nil {
		t.Fatalf("Allocate: %v", err)
	}
	ptr, idx, vals, err := m.ToCSC()
	if err != nil {
		t.Fatalf("ToCSC after grow: %v", err)
	}
	if !slices.Equal(ptr, testColPtr) || !slices.Equal(idx, testRowIdx) || !slices.Equal(vals, testVals) {
		t.Errorf("content lost across grow: ptr=%v idx=%v vals=%v", ptr, idx, vals)
	}
}

func TestResizeClears(t *testing.T) {
	m := newTestCSC(t, testDev(t))
	defer m.Release()

	if err := m.Resize(5, 5, 8, CSC, false); err != nil {
		t.Fatalf("Resize: %v", err)
	}
	if m.Rows() != 5 || m.Cols() != 5 {
		t.Errorf("shape = %dx%d, want 5x5", m.Rows(), m.Cols())
	}
	if n, err := m.NzCount(); err != nil || n != 0 {
		t.Errorf("NzCount after resize = %d, %v; want 0", n, err)
	}
	if err := m.VerifyCachedNzCount(); err != nil {
		t.Errorf("cache disagrees with device after resize: %v", err)
	}
}

func TestReset(t *testing.T) {
	m := newTestCSC(t, testDev(t))
	defer m.Release()

	if err := m.Reset(); err != nil {
		t.Fatalf("Reset: %v", err)
	}
	if n, err := m.NzCount(); err != nil || n != 0 {
		t.Errorf("NzCount after reset = %d, %v; want 0", n, err)
	}
	if m.Rows() != 3 || m.Cols() != 3 {
		t.Errorf("Reset changed shape to %dx%d", m.Rows(), m.Cols())
	}
}

func TestChangeDeviceTo(t *testing.T) {
	m := newTestCSC(t, testDev(t))
	defer m.Release()

	if err := m.ChangeDeviceTo(device.ID(41)); err != nil {
		t.Fatalf("ChangeDeviceTo: %v", err)
	}
	if m.Device().ID() != 41 {
		t.Fatalf("device = %d, want 41", m.Device().ID())
	}
	ptr, idx, vals, err := m.ToCSC()
	if err != nil {
		t.Fatalf("ToCSC after migration: %v", err)
	}
	if !slices.Equal(ptr, testColPtr) || !slices.Equal(idx, testRowIdx) || !slices.Equal(vals, testVals) {
		t.Errorf("content lost across migration: ptr=%v idx=%v vals=%v", ptr, idx, vals)
	}
}

func TestRowColLocation(t *testing.T) {
	m := newTestCSC(t, testDev(t))
	defer m.Release()
	m.Device().Stream().Synchronize()

	rowLoc, err := m.RowLocation()
	if err != nil {
		t.Fatalf("RowLocation: %v", err)
	}
	if !slices.Equal(rowLoc[:3], testRowIdx) {
		t.Errorf("RowLocation = %v, want %v", rowLoc[:3], testRowIdx)
	}
	colLoc, err := m.ColLocation()
	if err != nil {
		t.Fatalf("ColLocation: %v", err)
	}
	if !slices.Equal(colLoc[:4], testColPtr) {
		t.Errorf("ColLocation = %v, want %v", colLoc[:4], testColPtr)
	}

	b := NewEmpty[float32](m.Device(), BlockCol)
	defer b.Release()
	if _, err := b.RowLocation(); !errors.Is(err, ErrUnsupportedFormat) {
		t.Errorf("RowLocation on blockcol: %v, want ErrUnsupportedFormat", err)
	}
}

func TestBlockTables(t *testing.T) {
	dev := testDev(t)
	m := NewEmpty[float32](dev, BlockCol)
	defer m.Release()
	// Columns 1 and 3 of a 2x4 matrix hold blocks.
	if err := m.SetFromSBC([]Index{1, 3}, []float32{5, 0, 6, 7}, 2, 4); err != nil {
		t.Fatalf("SetFromSBC: %v", err)
	}
	if m.BlockSize() != 2 {
		t.Fatalf("BlockSize = %d, want 2", m.BlockSize())
	}
	if n, err := m.NzCount(); err != nil || n != 4 {
		t.Fatalf("NzCount = %d, %v; want 4 (2 blocks of 2)", n, err)
	}
	dev.Stream().Synchronize()

	toBlock, err := m.MajorToBlockID()
	if err != nil {
		t.Fatalf("MajorToBlockID: %v", err)
	}
	want := []Index{blockIDNotAssigned, 0, blockIDNotAssigned, 1}
	if !slices.Equal(toBlock, want) {
		t.Errorf("MajorToBlockID = %v, want %v", toBlock, want)
	}
	toCol, err := m.BlockIDToMajor()
	if err != nil {
		t.Fatalf("BlockIDToMajor: %v", err)
	}
	if !slices.Equal(toCol[:2], []Index{1, 3}) {
		t.Errorf("BlockIDToMajor = %v, want [1 3]", toCol[:2])
	}
	if err := m.IsValid(); err != nil {
		t.Errorf("IsValid: %v", err)
	}
}
