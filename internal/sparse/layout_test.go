package sparse

import "testing"

func TestBufferSizeNeeded(t *testing.T) {
	tests := []struct {
		name       string
		rows, cols int
		nz         int
		elemBytes  int
		format     Format
		want       int
	}{
		{"csc", 3, 4, 5, 4, CSC, 4*5 + 4*5 + 4*(4+1)},
		{"csr", 3, 4, 5, 4, CSR, 4*5 + 4*5 + 4*(3+1)},
		{"csc float64", 3, 4, 5, 8, CSC, 8*5 + 4*5 + 4*(4+1)},
		{"blockcol", 6, 4, 12, 4, BlockCol, 4*12 + 4*4 + 4*4},
		{"blockrow", 6, 4, 8, 4, BlockRow, 4*8 + 4*6 + 4*6},
		{"empty csc", 0, 0, 0, 4, CSC, 4},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := BufferSizeNeeded(tt.rows, tt.cols, tt.nz, tt.elemBytes, tt.format)
			if got != tt.want {
				t.Errorf("BufferSizeNeeded = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestMaxElemsInvertsBufferSize(t *testing.T) {
	for _, f := range []Format{CSC, CSR, BlockCol, BlockRow} {
		for _, nz := range []int{0, 1, 7, 64} {
			need := BufferSizeNeeded(9, 5, nz, 4, f)
			got := MaxElemsFromBufferSize(9, 5, need, 4, f)
			if got < nz {
				t.Errorf("%s nz=%d: buffer of %d bytes reports capacity %d", f, nz, need, got)
			}
		}
	}
}

func TestRegionOffsets(t *testing.T) {
	// CSC, 4-byte elements, capacity 6, 3x4: values 24 bytes, major 24
	// bytes, secondary after both.
	r := regionsFor(3, 4, 6, 4, CSC)
	if r.valuesOff != 0 || r.majorOff != 24 || r.secondaryOff != 48 {
		t.Errorf("csc regions = %+v", r)
	}
	// BlockCol major region is one slot per column regardless of capacity.
	r = regionsFor(3, 4, 6, 4, BlockCol)
	if r.majorOff != 24 || r.secondaryOff != 24+16 {
		t.Errorf("blockcol regions = %+v", r)
	}
}

func TestMajorRegionSpansCapacity(t *testing.T) {
	// Compressed major indices are laid out for the full capacity, so
	// growing the live count never moves the secondary region.
	r := regionsFor(10, 10, 32, 4, CSC)
	if r.secondaryOff-r.majorOff != 4*32 {
		t.Fatalf("major region spans %d bytes, want %d", r.secondaryOff-r.majorOff, 4*32)
	}
}

func TestParseFormat(t *testing.T) {
	tests := []struct {
		in      string
		want    Format
		wantErr bool
	}{
		{"csc", CSC, false},
		{"CSR", CSR, false},
		{" sbc ", BlockCol, false},
		{"blockrow", BlockRow, false},
		{"dense", CSC, true},
	}
	for _, tt := range tests {
		got, err := ParseFormat(tt.in)
		if tt.wantErr {
			if err == nil {
				t.Errorf("ParseFormat(%q): want error", tt.in)
			}
			continue
		}
		if err != nil || got != tt.want {
			t.Errorf("ParseFormat(%q) = %v, %v; want %v", tt.in, got, err, tt.want)
		}
	}
}
