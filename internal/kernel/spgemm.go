package kernel

// SpgemmCSR computes C = A*B for CSR operands using Gustavson's row-by-row
// algorithm. A is aRows×aCols, B is aCols×bCols; the result is returned as
// a freshly allocated CSR triple with column indices in ascending order
// within each row. Explicit zeros produced by cancellation are kept, so the
// output pattern is the structural product of the input patterns.
func SpgemmCSR[T Float](aRows, aCols, bCols int,
	aPtr, aIdx []Index, aVal []T,
	bPtr, bIdx []Index, bVal []T) (cPtr, cIdx []Index, cVal []T) {
	cPtr = make([]Index, aRows+1)
	acc := make([]T, bCols)
	mark := make([]int, bCols)
	for i := range mark {
		mark[i] = -1
	}
	cols := make([]Index, 0, bCols)

	aBase := int(aPtr[0])
	bBase := int(bPtr[0])
	for i := range aRows {
		cols = cols[:0]
		for p := aPtr[i]; p < aPtr[i+1]; p++ {
			k := int(aIdx[int(p)-aBase])
			av := aVal[int(p)-aBase]
			for q := bPtr[k]; q < bPtr[k+1]; q++ {
				j := int(bIdx[int(q)-bBase])
				if mark[j] != i {
					mark[j] = i
					acc[j] = 0
					cols = append(cols, Index(j))
				}
				acc[j] += av * bVal[int(q)-bBase]
			}
		}
		sortIndices(cols)
		for _, j := range cols {
			cIdx = append(cIdx, j)
			cVal = append(cVal, acc[j])
		}
		cPtr[i+1] = Index(len(cIdx))
	}
	return cPtr, cIdx, cVal
}

func sortIndices(s []Index) {
	// insertion sort: rows are short in practice
	for i := 1; i < len(s); i++ {
		v := s[i]
		j := i - 1
		for j >= 0 && s[j] > v {
			s[j+1] = s[j]
			j--
		}
		s[j+1] = v
	}
}
