package kernel

// SpmmCSR computes C = alpha*op(S)*D + beta*C where S is sRows×sCols in
// CSR form and D is a dense dRows×dCols row-major matrix. op(S) must have
// as many columns as D has rows; C is op(S).rows × dCols.
func SpmmCSR[T Float](transS bool, sRows, sCols int, sPtr, sIdx []Index, sVal []T,
	d []T, dRows, dCols int, alpha, beta T, c []T) {
	scale(c, beta)
	if alpha == 0 {
		return
	}
	base := int(sPtr[0])
	for i := range sRows {
		for p := sPtr[i]; p < sPtr[i+1]; p++ {
			j := int(sIdx[int(p)-base])
			v := alpha * sVal[int(p)-base]
			if v == 0 {
				continue
			}
			// op(S)[r, k] contributes v * D[k, :] to C[r, :].
			r, k := i, j
			if transS {
				r, k = j, i
			}
			crow := c[r*dCols : (r+1)*dCols]
			drow := d[k*dCols : (k+1)*dCols]
			for q := range dCols {
				crow[q] += v * drow[q]
			}
		}
	}
}

// SpmmCSRRight computes C = alpha*D*op(S) + beta*C where D is a dense
// dRows×dCols row-major matrix and S is sRows×sCols in CSR form. D must
// have as many columns as op(S) has rows; C is dRows × op(S).cols.
func SpmmCSRRight[T Float](d []T, dRows, dCols int,
	transS bool, sRows, sCols int, sPtr, sIdx []Index, sVal []T,
	alpha, beta T, c []T) {
	scale(c, beta)
	if alpha == 0 {
		return
	}
	cCols := sCols
	if transS {
		cCols = sRows
	}
	base := int(sPtr[0])
	for i := range sRows {
		for p := sPtr[i]; p < sPtr[i+1]; p++ {
			j := int(sIdx[int(p)-base])
			v := alpha * sVal[int(p)-base]
			if v == 0 {
				continue
			}
			// op(S)[k, cc] contributes v * D[:, k] to C[:, cc].
			k, cc := i, j
			if transS {
				k, cc = j, i
			}
			for r := range dRows {
				c[r*cCols+cc] += v * d[r*dCols+k]
			}
		}
	}
}
