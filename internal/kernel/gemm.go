package kernel

// Gemm computes C = alpha*op(A)*op(B) + beta*C where op(A) is m×k and
// op(B) is k×n. A, B and C are flat row-major with their natural strides
// (A is m×k or k×m depending on transA, likewise B). C is m×n.
func Gemm[T Float](transA, transB bool, m, n, k int, alpha T, a, b []T, beta T, c []T) {
	scale(c, beta)
	if alpha == 0 {
		return
	}
	for i := range m {
		for p := range k {
			av := alpha * at(a, transA, i, p, k, m)
			if av == 0 {
				continue
			}
			crow := c[i*n : (i+1)*n]
			for j := range n {
				crow[j] += av * at(b, transB, p, j, n, k)
			}
		}
	}
}

// at reads element (i,j) of a logical rows×cols matrix stored row-major,
// reading the transposed storage when trans is set. cols is the logical
// column count, physRows the physical row count of the transposed storage.
func at[T Float](m []T, trans bool, i, j, cols, physRows int) T {
	if trans {
		return m[j*physRows+i]
	}
	return m[i*cols+j]
}

func scale[T Float](c []T, beta T) {
	switch beta {
	case 1:
	case 0:
		clear(c)
	default:
		for i := range c {
			c[i] *= beta
		}
	}
}
