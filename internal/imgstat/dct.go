package imgstat

import (
	"math"
	"sync"

	"gonum.org/v1/gonum/mat"
)

var dctMatrices sync.Map // int -> *mat.Dense

// DCT2D returns the orthonormal 2-D DCT-II of an n×n block given row-major,
// computed as C·B·Cᵀ.
func DCT2D(block []float64, n int) []float64 {
	c := dctMatrix(n)
	b := mat.NewDense(n, n, block[:n*n:n*n])
	out := mat.NewDense(n, n, nil)
	out.Product(c, b, c.T())
	return out.RawMatrix().Data
}

// dctMatrix returns the n×n orthonormal DCT-II basis, rows indexed by
// frequency. The matrix is shared and must not be modified.
func dctMatrix(n int) *mat.Dense {
	if m, ok := dctMatrices.Load(n); ok {
		return m.(*mat.Dense)
	}
	data := make([]float64, n*n)
	for u := 0; u < n; u++ {
		scale := math.Sqrt(2 / float64(n))
		if u == 0 {
			scale = math.Sqrt(1 / float64(n))
		}
		for x := 0; x < n; x++ {
			data[u*n+x] = scale * math.Cos(float64(2*x+1)*float64(u)*math.Pi/float64(2*n))
		}
	}
	m, _ := dctMatrices.LoadOrStore(n, mat.NewDense(n, n, data))
	return m.(*mat.Dense)
}
