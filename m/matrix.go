package m

import (
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

func dot(m, n mat.Matrix) *mat.Dense {
	r, _ := m.Dims()
	_, c := n.Dims()
	o := mat.NewDense(r, c, nil)
	o.Product(m, n)
	return o
}

func apply(fn func(i, j int, v float64) float64, m mat.Matrix) *mat.Dense {
	r, c := m.Dims()
	o := mat.NewDense(r, c, nil)
	o.Apply(fn, m)
	return o
}

func multiply(m, n mat.Matrix) *mat.Dense {
	r, c := m.Dims()
	o := mat.NewDense(r, c, nil)
	o.MulElem(m, n)
	return o
}

// addRow adds v to every row of m in place.
func addRow(m *mat.Dense, v []float64) {
	r, _ := m.Dims()
	for i := 0; i < r; i++ {
		floats.Add(m.RawRowView(i), v)
	}
}

func colSum(m *mat.Dense) []float64 {
	r, c := m.Dims()
	sum := make([]float64, c)
	for i := 0; i < r; i++ {
		floats.Add(sum, m.RawRowView(i))
	}
	return sum
}

// rowsOf gathers the rows of src listed in idx into a new matrix.
func rowsOf(src mat.Matrix, idx []int) *mat.Dense {
	_, c := src.Dims()
	o := mat.NewDense(len(idx), c, nil)
	for r, i := range idx {
		mat.Row(o.RawRowView(r), i, src)
	}
	return o
}

// rowRange returns rows [lo, hi) of src, sharing storage when src is dense.
func rowRange(src mat.Matrix, lo, hi int) mat.Matrix {
	if d, ok := src.(*mat.Dense); ok {
		_, c := d.Dims()
		return d.Slice(lo, hi, 0, c)
	}
	idx := make([]int, hi-lo)
	for i := range idx {
		idx[i] = lo + i
	}
	return rowsOf(src, idx)
}

func logSumExp(row []float64) float64 {
	top := floats.Max(row)
	sum := 0.0
	for _, v := range row {
		sum += math.Exp(v - top)
	}
	return top + math.Log(sum)
}

// argMax returns the index of the largest value, the lowest one on ties.
func argMax(row []float64) int {
	best := 0
	for i, v := range row {
		if v > row[best] {
			best = i
		}
	}
	return best
}

func vecData(v *mat.VecDense) []float64 {
	return mat.Col(nil, 0, v)
}
