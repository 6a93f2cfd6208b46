package m

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"
)

// Activator is a hidden-layer nonlinearity. Deactivate receives the
// activated outputs, not the pre-activations.
type Activator interface {
	Activate(i, j int, sum float64) float64
	Deactivate(m mat.Matrix) *mat.Dense
	fmt.Stringer
}

type Sigmoid struct{}

func (s Sigmoid) Activate(i, j int, sum float64) float64 {
	return 1.0 / (1.0 + math.Exp(-sum))
}

// Deactivate returns x*(1-x) for sigmoid outputs x.
func (s Sigmoid) Deactivate(matrix mat.Matrix) *mat.Dense {
	return apply(func(_, _ int, v float64) float64 {
		return v * (1 - v)
	}, matrix)
}

func (s Sigmoid) String() string {
	return "sigmoid"
}
