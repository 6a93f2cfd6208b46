package m

import (
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

// Objective is the regularized softmax cross-entropy loss of a sigmoid MLP
// with the given layer size schedule, as a function of its flat parameters.
type Objective struct {
	LayerSizes []int
	Lambda     float64
}

// activations is the per-call forward cache. outputs[0] is the input batch
// and derivs[i] is the sigmoid derivative of outputs[i+1].
type activations struct {
	outputs []mat.Matrix
	derivs  []*mat.Dense
}

func forward(layers []LayerParams, x mat.Matrix, act Activator) (*mat.Dense, activations) {
	cache := activations{outputs: []mat.Matrix{x}}
	var z *mat.Dense
	for i, l := range layers {
		z = dot(x, l.W.T())
		addRow(z, vecData(l.B))
		if i == len(layers)-1 {
			break
		}
		a := apply(act.Activate, z)
		cache.outputs = append(cache.outputs, a)
		cache.derivs = append(cache.derivs, act.Deactivate(a))
		x = a
	}
	return z, cache
}

// Forward returns the raw output logits (examples x classes) for x.
func Forward(layers []LayerParams, x mat.Matrix) (*mat.Dense, error) {
	sizes, err := layerSizesOf(layers)
	if err != nil {
		return nil, err
	}
	r, c := x.Dims()
	if r == 0 {
		return nil, degenerate("no examples")
	}
	if c != sizes[0] {
		return nil, &ShapeError{What: "input features", Want: sizes[0], Got: c}
	}
	z, _ := forward(layers, x, Sigmoid{})
	return z, nil
}

// LossAndGradient evaluates the summed loss over the batch plus
// 0.5*Lambda*|flat|^2, and its gradient in the same layout as flat.
// Neither flat, x nor y is modified.
func (o Objective) LossAndGradient(flat []float64, x, y mat.Matrix) (float64, []float64, error) {
	layers, err := Unflatten(flat, o.LayerSizes)
	if err != nil {
		return 0, nil, err
	}
	if err := o.checkBatch(x, y); err != nil {
		return 0, nil, err
	}

	z, cache := forward(layers, x, Sigmoid{})

	n, k := z.Dims()
	grad := mat.NewDense(n, k, nil)
	f := 0.0
	for r := 0; r < n; r++ {
		zr, gr := z.RawRowView(r), grad.RawRowView(r)
		lse := logSumExp(zr)
		target := 0.0
		for c, v := range zr {
			t := y.At(r, c)
			target += t * v
			gr[c] = math.Exp(v-lse) - t
		}
		f += lse - target
	}

	grads := make([]LayerParams, len(layers))
	last := len(layers) - 1
	grads[last] = layerGrad(grad, cache.outputs[last])
	for i := last; i > 0; i-- {
		grad = multiply(dot(grad, layers[i].W), cache.derivs[i-1])
		grads[i-1] = layerGrad(grad, cache.outputs[i-1])
	}
	g := Flatten(grads)

	f += 0.5 * o.Lambda * floats.Dot(flat, flat)
	floats.AddScaled(g, o.Lambda, flat)
	return f, g, nil
}

func layerGrad(grad *mat.Dense, input mat.Matrix) LayerParams {
	b := colSum(grad)
	return LayerParams{
		W: dot(grad.T(), input),
		B: mat.NewVecDense(len(b), b),
	}
}

func (o Objective) checkBatch(x, y mat.Matrix) error {
	xr, xc := x.Dims()
	yr, yc := y.Dims()
	switch {
	case xr == 0:
		return degenerate("empty batch")
	case xc != o.LayerSizes[0]:
		return &ShapeError{What: "input features", Want: o.LayerSizes[0], Got: xc}
	case yc != o.LayerSizes[len(o.LayerSizes)-1]:
		return &ShapeError{What: "indicator columns", Want: o.LayerSizes[len(o.LayerSizes)-1], Got: yc}
	case yr != xr:
		return &ShapeError{What: "indicator rows", Want: xr, Got: yr}
	}
	return nil
}
