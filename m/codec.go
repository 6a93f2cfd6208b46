package m

import (
	"fmt"

	"gonum.org/v1/gonum/mat"
)

// LayerParams holds one layer transition: W is (out x in) and B has length out.
type LayerParams struct {
	W *mat.Dense
	B *mat.VecDense
}

// ParamCount returns the length of the flat parameter vector implied by
// layerSizes.
func ParamCount(layerSizes []int) (int, error) {
	if len(layerSizes) < 2 {
		return 0, degenerate("layer size schedule needs at least 2 entries, got %d", len(layerSizes))
	}
	for i, s := range layerSizes {
		if s <= 0 {
			return 0, degenerate("layer %d has size %d", i, s)
		}
	}
	size := 0
	for i := 0; i < len(layerSizes)-1; i++ {
		size += layerSizes[i+1]*layerSizes[i] + layerSizes[i+1]
	}
	return size, nil
}

// Flatten concatenates each layer's weights (row-major) followed by its bias,
// from the input layer towards the output.
func Flatten(layers []LayerParams) []float64 {
	n := 0
	for _, l := range layers {
		r, c := l.W.Dims()
		n += r*c + l.B.Len()
	}
	flat := make([]float64, 0, n)
	for _, l := range layers {
		r, _ := l.W.Dims()
		for i := 0; i < r; i++ {
			flat = append(flat, l.W.RawRowView(i)...)
		}
		for i := 0; i < l.B.Len(); i++ {
			flat = append(flat, l.B.AtVec(i))
		}
	}
	return flat
}

// Unflatten is the inverse of Flatten. The returned layers own their storage.
func Unflatten(flat []float64, layerSizes []int) ([]LayerParams, error) {
	size, err := ParamCount(layerSizes)
	if err != nil {
		return nil, err
	}
	if len(flat) != size {
		return nil, &ShapeError{What: "flat parameter vector length", Want: size, Got: len(flat)}
	}

	layers := make([]LayerParams, 0, len(layerSizes)-1)
	counter := 0
	for i := 0; i < len(layerSizes)-1; i++ {
		in, out := layerSizes[i], layerSizes[i+1]

		w := make([]float64, out*in)
		counter += copy(w, flat[counter:counter+out*in])

		b := make([]float64, out)
		counter += copy(b, flat[counter:counter+out])

		layers = append(layers, LayerParams{
			W: mat.NewDense(out, in, w),
			B: mat.NewVecDense(out, b),
		})
	}
	return layers, nil
}

// layerSizesOf recovers the schedule from structured weights and checks that
// consecutive layers agree.
func layerSizesOf(layers []LayerParams) ([]int, error) {
	if len(layers) == 0 {
		return nil, degenerate("no layers")
	}
	_, in := layers[0].W.Dims()
	sizes := []int{in}
	for i, l := range layers {
		r, c := l.W.Dims()
		if c != sizes[len(sizes)-1] {
			return nil, &ShapeError{What: "layer input width", Want: sizes[len(sizes)-1], Got: c}
		}
		if l.B.Len() != r {
			return nil, &ShapeError{What: fmt.Sprintf("bias length of layer %d", i), Want: r, Got: l.B.Len()}
		}
		sizes = append(sizes, r)
	}
	return sizes, nil
}
