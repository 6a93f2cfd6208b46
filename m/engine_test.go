package m

import (
	"math"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/exp/rand"
	"gonum.org/v1/gonum/diff/fd"
	"gonum.org/v1/gonum/mat"
)

func randomBatch(rng *rand.Rand, n, features, classes int) (*mat.Dense, *mat.Dense) {
	x := mat.NewDense(n, features, nil)
	y := mat.NewDense(n, classes, nil)
	for i := 0; i < n; i++ {
		for j := 0; j < features; j++ {
			x.Set(i, j, rng.NormFloat64())
		}
		y.Set(i, rng.Intn(classes), 1)
	}
	return x, y
}

func randomFlat(rng *rand.Rand, sizes []int, scale float64) []float64 {
	n, err := ParamCount(sizes)
	if err != nil {
		panic(err)
	}
	flat := make([]float64, n)
	for i := range flat {
		flat[i] = scale * rng.NormFloat64()
	}
	return flat
}

func TestGradientMatchesFiniteDifferences(t *testing.T) {
	schedules := [][]int{
		{2, 3, 2},
		{3, 4, 3, 2},
		{4, 3},
	}
	for i, sizes := range schedules {
		rng := rand.New(rand.NewSource(uint64(i + 1)))
		obj := Objective{LayerSizes: sizes, Lambda: 0.1}
		x, y := randomBatch(rng, 5, sizes[0], sizes[len(sizes)-1])
		flat := randomFlat(rng, sizes, 0.5)

		_, g, err := obj.LossAndGradient(flat, x, y)
		require.NoError(t, err)

		loss := func(p []float64) float64 {
			f, _, err := obj.LossAndGradient(p, x, y)
			if err != nil {
				panic(err)
			}
			return f
		}
		numeric := fd.Gradient(nil, loss, flat, &fd.Settings{Formula: fd.Central, Step: 1e-6})

		require.Len(t, g, len(numeric))
		for j := range g {
			assert.InDelta(t, numeric[j], g[j], 1e-4, "sizes %v coordinate %d", sizes, j)
		}
	}
}

func TestZeroWeightsScenario(t *testing.T) {
	sizes := []int{4, 3, 2}
	obj := Objective{LayerSizes: sizes, Lambda: 0.5}
	flat := make([]float64, 23)
	x := mat.NewDense(1, 4, []float64{1, 2, 3, 4})
	y := mat.NewDense(1, 2, []float64{1, 0})

	f, g, err := obj.LossAndGradient(flat, x, y)
	require.NoError(t, err)
	assert.InDelta(t, math.Log(2), f, 1e-12)

	layers, err := Unflatten(flat, sizes)
	require.NoError(t, err)
	z, err := Forward(layers, x)
	require.NoError(t, err)
	assert.Equal(t, []float64{0, 0}, z.RawRowView(0))
	assert.Equal(t, 0, argMax(z.RawRowView(0)))

	grads, err := Unflatten(g, sizes)
	require.NoError(t, err)
	// Hidden units all output sigmoid(0) = 0.5 and receive no error through zero weights.
	assert.True(t, mat.Equal(grads[0].W, mat.NewDense(3, 4, nil)))
	assert.True(t, mat.Equal(grads[0].B, mat.NewVecDense(3, nil)))
	assert.True(t, mat.EqualApprox(grads[1].W, mat.NewDense(2, 3, []float64{
		-0.25, -0.25, -0.25,
		0.25, 0.25, 0.25,
	}), 1e-12))
	assert.True(t, mat.EqualApprox(grads[1].B, mat.NewVecDense(2, []float64{-0.5, 0.5}), 1e-12))
}

func TestRegularization(t *testing.T) {
	sizes := []int{3, 4, 2}
	rng := rand.New(rand.NewSource(3))
	x, y := randomBatch(rng, 6, 3, 2)
	flat := randomFlat(rng, sizes, 0.3)

	f0, g0, err := Objective{LayerSizes: sizes}.LossAndGradient(flat, x, y)
	require.NoError(t, err)
	f1, g1, err := Objective{LayerSizes: sizes, Lambda: 2}.LossAndGradient(flat, x, y)
	require.NoError(t, err)

	sq := 0.0
	for _, v := range flat {
		sq += v * v
	}
	assert.InDelta(t, sq, f1-f0, 1e-9)

	want := make([]float64, len(g0))
	for i := range want {
		want[i] = g0[i] + 2*flat[i]
	}
	if diff := cmp.Diff(want, g1, cmpopts.EquateApprox(0, 1e-12)); diff != "" {
		t.Errorf("regularized gradient mismatch (-want +got):\n%s", diff)
	}
}

func TestLossAndGradientLeavesInputsAlone(t *testing.T) {
	sizes := []int{3, 2, 3}
	rng := rand.New(rand.NewSource(11))
	x, y := randomBatch(rng, 4, 3, 3)
	flat := randomFlat(rng, sizes, 1)

	flatCopy := append([]float64(nil), flat...)
	xCopy, yCopy := mat.DenseCopyOf(x), mat.DenseCopyOf(y)

	_, _, err := Objective{LayerSizes: sizes, Lambda: 1}.LossAndGradient(flat, x, y)
	require.NoError(t, err)
	assert.Equal(t, flatCopy, flat)
	assert.True(t, mat.Equal(xCopy, x))
	assert.True(t, mat.Equal(yCopy, y))
}

func TestLossIsStableForLargeLogits(t *testing.T) {
	layers := []LayerParams{{
		W: mat.NewDense(2, 1, []float64{1000, -1000}),
		B: mat.NewVecDense(2, nil),
	}}
	flat := Flatten(layers)
	x := mat.NewDense(1, 1, []float64{1})
	y := mat.NewDense(1, 2, []float64{0, 1})

	f, g, err := Objective{LayerSizes: []int{1, 2}}.LossAndGradient(flat, x, y)
	require.NoError(t, err)
	assert.InDelta(t, 2000, f, 1e-9)
	for _, v := range g {
		assert.False(t, math.IsNaN(v))
	}
}

func TestLossAndGradientShapeErrors(t *testing.T) {
	sizes := []int{2, 3, 2}
	obj := Objective{LayerSizes: sizes}
	flat := make([]float64, 17)
	rng := rand.New(rand.NewSource(5))

	_, _, err := obj.LossAndGradient(flat[:16], mat.NewDense(1, 2, nil), mat.NewDense(1, 2, nil))
	assert.ErrorIs(t, err, ErrShapeMismatch)

	x, y := randomBatch(rng, 3, 3, 2)
	_, _, err = obj.LossAndGradient(flat, x, y)
	assert.ErrorIs(t, err, ErrShapeMismatch)

	x, y = randomBatch(rng, 3, 2, 3)
	_, _, err = obj.LossAndGradient(flat, x, y)
	assert.ErrorIs(t, err, ErrShapeMismatch)

	x, _ = randomBatch(rng, 3, 2, 2)
	_, y = randomBatch(rng, 2, 2, 2)
	_, _, err = obj.LossAndGradient(flat, x, y)
	assert.ErrorIs(t, err, ErrShapeMismatch)

	_, _, err = obj.LossAndGradient(flat, &mat.Dense{}, &mat.Dense{})
	assert.ErrorIs(t, err, ErrDegenerateInput)
}

func TestForward(t *testing.T) {
	layers := []LayerParams{{
		W: mat.NewDense(3, 2, []float64{1, 0, 0, 1, 1, 1}),
		B: mat.NewVecDense(3, []float64{0.5, -0.5, 0}),
	}}
	x := mat.NewDense(2, 2, []float64{1, 2, 3, 4})

	z, err := Forward(layers, x)
	require.NoError(t, err)
	want := mat.NewDense(2, 3, []float64{1.5, 1.5, 3, 3.5, 3.5, 7})
	assert.True(t, mat.EqualApprox(want, z, 1e-12))

	_, err = Forward(layers, mat.NewDense(1, 3, nil))
	assert.ErrorIs(t, err, ErrShapeMismatch)
}
