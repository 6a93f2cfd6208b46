package m

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"
)

func TestLabelBinarizer(t *testing.T) {
	lb := NewLabelBinarizer()
	require.NoError(t, lb.Fit([]int{7, 3, 9, 3, 7}))
	assert.Equal(t, []int{3, 7, 9}, lb.Classes())

	Y, err := lb.Transform([]int{9, 3, 7})
	require.NoError(t, err)
	want := mat.NewDense(3, 3, []float64{
		0, 0, 1,
		1, 0, 0,
		0, 1, 0,
	})
	assert.True(t, mat.Equal(want, Y))
	assert.Equal(t, 7, lb.Label(1))
}

func TestLabelBinarizerTwoClasses(t *testing.T) {
	lb := NewLabelBinarizer()
	require.NoError(t, lb.Fit([]int{0, 1, 1}))
	Y, err := lb.Transform([]int{0, 1, 1})
	require.NoError(t, err)

	r, c := Y.Dims()
	assert.Equal(t, 3, r)
	assert.Equal(t, 2, c)
	for i := 0; i < r; i++ {
		assert.Equal(t, 1.0, mat.Sum(Y.RowView(i)))
	}
}

func TestLabelBinarizerErrors(t *testing.T) {
	lb := NewLabelBinarizer()
	assert.ErrorIs(t, lb.Fit(nil), ErrDegenerateInput)

	_, err := lb.Transform([]int{1})
	assert.ErrorIs(t, err, ErrDegenerateInput)

	lb = NewLabelBinarizer(0, 1)
	_, err = lb.Transform([]int{0, 2})
	assert.Error(t, err)
}
