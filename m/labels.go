package m

import (
	"fmt"
	"slices"

	"gonum.org/v1/gonum/mat"
)

// LabelBinarizer maps integer class labels to one-hot indicator rows. Column
// i of the indicator matrix, and prediction index i, both mean Classes()[i].
type LabelBinarizer struct {
	classes []int
	index   map[int]int
}

// NewLabelBinarizer returns a binarizer over a known vocabulary. Pass no
// classes and call Fit to learn it from data instead.
func NewLabelBinarizer(classes ...int) *LabelBinarizer {
	lb := &LabelBinarizer{}
	lb.setClasses(classes)
	return lb
}

// Fit fixes the vocabulary to the sorted distinct values of y.
func (lb *LabelBinarizer) Fit(y []int) error {
	if len(y) == 0 {
		return degenerate("no labels to fit")
	}
	lb.setClasses(y)
	return nil
}

func (lb *LabelBinarizer) setClasses(y []int) {
	classes := slices.Clone(y)
	slices.Sort(classes)
	lb.classes = slices.Compact(classes)
	lb.index = make(map[int]int, len(lb.classes))
	for i, c := range lb.classes {
		lb.index[c] = i
	}
}

// Transform returns the (len(y) x len(Classes())) indicator matrix.
func (lb *LabelBinarizer) Transform(y []int) (*mat.Dense, error) {
	if len(lb.classes) == 0 {
		return nil, degenerate("label binarizer has no classes")
	}
	if len(y) == 0 {
		return nil, degenerate("no labels")
	}
	Y := mat.NewDense(len(y), len(lb.classes), nil)
	for r, label := range y {
		c, ok := lb.index[label]
		if !ok {
			return nil, fmt.Errorf("label %d at row %d is not one of %v", label, r, lb.classes)
		}
		Y.Set(r, c, 1)
	}
	return Y, nil
}

func (lb *LabelBinarizer) Classes() []int {
	return slices.Clone(lb.classes)
}

// Label returns the class label of indicator column index.
func (lb *LabelBinarizer) Label(index int) int {
	return lb.classes[index]
}
