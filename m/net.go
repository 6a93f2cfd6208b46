package m

import (
	"errors"
	"fmt"
	"io"
	"os"
	"slices"
	"time"

	"golang.org/x/exp/rand"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat/distuv"

	"mlp_lib/parallel"
	"mlp_lib/utils"
)

// initScale is the standard deviation of the initial parameters.
const initScale = 0.01

var errNotTrained = errors.New("network has no weights: call Fit or Load first")

// Config holds the classifier hyperparameters.
type Config struct {
	HiddenLayerSizes []int
	Alpha            float64 // learning rate
	Lambda           float64 // L2 regularization strength
	Epochs           int
	NumBatches       int // mini-batches per epoch, capped at the number of examples
	Verbose          bool
}

func DefaultConfig() Config {
	return Config{
		HiddenLayerSizes: []int{100},
		Alpha:            0.0001,
		Lambda:           1,
		Epochs:           10,
		NumBatches:       defaultBatches,
	}
}

// ConfigFrom converts a file configuration into hyperparameters.
func ConfigFrom(c *utils.Config) Config {
	return Config{
		HiddenLayerSizes: slices.Clone(c.HiddenLayerSizes),
		Alpha:            c.Alpha,
		Lambda:           c.Lambda,
		Epochs:           c.Epochs,
		NumBatches:       c.NumBatches,
		Verbose:          c.Verbose,
	}
}

// Network is a sigmoid MLP classifier trained by mini-batch SGD. The flat
// parameter vector lives only inside FitIndicator; afterwards only the
// structured weights remain and are read-only.
type Network struct {
	config     Config
	rng        *rand.Rand
	out        io.Writer
	par        parallel.Config
	layerSizes []int
	weights    []LayerParams
	labels     *LabelBinarizer
	losses     []float64
	stats      utils.TimingStats
}

// NewNetwork returns an untrained network. rng drives both the parameter
// initialization and the per-epoch shuffles; nil seeds one from the clock.
func NewNetwork(c Config, rng *rand.Rand) *Network {
	if rng == nil {
		rng = rand.New(rand.NewSource(uint64(time.Now().UnixNano())))
	}
	return &Network{
		config: c,
		rng:    rng,
		out:    os.Stdout,
		par:    parallel.DefaultConfig(),
	}
}

// FromWeights wraps already trained weights. classes may be nil, in which
// case prediction index i is label i.
func FromWeights(layers []LayerParams, classes []int) (*Network, error) {
	net := NewNetwork(DefaultConfig(), nil)
	if err := net.setWeights(layers, classes); err != nil {
		return nil, err
	}
	return net, nil
}

func (net *Network) setWeights(layers []LayerParams, classes []int) error {
	sizes, err := layerSizesOf(layers)
	if err != nil {
		return err
	}
	k := sizes[len(sizes)-1]
	if classes == nil {
		classes = identity(k)
	}
	labels := NewLabelBinarizer(classes...)
	if n := len(labels.Classes()); n != k {
		return &ShapeError{What: "distinct classes", Want: k, Got: n}
	}
	net.layerSizes = sizes
	net.weights = layers
	net.labels = labels
	return nil
}

// SetOutput redirects the per-epoch progress lines.
func (net *Network) SetOutput(w io.Writer) {
	net.out = w
}

// SetParallel overrides how Predict splits its rows.
func (net *Network) SetParallel(cfg parallel.Config) {
	net.par = cfg
}

// Fit binarizes y and trains on X. The class vocabulary is the sorted set of
// distinct labels in y.
func (net *Network) Fit(X mat.Matrix, y []int) error {
	r, _ := X.Dims()
	if r == 0 {
		return degenerate("no training examples")
	}
	if len(y) != r {
		return &ShapeError{What: "label count", Want: r, Got: len(y)}
	}
	labels := NewLabelBinarizer()
	if err := labels.Fit(y); err != nil {
		return err
	}
	Y, err := labels.Transform(y)
	if err != nil {
		return err
	}
	if err := net.FitIndicator(X, Y); err != nil {
		return err
	}
	net.labels = labels
	return nil
}

// FitIndicator trains on X against a precomputed one-hot matrix Y. Training
// either runs every epoch or leaves the network unchanged.
func (net *Network) FitIndicator(X, Y mat.Matrix) error {
	n, inputDim := X.Dims()
	yr, k := Y.Dims()
	if n == 0 || inputDim == 0 {
		return degenerate("no training examples")
	}
	if k == 0 {
		return degenerate("no classes")
	}
	if yr != n {
		return &ShapeError{What: "indicator rows", Want: n, Got: yr}
	}
	if net.config.Epochs < 0 {
		return degenerate("negative epoch count %d", net.config.Epochs)
	}

	sizes := make([]int, 0, len(net.config.HiddenLayerSizes)+2)
	sizes = append(sizes, inputDim)
	sizes = append(sizes, net.config.HiddenLayerSizes...)
	sizes = append(sizes, k)
	size, err := ParamCount(sizes)
	if err != nil {
		return err
	}

	var stats utils.TimingStats
	start := time.Now()
	flat := net.initParams(size)
	stats.InitTime = time.Since(start)

	obj := Objective{LayerSizes: sizes, Lambda: net.config.Lambda}
	numBatches := effectiveBatches(n, net.config.NumBatches)
	losses := make([]float64, 0, net.config.Epochs)

	for epoch := 0; epoch < net.config.Epochs; epoch++ {
		epochStart := time.Now()
		var f float64
		for _, batch := range Batches(Permutation(net.rng, n), numBatches) {
			xb, yb := rowsOf(X, batch), rowsOf(Y, batch)

			t := time.Now()
			loss, g, err := obj.LossAndGradient(flat, xb, yb)
			if err != nil {
				return fmt.Errorf("epoch %d: %w", epoch+1, err)
			}
			stats.LossGradTime += time.Since(t)

			t = time.Now()
			floats.AddScaled(flat, -net.config.Alpha, g)
			stats.UpdateTime += time.Since(t)
			f = loss
		}
		losses = append(losses, f)
		stats.EpochTimes = append(stats.EpochTimes, time.Since(epochStart))
		if net.config.Verbose {
			fmt.Fprintf(net.out, "epoch %d, loss = %f\n", epoch+1, f)
		}
	}
	stats.TotalTime = time.Since(start)

	weights, err := Unflatten(flat, sizes)
	if err != nil {
		return err
	}
	net.layerSizes = sizes
	net.weights = weights
	net.labels = NewLabelBinarizer(identity(k)...)
	net.losses = losses
	net.stats = stats
	return nil
}

func (net *Network) initParams(size int) []float64 {
	dist := distuv.Normal{Mu: 0, Sigma: 1, Src: net.rng}
	flat := make([]float64, size)
	for i := range flat {
		flat[i] = initScale * dist.Rand()
	}
	return flat
}

// Predict returns the arg-max output index per row of X.
func (net *Network) Predict(X mat.Matrix) ([]int, error) {
	if net.weights == nil {
		return nil, errNotTrained
	}
	r, c := X.Dims()
	if r == 0 {
		return nil, degenerate("no examples to predict")
	}
	if c != net.layerSizes[0] {
		return nil, &ShapeError{What: "input features", Want: net.layerSizes[0], Got: c}
	}

	out := make([]int, r)
	parallel.Range(r, net.par, func(lo, hi int) {
		z, _ := forward(net.weights, rowRange(X, lo, hi), Sigmoid{})
		for i := lo; i < hi; i++ {
			out[i] = argMax(z.RawRowView(i - lo))
		}
	})
	return out, nil
}

// PredictLabels is Predict mapped through the class vocabulary.
func (net *Network) PredictLabels(X mat.Matrix) ([]int, error) {
	idx, err := net.Predict(X)
	if err != nil {
		return nil, err
	}
	for i, k := range idx {
		idx[i] = net.labels.Label(k)
	}
	return idx, nil
}

// ErrorRate returns the fraction of rows of X whose predicted label differs from y.
func (net *Network) ErrorRate(X mat.Matrix, y []int) (float64, error) {
	pred, err := net.PredictLabels(X)
	if err != nil {
		return 0, err
	}
	if len(y) != len(pred) {
		return 0, &ShapeError{What: "label count", Want: len(pred), Got: len(y)}
	}
	wrong := 0
	for i := range pred {
		if pred[i] != y[i] {
			wrong++
		}
	}
	return float64(wrong) / float64(len(y)), nil
}

// Save writes the flattened weights as text, one value per line.
func (net *Network) Save(w io.Writer) error {
	if net.weights == nil {
		return errNotTrained
	}
	return utils.WriteFlat(w, Flatten(net.weights))
}

// Load replaces the weights with those read from r. The schedule is not part
// of the stream and must match the one the weights were saved with.
func (net *Network) Load(r io.Reader, layerSizes []int, classes []int) error {
	flat, err := utils.ReadFlat(r)
	if err != nil {
		return err
	}
	layers, err := Unflatten(flat, layerSizes)
	if errors.Is(err, ErrShapeMismatch) {
		return fmt.Errorf("%w: %w", utils.ErrPersistenceFormat, err)
	}
	if err != nil {
		return err
	}
	return net.setWeights(layers, classes)
}

func (net *Network) LayerSizes() []int {
	return slices.Clone(net.layerSizes)
}

// Weights returns the trained layers. Callers must not modify them.
func (net *Network) Weights() []LayerParams {
	return net.weights
}

func (net *Network) Classes() []int {
	if net.labels == nil {
		return nil
	}
	return net.labels.Classes()
}

// Losses returns the last mini-batch loss of every epoch of the last Fit.
func (net *Network) Losses() []float64 {
	return slices.Clone(net.losses)
}

func (net *Network) Stats() utils.TimingStats {
	return net.stats
}

func identity(k int) []int {
	classes := make([]int, k)
	for i := range classes {
		classes[i] = i
	}
	return classes
}
