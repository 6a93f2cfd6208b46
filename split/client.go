package split

import (
	"errors"
	"fmt"

	"github.com/tuneinsight/lattigo/v6/core/rlwe"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"

	"mlp_lib/core/ckkswrapper"
	"mlp_lib/m"
)

// Client owns the keys and every layer after the first.
type Client struct {
	he    *ckkswrapper.HeContext
	inDim int
	tail  []m.LayerParams
}

// NewClient expects inDim input features and the layers that follow the
// server's first layer, which may be none.
func NewClient(he *ckkswrapper.HeContext, inDim int, tail []m.LayerParams) *Client {
	return &Client{he: he, inDim: inDim, tail: tail}
}

// Partition splits trained weights into a server and a client sharing he.
func Partition(he *ckkswrapper.HeContext, layers []m.LayerParams) (*Server, *Client, error) {
	if len(layers) == 0 {
		return nil, nil, errors.New("no layers to partition")
	}
	_, inDim := layers[0].W.Dims()
	server, err := NewServer(layers[0], he.GenServerKit(Rotations(inDim)))
	if err != nil {
		return nil, nil, err
	}
	return server, NewClient(he, inDim, layers[1:]), nil
}

func (c *Client) Encrypt(x []float64) (*rlwe.Ciphertext, error) {
	if len(x) != c.inDim {
		return nil, &m.ShapeError{What: "input features", Want: c.inDim, Got: len(x)}
	}
	return c.he.EncryptVector(x)
}

// Logits decrypts the first-layer sums and runs the remaining layers in the
// clear. With no tail the sums are the logits themselves.
func (c *Client) Logits(cts []*rlwe.Ciphertext) ([]float64, error) {
	h := make([]float64, len(cts))
	for j, ct := range cts {
		v, err := c.he.DecryptSlots(ct, 1)
		if err != nil {
			return nil, fmt.Errorf("unit %d: %w", j, err)
		}
		h[j] = v[0]
	}
	if len(c.tail) == 0 {
		return h, nil
	}

	act := m.Sigmoid{}
	for j := range h {
		h[j] = act.Activate(0, j, h[j])
	}
	z, err := m.Forward(c.tail, mat.NewDense(1, len(h), h))
	if err != nil {
		return nil, err
	}
	return z.RawRowView(0), nil
}

// Finish returns the index of the largest logit, lowest index on ties.
func (c *Client) Finish(cts []*rlwe.Ciphertext) (int, error) {
	z, err := c.Logits(cts)
	if err != nil {
		return 0, err
	}
	return floats.MaxIdx(z), nil
}

// Predict classifies one row. Only ciphertexts reach the server.
func Predict(c *Client, server Forwarder, x []float64) (int, error) {
	ct, err := c.Encrypt(x)
	if err != nil {
		return 0, err
	}
	cts, err := server.Forward(ct)
	if err != nil {
		return 0, fmt.Errorf("server forward: %w", err)
	}
	return c.Finish(cts)
}

// PredictAll runs Predict on every row of X.
func PredictAll(c *Client, server Forwarder, X mat.Matrix) ([]int, error) {
	r, _ := X.Dims()
	out := make([]int, r)
	for i := 0; i < r; i++ {
		k, err := Predict(c, server, mat.Row(nil, i, X))
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", i, err)
		}
		out[i] = k
	}
	return out, nil
}
