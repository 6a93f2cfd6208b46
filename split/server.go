package split

import (
	"fmt"

	"github.com/tuneinsight/lattigo/v6/core/rlwe"
	"github.com/tuneinsight/lattigo/v6/schemes/ckks"

	"mlp_lib/core/ckkswrapper"
	"mlp_lib/m"
	"mlp_lib/parallel"
)

// Forwarder evaluates the first layer on an encrypted input and returns one
// ciphertext per unit.
type Forwarder interface {
	Forward(ct *rlwe.Ciphertext) ([]*rlwe.Ciphertext, error)
}

// Server holds the plaintext first layer and evaluates it under encryption.
type Server struct {
	kit     *ckkswrapper.ServerKit
	rows    []*rlwe.Plaintext
	bias    []float64
	inDim   int
	workers parallel.Config
}

// Rotations lists the rotations a server needs to sum inDim slots into slot 0.
func Rotations(inDim int) []int {
	var rots []int
	for step := 1; step < inDim; step *= 2 {
		rots = append(rots, step)
	}
	return rots
}

// NewServer encodes every row of layer.W once. kit must carry the keys for
// Rotations(inDim).
func NewServer(layer m.LayerParams, kit *ckkswrapper.ServerKit) (*Server, error) {
	outDim, inDim := layer.W.Dims()
	if layer.B.Len() != outDim {
		return nil, &m.ShapeError{What: "first layer bias", Want: outDim, Got: layer.B.Len()}
	}
	if slots := kit.Params.MaxSlots(); inDim > slots {
		return nil, fmt.Errorf("input width %d exceeds %d slots", inDim, slots)
	}

	s := &Server{
		kit:     kit,
		rows:    make([]*rlwe.Plaintext, outDim),
		bias:    make([]float64, outDim),
		inDim:   inDim,
		workers: parallel.DefaultConfig(),
	}
	s.workers.MinChunkSize = 1
	for j := 0; j < outDim; j++ {
		pt := ckks.NewPlaintext(kit.Params, kit.Params.MaxLevel())
		if err := kit.Encoder.Encode(layer.W.RawRowView(j), pt); err != nil {
			return nil, fmt.Errorf("encode row %d: %w", j, err)
		}
		s.rows[j] = pt
		s.bias[j] = layer.B.AtVec(j)
	}
	return s, nil
}

// SetParallel overrides how units are spread over goroutines.
func (s *Server) SetParallel(cfg parallel.Config) {
	s.workers = cfg
}

// Forward computes W_j·x + b_j into slot 0 of the j-th output ciphertext. The
// remaining slots hold partial sums and carry no meaning.
func (s *Server) Forward(ct *rlwe.Ciphertext) ([]*rlwe.Ciphertext, error) {
	if ct.Level() < 1 {
		return nil, fmt.Errorf("input ciphertext at level %d cannot be rescaled", ct.Level())
	}
	out := make([]*rlwe.Ciphertext, len(s.rows))
	errs := make([]error, len(s.rows))
	parallel.Range(len(s.rows), s.workers, func(lo, hi int) {
		eval := s.kit.GetWorkerEvaluator()
		for j := lo; j < hi; j++ {
			out[j], errs[j] = s.unit(eval, ct, j)
		}
	})
	for j, err := range errs {
		if err != nil {
			return nil, fmt.Errorf("unit %d: %w", j, err)
		}
	}
	return out, nil
}

func (s *Server) unit(eval *ckks.Evaluator, ct *rlwe.Ciphertext, j int) (*rlwe.Ciphertext, error) {
	tmp, err := eval.MulNew(ct, s.rows[j])
	if err != nil {
		return nil, err
	}
	dot := rlwe.NewCiphertext(s.kit.Params, tmp.Degree(), tmp.Level()-1)
	if err := eval.Rescale(tmp, dot); err != nil {
		return nil, err
	}
	for step := 1; step < s.inDim; step *= 2 {
		rot, err := eval.RotateNew(dot, step)
		if err != nil {
			return nil, err
		}
		if dot, err = eval.AddNew(dot, rot); err != nil {
			return nil, err
		}
	}
	return eval.AddNew(dot, s.bias[j])
}
