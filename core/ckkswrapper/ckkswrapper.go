// Package ckkswrapper bundles the CKKS parameters, keys and codecs that a
// split-inference client owns, and the evaluation kit it hands to the server.
package ckkswrapper

import (
	"fmt"
	"slices"

	"github.com/tuneinsight/lattigo/v6/core/rlwe"
	"github.com/tuneinsight/lattigo/v6/schemes/ckks"
)

// DefaultLogN is the ring degree used by NewHeContext.
const DefaultLogN = 13

// HeContext holds everything the key owner needs. It must not be shipped to
// the server: it carries the secret key.
type HeContext struct {
	Params    ckks.Parameters
	Encoder   *ckks.Encoder
	Encryptor *rlwe.Encryptor
	Decryptor *rlwe.Decryptor

	kgen *rlwe.KeyGenerator
	sk   *rlwe.SecretKey
	pk   *rlwe.PublicKey
	rlk  *rlwe.RelinearizationKey
}

// ServerKit is the public evaluation material for the server side.
type ServerKit struct {
	Params    ckks.Parameters
	Encoder   *ckks.Encoder
	Evaluator *ckks.Evaluator
}

func NewHeContext() *HeContext {
	return NewHeContextWithLogN(DefaultLogN)
}

// NewHeContextWithLogN generates fresh keys for a ring of degree 2^logN. It
// panics if the parameters are rejected.
func NewHeContextWithLogN(logN int) *HeContext {
	h, err := newHeContext(logN)
	if err != nil {
		panic(err)
	}
	return h
}

func newHeContext(logN int) (*HeContext, error) {
	params, err := ckks.NewParametersFromLiteral(ckks.ParametersLiteral{
		LogN:            logN,
		LogQ:            []int{60, 40, 40, 40},
		LogP:            []int{61},
		LogDefaultScale: 40,
	})
	if err != nil {
		return nil, fmt.Errorf("ckks parameters for logN=%d: %w", logN, err)
	}
	kgen := rlwe.NewKeyGenerator(params)
	sk, pk := kgen.GenKeyPairNew()
	return &HeContext{
		Params:    params,
		Encoder:   ckks.NewEncoder(params),
		Encryptor: rlwe.NewEncryptor(params, pk),
		Decryptor: rlwe.NewDecryptor(params, sk),
		kgen:      kgen,
		sk:        sk,
		pk:        pk,
		rlk:       kgen.GenRelinearizationKeyNew(sk),
	}, nil
}

// GenEvaluationKeys returns the relinearization key and one Galois key per
// distinct rotation in rots. None of it allows decryption.
func (h *HeContext) GenEvaluationKeys(rots []int) *rlwe.MemEvaluationKeySet {
	rots = slices.Clone(rots)
	slices.Sort(rots)
	rots = slices.Compact(rots)

	gks := h.kgen.GenGaloisKeysNew(h.Params.GaloisElements(rots), h.sk)
	return rlwe.NewMemEvaluationKeySet(h.rlk, gks...)
}

func (h *HeContext) GenServerKit(rots []int) *ServerKit {
	return NewServerKit(h.Params, h.GenEvaluationKeys(rots))
}

// NewServerKit builds a kit from keys received from the key owner.
func NewServerKit(params ckks.Parameters, evk rlwe.EvaluationKeySet) *ServerKit {
	return &ServerKit{
		Params:    params,
		Encoder:   ckks.NewEncoder(params),
		Evaluator: ckks.NewEvaluator(params, evk),
	}
}

// GetWorkerEvaluator returns an evaluator sharing the kit's keys that is safe
// to use from another goroutine.
func (k *ServerKit) GetWorkerEvaluator() *ckks.Evaluator {
	return k.Evaluator.ShallowCopy()
}

// EncryptVector packs values into the first slots of a fresh ciphertext.
func (h *HeContext) EncryptVector(values []float64) (*rlwe.Ciphertext, error) {
	slots := h.Params.MaxSlots()
	if len(values) > slots {
		return nil, fmt.Errorf("vector of %d values does not fit in %d slots", len(values), slots)
	}
	pt := ckks.NewPlaintext(h.Params, h.Params.MaxLevel())
	if err := h.Encoder.Encode(values, pt); err != nil {
		return nil, fmt.Errorf("encode: %w", err)
	}
	return h.Encryptor.EncryptNew(pt)
}

// DecryptSlots returns the real parts of the first n slots of ct.
func (h *HeContext) DecryptSlots(ct *rlwe.Ciphertext, n int) ([]float64, error) {
	decoded := make([]float64, h.Params.MaxSlots())
	if err := h.Encoder.Decode(h.Decryptor.DecryptNew(ct), decoded); err != nil {
		return nil, fmt.Errorf("decode: %w", err)
	}
	return decoded[:n], nil
}
