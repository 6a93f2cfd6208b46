// Package split runs a trained network with its first layer evaluated on
// CKKS-encrypted inputs by a server that never sees the plaintext.
package split

import (
	"encoding/gob"
	"errors"
	"fmt"
	"io"

	"github.com/tuneinsight/lattigo/v6/core/rlwe"
	"github.com/tuneinsight/lattigo/v6/schemes/ckks"

	"mlp_lib/core/ckkswrapper"
	"mlp_lib/m"
)

func init() {
	gob.Register(ForwardPayload{})
	gob.Register(ActivationsPayload{})
	gob.Register(KeysPayload{})
}

// MessageType defines message types for the split inference protocol
type MessageType int

const (
	MsgKeys MessageType = iota
	MsgForwardInput
	MsgActivations
	MsgDone
	MsgError
)

// Message represents a message in the split inference protocol
type Message struct {
	Type    MessageType
	Payload interface{}
}

// ForwardPayload carries one encrypted input row.
type ForwardPayload struct {
	BatchID    int
	Ciphertext []byte
	Level      int
	ScaleFloat float64
}

// KeysPayload carries the CKKS parameters and the public evaluation keys.
type KeysPayload struct {
	Params []byte
	Keys   []byte
}

// ActivationsPayload carries one ciphertext per first-layer unit.
type ActivationsPayload struct {
	BatchID     int
	Ciphertexts [][]byte
}

// Protocol handles split inference communication
type Protocol struct {
	encoder *gob.Encoder
	decoder *gob.Decoder
}

func NewProtocol(r io.Reader, w io.Writer) *Protocol {
	p := &Protocol{}
	if w != nil {
		p.encoder = gob.NewEncoder(w)
	}
	if r != nil {
		p.decoder = gob.NewDecoder(r)
	}
	return p
}

func (p *Protocol) Send(msg *Message) error {
	return p.encoder.Encode(msg)
}

func (p *Protocol) Receive() (*Message, error) {
	var msg Message
	if err := p.decoder.Decode(&msg); err != nil {
		return nil, err
	}
	return &msg, nil
}

// SendKeys sends everything the server needs to evaluate on ciphertexts.
func (p *Protocol) SendKeys(params ckks.Parameters, evk *rlwe.MemEvaluationKeySet) error {
	pb, err := params.MarshalBinary()
	if err != nil {
		return fmt.Errorf("marshal parameters: %w", err)
	}
	kb, err := evk.MarshalBinary()
	if err != nil {
		return fmt.Errorf("marshal evaluation keys: %w", err)
	}
	return p.Send(&Message{Type: MsgKeys, Payload: KeysPayload{Params: pb, Keys: kb}})
}

// ReceiveKeys builds a server kit from the peer's keys.
func (p *Protocol) ReceiveKeys() (*ckkswrapper.ServerKit, error) {
	msg, err := p.receive(MsgKeys)
	if err != nil {
		return nil, err
	}
	payload, ok := msg.Payload.(KeysPayload)
	if !ok {
		return nil, errors.New("invalid keys payload type")
	}
	var params ckks.Parameters
	if err := params.UnmarshalBinary(payload.Params); err != nil {
		return nil, fmt.Errorf("unmarshal parameters: %w", err)
	}
	evk := new(rlwe.MemEvaluationKeySet)
	if err := evk.UnmarshalBinary(payload.Keys); err != nil {
		return nil, fmt.Errorf("unmarshal evaluation keys: %w", err)
	}
	return ckkswrapper.NewServerKit(params, evk), nil
}

// SendForward sends an encrypted input row
func (p *Protocol) SendForward(batchID int, ct *rlwe.Ciphertext) error {
	b, err := ct.MarshalBinary()
	if err != nil {
		return fmt.Errorf("marshal ciphertext: %w", err)
	}
	return p.Send(&Message{
		Type: MsgForwardInput,
		Payload: ForwardPayload{
			BatchID:    batchID,
			Ciphertext: b,
			Level:      ct.Level(),
			ScaleFloat: ct.Scale.Float64(),
		},
	})
}

// SendActivations sends the server's per-unit ciphertexts
func (p *Protocol) SendActivations(batchID int, cts []*rlwe.Ciphertext) error {
	payload := ActivationsPayload{BatchID: batchID, Ciphertexts: make([][]byte, len(cts))}
	for i, ct := range cts {
		b, err := ct.MarshalBinary()
		if err != nil {
			return fmt.Errorf("marshal ciphertext %d: %w", i, err)
		}
		payload.Ciphertexts[i] = b
	}
	return p.Send(&Message{Type: MsgActivations, Payload: payload})
}

// SendDone signals completion
func (p *Protocol) SendDone() error {
	return p.Send(&Message{Type: MsgDone})
}

// SendError sends an error message
func (p *Protocol) SendError(err error) error {
	return p.Send(&Message{
		Type:    MsgError,
		Payload: err.Error(),
	})
}

// receive returns io.EOF after a done message and the remote error text after
// an error message.
func (p *Protocol) receive(want MessageType) (*Message, error) {
	msg, err := p.Receive()
	if err != nil {
		return nil, err
	}
	switch msg.Type {
	case MsgError:
		return nil, fmt.Errorf("remote error: %v", msg.Payload)
	case MsgDone:
		return nil, io.EOF
	case want:
		return msg, nil
	}
	return nil, fmt.Errorf("expected message %d, got %d", want, msg.Type)
}

// ReceiveForward receives an encrypted input row
func (p *Protocol) ReceiveForward() (int, *rlwe.Ciphertext, error) {
	msg, err := p.receive(MsgForwardInput)
	if err != nil {
		return 0, nil, err
	}
	payload, ok := msg.Payload.(ForwardPayload)
	if !ok {
		return 0, nil, errors.New("invalid forward payload type")
	}
	ct := new(rlwe.Ciphertext)
	if err := ct.UnmarshalBinary(payload.Ciphertext); err != nil {
		return 0, nil, fmt.Errorf("unmarshal ciphertext: %w", err)
	}
	return payload.BatchID, ct, nil
}

// ReceiveActivations receives the server's per-unit ciphertexts
func (p *Protocol) ReceiveActivations() (int, []*rlwe.Ciphertext, error) {
	msg, err := p.receive(MsgActivations)
	if err != nil {
		return 0, nil, err
	}
	payload, ok := msg.Payload.(ActivationsPayload)
	if !ok {
		return 0, nil, errors.New("invalid activations payload type")
	}
	cts := make([]*rlwe.Ciphertext, len(payload.Ciphertexts))
	for i, b := range payload.Ciphertexts {
		cts[i] = new(rlwe.Ciphertext)
		if err := cts[i].UnmarshalBinary(b); err != nil {
			return 0, nil, fmt.Errorf("unmarshal ciphertext %d: %w", i, err)
		}
	}
	return payload.BatchID, cts, nil
}

// Serve answers forward requests with f until the peer sends done or the
// stream ends. A failed evaluation is reported to the peer and ends the loop.
func Serve(p *Protocol, f Forwarder) error {
	for {
		id, ct, err := p.ReceiveForward()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return err
		}
		cts, err := f.Forward(ct)
		if err != nil {
			if sendErr := p.SendError(err); sendErr != nil {
				return errors.Join(err, sendErr)
			}
			return err
		}
		if err := p.SendActivations(id, cts); err != nil {
			return err
		}
	}
}

// ServeLayer waits for the peer's keys, then serves layer until done.
func ServeLayer(p *Protocol, layer m.LayerParams) error {
	kit, err := p.ReceiveKeys()
	if err != nil {
		return fmt.Errorf("receiving keys: %w", err)
	}
	server, err := NewServer(layer, kit)
	if err != nil {
		if sendErr := p.SendError(err); sendErr != nil {
			return errors.Join(err, sendErr)
		}
		return err
	}
	return Serve(p, server)
}

// Remote is a Forwarder backed by a server on the other end of a Protocol.
// It is not safe for concurrent use.
type Remote struct {
	p    *Protocol
	next int
}

func NewRemote(p *Protocol) *Remote {
	return &Remote{p: p}
}

// Connect sends the client's evaluation keys and returns the remote server.
func Connect(p *Protocol, c *Client) (*Remote, error) {
	if err := p.SendKeys(c.he.Params, c.he.GenEvaluationKeys(Rotations(c.inDim))); err != nil {
		return nil, err
	}
	return NewRemote(p), nil
}

func (r *Remote) Forward(ct *rlwe.Ciphertext) ([]*rlwe.Ciphertext, error) {
	id := r.next
	r.next++
	if err := r.p.SendForward(id, ct); err != nil {
		return nil, err
	}
	got, cts, err := r.p.ReceiveActivations()
	if err != nil {
		return nil, err
	}
	if got != id {
		return nil, fmt.Errorf("response for request %d, want %d", got, id)
	}
	return cts, nil
}

// Close tells the server no more requests follow.
func (r *Remote) Close() error {
	return r.p.SendDone()
}
