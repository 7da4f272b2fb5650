package model

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"math"
	"os"

	"github.com/fxamacker/cbor/v2"
)

const (
	CheckpointFormat    = "tuner.checkpoint.v1"
	CheckpointMediaType = "application/vnd.absmach.tuner.checkpoint.v1+cbor"
	CheckpointFile      = "model.cbor"
)

var ErrInvalidCheckpoint = errors.New("invalid checkpoint")

// An embedding table alone holds vocabulary x hidden size values, far above
// the decoder's default array limit.
var decMode = func() cbor.DecMode {
	dm, err := cbor.DecOptions{MaxArrayElements: math.MaxInt32}.DecMode()
	if err != nil {
		panic(err)
	}

	return dm
}()

// Checkpoint is the serialized form of a classifier, or of an encoder alone
// when it carries no classifier parameters.
type Checkpoint struct {
	Format         string               `cbor:"format"`
	VocabSize      int                  `cbor:"vocab_size"`
	HiddenSize     int                  `cbor:"hidden_size"`
	SequenceLength int                  `cbor:"sequence_length"`
	Dropout        float64              `cbor:"dropout,omitempty"`
	ClassNames     []string             `cbor:"class_names,omitempty"`
	Params         map[string][]float64 `cbor:"params"`
}

func (ckpt Checkpoint) validate() error {
	if ckpt.Format != CheckpointFormat {
		return fmt.Errorf("%w: unknown format %q", ErrInvalidCheckpoint, ckpt.Format)
	}
	if ckpt.VocabSize <= 0 || ckpt.HiddenSize <= 0 || ckpt.SequenceLength <= 0 {
		return fmt.Errorf("%w: vocabulary %d, hidden size %d and sequence length %d must be positive", ErrInvalidCheckpoint, ckpt.VocabSize, ckpt.HiddenSize, ckpt.SequenceLength)
	}

	return nil
}

func (c *Classifier) Checkpoint(classNames []string) Checkpoint {
	ckpt := Checkpoint{
		Format:         CheckpointFormat,
		VocabSize:      c.pre.VocabSize(),
		HiddenSize:     c.enc.HiddenSize(),
		SequenceLength: c.pre.SequenceLength(),
		Dropout:        c.head.Dropout(),
		ClassNames:     classNames,
		Params:         make(map[string][]float64),
	}
	for _, p := range c.Params() {
		ckpt.Params[p.Name] = p.Value
	}

	return ckpt
}

func EncodeCheckpoint(w io.Writer, ckpt Checkpoint) error {
	return cbor.NewEncoder(w).Encode(ckpt)
}

func DecodeCheckpoint(r io.Reader) (Checkpoint, error) {
	var ckpt Checkpoint
	if err := decMode.NewDecoder(r).Decode(&ckpt); err != nil {
		return Checkpoint{}, fmt.Errorf("%w: %w", ErrInvalidCheckpoint, err)
	}
	if err := ckpt.validate(); err != nil {
		return Checkpoint{}, err
	}

	return ckpt, nil
}

func MarshalCheckpoint(ckpt Checkpoint) ([]byte, error) {
	var buf bytes.Buffer
	if err := EncodeCheckpoint(&buf, ckpt); err != nil {
		return nil, err
	}

	return buf.Bytes(), nil
}

func SaveCheckpoint(path string, ckpt Checkpoint) error {
	data, err := MarshalCheckpoint(ckpt)
	if err != nil {
		return err
	}

	return os.WriteFile(path, data, 0o644)
}

func LoadCheckpoint(path string) (Checkpoint, error) {
	f, err := os.Open(path)
	if err != nil {
		return Checkpoint{}, err
	}
	defer f.Close()

	return DecodeCheckpoint(f)
}

// EncoderFromCheckpoint restores the encoder weights of ckpt.
func EncoderFromCheckpoint(ckpt Checkpoint) (*EmbeddingBag, error) {
	if err := ckpt.validate(); err != nil {
		return nil, err
	}

	e := newEmbeddingBag(ckpt.VocabSize, ckpt.HiddenSize)
	if err := restore(ckpt, e.Params()); err != nil {
		return nil, err
	}

	return e, nil
}

// HeadFromCheckpoint restores the classifier head of ckpt.
func HeadFromCheckpoint(ckpt Checkpoint) (*Head, error) {
	if err := ckpt.validate(); err != nil {
		return nil, err
	}

	h := newHead(ckpt.HiddenSize, ckpt.Dropout)
	if err := restore(ckpt, h.Params()); err != nil {
		return nil, err
	}

	return h, nil
}

func (ckpt Checkpoint) HasHead() bool {
	_, ok := ckpt.Params["classifier/kernel"]

	return ok
}

func restore(ckpt Checkpoint, params []*Param) error {
	for _, p := range params {
		value, ok := ckpt.Params[p.Name]
		if !ok {
			return fmt.Errorf("%w: missing parameter %s", ErrInvalidCheckpoint, p.Name)
		}
		if len(value) != p.Size() {
			return fmt.Errorf("%w: parameter %s has %d values, want %d", ErrShapeMismatch, p.Name, len(value), p.Size())
		}
		copy(p.Value, value)
	}

	return nil
}
