package model

import (
	"errors"
	"fmt"
	"strings"
	"unicode"

	"github.com/cespare/xxhash/v2"
)

// Special token ids, matching the uncased BERT vocabulary.
const (
	PadID int32 = 0
	UnkID int32 = 100
	ClsID int32 = 101
	SepID int32 = 102

	// Ids below reservedIDs are never produced by hashing.
	reservedIDs = 1000

	DefaultVocabSize      = 30522
	DefaultSequenceLength = 128
)

var (
	ErrShapeMismatch = errors.New("shape mismatch")
	ErrInvalidModel  = errors.New("invalid model configuration")
)

// Inputs is the preprocessed form of a batch of texts, each row padded to
// the sequence length.
type Inputs struct {
	InputWordIDs [][]int32 `json:"input_word_ids"`
	InputMask    [][]int32 `json:"input_mask"`
	InputTypeIDs [][]int32 `json:"input_type_ids"`
}

func (in Inputs) BatchSize() int {
	return len(in.InputWordIDs)
}

func (in Inputs) SequenceLength() int {
	if len(in.InputWordIDs) == 0 {
		return 0
	}

	return len(in.InputWordIDs[0])
}

type Preprocessor interface {
	Preprocess(texts []string) (Inputs, error)
	VocabSize() int
	SequenceLength() int
}

// HashingPreprocessor lowercases text, splits it on whitespace and
// punctuation and maps every token to a vocabulary id by hashing.
type HashingPreprocessor struct {
	vocabSize int
	seqLen    int
}

var _ Preprocessor = (*HashingPreprocessor)(nil)

func NewPreprocessor(vocabSize, seqLen int) (*HashingPreprocessor, error) {
	if vocabSize <= reservedIDs {
		return nil, fmt.Errorf("%w: vocabulary size must exceed %d, got %d", ErrInvalidModel, reservedIDs, vocabSize)
	}
	if seqLen < 3 {
		return nil, fmt.Errorf("%w: sequence length must be at least 3, got %d", ErrInvalidModel, seqLen)
	}

	return &HashingPreprocessor{vocabSize: vocabSize, seqLen: seqLen}, nil
}

func (p *HashingPreprocessor) VocabSize() int {
	return p.vocabSize
}

func (p *HashingPreprocessor) SequenceLength() int {
	return p.seqLen
}

func (p *HashingPreprocessor) Preprocess(texts []string) (Inputs, error) {
	in := Inputs{
		InputWordIDs: make([][]int32, len(texts)),
		InputMask:    make([][]int32, len(texts)),
		InputTypeIDs: make([][]int32, len(texts)),
	}

	for i, text := range texts {
		ids := make([]int32, p.seqLen)
		mask := make([]int32, p.seqLen)

		tokens := Tokenize(text)
		tokens = tokens[:min(len(tokens), p.seqLen-2)]

		ids[0] = ClsID
		for j, tok := range tokens {
			ids[j+1] = p.TokenID(tok)
		}
		ids[len(tokens)+1] = SepID
		for j := range len(tokens) + 2 {
			mask[j] = 1
		}

		in.InputWordIDs[i] = ids
		in.InputMask[i] = mask
		in.InputTypeIDs[i] = make([]int32, p.seqLen)
	}

	return in, nil
}

func (p *HashingPreprocessor) TokenID(token string) int32 {
	if token == "" {
		return UnkID
	}
	span := uint64(p.vocabSize - reservedIDs)

	return int32(reservedIDs + xxhash.Sum64String(token)%span)
}

// Tokenize lowercases text and splits it into words and single punctuation
// marks. HTML line breaks are treated as whitespace.
func Tokenize(text string) []string {
	text = strings.ToLower(text)
	text = strings.ReplaceAll(text, "<br />", " ")
	text = strings.ReplaceAll(text, "<br/>", " ")

	var tokens []string
	var word strings.Builder
	flush := func() {
		if word.Len() > 0 {
			tokens = append(tokens, word.String())
			word.Reset()
		}
	}

	for _, r := range text {
		switch {
		case unicode.IsSpace(r) || unicode.IsControl(r):
			flush()
		case unicode.IsPunct(r) || unicode.IsSymbol(r):
			flush()
			tokens = append(tokens, string(r))
		default:
			word.WriteRune(r)
		}
	}
	flush()

	return tokens
}
