package model_test

import (
	"bytes"
	"math"
	"path/filepath"
	"testing"

	"github.com/absmach/tuner/pkg/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTokenize(t *testing.T) {
	cases := []struct {
		desc string
		text string
		want []string
	}{
		{
			desc: "probe sentence",
			text: "this is such an amazing movie!",
			want: []string{"this", "is", "such", "an", "amazing", "movie", "!"},
		},
		{
			desc: "html line breaks and case",
			text: "Great<br />FILM,  truly",
			want: []string{"great", "film", ",", "truly"},
		},
		{
			desc: "empty",
			text: "   ",
			want: nil,
		},
	}

	for _, tc := range cases {
		t.Run(tc.desc, func(t *testing.T) {
			assert.Equal(t, tc.want, model.Tokenize(tc.text))
		})
	}
}

func TestPreprocess(t *testing.T) {
	pre, err := model.NewPreprocessor(model.DefaultVocabSize, 8)
	require.NoError(t, err)

	in, err := pre.Preprocess([]string{
		"this is such an amazing movie!",
		"bad",
	})
	require.NoError(t, err)
	require.Equal(t, 2, in.BatchSize())
	require.Equal(t, 8, in.SequenceLength())

	// Seven tokens truncated to six to leave room for [CLS] and [SEP].
	first := in.InputWordIDs[0]
	assert.Equal(t, model.ClsID, first[0])
	assert.Equal(t, model.SepID, first[7])
	assert.Equal(t, pre.TokenID("amazing"), first[5])
	assert.Equal(t, []int32{1, 1, 1, 1, 1, 1, 1, 1}, in.InputMask[0])

	second := in.InputWordIDs[1]
	assert.Equal(t, []int32{model.ClsID, pre.TokenID("bad"), model.SepID, 0, 0, 0, 0, 0}, second)
	assert.Equal(t, []int32{1, 1, 1, 0, 0, 0, 0, 0}, in.InputMask[1])
	assert.Equal(t, make([]int32, 8), in.InputTypeIDs[1])

	for _, id := range first[1:7] {
		assert.GreaterOrEqual(t, id, int32(1000))
		assert.Less(t, id, int32(model.DefaultVocabSize))
	}

	_, err = model.NewPreprocessor(10, 8)
	assert.ErrorIs(t, err, model.ErrInvalidModel)
	_, err = model.NewPreprocessor(model.DefaultVocabSize, 2)
	assert.ErrorIs(t, err, model.ErrInvalidModel)
}

func TestEncode(t *testing.T) {
	pre, err := model.NewPreprocessor(1100, 16)
	require.NoError(t, err)
	enc, err := model.NewEmbeddingBag(1100, 8, 1)
	require.NoError(t, err)

	in, err := pre.Preprocess([]string{"this is such an amazing movie!"})
	require.NoError(t, err)

	out, err := enc.Encode(in)
	require.NoError(t, err)
	require.Len(t, out.PooledOutput, 1)
	assert.Len(t, out.PooledOutput[0], 8)
	require.Len(t, out.SequenceOutput, 1)
	assert.Len(t, out.SequenceOutput[0], 16)
	assert.Len(t, out.SequenceOutput[0][0], 8)
	for _, v := range out.PooledOutput[0] {
		assert.True(t, v > -1 && v < 1)
	}

	in.InputWordIDs[0][1] = 5000
	_, err = enc.Encode(in)
	assert.ErrorIs(t, err, model.ErrShapeMismatch)

	in.InputMask = in.InputMask[:0]
	_, err = enc.Encode(in)
	assert.ErrorIs(t, err, model.ErrShapeMismatch)
}

func TestBinaryCrossEntropy(t *testing.T) {
	loss, grads, err := model.BinaryCrossEntropy([]float64{0, 0}, []float64{0, 1})
	require.NoError(t, err)
	assert.InDelta(t, math.Ln2, loss, 1e-12)
	assert.InDeltaSlice(t, []float64{0.25, -0.25}, grads, 1e-12)

	loss, _, err = model.BinaryCrossEntropy([]float64{1000, -1000}, []float64{1, 0})
	require.NoError(t, err)
	assert.False(t, math.IsNaN(loss) || math.IsInf(loss, 0))
	assert.InDelta(t, 0, loss, 1e-12)

	loss, _, err = model.BinaryCrossEntropy([]float64{-1000}, []float64{1})
	require.NoError(t, err)
	assert.InDelta(t, 1000, loss, 1e-9)

	_, _, err = model.BinaryCrossEntropy([]float64{1}, nil)
	assert.ErrorIs(t, err, model.ErrShapeMismatch)

	assert.Equal(t, 2, model.CorrectPredictions([]float64{0.3, -2, 0}, []float64{1, 0, 1}))
	assert.InDelta(t, 0.5, model.Sigmoid(0), 1e-12)
	assert.InDelta(t, 1, model.Sigmoid(800), 1e-12)
	assert.InDelta(t, 0, model.Sigmoid(-800), 1e-12)
}

func newClassifier(t *testing.T, dropout float64) *model.Classifier {
	t.Helper()

	pre, err := model.NewPreprocessor(1100, 12)
	require.NoError(t, err)
	enc, err := model.NewEmbeddingBag(1100, 6, 7)
	require.NoError(t, err)
	head, err := model.NewHead(6, dropout, 7)
	require.NoError(t, err)
	c, err := model.NewClassifier(pre, enc, head, 7)
	require.NoError(t, err)

	return c
}

func TestGradientsMatchFiniteDifferences(t *testing.T) {
	c := newClassifier(t, 0)
	texts := []string{"a good film", "a bad film", "good good"}
	labels := []float64{1, 0, 1}

	_, err := c.TrainStep(texts, labels)
	require.NoError(t, err)

	pre := c.Preprocessor().(*model.HashingPreprocessor)
	goodRow := int(pre.TokenID("good")) * 6

	const eps = 1e-6
	for _, p := range c.Params() {
		indices := []int{0, p.Size() - 1}
		if p.Name == "encoder/word_embeddings" {
			indices = []int{goodRow, goodRow + 5}
		}
		for _, i := range indices {
			orig := p.Value[i]

			p.Value[i] = orig + eps
			plus, err := c.Evaluate(texts, labels)
			require.NoError(t, err)
			p.Value[i] = orig - eps
			minus, err := c.Evaluate(texts, labels)
			require.NoError(t, err)
			p.Value[i] = orig

			numeric := (plus.Loss - minus.Loss) / (2 * eps)
			assert.InDelta(t, numeric, p.Grad[i], 1e-6, "%s[%d]", p.Name, i)
		}
	}
}

func TestTrainStepReducesLoss(t *testing.T) {
	c := newClassifier(t, 0.1)
	texts := []string{"wonderful great", "awful boring", "great fun", "boring mess"}
	labels := []float64{1, 0, 1, 0}

	before, err := c.Evaluate(texts, labels)
	require.NoError(t, err)

	for range 200 {
		_, err := c.TrainStep(texts, labels)
		require.NoError(t, err)
		for _, p := range c.Params() {
			for i := range p.Value {
				p.Value[i] -= 0.5 * p.Grad[i]
			}
		}
	}

	after, err := c.Evaluate(texts, labels)
	require.NoError(t, err)
	assert.Less(t, after.Loss, before.Loss)

	probs, err := c.Predict(texts)
	require.NoError(t, err)
	require.Len(t, probs, 4)
	for _, p := range probs {
		assert.True(t, p > 0 && p < 1)
	}
}

func TestNewClassifierShapeMismatch(t *testing.T) {
	pre, err := model.NewPreprocessor(1100, 12)
	require.NoError(t, err)
	enc, err := model.NewEmbeddingBag(1100, 6, 1)
	require.NoError(t, err)
	head, err := model.NewHead(4, 0.1, 1)
	require.NoError(t, err)

	_, err = model.NewClassifier(pre, enc, head, 1)
	assert.ErrorIs(t, err, model.ErrShapeMismatch)

	_, err = model.NewHead(4, 1, 1)
	assert.ErrorIs(t, err, model.ErrInvalidModel)
}

func TestCheckpoint(t *testing.T) {
	c := newClassifier(t, 0.1)
	ckpt := c.Checkpoint([]string{"neg", "pos"})
	assert.True(t, ckpt.HasHead())

	path := filepath.Join(t.TempDir(), model.CheckpointFile)
	require.NoError(t, model.SaveCheckpoint(path, ckpt))

	loaded, err := model.LoadCheckpoint(path)
	require.NoError(t, err)
	assert.Equal(t, []string{"neg", "pos"}, loaded.ClassNames)

	enc, err := model.EncoderFromCheckpoint(loaded)
	require.NoError(t, err)
	head, err := model.HeadFromCheckpoint(loaded)
	require.NoError(t, err)
	restored, err := model.NewClassifier(c.Preprocessor(), enc, head, 1)
	require.NoError(t, err)

	texts := []string{"a fine film", "dull"}
	want, err := c.Logits(texts)
	require.NoError(t, err)
	got, err := restored.Logits(texts)
	require.NoError(t, err)
	assert.Equal(t, want, got)

	delete(loaded.Params, "encoder/pooler/bias")
	_, err = model.EncoderFromCheckpoint(loaded)
	assert.ErrorIs(t, err, model.ErrInvalidCheckpoint)

	loaded.Params["encoder/pooler/bias"] = []float64{1}
	_, err = model.EncoderFromCheckpoint(loaded)
	assert.ErrorIs(t, err, model.ErrShapeMismatch)

	_, err = model.DecodeCheckpoint(bytes.NewReader([]byte("not cbor")))
	assert.ErrorIs(t, err, model.ErrInvalidCheckpoint)
}

func TestCheckpointDefaultSize(t *testing.T) {
	pre, err := model.NewPreprocessor(model.DefaultVocabSize, model.DefaultSequenceLength)
	require.NoError(t, err)
	enc, err := model.NewEmbeddingBag(model.DefaultVocabSize, model.DefaultHiddenSize, 7)
	require.NoError(t, err)
	head, err := model.NewHead(model.DefaultHiddenSize, model.DefaultDropout, 8)
	require.NoError(t, err)
	c, err := model.NewClassifier(pre, enc, head, 9)
	require.NoError(t, err)

	data, err := model.MarshalCheckpoint(c.Checkpoint([]string{"neg", "pos"}))
	require.NoError(t, err)

	loaded, err := model.DecodeCheckpoint(bytes.NewReader(data))
	require.NoError(t, err)
	assert.Equal(t, model.DefaultVocabSize, loaded.VocabSize)
	assert.Equal(t, model.DefaultHiddenSize, loaded.HiddenSize)

	restored, err := model.EncoderFromCheckpoint(loaded)
	require.NoError(t, err)
	assert.Equal(t, enc.Params()[0].Value, restored.Params()[0].Value)
}
