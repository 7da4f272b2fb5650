package trainer

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/absmach/tuner/pkg/dataset"
	"github.com/absmach/tuner/pkg/model"
	"github.com/absmach/tuner/pkg/optimizer"
	"github.com/absmach/tuner/pkg/schedule"
	"gonum.org/v1/gonum/stat"
)

const (
	probeText  = "this is such an amazing movie!"
	probeWidth = 12
	numSamples = 3
)

func (svc *service) fit(ctx context.Context, r *Run, clf *model.Classifier, opt *optimizer.AdamW, sched schedule.Schedule, sp splits) error {
	step := 0
	for epoch := range r.Config.Epochs {
		begin := time.Now()

		var losses, weights []float64
		correct, seen := 0, 0
		lr := 0.0
		for batch := range sp.train.Batches(epoch) {
			if err := ctx.Err(); err != nil {
				return err
			}
			res, err := clf.TrainStep(batch.Texts, batch.Labels)
			if err != nil {
				return fmt.Errorf("epoch %d step %d: %w", epoch+1, step, err)
			}
			lr = sched.Rate(step)
			norm := opt.Step(lr)
			step++

			losses = append(losses, res.Loss)
			weights = append(weights, float64(res.Size))
			correct += res.Correct
			seen += res.Size

			svc.metrics.Step.With("run_id", r.ID).Set(float64(step))
			svc.metrics.LearningRate.With("run_id", r.ID).Set(lr)
			if r.Config.Verbose {
				svc.logger.Debug("Training step",
					slog.String("run_id", r.ID),
					slog.Int("step", step),
					slog.Float64("loss", res.Loss),
					slog.Float64("learning_rate", lr),
					slog.Float64("grad_norm", norm),
				)
			}
		}

		val, err := evaluate(ctx, clf, sp.val)
		if err != nil {
			return fmt.Errorf("epoch %d validation: %w", epoch+1, err)
		}

		m := EpochMetrics{
			Epoch:             epoch + 1,
			Steps:             step,
			Loss:              stat.Mean(losses, weights),
			ValLoss:           val.Loss,
			ValBinaryAccuracy: val.BinaryAccuracy,
			LearningRate:      lr,
			Duration:          time.Since(begin),
		}
		if seen > 0 {
			m.BinaryAccuracy = float64(correct) / float64(seen)
		}
		r.History = append(r.History, m)
		if err := svc.update(ctx, r); err != nil {
			return err
		}

		svc.metrics.Epoch.With("run_id", r.ID).Set(float64(m.Epoch))
		svc.metrics.Loss.With("run_id", r.ID).Set(m.Loss)
		svc.metrics.BinaryAccuracy.With("run_id", r.ID).Set(m.BinaryAccuracy)
		svc.metrics.ValLoss.With("run_id", r.ID).Set(m.ValLoss)
		svc.metrics.ValBinaryAccuracy.With("run_id", r.ID).Set(m.ValBinaryAccuracy)

		svc.logger.Info("Epoch completed",
			slog.String("run_id", r.ID),
			slog.Group("epoch",
				slog.Int("number", m.Epoch),
				slog.Int("of", r.Config.Epochs),
				slog.Float64("loss", m.Loss),
				slog.Float64("binary_accuracy", m.BinaryAccuracy),
				slog.Float64("val_loss", m.ValLoss),
				slog.Float64("val_binary_accuracy", m.ValBinaryAccuracy),
				slog.Float64("learning_rate", m.LearningRate),
				slog.String("duration", m.Duration.String()),
			),
		)
		svc.publish(ctx, Event{Event: EventEpochCompleted, RunID: r.ID, Status: r.Status, Epoch: &m})
	}

	return nil
}

// evaluate scores ds in order without updating the model. Loss is the mean
// over examples, not over batches.
func evaluate(ctx context.Context, clf *model.Classifier, ds *dataset.Dataset) (Evaluation, error) {
	var losses, weights []float64
	correct, seen := 0, 0
	for batch := range ds.Batches(0) {
		if err := ctx.Err(); err != nil {
			return Evaluation{}, err
		}
		res, err := clf.Evaluate(batch.Texts, batch.Labels)
		if err != nil {
			return Evaluation{}, err
		}
		losses = append(losses, res.Loss)
		weights = append(weights, float64(res.Size))
		correct += res.Correct
		seen += res.Size
	}
	if seen == 0 {
		return Evaluation{}, dataset.ErrNoExamples
	}

	return Evaluation{
		Loss:           stat.Mean(losses, weights),
		BinaryAccuracy: float64(correct) / float64(seen),
		Examples:       seen,
	}, nil
}

type historyExport struct {
	RunID      string               `json:"run_id"`
	ClassNames []string             `json:"class_names"`
	History    map[string][]float64 `json:"history"`
	Epochs     History              `json:"epochs"`
	Evaluation *Evaluation          `json:"evaluation,omitempty"`
}

func export(r Run, clf *model.Classifier) error {
	if err := os.MkdirAll(r.OutputDir, 0o755); err != nil {
		return fmt.Errorf("failed to create output dir: %w", err)
	}

	data, err := json.MarshalIndent(historyExport{
		RunID:      r.ID,
		ClassNames: r.ClassNames,
		History:    r.History.Series(),
		Epochs:     r.History,
		Evaluation: r.Evaluation,
	}, "", "  ")
	if err != nil {
		return err
	}
	if err := os.WriteFile(filepath.Join(r.OutputDir, historyFile), data, 0o644); err != nil {
		return fmt.Errorf("failed to write history: %w", err)
	}

	return model.SaveCheckpoint(filepath.Join(r.OutputDir, model.CheckpointFile), clf.Checkpoint(r.ClassNames))
}

func (svc *service) inspectSamples(r Run, ds *dataset.Dataset) {
	classNames := ds.ClassNames()
	for i, ex := range ds.Take(numSamples) {
		svc.logger.Info("Sample review",
			slog.String("run_id", r.ID),
			slog.Int("index", i),
			slog.String("review", ex.Text),
			slog.Int("label", ex.Label),
			slog.String("class", classNames[ex.Label]),
		)
	}
}

// probe runs a fixed sentence through the untrained model and logs the
// shapes and leading values of every stage.
func (svc *service) probe(r Run, clf *model.Classifier) error {
	in, err := clf.Preprocessor().Preprocess([]string{probeText})
	if err != nil {
		return err
	}
	out, err := clf.Encoder().Encode(in)
	if err != nil {
		return err
	}
	probs, err := clf.Predict([]string{probeText})
	if err != nil {
		return err
	}

	seq := out.SequenceOutput[0]
	svc.logger.Info("Model probe",
		slog.String("run_id", r.ID),
		slog.String("text", probeText),
		slog.Group("preprocessor",
			slog.Any("shape", []int{in.BatchSize(), in.SequenceLength()}),
			slog.Any("input_word_ids", head(in.InputWordIDs[0])),
			slog.Any("input_mask", head(in.InputMask[0])),
			slog.Any("input_type_ids", head(in.InputTypeIDs[0])),
		),
		slog.Group("encoder",
			slog.Any("pooled_output_shape", []int{len(out.PooledOutput), len(out.PooledOutput[0])}),
			slog.Any("pooled_output", head(out.PooledOutput[0])),
			slog.Any("sequence_output_shape", []int{len(out.SequenceOutput), len(seq), len(seq[0])}),
			slog.Any("sequence_output", head(seq[0])),
		),
		slog.Float64("positive_probability", probs[0]),
	)

	return nil
}

func head[T any](s []T) []T {
	return s[:min(len(s), probeWidth)]
}
