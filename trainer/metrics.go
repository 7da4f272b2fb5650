package trainer

import (
	"github.com/absmach/tuner/pkg/prometheus"
	"github.com/go-kit/kit/metrics"
	"github.com/go-kit/kit/metrics/discard"
)

// TrainingMetrics are the gauges updated while a run trains. Every gauge
// is labeled with run_id.
type TrainingMetrics struct {
	Loss              metrics.Gauge
	BinaryAccuracy    metrics.Gauge
	ValLoss           metrics.Gauge
	ValBinaryAccuracy metrics.Gauge
	LearningRate      metrics.Gauge
	Epoch             metrics.Gauge
	Step              metrics.Gauge
	CPUPercent        metrics.Gauge
	MemoryBytes       metrics.Gauge
}

// NewTrainingMetrics registers the gauges with the default Prometheus
// registry. Call it once per process.
func NewTrainingMetrics(namespace string) TrainingMetrics {
	const subsystem = "training"

	return TrainingMetrics{
		Loss:              prometheus.MakeGauge(namespace, subsystem, "loss", "Mean training loss of the last completed epoch.", "run_id"),
		BinaryAccuracy:    prometheus.MakeGauge(namespace, subsystem, "binary_accuracy", "Training accuracy of the last completed epoch.", "run_id"),
		ValLoss:           prometheus.MakeGauge(namespace, subsystem, "val_loss", "Validation loss of the last completed epoch.", "run_id"),
		ValBinaryAccuracy: prometheus.MakeGauge(namespace, subsystem, "val_binary_accuracy", "Validation accuracy of the last completed epoch.", "run_id"),
		LearningRate:      prometheus.MakeGauge(namespace, subsystem, "learning_rate", "Learning rate of the last optimizer step.", "run_id"),
		Epoch:             prometheus.MakeGauge(namespace, subsystem, "epoch", "Number of completed epochs.", "run_id"),
		Step:              prometheus.MakeGauge(namespace, subsystem, "step", "Number of optimizer steps taken.", "run_id"),
		CPUPercent:        prometheus.MakeGauge(namespace, subsystem, "cpu_percent", "CPU usage of the training process.", "run_id"),
		MemoryBytes:       prometheus.MakeGauge(namespace, subsystem, "memory_bytes", "Resident memory of the training process.", "run_id"),
	}
}

func NopTrainingMetrics() TrainingMetrics {
	return TrainingMetrics{
		Loss:              discard.NewGauge(),
		BinaryAccuracy:    discard.NewGauge(),
		ValLoss:           discard.NewGauge(),
		ValBinaryAccuracy: discard.NewGauge(),
		LearningRate:      discard.NewGauge(),
		Epoch:             discard.NewGauge(),
		Step:              discard.NewGauge(),
		CPUPercent:        discard.NewGauge(),
		MemoryBytes:       discard.NewGauge(),
	}
}
