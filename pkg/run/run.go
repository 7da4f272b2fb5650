package run

import (
	"fmt"
	"strings"
	"time"

	"github.com/absmach/tuner/pkg/schedule"
)

type Status uint8

const (
	Pending Status = iota
	Running
	Completed
	Failed
)

func (s Status) String() string {
	switch s {
	case Pending:
		return "Pending"
	case Running:
		return "Running"
	case Completed:
		return "Completed"
	case Failed:
		return "Failed"
	default:
		return "Unknown"
	}
}

func (s Status) MarshalText() ([]byte, error) {
	return []byte(strings.ToLower(s.String())), nil
}

func (s *Status) UnmarshalText(text []byte) error {
	switch strings.ToLower(string(text)) {
	case "pending":
		*s = Pending
	case "running":
		*s = Running
	case "completed":
		*s = Completed
	case "failed":
		*s = Failed
	default:
		return fmt.Errorf("unknown run status %q", text)
	}

	return nil
}

// Config holds every knob of a single fine-tuning run. Nothing here is
// process-wide; two runs with different configs can share a process.
type Config struct {
	Epochs           int      `json:"epochs" toml:"epochs" env:"EPOCHS"`
	BatchSize        int      `json:"batch_size" toml:"batch_size" env:"BATCH_SIZE"`
	PeakLearningRate float64  `json:"peak_learning_rate" toml:"peak_learning_rate" env:"PEAK_LEARNING_RATE"`
	WarmupFraction   float64  `json:"warmup_fraction" toml:"warmup_fraction" env:"WARMUP_FRACTION"`
	ValidationSplit  float64  `json:"validation_split" toml:"validation_split" env:"VALIDATION_SPLIT"`
	Seed             int64    `json:"seed" toml:"seed" env:"SEED"`
	Dropout          float64  `json:"dropout" toml:"dropout" env:"DROPOUT"`
	WeightDecay      float64  `json:"weight_decay" toml:"weight_decay" env:"WEIGHT_DECAY"`
	SequenceLength   int      `json:"sequence_length" toml:"sequence_length" env:"SEQUENCE_LENGTH"`
	EncoderRef       string   `json:"encoder_ref" toml:"encoder_ref" env:"ENCODER_REF"`
	PreprocessorRef  string   `json:"preprocessor_ref" toml:"preprocessor_ref" env:"PREPROCESSOR_REF"`
	WorkDir          string   `json:"work_dir" toml:"work_dir" env:"WORK_DIR"`
	Exclude          []string `json:"exclude" toml:"exclude" env:"EXCLUDE"`
	Workers          int      `json:"workers" toml:"workers" env:"WORKERS"`
	Verbose          bool     `json:"verbose" toml:"verbose" env:"VERBOSE"`
}

func DefaultConfig() Config {
	return Config{
		Epochs:           5,
		BatchSize:        32,
		PeakLearningRate: 3e-5,
		WarmupFraction:   0.1,
		ValidationSplit:  0.2,
		Seed:             42,
		Dropout:          0.1,
		WeightDecay:      0.01,
		SequenceLength:   128,
		WorkDir:          "./runs",
		Exclude:          []string{"unsup"},
		Workers:          8,
	}
}

type EpochMetrics struct {
	Epoch             int           `json:"epoch"`
	Steps             int           `json:"steps"`
	Loss              float64       `json:"loss"`
	BinaryAccuracy    float64       `json:"binary_accuracy"`
	ValLoss           float64       `json:"val_loss"`
	ValBinaryAccuracy float64       `json:"val_binary_accuracy"`
	LearningRate      float64       `json:"learning_rate"`
	Duration          time.Duration `json:"duration"`
}

type History []EpochMetrics

// Series returns the history keyed by metric name, one value per epoch.
func (h History) Series() map[string][]float64 {
	series := map[string][]float64{
		"loss":                make([]float64, len(h)),
		"binary_accuracy":     make([]float64, len(h)),
		"val_loss":            make([]float64, len(h)),
		"val_binary_accuracy": make([]float64, len(h)),
		"learning_rate":       make([]float64, len(h)),
	}
	for i, m := range h {
		series["loss"][i] = m.Loss
		series["binary_accuracy"][i] = m.BinaryAccuracy
		series["val_loss"][i] = m.ValLoss
		series["val_binary_accuracy"][i] = m.ValBinaryAccuracy
		series["learning_rate"][i] = m.LearningRate
	}

	return series
}

type Evaluation struct {
	Loss           float64 `json:"loss"`
	BinaryAccuracy float64 `json:"binary_accuracy"`
	Examples       int     `json:"examples"`
}

type Run struct {
	ID          string          `json:"id"`
	Name        string          `json:"name"`
	Status      Status          `json:"status"`
	ArchivePath string          `json:"archive_path"`
	OutputDir   string          `json:"output_dir,omitempty"`
	Config      Config          `json:"config"`
	Schedule    schedule.Config `json:"schedule"`
	ClassNames  []string        `json:"class_names,omitempty"`
	History     History         `json:"history,omitempty"`
	Evaluation  *Evaluation     `json:"evaluation,omitempty"`
	Error       string          `json:"error,omitempty"`
	StartTime   time.Time       `json:"start_time"`
	FinishTime  time.Time       `json:"finish_time"`
	CreatedAt   time.Time       `json:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at"`
}

type Page struct {
	Offset uint64 `json:"offset"`
	Limit  uint64 `json:"limit"`
	Total  uint64 `json:"total"`
	Runs   []Run  `json:"runs"`
}
