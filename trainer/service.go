package trainer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"time"

	"github.com/0x6flab/namegenerator"
	"github.com/absmach/tuner/pkg/archive"
	"github.com/absmach/tuner/pkg/dataset"
	pkgerrors "github.com/absmach/tuner/pkg/errors"
	"github.com/absmach/tuner/pkg/hub"
	"github.com/absmach/tuner/pkg/model"
	"github.com/absmach/tuner/pkg/monitoring"
	"github.com/absmach/tuner/pkg/mqtt"
	"github.com/absmach/tuner/pkg/optimizer"
	"github.com/absmach/tuner/pkg/run"
	"github.com/absmach/tuner/pkg/schedule"
	"github.com/absmach/tuner/pkg/storage"
	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
)

const (
	dataDir     = "data"
	trainDir    = "train"
	testDir     = "test"
	historyFile = "history.json"

	defMonitorInterval = 5 * time.Second
)

var ErrClassMismatch = errors.New("test classes do not match training classes")

type service struct {
	runs      storage.RunRepository
	extractor archive.Extractor
	loader    dataset.Loader
	hub       hub.Hub
	publisher mqtt.Publisher
	metrics   TrainingMetrics
	logger    *slog.Logger
	names     namegenerator.NameGenerator

	monitorInterval time.Duration
}

type Option func(*service)

// WithMonitorInterval sets how often resource usage is sampled during a run.
func WithMonitorInterval(d time.Duration) Option {
	return func(svc *service) {
		svc.monitorInterval = d
	}
}

func NewService(runs storage.RunRepository, extractor archive.Extractor, loader dataset.Loader, h hub.Hub, publisher mqtt.Publisher, tm TrainingMetrics, logger *slog.Logger, opts ...Option) Service {
	svc := &service{
		runs:            runs,
		extractor:       extractor,
		loader:          loader,
		hub:             h,
		publisher:       publisher,
		metrics:         tm,
		logger:          logger,
		names:           namegenerator.NewGenerator(),
		monitorInterval: defMonitorInterval,
	}
	for _, opt := range opts {
		opt(svc)
	}

	return svc
}

func (svc *service) Train(ctx context.Context, archivePath string, cfg RunConfig) (Run, error) {
	if err := validateRunConfig(cfg); err != nil {
		return Run{}, err
	}
	if _, err := os.Stat(archivePath); err != nil {
		return Run{}, fmt.Errorf("failed to open archive: %w", err)
	}

	now := time.Now().UTC()
	id := uuid.NewString()
	r := Run{
		ID:          id,
		Name:        svc.names.Generate(),
		Status:      run.Pending,
		ArchivePath: archivePath,
		OutputDir:   filepath.Join(cfg.WorkDir, id),
		Config:      cfg,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if _, err := svc.runs.Create(ctx, r); err != nil {
		return Run{}, err
	}

	r, err := svc.train(ctx, r)
	if err != nil {
		return svc.fail(ctx, r, err)
	}

	return r, nil
}

func (svc *service) fail(ctx context.Context, r Run, cause error) (Run, error) {
	// Record the failure even when cause is the caller canceling ctx.
	ctx = context.WithoutCancel(ctx)

	r.Status = run.Failed
	r.Error = cause.Error()
	r.FinishTime = time.Now().UTC()
	r.UpdatedAt = r.FinishTime
	if err := svc.runs.Update(ctx, r); err != nil {
		return r, errors.Join(cause, err)
	}
	svc.publish(ctx, Event{Event: EventRunFailed, RunID: r.ID, Status: r.Status, Error: r.Error})

	return r, cause
}

func (svc *service) update(ctx context.Context, r *Run) error {
	r.UpdatedAt = time.Now().UTC()

	return svc.runs.Update(ctx, *r)
}

type splits struct {
	train, val, test *dataset.Dataset
}

func (svc *service) train(ctx context.Context, r Run) (Run, error) {
	cfg := r.Config

	r.Status = run.Running
	r.StartTime = time.Now().UTC()
	if err := svc.update(ctx, &r); err != nil {
		return r, err
	}
	svc.publish(ctx, Event{Event: EventRunStarted, RunID: r.ID, Status: r.Status})

	dataPath := filepath.Join(r.OutputDir, dataDir)
	if err := svc.extractor.Extract(ctx, r.ArchivePath, dataPath); err != nil {
		return r, err
	}
	root, err := dataset.Locate(dataPath)
	if err != nil {
		return r, err
	}

	sp, err := svc.loadSplits(ctx, root, cfg)
	if err != nil {
		return r, err
	}
	r.ClassNames = sp.train.ClassNames()
	svc.inspectSamples(r, sp.train)

	clf, err := svc.buildClassifier(ctx, cfg)
	if err != nil {
		return r, err
	}
	if err := svc.probe(r, clf); err != nil {
		return r, err
	}

	sched, err := schedule.FromEpochs(cfg.PeakLearningRate, sp.train.NumBatches(), cfg.Epochs, cfg.WarmupFraction)
	if err != nil {
		return r, err
	}
	r.Schedule = sched.Config()
	if err := svc.update(ctx, &r); err != nil {
		return r, err
	}

	optCfg := optimizer.DefaultConfig()
	optCfg.WeightDecay = cfg.WeightDecay
	opt, err := optimizer.NewAdamW(clf.Params(), optCfg)
	if err != nil {
		return r, err
	}

	stop, wait := svc.startMonitor(ctx, r)
	err = svc.fit(ctx, &r, clf, opt, sched, sp)
	stop()
	summary := wait()
	svc.logger.Info("Training resource usage",
		slog.String("run_id", r.ID),
		slog.Float64("avg_cpu_percent", summary.AvgCPUPercent),
		slog.Float64("max_cpu_percent", summary.MaxCPUPercent),
		slog.Uint64("max_memory_bytes", summary.MaxMemoryBytes),
		slog.Int("samples", summary.SampleCount),
	)
	if err != nil {
		return r, err
	}

	eval, err := evaluate(ctx, clf, sp.test)
	if err != nil {
		return r, err
	}
	r.Evaluation = &eval
	svc.logger.Info("Test evaluation",
		slog.String("run_id", r.ID),
		slog.Float64("loss", eval.Loss),
		slog.Float64("accuracy", eval.BinaryAccuracy),
		slog.Int("examples", eval.Examples),
	)

	if err := export(r, clf); err != nil {
		return r, err
	}

	r.Status = run.Completed
	r.FinishTime = time.Now().UTC()
	if err := svc.update(ctx, &r); err != nil {
		return r, err
	}
	svc.publish(ctx, Event{Event: EventRunCompleted, RunID: r.ID, Status: r.Status, Evaluation: r.Evaluation})

	return r, nil
}

func (svc *service) loadSplits(ctx context.Context, root string, cfg RunConfig) (splits, error) {
	opts := dataset.Options{
		BatchSize:       cfg.BatchSize,
		ValidationSplit: cfg.ValidationSplit,
		Seed:            cfg.Seed,
		Shuffle:         true,
		Exclude:         cfg.Exclude,
		Workers:         cfg.Workers,
	}
	trainPath := filepath.Join(root, trainDir)

	trainOpts := opts
	trainOpts.Subset = dataset.SubsetTraining
	train, err := svc.loader.Load(ctx, trainPath, trainOpts)
	if err != nil {
		return splits{}, fmt.Errorf("failed to load training split: %w", err)
	}

	valOpts := opts
	valOpts.Subset = dataset.SubsetValidation
	val, err := svc.loader.Load(ctx, trainPath, valOpts)
	if err != nil {
		return splits{}, fmt.Errorf("failed to load validation split: %w", err)
	}

	testOpts := opts
	testOpts.ValidationSplit = 0
	testOpts.Shuffle = false
	test, err := svc.loader.Load(ctx, filepath.Join(root, testDir), testOpts)
	if err != nil {
		return splits{}, fmt.Errorf("failed to load test split: %w", err)
	}
	if !slices.Equal(train.ClassNames(), test.ClassNames()) {
		return splits{}, fmt.Errorf("%w: %v and %v", ErrClassMismatch, train.ClassNames(), test.ClassNames())
	}

	svc.logger.Info("Loaded dataset",
		slog.Any("class_names", train.ClassNames()),
		slog.Int("train", train.Len()),
		slog.Int("validation", val.Len()),
		slog.Int("test", test.Len()),
		slog.Int("steps_per_epoch", train.NumBatches()),
	)

	return splits{train: train, val: val, test: test}, nil
}

// buildClassifier assembles the preprocessor, the encoder (pulled from the
// hub when a reference is configured) and a fresh classification head.
func (svc *service) buildClassifier(ctx context.Context, cfg RunConfig) (*model.Classifier, error) {
	seed := uint64(cfg.Seed)
	vocab, seqLen := model.DefaultVocabSize, cfg.SequenceLength

	if cfg.PreprocessorRef != "" {
		ckpt, err := svc.hub.Fetch(ctx, cfg.PreprocessorRef)
		if err != nil {
			return nil, fmt.Errorf("failed to fetch preprocessor %s: %w", cfg.PreprocessorRef, err)
		}
		vocab, seqLen = ckpt.VocabSize, ckpt.SequenceLength
	}

	var enc *model.EmbeddingBag
	switch cfg.EncoderRef {
	case "":
		e, err := model.NewEmbeddingBag(vocab, model.DefaultHiddenSize, seed)
		if err != nil {
			return nil, err
		}
		enc = e
	default:
		ckpt, err := svc.hub.Fetch(ctx, cfg.EncoderRef)
		if err != nil {
			return nil, fmt.Errorf("failed to fetch encoder %s: %w", cfg.EncoderRef, err)
		}
		if enc, err = model.EncoderFromCheckpoint(ckpt); err != nil {
			return nil, err
		}
		if cfg.PreprocessorRef == "" {
			vocab = ckpt.VocabSize
		}
		svc.logger.Info("Loaded encoder", slog.String("ref", cfg.EncoderRef), slog.Int("hidden_size", enc.HiddenSize()))
	}
	if enc.VocabSize() != vocab {
		return nil, fmt.Errorf("%w: encoder vocabulary %d does not match preprocessor vocabulary %d", model.ErrShapeMismatch, enc.VocabSize(), vocab)
	}

	pre, err := model.NewPreprocessor(vocab, seqLen)
	if err != nil {
		return nil, err
	}
	head, err := model.NewHead(enc.HiddenSize(), cfg.Dropout, seed+1)
	if err != nil {
		return nil, err
	}

	return model.NewClassifier(pre, enc, head, seed+2)
}

func (svc *service) startMonitor(ctx context.Context, r Run) (context.CancelFunc, func() monitoring.Summary) {
	mctx, cancel := context.WithCancel(ctx)

	mon, err := monitoring.NewSelfMonitor(monitoring.DefaultHistorySize)
	if err != nil {
		svc.logger.Warn("resource monitoring disabled", slog.Any("error", err))

		return cancel, func() monitoring.Summary { return monitoring.Summary{} }
	}

	g, gctx := errgroup.WithContext(mctx)
	g.Go(func() error {
		return mon.Start(gctx, svc.monitorInterval, func(s monitoring.Sample) {
			svc.metrics.CPUPercent.With("run_id", r.ID).Set(s.CPUPercent)
			svc.metrics.MemoryBytes.With("run_id", r.ID).Set(float64(s.MemoryBytes))
		})
	})

	return cancel, func() monitoring.Summary {
		if err := g.Wait(); err != nil {
			svc.logger.Warn("resource monitoring stopped", slog.Any("error", err))
		}

		return mon.Summary()
	}
}

func (svc *service) GetRun(ctx context.Context, id string) (Run, error) {
	return svc.runs.Get(ctx, id)
}

func (svc *service) ListRuns(ctx context.Context, offset, limit uint64) (RunPage, error) {
	runs, total, err := svc.runs.List(ctx, offset, limit)
	if err != nil {
		return RunPage{}, err
	}

	return RunPage{
		Offset: offset,
		Limit:  limit,
		Total:  total,
		Runs:   runs,
	}, nil
}

func (svc *service) GetHistory(ctx context.Context, id string) (History, error) {
	r, err := svc.runs.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if r.Status == run.Pending {
		return nil, pkgerrors.ErrRunNotStarted
	}
	if r.History == nil {
		return History{}, nil
	}

	return r.History, nil
}

func (svc *service) PreviewSchedule(_ context.Context, cfg schedule.Config) (SchedulePreview, error) {
	s, err := schedule.New(cfg)
	if err != nil {
		return SchedulePreview{}, err
	}

	return SchedulePreview{
		Schedule: s.Config(),
		Rates:    s.Curve(),
	}, nil
}
