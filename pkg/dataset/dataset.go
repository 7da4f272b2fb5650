// Package dataset loads labeled text examples laid out as one directory per
// class and serves them as fixed-size batches.
package dataset

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"math/rand/v2"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"golang.org/x/sync/errgroup"
)

const (
	SubsetTraining   = "training"
	SubsetValidation = "validation"

	defaultWorkers = 8
)

var (
	ErrInvalidOptions = errors.New("invalid dataset options")
	ErrNoClasses      = errors.New("no class directories found")
	ErrNoExamples     = errors.New("no examples found")
)

type Options struct {
	BatchSize       int
	ValidationSplit float64
	// Subset selects one side of the validation split. Empty means the
	// whole directory.
	Subset string
	Seed   int64
	// Shuffle reorders the examples once with Seed at load time and again
	// at the start of every epoch.
	Shuffle bool
	Exclude []string
	Workers int
}

func (o Options) validate() error {
	switch {
	case o.BatchSize <= 0:
		return fmt.Errorf("%w: batch size must be positive, got %d", ErrInvalidOptions, o.BatchSize)
	case o.ValidationSplit < 0 || o.ValidationSplit >= 1:
		return fmt.Errorf("%w: validation split must be in [0, 1), got %v", ErrInvalidOptions, o.ValidationSplit)
	case o.Subset != "" && o.Subset != SubsetTraining && o.Subset != SubsetValidation:
		return fmt.Errorf("%w: unknown subset %q", ErrInvalidOptions, o.Subset)
	case o.Subset != "" && o.ValidationSplit == 0:
		return fmt.Errorf("%w: subset %q requires a validation split", ErrInvalidOptions, o.Subset)
	}

	return nil
}

type Example struct {
	Text  string `json:"text"`
	Label int    `json:"label"`
}

type Batch struct {
	Texts  []string
	Labels []float64
}

func (b Batch) Len() int {
	return len(b.Texts)
}

// Dataset is an in-memory split. It is safe for concurrent reads.
type Dataset struct {
	classNames []string
	examples   []Example
	batchSize  int
	shuffle    bool
	seed       int64
}

type Loader interface {
	Load(ctx context.Context, dir string, opts Options) (*Dataset, error)
}

type loader struct{}

func NewLoader() Loader {
	return loader{}
}

func (loader) Load(ctx context.Context, dir string, opts Options) (*Dataset, error) {
	return Load(ctx, dir, opts)
}

// Load reads every text file beneath the class directories of dir. Labels
// are the indices of the class directory names in sorted order.
func Load(ctx context.Context, dir string, opts Options) (*Dataset, error) {
	if err := opts.validate(); err != nil {
		return nil, err
	}

	classNames, err := listClasses(dir, opts.Exclude)
	if err != nil {
		return nil, err
	}

	var files []string
	var labels []int
	for label, name := range classNames {
		paths, err := listFiles(filepath.Join(dir, name))
		if err != nil {
			return nil, err
		}
		files = append(files, paths...)
		for range paths {
			labels = append(labels, label)
		}
	}
	if len(files) == 0 {
		return nil, fmt.Errorf("%w in %s", ErrNoExamples, dir)
	}

	if opts.Shuffle {
		rng := rand.New(rand.NewPCG(uint64(opts.Seed), 0))
		rng.Shuffle(len(files), func(i, j int) {
			files[i], files[j] = files[j], files[i]
			labels[i], labels[j] = labels[j], labels[i]
		})
	}

	files, labels = subset(files, labels, opts)

	texts, err := readAll(ctx, files, opts.Workers)
	if err != nil {
		return nil, err
	}

	examples := make([]Example, len(texts))
	for i := range texts {
		examples[i] = Example{Text: texts[i], Label: labels[i]}
	}

	return &Dataset{
		classNames: classNames,
		examples:   examples,
		batchSize:  opts.BatchSize,
		shuffle:    opts.Shuffle && opts.Subset != SubsetValidation,
		seed:       opts.Seed,
	}, nil
}

// subset keeps the first n-int(split*n) paths for training and the rest
// for validation.
func subset(files []string, labels []int, opts Options) ([]string, []int) {
	numVal := int(opts.ValidationSplit * float64(len(files)))
	cut := len(files) - numVal

	switch opts.Subset {
	case SubsetTraining:
		return files[:cut], labels[:cut]
	case SubsetValidation:
		return files[cut:], labels[cut:]
	default:
		return files, labels
	}
}

func listClasses(dir string, exclude []string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read dataset directory %s: %w", dir, err)
	}

	var names []string
	for _, e := range entries {
		if !e.IsDir() || slices.Contains(exclude, e.Name()) {
			continue
		}
		names = append(names, e.Name())
	}
	if len(names) == 0 {
		return nil, fmt.Errorf("%w in %s", ErrNoClasses, dir)
	}
	slices.Sort(names)

	return names, nil
}

func listFiles(dir string) ([]string, error) {
	var paths []string
	err := filepath.WalkDir(dir, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.Type().IsRegular() && strings.EqualFold(filepath.Ext(path), ".txt") {
			paths = append(paths, path)
		}

		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list %s: %w", dir, err)
	}

	// WalkDir already visits in lexical order; sort to pin it down.
	slices.Sort(paths)

	return paths, nil
}

func readAll(ctx context.Context, files []string, workers int) ([]string, error) {
	if workers <= 0 {
		workers = defaultWorkers
	}

	texts := make([]string, len(files))
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for i, path := range files {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			data, err := os.ReadFile(path)
			if err != nil {
				return fmt.Errorf("failed to read example %s: %w", path, err)
			}
			texts[i] = string(data)

			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	return texts, nil
}

// FromExamples builds a dataset from examples already in memory.
func FromExamples(classNames []string, examples []Example, batchSize int) (*Dataset, error) {
	if batchSize <= 0 {
		return nil, fmt.Errorf("%w: batch size must be positive, got %d", ErrInvalidOptions, batchSize)
	}
	if len(examples) == 0 {
		return nil, ErrNoExamples
	}

	return &Dataset{
		classNames: slices.Clone(classNames),
		examples:   slices.Clone(examples),
		batchSize:  batchSize,
	}, nil
}

func (d *Dataset) ClassNames() []string {
	return slices.Clone(d.classNames)
}

func (d *Dataset) Len() int {
	return len(d.examples)
}

func (d *Dataset) BatchSize() int {
	return d.batchSize
}

// NumBatches is the number of batches per epoch; the last one may be short.
func (d *Dataset) NumBatches() int {
	return (len(d.examples) + d.batchSize - 1) / d.batchSize
}

// Take returns up to n examples in load order.
func (d *Dataset) Take(n int) []Example {
	n = min(n, len(d.examples))

	return slices.Clone(d.examples[:n])
}

// Batches yields the batches of one epoch. Shuffled datasets use a
// different order for every epoch, derived from the seed.
func (d *Dataset) Batches(epoch int) iter.Seq[Batch] {
	order := d.order(epoch)

	return func(yield func(Batch) bool) {
		for start := 0; start < len(order); start += d.batchSize {
			end := min(start+d.batchSize, len(order))
			b := Batch{
				Texts:  make([]string, 0, end-start),
				Labels: make([]float64, 0, end-start),
			}
			for _, idx := range order[start:end] {
				b.Texts = append(b.Texts, d.examples[idx].Text)
				b.Labels = append(b.Labels, float64(d.examples[idx].Label))
			}
			if !yield(b) {
				return
			}
		}
	}
}

func (d *Dataset) order(epoch int) []int {
	order := make([]int, len(d.examples))
	for i := range order {
		order[i] = i
	}
	if d.shuffle {
		rng := rand.New(rand.NewPCG(uint64(d.seed), uint64(epoch)+1))
		rng.Shuffle(len(order), func(i, j int) {
			order[i], order[j] = order[j], order[i]
		})
	}

	return order
}

// Locate finds the dataset root below dir: the first of dir and its
// immediate subdirectories that contains a train directory.
func Locate(dir string) (string, error) {
	if isDir(filepath.Join(dir, "train")) {
		return dir, nil
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		return "", fmt.Errorf("failed to read %s: %w", dir, err)
	}
	for _, e := range entries {
		candidate := filepath.Join(dir, e.Name())
		if e.IsDir() && isDir(filepath.Join(candidate, "train")) {
			return candidate, nil
		}
	}

	return "", fmt.Errorf("%w: no train directory below %s", ErrNoClasses, dir)
}

func isDir(path string) bool {
	info, err := os.Stat(path)

	return err == nil && info.IsDir()
}
