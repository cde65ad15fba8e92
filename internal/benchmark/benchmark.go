package benchmark

import (
	"math/rand"
	"sort"
	"strings"
	"time"

	"github.com/pkg/errors"

	"tinyesn/internal/esn"
)

var (
	ErrUnknownBenchmark = errors.New("unknown benchmark")
	ErrDiverged         = errors.New("benchmark series diverged")
)

// Benchmark produces ordered {input -> target} sequences for a reservoir.
type Benchmark interface {
	Name() string
	// CreateTrainingSet returns up to size samples. Stateful generators
	// continue from where the previous call stopped.
	CreateTrainingSet(size int) (esn.Sequence, error)
	// Reset clears generator state so a fresh sequence can be drawn.
	Reset()
}

// Options configures benchmark construction by name.
type Options struct {
	// Mode selects discretised or instantaneous target timing for the
	// NARMA family. Defaults to discretised.
	Mode esn.Mode
	Seed int64
	// CSVPath is required by the file-backed series benchmarks.
	CSVPath string
	// Column is the zero-based value column of the generic series
	// benchmark. The named file-backed benchmarks use fixed columns.
	Column int
	// Period sets the sine wave period in samples.
	Period int
}

type factory func(opts Options, rng *rand.Rand) (Benchmark, error)

var registry = map[string]factory{
	"narma5": func(opts Options, rng *rand.Rand) (Benchmark, error) {
		return NewNARMA("narma5", NARMA5, opts.Mode, rng)
	},
	"narma10": func(opts Options, rng *rand.Rand) (Benchmark, error) {
		return NewNARMA("narma10", NARMA10, opts.Mode, rng)
	},
	"narma20": func(opts Options, rng *rand.Rand) (Benchmark, error) {
		return NewNARMA("narma20", NARMA20, opts.Mode, rng)
	},
	"parity": func(_ Options, rng *rand.Rand) (Benchmark, error) {
		return NewParity(rng), nil
	},
	"xor": func(_ Options, rng *rand.Rand) (Benchmark, error) {
		return NewXOR(rng), nil
	},
	"sine": func(opts Options, _ *rand.Rand) (Benchmark, error) {
		period := opts.Period
		if period <= 0 {
			period = defaultSinePeriod
		}
		return NewSine(period, defaultSineLength)
	},
	"santafe":  csvFactory("santafe", 0),
	"sunspots": csvFactory("sunspots", 1),
	"mintemps": csvFactory("mintemps", 1),
	"series":   csvFactory("series", -1),
}

func csvFactory(name string, column int) factory {
	return func(opts Options, _ *rand.Rand) (Benchmark, error) {
		if strings.TrimSpace(opts.CSVPath) == "" {
			return nil, errors.Errorf("%s benchmark requires a csv path", name)
		}
		col := column
		if col < 0 {
			col = opts.Column
		}
		return LoadSeriesCSV(name, opts.CSVPath, col)
	}
}

// New builds a registered benchmark by name.
func New(name string, opts Options) (Benchmark, error) {
	key := strings.ToLower(strings.TrimSpace(name))
	build, ok := registry[key]
	if !ok {
		return nil, errors.Wrapf(ErrUnknownBenchmark, "%s", name)
	}
	if opts.Mode == "" {
		opts.Mode = esn.ModeDiscretised
	}
	seed := opts.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	return build(opts, rand.New(rand.NewSource(seed)))
}

// Names lists the registered benchmark names.
func Names() []string {
	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
