// Package nn names the scalar nonlinearities a reservoir can apply to its
// state and output vectors.
package nn

import (
	"math"
	"sort"
	"strings"
	"sync"

	"github.com/pkg/errors"

	"tinyesn/internal/esn"
)

// DefaultActivation is used when a configuration leaves the name empty.
const DefaultActivation = "tanh"

var (
	ErrActivationExists   = errors.New("activation already registered")
	ErrActivationNotFound = errors.New("activation not found")
)

var activationRegistry = struct {
	mu sync.RWMutex
	m  map[string]esn.ActivationFunc
}{
	m: make(map[string]esn.ActivationFunc),
}

func init() {
	initializeBuiltInActivations()
}

func initializeBuiltInActivations() {
	MustRegisterActivation("identity", func(x float64) float64 { return x })
	MustRegisterActivation("tanh", math.Tanh)
	MustRegisterActivation("sigmoid", func(x float64) float64 {
		return 1.0 / (1.0 + math.Exp(-x))
	})
	MustRegisterActivation("relu", func(x float64) float64 {
		if x < 0 {
			return 0
		}
		return x
	})
	MustRegisterActivation("leaky_relu", func(x float64) float64 {
		if x < 0 {
			return 0.01 * x
		}
		return x
	})
	MustRegisterActivation("softsign", func(x float64) float64 {
		return x / (1 + math.Abs(x))
	})
}

func normalizeName(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}

// RegisterActivation adds fn under name. Names are case-insensitive.
func RegisterActivation(name string, fn esn.ActivationFunc) error {
	key := normalizeName(name)
	if key == "" {
		return errors.New("activation name is required")
	}
	if fn == nil {
		return errors.New("activation function is required")
	}

	activationRegistry.mu.Lock()
	defer activationRegistry.mu.Unlock()

	if _, exists := activationRegistry.m[key]; exists {
		return errors.Wrapf(ErrActivationExists, "%s", key)
	}
	activationRegistry.m[key] = fn
	return nil
}

func MustRegisterActivation(name string, fn esn.ActivationFunc) {
	if err := RegisterActivation(name, fn); err != nil {
		panic(err)
	}
}

// GetActivation resolves name, falling back to DefaultActivation when the
// name is empty.
func GetActivation(name string) (esn.ActivationFunc, error) {
	key := normalizeName(name)
	if key == "" {
		key = DefaultActivation
	}
	activationRegistry.mu.RLock()
	fn, ok := activationRegistry.m[key]
	activationRegistry.mu.RUnlock()
	if !ok {
		return nil, errors.Wrapf(ErrActivationNotFound, "%s", name)
	}
	return fn, nil
}

func ListActivations() []string {
	activationRegistry.mu.RLock()
	defer activationRegistry.mu.RUnlock()

	names := make([]string, 0, len(activationRegistry.m))
	for name := range activationRegistry.m {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func resetActivationRegistryForTests() {
	activationRegistry.mu.Lock()
	activationRegistry.m = make(map[string]esn.ActivationFunc)
	activationRegistry.mu.Unlock()
	initializeBuiltInActivations()
}
