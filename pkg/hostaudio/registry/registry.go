// Package registry selects a hostaudio.Backend, trying registered
// backends in priority order and remembering the last one that worked,
// the same pattern the reference audio stack uses to pick a Player or
// RecorderPCM implementation.
package registry

import (
	"fmt"
	"reflect"
	"sort"
	"sync"

	"github.com/hashicorp/go-multierror"

	"github.com/MdSalmanTd/noiceguard/pkg/hostaudio"
)

// Factory constructs a hostaudio.Backend on demand.
type Factory interface {
	NewBackend() hostaudio.Backend
}

type factoryWithPriority struct {
	Priority int
	Factory
}

var (
	mu       sync.Mutex
	registry = map[reflect.Type]factoryWithPriority{}
	lastGood reflect.Type
)

// Register adds a backend factory at the given priority (higher tried
// first). Panics on duplicate registration of the same factory type,
// matching the reference registry's fail-fast behavior.
func Register(priority int, factory Factory) {
	mu.Lock()
	defer mu.Unlock()

	t := reflect.ValueOf(factory).Type()
	if t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	if _, ok := registry[t]; ok {
		panic(fmt.Errorf("hostaudio/registry: a factory of type %v is already registered", t))
	}
	registry[t] = factoryWithPriority{Priority: priority, Factory: factory}
}

func sortedFactories() []factoryWithPriority {
	mu.Lock()
	defer mu.Unlock()

	factories := make([]factoryWithPriority, 0, len(registry))
	for _, f := range registry {
		factories = append(factories, f)
	}
	sort.Slice(factories, func(i, j int) bool {
		return factories[i].Priority > factories[j].Priority
	})
	return factories
}

// Select tries the backend that worked last time first, then falls back
// to every registered factory in priority order, returning the first
// backend that initializes and successfully enumerates at least one
// device. It aggregates every attempt's failure with go-multierror so
// the caller sees why each candidate was rejected.
func Select() (hostaudio.Backend, error) {
	factories := sortedFactories()

	mu.Lock()
	preferred := lastGood
	mu.Unlock()

	if preferred != nil {
		for i, f := range factories {
			t := reflect.ValueOf(f.Factory).Type()
			if t.Kind() == reflect.Ptr {
				t = t.Elem()
			}
			if t == preferred && i != 0 {
				factories[0], factories[i] = factories[i], factories[0]
				break
			}
		}
	}

	var errs error
	for _, f := range factories {
		backend := f.NewBackend()
		if err := backend.Initialize(); err != nil {
			errs = multierror.Append(errs, fmt.Errorf("%s: %w", backend.Name(), err))
			continue
		}
		devices, err := backend.Devices()
		if err != nil || len(devices) == 0 {
			if err == nil {
				err = fmt.Errorf("no devices reported")
			}
			errs = multierror.Append(errs, fmt.Errorf("%s: %w", backend.Name(), err))
			_ = backend.Terminate()
			continue
		}

		mu.Lock()
		t := reflect.ValueOf(f.Factory).Type()
		if t.Kind() == reflect.Ptr {
			t = t.Elem()
		}
		lastGood = t
		mu.Unlock()

		return backend, nil
	}

	if errs == nil {
		errs = fmt.Errorf("no hostaudio backends registered")
	}
	return nil, fmt.Errorf("hostaudio/registry: no backend available: %w", errs)
}
