package resource

import (
	"context"
	"sort"
	"sync"

	"github.com/pkg/errors"

	"go.viam.com/facebox/logging"
)

// A Registration describes how to construct one model of a resource kind.
type Registration[ResourceT any, ConfigT ConfigValidator] struct {
	Constructor func(ctx context.Context, conf ConfigT, logger logging.Logger) (ResourceT, error)
}

type entry[ResourceT any] struct {
	build    func(ctx context.Context, conf Config, path string, logger logging.Logger) (ResourceT, error)
	validate func(conf Config, path string) error
}

// A Registry maps model names to constructors for one kind of resource (camera sources, face
// detectors). Models register themselves from an init function.
type Registry[ResourceT any] struct {
	kind string

	mu      sync.RWMutex
	entries map[string]entry[ResourceT]
}

// NewRegistry returns an empty registry for the named kind.
func NewRegistry[ResourceT any](kind string) *Registry[ResourceT] {
	return &Registry[ResourceT]{kind: kind, entries: map[string]entry[ResourceT]{}}
}

// Register adds a model to the registry. Registering the same model twice panics.
func Register[ResourceT any, ConfigT ConfigValidator](
	reg *Registry[ResourceT],
	model string,
	registration Registration[ResourceT, ConfigT],
) {
	if registration.Constructor == nil {
		panic(errors.Errorf("cannot register a nil constructor for %s model %q", reg.kind, model))
	}
	reg.mu.Lock()
	defer reg.mu.Unlock()
	if _, ok := reg.entries[model]; ok {
		panic(errors.Errorf("trying to register two %s models with the same name %q", reg.kind, model))
	}
	reg.entries[model] = entry[ResourceT]{
		build: func(ctx context.Context, conf Config, path string, logger logging.Logger) (ResourceT, error) {
			native, err := NativeConfig[ConfigT](conf, path)
			if err != nil {
				var zero ResourceT
				return zero, err
			}
			return registration.Constructor(ctx, native, logger)
		},
		validate: func(conf Config, path string) error {
			_, err := NativeConfig[ConfigT](conf, path)
			return err
		},
	}
}

// Build constructs the model named by conf. The path prefixes configuration errors.
func (reg *Registry[ResourceT]) Build(
	ctx context.Context,
	conf Config,
	path string,
	logger logging.Logger,
) (ResourceT, error) {
	reg.mu.RLock()
	e, ok := reg.entries[conf.Model]
	reg.mu.RUnlock()
	if !ok {
		var zero ResourceT
		return zero, errors.Errorf("%s.model: unknown %s model %q (registered: %v)", path, reg.kind, conf.Model, reg.Models())
	}
	return e.build(ctx, conf, path, logger)
}

// Validate decodes and validates the attributes of conf without constructing anything.
func (reg *Registry[ResourceT]) Validate(conf Config, path string) error {
	reg.mu.RLock()
	e, ok := reg.entries[conf.Model]
	reg.mu.RUnlock()
	if !ok {
		return errors.Errorf("%s.model: unknown %s model %q", path, reg.kind, conf.Model)
	}
	return e.validate(conf, path)
}

// Models returns the registered model names in sorted order.
func (reg *Registry[ResourceT]) Models() []string {
	reg.mu.RLock()
	defer reg.mu.RUnlock()
	models := make([]string, 0, len(reg.entries))
	for model := range reg.entries {
		models = append(models, model)
	}
	sort.Strings(models)
	return models
}
