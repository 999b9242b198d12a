package registry

import (
	"sort"
	"sync"

	"go.uber.org/zap"

	"github.com/ajitpratap0/nebula-sheets/pkg/connector/core"
	"github.com/ajitpratap0/nebula-sheets/pkg/errors"
	"github.com/ajitpratap0/nebula-sheets/pkg/logger"
)

// Factory creates a connector instance. Each call returns a fresh value
// owned by the caller.
type Factory func(logger *zap.Logger) (core.Routines, error)

// ConnectorInfo provides information about a connector
type ConnectorInfo struct {
	Name         string   `json:"name"`
	Description  string   `json:"description"`
	Version      string   `json:"version"`
	Capabilities []string `json:"capabilities"`
	Options      []string `json:"options"`
}

// Registry manages connector registration and instantiation
type Registry struct {
	factories map[string]Factory
	infos     map[string]*ConnectorInfo
	mu        sync.RWMutex
	logger    *zap.Logger
}

var globalRegistry = NewRegistry()

// NewRegistry creates a new connector registry
func NewRegistry() *Registry {
	return &Registry{
		factories: make(map[string]Factory),
		infos:     make(map[string]*ConnectorInfo),
		logger:    logger.Get().With(zap.String("component", "connector_registry")),
	}
}

// Register adds a connector factory. Names are unique.
func (r *Registry) Register(info ConnectorInfo, factory Factory) error {
	if info.Name == "" {
		return errors.New(errors.CodeInvalidOption, "connector name is required")
	}
	if factory == nil {
		return errors.Newf(errors.CodeInvalidOption, "connector %s has no factory", info.Name)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.factories[info.Name]; exists {
		return errors.Newf(errors.CodeInvalidOption, "connector %s already registered", info.Name)
	}

	r.factories[info.Name] = factory
	r.infos[info.Name] = &info
	r.logger.Debug("connector registered", zap.String("name", info.Name))
	return nil
}

// Create builds a new instance of the named connector.
func (r *Registry) Create(name string, log *zap.Logger) (core.Routines, error) {
	r.mu.RLock()
	factory, exists := r.factories[name]
	r.mu.RUnlock()

	if !exists {
		return nil, errors.Newf(errors.CodeInvalidOption, "connector %s not found", name)
	}
	if log == nil {
		log = logger.Get()
	}

	routines, err := factory(log.With(zap.String(string(logger.ConnectorKey), name)))
	if err != nil {
		return nil, errors.Wrap(err, errors.CodeInternal, "failed to create connector "+name)
	}
	return routines, nil
}

// List returns the registered connector names, sorted.
func (r *Registry) List() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.factories))
	for name := range r.factories {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Info returns the metadata of a registered connector.
func (r *Registry) Info(name string) (*ConnectorInfo, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	info, ok := r.infos[name]
	if !ok {
		return nil, errors.Newf(errors.CodeInvalidOption, "connector %s not found", name)
	}
	copied := *info
	return &copied, nil
}

// Has checks if a connector is registered
func (r *Registry) Has(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, exists := r.factories[name]
	return exists
}

// Register adds a factory to the global registry.
func Register(info ConnectorInfo, factory Factory) error {
	return globalRegistry.Register(info, factory)
}

// Create builds a connector from the global registry.
func Create(name string, log *zap.Logger) (core.Routines, error) {
	return globalRegistry.Create(name, log)
}

// List returns the connectors in the global registry.
func List() []string {
	return globalRegistry.List()
}

// Info returns connector metadata from the global registry.
func Info(name string) (*ConnectorInfo, error) {
	return globalRegistry.Info(name)
}

// Has checks the global registry.
func Has(name string) bool {
	return globalRegistry.Has(name)
}

// GetRegistry returns the global registry instance
func GetRegistry() *Registry {
	return globalRegistry
}
