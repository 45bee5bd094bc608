package tts

import (
	"errors"
	"fmt"
	"sort"
	"sync"
)

var (
	// ErrEngineNotFound is returned when an engine is not registered.
	ErrEngineNotFound = errors.New("TTS engine not found")
	// ErrEngineExists is returned when trying to register a duplicate engine.
	ErrEngineExists = errors.New("TTS engine already registered")
)

// Registry holds the speech backends that initialised, by name, along with
// the reason any backend that failed could not be used.
type Registry struct {
	mu       sync.RWMutex
	engines  map[string]Engine
	failures map[string]error
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		engines:  make(map[string]Engine),
		failures: make(map[string]error),
	}
}

// Register adds an engine under its Name.
func (r *Registry) Register(engine Engine) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	name := engine.Name()
	if _, exists := r.engines[name]; exists {
		return fmt.Errorf("%w: %s", ErrEngineExists, name)
	}
	r.engines[name] = engine
	delete(r.failures, name)
	return nil
}

// RegisterFailure records why the named backend is unusable. Get reports it
// in place of a bare ErrEngineNotFound.
func (r *Registry) RegisterFailure(name string, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.engines[name]; !exists {
		r.failures[name] = err
	}
}

// Get returns the engine registered under name. For a backend that failed
// to initialise the error wraps both ErrEngineNotFound and the recorded cause.
func (r *Registry) Get(name string) (Engine, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if engine, ok := r.engines[name]; ok {
		return engine, nil
	}
	if cause, ok := r.failures[name]; ok {
		return nil, fmt.Errorf("%w: %s: %w", ErrEngineNotFound, name, cause)
	}
	return nil, fmt.Errorf("%w: %s", ErrEngineNotFound, name)
}

// List returns the registered engine names, sorted.
func (r *Registry) List() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.engines))
	for name := range r.engines {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
