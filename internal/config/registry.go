package config

import (
	"errors"
	"fmt"
	"sync"

	"github.com/voicemirror/voicemirror/pkg/audio"
	"github.com/voicemirror/voicemirror/pkg/render"
)

// ErrNotRegistered is returned by Create* methods when no factory has been
// registered under the requested adapter name.
var ErrNotRegistered = errors.New("config: adapter not registered")

// Registry maps adapter names to their constructor functions for capture
// sources and render sinks. It is safe for concurrent use.
type Registry struct {
	mu      sync.RWMutex
	sources map[string]func(AudioConfig) (audio.Source, error)
	sinks   map[string]func(RenderConfig) (render.Sink, error)
}

// NewRegistry returns an empty, ready-to-use [Registry].
func NewRegistry() *Registry {
	return &Registry{
		sources: make(map[string]func(AudioConfig) (audio.Source, error)),
		sinks:   make(map[string]func(RenderConfig) (render.Sink, error)),
	}
}

// RegisterSource registers a capture source factory under name.
// Subsequent calls with the same name overwrite the previous registration.
func (r *Registry) RegisterSource(name string, factory func(AudioConfig) (audio.Source, error)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sources[name] = factory
}

// RegisterSink registers a render sink factory under name.
func (r *Registry) RegisterSink(name string, factory func(RenderConfig) (render.Sink, error)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sinks[name] = factory
}

// CreateSource instantiates the capture source named by cfg.Source.
// Returns [ErrNotRegistered] if no factory has been registered for that name.
func (r *Registry) CreateSource(cfg AudioConfig) (audio.Source, error) {
	r.mu.RLock()
	factory, ok := r.sources[cfg.Source]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: source/%q", ErrNotRegistered, cfg.Source)
	}
	return factory(cfg)
}

// CreateSink instantiates the render sink named by cfg.Sink.
// Returns [ErrNotRegistered] if no factory has been registered for that name.
func (r *Registry) CreateSink(cfg RenderConfig) (render.Sink, error) {
	r.mu.RLock()
	factory, ok := r.sinks[cfg.Sink]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: sink/%q", ErrNotRegistered, cfg.Sink)
	}
	return factory(cfg)
}
