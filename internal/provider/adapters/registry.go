// Package adapters indexes provider webhook adapters by provider name.
package adapters

import (
	"strings"

	"github.com/jeremyholland-coder/stageflow/internal/provider/domain"
)

type Registry struct {
	adapters map[string]domain.Adapter
}

func NewRegistry(list ...domain.Adapter) *Registry {
	registry := &Registry{adapters: make(map[string]domain.Adapter, len(list))}
	for _, adapter := range list {
		registry.adapters[strings.ToLower(adapter.Provider())] = adapter
	}
	return registry
}

func (r *Registry) ProviderExists(name string) bool {
	_, ok := r.adapters[strings.ToLower(strings.TrimSpace(name))]
	return ok
}

func (r *Registry) Get(name string) (domain.Adapter, bool) {
	adapter, ok := r.adapters[strings.ToLower(strings.TrimSpace(name))]
	return adapter, ok
}
