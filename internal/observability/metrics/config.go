// Package metrics exposes low-cardinality instrumentation for the HTTP
// surface and the delivery pipeline.
package metrics

import (
	"strings"

	"go.opentelemetry.io/otel/attribute"
)

// Config labels every instrument with the emitting service.
type Config struct {
	ServiceName string
	Environment string
}

func (c Config) serviceName() string {
	name := strings.TrimSpace(c.ServiceName)
	if name == "" {
		return "stageflow"
	}
	return name
}

func (c Config) environment() string {
	env := strings.TrimSpace(c.Environment)
	if env == "" {
		return "unknown"
	}
	return env
}

// FilterAttributes drops attributes with empty values so instruments never
// record blank label dimensions.
func FilterAttributes(attrs ...attribute.KeyValue) []attribute.KeyValue {
	filtered := make([]attribute.KeyValue, 0, len(attrs))
	for _, attr := range attrs {
		if strings.TrimSpace(attr.Value.Emit()) == "" {
			continue
		}
		filtered = append(filtered, attr)
	}
	return filtered
}
