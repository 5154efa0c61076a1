package spanz

import (
	"os"
	"path/filepath"

	"github.com/kelseyhightower/envconfig"
	"go.opentelemetry.io/otel/attribute"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
)

// sdkName is reported as telemetry.sdk.name on the default resource.
const sdkName = "spanz"

// Version is the SDK version reported as telemetry.sdk.version.
const Version = "0.1.0"

const unknownService = "unknown_service"

// Resource is an immutable set of attributes describing the entity producing spans.
// It is attached to every FinishedSpan.
type Resource struct {
	attrs attribute.Set
}

// NewResource builds a resource. Later duplicates win.
func NewResource(kv ...attribute.KeyValue) *Resource {
	return &Resource{attrs: attribute.NewSet(kv...)}
}

// DefaultResource describes this SDK and carries the resolved service name.
func DefaultResource() *Resource {
	base := NewResource(
		semconv.TelemetrySDKNameKey.String(sdkName),
		semconv.TelemetrySDKLanguageGo,
		semconv.TelemetrySDKVersionKey.String(Version),
	)
	return base.Merge(NewResource(semconv.ServiceNameKey.String(base.ServiceName())))
}

// Merge returns a new resource with attributes from r overridden by other.
func (r *Resource) Merge(other *Resource) *Resource {
	if r == nil {
		return other
	}
	if other == nil {
		return r
	}
	kvs := append(r.attrs.ToSlice(), other.attrs.ToSlice()...)
	return NewResource(kvs...)
}

// Attributes returns the resource attributes in key order.
func (r *Resource) Attributes() []attribute.KeyValue {
	if r == nil {
		return nil
	}
	return r.attrs.ToSlice()
}

// Set returns the underlying attribute set.
func (r *Resource) Set() attribute.Set {
	if r == nil {
		return *attribute.EmptySet()
	}
	return r.attrs
}

// serviceEnv holds the environment override for the service name.
type serviceEnv struct {
	ServiceName string `envconfig:"OTEL_SERVICE_NAME"`
}

// ServiceName resolves the service name: OTEL_SERVICE_NAME, then the
// service.name attribute, then unknown_service:<executable>, then unknown_service.
func (r *Resource) ServiceName() string {
	var env serviceEnv
	if err := envconfig.Process("", &env); err == nil && env.ServiceName != "" {
		return env.ServiceName
	}
	if r != nil {
		if v, ok := r.attrs.Value(semconv.ServiceNameKey); ok && v.AsString() != "" {
			return v.AsString()
		}
	}
	if exe, err := os.Executable(); err == nil && exe != "" {
		return unknownService + ":" + filepath.Base(exe)
	}
	return unknownService
}
