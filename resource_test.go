package spanz

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"go.opentelemetry.io/otel/attribute"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
)

func TestResourceServiceNamePrecedence(t *testing.T) {
	r := NewResource(semconv.ServiceNameKey.String("checkout"))

	t.Setenv("OTEL_SERVICE_NAME", "")
	assert.Equal(t, "checkout", r.ServiceName())

	t.Setenv("OTEL_SERVICE_NAME", "from-env")
	assert.Equal(t, "from-env", r.ServiceName())
}

func TestResourceServiceNameFallback(t *testing.T) {
	t.Setenv("OTEL_SERVICE_NAME", "")

	name := NewResource().ServiceName()
	assert.True(t, strings.HasPrefix(name, "unknown_service"), name)
}

func TestDefaultResource(t *testing.T) {
	t.Setenv("OTEL_SERVICE_NAME", "billing")

	r := DefaultResource()
	set := r.Set()

	v, ok := set.Value(semconv.TelemetrySDKNameKey)
	assert.True(t, ok)
	assert.Equal(t, "spanz", v.AsString())

	v, ok = set.Value(semconv.ServiceNameKey)
	assert.True(t, ok)
	assert.Equal(t, "billing", v.AsString())
}

func TestResourceMerge(t *testing.T) {
	base := NewResource(attribute.String("env", "dev"), attribute.String("region", "eu"))
	merged := base.Merge(NewResource(attribute.String("env", "prod")))

	mergedSet := merged.Set()
	env, _ := mergedSet.Value("env")
	region, _ := mergedSet.Value("region")
	assert.Equal(t, "prod", env.AsString())
	assert.Equal(t, "eu", region.AsString())

	// The receiver is unchanged.
	baseSet := base.Set()
	env, _ = baseSet.Value("env")
	assert.Equal(t, "dev", env.AsString())

	var nilResource *Resource
	assert.Same(t, base, nilResource.Merge(base))
	assert.Empty(t, nilResource.Attributes())
}
