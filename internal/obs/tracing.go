package obs

import (
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
)

// Tracer returns a named tracer from the global provider. Without an SDK
// installed the spans are no-ops.
func Tracer(name string) trace.Tracer {
	return otel.Tracer("github.com/ariefcatur/go-catalog-sync/" + name)
}
