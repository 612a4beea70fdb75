// Package provider holds offer provider adapters and the middleware chain
// applied around them. Adapters translate a provider's wire format into
// domain.RawOffer records; middleware adds pacing, tracing and metrics
// without the engine knowing which concerns are active.
package provider

import (
	"github.com/ahrav/go-pricescout/internal/ports"
)

// Middleware wraps a Provider with additional behavior.
// Middleware is applied in reverse order so the first listed wrapper
// is the outermost layer.
type Middleware func(ports.Provider) ports.Provider

// Chain applies middlewares to p. Chain(p, a, b) yields a(b(p)).
func Chain(p ports.Provider, middlewares ...Middleware) ports.Provider {
	for i := len(middlewares) - 1; i >= 0; i-- {
		if middlewares[i] == nil {
			continue
		}
		p = middlewares[i](p)
	}
	return p
}

// Unwrap returns the innermost provider beneath any middleware layers.
// Used to reach optional interfaces such as ports.Releaser.
func Unwrap(p ports.Provider) ports.Provider {
	for {
		w, ok := p.(interface{ Unwrap() ports.Provider })
		if !ok {
			return p
		}
		p = w.Unwrap()
	}
}
