package viewer

import (
	"context"
	"net/http"

	"github.com/greut/tileview/config"
)

// ContextKey is the request context key to use.
type ContextKey string

// WithConfig sets the tileview configuration.
func WithConfig(h http.Handler, config *config.Config) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		ctx = context.WithValue(ctx, ContextKey("config"), config)
		r = r.WithContext(ctx)
		h.ServeHTTP(w, r)
	})
}

// WithRegistry sets the sessions registry.
func WithRegistry(h http.Handler, registry *Registry) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		ctx = context.WithValue(ctx, ContextKey("registry"), registry)
		r = r.WithContext(ctx)
		h.ServeHTTP(w, r)
	})
}

// NewHandler builds the router with its middlewares.
func NewHandler(cfg *config.Config, registry *Registry) http.Handler {
	return WithConfig(WithRegistry(MakeRouter(), registry), cfg)
}
