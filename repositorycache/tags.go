package repositorycache

import (
	"context"
)

type bypassContextKey struct{}

// WithoutCache marks ctx so reads skip cache lookups and go to the base
// repository. Fresh results are still written back.
func WithoutCache(ctx context.Context) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, bypassContextKey{}, true)
}

func cacheBypassed(ctx context.Context) bool {
	if ctx == nil {
		return false
	}
	v, _ := ctx.Value(bypassContextKey{}).(bool)
	return v
}
