package i18n

import (
	"context"
	"net/http"
)

type ctxKey struct{}

// WithTranslator stores a translator in the context.
func WithTranslator(ctx context.Context, t *Translator) context.Context {
	return context.WithValue(ctx, ctxKey{}, t)
}

// FromContext returns the translator stored in ctx, or nil.
func FromContext(ctx context.Context) *Translator {
	t, _ := ctx.Value(ctxKey{}).(*Translator)
	return t
}

// Middleware picks a translator from the Accept-Language header of every request.
func (c *Catalog) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t := c.Match(r.Header.Get("Accept-Language"))
		next.ServeHTTP(w, r.WithContext(WithTranslator(r.Context(), t)))
	})
}
