package server

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

// RouterConfig wires the loopback routes.
type RouterConfig struct {
	CallbackPath string
	Callback     http.Handler

	// Relay is optional. RelayOrigins may call it from a browser.
	Relay        http.Handler
	RelayOrigins []string
}

// NewRouter builds the loopback router: /healthz, the callback route and
// the optional /relay route.
func NewRouter(cfg RouterConfig) chi.Router {
	r := chi.NewRouter()
	r.Use(NewRecoverMiddleware("loopback"), NewLoggerMiddleware("loopback"))

	r.Method(http.MethodGet, "/healthz", NewHealthHandler())

	path := cfg.CallbackPath
	if path == "" {
		path = "/"
	}
	r.Method(http.MethodGet, path, cfg.Callback)

	if cfg.Relay != nil {
		r.Route("/relay", func(r chi.Router) {
			r.Use(NewCORSMiddleware(cfg.RelayOrigins))
			r.Method(http.MethodPost, "/", cfg.Relay)
			r.Options("/", func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(http.StatusNoContent)
			})
		})
	}
	return r
}
