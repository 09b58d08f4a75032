// Package backend is the downstream end of the chain: a peer that answers
// the relays with a fixed body.
package backend

import (
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"
)

// Routes mounts the peer's endpoints. GET / answers 200 with greeting;
// GET /fail always answers 500 so relay failure handling can be exercised.
func Routes(greeting string) func(r chi.Router) {
	return func(r chi.Router) {
		r.Get("/", func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "text/plain; charset=utf-8")
			w.WriteHeader(http.StatusOK)
			_, _ = io.WriteString(w, greeting)
		})
		r.Get("/fail", func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "text/plain; charset=utf-8")
			w.WriteHeader(http.StatusInternalServerError)
			_, _ = io.WriteString(w, "fail")
		})
	}
}
