package server

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"nmrdeposit/internal/gateway/handler"
	"nmrdeposit/internal/gateway/handler/rpc"
	"nmrdeposit/internal/gateway/middleware"
)

func NewRouter(entries *handler.EntryHandler, deposition *rpc.DepositionHandler) http.Handler {
	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(chimw.Recoverer)
	r.Use(middleware.CORS)

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	// REST
	entries.Routes(r)

	// RPC
	path, h := rpc.NewDepositionServiceHandler(deposition)
	r.Mount(path, h)

	return r
}
