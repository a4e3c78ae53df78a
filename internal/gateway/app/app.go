package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"nmrdeposit/internal/gateway/config"
	"nmrdeposit/internal/gateway/handler"
	"nmrdeposit/internal/gateway/handler/rpc"
	"nmrdeposit/internal/gateway/server"
	"nmrdeposit/internal/gateway/service/catalog"
	"nmrdeposit/internal/gateway/service/deposition"
	"nmrdeposit/internal/star/envelope"
)

type App struct {
	server  *server.Server
	handler http.Handler
	closers []func() error
}

func New() (*App, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	return NewWithConfig(cfg)
}

func NewWithConfig(cfg *config.Config) (*App, error) {
	stores, err := initStores(cfg)
	if err != nil {
		return nil, err
	}
	checker, err := envelope.New()
	if err != nil {
		return nil, err
	}

	catalogSvc := catalog.New(stores.entries, cfg.Schema.Size, cfg.Schema.TTL)
	depositionSvc := deposition.New(stores.entries, stores.uploads, catalogSvc, checker)

	entryHandler := handler.NewEntryHandler(depositionSvc)
	depositionHandler := rpc.NewDepositionHandler(depositionSvc)

	router := server.NewRouter(entryHandler, depositionHandler)
	return &App{
		server:  server.New(cfg.Port, router),
		handler: router,
		closers: stores.closers,
	}, nil
}

// Handler exposes the routed handler without the listener.
func (a *App) Handler() http.Handler {
	return a.handler
}

func (a *App) Start() error {
	return a.server.Start()
}

func (a *App) Shutdown(ctx context.Context) error {
	err := a.server.Shutdown(ctx)
	for _, c := range a.closers {
		err = errors.Join(err, c())
	}
	return err
}
