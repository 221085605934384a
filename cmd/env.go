package main

import (
	"context"

	"github.com/rotisserie/eris"

	"github.com/benchradar/benchradar/internal/config"
	"github.com/benchradar/benchradar/internal/repo"
	"github.com/benchradar/benchradar/internal/session"
	"github.com/benchradar/benchradar/internal/store"
	"github.com/benchradar/benchradar/pkg/authapi"
	"github.com/benchradar/benchradar/pkg/objstore"
)

// openStore opens the bench store selected by config. SQLite backs local
// development; Postgres is the default.
func openStore(ctx context.Context) (store.Store, error) {
	switch cfg.Store.Driver {
	case "sqlite":
		return store.NewSQLite(cfg.Store.DatabaseURL)
	case "", "postgres":
		return store.NewPostgres(ctx, cfg.Store.DatabaseURL, nil)
	default:
		return nil, eris.Errorf("unknown store driver %q", cfg.Store.Driver)
	}
}

// env bundles the backend clients behind the repository layer.
type env struct {
	Store store.Store
	Repos *repo.Repositories
}

func initEnv(ctx context.Context, c *config.Config) (*env, error) {
	st, err := openStore(ctx)
	if err != nil {
		return nil, err
	}

	tokens, err := session.NewFileStore(c.Session.Dir)
	if err != nil {
		st.Close()
		return nil, err
	}
	auth := authapi.NewClient(c.Auth.BaseURL, c.Auth.Key, tokens)
	storage := objstore.NewClient(c.Storage.BaseURL, c.Storage.Bucket, c.Storage.Key)

	return &env{
		Store: st,
		Repos: repo.New(st, storage, auth, c.Upload),
	}, nil
}

func (e *env) Close() {
	_ = e.Store.Close()
}
