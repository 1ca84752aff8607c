package main

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"

	"semantic-linker/internal/app"
	"semantic-linker/internal/config"
	"semantic-linker/internal/infra/db"
	"semantic-linker/internal/repository"
	"semantic-linker/internal/usecase/reconcile"
	"semantic-linker/internal/usecase/render"
	"semantic-linker/internal/usecase/similarity"
)

// engine is the part of the assembled application the commands drive.
type engine struct {
	Links      repository.LinkMap
	Similarity *similarity.Service
	Job        *reconcile.Job
	Runner     *reconcile.Runner
	Publisher  *render.Publisher
}

// EngineFunc returns the engine, building it on first use.
type EngineFunc func(ctx context.Context) (*engine, error)

// DBFunc returns the database, opening it on first use.
type DBFunc func(ctx context.Context) (*sql.DB, error)

// session opens the database and the engine lazily so that commands which do
// not need them (help, version) never touch configuration or the network.
type session struct {
	logger *slog.Logger
	db     *sql.DB
	app    *app.App
}

func newSession(logger *slog.Logger) *session {
	return &session{logger: logger}
}

func (s *session) DB(ctx context.Context) (*sql.DB, error) {
	if s.db != nil {
		return s.db, nil
	}
	database, err := db.Open(ctx)
	if err != nil {
		return nil, err
	}
	s.db = database
	return s.db, nil
}

func (s *session) Engine(ctx context.Context) (*engine, error) {
	if s.app == nil {
		linkerConfig, err := config.LoadLinkerConfig(s.logger, nil)
		if err != nil {
			return nil, err
		}
		embedderConfig, err := config.LoadEmbedderConfig(s.logger, nil)
		if err != nil {
			return nil, err
		}
		database, err := s.DB(ctx)
		if err != nil {
			return nil, err
		}
		a, err := app.New(database, linkerConfig, embedderConfig, s.logger)
		if err != nil {
			return nil, err
		}
		s.app = a
	}
	return &engine{
		Links:      s.app.Links,
		Similarity: s.app.Similarity,
		Job:        s.app.Job,
		Runner:     s.app.Runner,
		Publisher:  s.app.Publisher,
	}, nil
}

// Close releases the engine and the database.
func (s *session) Close() error {
	var errs []error
	if s.app != nil {
		errs = append(errs, s.app.Close())
	}
	if s.db != nil {
		errs = append(errs, s.db.Close())
	}
	return errors.Join(errs...)
}
