// Package app wires the vault core together: configuration, the
// persistence gateway, and the credential, record, and session services.
// The embedding application builds one App and calls its services; nothing
// here holds a vault key beyond a single call.
package app

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/heartline/vault/internal/blobstore"
	"github.com/heartline/vault/internal/config"
	"github.com/heartline/vault/internal/credentials"
	"github.com/heartline/vault/internal/keyderiv"
	"github.com/heartline/vault/internal/logging"
	"github.com/heartline/vault/internal/records"
	"github.com/heartline/vault/internal/session"
	"github.com/heartline/vault/internal/storage"
)

type App struct {
	Config      *config.Config
	Logger      logging.Logger
	Credentials *credentials.Store
	Records     *records.Service
	Sessions    *session.Manager
}

// Options tweaks construction. InMemory selects the map-backed gateway and
// blob store (demo mode, no external services needed).
type Options struct {
	InMemory bool
}

func New(ctx context.Context, cfg *config.Config, opts Options) (*App, error) {
	logger := logging.NewSlogLogger(slog.New(slog.NewJSONHandler(os.Stdout, nil)))

	var gw storage.Gateway
	var blobs blobstore.Store

	if opts.InMemory {
		gw = storage.NewMemory()
		blobs = blobstore.NewMemory()
	} else {
		pg, err := storage.NewPostgres(cfg.DatabaseDSN)
		if err != nil {
			return nil, fmt.Errorf("db init error: %w", err)
		}
		if err := pg.RunMigrations(ctx); err != nil {
			return nil, fmt.Errorf("db migration error: %w", err)
		}
		gw = pg

		s3, err := blobstore.NewS3Store(ctx, blobstore.Config{
			RootUser:     cfg.S3RootUser,
			RootPassword: cfg.S3RootPassword,
			Bucket:       cfg.S3Bucket,
			Region:       cfg.S3Region,
			BaseEndpoint: cfg.S3BaseEndpoint,
		})
		if err != nil {
			return nil, fmt.Errorf("blob store init error: %w", err)
		}
		blobs = s3
	}

	kdf := keyderiv.NewService(cfg.KDFMaxConcurrent)

	return &App{
		Config:      cfg,
		Logger:      logger,
		Credentials: credentials.NewStore(gw, kdf, logger),
		Records:     records.NewService(gw, blobs, logger),
		Sessions:    session.NewManager(gw, logger, cfg.SessionTokenTTL),
	}, nil
}
