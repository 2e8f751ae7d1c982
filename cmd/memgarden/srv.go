package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"

	"github.com/dae9999nam/Memory-Garden/internal/blobstore"
	"github.com/dae9999nam/Memory-Garden/internal/config"
	"github.com/dae9999nam/Memory-Garden/internal/metrics"
	"github.com/dae9999nam/Memory-Garden/internal/narrative"
	"github.com/dae9999nam/Memory-Garden/internal/server"
	"github.com/dae9999nam/Memory-Garden/internal/store"
	"github.com/dae9999nam/Memory-Garden/internal/story"
)

func newSrvCmd(cfg *config.Config) *cobra.Command {
	return &cobra.Command{
		Use:   "srv",
		Short: "Run the memgarden API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			if cfg == nil {
				return fmt.Errorf("config not initialized")
			}
			if err := cfg.Validate(); err != nil {
				return err
			}

			addr, err := server.ListenAddr(cfg.APIURL)
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			reg := prometheus.NewRegistry()
			reg.MustRegister(
				collectors.NewGoCollector(),
				collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
			)
			m := metrics.New(reg)

			records, closeRecords, err := openRecordStore(ctx, cfg)
			if err != nil {
				return err
			}
			defer closeRecords()

			blobs, err := openBlobStore(cfg)
			if err != nil {
				return err
			}

			generator := narrative.NewOllamaGenerator(narrative.OllamaConfig{
				BaseURL: cfg.Narrative.BaseURL,
				Model:   cfg.Narrative.Model,
				Timeout: cfg.Narrative.Timeout,
			})
			coord := story.NewCoordinator(blobs, records, generator, story.CoordinatorOptions{
				Logger:  slog.Default().With("component", "story"),
				Metrics: m,
			})
			svc := story.NewService(coord, story.ServiceOptions{
				MaxPhotos:     cfg.Uploads.MaxPhotos,
				MaxPhotoBytes: cfg.Uploads.MaxPhotoBytes,
				GracePeriod:   cfg.GC.GracePeriod,
			})

			srv := server.New(addr, svc, server.Options{
				Logger:                   slog.Default().With("component", "server"),
				Metrics:                  m,
				Gatherer:                 reg,
				MultipartMemory:          cfg.Uploads.MultipartMaxMemory,
				MaxConcurrentGenerations: cfg.Server.MaxConcurrentGenerations,
				RateLimit:                cfg.Server.RateLimit,
				Burst:                    cfg.Server.Burst,
			})
			return srv.ListenAndServe(ctx)
		},
	}
}

// openRecordStore opens the configured record backend and returns its closer.
func openRecordStore(ctx context.Context, cfg *config.Config) (store.RecordStore, func(), error) {
	logger := slog.Default().With("component", "records")
	switch cfg.Records.Backend {
	case "mongo":
		logger.Info("connecting to mongodb", "database", cfg.Records.MongoDatabase, "collection", cfg.Records.MongoCollection)
		st, err := store.OpenMongo(ctx, store.MongoConfig{
			URI:        cfg.Records.MongoURI,
			Database:   cfg.Records.MongoDatabase,
			Collection: cfg.Records.MongoCollection,
		})
		if err != nil {
			return nil, nil, err
		}
		return st, closeLogged(logger, st.Close), nil
	default:
		if err := os.MkdirAll(filepath.Dir(cfg.Records.DBPath), 0o755); err != nil {
			return nil, nil, fmt.Errorf("create data dir: %w", err)
		}
		logger.Info("opening database", "path", cfg.Records.DBPath)
		st, err := store.Open(cfg.Records.DBPath)
		if err != nil {
			return nil, nil, err
		}
		return st, closeLogged(logger, st.Close), nil
	}
}

func openBlobStore(cfg *config.Config) (blobstore.BlobStore, error) {
	logger := slog.Default().With("component", "blobs")
	switch cfg.Blobs.Backend {
	case "s3":
		logger.Info("using s3 blob store", "bucket", cfg.Blobs.S3Bucket, "prefix", cfg.Blobs.S3Prefix)
		bs, err := blobstore.NewS3Store(blobstore.S3Config{
			Bucket:    cfg.Blobs.S3Bucket,
			Region:    cfg.Blobs.S3Region,
			Prefix:    cfg.Blobs.S3Prefix,
			Endpoint:  cfg.Blobs.S3Endpoint,
			PathStyle: cfg.Blobs.S3PathStyle,
		})
		if err != nil {
			return nil, err
		}
		return bs, nil
	default:
		logger.Info("using local blob store", "root", cfg.Blobs.Root)
		bs, err := blobstore.NewLocalStore(cfg.Blobs.Root)
		if err != nil {
			return nil, err
		}
		return bs, nil
	}
}

func closeLogged(logger *slog.Logger, closeFn func() error) func() {
	return func() {
		if err := closeFn(); err != nil {
			logger.Warn("close record store", "error", err)
		}
	}
}
