package app

import (
	"context"
	"fmt"
	"net/http"

	"github.com/StoneRaptor5870/image-processor/cmd/migrate"
	"github.com/StoneRaptor5870/image-processor/internal/cache"
	"github.com/StoneRaptor5870/image-processor/internal/config"
	"github.com/StoneRaptor5870/image-processor/internal/fetcher"
	"github.com/StoneRaptor5870/image-processor/internal/notifier"
	"github.com/StoneRaptor5870/image-processor/internal/orchestrator"
	"github.com/StoneRaptor5870/image-processor/internal/pipeline"
	"github.com/StoneRaptor5870/image-processor/internal/queue"
	"github.com/StoneRaptor5870/image-processor/internal/redisholder"
	"github.com/StoneRaptor5870/image-processor/internal/repository/storage"
	"github.com/StoneRaptor5870/image-processor/internal/s3"
	"github.com/StoneRaptor5870/image-processor/internal/transcoder"
	"github.com/StoneRaptor5870/image-processor/internal/transport/handler"
	"github.com/StoneRaptor5870/image-processor/internal/transport/router"
	use_case "github.com/StoneRaptor5870/image-processor/internal/use-case"
)

type App struct {
	HttpServer *http.Server
}

func New(ctx context.Context, cfg *config.Config) (*App, error) {
	if err := migrate.Migrate(cfg.Database.DSN, migrate.Migrations); err != nil {
		return nil, err
	}

	repo, err := storage.New(ctx, cfg.Database.DSN)
	if err != nil {
		return nil, err
	}

	holder, err := redisholder.Build(ctx, cfg)
	if err != nil {
		return nil, err
	}
	rc := holder.Get()

	objectStore, err := s3.NewStorage(&cfg.S3)
	if err != nil {
		return nil, err
	}

	imagePipeline := pipeline.New(
		fetcher.New(nil),
		transcoder.New(cfg.Pipeline.JPEGQuality, cfg.Pipeline.MaxDimension),
		objectStore,
		cfg.Pipeline.FetchTimeout,
		cfg.Pipeline.UploadTimeout,
	)

	batch := orchestrator.New(
		repo,
		imagePipeline,
		notifier.New(cfg.Webhook.Endpoint, cfg.Webhook.Timeout),
		cfg.Pipeline.PageSize,
		cfg.Pipeline.ImageWorkers,
	)

	producer := queue.Init(ctx, rc, cfg.Batch, batch)

	statusCache := cache.NewCache("imgproc:requests", rc)

	uc := use_case.New(repo, statusCache, producer)

	h := handler.New(uc, cfg)
	r := router.NewRouter(h)

	s := &http.Server{
		Handler:      r,
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	return &App{
		HttpServer: s,
	}, nil
}

func (a *App) Run() error {
	return a.HttpServer.ListenAndServe()
}
