// Package webrunner runs the HTTP API together with notification dispatch.
package webrunner

import (
	"context"
	"fmt"

	"go.uber.org/multierr"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/housinglord/housing-lord/interest"
	"github.com/housinglord/housing-lord/listing"
	"github.com/housinglord/housing-lord/lock"
	"github.com/housinglord/housing-lord/models"
	"github.com/housinglord/housing-lord/notify"
	"github.com/housinglord/housing-lord/redis"
	"github.com/housinglord/housing-lord/redis/config"
	"github.com/housinglord/housing-lord/runner"
	"github.com/housinglord/housing-lord/s3uploader"
	"github.com/housinglord/housing-lord/web"
	"github.com/housinglord/housing-lord/web/auth"
	"github.com/housinglord/housing-lord/web/handlers"
)

const notifyBuffer = 256

type webrunner struct {
	cfg    *runner.Config
	logger *zap.Logger
	srv    *web.Server

	store   models.Store
	async   *notify.AsyncDispatcher
	queue   *redis.Client
}

func New(ctx context.Context, cfg *runner.Config, logger *zap.Logger) (runner.Runner, error) {
	w := &webrunner{cfg: cfg, logger: logger}

	if err := w.init(ctx); err != nil {
		_ = w.Close(ctx)
		return nil, err
	}

	return w, nil
}

func (w *webrunner) init(ctx context.Context) error {
	store, storeImages, err := runner.OpenStore(ctx, w.cfg, w.logger)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}

	w.store = store

	sender, err := runner.NewSender(w.cfg, w.logger)
	if err != nil {
		return fmt.Errorf("create mailer: %w", err)
	}

	var (
		dispatcher notify.Dispatcher
		locker     lock.Locker = lock.NewLocal()
	)

	redisCfg, useRedis, err := runner.RedisConfig(w.cfg)
	if err != nil {
		return fmt.Errorf("redis config: %w", err)
	}

	if useRedis {
		w.queue, err = redis.NewClient(ctx, redisCfg)
		if err != nil {
			return err
		}

		dispatcher = notify.NewQueue(w.queue, w.cfg.NotifyAttempts, config.NotificationQueue)
		locker = lock.NewRedis(w.queue.Redis(), lock.WithLogger(w.logger))

		w.logger.Info("notifications go through the redis queue", zap.String("addr", redisCfg.GetRedisAddr()))
	} else {
		deliverer := runner.NewDeliverer(w.cfg, sender, w.logger)
		w.async = notify.NewAsync(deliverer, w.cfg.NotifyWorkers, notifyBuffer, w.logger)
		dispatcher = w.async
	}

	images, err := w.imageUploader(ctx, storeImages)
	if err != nil {
		return err
	}

	var verifier auth.Verifier

	if w.cfg.ClerkSecretKey != "" {
		v, err := auth.NewClerkVerifier(w.cfg.ClerkSecretKey)
		if err != nil {
			return err
		}

		verifier = v
	}

	authmw := auth.NewMiddleware(verifier, w.cfg.AdminEmails, w.logger)

	telemetry := runner.Telemetry(w.logger)

	group := handlers.NewHandlerGroup(handlers.Dependencies{
		Logger: w.logger,
		Interests: interest.New(store, dispatcher,
			interest.WithLocker(locker),
			interest.WithTelemetry(telemetry),
			interest.WithLogger(w.logger),
			interest.WithStoreTimeout(w.cfg.StoreTimeout),
		),
		Listings: listing.New(store, dispatcher,
			listing.WithLocker(locker),
			listing.WithTelemetry(telemetry),
			listing.WithLogger(w.logger),
			listing.WithStoreTimeout(w.cfg.StoreTimeout),
		),
		Auth:     authmw,
		Mailer:   sender,
		MailFrom: w.cfg.MailFrom(),
		Images:   images,
	})

	w.srv = web.New(group, authmw, web.Config{
		Addr:            w.cfg.Addr,
		AllowedOrigins:  w.cfg.AllowedOrigins,
		ShutdownTimeout: w.cfg.ShutdownTimeout,
		Logger:          w.logger,
	})

	return nil
}

// imageUploader prefers S3 and falls back to the store's own asset storage
func (w *webrunner) imageUploader(ctx context.Context, fallback models.ImageUploader) (models.ImageUploader, error) {
	if w.cfg.S3Bucket == "" {
		if fallback == nil {
			w.logger.Warn("no image storage configured, uploads are disabled")
		}

		return fallback, nil
	}

	u, err := s3uploader.New(ctx, s3uploader.Config{
		Bucket:    w.cfg.S3Bucket,
		Region:    w.cfg.AwsRegion,
		AccessKey: w.cfg.AwsAccessKey,
		SecretKey: w.cfg.AwsSecretKey,
		Prefix:    "properties",
		Endpoint:  w.cfg.S3Endpoint,
	})
	if err != nil {
		return nil, fmt.Errorf("create s3 uploader: %w", err)
	}

	return u, nil
}

func (w *webrunner) Run(ctx context.Context) error {
	egroup, ctx := errgroup.WithContext(ctx)

	egroup.Go(func() error {
		return w.srv.Start(ctx)
	})

	return egroup.Wait()
}

// Close drains pending notifications before releasing the store
func (w *webrunner) Close(ctx context.Context) error {
	var err error

	if w.async != nil {
		drainCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), w.cfg.ShutdownTimeout)
		err = multierr.Append(err, w.async.Close(drainCtx))

		cancel()
	}

	if w.queue != nil {
		err = multierr.Append(err, w.queue.Close())
	}

	if w.store != nil {
		err = multierr.Append(err, w.store.Close())
	}

	return err
}
