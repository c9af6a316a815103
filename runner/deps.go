package runner

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"go.uber.org/zap"

	"github.com/housinglord/housing-lord/mailer"
	"github.com/housinglord/housing-lord/models"
	"github.com/housinglord/housing-lord/notify"
	"github.com/housinglord/housing-lord/redis/config"
	"github.com/housinglord/housing-lord/sanity"
	"github.com/housinglord/housing-lord/sqlstore"
	"github.com/housinglord/housing-lord/web/memory"
)

const sqliteFile = "housinglord.db"

// OpenStore opens the configured document store. The returned uploader is
// non-nil only for stores that can hold images themselves.
func OpenStore(ctx context.Context, cfg *Config, logger *zap.Logger) (models.Store, models.ImageUploader, error) {
	switch cfg.Store {
	case StoreMemory:
		logger.Warn("using the in-memory store, data is lost on exit")

		return memory.New(), nil, nil
	case StoreSQLite:
		if err := os.MkdirAll(cfg.DataFolder, os.ModePerm); err != nil {
			return nil, nil, err
		}

		s, err := sqlstore.Open(ctx, sqlstore.Config{
			Driver: sqlstore.DriverSQLite,
			DSN:    filepath.Join(cfg.DataFolder, sqliteFile),
			Logger: logger,
		})
		if err != nil {
			return nil, nil, err
		}

		return s, nil, nil
	case StorePostgres:
		s, err := sqlstore.Open(ctx, sqlstore.Config{
			Driver: sqlstore.DriverPostgres,
			DSN:    cfg.Dsn,
			Logger: logger,
		})
		if err != nil {
			return nil, nil, err
		}

		return s, nil, nil
	case StoreSanity:
		client, err := sanity.NewClient(sanity.Config{
			ProjectID:  cfg.SanityProjectID,
			Dataset:    cfg.SanityDataset,
			Token:      cfg.SanityToken,
			APIVersion: cfg.SanityAPIVersion,
		})
		if err != nil {
			return nil, nil, err
		}

		s := sanity.NewStore(client)

		return s, s, nil
	default:
		return nil, nil, fmt.Errorf("%w: unknown store %q", ErrInvalidConfig, cfg.Store)
	}
}

// NewSender returns an SMTP sender, or a logging one when SMTP is not
// configured
func NewSender(cfg *Config, logger *zap.Logger) (mailer.Sender, error) {
	if cfg.SMTPHost == "" {
		logger.Warn("smtp not configured, emails are logged instead of sent")

		return mailer.NewLog(logger), nil
	}

	return mailer.NewSMTP(mailer.SMTPConfig{
		Host:     cfg.SMTPHost,
		Port:     cfg.SMTPPort,
		Username: cfg.SMTPUser,
		Password: cfg.SMTPPassword,
		From:     cfg.MailFrom(),
		Timeout:  cfg.SendTimeout,
	})
}

// MailFrom is the sender address for every outgoing email
func (c *Config) MailFrom() string {
	if c.SMTPFrom != "" {
		return c.SMTPFrom
	}

	return c.SMTPUser
}

func NewDeliverer(cfg *Config, sender mailer.Sender, logger *zap.Logger) *notify.Deliverer {
	composer := notify.Composer{
		From:         cfg.MailFrom(),
		AdminEmail:   cfg.AdminNotifyEmail,
		DashboardURL: cfg.DashboardURL,
	}

	return notify.NewDeliverer(sender, composer,
		notify.WithAttempts(cfg.NotifyAttempts),
		notify.WithDelay(cfg.NotifyDelay),
		notify.WithSendTimeout(cfg.SendTimeout),
		notify.WithLogger(logger),
	)
}

// RedisConfig resolves the Redis settings. ok is false when Redis is not
// configured at all.
func RedisConfig(cfg *Config) (rc *config.RedisConfig, ok bool, err error) {
	switch {
	case cfg.RedisURL != "":
		rc, err = config.ParseURL(cfg.RedisURL)
	case os.Getenv("REDIS_HOST") != "":
		rc, err = config.NewRedisConfig()
	default:
		return nil, false, nil
	}

	if err != nil {
		return nil, false, err
	}

	rc.MaxRetries = cfg.NotifyAttempts - 1
	rc.RetryDelay = cfg.NotifyDelay

	return rc, true, nil
}
