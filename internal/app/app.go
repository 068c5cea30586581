// Package app assembles the services shared by the server and the operator CLI.
package app

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awscfg "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/sirupsen/logrus"

	"library-server/internal/auth"
	"library-server/internal/config"
	"library-server/internal/events"
	"library-server/internal/repository/sqlite"
	"library-server/internal/service"
	"library-server/internal/storage"
)

const uploadsRoute = "/uploads"

// Deps holds the wired services. Close releases the database and the broker.
type Deps struct {
	DB            *sql.DB
	Users         service.UserService
	Books         service.BookService
	Borrows       service.BorrowService
	Notifications service.NotificationService
	Publisher     events.Publisher
	// UploadsDir is set when images live on local disk and must be served.
	UploadsDir string
}

func (d *Deps) Close() error {
	var errs []error
	if d.Publisher != nil {
		errs = append(errs, d.Publisher.Close())
	}
	if d.DB != nil {
		errs = append(errs, d.DB.Close())
	}
	return errors.Join(errs...)
}

func NewLogger(cfg config.Config) *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(os.Stdout)
	if cfg.Log.Format == "json" {
		logger.SetFormatter(&logrus.JSONFormatter{})
	} else {
		logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	}
	level, err := logrus.ParseLevel(cfg.Log.Level)
	if err != nil {
		logger.Warnf("unknown log level %q, using info", cfg.Log.Level)
		level = logrus.InfoLevel
	}
	logger.SetLevel(level)
	return logger
}

func Build(ctx context.Context, cfg config.Config, logger *logrus.Logger) (*Deps, error) {
	db, err := sqlite.Open(cfg.Database.Path)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	deps := &Deps{DB: db}

	repos := sqlite.NewRepositories(db)
	if err := repos.Init(ctx); err != nil {
		deps.Close()
		return nil, fmt.Errorf("init repositories: %w", err)
	}

	store, err := buildStorage(ctx, cfg, logger)
	if err != nil {
		deps.Close()
		return nil, fmt.Errorf("setup storage: %w", err)
	}
	if cfg.Storage.Driver == config.StorageLocal {
		deps.UploadsDir = cfg.Storage.LocalDir
	}

	publisher, err := buildPublisher(cfg, logger)
	if err != nil {
		deps.Close()
		return nil, fmt.Errorf("setup events: %w", err)
	}
	deps.Publisher = publisher

	issuer, err := auth.NewIssuer(cfg.Auth.JWTSecret, cfg.TokenTTL())
	if err != nil {
		deps.Close()
		return nil, err
	}

	deps.Notifications = service.NewNotificationService(repos.Notifications, publisher, logger)
	deps.Users = service.NewUserService(repos.Users, issuer, store, publisher, logger, service.UserConfig{
		AllowAdminSignup: cfg.Auth.AllowAdminSignup,
		KeyPrefix:        cfg.Storage.KeyPrefix,
	})
	deps.Books = service.NewBookService(repos.Books, store, cfg.Storage.KeyPrefix, logger)
	deps.Borrows = service.NewBorrowService(repos.Borrows, repos.Books, deps.Notifications, publisher, logger, service.BorrowConfig{
		DefaultDays: cfg.Borrow.DefaultDays,
		MaxDays:     cfg.Borrow.MaxDays,
		Fines:       service.FinePolicy{RatePerDay: cfg.Fines.RatePerDay},
	})
	return deps, nil
}

func buildStorage(ctx context.Context, cfg config.Config, logger *logrus.Logger) (storage.Service, error) {
	if cfg.Storage.Driver == config.StorageLocal {
		base := uploadsRoute
		if cfg.Storage.PublicBaseURL != "" {
			base = strings.TrimRight(cfg.Storage.PublicBaseURL, "/")
		}
		logger.Infof("storing images under %s (served at %s)", cfg.Storage.LocalDir, base)
		return storage.NewLocalService(cfg.Storage.LocalDir, base)
	}

	loadOpts := []func(*awscfg.LoadOptions) error{
		awscfg.WithRegion(cfg.Storage.Region),
	}
	if cfg.AWS.Profile != "" {
		loadOpts = append(loadOpts, awscfg.WithSharedConfigProfile(cfg.AWS.Profile))
	}

	awsCfg, err := awscfg.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Storage.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Storage.Endpoint)
			o.UsePathStyle = true
		}
	})
	logger.Infof("using s3 bucket %s (region %s)", cfg.Storage.Bucket, cfg.Storage.Region)
	return storage.NewS3Service(client, storage.S3Options{
		Bucket:        cfg.Storage.Bucket,
		Region:        cfg.Storage.Region,
		Endpoint:      cfg.Storage.Endpoint,
		PublicBaseURL: cfg.Storage.PublicBaseURL,
	})
}

func buildPublisher(cfg config.Config, logger *logrus.Logger) (events.Publisher, error) {
	if cfg.Events.AMQPURL == "" {
		logger.Info("events.amqpurl not set, lifecycle events are not published")
		return events.NopPublisher{}, nil
	}
	return events.NewAMQPPublisher(cfg.Events.AMQPURL, cfg.Events.Exchange, logger)
}
