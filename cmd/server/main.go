package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awscfg "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"filedrop/internal/config"
	apphttp "filedrop/internal/http"
	"filedrop/internal/ingest"
	"filedrop/internal/mailer"
	"filedrop/internal/service"
	"filedrop/internal/storage"
)

func main() {
	logger := logrus.New()
	logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})

	cfg, err := config.Load()
	if err != nil {
		logger.Fatalf("load config: %v", err)
	}
	if level, err := logrus.ParseLevel(cfg.Log.Level); err == nil {
		logger.SetLevel(level)
	} else {
		logger.Warnf("unknown log level %q, using info", cfg.Log.Level)
	}
	if err := cfg.Validate(); err != nil {
		logger.Fatalf("invalid config: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	storageSvc, err := buildStorage(ctx, cfg, logger)
	if err != nil {
		logger.Fatalf("setup storage: %v", err)
	}

	pipeline := ingest.NewPipeline(ingest.Config{
		MaxFileSize:       cfg.Upload.MaxFileSize,
		Concurrency:       cfg.Upload.Concurrency,
		RollbackOnFailure: cfg.Upload.RollbackOnFailure,
		Logger:            logger,
	}, storageSvc)

	fileService := service.NewFileService(storageSvc, pipeline, service.Buckets{
		Public:        cfg.Storage.PublicBucket,
		Private:       cfg.Storage.PrivateBucket,
		PublicBaseURL: cfg.Storage.PublicBaseURL,
	})

	var sender mailer.Sender
	if cfg.Email.APIKey != "" {
		sender = mailer.NewResend(cfg.Email.BaseURL, cfg.Email.APIKey)
	} else {
		logger.Warn("RESEND_API_KEY not set, link emails are disabled")
	}
	linkService := service.NewLinkService(service.LinkConfig{
		Bucket:        cfg.Storage.PrivateBucket,
		MinExpiry:     cfg.Link.MinExpiry,
		MaxExpiry:     cfg.Link.MaxExpiry,
		MaxRecipients: cfg.Link.MaxRecipients,
		From:          cfg.Email.From,
		Logger:        logger,
	}, storageSvc, sender)

	authService, err := service.NewAuthService(service.AuthConfig{
		AdminUsername: cfg.Auth.AdminUsername,
		AdminPassword: cfg.Auth.AdminPassword,
		APIKey:        cfg.Auth.APIKey,
		SessionSecret: cfg.Auth.SessionSecret,
		SessionTTL:    cfg.Auth.SessionTTL,
	})
	if err != nil {
		logger.Fatalf("setup auth: %v", err)
	}

	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())
	handler := apphttp.NewHandler(fileService, linkService, authService, apphttp.Options{
		Logger:       logger,
		LoginLimiter: apphttp.NewRateLimiter(12*time.Second, 5),
		SecureCookie: cfg.Auth.SecureCookie,
	})
	handler.RegisterRoutes(router)

	srv := &http.Server{
		Addr:              cfg.Server.Addr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logger.Infof("listening on %s", cfg.Server.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatalf("http server: %v", err)
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Warnf("http shutdown: %v", err)
	}

	logger.Info("bye")
}

func buildStorage(ctx context.Context, cfg config.Config, logger *logrus.Logger) (storage.Service, error) {
	endpoint := cfg.StorageEndpoint()
	if endpoint == "" {
		return nil, fmt.Errorf("storage endpoint is required")
	}

	awsCfg, err := awscfg.LoadDefaultConfig(ctx,
		awscfg.WithRegion(cfg.Storage.Region),
		awscfg.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
			cfg.Storage.AccessKeyID, cfg.Storage.SecretAccessKey, "",
		)),
	)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		o.BaseEndpoint = aws.String(endpoint)
		o.UsePathStyle = true
	})
	logger.Infof("using buckets %s (public) and %s (private) at %s",
		cfg.Storage.PublicBucket, cfg.Storage.PrivateBucket, endpoint)
	return storage.NewS3Service(client), nil
}
