// Package main implements the City Sentinel notification service: it
// receives issue status and verification change events and fans them out
// as in-app notifications and transactional emails to the reporter and
// all followers.
package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"time"

	"city-sentinel/email"
	"city-sentinel/notify"
	"city-sentinel/resolve"
	"city-sentinel/server"
	"city-sentinel/storage"

	gcs "cloud.google.com/go/storage"
	"google.golang.org/api/gmail/v1"
	"google.golang.org/api/option"
)

const defaultFromAddr = "City Sentinel <onboarding@resend.dev>"

func main() {
	ctx := context.Background()

	// Initialize structured logger
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	localStorage := os.Getenv("LOCAL_STORAGE")
	bucket := os.Getenv("STORAGE_BUCKET")

	// Default to local development mode if no bucket specified
	if bucket == "" && localStorage == "" {
		localStorage = "./data"
		logger.Info("No STORAGE_BUCKET set, defaulting to local development mode", "storage_path", localStorage)
	}

	var store *storage.Store
	if localStorage != "" {
		logger.Info("Running in local development mode", "storage_path", localStorage)
		if err := os.MkdirAll(localStorage, 0o755); err != nil {
			logger.Error("Failed to create local storage directory", "error", err)
			os.Exit(1)
		}
		store = storage.New(nil, "", localStorage, logger)
	} else {
		storageClient, err := gcs.NewClient(ctx)
		if err != nil {
			logger.Error("Failed to initialize Storage client", "error", err)
			os.Exit(1)
		}
		defer func() {
			if err := storageClient.Close(); err != nil {
				logger.Warn("Failed to close storage client", "error", err)
			}
		}()
		store = storage.New(storageClient, bucket, "", logger)
	}

	sender := initSender(ctx, logger)

	resolver := resolve.New(store, store, store, logger)
	writer := notify.NewWriter(store, logger)

	orchestrator := notify.New(&notify.Config{
		Issues:     store,
		Resolver:   resolver,
		Writer:     writer,
		Emailer:    sender,
		IsNotFound: storage.IsNotFound,
		Logger:     logger,
	})

	srv := server.New(&server.Config{
		Notifier: orchestrator,
		Logger:   logger,
	})

	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}

	if err := srv.ListenAndServe(port); err != nil {
		logger.Error("Server failed", "error", err)
		os.Exit(1)
	}
}

// initSender picks the email provider: Resend when its API key is present,
// Gmail when Google credentials are available, otherwise mock mode so no
// email I/O happens in development.
func initSender(ctx context.Context, logger *slog.Logger) *email.Sender {
	if apiKey := os.Getenv("RESEND_API_KEY"); apiKey != "" {
		fromAddr := os.Getenv("EMAIL_FROM")
		if fromAddr == "" {
			fromAddr = defaultFromAddr
		}
		logger.Info("Using Resend email provider", "from", fromAddr)
		return email.New(email.NewResendProvider(apiKey, fromAddr, logger), logger)
	}

	if gmailService, err := initGmailService(ctx); err == nil {
		logger.Info("Using Gmail email provider")
		return email.New(email.NewGmailProvider(gmailService, logger), logger)
	}

	logger.Info("No email provider credential set, mock email mode enabled")
	return email.NewMock(logger)
}

func initGmailService(ctx context.Context) (*gmail.Service, error) {
	// Try explicit credentials first (for local development or specific use cases)
	credsJSON := os.Getenv("GOOGLE_CREDENTIALS_JSON")
	if credsJSON != "" {
		return gmail.NewService(ctx, option.WithCredentialsJSON([]byte(credsJSON)))
	}

	// If running in Cloud Run, use Application Default Credentials (ADC).
	// The service account needs the gmail.send scope.
	if isCloudRun(ctx) {
		return gmail.NewService(ctx)
	}

	return nil, errors.New("GOOGLE_CREDENTIALS_JSON required when not running in Cloud Run")
}

// isCloudRun checks if we're running in a GCP environment by querying the
// metadata server.
func isCloudRun(ctx context.Context) bool {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, "http://metadata.google.internal/computeMetadata/v1/project/project-id", nil)
	if err != nil {
		return false
	}
	req.Header.Set("Metadata-Flavor", "Google")

	client := &http.Client{Timeout: 2 * time.Second}
	resp, err := client.Do(req)
	if err != nil {
		return false
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	return resp.StatusCode == http.StatusOK
}
