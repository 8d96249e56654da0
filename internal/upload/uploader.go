// Package upload ships detection artifacts to the collector service.
package upload

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"time"

	"go.uber.org/zap"
	"jordanella.com/linewatch/internal/clock"
)

// ErrUploadFailed is returned once every attempt has failed
var ErrUploadFailed = errors.New("upload failed")

// Config describes the collector endpoint and retry policy
type Config struct {
	Enabled     bool // Upload after each detection
	URL         string
	Username    string
	Password    string
	Machine     string // Defaults to the hostname
	MaxRetries  int
	RetryDelay  time.Duration
	Timeout     time.Duration
	MinInterval time.Duration // Spacing between background uploads
	QueueSize   int
}

// DefaultConfig returns the collector defaults
func DefaultConfig() Config {
	return Config{
		URL:         "http://192.168.1.100:5000/upload",
		MaxRetries:  5,
		RetryDelay:  10 * time.Second,
		Timeout:     30 * time.Second,
		MinInterval: 5 * time.Second,
		QueueSize:   16,
	}
}

// Uploader posts zip archives as multipart forms
type Uploader struct {
	config  Config
	client  *http.Client
	sleeper clock.Sleeper
	logger  *zap.Logger
}

// New creates an uploader
func New(config Config, logger *zap.Logger) *Uploader {
	if config.MaxRetries < 1 {
		config.MaxRetries = 1
	}
	if config.Machine == "" {
		if host, err := os.Hostname(); err == nil {
			config.Machine = host
		} else {
			config.Machine = "unknown"
		}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Uploader{
		config:  config,
		client:  &http.Client{Timeout: config.Timeout},
		sleeper: clock.Real{},
		logger:  logger,
	}
}

// WithHTTPClient replaces the HTTP client
func (u *Uploader) WithHTTPClient(client *http.Client) *Uploader {
	u.client = client
	return u
}

// WithSleeper replaces the retry sleeper
func (u *Uploader) WithSleeper(sleeper clock.Sleeper) *Uploader {
	u.sleeper = sleeper
	return u
}

// Config returns the effective configuration
func (u *Uploader) Config() Config {
	return u.config
}

// UploadFolder zips dir and uploads it as <name>.zip
func (u *Uploader) UploadFolder(ctx context.Context, dir, name string) error {
	archive, err := ZipFolder(dir)
	if err != nil {
		return err
	}
	return u.Upload(ctx, archive, name+".zip")
}

// Upload posts archive, retrying up to MaxRetries times with RetryDelay between attempts
func (u *Uploader) Upload(ctx context.Context, archive []byte, filename string) error {
	var lastErr error
	for attempt := 1; attempt <= u.config.MaxRetries; attempt++ {
		u.logger.Info("Uploading",
			zap.String("file", filename),
			zap.Int("attempt", attempt),
			zap.Int("size", len(archive)))

		lastErr = u.post(ctx, archive, filename)
		if lastErr == nil {
			u.logger.Info("Upload complete", zap.String("file", filename))
			return nil
		}
		u.logger.Warn("Upload attempt failed",
			zap.Int("attempt", attempt),
			zap.Int("max_retries", u.config.MaxRetries),
			zap.Error(lastErr))

		if attempt == u.config.MaxRetries {
			break
		}
		if err := u.sleeper.Sleep(ctx, u.config.RetryDelay); err != nil {
			return fmt.Errorf("upload of %s interrupted: %w", filename, err)
		}
	}
	return fmt.Errorf("%w: %s after %d attempts: %w", ErrUploadFailed, filename, u.config.MaxRetries, lastErr)
}

func (u *Uploader) post(ctx context.Context, archive []byte, filename string) error {
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	if err := mw.WriteField("machine", u.config.Machine); err != nil {
		return err
	}
	part, err := mw.CreateFormFile("file", filename)
	if err != nil {
		return err
	}
	if _, err := part.Write(archive); err != nil {
		return err
	}
	if err := mw.Close(); err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u.config.URL, &body)
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())
	if u.config.Username != "" {
		req.SetBasicAuth(u.config.Username, u.config.Password)
	}

	resp, err := u.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("server returned %d: %s", resp.StatusCode, bytes.TrimSpace(msg))
	}
	io.Copy(io.Discard, resp.Body)
	return nil
}
