package fetch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/goldfish-inc/evalita-prep/internal/metrics"
)

// ErrUnexpectedStatus marks a fetch that got a non-200 response.
var ErrUnexpectedStatus = errors.New("unexpected HTTP status")

// StatusError reports the URL and status of a failed fetch.
type StatusError struct {
	URL        string
	StatusCode int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("fetch %s: status %d", e.URL, e.StatusCode)
}

func (e *StatusError) Is(target error) bool {
	return target == ErrUnexpectedStatus
}

// Fetcher downloads dataset files over HTTP(S). It performs a single attempt
// per URL; a failed fetch is logged and returned, never retried.
type Fetcher struct {
	client  *http.Client
	logger  *log.Logger
	metrics *metrics.Recorder
}

// New creates a Fetcher. A zero timeout leaves requests unbounded.
func New(timeout time.Duration, logger *log.Logger, rec *metrics.Recorder) *Fetcher {
	return &Fetcher{
		client:  &http.Client{Timeout: timeout},
		logger:  logger,
		metrics: rec,
	}
}

// DownloadFile streams url into dest, creating parent directories as needed.
func (f *Fetcher) DownloadFile(ctx context.Context, url, dest string) error {
	resp, err := f.get(ctx, url)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}

	file, err := os.Create(dest)
	if err != nil {
		return fmt.Errorf("failed to create file: %w", err)
	}

	if _, err := io.Copy(file, resp.Body); err != nil {
		file.Close()
		os.Remove(dest)
		f.metrics.Download("failed")
		return fmt.Errorf("failed to write %s: %w", dest, err)
	}
	if err := file.Close(); err != nil {
		return fmt.Errorf("failed to close %s: %w", dest, err)
	}

	f.metrics.Download("ok")
	f.logger.Printf("%s downloaded successfully.", dest)
	return nil
}

// get issues a GET and returns the response only when the status is 200.
// Any other status is logged and turned into a *StatusError.
func (f *Fetcher) get(ctx context.Context, url string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := f.client.Do(req)
	if err != nil {
		f.metrics.Download("failed")
		return nil, fmt.Errorf("failed to fetch %s: %w", url, err)
	}

	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		f.metrics.Download(strconv.Itoa(resp.StatusCode))
		f.logger.Printf("Failed to fetch %s. Status code: %d", url, resp.StatusCode)
		return nil, &StatusError{URL: url, StatusCode: resp.StatusCode}
	}

	return resp, nil
}
