package media

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"safetyrelay/internal/config"
	"safetyrelay/internal/logger"
	"safetyrelay/pkg/metrics"
	"safetyrelay/pkg/tracing"
)

const (
	defaultMaxBytes        = 50 * 1024 * 1024
	defaultDownloadTimeout = 60 * time.Second
)

var ErrTooLarge = errors.New("video exceeds download size limit")

// Download is a clip saved to a temp file. Callers must Remove it.
type Download struct {
	Path        string
	Size        int64
	ContentType string
}

func (d *Download) Open() (*os.File, error) {
	return os.Open(d.Path)
}

// Remove deletes the temp file; it is safe to call more than once.
func (d *Download) Remove() error {
	if d == nil || d.Path == "" {
		return nil
	}
	err := os.Remove(d.Path)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	return err
}

type Downloader struct {
	client   *http.Client
	maxBytes int64
	timeout  time.Duration
	tempDir  string
	logger   logger.Logger
}

func NewDownloader(cfg config.MediaConfig, log logger.Logger) *Downloader {
	maxBytes := cfg.DownloadMaxBytes()
	if maxBytes <= 0 {
		maxBytes = defaultMaxBytes
	}
	timeout := cfg.DownloadTimeout()
	if timeout <= 0 {
		timeout = defaultDownloadTimeout
	}
	return &Downloader{
		client:   tracing.NewHTTPClient(&http.Client{}),
		maxBytes: maxBytes,
		timeout:  timeout,
		tempDir:  cfg.TempDir,
		logger:   log,
	}
}

// Fetch streams url into a temp file, bounded by the size cap and the
// download timeout. On any error nothing is left on disk.
func (d *Downloader) Fetch(ctx context.Context, url string) (_ *Download, err error) {
	ctx, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build download request: %w", err)
	}

	resp, err := d.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to download video: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		return nil, fmt.Errorf("video download returned status %d", resp.StatusCode)
	}
	if resp.ContentLength > d.maxBytes {
		return nil, fmt.Errorf("%w: %d bytes", ErrTooLarge, resp.ContentLength)
	}

	f, err := os.CreateTemp(d.tempDir, "relay-video-*.mp4")
	if err != nil {
		return nil, fmt.Errorf("failed to create temp file: %w", err)
	}
	dl := &Download{Path: f.Name(), ContentType: resp.Header.Get("Content-Type")}
	defer func() {
		if err != nil {
			_ = dl.Remove()
		}
	}()

	n, err := io.Copy(f, io.LimitReader(resp.Body, d.maxBytes+1))
	if closeErr := f.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		return nil, fmt.Errorf("failed to write video: %w", err)
	}
	if n > d.maxBytes {
		return nil, fmt.Errorf("%w: more than %d bytes", ErrTooLarge, d.maxBytes)
	}

	dl.Size = n
	metrics.MediaDownloadBytes.Observe(float64(n))
	d.logger.DebugwCtx(ctx, "Video downloaded",
		"video_url", MaskURL(url),
		"bytes", n,
	)
	return dl, nil
}
