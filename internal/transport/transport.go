// Package transport sends messages to the chat service.
package transport

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"safetyrelay/internal/config"
	"safetyrelay/internal/logger"
)

const TypeTelegram = "telegram"

// Video is either a link the chat service fetches itself or a local file
// that is streamed as an upload. Exactly one of URL and Path is set.
type Video struct {
	URL      string
	Path     string
	FileName string
}

func (v Video) IsUpload() bool {
	return v.Path != ""
}

type Transport interface {
	SendText(ctx context.Context, chatID int64, text string) error
	SendVideo(ctx context.Context, chatID int64, video Video, caption string) error
}

// SendError is a rejected or failed send. StatusCode is zero when the
// request never got an HTTP response.
type SendError struct {
	Method      string
	StatusCode  int
	Code        int
	Description string
	Retry       time.Duration
	Err         error
}

func (e *SendError) Error() string {
	if e.StatusCode == 0 {
		return fmt.Sprintf("%s failed: %v", e.Method, e.Err)
	}
	return fmt.Sprintf("%s failed with status %d: %s", e.Method, e.StatusCode, e.Description)
}

func (e *SendError) Unwrap() error {
	return e.Err
}

// RetryAfter is the server-requested wait on 429.
func (e *SendError) RetryAfter() time.Duration {
	return e.Retry
}

// IsFatal reports client errors that will not succeed on retry.
func (e *SendError) IsFatal() bool {
	return e.StatusCode >= 400 && e.StatusCode < 500 && e.StatusCode != http.StatusTooManyRequests
}

// IsFetchableContentError reports whether the chat service rejected a video
// link because it could not fetch or accept the media. Those sends are worth
// retrying as an upload; anything else is not.
func IsFetchableContentError(err error) bool {
	var sendErr *SendError
	if !errors.As(err, &sendErr) {
		return false
	}
	if sendErr.StatusCode == http.StatusBadRequest || sendErr.StatusCode == http.StatusForbidden {
		return true
	}
	desc := strings.ToLower(sendErr.Description)
	return strings.Contains(desc, "bad request") ||
		strings.Contains(desc, "file") ||
		strings.Contains(desc, "fetch")
}

// New builds the configured transport. In dry-run mode the result only logs.
func New(cfg config.TransportConfig, dryRun bool, log logger.Logger) (Transport, error) {
	if dryRun {
		return NewDryRun(log), nil
	}
	switch cfg.Type {
	case "", TypeTelegram:
		if cfg.Telegram.BotToken == "" {
			return nil, fmt.Errorf("transport.telegram.bot_token is required")
		}
		return NewTelegram(cfg, log), nil
	default:
		return nil, fmt.Errorf("unsupported transport type: %s", cfg.Type)
	}
}
