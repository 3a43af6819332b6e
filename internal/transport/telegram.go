package transport

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"safetyrelay/internal/config"
	"safetyrelay/internal/constants"
	"safetyrelay/internal/logger"
	"safetyrelay/pkg/metrics"
	"safetyrelay/pkg/ratelimit"
	"safetyrelay/pkg/retry"
	"safetyrelay/pkg/tracing"
)

const (
	defaultTelegramURL = "https://api.telegram.org"
	defaultParseMode   = "HTML"

	// uploads can take much longer than plain API calls
	uploadTimeout = 5 * time.Minute
)

type apiResponse struct {
	OK          bool   `json:"ok"`
	ErrorCode   int    `json:"error_code"`
	Description string `json:"description"`
	Parameters  struct {
		RetryAfter int `json:"retry_after"`
	} `json:"parameters"`
}

// Telegram is the Bot API binding. Calls are paced by a shared limiter and
// retried on 429 and 5xx; 4xx rejections return immediately.
type Telegram struct {
	baseURL   string
	parseMode string
	client    *http.Client
	upload    *http.Client
	limiter   *ratelimit.Outbound
	policy    retry.Policy
	logger    logger.Logger
}

func NewTelegram(cfg config.TransportConfig, log logger.Logger) *Telegram {
	base := strings.TrimRight(cfg.Telegram.BaseURL, "/")
	if base == "" {
		base = defaultTelegramURL
	}
	parseMode := cfg.Telegram.ParseMode
	if parseMode == "" {
		parseMode = defaultParseMode
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = constants.DefaultHTTPTimeout
	}

	var limiter *ratelimit.Outbound
	if cfg.RateLimit.Enabled {
		limiter = ratelimit.NewOutbound(cfg.RateLimit.RPS, cfg.RateLimit.Burst)
	}

	return &Telegram{
		baseURL:   base + "/bot" + cfg.Telegram.BotToken,
		parseMode: parseMode,
		client:    tracing.NewHTTPClient(&http.Client{Timeout: timeout}),
		upload:    tracing.NewHTTPClient(&http.Client{Timeout: uploadTimeout}),
		limiter:   limiter,
		policy:    retry.PolicyFromConfig("transport", cfg.Retry),
		logger:    log,
	}
}

// ParseMode is the markup dialect text and captions must be written in.
func (t *Telegram) ParseMode() string {
	return t.parseMode
}

func (t *Telegram) SendText(ctx context.Context, chatID int64, text string) error {
	return t.callJSON(ctx, "sendMessage", map[string]interface{}{
		"chat_id":                  chatID,
		"text":                     text,
		"parse_mode":               t.parseMode,
		"disable_web_page_preview": true,
	})
}

func (t *Telegram) SendVideo(ctx context.Context, chatID int64, video Video, caption string) error {
	if video.IsUpload() {
		return t.uploadVideo(ctx, chatID, video, caption)
	}
	return t.callJSON(ctx, "sendVideo", map[string]interface{}{
		"chat_id":            chatID,
		"video":              video.URL,
		"caption":            caption,
		"parse_mode":         t.parseMode,
		"supports_streaming": true,
	})
}

func (t *Telegram) callJSON(ctx context.Context, method string, payload map[string]interface{}) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to encode %s payload: %w", method, err)
	}
	return t.do(ctx, method, func() (*http.Request, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, t.baseURL+"/"+method, bytes.NewReader(body))
		if err != nil {
			return nil, err
		}
		req.Header.Set("Content-Type", "application/json")
		return req, nil
	}, t.client)
}

// uploadVideo streams the file as multipart form data. The file is reopened
// on every attempt so retries never send a half-consumed body.
func (t *Telegram) uploadVideo(ctx context.Context, chatID int64, video Video, caption string) error {
	name := video.FileName
	if name == "" {
		name = filepath.Base(video.Path)
	}
	fields := map[string]string{
		"chat_id":            strconv.FormatInt(chatID, 10),
		"caption":            caption,
		"parse_mode":         t.parseMode,
		"supports_streaming": "true",
	}

	return t.do(ctx, "sendVideo", func() (*http.Request, error) {
		f, err := os.Open(video.Path)
		if err != nil {
			return nil, retry.NewFatalError(err)
		}

		pr, pw := io.Pipe()
		mw := multipart.NewWriter(pw)
		go func() {
			defer f.Close()
			pw.CloseWithError(writeMultipart(mw, fields, name, f))
		}()

		req, err := http.NewRequestWithContext(ctx, http.MethodPost, t.baseURL+"/sendVideo", pr)
		if err != nil {
			pr.Close()
			return nil, err
		}
		req.Header.Set("Content-Type", mw.FormDataContentType())
		return req, nil
	}, t.upload)
}

func writeMultipart(mw *multipart.Writer, fields map[string]string, name string, r io.Reader) error {
	for k, v := range fields {
		if err := mw.WriteField(k, v); err != nil {
			return err
		}
	}
	part, err := mw.CreateFormFile("video", name)
	if err != nil {
		return err
	}
	if _, err := io.Copy(part, r); err != nil {
		return err
	}
	return mw.Close()
}

func (t *Telegram) do(ctx context.Context, method string, build func() (*http.Request, error), client *http.Client) error {
	err := retry.RetryWithCallback(ctx, t.policy, func() error {
		if err := t.limiter.Wait(ctx); err != nil {
			return retry.NewFatalError(err)
		}
		req, err := build()
		if err != nil {
			return err
		}
		return t.roundTrip(client, req, method)
	}, func(attempt int, err error, next time.Duration) {
		t.logger.WarnwCtx(ctx, "Transport call failed, retrying",
			"method", method,
			"attempt", attempt,
			"next_delay", next,
			"error", err,
		)
	})
	metrics.IncTransportRequest(method, err)
	return err
}

func (t *Telegram) roundTrip(client *http.Client, req *http.Request, method string) error {
	resp, err := client.Do(req)
	if err != nil {
		return &SendError{Method: method, Err: err}
	}
	defer resp.Body.Close()

	var out apiResponse
	decodeErr := json.NewDecoder(io.LimitReader(resp.Body, 1<<20)).Decode(&out)

	if resp.StatusCode >= 200 && resp.StatusCode < 300 && decodeErr == nil && out.OK {
		return nil
	}

	sendErr := &SendError{
		Method:      method,
		StatusCode:  resp.StatusCode,
		Code:        out.ErrorCode,
		Description: out.Description,
		Retry:       time.Duration(out.Parameters.RetryAfter) * time.Second,
	}
	if sendErr.Description == "" {
		sendErr.Description = http.StatusText(resp.StatusCode)
	}
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		// 2xx with ok=false or an unreadable body
		sendErr.Err = decodeErr
	}
	return sendErr
}
