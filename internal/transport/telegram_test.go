package transport

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"safetyrelay/internal/config"
	"safetyrelay/internal/logger"
)

func newTestTelegram(t *testing.T, handler http.HandlerFunc) *Telegram {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewTelegram(config.TransportConfig{
		Telegram: config.TelegramConfig{BaseURL: srv.URL, BotToken: "TOKEN"},
		Retry: config.RetryConfig{
			MaxAttempts:     3,
			InitialInterval: time.Millisecond,
			MaxInterval:     5 * time.Millisecond,
		},
	}, logger.NopLogger())
}

func writeAPIError(w http.ResponseWriter, status int, desc string, retryAfter int) {
	w.WriteHeader(status)
	body := map[string]interface{}{"ok": false, "error_code": status, "description": desc}
	if retryAfter > 0 {
		body["parameters"] = map[string]int{"retry_after": retryAfter}
	}
	_ = json.NewEncoder(w).Encode(body)
}

func TestTelegram_SendText(t *testing.T) {
	var got map[string]interface{}
	tg := newTestTelegram(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/botTOKEN/sendMessage", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		_, _ = w.Write([]byte(`{"ok":true,"result":{}}`))
	})

	require.NoError(t, tg.SendText(context.Background(), 42, "hello"))
	assert.Equal(t, float64(42), got["chat_id"])
	assert.Equal(t, "hello", got["text"])
	assert.Equal(t, "HTML", got["parse_mode"])
}

func TestTelegram_SendVideoByURL(t *testing.T) {
	var got map[string]interface{}
	tg := newTestTelegram(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/botTOKEN/sendVideo", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		_, _ = w.Write([]byte(`{"ok":true}`))
	})

	require.NoError(t, tg.SendVideo(context.Background(), 7, Video{URL: "https://cdn/v.mp4"}, "cap"))
	assert.Equal(t, "https://cdn/v.mp4", got["video"])
	assert.Equal(t, "cap", got["caption"])
}

func TestTelegram_UploadStreamsFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "clip.mp4")
	require.NoError(t, os.WriteFile(path, []byte("video-data"), 0o600))

	tg := newTestTelegram(t, func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseMultipartForm(1<<20))
		assert.Equal(t, "9", r.FormValue("chat_id"))
		assert.Equal(t, "cap", r.FormValue("caption"))

		f, hdr, err := r.FormFile("video")
		require.NoError(t, err)
		defer f.Close()
		data, _ := io.ReadAll(f)
		assert.Equal(t, "clip.mp4", hdr.Filename)
		assert.Equal(t, "video-data", string(data))
		_, _ = w.Write([]byte(`{"ok":true}`))
	})

	require.NoError(t, tg.SendVideo(context.Background(), 9, Video{Path: path}, "cap"))
}

func TestTelegram_ClientErrorIsNotRetried(t *testing.T) {
	var calls int32
	tg := newTestTelegram(t, func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		writeAPIError(w, http.StatusBadRequest, "Bad Request: failed to get HTTP URL content", 0)
	})

	err := tg.SendVideo(context.Background(), 1, Video{URL: "https://cdn/v.mp4"}, "")
	require.Error(t, err)

	var sendErr *SendError
	require.True(t, errors.As(err, &sendErr))
	assert.Equal(t, http.StatusBadRequest, sendErr.StatusCode)
	assert.Equal(t, 400, sendErr.Code)
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
	assert.True(t, IsFetchableContentError(err))
}

func TestTelegram_RetriesRateLimitAndServerErrors(t *testing.T) {
	var calls int32
	tg := newTestTelegram(t, func(w http.ResponseWriter, r *http.Request) {
		switch atomic.AddInt32(&calls, 1) {
		case 1:
			writeAPIError(w, http.StatusTooManyRequests, "Too Many Requests: retry after 0", 0)
		case 2:
			writeAPIError(w, http.StatusBadGateway, "Bad Gateway", 0)
		default:
			_, _ = w.Write([]byte(`{"ok":true}`))
		}
	})

	require.NoError(t, tg.SendText(context.Background(), 1, "x"))
	assert.Equal(t, int32(3), atomic.LoadInt32(&calls))
}

func TestSendError_RetryAfter(t *testing.T) {
	tg := newTestTelegram(t, func(w http.ResponseWriter, r *http.Request) {
		writeAPIError(w, http.StatusUnauthorized, "Unauthorized", 3)
	})

	err := tg.SendText(context.Background(), 1, "x")
	var sendErr *SendError
	require.True(t, errors.As(err, &sendErr))
	assert.Equal(t, 3*time.Second, sendErr.RetryAfter())
	assert.True(t, sendErr.IsFatal())
	assert.False(t, IsFetchableContentError(err))
}

func TestIsFetchableContentError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"plain error", errors.New("file missing"), false},
		{"400", &SendError{StatusCode: 400}, true},
		{"403", &SendError{StatusCode: 403}, true},
		{"401", &SendError{StatusCode: 401, Description: "Unauthorized"}, false},
		{"500 mentioning file", &SendError{StatusCode: 500, Description: "wrong file identifier"}, true},
		{"network fetch", &SendError{Err: errors.New("reset"), Description: "failed to fetch"}, true},
		{"429", &SendError{StatusCode: 429, Description: "Too Many Requests"}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsFetchableContentError(tt.err))
		})
	}
}

func TestNew(t *testing.T) {
	tr, err := New(config.TransportConfig{}, true, logger.NopLogger())
	require.NoError(t, err)
	assert.IsType(t, &DryRun{}, tr)

	_, err = New(config.TransportConfig{Type: TypeTelegram}, false, logger.NopLogger())
	assert.Error(t, err)

	_, err = New(config.TransportConfig{Type: "carrier-pigeon"}, false, logger.NopLogger())
	assert.Error(t, err)

	tr, err = New(config.TransportConfig{Telegram: config.TelegramConfig{BotToken: "t"}}, false, logger.NopLogger())
	require.NoError(t, err)
	assert.IsType(t, &Telegram{}, tr)
}
