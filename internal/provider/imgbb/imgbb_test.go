package imgbb

import (
	"bytes"
	"context"
	"encoding/base64"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ashureev/modelchat/internal/provider"
	"github.com/ashureev/modelchat/internal/resilience"
)

var pngBytes = []byte("\x89PNG\r\n\x1a\nimage")

func TestUpload_Success(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/1/upload", r.URL.Path)
		assert.Equal(t, "secret", r.URL.Query().Get("key"))
		require.NoError(t, r.ParseForm())
		decoded, err := base64.StdEncoding.DecodeString(r.PostForm.Get("image"))
		require.NoError(t, err)
		assert.Equal(t, pngBytes, decoded)
		assert.Equal(t, "image-1", r.PostForm.Get("name"))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"success":true,"status":200,"data":{"url":"https://i.ibb.co/x/image-1.png"}}`))
	}))
	defer srv.Close()

	up, err := New("secret", WithBaseURL(srv.URL))
	require.NoError(t, err)

	link, err := up.Upload(context.Background(), pngBytes, "image-1.png")
	require.NoError(t, err)
	assert.Equal(t, "https://i.ibb.co/x/image-1.png", link)
}

func TestUpload_Failures(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
	}{
		{name: "bad request", status: 400, body: `{"status_code":400,"error":{"message":"Invalid API v1 key."}}`},
		{name: "no url", status: 200, body: `{"success":true,"data":{}}`},
		{name: "not json", status: 200, body: `<html>`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			}))
			defer srv.Close()

			up, err := New("k", WithBaseURL(srv.URL))
			require.NoError(t, err)
			_, err = up.Upload(context.Background(), pngBytes, "a.png")
			assert.ErrorIs(t, err, provider.ErrUpload)
		})
	}
}

func TestUpload_RejectedBeforeIO(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
	}))
	defer srv.Close()

	up, err := New("k", WithBaseURL(srv.URL))
	require.NoError(t, err)

	_, err = up.Upload(context.Background(), pngBytes, "a.tiff")
	assert.ErrorIs(t, err, provider.ErrUpload)

	_, err = up.Upload(context.Background(), bytes.Repeat([]byte{1}, MaxImageBytes+1), "a.png")
	assert.ErrorIs(t, err, provider.ErrUpload)

	_, err = up.Upload(context.Background(), nil, "a.png")
	assert.ErrorIs(t, err, provider.ErrUpload)

	assert.Equal(t, int32(0), calls.Load())
}

func TestUpload_BreakerOpens(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	b := resilience.NewBreaker(resilience.BreakerConfig{Name: "imgbb", MaxFailures: 2, ResetTimeout: time.Hour})
	up, err := New("k", WithBaseURL(srv.URL), WithBreaker(b))
	require.NoError(t, err)

	for range 3 {
		_, err = up.Upload(context.Background(), pngBytes, "a.png")
		assert.ErrorIs(t, err, provider.ErrUpload)
	}
	assert.ErrorIs(t, err, resilience.ErrCircuitOpen)
	assert.Equal(t, int32(2), calls.Load())
}

func TestCheckImage(t *testing.T) {
	for _, name := range []string{"a.png", "a.JPG", "a.jpeg", "a.gif", "a.bmp", "a.svg", "a.webp"} {
		assert.NoError(t, CheckImage(pngBytes, name), name)
	}
	assert.Error(t, CheckImage(pngBytes, "noext"))
}
