package fetch

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/bnema/imgbatch/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFetcher_Fetch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/ok.jpg":
			_, _ = w.Write([]byte("image-bytes"))
		case "/big.jpg":
			_, _ = w.Write([]byte(strings.Repeat("x", 64)))
		case "/empty.jpg":
			w.WriteHeader(http.StatusOK)
		case "/slow.jpg":
			time.Sleep(200 * time.Millisecond)
			_, _ = w.Write([]byte("late"))
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	f := NewFetcher(100*time.Millisecond, 32)

	tests := []struct {
		name    string
		path    string
		want    string
		wantErr bool
	}{
		{"success", "/ok.jpg", "image-bytes", false},
		{"not found", "/missing.jpg", "", true},
		{"too large", "/big.jpg", "", true},
		{"empty body", "/empty.jpg", "", true},
		{"timeout", "/slow.jpg", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data, err := f.Fetch(context.Background(), srv.URL+tt.path)
			if tt.wantErr {
				assert.ErrorIs(t, err, domain.ErrDownload)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, string(data))
		})
	}
}

func TestFetcher_Fetch_InvalidURL(t *testing.T) {
	_, err := NewFetcher(time.Second, 0).Fetch(context.Background(), "::bad")
	assert.ErrorIs(t, err, domain.ErrDownload)

	_, err = NewFetcher(time.Second, 0).Fetch(context.Background(), "http://127.0.0.1:1/unreachable.jpg")
	assert.ErrorIs(t, err, domain.ErrDownload)
}

func TestFetcher_Fetch_CancelledContext(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("x"))
	}))
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := NewFetcher(time.Second, 0).Fetch(ctx, srv.URL)
	assert.ErrorIs(t, err, domain.ErrDownload)
}
