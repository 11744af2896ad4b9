package weather

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFetchWeather(t *testing.T) {
	page := loadFixture(t)
	var userAgent atomic.Value
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		userAgent.Store(r.UserAgent())
		if r.URL.Path != "/ru/moscow" {
			http.NotFound(w, r)
			return
		}
		w.Write(page)
	}))
	defer server.Close()

	client := NewClient(WithBaseURL(server.URL+"/ru/"), WithUserAgent("weatherbot-test"))

	forecast, err := client.FetchWeather(context.Background(), "Moscow")
	require.NoError(t, err)

	assert.Equal(t, "Moscow", forecast.City)
	assert.Equal(t, server.URL+"/ru/moscow", forecast.Source)
	assert.Len(t, forecast.Table.Rows, 6)
	assert.Equal(t, "weatherbot-test", userAgent.Load())
}

func TestFetchWeatherUnparsablePage(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("<html><body>Please solve the captcha</body></html>"))
	}))
	defer server.Close()

	forecast, err := NewClient(WithBaseURL(server.URL)).FetchWeather(context.Background(), "kazan")
	require.NoError(t, err)

	assert.True(t, forecast.Empty())
	require.Len(t, forecast.Errors, 1)
	assert.Contains(t, forecast.Errors[0], "failed to parse")
}

func TestFetchWeatherRetriesServerErrors(t *testing.T) {
	var calls atomic.Int32
	page := loadFixture(t)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		w.Write(page)
	}))
	defer server.Close()

	client := NewClient(WithBaseURL(server.URL), WithRetries(3, time.Millisecond))

	forecast, err := client.FetchWeather(context.Background(), "moscow")
	require.NoError(t, err)
	assert.False(t, forecast.Empty())
	assert.Equal(t, int32(3), calls.Load())
}

func TestFetchWeatherDoesNotRetryNotFound(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		http.NotFound(w, r)
	}))
	defer server.Close()

	_, err := NewClient(WithBaseURL(server.URL), WithRetries(3, time.Millisecond)).
		FetchWeather(context.Background(), "atlantis")

	require.Error(t, err)
	assert.Contains(t, err.Error(), "404")
	assert.Equal(t, int32(1), calls.Load())
}
