package tools

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestGetWeather(t *testing.T) {
	var gotQuery string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/forecast", r.URL.Path)
		gotQuery = r.URL.RawQuery
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"current":{"temperature_2m":21.5}}`))
	}))
	defer srv.Close()

	h := newHarness(t, &Dependencies{WeatherBaseURL: srv.URL + "/", HTTPClient: srv.Client()})
	out := h.exec(NameGetWeather, `{"latitude":48.2,"longitude":16.37}`)

	assert.Equal(t, map[string]any{"temperature_2m": 21.5}, out["current"])
	assert.Contains(t, gotQuery, "latitude=48.2")
	assert.Contains(t, gotQuery, "longitude=16.37")
	assert.Contains(t, gotQuery, "timezone=auto")
}

func TestGetWeather_UpstreamFailure(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
	}{
		{name: "server error", status: http.StatusBadGateway, body: `{}`},
		{name: "invalid json", status: http.StatusOK, body: `<html>`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			}))
			defer srv.Close()

			h := newHarness(t, &Dependencies{WeatherBaseURL: srv.URL, HTTPClient: srv.Client()})
			out := h.exec(NameGetWeather, `{"latitude":0,"longitude":0}`)
			assert.Contains(t, out["error"], "Tool getWeather failed")
		})
	}
}

func TestForecastURL(t *testing.T) {
	u := forecastURL("https://example.test/", -33.5, 151)
	assert.Equal(t,
		"https://example.test/v1/forecast?current=temperature_2m&daily=sunrise%2Csunset&hourly=temperature_2m&latitude=-33.5&longitude=151&timezone=auto",
		u)
}
