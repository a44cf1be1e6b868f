package tools

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
)

// maxWeatherBody caps the forecast response read into memory.
const maxWeatherBody = 2 << 20

// GetWeatherInput defines the arguments of the getWeather tool.
type GetWeatherInput struct {
	Latitude  *float64 `json:"latitude"`
	Longitude *float64 `json:"longitude"`
}

// Validate implements Validator.
func (in *GetWeatherInput) Validate() error {
	if in.Latitude == nil || in.Longitude == nil {
		return errors.New("latitude and longitude are required")
	}
	if *in.Latitude < -90 || *in.Latitude > 90 {
		return fmt.Errorf("latitude %v out of range", *in.Latitude)
	}
	if *in.Longitude < -180 || *in.Longitude > 180 {
		return fmt.Errorf("longitude %v out of range", *in.Longitude)
	}
	return nil
}

// NewGetWeather creates the getWeather tool. It returns the forecast JSON
// verbatim.
func NewGetWeather(deps *Dependencies) Tool {
	params := objectSchema(map[string]any{
		"latitude":  prop("number", ""),
		"longitude": prop("number", ""),
	}, "latitude", "longitude")

	return newTool(NameGetWeather, "Get the current weather at a location", params,
		func(ctx context.Context, env Env, in GetWeatherInput) (any, error) {
			u := forecastURL(deps.WeatherBaseURL, *in.Latitude, *in.Longitude)

			req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
			if err != nil {
				return nil, fmt.Errorf("build forecast request: %w", err)
			}
			resp, err := deps.HTTPClient.Do(req)
			if err != nil {
				return nil, fmt.Errorf("fetch forecast: %w", err)
			}
			defer resp.Body.Close()

			body, err := io.ReadAll(io.LimitReader(resp.Body, maxWeatherBody))
			if err != nil {
				return nil, fmt.Errorf("read forecast: %w", err)
			}
			if resp.StatusCode != http.StatusOK {
				return nil, fmt.Errorf("forecast service returned %d", resp.StatusCode)
			}
			if !json.Valid(body) {
				return nil, errors.New("forecast service returned invalid JSON")
			}
			return json.RawMessage(body), nil
		})
}

func forecastURL(base string, lat, lon float64) string {
	q := url.Values{}
	q.Set("latitude", strconv.FormatFloat(lat, 'f', -1, 64))
	q.Set("longitude", strconv.FormatFloat(lon, 'f', -1, 64))
	q.Set("current", "temperature_2m")
	q.Set("hourly", "temperature_2m")
	q.Set("daily", "sunrise,sunset")
	q.Set("timezone", "auto")
	return strings.TrimRight(base, "/") + "/v1/forecast?" + q.Encode()
}
