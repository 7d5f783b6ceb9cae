package openmeteo

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

// Source is the forecast-facing surface of the Open-Meteo API. The API
// is keyless, so a Source needs no credentials.
type Source interface {
	// DailyForecast returns up to days daily forecasts starting today,
	// local to tz (IANA name or "auto").
	DailyForecast(ctx context.Context, lat, lon float64, tz string, days int) ([]DayForecast, error)
	// SearchCities geocodes a free-form city name.
	SearchCities(ctx context.Context, name string, count int) ([]City, error)
}

const (
	defaultForecastURL = "https://api.open-meteo.com/v1/forecast"
	defaultGeocodeURL  = "https://geocoding-api.open-meteo.com/v1/search"

	dailyVariables = "weather_code,cloud_cover_mean,precipitation_probability_max,temperature_2m_max,temperature_2m_min,shortwave_radiation_sum"
)

type ClientParams struct {
	// ForecastURL and GeocodeURL override the public endpoints. Empty
	// values select the defaults.
	ForecastURL string
	GeocodeURL  string
	Timeout     time.Duration
}

type Client struct {
	forecastURL string
	geocodeURL  string
	http        *http.Client
}

func NewClient(params ClientParams) *Client {
	forecastURL := params.ForecastURL
	if forecastURL == "" {
		forecastURL = defaultForecastURL
	}
	geocodeURL := params.GeocodeURL
	if geocodeURL == "" {
		geocodeURL = defaultGeocodeURL
	}
	timeout := params.Timeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &Client{
		forecastURL: forecastURL,
		geocodeURL:  geocodeURL,
		http:        &http.Client{Timeout: timeout},
	}
}

func (c *Client) get(ctx context.Context, rawURL string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}
	if resp.StatusCode != http.StatusOK {
		// error responses carry a reason field
		var apiErr struct {
			Reason string `json:"reason"`
		}
		_ = json.Unmarshal(data, &apiErr)
		if apiErr.Reason != "" {
			return fmt.Errorf("open-meteo: %s", apiErr.Reason)
		}
		return fmt.Errorf("open-meteo: status %d", resp.StatusCode)
	}
	return json.Unmarshal(data, out)
}

type dailyResponse struct {
	Daily struct {
		Time            []string  `json:"time"`
		WeatherCode     []int     `json:"weather_code"`
		CloudCoverMean  []float64 `json:"cloud_cover_mean"`
		PrecipProbMax   []float64 `json:"precipitation_probability_max"`
		TempMax         []float64 `json:"temperature_2m_max"`
		TempMin         []float64 `json:"temperature_2m_min"`
		ShortwaveRadSum []float64 `json:"shortwave_radiation_sum"`
	} `json:"daily"`
}

func (c *Client) DailyForecast(ctx context.Context, lat, lon float64, tz string, days int) ([]DayForecast, error) {
	if days <= 0 {
		days = 8
	}
	if tz == "" {
		tz = "auto"
	}
	q := url.Values{}
	q.Set("latitude", strconv.FormatFloat(lat, 'f', 4, 64))
	q.Set("longitude", strconv.FormatFloat(lon, 'f', 4, 64))
	q.Set("daily", dailyVariables)
	q.Set("timezone", tz)
	q.Set("forecast_days", strconv.Itoa(days))

	var resp dailyResponse
	if err := c.get(ctx, c.forecastURL+"?"+q.Encode(), &resp); err != nil {
		return nil, err
	}
	if len(resp.Daily.Time) == 0 {
		return nil, fmt.Errorf("open-meteo: empty daily forecast")
	}

	out := make([]DayForecast, 0, len(resp.Daily.Time))
	for i, date := range resp.Daily.Time {
		day := DayForecast{Date: date}
		if i < len(resp.Daily.WeatherCode) {
			day.WeatherCode = resp.Daily.WeatherCode[i]
			day.Condition = ConditionForCode(day.WeatherCode)
		}
		if i < len(resp.Daily.CloudCoverMean) {
			day.CloudCoverPct = int(resp.Daily.CloudCoverMean[i])
		}
		if i < len(resp.Daily.PrecipProbMax) {
			day.PrecipProbPct = int(resp.Daily.PrecipProbMax[i])
		}
		if i < len(resp.Daily.TempMax) {
			day.TempMaxC = resp.Daily.TempMax[i]
		}
		if i < len(resp.Daily.TempMin) {
			day.TempMinC = resp.Daily.TempMin[i]
		}
		if i < len(resp.Daily.ShortwaveRadSum) {
			day.RadiationMJm2 = resp.Daily.ShortwaveRadSum[i]
		}
		out = append(out, day)
	}
	return out, nil
}

func (c *Client) SearchCities(ctx context.Context, name string, count int) ([]City, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, fmt.Errorf("open-meteo: empty city name")
	}
	if count <= 0 {
		count = 10
	}
	q := url.Values{}
	q.Set("name", name)
	q.Set("count", strconv.Itoa(count))
	q.Set("language", "en")
	q.Set("format", "json")

	var resp struct {
		Results []City `json:"results"`
	}
	if err := c.get(ctx, c.geocodeURL+"?"+q.Encode(), &resp); err != nil {
		return nil, err
	}
	return resp.Results, nil
}

// ensure interface compliance
var _ Source = (*Client)(nil)
