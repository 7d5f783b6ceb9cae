package openmeteo

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConditionForCode(t *testing.T) {
	assert.Equal(t, ConditionClear, ConditionForCode(0))
	assert.Equal(t, ConditionClouds, ConditionForCode(3))
	assert.Equal(t, ConditionFog, ConditionForCode(45))
	assert.Equal(t, ConditionDrizzle, ConditionForCode(53))
	assert.Equal(t, ConditionRain, ConditionForCode(63))
	assert.Equal(t, ConditionRain, ConditionForCode(81))
	assert.Equal(t, ConditionSnow, ConditionForCode(75))
	assert.Equal(t, ConditionSnow, ConditionForCode(86))
	assert.Equal(t, ConditionThunderstorm, ConditionForCode(95))
	assert.Equal(t, ConditionUnknown, ConditionForCode(42))
}

func TestDailyForecast(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "51.5000", r.URL.Query().Get("latitude"))
		assert.Equal(t, "Europe/London", r.URL.Query().Get("timezone"))
		assert.Equal(t, "3", r.URL.Query().Get("forecast_days"))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"daily": {
				"time": ["2026-08-26", "2026-08-27", "2026-08-28"],
				"weather_code": [0, 61, 3],
				"cloud_cover_mean": [10.2, 85.0, 60.1],
				"precipitation_probability_max": [5, 90, 30],
				"temperature_2m_max": [24.1, 18.0, 20.5],
				"temperature_2m_min": [14.0, 12.3, 13.1],
				"shortwave_radiation_sum": [22.5, 6.1, 14.0]
			}
		}`))
	}))
	defer srv.Close()

	client := NewClient(ClientParams{ForecastURL: srv.URL})
	days, err := client.DailyForecast(context.Background(), 51.5, -0.12, "Europe/London", 3)
	require.NoError(t, err)
	require.Len(t, days, 3)

	assert.Equal(t, "2026-08-26", days[0].Date)
	assert.Equal(t, ConditionClear, days[0].Condition)
	assert.Equal(t, 10, days[0].CloudCoverPct)
	assert.Equal(t, 22.5, days[0].RadiationMJm2)

	assert.Equal(t, ConditionRain, days[1].Condition)
	assert.Equal(t, 90, days[1].PrecipProbPct)
}

func TestDailyForecastError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"error": true, "reason": "Latitude must be in range"}`))
	}))
	defer srv.Close()

	client := NewClient(ClientParams{ForecastURL: srv.URL})
	_, err := client.DailyForecast(context.Background(), 999, 0, "auto", 3)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Latitude must be in range")
}

func TestSearchCities(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Madrid", r.URL.Query().Get("name"))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"results": [
				{"id": 3117735, "name": "Madrid", "latitude": 40.4165, "longitude": -3.7026,
				 "country": "Spain", "admin1": "Madrid", "timezone": "Europe/Madrid"}
			]
		}`))
	}))
	defer srv.Close()

	client := NewClient(ClientParams{GeocodeURL: srv.URL})
	cities, err := client.SearchCities(context.Background(), "Madrid", 5)
	require.NoError(t, err)
	require.Len(t, cities, 1)
	assert.Equal(t, "Madrid", cities[0].Name)
	assert.Equal(t, "Europe/Madrid", cities[0].Timezone)

	_, err = client.SearchCities(context.Background(), "   ", 5)
	assert.Error(t, err)
}
