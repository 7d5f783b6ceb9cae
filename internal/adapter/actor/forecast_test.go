package actor

import (
	"errors"
	"testing"
	"time"

	"github.com/peaksell/peaksell/internal/config"
	"github.com/peaksell/peaksell/internal/core/domain"
	"github.com/peaksell/peaksell/internal/util/actorutil"
	"github.com/peaksell/peaksell/pkg/openmeteo"

	"github.com/asynkron/protoactor-go/actor"
	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
)

func testWeatherConfig() config.WeatherConfig {
	return config.WeatherConfig{
		Enabled:                true,
		Latitude:               40.4168,
		Longitude:              -3.7038,
		Timezone:               "Europe/Madrid",
		SystemKWp:              5,
		CloudCoverThreshold:    70,
		PrecipProbThreshold:    70,
		RefreshIntervalMinutes: 30,
	}
}

func testForecastDays() []openmeteo.DayForecast {
	return []openmeteo.DayForecast{
		{
			Date:          "2026-08-26",
			Condition:     openmeteo.ConditionClear,
			CloudCoverPct: 10,
			RadiationMJm2: 27,
		},
		{
			Date:          "2026-08-27",
			Condition:     openmeteo.ConditionClear,
			CloudCoverPct: 15,
			RadiationMJm2: 27,
		},
	}
}

func TestGetForecastActor(t *testing.T) {

	assert := assert.New(t)

	source := openmeteo.NewTestSource(testForecastDays())

	logger := zap.Must(zap.NewDevelopment())

	as := actorutil.NewActorSystemWithZapLogger(logger)
	context := as.Root

	props := actor.PropsFromProducer(func() actor.Actor { return NewForecastActor(source, testWeatherConfig(), logger) })
	pid := context.Spawn(props)

	msg := domain.GetForecastRequest{}
	result, err := context.RequestFuture(pid, msg, 15*time.Second).Result()
	if err != nil {
		t.Error(err)
		return
	}
	resp := result.(domain.GetForecastResponse)

	assert.NotNil(resp.Summary)
	assert.False(resp.Summary.Degraded, "degraded")
	assert.False(resp.Summary.TomorrowBad, "tomorrow bad")
	// 27 MJ/m² / 3.6 * 5 kWp * 0.8 = 30 kWh
	assert.InDelta(30, resp.Summary.TomorrowYieldKWh, 0.01, "tomorrow yield")

	// second request is served from cache
	result, err = context.RequestFuture(pid, msg, 15*time.Second).Result()
	if err != nil {
		t.Error(err)
		return
	}
	resp = result.(domain.GetForecastResponse)
	assert.NotNil(resp.Summary)
	assert.Equal(1, source.ForecastCalls, "forecast calls")

	context.Stop(pid)

	as.Shutdown()
}

func TestGetForecastActorDisabled(t *testing.T) {

	assert := assert.New(t)

	source := openmeteo.NewTestSource(testForecastDays())

	cfg := testWeatherConfig()
	cfg.Enabled = false

	logger := zap.Must(zap.NewDevelopment())

	as := actorutil.NewActorSystemWithZapLogger(logger)
	context := as.Root

	props := actor.PropsFromProducer(func() actor.Actor { return NewForecastActor(source, cfg, logger) })
	pid := context.Spawn(props)

	result, err := context.RequestFuture(pid, domain.GetForecastRequest{}, 15*time.Second).Result()
	if err != nil {
		t.Error(err)
		return
	}
	resp := result.(domain.GetForecastResponse)
	assert.Nil(resp.Summary, "summary when disabled")
	assert.Equal(0, source.ForecastCalls, "forecast calls")

	context.Stop(pid)

	as.Shutdown()
}

func TestGetForecastActorDegraded(t *testing.T) {

	assert := assert.New(t)

	source := openmeteo.NewTestSource(nil)
	source.Fail(errors.New("upstream down"))

	logger := zap.Must(zap.NewDevelopment())

	as := actorutil.NewActorSystemWithZapLogger(logger)
	context := as.Root

	props := actor.PropsFromProducer(func() actor.Actor { return NewForecastActor(source, testWeatherConfig(), logger) })
	pid := context.Spawn(props)

	result, err := context.RequestFuture(pid, domain.GetForecastRequest{}, 15*time.Second).Result()
	if err != nil {
		t.Error(err)
		return
	}
	resp := result.(domain.GetForecastResponse)

	assert.NotNil(resp.Summary)
	assert.True(resp.Summary.Degraded, "degraded on fetch failure")

	context.Stop(pid)

	as.Shutdown()
}

func TestSearchCitiesForecastActor(t *testing.T) {

	assert := assert.New(t)

	source := openmeteo.NewTestSource(nil)
	source.Cities = []openmeteo.City{
		{ID: 3117735, Name: "Madrid", Latitude: 40.4165, Longitude: -3.7026, Country: "Spain", Timezone: "Europe/Madrid"},
	}

	logger := zap.Must(zap.NewDevelopment())

	as := actorutil.NewActorSystemWithZapLogger(logger)
	context := as.Root

	props := actor.PropsFromProducer(func() actor.Actor { return NewForecastActor(source, testWeatherConfig(), logger) })
	pid := context.Spawn(props)

	result, err := context.RequestFuture(pid, domain.SearchCitiesRequest{Query: "Madrid"}, 15*time.Second).Result()
	if err != nil {
		t.Error(err)
		return
	}
	resp := result.(domain.SearchCitiesResponse)

	assert.False(resp.HasResponseError())
	assert.Len(resp.Cities, 1)
	assert.Equal("Madrid", resp.Cities[0].Name)

	context.Stop(pid)

	as.Shutdown()
}
