package domain

import (
	"time"

	"github.com/peaksell/peaksell/pkg/deyecloud"
	"github.com/peaksell/peaksell/pkg/openmeteo"
)

const (
	ACTOR_ID_MASTER       = "master"
	ACTOR_ID_DEYE         = "deye"
	ACTOR_ID_FORECAST     = "forecast"
	ACTOR_ID_SCHEDULER    = "scheduler"
	ACTOR_ID_MQTT         = "mqtt"
	ACTOR_ID_HA_DISCOVERY = "hadiscovery"
)

// Deye gateway actor messages

type GetDeviceStateRequest struct {
	ActorRequestMixIn
}

type GetDeviceStateResponse struct {
	ActorResponseMixIn
	State *DeviceState
}

type SetWorkModeRequest struct {
	ActorRequestMixIn
	Mode deyecloud.WorkMode
}

type SetWorkModeResponse struct {
	ActorResponseMixIn
}

type SetTOUPlanRequest struct {
	ActorRequestMixIn
	Plan deyecloud.TOUPlan
}

type SetTOUPlanResponse struct {
	ActorResponseMixIn
}

type GetTOUSettingsRequest struct {
	ActorRequestMixIn
}

type GetTOUSettingsResponse struct {
	ActorResponseMixIn
	Settings *deyecloud.TOUSettings
}

type ProbeDeviceRequest struct {
	ActorRequestMixIn
}

type ProbeDeviceResponse struct {
	ActorResponseMixIn
	Info *deyecloud.DeviceInfo
}

// Forecast actor messages

type GetForecastRequest struct {
	ActorRequestMixIn
	// MaxAge forces a refresh when the cached summary is older. Zero
	// accepts anything the cache holds.
	MaxAge time.Duration
}

type GetForecastResponse struct {
	ActorResponseMixIn
	Summary *ForecastSummary
}

type RefreshForecastRequest struct {
	ActorRequestMixIn
}

type RefreshForecastResponse struct {
	ActorResponseMixIn
}

type SearchCitiesRequest struct {
	ActorRequestMixIn
	Query string
}

type SearchCitiesResponse struct {
	ActorResponseMixIn
	Cities []openmeteo.City
}

// Scheduler actor messages

// SchedulerStatus is the scheduler's public view, served over HTTP and
// published over MQTT.
type SchedulerStatus struct {
	Enabled          bool          `json:"enabled"`
	LastTickAt       time.Time     `json:"last_tick_at"`
	InWindow         bool          `json:"in_window"`
	DischargeActive  bool          `json:"discharge_active"`
	WeatherSkip      bool          `json:"weather_skip"`
	Degraded         bool          `json:"degraded"`
	FreeEnergyActive bool          `json:"free_energy_active"`
	Reason           string        `json:"reason"`
	Desired          *DesiredState `json:"desired,omitempty"`
	Applied          *DesiredState `json:"applied,omitempty"`
	Device           *DeviceState  `json:"device,omitempty"`
	TomorrowYieldKWh float64       `json:"tomorrow_yield_kwh"`
	LastError        string        `json:"last_error,omitempty"`
}

type GetSchedulerStatusRequest struct {
	ActorRequestMixIn
}

type GetSchedulerStatusResponse struct {
	ActorResponseMixIn
	Status SchedulerStatus
}

// MQTT actor messages

type PublishMessageRequest struct {
	ActorRequestMixIn
	Topic   string
	Payload string
	Retain  bool
}

type PublishMessageResponse struct {
	ActorResponseMixIn
}

type PublishSensorUpdateRequest struct {
	ActorRequestMixIn
	Retain bool
	Event  SensorUpdateEvent
}

type PublishSensorUpdateResponse struct {
	ActorResponseMixIn
}

type PublishDiscoveryRequest struct {
	ActorRequestMixIn
	Sensors  []GenericSensor
	Switches []GenericSwitch
}

type PublishDiscoveryResponse struct {
	ActorResponseMixIn
}

// Health check

type ActorHealthRequest struct {
	ActorRequestMixIn
}

type ActorHealthResponse struct {
	ActorResponseMixIn
	Id      string
	Healthy bool
	State   string
}
