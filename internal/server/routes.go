package server

import (
	"net/http"
	"time"

	"github.com/peaksell/peaksell/internal/config"
	"github.com/peaksell/peaksell/internal/core/domain"
	"github.com/peaksell/peaksell/pkg/deyecloud"
	"github.com/peaksell/peaksell/pkg/openmeteo"

	"github.com/carlmjohnson/versioninfo"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
)

const actorRequestTimeout = 40 * time.Second

func (s *Server) RegisterRoutes() http.Handler {
	e := echo.New()
	if s.httpLog {
		e.Use(middleware.Logger())
	}
	e.Use(middleware.Recover())

	e.GET("/healthcheck", s.HealthCheckHandler)

	api := e.Group("/api")
	api.GET("/status", s.StatusHandler)
	api.GET("/config", s.GetConfigHandler)
	api.POST("/config", s.UpdateScheduleHandler)
	api.GET("/weather", s.GetForecastHandler)
	api.GET("/weather/config", s.GetWeatherConfigHandler)
	api.POST("/weather/config", s.UpdateWeatherConfigHandler)
	api.GET("/weather/cities", s.SearchCitiesHandler)
	api.GET("/free-energy/config", s.GetFreeEnergyConfigHandler)
	api.POST("/free-energy/config", s.UpdateFreeEnergyConfigHandler)
	api.GET("/work-mode", s.GetWorkModeHandler)
	api.POST("/work-mode", s.SetWorkModeHandler)
	api.GET("/soc", s.GetSoCHandler)
	api.GET("/tou", s.GetTOUHandler)
	api.GET("/device", s.GetDeviceInfoHandler)
	api.POST("/scheduler/start", s.SchedulerStartHandler)
	api.POST("/scheduler/stop", s.SchedulerStopHandler)
	api.POST("/scheduler/tick", s.SchedulerTickHandler)
	api.GET("/setup/status", s.SetupStatusHandler)
	api.POST("/setup/test-device", s.TestDeviceHandler)
	api.POST("/setup/test-weather", s.TestWeatherHandler)

	return e
}

type statusResponse struct {
	domain.SchedulerStatus
	ServerTime time.Time `json:"server_time"`
	Version    string    `json:"version"`
}

type errorResponse struct {
	Error string `json:"error"`
}

func errJSON(err error) errorResponse {
	return errorResponse{Error: err.Error()}
}

// request routes a message to the master and waits for the reply.
func (s *Server) request(msg any) (any, error) {
	return s.rootContext.RequestFuture(s.masterActor, msg, actorRequestTimeout).Result()
}

func (s *Server) HealthCheckHandler(c echo.Context) error {
	res, err := s.rootContext.RequestFuture(s.masterActor, domain.ActorHealthRequest{}, 10*time.Second).Result()
	if err != nil {
		return c.String(http.StatusServiceUnavailable, "health_check: FAIL")
	}
	if response, ok := res.(domain.ActorHealthResponse); ok && response.Healthy {
		return c.String(http.StatusOK, "health_check: OK")
	}
	return c.String(http.StatusServiceUnavailable, "health_check: FAIL")
}

func (s *Server) StatusHandler(c echo.Context) error {
	res, err := s.request(domain.GetSchedulerStatusRequest{})
	if err != nil {
		return c.JSON(http.StatusServiceUnavailable, errJSON(err))
	}
	resp, ok := res.(domain.GetSchedulerStatusResponse)
	if !ok {
		return c.NoContent(http.StatusInternalServerError)
	}
	return c.JSON(http.StatusOK, statusResponse{
		SchedulerStatus: resp.Status,
		ServerTime:      time.Now(),
		Version:         versioninfo.Short(),
	})
}

func (s *Server) GetConfigHandler(c echo.Context) error {
	cfg := s.store.Get()
	return c.JSON(http.StatusOK, config.Settings{
		Schedule:   cfg.Schedule,
		Weather:    cfg.Weather,
		FreeEnergy: cfg.FreeEnergy,
	})
}

func (s *Server) UpdateScheduleHandler(c echo.Context) error {
	var sc config.ScheduleConfig
	if err := c.Bind(&sc); err != nil {
		return c.JSON(http.StatusBadRequest, errJSON(err))
	}
	if err := s.store.UpdateSchedule(sc); err != nil {
		return c.JSON(http.StatusBadRequest, errJSON(err))
	}
	s.broadcastConfig()
	return c.JSON(http.StatusOK, sc)
}

func (s *Server) GetForecastHandler(c echo.Context) error {
	res, err := s.request(domain.GetForecastRequest{})
	if err != nil {
		return c.JSON(http.StatusServiceUnavailable, errJSON(err))
	}
	resp, ok := res.(domain.GetForecastResponse)
	if !ok {
		return c.NoContent(http.StatusInternalServerError)
	}
	if resp.Summary == nil {
		return c.NoContent(http.StatusNotFound)
	}
	return c.JSON(http.StatusOK, resp.Summary)
}

func (s *Server) GetWeatherConfigHandler(c echo.Context) error {
	return c.JSON(http.StatusOK, s.store.Get().Weather)
}

func (s *Server) UpdateWeatherConfigHandler(c echo.Context) error {
	var wc config.WeatherConfig
	if err := c.Bind(&wc); err != nil {
		return c.JSON(http.StatusBadRequest, errJSON(err))
	}
	if err := s.store.UpdateWeather(wc); err != nil {
		return c.JSON(http.StatusBadRequest, errJSON(err))
	}
	s.broadcastConfig()
	return c.JSON(http.StatusOK, wc)
}

func (s *Server) SearchCitiesHandler(c echo.Context) error {
	query := c.QueryParam("q")
	if query == "" {
		return c.JSON(http.StatusBadRequest, errorResponse{Error: "query param q is required"})
	}
	res, err := s.request(domain.SearchCitiesRequest{Query: query})
	if err != nil {
		return c.JSON(http.StatusServiceUnavailable, errJSON(err))
	}
	resp, ok := res.(domain.SearchCitiesResponse)
	if !ok {
		return c.NoContent(http.StatusInternalServerError)
	}
	if resp.HasResponseError() {
		return c.JSON(http.StatusBadGateway, errJSON(resp.GetResponseError()))
	}
	return c.JSON(http.StatusOK, resp.Cities)
}

func (s *Server) GetFreeEnergyConfigHandler(c echo.Context) error {
	return c.JSON(http.StatusOK, s.store.Get().FreeEnergy)
}

func (s *Server) UpdateFreeEnergyConfigHandler(c echo.Context) error {
	var fc config.FreeEnergyConfig
	if err := c.Bind(&fc); err != nil {
		return c.JSON(http.StatusBadRequest, errJSON(err))
	}
	if err := s.store.UpdateFreeEnergy(fc); err != nil {
		return c.JSON(http.StatusBadRequest, errJSON(err))
	}
	s.broadcastConfig()
	return c.JSON(http.StatusOK, fc)
}

type workModeBody struct {
	Mode deyecloud.WorkMode `json:"mode"`
}

func (s *Server) GetWorkModeHandler(c echo.Context) error {
	res, err := s.request(domain.GetDeviceStateRequest{})
	if err != nil {
		return c.JSON(http.StatusServiceUnavailable, errJSON(err))
	}
	resp, ok := res.(domain.GetDeviceStateResponse)
	if !ok {
		return c.NoContent(http.StatusInternalServerError)
	}
	if resp.HasResponseError() {
		return c.JSON(http.StatusBadGateway, errJSON(resp.GetResponseError()))
	}
	return c.JSON(http.StatusOK, workModeBody{Mode: resp.State.Mode})
}

func (s *Server) SetWorkModeHandler(c echo.Context) error {
	var body workModeBody
	if err := c.Bind(&body); err != nil {
		return c.JSON(http.StatusBadRequest, errJSON(err))
	}
	if !body.Mode.Valid() {
		return c.JSON(http.StatusBadRequest, errorResponse{Error: "invalid work mode"})
	}
	res, err := s.request(domain.SetWorkModeRequest{Mode: body.Mode})
	if err != nil {
		return c.JSON(http.StatusServiceUnavailable, errJSON(err))
	}
	resp, ok := res.(domain.SetWorkModeResponse)
	if !ok {
		return c.NoContent(http.StatusInternalServerError)
	}
	if resp.HasResponseError() {
		return c.JSON(http.StatusBadGateway, errJSON(resp.GetResponseError()))
	}
	return c.JSON(http.StatusOK, body)
}

type socResponse struct {
	StateOfCharge  float64   `json:"state_of_charge"`
	PowerWatt      float64   `json:"power_watt"`
	RatedPowerWatt float64   `json:"rated_power_watt"`
	FetchedAt      time.Time `json:"fetched_at"`
}

func (s *Server) GetSoCHandler(c echo.Context) error {
	res, err := s.request(domain.GetDeviceStateRequest{})
	if err != nil {
		return c.JSON(http.StatusServiceUnavailable, errJSON(err))
	}
	resp, ok := res.(domain.GetDeviceStateResponse)
	if !ok {
		return c.NoContent(http.StatusInternalServerError)
	}
	if resp.HasResponseError() {
		return c.JSON(http.StatusBadGateway, errJSON(resp.GetResponseError()))
	}
	return c.JSON(http.StatusOK, socResponse{
		StateOfCharge:  resp.State.Battery.StateOfCharge,
		PowerWatt:      resp.State.Battery.PowerWatt,
		RatedPowerWatt: resp.State.Battery.RatedPowerWatt,
		FetchedAt:      resp.State.FetchedAt,
	})
}

// GetTOUHandler reads the TOU plan currently active on the device.
func (s *Server) GetTOUHandler(c echo.Context) error {
	res, err := s.request(domain.GetTOUSettingsRequest{})
	if err != nil {
		return c.JSON(http.StatusServiceUnavailable, errJSON(err))
	}
	resp, ok := res.(domain.GetTOUSettingsResponse)
	if !ok {
		return c.NoContent(http.StatusInternalServerError)
	}
	if resp.HasResponseError() {
		return c.JSON(http.StatusBadGateway, errJSON(resp.GetResponseError()))
	}
	return c.JSON(http.StatusOK, resp.Settings)
}

func (s *Server) GetDeviceInfoHandler(c echo.Context) error {
	res, err := s.request(domain.ProbeDeviceRequest{})
	if err != nil {
		return c.JSON(http.StatusServiceUnavailable, errJSON(err))
	}
	resp, ok := res.(domain.ProbeDeviceResponse)
	if !ok {
		return c.NoContent(http.StatusInternalServerError)
	}
	if resp.HasResponseError() {
		return c.JSON(http.StatusBadGateway, errJSON(resp.GetResponseError()))
	}
	return c.JSON(http.StatusOK, resp.Info)
}

func (s *Server) SchedulerStartHandler(c echo.Context) error {
	return s.schedulerRun(c, true)
}

func (s *Server) SchedulerStopHandler(c echo.Context) error {
	return s.schedulerRun(c, false)
}

func (s *Server) schedulerRun(c echo.Context, enable bool) error {
	res, err := s.request(domain.SchedulerRunRequest{Enable: enable})
	if err != nil {
		return c.JSON(http.StatusServiceUnavailable, errJSON(err))
	}
	resp, ok := res.(domain.SchedulerRunResponse)
	if !ok {
		return c.NoContent(http.StatusInternalServerError)
	}
	// persist the toggle and let the master refresh its config snapshot,
	// so a supervisor respawn keeps the current enable state
	sc := s.store.Get().Schedule
	if sc.Enabled != enable {
		sc.Enabled = enable
		if err := s.store.UpdateSchedule(sc); err != nil {
			return c.JSON(http.StatusInternalServerError, errJSON(err))
		}
		s.broadcastConfig()
	}
	return c.JSON(http.StatusOK, map[string]bool{"enabled": enable, "changed": resp.Changed})
}

func (s *Server) SchedulerTickHandler(c echo.Context) error {
	res, err := s.request(domain.SchedulerTickRequest{})
	if err != nil {
		return c.JSON(http.StatusServiceUnavailable, errJSON(err))
	}
	resp, ok := res.(domain.SchedulerTickResponse)
	if !ok {
		return c.NoContent(http.StatusInternalServerError)
	}
	if resp.HasResponseError() {
		return c.JSON(http.StatusBadGateway, errJSON(resp.GetResponseError()))
	}
	return c.NoContent(http.StatusOK)
}

type setupStatus struct {
	DeviceConfigured  bool `json:"device_configured"`
	WeatherConfigured bool `json:"weather_configured"`
	MQTTEnabled       bool `json:"mqtt_enabled"`
}

func (s *Server) SetupStatusHandler(c echo.Context) error {
	cfg := s.store.Get()
	return c.JSON(http.StatusOK, setupStatus{
		DeviceConfigured:  config.ValidateDeye(cfg.Deye) == nil,
		WeatherConfigured: cfg.Weather.Enabled && config.ValidateWeather(cfg.Weather) == nil,
		MQTTEnabled:       cfg.MQTT.Enabled,
	})
}

// TestDeviceHandler probes the cloud with credentials from the request
// body, without touching the running gateway.
func (s *Server) TestDeviceHandler(c echo.Context) error {
	var dc config.DeyeConfig
	if err := c.Bind(&dc); err != nil {
		return c.JSON(http.StatusBadRequest, errJSON(err))
	}
	if err := config.ValidateDeye(dc); err != nil {
		return c.JSON(http.StatusBadRequest, errJSON(err))
	}
	client := deyecloud.NewClient(deyecloud.ClientParams{
		BaseURL:   dc.BaseURL,
		AppID:     dc.AppId,
		AppSecret: dc.AppSecret,
		Email:     dc.Email,
		Password:  dc.Password,
		DeviceSN:  dc.DeviceSN,
	})
	info, err := client.Probe(c.Request().Context())
	if err != nil {
		return c.JSON(http.StatusBadGateway, errJSON(err))
	}
	return c.JSON(http.StatusOK, info)
}

type testWeatherBody struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
	Timezone  string  `json:"timezone"`
}

// TestWeatherHandler fetches a two-day forecast for the coordinates in
// the request body.
func (s *Server) TestWeatherHandler(c echo.Context) error {
	var body testWeatherBody
	if err := c.Bind(&body); err != nil {
		return c.JSON(http.StatusBadRequest, errJSON(err))
	}
	if body.Latitude < -90 || body.Latitude > 90 || body.Longitude < -180 || body.Longitude > 180 {
		return c.JSON(http.StatusBadRequest, errorResponse{Error: "invalid coordinates"})
	}
	client := openmeteo.NewClient(openmeteo.ClientParams{})
	days, err := client.DailyForecast(c.Request().Context(), body.Latitude, body.Longitude, body.Timezone, 2)
	if err != nil {
		return c.JSON(http.StatusBadGateway, errJSON(err))
	}
	return c.JSON(http.StatusOK, days)
}

func (s *Server) broadcastConfig() {
	s.rootContext.Send(s.masterActor, domain.ConfigUpdatedCommand{Config: s.store.Get()})
}
