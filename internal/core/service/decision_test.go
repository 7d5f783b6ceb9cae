package service

import (
	"testing"
	"time"

	"github.com/peaksell/peaksell/internal/config"
	"github.com/peaksell/peaksell/internal/core/domain"
	"github.com/peaksell/peaksell/pkg/deyecloud"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func testConfig() config.Config {
	return config.Config{
		Schedule: config.ScheduleConfig{
			Enabled:            true,
			StartTime:          "17:30",
			EndTime:            "19:30",
			CutoffSoC:          50,
			ReserveSoC:         20,
			DischargePowerWatt: 10000,
			IntervalSeconds:    30,
		},
		Weather: config.WeatherConfig{Enabled: false},
	}
}

func deviceAt(soc float64) domain.DeviceState {
	return domain.DeviceState{
		Battery: deyecloud.BatteryInfo{StateOfCharge: soc},
		Mode:    deyecloud.WorkModeZeroExportToCT,
	}
}

func at(hhmm string) time.Time {
	parsed, err := time.Parse("15:04", hhmm)
	if err != nil {
		panic(err)
	}
	return time.Date(2026, 8, 26, parsed.Hour(), parsed.Minute(), 0, 0, time.Local)
}

func goodForecast() *domain.ForecastSummary {
	return &domain.ForecastSummary{
		Days: []domain.ForecastDay{
			{Date: "2026-08-26", Condition: "Clear", YieldKWh: 20},
			{Date: "2026-08-27", Condition: "Clear", YieldKWh: 22},
		},
		TomorrowYieldKWh: 22,
	}
}

func badForecast() *domain.ForecastSummary {
	f := goodForecast()
	f.Days[1].Condition = "Rain"
	f.Days[1].Bad = true
	f.TomorrowBad = true
	f.TomorrowYieldKWh = 3
	return f
}

func TestDecideDischargesInWindow(t *testing.T) {
	logic := &DefaultDecisionLogic{Logger: zap.NewNop()}

	d := logic.Decide(at("18:00"), deviceAt(80), nil, testConfig())

	assert.True(t, d.DischargeActive)
	assert.True(t, d.InWindow)
	assert.Equal(t, deyecloud.WorkModeSellingFirst, d.Desired.Mode)
	assert.Equal(t, 50, d.Desired.WindowSoC)
	assert.False(t, d.WeatherSkip)
}

func TestDecideOutsideWindow(t *testing.T) {
	logic := &DefaultDecisionLogic{Logger: zap.NewNop()}

	d := logic.Decide(at("16:00"), deviceAt(80), nil, testConfig())

	assert.False(t, d.DischargeActive)
	assert.False(t, d.InWindow)
	assert.Equal(t, deyecloud.WorkModeZeroExportToCT, d.Desired.Mode)
	assert.Equal(t, 20, d.Desired.WindowSoC)
}

func TestDecideCutoffIsExclusive(t *testing.T) {
	logic := &DefaultDecisionLogic{Logger: zap.NewNop()}

	// exactly at the cutoff there is nothing left to sell
	d := logic.Decide(at("18:00"), deviceAt(50), nil, testConfig())
	assert.False(t, d.DischargeActive)
	assert.Equal(t, deyecloud.WorkModeZeroExportToCT, d.Desired.Mode)

	d = logic.Decide(at("18:00"), deviceAt(50.5), nil, testConfig())
	assert.True(t, d.DischargeActive)
}

func TestDecideWindowBoundaries(t *testing.T) {
	logic := &DefaultDecisionLogic{Logger: zap.NewNop()}

	// window start is inclusive, window end is exclusive
	d := logic.Decide(at("17:30"), deviceAt(80), nil, testConfig())
	assert.True(t, d.DischargeActive)

	d = logic.Decide(at("19:30"), deviceAt(80), nil, testConfig())
	assert.False(t, d.DischargeActive)

	d = logic.Decide(at("19:29"), deviceAt(80), nil, testConfig())
	assert.True(t, d.DischargeActive)
}

func TestDecideWrapAroundWindow(t *testing.T) {
	logic := &DefaultDecisionLogic{Logger: zap.NewNop()}
	cfg := testConfig()
	cfg.Schedule.StartTime = "22:00"
	cfg.Schedule.EndTime = "06:00"

	d := logic.Decide(at("23:30"), deviceAt(80), nil, cfg)
	assert.True(t, d.DischargeActive)

	d = logic.Decide(at("02:00"), deviceAt(80), nil, cfg)
	assert.True(t, d.DischargeActive)

	d = logic.Decide(at("12:00"), deviceAt(80), nil, cfg)
	assert.False(t, d.DischargeActive)
}

func TestDecideWeatherSkip(t *testing.T) {
	logic := &DefaultDecisionLogic{Logger: zap.NewNop()}
	cfg := testConfig()
	cfg.Weather = config.WeatherConfig{Enabled: true, CloudCoverThreshold: 70, PrecipProbThreshold: 70}

	d := logic.Decide(at("18:00"), deviceAt(80), badForecast(), cfg)

	assert.False(t, d.DischargeActive)
	assert.True(t, d.WeatherSkip)
	assert.Equal(t, deyecloud.WorkModeZeroExportToCT, d.Desired.Mode)
	assert.Contains(t, d.Reason, "Rain")

	d = logic.Decide(at("18:00"), deviceAt(80), goodForecast(), cfg)
	assert.True(t, d.DischargeActive)
	assert.False(t, d.WeatherSkip)
}

func TestDecideWeatherThreshold(t *testing.T) {
	logic := &DefaultDecisionLogic{Logger: zap.NewNop()}
	cfg := testConfig()
	cfg.Weather = config.WeatherConfig{Enabled: true, MinSolarThresholdKWh: 10, SystemKWp: 5}

	// with a threshold configured, yield decides even when conditions
	// look bad
	f := badForecast()
	f.TomorrowYieldKWh = 15
	d := logic.Decide(at("18:00"), deviceAt(80), f, cfg)
	assert.True(t, d.DischargeActive)

	f.TomorrowYieldKWh = 9.9
	d = logic.Decide(at("18:00"), deviceAt(80), f, cfg)
	assert.False(t, d.DischargeActive)
	assert.True(t, d.WeatherSkip)
	assert.Contains(t, d.Reason, "below threshold")
}

func TestDecideFailsOpenWithoutForecast(t *testing.T) {
	logic := &DefaultDecisionLogic{Logger: zap.NewNop()}
	cfg := testConfig()
	cfg.Weather = config.WeatherConfig{Enabled: true}

	d := logic.Decide(at("18:00"), deviceAt(80), nil, cfg)
	assert.True(t, d.DischargeActive)
	assert.True(t, d.Degraded)

	degraded := &domain.ForecastSummary{Degraded: true}
	d = logic.Decide(at("18:00"), deviceAt(80), degraded, cfg)
	assert.True(t, d.DischargeActive)
	assert.True(t, d.Degraded)
}

func TestDecideFreeEnergyNeverChangesMode(t *testing.T) {
	logic := &DefaultDecisionLogic{Logger: zap.NewNop()}
	cfg := testConfig()
	cfg.FreeEnergy = config.FreeEnergyConfig{
		Enabled:   true,
		StartTime: "11:00",
		EndTime:   "14:00",
		TargetSoC: 100,
	}

	d := logic.Decide(at("12:00"), deviceAt(80), nil, cfg)

	assert.True(t, d.FreeEnergyActive)
	assert.False(t, d.DischargeActive)
	assert.Equal(t, deyecloud.WorkModeZeroExportToCT, d.Desired.Mode)

	// the charge target shows up in the plan instead
	var found bool
	for _, p := range d.Desired.Plan.Periods {
		if p.Time == "11:00" {
			found = true
			assert.Equal(t, 100, p.SoC)
		}
	}
	assert.True(t, found)
}

func TestDecideIsDeterministic(t *testing.T) {
	logic := &DefaultDecisionLogic{Logger: zap.NewNop()}
	cfg := testConfig()

	first := logic.Decide(at("18:00"), deviceAt(80), goodForecast(), cfg)
	second := logic.Decide(at("18:00"), deviceAt(80), goodForecast(), cfg)

	require.True(t, first.Desired.Equal(second.Desired))
	assert.Equal(t, first, second)
}
