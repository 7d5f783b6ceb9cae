package config

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validSchedule() ScheduleConfig {
	return ScheduleConfig{
		Enabled:            true,
		StartTime:          "17:30",
		EndTime:            "19:30",
		CutoffSoC:          50,
		ReserveSoC:         20,
		DischargePowerWatt: 10000,
		IntervalSeconds:    30,
	}
}

func TestValidateSchedule(t *testing.T) {
	assert.NoError(t, ValidateSchedule(validSchedule()))

	sc := validSchedule()
	sc.ReserveSoC = 60
	assert.Error(t, ValidateSchedule(sc))

	sc = validSchedule()
	sc.StartTime = "25:00"
	assert.Error(t, ValidateSchedule(sc))

	sc = validSchedule()
	sc.DischargePowerWatt = 0
	assert.Error(t, ValidateSchedule(sc))

	// wrap-around window is valid
	sc = validSchedule()
	sc.StartTime = "22:00"
	sc.EndTime = "06:00"
	assert.NoError(t, ValidateSchedule(sc))
}

func TestValidateWeather(t *testing.T) {
	wc := WeatherConfig{
		Enabled:                true,
		Latitude:               40.4,
		Longitude:              -3.7,
		CloudCoverThreshold:    70,
		PrecipProbThreshold:    70,
		RefreshIntervalMinutes: 30,
	}
	assert.NoError(t, ValidateWeather(wc))

	wc.MinSolarThresholdKWh = 10
	assert.Error(t, ValidateWeather(wc), "threshold without system size")
	wc.SystemKWp = 5.5
	assert.NoError(t, ValidateWeather(wc))

	// disabled sections are not checked
	assert.NoError(t, ValidateWeather(WeatherConfig{Enabled: false, Latitude: 999}))
}

func TestValidateDeye(t *testing.T) {
	cfg := DeyeConfig{
		BaseURL:   "https://eu1-developer.deyecloud.com",
		AppId:     "a",
		AppSecret: "b",
		Email:     "c@d.e",
		Password:  "p",
		DeviceSN:  "SN1",
	}
	assert.NoError(t, ValidateDeye(cfg))

	cfg.DeviceSN = ""
	assert.Error(t, ValidateDeye(cfg))
}

func TestCheckMQTTTopic(t *testing.T) {
	topic, err := CheckMQTTTopic("PeakSell")
	assert.NoError(t, err)
	assert.Equal(t, "peaksell", topic)

	_, err = CheckMQTTTopic("bad/topic")
	assert.Error(t, err)
}

func TestStorePersistsSettings(t *testing.T) {
	path := filepath.Join(t.TempDir(), "settings.json")

	base := Config{Schedule: validSchedule()}
	store, err := NewStore(base, path)
	require.NoError(t, err)

	sc := validSchedule()
	sc.CutoffSoC = 55
	require.NoError(t, store.UpdateSchedule(sc))
	assert.Equal(t, 55, store.Get().Schedule.CutoffSoC)

	// a rejected update leaves the stored config untouched
	bad := validSchedule()
	bad.ReserveSoC = 90
	require.Error(t, store.UpdateSchedule(bad))
	assert.Equal(t, 55, store.Get().Schedule.CutoffSoC)

	// a fresh store picks the persisted settings back up
	reloaded, err := NewStore(base, path)
	require.NoError(t, err)
	assert.Equal(t, 55, reloaded.Get().Schedule.CutoffSoC)
}

func TestStoreKeepsConfigWhenWriteFails(t *testing.T) {
	// a path inside a missing directory makes every write fail
	path := filepath.Join(t.TempDir(), "missing", "settings.json")

	base := Config{Schedule: validSchedule()}
	store, err := NewStore(base, path)
	require.NoError(t, err)

	sc := validSchedule()
	sc.CutoffSoC = 55
	require.Error(t, store.UpdateSchedule(sc))

	// the in-memory config must match what is (not) on disk
	assert.Equal(t, validSchedule().CutoffSoC, store.Get().Schedule.CutoffSoC)
}
