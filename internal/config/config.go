package config

import (
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/peaksell/peaksell/pkg/deyecloud"

	"go.uber.org/zap/zapcore"
)

type Config struct {
	LogLevel zapcore.Level
	Deye     DeyeConfig `mapstructure:"deye"`
	MQTT     MQTTConfig `mapstructure:"mqtt"`

	Schedule   ScheduleConfig   `mapstructure:"schedule"`
	Weather    WeatherConfig    `mapstructure:"weather"`
	FreeEnergy FreeEnergyConfig `mapstructure:"free_energy"`
	Port       uint             `mapstructure:"port"`
	HttpLog    bool             `mapstructure:"http_log"`
	// SettingsFile is where web-surface config changes are persisted.
	SettingsFile string `mapstructure:"settings_file"`
}

type DeyeConfig struct {
	BaseURL        string `mapstructure:"base_url" json:"base_url"`
	AppId          string `mapstructure:"app_id" json:"app_id"`
	AppSecret      string `mapstructure:"app_secret" json:"app_secret"`
	Email          string `mapstructure:"email" json:"email"`
	Password       string `mapstructure:"password" json:"password"`
	DeviceSN       string `mapstructure:"device_sn" json:"device_sn"`
	TimeoutSeconds uint   `mapstructure:"timeout_seconds" json:"timeout_seconds"`
}

type ScheduleConfig struct {
	Enabled bool `mapstructure:"enabled" json:"enabled"`
	// StartTime and EndTime bound the forced-discharge window, "HH:MM".
	// Windows where end <= start wrap around midnight.
	StartTime string `mapstructure:"start_time" json:"start_time"`
	EndTime   string `mapstructure:"end_time" json:"end_time"`
	// CutoffSoC is the battery level at or below which discharge stops.
	CutoffSoC int `mapstructure:"cutoff_soc" json:"cutoff_soc"`
	// ReserveSoC is the TOU floor outside the discharge window.
	ReserveSoC int `mapstructure:"reserve_soc" json:"reserve_soc"`
	// DischargePowerWatt is written to every TOU period.
	DischargePowerWatt int    `mapstructure:"discharge_power_watt" json:"discharge_power_watt"`
	IntervalSeconds    uint32 `mapstructure:"interval_seconds" json:"interval_seconds"`
	Timezone           string `mapstructure:"timezone" json:"timezone"`
}

type WeatherConfig struct {
	Enabled   bool    `mapstructure:"enabled" json:"enabled"`
	Latitude  float64 `mapstructure:"latitude" json:"latitude"`
	Longitude float64 `mapstructure:"longitude" json:"longitude"`
	CityName  string  `mapstructure:"city_name" json:"city_name"`
	Timezone  string  `mapstructure:"timezone" json:"timezone"`
	// MinSolarThresholdKWh skips discharge when tomorrow's estimated
	// yield falls below it. Zero selects condition-based checking.
	MinSolarThresholdKWh float64 `mapstructure:"min_solar_threshold_kwh" json:"min_solar_threshold_kwh"`
	// SystemKWp is the installed PV capacity used for yield estimation.
	SystemKWp float64 `mapstructure:"system_kwp" json:"system_kwp"`
	// CloudCoverThreshold marks a day bad at or above this mean cloud
	// cover percentage.
	CloudCoverThreshold int `mapstructure:"cloud_cover_threshold" json:"cloud_cover_threshold"`
	// PrecipProbThreshold marks a day bad at or above this precipitation
	// probability percentage.
	PrecipProbThreshold    int    `mapstructure:"precip_prob_threshold" json:"precip_prob_threshold"`
	RefreshIntervalMinutes uint32 `mapstructure:"refresh_interval_minutes" json:"refresh_interval_minutes"`
}

type FreeEnergyConfig struct {
	Enabled   bool   `mapstructure:"enabled" json:"enabled"`
	StartTime string `mapstructure:"start_time" json:"start_time"`
	EndTime   string `mapstructure:"end_time" json:"end_time"`
	// TargetSoC raises the charge target of TOU periods inside the
	// free-energy window. It never changes the work mode.
	TargetSoC        int  `mapstructure:"target_soc" json:"target_soc"`
	EnableGridCharge bool `mapstructure:"enable_grid_charge" json:"enable_grid_charge"`
}

type MQTTConfig struct {
	Enabled           bool
	Host              string
	Port              int
	Username          string
	Password          string
	BaseTopic         string `mapstructure:"base_topic"`
	HADiscoveryEnable bool   `mapstructure:"ha_discovery_enable"`
	HADiscoveryTopic  string `mapstructure:"ha_discovery_topic"`
}

func CheckMQTTTopic(baseTopic string) (string, error) {
	// check and fix base topic
	lowerBaseTopic := strings.ToLower(baseTopic)
	baseTopicRegexp := regexp.MustCompile("^[a-z0-9_]+$")
	matches := baseTopicRegexp.FindAllStringSubmatch(lowerBaseTopic, 1)
	if len(matches) <= 0 {
		return "", errors.New("invalid topic. can only contain letters, numbers and underscores")
	}
	return lowerBaseTopic, nil
}

// ValidateDeye checks that credentials are complete. Missing
// credentials are a configuration error, not a runtime one.
func ValidateDeye(cfg DeyeConfig) error {
	if cfg.AppId == "" || cfg.AppSecret == "" {
		return errors.New("config params deye.app_id and deye.app_secret are required")
	}
	if cfg.Email == "" || cfg.Password == "" {
		return errors.New("config params deye.email and deye.password are required")
	}
	if cfg.DeviceSN == "" {
		return errors.New("config param deye.device_sn is required")
	}
	return nil
}

func ValidateSchedule(cfg ScheduleConfig) error {
	if _, err := deyecloud.ParseClock(cfg.StartTime); err != nil {
		return fmt.Errorf("config param schedule.start_time: %w", err)
	}
	if _, err := deyecloud.ParseClock(cfg.EndTime); err != nil {
		return fmt.Errorf("config param schedule.end_time: %w", err)
	}
	if cfg.CutoffSoC < 0 || cfg.CutoffSoC > 100 {
		return errors.New("config param schedule.cutoff_soc must be in 0..100")
	}
	if cfg.ReserveSoC < 0 || cfg.ReserveSoC > 100 {
		return errors.New("config param schedule.reserve_soc must be in 0..100")
	}
	if cfg.ReserveSoC > cfg.CutoffSoC {
		return errors.New("config param schedule.reserve_soc must be <= schedule.cutoff_soc")
	}
	if cfg.DischargePowerWatt <= 0 {
		return errors.New("config param schedule.discharge_power_watt must be > 0")
	}
	if cfg.IntervalSeconds < 5 {
		return errors.New("config param schedule.interval_seconds should be >= 5")
	}
	return nil
}

func ValidateWeather(cfg WeatherConfig) error {
	if !cfg.Enabled {
		return nil
	}
	if cfg.Latitude < -90 || cfg.Latitude > 90 {
		return errors.New("config param weather.latitude must be in -90..90")
	}
	if cfg.Longitude < -180 || cfg.Longitude > 180 {
		return errors.New("config param weather.longitude must be in -180..180")
	}
	if cfg.MinSolarThresholdKWh < 0 {
		return errors.New("config param weather.min_solar_threshold_kwh must be >= 0")
	}
	if cfg.MinSolarThresholdKWh > 0 && cfg.SystemKWp <= 0 {
		return errors.New("config param weather.system_kwp is required with a solar threshold")
	}
	if cfg.CloudCoverThreshold < 0 || cfg.CloudCoverThreshold > 100 {
		return errors.New("config param weather.cloud_cover_threshold must be in 0..100")
	}
	if cfg.PrecipProbThreshold < 0 || cfg.PrecipProbThreshold > 100 {
		return errors.New("config param weather.precip_prob_threshold must be in 0..100")
	}
	if cfg.RefreshIntervalMinutes < 5 {
		return errors.New("config param weather.refresh_interval_minutes should be >= 5")
	}
	return nil
}

func ValidateFreeEnergy(cfg FreeEnergyConfig) error {
	if !cfg.Enabled {
		return nil
	}
	if _, err := deyecloud.ParseClock(cfg.StartTime); err != nil {
		return fmt.Errorf("config param free_energy.start_time: %w", err)
	}
	if _, err := deyecloud.ParseClock(cfg.EndTime); err != nil {
		return fmt.Errorf("config param free_energy.end_time: %w", err)
	}
	if cfg.TargetSoC < 0 || cfg.TargetSoC > 100 {
		return errors.New("config param free_energy.target_soc must be in 0..100")
	}
	return nil
}

// Validate checks the whole config except Deye credentials, which are
// validated separately so the web surface can accept partial updates.
func Validate(cfg Config) error {
	if err := ValidateSchedule(cfg.Schedule); err != nil {
		return err
	}
	if err := ValidateWeather(cfg.Weather); err != nil {
		return err
	}
	if err := ValidateFreeEnergy(cfg.FreeEnergy); err != nil {
		return err
	}
	if cfg.MQTT.Enabled {
		if _, err := CheckMQTTTopic(cfg.MQTT.BaseTopic); err != nil {
			return errors.New("invalid base topic. can only contain letters, numbers and underscores")
		}
		if _, err := CheckMQTTTopic(cfg.MQTT.HADiscoveryTopic); err != nil {
			return errors.New("invalid homeassistant discovery topic. can only contain letters, numbers and underscores")
		}
	}
	return nil
}
