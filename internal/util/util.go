package util

import (
	"github.com/peaksell/peaksell/internal/config"

	"go.uber.org/zap"
)

func LoadTestConfig() config.Config {
	return config.Config{
		LogLevel: zap.DebugLevel,
		Deye: config.DeyeConfig{
			BaseURL:   "https://eu1-developer.deyecloud.com",
			AppId:     "test-app",
			AppSecret: "test-secret",
			Email:     "test@example.com",
			Password:  "test",
			DeviceSN:  "TEST0001",
		},
		MQTT: config.MQTTConfig{
			Host:      "localhost",
			Port:      1883,
			BaseTopic: "peaksell",
		},
		Schedule: config.ScheduleConfig{
			Enabled:            true,
			StartTime:          "17:30",
			EndTime:            "19:30",
			CutoffSoC:          50,
			ReserveSoC:         20,
			DischargePowerWatt: 10000,
			IntervalSeconds:    30,
		},
		Weather: config.WeatherConfig{
			Enabled:                false,
			CloudCoverThreshold:    70,
			PrecipProbThreshold:    70,
			RefreshIntervalMinutes: 30,
		},
		Port: 8080,
	}
}
