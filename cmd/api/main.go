package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	adactor "github.com/peaksell/peaksell/internal/adapter/actor"
	"github.com/peaksell/peaksell/internal/config"
	"github.com/peaksell/peaksell/internal/core/actor"
	"github.com/peaksell/peaksell/internal/server"
	"github.com/peaksell/peaksell/internal/util/actorutil"
	"github.com/peaksell/peaksell/pkg/deyecloud"
	"github.com/peaksell/peaksell/pkg/openmeteo"

	pactor "github.com/asynkron/protoactor-go/actor"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

func gracefulShutdown(apiServer *http.Server, done chan bool) {
	// Create context that listens for the interrupt signal from the OS.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Listen for the interrupt signal.
	<-ctx.Done()

	log.Println("shutting down gracefully, press Ctrl+C again to force")

	// The context is used to inform the server it has 5 seconds to finish
	// the request it is currently handling
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := apiServer.Shutdown(ctx); err != nil {
		log.Printf("Server forced to shutdown with error: %v", err)
	}

	log.Println("Server exiting")

	// Notify the main goroutine that the shutdown is complete
	done <- true
}

func main() {

	// load and print config
	cfg, err := initConfig()
	if err != nil {
		slog.Error("config errors", "error", err)
		return
	}
	safePrintConfig(*cfg)

	// settings store: web-surface changes override the startup config
	store, err := config.NewStore(*cfg, cfg.SettingsFile)
	if err != nil {
		slog.Error("settings store error", "error", err)
		return
	}
	effective := store.Get()

	// zap logger
	zapCfg := zap.NewProductionConfig()
	zapCfg.Level = zap.NewAtomicLevelAt(cfg.LogLevel)

	logger := zap.Must(zapCfg.Build())

	// init actor system
	as := actorutil.NewActorSystemWithZapLogger(logger)
	ctx := as.Root

	defer logger.Sync()

	props := pactor.PropsFromProducer(func() pactor.Actor {
		return actor.NewMasterActor(effective,
			deyeActorProvider(&effective, logger),
			forecastActorProvider(&effective, logger),
			mqttActorProvider(&effective, logger),
			logger)
	})
	pid, err := ctx.SpawnNamed(props, "master")
	if err != nil {
		return
	}

	apiServer := server.NewServer(store, ctx, pid, logger)
	// Create a done channel to signal when the shutdown is complete
	done := make(chan bool, 1)

	// Run graceful shutdown in a separate goroutine
	go gracefulShutdown(apiServer, done)

	err = apiServer.ListenAndServe()
	if err != nil && err != http.ErrServerClosed {
		panic(fmt.Sprintf("http server error: %s", err))
	}

	// Wait for the graceful shutdown to complete
	<-done
	log.Println("Graceful shutdown complete.")

	ctx.Stop(pid)
	as.Shutdown()
}

func initConfig() (*config.Config, error) {

	// alias PORT => PEAKSELL_PORT
	if port := os.Getenv("PORT"); port != "" {
		os.Setenv("PEAKSELL_PORT", port)
	}

	setConfigDefaults()

	viper.SetEnvPrefix("peaksell")
	viper.AutomaticEnv()

	// if defined, try to load config from yaml file
	if cfgFile := os.Getenv("CONFIG_FILE"); cfgFile != "" {
		if _, err := os.Stat(cfgFile); err == nil {
			slog.Info("Using config", "file", cfgFile)
			viper.SetConfigFile(cfgFile)

			err = viper.ReadInConfig()
			if err != nil {
				slog.Error("Error reading config file", "error", err)
			}
		}
	}

	var cfg config.Config

	err := viper.Unmarshal(&cfg)
	if err != nil {
		return nil, err
	}

	// parse log level
	switch viper.GetString("log_level") {
	case "trace":
		cfg.LogLevel = zap.DebugLevel
	case "debug":
		cfg.LogLevel = zap.DebugLevel
	case "info":
		cfg.LogLevel = zap.InfoLevel
	case "error":
		cfg.LogLevel = zap.ErrorLevel
	case "warn":
		cfg.LogLevel = zap.WarnLevel
	case "fatal":
		cfg.LogLevel = zap.FatalLevel
	default:
		cfg.LogLevel = zap.InfoLevel
	}

	if cfg.MQTT.Enabled {
		// check and fix base topic
		baseTopic, err := config.CheckMQTTTopic(cfg.MQTT.BaseTopic)
		if err != nil {
			return nil, errors.New("invalid base topic. can only contain letters, numbers and underscores")
		}
		cfg.MQTT.BaseTopic = baseTopic

		// check and fix homeassistant discovery topic
		hadBaseTopic, err := config.CheckMQTTTopic(cfg.MQTT.HADiscoveryTopic)
		if err != nil {
			return nil, errors.New("invalid homeassistant discovery topic. can only contain letters, numbers and underscores")
		}
		cfg.MQTT.HADiscoveryTopic = hadBaseTopic
	}

	// missing cloud credentials are a startup error, not a runtime one
	if err := config.ValidateDeye(cfg.Deye); err != nil {
		return nil, err
	}
	if err := config.Validate(cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func deyeActorProvider(cfg *config.Config, logger *zap.Logger) actor.DeyeActorProvider {
	gateway := deyecloud.NewClient(deyecloud.ClientParams{
		BaseURL:   cfg.Deye.BaseURL,
		AppID:     cfg.Deye.AppId,
		AppSecret: cfg.Deye.AppSecret,
		Email:     cfg.Deye.Email,
		Password:  cfg.Deye.Password,
		DeviceSN:  cfg.Deye.DeviceSN,
		Timeout:   time.Duration(cfg.Deye.TimeoutSeconds) * time.Second,
	})
	return func() *adactor.DeyeActor {
		return adactor.NewDeyeActor(gateway, logger)
	}
}

func forecastActorProvider(cfg *config.Config, logger *zap.Logger) actor.ForecastActorProvider {
	source := openmeteo.NewClient(openmeteo.ClientParams{})
	return func() *adactor.ForecastActor {
		return adactor.NewForecastActor(source, cfg.Weather, logger)
	}
}

func mqttActorProvider(cfg *config.Config, logger *zap.Logger) actor.MQTTActorProvider {
	return func() *adactor.MQTTActor {
		return adactor.NewMQTTActor(cfg, logger)
	}
}

func setConfigDefaults() {
	viper.SetDefault("log_level", "warn")
	viper.SetDefault("settings_file", "peaksell_settings.json")
	viper.SetDefault("mqtt.ha_discovery_enable", false)
	viper.SetDefault("mqtt.base_topic", "peaksell")
	viper.SetDefault("mqtt.ha_discovery_topic", "homeassistant")
	viper.SetDefault("deye.base_url", "https://eu1-developer.deyecloud.com")
	viper.SetDefault("deye.timeout_seconds", 30)
	viper.SetDefault("schedule.enabled", false)
	viper.SetDefault("schedule.start_time", "17:30")
	viper.SetDefault("schedule.end_time", "19:30")
	viper.SetDefault("schedule.cutoff_soc", 50)
	viper.SetDefault("schedule.reserve_soc", 20)
	viper.SetDefault("schedule.discharge_power_watt", 5000)
	viper.SetDefault("schedule.interval_seconds", 60)
	viper.SetDefault("weather.enabled", false)
	viper.SetDefault("weather.cloud_cover_threshold", 70)
	viper.SetDefault("weather.precip_prob_threshold", 70)
	viper.SetDefault("weather.refresh_interval_minutes", 30)
	viper.SetDefault("free_energy.enabled", false)
	viper.SetDefault("free_energy.start_time", "11:00")
	viper.SetDefault("free_energy.end_time", "15:00")
	viper.SetDefault("free_energy.target_soc", 100)
	viper.SetDefault("port", 8080)
}

func safePrintConfig(cfg config.Config) {
	cfg.Deye.AppSecret = "*redacted*"
	cfg.Deye.Password = "*redacted*"
	cfg.MQTT.Username = "*redacted*"
	cfg.MQTT.Password = "*redacted*"
	slog.Info("Using", "config", cfg)
}
