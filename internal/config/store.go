package config

import (
	"encoding/json"
	"fmt"
	"os"
	"sync"
)

// Settings is the runtime-mutable part of the config. The web and MQTT
// surfaces update it, so it is persisted separately from the env-backed
// base config.
type Settings struct {
	Schedule   ScheduleConfig   `json:"schedule"`
	Weather    WeatherConfig    `json:"weather"`
	FreeEnergy FreeEnergyConfig `json:"free_energy"`
}

// Store keeps the effective config and persists Settings changes to a
// JSON file. All access is serialized.
type Store struct {
	mu   sync.Mutex
	cfg  Config
	path string
}

// NewStore builds a store from the startup config. If path names an
// existing settings file, its contents override the startup Settings.
func NewStore(cfg Config, path string) (*Store, error) {
	s := &Store{cfg: cfg, path: path}
	if path == "" {
		return s, nil
	}
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return s, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read settings file %s: %w", path, err)
	}
	var saved Settings
	if err := json.Unmarshal(data, &saved); err != nil {
		return nil, fmt.Errorf("decode settings file %s: %w", path, err)
	}
	s.cfg.Schedule = saved.Schedule
	s.cfg.Weather = saved.Weather
	s.cfg.FreeEnergy = saved.FreeEnergy
	if err := Validate(s.cfg); err != nil {
		return nil, fmt.Errorf("settings file %s: %w", path, err)
	}
	return s, nil
}

// Get returns a copy of the effective config.
func (s *Store) Get() Config {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cfg
}

// UpdateSchedule validates and applies a new schedule section. The new
// settings hit the file before the in-memory config, so a failed write
// never leaves the two diverged.
func (s *Store) UpdateSchedule(sc ScheduleConfig) error {
	if err := ValidateSchedule(sc); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	next := s.cfg
	next.Schedule = sc
	return s.apply(next)
}

// UpdateWeather validates and applies a new weather section.
func (s *Store) UpdateWeather(wc WeatherConfig) error {
	if err := ValidateWeather(wc); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	next := s.cfg
	next.Weather = wc
	return s.apply(next)
}

// UpdateFreeEnergy validates and applies a new free-energy section.
func (s *Store) UpdateFreeEnergy(fc FreeEnergyConfig) error {
	if err := ValidateFreeEnergy(fc); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	next := s.cfg
	next.FreeEnergy = fc
	return s.apply(next)
}

// apply persists cfg and only then makes it the effective config.
func (s *Store) apply(cfg Config) error {
	if s.path != "" {
		data, err := json.MarshalIndent(Settings{
			Schedule:   cfg.Schedule,
			Weather:    cfg.Weather,
			FreeEnergy: cfg.FreeEnergy,
		}, "", "  ")
		if err != nil {
			return err
		}
		if err := os.WriteFile(s.path, data, 0o644); err != nil {
			return err
		}
	}
	s.cfg = cfg
	return nil
}
