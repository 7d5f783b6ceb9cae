package openmeteo

import (
	"context"
	"sync"
)

// TestSource is an in-memory Source for tests. Set Days/Cities to the
// responses you want, or Err to make every call fail.
type TestSource struct {
	mu     sync.Mutex
	Days   []DayForecast
	Cities []City
	Err    error

	ForecastCalls int
}

func NewTestSource(days []DayForecast) *TestSource {
	return &TestSource{Days: days}
}

func (s *TestSource) DailyForecast(_ context.Context, _, _ float64, _ string, _ int) ([]DayForecast, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ForecastCalls++
	if s.Err != nil {
		return nil, s.Err
	}
	out := make([]DayForecast, len(s.Days))
	copy(out, s.Days)
	return out, nil
}

func (s *TestSource) SearchCities(_ context.Context, _ string, _ int) ([]City, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Err != nil {
		return nil, s.Err
	}
	out := make([]City, len(s.Cities))
	copy(out, s.Cities)
	return out, nil
}

// Fail makes all subsequent calls return err.
func (s *TestSource) Fail(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Err = err
}

var _ Source = (*TestSource)(nil)
