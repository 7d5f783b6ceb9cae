package port

import (
	"time"

	"github.com/peaksell/peaksell/internal/config"
	"github.com/peaksell/peaksell/internal/core/domain"
	"github.com/peaksell/peaksell/pkg/deyecloud"
	"github.com/peaksell/peaksell/pkg/openmeteo"
)

// DeviceGateway is the inverter cloud surface the actors depend on.
type DeviceGateway = deyecloud.Gateway

// ForecastSource is the weather surface the actors depend on.
type ForecastSource = openmeteo.Source

// DecisionLogic computes the desired device state for one instant.
// Implementations must be pure so a tick can be replayed in tests.
type DecisionLogic interface {
	Decide(now time.Time, device domain.DeviceState, forecast *domain.ForecastSummary, cfg config.Config) domain.Decision
}
