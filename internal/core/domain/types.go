package domain

import (
	"time"

	"github.com/peaksell/peaksell/pkg/deyecloud"
)

// DeviceState is one coherent reading from the inverter cloud.
type DeviceState struct {
	Battery   deyecloud.BatteryInfo
	Mode      deyecloud.WorkMode
	FetchedAt time.Time
}

// ForecastDay is one day of the analysed forecast.
type ForecastDay struct {
	Date          string  `json:"date"`
	Condition     string  `json:"condition"`
	CloudCoverPct int     `json:"cloud_cover_pct"`
	PrecipProbPct int     `json:"precip_prob_pct"`
	TempMaxC      float64 `json:"temp_max_c"`
	TempMinC      float64 `json:"temp_min_c"`
	// YieldKWh is the estimated PV production for the day. Zero when no
	// system size is configured.
	YieldKWh float64 `json:"yield_kwh"`
	Bad      bool    `json:"bad"`
}

// ForecastSummary is the analysed multi-day forecast served from cache.
type ForecastSummary struct {
	Days []ForecastDay `json:"days"`
	// TomorrowYieldKWh and TomorrowBad describe the day the discharge
	// decision cares about.
	TomorrowYieldKWh float64 `json:"tomorrow_yield_kwh"`
	TomorrowBad      bool    `json:"tomorrow_bad"`
	// Degraded marks a summary served after a fetch failure. Decisions
	// made from a degraded summary fail open.
	Degraded  bool      `json:"degraded"`
	FetchedAt time.Time `json:"fetched_at"`
}

// Tomorrow returns the second day of the summary if present.
func (s ForecastSummary) Tomorrow() (ForecastDay, bool) {
	if len(s.Days) < 2 {
		return ForecastDay{}, false
	}
	return s.Days[1], true
}

// DesiredState is the full device configuration a decision resolves to.
// Reconciliation compares it against the last successfully applied one.
type DesiredState struct {
	Mode deyecloud.WorkMode `json:"mode"`
	// WindowSoC is the TOU threshold active inside the discharge window.
	WindowSoC int               `json:"window_soc"`
	Plan      deyecloud.TOUPlan `json:"plan"`
}

func (d DesiredState) Equal(other DesiredState) bool {
	return d.Mode == other.Mode && d.WindowSoC == other.WindowSoC && d.Plan.Equal(other.Plan)
}

// Decision is the outcome of one decision-engine evaluation.
type Decision struct {
	Desired DesiredState
	// DischargeActive is true when every discharge condition holds and
	// Desired selects forced discharge.
	DischargeActive bool
	InWindow        bool
	// WeatherSkip is true when the weather check alone blocked discharge.
	WeatherSkip bool
	// Degraded is true when the decision was made without a usable
	// forecast and failed open.
	Degraded         bool
	FreeEnergyActive bool
	Reason           string
}
