package service

import (
	"time"

	"github.com/peaksell/peaksell/internal/config"
	"github.com/peaksell/peaksell/internal/core/domain"
	"github.com/peaksell/peaksell/pkg/openmeteo"
)

// performanceRatio discounts the nameplate PV capacity for real-world
// losses (temperature, wiring, inverter efficiency).
const performanceRatio = 0.8

// badConditions always mark a day bad, regardless of thresholds.
var badConditions = map[openmeteo.Condition]bool{
	openmeteo.ConditionRain:         true,
	openmeteo.ConditionDrizzle:      true,
	openmeteo.ConditionSnow:         true,
	openmeteo.ConditionThunderstorm: true,
}

// AnalyseForecast classifies each forecast day and derives the summary
// the decision engine consumes. Day 0 is today, day 1 is tomorrow.
func AnalyseForecast(days []openmeteo.DayForecast, cfg config.WeatherConfig, fetchedAt time.Time) domain.ForecastSummary {
	cloudThreshold := cfg.CloudCoverThreshold
	if cloudThreshold <= 0 {
		cloudThreshold = 70
	}
	precipThreshold := cfg.PrecipProbThreshold
	if precipThreshold <= 0 {
		precipThreshold = 70
	}

	summary := domain.ForecastSummary{
		Days:      make([]domain.ForecastDay, 0, len(days)),
		FetchedAt: fetchedAt,
	}
	for _, day := range days {
		bad := badConditions[day.Condition] ||
			day.CloudCoverPct >= cloudThreshold ||
			day.PrecipProbPct >= precipThreshold
		summary.Days = append(summary.Days, domain.ForecastDay{
			Date:          day.Date,
			Condition:     string(day.Condition),
			CloudCoverPct: day.CloudCoverPct,
			PrecipProbPct: day.PrecipProbPct,
			TempMaxC:      day.TempMaxC,
			TempMinC:      day.TempMinC,
			YieldKWh:      estimateYieldKWh(day.RadiationMJm2, cfg.SystemKWp),
			Bad:           bad,
		})
	}

	if tomorrow, ok := summary.Tomorrow(); ok {
		summary.TomorrowYieldKWh = tomorrow.YieldKWh
		summary.TomorrowBad = tomorrow.Bad
	} else {
		// a forecast without tomorrow cannot back a decision
		summary.Degraded = true
	}
	return summary
}

// DegradedForecast is the summary served when a refresh fails and no
// cached one exists.
func DegradedForecast(fetchedAt time.Time) domain.ForecastSummary {
	return domain.ForecastSummary{Degraded: true, FetchedAt: fetchedAt}
}

// estimateYieldKWh converts the daily shortwave radiation sum (MJ/m²)
// to estimated PV production for a system of kwp installed capacity.
func estimateYieldKWh(radiationMJm2, kwp float64) float64 {
	if kwp <= 0 || radiationMJm2 <= 0 {
		return 0
	}
	// MJ/m² / 3.6 = kWh/m², the peak-sun-hour equivalent
	return radiationMJm2 / 3.6 * kwp * performanceRatio
}
