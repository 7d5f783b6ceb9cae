package openmeteo

// Condition is a coarse weather classification derived from the WMO
// weather interpretation code reported by the forecast API.
type Condition string

const (
	ConditionClear        Condition = "Clear"
	ConditionClouds       Condition = "Clouds"
	ConditionFog          Condition = "Fog"
	ConditionDrizzle      Condition = "Drizzle"
	ConditionRain         Condition = "Rain"
	ConditionSnow         Condition = "Snow"
	ConditionThunderstorm Condition = "Thunderstorm"
	ConditionUnknown      Condition = "Unknown"
)

// ConditionForCode maps a WMO weather code to a Condition.
// https://open-meteo.com/en/docs documents the code table.
func ConditionForCode(code int) Condition {
	switch {
	case code == 0:
		return ConditionClear
	case code >= 1 && code <= 3:
		return ConditionClouds
	case code == 45 || code == 48:
		return ConditionFog
	case code >= 51 && code <= 57:
		return ConditionDrizzle
	case code >= 61 && code <= 67:
		return ConditionRain
	case code >= 71 && code <= 77:
		return ConditionSnow
	case code >= 80 && code <= 82:
		return ConditionRain
	case code == 85 || code == 86:
		return ConditionSnow
	case code >= 95 && code <= 99:
		return ConditionThunderstorm
	}
	return ConditionUnknown
}

// DayForecast is one day of the daily forecast.
type DayForecast struct {
	// Date in "YYYY-MM-DD" local to the requested timezone.
	Date        string
	WeatherCode int
	Condition   Condition
	// CloudCoverPct is the mean daily cloud cover, 0-100.
	CloudCoverPct int
	// PrecipProbPct is the daily maximum precipitation probability, 0-100.
	PrecipProbPct int
	TempMaxC      float64
	TempMinC      float64
	// RadiationMJm2 is the daily shortwave radiation sum in MJ/m².
	RadiationMJm2 float64
}

// City is a geocoding search result.
type City struct {
	ID        int     `json:"id"`
	Name      string  `json:"name"`
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
	Country   string  `json:"country"`
	Admin1    string  `json:"admin1"`
	Timezone  string  `json:"timezone"`
}
