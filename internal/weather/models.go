package weather

import (
	"encoding/json"
	"time"
)

// Condition represents a normalized high-level weather condition.
type Condition string

const (
	ConditionUnknown Condition = "unknown"
	ConditionClear   Condition = "clear"
	ConditionCloudy  Condition = "cloudy"
	ConditionRain    Condition = "rain"
	ConditionSnow    Condition = "snow"
	ConditionStorm   Condition = "storm"
	ConditionMist    Condition = "mist"
)

// ProviderConfig identifies the account and place used for upstream calls.
// Empty fields mean "use the default endpoint".
type ProviderConfig struct {
	APIKey  string `json:"apiKey"`
	PlaceID string `json:"placeId"`
}

// IsComplete reports whether both the key and the place are set.
func (c ProviderConfig) IsComplete() bool {
	return c.APIKey != "" && c.PlaceID != ""
}

// Payload is a decoded provider response. Raw keeps the original bytes so
// widgets can receive the body untouched.
type Payload struct {
	Current Current `json:"current"`
	Hourly  *Hourly `json:"hourly,omitempty"`
	Daily   *Daily  `json:"daily,omitempty"`

	Raw json.RawMessage `json:"-"`
}

// Current holds the "current" section of the provider response.
type Current struct {
	Temperature float64  `json:"temperature"`
	Summary     string   `json:"summary"`
	Icon        string   `json:"icon"`
	Wind        Wind     `json:"wind"`
	Humidity    *float64 `json:"humidity,omitempty"`
	CloudCover  float64  `json:"cloud_cover"`
}

// Wind is the wind block of the current conditions.
type Wind struct {
	Speed float64 `json:"speed"`
	Dir   string  `json:"dir,omitempty"`
	Angle float64 `json:"angle,omitempty"`
}

type Hourly struct {
	Data []HourlyPoint `json:"data"`
}

// HourlyPoint is one hour of the hourly forecast. Date is kept as sent by the
// provider (a local timestamp without zone).
type HourlyPoint struct {
	Date        string  `json:"date"`
	Temperature float64 `json:"temperature"`
	Weather     string  `json:"weather"`
}

type Daily struct {
	Data []DailyPoint `json:"data"`
}

// DailyPoint is one day of the provider's daily section.
type DailyPoint struct {
	Day     string  `json:"day"`
	Weather string  `json:"weather"`
	Summary string  `json:"summary,omitempty"`
	AllDay  DayStat `json:"all_day"`
}

type DayStat struct {
	Weather        string  `json:"weather"`
	Temperature    float64 `json:"temperature"`
	TemperatureMin float64 `json:"temperature_min"`
	TemperatureMax float64 `json:"temperature_max"`
	CloudCover     struct {
		Total float64 `json:"total"`
	} `json:"cloud_cover"`
	Precipitation struct {
		Total float64 `json:"total"`
		Type  string  `json:"type"`
	} `json:"precipitation"`
}

// Snapshot is the normalized current-conditions view served to widgets.
type Snapshot struct {
	FetchedAt   time.Time     `json:"fetchedAt"`
	Temperature float64       `json:"temperatureC"`
	Summary     string        `json:"summary"`
	Icon        string        `json:"icon"`
	Condition   Condition     `json:"condition"`
	WindSpeed   float64       `json:"windSpeed"`
	Humidity    float64       `json:"humidityPercent"`
	CloudCover  float64       `json:"cloudCoverPercent"`
	Hourly      []HourlyPoint `json:"hourly,omitempty"`
}

// ForecastDay is one entry of the weekly forecast widget.
type ForecastDay struct {
	Date         time.Time `json:"date"`
	Day          string    `json:"day"`
	Weather      string    `json:"weather"`
	TempMax      int       `json:"tempMax"`
	TempMin      int       `json:"tempMin"`
	PrecipMM     float64   `json:"precipMm,omitempty"`
	PrecipChance int       `json:"precipChance,omitempty"`
	Simulated    bool      `json:"simulated,omitempty"`
}

// Forecast is ordered by Date ascending.
type Forecast []ForecastDay

// AirQuality is the air quality widget view.
type AirQuality struct {
	AQI         int        `json:"aqi"`
	Description string     `json:"description"`
	Pollutants  Pollutants `json:"pollutants"`
	Updated     time.Time  `json:"updated"`
}

type Pollutants struct {
	PM25 int `json:"pm25"`
	PM10 int `json:"pm10"`
	O3   int `json:"o3"`
	NO2  int `json:"no2"`
}
