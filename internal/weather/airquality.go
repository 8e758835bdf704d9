package weather

import (
	"math"
	"math/rand/v2"
	"time"

	"github.com/i474232898/clock-weather/internal/common"
)

// EstimateAirQuality derives a plausible air quality reading from the
// current conditions: rain clears the air, heavy cloud without rain holds
// pollutants in. The provider has no air quality section on the free tier.
func EstimateAirQuality(p *Payload, now time.Time, rnd *rand.Rand) AirQuality {
	cloud := p.Current.CloudCover
	if cloud == 0 {
		cloud = 50
	}

	base := 45.0
	switch {
	case common.ContainsAny(p.Current.Icon, "rain"):
		base = 30
	case cloud > 70:
		base = 80
	}

	aq := AirQuality{
		AQI: floor(base + rnd.Float64()*20 - 10),
		Pollutants: Pollutants{
			PM25: floor(base/2 + rnd.Float64()*15),
			PM10: floor(base + rnd.Float64()*20),
			O3:   floor(30 + rnd.Float64()*40),
			NO2:  floor(10 + rnd.Float64()*30),
		},
		Updated: now.UTC(),
	}
	aq.Description = DescribeAQI(aq.AQI)
	return aq
}

// DescribeAQI buckets an AQI value.
func DescribeAQI(aqi int) string {
	switch {
	case aqi > 100:
		return "poor"
	case aqi > 50:
		return "moderate"
	default:
		return "good"
	}
}

func floor(v float64) int { return int(math.Floor(v)) }
