package weather

import (
	"math"
	"math/rand/v2"
	"time"
)

// MaxForecastDays bounds the weekly forecast widget.
const MaxForecastDays = 7

var simulatedWeather = []string{"sunny", "partly_sunny", "cloudy", "rain", "thunderstorm"}

// BuildForecast returns up to days entries. The provider's daily section is
// used when present; otherwise a week is simulated with day-to-day coherence,
// starting from the current icon when it is one of the simulated kinds.
func BuildForecast(p *Payload, days int, now time.Time, rnd *rand.Rand) (Forecast, error) {
	if days < 1 || days > MaxForecastDays {
		return nil, ErrInvalidDays
	}

	if f := dailyForecast(p, days); len(f) > 0 {
		return f, nil
	}
	return simulateForecast(p, days, now, rnd), nil
}

func dailyForecast(p *Payload, days int) Forecast {
	if p == nil || p.Daily == nil {
		return nil
	}

	out := make(Forecast, 0, days)
	for _, d := range p.Daily.Data {
		if len(out) >= days {
			break
		}
		date, err := time.Parse("2006-01-02", d.Day)
		if err != nil {
			continue
		}
		w := d.Weather
		if w == "" {
			w = d.AllDay.Weather
		}
		out = append(out, ForecastDay{
			Date:     date,
			Day:      date.Weekday().String(),
			Weather:  w,
			TempMax:  int(math.Round(d.AllDay.TemperatureMax)),
			TempMin:  int(math.Round(d.AllDay.TemperatureMin)),
			PrecipMM: d.AllDay.Precipitation.Total,
		})
	}
	return out
}

func simulateForecast(p *Payload, days int, now time.Time, rnd *rand.Rand) Forecast {
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	out := make(Forecast, 0, days)

	prev := -1
	for i := 0; i < days; i++ {
		var idx int
		switch {
		case i == 0:
			idx = initialWeather(p, rnd)
		case rnd.Float64() < 0.7:
			// 70% of days stay on or next to the previous day's weather.
			step := 0
			if rnd.Float64() > 0.7 {
				step = 1
				if rnd.Float64() <= 0.5 {
					step = -1
				}
			}
			idx = max(0, min(len(simulatedWeather)-1, prev+step))
		default:
			idx = rnd.IntN(len(simulatedWeather))
		}
		prev = idx

		base := 22 + rnd.Float64()*10 - 5
		date := today.AddDate(0, 0, i)
		out = append(out, ForecastDay{
			Date:         date,
			Day:          date.Weekday().String(),
			Weather:      simulatedWeather[idx],
			TempMax:      int(math.Round(base + 2 + rnd.Float64()*3)),
			TempMin:      int(math.Round(base - 2 - rnd.Float64()*3)),
			PrecipChance: int(math.Round(rnd.Float64() * 80)),
			Simulated:    true,
		})
	}
	return out
}

func initialWeather(p *Payload, rnd *rand.Rand) int {
	if p != nil {
		for i, w := range simulatedWeather {
			if p.Current.Icon == w {
				return i
			}
		}
	}
	return rnd.IntN(len(simulatedWeather))
}
