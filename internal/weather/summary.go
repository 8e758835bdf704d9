package weather

import "time"

// DefaultHourlyPoints is how many hourly entries the current snapshot carries.
const DefaultHourlyPoints = 12

// Summarize builds the normalized current-conditions view from a payload.
// Providers that omit humidity get the cloud cover in its place, which is
// what the dashboard has always displayed for the free Meteosource tier.
func Summarize(p *Payload, fetchedAt time.Time, hours int) Snapshot {
	cur := p.Current

	humidity := cur.CloudCover
	if cur.Humidity != nil {
		humidity = *cur.Humidity
	}

	cond := MapCondition(cur.Icon)
	if cond == ConditionUnknown {
		cond = MapCondition(cur.Summary)
	}

	snap := Snapshot{
		FetchedAt:   fetchedAt.UTC(),
		Temperature: cur.Temperature,
		Summary:     cur.Summary,
		Icon:        cur.Icon,
		Condition:   cond,
		WindSpeed:   cur.Wind.Speed,
		Humidity:    humidity,
		CloudCover:  cur.CloudCover,
	}

	if p.Hourly != nil && hours > 0 {
		n := min(hours, len(p.Hourly.Data))
		snap.Hourly = append([]HourlyPoint(nil), p.Hourly.Data[:n]...)
	}
	return snap
}
