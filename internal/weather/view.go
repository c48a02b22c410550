package weather

import (
	"math"
	"time"
)

// TrendHours is the length of the hourly temperature trend.
const TrendHours = 24

const (
	clockLayout   = "15:04"
	dayCardLayout = "Mon 02 Jan"
	labelLayout   = "2006-01-02T15:04"
)

// PlaceView is the header of the forecast screen.
type PlaceView struct {
	Name        string      `json:"name"`
	Country     string      `json:"country,omitempty"`
	Coordinates Coordinates `json:"coordinates"`
}

// CurrentView holds the rounded current conditions.
type CurrentView struct {
	Temperature         int       `json:"temperatureC"`
	ApparentTemperature int       `json:"apparentTemperatureC"`
	Humidity            int       `json:"humidityPercent"`
	WindSpeed           int       `json:"windSpeedKmh"`
	Condition           Condition `json:"condition"`
}

// TodayView holds today's highlights.
type TodayView struct {
	MaxTemp  int    `json:"maxTempC"`
	MinTemp  int    `json:"minTempC"`
	RainProb int    `json:"rainProbability"`
	Sunrise  string `json:"sunrise"`
	Sunset   string `json:"sunset"`
}

// TrendView is the hourly temperature chart.
type TrendView struct {
	Chart    Chart     `json:"chart"`
	Labels   []string  `json:"labels"`
	Values   []float64 `json:"values"`
	Points   []Point   `json:"points"`
	LinePath string    `json:"linePath"`
	AreaPath string    `json:"areaPath"`
}

// DayCard is one entry of the weekly forecast.
type DayCard struct {
	Date     string `json:"date"`
	Label    string `json:"label"`
	MaxTemp  int    `json:"maxTempC"`
	MinTemp  int    `json:"minTempC"`
	RainProb int    `json:"rainProbability"`
}

// View is the display-ready rendering of a snapshot for a place.
type View struct {
	Place    PlaceView   `json:"place"`
	Current  CurrentView `json:"current"`
	Today    TodayView   `json:"today"`
	Trend    TrendView   `json:"trend"`
	Week     []DayCard   `json:"week"`
	Advisory Advisory    `json:"advisory"`
}

// BuildView maps a snapshot to its view model. Missing fields render as zero.
func BuildView(place Place, snapshot WeatherSnapshot, chart Chart) View {
	today := snapshot.Daily.Day(0)

	v := View{
		Place: PlaceView{
			Name:        place.DisplayName(),
			Country:     place.Country,
			Coordinates: place.DisplayCoordinates(),
		},
		Current: CurrentView{
			Temperature:         roundInt(snapshot.Current.Temperature),
			ApparentTemperature: roundInt(snapshot.Current.ApparentTemperature),
			Humidity:            roundInt(snapshot.Current.Humidity),
			WindSpeed:           roundInt(snapshot.Current.WindSpeed),
			Condition:           snapshot.Current.Condition,
		},
		Today: TodayView{
			MaxTemp:  roundInt(today.MaxTemp),
			MinTemp:  roundInt(today.MinTemp),
			RainProb: roundInt(today.MaxPrecipProb),
			Sunrise:  clock(timeAt(snapshot.Daily.Sunrise, 0)),
			Sunset:   clock(timeAt(snapshot.Daily.Sunset, 0)),
		},
		Trend:    buildTrend(snapshot.Hourly, snapshot.Current.Time, chart),
		Advisory: AdviseDay(today),
	}

	v.Week = make([]DayCard, 0, snapshot.Daily.Len())
	for i, d := range snapshot.Daily.Time {
		day := snapshot.Daily.Day(i)
		v.Week = append(v.Week, DayCard{
			Date:     d.Format(time.DateOnly),
			Label:    d.Format(dayCardLayout),
			MaxTemp:  roundInt(day.MaxTemp),
			MinTemp:  roundInt(day.MinTemp),
			RainProb: roundInt(day.MaxPrecipProb),
		})
	}
	return v
}

func buildTrend(hourly HourlySeries, now time.Time, chart Chart) TrendView {
	start := trendStart(hourly.Time, now)
	end := start + TrendHours
	if end > hourly.Len() {
		end = hourly.Len()
	}

	values := make([]float64, 0, end-start)
	labels := make([]string, 0, end-start)
	for i := start; i < end; i++ {
		values = append(values, at(hourly.Temperature, i))
		labels = append(labels, hourly.Time[i].Format(labelLayout))
	}

	points := chart.Scale(values)
	return TrendView{
		Chart:    chart,
		Labels:   labels,
		Values:   values,
		Points:   points,
		LinePath: LinePath(points),
		AreaPath: AreaPath(points, chart.Baseline()),
	}
}

// trendStart returns the index of the hour containing now, or 0 when now is unknown or outside
// the series.
func trendStart(times []time.Time, now time.Time) int {
	if now.IsZero() {
		return 0
	}
	// Truncate works on absolute time and misses the local hour in half-hour zones.
	hour := time.Date(now.Year(), now.Month(), now.Day(), now.Hour(), 0, 0, 0, now.Location())
	for i, t := range times {
		if !t.Before(hour) {
			return i
		}
	}
	return 0
}

func timeAt(values []time.Time, i int) time.Time {
	if i < 0 || i >= len(values) {
		return time.Time{}
	}
	return values[i]
}

func clock(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Format(clockLayout)
}

func roundInt(v float64) int {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0
	}
	return int(math.Round(v))
}
