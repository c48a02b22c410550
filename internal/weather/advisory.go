package weather

// AdvisoryKind classifies a recommendation.
type AdvisoryKind string

const (
	AdvisoryPrompt AdvisoryKind = "prompt"
	AdvisoryRain   AdvisoryKind = "rain"
	AdvisoryHeat   AdvisoryKind = "heat"
	AdvisoryCold   AdvisoryKind = "cold"
	AdvisoryMild   AdvisoryKind = "mild"
)

// Thresholds used by the advisory rules.
const (
	RainProbabilityThreshold = 70.0
	HeatThresholdC           = 35.0
	ColdThresholdC           = 22.0
)

var advisoryMessages = map[AdvisoryKind]string{
	AdvisoryPrompt: "Type a city name above or use your current location",
	AdvisoryRain:   "☔ High chance of rain, bring an umbrella",
	AdvisoryHeat:   "🔥 Very hot, drink water and stay out of the sun",
	AdvisoryCold:   "❄️ Cool weather, take a light jacket",
	AdvisoryMild:   "🌤 Pleasant weather, good for outdoor activities",
}

// Advisory is a short human-readable recommendation.
type Advisory struct {
	Kind    AdvisoryKind `json:"kind"`
	Message string       `json:"message"`
}

func newAdvisory(kind AdvisoryKind) Advisory {
	return Advisory{Kind: kind, Message: advisoryMessages[kind]}
}

// AdviseDay evaluates the advisory rules in priority order; the first match wins.
func AdviseDay(day DayAggregate) Advisory {
	switch {
	case day.MaxPrecipProb >= RainProbabilityThreshold:
		return newAdvisory(AdvisoryRain)
	case day.MaxTemp >= HeatThresholdC:
		return newAdvisory(AdvisoryHeat)
	case day.MinTemp <= ColdThresholdC:
		return newAdvisory(AdvisoryCold)
	default:
		return newAdvisory(AdvisoryMild)
	}
}

// Advise returns the advisory for today's forecast, or a prompt to search when there is no
// snapshot yet.
func Advise(snapshot *WeatherSnapshot) Advisory {
	if snapshot == nil {
		return newAdvisory(AdvisoryPrompt)
	}
	return AdviseDay(snapshot.Today())
}
