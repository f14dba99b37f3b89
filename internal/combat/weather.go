package combat

import "fmt"

// Weather is the session-wide condition affecting gunnery accuracy.
type Weather string

const (
	WeatherClear  Weather = "clear"
	WeatherCloudy Weather = "cloudy"
	WeatherRain   Weather = "rain"
	WeatherStorm  Weather = "storm"
	WeatherFog    Weather = "fog"
)

var weatherAccuracy = map[Weather]float64{
	WeatherClear:  1.0,
	WeatherCloudy: 0.95,
	WeatherRain:   0.85,
	WeatherStorm:  0.75,
	WeatherFog:    0.6,
}

// AccuracyMultiplier returns the accuracy factor for the weather. Unknown values count as clear.
func (w Weather) AccuracyMultiplier() float64 {
	if m, ok := weatherAccuracy[w]; ok {
		return m
	}
	return 1.0
}

// ParseWeather validates a weather name.
func ParseWeather(s string) (Weather, error) {
	w := Weather(s)
	if _, ok := weatherAccuracy[w]; !ok {
		return "", fmt.Errorf("unknown weather %q", s)
	}
	return w, nil
}
