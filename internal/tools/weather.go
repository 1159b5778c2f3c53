package tools

import (
	"context"
	"fmt"
	"sort"
	"strings"
)

// WeatherArgs is the input of the weather tool.
type WeatherArgs struct {
	City string `json:"city" jsonschema:"minLength=1,description=City name"`
}

var weatherSchema = mustArgSchema[WeatherArgs]("weather")

// WeatherTool answers temperature questions from a static table of cities.
type WeatherTool struct {
	temperatures map[string]float64
}

var _ Tool = (*WeatherTool)(nil)

func NewWeatherTool() *WeatherTool {
	return &WeatherTool{
		temperatures: map[string]float64{
			"paris":     18,
			"london":    17,
			"dhaka":     31,
			"amsterdam": 19.5,
			"new york":  22,
			"tokyo":     25,
			"berlin":    16,
			"sydney":    20,
		},
	}
}

// SetTemperature adds or replaces a city in the table. Only called while the
// registry is being assembled.
func (w *WeatherTool) SetTemperature(city string, celsius float64) {
	w.temperatures[foldKey(city)] = celsius
}

func (w *WeatherTool) ID() ID { return Weather }

func (w *WeatherTool) Name() string { return Weather.String() }

func (w *WeatherTool) Description() string {
	return "Returns the current temperature in Celsius for a known city."
}

func (w *WeatherTool) Parameters() map[string]any {
	return weatherSchema.Parameters()
}

func (w *WeatherTool) Execute(ctx context.Context, args Args) (Result, error) {
	if err := weatherSchema.Validate(Weather, args); err != nil {
		return Result{}, err
	}
	temp, err := w.Temperature(args["city"])
	if err != nil {
		return Result{}, err
	}
	return numberResult(Weather, FormatNumber(temp)+" °C", temp), nil
}

// Temperature looks up a city case-insensitively.
func (w *WeatherTool) Temperature(city string) (float64, error) {
	key := foldKey(city)
	if key == "" {
		return 0, fmt.Errorf("%w: weather: city is required", ErrInvalidArgument)
	}
	temp, ok := w.temperatures[key]
	if !ok {
		return 0, fmt.Errorf("%w: weather: unknown city %q", ErrToolExecution, strings.TrimSpace(city))
	}
	return temp, nil
}

// Cities lists the known cities in alphabetical order.
func (w *WeatherTool) Cities() []string {
	out := make([]string, 0, len(w.temperatures))
	for c := range w.temperatures {
		out = append(out, c)
	}
	sort.Strings(out)
	return out
}
