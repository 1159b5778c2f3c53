package tools

import (
	"context"
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"
)

// UnitArgs is the input of the unit converter tool.
type UnitArgs struct {
	Value string `json:"value" jsonschema:"pattern=^-?[0-9]+([.][0-9]+)?$,description=Numeric value to convert"`
	From  string `json:"from" jsonschema:"minLength=1,description=Source unit"`
	To    string `json:"to" jsonschema:"minLength=1,description=Target unit"`
}

var unitSchema = mustArgSchema[UnitArgs]("unitconv")

// Category groups units that can be converted into each other.
type Category string

const (
	Currency    Category = "currency"
	Temperature Category = "temperature"
	Length      Category = "length"
	Weight      Category = "weight"
)

// unit converts to and from its category's base unit.
type unit struct {
	symbol   string
	category Category
	toBase   func(float64) float64
	fromBase func(float64) float64
}

func linear(symbol string, c Category, perBase float64) unit {
	return unit{
		symbol:   symbol,
		category: c,
		toBase:   func(v float64) float64 { return v / perBase },
		fromBase: func(v float64) float64 { return v * perBase },
	}
}

// Base units: usd, celsius, metre, kilogram. Currency rates are fixed.
var units = map[string]unit{
	"usd": linear("usd", Currency, 1),
	"eur": linear("eur", Currency, 0.9),
	"gbp": linear("gbp", Currency, 0.8),

	"c": {symbol: "c", category: Temperature,
		toBase: func(v float64) float64 { return v }, fromBase: func(v float64) float64 { return v }},
	"f": {symbol: "f", category: Temperature,
		toBase: func(v float64) float64 { return (v - 32) * 5 / 9 }, fromBase: func(v float64) float64 { return v*9/5 + 32 }},
	"k": {symbol: "k", category: Temperature,
		toBase: func(v float64) float64 { return v - 273.15 }, fromBase: func(v float64) float64 { return v + 273.15 }},

	"m":  linear("m", Length, 1),
	"cm": linear("cm", Length, 100),
	"km": linear("km", Length, 0.001),
	"ft": linear("ft", Length, 3.28084),
	"in": linear("in", Length, 39.3701),
	"mi": linear("mi", Length, 0.000621371),

	"kg": linear("kg", Weight, 1),
	"g":  linear("g", Weight, 1000),
	"lb": linear("lb", Weight, 2.20462),
	"oz": linear("oz", Weight, 35.274),
}

var unitAliases = map[string]string{
	"dollar": "usd", "dollars": "usd", "euro": "eur", "euros": "eur",
	"pound": "gbp", "pounds": "gbp",
	"celsius": "c", "°c": "c", "fahrenheit": "f", "°f": "f", "kelvin": "k",
	"meter": "m", "meters": "m", "metre": "m", "metres": "m",
	"centimeter": "cm", "centimeters": "cm", "kilometer": "km", "kilometers": "km",
	"foot": "ft", "feet": "ft", "inch": "in", "inches": "in", "mile": "mi", "miles": "mi",
	"kilogram": "kg", "kilograms": "kg", "kgs": "kg", "gram": "g", "grams": "g",
	"lbs": "lb", "ounce": "oz", "ounces": "oz",
}

func lookupUnit(name string) (unit, bool) {
	key := strings.ToLower(strings.TrimSpace(name))
	if alias, ok := unitAliases[key]; ok {
		key = alias
	}
	u, ok := units[key]
	return u, ok
}

// UnitConverterTool converts values between units of one category.
type UnitConverterTool struct{}

var _ Tool = (*UnitConverterTool)(nil)

func NewUnitConverterTool() *UnitConverterTool {
	return &UnitConverterTool{}
}

func (u *UnitConverterTool) ID() ID { return UnitConverter }

func (u *UnitConverterTool) Name() string { return UnitConverter.String() }

func (u *UnitConverterTool) Description() string {
	return "Converts a value between currency, temperature, length or weight units."
}

func (u *UnitConverterTool) Parameters() map[string]any {
	return unitSchema.Parameters()
}

func (u *UnitConverterTool) Execute(ctx context.Context, args Args) (Result, error) {
	if err := unitSchema.Validate(UnitConverter, args); err != nil {
		return Result{}, err
	}
	value, err := strconv.ParseFloat(args["value"], 64)
	if err != nil {
		return Result{}, fmt.Errorf("%w: unitconv: bad value %q", ErrInvalidArgument, args["value"])
	}
	out, err := Convert(value, args["from"], args["to"])
	if err != nil {
		return Result{}, err
	}
	out = math.Round(out*100) / 100
	return numberResult(UnitConverter, FormatNumber(out), out), nil
}

// Convert converts value from one unit to another without rounding.
func Convert(value float64, from, to string) (float64, error) {
	src, ok := lookupUnit(from)
	if !ok {
		return 0, fmt.Errorf("%w: unitconv: unknown unit %q", ErrToolExecution, from)
	}
	dst, ok := lookupUnit(to)
	if !ok {
		return 0, fmt.Errorf("%w: unitconv: unknown unit %q", ErrToolExecution, to)
	}
	if src.category != dst.category {
		return 0, fmt.Errorf("%w: unitconv: cannot convert %s (%s) to %s (%s)",
			ErrToolExecution, src.symbol, src.category, dst.symbol, dst.category)
	}
	if src.symbol == dst.symbol {
		return value, nil
	}
	return dst.fromBase(src.toBase(value)), nil
}

// SupportedUnits lists unit symbols by category.
func SupportedUnits() map[Category][]string {
	out := make(map[Category][]string)
	for sym, u := range units {
		out[u.category] = append(out[u.category], sym)
	}
	for c := range out {
		sort.Strings(out[c])
	}
	return out
}
