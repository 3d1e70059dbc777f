// Package units provides the linear units accepted for length parameters
// and their conversion to metres.
package units

import (
	"fmt"
	"strconv"
	"strings"
)

// Unit constants
const (
	Meters      = "meters"
	Centimeters = "centimeters"
	Millimeters = "millimeters"
	Kilometers  = "kilometers"
	Feet        = "feet"
	Yards       = "yards"
	Miles       = "miles"
	Inches      = "inches"
)

// ValidUnits contains all valid unit values
var ValidUnits = []string{Meters, Centimeters, Millimeters, Kilometers, Feet, Yards, Miles, Inches}

var perMeter = map[string]float64{
	Meters:      1,
	Centimeters: 0.01,
	Millimeters: 0.001,
	Kilometers:  1000,
	Feet:        0.3048,
	Yards:       0.9144,
	Miles:       1609.344,
	Inches:      0.0254,
}

// IsValid checks if the given unit is in the list of valid units
func IsValid(unit string) bool {
	_, ok := perMeter[normalize(unit)]
	return ok
}

// GetValidUnitsString returns a comma-separated string of valid units for error messages
func GetValidUnitsString() string {
	return strings.Join(ValidUnits, ", ")
}

// ToMeters converts a length in the given unit to metres. Unknown units are
// treated as metres.
func ToMeters(v float64, unit string) float64 {
	if f, ok := perMeter[normalize(unit)]; ok {
		return v * f
	}
	return v
}

// ParseLength parses a linear unit string such as "5 Centimeters" or a bare
// number, which is taken as metres, and returns the length in metres.
func ParseLength(s string) (float64, error) {
	fields := strings.Fields(s)
	if len(fields) == 0 || len(fields) > 2 {
		return 0, fmt.Errorf("invalid length %q: want \"<value> [unit]\"", s)
	}
	v, err := strconv.ParseFloat(fields[0], 64)
	if err != nil {
		return 0, fmt.Errorf("invalid length %q: %w", s, err)
	}
	if len(fields) == 1 {
		return v, nil
	}
	if !IsValid(fields[1]) {
		return 0, fmt.Errorf("invalid length %q: unknown unit %q (valid: %s)", s, fields[1], GetValidUnitsString())
	}
	return ToMeters(v, fields[1]), nil
}

// normalize lower-cases the unit and accepts singular forms and the
// common abbreviations.
func normalize(unit string) string {
	u := strings.ToLower(strings.TrimSpace(unit))
	switch u {
	case "m", "meter", "metre", "metres":
		return Meters
	case "cm", "centimeter", "centimetre", "centimetres":
		return Centimeters
	case "mm", "millimeter", "millimetre", "millimetres":
		return Millimeters
	case "km", "kilometer", "kilometre", "kilometres":
		return Kilometers
	case "ft", "foot":
		return Feet
	case "yd", "yard":
		return Yards
	case "mi", "mile":
		return Miles
	case "in", "inch":
		return Inches
	}
	return u
}
