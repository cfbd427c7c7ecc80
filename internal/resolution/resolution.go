// Package resolution buckets a sensor's spatial resolution into the coarse
// categories offered as a filter.
package resolution

import (
	"errors"
	"fmt"
	"math"
)

type Category string

const (
	High   Category = "high"
	Medium Category = "medium"
	Low    Category = "low"
)

// category thresholds in meters
const (
	HighBelowM  = 5.0
	MediumUpToM = 30.0
)

var ErrInvalidResolution = errors.New("invalid spatial resolution")

// Categories returns the fixed resolution domain, finest first.
func Categories() []Category {
	return []Category{High, Medium, Low}
}

// Parse accepts one of the category labels.
func Parse(s string) (Category, bool) {
	switch Category(s) {
	case High, Medium, Low:
		return Category(s), true
	}
	return "", false
}

// Classify takes a resolution in centimeters.
func Classify(cm float64) (Category, error) {
	if math.IsNaN(cm) || math.IsInf(cm, 0) || cm < 0 {
		return "", fmt.Errorf("%w: %v cm", ErrInvalidResolution, cm)
	}
	return ClassifyMeters(cm / 100)
}

func ClassifyMeters(m float64) (Category, error) {
	if math.IsNaN(m) || math.IsInf(m, 0) || m < 0 {
		return "", fmt.Errorf("%w: %v m", ErrInvalidResolution, m)
	}
	switch {
	case m < HighBelowM:
		return High, nil
	case m <= MediumUpToM:
		return Medium, nil
	default:
		return Low, nil
	}
}

// Bounds describes the meter interval of a category. A nil end is open.
type Bounds struct {
	Min          *float64
	MinInclusive bool
	Max          *float64
	MaxInclusive bool
}

func (c Category) MeterBounds() (Bounds, bool) {
	lo, hi := HighBelowM, MediumUpToM
	switch c {
	case High:
		return Bounds{Max: &lo}, true
	case Medium:
		return Bounds{Min: &lo, MinInclusive: true, Max: &hi, MaxInclusive: true}, true
	case Low:
		return Bounds{Min: &hi}, true
	}
	return Bounds{}, false
}

// FormatMeters renders a resolution for display: sub-meter values in cm.
func FormatMeters(m float64) string {
	if math.IsNaN(m) || math.IsInf(m, 0) || m <= 0 {
		return "N/A"
	}
	if m < 1 {
		return fmt.Sprintf("%dcm", int(math.Round(m*100)))
	}
	return fmt.Sprintf("%dm", int(math.Round(m)))
}
