// Package filter holds the per-session filter state: the loaded value domains,
// the current selections and time range, and everything derived from them.
package filter

import (
	"fmt"
	"slices"

	"github.com/mohammed-shakir/passmap/internal/resolution"
)

// AllValues is the sentinel selection that disables a dimension.
const AllValues = "all"

type Dimension string

const (
	Constellation Dimension = "constellation"
	Operator      Dimension = "operator"
	SensorType    Dimension = "sensor_type"
	Resolution    Dimension = "resolution"
	DataAccess    Dimension = "data_access"
	Tasking       Dimension = "tasking"
	Daylight      Dimension = "daylight"
)

// feature attributes the expression is evaluated against
const (
	AttrStartTime     = "start_time"
	AttrEndTime       = "end_time"
	AttrConstellation = "constellation"
	AttrOperator      = "operator"
	AttrSensorType    = "sensor_type"
	AttrSpatialResM   = "spatial_res_m"
	AttrDataAccess    = "data_access"
	AttrTasking       = "tasking"
	AttrIsDaytime     = "is_daytime"
)

var dimensions = []Dimension{Constellation, Operator, SensorType, Resolution, DataAccess, Tasking, Daylight}

// Dimensions lists every filter dimension in display order.
func Dimensions() []Dimension {
	return slices.Clone(dimensions)
}

func ParseDimension(s string) (Dimension, bool) {
	d := Dimension(s)
	if slices.Contains(dimensions, d) {
		return d, true
	}
	return "", false
}

// IsDriver reports whether d constrains the selectable values of the target dimensions.
func (d Dimension) IsDriver() bool {
	switch d {
	case SensorType, Resolution, DataAccess, Tasking, Daylight:
		return true
	}
	return false
}

func (d Dimension) IsTarget() bool {
	return d == Constellation || d == Operator
}

var (
	taskingDomain  = []string{"yes", "no"}
	daylightDomain = []string{"day", "night"}
)

// Metadata is the set of value domains discovered from the generated paths.
// Times are epoch millis.
type Metadata struct {
	MinTime           int64    `json:"minTime"`
	MaxTime           int64    `json:"maxTime"`
	Constellations    []string `json:"constellations"`
	Operators         []string `json:"operators"`
	SensorTypes       []string `json:"sensor_types"`
	DataAccessOptions []string `json:"data_access_options"`
	LastUpdated       string   `json:"lastUpdated,omitempty"`
}

func (m Metadata) Validate() error {
	switch {
	case m.Constellations == nil:
		return &ValidationError{Field: "constellations", Reason: "missing domain list"}
	case m.Operators == nil:
		return &ValidationError{Field: "operators", Reason: "missing domain list"}
	case m.SensorTypes == nil:
		return &ValidationError{Field: "sensor_types", Reason: "missing domain list"}
	case m.DataAccessOptions == nil:
		return &ValidationError{Field: "data_access_options", Reason: "missing domain list"}
	case m.MinTime > m.MaxTime:
		return &ValidationError{Field: "minTime", Reason: "after maxTime"}
	}
	return nil
}

// ValidateCatalog reports the first satellite without a name.
func ValidateCatalog(c []Satellite) error {
	for i, sat := range c {
		if sat.Name == "" {
			return &ValidationError{Field: fmt.Sprintf("catalog[%d].name", i), Reason: "empty"}
		}
	}
	return nil
}

func (m Metadata) clone() *Metadata {
	cp := m
	cp.Constellations = slices.Clone(m.Constellations)
	cp.Operators = slices.Clone(m.Operators)
	cp.SensorTypes = slices.Clone(m.SensorTypes)
	cp.DataAccessOptions = slices.Clone(m.DataAccessOptions)
	return &cp
}

// domain returns the values selectable for d. Fixed domains do not need metadata.
func domain(m *Metadata, d Dimension) []string {
	switch d {
	case Resolution:
		cats := resolution.Categories()
		out := make([]string, len(cats))
		for i, c := range cats {
			out[i] = string(c)
		}
		return out
	case Tasking:
		return taskingDomain
	case Daylight:
		return daylightDomain
	}
	if m == nil {
		return nil
	}
	switch d {
	case Constellation:
		return m.Constellations
	case Operator:
		return m.Operators
	case SensorType:
		return m.SensorTypes
	case DataAccess:
		return m.DataAccessOptions
	}
	return nil
}

// Satellite is one entry of the satellite catalog used for cross-narrowing.
type Satellite struct {
	Name          string  `json:"name"`
	NoradID       int     `json:"norad_id,omitempty"`
	Constellation string  `json:"constellation"`
	Operator      string  `json:"operator"`
	SensorType    string  `json:"sensor_type"`
	SpatialResCM  float64 `json:"spatial_res_cm"`
	DataAccess    string  `json:"data_access"`
	Tasking       *bool   `json:"tasking,omitempty"`
	SwathKM       float64 `json:"swath_km,omitempty"`
}

// matches reports whether the satellite satisfies selecting v on dimension d.
func (s Satellite) matches(d Dimension, v string) bool {
	if v == AllValues {
		return true
	}
	switch d {
	case Constellation:
		return s.Constellation == v
	case Operator:
		return s.Operator == v
	case SensorType:
		return s.SensorType == v
	case DataAccess:
		return s.DataAccess == v
	case Resolution:
		c, err := resolution.Classify(s.SpatialResCM)
		return err == nil && string(c) == v
	case Tasking:
		return s.Tasking != nil && *s.Tasking == (v == "yes")
	case Daylight:
		// per-pass attribute; the catalog cannot be narrowed by it
		return true
	}
	return false
}

type TimeRange struct {
	Start int64 `json:"start"`
	End   int64 `json:"end"`
}

type Option struct {
	Value    string `json:"value"`
	Disabled bool   `json:"disabled"`
}
