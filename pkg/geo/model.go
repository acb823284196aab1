// Package geo holds the bounded random-walk position model used to move
// simulated entities around a base location.
package geo

import "math"

// Defaults for the model, in decimal degrees.
const (
	DefaultBaseLat  = 17.4200
	DefaultBaseLong = 78.4700
	DefaultStep     = 0.0002
	DefaultRadius   = 0.03
)

// Position is a WGS84 coordinate in decimal degrees.
type Position struct {
	Lat  float64 `json:"lat" yaml:"lat"`
	Long float64 `json:"long" yaml:"long"`
}

// Heading is a per-axis direction. Each component lies in [-1, 1].
type Heading struct {
	DLat  float64 `json:"dlat" yaml:"dlat"`
	DLong float64 `json:"dlong" yaml:"dlong"`
}

// Model moves a position by Step*multiplier along a heading and bounces the
// heading back toward Base once an axis strays further than Radius.
type Model struct {
	Base        Position
	Step        float64
	Radius      float64
	Multipliers map[string]float64
}

// DefaultModel returns a model centred on the default base with the default
// step and excursion radius. Aerial units move twice as fast, soldiers half.
func DefaultModel() *Model {
	return &Model{
		Base:   Position{Lat: DefaultBaseLat, Long: DefaultBaseLong},
		Step:   DefaultStep,
		Radius: DefaultRadius,
		Multipliers: map[string]float64{
			"uav":     2.0,
			"soldier": 0.5,
		},
	}
}

// Multiplier returns the speed multiplier for kind, 1.0 when none is set.
func (m *Model) Multiplier(kind string) float64 {
	if v, ok := m.Multipliers[kind]; ok {
		return v
	}
	return 1.0
}

// Advance performs one tick. The bounce check runs on the post-step position,
// so an entity may overshoot the radius by at most one step before turning.
func (m *Model) Advance(p Position, h Heading, kind string) (Position, Heading) {
	delta := m.Step * m.Multiplier(kind)

	next := Position{
		Lat:  p.Lat + delta*h.DLat,
		Long: p.Long + delta*h.DLong,
	}

	if math.Abs(next.Lat-m.Base.Lat) > m.Radius {
		h.DLat = -h.DLat
	}
	if math.Abs(next.Long-m.Base.Long) > m.Radius {
		h.DLong = -h.DLong
	}

	return next, h
}

// Within reports whether p lies inside the excursion box around Base,
// widened by slack on each axis.
func (m *Model) Within(p Position, slack float64) bool {
	return math.Abs(p.Lat-m.Base.Lat) <= m.Radius+slack &&
		math.Abs(p.Long-m.Base.Long) <= m.Radius+slack
}

// ClampHeading limits each component of h to [-1, 1].
func ClampHeading(h Heading) Heading {
	return Heading{
		DLat:  clamp(h.DLat),
		DLong: clamp(h.DLong),
	}
}

func clamp(v float64) float64 {
	switch {
	case math.IsNaN(v):
		return 0
	case v > 1:
		return 1
	case v < -1:
		return -1
	}
	return v
}
