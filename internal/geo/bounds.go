package geo

import (
	"github.com/twpayne/go-geom"
)

// Bounds is a geographic viewport (south-west / north-east corners) used to
// limit bench queries to the visible map area.
type Bounds struct {
	bounds *geom.Bounds
}

// NewBounds builds a viewport from its south-west and north-east corners.
func NewBounds(swLat, swLng, neLat, neLng float64) Bounds {
	return Bounds{bounds: geom.NewBounds(geom.XY).Set(swLng, swLat, neLng, neLat)}
}

// Contains reports whether the coordinate pair lies within the viewport.
func (b Bounds) Contains(lat, lng float64) bool {
	if b.bounds == nil {
		return false
	}
	return b.bounds.OverlapsPoint(geom.XY, geom.Coord{lng, lat})
}

// SWLat returns the southern latitude boundary.
func (b Bounds) SWLat() float64 { return b.bounds.Min(1) }

// SWLng returns the western longitude boundary.
func (b Bounds) SWLng() float64 { return b.bounds.Min(0) }

// NELat returns the northern latitude boundary.
func (b Bounds) NELat() float64 { return b.bounds.Max(1) }

// NELng returns the eastern longitude boundary.
func (b Bounds) NELng() float64 { return b.bounds.Max(0) }

// Point returns a go-geom point for a bench location, X=lng Y=lat.
func Point(lat, lng float64) *geom.Point {
	return geom.NewPointFlat(geom.XY, []float64{lng, lat})
}
