package model

// RegionShape identifies the geometry of a denied region.
type RegionShape string

const (
	RegionCircle  RegionShape = "circle"
	RegionPolygon RegionShape = "polygon"
)

// Region is a named geographic area with a transmission policy. A
// circle is Center + RadiusKm; a polygon is a closed ring of vertices
// (the closing edge back to the first vertex is implicit).
type Region struct {
	Name     string      `json:"name"`
	Shape    RegionShape `json:"shape"`
	Center   LatLon      `json:"center,omitempty"`
	RadiusKm float64     `json:"radius_km,omitempty"`
	Vertices []LatLon    `json:"vertices,omitempty"`

	// NoTransmission forbids any link whose ground track crosses the
	// region; such edges are built but marked inactive.
	NoTransmission bool `json:"no_transmission"`
}
