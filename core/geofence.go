package core

import (
	"fmt"

	"github.com/signalsfoundry/leo-relay-sim/model"
)

// GeofenceOracle answers point-in-region and segment-crossing queries
// against the named denied regions. Regions are registered before the
// simulation starts and never mutated afterwards, so the oracle is
// safe to call concurrently from read-only consumers.
type GeofenceOracle struct {
	regions []model.Region
}

// NewGeofenceOracle builds an oracle over the given regions.
func NewGeofenceOracle(regions []model.Region) (*GeofenceOracle, error) {
	for _, r := range regions {
		if r.Name == "" {
			return nil, fmt.Errorf("geofence: region with empty name")
		}
		switch r.Shape {
		case model.RegionCircle:
			if r.RadiusKm <= 0 {
				return nil, fmt.Errorf("geofence: circle region %q needs a positive radius", r.Name)
			}
		case model.RegionPolygon:
			if len(r.Vertices) < 3 {
				return nil, fmt.Errorf("geofence: polygon region %q needs at least 3 vertices", r.Name)
			}
		default:
			return nil, fmt.Errorf("geofence: region %q has unknown shape %q", r.Name, r.Shape)
		}
	}
	out := make([]model.Region, len(regions))
	copy(out, regions)
	return &GeofenceOracle{regions: out}, nil
}

// Regions returns a copy of the registered regions.
func (g *GeofenceOracle) Regions() []model.Region {
	out := make([]model.Region, len(g.regions))
	copy(out, g.regions)
	return out
}

// PointInRegion reports whether the point lies inside any region, and
// the name of the first matching region.
func (g *GeofenceOracle) PointInRegion(ll model.LatLon) (bool, string) {
	for _, r := range g.regions {
		if regionContains(r, ll) {
			return true, r.Name
		}
	}
	return false, ""
}

// segmentSamples is how many interpolated points are tested along a
// segment's ground track. The original used the same sampled
// approximation rather than exact spherical intersection.
const segmentSamples = 33

// SegmentCrossesRegion reports whether the great-circle ground track
// between two points passes through any region, and which one.
func (g *GeofenceOracle) SegmentCrossesRegion(from, to model.LatLon) (bool, string) {
	a := LatLonToECEF(from, 0)
	b := LatLonToECEF(to, 0)

	for i := 0; i <= segmentSamples; i++ {
		t := float64(i) / float64(segmentSamples)
		p := a.Add(b.Sub(a).Scale(t))
		if p.Norm() == 0 {
			continue
		}
		sample := ECEFToLatLon(p)
		for _, r := range g.regions {
			if regionContains(r, sample) {
				return true, r.Name
			}
		}
	}
	return false, ""
}

// NoTransmissionCrossing is SegmentCrossesRegion restricted to regions
// whose policy forbids transmission.
func (g *GeofenceOracle) NoTransmissionCrossing(from, to model.LatLon) (bool, string) {
	a := LatLonToECEF(from, 0)
	b := LatLonToECEF(to, 0)

	for i := 0; i <= segmentSamples; i++ {
		t := float64(i) / float64(segmentSamples)
		p := a.Add(b.Sub(a).Scale(t))
		if p.Norm() == 0 {
			continue
		}
		sample := ECEFToLatLon(p)
		for _, r := range g.regions {
			if r.NoTransmission && regionContains(r, sample) {
				return true, r.Name
			}
		}
	}
	return false, ""
}

func regionContains(r model.Region, ll model.LatLon) bool {
	switch r.Shape {
	case model.RegionCircle:
		return HaversineKm(r.Center, ll) <= r.RadiusKm
	case model.RegionPolygon:
		return pointInPolygon(r.Vertices, ll)
	default:
		return false
	}
}

// pointInPolygon is a standard ray-casting test in lat/lon space. Fine
// for the mid-latitude, non-antimeridian-spanning regions this
// simulation uses.
func pointInPolygon(verts []model.LatLon, p model.LatLon) bool {
	inside := false
	n := len(verts)
	for i, j := 0, n-1; i < n; j, i = i, i+1 {
		vi, vj := verts[i], verts[j]
		if (vi.LatDeg > p.LatDeg) != (vj.LatDeg > p.LatDeg) {
			dLat := vj.LatDeg - vi.LatDeg
			if dLat != 0 {
				x := (p.LatDeg-vi.LatDeg)*(vj.LonDeg-vi.LonDeg)/dLat + vi.LonDeg
				if p.LonDeg < x {
					inside = !inside
				}
			}
		}
	}
	return inside
}
