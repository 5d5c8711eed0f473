package core

import (
	"math"

	"github.com/signalsfoundry/leo-relay-sim/model"
)

const (
	// EarthRadiusKm is the mean Earth radius used for all geometry in
	// the connectivity layer (kilometres).
	EarthRadiusKm = 6371.0

	// EarthMuKm3S2 is Earth's standard gravitational parameter.
	EarthMuKm3S2 = 398600.4418

	// AtmosphereBufferKm pads the Earth radius for line-of-sight
	// occlusion checks so grazing links through the lower atmosphere
	// are rejected.
	AtmosphereBufferKm = 100.0

	degToRad = math.Pi / 180.0
	radToDeg = 180.0 / math.Pi
)

// hasLineOfSight reports whether the straight segment between p1 and
// p2 clears the Earth sphere plus the atmospheric buffer. Positions
// are Earth-centred kilometres.
func hasLineOfSight(p1, p2 model.Vec3) bool {
	blocked := EarthRadiusKm + AtmosphereBufferKm

	v := p2.Sub(p1)
	a := v.Dot(v)
	if a == 0 {
		// Degenerate case: coincident points. Outside the blocked
		// sphere counts as clear; inside counts as occluded.
		return p1.Dot(p1) > blocked*blocked
	}

	// Closest point of the segment to the Earth's centre (origin):
	// t* minimises |p1 + t v|^2 over t, clamped to the segment.
	t := -p1.Dot(v) / a
	if t < 0 {
		t = 0
	} else if t > 1 {
		t = 1
	}

	closest := p1.Add(v.Scale(t))
	return closest.Dot(closest) > blocked*blocked
}

// LatLonToECEF converts a geodetic point at altitude altKm to an
// Earth-centred vector on the spherical Earth model used throughout.
func LatLonToECEF(ll model.LatLon, altKm float64) model.Vec3 {
	lat := ll.LatDeg * degToRad
	lon := ll.LonDeg * degToRad
	r := EarthRadiusKm + altKm
	return model.Vec3{
		X: r * math.Cos(lat) * math.Cos(lon),
		Y: r * math.Cos(lat) * math.Sin(lon),
		Z: r * math.Sin(lat),
	}
}

// ECEFToLatLon projects an Earth-centred vector to the geodetic point
// directly beneath it (the sub-satellite point for orbiting nodes).
func ECEFToLatLon(p model.Vec3) model.LatLon {
	r := p.Norm()
	if r == 0 {
		return model.LatLon{}
	}
	lat := math.Asin(p.Z/r) * radToDeg
	lon := math.Atan2(p.Y, p.X) * radToDeg
	return model.LatLon{LatDeg: lat, LonDeg: lon}
}

// HaversineKm returns the great-circle distance between two geodetic
// points on the mean Earth sphere.
func HaversineKm(a, b model.LatLon) float64 {
	lat1 := a.LatDeg * degToRad
	lat2 := b.LatDeg * degToRad
	dLat := (b.LatDeg - a.LatDeg) * degToRad
	dLon := (b.LonDeg - a.LonDeg) * degToRad

	s := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(lat1)*math.Cos(lat2)*math.Sin(dLon/2)*math.Sin(dLon/2)
	return 2 * EarthRadiusKm * math.Asin(math.Min(1, math.Sqrt(s)))
}

// wrapDegrees normalises an angle in degrees to [0, 360).
func wrapDegrees(deg float64) float64 {
	deg = math.Mod(deg, 360)
	if deg < 0 {
		deg += 360
	}
	return deg
}
