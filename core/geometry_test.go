package core

import (
	"math"
	"testing"

	"github.com/signalsfoundry/leo-relay-sim/model"
)

func TestHasLineOfSight(t *testing.T) {
	alt := EarthRadiusKm + 550

	tests := []struct {
		name string
		p1   model.Vec3
		p2   model.Vec3
		want bool
	}{
		{
			name: "adjacent satellites clear",
			p1:   model.Vec3{X: alt},
			p2:   model.Vec3{X: alt * math.Cos(0.1), Y: alt * math.Sin(0.1)},
			want: true,
		},
		{
			name: "antipodal satellites occluded by Earth",
			p1:   model.Vec3{X: alt},
			p2:   model.Vec3{X: -alt},
			want: false,
		},
		{
			name: "grazing path through atmosphere buffer rejected",
			p1:   model.Vec3{X: EarthRadiusKm + 50, Z: 4000},
			p2:   model.Vec3{X: EarthRadiusKm + 50, Z: -4000},
			want: false,
		},
		{
			name: "coincident points above the buffer",
			p1:   model.Vec3{X: alt},
			p2:   model.Vec3{X: alt},
			want: true,
		},
		{
			name: "coincident points inside the buffer",
			p1:   model.Vec3{X: EarthRadiusKm},
			p2:   model.Vec3{X: EarthRadiusKm},
			want: false,
		},
	}

	for _, tc := range tests {
		if got := hasLineOfSight(tc.p1, tc.p2); got != tc.want {
			t.Errorf("%s: hasLineOfSight = %v, want %v", tc.name, got, tc.want)
		}
	}
}

func TestLatLonECEFRoundTrip(t *testing.T) {
	points := []model.LatLon{
		{LatDeg: 0, LonDeg: 0},
		{LatDeg: 45, LonDeg: 90},
		{LatDeg: -33.87, LonDeg: 151.21},
		{LatDeg: 78.23, LonDeg: 15.39},
	}

	for _, ll := range points {
		got := ECEFToLatLon(LatLonToECEF(ll, 0))
		if math.Abs(got.LatDeg-ll.LatDeg) > 1e-9 || math.Abs(got.LonDeg-ll.LonDeg) > 1e-9 {
			t.Errorf("round trip of %+v gave %+v", ll, got)
		}
	}

	if r := LatLonToECEF(model.LatLon{LatDeg: 10, LonDeg: 20}, 550).Norm(); math.Abs(r-(EarthRadiusKm+550)) > 1e-6 {
		t.Errorf("altitude not preserved: radius %v", r)
	}
}

func TestHaversineKm(t *testing.T) {
	// A quarter of the equator.
	a := model.LatLon{LatDeg: 0, LonDeg: 0}
	b := model.LatLon{LatDeg: 0, LonDeg: 90}
	want := math.Pi * EarthRadiusKm / 2
	if got := HaversineKm(a, b); math.Abs(got-want) > 1 {
		t.Fatalf("HaversineKm = %v, want ~%v", got, want)
	}

	if got := HaversineKm(a, a); got != 0 {
		t.Fatalf("distance to self = %v, want 0", got)
	}
}

func TestWrapDegrees(t *testing.T) {
	tests := []struct{ in, want float64 }{
		{0, 0},
		{359.9, 359.9},
		{360, 0},
		{725, 5},
		{-90, 270},
		{-720, 0},
	}
	for _, tc := range tests {
		if got := wrapDegrees(tc.in); math.Abs(got-tc.want) > 1e-9 {
			t.Errorf("wrapDegrees(%v) = %v, want %v", tc.in, got, tc.want)
		}
	}
}
