package core

import (
	"math"
	"testing"
	"time"

	"github.com/signalsfoundry/leo-relay-sim/model"
)

func circularElements(altKm, incDeg, raanDeg, anomalyDeg float64) model.OrbitalElements {
	return model.OrbitalElements{
		AltitudeKm:     altKm,
		InclinationDeg: incDeg,
		RAANDeg:        raanDeg,
		MeanAnomalyDeg: anomalyDeg,
	}
}

func TestKeplerianPropagateIsDeterministic(t *testing.T) {
	m := KeplerianMotionModel{}

	a := &model.Satellite{ID: "a", Elements: circularElements(550, 53, 10, 20)}
	b := &model.Satellite{ID: "b", Elements: circularElements(550, 53, 10, 20)}

	now := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	for i := 0; i < 10; i++ {
		m.Propagate(now, 60, a)
		m.Propagate(now, 60, b)
	}

	if a.Position != b.Position {
		t.Fatalf("identical elements diverged: %+v vs %+v", a.Position, b.Position)
	}
	if a.Elements.MeanAnomalyDeg != b.Elements.MeanAnomalyDeg {
		t.Fatalf("mean anomaly diverged: %v vs %v", a.Elements.MeanAnomalyDeg, b.Elements.MeanAnomalyDeg)
	}
}

func TestKeplerianRadiusMatchesAltitude(t *testing.T) {
	m := KeplerianMotionModel{}
	sat := &model.Satellite{ID: "a", Elements: circularElements(550, 53, 0, 0)}

	m.Propagate(time.Time{}, 0, sat)

	wantR := EarthRadiusKm + 550
	if r := sat.Position.Norm(); math.Abs(r-wantR) > 1 {
		t.Fatalf("orbital radius = %v km, want ~%v km", r, wantR)
	}
	if v := sat.Velocity.Norm(); math.Abs(v-7.59) > 0.1 {
		t.Fatalf("circular LEO speed = %v km/s, want ~7.59 km/s", v)
	}
}

func TestKeplerianMeanAnomalyStaysWrapped(t *testing.T) {
	m := KeplerianMotionModel{}
	sat := &model.Satellite{ID: "a", Elements: circularElements(550, 53, 0, 359.5)}

	period := OrbitalPeriodSeconds(sat.Elements)

	// A step spanning several full periods must still land in [0, 360).
	m.Propagate(time.Time{}, 3.5*period, sat)
	got := sat.Elements.MeanAnomalyDeg
	if got < 0 || got >= 360 {
		t.Fatalf("mean anomaly %v outside [0, 360)", got)
	}
}

func TestOrbitalPeriodSeconds(t *testing.T) {
	el := circularElements(550, 53, 0, 0)
	got := OrbitalPeriodSeconds(el)

	// Two-body period for a 550 km shell is roughly 95.5 minutes.
	if math.Abs(got-5731) > 10 {
		t.Fatalf("OrbitalPeriodSeconds = %v, want ~5731", got)
	}

	// One full period returns the satellite to its starting anomaly.
	m := KeplerianMotionModel{}
	sat := &model.Satellite{ID: "a", Elements: el}
	m.Propagate(time.Time{}, 0, sat)
	start := sat.Position
	m.Propagate(time.Time{}, got, sat)
	if start.DistanceTo(sat.Position) > 1 {
		t.Fatalf("position after one period drifted %v km", start.DistanceTo(sat.Position))
	}
}

// We don't assert exact SGP4 values (those belong to go-satellite); we
// just ensure the position moves between distinct epochs.
func TestSGP4PropagateChangesOverTime(t *testing.T) {
	tle1 := "1 25544U 98067A   21275.59097222  .00000204  00000-0  10270-4 0  9990"
	tle2 := "2 25544  51.6459 115.9059 0001817  61.3028  35.9198 15.49370953257760"

	m := NewSGP4ModelFromTLE(tle1, tle2)
	sat := &model.Satellite{ID: "iss"}

	t1 := time.Date(2021, 10, 2, 0, 0, 0, 0, time.UTC)
	m.Propagate(t1, 0, sat)
	first := sat.Position

	m.Propagate(t1.Add(5*time.Minute), 300, sat)
	if first == sat.Position {
		t.Fatalf("expected SGP4 position to change over time, got %+v at both times", first)
	}
}
