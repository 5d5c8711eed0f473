package core

import (
	"math"
	"time"

	satellite "github.com/joshuaferrara/go-satellite"

	"github.com/signalsfoundry/leo-relay-sim/model"
)

// MotionModel advances a satellite's position for one simulation step.
type MotionModel interface {
	Propagate(simTime time.Time, dtSeconds float64, sat *model.Satellite)
}

// KeplerianMotionModel is the default propagator: two-body mean motion
// over classical elements with a small-eccentricity Kepler solve. It
// is deterministic given elapsed time and elements, and mutates the
// satellite's position, velocity, and mean anomaly in place.
type KeplerianMotionModel struct{}

// Propagate advances the mean anomaly by n·dt and rebuilds the
// Cartesian state from the elements.
func (KeplerianMotionModel) Propagate(_ time.Time, dtSeconds float64, sat *model.Satellite) {
	el := &sat.Elements

	a := EarthRadiusKm + el.AltitudeKm
	if a <= 0 {
		return
	}

	// Mean motion from Kepler's third law: n = sqrt(mu / a^3) rad/s.
	n := math.Sqrt(EarthMuKm3S2 / (a * a * a))

	el.MeanAnomalyDeg = wrapDegrees(el.MeanAnomalyDeg + n*dtSeconds*radToDeg)

	pos, vel := keplerianState(*el, a, n)
	sat.Position = pos
	sat.Velocity = vel
}

// keplerianState converts elements to an Earth-centred Cartesian
// state. The mean→eccentric conversion uses the small-eccentricity
// approximation E = M + e·sin(M), which is adequate for the
// near-circular LEO shells this simulation models.
func keplerianState(el model.OrbitalElements, a, n float64) (model.Vec3, model.Vec3) {
	e := el.Eccentricity
	m := el.MeanAnomalyDeg * degToRad

	ecc := m + e*math.Sin(m)

	// True anomaly from eccentric anomaly.
	nu := 2 * math.Atan2(
		math.Sqrt(1+e)*math.Sin(ecc/2),
		math.Sqrt(1-e)*math.Cos(ecc/2),
	)

	r := a * (1 - e*math.Cos(ecc))

	// Orbital-plane (perifocal) state.
	xp := r * math.Cos(nu)
	yp := r * math.Sin(nu)

	h := n * a * a * math.Sqrt(1-e*e) // specific angular momentum
	var vxp, vyp float64
	if h > 0 {
		vxp = -(EarthMuKm3S2 / h) * math.Sin(nu)
		vyp = (EarthMuKm3S2 / h) * (e + math.Cos(nu))
	}

	return rotatePerifocal(xp, yp, el), rotatePerifocal(vxp, vyp, el)
}

// rotatePerifocal applies the argument-of-periapsis, inclination, and
// RAAN rotations to a perifocal-plane vector.
func rotatePerifocal(xp, yp float64, el model.OrbitalElements) model.Vec3 {
	argp := el.ArgPerigeeDeg * degToRad
	inc := el.InclinationDeg * degToRad
	raan := el.RAANDeg * degToRad

	cosO, sinO := math.Cos(raan), math.Sin(raan)
	cosW, sinW := math.Cos(argp), math.Sin(argp)
	cosI, sinI := math.Cos(inc), math.Sin(inc)

	return model.Vec3{
		X: xp*(cosO*cosW-sinO*sinW*cosI) - yp*(cosO*sinW+sinO*cosW*cosI),
		Y: xp*(sinO*cosW+cosO*sinW*cosI) - yp*(sinO*sinW-cosO*cosW*cosI),
		Z: xp*(sinW*sinI) + yp*(cosW*sinI),
	}
}

// OrbitalPeriodSeconds returns the two-body period for a circular-ish
// orbit at the satellite's altitude.
func OrbitalPeriodSeconds(el model.OrbitalElements) float64 {
	a := EarthRadiusKm + el.AltitudeKm
	if a <= 0 {
		return 0
	}
	return 2 * math.Pi * math.Sqrt(a*a*a/EarthMuKm3S2)
}

// SGP4MotionModel propagates a TLE-seeded satellite with SGP4 so real
// catalog objects can be mixed into a scenario. go-satellite works in
// kilometres, matching the simulation frame.
type SGP4MotionModel struct {
	sat satellite.Satellite
}

// NewSGP4ModelFromTLE constructs an SGP4 model from TLE lines.
func NewSGP4ModelFromTLE(line1, line2 string) *SGP4MotionModel {
	return &SGP4MotionModel{sat: satellite.TLEToSat(line1, line2, satellite.GravityWGS72)}
}

// Propagate advances the satellite to the given simulation time and
// rotates the ECI state into the Earth-fixed frame.
func (m *SGP4MotionModel) Propagate(simTime time.Time, _ float64, sat *model.Satellite) {
	year, month, day := simTime.Date()
	hour, min, sec := simTime.Clock()

	posECI, velECI := satellite.Propagate(m.sat, year, int(month), day, hour, min, sec)
	jd := satellite.JDay(year, int(month), day, hour, min, sec)
	gmst := satellite.ThetaG_JD(jd)
	posECEF := satellite.ECIToECEF(posECI, gmst)
	velECEF := satellite.ECIToECEF(velECI, gmst)

	sat.Position = model.Vec3{X: posECEF.X, Y: posECEF.Y, Z: posECEF.Z}
	sat.Velocity = model.Vec3{X: velECEF.X, Y: velECEF.Y, Z: velECEF.Z}
	sat.Elements.MeanAnomalyDeg = wrapDegrees(sat.Elements.MeanAnomalyDeg)
}
