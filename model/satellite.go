package model

// SatelliteClass identifies a hardware generation. Each generation
// carries a fixed inter-satellite RF range, an aggregate bandwidth,
// and a beam count.
type SatelliteClass string

const (
	ClassV09 SatelliteClass = "v0.9"
	ClassV10 SatelliteClass = "v1.0"
	ClassV15 SatelliteClass = "v1.5"
	ClassV20 SatelliteClass = "v2.0"
)

// ClassSpec holds the per-generation RF parameters.
type ClassSpec struct {
	MaxRangeKm    float64
	BandwidthMbps float64
	BeamCount     int
}

// classSpecs keys the four generation tiers. Unknown classes fall back
// to the v1.0 tier (see SpecFor).
var classSpecs = map[SatelliteClass]ClassSpec{
	ClassV09: {MaxRangeKm: 1200, BandwidthMbps: 25, BeamCount: 8},
	ClassV10: {MaxRangeKm: 1400, BandwidthMbps: 40, BeamCount: 12},
	ClassV15: {MaxRangeKm: 1600, BandwidthMbps: 60, BeamCount: 16},
	ClassV20: {MaxRangeKm: 1800, BandwidthMbps: 80, BeamCount: 24},
}

// SpecFor returns the RF parameters for a satellite class. Unknown
// classes use the second tier so that partially-described scenarios
// still connect.
func SpecFor(class SatelliteClass) ClassSpec {
	if spec, ok := classSpecs[class]; ok {
		return spec
	}
	return classSpecs[ClassV10]
}

// NodeStatus is the operational state of a satellite or ground station.
type NodeStatus string

const (
	StatusOperational NodeStatus = "operational"
	StatusDegraded    NodeStatus = "degraded"
	StatusOffline     NodeStatus = "offline"
)

// OrbitalElements are classical Keplerian elements. Angles are in
// degrees; AltitudeKm is height above the mean Earth surface, so the
// semi-major axis is Earth radius + altitude.
type OrbitalElements struct {
	AltitudeKm     float64 `json:"altitude_km"`
	InclinationDeg float64 `json:"inclination_deg"`
	Eccentricity   float64 `json:"eccentricity"`
	ArgPerigeeDeg  float64 `json:"arg_perigee_deg"`
	RAANDeg        float64 `json:"raan_deg"`
	MeanAnomalyDeg float64 `json:"mean_anomaly_deg"`
}

// Satellite is one constellation member. Position, velocity, and the
// connection lists are derived state owned by the simulation tick:
// the connection lists are cleared and rebuilt on every topology pass
// and must never contain the satellite's own ID or duplicates.
type Satellite struct {
	ID       string
	Name     string
	Class    SatelliteClass
	Elements OrbitalElements
	Status   NodeStatus

	Position Vec3 // ECEF-style frame, km
	Velocity Vec3 // km/s

	// QueueIDs is the node's FIFO packet queue, head first.
	QueueIDs []int64

	// ConnectedSatIDs and ConnectedGroundIDs are rebuilt each tick by
	// the topology pass; they are adjacency by ID, not pointers.
	ConnectedSatIDs    []string
	ConnectedGroundIDs []string
}
