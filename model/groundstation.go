package model

// GroundStation is a fixed terrestrial terminal. Stations are owned by
// the simulation's registry: they are created up front and only ever
// mutated (status, bandwidth, traffic), never destroyed at runtime.
type GroundStation struct {
	ID               string
	Name             string
	Location         LatLon
	Position         Vec3 // derived from Location at registration, km
	CoverageRadiusKm float64
	BandwidthMbps    float64
	HasInternet      bool
	Status           NodeStatus

	// QueueIDs is the node's FIFO packet queue, head first.
	QueueIDs []int64

	// Traffic accumulators in Mbps, decayed exponentially each tick.
	IncomingMbps float64
	OutgoingMbps float64

	// ConnectedSatIDs is rebuilt each tick by the topology pass.
	ConnectedSatIDs []string
}
