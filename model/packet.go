package model

// NodeKind tags the three endpoint variants a packet can reference.
// Every site that consumes a NodeRef switches exhaustively over these.
type NodeKind string

const (
	NodeSatellite     NodeKind = "satellite"
	NodeGroundStation NodeKind = "groundStation"
	NodeInternet      NodeKind = "internet"
)

// InternetID is the literal node ID used when a packet egresses to the
// public internet; it terminates a path without naming a real node.
const InternetID = "internet"

// NodeRef identifies a packet source or destination. Location is
// optional and, when present, lets the router steer geographically
// even before the destination is directly visible.
type NodeRef struct {
	Kind     NodeKind `json:"kind"`
	ID       string   `json:"id"`
	Location *LatLon  `json:"location,omitempty"`
}

// Internet returns the virtual internet sink reference.
func Internet() NodeRef {
	return NodeRef{Kind: NodeInternet, ID: InternetID}
}

// PacketStatus is the routing state machine for a packet. Delivered
// and dropped are terminal.
type PacketStatus string

const (
	PacketQueued    PacketStatus = "queued"
	PacketInTransit PacketStatus = "in-transit"
	PacketDelivered PacketStatus = "delivered"
	PacketDropped   PacketStatus = "dropped"
)

// DropReason explains why a packet was dropped.
type DropReason string

const (
	DropTimeout   DropReason = "timeout"
	DropNoRoute   DropReason = "no-route"
	DropBadSource DropReason = "invalid-source"
)

// DataPacket is one store-and-forward payload. IDs are a monotonic
// counter issued by the simulation. Priority is carried metadata with
// a fixed convention: lower value = more urgent (1 outranks 5). It is
// reported in events and snapshots but does not reorder the per-node
// FIFO queues.
type DataPacket struct {
	ID          int64
	Source      NodeRef
	Destination NodeRef
	SizeKB      float64
	Priority    int

	CreatedAt      float64 // simulation seconds at creation
	LatencySeconds float64 // accumulated simulated latency

	// Path is the ordered list of node IDs the packet has visited,
	// starting with the source node.
	Path []string

	Status     PacketStatus
	DropReason DropReason

	// CurrentNodeID is the node whose queue holds the packet while it
	// is live; empty once terminal.
	CurrentNodeID string
}
