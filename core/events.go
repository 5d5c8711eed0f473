package core

import "github.com/signalsfoundry/leo-relay-sim/model"

// EventListener receives simulation notifications. Callbacks are
// invoked synchronously, in tick order, while the simulation holds its
// write lock; listeners must not call back into mutating operations.
// The simulation makes no assumption about listener behaviour beyond
// that.
//
// Embed NopListener to implement only the callbacks you care about.
type EventListener interface {
	PacketCreated(p model.DataPacket)
	PacketRouted(p model.DataPacket, fromID, toID string)
	PacketDelivered(p model.DataPacket)
	PacketDropped(p model.DataPacket, reason model.DropReason)
	ConnectionAdded(edge TopologyEdge)
	ConnectionRemoved(edge TopologyEdge)
	StatusChanged(kind model.NodeKind, nodeID string, status model.NodeStatus)
	BandwidthChanged(kind model.NodeKind, nodeID string, bandwidthMbps float64)
	TrafficAdded(groundStationID string, incomingMbps, outgoingMbps float64)
}

// NopListener implements EventListener with no-ops.
type NopListener struct{}

func (NopListener) PacketCreated(model.DataPacket)                         {}
func (NopListener) PacketRouted(model.DataPacket, string, string)          {}
func (NopListener) PacketDelivered(model.DataPacket)                       {}
func (NopListener) PacketDropped(model.DataPacket, model.DropReason)       {}
func (NopListener) ConnectionAdded(TopologyEdge)                           {}
func (NopListener) ConnectionRemoved(TopologyEdge)                         {}
func (NopListener) StatusChanged(model.NodeKind, string, model.NodeStatus) {}
func (NopListener) BandwidthChanged(model.NodeKind, string, float64)       {}
func (NopListener) TrafficAdded(string, float64, float64)                  {}

// listeners fan-out helper owned by the simulation instance; there is
// deliberately no ambient/global registry.
type listeners []EventListener

func (ls listeners) packetCreated(p model.DataPacket) {
	for _, l := range ls {
		l.PacketCreated(p)
	}
}

func (ls listeners) packetRouted(p model.DataPacket, fromID, toID string) {
	for _, l := range ls {
		l.PacketRouted(p, fromID, toID)
	}
}

func (ls listeners) packetDelivered(p model.DataPacket) {
	for _, l := range ls {
		l.PacketDelivered(p)
	}
}

func (ls listeners) packetDropped(p model.DataPacket, reason model.DropReason) {
	for _, l := range ls {
		l.PacketDropped(p, reason)
	}
}

func (ls listeners) connectionAdded(e TopologyEdge) {
	for _, l := range ls {
		l.ConnectionAdded(e)
	}
}

func (ls listeners) connectionRemoved(e TopologyEdge) {
	for _, l := range ls {
		l.ConnectionRemoved(e)
	}
}

func (ls listeners) statusChanged(kind model.NodeKind, id string, st model.NodeStatus) {
	for _, l := range ls {
		l.StatusChanged(kind, id, st)
	}
}

func (ls listeners) bandwidthChanged(kind model.NodeKind, id string, bw float64) {
	for _, l := range ls {
		l.BandwidthChanged(kind, id, bw)
	}
}

func (ls listeners) trafficAdded(id string, in, out float64) {
	for _, l := range ls {
		l.TrafficAdded(id, in, out)
	}
}
