package core

import (
	"sort"

	"github.com/signalsfoundry/leo-relay-sim/model"
)

// PacketTimeoutSeconds is the fixed simulated-latency budget a packet
// gets before it is dropped.
const PacketTimeoutSeconds = 30.0

// PacketRouter advances store-and-forward packets across the current
// topology. Routing is local and greedy: each hop is chosen from the
// current node's connection lists with a fixed preference ladder that
// favours ground-station egress over satellite-mesh backhaul, and
// avoids loops by excluding nodes already in the packet's path.
//
// The router and the PathfindingEngine are deliberately independent
// algorithms over the same edge table; they agree on reachability but
// not necessarily on the chosen route.
type PacketRouter struct {
	sim *Simulation

	// hopsToEgress caches, for the current tick, each satellite's BFS
	// hop distance to the nearest satellite that sees an
	// internet-connected ground station.
	hopsToEgress map[string]int
}

func newPacketRouter(sim *Simulation) *PacketRouter {
	return &PacketRouter{sim: sim}
}

// Advance runs one routing step for every live packet. Per packet:
// accumulate latency, time out, enforce per-node FIFO (only queue
// heads move), deliver, gate on transmission time, then hop.
func (r *PacketRouter) Advance(dtSeconds float64) {
	r.hopsToEgress = nil // topology changed since last tick

	ids := r.sim.livePacketIDs()
	for _, id := range ids {
		p := r.sim.packets[id]
		if p == nil || p.Status == model.PacketDelivered || p.Status == model.PacketDropped {
			continue
		}

		p.LatencySeconds += dtSeconds

		if p.LatencySeconds > PacketTimeoutSeconds {
			r.drop(p, model.DropTimeout)
			continue
		}

		// Strict FIFO per node: packets behind the head wait even if
		// individually ready.
		queue := r.sim.queueFor(p.CurrentNodeID)
		if queue == nil || len(*queue) == 0 || (*queue)[0] != p.ID {
			continue
		}

		if r.deliveredAt(p, p.CurrentNodeID) {
			r.deliver(p)
			continue
		}

		// Transmission-time gate against the current node's aggregate
		// bandwidth rather than the specific edge's; the node-level
		// gate models congestion at the transmitter.
		txSeconds := transmissionSeconds(p.SizeKB, r.sim.nodeBandwidthMbps(p.CurrentNodeID))
		if p.LatencySeconds < txSeconds {
			continue
		}

		next, ok := r.selectNextHop(p)
		if !ok {
			r.drop(p, model.DropNoRoute)
			continue
		}
		r.hop(p, next)
	}
}

// routeNewPacket runs the immediate first step for a freshly created
// packet: deliver in place, or take one ungated hop so the packet
// reaches in-transit right away. Packets that cannot move stay queued
// and are retried (or dropped) by subsequent ticks.
func (r *PacketRouter) routeNewPacket(p *model.DataPacket) {
	if r.deliveredAt(p, p.CurrentNodeID) {
		r.deliver(p)
		return
	}
	queue := r.sim.queueFor(p.CurrentNodeID)
	if queue == nil || len(*queue) == 0 || (*queue)[0] != p.ID {
		return
	}
	if next, ok := r.selectNextHop(p); ok {
		r.hop(p, next)
	}
}

// transmissionSeconds converts packet size and node bandwidth into the
// time the packet must have spent queued before it may move.
func transmissionSeconds(sizeKB, bandwidthMbps float64) float64 {
	if bandwidthMbps <= 0 {
		return PacketTimeoutSeconds // effectively never passes the gate
	}
	return sizeKB * 8 / (bandwidthMbps * 1000)
}

// deliveredAt reports whether the packet's destination matches the
// given node: the destination satellite or ground station itself, or
// any internet-connected ground station for internet-bound packets.
func (r *PacketRouter) deliveredAt(p *model.DataPacket, nodeID string) bool {
	switch p.Destination.Kind {
	case model.NodeSatellite:
		return p.Destination.ID == nodeID && r.sim.sats[nodeID] != nil
	case model.NodeGroundStation:
		return p.Destination.ID == nodeID && r.sim.grounds[nodeID] != nil
	case model.NodeInternet:
		g := r.sim.grounds[nodeID]
		return g != nil && g.HasInternet
	default:
		return false
	}
}

func (r *PacketRouter) deliver(p *model.DataPacket) {
	r.sim.removeFromQueue(p.CurrentNodeID, p.ID)
	if p.Destination.Kind == model.NodeInternet {
		// The virtual internet sink ends the path without naming a
		// real node.
		p.Path = append(p.Path, model.InternetID)
	}
	p.Status = model.PacketDelivered
	p.CurrentNodeID = ""
	r.sim.subs.packetDelivered(*p)
	if r.sim.metrics != nil {
		r.sim.metrics.PacketDelivered()
	}
}

// drop is a first-class outcome, not a hidden fallback: unreachable
// destinations and timeouts both land here.
func (r *PacketRouter) drop(p *model.DataPacket, reason model.DropReason) {
	r.sim.removeFromQueue(p.CurrentNodeID, p.ID)
	p.Status = model.PacketDropped
	p.DropReason = reason
	p.CurrentNodeID = ""
	r.sim.subs.packetDropped(*p, reason)
	if r.sim.metrics != nil {
		r.sim.metrics.PacketDropped(string(reason))
	}
}

// hop transfers the packet queue-to-queue and records the visit.
func (r *PacketRouter) hop(p *model.DataPacket, nextID string) {
	fromID := p.CurrentNodeID
	r.sim.removeFromQueue(fromID, p.ID)
	r.sim.pushQueue(nextID, p.ID)

	p.Path = append(p.Path, nextID)
	p.CurrentNodeID = nextID
	p.Status = model.PacketInTransit

	r.sim.recordTraffic(fromID, nextID, p.SizeKB)
	r.sim.subs.packetRouted(*p, fromID, nextID)
}

// selectNextHop picks the packet's next node. Deterministic: candidate
// lists are iterated in the sorted order the topology pass built them
// in, and nodes already in the path are excluded.
func (r *PacketRouter) selectNextHop(p *model.DataPacket) (string, bool) {
	visited := make(map[string]bool, len(p.Path))
	for _, id := range p.Path {
		visited[id] = true
	}

	if s, ok := r.sim.sats[p.CurrentNodeID]; ok {
		return r.nextHopFromSatellite(p, s, visited)
	}
	if g, ok := r.sim.grounds[p.CurrentNodeID]; ok {
		return r.nextHopFromGround(p, g, visited)
	}
	return "", false
}

func (r *PacketRouter) nextHopFromSatellite(p *model.DataPacket, s *model.Satellite, visited map[string]bool) (string, bool) {
	dest := p.Destination

	// 1) A directly connected ground station that is the destination.
	if dest.Kind == model.NodeGroundStation {
		for _, gid := range s.ConnectedGroundIDs {
			if gid == dest.ID {
				return gid, true
			}
		}
	}

	// The destination satellite itself, when directly visible.
	if dest.Kind == model.NodeSatellite {
		for _, sid := range s.ConnectedSatIDs {
			if sid == dest.ID {
				return sid, true
			}
		}
	}

	destLL, haveDestLL := r.destinationLatLon(dest)

	// 2) Ground egress: any connected internet-capable ground station,
	// for internet-bound packets and for ground-station destinations
	// whose position is known (terrestrial backhaul carries the rest).
	if dest.Kind == model.NodeInternet || (dest.Kind == model.NodeGroundStation && haveDestLL) {
		for _, gid := range s.ConnectedGroundIDs {
			if visited[gid] {
				continue
			}
			if g := r.sim.grounds[gid]; g != nil && g.HasInternet {
				return gid, true
			}
		}
	}

	// 3) A neighbour satellite whose own ground-station connection is
	// haversine-closest to the destination.
	if haveDestLL {
		bestID := ""
		bestKm := 0.0
		for _, sid := range s.ConnectedSatIDs {
			if visited[sid] {
				continue
			}
			n := r.sim.sats[sid]
			if n == nil || len(n.ConnectedGroundIDs) == 0 {
				continue
			}
			for _, gid := range n.ConnectedGroundIDs {
				g := r.sim.grounds[gid]
				if g == nil {
					continue
				}
				if d := HaversineKm(g.Location, destLL); bestID == "" || d < bestKm {
					bestID, bestKm = sid, d
				}
			}
		}
		if bestID != "" {
			return bestID, true
		}

		// 4) Greedy geographic descent through the mesh toward the
		// destination's Cartesian projection.
		destPos := r.destinationPosition(dest, destLL)
		bestID = ""
		for _, sid := range s.ConnectedSatIDs {
			if visited[sid] {
				continue
			}
			n := r.sim.sats[sid]
			if n == nil {
				continue
			}
			if d := n.Position.DistanceTo(destPos); bestID == "" || d < bestKm {
				bestID, bestKm = sid, d
			}
		}
		if bestID != "" {
			return bestID, true
		}
	}

	// 5) Fewest additional hops toward any internet egress.
	if sid, ok := r.neighborTowardEgress(s.ConnectedSatIDs, visited); ok {
		return sid, true
	}

	return "", false
}

func (r *PacketRouter) nextHopFromGround(p *model.DataPacket, g *model.GroundStation, visited map[string]bool) (string, bool) {
	dest := p.Destination

	switch dest.Kind {
	case model.NodeSatellite:
		for _, sid := range g.ConnectedSatIDs {
			if sid == dest.ID {
				return sid, true
			}
		}
		if d := r.sim.sats[dest.ID]; d != nil {
			return closestSatellite(r.sim, g.ConnectedSatIDs, visited, d.Position)
		}
		return firstUnvisited(g.ConnectedSatIDs, visited)

	case model.NodeGroundStation:
		if destLL, ok := r.destinationLatLon(dest); ok {
			return closestSatellite(r.sim, g.ConnectedSatIDs, visited, LatLonToECEF(destLL, 0))
		}
		// Lacking position data, take the first connected satellite.
		return firstUnvisited(g.ConnectedSatIDs, visited)

	case model.NodeInternet:
		// Reaching here means this station has no internet uplink
		// (otherwise the delivery check fired); climb back into the
		// mesh toward an egress.
		if sid, ok := r.neighborTowardEgress(g.ConnectedSatIDs, visited); ok {
			return sid, true
		}
		return firstUnvisited(g.ConnectedSatIDs, visited)

	default:
		return "", false
	}
}

// destinationLatLon resolves the geodetic target of a destination:
// the descriptor's own position, the registry position of a ground
// station, or the sub-satellite point of a satellite destination.
func (r *PacketRouter) destinationLatLon(dest model.NodeRef) (model.LatLon, bool) {
	if dest.Location != nil {
		return *dest.Location, true
	}
	switch dest.Kind {
	case model.NodeGroundStation:
		if g := r.sim.grounds[dest.ID]; g != nil {
			return g.Location, true
		}
	case model.NodeSatellite:
		if s := r.sim.sats[dest.ID]; s != nil {
			return ECEFToLatLon(s.Position), true
		}
	}
	return model.LatLon{}, false
}

// destinationPosition is the Cartesian target for greedy descent:
// satellite destinations use the live position, everything else the
// surface projection of the geodetic target.
func (r *PacketRouter) destinationPosition(dest model.NodeRef, ll model.LatLon) model.Vec3 {
	if dest.Kind == model.NodeSatellite {
		if s := r.sim.sats[dest.ID]; s != nil {
			return s.Position
		}
	}
	return LatLonToECEF(ll, 0)
}

// neighborTowardEgress picks the unvisited candidate with the fewest
// BFS hops to any satellite holding an internet-connected ground link.
func (r *PacketRouter) neighborTowardEgress(candidates []string, visited map[string]bool) (string, bool) {
	hops := r.egressHops()
	bestID := ""
	bestHops := 0
	for _, sid := range candidates {
		if visited[sid] {
			continue
		}
		h, ok := hops[sid]
		if !ok {
			continue
		}
		if bestID == "" || h < bestHops {
			bestID, bestHops = sid, h
		}
	}
	return bestID, bestID != ""
}

// egressHops runs a multi-source BFS over the satellite mesh from
// every satellite that currently sees an internet-connected ground
// station, and caches the result for the remainder of the tick.
func (r *PacketRouter) egressHops() map[string]int {
	if r.hopsToEgress != nil {
		return r.hopsToEgress
	}

	hops := make(map[string]int)
	var frontier []string

	for _, sid := range sortedSatIDs(r.sim.sats) {
		s := r.sim.sats[sid]
		for _, gid := range s.ConnectedGroundIDs {
			if g := r.sim.grounds[gid]; g != nil && g.HasInternet {
				hops[sid] = 0
				frontier = append(frontier, sid)
				break
			}
		}
	}

	for len(frontier) > 0 {
		current := frontier[0]
		frontier = frontier[1:]
		s := r.sim.sats[current]
		if s == nil {
			continue
		}
		for _, nid := range s.ConnectedSatIDs {
			if _, seen := hops[nid]; seen {
				continue
			}
			hops[nid] = hops[current] + 1
			frontier = append(frontier, nid)
		}
	}

	r.hopsToEgress = hops
	return hops
}

func closestSatellite(sim *Simulation, candidates []string, visited map[string]bool, target model.Vec3) (string, bool) {
	bestID := ""
	bestKm := 0.0
	for _, sid := range candidates {
		if visited[sid] {
			continue
		}
		s := sim.sats[sid]
		if s == nil {
			continue
		}
		if d := s.Position.DistanceTo(target); bestID == "" || d < bestKm {
			bestID, bestKm = sid, d
		}
	}
	return bestID, bestID != ""
}

func firstUnvisited(candidates []string, visited map[string]bool) (string, bool) {
	for _, id := range candidates {
		if !visited[id] {
			return id, true
		}
	}
	return "", false
}

// livePacketIDs returns the IDs of all non-terminal packets in
// ascending order so routing is deterministic.
func (s *Simulation) livePacketIDs() []int64 {
	ids := make([]int64, 0, len(s.packets))
	for id, p := range s.packets {
		if p.Status == model.PacketQueued || p.Status == model.PacketInTransit {
			ids = append(ids, id)
		}
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}
