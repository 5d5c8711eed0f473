package core

import (
	"fmt"
	"sort"

	"github.com/signalsfoundry/leo-relay-sim/model"
)

const (
	// GroundLinkRangeKm is the fixed satellite–ground connectivity
	// threshold. This deliberately ignores true elevation-angle
	// masking; it is a documented approximation, not a bug.
	GroundLinkRangeKm = 2000.0

	// LightSpeedKmS is the propagation speed used for edge delays.
	LightSpeedKmS = 299792.458
)

// TopologyEdge is one connectivity edge in the central edge table.
// Edges live for a single tick and are rebuilt from scratch on every
// pass; adjacency is by node ID, never by pointer.
type TopologyEdge struct {
	ID            string
	NodeA         string
	NodeB         string
	KindA         model.NodeKind
	KindB         model.NodeKind
	DistanceKm    float64
	DelaySeconds  float64
	BandwidthMbps float64

	// Active is false when the edge's ground track crosses a
	// no-transmission region. Inactive edges are excluded from
	// routing but retained for visualization and audit.
	Active       bool
	DeniedRegion string
}

// Other returns the far endpoint of the edge relative to nodeID.
func (e *TopologyEdge) Other(nodeID string) string {
	if e.NodeA == nodeID {
		return e.NodeB
	}
	return e.NodeA
}

// EdgeID builds the symmetric edge key so A–B and B–A share one entry.
func EdgeID(a, b string) string {
	if b < a {
		a, b = b, a
	}
	return fmt.Sprintf("%s--%s", a, b)
}

// TopologyBuilder recomputes the full edge set for the current tick.
// The pass is O(N²) over satellites and O(N·M) over ground stations,
// which is acceptable at the constellation scales simulated here; the
// contract (positions in, edge table out) allows swapping in a
// spatial index without changing callers.
type TopologyBuilder struct {
	oracle *GeofenceOracle
}

// NewTopologyBuilder builds a topology builder consulting the given
// geofence oracle. A nil oracle disables geofence checks.
func NewTopologyBuilder(oracle *GeofenceOracle) *TopologyBuilder {
	return &TopologyBuilder{oracle: oracle}
}

// Rebuild clears and repopulates every node's connection lists and
// returns the new edge table plus the active edges that appeared and
// disappeared relative to prev.
func (tb *TopologyBuilder) Rebuild(
	sats map[string]*model.Satellite,
	grounds map[string]*model.GroundStation,
	prev map[string]*TopologyEdge,
) (edges map[string]*TopologyEdge, added, removed []*TopologyEdge) {
	edges = make(map[string]*TopologyEdge)

	satIDs := sortedSatIDs(sats)
	groundIDs := sortedGroundIDs(grounds)

	for _, s := range sats {
		s.ConnectedSatIDs = s.ConnectedSatIDs[:0]
		s.ConnectedGroundIDs = s.ConnectedGroundIDs[:0]
	}
	for _, g := range grounds {
		g.ConnectedSatIDs = g.ConnectedSatIDs[:0]
	}

	// Satellite ↔ satellite.
	for i := 0; i < len(satIDs); i++ {
		a := sats[satIDs[i]]
		if a.Status == model.StatusOffline {
			continue
		}
		specA := model.SpecFor(a.Class)
		for j := i + 1; j < len(satIDs); j++ {
			b := sats[satIDs[j]]
			if b.Status == model.StatusOffline {
				continue
			}

			dist := a.Position.DistanceTo(b.Position)

			// A mixed-generation pair is limited by the weaker radio.
			specB := model.SpecFor(b.Class)
			maxRange := specA.MaxRangeKm
			if specB.MaxRangeKm < maxRange {
				maxRange = specB.MaxRangeKm
			}
			if dist > maxRange {
				continue
			}
			if !hasLineOfSight(a.Position, b.Position) {
				continue
			}

			bw := specA.BandwidthMbps
			if specB.BandwidthMbps < bw {
				bw = specB.BandwidthMbps
			}

			edge := tb.newEdge(a.ID, b.ID, model.NodeSatellite, model.NodeSatellite, dist, bw,
				ECEFToLatLon(a.Position), ECEFToLatLon(b.Position))
			edges[edge.ID] = edge

			if edge.Active {
				a.ConnectedSatIDs = append(a.ConnectedSatIDs, b.ID)
				b.ConnectedSatIDs = append(b.ConnectedSatIDs, a.ID)
			}
		}
	}

	// Satellite ↔ ground station.
	for _, sid := range satIDs {
		s := sats[sid]
		if s.Status == model.StatusOffline {
			continue
		}
		spec := model.SpecFor(s.Class)
		for _, gid := range groundIDs {
			g := grounds[gid]
			if g.Status == model.StatusOffline {
				continue
			}

			dist := s.Position.DistanceTo(g.Position)
			if dist >= GroundLinkRangeKm {
				continue
			}

			bw := spec.BandwidthMbps
			if g.BandwidthMbps < bw {
				bw = g.BandwidthMbps
			}

			edge := tb.newEdge(s.ID, g.ID, model.NodeSatellite, model.NodeGroundStation, dist, bw,
				ECEFToLatLon(s.Position), g.Location)
			edges[edge.ID] = edge

			if edge.Active {
				s.ConnectedGroundIDs = append(s.ConnectedGroundIDs, g.ID)
				g.ConnectedSatIDs = append(g.ConnectedSatIDs, s.ID)
			}
		}
	}

	added, removed = diffActiveEdges(prev, edges)
	return edges, added, removed
}

// newEdge fills in delay and runs the geofence check on the edge's
// great-circle ground track.
func (tb *TopologyBuilder) newEdge(a, b string, kindA, kindB model.NodeKind, dist, bw float64, llA, llB model.LatLon) *TopologyEdge {
	edge := &TopologyEdge{
		ID:            EdgeID(a, b),
		NodeA:         a,
		NodeB:         b,
		KindA:         kindA,
		KindB:         kindB,
		DistanceKm:    dist,
		DelaySeconds:  dist / LightSpeedKmS,
		BandwidthMbps: bw,
		Active:        true,
	}
	if tb.oracle != nil {
		if crosses, name := tb.oracle.NoTransmissionCrossing(llA, llB); crosses {
			edge.Active = false
			edge.DeniedRegion = name
		}
	}
	return edge
}

// diffActiveEdges compares the active edge sets of two ticks.
func diffActiveEdges(prev, next map[string]*TopologyEdge) (added, removed []*TopologyEdge) {
	for id, e := range next {
		if !e.Active {
			continue
		}
		if p, ok := prev[id]; !ok || !p.Active {
			added = append(added, e)
		}
	}
	for id, e := range prev {
		if !e.Active {
			continue
		}
		if n, ok := next[id]; !ok || !n.Active {
			removed = append(removed, e)
		}
	}
	sort.Slice(added, func(i, j int) bool { return added[i].ID < added[j].ID })
	sort.Slice(removed, func(i, j int) bool { return removed[i].ID < removed[j].ID })
	return added, removed
}

func sortedSatIDs(sats map[string]*model.Satellite) []string {
	ids := make([]string, 0, len(sats))
	for id := range sats {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

func sortedGroundIDs(grounds map[string]*model.GroundStation) []string {
	ids := make([]string, 0, len(grounds))
	for id := range grounds {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}
