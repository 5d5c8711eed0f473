package core

import (
	"container/heap"
	"time"

	"github.com/signalsfoundry/leo-relay-sim/model"
)

// NetworkNode is the pathfinding layer's view of a satellite or ground
// station: ID plus cached geometry and the denied-region flag.
type NetworkNode struct {
	ID             string
	Kind           model.NodeKind
	Location       model.LatLon
	Position       model.Vec3
	InDeniedRegion bool
	DeniedRegion   string
}

// NetworkPath is an ordered node sequence with aggregate cost.
type NetworkPath struct {
	NodeIDs             []string
	TotalDelaySeconds   float64
	TotalDistanceKm     float64
	CrossesDeniedRegion bool

	// OffsetSeconds is non-zero for predictive paths: the path was
	// computed against a topology extrapolated this far into the
	// future, not the live one.
	OffsetSeconds float64
}

// PathfindingEngine computes delay-minimising paths over a topology
// snapshot. It is independent of the PacketRouter's greedy hop-by-hop
// decisions: both agree on whether a path exists, but need not agree
// on the route (an accepted divergence, not a bug).
type PathfindingEngine struct{}

// graphSnapshot is an immutable search graph. Edges referencing nodes
// missing from the node map are pruned lazily during construction.
type graphSnapshot struct {
	nodes map[string]*NetworkNode
	adj   map[string][]*TopologyEdge
}

func buildSnapshot(
	sats map[string]*model.Satellite,
	grounds map[string]*model.GroundStation,
	edges map[string]*TopologyEdge,
	oracle *GeofenceOracle,
) *graphSnapshot {
	snap := &graphSnapshot{
		nodes: make(map[string]*NetworkNode, len(sats)+len(grounds)),
		adj:   make(map[string][]*TopologyEdge),
	}

	for id, sat := range sats {
		ll := ECEFToLatLon(sat.Position)
		node := &NetworkNode{ID: id, Kind: model.NodeSatellite, Location: ll, Position: sat.Position}
		if oracle != nil {
			node.InDeniedRegion, node.DeniedRegion = oracle.PointInRegion(ll)
		}
		snap.nodes[id] = node
	}
	for id, g := range grounds {
		node := &NetworkNode{ID: id, Kind: model.NodeGroundStation, Location: g.Location, Position: g.Position}
		if oracle != nil {
			node.InDeniedRegion, node.DeniedRegion = oracle.PointInRegion(g.Location)
		}
		snap.nodes[id] = node
	}

	for _, e := range edges {
		// Prune dangling edges: both endpoints must exist.
		if snap.nodes[e.NodeA] == nil || snap.nodes[e.NodeB] == nil {
			continue
		}
		snap.adj[e.NodeA] = append(snap.adj[e.NodeA], e)
		snap.adj[e.NodeB] = append(snap.adj[e.NodeB], e)
	}

	return snap
}

// shortestPath is Dijkstra over propagation delay. With avoidDenied,
// edges crossing a no-transmission region are excluded from the search
// graph entirely; without it they are searchable and the resulting
// path is flagged.
func (PathfindingEngine) shortestPath(snap *graphSnapshot, srcID, dstID string, avoidDenied bool) *NetworkPath {
	if snap.nodes[srcID] == nil || snap.nodes[dstID] == nil {
		return nil
	}

	dist := map[string]float64{srcID: 0}
	prev := make(map[string]string)
	done := make(map[string]bool)

	pq := &pathQueue{}
	heap.Init(pq)
	heap.Push(pq, pathItem{nodeID: srcID, delay: 0})

	for pq.Len() > 0 {
		item := heap.Pop(pq).(pathItem)
		if done[item.nodeID] {
			continue
		}
		done[item.nodeID] = true
		if item.nodeID == dstID {
			break
		}

		for _, e := range snap.adj[item.nodeID] {
			if !e.Active {
				if avoidDenied || e.DeniedRegion == "" {
					continue
				}
				// Denied-crossing edge searchable only when the caller
				// opted out of avoidance.
			}
			next := e.Other(item.nodeID)
			if done[next] {
				continue
			}
			alt := dist[item.nodeID] + e.DelaySeconds
			if cur, seen := dist[next]; !seen || alt < cur {
				dist[next] = alt
				prev[next] = item.nodeID
				heap.Push(pq, pathItem{nodeID: next, delay: alt})
			}
		}
	}

	if !done[dstID] {
		return nil
	}

	// Reconstruct and aggregate.
	var ids []string
	for node := dstID; ; node = prev[node] {
		ids = append(ids, node)
		if node == srcID {
			break
		}
	}
	for i, j := 0, len(ids)-1; i < j; i, j = i+1, j-1 {
		ids[i], ids[j] = ids[j], ids[i]
	}

	path := &NetworkPath{NodeIDs: ids, TotalDelaySeconds: dist[dstID]}
	for i := 0; i+1 < len(ids); i++ {
		if e := findEdge(snap, ids[i], ids[i+1]); e != nil {
			path.TotalDistanceKm += e.DistanceKm
			if e.DeniedRegion != "" {
				path.CrossesDeniedRegion = true
			}
		}
	}
	return path
}

func findEdge(snap *graphSnapshot, a, b string) *TopologyEdge {
	want := EdgeID(a, b)
	for _, e := range snap.adj[a] {
		if e.ID == want {
			return e
		}
	}
	return nil
}

// pathItem / pathQueue implement the Dijkstra priority queue.
type pathItem struct {
	nodeID string
	delay  float64
}

type pathQueue []pathItem

func (q pathQueue) Len() int            { return len(q) }
func (q pathQueue) Less(i, j int) bool  { return q[i].delay < q[j].delay }
func (q pathQueue) Swap(i, j int)       { q[i], q[j] = q[j], q[i] }
func (q *pathQueue) Push(x interface{}) { *q = append(*q, x.(pathItem)) }
func (q *pathQueue) Pop() interface{} {
	old := *q
	n := len(old)
	item := old[n-1]
	*q = old[:n-1]
	return item
}

//
// ---------- Simulation surface ----------
//

// FindShortestPath computes a delay-minimising path between two node
// IDs over the current topology snapshot. Returns nil when either node
// is unknown or no path exists.
func (s *Simulation) FindShortestPath(srcID, dstID string, avoidDeniedRegions bool) *NetworkPath {
	s.mu.RLock()
	defer s.mu.RUnlock()

	snap := buildSnapshot(s.sats, s.grounds, s.edges, s.oracle)
	var engine PathfindingEngine
	return engine.shortestPath(snap, srcID, dstID, avoidDeniedRegions)
}

// CalculatePredictivePaths recomputes the shortest path against
// topologies extrapolated by the given offsets (seconds into the
// future), without mutating live state. Offsets that yield no path
// produce no entry.
func (s *Simulation) CalculatePredictivePaths(srcID, dstID string, offsetsSeconds []float64) []*NetworkPath {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var engine PathfindingEngine
	var out []*NetworkPath

	for _, offset := range offsetsSeconds {
		// Clone both node sets: the topology pass rewrites connection
		// lists, and live state must not move.
		future := make(map[string]*model.Satellite, len(s.sats))
		for id, sat := range s.sats {
			clone := copySatellite(sat)
			s.motion[id].Propagate(s.simTime.Add(time.Duration(offset*float64(time.Second))), offset, &clone)
			future[id] = &clone
		}
		futureGrounds := make(map[string]*model.GroundStation, len(s.grounds))
		for id, g := range s.grounds {
			clone := copyGroundStation(g)
			futureGrounds[id] = &clone
		}

		builder := NewTopologyBuilder(s.oracle)
		edges, _, _ := builder.Rebuild(future, futureGrounds, nil)

		snap := buildSnapshot(future, futureGrounds, edges, s.oracle)
		if p := engine.shortestPath(snap, srcID, dstID, true); p != nil {
			p.OffsetSeconds = offset
			out = append(out, p)
		}
	}
	return out
}
