package core

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/signalsfoundry/leo-relay-sim/internal/logging"
	"github.com/signalsfoundry/leo-relay-sim/model"
)

var (
	ErrUnknownNode   = errors.New("unknown node")
	ErrDuplicateNode = errors.New("node already exists")
	ErrBadInput      = errors.New("invalid input")
)

// trafficDecaySeconds is the time constant for the exponential decay
// of ground-station traffic accumulators.
const trafficDecaySeconds = 10.0

// MetricsRecorder receives simulation-level measurements. The concrete
// Prometheus collector lives in internal/observability; a nil recorder
// disables metrics.
type MetricsRecorder interface {
	ObserveTickDuration(seconds float64)
	SetNetworkCounts(satellites, groundStations, activeEdges, livePackets int)
	PacketCreated()
	PacketRouted()
	PacketDelivered()
	PacketDropped(reason string)
}

// Simulation is the authoritative owner of all mutable constellation
// state. Every component advances under one external Tick call, in
// fixed order: propagate, rebuild topology, route packets. Mutation is
// confined to the tick (and the explicit registry setters); external
// callers get copies under a read lock, so concurrent readers are safe
// between ticks. A tick always runs to completion; there is no
// cancellation.
type Simulation struct {
	mu sync.RWMutex

	sats    map[string]*model.Satellite
	grounds map[string]*model.GroundStation
	motion  map[string]MotionModel

	edges   map[string]*TopologyEdge
	packets map[int64]*model.DataPacket

	oracle *GeofenceOracle
	topo   *TopologyBuilder
	router *PacketRouter
	subs   listeners

	traffic *TrafficGenerator

	nextPacketID int64
	simTime      time.Time
	elapsed      float64 // simulated seconds since start

	log     logging.Logger
	metrics MetricsRecorder
	tracer  trace.Tracer
}

// Option configures a Simulation.
type Option func(*Simulation)

// WithLogger injects a structured logger. Defaults to a no-op logger.
func WithLogger(log logging.Logger) Option {
	return func(s *Simulation) { s.log = log }
}

// WithMetrics injects a metrics recorder.
func WithMetrics(m MetricsRecorder) Option {
	return func(s *Simulation) { s.metrics = m }
}

// WithDeniedRegions installs the geofence oracle's region set.
func WithDeniedRegions(oracle *GeofenceOracle) Option {
	return func(s *Simulation) { s.oracle = oracle }
}

// WithTrafficGenerator enables background random traffic.
func WithTrafficGenerator(tg *TrafficGenerator) Option {
	return func(s *Simulation) { s.traffic = tg }
}

// WithStartTime sets the initial simulation time (used by SGP4-driven
// satellites). Defaults to the zero time plus nothing; hosts that mix
// in TLE satellites should set a real epoch.
func WithStartTime(t time.Time) Option {
	return func(s *Simulation) { s.simTime = t }
}

// NewSimulation constructs an empty simulation.
func NewSimulation(opts ...Option) *Simulation {
	s := &Simulation{
		sats:    make(map[string]*model.Satellite),
		grounds: make(map[string]*model.GroundStation),
		motion:  make(map[string]MotionModel),
		edges:   make(map[string]*TopologyEdge),
		packets: make(map[int64]*model.DataPacket),
		log:     logging.Noop(),
		tracer:  otel.Tracer("leo-relay-sim/core"),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.oracle == nil {
		s.oracle, _ = NewGeofenceOracle(nil)
	}
	s.topo = NewTopologyBuilder(s.oracle)
	s.router = newPacketRouter(s)
	return s
}

//
// ---------- Population (construction-time) ----------
//

// AddSatellite registers a satellite. A nil motion model defaults to
// the Keplerian propagator. Satellites default to operational.
func (s *Simulation) AddSatellite(sat *model.Satellite, motion MotionModel) error {
	if sat == nil || sat.ID == "" {
		return fmt.Errorf("%w: nil or unnamed satellite", ErrBadInput)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.sats[sat.ID]; exists {
		return fmt.Errorf("%w: satellite %q", ErrDuplicateNode, sat.ID)
	}
	if _, exists := s.grounds[sat.ID]; exists {
		return fmt.Errorf("%w: %q is a ground station", ErrDuplicateNode, sat.ID)
	}
	if sat.Status == "" {
		sat.Status = model.StatusOperational
	}
	sat.Elements.MeanAnomalyDeg = wrapDegrees(sat.Elements.MeanAnomalyDeg)
	if motion == nil {
		motion = KeplerianMotionModel{}
	}

	// Establish the initial Cartesian state.
	motion.Propagate(s.simTime, 0, sat)

	s.sats[sat.ID] = sat
	s.motion[sat.ID] = motion
	return nil
}

// AddGroundStation registers a station; its ECEF position is derived
// from the geodetic location once, at registration.
func (s *Simulation) AddGroundStation(g *model.GroundStation) error {
	if g == nil || g.ID == "" {
		return fmt.Errorf("%w: nil or unnamed ground station", ErrBadInput)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.grounds[g.ID]; exists {
		return fmt.Errorf("%w: ground station %q", ErrDuplicateNode, g.ID)
	}
	if _, exists := s.sats[g.ID]; exists {
		return fmt.Errorf("%w: %q is a satellite", ErrDuplicateNode, g.ID)
	}
	if g.Status == "" {
		g.Status = model.StatusOperational
	}
	g.Position = LatLonToECEF(g.Location, 0)
	s.grounds[g.ID] = g
	return nil
}

// Subscribe registers a listener for simulation events. Listeners are
// owned by this instance; there is no global registry.
func (s *Simulation) Subscribe(l EventListener) {
	if l == nil {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.subs = append(s.subs, l)
}

//
// ---------- Tick ----------
//

// Tick advances the whole simulation by deltaSeconds: orbital
// propagation, topology rebuild, traffic decay/injection, packet
// routing. Phases run in that fixed order; no packet is ever routed
// against a half-updated topology.
func (s *Simulation) Tick(deltaSeconds float64) {
	if deltaSeconds < 0 {
		return
	}
	start := time.Now()

	ctx, span := s.tracer.Start(context.Background(), "sim.tick",
		trace.WithAttributes(attribute.Float64("dt_seconds", deltaSeconds)))
	defer span.End()

	s.mu.Lock()
	defer s.mu.Unlock()

	s.simTime = s.simTime.Add(time.Duration(deltaSeconds * float64(time.Second)))
	s.elapsed += deltaSeconds

	s.phase(ctx, "propagate", func() {
		for _, sid := range sortedSatIDs(s.sats) {
			sat := s.sats[sid]
			s.motion[sid].Propagate(s.simTime, deltaSeconds, sat)
		}
	})

	s.phase(ctx, "topology", func() {
		next, added, removed := s.topo.Rebuild(s.sats, s.grounds, s.edges)
		s.edges = next
		for _, e := range added {
			s.subs.connectionAdded(*e)
		}
		for _, e := range removed {
			s.subs.connectionRemoved(*e)
		}
	})

	s.phase(ctx, "traffic", func() {
		s.decayTraffic(deltaSeconds)
		if s.traffic != nil {
			s.traffic.Generate(s, deltaSeconds)
		}
	})

	s.phase(ctx, "route", func() {
		s.router.Advance(deltaSeconds)
	})

	if s.metrics != nil {
		s.metrics.ObserveTickDuration(time.Since(start).Seconds())
		s.metrics.SetNetworkCounts(len(s.sats), len(s.grounds), s.activeEdgeCount(), len(s.livePacketIDs()))
	}
}

func (s *Simulation) phase(ctx context.Context, name string, fn func()) {
	_, span := s.tracer.Start(ctx, "sim.tick."+name)
	fn()
	span.End()
}

func (s *Simulation) activeEdgeCount() int {
	n := 0
	for _, e := range s.edges {
		if e.Active {
			n++
		}
	}
	return n
}

// decayTraffic bleeds the per-station accumulators toward zero.
func (s *Simulation) decayTraffic(dt float64) {
	decay := math.Exp(-dt / trafficDecaySeconds)
	for _, g := range s.grounds {
		g.IncomingMbps *= decay
		g.OutgoingMbps *= decay
	}
}

//
// ---------- Packets ----------
//

// CreatePacket validates the endpoints and injects a packet at the
// source node's queue, then immediately attempts one routing step.
// Returns nil for invalid source or destination (a programming error
// for the caller to log, distinct from a dropped packet).
func (s *Simulation) CreatePacket(source, dest model.NodeRef, sizeKB float64, priority int) *model.DataPacket {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.createPacketLocked(source, dest, sizeKB, priority)
}

func (s *Simulation) createPacketLocked(source, dest model.NodeRef, sizeKB float64, priority int) *model.DataPacket {
	entryID, ok := s.resolveSource(source)
	if !ok {
		s.log.Warn(context.Background(), "createPacket: invalid source",
			logging.String("kind", string(source.Kind)), logging.String("id", source.ID))
		return nil
	}
	if !s.validDestination(dest) {
		s.log.Warn(context.Background(), "createPacket: invalid destination",
			logging.String("kind", string(dest.Kind)), logging.String("id", dest.ID))
		return nil
	}
	if sizeKB <= 0 {
		return nil
	}

	s.nextPacketID++
	p := &model.DataPacket{
		ID:            s.nextPacketID,
		Source:        source,
		Destination:   dest,
		SizeKB:        sizeKB,
		Priority:      priority,
		CreatedAt:     s.elapsed,
		Status:        model.PacketQueued,
		CurrentNodeID: entryID,
		Path:          []string{entryID},
	}
	s.packets[p.ID] = p
	s.pushQueue(entryID, p.ID)

	if s.metrics != nil {
		s.metrics.PacketCreated()
	}
	s.subs.packetCreated(*p)

	s.router.routeNewPacket(p)
	return p
}

// resolveSource maps a source descriptor to the node whose queue first
// holds the packet. An internet source names its ingress ground
// station, which must have internet connectivity.
func (s *Simulation) resolveSource(src model.NodeRef) (string, bool) {
	switch src.Kind {
	case model.NodeSatellite:
		_, ok := s.sats[src.ID]
		return src.ID, ok
	case model.NodeGroundStation:
		_, ok := s.grounds[src.ID]
		return src.ID, ok
	case model.NodeInternet:
		g, ok := s.grounds[src.ID]
		return src.ID, ok && g.HasInternet
	default:
		return "", false
	}
}

func (s *Simulation) validDestination(dest model.NodeRef) bool {
	switch dest.Kind {
	case model.NodeSatellite:
		_, ok := s.sats[dest.ID]
		return ok
	case model.NodeGroundStation:
		_, ok := s.grounds[dest.ID]
		return ok
	case model.NodeInternet:
		return true
	default:
		return false
	}
}

// SweepTerminalPackets removes delivered and dropped packets from the
// packet table. Terminal packets stay queryable by ID until swept;
// nothing removes them implicitly.
func (s *Simulation) SweepTerminalPackets() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	removed := 0
	for id, p := range s.packets {
		if p.Status == model.PacketDelivered || p.Status == model.PacketDropped {
			delete(s.packets, id)
			removed++
		}
	}
	return removed
}

//
// ---------- Queue and bandwidth helpers (router-facing) ----------
//

// queueFor returns the FIFO queue backing the given node, or nil for
// unknown nodes.
func (s *Simulation) queueFor(nodeID string) *[]int64 {
	if sat, ok := s.sats[nodeID]; ok {
		return &sat.QueueIDs
	}
	if g, ok := s.grounds[nodeID]; ok {
		return &g.QueueIDs
	}
	return nil
}

func (s *Simulation) pushQueue(nodeID string, packetID int64) {
	if q := s.queueFor(nodeID); q != nil {
		*q = append(*q, packetID)
	}
}

func (s *Simulation) removeFromQueue(nodeID string, packetID int64) {
	q := s.queueFor(nodeID)
	if q == nil {
		return
	}
	for i, id := range *q {
		if id == packetID {
			*q = append((*q)[:i], (*q)[i+1:]...)
			return
		}
	}
}

// nodeBandwidthMbps is the node's aggregate bandwidth used by the
// transmission-time gate.
func (s *Simulation) nodeBandwidthMbps(nodeID string) float64 {
	if sat, ok := s.sats[nodeID]; ok {
		return model.SpecFor(sat.Class).BandwidthMbps
	}
	if g, ok := s.grounds[nodeID]; ok {
		return g.BandwidthMbps
	}
	return 0
}

// recordTraffic updates ground-station accumulators for one hop and
// notifies listeners. The size is folded in as an instantaneous Mbps
// contribution that the decay phase bleeds off.
func (s *Simulation) recordTraffic(fromID, toID string, sizeKB float64) {
	mb := sizeKB * 8 / 1000
	if g, ok := s.grounds[fromID]; ok {
		g.OutgoingMbps += mb
		s.subs.trafficAdded(g.ID, 0, mb)
	}
	if g, ok := s.grounds[toID]; ok {
		g.IncomingMbps += mb
		s.subs.trafficAdded(g.ID, mb, 0)
	}
	if s.metrics != nil {
		s.metrics.PacketRouted()
	}
}

//
// ---------- Read-only queries ----------
//

// Satellite returns a copy of the satellite, or false if unknown.
func (s *Simulation) Satellite(id string) (model.Satellite, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sat, ok := s.sats[id]
	if !ok {
		return model.Satellite{}, false
	}
	return copySatellite(sat), true
}

// GroundStation returns a copy of the station, or false if unknown.
func (s *Simulation) GroundStation(id string) (model.GroundStation, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	g, ok := s.grounds[id]
	if !ok {
		return model.GroundStation{}, false
	}
	return copyGroundStation(g), true
}

// Packet returns a copy of the packet, or false if unknown. Terminal
// packets remain queryable until swept.
func (s *Simulation) Packet(id int64) (model.DataPacket, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.packets[id]
	if !ok {
		return model.DataPacket{}, false
	}
	return copyPacket(p), true
}

// Satellites returns copies of all satellites, sorted by ID.
func (s *Simulation) Satellites() []model.Satellite {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]model.Satellite, 0, len(s.sats))
	for _, id := range sortedSatIDs(s.sats) {
		out = append(out, copySatellite(s.sats[id]))
	}
	return out
}

// GroundStations returns copies of all stations, sorted by ID.
func (s *Simulation) GroundStations() []model.GroundStation {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]model.GroundStation, 0, len(s.grounds))
	for _, id := range sortedGroundIDs(s.grounds) {
		out = append(out, copyGroundStation(s.grounds[id]))
	}
	return out
}

// Packets returns copies of all packets (live and terminal), sorted by ID.
func (s *Simulation) Packets() []model.DataPacket {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ids := make([]int64, 0, len(s.packets))
	for id := range s.packets {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	out := make([]model.DataPacket, 0, len(ids))
	for _, id := range ids {
		out = append(out, copyPacket(s.packets[id]))
	}
	return out
}

// Edges returns copies of the current tick's edge table, sorted by ID,
// including inactive (geofenced) edges for visualization and audit.
func (s *Simulation) Edges() []TopologyEdge {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ids := make([]string, 0, len(s.edges))
	for id := range s.edges {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	out := make([]TopologyEdge, 0, len(ids))
	for _, id := range ids {
		out = append(out, *s.edges[id])
	}
	return out
}

// ElapsedSeconds returns simulated seconds since the start.
func (s *Simulation) ElapsedSeconds() float64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.elapsed
}

// DeniedRegions exposes the geofence oracle's region set.
func (s *Simulation) DeniedRegions() []model.Region {
	return s.oracle.Regions()
}

//
// ---------- Registry mutators ----------
//

// SetGroundStationStatus updates a station's status; false if unknown.
func (s *Simulation) SetGroundStationStatus(id string, status model.NodeStatus) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	g, ok := s.grounds[id]
	if !ok {
		return false
	}
	g.Status = status
	s.subs.statusChanged(model.NodeGroundStation, id, status)
	return true
}

// SetGroundStationBandwidth updates a station's bandwidth; false if unknown.
func (s *Simulation) SetGroundStationBandwidth(id string, mbps float64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	g, ok := s.grounds[id]
	if !ok || mbps < 0 {
		return false
	}
	g.BandwidthMbps = mbps
	s.subs.bandwidthChanged(model.NodeGroundStation, id, mbps)
	return true
}

// SetGroundStationInternet toggles a station's internet uplink; false
// if unknown.
func (s *Simulation) SetGroundStationInternet(id string, hasInternet bool) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	g, ok := s.grounds[id]
	if !ok {
		return false
	}
	g.HasInternet = hasInternet
	return true
}

// SetSatelliteStatus updates a satellite's status; false if unknown.
func (s *Simulation) SetSatelliteStatus(id string, status model.NodeStatus) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	sat, ok := s.sats[id]
	if !ok {
		return false
	}
	sat.Status = status
	s.subs.statusChanged(model.NodeSatellite, id, status)
	return true
}

//
// ---------- Copy helpers ----------
//

func copySatellite(sat *model.Satellite) model.Satellite {
	out := *sat
	out.QueueIDs = append([]int64(nil), sat.QueueIDs...)
	out.ConnectedSatIDs = append([]string(nil), sat.ConnectedSatIDs...)
	out.ConnectedGroundIDs = append([]string(nil), sat.ConnectedGroundIDs...)
	return out
}

func copyGroundStation(g *model.GroundStation) model.GroundStation {
	out := *g
	out.QueueIDs = append([]int64(nil), g.QueueIDs...)
	out.ConnectedSatIDs = append([]string(nil), g.ConnectedSatIDs...)
	return out
}

func copyPacket(p *model.DataPacket) model.DataPacket {
	out := *p
	out.Path = append([]string(nil), p.Path...)
	if p.Source.Location != nil {
		ll := *p.Source.Location
		out.Source.Location = &ll
	}
	if p.Destination.Location != nil {
		ll := *p.Destination.Location
		out.Destination.Location = &ll
	}
	return out
}
