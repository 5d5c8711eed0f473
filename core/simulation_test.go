package core

import (
	"errors"
	"sync"
	"testing"

	"github.com/signalsfoundry/leo-relay-sim/model"
)

// capturingListener records event callbacks for assertions.
type capturingListener struct {
	NopListener

	created   []int64
	delivered []int64
	dropped   []model.DropReason
	linksUp   []string
	linksDown []string
	statuses  []model.NodeStatus
}

func (c *capturingListener) PacketCreated(p model.DataPacket) { c.created = append(c.created, p.ID) }
func (c *capturingListener) PacketDelivered(p model.DataPacket) {
	c.delivered = append(c.delivered, p.ID)
}
func (c *capturingListener) PacketDropped(_ model.DataPacket, reason model.DropReason) {
	c.dropped = append(c.dropped, reason)
}
func (c *capturingListener) ConnectionAdded(e TopologyEdge)   { c.linksUp = append(c.linksUp, e.ID) }
func (c *capturingListener) ConnectionRemoved(e TopologyEdge) { c.linksDown = append(c.linksDown, e.ID) }
func (c *capturingListener) StatusChanged(_ model.NodeKind, _ string, st model.NodeStatus) {
	c.statuses = append(c.statuses, st)
}

func TestAddNodeValidation(t *testing.T) {
	sim := NewSimulation()
	addGround(t, sim, "shared", model.LatLon{LatDeg: 0, LonDeg: 0}, false)

	if err := sim.AddSatellite(nil, nil); !errors.Is(err, ErrBadInput) {
		t.Fatalf("nil satellite: err = %v, want ErrBadInput", err)
	}
	if err := sim.AddSatellite(&model.Satellite{}, nil); !errors.Is(err, ErrBadInput) {
		t.Fatalf("unnamed satellite: err = %v, want ErrBadInput", err)
	}

	// IDs are unique across both node kinds.
	err := sim.AddSatellite(&model.Satellite{ID: "shared"}, nil)
	if !errors.Is(err, ErrDuplicateNode) {
		t.Fatalf("satellite colliding with ground station: err = %v, want ErrDuplicateNode", err)
	}

	addPinnedSat(t, sim, "sat", model.ClassV10, model.LatLon{})
	if err := sim.AddSatellite(&model.Satellite{ID: "sat"}, nil); !errors.Is(err, ErrDuplicateNode) {
		t.Fatalf("duplicate satellite: err = %v, want ErrDuplicateNode", err)
	}
	if err := sim.AddGroundStation(&model.GroundStation{ID: "sat"}); !errors.Is(err, ErrDuplicateNode) {
		t.Fatalf("ground station colliding with satellite: err = %v, want ErrDuplicateNode", err)
	}
}

func TestAddSatelliteDefaults(t *testing.T) {
	sim := NewSimulation()
	sat := &model.Satellite{
		ID:       "kepler",
		Class:    model.ClassV10,
		Elements: circularElements(550, 53, 0, 720.5),
	}
	if err := sim.AddSatellite(sat, nil); err != nil {
		t.Fatalf("AddSatellite: %v", err)
	}

	got, _ := sim.Satellite("kepler")
	if got.Status != model.StatusOperational {
		t.Fatalf("default status = %s, want operational", got.Status)
	}
	if got.Elements.MeanAnomalyDeg != 0.5 {
		t.Fatalf("mean anomaly not wrapped: %v", got.Elements.MeanAnomalyDeg)
	}
	if got.Position.Norm() == 0 {
		t.Fatalf("initial position not established")
	}
}

func TestCreatePacketRejectsInvalidEndpoints(t *testing.T) {
	sim := NewSimulation()
	addGround(t, sim, "gs-a", model.LatLon{LatDeg: 0, LonDeg: 0}, false)
	sim.Tick(0)

	if p := sim.CreatePacket(groundRef("ghost"), groundRef("gs-a"), 10, 1); p != nil {
		t.Fatalf("unknown source accepted")
	}
	if p := sim.CreatePacket(groundRef("gs-a"), groundRef("ghost"), 10, 1); p != nil {
		t.Fatalf("unknown destination accepted")
	}
	if p := sim.CreatePacket(groundRef("gs-a"), model.Internet(), 0, 1); p != nil {
		t.Fatalf("zero-size packet accepted")
	}

	// Internet ingress must actually have an uplink.
	src := model.NodeRef{Kind: model.NodeInternet, ID: "gs-a"}
	if p := sim.CreatePacket(src, groundRef("gs-a"), 10, 1); p != nil {
		t.Fatalf("internet source without uplink accepted")
	}
}

func TestTickEmitsConnectionEvents(t *testing.T) {
	sim := NewSimulation()
	rec := &capturingListener{}
	sim.Subscribe(rec)

	addGround(t, sim, "gs-a", model.LatLon{LatDeg: 0, LonDeg: 0}, false)
	addPinnedSat(t, sim, "relay", model.ClassV10, model.LatLon{LatDeg: 0.5, LonDeg: 0.5})

	sim.Tick(0)
	if len(rec.linksUp) != 1 || rec.linksUp[0] != EdgeID("relay", "gs-a") {
		t.Fatalf("linksUp = %v, want [%s]", rec.linksUp, EdgeID("relay", "gs-a"))
	}

	// Taking the satellite offline tears the link down on the next tick.
	if !sim.SetSatelliteStatus("relay", model.StatusOffline) {
		t.Fatalf("SetSatelliteStatus failed for known satellite")
	}
	sim.Tick(1)
	if len(rec.linksDown) != 1 {
		t.Fatalf("linksDown = %v, want one removal", rec.linksDown)
	}
	if len(rec.statuses) != 1 || rec.statuses[0] != model.StatusOffline {
		t.Fatalf("statuses = %v, want [offline]", rec.statuses)
	}
}

func TestPacketLifecycleEvents(t *testing.T) {
	sim := NewSimulation()
	rec := &capturingListener{}
	sim.Subscribe(rec)

	addGround(t, sim, "gs-a", model.LatLon{LatDeg: 0, LonDeg: 0}, false)
	addGround(t, sim, "gs-b", model.LatLon{LatDeg: 1, LonDeg: 1}, false)
	addPinnedSat(t, sim, "relay", model.ClassV10, model.LatLon{LatDeg: 0.5, LonDeg: 0.5})
	sim.Tick(0)

	p := sim.CreatePacket(groundRef("gs-a"), groundRef("gs-b"), 100, 3)
	if len(rec.created) != 1 || rec.created[0] != p.ID {
		t.Fatalf("created events = %v, want [%d]", rec.created, p.ID)
	}

	sim.Tick(1)
	sim.Tick(1)
	if len(rec.delivered) != 1 || rec.delivered[0] != p.ID {
		t.Fatalf("delivered events = %v, want [%d]", rec.delivered, p.ID)
	}
}

func TestRegistrySettersReturnFalseForUnknownIDs(t *testing.T) {
	sim := NewSimulation()
	addGround(t, sim, "gs-a", model.LatLon{LatDeg: 0, LonDeg: 0}, false)

	if sim.SetGroundStationStatus("ghost", model.StatusDegraded) {
		t.Fatalf("SetGroundStationStatus accepted unknown ID")
	}
	if sim.SetGroundStationBandwidth("ghost", 50) {
		t.Fatalf("SetGroundStationBandwidth accepted unknown ID")
	}
	if sim.SetGroundStationInternet("ghost", true) {
		t.Fatalf("SetGroundStationInternet accepted unknown ID")
	}
	if sim.SetSatelliteStatus("ghost", model.StatusOffline) {
		t.Fatalf("SetSatelliteStatus accepted unknown ID")
	}

	if !sim.SetGroundStationBandwidth("gs-a", 50) {
		t.Fatalf("SetGroundStationBandwidth rejected known ID")
	}
	if g, _ := sim.GroundStation("gs-a"); g.BandwidthMbps != 50 {
		t.Fatalf("bandwidth = %v, want 50", g.BandwidthMbps)
	}
	if sim.SetGroundStationBandwidth("gs-a", -1) {
		t.Fatalf("negative bandwidth accepted")
	}
}

func TestSweepTerminalPackets(t *testing.T) {
	sim := NewSimulation()
	addGround(t, sim, "gs-lit", model.LatLon{LatDeg: 0, LonDeg: 0}, true)
	addGround(t, sim, "gs-iso", model.LatLon{LatDeg: 50, LonDeg: 50}, false)
	sim.Tick(0)

	src := model.NodeRef{Kind: model.NodeInternet, ID: "gs-lit"}
	done := sim.CreatePacket(src, model.Internet(), 10, 1) // delivered at ingress
	live := sim.CreatePacket(groundRef("gs-iso"), model.Internet(), 10, 1)

	if removed := sim.SweepTerminalPackets(); removed != 1 {
		t.Fatalf("swept %d packets, want 1", removed)
	}
	if _, ok := sim.Packet(done.ID); ok {
		t.Fatalf("terminal packet still queryable after sweep")
	}
	if _, ok := sim.Packet(live.ID); !ok {
		t.Fatalf("live packet removed by sweep")
	}
}

func TestQueriesReturnCopies(t *testing.T) {
	sim := NewSimulation()
	addGround(t, sim, "gs-a", model.LatLon{LatDeg: 0, LonDeg: 0}, false)
	addPinnedSat(t, sim, "relay", model.ClassV10, model.LatLon{LatDeg: 0.5, LonDeg: 0.5})
	sim.Tick(0)

	sat, _ := sim.Satellite("relay")
	if len(sat.ConnectedGroundIDs) != 1 {
		t.Fatalf("relay ground adjacency = %v", sat.ConnectedGroundIDs)
	}
	sat.ConnectedGroundIDs[0] = "mutated"
	sat.QueueIDs = append(sat.QueueIDs, 99)

	again, _ := sim.Satellite("relay")
	if again.ConnectedGroundIDs[0] != "gs-a" || len(again.QueueIDs) != 0 {
		t.Fatalf("query result aliases internal state: %+v", again)
	}
}

func TestConcurrentReadsDuringTicks(t *testing.T) {
	sim := NewSimulation()
	addGround(t, sim, "gs-a", model.LatLon{LatDeg: 0, LonDeg: 0}, true)
	addGround(t, sim, "gs-b", model.LatLon{LatDeg: 1, LonDeg: 1}, false)
	addPinnedSat(t, sim, "relay", model.ClassV10, model.LatLon{LatDeg: 0.5, LonDeg: 0.5})
	sim.Tick(0)

	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 50; j++ {
				_ = sim.Satellites()
				_ = sim.Edges()
				_, _ = sim.GroundStation("gs-a")
				_ = sim.FindShortestPath("gs-a", "gs-b", true)
			}
		}()
	}
	for j := 0; j < 50; j++ {
		sim.Tick(0.1)
		sim.CreatePacket(groundRef("gs-a"), groundRef("gs-b"), 100, 1)
	}
	wg.Wait()
}

func TestElapsedSecondsAccumulates(t *testing.T) {
	sim := NewSimulation()
	sim.Tick(1.5)
	sim.Tick(0.5)
	sim.Tick(-10) // ignored
	if got := sim.ElapsedSeconds(); got != 2 {
		t.Fatalf("ElapsedSeconds = %v, want 2", got)
	}
}
