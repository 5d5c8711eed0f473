package core

import (
	"testing"
	"time"

	"github.com/signalsfoundry/leo-relay-sim/model"
)

// pinnedMotion keeps a hand-set position; router tests need controlled
// geometry, not orbital mechanics.
type pinnedMotion struct{}

func (pinnedMotion) Propagate(time.Time, float64, *model.Satellite) {}

func addPinnedSat(t *testing.T, sim *Simulation, id string, class model.SatelliteClass, ll model.LatLon) {
	t.Helper()
	sat := &model.Satellite{ID: id, Class: class, Position: LatLonToECEF(ll, 550)}
	if err := sim.AddSatellite(sat, pinnedMotion{}); err != nil {
		t.Fatalf("AddSatellite %s: %v", id, err)
	}
}

func addGround(t *testing.T, sim *Simulation, id string, ll model.LatLon, internet bool) {
	t.Helper()
	g := &model.GroundStation{ID: id, Location: ll, BandwidthMbps: 100, HasInternet: internet}
	if err := sim.AddGroundStation(g); err != nil {
		t.Fatalf("AddGroundStation %s: %v", id, err)
	}
}

func groundRef(id string) model.NodeRef {
	return model.NodeRef{Kind: model.NodeGroundStation, ID: id}
}

func TestRouterDeliversGroundToGround(t *testing.T) {
	sim := NewSimulation()
	addGround(t, sim, "gs-a", model.LatLon{LatDeg: 0, LonDeg: 0}, false)
	addGround(t, sim, "gs-b", model.LatLon{LatDeg: 1, LonDeg: 1}, false)
	addPinnedSat(t, sim, "relay", model.ClassV10, model.LatLon{LatDeg: 0.5, LonDeg: 0.5})

	sim.Tick(0) // establish topology

	p := sim.CreatePacket(groundRef("gs-a"), groundRef("gs-b"), 100, 3)
	if p == nil {
		t.Fatalf("CreatePacket returned nil")
	}
	if got, _ := sim.Packet(p.ID); got.Status != model.PacketInTransit {
		t.Fatalf("new packet status = %s, want in-transit after first hop", got.Status)
	}

	sim.Tick(1)
	sim.Tick(1)

	got, ok := sim.Packet(p.ID)
	if !ok || got.Status != model.PacketDelivered {
		t.Fatalf("packet status = %s, want delivered", got.Status)
	}
	wantPath := []string{"gs-a", "relay", "gs-b"}
	if len(got.Path) != len(wantPath) {
		t.Fatalf("path = %v, want %v", got.Path, wantPath)
	}
	for i := range wantPath {
		if got.Path[i] != wantPath[i] {
			t.Fatalf("path = %v, want %v", got.Path, wantPath)
		}
	}
	if got.LatencySeconds <= 0 {
		t.Fatalf("delivered packet has zero latency")
	}
}

func TestRouterDropsOnTimeout(t *testing.T) {
	sim := NewSimulation()
	// No satellite coverage anywhere near this station.
	addGround(t, sim, "gs-iso", model.LatLon{LatDeg: 50, LonDeg: 50}, false)

	sim.Tick(0)

	p := sim.CreatePacket(groundRef("gs-iso"), model.Internet(), 100, 1)
	if p == nil {
		t.Fatalf("CreatePacket returned nil")
	}
	if got, _ := sim.Packet(p.ID); got.Status != model.PacketQueued {
		t.Fatalf("unroutable packet status = %s, want queued", got.Status)
	}

	sim.Tick(PacketTimeoutSeconds + 1)

	got, _ := sim.Packet(p.ID)
	if got.Status != model.PacketDropped {
		t.Fatalf("packet status = %s, want dropped", got.Status)
	}
	if got.DropReason != model.DropTimeout {
		t.Fatalf("drop reason = %s, want %s", got.DropReason, model.DropTimeout)
	}
	if got.CurrentNodeID != "" {
		t.Fatalf("terminal packet still holds a node: %q", got.CurrentNodeID)
	}

	// The queue must not retain the dropped packet.
	g, _ := sim.GroundStation("gs-iso")
	if len(g.QueueIDs) != 0 {
		t.Fatalf("dropped packet left in queue: %v", g.QueueIDs)
	}
}

func TestRouterDropsWhenNoEgressExists(t *testing.T) {
	sim := NewSimulation()
	addGround(t, sim, "gs-a", model.LatLon{LatDeg: 0, LonDeg: 0}, false)
	addPinnedSat(t, sim, "relay", model.ClassV10, model.LatLon{LatDeg: 0.5, LonDeg: 0.5})

	sim.Tick(0)

	// Internet-bound, but no station anywhere has an uplink.
	p := sim.CreatePacket(groundRef("gs-a"), model.Internet(), 100, 1)
	if p == nil {
		t.Fatalf("CreatePacket returned nil")
	}

	sim.Tick(1)

	got, _ := sim.Packet(p.ID)
	if got.Status != model.PacketDropped || got.DropReason != model.DropNoRoute {
		t.Fatalf("status/reason = %s/%s, want dropped/no-route", got.Status, got.DropReason)
	}
}

func TestRouterPrefersInternetEgress(t *testing.T) {
	sim := NewSimulation()
	addGround(t, sim, "gs-src", model.LatLon{LatDeg: 0, LonDeg: 0}, false)
	addGround(t, sim, "gs-dark", model.LatLon{LatDeg: 1, LonDeg: 0}, false)
	addGround(t, sim, "gs-lit", model.LatLon{LatDeg: 0, LonDeg: 1}, true)
	addPinnedSat(t, sim, "relay", model.ClassV10, model.LatLon{LatDeg: 0.5, LonDeg: 0.5})

	sim.Tick(0)

	p := sim.CreatePacket(groundRef("gs-src"), model.Internet(), 100, 1)
	if p == nil {
		t.Fatalf("CreatePacket returned nil")
	}

	sim.Tick(1)
	sim.Tick(1)

	got, _ := sim.Packet(p.ID)
	if got.Status != model.PacketDelivered {
		t.Fatalf("status = %s, want delivered", got.Status)
	}
	want := []string{"gs-src", "relay", "gs-lit", model.InternetID}
	if len(got.Path) != len(want) {
		t.Fatalf("path = %v, want %v", got.Path, want)
	}
	for i := range want {
		if got.Path[i] != want[i] {
			t.Fatalf("path = %v, want %v", got.Path, want)
		}
	}
}

func TestRouterInternetSourceDeliversAtIngress(t *testing.T) {
	sim := NewSimulation()
	addGround(t, sim, "gs-lit", model.LatLon{LatDeg: 0, LonDeg: 0}, true)

	sim.Tick(0)

	// Internet to internet degenerates to delivery at the ingress.
	src := model.NodeRef{Kind: model.NodeInternet, ID: "gs-lit"}
	p := sim.CreatePacket(src, model.Internet(), 10, 1)
	if p == nil {
		t.Fatalf("CreatePacket returned nil")
	}
	got, _ := sim.Packet(p.ID)
	if got.Status != model.PacketDelivered {
		t.Fatalf("status = %s, want delivered", got.Status)
	}
}

func TestRouterFIFOHeadBlocksQueue(t *testing.T) {
	sim := NewSimulation()
	addGround(t, sim, "gs-a", model.LatLon{LatDeg: 0, LonDeg: 0}, false)
	addGround(t, sim, "gs-b", model.LatLon{LatDeg: 1, LonDeg: 1}, false)
	addPinnedSat(t, sim, "relay", model.ClassV10, model.LatLon{LatDeg: 0.5, LonDeg: 0.5})

	sim.Tick(0)

	// Head packet needs 4.5 s of transmission time at the relay
	// (22500 KB over 40 Mbps); the second is tiny and individually
	// ready almost immediately, but must wait its turn. Priority is
	// metadata only and does not promote it past the head.
	slow := sim.CreatePacket(groundRef("gs-a"), groundRef("gs-b"), 22500, 5)
	fast := sim.CreatePacket(groundRef("gs-a"), groundRef("gs-b"), 100, 1)
	if slow == nil || fast == nil {
		t.Fatalf("CreatePacket returned nil")
	}

	sat, _ := sim.Satellite("relay")
	if len(sat.QueueIDs) != 2 || sat.QueueIDs[0] != slow.ID {
		t.Fatalf("relay queue = %v, want [%d %d]", sat.QueueIDs, slow.ID, fast.ID)
	}

	for i := 0; i < 4; i++ {
		sim.Tick(1)
		got, _ := sim.Packet(fast.ID)
		if got.CurrentNodeID != "relay" {
			t.Fatalf("tick %d: fast packet moved past a blocked head (node %q)", i+1, got.CurrentNodeID)
		}
	}

	// Head clears on the fifth second; both drain in order.
	sim.Tick(1)
	sim.Tick(1)

	gotSlow, _ := sim.Packet(slow.ID)
	gotFast, _ := sim.Packet(fast.ID)
	if gotSlow.Status != model.PacketDelivered || gotFast.Status != model.PacketDelivered {
		t.Fatalf("statuses = %s/%s, want delivered/delivered", gotSlow.Status, gotFast.Status)
	}
}

// Long-haul run: two stations roughly 9,000 km apart with a full shell
// in between, so delivery has to cross the satellite mesh rather than a
// single relay.
func TestRouterDeliversAcrossMesh(t *testing.T) {
	sim := NewSimulation()
	addGround(t, sim, "gs-a", model.LatLon{LatDeg: 0, LonDeg: 0}, false)
	addGround(t, sim, "gs-b", model.LatLon{LatDeg: 0, LonDeg: 81}, false)

	if _, err := BuildShell(sim, ShellConfig{
		IDPrefix:       "sh",
		Class:          model.ClassV20,
		AltitudeKm:     550,
		InclinationDeg: 53,
		Planes:         30,
		SatsPerPlane:   30,
		PhaseOffsetDeg: 12,
	}); err != nil {
		t.Fatalf("BuildShell: %v", err)
	}

	sim.Tick(0)

	// The global search agrees the stations are connected, through
	// several mesh hops.
	path := sim.FindShortestPath("gs-a", "gs-b", true)
	if path == nil {
		t.Fatalf("no path across the shell")
	}
	if len(path.NodeIDs) < 4 {
		t.Fatalf("path %v too short for a 9000 km span", path.NodeIDs)
	}

	p := sim.CreatePacket(groundRef("gs-a"), groundRef("gs-b"), 500, 1)
	if p == nil {
		t.Fatalf("CreatePacket returned nil")
	}
	if got, _ := sim.Packet(p.ID); got.Status != model.PacketInTransit {
		t.Fatalf("new packet status = %s, want in-transit", got.Status)
	}

	ticks := 0
	for ; ticks < 32; ticks++ {
		got, _ := sim.Packet(p.ID)
		if got.Status == model.PacketDelivered {
			break
		}
		if got.Status == model.PacketDropped {
			t.Fatalf("packet dropped (%s) at tick %d, path %v", got.DropReason, ticks, got.Path)
		}
		sim.Tick(1)
	}

	got, _ := sim.Packet(p.ID)
	if got.Status != model.PacketDelivered {
		t.Fatalf("packet not delivered within the timeout: status %s, path %v", got.Status, got.Path)
	}
	if got.LatencySeconds > PacketTimeoutSeconds {
		t.Fatalf("delivered past the timeout: %v s", got.LatencySeconds)
	}
	if got.Path[0] != "gs-a" || got.Path[len(got.Path)-1] != "gs-b" {
		t.Fatalf("path endpoints = %v", got.Path)
	}
	if len(got.Path) < 4 {
		t.Fatalf("path %v never entered the mesh", got.Path)
	}
}

// Internet-bound traffic from a station with no uplink of its own has
// to climb into the mesh and follow the fewest-hops gradient to a
// distant lit station.
func TestRouterMeshEgressToInternet(t *testing.T) {
	sim := NewSimulation()
	addGround(t, sim, "gs-dark", model.LatLon{LatDeg: 0, LonDeg: 0}, false)
	addGround(t, sim, "gs-lit", model.LatLon{LatDeg: 0, LonDeg: 81}, true)

	if _, err := BuildShell(sim, ShellConfig{
		IDPrefix:       "sh",
		Class:          model.ClassV20,
		AltitudeKm:     550,
		InclinationDeg: 53,
		Planes:         30,
		SatsPerPlane:   30,
		PhaseOffsetDeg: 12,
	}); err != nil {
		t.Fatalf("BuildShell: %v", err)
	}

	sim.Tick(0)

	p := sim.CreatePacket(groundRef("gs-dark"), model.Internet(), 500, 1)
	if p == nil {
		t.Fatalf("CreatePacket returned nil")
	}

	for ticks := 0; ticks < 32; ticks++ {
		got, _ := sim.Packet(p.ID)
		if got.Status == model.PacketDelivered {
			break
		}
		if got.Status == model.PacketDropped {
			t.Fatalf("packet dropped (%s) at tick %d, path %v", got.DropReason, ticks, got.Path)
		}
		sim.Tick(1)
	}

	got, _ := sim.Packet(p.ID)
	if got.Status != model.PacketDelivered {
		t.Fatalf("packet not delivered within the timeout: status %s, path %v", got.Status, got.Path)
	}
	if got.Path[len(got.Path)-1] != model.InternetID {
		t.Fatalf("path %v does not end at the internet sink", got.Path)
	}
	if got.Path[len(got.Path)-2] != "gs-lit" {
		t.Fatalf("egress station = %s, want gs-lit", got.Path[len(got.Path)-2])
	}
	if len(got.Path) < 4 {
		t.Fatalf("path %v never crossed the mesh toward the egress", got.Path)
	}
}
