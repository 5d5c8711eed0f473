package core

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"

	goversion "github.com/hashicorp/go-version"

	"github.com/signalsfoundry/leo-relay-sim/model"
)

// ErrSchemaVersion marks a scenario file whose schema_version is
// outside the supported range.
var ErrSchemaVersion = errors.New("unsupported scenario schema version")

// minSchemaVersion is the oldest scenario schema this loader accepts.
const minSchemaVersion = "1.0.0"

// Scenario summarises what was loaded, mainly for logging from main().
type Scenario struct {
	SatelliteIDs []string
	GroundIDs    []string
	RegionNames  []string
}

// ScenarioPayload is the decoded scenario file.
type ScenarioPayload struct {
	SchemaVersion  string              `json:"schema_version"`
	Satellites     []satelliteJSON     `json:"satellites"`
	GroundStations []groundStationJSON `json:"ground_stations"`
	DeniedRegions  []model.Region      `json:"denied_regions"`
	Traffic        *TrafficSettings    `json:"traffic"`
}

type satelliteJSON struct {
	ID       string                `json:"id"`
	Name     string                `json:"name"`
	Class    string                `json:"class"`
	Status   string                `json:"status"` // optional; defaults to operational
	Elements model.OrbitalElements `json:"elements"`

	// Optional TLE lines. When both are present the satellite is
	// propagated with SGP4 instead of the Keplerian model.
	TLE1 string `json:"tle1,omitempty"`
	TLE2 string `json:"tle2,omitempty"`
}

type groundStationJSON struct {
	ID               string       `json:"id"`
	Name             string       `json:"name"`
	Location         model.LatLon `json:"location"`
	CoverageRadiusKm float64      `json:"coverage_radius_km"`
	BandwidthMbps    float64      `json:"bandwidth_mbps"`
	HasInternet      bool         `json:"has_internet"`
	Status           string       `json:"status"`
}

// TrafficSettings configures the background traffic generator.
type TrafficSettings struct {
	PacketsPerSecond float64 `json:"packets_per_second"`
	MinSizeKB        float64 `json:"min_size_kb"`
	MaxSizeKB        float64 `json:"max_size_kb"`
	Seed             int64   `json:"seed"`
}

// ScenarioConfig carries what LoadScenario parsed but could not apply
// directly to the simulation (the traffic generator settings).
type ScenarioConfig struct {
	Summary *Scenario
	Traffic *TrafficSettings
	Regions []model.Region
}

// ParseScenario decodes and validates a scenario without applying it.
// It fails only on JSON/structural/version errors; duplicate IDs are
// surfaced when the scenario is applied.
func ParseScenario(r io.Reader) (*ScenarioPayload, error) {
	var payload ScenarioPayload
	dec := json.NewDecoder(r)
	if err := dec.Decode(&payload); err != nil {
		return nil, fmt.Errorf("scenario: decode failed: %w", err)
	}

	if payload.SchemaVersion == "" {
		return nil, fmt.Errorf("%w: schema_version missing", ErrSchemaVersion)
	}
	v, err := goversion.NewVersion(payload.SchemaVersion)
	if err != nil {
		return nil, fmt.Errorf("%w: %q: %v", ErrSchemaVersion, payload.SchemaVersion, err)
	}
	min := goversion.Must(goversion.NewVersion(minSchemaVersion))
	if v.LessThan(min) {
		return nil, fmt.Errorf("%w: %s < %s", ErrSchemaVersion, payload.SchemaVersion, minSchemaVersion)
	}

	return &payload, nil
}

// LoadScenario reads a JSON scenario from r and populates the
// simulation with satellites and ground stations. Denied regions and
// traffic settings cannot be applied retroactively, so the returned
// config carries them for the caller to install at construction time.
//
// Because the geofence oracle and traffic generator are construction
// options, typical callers ParseScenario first, build the Simulation
// with the regions, then apply the rest:
//
//	payload, _ := core.ParseScenario(f)
//	oracle, _ := core.NewGeofenceOracle(payload.DeniedRegions)
//	sim := core.NewSimulation(core.WithDeniedRegions(oracle))
//	summary, _ := core.ApplyScenario(sim, payload)
func LoadScenario(sim *Simulation, r io.Reader) (*ScenarioConfig, error) {
	payload, err := ParseScenario(r)
	if err != nil {
		return nil, err
	}
	summary, err := ApplyScenario(sim, payload)
	if err != nil {
		return nil, err
	}
	return &ScenarioConfig{Summary: summary, Traffic: payload.Traffic, Regions: payload.DeniedRegions}, nil
}

// ApplyScenario registers the parsed satellites and ground stations.
func ApplyScenario(sim *Simulation, payload *ScenarioPayload) (*Scenario, error) {
	if sim == nil {
		return nil, fmt.Errorf("scenario: sim is nil")
	}

	out := &Scenario{}

	for _, js := range payload.Satellites {
		if js.ID == "" {
			return nil, fmt.Errorf("scenario: satellite with empty id")
		}
		sat := &model.Satellite{
			ID:       js.ID,
			Name:     js.Name,
			Class:    model.SatelliteClass(js.Class),
			Status:   model.NodeStatus(js.Status),
			Elements: js.Elements,
		}
		var motion MotionModel
		if js.TLE1 != "" && js.TLE2 != "" {
			motion = NewSGP4ModelFromTLE(js.TLE1, js.TLE2)
		}
		if err := sim.AddSatellite(sat, motion); err != nil {
			return nil, fmt.Errorf("scenario: %w", err)
		}
		out.SatelliteIDs = append(out.SatelliteIDs, js.ID)
	}

	for _, js := range payload.GroundStations {
		if js.ID == "" {
			return nil, fmt.Errorf("scenario: ground station with empty id")
		}
		g := &model.GroundStation{
			ID:               js.ID,
			Name:             js.Name,
			Location:         js.Location,
			CoverageRadiusKm: js.CoverageRadiusKm,
			BandwidthMbps:    js.BandwidthMbps,
			HasInternet:      js.HasInternet,
			Status:           model.NodeStatus(js.Status),
		}
		if err := sim.AddGroundStation(g); err != nil {
			return nil, fmt.Errorf("scenario: %w", err)
		}
		out.GroundIDs = append(out.GroundIDs, js.ID)
	}

	for _, r := range payload.DeniedRegions {
		out.RegionNames = append(out.RegionNames, r.Name)
	}

	return out, nil
}
