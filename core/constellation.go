package core

import (
	"fmt"

	"github.com/signalsfoundry/leo-relay-sim/model"
)

// ShellConfig describes one Walker-style constellation shell: evenly
// spaced orbital planes, evenly phased satellites per plane, all at
// the same altitude and inclination.
type ShellConfig struct {
	IDPrefix       string
	Class          model.SatelliteClass
	AltitudeKm     float64
	InclinationDeg float64
	Planes         int
	SatsPerPlane   int

	// PhaseOffsetDeg staggers the mean anomaly between adjacent
	// planes, avoiding the seam where every plane's satellites cross
	// the equator together.
	PhaseOffsetDeg float64
}

// BuildShell populates the simulation with a full shell. IDs are
// "<prefix>-<plane>-<slot>".
func BuildShell(sim *Simulation, cfg ShellConfig) ([]string, error) {
	if cfg.Planes <= 0 || cfg.SatsPerPlane <= 0 {
		return nil, fmt.Errorf("%w: shell needs positive plane and slot counts", ErrBadInput)
	}
	if cfg.IDPrefix == "" {
		cfg.IDPrefix = "sat"
	}

	raanStep := 360.0 / float64(cfg.Planes)
	anomalyStep := 360.0 / float64(cfg.SatsPerPlane)

	ids := make([]string, 0, cfg.Planes*cfg.SatsPerPlane)
	for plane := 0; plane < cfg.Planes; plane++ {
		for slot := 0; slot < cfg.SatsPerPlane; slot++ {
			id := fmt.Sprintf("%s-%d-%d", cfg.IDPrefix, plane, slot)
			sat := &model.Satellite{
				ID:    id,
				Name:  id,
				Class: cfg.Class,
				Elements: model.OrbitalElements{
					AltitudeKm:     cfg.AltitudeKm,
					InclinationDeg: cfg.InclinationDeg,
					RAANDeg:        wrapDegrees(float64(plane) * raanStep),
					MeanAnomalyDeg: wrapDegrees(float64(slot)*anomalyStep + float64(plane)*cfg.PhaseOffsetDeg),
				},
			}
			if err := sim.AddSatellite(sat, nil); err != nil {
				return nil, err
			}
			ids = append(ids, id)
		}
	}
	return ids, nil
}
