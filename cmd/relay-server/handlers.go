package main

import (
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/signalsfoundry/leo-relay-sim/core"
	"github.com/signalsfoundry/leo-relay-sim/model"
)

// handler serves read-mostly snapshots of the running simulation plus
// packet injection and path queries.
type handler struct {
	sim *core.Simulation
}

func (h *handler) getHealth(c echo.Context) error {
	return c.String(http.StatusOK, "OK")
}

func (h *handler) listSatellites(c echo.Context) error {
	return c.JSON(http.StatusOK, h.sim.Satellites())
}

func (h *handler) getSatellite(c echo.Context) error {
	sat, ok := h.sim.Satellite(c.Param("id"))
	if !ok {
		return echo.NewHTTPError(http.StatusNotFound, "unknown satellite")
	}
	return c.JSON(http.StatusOK, sat)
}

func (h *handler) listGroundStations(c echo.Context) error {
	return c.JSON(http.StatusOK, h.sim.GroundStations())
}

func (h *handler) getGroundStation(c echo.Context) error {
	g, ok := h.sim.GroundStation(c.Param("id"))
	if !ok {
		return echo.NewHTTPError(http.StatusNotFound, "unknown ground station")
	}
	return c.JSON(http.StatusOK, g)
}

func (h *handler) listEdges(c echo.Context) error {
	return c.JSON(http.StatusOK, h.sim.Edges())
}

func (h *handler) listRegions(c echo.Context) error {
	return c.JSON(http.StatusOK, h.sim.DeniedRegions())
}

func (h *handler) listPackets(c echo.Context) error {
	return c.JSON(http.StatusOK, h.sim.Packets())
}

func (h *handler) getPacket(c echo.Context) error {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "packet id must be an integer")
	}
	p, ok := h.sim.Packet(id)
	if !ok {
		return echo.NewHTTPError(http.StatusNotFound, "unknown packet")
	}
	return c.JSON(http.StatusOK, p)
}

type createPacketRequest struct {
	Source      model.NodeRef `json:"source"`
	Destination model.NodeRef `json:"destination"`
	SizeKB      float64       `json:"size_kb"`
	Priority    int           `json:"priority"`
}

func (h *handler) createPacket(c echo.Context) error {
	var req createPacketRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "malformed packet request")
	}
	p := h.sim.CreatePacket(req.Source, req.Destination, req.SizeKB, req.Priority)
	if p == nil {
		return echo.NewHTTPError(http.StatusUnprocessableEntity, "invalid source, destination, or size")
	}
	return c.JSON(http.StatusCreated, p)
}

func (h *handler) getPath(c echo.Context) error {
	from := c.QueryParam("from")
	to := c.QueryParam("to")
	if from == "" || to == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "from and to are required")
	}
	avoid := c.QueryParam("avoid_denied") != "false"

	path := h.sim.FindShortestPath(from, to, avoid)
	if path == nil {
		return echo.NewHTTPError(http.StatusNotFound, "no path")
	}
	return c.JSON(http.StatusOK, path)
}

func (h *handler) getPredictivePaths(c echo.Context) error {
	from := c.QueryParam("from")
	to := c.QueryParam("to")
	if from == "" || to == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "from and to are required")
	}

	offsets, err := parseOffsets(c.QueryParam("offsets"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "offsets must be comma-separated seconds")
	}
	return c.JSON(http.StatusOK, h.sim.CalculatePredictivePaths(from, to, offsets))
}

// parseOffsets turns "30,60,120" into seconds; empty input defaults to
// one minute ahead in 30s steps.
func parseOffsets(raw string) ([]float64, error) {
	if raw == "" {
		return []float64{30, 60}, nil
	}
	parts := strings.Split(raw, ",")
	out := make([]float64, 0, len(parts))
	for _, part := range parts {
		v, err := strconv.ParseFloat(strings.TrimSpace(part), 64)
		if err != nil {
			return nil, err
		}
		if v < 0 {
			return nil, fmt.Errorf("negative offset %v", v)
		}
		out = append(out, v)
	}
	return out, nil
}
