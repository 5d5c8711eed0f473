package observability

import (
	"fmt"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// SimCollector bundles Prometheus metrics for the relay simulation and
// provides a ready-to-mount /metrics handler. It satisfies the
// simulation core's MetricsRecorder interface.
type SimCollector struct {
	gatherer prometheus.Gatherer

	TickDurations prometheus.Histogram

	Satellites     prometheus.Gauge
	GroundStations prometheus.Gauge
	ActiveEdges    prometheus.Gauge
	LivePackets    prometheus.Gauge

	PacketsCreated   prometheus.Counter
	PacketsRoutedC   prometheus.Counter
	PacketsDeliveredC prometheus.Counter
	PacketsDroppedC  *prometheus.CounterVec
}

// NewSimCollector registers simulation Prometheus metrics against the
// provided registerer, defaulting to the global Prometheus registry when
// nil.
func NewSimCollector(reg prometheus.Registerer) (*SimCollector, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	gatherer := prometheus.DefaultGatherer
	if g, ok := reg.(prometheus.Gatherer); ok {
		gatherer = g
	}

	tickDurations, err := registerHistogram(reg, prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "sim_tick_duration_seconds",
		Help:    "Wall-clock duration of one simulation tick.",
		Buckets: []float64{0.0005, 0.001, 0.0025, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
	}), "sim_tick_duration_seconds")
	if err != nil {
		return nil, err
	}

	satellites, err := registerGauge(reg, prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "sim_satellites",
		Help: "Current number of registered satellites.",
	}), "sim_satellites")
	if err != nil {
		return nil, err
	}
	groundStations, err := registerGauge(reg, prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "sim_ground_stations",
		Help: "Current number of registered ground stations.",
	}), "sim_ground_stations")
	if err != nil {
		return nil, err
	}
	activeEdges, err := registerGauge(reg, prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "sim_active_edges",
		Help: "Active topology edges after the latest rebuild.",
	}), "sim_active_edges")
	if err != nil {
		return nil, err
	}
	livePackets, err := registerGauge(reg, prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "sim_live_packets",
		Help: "Packets currently queued or in transit.",
	}), "sim_live_packets")
	if err != nil {
		return nil, err
	}

	created, err := registerCounter(reg, prometheus.NewCounter(prometheus.CounterOpts{
		Name: "sim_packets_created_total",
		Help: "Total packets injected into the network.",
	}), "sim_packets_created_total")
	if err != nil {
		return nil, err
	}
	routed, err := registerCounter(reg, prometheus.NewCounter(prometheus.CounterOpts{
		Name: "sim_packet_hops_total",
		Help: "Total single-hop transmissions performed by the router.",
	}), "sim_packet_hops_total")
	if err != nil {
		return nil, err
	}
	delivered, err := registerCounter(reg, prometheus.NewCounter(prometheus.CounterOpts{
		Name: "sim_packets_delivered_total",
		Help: "Total packets that reached their destination.",
	}), "sim_packets_delivered_total")
	if err != nil {
		return nil, err
	}

	dropped := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "sim_packets_dropped_total",
		Help: "Total dropped packets, labeled by drop reason.",
	}, []string{"reason"})
	dropped, err = registerCounterVec(reg, dropped, "sim_packets_dropped_total")
	if err != nil {
		return nil, err
	}

	return &SimCollector{
		gatherer:          gatherer,
		TickDurations:     tickDurations,
		Satellites:        satellites,
		GroundStations:    groundStations,
		ActiveEdges:       activeEdges,
		LivePackets:       livePackets,
		PacketsCreated:    created,
		PacketsRoutedC:    routed,
		PacketsDeliveredC: delivered,
		PacketsDroppedC:   dropped,
	}, nil
}

// Handler exposes a ready-to-use /metrics handler.
func (c *SimCollector) Handler() http.Handler {
	gatherer := c.gatherer
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}

// ObserveTickDuration records how long one simulation tick took.
func (c *SimCollector) ObserveTickDuration(seconds float64) {
	if c == nil || c.TickDurations == nil {
		return
	}
	c.TickDurations.Observe(seconds)
}

// SetNetworkCounts drives the network gauges after each tick.
func (c *SimCollector) SetNetworkCounts(satellites, groundStations, activeEdges, livePackets int) {
	if c == nil {
		return
	}
	if c.Satellites != nil {
		c.Satellites.Set(float64(satellites))
	}
	if c.GroundStations != nil {
		c.GroundStations.Set(float64(groundStations))
	}
	if c.ActiveEdges != nil {
		c.ActiveEdges.Set(float64(activeEdges))
	}
	if c.LivePackets != nil {
		c.LivePackets.Set(float64(livePackets))
	}
}

// PacketCreated counts one packet injection.
func (c *SimCollector) PacketCreated() {
	if c == nil || c.PacketsCreated == nil {
		return
	}
	c.PacketsCreated.Inc()
}

// PacketRouted counts one hop transmission.
func (c *SimCollector) PacketRouted() {
	if c == nil || c.PacketsRoutedC == nil {
		return
	}
	c.PacketsRoutedC.Inc()
}

// PacketDelivered counts one successful delivery.
func (c *SimCollector) PacketDelivered() {
	if c == nil || c.PacketsDeliveredC == nil {
		return
	}
	c.PacketsDeliveredC.Inc()
}

// PacketDropped counts one drop, labeled by reason.
func (c *SimCollector) PacketDropped(reason string) {
	if c == nil || c.PacketsDroppedC == nil {
		return
	}
	if reason == "" {
		reason = "unknown"
	}
	c.PacketsDroppedC.WithLabelValues(reason).Inc()
}

func registerCounter(reg prometheus.Registerer, counter prometheus.Counter, name string) (prometheus.Counter, error) {
	if err := reg.Register(counter); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(prometheus.Counter); ok {
				return existing, nil
			}
			return nil, fmt.Errorf("collector %s already registered with incompatible type", name)
		}
		return nil, err
	}
	return counter, nil
}

func registerCounterVec(reg prometheus.Registerer, vec *prometheus.CounterVec, name string) (*prometheus.CounterVec, error) {
	if err := reg.Register(vec); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(*prometheus.CounterVec); ok {
				return existing, nil
			}
			return nil, fmt.Errorf("collector %s already registered with incompatible type", name)
		}
		return nil, err
	}
	return vec, nil
}

func registerHistogram(reg prometheus.Registerer, hist prometheus.Histogram, name string) (prometheus.Histogram, error) {
	if err := reg.Register(hist); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(prometheus.Histogram); ok {
				return existing, nil
			}
			return nil, fmt.Errorf("collector %s already registered with incompatible type", name)
		}
		return nil, err
	}
	return hist, nil
}

func registerGauge(reg prometheus.Registerer, gauge prometheus.Gauge, name string) (prometheus.Gauge, error) {
	if err := reg.Register(gauge); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(prometheus.Gauge); ok {
				return existing, nil
			}
			return nil, fmt.Errorf("collector %s already registered with incompatible type", name)
		}
		return nil, err
	}
	return gauge, nil
}
