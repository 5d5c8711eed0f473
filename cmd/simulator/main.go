package main

import (
	"context"
	"flag"
	"math/rand"
	"os"
	"time"

	"github.com/joho/godotenv"

	"github.com/signalsfoundry/leo-relay-sim/core"
	"github.com/signalsfoundry/leo-relay-sim/internal/logging"
	"github.com/signalsfoundry/leo-relay-sim/internal/observability"
	"github.com/signalsfoundry/leo-relay-sim/model"
	"github.com/signalsfoundry/leo-relay-sim/timectrl"
)

func main() {
	duration := flag.Duration("duration", 60*time.Second, "total simulated duration")
	tick := flag.Duration("tick", 1*time.Second, "tick interval")
	accelerated := flag.Bool("accelerated", true, "run in accelerated mode (vs real-time)")
	scenarioPath := flag.String("scenario", "configs/scenario.json", "path to the JSON scenario")
	seed := flag.Int64("seed", 0, "traffic RNG seed override (0 = use scenario)")
	flag.Parse()

	// .env is optional; real deployments set the environment directly.
	_ = godotenv.Load()

	log := logging.NewFromEnv()
	ctx := context.Background()

	shutdownTracing, err := observability.InitTracing(ctx, observability.TracingConfigFromEnv(), log)
	if err != nil {
		log.Error(ctx, "tracing init failed", logging.String("error", err.Error()))
		os.Exit(1)
	}
	defer observability.ShutdownWithTimeout(ctx, shutdownTracing, log)

	metrics, err := observability.NewSimCollector(nil)
	if err != nil {
		log.Error(ctx, "metrics init failed", logging.String("error", err.Error()))
		os.Exit(1)
	}

	f, err := os.Open(*scenarioPath)
	if err != nil {
		log.Error(ctx, "open scenario failed",
			logging.String("path", *scenarioPath), logging.String("error", err.Error()))
		os.Exit(1)
	}
	defer f.Close()

	payload, err := core.ParseScenario(f)
	if err != nil {
		log.Error(ctx, "parse scenario failed", logging.String("error", err.Error()))
		os.Exit(1)
	}

	oracle, err := core.NewGeofenceOracle(payload.DeniedRegions)
	if err != nil {
		log.Error(ctx, "invalid denied regions", logging.String("error", err.Error()))
		os.Exit(1)
	}

	start := time.Now().UTC()
	sim := core.NewSimulation(
		core.WithLogger(log),
		core.WithMetrics(metrics),
		core.WithDeniedRegions(oracle),
		core.WithStartTime(start),
		core.WithTrafficGenerator(trafficFromScenario(payload, *seed)),
	)

	summary, err := core.ApplyScenario(sim, payload)
	if err != nil {
		log.Error(ctx, "apply scenario failed", logging.String("error", err.Error()))
		os.Exit(1)
	}
	log.Info(ctx, "scenario loaded",
		logging.String("path", *scenarioPath),
		logging.Int("satellites", len(summary.SatelliteIDs)),
		logging.Int("ground_stations", len(summary.GroundIDs)),
		logging.Int("denied_regions", len(summary.RegionNames)),
	)

	sim.Subscribe(&logListener{log: log})

	mode := timectrl.RealTime
	if *accelerated {
		mode = timectrl.Accelerated
	}
	tc := timectrl.NewTimeController(start, *tick, mode)
	tc.AddListener(func(_ time.Time, dtSeconds float64) {
		sim.Tick(dtSeconds)
	})

	log.Info(ctx, "simulation starting",
		logging.String("duration", duration.String()),
		logging.String("tick", tick.String()),
		logging.Int("mode", int(mode)),
	)
	<-tc.Start(*duration)

	delivered, dropped := 0, 0
	for _, p := range sim.Packets() {
		switch p.Status {
		case model.PacketDelivered:
			delivered++
		case model.PacketDropped:
			dropped++
		}
	}
	log.Info(ctx, "simulation complete",
		logging.Float64("sim_seconds", sim.ElapsedSeconds()),
		logging.Int("delivered", delivered),
		logging.Int("dropped", dropped),
	)
}

// trafficFromScenario builds the background traffic generator from the
// scenario's traffic block, if any. A non-zero seed flag wins.
func trafficFromScenario(p *core.ScenarioPayload, seedOverride int64) *core.TrafficGenerator {
	if p.Traffic == nil || p.Traffic.PacketsPerSecond <= 0 {
		return nil
	}
	seed := p.Traffic.Seed
	if seedOverride != 0 {
		seed = seedOverride
	}
	tg := core.NewTrafficGenerator(rand.New(rand.NewSource(seed)), p.Traffic.PacketsPerSecond)
	if p.Traffic.MinSizeKB > 0 {
		tg.MinSizeKB = p.Traffic.MinSizeKB
	}
	if p.Traffic.MaxSizeKB > 0 {
		tg.MaxSizeKB = p.Traffic.MaxSizeKB
	}
	return tg
}

// logListener prints the packet lifecycle; connection churn is logged at
// debug so a dense constellation doesn't flood the output.
type logListener struct {
	core.NopListener
	log logging.Logger
}

func (l *logListener) PacketDelivered(p model.DataPacket) {
	l.log.Info(context.Background(), "packet delivered",
		logging.Int64("packet", p.ID),
		logging.Float64("latency_s", p.LatencySeconds),
		logging.Int("hops", len(p.Path)),
	)
}

func (l *logListener) PacketDropped(p model.DataPacket, reason model.DropReason) {
	l.log.Info(context.Background(), "packet dropped",
		logging.Int64("packet", p.ID),
		logging.String("reason", string(reason)),
	)
}

func (l *logListener) ConnectionAdded(e core.TopologyEdge) {
	l.log.Debug(context.Background(), "link up", logging.String("edge", e.ID))
}

func (l *logListener) ConnectionRemoved(e core.TopologyEdge) {
	l.log.Debug(context.Background(), "link down", logging.String("edge", e.ID))
}
