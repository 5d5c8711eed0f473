package main

import (
	"context"
	"flag"
	"math/rand"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/labstack/echo/v4"

	"github.com/signalsfoundry/leo-relay-sim/core"
	"github.com/signalsfoundry/leo-relay-sim/internal/logging"
	"github.com/signalsfoundry/leo-relay-sim/internal/observability"
	"github.com/signalsfoundry/leo-relay-sim/timectrl"
)

func main() {
	addr := flag.String("addr", defaultAddr(), "listen address")
	tick := flag.Duration("tick", 1*time.Second, "simulation tick interval (wall clock)")
	scenarioPath := flag.String("scenario", "configs/scenario.json", "path to the JSON scenario")
	flag.Parse()

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

	sim, err := buildSimulation(*scenarioPath, log, metrics)
	if err != nil {
		log.Error(ctx, "simulation setup failed",
			logging.String("scenario", *scenarioPath), logging.String("error", err.Error()))
		os.Exit(1)
	}

	// The simulation advances in real time while the server answers
	// snapshot queries between ticks.
	tc := timectrl.NewTimeController(time.Now().UTC(), *tick, timectrl.RealTime)
	tc.AddListener(func(_ time.Time, dtSeconds float64) {
		sim.Tick(dtSeconds)
	})
	tc.Start(0)

	e := echo.New()
	e.HideBanner = true
	e.Use(requestLogger(log))

	h := &handler{sim: sim}

	e.GET("/healthz", h.getHealth)
	e.GET("/metrics", echo.WrapHandler(metrics.Handler()))

	api := e.Group("/api")
	api.GET("/satellites", h.listSatellites)
	api.GET("/satellites/:id", h.getSatellite)
	api.GET("/groundstations", h.listGroundStations)
	api.GET("/groundstations/:id", h.getGroundStation)
	api.GET("/edges", h.listEdges)
	api.GET("/regions", h.listRegions)
	api.GET("/packets", h.listPackets)
	api.GET("/packets/:id", h.getPacket)
	api.POST("/packets", h.createPacket)
	api.GET("/path", h.getPath)
	api.GET("/path/predictive", h.getPredictivePaths)

	go func() {
		log.Info(ctx, "server listening", logging.String("addr", *addr))
		if err := e.Start(*addr); err != nil && err != http.ErrServerClosed {
			log.Error(ctx, "server stopped", logging.String("error", err.Error()))
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit
	log.Info(ctx, "shutting down")

	shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		log.Error(ctx, "shutdown failed", logging.String("error", err.Error()))
	}
}

func defaultAddr() string {
	if v := os.Getenv("RELAY_SERVER_ADDR"); v != "" {
		return v
	}
	return ":8080"
}

func buildSimulation(scenarioPath string, log logging.Logger, metrics *observability.SimCollector) (*core.Simulation, error) {
	f, err := os.Open(scenarioPath)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	payload, err := core.ParseScenario(f)
	if err != nil {
		return nil, err
	}
	oracle, err := core.NewGeofenceOracle(payload.DeniedRegions)
	if err != nil {
		return nil, err
	}

	opts := []core.Option{
		core.WithLogger(log),
		core.WithMetrics(metrics),
		core.WithDeniedRegions(oracle),
		core.WithStartTime(time.Now().UTC()),
	}
	if t := payload.Traffic; t != nil && t.PacketsPerSecond > 0 {
		tg := core.NewTrafficGenerator(rand.New(rand.NewSource(t.Seed)), t.PacketsPerSecond)
		if t.MinSizeKB > 0 {
			tg.MinSizeKB = t.MinSizeKB
		}
		if t.MaxSizeKB > 0 {
			tg.MaxSizeKB = t.MaxSizeKB
		}
		opts = append(opts, core.WithTrafficGenerator(tg))
	}

	sim := core.NewSimulation(opts...)
	if _, err := core.ApplyScenario(sim, payload); err != nil {
		return nil, err
	}
	return sim, nil
}

// requestLogger annotates each request with a request_id and logs the
// outcome at debug level.
func requestLogger(log logging.Logger) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			ctx, reqLog := logging.WithRequestLogger(c.Request().Context(), log)
			c.SetRequest(c.Request().WithContext(ctx))

			start := time.Now()
			err := next(c)

			reqLog.Debug(ctx, "request",
				logging.String("method", c.Request().Method),
				logging.String("path", c.Request().URL.Path),
				logging.Int("status", c.Response().Status),
				logging.Float64("duration_ms", float64(time.Since(start).Microseconds())/1000),
			)
			return err
		}
	}
}
