package core

import (
	"math/rand"

	"golang.org/x/time/rate"

	"github.com/signalsfoundry/leo-relay-sim/model"
)

// TrafficGenerator injects low-rate background packets between random
// pairs of ground stations. The random source is injectable so tests
// can fix the seed; the rate limiter is fed simulation time, keeping
// injection deterministic regardless of wall-clock jitter.
type TrafficGenerator struct {
	rng     *rand.Rand
	limiter *rate.Limiter

	MinSizeKB   float64
	MaxSizeKB   float64
	MaxPriority int
}

// NewTrafficGenerator builds a generator emitting at most
// packetsPerSecond of simulated time.
func NewTrafficGenerator(rng *rand.Rand, packetsPerSecond float64) *TrafficGenerator {
	if rng == nil {
		rng = rand.New(rand.NewSource(1))
	}
	// Burst matches the whole-second rate so coarse ticks don't
	// silently clamp injection to one packet per tick.
	burst := int(packetsPerSecond)
	if burst < 1 {
		burst = 1
	}
	return &TrafficGenerator{
		rng:         rng,
		limiter:     rate.NewLimiter(rate.Limit(packetsPerSecond), burst),
		MinSizeKB:   50,
		MaxSizeKB:   1500,
		MaxPriority: 5,
	}
}

// Generate runs inside the tick's traffic phase, with the simulation
// lock held. It picks two distinct ground stations and a random size
// and priority, then injects through the normal creation path (which
// immediately attempts the first routing step).
func (tg *TrafficGenerator) Generate(sim *Simulation, _ float64) {
	ids := sortedGroundIDs(sim.grounds)
	if len(ids) < 2 {
		return
	}

	for tg.limiter.AllowN(sim.simTime, 1) {
		i := tg.rng.Intn(len(ids))
		j := tg.rng.Intn(len(ids) - 1)
		if j >= i {
			j++
		}

		size := tg.MinSizeKB + tg.rng.Float64()*(tg.MaxSizeKB-tg.MinSizeKB)
		priority := 1 + tg.rng.Intn(tg.MaxPriority)

		src := model.NodeRef{Kind: model.NodeGroundStation, ID: ids[i]}
		dst := model.NodeRef{Kind: model.NodeGroundStation, ID: ids[j]}
		sim.createPacketLocked(src, dst, size, priority)
	}
}
