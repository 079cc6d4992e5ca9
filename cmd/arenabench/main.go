// Command arenabench is a headless driver: it runs N episodes of random
// actions against env.Env, prints a performance and reward summary, and
// optionally dumps per-episode rows to CSV (teacher main.go's -headless
// -max-ticks -perf flag set and PerfStats struct, stripped of rendering).
package main

import (
	"flag"
	"fmt"
	"log/slog"
	"math/rand"
	"os"
	"sort"
	"time"

	"github.com/pthm-cable/dronearena/config"
	"github.com/pthm-cable/dronearena/env"
	"github.com/pthm-cable/dronearena/internal/observation"
	"github.com/pthm-cable/dronearena/internal/reward"
)

var (
	numDrones   = flag.Int("drones", 2, "Number of drones per episode (2-4)")
	numAgents   = flag.Int("agents", 2, "Number of externally-controlled agents (1-drones)")
	discretize  = flag.Bool("discrete", false, "Use the discrete action encoding instead of continuous")
	maxTicks    = flag.Int("max-ticks", 10000, "Stop after N total Step calls (0 = run forever)")
	maxEpisodes = flag.Int("max-episodes", 0, "Stop after N completed episodes (0 = unbounded)")
	seed        = flag.Uint64("seed", 1, "Deterministic RNG seed")
	perfLog     = flag.Bool("perf", false, "Print per-phase timing every 120 steps")
	logDir      = flag.String("logdir", "", "Directory to write episodes.csv into (empty disables CSV output)")
)

// PerfStats tracks execution time for each measured phase.
type PerfStats struct {
	samples    map[string][]time.Duration
	maxSamples int
}

func NewPerfStats() *PerfStats {
	return &PerfStats{samples: make(map[string][]time.Duration), maxSamples: 120}
}

func (p *PerfStats) Record(name string, d time.Duration) {
	p.samples[name] = append(p.samples[name], d)
	if len(p.samples[name]) > p.maxSamples {
		p.samples[name] = p.samples[name][1:]
	}
}

func (p *PerfStats) Avg(name string) time.Duration {
	s := p.samples[name]
	if len(s) == 0 {
		return 0
	}
	var total time.Duration
	for _, d := range s {
		total += d
	}
	return total / time.Duration(len(s))
}

func (p *PerfStats) Total() time.Duration {
	var total time.Duration
	for name := range p.samples {
		total += p.Avg(name)
	}
	return total
}

func (p *PerfStats) SortedNames() []string {
	names := make([]string, 0, len(p.samples))
	for name := range p.samples {
		names = append(names, name)
	}
	sort.Slice(names, func(i, j int) bool { return p.Avg(names[i]) > p.Avg(names[j]) })
	return names
}

func main() {
	flag.Parse()

	if *numDrones < 2 || *numDrones > 4 {
		fmt.Fprintln(os.Stderr, "arenabench: -drones must be 2..4")
		os.Exit(1)
	}
	if *numAgents < 1 || *numAgents > *numDrones {
		fmt.Fprintln(os.Stderr, "arenabench: -agents must be 1..drones")
		os.Exit(1)
	}

	writer, err := reward.NewLogWriter(*logDir)
	if err != nil {
		fmt.Fprintln(os.Stderr, "arenabench:", err)
		os.Exit(1)
	}
	defer writer.Close()

	logs := reward.NewLogBuffer(256)

	contWidth := *numAgents * 5
	discWidth := *numAgents * 3
	obsStride := observation.ObsBytes(config.MustLoad(), *numDrones)

	e := env.Init(
		*numDrones, *numAgents, *discretize,
		make([]byte, obsStride**numAgents),
		make([]float32, contWidth),
		make([]int32, discWidth),
		make([]float32, *numAgents),
		make([]uint8, *numAgents),
		make([]uint8, *numAgents),
		logs,
		*seed,
		false,
	)
	defer e.Destroy()

	rng := rand.New(rand.NewSource(int64(*seed)))
	perf := NewPerfStats()

	measure := func(name string, fn func()) {
		if *perfLog {
			start := time.Now()
			fn()
			perf.Record(name, time.Since(start))
		} else {
			fn()
		}
	}

	tick, episodes := 0, 0
	for *maxTicks == 0 || tick < *maxTicks {
		if *maxEpisodes > 0 && episodes >= *maxEpisodes {
			break
		}

		measure("decode_random_actions", func() { randomizeActions(e, rng, *discretize) })
		measure("step", func() { e.Step() })

		tick++
		if e.Terminated(0) {
			episodes++
			if entries := logs.Entries(); len(entries) > 0 {
				_ = writer.Write(entries[len(entries)-1])
			}
		}

		if *perfLog && tick%120 == 0 {
			logPerfStats(perf, tick)
		}
	}

	logs.LogAggregate()
	fmt.Printf("arenabench: %d steps, %d episodes\n", tick, episodes)
}

// randomizeActions fills the Env's action buffers with uniform-random values
// each step, exercising the full action-decode path without a trained
// policy.
func randomizeActions(e *env.Env, rng *rand.Rand, discrete bool) {
	if discrete {
		buf := e.DiscActions
		for i := 0; i < len(buf); i += 3 {
			buf[i] = int32(rng.Intn(9))
			buf[i+1] = int32(rng.Intn(9))
			buf[i+2] = int32(rng.Intn(2))
		}
		return
	}
	buf := e.ContActions
	for i := 0; i < len(buf); i += 5 {
		buf[i] = rng.Float32()*2 - 1
		buf[i+1] = rng.Float32()*2 - 1
		buf[i+2] = rng.Float32()*2 - 1
		buf[i+3] = rng.Float32()*2 - 1
		buf[i+4] = rng.Float32()
	}
}

func logPerfStats(p *PerfStats, tick int) {
	total := p.Total()
	slog.Info("arenabench perf", "tick", tick, "total", total.Round(time.Microsecond))
	for _, name := range p.SortedNames() {
		avg := p.Avg(name)
		pct := float64(0)
		if total > 0 {
			pct = float64(avg) / float64(total) * 100
		}
		slog.Info("  phase", "name", name, "avg", avg.Round(time.Microsecond), "pct", pct)
	}
}
