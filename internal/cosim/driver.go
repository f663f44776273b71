// Package cosim couples the terrain, rig, and tire nodes into one
// driver that runs the full co-simulation: handshake, then the
// synchronize/advance loop, with optional run recording and telemetry.
package cosim

import (
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/treadsim/cosim/internal/influx"
	"github.com/treadsim/cosim/internal/monitor"
	"github.com/treadsim/cosim/internal/rig"
	"github.com/treadsim/cosim/internal/storage"
	"github.com/treadsim/cosim/internal/terrain"
	"github.com/treadsim/cosim/internal/tire"
	"github.com/treadsim/cosim/internal/transport"
)

// Config collects the coupled-run settings.
type Config struct {
	NumTires  int
	MacroStep float64
	NumSteps  int

	Terrain terrain.Params
	Tire    tire.Params

	// WriteCheckpoint saves the granular state after the run.
	WriteCheckpoint bool

	// Recorder persists run data; use storage.Noop to disable.
	Recorder storage.Recorder
	// Influx is optional step telemetry; nil disables it.
	Influx *influx.Manager
	// MonitorInterval enables periodic progress logging when positive.
	MonitorInterval time.Duration
}

// Driver owns the nodes of an in-process coupled run.
type Driver struct {
	log zerolog.Logger
	cfg Config

	terrain *terrain.Node
	rig     *rig.Node
	tires   []*tire.Node

	mu          sync.Mutex
	step        int
	simTime     float64
	terrainWall time.Duration
	tireWall    time.Duration
}

// NewInproc builds a driver whose nodes communicate over an in-process
// network.
func NewInproc(log zerolog.Logger, cfg Config) *Driver {
	net := transport.NewNetwork()

	tireConns := make([]transport.Conn, cfg.NumTires)
	d := &Driver{log: log, cfg: cfg}
	for i := 0; i < cfg.NumTires; i++ {
		name := fmt.Sprintf("tire%d", i)
		tireConns[i] = net.Connect("terrain", name)
		d.tires = append(d.tires, tire.NewNode(
			log.With().Str("node", name).Logger(), cfg.Tire, i,
			net.Connect(name, "terrain")))
	}
	d.terrain = terrain.NewNode(
		log.With().Str("node", "terrain").Logger(), cfg.Terrain,
		net.Connect("terrain", "rig"), tireConns)
	d.rig = rig.NewNode(
		log.With().Str("node", "rig").Logger(),
		net.Connect("rig", "terrain"))
	return d
}

// Run executes the full co-simulation and returns the first error any
// node produced.
func (d *Driver) Run() error {
	if err := d.handshake(); err != nil {
		return err
	}

	run := &storage.Run{
		StartedAt:     time.Now(),
		TerrainType:   d.cfg.Terrain.TerrainType.String(),
		ContactMethod: d.cfg.Terrain.ContactMethod.String(),
		NumTires:      d.cfg.NumTires,
		MacroStep:     d.cfg.MacroStep,
		NumParticles:  d.terrain.NumParticles(),
		TerrainHeight: d.terrain.InitHeight(),
	}
	if err := d.cfg.Recorder.StartRun(run); err != nil {
		return err
	}

	var mon *monitor.Service
	if d.cfg.MonitorInterval > 0 {
		mon = monitor.NewService(d.log, d.cfg.MonitorInterval, d.snapshot)
		mon.Start()
		defer mon.Stop()
	}

	for step := 0; step < d.cfg.NumSteps; step++ {
		simTime := float64(step) * d.cfg.MacroStep

		if err := d.parallel(1+len(d.tires), func(errs chan<- error) {
			go func() { errs <- d.terrain.Synchronize(step, simTime) }()
			for _, tn := range d.tires {
				tn := tn
				go func() { errs <- tn.Synchronize(step, simTime) }()
			}
		}); err != nil {
			return fmt.Errorf("step %d: %w", step, err)
		}

		if err := d.parallel(1+len(d.tires), func(errs chan<- error) {
			go func() { d.terrain.Advance(d.cfg.MacroStep); errs <- nil }()
			for _, tn := range d.tires {
				tn := tn
				go func() { tn.Advance(d.cfg.MacroStep); errs <- nil }()
			}
		}); err != nil {
			return fmt.Errorf("step %d: %w", step, err)
		}

		var tireWall time.Duration
		for _, tn := range d.tires {
			tireWall += tn.TotalTime()
		}
		d.mu.Lock()
		d.step = step + 1
		d.simTime = simTime + d.cfg.MacroStep
		d.terrainWall = d.terrain.TotalTime()
		d.tireWall = tireWall
		d.mu.Unlock()

		if err := d.record(run, step, simTime); err != nil {
			return err
		}
	}

	if d.cfg.WriteCheckpoint {
		if err := d.terrain.WriteCheckpoint(); err != nil {
			return err
		}
	}
	return nil
}

// handshake runs Settle and the Initialize exchange. The nodes block
// on each other, so each runs on its own goroutine.
func (d *Driver) handshake() error {
	return d.parallel(2+len(d.tires), func(errs chan<- error) {
		go func() {
			if err := d.terrain.Settle(); err != nil {
				errs <- err
				return
			}
			errs <- d.terrain.Initialize()
		}()
		go func() { errs <- d.rig.Initialize() }()
		for _, tn := range d.tires {
			tn := tn
			go func() { errs <- tn.Initialize() }()
		}
	})
}

// parallel runs the spawner's goroutines and collects one error value
// from each; the spawner must send exactly n values.
func (d *Driver) parallel(n int, spawn func(errs chan<- error)) error {
	errs := make(chan error, n)
	spawn(errs)

	var first error
	for i := 0; i < n; i++ {
		if err := <-errs; err != nil && first == nil {
			first = err
		}
	}
	return first
}

func (d *Driver) record(run *storage.Run, step int, simTime float64) error {
	if err := d.cfg.Recorder.RecordStep(&storage.StepStat{
		RunID:       run.ID,
		Step:        step,
		SimTime:     simTime,
		Contacts:    d.terrain.System().NumContacts(),
		TerrainWall: d.terrain.TotalTime().Seconds(),
	}); err != nil {
		return err
	}
	for _, tn := range d.tires {
		f := tn.TerrainForce()
		if err := d.cfg.Recorder.RecordContacts(&storage.ContactSummary{
			RunID:             run.ID,
			Step:              step,
			Tire:              tn.Index(),
			VerticesInContact: tn.ContactVertices(),
			Fx:                f.X(),
			Fy:                f.Y(),
			Fz:                f.Z(),
		}); err != nil {
			return err
		}
	}
	if d.cfg.Influx != nil {
		var tireWall time.Duration
		for _, tn := range d.tires {
			tireWall += tn.TotalTime()
		}
		d.cfg.Influx.WriteStep(step, simTime,
			d.terrain.TotalTime(), tireWall, d.terrain.System().NumContacts())
	}
	return nil
}

func (d *Driver) snapshot() monitor.Snapshot {
	d.mu.Lock()
	defer d.mu.Unlock()
	return monitor.Snapshot{
		Step:        d.step,
		SimTime:     d.simTime,
		TerrainWall: d.terrainWall,
		TireWall:    d.tireWall,
	}
}
