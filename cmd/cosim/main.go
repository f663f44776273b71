// Command cosim runs the tire/terrain co-simulation.
//
// The default demo role runs the terrain, rig, and tire nodes coupled
// in one process. The terrain, tire, and rig roles each run a single
// node that talks to its peers over websockets, so the simulation can
// be partitioned across processes or machines:
//
//	cosim                 # in-process demo run
//	cosim terrain         # terrain node, listens for peers
//	cosim tire 0          # tire node with index 0
//	cosim rig             # test rig node
package main

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/treadsim/cosim/internal/config"
	"github.com/treadsim/cosim/internal/cosim"
	"github.com/treadsim/cosim/internal/database"
	"github.com/treadsim/cosim/internal/influx"
	"github.com/treadsim/cosim/internal/logging"
	"github.com/treadsim/cosim/internal/rig"
	"github.com/treadsim/cosim/internal/storage"
	"github.com/treadsim/cosim/internal/terrain"
	"github.com/treadsim/cosim/internal/tire"
	"github.com/treadsim/cosim/internal/transport"
	"github.com/treadsim/cosim/pkg/core"
)

const acceptTimeout = 5 * time.Minute

func main() {
	role := "demo"
	if len(os.Args) > 1 {
		role = strings.ToLower(os.Args[1])
	}

	configErr := config.Load(".")

	log, closer, err := logging.New(role, config.GetString("logLevel"), config.GetString("logsDir"))
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	if closer != nil {
		defer closer.Close()
	}
	if configErr != nil {
		log.Warn().Err(configErr).Msg("config file not loaded, using defaults")
	}

	switch role {
	case "demo":
		err = runDemo(log)
	case "terrain":
		err = runTerrain(log)
	case "tire":
		err = runTire(log)
	case "rig":
		err = runRig(log)
	default:
		err = fmt.Errorf("unknown role %q, expected demo, terrain, tire, or rig", role)
	}
	if err != nil {
		log.Fatal().Err(err).Str("role", role).Msg("co-simulation failed")
	}
	log.Info().Str("role", role).Msg("done")
}

// runDemo couples all nodes in-process through the driver.
func runDemo(log zerolog.Logger) error {
	rec, cleanup := newRecorder(log)
	defer cleanup()

	cfg := cosim.Config{
		NumTires:        config.GetInt("sim.numTires"),
		MacroStep:       config.GetFloat("sim.macroStep"),
		NumSteps:        config.GetInt("sim.numSteps"),
		Terrain:         terrainParams(),
		Tire:            tireParams(),
		WriteCheckpoint: config.GetBool("sim.writeCheckpoint"),
		Recorder:        rec,
	}
	if config.GetBool("influx.enabled") {
		mgr := influx.NewManager(log)
		if err := mgr.Connect(); err != nil {
			log.Warn().Err(err).Msg("influx unavailable, telemetry disabled")
		} else {
			cfg.Influx = mgr
			defer mgr.Close()
		}
	}
	if d, err := time.ParseDuration(config.GetString("monitor.interval")); err == nil {
		cfg.MonitorInterval = d
	}

	return cosim.NewInproc(log, cfg).Run()
}

// runTerrain serves the websocket endpoint, waits for the rig and all
// tires, then drives the terrain side of the exchange.
func runTerrain(log zerolog.Logger) error {
	numTires := config.GetInt("sim.numTires")
	macroStep := config.GetFloat("sim.macroStep")
	numSteps := config.GetInt("sim.numSteps")

	srv := transport.NewServer(log, numTires)
	srv.ListenAndServe(config.GetString("transport.listenAddr"))
	defer srv.Close()

	log.Info().Int("tires", numTires).Msg("waiting for peers")
	rigConn, tireConns, err := srv.Accept(acceptTimeout)
	if err != nil {
		return err
	}
	ordered := make([]transport.Conn, numTires)
	for i := 0; i < numTires; i++ {
		c, ok := tireConns[i]
		if !ok {
			return fmt.Errorf("no tire client with index %d connected", i)
		}
		ordered[i] = c
	}

	n := terrain.NewNode(log, terrainParams(), rigConn, ordered)
	if err := n.Settle(); err != nil {
		return err
	}
	if err := n.Initialize(); err != nil {
		return err
	}

	for step := 0; step < numSteps; step++ {
		simTime := float64(step) * macroStep
		if err := n.Synchronize(step, simTime); err != nil {
			return fmt.Errorf("step %d: %w", step, err)
		}
		n.Advance(macroStep)
	}

	if config.GetBool("sim.writeCheckpoint") {
		return n.WriteCheckpoint()
	}
	return nil
}

// runTire connects one tire node to the terrain endpoint.
func runTire(log zerolog.Logger) error {
	index := 0
	if len(os.Args) > 2 {
		i, err := strconv.Atoi(os.Args[2])
		if err != nil {
			return fmt.Errorf("tire index %q: %w", os.Args[2], err)
		}
		index = i
	}
	macroStep := config.GetFloat("sim.macroStep")
	numSteps := config.GetInt("sim.numSteps")

	conn, err := transport.Dial(config.GetString("transport.terrainAddr"), "tire", index)
	if err != nil {
		return err
	}
	defer conn.Close()

	n := tire.NewNode(log, tireParams(), index, conn)
	if err := n.Initialize(); err != nil {
		return err
	}

	for step := 0; step < numSteps; step++ {
		simTime := float64(step) * macroStep
		if err := n.Synchronize(step, simTime); err != nil {
			return fmt.Errorf("step %d: %w", step, err)
		}
		n.Advance(macroStep)
	}
	return nil
}

// runRig connects the rig node, which only takes part in the handshake.
func runRig(log zerolog.Logger) error {
	conn, err := transport.Dial(config.GetString("transport.terrainAddr"), "rig", 0)
	if err != nil {
		return err
	}
	defer conn.Close()

	n := rig.NewNode(log, conn)
	if err := n.Initialize(); err != nil {
		return err
	}
	log.Info().
		Float64("height", n.TerrainHeight()).
		Float64("halfLength", n.HalfLength()).
		Msg("terrain dimensions received")
	return nil
}

// newRecorder builds the run recorder from config. Database failures
// downgrade to the no-op recorder instead of aborting the run.
func newRecorder(log zerolog.Logger) (storage.Recorder, func()) {
	if !config.GetBool("storage.enabled") {
		return storage.Noop{}, func() {}
	}
	mgr := database.NewManager(log, config.GetString("storage.sqlitePath"))
	if err := mgr.Connect(); err != nil {
		log.Warn().Err(err).Msg("database unavailable, run data will not be recorded")
		return storage.Noop{}, func() {}
	}
	rec := storage.NewGormRecorder(mgr.DB)
	if err := rec.Init(); err != nil {
		log.Warn().Err(err).Msg("schema migration failed, run data will not be recorded")
		_ = mgr.Close()
		return storage.Noop{}, func() {}
	}
	return rec, func() {
		if err := mgr.Close(); err != nil {
			log.Warn().Err(err).Msg("closing database")
		}
	}
}

func terrainParams() terrain.Params {
	p := terrain.DefaultParams()
	if strings.EqualFold(config.GetString("sim.terrainType"), "granular") {
		p.TerrainType = core.TerrainGranular
	}
	if strings.EqualFold(config.GetString("sim.contactMethod"), "complementarity") {
		p.ContactMethod = core.ContactComplementarity
	}
	p.StepSize = config.GetFloat("terrain.stepSize")
	p.HdimX = config.GetFloat("terrain.length") / 2
	p.HdimY = config.GetFloat("terrain.width") / 2
	p.HdimZ = config.GetFloat("terrain.height") / 2
	p.Hthick = config.GetFloat("terrain.thickness") / 2
	p.HlenX = config.GetFloat("terrain.platformLength") / 2
	p.SettlingTime = config.GetFloat("terrain.settlingTime")
	p.UseCheckpoint = config.GetBool("sim.useCheckpoint")
	p.RadiusG = config.GetFloat("granular.radius")
	p.RhoG = config.GetFloat("granular.density")
	p.NumLayers = config.GetInt("granular.numLayers")
	p.FixedProxies = config.GetBool("proxy.fixed")
	p.MassPN = config.GetFloat("proxy.nodeMass")
	p.RadiusPN = config.GetFloat("proxy.nodeRadius")
	p.MassPF = config.GetFloat("proxy.faceMass")
	p.OutDir = config.GetString("outDir")
	return p
}

func tireParams() tire.Params {
	p := tire.DefaultParams()
	p.StepSize = config.GetFloat("tire.stepSize")
	p.RingRadius = config.GetFloat("tire.ringRadius")
	p.SectionRadius = config.GetFloat("tire.sectionRadius")
	p.DivsMajor = config.GetInt("tire.divsMajor")
	p.DivsMinor = config.GetInt("tire.divsMinor")
	p.Mass = config.GetFloat("tire.mass")
	p.ForwardSpeed = config.GetFloat("tire.forwardSpeed")
	return p
}
