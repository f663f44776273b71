package cosim

import (
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/treadsim/cosim/internal/storage"
	"github.com/treadsim/cosim/internal/terrain"
	"github.com/treadsim/cosim/internal/tire"
	"github.com/treadsim/cosim/pkg/core"
)

func testConfig() Config {
	tp := tire.DefaultParams()
	tp.DivsMajor = 8
	tp.DivsMinor = 4

	return Config{
		NumTires:  1,
		MacroStep: 1e-3,
		NumSteps:  50,
		Terrain:   terrain.DefaultParams(),
		Tire:      tp,
		Recorder:  storage.Noop{},
	}
}

func TestRigidCoupledRun(t *testing.T) {
	recorder := &peakRecorder{}
	cfg := testConfig()
	cfg.Recorder = recorder

	d := NewInproc(zerolog.Nop(), cfg)
	require.NoError(t, d.Run())

	// The tire starts just touching the platform; the run must show it
	// supported, not falling through.
	tn := d.tires[0]
	z := tn.Center().Z()
	assert.Greater(t, z, tn.Mesh().OuterRadius()-0.01, "tire must not sink through the platform")
	assert.LessOrEqual(t, z, tn.Mesh().OuterRadius()+1e-6, "tire cannot rise above its start height")
	assert.Greater(t, recorder.maxFz, 0.0, "upward contact force observed during the run")

	// Forward motion is prescribed.
	x0 := -2.0 + 1.1*tn.Mesh().OuterRadius()
	assert.InDelta(t, x0+50*1e-3*cfg.Tire.ForwardSpeed, tn.Center().X(), 1e-9)
}

func TestCoupledRunRecordsSteps(t *testing.T) {
	recorder := &countingRecorder{}
	cfg := testConfig()
	cfg.NumSteps = 5
	cfg.Recorder = recorder

	d := NewInproc(zerolog.Nop(), cfg)
	require.NoError(t, d.Run())

	assert.Equal(t, 1, recorder.runs)
	assert.Equal(t, 5, recorder.steps)
	assert.Equal(t, 5, recorder.contacts, "one contact summary per tire per step")
}

func TestGranularCoupledRunWithCheckpoint(t *testing.T) {
	dir := t.TempDir()

	cfg := testConfig()
	cfg.NumSteps = 5
	cfg.WriteCheckpoint = true
	cfg.Terrain.TerrainType = core.TerrainGranular
	cfg.Terrain.HdimX = 0.2
	cfg.Terrain.HdimY = 0.1
	cfg.Terrain.RadiusG = 0.02
	cfg.Terrain.NumLayers = 2
	cfg.Terrain.SettlingTime = 0.01
	cfg.Terrain.StepSize = 1e-3
	cfg.Terrain.OutDir = dir
	cfg.Tire.StepSize = 1e-3

	d := NewInproc(zerolog.Nop(), cfg)
	require.NoError(t, d.Run())

	assert.Greater(t, d.terrain.NumParticles(), 0)
	assert.FileExists(t, filepath.Join(dir, "checkpoint.dat"))
	assert.FileExists(t, filepath.Join(dir, "settings.dat"))
}

type peakRecorder struct {
	storage.Noop
	maxFz float64
}

func (r *peakRecorder) RecordContacts(sum *storage.ContactSummary) error {
	if sum.Fz > r.maxFz {
		r.maxFz = sum.Fz
	}
	return nil
}

type countingRecorder struct {
	runs, steps, contacts int
}

func (r *countingRecorder) Init() error { return nil }
func (r *countingRecorder) StartRun(run *storage.Run) error {
	r.runs++
	run.ID = 1
	return nil
}
func (r *countingRecorder) RecordStep(*storage.StepStat) error           { r.steps++; return nil }
func (r *countingRecorder) RecordContacts(*storage.ContactSummary) error { r.contacts++; return nil }
func (r *countingRecorder) Close() error                                 { return nil }
