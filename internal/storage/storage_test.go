package storage

import (
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func newTestRecorder(t *testing.T) *GormRecorder {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)

	r := NewGormRecorder(db)
	require.NoError(t, r.Init())
	t.Cleanup(func() { r.Close() })
	return r
}

func TestRunAndStepsRoundTrip(t *testing.T) {
	r := newTestRecorder(t)

	run := &Run{
		StartedAt:     time.Now(),
		TerrainType:   "granular",
		ContactMethod: "penalty",
		NumTires:      2,
		MacroStep:     1e-3,
		NumParticles:  1234,
		TerrainHeight: 0.11,
	}
	require.NoError(t, r.StartRun(run))
	assert.NotZero(t, run.ID)

	for step := 0; step < 3; step++ {
		require.NoError(t, r.RecordStep(&StepStat{
			RunID:   run.ID,
			Step:    step,
			SimTime: float64(step) * 1e-3,
		}))
	}
	require.NoError(t, r.RecordContacts(&ContactSummary{
		RunID: run.ID, Step: 2, Tire: 0, VerticesInContact: 7, Fz: 441.5,
	}))

	var steps []StepStat
	require.NoError(t, r.db.Where("run_id = ?", run.ID).Order("step").Find(&steps).Error)
	require.Len(t, steps, 3)
	assert.Equal(t, 2, steps[2].Step)

	var sums []ContactSummary
	require.NoError(t, r.db.Where("run_id = ?", run.ID).Find(&sums).Error)
	require.Len(t, sums, 1)
	assert.Equal(t, 7, sums[0].VerticesInContact)
}

func TestNoopRecorder(t *testing.T) {
	var r Recorder = Noop{}
	assert.NoError(t, r.Init())
	assert.NoError(t, r.StartRun(&Run{}))
	assert.NoError(t, r.RecordStep(&StepStat{}))
	assert.NoError(t, r.RecordContacts(&ContactSummary{}))
	assert.NoError(t, r.Close())
}
