package storage

import (
	"time"
)

// Run is one co-simulation run.
type Run struct {
	ID            uint      `gorm:"primarykey"`
	StartedAt     time.Time `gorm:"index"`
	TerrainType   string
	ContactMethod string
	NumTires      int
	MacroStep     float64
	NumParticles  int
	TerrainHeight float64
}

// StepStat is one synchronization step's bookkeeping.
type StepStat struct {
	ID       uint `gorm:"primarykey"`
	RunID    uint `gorm:"index"`
	Step     int
	SimTime  float64
	Contacts int
	// Cumulative wall-clock integration time, in seconds.
	TerrainWall float64
}

// ContactSummary aggregates the forces returned to one tire at one
// step.
type ContactSummary struct {
	ID                uint `gorm:"primarykey"`
	RunID             uint `gorm:"index"`
	Step              int
	Tire              int
	VerticesInContact int
	Fx, Fy, Fz        float64
}

// DatabaseModels lists every model for schema migration.
var DatabaseModels = []any{
	&Run{},
	&StepStat{},
	&ContactSummary{},
}
