// Package storage records co-simulation runs to a relational database
// behind a small backend interface.
package storage

// Recorder persists run metadata and per-step statistics. All methods
// are called from the driver goroutine only.
type Recorder interface {
	// Init prepares the schema.
	Init() error
	// StartRun inserts the run row and fills in its ID.
	StartRun(run *Run) error
	// RecordStep inserts one step row.
	RecordStep(stat *StepStat) error
	// RecordContacts inserts one per-tire contact summary.
	RecordContacts(sum *ContactSummary) error
	Close() error
}

// Noop discards everything. Used when recording is disabled.
type Noop struct{}

func (Noop) Init() error                          { return nil }
func (Noop) StartRun(*Run) error                  { return nil }
func (Noop) RecordStep(*StepStat) error           { return nil }
func (Noop) RecordContacts(*ContactSummary) error { return nil }
func (Noop) Close() error                         { return nil }
